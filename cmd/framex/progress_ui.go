package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/framex/internal/app/run"
	"github.com/John-Robertt/framex/internal/config"
	"github.com/John-Robertt/framex/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出。
//
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：长视频解码时长时间没有类别完成，也会定期输出当前帧数
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total int
	done  int
	ok    int
	fail  int
	skip  int

	active       domain.ClassLabel
	activeFrames int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.startedAt.IsZero() {
		p.startedAt = now
	}
	p.total = len(eff.Classes)

	fmt.Fprintf(p.w, "[%s] framex\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigFile != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigFile)
	}
	fmt.Fprintf(p.w, "  videos_dir: %s\n", eff.VideosDir)
	fmt.Fprintf(p.w, "  raw_images_dir: %s\n", eff.RawImagesDir)
	fmt.Fprintf(p.w, "  stride: %d\n", eff.Stride)
	fmt.Fprintf(p.w, "  warmup: %gs\n", eff.WarmupSeconds)
	fmt.Fprintf(p.w, "  classes: %s\n", formatLabels(eff.Classes))
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
	if p.total > 0 && !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnClassStart(idx, total int, spec domain.ClassSpec) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active = spec.Label
	p.activeFrames = 0
	fmt.Fprintf(p.w, "[%d/%d] %s 开始: %s\n", idx, total, spec.Label, truncate(spec.Video, 160))
	p.lastPrinted = time.Now()
}

func (p *progressUI) OnFrameWritten(label domain.ClassLabel, written int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 每帧都打印会刷屏：只记录，交给 keepalive 输出。
	if label == p.active {
		p.activeFrames = written
	}
}

func (p *progressUI) OnClassDone(idx, total int, res domain.ClassResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total
	p.active = ""
	p.activeFrames = 0

	switch res.Status {
	case domain.StatusProcessed:
		p.ok++
		corrupt := ""
		if res.Corrupt > 0 {
			corrupt = fmt.Sprintf(" corrupt=%d", res.Corrupt)
		}
		fmt.Fprintf(p.w, "[%d/%d] %s OK frames=%d%s fps=%.3g (%s)\n",
			idx, total, res.Label, res.Frames, corrupt, res.FPS, formatShortDuration(dur),
		)
	case domain.StatusSkipped:
		p.skip++
		fmt.Fprintf(p.w, "[%d/%d] %s SKIP %s\n", idx, total, res.Label, res.ErrorCode)
	default:
		p.fail++
		fmt.Fprintf(p.w, "[%d/%d] %s FAIL %s: %s frames=%d (%s)\n",
			idx, total, res.Label, res.ErrorCode, truncate(res.ErrorMsg, 160), res.Frames, formatShortDuration(dur),
		)
	}

	p.lastPrinted = time.Now()

	// 最后一个类别完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.done >= p.total {
		p.stopTickerLocked()
	}
}

// Close 停止 keepalive（可重复调用）。
func (p *progressUI) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTickerLocked()
}

func (p *progressUI) stopTickerLocked() {
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}
	stop := p.stopCh

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if time.Since(p.lastPrinted) > threshold {
					p.printProgressLocked()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func (p *progressUI) printProgressLocked() {
	active := "-"
	if p.active != "" {
		active = fmt.Sprintf("%s(frames=%d)", p.active, p.activeFrames)
	}
	fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d fail=%d skip=%d active=%s elapsed=%s\n",
		p.done, p.total, p.ok, p.fail, p.skip, active, formatElapsed(time.Since(p.startedAt)),
	)
	p.lastPrinted = time.Now()
}

func formatLabels(classes []domain.ClassSpec) string {
	if len(classes) == 0 {
		return "[]"
	}
	xs := make([]string, 0, len(classes))
	for _, c := range classes {
		xs = append(xs, string(c.Label))
	}
	return strings.Join(xs, ", ")
}

// truncate 按字符（rune）截断，避免把多字节文本切成非法 UTF-8。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

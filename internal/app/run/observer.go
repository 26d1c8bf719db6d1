package run

import (
	"time"

	"github.com/John-Robertt/framex/internal/config"
	"github.com/John-Robertt/framex/internal/domain"
)

// Observer 用于把“运行进度/类别结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 事件在 ExecuteWithObserver 所在 goroutine 上顺序发出；实现若另起 ticker 需自行加锁。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnClassStart 在某个类别开始抽帧前调用（idx 从 1 开始）。
	OnClassStart(idx, total int, spec domain.ClassSpec)
	// OnFrameWritten 在每写出一张图片后调用（written 从 1 开始）。
	OnFrameWritten(label domain.ClassLabel, written int)
	// OnClassDone 在某个类别结束（成功/失败/跳过）后调用。
	OnClassDone(idx, total int, res domain.ClassResult, dur time.Duration)
}

// Observers 把多个 Observer 合并为一个（按顺序分发，nil 会被忽略）。
func Observers(obs ...Observer) Observer {
	xs := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			xs = append(xs, o)
		}
	}
	switch len(xs) {
	case 0:
		return nil
	case 1:
		return xs[0]
	}
	return xs
}

type multiObserver []Observer

func (m multiObserver) OnStart(eff config.EffectiveConfig) {
	for _, o := range m {
		o.OnStart(eff)
	}
}

func (m multiObserver) OnClassStart(idx, total int, spec domain.ClassSpec) {
	for _, o := range m {
		o.OnClassStart(idx, total, spec)
	}
}

func (m multiObserver) OnFrameWritten(label domain.ClassLabel, written int) {
	for _, o := range m {
		o.OnFrameWritten(label, written)
	}
}

func (m multiObserver) OnClassDone(idx, total int, res domain.ClassResult, dur time.Duration) {
	for _, o := range m {
		o.OnClassDone(idx, total, res, dur)
	}
}

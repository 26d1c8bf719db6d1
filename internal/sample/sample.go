// Package sample 负责“从解码帧序列里挑帧”：只关心帧下标与抽样策略，不做任何视频 I/O。
package sample

import (
	"errors"
	"fmt"
	"io"

	"github.com/John-Robertt/framex/internal/domain"
)

// Source 是一次性的、按解码顺序产出帧的序列（不可重启）。
//
// 约定：
// - Next 依次返回 Index = 0, 1, 2, … 的帧
// - 流结束返回 io.EOF（正常终止，不是错误）
// - 单帧无法解码时返回 *FrameError，序列仍可继续 Next
// - Close 必须幂等，任何退出路径都要调用
type Source interface {
	FPS() float64
	Next() (domain.FrameSample, error)
	Close() error
}

// FrameError 表示某一帧解码失败（坏帧），不影响后续帧。
type FrameError struct {
	Index int
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("第 %d 帧解码失败：%v", e.Index, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// Selector 判断某个帧下标是否被选中：
// index >= skip 且 (index - skip) % stride == 0。
type Selector struct {
	skip   int
	stride int
}

func NewSelector(p domain.ExtractionPolicy, fps float64) (Selector, error) {
	if err := p.Validate(); err != nil {
		return Selector{}, err
	}
	if fps <= 0 {
		return Selector{}, fmt.Errorf("帧率无效：%v", fps)
	}
	return Selector{skip: p.SkipFrames(fps), stride: p.Stride}, nil
}

func (s Selector) Skip() int { return s.skip }

func (s Selector) Selected(index int) bool {
	if index < s.skip {
		return false
	}
	return (index-s.skip)%s.stride == 0
}

// Sampler 在 Source 之上只产出被选中的帧。与 Source 一样单次、不可重启。
type Sampler struct {
	src     Source
	sel     Selector
	decoded int
	done    bool
}

func NewSampler(src Source, sel Selector) *Sampler {
	return &Sampler{src: src, sel: sel}
}

// Decoded 返回到目前为止从 Source 读出的帧数（含被丢弃与坏帧）。
func (s *Sampler) Decoded() int { return s.decoded }

// Next 返回下一个被选中的帧。
//
// - 流结束：io.EOF
// - 被选中的帧解码失败：*FrameError（调用方决定跳过还是中止）
// - 未被选中的坏帧：静默忽略
// - 其他错误：原样返回，之后的 Next 一律返回 io.EOF
func (s *Sampler) Next() (domain.FrameSample, error) {
	if s.done {
		return domain.FrameSample{}, io.EOF
	}
	for {
		f, err := s.src.Next()
		if err != nil {
			var fe *FrameError
			if errors.As(err, &fe) {
				s.decoded++
				if s.sel.Selected(fe.Index) {
					return domain.FrameSample{}, err
				}
				continue
			}
			s.done = true
			return domain.FrameSample{}, err
		}
		s.decoded++
		if s.sel.Selected(f.Index) {
			return f, nil
		}
	}
}

// Indices 列出总帧数为 total 时会被选中的全部下标（与 Sampler 的行为一致），用于预估与测试。
func (s Selector) Indices(total int) []int {
	out := make([]int, 0)
	for i := s.skip; i < total; i += s.stride {
		out = append(out, i)
	}
	return out
}

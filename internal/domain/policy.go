package domain

import (
	"errors"
	"math"
	"strings"
)

// ExtractionPolicy 决定从一个视频里挑哪些帧、产物如何命名。开始抽帧后不再变化。
type ExtractionPolicy struct {
	Stride        int     // 每 Stride 帧选一帧（>= 1）
	WarmupSeconds float64 // 开头跳过的秒数（>= 0），按源视频帧率换算为帧数
	NamePrefix    string  // 输出文件名前缀：{NamePrefix}_{N}.jpg
}

func (p ExtractionPolicy) Validate() error {
	if p.Stride < 1 {
		return errors.New("stride 必须 >= 1")
	}
	if p.WarmupSeconds < 0 || math.IsNaN(p.WarmupSeconds) || math.IsInf(p.WarmupSeconds, 0) {
		return errors.New("warmup_seconds 必须是 >= 0 的有限数")
	}
	if strings.TrimSpace(p.NamePrefix) == "" {
		return errors.New("name prefix 不能为空")
	}
	return nil
}

// SkipFrames 把预热时长换算为起始帧下标：round(warmupSeconds * fps)。
// 结果超出 int 范围时截断为 math.MaxInt（即一帧都不选），非正或 NaN 视为 0。
func (p ExtractionPolicy) SkipFrames(fps float64) int {
	v := math.Round(p.WarmupSeconds * fps)
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxInt:
		return math.MaxInt
	}
	return int(v)
}

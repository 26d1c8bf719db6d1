package domain

import "image"

// FrameSample 是解码得到的一帧，只在“解码 -> 写盘”之间短暂存在。
type FrameSample struct {
	Index int // 解码顺序下标，从 0 开始
	Image image.Image
}

// ExtractResult 汇总一次 Extract 的结果。
type ExtractResult struct {
	FPS        float64
	SkipFrames int

	Decoded int      // 实际解码（含被丢弃）的帧数
	Written int      // 写出的图片数
	Corrupt int      // 被选中但无法解码、已跳过的帧数
	Files   []string // 写出的文件名（不含目录），按写入顺序
}

package domain

import "regexp"

// ClassLabel 是数据集中的一个类别名（同时用作输出目录名与文件名前缀）。
type ClassLabel string

var labelRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidLabel 判断 label 能否安全地用作目录名与文件名前缀。
func ValidLabel(s string) bool {
	return labelRE.MatchString(s)
}

// ClassSpec 是配置表中的一行：类别 -> 源视频 + 输出目录。
//
// 不变量（由 config 层保证）：
// - Video/OutDir 均为 clean + absolute
// - 同一张表内 Label 唯一
type ClassSpec struct {
	Label  ClassLabel
	Video  string
	OutDir string
}

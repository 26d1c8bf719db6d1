package domain

import (
	"encoding/json"
	"time"
)

const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// RunReport 是对外稳定输出（stdout JSON）的结构。
type RunReport struct {
	RunID string `json:"run_id"`

	VideosDir    string `json:"videos_dir"`
	RawImagesDir string `json:"raw_images_dir"`

	Stride        int     `json:"stride"`
	WarmupSeconds float64 `json:"warmup_seconds"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Classes []ClassResult `json:"classes"`
}

type ReportSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`

	Frames  int `json:"frames"`
	Corrupt int `json:"corrupt"`
}

type ClassResult struct {
	Label  string `json:"label"`
	Video  string `json:"video"`
	OutDir string `json:"out_dir"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	FPS        float64 `json:"fps"`
	SkipFrames int     `json:"skip_frames"`
	Decoded    int     `json:"decoded"`
	Frames     int     `json:"frames"`
	Corrupt    int     `json:"corrupt"`
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) summary 由 classes 计算得出
//
// classes 保持配置表顺序，不排序。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Classes == nil {
		r.Classes = []ClassResult{}
	}

	var s ReportSummary
	for _, c := range r.Classes {
		switch c.Status {
		case StatusProcessed:
			s.Processed++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
		s.Frames += c.Frames
		s.Corrupt += c.Corrupt
	}
	r.Summary = s
}

// OK 表示本次运行没有任何失败或被跳过的类别。
func (r RunReport) OK() bool {
	return r.Summary.Failed == 0 && r.Summary.Skipped == 0
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}

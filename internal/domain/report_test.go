package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReport_Finalize_KeepOrderAndSummaryAndUTC(t *testing.T) {
	r := RunReport{
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Classes: []ClassResult{
			{Label: "wario", Status: StatusProcessed, Frames: 3, Corrupt: 1},
			{Label: "mario", Status: StatusFailed, ErrorCode: ErrCodeSourceUnreadable},
			{Label: "luigi", Status: StatusSkipped, ErrorCode: ErrCodeCanceled},
			{Label: "peach", Status: StatusProcessed, Frames: 5},
		},
	}

	r.Finalize()

	// 顺序必须与配置表一致。
	labels := []string{r.Classes[0].Label, r.Classes[1].Label, r.Classes[2].Label, r.Classes[3].Label}
	assert.Equal(t, []string{"wario", "mario", "luigi", "peach"}, labels, "classes 不应被重新排序")
	assert.Equal(t, ReportSummary{Processed: 2, Skipped: 1, Failed: 1, Frames: 8, Corrupt: 1}, r.Summary)
	assert.False(t, r.OK())

	b, err := json.Marshal(r)
	require.NoError(t, err)
	// time.Time 在 UTC 下应输出 'Z' 后缀。
	assert.Contains(t, string(b), `"started_at":"2026-02-09T02:00:00Z"`)
}

func TestRunReport_Finalize_EmptyClassesIsArray(t *testing.T) {
	var r RunReport
	r.Finalize()

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"classes":[]`)
	assert.True(t, r.OK())
}

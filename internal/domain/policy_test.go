package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractionPolicy_SkipFrames(t *testing.T) {
	cases := []struct {
		warmup float64
		fps    float64
		want   int
	}{
		{warmup: 60, fps: 30, want: 1800},
		{warmup: 2, fps: 30, want: 60},
		{warmup: 0, fps: 25, want: 0},
		{warmup: 1, fps: 29.97, want: 30},
		{warmup: 0.5, fps: 25, want: 13}, // 12.5 四舍五入（远离 0）
		{warmup: 1e18, fps: 30, want: math.MaxInt},
		{warmup: math.MaxFloat64, fps: 30, want: math.MaxInt},
		{warmup: 1, fps: math.NaN(), want: 0},
	}
	for _, c := range cases {
		p := ExtractionPolicy{Stride: 1, WarmupSeconds: c.warmup, NamePrefix: "x"}
		assert.Equal(t, c.want, p.SkipFrames(c.fps), "warmup=%v fps=%v", c.warmup, c.fps)
	}
}

func TestExtractionPolicy_Validate(t *testing.T) {
	ok := ExtractionPolicy{Stride: 50, WarmupSeconds: 60, NamePrefix: "mario"}
	assert.NoError(t, ok.Validate())

	bad := []ExtractionPolicy{
		{Stride: 0, WarmupSeconds: 0, NamePrefix: "mario"},
		{Stride: 1, WarmupSeconds: -1, NamePrefix: "mario"},
		{Stride: 1, WarmupSeconds: math.NaN(), NamePrefix: "mario"},
		{Stride: 1, WarmupSeconds: 0, NamePrefix: "  "},
	}
	for _, p := range bad {
		assert.Error(t, p.Validate(), "%+v", p)
	}
}

func TestValidLabel(t *testing.T) {
	assert.True(t, ValidLabel("mario"))
	assert.True(t, ValidLabel("Wario_2.v1"))
	assert.False(t, ValidLabel(""))
	assert.False(t, ValidLabel(".."))
	assert.False(t, ValidLabel("a/b"))
	assert.False(t, ValidLabel("-x"))
}

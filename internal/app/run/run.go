package run

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/John-Robertt/framex/internal/config"
	"github.com/John-Robertt/framex/internal/domain"
	"github.com/John-Robertt/framex/internal/extract"
	"github.com/John-Robertt/framex/internal/infra/fsx"
	"github.com/John-Robertt/framex/internal/infra/video"
)

// Deps 是 driver 的外部依赖。零值可用：Open 默认走 ffmpeg 解码，Log 默认丢弃。
type Deps struct {
	Open extract.Opener
	Log  *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Open == nil {
		d.Open = video.Opener
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return d
}

// 测试替换点。
var ensureDir = fsx.EnsureDir

// Execute 按配置表顺序逐个类别抽帧，并返回对外稳定的 RunReport。
// 单个类别失败只记录在该类别的结果里，不影响后续类别。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, deps, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) domain.RunReport {
	deps = deps.withDefaults()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		RunID:         uuid.NewString(),
		VideosDir:     eff.VideosDir,
		RawImagesDir:  eff.RawImagesDir,
		Stride:        eff.Stride,
		WarmupSeconds: eff.WarmupSeconds,
		StartedAt:     time.Now().UTC(),
		Classes:       make([]domain.ClassResult, 0, len(eff.Classes)),
	}
	deps.Log = deps.Log.With(zap.String("run_id", rr.RunID))

	total := len(eff.Classes)
	for i, spec := range eff.Classes {
		idx := i + 1

		if ctx.Err() != nil {
			res := baseResult(spec)
			res.Status = domain.StatusSkipped
			res.ErrorCode = domain.ErrCodeCanceled
			res.ErrorMsg = "运行被取消，未处理"
			rr.Classes = append(rr.Classes, res)
			if obs != nil {
				obs.OnClassDone(idx, total, res, 0)
			}
			continue
		}

		if obs != nil {
			obs.OnClassStart(idx, total, spec)
		}
		started := time.Now()
		res := runClass(ctx, eff, spec, deps, obs)
		dur := time.Since(started)

		rr.Classes = append(rr.Classes, res)
		if obs != nil {
			obs.OnClassDone(idx, total, res, dur)
		}
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}

func baseResult(spec domain.ClassSpec) domain.ClassResult {
	return domain.ClassResult{
		Label:  string(spec.Label),
		Video:  spec.Video,
		OutDir: spec.OutDir,
	}
}

func runClass(ctx context.Context, eff config.EffectiveConfig, spec domain.ClassSpec, deps Deps, obs Observer) domain.ClassResult {
	res := baseResult(spec)
	log := deps.Log.With(zap.String("class", string(spec.Label)))

	log.Info("开始处理类别", zap.String("video", spec.Video), zap.String("dir", spec.OutDir))

	if err := ensureDir(spec.OutDir); err != nil {
		fail(&res, &domain.ExtractError{Code: domain.ErrCodeWriteFailed, Path: spec.OutDir, Err: err})
		log.Error("创建输出目录失败", zap.String("dir", spec.OutDir), zap.Error(err))
		return res
	}

	var opts []extract.Option
	if obs != nil {
		label := spec.Label
		opts = append(opts, extract.WithProgress(func(written int, _ string) {
			obs.OnFrameWritten(label, written)
		}))
	}

	ex := extract.New(spec.Video, deps.Open, log, opts...)
	er, err := ex.Extract(ctx, eff.Policy(spec.Label), spec.OutDir)

	res.FPS = er.FPS
	res.SkipFrames = er.SkipFrames
	res.Decoded = er.Decoded
	res.Frames = er.Written
	res.Corrupt = er.Corrupt

	if err != nil {
		fail(&res, err)
		log.Error("类别处理失败",
			zap.String("error_code", res.ErrorCode),
			zap.Int("frames", res.Frames),
			zap.Error(err),
		)
		return res
	}

	res.Status = domain.StatusProcessed
	log.Info("类别处理完成",
		zap.Int("frames", res.Frames),
		zap.Int("skipped", res.Corrupt),
		zap.Int("decoded", res.Decoded),
		zap.Float64("fps", res.FPS),
	)
	return res
}

func fail(res *domain.ClassResult, err error) {
	res.Status = domain.StatusFailed
	res.ErrorMsg = err.Error()
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		res.ErrorCode = domain.ErrCodeCanceled
	case domain.ErrorCode(err) != "":
		res.ErrorCode = domain.ErrorCode(err)
	default:
		res.ErrorCode = domain.ErrCodeWriteFailed
	}
}

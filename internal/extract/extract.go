// Package extract 把一个视频按抽样策略落成一组 JPEG 图片。
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mdobak/go-xerrors"
	"go.uber.org/zap"

	"github.com/John-Robertt/framex/internal/domain"
	"github.com/John-Robertt/framex/internal/infra/fsx"
	"github.com/John-Robertt/framex/internal/infra/imgx"
	"github.com/John-Robertt/framex/internal/sample"
)

// ImageExt 是输出图片的扩展名。
const ImageExt = ".jpg"

// 通过可替换的函数指针，让测试能稳定模拟磁盘写满/权限不足。
var writeFile = fsx.WriteFileAtomicReplace

// Opener 打开一个视频源。失败时应返回 source_unreadable（否则由 Extract 补上）。
type Opener func(path string) (sample.Source, error)

// frameCounter 由能报告容器声明帧数的 Source 实现（0 表示未知）。
type frameCounter interface {
	FrameCount() int
}

// Extractor 绑定到单个视频文件（一次 Extract 对应一次完整的单向解码）。
type Extractor struct {
	video string
	open  Opener
	log   *zap.Logger

	onWrite func(written int, name string)
}

type Option func(*Extractor)

// WithProgress 在每写出一张图片后回调（written 从 1 开始计数）。
func WithProgress(fn func(written int, name string)) Option {
	return func(e *Extractor) { e.onWrite = fn }
}

func New(video string, open Opener, log *zap.Logger, opts ...Option) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Extractor{video: video, open: open, log: log}
	for _, o := range opts {
		o(e)
	}
	return e
}

// FileName 返回第 n 张（从 0 开始）输出图片的文件名：{prefix}_{n}.jpg。
func FileName(prefix string, n int) string {
	return fmt.Sprintf("%s_%d%s", prefix, n, ImageExt)
}

// Extract 解码视频，按 policy 选帧并写入 destDir。
//
// 约束：
// - destDir 必须已存在（由调用方创建）；不会删除 destDir 中任何已有文件，同名文件直接覆盖
// - 流结束是正常终止；被选中的坏帧跳过并告警，计数器不前进（文件名无空洞）
// - 视频句柄在任何退出路径上都会关闭
// - ctx 取消时在帧与帧之间停止，返回 ctx.Err()
func (e *Extractor) Extract(ctx context.Context, p domain.ExtractionPolicy, destDir string) (res domain.ExtractResult, err error) {
	res.Files = []string{}

	if err := p.Validate(); err != nil {
		return res, &domain.ExtractError{Code: domain.ErrCodeConfigInvalid, Err: err}
	}
	if fi, err := os.Stat(destDir); err != nil {
		return res, &domain.ExtractError{Code: domain.ErrCodeWriteFailed, Path: destDir, Err: xerrors.New(err)}
	} else if !fi.IsDir() {
		return res, &domain.ExtractError{Code: domain.ErrCodeWriteFailed, Path: destDir, Err: &fsx.PathTypeConflictError{Path: destDir, Want: "dir", Got: "file"}}
	}

	src, err := e.open(e.video)
	if err != nil {
		if domain.ErrorCode(err) == "" {
			err = &domain.ExtractError{Code: domain.ErrCodeSourceUnreadable, Path: e.video, Err: xerrors.New(err)}
		}
		return res, err
	}
	defer src.Close()

	fps := src.FPS()
	sel, err := sample.NewSelector(p, fps)
	if err != nil {
		return res, &domain.ExtractError{Code: domain.ErrCodeSourceUnreadable, Path: e.video, Err: xerrors.New(err)}
	}
	res.FPS = fps
	res.SkipFrames = sel.Skip()

	s := sample.NewSampler(src, sel)
	defer func() { res.Decoded = s.Decoded() }()

	log := e.log.With(zap.String("video", e.video), zap.String("dir", destDir))
	log.Debug("开始抽帧",
		zap.Float64("fps", fps),
		zap.Int("skip_frames", res.SkipFrames),
		zap.Int("stride", p.Stride),
	)

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		f, err := s.Next()
		if errors.Is(err, io.EOF) {
			warnShortStream(log, src, s.Decoded())
			break
		}
		var fe *sample.FrameError
		if errors.As(err, &fe) {
			res.Corrupt++
			log.Warn("跳过无法解码的帧", zap.Int("index", fe.Index), zap.Error(fe.Err))
			continue
		}
		if err != nil {
			return res, &domain.ExtractError{Code: domain.ErrCodeSourceUnreadable, Path: e.video, Err: xerrors.New(err)}
		}

		b, err := imgx.EncodeJPEG(f.Image, imgx.DefaultJPEGQuality)
		if err != nil {
			// 像素数据本身不可用：与坏帧同等对待。
			res.Corrupt++
			log.Warn("跳过无法编码的帧", zap.Int("index", f.Index), zap.Error(err))
			continue
		}

		name := FileName(p.NamePrefix, res.Written)
		if err := writeFile(destDir, name, b); err != nil {
			return res, &domain.ExtractError{Code: domain.ErrCodeWriteFailed, Path: filepath.Join(destDir, name), Err: xerrors.New(err)}
		}
		res.Written++
		res.Files = append(res.Files, name)
		log.Debug("写出帧", zap.Int("index", f.Index), zap.String("file", name))

		if e.onWrite != nil {
			e.onWrite(res.Written, name)
		}
	}

	return res, nil
}

// warnShortStream 在解码帧数少于元数据帧数时告警。
// 解码进程中途退出与正常流结束对读取方不可区分，只能事后对账。
func warnShortStream(log *zap.Logger, src sample.Source, decoded int) {
	fc, ok := src.(frameCounter)
	if !ok {
		return
	}
	if want := fc.FrameCount(); want > 0 && decoded < want {
		log.Warn("解码帧数少于元数据帧数，视频可能被截断或解码进程提前退出",
			zap.Int("decoded", decoded),
			zap.Int("expected", want),
		)
	}
}

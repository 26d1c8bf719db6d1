// Package video 用 ffmpeg/ffprobe（经 Vidio）逐帧解码视频文件，实现 sample.Source。
package video

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	vidio "github.com/AlexEidt/Vidio"
	"github.com/mdobak/go-xerrors"

	"github.com/John-Robertt/framex/internal/domain"
	"github.com/John-Robertt/framex/internal/infra/imgx"
	"github.com/John-Robertt/framex/internal/sample"
)

var _ sample.Source = (*Source)(nil)

// Source 是绑定到单个视频文件的解码句柄。只读，不会修改源文件。
type Source struct {
	path string
	v    *vidio.Video

	fps    float64
	width  int
	height int

	next   int
	closed bool
}

// Open 打开视频并读取元数据（帧率、尺寸）。
// 文件不存在、不是视频、或读不到帧率时返回 source_unreadable。
func Open(path string) (*Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, unreadable(path, err)
	}
	if fi.IsDir() {
		return nil, unreadable(path, errors.New("路径是目录"))
	}

	v, err := vidio.NewVideo(path)
	if err != nil {
		return nil, unreadable(path, err)
	}

	fps := v.FPS()
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		v.Close()
		return nil, unreadable(path, fmt.Errorf("无法读取帧率（fps=%v）", fps))
	}
	if v.Width() <= 0 || v.Height() <= 0 {
		v.Close()
		return nil, unreadable(path, fmt.Errorf("无法读取画面尺寸（%dx%d）", v.Width(), v.Height()))
	}

	return &Source{
		path:   path,
		v:      v,
		fps:    fps,
		width:  v.Width(),
		height: v.Height(),
	}, nil
}

// Opener 适配 extract.Opener。
func Opener(path string) (sample.Source, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Source) FPS() float64 { return s.fps }

func (s *Source) Path() string { return s.path }

// FrameCount 返回元数据中的总帧数（ffprobe 给出，可能是估算值；0 表示未知）。
func (s *Source) FrameCount() int { return s.v.Frames() }

// Next 读取下一帧。解码进程结束即视为流结束（io.EOF）。
// 帧缓冲尺寸不符时返回 *sample.FrameError，下标照常前进。
func (s *Source) Next() (domain.FrameSample, error) {
	if s.closed {
		return domain.FrameSample{}, io.EOF
	}
	if !s.v.Read() {
		_ = s.Close()
		return domain.FrameSample{}, io.EOF
	}

	idx := s.next
	s.next++

	img, err := imgx.FromRGBA(s.v.FrameBuffer(), s.width, s.height)
	if err != nil {
		return domain.FrameSample{}, &sample.FrameError{Index: idx, Err: err}
	}
	return domain.FrameSample{Index: idx, Image: img}, nil
}

// Close 结束 ffmpeg 子进程并释放管道。幂等。
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.v.Close()
	return nil
}

func unreadable(path string, err error) error {
	return &domain.ExtractError{
		Code: domain.ErrCodeSourceUnreadable,
		Path: path,
		Err:  xerrors.New(err),
	}
}

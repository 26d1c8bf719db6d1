package imgx

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// DefaultJPEGQuality 是写出数据集样本时使用的 JPEG 质量。
const DefaultJPEGQuality = 95

// FromRGBA 把解码器给出的 RGBA 原始像素包装为 *image.RGBA。
//
// 约束：
// - len(buf) 必须等于 w*h*4，否则视为坏帧
// - 会复制 buf：解码器通常复用同一块帧缓冲，下一次读取会覆盖它
func FromRGBA(buf []byte, w, h int) (*image.RGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("帧尺寸无效：%dx%d", w, h)
	}
	if want := w * h * 4; len(buf) != want {
		return nil, fmt.Errorf("帧缓冲长度不符：got=%d want=%d", len(buf), want)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	copy(img.Pix, buf)
	return img, nil
}

// EncodeJPEG 把一帧编码为 JPEG。
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, errors.New("图片为空")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("图片尺寸无效")
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

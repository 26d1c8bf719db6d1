package imgx

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRGBA_CopiesBuffer(t *testing.T) {
	const w, h = 4, 2
	buf := make([]byte, w*h*4)
	for i := range buf {
		buf[i] = 200
	}

	img, err := FromRGBA(buf, w, h)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, w, h), img.Bounds())

	// 解码器复用缓冲：修改原缓冲不应影响已取出的帧。
	buf[0] = 1
	assert.Equal(t, uint8(200), img.Pix[0])
}

func TestFromRGBA_BadLength(t *testing.T) {
	_, err := FromRGBA(make([]byte, 10), 4, 2)
	assert.Error(t, err)

	_, err = FromRGBA(nil, 0, 2)
	assert.Error(t, err)
}

func TestEncodeJPEG_RoundTrip(t *testing.T) {
	// 构造一个“左黑右白”的帧，验证编码后尺寸与像素大致保持。
	const (
		w = 200
		h = 100
	)
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				src.Set(x, y, color.RGBA{0, 0, 0, 255})
			} else {
				src.Set(x, y, color.RGBA{255, 255, 255, 255})
			}
		}
	}

	out, err := EncodeJPEG(src, 0)
	require.NoError(t, err)

	got, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	gb := got.Bounds()
	assert.Equal(t, w, gb.Dx())
	assert.Equal(t, h, gb.Dy())

	// JPEG 有损，允许一定偏差。
	c := color.RGBAModel.Convert(got.At(w*3/4, h/2)).(color.RGBA)
	assert.GreaterOrEqual(t, c.R, uint8(200), "右半边中心应接近白色：%v", c)
	c = color.RGBAModel.Convert(got.At(w/4, h/2)).(color.RGBA)
	assert.LessOrEqual(t, c.R, uint8(55), "左半边中心应接近黑色：%v", c)
}

func TestEncodeJPEG_Empty(t *testing.T) {
	_, err := EncodeJPEG(nil, 95)
	assert.Error(t, err)

	_, err = EncodeJPEG(image.NewRGBA(image.Rect(0, 0, 0, 0)), 95)
	assert.Error(t, err)
}

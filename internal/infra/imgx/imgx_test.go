package imgx

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

// 构造一个“左黑中白右黑”的横版图，验证竖版裁切确实取中央。
func landThumb(t *testing.T, w, h int) []byte {
	t.Helper()
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x > w/3 && x < w*2/3 {
				src.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				src.Set(x, y, color.RGBA{0, 0, 0, 255})
			}
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 100}); err != nil {
		t.Fatalf("encode thumb jpeg 失败：%v", err)
	}
	return buf.Bytes()
}

func TestCoverPortraitJPEG(t *testing.T) {
	const (
		w = 300
		h = 150
	)
	out, err := CoverPortraitJPEG(landThumb(t, w, h))
	if err != nil {
		t.Fatalf("CoverPortraitJPEG 失败：%v", err)
	}

	got, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode cover jpeg 失败：%v", err)
	}
	gb := got.Bounds()
	if gb.Dx() != h*2/3 || gb.Dy() != h {
		t.Fatalf("尺寸不符合预期：got=%dx%d want=%dx%d", gb.Dx(), gb.Dy(), h*2/3, h)
	}

	// 取中心点像素，应接近白色（JPEG 有损，允许一定偏差）。
	c := color.RGBAModel.Convert(got.At(gb.Min.X+gb.Dx()/2, gb.Min.Y+gb.Dy()/2)).(color.RGBA)
	if c.R < 200 || c.G < 200 || c.B < 200 {
		t.Fatalf("裁切区域不符合预期：中心像素=%v（期望接近白色）", c)
	}
}

// 已经比 2:3 还窄的图不裁切。
func TestCoverPortraitJPEG_NarrowInput(t *testing.T) {
	out, err := CoverPortraitJPEG(landThumb(t, 80, 150))
	if err != nil {
		t.Fatalf("CoverPortraitJPEG 失败：%v", err)
	}
	got, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode 失败：%v", err)
	}
	if got.Bounds().Dx() != 80 {
		t.Fatalf("窄图不应被裁切：%d", got.Bounds().Dx())
	}
}

func TestCoverLandJPEG(t *testing.T) {
	out, err := CoverLandJPEG(landThumb(t, 200, 100))
	if err != nil {
		t.Fatalf("CoverLandJPEG 失败：%v", err)
	}
	got, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode 失败：%v", err)
	}
	if got.Bounds().Dx() != 200 || got.Bounds().Dy() != 100 {
		t.Fatalf("横版封面不应改变尺寸")
	}
}

func TestCoverLandJPEG_Empty(t *testing.T) {
	if _, err := CoverLandJPEG(nil); err == nil {
		t.Fatalf("期望空输入返回错误")
	}
}

package imgx

import (
	"bytes"
	"errors"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png" // 注册 PNG 解码器（输入不一定总是 jpeg）
)

// CoverLandJPEG 把下载到的横版缩略图统一编码为 JPEG（用于 cover_land.jpg）。
//
// 约束：
// - 输入允许是 JPEG/PNG（依赖标准库解码器）
// - 输出固定为 JPEG
func CoverLandJPEG(thumb []byte) ([]byte, error) {
	img, err := decode(thumb)
	if err != nil {
		return nil, err
	}
	return encode(img)
}

// CoverPortraitJPEG 从横版图中央裁出 2:3 竖版封面（用于 cover.jpg；
// mkv 封面惯例：cover 竖版 + cover_land 横版）。
//
// 裁切规则：保留原高度，宽度取 h*2/3，水平居中；
// 图本身比 2:3 还窄时原样重编码（不放大、不补边）。
func CoverPortraitJPEG(thumb []byte) ([]byte, error) {
	img, err := decode(thumb)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	cropW := h * 2 / 3
	if cropW >= w {
		return encode(img)
	}

	x0 := b.Min.X + (w-cropW)/2
	srcRect := image.Rect(x0, b.Min.Y, x0+cropW, b.Max.Y)

	dst := image.NewRGBA(image.Rect(0, 0, srcRect.Dx(), srcRect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, srcRect.Min, draw.Src)
	return encode(dst)
}

func decode(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, errors.New("图片为空")
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("图片尺寸无效")
	}
	return img, nil
}

func encode(img image.Image) ([]byte, error) {
	var out bytes.Buffer
	// 质量：不需要太“讲究”，但要稳定可用；95 在体积与质量之间比较均衡。
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Package branding 把品牌 logo 叠加到生成图片的左上角。
package branding

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"

	_ "image/gif"
	_ "image/jpeg"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrInvalidImage 表示输入不是可解码的图片
var ErrInvalidImage = errors.New("branding: invalid image")

// Brander 持有预先缩放好的 logo，可并发使用
type Brander struct {
	logo  image.Image
	inset int
}

// NewBrander 读取 logo 文件并按宽度等比缩放。logo 缺失属于配置错误，应在启动时暴露。
func NewBrander(logoPath string, width, inset int) (*Brander, error) {
	raw, err := os.ReadFile(logoPath)
	if err != nil {
		return nil, fmt.Errorf("read logo %s: %w", logoPath, err)
	}
	logo, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode logo %s: %w", logoPath, err)
	}
	return NewBranderFromImage(logo, width, inset)
}

func NewBranderFromImage(logo image.Image, width, inset int) (*Brander, error) {
	if logo == nil {
		return nil, errors.New("branding: logo is nil")
	}
	if width <= 0 {
		return nil, fmt.Errorf("branding: invalid logo width %d", width)
	}
	if inset < 0 {
		inset = 0
	}
	return &Brander{logo: resizeToWidth(logo, width), inset: inset}, nil
}

// LogoSize 返回缩放后的 logo 尺寸
func (b *Brander) LogoSize() image.Point {
	return b.logo.Bounds().Size()
}

// Brand 解码原图，在 (inset, inset) 处叠加 logo，输出 PNG
func (b *Brander) Brand(raw []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(canvas, canvas.Bounds(), src, bounds.Min, xdraw.Src)

	logoBounds := b.logo.Bounds()
	target := image.Rect(b.inset, b.inset, b.inset+logoBounds.Dx(), b.inset+logoBounds.Dy())
	xdraw.Draw(canvas, target, b.logo, logoBounds.Min, xdraw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode branded image: %w", err)
	}
	return buf.Bytes(), nil
}

func resizeToWidth(src image.Image, width int) image.Image {
	bounds := src.Bounds()
	if bounds.Dx() == width {
		return src
	}
	height := bounds.Dy() * width / bounds.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

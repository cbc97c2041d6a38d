// Package assets loads host-side resources that feed device uploads.
package assets

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	// registered decoders
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

// Image holds RGBA8 pixels, x fastest then y.
type Image struct {
	Name     string
	FullPath string
	Width    int
	Height   int
	Channels int
	Pixels   []byte
}

type ImageLoader struct {
	// FlipY stores the bottom row first.
	FlipY bool
}

// Load decodes any registered format and converts it to RGBA8.
func (il *ImageLoader) Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := il.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	img.FullPath = path
	img.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return img, nil
}

func (il *ImageLoader) Decode(r io.Reader) (*Image, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if n, ok := src.(*image.NRGBA); ok {
		// straight copy keeps non-opaque pixels exact
		for y := 0; y < b.Dy(); y++ {
			row := n.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], n.Pix[row:row+4*b.Dx()])
		}
	} else {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	}

	if il.FlipY {
		flipRows(dst.Pix, dst.Stride, b.Dy())
	}
	return &Image{
		Name:     format,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Channels: 4,
		Pixels:   dst.Pix,
	}, nil
}

func flipRows(pix []byte, stride, rows int) {
	tmp := make([]byte, stride)
	for top, bottom := 0, rows-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := pix[top*stride : (top+1)*stride]
		b := pix[bottom*stride : (bottom+1)*stride]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}

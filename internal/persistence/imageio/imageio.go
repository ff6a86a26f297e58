// Package imageio converts between image files and imagemap pixel grids.
package imageio

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"biomemap.ai/internal/sim/world/terrain/imagemap"
)

// Decode reads any registered image format into a pixel grid. Alpha is kept;
// the resolver strips it.
func Decode(path string) (imagemap.PixelGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return imagemap.PixelGrid{}, err
	}
	defer f.Close()

	img, format, err := image.Decode(bufio.NewReaderSize(f, 256*1024))
	if err != nil {
		return imagemap.PixelGrid{}, fmt.Errorf("image.Decode: %w", err)
	}
	g := FromImage(img)
	if err := g.Validate(); err != nil {
		return imagemap.PixelGrid{}, fmt.Errorf("%s image: %w", format, err)
	}
	return g, nil
}

// EncodePNG writes g as a non-premultiplied RGBA PNG.
func EncodePNG(path string, g imagemap.PixelGrid) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	bw := bufio.NewWriterSize(f, 256*1024)
	if err := png.Encode(bw, ToImage(g)); err != nil {
		return fmt.Errorf("png encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// Decoder and Encoder adapt this package to the imagemap collaborators.
var (
	Decoder imagemap.Decoder = imagemap.DecoderFunc(Decode)
	Encoder imagemap.Encoder = imagemap.EncoderFunc(EncodePNG)
)

func pack(r, g, b, a uint8) uint32 {
	return uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// FromImage packs img into 0xAARRGGBB with straight (non-premultiplied) color.
func FromImage(img image.Image) imagemap.PixelGrid {
	b := img.Bounds()
	out := imagemap.NewPixelGrid(b.Dx(), b.Dy())
	i := 0
	switch src := img.(type) {
	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, y):]
			for x := 0; x < b.Dx(); x++ {
				p := row[x*4 : x*4+4]
				out.Pix[i] = pack(p[0], p[1], p[2], p[3])
				i++
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				out.Pix[i] = pack(c.R, c.G, c.B, c.A)
				i++
			}
		}
	}
	return out
}

func ToImage(g imagemap.PixelGrid) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, g.Width, g.Height))
	for i, c := range g.Pix {
		p := img.Pix[i*4 : i*4+4]
		p[0] = uint8(c >> 16)
		p[1] = uint8(c >> 8)
		p[2] = uint8(c)
		p[3] = uint8(c >> 24)
	}
	return img
}

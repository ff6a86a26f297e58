// Package imagemap turns a raster image into a biome id grid and serves tiled
// lookups of it under a configurable edge policy.
package imagemap

import (
	"errors"
	"fmt"
)

const (
	rgbMask   = 0x00FFFFFF
	alphaMask = 0xFF000000
)

var (
	ErrEmptyGrid = errors.New("imagemap: empty pixel grid")
	ErrGridShape = errors.New("imagemap: pixel count does not match dimensions")
)

// PixelGrid is a row-major 0xAARRGGBB raster with its origin at the top left.
type PixelGrid struct {
	Width  int
	Height int
	Pix    []uint32
}

func NewPixelGrid(width, height int) PixelGrid {
	return PixelGrid{Width: width, Height: height, Pix: make([]uint32, width*height)}
}

func (g PixelGrid) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return ErrEmptyGrid
	}
	if len(g.Pix) != g.Width*g.Height {
		return fmt.Errorf("%w: %dx%d with %d pixels", ErrGridShape, g.Width, g.Height, len(g.Pix))
	}
	return nil
}

func (g PixelGrid) Clone() PixelGrid {
	pix := make([]uint32, len(g.Pix))
	copy(pix, g.Pix)
	return PixelGrid{Width: g.Width, Height: g.Height, Pix: pix}
}

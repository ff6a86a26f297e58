package imagemap

import (
	"fmt"

	"biomemap.ai/internal/sim/world/logic/mathx"
	"biomemap.ai/internal/sim/world/terrain/layer"
)

// LayerConfig holds the construction-time constants of a Layer.
type LayerConfig struct {
	Mode    Mode
	XOffset int
	ZOffset int
	Fill    layer.BiomeID
	// Child is consulted for out-of-image cells in ContinueNormal mode.
	Child layer.Source
}

// Layer serves tiled lookups of a resolved biome grid. It is immutable and
// safe for concurrent use.
type Layer struct {
	width, height int
	biomes        []layer.BiomeID

	mode             Mode
	xOffset, zOffset int
	fill             layer.BiomeID
	child            layer.Source
}

// LayerInfo describes a Layer for clients and snapshots.
type LayerInfo struct {
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Mode     string        `json:"mode"`
	XOffset  int           `json:"x_offset"`
	ZOffset  int           `json:"z_offset"`
	Fill     layer.BiomeID `json:"fill"`
	HasChild bool          `json:"has_child"`
}

var _ layer.Source = (*Layer)(nil)

// NewLayer takes ownership of biomes.
func NewLayer(width, height int, biomes []layer.BiomeID, cfg LayerConfig) (*Layer, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyGrid
	}
	if len(biomes) != width*height {
		return nil, fmt.Errorf("%w: %dx%d with %d biomes", ErrGridShape, width, height, len(biomes))
	}
	switch cfg.Mode {
	case Repeat, Mirror, ContinueNormal, FillEmpty:
	default:
		return nil, fmt.Errorf("imagemap: %v", cfg.Mode)
	}
	return &Layer{
		width:   width,
		height:  height,
		biomes:  biomes,
		mode:    cfg.Mode,
		xOffset: cfg.XOffset,
		zOffset: cfg.ZOffset,
		fill:    cfg.Fill,
		child:   cfg.Child,
	}, nil
}

func (l *Layer) Info() LayerInfo {
	return LayerInfo{
		Width:    l.width,
		Height:   l.height,
		Mode:     l.mode.String(),
		XOffset:  l.xOffset,
		ZOffset:  l.zOffset,
		Fill:     l.fill,
		HasChild: l.child != nil,
	}
}

func (l *Layer) Mode() Mode { return l.mode }

// Grid returns a copy of the resolved image-space grid.
func (l *Layer) Grid() []layer.BiomeID {
	out := make([]layer.BiomeID, len(l.biomes))
	copy(out, l.biomes)
	return out
}

// At returns the biome id at one world coordinate.
func (l *Layer) At(x, z int) layer.BiomeID {
	var one [1]layer.BiomeID
	return l.Query(one[:0], x, z, 1, 1)[0]
}

func (l *Layer) Query(dst []layer.BiomeID, x, z, sizeX, sizeZ int) []layer.BiomeID {
	out := layer.Grow(dst, layer.Cells(sizeX, sizeZ))
	if len(out) == 0 {
		return out
	}
	switch l.mode {
	case Repeat:
		l.queryRepeat(out, x, z, sizeX, sizeZ)
	case Mirror:
		l.queryMirror(out, x, z, sizeX, sizeZ)
	case ContinueNormal:
		if l.child != nil {
			copy(out, l.child.Query(out, x, z, sizeX, sizeZ))
			l.queryBounded(out, x, z, sizeX, sizeZ, true)
		} else {
			l.queryBounded(out, x, z, sizeX, sizeZ, false)
		}
	default:
		l.queryBounded(out, x, z, sizeX, sizeZ, false)
	}
	return out
}

// wrapStart is Mod(a-off, n) computed without overflowing a-off.
func wrapStart(a, off, n int) int {
	return mathx.Mod(mathx.Mod(a, n)-mathx.Mod(off, n), n)
}

func (l *Layer) queryRepeat(out []layer.BiomeID, x, z, sizeX, sizeZ int) {
	bx := wrapStart(x, l.xOffset, l.width)
	sz := wrapStart(z, l.zOffset, l.height)
	for zi := 0; zi < sizeZ; zi++ {
		src := l.biomes[sz*l.width : (sz+1)*l.width]
		row := out[zi*sizeX : (zi+1)*sizeX]
		for start := bx; len(row) > 0; start = 0 {
			n := copy(row, src[start:])
			row = row[n:]
		}
		if sz++; sz == l.height {
			sz = 0
		}
	}
}

func (l *Layer) queryMirror(out []layer.BiomeID, x, z, sizeX, sizeZ int) {
	w2, h2 := 2*l.width, 2*l.height
	bq := wrapStart(x, l.xOffset, w2)
	zq := wrapStart(z, l.zOffset, h2)
	for zi := 0; zi < sizeZ; zi++ {
		sz := mathx.Fold(zq, l.height)
		src := l.biomes[sz*l.width : (sz+1)*l.width]
		row := out[zi*sizeX : (zi+1)*sizeX]
		q := bq
		for xi := range row {
			row[xi] = src[mathx.Fold(q, l.width)]
			if q++; q == w2 {
				q = 0
			}
		}
		if zq++; zq == h2 {
			zq = 0
		}
	}
}

// queryBounded copies the in-image part of the rectangle. Out-of-image cells
// get fill, or keep their current value when keepOutside is set.
func (l *Layer) queryBounded(out []layer.BiomeID, x, z, sizeX, sizeZ int, keepOutside bool) {
	dx := mathx.SubSat(x, l.xOffset)
	dz := mathx.SubSat(z, l.zOffset)
	xlo, xhi := span(dx, l.width, sizeX)
	zlo, zhi := span(dz, l.height, sizeZ)
	for zi := 0; zi < sizeZ; zi++ {
		row := out[zi*sizeX : (zi+1)*sizeX]
		if zi < zlo || zi >= zhi {
			if !keepOutside {
				fillIDs(row, l.fill)
			}
			continue
		}
		if !keepOutside {
			fillIDs(row[:xlo], l.fill)
			fillIDs(row[xhi:], l.fill)
		}
		if xlo < xhi {
			base := (dz + zi) * l.width
			copy(row[xlo:xhi], l.biomes[base+dx+xlo:base+dx+xhi])
		}
	}
}

// span returns the index range [lo, hi) of i in [0, size) with d+i in [0, n).
func span(d, n, size int) (lo, hi int) {
	if d >= n || d <= -size {
		return 0, 0
	}
	if d < 0 {
		lo = -d
	}
	hi = size
	if n-d < size {
		hi = n - d
	}
	return lo, hi
}

func fillIDs(s []layer.BiomeID, v layer.BiomeID) {
	for i := range s {
		s[i] = v
	}
}

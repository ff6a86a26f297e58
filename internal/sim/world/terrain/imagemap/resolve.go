package imagemap

import (
	"fmt"
	"math"
	"sort"

	"biomemap.ai/internal/sim/world/terrain/layer"
)

// UnknownColor records a color that has no palette entry.
type UnknownColor struct {
	Color uint32 `json:"color"`
	Count int    `json:"count"`
	// First occurrence in row-major order.
	X int `json:"x"`
	Y int `json:"y"`
}

func (u UnknownColor) String() string {
	return fmt.Sprintf("%d occurrences of unknown biome color #%s e.g. at (%d,%d)", u.Count, FormatHex(u.Color), u.X, u.Y)
}

// Resolution is the outcome of resolving a pixel grid against a palette.
type Resolution struct {
	Width  int
	Height int
	Biomes []layer.BiomeID

	// Unknown is sorted by ascending Count, then by first occurrence.
	Unknown []UnknownColor
	// Repaired holds the diffusion-corrected colors; nil when every color was known.
	Repaired *PixelGrid

	Passes        int
	RepairedCells int
}

// Resolve maps every pixel of g to a biome id. Colors missing from pal are
// first replaced by the nearest mapped neighbor color, repeatedly, until no
// further replacement is possible; cells that stay unmapped get fill.
func Resolve(g PixelGrid, pal Palette, fill layer.BiomeID) (Resolution, error) {
	if err := g.Validate(); err != nil {
		return Resolution{}, err
	}
	res := Resolution{
		Width:  g.Width,
		Height: g.Height,
		Biomes: make([]layer.BiomeID, len(g.Pix)),
	}

	unknown := map[uint32]*UnknownColor{}
	var pending []int
	for i, c := range g.Pix {
		c &= rgbMask
		if id, ok := pal.Lookup(c); ok {
			res.Biomes[i] = id
			continue
		}
		u := unknown[c]
		if u == nil {
			u = &UnknownColor{Color: c, X: i % g.Width, Y: i / g.Width}
			unknown[c] = u
		}
		u.Count++
		res.Biomes[i] = fill
		pending = append(pending, i)
	}
	if len(unknown) == 0 {
		return res, nil
	}
	res.Unknown = sortUnknown(unknown)

	work := make([]uint32, len(g.Pix))
	for i, c := range g.Pix {
		work[i] = c & rgbMask
	}
	res.Passes, res.RepairedCells = diffuse(work, g.Width, g.Height, pal, append([]int(nil), pending...))

	fixed := g.Clone()
	for _, i := range pending {
		if work[i] != g.Pix[i]&rgbMask {
			fixed.Pix[i] = work[i] | alphaMask
		}
	}
	res.Repaired = &fixed

	for _, i := range pending {
		if id, ok := pal[work[i]]; ok {
			res.Biomes[i] = id
		}
	}
	return res, nil
}

func sortUnknown(m map[uint32]*UnknownColor) []UnknownColor {
	out := make([]UnknownColor, 0, len(m))
	for _, u := range m {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count < out[j].Count
		}
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

type colorFix struct {
	idx   int
	color uint32
}

// diffuse repairs unmapped cells in work. Each pass reads the colors as they
// stood at the start of the pass, so the outcome does not depend on scan
// order. pending lists the unmapped cell indices and is consumed.
func diffuse(work []uint32, w, h int, pal Palette, pending []int) (passes, repaired int) {
	var fixes []colorFix
	for len(pending) > 0 {
		passes++
		fixes = fixes[:0]
		keep := pending[:0]
		for _, i := range pending {
			if c, ok := nearestMapped(work, w, h, pal, i); ok {
				fixes = append(fixes, colorFix{idx: i, color: c})
			} else {
				keep = append(keep, i)
			}
		}
		if len(fixes) == 0 {
			break
		}
		for _, f := range fixes {
			work[f.idx] = f.color
		}
		repaired += len(fixes)
		pending = keep
	}
	return passes, repaired
}

// nearestMapped returns the palette-mapped 8-neighbor color closest to cell i.
// Equal distances go to the lower color value. Neighbors off the grid are
// skipped.
func nearestMapped(work []uint32, w, h int, pal Palette, i int) (uint32, bool) {
	x, y := i%w, i/w
	c := work[i]
	best := math.MaxInt
	var bestColor uint32
	found := false
	for dy := -1; dy <= 1; dy++ {
		ny := y + dy
		if ny < 0 || ny >= h {
			continue
		}
		for dx := -1; dx <= 1; dx++ {
			nx := x + dx
			if (dx == 0 && dy == 0) || nx < 0 || nx >= w {
				continue
			}
			oc := work[ny*w+nx]
			if _, ok := pal[oc]; !ok {
				continue
			}
			d := ColorDistance(c, oc)
			if d < best || (d == best && oc < bestColor) {
				best = d
				bestColor = oc
				found = true
			}
		}
	}
	return bestColor, found
}

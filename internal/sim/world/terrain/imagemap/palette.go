package imagemap

import (
	"fmt"
	"strconv"
	"strings"

	"biomemap.ai/internal/sim/world/terrain/layer"
)

// Palette maps 24-bit RGB colors to biome ids.
type Palette map[uint32]layer.BiomeID

// NewPalette copies m, stripping the alpha byte from every key. Two keys that
// collapse to the same color are rejected.
func NewPalette(m map[uint32]layer.BiomeID) (Palette, error) {
	p := make(Palette, len(m))
	for c, id := range m {
		k := c & rgbMask
		if prev, ok := p[k]; ok && prev != id {
			return nil, fmt.Errorf("palette color #%s mapped twice (%d, %d)", FormatHex(k), prev, id)
		}
		p[k] = id
	}
	return p, nil
}

func (p Palette) Lookup(c uint32) (layer.BiomeID, bool) {
	id, ok := p[c&rgbMask]
	return id, ok
}

// ColorDistance is the sum of squared channel differences of two RGB colors.
func ColorDistance(c1, c2 uint32) int {
	dr := int(c1>>16&0xFF) - int(c2>>16&0xFF)
	dg := int(c1>>8&0xFF) - int(c2>>8&0xFF)
	db := int(c1&0xFF) - int(c2&0xFF)
	return dr*dr + dg*dg + db*db
}

func FormatHex(c uint32) string {
	return fmt.Sprintf("%06x", c&rgbMask)
}

// ParseHex accepts "#rrggbb", "rrggbb" or "0xrrggbb".
func ParseHex(s string) (uint32, error) {
	t := strings.TrimSpace(s)
	t = strings.TrimPrefix(t, "#")
	t = strings.TrimPrefix(strings.TrimPrefix(t, "0x"), "0X")
	if len(t) != 6 {
		return 0, fmt.Errorf("bad color %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(t, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("bad color %q: %w", s, err)
	}
	return uint32(v), nil
}

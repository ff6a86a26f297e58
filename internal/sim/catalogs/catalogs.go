package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/muesli/gamut"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"biomemap.ai/internal/sim/world/terrain/imagemap"
	"biomemap.ai/internal/sim/world/terrain/layer"
)

type Catalogs struct {
	Biomes BiomeCatalog
}

type BiomeCatalog struct {
	// Names is indexed by biome id.
	Names   []string
	Index   map[string]layer.BiomeID
	Defs    map[string]BiomeDef
	Palette imagemap.Palette
	// Preview is the render color per biome id (0xRRGGBB).
	Preview []uint32

	PaletteDigest string
	DefsDigest    string
}

type BiomeDef struct {
	Name      string   `json:"name"`
	// NumericID pins the biome id. Either every biome sets it or none does.
	NumericID *int     `json:"numeric_id,omitempty"`
	Colors    []string `json:"colors"`
	Preview   string   `json:"preview_color,omitempty"`
}

const biomesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["name", "colors"],
    "additionalProperties": false,
    "properties": {
      "name": {"type": "string", "minLength": 1},
      "numeric_id": {"type": "integer", "minimum": 0, "maximum": 65535},
      "colors": {
        "type": "array",
        "items": {"type": "string", "pattern": "^(#|0x)?[0-9a-fA-F]{6}$"}
      },
      "preview_color": {"type": "string", "pattern": "^(#|0x)?[0-9a-fA-F]{6}$"}
    }
  }
}`

var biomesValidator = jsonschema.MustCompileString("biomes.schema.json", biomesSchema)

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadBiomes(filepath.Join(configDir, "biomes.json"), &c.Biomes); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBiomes(path string, out *BiomeCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := ParseBiomes(raw, out); err != nil {
		return fmt.Errorf("biomes.json: %w", err)
	}
	return nil
}

// ParseBiomes validates raw against the biome schema and fills out.
func ParseBiomes(raw []byte, out *BiomeCatalog) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if err := biomesValidator.Validate(doc); err != nil {
		return err
	}
	var defs []BiomeDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	out.Defs = make(map[string]BiomeDef, len(defs))
	pinned := 0
	for _, d := range defs {
		d.Name = strings.TrimSpace(d.Name)
		if d.Name == "" {
			return fmt.Errorf("empty name")
		}
		if _, dup := out.Defs[d.Name]; dup {
			return fmt.Errorf("duplicate biome %q", d.Name)
		}
		if d.NumericID != nil {
			pinned++
		}
		out.Defs[d.Name] = d
	}
	if pinned != 0 && pinned != len(defs) {
		return fmt.Errorf("numeric_id must be set on all biomes or none")
	}

	names := make([]string, 0, len(out.Defs))
	for n := range out.Defs {
		names = append(names, n)
	}
	sort.Strings(names)

	out.Index = make(map[string]layer.BiomeID, len(names))
	maxID := len(names) - 1
	if pinned > 0 {
		byID := map[int]string{}
		for _, n := range names {
			id := *out.Defs[n].NumericID
			if other, ok := byID[id]; ok {
				return fmt.Errorf("biomes %q and %q share numeric_id %d", other, n, id)
			}
			byID[id] = n
			out.Index[n] = layer.BiomeID(id)
			if id > maxID {
				maxID = id
			}
		}
	} else {
		for i, n := range names {
			out.Index[n] = layer.BiomeID(i)
		}
	}
	out.Names = make([]string, maxID+1)
	for n, id := range out.Index {
		out.Names[id] = n
	}

	colors := map[uint32]layer.BiomeID{}
	for _, n := range names {
		for _, s := range out.Defs[n].Colors {
			c, err := imagemap.ParseHex(s)
			if err != nil {
				return fmt.Errorf("biome %q: %w", n, err)
			}
			if prev, ok := colors[c]; ok && prev != out.Index[n] {
				return fmt.Errorf("color #%s used by %q and %q", imagemap.FormatHex(c), out.Names[prev], n)
			}
			colors[c] = out.Index[n]
		}
	}
	pal, err := imagemap.NewPalette(colors)
	if err != nil {
		return err
	}
	out.Palette = pal
	palJSON, _ := json.Marshal(paletteEntries(pal))
	out.PaletteDigest = sha256Hex(palJSON)

	return out.fillPreview(names)
}

// fillPreview uses preview_color, else the first palette color, else a
// generated pastel.
func (b *BiomeCatalog) fillPreview(names []string) error {
	b.Preview = make([]uint32, len(b.Names))
	var missing []string
	for _, n := range names {
		d := b.Defs[n]
		id := b.Index[n]
		switch {
		case d.Preview != "":
			c, err := imagemap.ParseHex(d.Preview)
			if err != nil {
				return fmt.Errorf("biome %q preview: %w", n, err)
			}
			b.Preview[id] = c
		case len(d.Colors) > 0:
			c, _ := imagemap.ParseHex(d.Colors[0])
			b.Preview[id] = c
		default:
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	gen, err := gamut.Generate(len(missing), gamut.PastelGenerator{})
	if err != nil {
		return fmt.Errorf("generate preview colors: %w", err)
	}
	for i, n := range missing {
		b.Preview[b.Index[n]] = packRGB(gen[i])
	}
	return nil
}

func packRGB(c color.Color) uint32 {
	r, g, bl, _ := c.RGBA()
	return (r>>8)<<16 | (g>>8)<<8 | bl>>8
}

type paletteEntry struct {
	Color string        `json:"color"`
	Biome layer.BiomeID `json:"biome"`
}

func paletteEntries(p imagemap.Palette) []paletteEntry {
	out := make([]paletteEntry, 0, len(p))
	for c, id := range p {
		out = append(out, paletteEntry{Color: imagemap.FormatHex(c), Biome: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Color < out[j].Color })
	return out
}

// ID resolves a biome name.
func (b *BiomeCatalog) ID(name string) (layer.BiomeID, bool) {
	id, ok := b.Index[name]
	return id, ok
}

// Name returns the biome name for id, or "" for an unregistered id.
func (b *BiomeCatalog) Name(id layer.BiomeID) string {
	if int(id) >= len(b.Names) {
		return ""
	}
	return b.Names[id]
}

func (b *BiomeCatalog) IDs(names []string) ([]layer.BiomeID, error) {
	out := make([]layer.BiomeID, 0, len(names))
	for _, n := range names {
		id, ok := b.Index[n]
		if !ok {
			return nil, fmt.Errorf("unknown biome %q", n)
		}
		out = append(out, id)
	}
	return out, nil
}

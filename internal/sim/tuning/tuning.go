package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"biomemap.ai/internal/sim/world/terrain/imagemap"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	ImageLayer    ImageLayer    `yaml:"image_layer"`
	FallbackLayer FallbackLayer `yaml:"fallback_layer"`
	ChunkCache    ChunkCache    `yaml:"chunk_cache"`
	Query         Query         `yaml:"query"`
}

// ImageLayer configures the image-backed biome layer. Biomes are referenced
// by catalog name.
type ImageLayer struct {
	ImageFile        string `yaml:"image_file"`
	ImageMode        string `yaml:"image_mode"`
	ImageOrientation string `yaml:"image_orientation"`
	ImageXOffset     int    `yaml:"image_x_offset"`
	ImageZOffset     int    `yaml:"image_z_offset"`
	ImageFillBiome   string `yaml:"image_fill_biome"`
	WriteFixedImage  bool   `yaml:"write_fixed_image"`
}

type FallbackLayer struct {
	Enabled    bool     `yaml:"enabled"`
	Seed       int64    `yaml:"seed"`
	RegionSize int      `yaml:"region_size"`
	Biomes     []string `yaml:"biomes"`
}

type ChunkCache struct {
	MaxChunks int `yaml:"max_chunks"`
}

type Query struct {
	MaxCells int `yaml:"max_cells"`
}

const (
	DefaultRegionSize = 64
	DefaultMaxChunks  = 4096
	DefaultMaxCells   = 1 << 20
)

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		ImageLayer: ImageLayer{
			ImageMode:        imagemap.Repeat.String(),
			ImageOrientation: imagemap.North.String(),
			WriteFixedImage:  true,
		},
		FallbackLayer: FallbackLayer{RegionSize: DefaultRegionSize},
		ChunkCache:    ChunkCache{MaxChunks: DefaultMaxChunks},
		Query:         Query{MaxCells: DefaultMaxCells},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	il := &t.ImageLayer
	il.ImageFile = strings.TrimSpace(il.ImageFile)
	il.ImageFillBiome = strings.TrimSpace(il.ImageFillBiome)
	if strings.TrimSpace(il.ImageMode) == "" {
		il.ImageMode = imagemap.Repeat.String()
	}
	if strings.TrimSpace(il.ImageOrientation) == "" {
		il.ImageOrientation = imagemap.North.String()
	}
	if t.FallbackLayer.RegionSize <= 0 {
		t.FallbackLayer.RegionSize = DefaultRegionSize
	}
	for i := range t.FallbackLayer.Biomes {
		t.FallbackLayer.Biomes[i] = strings.TrimSpace(t.FallbackLayer.Biomes[i])
	}
	if t.ChunkCache.MaxChunks <= 0 {
		t.ChunkCache.MaxChunks = DefaultMaxChunks
	}
	if t.Query.MaxCells <= 0 {
		t.Query.MaxCells = DefaultMaxCells
	}
}

func (t Tuning) Validate() error {
	il := t.ImageLayer
	if il.ImageFile == "" {
		return fmt.Errorf("image_layer.image_file is required")
	}
	if _, err := imagemap.ParseMode(il.ImageMode); err != nil {
		return fmt.Errorf("image_layer.image_mode: %w", err)
	}
	if _, err := imagemap.ParseOrientation(il.ImageOrientation); err != nil {
		return fmt.Errorf("image_layer.image_orientation: %w", err)
	}
	if il.ImageFillBiome == "" {
		return fmt.Errorf("image_layer.image_fill_biome is required")
	}
	if t.FallbackLayer.Enabled {
		if len(t.FallbackLayer.Biomes) == 0 {
			return fmt.Errorf("fallback_layer.biomes must not be empty when enabled")
		}
		for i, b := range t.FallbackLayer.Biomes {
			if b == "" {
				return fmt.Errorf("fallback_layer.biomes[%d] is empty", i)
			}
		}
	}
	return nil
}

// Mode and Orientation return the parsed enums; call Validate first.
func (il ImageLayer) Mode() imagemap.Mode {
	m, _ := imagemap.ParseMode(il.ImageMode)
	return m
}

func (il ImageLayer) Orientation() imagemap.Orientation {
	o, _ := imagemap.ParseOrientation(il.ImageOrientation)
	return o
}

// Digest is the sha256 of the JSON form of t, published to clients so they
// can tell when the served layer parameters change.
func (t Tuning) Digest() string {
	b, _ := json.Marshal(t)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

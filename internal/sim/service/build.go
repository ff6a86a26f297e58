package service

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"biomemap.ai/internal/persistence/imageio"
	"biomemap.ai/internal/persistence/snapshot"
	"biomemap.ai/internal/sim/catalogs"
	"biomemap.ai/internal/sim/tuning"
	"biomemap.ai/internal/sim/world/terrain/gen"
	"biomemap.ai/internal/sim/world/terrain/imagemap"
)

type BuildOptions struct {
	ConfigDir string
	// DataDir holds the snapshot cache; empty disables it.
	DataDir  string
	Tuning   tuning.Tuning
	Catalogs *catalogs.Catalogs
	Sink     imagemap.Sink
	Logger   *log.Logger
}

type BuildResult struct {
	Layer         *imagemap.Layer
	Report        imagemap.BuildReport
	ImagePath     string
	ImageDigest   string
	PaletteDigest string
	SnapshotKey   string
	SnapshotPath  string
	FromSnapshot  bool
}

// ImagePath resolves image_file against the config directory.
func ImagePath(configDir, imageFile string) string {
	if filepath.IsAbs(imageFile) || configDir == "" {
		return imageFile
	}
	return filepath.Join(configDir, imageFile)
}

// FixedImagePath is where the repaired image for path is written.
func FixedImagePath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".fixed.png"
}

// LayerConfig maps tuning onto the engine config, wiring the fallback region
// layer as the downstream for ContinueNormal.
func LayerConfig(t tuning.Tuning, cats *catalogs.Catalogs) (imagemap.LayerConfig, error) {
	il := t.ImageLayer
	fill, ok := cats.Biomes.ID(il.ImageFillBiome)
	if !ok {
		return imagemap.LayerConfig{}, fmt.Errorf("image_fill_biome: unknown biome %q", il.ImageFillBiome)
	}
	cfg := imagemap.LayerConfig{
		Mode:    il.Mode(),
		XOffset: il.ImageXOffset,
		ZOffset: il.ImageZOffset,
		Fill:    fill,
	}
	if cfg.Mode == imagemap.ContinueNormal && t.FallbackLayer.Enabled {
		ids, err := cats.Biomes.IDs(t.FallbackLayer.Biomes)
		if err != nil {
			return cfg, fmt.Errorf("fallback_layer: %w", err)
		}
		cfg.Child = gen.NewRegionLayer(t.FallbackLayer.Seed, t.FallbackLayer.RegionSize, ids)
	}
	return cfg, nil
}

// BuildLayer produces the image layer, reusing a cached snapshot when the
// image, palette, orientation and fill all match.
func BuildLayer(opts BuildOptions) (BuildResult, error) {
	il := opts.Tuning.ImageLayer
	res := BuildResult{
		ImagePath:     ImagePath(opts.ConfigDir, il.ImageFile),
		PaletteDigest: opts.Catalogs.Biomes.PaletteDigest,
	}
	lcfg, err := LayerConfig(opts.Tuning, opts.Catalogs)
	if err != nil {
		return res, err
	}
	orient := il.Orientation()

	if digest, err := snapshot.FileDigest(res.ImagePath); err == nil {
		res.ImageDigest = digest
		res.SnapshotKey = snapshot.Key(digest, res.PaletteDigest, orient.String(), uint16(lcfg.Fill))
		if opts.DataDir != "" {
			res.SnapshotPath = snapshot.Path(opts.DataDir, res.SnapshotKey)
		}
	}

	if res.SnapshotPath != "" {
		l, rep, err := loadSnapshot(res.SnapshotPath, res.SnapshotKey, lcfg)
		switch {
		case err == nil:
			rep.ImagePath = res.ImagePath
			res.Layer, res.Report, res.FromSnapshot = l, rep, true
			if len(rep.Unknown) > 0 && opts.Sink != nil {
				opts.Sink.UnknownColors(res.ImagePath, rep.Unknown)
			}
			return res, nil
		case !errors.Is(err, os.ErrNotExist) && opts.Logger != nil:
			opts.Logger.Printf("snapshot %s unusable, rebuilding: %v", res.SnapshotPath, err)
		}
	}

	bcfg := imagemap.BuildConfig{
		ImagePath:   res.ImagePath,
		Orientation: orient,
		Palette:     opts.Catalogs.Biomes.Palette,
		Layer:       lcfg,
	}
	if il.WriteFixedImage {
		bcfg.FixedImagePath = FixedImagePath(res.ImagePath)
	}
	l, rep, err := imagemap.Build(bcfg, imageio.Decoder, imageio.Encoder, opts.Sink)
	if err != nil {
		return res, err
	}
	res.Layer, res.Report = l, rep

	if res.SnapshotPath != "" {
		if err := snapshot.WriteGrid(res.SnapshotPath, toSnapshot(res, il)); err != nil && opts.Logger != nil {
			opts.Logger.Printf("snapshot write: %v", err)
		}
	}
	return res, nil
}

func loadSnapshot(path, key string, lcfg imagemap.LayerConfig) (*imagemap.Layer, imagemap.BuildReport, error) {
	var rep imagemap.BuildReport
	start := time.Now()
	snap, err := snapshot.ReadGrid(path)
	if err != nil {
		return nil, rep, err
	}
	if snap.Header.Key != key {
		return nil, rep, fmt.Errorf("key mismatch: %s", snap.Header.Key)
	}
	ids, err := snap.Biomes()
	if err != nil {
		return nil, rep, err
	}
	l, err := imagemap.NewLayer(snap.Header.Width, snap.Header.Height, ids, lcfg)
	if err != nil {
		return nil, rep, err
	}
	orient, _ := imagemap.ParseOrientation(snap.Header.Orientation)
	rep = imagemap.BuildReport{
		Width:         snap.Header.Width,
		Height:        snap.Header.Height,
		Orientation:   orient,
		Passes:        snap.Passes,
		RepairedCells: snap.RepairedCells,
		Elapsed:       time.Since(start),
	}
	for _, u := range snap.Unknown {
		rep.Unknown = append(rep.Unknown, imagemap.UnknownColor{Color: u.Color, Count: u.Count, X: u.X, Y: u.Y})
	}
	return l, rep, nil
}

func toSnapshot(res BuildResult, il tuning.ImageLayer) snapshot.GridV1 {
	info := res.Layer.Info()
	g := snapshot.GridV1{
		Header: snapshot.Header{
			Key:           res.SnapshotKey,
			ImageDigest:   res.ImageDigest,
			PaletteDigest: res.PaletteDigest,
			Orientation:   res.Report.Orientation.String(),
			Fill:          uint16(info.Fill),
			Width:         info.Width,
			Height:        info.Height,
			CreatedUnixMs: time.Now().UnixMilli(),
		},
		ImagePath:     res.ImagePath,
		Mode:          info.Mode,
		XOffset:       il.ImageXOffset,
		ZOffset:       il.ImageZOffset,
		Passes:        res.Report.Passes,
		RepairedCells: res.Report.RepairedCells,
	}
	for _, u := range res.Report.Unknown {
		g.Unknown = append(g.Unknown, snapshot.UnknownColorV1{Color: u.Color, Count: u.Count, X: u.X, Y: u.Y})
	}
	g.SetBiomes(res.Layer.Grid())
	return g
}

package imagemap

import (
	"fmt"
	"time"
)

// Decoder loads a pixel grid from an image file.
type Decoder interface {
	Decode(path string) (PixelGrid, error)
}

// Encoder persists a pixel grid as an image file.
type Encoder interface {
	Encode(path string, g PixelGrid) error
}

type DecoderFunc func(path string) (PixelGrid, error)

func (f DecoderFunc) Decode(path string) (PixelGrid, error) { return f(path) }

type EncoderFunc func(path string, g PixelGrid) error

func (f EncoderFunc) Encode(path string, g PixelGrid) error { return f(path, g) }

// DecodeError means the source image could not be loaded. No layer exists.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode image %s: %v", e.Path, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError means the repaired image could not be written. It never
// aborts a build.
type EncodeError struct {
	Path string
	Err  error
}

func (e *EncodeError) Error() string { return fmt.Sprintf("encode image %s: %v", e.Path, e.Err) }
func (e *EncodeError) Unwrap() error { return e.Err }

type BuildConfig struct {
	ImagePath   string
	Orientation Orientation
	Palette     Palette
	Layer       LayerConfig
	// FixedImagePath receives the repaired image when unknown colors were
	// found. Empty disables the write.
	FixedImagePath string
}

// BuildReport summarizes a completed build.
type BuildReport struct {
	ImagePath     string
	Width         int
	Height        int
	Orientation   Orientation
	Unknown       []UnknownColor
	Passes        int
	RepairedCells int
	FixedImage    string
	EncodeErr     error
	Elapsed       time.Duration
}

// Build decodes cfg.ImagePath and builds a layer from it. A decode failure is
// reported to sink and returned as *DecodeError.
func Build(cfg BuildConfig, dec Decoder, enc Encoder, sink Sink) (*Layer, BuildReport, error) {
	if sink == nil {
		sink = nopSink{}
	}
	g, err := dec.Decode(cfg.ImagePath)
	if err == nil {
		err = g.Validate()
	}
	if err != nil {
		sink.DecodeFailed(cfg.ImagePath, err)
		return nil, BuildReport{ImagePath: cfg.ImagePath}, &DecodeError{Path: cfg.ImagePath, Err: err}
	}
	return BuildFromGrid(g, cfg, enc, sink)
}

// BuildFromGrid orients and resolves an already decoded grid.
func BuildFromGrid(g PixelGrid, cfg BuildConfig, enc Encoder, sink Sink) (*Layer, BuildReport, error) {
	if sink == nil {
		sink = nopSink{}
	}
	start := time.Now()
	g = Orient(g, cfg.Orientation)

	res, err := Resolve(g, cfg.Palette, cfg.Layer.Fill)
	if err != nil {
		return nil, BuildReport{ImagePath: cfg.ImagePath}, err
	}
	rep := BuildReport{
		ImagePath:     cfg.ImagePath,
		Width:         res.Width,
		Height:        res.Height,
		Orientation:   cfg.Orientation,
		Unknown:       res.Unknown,
		Passes:        res.Passes,
		RepairedCells: res.RepairedCells,
	}
	if len(res.Unknown) > 0 {
		sink.UnknownColors(cfg.ImagePath, res.Unknown)
	}
	if res.Repaired != nil && enc != nil && cfg.FixedImagePath != "" {
		if err := enc.Encode(cfg.FixedImagePath, *res.Repaired); err != nil {
			rep.EncodeErr = &EncodeError{Path: cfg.FixedImagePath, Err: err}
			sink.EncodeFailed(cfg.FixedImagePath, err)
		} else {
			rep.FixedImage = cfg.FixedImagePath
		}
	}

	l, err := NewLayer(res.Width, res.Height, res.Biomes, cfg.Layer)
	if err != nil {
		return nil, rep, err
	}
	rep.Elapsed = time.Since(start)
	return l, rep, nil
}

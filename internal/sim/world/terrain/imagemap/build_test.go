package imagemap

import (
	"errors"
	"testing"

	"biomemap.ai/internal/sim/world/terrain/layer"
)

type recordingSink struct {
	unknown    []UnknownColor
	decodeErrs int
	encodeErrs int
}

func (r *recordingSink) UnknownColors(_ string, rep []UnknownColor) { r.unknown = append(r.unknown, rep...) }
func (r *recordingSink) DecodeFailed(string, error)                 { r.decodeErrs++ }
func (r *recordingSink) EncodeFailed(string, error)                 { r.encodeErrs++ }

func TestBuild_DecodeFailureIsFatal(t *testing.T) {
	sink := &recordingSink{}
	boom := errors.New("corrupt")
	dec := DecoderFunc(func(string) (PixelGrid, error) { return PixelGrid{}, boom })
	l, _, err := Build(BuildConfig{ImagePath: "map.png"}, dec, nil, sink)
	if l != nil {
		t.Fatalf("expected no layer on decode failure")
	}
	var de *DecodeError
	if !errors.As(err, &de) || !errors.Is(err, boom) {
		t.Fatalf("err=%v want DecodeError wrapping cause", err)
	}
	if sink.decodeErrs != 1 {
		t.Fatalf("decode notifications=%d want 1", sink.decodeErrs)
	}
}

func TestBuild_EncodeFailureIsNotFatal(t *testing.T) {
	sink := &recordingSink{}
	pal := testPalette(t)
	dec := DecoderFunc(func(string) (PixelGrid, error) {
		return grid(2, 1, colA, colMiss), nil
	})
	enc := EncoderFunc(func(string, PixelGrid) error { return errors.New("disk full") })
	l, rep, err := Build(BuildConfig{
		ImagePath:      "map.png",
		Palette:        pal,
		Layer:          LayerConfig{Mode: FillEmpty, Fill: fillID},
		FixedImagePath: "map.png.fixed.png",
	}, dec, enc, sink)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if l == nil {
		t.Fatalf("expected layer despite encode failure")
	}
	var ee *EncodeError
	if !errors.As(rep.EncodeErr, &ee) {
		t.Fatalf("EncodeErr=%v want *EncodeError", rep.EncodeErr)
	}
	if sink.encodeErrs != 1 || len(sink.unknown) != 1 {
		t.Fatalf("sink: encode=%d unknown=%d", sink.encodeErrs, len(sink.unknown))
	}
	if got := l.At(1, 0); got != idA {
		t.Fatalf("repaired cell=%d want %d", got, idA)
	}
}

func TestBuild_WritesRepairedImageOnlyWhenNeeded(t *testing.T) {
	pal := testPalette(t)
	var written []PixelGrid
	enc := EncoderFunc(func(_ string, g PixelGrid) error {
		written = append(written, g)
		return nil
	})
	cfg := BuildConfig{Palette: pal, Layer: LayerConfig{Fill: fillID}, FixedImagePath: "fixed.png"}

	if _, rep, err := BuildFromGrid(grid(2, 1, colA, colB), cfg, enc, nil); err != nil || rep.FixedImage != "" {
		t.Fatalf("clean grid: err=%v fixed=%q", err, rep.FixedImage)
	}
	if len(written) != 0 {
		t.Fatalf("clean grid should not write a repaired image")
	}

	_, rep, err := BuildFromGrid(grid(2, 1, colB, colMiss), cfg, enc, nil)
	if err != nil {
		t.Fatalf("BuildFromGrid: %v", err)
	}
	if rep.FixedImage != "fixed.png" || len(written) != 1 {
		t.Fatalf("fixed=%q writes=%d", rep.FixedImage, len(written))
	}
	if written[0].Pix[1] != opaque|colB {
		t.Fatalf("repaired pixel=%#x", written[0].Pix[1])
	}
}

func TestBuildFromGrid_AppliesOrientation(t *testing.T) {
	pal, err := NewPalette(map[uint32]layer.BiomeID{1: 1, 2: 2, 3: 3, 4: 4, 5: 5, 6: 6})
	if err != nil {
		t.Fatalf("NewPalette: %v", err)
	}
	l, rep, err := BuildFromGrid(orientSample(), BuildConfig{
		Orientation: West,
		Palette:     pal,
		Layer:       LayerConfig{Mode: FillEmpty},
	}, nil, nil)
	if err != nil {
		t.Fatalf("BuildFromGrid: %v", err)
	}
	if rep.Width != 2 || rep.Height != 3 {
		t.Fatalf("dims=%dx%d want 2x3", rep.Width, rep.Height)
	}
	got := l.Query(nil, 0, 0, 2, 3)
	want := []layer.BiomeID{4, 1, 5, 2, 6, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

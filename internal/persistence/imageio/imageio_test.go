package imageio

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"

	"biomemap.ai/internal/sim/world/terrain/imagemap"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	g := imagemap.PixelGrid{Width: 3, Height: 2, Pix: []uint32{
		0xFF7fb238, 0xFF000000, 0xFFffffff,
		0xFF102030, 0xFF0a0b0c, 0xFFabcdef,
	}}
	path := filepath.Join(t.TempDir(), "out", "map.png")
	if err := EncodePNG(path, g); err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	got, err := Decode(path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Width != 3 || got.Height != 2 {
		t.Fatalf("dims=%dx%d want 3x2", got.Width, got.Height)
	}
	for i := range g.Pix {
		if got.Pix[i] != g.Pix[i] {
			t.Fatalf("pixel %d: got %#x want %#x", i, got.Pix[i], g.Pix[i])
		}
	}
}

func TestDecodeBMP(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 0x11, G: 0x22, B: 0x33, A: 0xFF})
	img.Set(1, 1, color.RGBA{R: 0xAA, G: 0xBB, B: 0xCC, A: 0xFF})
	path := filepath.Join(t.TempDir(), "map.bmp")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := bmp.Encode(f, img); err != nil {
		t.Fatalf("bmp.Encode: %v", err)
	}
	_ = f.Close()

	g, err := Decode(path)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if c := g.Pix[0] & 0xFFFFFF; c != 0x112233 {
		t.Fatalf("(0,0)=%06x want 112233", c)
	}
	if c := g.Pix[1*g.Width+1] & 0xFFFFFF; c != 0xaabbcc {
		t.Fatalf("(1,1)=%06x want aabbcc", c)
	}
}

func TestDecodeFailures(t *testing.T) {
	dir := t.TempDir()
	if _, err := Decode(filepath.Join(dir, "missing.png")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file: err=%v", err)
	}
	bad := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Decode(bad); err == nil {
		t.Fatalf("expected decode error for garbage")
	}
}

func TestFromImageHandlesOffsetBounds(t *testing.T) {
	img := image.NewNRGBA(image.Rect(5, 5, 7, 6))
	img.Set(6, 5, color.NRGBA{R: 1, G: 2, B: 3, A: 4})
	g := FromImage(img)
	if g.Width != 2 || g.Height != 1 {
		t.Fatalf("dims=%dx%d", g.Width, g.Height)
	}
	if g.Pix[1] != 0x04010203 {
		t.Fatalf("pix=%#x want 0x04010203", g.Pix[1])
	}
}

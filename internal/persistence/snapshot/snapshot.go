package snapshot

import (
	"bufio"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"biomemap.ai/internal/sim/encoding"
	"biomemap.ai/internal/sim/world/terrain/layer"
)

const Version = 1

var ErrVersion = errors.New("snapshot: unsupported version")

// Header is written as a JSON line ahead of the gob body so tools can inspect
// a snapshot without decoding the grid.
type Header struct {
	Version       int    `json:"version"`
	Key           string `json:"key"`
	ImageDigest   string `json:"image_digest"`
	PaletteDigest string `json:"palette_digest"`
	Orientation   string `json:"orientation"`
	Fill          uint16 `json:"fill"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	CreatedUnixMs int64  `json:"created_unix_ms"`
}

type GridV1 struct {
	Header Header `json:"header"`

	ImagePath string `json:"image_path"`
	// Mode and offsets are informational; they do not affect the resolved grid.
	Mode    string `json:"mode"`
	XOffset int    `json:"x_offset"`
	ZOffset int    `json:"z_offset"`

	// BiomesRLE holds uvarint (biome_id, run_len) pairs, row-major.
	BiomesRLE []byte `json:"biomes_rle"`

	Unknown       []UnknownColorV1 `json:"unknown,omitempty"`
	Passes        int              `json:"passes"`
	RepairedCells int              `json:"repaired_cells"`
}

type UnknownColorV1 struct {
	Color uint32 `json:"color"`
	Count int    `json:"count"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
}

// Key identifies a resolved grid by everything resolution depends on.
func Key(imageDigest, paletteDigest, orientation string, fill uint16) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n%s\n%d", imageDigest, paletteDigest, orientation, fill)
	return hex.EncodeToString(h.Sum(nil))
}

// Path returns the snapshot file for key under dataDir.
func Path(dataDir, key string) string {
	return filepath.Join(dataDir, "snapshots", key+".grid.zst")
}

// FileDigest is the sha256 hex of the file at path.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (g *GridV1) SetBiomes(ids []layer.BiomeID) {
	g.BiomesRLE = encoding.AppendRLE(g.BiomesRLE[:0], ids)
}

// Biomes expands the grid, checking it against the header dimensions.
func (g *GridV1) Biomes() ([]layer.BiomeID, error) {
	n := g.Header.Width * g.Header.Height
	if g.Header.Width <= 0 || g.Header.Height <= 0 {
		return nil, fmt.Errorf("snapshot: bad dimensions %dx%d", g.Header.Width, g.Header.Height)
	}
	ids, err := encoding.DecodeRLEBytes(g.BiomesRLE, n)
	if err != nil {
		return nil, fmt.Errorf("snapshot biomes: %w", err)
	}
	if len(ids) != n {
		return nil, fmt.Errorf("snapshot biomes: got %d cells want %d", len(ids), n)
	}
	return ids, nil
}

// WriteGrid writes to a temp file and renames it into place.
func WriteGrid(path string, snap GridV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	snap.Header.Version = Version
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := writeGrid(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeGrid(w io.Writer, snap GridV1) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

func ReadGrid(path string) (GridV1, error) {
	var snap GridV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	if _, err := readHeader(br); err != nil {
		return snap, err
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("%w: %d", ErrVersion, snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return Header{}, err
	}
	defer dec.Close()
	return readHeader(bufio.NewReader(dec))
}

func readHeader(br *bufio.Reader) (Header, error) {
	var h Header
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	if h.Version != Version {
		return h, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	return h, nil
}

package log

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"biomemap.ai/internal/sim/world/terrain/imagemap"
)

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "diag")
	now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }
	var closed []string
	w.OnClose = func(p string) { closed = append(closed, filepath.Base(p)) }

	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatalf("write 1: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"n": 2}); err != nil {
		t.Fatalf("write 2: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(closed) != 2 || closed[0] != "diag-2026-03-01-10.jsonl.zst" || closed[1] != "diag-2026-03-01-11.jsonl.zst" {
		t.Fatalf("closed segments=%v", closed)
	}

	for _, hour := range []string{"2026-03-01-10", "2026-03-01-11"} {
		p := filepath.Join(dir, "diag-"+hour+".jsonl.zst")
		lines := 0
		if err := ReadJSONL(p, func([]byte) error { lines++; return nil }); err != nil {
			t.Fatalf("read %s: %v", hour, err)
		}
		if lines != 1 {
			t.Fatalf("%s: lines=%d want 1", hour, lines)
		}
	}
}

func TestDiagnosticsLogger_RecordsSinkEvents(t *testing.T) {
	dir := t.TempDir()
	l := NewDiagnosticsLogger(dir)
	l.w.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	l.UnknownColors("map.png", []imagemap.UnknownColor{{Color: 0xabcdef, Count: 3, X: 1, Y: 2}})
	l.DecodeFailed("bad.png", errors.New("truncated"))
	l.EncodeFailed("map.fixed.png", errors.New("read-only"))
	if err := l.WriteBuild("map.png", BuildEntry{Width: 4, Height: 4, Passes: 1}); err != nil {
		t.Fatalf("WriteBuild: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var kinds []string
	var first DiagnosticEntry
	p := filepath.Join(dir, "diagnostics", "diagnostics-2026-03-01-10.jsonl.zst")
	err := ReadJSONL(p, func(line []byte) error {
		var e DiagnosticEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		if len(kinds) == 0 {
			first = e
		}
		kinds = append(kinds, e.Kind)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	want := []string{"UNKNOWN_COLORS", "DECODE_FAILED", "ENCODE_FAILED", "BUILD"}
	if len(kinds) != len(want) {
		t.Fatalf("kinds=%v want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds=%v want %v", kinds, want)
		}
	}
	if len(first.Unknown) != 1 || first.Unknown[0].Color != 0xabcdef || first.Path != "map.png" {
		t.Fatalf("unknown entry=%+v", first)
	}
}

func TestReadJSONL_Missing(t *testing.T) {
	err := ReadJSONL(filepath.Join(t.TempDir(), "nope.jsonl.zst"), func([]byte) error { return nil })
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v", err)
	}
}

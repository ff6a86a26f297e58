package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"biomemap.ai/internal/sim/catalogs"
	"biomemap.ai/internal/sim/tuning"
	"biomemap.ai/internal/sim/world/terrain/imagemap"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqBuild}

	s.RecordBuild(BuildRow{ImagePath: "a.png"})
	s.UnknownColors("a.png", []imagemap.UnknownColor{{Color: 1, Count: 1}})
	s.DecodeFailed("a.png", errors.New("x"))
	s.EncodeFailed("a.fixed.png", errors.New("y"))

	st := s.Stats()
	if st.DropBuildTotal != 1 {
		t.Fatalf("DropBuildTotal=%d want=1", st.DropBuildTotal)
	}
	if st.DropUnknownTotal != 1 {
		t.Fatalf("DropUnknownTotal=%d want=1", st.DropUnknownTotal)
	}
	if st.DropFailureTotal != 2 {
		t.Fatalf("DropFailureTotal=%d want=2", st.DropFailureTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_RecordsBuildsAndDiagnostics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.UnknownColors("map.png", []imagemap.UnknownColor{
		{Color: 0x111111, Count: 1, X: 4, Y: 0},
		{Color: 0x222222, Count: 5, X: 0, Y: 1},
	})
	idx.DecodeFailed("broken.png", errors.New("unexpected EOF"))
	idx.RecordBuild(BuildRow{
		ImagePath: "map.png", ImageDigest: "img", PaletteDigest: "pal", SnapshotKey: "k",
		Width: 8, Height: 4, Orientation: "North", Mode: "Repeat",
		UnknownColors: 2, Passes: 3, RepairedCells: 6, FixedImage: "map.fixed.png",
	})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Enqueue after close is a no-op.
	idx.RecordBuild(BuildRow{ImagePath: "late.png"})

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	builds, err := r.Builds(ctx, 10)
	if err != nil {
		t.Fatalf("Builds: %v", err)
	}
	if len(builds) != 1 {
		t.Fatalf("builds=%d want 1", len(builds))
	}
	b := builds[0]
	if b.ImagePath != "map.png" || b.Width != 8 || b.RepairedCells != 6 || b.FixedImage != "map.fixed.png" || b.FromSnapshot {
		t.Fatalf("build row=%+v", b)
	}

	unk, err := r.UnknownColors(ctx, "")
	if err != nil {
		t.Fatalf("UnknownColors: %v", err)
	}
	if len(unk) != 2 || unk[0].Color != "111111" || unk[1].Count != 5 {
		t.Fatalf("unknown rows=%+v", unk)
	}

	fails, err := r.Failures(ctx, 10)
	if err != nil {
		t.Fatalf("Failures: %v", err)
	}
	if len(fails) != 1 || fails[0].Kind != "DECODE" || fails[0].Path != "broken.png" {
		t.Fatalf("failures=%+v", fails)
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	if err := idx.UpsertCatalogs("../../../configs", cats, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM catalogs`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 4 {
		t.Fatalf("catalog rows=%d want 4", n)
	}
	var digest string
	if err := db.QueryRow(`SELECT digest FROM catalogs WHERE name='biomes_defs'`).Scan(&digest); err != nil {
		t.Fatalf("biomes_defs: %v", err)
	}
	if digest != cats.Biomes.DefsDigest {
		t.Fatalf("digest=%s want %s", digest, cats.Biomes.DefsDigest)
	}
}

func TestReader_EmptyIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	_ = idx.Close()
	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	unk, err := r.UnknownColors(context.Background(), "nope.png")
	if err != nil || len(unk) != 0 {
		t.Fatalf("unk=%v err=%v", unk, err)
	}
}

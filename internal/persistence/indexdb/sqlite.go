package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"biomemap.ai/internal/sim/catalogs"
	"biomemap.ai/internal/sim/tuning"
	"biomemap.ai/internal/sim/world/terrain/imagemap"
)

// SQLiteIndex is a secondary, queryable index of layer builds. Writes are
// queued to a single writer goroutine and dropped when the queue is full.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropBuild   atomic.Uint64
	dropUnknown atomic.Uint64
	dropFailure atomic.Uint64
}

var _ imagemap.Sink = (*SQLiteIndex)(nil)

type reqKind int

const (
	reqBuild reqKind = iota + 1
	reqUnknown
	reqFailure
)

type req struct {
	kind reqKind

	build   BuildRow
	unknown unknownBatch
	failure FailureRow
}

type BuildRow struct {
	ImagePath     string `json:"image_path"`
	ImageDigest   string `json:"image_digest"`
	PaletteDigest string `json:"palette_digest"`
	SnapshotKey   string `json:"snapshot_key"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Orientation   string `json:"orientation"`
	Mode          string `json:"mode"`
	UnknownColors int    `json:"unknown_colors"`
	Passes        int    `json:"passes"`
	RepairedCells int    `json:"repaired_cells"`
	FixedImage    string `json:"fixed_image,omitempty"`
	FromSnapshot  bool   `json:"from_snapshot"`
	ElapsedMs     int64  `json:"elapsed_ms"`
	RecordedAt    string `json:"recorded_at"`
}

type UnknownColorRow struct {
	ImagePath  string `json:"image_path"`
	Color      string `json:"color"`
	Count      int    `json:"count"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	RecordedAt string `json:"recorded_at"`
}

type FailureRow struct {
	Kind       string `json:"kind"` // "DECODE" or "ENCODE"
	Path       string `json:"path"`
	Error      string `json:"error"`
	RecordedAt string `json:"recorded_at"`
}

type unknownBatch struct {
	ImagePath  string
	Colors     []imagemap.UnknownColor
	RecordedAt string
}

type Stats struct {
	QueueDepth       int    `json:"queue_depth"`
	QueueCapacity    int    `json:"queue_capacity"`
	DropBuildTotal   uint64 `json:"drop_build_total"`
	DropUnknownTotal uint64 `json:"drop_unknown_total"`
	DropFailureTotal uint64 `json:"drop_failure_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS builds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			image_path TEXT NOT NULL,
			image_digest TEXT NOT NULL,
			palette_digest TEXT NOT NULL,
			snapshot_key TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			orientation TEXT NOT NULL,
			mode TEXT NOT NULL,
			unknown_colors INTEGER NOT NULL,
			passes INTEGER NOT NULL,
			repaired_cells INTEGER NOT NULL,
			fixed_image TEXT,
			from_snapshot INTEGER NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_builds_image ON builds(image_path, recorded_at);`,
		`CREATE TABLE IF NOT EXISTS unknown_colors (
			image_path TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			color TEXT NOT NULL,
			count INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			PRIMARY KEY (image_path, recorded_at, color)
		);`,
		`CREATE TABLE IF NOT EXISTS failures (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			path TEXT NOT NULL,
			error TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		// The JSONL diagnostics log remains the source of truth.
		drops.Add(1)
	}
}

func (s *SQLiteIndex) RecordBuild(b BuildRow) {
	if s == nil {
		return
	}
	if b.RecordedAt == "" {
		b.RecordedAt = now()
	}
	s.enqueue(req{kind: reqBuild, build: b}, &s.dropBuild)
}

func (s *SQLiteIndex) UnknownColors(path string, report []imagemap.UnknownColor) {
	if s == nil || len(report) == 0 {
		return
	}
	cp := append([]imagemap.UnknownColor(nil), report...)
	s.enqueue(req{kind: reqUnknown, unknown: unknownBatch{ImagePath: path, Colors: cp, RecordedAt: now()}}, &s.dropUnknown)
}

func (s *SQLiteIndex) DecodeFailed(path string, err error) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqFailure, failure: FailureRow{Kind: "DECODE", Path: path, Error: err.Error(), RecordedAt: now()}}, &s.dropFailure)
}

func (s *SQLiteIndex) EncodeFailed(path string, err error) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqFailure, failure: FailureRow{Kind: "ENCODE", Path: path, Error: err.Error(), RecordedAt: now()}}, &s.dropFailure)
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropBuildTotal:   s.dropBuild.Load(),
		DropUnknownTotal: s.dropUnknown.Load(),
		DropFailureTotal: s.dropFailure.Load(),
	}
}

// UpsertCatalogs stores the biome catalog and the applied tuning synchronously.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	ts := now()

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, "biomes.json")); err == nil {
			rows = append(rows, kv{name: "biomes_defs", digest: cats.Biomes.DefsDigest, json: b})
		}
	}
	if b, _ := json.Marshal(cats.Biomes.Names); len(b) > 0 {
		rows = append(rows, kv{name: "biomes_names", digest: cats.Biomes.PaletteDigest, json: b})
	}
	{
		pal := make(map[string]uint16, len(cats.Biomes.Palette))
		for c, id := range cats.Biomes.Palette {
			pal[imagemap.FormatHex(c)] = uint16(id)
		}
		// encoding/json sorts map keys.
		b, _ := json.Marshal(pal)
		rows = append(rows, kv{name: "biomes_palette", digest: cats.Biomes.PaletteDigest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		rows = append(rows, kv{name: "tuning", digest: tune.Digest(), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), ts); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertBuild, _ := s.db.Prepare(`INSERT INTO builds(image_path,image_digest,palette_digest,snapshot_key,width,height,orientation,mode,unknown_colors,passes,repaired_cells,fixed_image,from_snapshot,elapsed_ms,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertUnknown, _ := s.db.Prepare(`INSERT OR REPLACE INTO unknown_colors(image_path,recorded_at,color,count,x,y) VALUES(?,?,?,?,?,?)`)
	insertFailure, _ := s.db.Prepare(`INSERT INTO failures(kind,path,error,recorded_at) VALUES(?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertBuild, insertUnknown, insertFailure} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		// Builds are rare; commit as soon as the queue drains.
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqBuild:
			b := r.build
			if insertBuild != nil {
				if _, err := tx.Stmt(insertBuild).Exec(
					b.ImagePath, b.ImageDigest, b.PaletteDigest, b.SnapshotKey,
					b.Width, b.Height, b.Orientation, b.Mode,
					b.UnknownColors, b.Passes, b.RepairedCells,
					b.FixedImage, b.FromSnapshot, b.ElapsedMs, b.RecordedAt,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqUnknown:
			u := r.unknown
			for _, c := range u.Colors {
				if insertUnknown == nil {
					break
				}
				if _, err := tx.Stmt(insertUnknown).Exec(u.ImagePath, u.RecordedAt, imagemap.FormatHex(c.Color), c.Count, c.X, c.Y); err != nil {
					rollback()
					break
				}
				opCount++
			}

		case reqFailure:
			f := r.failure
			if insertFailure != nil {
				if _, err := tx.Stmt(insertFailure).Exec(f.Kind, f.Path, f.Error, f.RecordedAt); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}

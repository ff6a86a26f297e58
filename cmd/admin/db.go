package main

import (
	"context"
	"flag"
	"path/filepath"
	"strings"
	"time"

	"biomemap.ai/internal/persistence/indexdb"
)

// dbCmd queries the build index: builds (default), unknown, failures.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/biomemap.sqlite)")
	limit := fs.Int("limit", 20, "result limit")
	image := fs.String("image", "", "image path filter (unknown)")
	_ = fs.Parse(args)

	q := "builds"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "biomemap.sqlite")
	}

	r, err := indexdb.OpenReader(path)
	if err != nil {
		fail(1, "open:", err)
	}
	defer r.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch q {
	case "builds":
		rows, err := r.Builds(ctx, *limit)
		if err != nil {
			fail(1, "query:", err)
		}
		for _, b := range rows {
			printJSON(b)
		}
	case "unknown":
		rows, err := r.UnknownColors(ctx, *image)
		if err != nil {
			fail(1, "query:", err)
		}
		for _, u := range rows {
			printJSON(u)
		}
	case "failures":
		rows, err := r.Failures(ctx, *limit)
		if err != nil {
			fail(1, "query:", err)
		}
		for _, f := range rows {
			printJSON(f)
		}
	default:
		fail(2, "unknown query:", q, "(builds|unknown|failures)")
	}
}

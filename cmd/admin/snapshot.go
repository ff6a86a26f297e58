package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	persistlog "biomemap.ai/internal/persistence/log"
	"biomemap.ai/internal/persistence/snapshot"
)

// snapshotCmd prints a grid snapshot's header, and with -grid checks that the
// biome payload decodes to width*height cells.
func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	key := fs.String("key", "", "snapshot key (alternative to a path argument)")
	grid := fs.Bool("grid", false, "decode the full grid")
	_ = fs.Parse(args)

	path := strings.TrimSpace(fs.Arg(0))
	if path == "" && strings.TrimSpace(*key) != "" {
		path = snapshot.Path(*dataDir, strings.TrimSpace(*key))
	}
	if path == "" {
		hs, err := listSnapshots(*dataDir)
		if err != nil || len(hs) == 0 {
			fail(2, "no snapshot found; pass a path or -key")
		}
		path = snapshot.Path(*dataDir, hs[0].Key)
	}

	if !*grid {
		h, err := snapshot.ReadHeader(path)
		if err != nil {
			fail(1, "read header:", err)
		}
		printJSON(h)
		return
	}
	g, err := snapshot.ReadGrid(path)
	if err != nil {
		fail(1, "read grid:", err)
	}
	ids, err := g.Biomes()
	if err != nil {
		fail(1, "grid:", err)
	}
	printJSON(struct {
		snapshot.Header
		ImagePath     string `json:"image_path"`
		Mode          string `json:"mode"`
		Cells         int    `json:"cells"`
		RLEBytes      int    `json:"rle_bytes"`
		UnknownColors int    `json:"unknown_colors"`
		Passes        int    `json:"passes"`
		RepairedCells int    `json:"repaired_cells"`
	}{g.Header, g.ImagePath, g.Mode, len(ids), len(g.BiomesRLE), len(g.Unknown), g.Passes, g.RepairedCells})
}

// diagCmd dumps diagnostics JSONL segments, optionally filtered by kind.
func diagCmd(args []string) {
	fs := flag.NewFlagSet("diag", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	kind := fs.String("kind", "", "entry kind filter (UNKNOWN_COLORS, DECODE_FAILED, ENCODE_FAILED, BUILD)")
	_ = fs.Parse(args)

	files := fs.Args()
	if len(files) == 0 {
		m, _ := filepath.Glob(filepath.Join(*dataDir, "diagnostics", "diagnostics-*.jsonl.zst"))
		files = m
	}
	want := strings.ToUpper(strings.TrimSpace(*kind))
	for _, f := range files {
		err := persistlog.ReadJSONL(f, func(line []byte) error {
			if want != "" {
				var e persistlog.DiagnosticEntry
				if err := json.Unmarshal(line, &e); err != nil {
					return err
				}
				if e.Kind != want {
					return nil
				}
			}
			fmt.Println(string(line))
			return nil
		})
		if err != nil {
			fail(1, f+":", err)
		}
	}
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"biomemap.ai/internal/persistence/snapshot"
	"biomemap.ai/internal/sim/catalogs"
	"biomemap.ai/internal/sim/tuning"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "resolve":
			resolveCmd(os.Args[2:])
			return
		case "render":
			renderCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "diag":
			diagCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints cached grid snapshots, newest first.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	hs, err := listSnapshots(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, h := range hs {
		fmt.Printf("%s %dx%d %s fill=%d created=%d\n", h.Key, h.Width, h.Height, h.Orientation, h.Fill, h.CreatedUnixMs)
	}
}

func listSnapshots(dataDir string) ([]snapshot.Header, error) {
	dir := filepath.Join(dataDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []snapshot.Header
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".grid.zst") {
			continue
		}
		h, err := snapshot.ReadHeader(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedUnixMs != out[j].CreatedUnixMs {
			return out[i].CreatedUnixMs > out[j].CreatedUnixMs
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// loadConfig reads tuning and catalogs the way the server does.
func loadConfig(configDir, tuningPath string) (tuning.Tuning, *catalogs.Catalogs, error) {
	tp := strings.TrimSpace(tuningPath)
	if tp == "" {
		tp = filepath.Join(configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		return tune, nil, fmt.Errorf("load tuning: %w", err)
	}
	cats, err := catalogs.Load(configDir)
	if err != nil {
		return tune, nil, fmt.Errorf("load catalogs: %w", err)
	}
	return tune, cats, nil
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}

func fail(code int, args ...any) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(code)
}

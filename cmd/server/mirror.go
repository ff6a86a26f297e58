package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"biomemap.ai/internal/persistence/mirror"
)

// buildMirrorRuntime returns nil (a valid no-op mirror) unless BM_MIRROR is set.
func buildMirrorRuntime(dataDir string, logger *log.Logger) (*mirror.Mirror, error) {
	if !envBool("BM_MIRROR", false) {
		return nil, nil
	}
	cfg := mirrorConfigFromEnv()
	client, err := mirror.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("BM_MIRROR=true: %w", err)
	}
	return mirror.New(client, mirror.Options{
		Root:    dataDir,
		Prefix:  strings.TrimSpace(os.Getenv("BM_MIRROR_PREFIX")),
		Workers: envInt("BM_MIRROR_WORKERS", 2),
		Logger:  logger,
	}), nil
}

func mirrorConfigFromEnv() mirror.Config {
	return mirror.Config{
		Endpoint:        strings.TrimSpace(os.Getenv("BM_MIRROR_ENDPOINT")),
		Bucket:          strings.TrimSpace(os.Getenv("BM_MIRROR_BUCKET")),
		Region:          strings.TrimSpace(os.Getenv("BM_MIRROR_REGION")),
		AccessKeyID:     strings.TrimSpace(os.Getenv("BM_MIRROR_ACCESS_KEY_ID")),
		SecretAccessKey: strings.TrimSpace(os.Getenv("BM_MIRROR_SECRET_ACCESS_KEY")),
	}
}

func writeMirrorMetrics(w io.Writer, m *mirror.Mirror) {
	if m == nil {
		return
	}
	s := m.Stats()
	fmt.Fprintf(w, "# HELP biomemap_mirror_queue_depth Pending artifact uploads.\n")
	fmt.Fprintf(w, "# TYPE biomemap_mirror_queue_depth gauge\n")
	fmt.Fprintf(w, "biomemap_mirror_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(w, "# HELP biomemap_mirror_uploads_total Artifact uploads by result.\n")
	fmt.Fprintf(w, "# TYPE biomemap_mirror_uploads_total counter\n")
	fmt.Fprintf(w, "biomemap_mirror_uploads_total{result=%q} %d\n", "ok", s.Uploaded)
	fmt.Fprintf(w, "biomemap_mirror_uploads_total{result=%q} %d\n", "failed", s.Failed)
	fmt.Fprintf(w, "biomemap_mirror_uploads_total{result=%q} %d\n", "dropped", s.Dropped)
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

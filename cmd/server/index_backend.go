package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"biomemap.ai/internal/persistence/indexdb"
)

// openIndex returns nil when indexing is disabled by flag or BM_INDEX_BACKEND.
func openIndex(dataDir string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("BM_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(indexPath(dataDir))
	default:
		return nil, fmt.Errorf("unsupported BM_INDEX_BACKEND: %s", backend)
	}
}

func indexPath(dataDir string) string {
	return filepath.Join(dataDir, "index", "biomemap.sqlite")
}

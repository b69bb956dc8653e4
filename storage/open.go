package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Supported backend identifiers.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendPebble  = "pebble"
)

// Open constructs the requested backend rooted at dir. An empty backend
// selects LevelDB.
func Open(backend, dir string) (Database, error) {
	kind := strings.ToLower(strings.TrimSpace(backend))
	if kind == "" {
		kind = BackendLevelDB
	}
	if kind == BackendMemory {
		return NewMemDB(), nil
	}
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage: data directory required for %s backend", kind)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}
	switch kind {
	case BackendLevelDB:
		return NewLevelDB(filepath.Join(dir, "state.ldb"))
	case BackendBolt:
		return NewBoltDB(filepath.Join(dir, "state.bolt"))
	case BackendPebble:
		return NewPebbleDB(filepath.Join(dir, "state.pebble"))
	default:
		return nil, fmt.Errorf("storage: unsupported backend %q", backend)
	}
}

package network

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	nonceKeyPrefix    = "nonce:"
	observedKeyPrefix = "observed:"
)

// NonceStore persists envelope nonces so replay protection survives a
// restart of the process holding the verifier.
type NonceStore interface {
	// Observe records key and reports whether it had been recorded before.
	Observe(key string, observedAt time.Time) (bool, error)
	// Prune forgets keys observed before cutoff.
	Prune(cutoff time.Time) error
	Close() error
}

// LevelDBNonceStore is the LevelDB-backed NonceStore.
type LevelDBNonceStore struct {
	db *leveldb.DB
}

// OpenLevelDBNonceStore opens (or creates) the nonce database at path.
func OpenLevelDBNonceStore(path string) (*LevelDBNonceStore, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("network: nonce store path required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("network: resolve nonce store path: %w", err)
	}
	db, err := leveldb.OpenFile(abs, nil)
	if err != nil {
		return nil, fmt.Errorf("network: open nonce store: %w", err)
	}
	return &LevelDBNonceStore{db: db}, nil
}

func (s *LevelDBNonceStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *LevelDBNonceStore) Observe(key string, observedAt time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("network: nonce store not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false, fmt.Errorf("network: nonce key required")
	}
	nonceKey := []byte(nonceKeyPrefix + key)
	_, err := s.db.Get(nonceKey, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
	case err != nil:
		return false, fmt.Errorf("network: load nonce: %w", err)
	default:
		return true, nil
	}
	nanos := observedAt.UTC().UnixNano()
	batch := new(leveldb.Batch)
	batch.Put(nonceKey, encodeUnixNano(nanos))
	batch.Put([]byte(observedKey(nanos, key)), nil)
	if err := s.db.Write(batch, nil); err != nil {
		return false, fmt.Errorf("network: record nonce: %w", err)
	}
	return false, nil
}

// Prune walks the observation index in time order and drops everything older
// than cutoff.
func (s *LevelDBNonceStore) Prune(cutoff time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("network: nonce store not configured")
	}
	cutoffKey := []byte(observedKey(cutoff.UTC().UnixNano(), ""))
	iter := s.db.NewIterator(util.BytesPrefix([]byte(observedKeyPrefix)), nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		if bytes.Compare(iter.Key(), cutoffKey) >= 0 {
			break
		}
		key, _, ok := parseObservedKey(iter.Key())
		if !ok {
			continue
		}
		batch.Delete(append([]byte(nil), iter.Key()...))
		batch.Delete([]byte(nonceKeyPrefix + key))
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("network: iterate nonces: %w", err)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("network: prune nonces: %w", err)
	}
	return nil
}

func observedKey(nanos int64, key string) string {
	return fmt.Sprintf("%s%020d:%s", observedKeyPrefix, nanos, key)
}

func parseObservedKey(raw []byte) (string, int64, bool) {
	parts := strings.SplitN(string(raw), ":", 3)
	if len(parts) != 3 {
		return "", 0, false
	}
	nanos, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return parts[2], nanos, true
}

func encodeUnixNano(nanos int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(nanos))
	return buf
}

package state

import (
	"errors"
	"fmt"
	"slices"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"microlend/storage"
)

var (
	// ErrEmptyKey is returned for zero-length state keys.
	ErrEmptyKey = errors.New("state: key must not be empty")

	errNoStore = errors.New("state: manager not initialised")
)

// Manager provides typed access to node state on top of a key-value store.
// Records are RLP encoded under keccak256-hashed keys so every record type
// shares one flat keyspace.
type Manager struct {
	kv KVStore
}

// NewManager creates a state manager operating on the provided store.
func NewManager(kv KVStore) *Manager {
	return &Manager{kv: kv}
}

func hashKey(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	return ethcrypto.Keccak256(key), nil
}

func (m *Manager) store() (KVStore, error) {
	if m == nil || m.kv == nil {
		return nil, errNoStore
	}
	return m.kv, nil
}

// raw returns the encoded record under key, or nil when absent.
func (m *Manager) raw(key []byte) ([]byte, error) {
	kv, err := m.store()
	if err != nil {
		return nil, err
	}
	hashed, err := hashKey(key)
	if err != nil {
		return nil, err
	}
	data, err := kv.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// KVPut RLP-encodes value under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	kv, err := m.store()
	if err != nil {
		return err
	}
	hashed, err := hashKey(key)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return kv.Put(hashed, encoded)
}

// KVGet decodes the record under key into out and reports whether it existed.
// A nil out only checks presence.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	data, err := m.raw(key)
	if err != nil || len(data) == 0 {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

// KVDelete removes the record under key.
func (m *Manager) KVDelete(key []byte) error {
	kv, err := m.store()
	if err != nil {
		return err
	}
	hashed, err := hashKey(key)
	if err != nil {
		return err
	}
	return kv.Delete(hashed)
}

// KVIDs returns the identifier index stored under key in insertion order.
// A missing index is empty, never nil.
func (m *Manager) KVIDs(key []byte) ([]uint64, error) {
	ids := []uint64{}
	if _, err := m.KVGet(key, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// KVAppendID adds id to the index under key. Ids already present are ignored
// so replays keep the index stable.
func (m *Manager) KVAppendID(key []byte, id uint64) error {
	ids, err := m.KVIDs(key)
	if err != nil {
		return err
	}
	if slices.Contains(ids, id) {
		return nil
	}
	return m.KVPut(key, append(ids, id))
}

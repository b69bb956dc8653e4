package state

import (
	"errors"
	"sort"

	"microlend/storage"
)

// KVStore is the raw key-value surface the manager reads and writes through.
// Missing keys report storage.ErrNotFound.
type KVStore interface {
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// Overlay stages writes above a committed database. Reads observe staged
// writes first. Nothing reaches the database until Commit.
type Overlay struct {
	base    storage.Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

// NewOverlay creates an empty overlay over base.
func NewOverlay(base storage.Database) *Overlay {
	return &Overlay{
		base:    base,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	k := string(key)
	if _, deleted := o.deletes[k]; deleted {
		return nil, storage.ErrNotFound
	}
	if value, ok := o.writes[k]; ok {
		return append([]byte(nil), value...), nil
	}
	if o.base == nil {
		return nil, storage.ErrNotFound
	}
	return o.base.Get(key)
}

func (o *Overlay) Put(key []byte, value []byte) error {
	k := string(key)
	delete(o.deletes, k)
	o.writes[k] = append([]byte(nil), value...)
	return nil
}

func (o *Overlay) Delete(key []byte) error {
	k := string(key)
	delete(o.writes, k)
	o.deletes[k] = struct{}{}
	return nil
}

// Dirty reports the number of staged operations.
func (o *Overlay) Dirty() int {
	return len(o.writes) + len(o.deletes)
}

// Commit flushes every staged operation to the base database as one batch and
// resets the overlay.
func (o *Overlay) Commit() error {
	if o.Dirty() == 0 {
		return nil
	}
	if o.base == nil {
		return errors.New("state: overlay has no base database")
	}
	batch := o.base.NewBatch()
	keys := make([]string, 0, len(o.writes))
	for k := range o.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		batch.Put([]byte(k), o.writes[k])
	}
	deleted := make([]string, 0, len(o.deletes))
	for k := range o.deletes {
		deleted = append(deleted, k)
	}
	sort.Strings(deleted)
	for _, k := range deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	o.Discard()
	return nil
}

// Discard drops every staged operation.
func (o *Overlay) Discard() {
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
}

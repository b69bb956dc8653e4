package storage

import (
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
)

var defaultBucket = []byte("state")

var errBoltClosed = errors.New("storage: bolt database is closed")

// BoltDB stores all keys in a single bbolt bucket.
type BoltDB struct {
	db     *bbolt.DB
	bucket []byte
}

// NewBoltDB opens (or creates) a bbolt file and ensures the state bucket exists.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(defaultBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltDB{db: db, bucket: defaultBucket}, nil
}

func (b *BoltDB) Get(key []byte) ([]byte, error) {
	if b.db == nil {
		return nil, errBoltClosed
	}
	var value []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return fmt.Errorf("bucket %s not found", string(b.bucket))
		}
		raw := bucket.Get(key)
		if raw == nil {
			return ErrNotFound
		}
		// bbolt values are only valid for the life of the transaction.
		value = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (b *BoltDB) Has(key []byte) (bool, error) {
	_, err := b.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (b *BoltDB) Put(key []byte, value []byte) error {
	if b.db == nil {
		return errBoltClosed
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.bucket).Put(key, value)
	})
}

func (b *BoltDB) Delete(key []byte) error {
	if b.db == nil {
		return errBoltClosed
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.bucket).Delete(key)
	})
}

func (b *BoltDB) NewBatch() Batch {
	return &boltBatch{db: b}
}

func (b *BoltDB) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

type boltBatch struct {
	db  *BoltDB
	ops []batchOp
}

func (b *boltBatch) Put(key []byte, value []byte) {
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
}

func (b *boltBatch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), delete: true})
}

func (b *boltBatch) Len() int { return len(b.ops) }

// Write applies every staged operation inside one bbolt read-write
// transaction.
func (b *boltBatch) Write() error {
	if b.db == nil || b.db.db == nil {
		return errBoltClosed
	}
	err := b.db.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.db.bucket)
		if bucket == nil {
			return fmt.Errorf("bucket %s not found", string(b.db.bucket))
		}
		for _, op := range b.ops {
			var err error
			if op.delete {
				err = bucket.Delete(op.key)
			} else {
				err = bucket.Put(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.ops = nil
	return nil
}

package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"slices"

	"go.etcd.io/bbolt"
)

var documentsBucket = []byte("documents")

// BoltStore keeps blobs in a bbolt database. Each value is the version as
// an 8 byte big-endian prefix followed by the blob.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) the database file at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(documentsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Get(ctx context.Context, id string) (blob Blob, err error) {
	if err = ctx.Err(); err != nil {
		return
	}
	err = s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(documentsBucket).Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		blob, err = decodeBlob(raw)
		return err
	})
	return
}

func (s *BoltStore) Put(ctx context.Context, id string, data []byte, expectedVersion int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(documentsBucket)
		current := 0
		if raw := bucket.Get([]byte(id)); raw != nil {
			blob, err := decodeBlob(raw)
			if err != nil {
				return err
			}
			current = blob.Version
		}
		if current != expectedVersion {
			return fmt.Errorf("%s: stored %d, expected %d: %w", id, current, expectedVersion, ErrVersionConflict)
		}
		return bucket.Put([]byte(id), encodeBlob(Blob{Data: data, Version: current + 1}))
	})
}

func encodeBlob(b Blob) []byte {
	out := make([]byte, 8, 8+len(b.Data))
	binary.BigEndian.PutUint64(out, uint64(b.Version))
	return append(out, b.Data...)
}

func decodeBlob(raw []byte) (Blob, error) {
	if len(raw) < 8 {
		return Blob{}, fmt.Errorf("corrupt blob of %d bytes", len(raw))
	}
	// raw is only valid inside the transaction
	return Blob{
		Version: int(binary.BigEndian.Uint64(raw[:8])),
		Data:    slices.Clone(raw[8:]),
	}, nil
}

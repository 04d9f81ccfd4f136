// Package store is the persistence boundary for documents: an opaque blob
// per document id guarded by a version counter.
package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrVersionConflict = errors.New("document version conflict")
)

// Blob is a stored document and the version it was written at.
type Blob struct {
	Data    []byte
	Version int
}

// Store persists blobs. Put succeeds only when expectedVersion matches the
// stored version (0 for a document that does not exist yet) and stores the
// blob at expectedVersion+1.
type Store interface {
	Get(ctx context.Context, id string) (Blob, error)
	Put(ctx context.Context, id string, data []byte, expectedVersion int) error
}

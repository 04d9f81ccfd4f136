package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore keeps blobs in a map. It is used by tests and when no database
// path is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]Blob)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[id]
	if !ok {
		return Blob{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return Blob{Data: slices.Clone(b.Data), Version: b.Version}, nil
}

func (s *MemoryStore) Put(ctx context.Context, id string, data []byte, expectedVersion int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.blobs[id].Version
	if current != expectedVersion {
		return fmt.Errorf("%s: stored %d, expected %d: %w", id, current, expectedVersion, ErrVersionConflict)
	}
	s.blobs[id] = Blob{Data: slices.Clone(data), Version: current + 1}
	return nil
}

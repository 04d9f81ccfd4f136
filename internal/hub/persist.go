package hub

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"sheetsync/internal/grid"
	"sheetsync/internal/store"
)

// load reads a document from the store, or creates an empty one when it has
// never been saved.
func (h *Hub) load(ctx context.Context, id string) (*grid.Document, int, error) {
	blob, err := h.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return grid.New(id, h.rows, h.cols), 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	var p grid.Persisted
	if err := sonic.Unmarshal(blob.Data, &p); err != nil {
		return nil, 0, fmt.Errorf("decode document %s: %w", id, err)
	}
	p.ID = id
	return grid.FromPersisted(p), blob.Version, nil
}

// save writes the room's document back at the version it was loaded from.
func (h *Hub) save(ctx context.Context, room *Room) error {
	data, err := sonic.Marshal(room.doc.Persisted())
	if err != nil {
		return err
	}
	if err := h.store.Put(ctx, room.ID, data, room.storedVersion); err != nil {
		return err
	}
	room.storedVersion++
	return nil
}

// Snapshot returns the live document if the room is open, otherwise the
// stored copy.
func (h *Hub) Snapshot(ctx context.Context, id string) (grid.Persisted, error) {
	h.mu.RLock()
	room, ok := h.rooms[id]
	h.mu.RUnlock()
	if ok {
		return room.doc.Persisted(), nil
	}
	blob, err := h.store.Get(ctx, id)
	if err != nil {
		return grid.Persisted{}, err
	}
	var p grid.Persisted
	if err := sonic.Unmarshal(blob.Data, &p); err != nil {
		return grid.Persisted{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	return p, nil
}

// Import stores doc as the new content of a document nobody has open.
func (h *Hub) Import(ctx context.Context, doc *grid.Document) error {
	h.mu.RLock()
	_, live := h.rooms[doc.ID]
	h.mu.RUnlock()
	if live {
		return fmt.Errorf("%s: %w", doc.ID, ErrDocumentOpen)
	}

	version := 0
	blob, err := h.store.Get(ctx, doc.ID)
	switch {
	case err == nil:
		version = blob.Version
	case !errors.Is(err, store.ErrNotFound):
		return err
	}
	data, err := sonic.Marshal(doc.Persisted())
	if err != nil {
		return err
	}
	return h.store.Put(ctx, doc.ID, data, version)
}

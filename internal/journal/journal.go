// Package journal keeps linear undo/redo history as whole snapshots.
package journal

import (
	"errors"
	"sync"
)

// ErrEmptyHistory is returned by Undo and Redo when there is nothing to pop.
var ErrEmptyHistory = errors.New("empty history")

// DefaultLimit is the number of undo entries kept when none is configured.
const DefaultLimit = 100

// Journal holds two stacks of snapshots. History is strictly linear: Record
// always clears the redo stack. The undo stack is bounded; the oldest entry is
// dropped once the limit is reached.
type Journal[S any] struct {
	mu    sync.Mutex
	undo  []S
	redo  []S
	limit int
}

// New returns a journal holding at most limit undo entries. A limit <= 0
// uses DefaultLimit.
func New[S any](limit int) *Journal[S] {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Journal[S]{limit: limit}
}

// Record pushes the state captured before a new mutation.
func (j *Journal[S]) Record(before S) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.undo) >= j.limit {
		drop := len(j.undo) - j.limit + 1
		clear(j.undo[:drop])
		j.undo = j.undo[drop:]
	}
	j.undo = append(j.undo, before)
	clear(j.redo)
	j.redo = j.redo[:0]
}

// Undo pops the newest undo entry and pushes current onto the redo stack.
// The popped snapshot is the state to restore.
func (j *Journal[S]) Undo(current S) (S, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var zero S
	if len(j.undo) == 0 {
		return zero, ErrEmptyHistory
	}
	top := j.undo[len(j.undo)-1]
	j.undo[len(j.undo)-1] = zero
	j.undo = j.undo[:len(j.undo)-1]
	j.redo = append(j.redo, current)
	return top, nil
}

// Redo is the mirror of Undo.
func (j *Journal[S]) Redo(current S) (S, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var zero S
	if len(j.redo) == 0 {
		return zero, ErrEmptyHistory
	}
	top := j.redo[len(j.redo)-1]
	j.redo[len(j.redo)-1] = zero
	j.redo = j.redo[:len(j.redo)-1]
	j.undo = append(j.undo, current)
	return top, nil
}

// Len reports the sizes of the undo and redo stacks.
func (j *Journal[S]) Len() (undo, redo int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.undo), len(j.redo)
}

// Reset drops all history.
func (j *Journal[S]) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.undo = nil
	j.redo = nil
}

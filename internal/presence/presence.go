// Package presence tracks who is connected to a document and where their
// cursor, selection and typing indicator are.
package presence

import (
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	DefaultSweepInterval = time.Minute
	DefaultIdleTimeout   = 5 * time.Minute
)

// Cursor is a pointer position, optionally pinned to a cell.
type Cursor struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	CellID string  `json:"cellId,omitempty"`
}

// Selection is the cell range a user has selected, as cell ids.
type Selection struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// User is the identity a connection joins with.
type User struct {
	ID          string `json:"userId"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
}

// Entry is one user's live state inside a document.
type Entry struct {
	UserID      string     `json:"userId"`
	DisplayName string     `json:"displayName"`
	Avatar      string     `json:"avatar,omitempty"`
	Cursor      *Cursor    `json:"cursor,omitempty"`
	Selection   *Selection `json:"selection,omitempty"`
	TypingCell  string     `json:"typingCell,omitempty"`
	LastSeen    time.Time  `json:"lastSeen"`
}

func (e Entry) clone() Entry {
	if e.Cursor != nil {
		c := *e.Cursor
		e.Cursor = &c
	}
	if e.Selection != nil {
		s := *e.Selection
		e.Selection = &s
	}
	return e
}

// Tracker holds the presence entries of one document.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*Entry
	now     func() time.Time
}

type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Join registers u, or refreshes the entry if the user is already present.
func (t *Tracker) Join(u User) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[u.ID]
	if !ok {
		e = &Entry{UserID: u.ID}
		t.entries[u.ID] = e
	}
	e.DisplayName = u.DisplayName
	e.Avatar = u.Avatar
	e.LastSeen = t.now()
	return e.clone()
}

// Leave removes the entry. It reports whether the user was present.
func (t *Tracker) Leave(userID string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[userID]
	if !ok {
		return Entry{}, false
	}
	delete(t.entries, userID)
	return *e, true
}

// UpdateCursor moves the user's cursor.
func (t *Tracker) UpdateCursor(userID string, c Cursor) (Entry, bool) {
	return t.update(userID, func(e *Entry) {
		e.Cursor = &c
	})
}

// UpdateSelection replaces the user's selection.
func (t *Tracker) UpdateSelection(userID string, s Selection) (Entry, bool) {
	return t.update(userID, func(e *Entry) {
		e.Selection = &s
	})
}

// TypingStart marks the user as editing cellID.
func (t *Tracker) TypingStart(userID, cellID string) (Entry, bool) {
	return t.update(userID, func(e *Entry) {
		e.TypingCell = cellID
	})
}

// TypingStop clears the typing indicator if it points at cellID. An empty
// cellID always clears it.
func (t *Tracker) TypingStop(userID, cellID string) (Entry, bool) {
	return t.update(userID, func(e *Entry) {
		if cellID == "" || e.TypingCell == cellID {
			e.TypingCell = ""
		}
	})
}

// Touch refreshes lastSeen without changing anything else.
func (t *Tracker) Touch(userID string) bool {
	_, ok := t.update(userID, func(*Entry) {})
	return ok
}

func (t *Tracker) update(userID string, fn func(*Entry)) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[userID]
	if !ok {
		return Entry{}, false
	}
	fn(e)
	e.LastSeen = t.now()
	return e.clone(), true
}

// Get returns a copy of the user's entry.
func (t *Tracker) Get(userID string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[userID]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// Len returns the number of present users.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Snapshot returns every entry ordered by user id.
func (t *Tracker) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.clone())
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return strings.Compare(a.UserID, b.UserID)
	})
	return out
}

// Sweep evicts every entry not seen for longer than timeout and returns the
// evicted entries ordered by user id.
func (t *Tracker) Sweep(timeout time.Duration) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	var out []Entry
	for id, e := range t.entries {
		if now.Sub(e.LastSeen) > timeout {
			out = append(out, *e)
			delete(t.entries, id)
		}
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return strings.Compare(a.UserID, b.UserID)
	})
	return out
}

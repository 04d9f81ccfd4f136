package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }
func newClock() *clock { return &clock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)} }
func newTracker(c *clock) *Tracker { return NewTracker(WithClock(c.now)) }
func alice() User { return User{ID: "alice", DisplayName: "Alice"} }
func bob() User { return User{ID: "bob", DisplayName: "Bob", Avatar: "b.png"} }

func TestTracker_JoinLeave(t *testing.T) {
	c := newClock()
	tr := newTracker(c)

	e := tr.Join(bob())
	assert.Equal(t, Entry{UserID: "bob", DisplayName: "Bob", Avatar: "b.png", LastSeen: c.t}, e)
	tr.Join(alice())

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "alice", snap[0].UserID)
	assert.Equal(t, "bob", snap[1].UserID)

	left, ok := tr.Leave("alice")
	assert.True(t, ok)
	assert.Equal(t, "Alice", left.DisplayName)

	_, ok = tr.Leave("alice")
	assert.False(t, ok)
	assert.Equal(t, 1, tr.Len())
}

func TestTracker_Updates(t *testing.T) {
	c := newClock()
	tr := newTracker(c)
	tr.Join(alice())

	c.advance(time.Second)
	e, ok := tr.UpdateCursor("alice", Cursor{X: 10, Y: 20, CellID: "B2"})
	require.True(t, ok)
	assert.Equal(t, &Cursor{X: 10, Y: 20, CellID: "B2"}, e.Cursor)
	assert.Equal(t, c.t, e.LastSeen)

	e, _ = tr.UpdateSelection("alice", Selection{Start: "A1", End: "C3"})
	assert.Equal(t, &Selection{Start: "A1", End: "C3"}, e.Selection)

	e, _ = tr.TypingStart("alice", "B2")
	assert.Equal(t, "B2", e.TypingCell)
	e, _ = tr.TypingStop("alice", "C9")
	assert.Equal(t, "B2", e.TypingCell)
	e, _ = tr.TypingStop("alice", "B2")
	assert.Empty(t, e.TypingCell)

	_, ok = tr.UpdateCursor("nobody", Cursor{})
	assert.False(t, ok)

	// returned entries are copies
	e.Cursor.X = 99
	got, _ := tr.Get("alice")
	assert.Equal(t, float64(10), got.Cursor.X)
}

func TestTracker_Sweep(t *testing.T) {
	c := newClock()
	tr := newTracker(c)
	tr.Join(alice())
	tr.Join(bob())

	c.advance(4 * time.Minute)
	assert.True(t, tr.Touch("bob"))
	assert.Empty(t, tr.Sweep(DefaultIdleTimeout))

	c.advance(2 * time.Minute)
	evicted := tr.Sweep(DefaultIdleTimeout)
	require.Len(t, evicted, 1)
	assert.Equal(t, "alice", evicted[0].UserID)

	_, ok := tr.Get("alice")
	assert.False(t, ok)
	_, ok = tr.Get("bob")
	assert.True(t, ok)
}

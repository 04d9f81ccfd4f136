// Package grid is the in-process store for one spreadsheet document: cells,
// styles and merged ranges, the mutations clients perform on them, and the
// undo/redo history of those mutations.
package grid

import (
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"sheetsync/internal/cellref"
	"sheetsync/internal/formula"
	"sheetsync/internal/journal"
)

var (
	ErrOutOfBounds     = errors.New("position outside the grid")
	ErrSingleCellMerge = errors.New("cannot merge a single cell")
)

var defaultEngine = formula.New()

// Document is the authoritative state of one sheet. Local mutations are
// journaled; remote replays (ApplyDelta, ApplyFormatRemote, Restore) are not.
type Document struct {
	ID string

	mu      sync.RWMutex
	rows    int
	cols    int
	cells   map[string]Cell
	merged  []MergedRange
	styles  map[string]StyleSet
	version int

	history *journal.Journal[Snapshot]
	engine  *formula.Engine
	newID   func() string
}

type Option func(*Document)

// WithHistoryLimit bounds the number of undo snapshots kept.
func WithHistoryLimit(n int) Option {
	return func(d *Document) {
		d.history = journal.New[Snapshot](n)
	}
}

// WithEngine evaluates formulas with e instead of the shared default engine.
func WithEngine(e *formula.Engine) Option {
	return func(d *Document) {
		d.engine = e
	}
}

// WithIDGenerator replaces the uuid generator used for merged range ids.
func WithIDGenerator(fn func() string) Option {
	return func(d *Document) {
		d.newID = fn
	}
}

// New creates an empty document with the given dimensions.
func New(id string, rows, cols int, opts ...Option) *Document {
	d := &Document{
		ID:      id,
		rows:    max(rows, 0),
		cols:    max(cols, 0),
		cells:   make(map[string]Cell),
		styles:  make(map[string]StyleSet),
		history: journal.New[Snapshot](journal.DefaultLimit),
		engine:  defaultEngine,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FromPersisted rebuilds a document from a stored blob. History starts empty.
func FromPersisted(p Persisted, opts ...Option) *Document {
	d := New(p.ID, p.Rows, p.Cols, opts...)
	d.restoreLocked(p.Snapshot.Clone())
	d.version = p.Version
	return d
}

// Persisted captures the document for the store.
func (d *Document) Persisted() Persisted {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Persisted{
		ID:       d.ID,
		Rows:     d.rows,
		Cols:     d.cols,
		Version:  d.version,
		Snapshot: d.snapshotLocked(),
	}
}

// Bounds returns the number of rows and columns.
func (d *Document) Bounds() (rows, cols int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rows, d.cols
}

// Version increases by one for every applied mutation, local or remote.
func (d *Document) Version() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// Raw returns the stored content of a cell.
func (d *Document) Raw(p Pos) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cells[p.ID()].RawValue
}

// Value returns what the cell displays. Formulas are evaluated on every
// call.
func (d *Document) Value(p Pos) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.inBounds(p) {
		return ""
	}
	return d.engine.EvaluateCell(p, formula.ResolverFunc(d.rawLocked))
}

// Values evaluates every non-empty cell, keyed by cell id.
func (d *Document) Values() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(d.cells))
	for id, c := range d.cells {
		if c.RawValue == "" {
			continue
		}
		ref, err := cellref.ParseRef(id)
		if err != nil {
			continue
		}
		out[id] = d.engine.EvaluateCell(ref, formula.ResolverFunc(d.rawLocked))
	}
	return out
}

// Style returns a copy of the cell's style, nil when unstyled.
func (d *Document) Style(p Pos) StyleSet {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.styles[p.ID()].Clone()
}

// MergedRanges returns the merged ranges in insertion order.
func (d *Document) MergedRanges() []MergedRange {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.merged)
}

// MergedAt returns the merged range covering p, if any.
func (d *Document) MergedAt(p Pos) (MergedRange, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, m := range d.merged {
		if m.Span().Contains(p) {
			return m, true
		}
	}
	return MergedRange{}, false
}

// Snapshot deep-copies the current content.
func (d *Document) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshotLocked()
}

// History reports the undo and redo depths.
func (d *Document) History() (undo, redo int) {
	return d.history.Len()
}

// Undo restores the state before the latest local mutation and returns it
// for broadcast.
func (d *Document) Undo() (Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	prev, err := d.history.Undo(d.snapshotLocked())
	if err != nil {
		return Snapshot{}, err
	}
	d.restoreLocked(prev)
	d.version++
	return prev.Clone(), nil
}

// Redo re-applies the latest undone mutation.
func (d *Document) Redo() (Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	next, err := d.history.Redo(d.snapshotLocked())
	if err != nil {
		return Snapshot{}, err
	}
	d.restoreLocked(next)
	d.version++
	return next.Clone(), nil
}

// Restore replaces the content with s without touching the history. It is
// how a remote undo or redo is replayed, so entries outside the grid are
// dropped and a later merged range evicts earlier ones it overlaps.
func (d *Document) Restore(s Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.restoreLocked(d.admit(s))
	d.version++
}

func (d *Document) rawLocked(p Pos) (string, bool) {
	if !d.inBounds(p) {
		return "", false
	}
	return d.cells[p.ID()].RawValue, true
}

func (d *Document) inBounds(p Pos) bool {
	return p.Row >= 0 && p.Col >= 0 && p.Row < d.rows && p.Col < d.cols
}

func (d *Document) spanInBounds(r Range) bool {
	return d.inBounds(r.Start) && d.inBounds(r.End)
}

// clip intersects r with the grid. ok is false when nothing is left.
func (d *Document) clip(r Range) (Range, bool) {
	r = cellref.NewSpan(r.Start, r.End)
	out := Range{
		Start: Pos{Row: max(r.Start.Row, 0), Col: max(r.Start.Col, 0)},
		End:   Pos{Row: min(r.End.Row, d.rows-1), Col: min(r.End.Col, d.cols-1)},
	}
	if out.Start.Row > out.End.Row || out.Start.Col > out.End.Col {
		return Range{}, false
	}
	return out, true
}

func (d *Document) snapshotLocked() Snapshot {
	return Snapshot{
		Cells:        d.cells,
		MergedRanges: d.merged,
		Styles:       d.styles,
	}.Clone()
}

// restoreLocked adopts s without copying it; callers pass a private copy.
func (d *Document) restoreLocked(s Snapshot) {
	d.cells = s.Cells
	if d.cells == nil {
		d.cells = make(map[string]Cell)
	}
	d.merged = s.MergedRanges
	d.styles = s.Styles
	if d.styles == nil {
		d.styles = make(map[string]StyleSet)
	}
}

// record journals the current state ahead of a local mutation.
func (d *Document) record() {
	d.history.Record(d.snapshotLocked())
}

func (d *Document) writeCell(p Pos, raw string) {
	d.cells[p.ID()] = cellFor(raw)
}

func cellFor(raw string) Cell {
	c := Cell{RawValue: raw}
	if formula.IsFormula(raw) {
		c.Formula = raw
	}
	return c
}

func (d *Document) writeStyle(p Pos, s StyleSet) {
	if len(s) == 0 {
		delete(d.styles, p.ID())
		return
	}
	d.styles[p.ID()] = maps.Clone(s)
}

// occupied lists, in row-major order, the positions inside r that hold a
// cell or a style entry.
func (d *Document) occupied(r Range) []Pos {
	var out []Pos
	if r.Rows()*r.Cols() <= len(d.cells)+len(d.styles) {
		r.Each(func(p Pos) {
			id := p.ID()
			_, hasCell := d.cells[id]
			_, hasStyle := d.styles[id]
			if hasCell || hasStyle {
				out = append(out, p)
			}
		})
		return out
	}
	seen := make(map[Pos]bool)
	collect := func(id string) {
		p, err := cellref.ParseRef(id)
		if err != nil || !r.Contains(p) || seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}
	for id := range d.cells {
		collect(id)
	}
	for id := range d.styles {
		collect(id)
	}
	slices.SortFunc(out, comparePos)
	return out
}

func comparePos(a, b Pos) int {
	if a.Row != b.Row {
		return a.Row - b.Row
	}
	return a.Col - b.Col
}

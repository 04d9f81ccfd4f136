package grid

import (
	"maps"
	"slices"

	"sheetsync/internal/cellref"
)

// Pos is a 0-based cell position.
type Pos = cellref.Ref

// Range is an inclusive, normalized rectangle of positions.
type Range = cellref.Span

// Cell is the stored content of one grid position. Cells absent from the
// document read as the empty string.
type Cell struct {
	RawValue string `json:"rawValue"`
	Formula  string `json:"formula,omitempty"`
}

// MergedRange is a block of cells rendered and edited as one.
type MergedRange struct {
	ID       string `json:"id"`
	StartRow int    `json:"startRow"`
	EndRow   int    `json:"endRow"`
	StartCol int    `json:"startCol"`
	EndCol   int    `json:"endCol"`
}

// Span returns the rectangle covered by the merge.
func (m MergedRange) Span() Range {
	return cellref.NewSpan(Pos{Row: m.StartRow, Col: m.StartCol}, Pos{Row: m.EndRow, Col: m.EndCol})
}

func mergedFromSpan(id string, r Range) MergedRange {
	return MergedRange{
		ID:       id,
		StartRow: r.Start.Row,
		EndRow:   r.End.Row,
		StartCol: r.Start.Col,
		EndCol:   r.End.Col,
	}
}

// CellUpdate is the new raw value of one cell.
type CellUpdate struct {
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Value string `json:"value"`
}

// Pos returns the updated position.
func (u CellUpdate) Pos() Pos { return Pos{Row: u.Row, Col: u.Col} }

// StyleUpdate carries the complete style of one cell after a mutation. A nil
// Style means the entry was removed.
type StyleUpdate struct {
	Row   int      `json:"row"`
	Col   int      `json:"col"`
	Style StyleSet `json:"style"`
}

// Pos returns the updated position.
func (u StyleUpdate) Pos() Pos { return Pos{Row: u.Row, Col: u.Col} }

// Delta lists the concrete changes a mutation made. Replaying a delta with
// ApplyDelta is idempotent.
type Delta struct {
	Cells           []CellUpdate  `json:"updatedCells,omitempty"`
	Styles          []StyleUpdate `json:"updatedStyles,omitempty"`
	NewRanges       []MergedRange `json:"newRanges,omitempty"`
	RemovedRangeIDs []string      `json:"removedRangeIds,omitempty"`
}

// Empty reports whether the delta changes nothing.
func (d Delta) Empty() bool {
	return len(d.Cells) == 0 && len(d.Styles) == 0 && len(d.NewRanges) == 0 && len(d.RemovedRangeIDs) == 0
}

// Snapshot is a full copy of a document's content. It is the unit the
// undo/redo journal stores.
type Snapshot struct {
	Cells        map[string]Cell     `json:"cells"`
	MergedRanges []MergedRange       `json:"mergedRanges"`
	Styles       map[string]StyleSet `json:"styles"`
}

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Cells:        maps.Clone(s.Cells),
		MergedRanges: slices.Clone(s.MergedRanges),
		Styles:       make(map[string]StyleSet, len(s.Styles)),
	}
	if out.Cells == nil {
		out.Cells = make(map[string]Cell)
	}
	if len(out.MergedRanges) == 0 {
		out.MergedRanges = nil
	}
	for id, st := range s.Styles {
		out.Styles[id] = st.Clone()
	}
	return out
}

// Persisted is the versioned blob written to the document store.
type Persisted struct {
	ID       string   `json:"id"`
	Rows     int      `json:"rows"`
	Cols     int      `json:"cols"`
	Version  int      `json:"version"`
	Snapshot Snapshot `json:"snapshot"`
}

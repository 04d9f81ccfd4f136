package grid

import (
	"slices"
	"strings"

	"sheetsync/internal/cellref"
)

// SetCell overwrites the raw content of one cell. Writes outside the grid
// are dropped.
func (d *Document) SetCell(p Pos, raw string) Delta {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inBounds(p) {
		return Delta{}
	}
	d.record()
	d.writeCell(p, raw)
	d.version++
	return Delta{Cells: []CellUpdate{{Row: p.Row, Col: p.Col, Value: raw}}}
}

// FillRange copies the raw value and style of source into every cell of
// target except source itself.
func (d *Document) FillRange(source Pos, target Range) Delta {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.clip(target)
	if !ok {
		return Delta{}
	}
	var targets []Pos
	r.Each(func(p Pos) {
		if p != source {
			targets = append(targets, p)
		}
	})
	if len(targets) == 0 {
		return Delta{}
	}

	raw := d.cells[source.ID()].RawValue
	style := d.styles[source.ID()].Clone()
	d.record()
	var out Delta
	for _, p := range targets {
		d.writeCell(p, raw)
		d.writeStyle(p, style)
		out.Cells = append(out.Cells, CellUpdate{Row: p.Row, Col: p.Col, Value: raw})
		out.Styles = append(out.Styles, StyleUpdate{Row: p.Row, Col: p.Col, Style: style.Clone()})
	}
	d.version++
	return out
}

// PasteBlock writes rows starting at anchor. Cells falling outside the grid
// are dropped.
func (d *Document) PasteBlock(anchor Pos, rows [][]string) Delta {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out Delta
	for i, row := range rows {
		for j, v := range row {
			p := Pos{Row: anchor.Row + i, Col: anchor.Col + j}
			if d.inBounds(p) {
				out.Cells = append(out.Cells, CellUpdate{Row: p.Row, Col: p.Col, Value: v})
			}
		}
	}
	if len(out.Cells) == 0 {
		return Delta{}
	}
	d.record()
	for _, u := range out.Cells {
		d.writeCell(u.Pos(), u.Value)
	}
	d.version++
	return out
}

// ParseClipboard splits tab separated clipboard text into rows.
func ParseClipboard(text string) [][]string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	out := make([][]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, strings.Split(line, "\t"))
	}
	return out
}

// MergeRange merges r into one cell. Existing ranges overlapping r are fused
// into the bounding rectangle. The new top-left keeps the content of the
// first overlapping range's top-left (or r's own when nothing overlapped) and
// every other cell in the rectangle is cleared.
func (d *Document) MergeRange(r Range) (Delta, error) {
	r = NewRange(r.Start, r.End)
	if r.Rows() == 1 && r.Cols() == 1 {
		return Delta{}, ErrSingleCellMerge
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.spanInBounds(r) {
		return Delta{}, ErrOutOfBounds
	}

	bounds := r
	source := r.Start
	found := false
	fused := make(map[string]bool)
	for changed := true; changed; {
		changed = false
		for _, m := range d.merged {
			if fused[m.ID] || !m.Span().Overlaps(bounds) {
				continue
			}
			if !found {
				source = m.Span().Start
				found = true
			}
			fused[m.ID] = true
			bounds = bounds.Union(m.Span())
			changed = true
		}
	}

	raw := d.cells[source.ID()].RawValue
	style := d.styles[source.ID()].Clone()
	d.record()

	var out Delta
	d.merged = slices.DeleteFunc(d.merged, func(m MergedRange) bool {
		if fused[m.ID] {
			out.RemovedRangeIDs = append(out.RemovedRangeIDs, m.ID)
			return true
		}
		return false
	})
	for _, p := range d.occupied(bounds) {
		if p == bounds.Start {
			continue
		}
		if _, ok := d.cells[p.ID()]; ok {
			d.writeCell(p, "")
			out.Cells = append(out.Cells, CellUpdate{Row: p.Row, Col: p.Col})
		}
		if _, ok := d.styles[p.ID()]; ok {
			delete(d.styles, p.ID())
			out.Styles = append(out.Styles, StyleUpdate{Row: p.Row, Col: p.Col})
		}
	}
	top := bounds.Start
	d.writeCell(top, raw)
	d.writeStyle(top, style)
	out.Cells = append(out.Cells, CellUpdate{Row: top.Row, Col: top.Col, Value: raw})
	out.Styles = append(out.Styles, StyleUpdate{Row: top.Row, Col: top.Col, Style: style})

	m := mergedFromSpan(d.newID(), bounds)
	d.merged = append(d.merged, m)
	out.NewRanges = []MergedRange{m}
	d.version++
	return out, nil
}

// UnmergeRange removes every merged range overlapping target. Cells that
// were hidden by the merge stay empty.
func (d *Document) UnmergeRange(target Range) Delta {
	target = NewRange(target.Start, target.End)
	d.mu.Lock()
	defer d.mu.Unlock()

	var ids []string
	for _, m := range d.merged {
		if m.Span().Overlaps(target) {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return Delta{}
	}
	d.record()
	d.removeRanges(ids)
	d.version++
	return Delta{RemovedRangeIDs: ids}
}

// ClearRange empties every cell in r and drops its style.
func (d *Document) ClearRange(r Range) Delta {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.clip(r)
	if !ok {
		return Delta{}
	}
	var out Delta
	for _, p := range d.occupied(r) {
		if c, ok := d.cells[p.ID()]; ok && c.RawValue != "" {
			out.Cells = append(out.Cells, CellUpdate{Row: p.Row, Col: p.Col})
		}
		if _, ok := d.styles[p.ID()]; ok {
			out.Styles = append(out.Styles, StyleUpdate{Row: p.Row, Col: p.Col})
		}
	}
	if out.Empty() {
		return Delta{}
	}

	d.record()
	for _, u := range out.Cells {
		d.writeCell(u.Pos(), "")
	}
	for _, u := range out.Styles {
		delete(d.styles, u.Pos().ID())
	}
	d.version++
	return out
}

// ApplyFormat merges patch into the style of every cell in targets. Keys set
// to their default value are removed.
func (d *Document) ApplyFormat(targets []Range, patch StyleSet) Delta {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.format(targets, patch, true)
}

func (d *Document) format(targets []Range, patch StyleSet, record bool) Delta {
	clipped := make([]Range, 0, len(targets))
	for _, t := range targets {
		if r, ok := d.clip(t); ok {
			clipped = append(clipped, r)
		}
	}
	if len(clipped) == 0 {
		return Delta{}
	}
	if record {
		d.record()
	}

	var out Delta
	seen := make(map[Pos]bool)
	for _, r := range clipped {
		r.Each(func(p Pos) {
			if seen[p] {
				return
			}
			seen[p] = true
			next := d.styles[p.ID()].Patch(patch)
			d.writeStyle(p, next)
			out.Styles = append(out.Styles, StyleUpdate{Row: p.Row, Col: p.Col, Style: next.Clone()})
		})
	}
	d.version++
	return out
}

func (d *Document) removeRanges(ids []string) {
	d.merged = slices.DeleteFunc(d.merged, func(m MergedRange) bool {
		return slices.Contains(ids, m.ID)
	})
}

// NewRange builds a normalized range from two corners.
func NewRange(a, b Pos) Range {
	return cellref.NewSpan(a, b)
}

package grid

import (
	"slices"

	"sheetsync/internal/cellref"
)

// ApplyDelta replays a delta received from another connection. Nothing is
// journaled and applying the same delta twice has no further effect.
// Positions outside the grid are ignored.
func (d *Document) ApplyDelta(delta Delta) {
	if delta.Empty() {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.removeRanges(delta.RemovedRangeIDs)
	for _, u := range delta.Cells {
		if d.inBounds(u.Pos()) {
			d.writeCell(u.Pos(), u.Value)
		}
	}
	for _, u := range delta.Styles {
		if d.inBounds(u.Pos()) {
			d.writeStyle(u.Pos(), u.Style)
		}
	}
	for _, m := range delta.NewRanges {
		span := m.Span()
		if !d.spanInBounds(span) {
			continue
		}
		d.merged = slices.DeleteFunc(d.merged, func(old MergedRange) bool {
			return old.ID == m.ID || old.Span().Overlaps(span)
		})
		d.merged = append(d.merged, mergedFromSpan(m.ID, span))
	}
	d.version++
}

// ApplyFormatRemote replays a format patch from another connection without
// journaling it.
func (d *Document) ApplyFormatRemote(targets []Range, patch StyleSet) Delta {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.format(targets, patch, false)
}

// admit copies the parts of a received snapshot that fit the grid.
func (d *Document) admit(s Snapshot) Snapshot {
	out := Snapshot{
		Cells:  make(map[string]Cell, len(s.Cells)),
		Styles: make(map[string]StyleSet, len(s.Styles)),
	}
	for id, c := range s.Cells {
		if p, err := cellref.ParseRef(id); err == nil && d.inBounds(p) {
			out.Cells[p.ID()] = cellFor(c.RawValue)
		}
	}
	for id, set := range s.Styles {
		if p, err := cellref.ParseRef(id); err == nil && d.inBounds(p) && len(set) > 0 {
			out.Styles[p.ID()] = set.Clone()
		}
	}
	for _, m := range s.MergedRanges {
		span := m.Span()
		if !d.spanInBounds(span) || span.Start == span.End {
			continue
		}
		out.MergedRanges = slices.DeleteFunc(out.MergedRanges, func(old MergedRange) bool {
			return old.ID == m.ID || old.Span().Overlaps(span)
		})
		out.MergedRanges = append(out.MergedRanges, mergedFromSpan(m.ID, span))
	}
	return out
}

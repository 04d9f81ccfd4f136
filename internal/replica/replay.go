package replica

import (
	"errors"
	"fmt"

	"sheetsync/internal/grid"
	"sheetsync/internal/protocol"
)

var ErrNotMutation = errors.New("not a mutation event")

// Replay applies a mutation event received from another connection to doc.
// Nothing is journaled.
func Replay(doc *grid.Document, msg protocol.Message) error {
	switch msg.Type {
	case protocol.CellChange:
		var p protocol.CellChangePayload
		if err := msg.Bind(&p); err != nil {
			return err
		}
		doc.ApplyDelta(grid.Delta{Cells: []grid.CellUpdate{{Row: p.Row, Col: p.Col, Value: p.Value}}})
	case protocol.ApplyFormat:
		var p protocol.ApplyFormatPayload
		if err := msg.Bind(&p); err != nil {
			return err
		}
		doc.ApplyFormatRemote(p.Targets, p.Patch)
	case protocol.FillOperation:
		var p protocol.FillPayload
		if err := msg.Bind(&p); err != nil {
			return err
		}
		doc.ApplyDelta(grid.Delta{Cells: p.UpdatedCells, Styles: p.UpdatedStyles})
	case protocol.PasteOperation:
		var p protocol.PastePayload
		if err := msg.Bind(&p); err != nil {
			return err
		}
		doc.ApplyDelta(grid.Delta{Cells: p.PastedCells})
	case protocol.ClearCells:
		var p protocol.ClearPayload
		if err := msg.Bind(&p); err != nil {
			return err
		}
		doc.ApplyDelta(grid.Delta{Cells: p.Cells, Styles: p.Styles})
	case protocol.UndoRedo:
		var p protocol.UndoRedoPayload
		if err := msg.Bind(&p); err != nil {
			return err
		}
		doc.Restore(p.Snapshot)
	case protocol.MergeCells:
		var p protocol.MergePayload
		if err := msg.Bind(&p); err != nil {
			return err
		}
		doc.ApplyDelta(grid.Delta{
			Cells:           p.UpdatedCells,
			Styles:          p.UpdatedStyles,
			NewRanges:       p.NewRanges,
			RemovedRangeIDs: p.RemovedRangeIDs,
		})
	case protocol.UnmergeCells:
		var p protocol.UnmergePayload
		if err := msg.Bind(&p); err != nil {
			return err
		}
		doc.ApplyDelta(grid.Delta{RemovedRangeIDs: p.RemovedRangeIDs})
	default:
		return fmt.Errorf("%s: %w", msg.Type, ErrNotMutation)
	}
	return nil
}

// event builds the message relaying delta as t.
func event(t protocol.Type, documentID string, delta grid.Delta) (protocol.Message, error) {
	var payload any
	switch t {
	case protocol.CellChange:
		if len(delta.Cells) != 1 {
			return protocol.Message{}, fmt.Errorf("cellChange carries one cell, got %d", len(delta.Cells))
		}
		c := delta.Cells[0]
		payload = protocol.CellChangePayload{Row: c.Row, Col: c.Col, Value: c.Value}
	case protocol.FillOperation:
		payload = protocol.FillPayload{UpdatedCells: delta.Cells, UpdatedStyles: delta.Styles}
	case protocol.PasteOperation:
		payload = protocol.PastePayload{PastedCells: delta.Cells}
	case protocol.ClearCells:
		payload = protocol.ClearPayload{Cells: delta.Cells, Styles: delta.Styles}
	case protocol.MergeCells:
		payload = protocol.MergePayload{
			NewRanges:       delta.NewRanges,
			UpdatedCells:    delta.Cells,
			UpdatedStyles:   delta.Styles,
			RemovedRangeIDs: delta.RemovedRangeIDs,
		}
	case protocol.UnmergeCells:
		payload = protocol.UnmergePayload{RemovedRangeIDs: delta.RemovedRangeIDs}
	default:
		return protocol.Message{}, fmt.Errorf("%s: %w", t, ErrNotMutation)
	}
	return protocol.New(t, documentID, payload)
}

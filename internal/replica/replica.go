// Package replica is one connection's local copy of a document. Local edits
// are applied, journaled and emitted; remote events are replayed without
// journaling.
package replica

import (
	"sheetsync/internal/grid"
	"sheetsync/internal/protocol"
)

// Sender delivers an outbound event to the relay.
type Sender interface {
	Send(msg protocol.Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(msg protocol.Message) error

func (f SenderFunc) Send(msg protocol.Message) error { return f(msg) }

type Replica struct {
	doc  *grid.Document
	user string
	out  Sender
}

func New(doc *grid.Document, user string, out Sender) *Replica {
	return &Replica{doc: doc, user: user, out: out}
}

// Document exposes the local grid.
func (r *Replica) Document() *grid.Document {
	return r.doc
}

func (r *Replica) SetCell(p grid.Pos, raw string) error {
	return r.emit(protocol.CellChange, r.doc.SetCell(p, raw))
}

func (r *Replica) FillRange(source grid.Pos, target grid.Range) error {
	return r.emit(protocol.FillOperation, r.doc.FillRange(source, target))
}

func (r *Replica) PasteBlock(anchor grid.Pos, rows [][]string) error {
	return r.emit(protocol.PasteOperation, r.doc.PasteBlock(anchor, rows))
}

// PasteText pastes tab separated clipboard text at anchor.
func (r *Replica) PasteText(anchor grid.Pos, text string) error {
	return r.PasteBlock(anchor, grid.ParseClipboard(text))
}

func (r *Replica) MergeRange(rng grid.Range) error {
	delta, err := r.doc.MergeRange(rng)
	if err != nil {
		return err
	}
	return r.emit(protocol.MergeCells, delta)
}

func (r *Replica) UnmergeRange(target grid.Range) error {
	return r.emit(protocol.UnmergeCells, r.doc.UnmergeRange(target))
}

func (r *Replica) ClearRange(rng grid.Range) error {
	return r.emit(protocol.ClearCells, r.doc.ClearRange(rng))
}

func (r *Replica) ApplyFormat(targets []grid.Range, patch grid.StyleSet) error {
	if r.doc.ApplyFormat(targets, patch).Empty() {
		return nil
	}
	return r.send(protocol.ApplyFormat, protocol.ApplyFormatPayload{Targets: targets, Patch: patch})
}

func (r *Replica) Undo() error {
	s, err := r.doc.Undo()
	if err != nil {
		return err
	}
	return r.send(protocol.UndoRedo, protocol.UndoRedoPayload{Kind: protocol.KindUndo, Snapshot: s})
}

func (r *Replica) Redo() error {
	s, err := r.doc.Redo()
	if err != nil {
		return err
	}
	return r.send(protocol.UndoRedo, protocol.UndoRedoPayload{Kind: protocol.KindRedo, Snapshot: s})
}

// Receive replays an event relayed from another connection.
func (r *Replica) Receive(msg protocol.Message) error {
	return Replay(r.doc, msg)
}

func (r *Replica) emit(t protocol.Type, delta grid.Delta) error {
	if delta.Empty() {
		return nil
	}
	msg, err := event(t, r.doc.ID, delta)
	if err != nil {
		return err
	}
	msg.User = r.user
	return r.out.Send(msg)
}

func (r *Replica) send(t protocol.Type, payload any) error {
	msg, err := protocol.New(t, r.doc.ID, payload)
	if err != nil {
		return err
	}
	msg.User = r.user
	return r.out.Send(msg)
}

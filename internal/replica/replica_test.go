package replica

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetsync/internal/cellref"
	"sheetsync/internal/grid"
	"sheetsync/internal/journal"
	"sheetsync/internal/protocol"
)

// outbox records emitted events so tests control delivery order.
type outbox struct {
	sent []protocol.Message
}

func (o *outbox) Send(msg protocol.Message) error {
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) drain(t *testing.T, to *Replica) {
	t.Helper()
	for _, msg := range o.sent {
		// go through the wire codec like a real connection
		data, err := protocol.Encode(msg)
		require.NoError(t, err)
		decoded, err := protocol.Decode(data)
		require.NoError(t, err)
		require.NoError(t, to.Receive(decoded))
	}
	o.sent = nil
}

func pair() (*Replica, *outbox, *Replica, *outbox) {
	aOut, bOut := &outbox{}, &outbox{}
	ids := 0
	gen := grid.WithIDGenerator(func() string {
		ids++
		return cellref.ColumnName(ids)
	})
	a := New(grid.New("doc", 20, 10, gen), "alice", aOut)
	b := New(grid.New("doc", 20, 10, gen), "bob", bOut)
	return a, aOut, b, bOut
}

func ref(t *testing.T, id string) grid.Pos {
	t.Helper()
	p, err := cellref.ParseRef(id)
	require.NoError(t, err)
	return p
}

func rng(t *testing.T, s string) grid.Range {
	t.Helper()
	r, err := cellref.ParseSpan(s)
	require.NoError(t, err)
	return r
}

func TestReplica_ConvergesUnderSequentialEdits(t *testing.T) {
	a, aOut, b, _ := pair()

	require.NoError(t, a.SetCell(ref(t, "A1"), "1"))
	require.NoError(t, a.PasteText(ref(t, "A2"), "2\n3\n"))
	require.NoError(t, a.SetCell(ref(t, "B1"), "=SUM(A1:A3)"))
	require.NoError(t, a.ApplyFormat([]grid.Range{rng(t, "B1")}, grid.StyleSet{grid.StyleFontWeight: "bold"}))
	require.NoError(t, a.FillRange(ref(t, "B1"), rng(t, "B1:B2")))
	require.NoError(t, a.MergeRange(rng(t, "C1:D2")))
	require.NoError(t, a.MergeRange(rng(t, "D2:E3")))
	require.NoError(t, a.UnmergeRange(rng(t, "E3")))
	require.NoError(t, a.ClearRange(rng(t, "A3")))
	require.NoError(t, a.Undo())
	require.NoError(t, a.Redo())
	require.Len(t, aOut.sent, 11)

	aOut.drain(t, b)

	assert.Equal(t, a.Document().Snapshot(), b.Document().Snapshot())
	assert.Equal(t, "3", b.Document().Value(ref(t, "B1")))

	// replays are not journaled on the receiving side
	undo, _ := b.Document().History()
	assert.Zero(t, undo)
	assert.ErrorIs(t, b.Undo(), journal.ErrEmptyHistory)
}

func TestReplica_LastWriterWinsPerObserver(t *testing.T) {
	a, aOut, b, bOut := pair()
	cell := ref(t, "C3")

	// both edit the same cell before seeing each other's event
	require.NoError(t, a.SetCell(cell, "from alice"))
	require.NoError(t, b.SetCell(cell, "from bob"))

	aOut.drain(t, b)
	bOut.drain(t, a)

	assert.Equal(t, "from bob", a.Document().Raw(cell))
	assert.Equal(t, "from alice", b.Document().Raw(cell))
}

func TestReplica_NoOpsEmitNothing(t *testing.T) {
	a, aOut, _, _ := pair()

	require.NoError(t, a.SetCell(grid.Pos{Row: 50, Col: 0}, "x"))
	require.NoError(t, a.UnmergeRange(rng(t, "A1:B2")))
	require.NoError(t, a.ApplyFormat([]grid.Range{rng(t, "Z99")}, grid.StyleSet{grid.StyleColor: "red"}))
	assert.ErrorIs(t, a.MergeRange(rng(t, "A1")), grid.ErrSingleCellMerge)
	require.NoError(t, a.ClearRange(rng(t, "A1:C3")))
	assert.Empty(t, aOut.sent)

	undo, _ := a.Document().History()
	assert.Zero(t, undo)
}

func TestReplay_Rejects(t *testing.T) {
	doc := grid.New("doc", 5, 5)

	msg, err := protocol.New(protocol.CursorMove, "doc", map[string]int{"x": 1})
	require.NoError(t, err)
	assert.ErrorIs(t, Replay(doc, msg), ErrNotMutation)

	bad := protocol.Message{Type: protocol.CellChange, DocumentID: "doc", Payload: []byte(`{"row":"x"}`)}
	assert.Error(t, Replay(doc, bad))
	assert.Zero(t, doc.Version())
}

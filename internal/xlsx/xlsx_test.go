package xlsx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sheetsync/internal/cellref"
	"sheetsync/internal/grid"
)

func pos(t *testing.T, id string) grid.Pos {
	t.Helper()
	p, err := cellref.ParseRef(id)
	require.NoError(t, err)
	return p
}

func sample(t *testing.T) *grid.Document {
	doc := grid.New("budget", 20, 10)
	doc.SetCell(pos(t, "A1"), "1")
	doc.SetCell(pos(t, "A2"), "2")
	doc.SetCell(pos(t, "B1"), "=SUM(A1:A2)")
	doc.SetCell(pos(t, "C1"), "hello")
	doc.SetCell(pos(t, "D1"), "title")
	_, err := doc.MergeRange(grid.NewRange(pos(t, "D1"), pos(t, "E2")))
	require.NoError(t, err)
	doc.ApplyFormat([]grid.Range{grid.NewRange(pos(t, "C1"), pos(t, "C1"))}, grid.StyleSet{
		grid.StyleFontWeight:      "bold",
		grid.StyleBackgroundColor: "#ffcc00",
	})
	return doc
}

func TestExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, sample(t)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(sheetName, "C1")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	v, err = f.GetCellValue(sheetName, "A2")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	fx, err := f.GetCellFormula(sheetName, "B1")
	require.NoError(t, err)
	assert.Equal(t, "SUM(A1:A2)", fx)

	merges, err := f.GetMergeCells(sheetName)
	require.NoError(t, err)
	require.Len(t, merges, 1)
	assert.Equal(t, "D1", merges[0].GetStartAxis())
	assert.Equal(t, "E2", merges[0].GetEndAxis())

	idx, err := f.GetCellStyle(sheetName, "C1")
	require.NoError(t, err)
	style, err := f.GetStyle(idx)
	require.NoError(t, err)
	assert.True(t, style.Font.Bold)
}

func TestImportRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, sample(t)))

	doc, err := Import(&buf, "copy", 5, 5)
	require.NoError(t, err)

	rows, cols := doc.Bounds()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 5, cols)

	assert.Equal(t, "=SUM(A1:A2)", doc.Raw(pos(t, "B1")))
	assert.Equal(t, "3", doc.Value(pos(t, "B1")))
	assert.Equal(t, "hello", doc.Raw(pos(t, "C1")))
	assert.Equal(t, "bold", doc.Style(pos(t, "C1"))[grid.StyleFontWeight])
	assert.Equal(t, "#ffcc00", doc.Style(pos(t, "C1"))[grid.StyleBackgroundColor])

	ranges := doc.MergedRanges()
	require.Len(t, ranges, 1)
	assert.Equal(t, grid.NewRange(pos(t, "D1"), pos(t, "E2")), ranges[0].Span())
	assert.Equal(t, "title", doc.Raw(pos(t, "D1")))

	undo, _ := doc.History()
	assert.Zero(t, undo)
}

func TestHexColor(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
		ok   bool
	}{
		{"#ffcc00", "FFCC00", true},
		{"#abc", "AABBCC", true},
		{"red", "", false},
		{"#12345g", "", false},
	} {
		got, ok := hexColor(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
	assert.Equal(t, "#ffcc00", cssColor("FFFFCC00"))
}

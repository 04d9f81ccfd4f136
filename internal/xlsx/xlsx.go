// Package xlsx converts documents to and from Excel workbooks.
package xlsx

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"sheetsync/internal/cellref"
	"sheetsync/internal/formula"
	"sheetsync/internal/grid"
)

const sheetName = "Sheet1"

// Export writes the document as a single sheet workbook. Formulas are
// stored as formulas and left for the reader to calculate.
func Export(w io.Writer, doc *grid.Document) error {
	f := excelize.NewFile()
	defer f.Close()

	snap := doc.Snapshot()
	ids := make([]string, 0, len(snap.Cells))
	for id := range snap.Cells {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if err := writeCell(f, id, snap.Cells[id].RawValue); err != nil {
			return err
		}
	}

	for _, m := range snap.MergedRanges {
		span := m.Span()
		if err := f.MergeCell(sheetName, span.Start.ID(), span.End.ID()); err != nil {
			return fmt.Errorf("merge %s: %w", span, err)
		}
	}

	styles := make(map[string]int)
	for id, set := range snap.Styles {
		key := styleKey(set)
		styleID, ok := styles[key]
		if !ok {
			var err error
			if styleID, err = f.NewStyle(toExcel(set)); err != nil {
				return fmt.Errorf("style %s: %w", id, err)
			}
			styles[key] = styleID
		}
		if err := f.SetCellStyle(sheetName, id, id, styleID); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func writeCell(f *excelize.File, id, raw string) error {
	switch {
	case raw == "":
		return nil
	case formula.IsFormula(raw):
		return f.SetCellFormula(sheetName, id, strings.TrimPrefix(raw, formula.Sigil))
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return f.SetCellFloat(sheetName, id, n, -1, 64)
	}
	return f.SetCellStr(sheetName, id, raw)
}

// Import reads the first sheet of a workbook into a new document. The
// document is at least rows by cols and grows to fit the sheet.
func Import(r io.Reader, id string, rows, cols int) (*grid.Document, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	values, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}
	merges, err := f.GetMergeCells(sheet)
	if err != nil {
		return nil, fmt.Errorf("read merges: %w", err)
	}

	var delta grid.Delta
	for i, row := range values {
		rows = max(rows, i+1)
		for j, v := range row {
			cols = max(cols, j+1)
			cell := cellref.Encode(i+1, j)
			if fx, err := f.GetCellFormula(sheet, cell); err == nil && fx != "" {
				v = formula.Sigil + fx
			}
			if v != "" {
				delta.Cells = append(delta.Cells, grid.CellUpdate{Row: i, Col: j, Value: v})
			}
			if set := cellStyle(f, sheet, cell); set != nil {
				delta.Styles = append(delta.Styles, grid.StyleUpdate{Row: i, Col: j, Style: set})
			}
		}
	}
	for n, m := range merges {
		startCol, startRow, err := excelize.CellNameToCoordinates(m.GetStartAxis())
		if err != nil {
			return nil, err
		}
		endCol, endRow, err := excelize.CellNameToCoordinates(m.GetEndAxis())
		if err != nil {
			return nil, err
		}
		rows = max(rows, endRow)
		cols = max(cols, endCol)
		delta.NewRanges = append(delta.NewRanges, grid.MergedRange{
			ID:       fmt.Sprintf("%s-merge-%d", id, n+1),
			StartRow: startRow - 1,
			EndRow:   endRow - 1,
			StartCol: startCol - 1,
			EndCol:   endCol - 1,
		})
	}

	doc := grid.New(id, rows, cols)
	doc.ApplyDelta(delta)
	return doc, nil
}

package xlsx

import (
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"sheetsync/internal/grid"
)

// styleKey is a stable key for deduplicating workbook styles.
func styleKey(set grid.StyleSet) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(set[k])
		b.WriteByte(';')
	}
	return b.String()
}

func toExcel(set grid.StyleSet) *excelize.Style {
	font := &excelize.Font{
		Bold:   set[grid.StyleFontWeight] == "bold" || set[grid.StyleFontWeight] == "700",
		Italic: set[grid.StyleFontStyle] == "italic",
		Family: set[grid.StyleFontFamily],
	}
	if strings.Contains(set[grid.StyleTextDecoration], "underline") {
		font.Underline = "single"
	}
	if strings.Contains(set[grid.StyleTextDecoration], "line-through") {
		font.Strike = true
	}
	if c, ok := hexColor(set[grid.StyleColor]); ok {
		font.Color = c
	}
	if size, err := strconv.ParseFloat(strings.TrimSuffix(set[grid.StyleFontSize], "px"), 64); err == nil {
		font.Size = size
	}

	style := &excelize.Style{Font: font}
	if c, ok := hexColor(set[grid.StyleBackgroundColor]); ok {
		style.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{c}}
	}
	if align := set[grid.StyleTextAlign]; align != "" {
		style.Alignment = &excelize.Alignment{Horizontal: align}
	}
	return style
}

func cellStyle(f *excelize.File, sheet, cell string) grid.StyleSet {
	idx, err := f.GetCellStyle(sheet, cell)
	if err != nil || idx == 0 {
		return nil
	}
	s, err := f.GetStyle(idx)
	if err != nil || s == nil {
		return nil
	}
	defaultFont, _ := f.GetDefaultFont()
	return fromExcel(s, defaultFont)
}

// excelDefaultSize is the font size excelize fills in when none is given.
const excelDefaultSize = 11

func fromExcel(s *excelize.Style, defaultFont string) grid.StyleSet {
	patch := grid.StyleSet{}
	if s.Font != nil {
		if s.Font.Bold {
			patch[grid.StyleFontWeight] = "bold"
		}
		if s.Font.Italic {
			patch[grid.StyleFontStyle] = "italic"
		}
		switch {
		case s.Font.Underline != "" && s.Font.Underline != "none":
			patch[grid.StyleTextDecoration] = "underline"
		case s.Font.Strike:
			patch[grid.StyleTextDecoration] = "line-through"
		}
		if s.Font.Color != "" {
			patch[grid.StyleColor] = cssColor(s.Font.Color)
		}
		if s.Font.Family != "" && s.Font.Family != defaultFont {
			patch[grid.StyleFontFamily] = s.Font.Family
		}
		if s.Font.Size > 0 && s.Font.Size != excelDefaultSize {
			patch[grid.StyleFontSize] = strconv.FormatFloat(s.Font.Size, 'f', -1, 64)
		}
	}
	if len(s.Fill.Color) > 0 && s.Fill.Color[0] != "" {
		patch[grid.StyleBackgroundColor] = cssColor(s.Fill.Color[0])
	}
	if s.Alignment != nil && s.Alignment.Horizontal != "" {
		patch[grid.StyleTextAlign] = s.Alignment.Horizontal
	}
	// drop defaults so imported cells stay sparse
	return grid.StyleSet(nil).Patch(patch)
}

// hexColor turns "#rrggbb" or "#rgb" into the RRGGBB form excelize wants.
func hexColor(s string) (string, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return "", false
	}
	if _, err := strconv.ParseUint(s, 16, 32); err != nil {
		return "", false
	}
	return strings.ToUpper(s), true
}

// cssColor turns an RRGGBB or AARRGGBB workbook color into "#rrggbb".
func cssColor(c string) string {
	if len(c) == 8 {
		c = c[2:]
	}
	return "#" + strings.ToLower(c)
}

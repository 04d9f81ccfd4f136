package grid

import (
	"maps"
	"strings"
)

// Style keys understood by clients and the xlsx exporter.
const (
	StyleFontWeight      = "fontWeight"
	StyleFontStyle       = "fontStyle"
	StyleTextDecoration  = "textDecoration"
	StyleColor           = "color"
	StyleBackgroundColor = "backgroundColor"
	StyleTextAlign       = "textAlign"
	StyleFontSize        = "fontSize"
	StyleFontFamily      = "fontFamily"
)

// StyleSet is a sparse set of style properties. A missing key inherits the
// default; it is never stored with the default value.
type StyleSet map[string]string

// defaults lists, per key, the values that mean "not styled".
var defaults = map[string][]string{
	StyleFontWeight:      {"normal", "400"},
	StyleFontStyle:       {"normal"},
	StyleTextDecoration:  {"none"},
	StyleColor:           {"#000000", "#000", "black"},
	StyleBackgroundColor: {"#ffffff", "#fff", "white", "transparent"},
	StyleTextAlign:       {"left"},
}

// IsDefault reports whether value is the default for key.
func IsDefault(key, value string) bool {
	if value == "" {
		return true
	}
	for _, d := range defaults[key] {
		if strings.EqualFold(strings.TrimSpace(value), d) {
			return true
		}
	}
	return false
}

// Clone copies the set. The clone of an empty set is nil.
func (s StyleSet) Clone() StyleSet {
	if len(s) == 0 {
		return nil
	}
	return maps.Clone(s)
}

// Patch returns s with p merged in. Keys set to a default value are removed
// so the result stays sparse; nil is returned when nothing is left.
func (s StyleSet) Patch(p StyleSet) StyleSet {
	out := maps.Clone(s)
	if out == nil {
		out = make(StyleSet, len(p))
	}
	for k, v := range p {
		if IsDefault(k, v) {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

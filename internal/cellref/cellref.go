// Package cellref converts between A1-style cell identifiers and numeric
// coordinates.
//
// Columns use bijective base-26 letters (0 -> A, 25 -> Z, 26 -> AA) and rows
// are printed 1-indexed, so Encode(1, 0) == "A1".
package cellref

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrInvalidID    = errors.New("invalid cell id")
	ErrInvalidRange = errors.New("invalid range")
)

// ColumnName returns the letter label for a 0-based column index.
func ColumnName(col int) string {
	if col < 0 {
		return ""
	}
	var buf [16]byte
	i := len(buf)
	n := col + 1
	for n > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

// ColumnIndex converts an upper case letter label to a 0-based column index.
func ColumnIndex(label string) (int, error) {
	if label == "" {
		return 0, fmt.Errorf("empty column label: %w", ErrInvalidID)
	}
	n := 0
	for i := 0; i < len(label); i++ {
		ch := label[i]
		if !isLetter(ch) {
			return 0, fmt.Errorf("column %q: %w", label, ErrInvalidID)
		}
		if n > (math.MaxInt-26)/26 {
			return 0, fmt.Errorf("column %q overflows: %w", label, ErrInvalidID)
		}
		n = n*26 + int(ch-'A'+1)
	}
	return n - 1, nil
}

// Encode builds a cell id from a 1-indexed row and a 0-based column.
func Encode(row, col int) string {
	return fmt.Sprintf("%s%d", ColumnName(col), row)
}

// Decode is the inverse of Encode. Row numbers must be >= 1 and carry no
// leading zeros so every id has exactly one spelling.
func Decode(id string) (row, col int, err error) {
	split := 0
	for split < len(id) && isLetter(id[split]) {
		split++
	}
	if split == 0 || split == len(id) {
		return 0, 0, fmt.Errorf("%q: %w", id, ErrInvalidID)
	}
	digits := id[split:]
	if digits[0] == '0' {
		return 0, 0, fmt.Errorf("%q: row must start with 1-9: %w", id, ErrInvalidID)
	}
	for i := 0; i < len(digits); i++ {
		d := digits[i]
		if d < '0' || d > '9' {
			return 0, 0, fmt.Errorf("%q: %w", id, ErrInvalidID)
		}
		if row > (math.MaxInt-9)/10 {
			return 0, 0, fmt.Errorf("%q: row overflows: %w", id, ErrInvalidID)
		}
		row = row*10 + int(d-'0')
	}
	col, err = ColumnIndex(id[:split])
	if err != nil {
		return 0, 0, err
	}
	return row, col, nil
}

// Ref is a single cell position with a 0-based row and column.
type Ref struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// ID returns the A1-style id of the position.
func (r Ref) ID() string {
	return Encode(r.Row+1, r.Col)
}

// ParseRef parses an A1-style id into a 0-based Ref.
func ParseRef(id string) (Ref, error) {
	row, col, err := Decode(id)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Row: row - 1, Col: col}, nil
}

// Span is an inclusive rectangle of 0-based positions. Start is always the
// top-left corner once normalized.
type Span struct {
	Start Ref `json:"start"`
	End   Ref `json:"end"`
}

// NewSpan returns the normalized span covering both corners.
func NewSpan(a, b Ref) Span {
	return Span{
		Start: Ref{Row: min(a.Row, b.Row), Col: min(a.Col, b.Col)},
		End:   Ref{Row: max(a.Row, b.Row), Col: max(a.Col, b.Col)},
	}
}

// ParseSpan parses "A1:B3" or a single id such as "C4".
func ParseSpan(s string) (Span, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		ref, err := ParseRef(parts[0])
		if err != nil {
			return Span{}, err
		}
		return Span{Start: ref, End: ref}, nil
	case 2:
		a, err := ParseRef(strings.TrimSpace(parts[0]))
		if err != nil {
			return Span{}, fmt.Errorf("range %q: %w", s, err)
		}
		b, err := ParseRef(strings.TrimSpace(parts[1]))
		if err != nil {
			return Span{}, fmt.Errorf("range %q: %w", s, err)
		}
		return NewSpan(a, b), nil
	}
	return Span{}, fmt.Errorf("%q: %w", s, ErrInvalidRange)
}

func (s Span) String() string {
	if s.Start == s.End {
		return s.Start.ID()
	}
	return s.Start.ID() + ":" + s.End.ID()
}

// Rows returns the number of rows covered.
func (s Span) Rows() int { return s.End.Row - s.Start.Row + 1 }

// Cols returns the number of columns covered.
func (s Span) Cols() int { return s.End.Col - s.Start.Col + 1 }

// Contains reports whether r lies inside the span.
func (s Span) Contains(r Ref) bool {
	return r.Row >= s.Start.Row && r.Row <= s.End.Row && r.Col >= s.Start.Col && r.Col <= s.End.Col
}

// Overlaps reports whether the two spans share at least one cell.
func (s Span) Overlaps(o Span) bool {
	return s.Start.Row <= o.End.Row && o.Start.Row <= s.End.Row &&
		s.Start.Col <= o.End.Col && o.Start.Col <= s.End.Col
}

// Union returns the bounding rectangle of both spans.
func (s Span) Union(o Span) Span {
	return Span{
		Start: Ref{Row: min(s.Start.Row, o.Start.Row), Col: min(s.Start.Col, o.Start.Col)},
		End:   Ref{Row: max(s.End.Row, o.End.Row), Col: max(s.End.Col, o.End.Col)},
	}
}

// Each visits every position in row-major order.
func (s Span) Each(fn func(Ref)) {
	for r := s.Start.Row; r <= s.End.Row; r++ {
		for c := s.Start.Col; c <= s.End.Col; c++ {
			fn(Ref{Row: r, Col: c})
		}
	}
}

func isLetter(ch byte) bool {
	return ch >= 'A' && ch <= 'Z'
}

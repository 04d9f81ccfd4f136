package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sheetsync/internal/cellref"
)

// sheet is a fixed-size resolver keyed by A1 ids.
type sheet struct {
	rows, cols int
	cells      map[string]string
}

func newSheet(cells map[string]string) *sheet {
	return &sheet{rows: 100, cols: 26, cells: cells}
}

func (s *sheet) Raw(ref cellref.Ref) (string, bool) {
	if ref.Row < 0 || ref.Col < 0 || ref.Row >= s.rows || ref.Col >= s.cols {
		return "", false
	}
	return s.cells[ref.ID()], true
}

func (s *sheet) eval(t *testing.T, id string) string {
	t.Helper()
	ref, err := cellref.ParseRef(id)
	if err != nil {
		t.Fatalf("bad ref %s: %v", id, err)
	}
	return New().EvaluateCell(ref, s)
}

type evalCase struct {
	in   string
	want string
}

func TestEvaluate_Arithmetic(t *testing.T) {
	e := New()
	src := newSheet(nil)
	cases := []evalCase{
		{"=1+2", "3"},
		{"=2*3+4", "10"},
		{"=2*(3+4)", "14"},
		{"=10/4", "2.5"},
		{"=-3+1", "-2"},
		{"=2^3^2", "512"},
		{"=50%", "0.5"},
		{"=1.5e2", "150"},
		{`="a"&"b"`, "ab"},
		{`="x""y"`, `x"y`},
		{"=1<2", "TRUE"},
		{"=2<>2", "FALSE"},
		{`="abc"="ABC"`, "TRUE"},
		{"plain text", "plain text"},
		{"42", "42"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, e.Evaluate(c.in, src), c.in)
	}
}

func TestEvaluate_Sentinels(t *testing.T) {
	e := New()
	src := newSheet(map[string]string{"A1": "hello"})
	cases := []struct {
		in   string
		want Code
	}{
		{"=", CodeSyntax},
		{"=1+", CodeSyntax},
		{"=(1+2", CodeSyntax},
		{"=1 2", CodeSyntax},
		{`="open`, CodeSyntax},
		{"=1#2", CodeSyntax},
		{"=1/0", CodeDiv0},
		{"=MOD(5,0)", CodeDiv0},
		{"=A1*2", CodeValue},
		{"=A1:A3", CodeValue},
		{"=IF(1)", CodeValue},
		{"=foo", CodeName},
		{"=NOPE(1)", CodeName},
		{"=ZZ1000", CodeRef},
		{"=SQRT(-1)", CodeNum},
	}
	for _, c := range cases {
		got := e.Evaluate(c.in, src)
		assert.Equal(t, string(c.want), got, c.in)
		assert.True(t, IsSentinel(got), c.in)
	}
}

func TestEvaluate_SumRange(t *testing.T) {
	s := newSheet(map[string]string{"A1": "1", "A2": "2", "A3": "3", "B1": "=SUM(A1:A3)"})
	assert.Equal(t, "6", s.eval(t, "B1"))
	assert.Equal(t, "6", New().Evaluate("=SUM(A1:A3)", s))
}

func TestEvaluate_TransitiveReferences(t *testing.T) {
	s := newSheet(map[string]string{
		"A1":  "= A10 - A20",
		"A2":  "=A30*A31",
		"A10": "-10",
		"A20": "50",
		"A30": "2",
		"A31": "3",
		"B1":  "=A1+A2",
	})
	assert.Equal(t, "-54", s.eval(t, "B1"))
}

func TestEvaluate_RangeOfFormulas(t *testing.T) {
	s := newSheet(map[string]string{
		"A1": "=2*2",
		"A2": "text",
		"A3": "",
		"B1": "=SUM(A1:A3)",
		"B2": "=AVERAGE(A1:A2)",
		"B3": "=COUNT(A1:A3)",
		"B4": "=COUNTA(A1:A3)",
		"B5": "=MAX(A1:A3, 10)",
		"B6": "=min(a1:a2)",
	})
	assert.Equal(t, "4", s.eval(t, "B1"))
	assert.Equal(t, "2", s.eval(t, "B2"))
	assert.Equal(t, "1", s.eval(t, "B3"))
	assert.Equal(t, "2", s.eval(t, "B4"))
	assert.Equal(t, "10", s.eval(t, "B5"))
	assert.Equal(t, "0", s.eval(t, "B6"))
}

// countingSheet records how often cells are resolved.
type countingSheet struct {
	*sheet
	calls int
}

func (s *countingSheet) Raw(ref cellref.Ref) (string, bool) {
	s.calls++
	return s.sheet.Raw(ref)
}

func TestEvaluate_RangeBeyondGrid(t *testing.T) {
	s := &countingSheet{sheet: newSheet(map[string]string{
		"A2": "1",
		"B1": "=SUM(A2:Z8000000)",
		"C1": "=SUM(A1:XFD1048576)",
		"D1": "=COUNTA(A2:Z100)",
	})}

	assert.Equal(t, string(CodeRef), New().EvaluateCell(cellref.Ref{Col: 1}, s))
	assert.Equal(t, string(CodeRef), New().EvaluateCell(cellref.Ref{Col: 2}, s))
	assert.Less(t, s.calls, 10)

	assert.Equal(t, "1", New().EvaluateCell(cellref.Ref{Col: 3}, s))
}

func TestEvaluate_SharedReferencesComputedOnce(t *testing.T) {
	cells := map[string]string{"A1": "1"}
	for row := 2; row <= 30; row++ {
		prev := cellref.Encode(row-1, 0)
		cells[cellref.Encode(row, 0)] = "=" + prev + "+" + prev
	}
	s := &countingSheet{sheet: newSheet(cells)}

	assert.Equal(t, "536870912", New().EvaluateCell(cellref.Ref{Row: 29}, s))
	assert.Less(t, s.calls, 100)

	s.calls = 0
	assert.Equal(t, "1073741824", New().Evaluate("=SUM(A30, A30)", s))
	assert.Less(t, s.calls, 100)
}

func TestEvaluate_Circular(t *testing.T) {
	s := newSheet(map[string]string{
		"A1": "=A1",
		"B1": "=C1+1",
		"C1": "=B1+1",
		"D1": "=SUM(D1:D3)",
		"E1": "=B1*2",
	})
	for _, id := range []string{"A1", "B1", "C1", "D1", "E1"} {
		assert.Equal(t, string(CodeCircular), s.eval(t, id), id)
	}
}

func TestEvaluate_DepthLimit(t *testing.T) {
	cells := map[string]string{"A1": "1"}
	for row := 2; row <= 40; row++ {
		cells[cellref.Encode(row, 0)] = "=" + cellref.Encode(row-1, 0) + "+1"
	}
	s := newSheet(cells)
	ref := cellref.Ref{Row: 39, Col: 0}

	assert.Equal(t, "40", New().EvaluateCell(ref, s))
	assert.Equal(t, string(CodeCircular), New(WithMaxDepth(10)).EvaluateCell(ref, s))
}

func TestEvaluate_Functions(t *testing.T) {
	e := New()
	src := newSheet(map[string]string{"A1": "  padded   text "})
	cases := []evalCase{
		{"=ROUND(2.346, 2)", "2.35"},
		{"=ROUND(2.5)", "3"},
		{"=ABS(-4)", "4"},
		{"=FLOOR(2.7)", "2"},
		{"=CEILING(2.1)", "3"},
		{"=POWER(2, 10)", "1024"},
		{"=MOD(-3, 5)", "2"},
		{"=PRODUCT(2, 3, 4)", "24"},
		{`=IF(1>2, "yes", "no")`, "no"},
		{"=IF(TRUE, 1)", "1"},
		{"=AND(TRUE, 1, 0)", "FALSE"},
		{"=OR(FALSE, 1)", "TRUE"},
		{"=NOT(FALSE)", "TRUE"},
		{`=CONCAT("a", 1, TRUE)`, "a1TRUE"},
		{`=LEN("héllo")`, "5"},
		{`=UPPER("abc")`, "ABC"},
		{`=lower("ABC")`, "abc"},
		{"=TRIM(A1)", "padded text"},
		{"=SUM($A$2, 5)", "5"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, e.Evaluate(c.in, src), c.in)
	}
}

func TestEngine_CustomFunctionAndCheck(t *testing.T) {
	e := New(WithFunction("double", func(args []Value) Value {
		nums, err := numberArgs(args, 1)
		if err != nil {
			return err
		}
		return nums[0] * 2
	}))
	assert.Equal(t, "8", e.Evaluate("=DOUBLE(4)", newSheet(nil)))
	assert.NoError(t, e.Check("=DOUBLE(1)"))
	assert.NoError(t, e.Check("not a formula"))
	assert.Error(t, e.Check("=1+"))
}

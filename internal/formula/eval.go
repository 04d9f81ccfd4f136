package formula

import (
	"math"
	"strconv"
	"strings"

	"sheetsync/internal/cellref"
)

// Value is one of: nil (empty cell), float64, string, bool, *Error, or
// []Value for the flattened contents of a range.
type Value any

type evaluator struct {
	engine   *Engine
	src      Resolver
	visiting map[cellref.Ref]bool
	depth    int

	// formula cells already computed during this evaluation
	done map[cellref.Ref]Value
}

func (ev *evaluator) cell(ref cellref.Ref) Value {
	if v, ok := ev.done[ref]; ok {
		return v
	}
	raw, ok := ev.src.Raw(ref)
	if !ok {
		return newError(CodeRef, ref.ID()+" is outside the sheet")
	}
	if !IsFormula(raw) {
		return literal(raw)
	}
	if ev.visiting[ref] || ev.depth >= ev.engine.maxDepth {
		return newError(CodeCircular, ref.ID())
	}
	ev.visiting[ref] = true
	ev.depth++
	v := ev.formula(raw)
	ev.depth--
	delete(ev.visiting, ref)
	ev.done[ref] = v
	return v
}

func (ev *evaluator) formula(raw string) Value {
	n, err := ev.engine.compile(raw)
	if err != nil {
		return newError(CodeSyntax, err.Error())
	}
	return scalar(n.eval(ev))
}

// literal converts plain cell content to a value: numbers become float64,
// empty content is nil and anything else stays text.
func literal(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if f, ok := parseNumber(s); ok {
		return f
	}
	return raw
}

func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	// ParseFloat accepts "inf" and "nan", which are text in a sheet.
	if c := s[0]; !isDigit(c) && c != '.' && c != '-' && c != '+' {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// scalar collapses a range into a single value. Only 1x1 ranges qualify.
func scalar(v Value) Value {
	if list, ok := v.([]Value); ok {
		if len(list) == 1 {
			return list[0]
		}
		return newError(CodeValue, "range used where a single value is expected")
	}
	return v
}

func toNumber(v Value) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, true
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		if strings.TrimSpace(x) == "" {
			return 0, true
		}
		return parseNumber(strings.TrimSpace(x))
	}
	return 0, false
}

func toText(v Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return formatNumber(x)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return x
	case *Error:
		return string(x.Code)
	}
	return ""
}

func toBool(v Value) (bool, bool) {
	switch x := v.(type) {
	case nil:
		return false, true
	case bool:
		return x, true
	case float64:
		return x != 0, true
	case string:
		switch strings.ToUpper(strings.TrimSpace(x)) {
		case "TRUE":
			return true, true
		case "FALSE":
			return false, true
		}
	}
	return false, false
}

func formatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func render(v Value) string {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return string(CodeNum)
		}
		return formatNumber(x)
	case []Value:
		return render(scalar(x))
	}
	return toText(v)
}

func (n *numberNode) eval(*evaluator) Value { return n.v }

func (n *stringNode) eval(*evaluator) Value { return n.v }

func (n *boolNode) eval(*evaluator) Value { return n.v }

func (n *refNode) eval(ev *evaluator) Value { return ev.cell(n.ref) }

// A grid is anchored at A1, so a span whose far corner resolves lies
// entirely inside it.
func (n *rangeNode) eval(ev *evaluator) Value {
	if _, ok := ev.src.Raw(n.span.End); !ok {
		return newError(CodeRef, n.span.String()+" reaches outside the sheet")
	}
	out := make([]Value, 0, n.span.Rows()*n.span.Cols())
	n.span.Each(func(r cellref.Ref) {
		out = append(out, ev.cell(r))
	})
	return out
}

func (n *nameNode) eval(*evaluator) Value {
	return newError(CodeName, n.name)
}

func (n *unaryNode) eval(ev *evaluator) Value {
	x := scalar(n.x.eval(ev))
	if e, ok := x.(*Error); ok {
		return e
	}
	f, ok := toNumber(x)
	if !ok {
		return newError(CodeValue, "unary "+n.op+" needs a number")
	}
	if n.op == "-" {
		return -f
	}
	return f
}

func (n *percentNode) eval(ev *evaluator) Value {
	x := scalar(n.x.eval(ev))
	if e, ok := x.(*Error); ok {
		return e
	}
	f, ok := toNumber(x)
	if !ok {
		return newError(CodeValue, "% needs a number")
	}
	return f / 100
}

func (n *binaryNode) eval(ev *evaluator) Value {
	l := scalar(n.l.eval(ev))
	if e, ok := l.(*Error); ok {
		return e
	}
	r := scalar(n.r.eval(ev))
	if e, ok := r.(*Error); ok {
		return e
	}

	switch n.op {
	case "&":
		return toText(l) + toText(r)
	case "=", "<>", "<", "<=", ">", ">=":
		c := compare(l, r)
		switch n.op {
		case "=":
			return c == 0
		case "<>":
			return c != 0
		case "<":
			return c < 0
		case "<=":
			return c <= 0
		case ">":
			return c > 0
		}
		return c >= 0
	}

	a, okA := toNumber(l)
	b, okB := toNumber(r)
	if !okA || !okB {
		return newError(CodeValue, "operator "+n.op+" needs numbers")
	}
	switch n.op {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/":
		if b == 0 {
			return newError(CodeDiv0, "")
		}
		return a / b
	case "^":
		res := math.Pow(a, b)
		if math.IsNaN(res) || math.IsInf(res, 0) {
			return newError(CodeNum, "")
		}
		return res
	}
	return newError(CodeSyntax, "unknown operator "+n.op)
}

func (n *callNode) eval(ev *evaluator) Value {
	if n.fn == nil {
		return newError(CodeName, n.name)
	}
	args := make([]Value, len(n.args))
	for i, a := range n.args {
		args[i] = a.eval(ev)
	}
	return n.fn(args)
}

// compare orders values: numbers before text before booleans, text compared
// case-insensitively.
func compare(l, r Value) int {
	rank := func(v Value) int {
		switch v.(type) {
		case nil, float64:
			return 0
		case string:
			return 1
		case bool:
			return 2
		}
		return 3
	}
	if l == nil {
		l = zeroLike(r)
	}
	if r == nil {
		r = zeroLike(l)
	}
	rl, rr := rank(l), rank(r)
	if rl != rr {
		return rl - rr
	}
	switch x := l.(type) {
	case nil:
		return 0
	case float64:
		y := r.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case string:
		return strings.Compare(strings.ToLower(x), strings.ToLower(r.(string)))
	case bool:
		y := r.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	}
	return 0
}

// zeroLike gives the empty-cell equivalent of the other operand's type.
func zeroLike(v Value) Value {
	switch v.(type) {
	case string:
		return ""
	case bool:
		return false
	}
	return float64(0)
}

package formula

import (
	"fmt"
	"strconv"
	"strings"

	"sheetsync/internal/cellref"
)

// node is an AST node. Evaluation is restricted to what the node types below
// can express: literals, references, arithmetic and allow-listed calls.
type node interface {
	eval(ev *evaluator) Value
}

type numberNode struct{ v float64 }

type stringNode struct{ v string }

type boolNode struct{ v bool }

type refNode struct{ ref cellref.Ref }

type rangeNode struct{ span cellref.Span }

type unaryNode struct {
	op string
	x  node
}

type percentNode struct{ x node }

type binaryNode struct {
	op   string
	l, r node
}

type callNode struct {
	name string
	fn   Function
	args []node
}

// nameNode is an identifier that is neither a reference, a boolean nor a known
// function. It is kept as text and fails when evaluated.
type nameNode struct{ name string }

type parser struct {
	toks  []token
	pos   int
	funcs map[string]Function
}

func parse(body string, funcs map[string]Function) (node, error) {
	toks, err := lex(body)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, funcs: funcs}
	n, err := p.comparison()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.typ != tokEOF {
		return nil, fmt.Errorf("unexpected %s", t)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(vals ...string) bool {
	t := p.peek()
	if t.typ != tokOp {
		return false
	}
	for _, v := range vals {
		if t.val == v {
			return true
		}
	}
	return false
}

func (p *parser) comparison() (node, error) {
	l, err := p.concat()
	if err != nil {
		return nil, err
	}
	for p.isOp("=", "<>", "<", "<=", ">", ">=") {
		op := p.next().val
		r, err := p.concat()
		if err != nil {
			return nil, err
		}
		l = &binaryNode{op: op, l: l, r: r}
	}
	return l, nil
}

func (p *parser) concat() (node, error) {
	l, err := p.additive()
	if err != nil {
		return nil, err
	}
	for p.isOp("&") {
		p.next()
		r, err := p.additive()
		if err != nil {
			return nil, err
		}
		l = &binaryNode{op: "&", l: l, r: r}
	}
	return l, nil
}

func (p *parser) additive() (node, error) {
	l, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.isOp("+", "-") {
		op := p.next().val
		r, err := p.term()
		if err != nil {
			return nil, err
		}
		l = &binaryNode{op: op, l: l, r: r}
	}
	return l, nil
}

func (p *parser) term() (node, error) {
	l, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*", "/") {
		op := p.next().val
		r, err := p.unary()
		if err != nil {
			return nil, err
		}
		l = &binaryNode{op: op, l: l, r: r}
	}
	return l, nil
}

func (p *parser) unary() (node, error) {
	if p.isOp("+", "-") {
		op := p.next().val
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: op, x: x}, nil
	}
	return p.power()
}

// power is right associative: 2^3^2 == 2^(3^2).
func (p *parser) power() (node, error) {
	base, err := p.postfix()
	if err != nil {
		return nil, err
	}
	if p.isOp("^") {
		p.next()
		exp, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &binaryNode{op: "^", l: base, r: exp}, nil
	}
	return base, nil
}

func (p *parser) postfix() (node, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for p.isOp("%") {
		p.next()
		x = &percentNode{x: x}
	}
	return x, nil
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch t.typ {
	case tokNumber:
		v, err := strconv.ParseFloat(t.val, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %s", t)
		}
		return &numberNode{v: v}, nil
	case tokString:
		return &stringNode{v: t.val}, nil
	case tokLParen:
		n, err := p.comparison()
		if err != nil {
			return nil, err
		}
		if r := p.next(); r.typ != tokRParen {
			return nil, fmt.Errorf("expected ) but found %s", r)
		}
		return n, nil
	case tokIdent:
		return p.identifier(t)
	}
	return nil, fmt.Errorf("unexpected %s", t)
}

func (p *parser) identifier(t token) (node, error) {
	if p.peek().typ == tokLParen {
		p.next()
		args, err := p.arguments()
		if err != nil {
			return nil, err
		}
		name := strings.ToUpper(t.val)
		return &callNode{name: name, fn: p.funcs[name], args: args}, nil
	}

	upper := strings.ToUpper(t.val)
	switch upper {
	case "TRUE":
		return &boolNode{v: true}, nil
	case "FALSE":
		return &boolNode{v: false}, nil
	}

	ref, err := cellref.ParseRef(strings.ReplaceAll(upper, "$", ""))
	if err != nil {
		return &nameNode{name: t.val}, nil
	}
	if p.peek().typ != tokColon {
		return &refNode{ref: ref}, nil
	}
	p.next()
	end := p.next()
	if end.typ != tokIdent {
		return nil, fmt.Errorf("expected cell after : but found %s", end)
	}
	endRef, err := cellref.ParseRef(strings.ReplaceAll(strings.ToUpper(end.val), "$", ""))
	if err != nil {
		return nil, fmt.Errorf("bad range end %s", end)
	}
	return &rangeNode{span: cellref.NewSpan(ref, endRef)}, nil
}

func (p *parser) arguments() ([]node, error) {
	var args []node
	if p.peek().typ == tokRParen {
		p.next()
		return args, nil
	}
	for {
		arg, err := p.comparison()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		t := p.next()
		switch t.typ {
		case tokComma:
			continue
		case tokRParen:
			return args, nil
		}
		return nil, fmt.Errorf("expected , or ) but found %s", t)
	}
}

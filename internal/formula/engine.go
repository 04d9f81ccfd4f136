// Package formula evaluates spreadsheet formulas against a grid.
//
// Formulas are parsed into a small AST and interpreted; the only callable
// names are the ones in the engine's function table. Every failure, including
// reference cycles, comes back as an error sentinel string such as "#REF!".
package formula

import (
	"fmt"
	"strings"
	"sync"

	"sheetsync/internal/cellref"
)

// Sigil marks raw cell content as a formula.
const Sigil = "="

// DefaultMaxDepth bounds how many formula cells one evaluation may chain
// through before giving up with CodeCircular.
const DefaultMaxDepth = 64

const maxCachedPrograms = 4096

// Resolver supplies raw cell content of a rectangular grid anchored at A1. ok
// is false when ref lies outside the grid.
type Resolver interface {
	Raw(ref cellref.Ref) (raw string, ok bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ref cellref.Ref) (string, bool)

func (f ResolverFunc) Raw(ref cellref.Ref) (string, bool) { return f(ref) }

// Engine holds the function table and a cache of parsed formulas. Only the
// parse tree outlives a call; cell values are shared within one evaluation
// and recomputed on the next.
type Engine struct {
	functions map[string]Function
	maxDepth  int

	mu       sync.Mutex
	programs map[string]node
}

type Option func(*Engine)

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// WithFunction adds or replaces an allow-listed function.
func WithFunction(name string, fn Function) Option {
	return func(e *Engine) {
		e.functions[strings.ToUpper(name)] = fn
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		functions: Builtins(),
		maxDepth:  DefaultMaxDepth,
		programs:  make(map[string]node),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate computes raw against src. Content that is not a formula is
// returned unchanged.
func (e *Engine) Evaluate(raw string, src Resolver) (out string) {
	if !IsFormula(raw) {
		return raw
	}
	defer func() {
		if r := recover(); r != nil {
			out = string(CodeSyntax)
		}
	}()
	ev := e.newEvaluator(src)
	return render(ev.formula(raw))
}

// EvaluateCell computes the value shown in ref. A formula that reaches back
// to ref yields CodeCircular.
func (e *Engine) EvaluateCell(ref cellref.Ref, src Resolver) (out string) {
	raw, ok := src.Raw(ref)
	if !ok {
		return string(CodeRef)
	}
	if !IsFormula(raw) {
		return raw
	}
	defer func() {
		if r := recover(); r != nil {
			out = string(CodeSyntax)
		}
	}()
	ev := e.newEvaluator(src)
	return render(ev.cell(ref))
}

// Check parses raw without evaluating it.
func (e *Engine) Check(raw string) error {
	if !IsFormula(raw) {
		return nil
	}
	_, err := e.compile(raw)
	return err
}

func (e *Engine) newEvaluator(src Resolver) *evaluator {
	return &evaluator{
		engine:   e,
		src:      src,
		visiting: make(map[cellref.Ref]bool),
		done:     make(map[cellref.Ref]Value),
	}
}

func (e *Engine) compile(raw string) (node, error) {
	e.mu.Lock()
	n, ok := e.programs[raw]
	e.mu.Unlock()
	if ok {
		return n, nil
	}

	n, err := parse(strings.TrimPrefix(raw, Sigil), e.functions)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", raw, err)
	}

	e.mu.Lock()
	if len(e.programs) >= maxCachedPrograms {
		clear(e.programs)
	}
	e.programs[raw] = n
	e.mu.Unlock()
	return n, nil
}

package formula

import (
	"fmt"
	"strings"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokNumber
	tokString
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokColon
)

type token struct {
	typ tokenType
	val string
	pos int
}

func (t token) String() string {
	if t.typ == tokEOF {
		return "end of formula"
	}
	return fmt.Sprintf("%q at %d", t.val, t.pos)
}

// lex splits a formula body (without the leading sigil) into tokens.
func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		ch := input[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case isDigit(ch) || (ch == '.' && i+1 < len(input) && isDigit(input[i+1])):
			start := i
			i = scanNumber(input, i)
			toks = append(toks, token{typ: tokNumber, val: input[start:i], pos: start})
		case ch == '"':
			start := i
			var sb strings.Builder
			i++
			closed := false
			for i < len(input) {
				if input[i] == '"' {
					if i+1 < len(input) && input[i+1] == '"' {
						sb.WriteByte('"')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteByte(input[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unclosed string literal at %d", start)
			}
			toks = append(toks, token{typ: tokString, val: sb.String(), pos: start})
		case isIdentStart(ch):
			start := i
			for i < len(input) && isIdentPart(input[i]) {
				i++
			}
			toks = append(toks, token{typ: tokIdent, val: input[start:i], pos: start})
		case ch == '(':
			toks = append(toks, token{typ: tokLParen, val: "(", pos: i})
			i++
		case ch == ')':
			toks = append(toks, token{typ: tokRParen, val: ")", pos: i})
			i++
		case ch == ',' || ch == ';':
			toks = append(toks, token{typ: tokComma, val: ",", pos: i})
			i++
		case ch == ':':
			toks = append(toks, token{typ: tokColon, val: ":", pos: i})
			i++
		case ch == '<' || ch == '>':
			start := i
			i++
			if i < len(input) && (input[i] == '=' || (ch == '<' && input[i] == '>')) {
				i++
			}
			toks = append(toks, token{typ: tokOp, val: input[start:i], pos: start})
		case strings.IndexByte("+-*/^&%=", ch) >= 0:
			toks = append(toks, token{typ: tokOp, val: string(ch), pos: i})
			i++
		default:
			return nil, fmt.Errorf("unexpected character %q at %d", ch, i)
		}
	}
	toks = append(toks, token{typ: tokEOF, pos: len(input)})
	return toks, nil
}

func scanNumber(input string, i int) int {
	for i < len(input) && isDigit(input[i]) {
		i++
	}
	if i < len(input) && input[i] == '.' {
		i++
		for i < len(input) && isDigit(input[i]) {
			i++
		}
	}
	if i < len(input) && (input[i] == 'e' || input[i] == 'E') {
		j := i + 1
		if j < len(input) && (input[j] == '+' || input[j] == '-') {
			j++
		}
		if j < len(input) && isDigit(input[j]) {
			i = j
			for i < len(input) && isDigit(input[i]) {
				i++
			}
		}
	}
	return i
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isIdentStart(ch byte) bool {
	return (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') || ch == '_' || ch == '$'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '.'
}

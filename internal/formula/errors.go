package formula

import "strings"

// Code is an in-band error sentinel. Evaluation never returns a Go error to
// its caller; failures are rendered as one of these strings instead.
type Code string

const (
	CodeSyntax   Code = "#ERROR!"
	CodeRef      Code = "#REF!"
	CodeDiv0     Code = "#DIV/0!"
	CodeValue    Code = "#VALUE!"
	CodeName     Code = "#NAME?"
	CodeNum      Code = "#NUM!"
	CodeCircular Code = "#CIRCULAR!"
)

var codes = []Code{CodeSyntax, CodeRef, CodeDiv0, CodeValue, CodeName, CodeNum, CodeCircular}

// Error is the value produced by a failed sub-expression. It travels through
// the evaluator like any other value until it reaches the top.
type Error struct {
	Code   Code
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return string(e.Code) + " " + e.Detail
}

func newError(code Code, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}

// IsSentinel reports whether s is one of the error sentinels.
func IsSentinel(s string) bool {
	for _, c := range codes {
		if s == string(c) {
			return true
		}
	}
	return false
}

// IsFormula reports whether raw cell content should be evaluated.
func IsFormula(raw string) bool {
	return strings.HasPrefix(raw, Sigil)
}

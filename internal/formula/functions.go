package formula

import (
	"math"
	"strings"
)

// Function is an allow-listed formula function. Range arguments arrive as
// []Value; errors travel as *Error values.
type Function func(args []Value) Value

// Builtins returns the default function table keyed by upper case name.
func Builtins() map[string]Function {
	return map[string]Function{
		"SUM":         fnSum,
		"AVERAGE":     fnAverage,
		"MIN":         fnMin,
		"MAX":         fnMax,
		"COUNT":       fnCount,
		"COUNTA":      fnCountA,
		"PRODUCT":     fnProduct,
		"ABS":         unaryMath(math.Abs),
		"FLOOR":       unaryMath(math.Floor),
		"CEILING":     unaryMath(math.Ceil),
		"SQRT":        fnSqrt,
		"ROUND":       fnRound,
		"POWER":       fnPower,
		"MOD":         fnMod,
		"IF":          fnIf,
		"AND":         fnAnd,
		"OR":          fnOr,
		"NOT":         fnNot,
		"CONCAT":      fnConcat,
		"CONCATENATE": fnConcat,
		"LEN":         textFn(func(s string) Value { return float64(len([]rune(s))) }),
		"UPPER":       textFn(func(s string) Value { return strings.ToUpper(s) }),
		"LOWER":       textFn(func(s string) Value { return strings.ToLower(s) }),
		"TRIM":        textFn(func(s string) Value { return strings.Join(strings.Fields(s), " ") }),
	}
}

// flatten expands range arguments in order and stops at the first error.
func flatten(args []Value) ([]Value, *Error) {
	var out []Value
	for _, a := range args {
		if list, ok := a.([]Value); ok {
			for _, v := range list {
				if e, ok := v.(*Error); ok {
					return nil, e
				}
				out = append(out, v)
			}
			continue
		}
		if e, ok := a.(*Error); ok {
			return nil, e
		}
		out = append(out, a)
	}
	return out, nil
}

// numbers coerces the non-empty flattened arguments, non-numeric text
// counting as 0.
func numbers(args []Value) ([]float64, *Error) {
	vals, err := flatten(args)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if v == nil {
			continue
		}
		f, ok := toNumber(v)
		if !ok {
			f = 0
		}
		out = append(out, f)
	}
	return out, nil
}

func fnSum(args []Value) Value {
	nums, err := numbers(args)
	if err != nil {
		return err
	}
	total := 0.0
	for _, f := range nums {
		total += f
	}
	return total
}

func fnAverage(args []Value) Value {
	nums, err := numbers(args)
	if err != nil {
		return err
	}
	if len(nums) == 0 {
		return newError(CodeDiv0, "AVERAGE of nothing")
	}
	total := 0.0
	for _, f := range nums {
		total += f
	}
	return total / float64(len(nums))
}

func fnMin(args []Value) Value {
	nums, err := numbers(args)
	if err != nil {
		return err
	}
	if len(nums) == 0 {
		return 0.0
	}
	m := nums[0]
	for _, f := range nums[1:] {
		m = math.Min(m, f)
	}
	return m
}

func fnMax(args []Value) Value {
	nums, err := numbers(args)
	if err != nil {
		return err
	}
	if len(nums) == 0 {
		return 0.0
	}
	m := nums[0]
	for _, f := range nums[1:] {
		m = math.Max(m, f)
	}
	return m
}

func fnProduct(args []Value) Value {
	nums, err := numbers(args)
	if err != nil {
		return err
	}
	if len(nums) == 0 {
		return 0.0
	}
	p := 1.0
	for _, f := range nums {
		p *= f
	}
	return p
}

func fnCount(args []Value) Value {
	vals, err := flatten(args)
	if err != nil {
		return err
	}
	n := 0
	for _, v := range vals {
		if _, ok := v.(float64); ok {
			n++
		}
	}
	return float64(n)
}

func fnCountA(args []Value) Value {
	vals, err := flatten(args)
	if err != nil {
		return err
	}
	n := 0
	for _, v := range vals {
		if v != nil {
			n++
		}
	}
	return float64(n)
}

// numberArgs resolves exactly want scalar numeric arguments.
func numberArgs(args []Value, want int) ([]float64, *Error) {
	if len(args) != want {
		return nil, newError(CodeValue, "wrong number of arguments")
	}
	out := make([]float64, want)
	for i, a := range args {
		v := scalar(a)
		if e, ok := v.(*Error); ok {
			return nil, e
		}
		f, ok := toNumber(v)
		if !ok {
			return nil, newError(CodeValue, "expected a number")
		}
		out[i] = f
	}
	return out, nil
}

func unaryMath(fn func(float64) float64) Function {
	return func(args []Value) Value {
		nums, err := numberArgs(args, 1)
		if err != nil {
			return err
		}
		return fn(nums[0])
	}
}

func fnSqrt(args []Value) Value {
	nums, err := numberArgs(args, 1)
	if err != nil {
		return err
	}
	if nums[0] < 0 {
		return newError(CodeNum, "SQRT of a negative number")
	}
	return math.Sqrt(nums[0])
}

func fnRound(args []Value) Value {
	if len(args) == 1 {
		args = append(args, 0.0)
	}
	nums, err := numberArgs(args, 2)
	if err != nil {
		return err
	}
	scale := math.Pow(10, math.Trunc(nums[1]))
	return math.Round(nums[0]*scale) / scale
}

func fnPower(args []Value) Value {
	nums, err := numberArgs(args, 2)
	if err != nil {
		return err
	}
	res := math.Pow(nums[0], nums[1])
	if math.IsNaN(res) || math.IsInf(res, 0) {
		return newError(CodeNum, "")
	}
	return res
}

func fnMod(args []Value) Value {
	nums, err := numberArgs(args, 2)
	if err != nil {
		return err
	}
	if nums[1] == 0 {
		return newError(CodeDiv0, "")
	}
	return nums[0] - nums[1]*math.Floor(nums[0]/nums[1])
}

func fnIf(args []Value) Value {
	if len(args) < 2 || len(args) > 3 {
		return newError(CodeValue, "IF takes 2 or 3 arguments")
	}
	cond := scalar(args[0])
	if e, ok := cond.(*Error); ok {
		return e
	}
	b, ok := toBool(cond)
	if !ok {
		return newError(CodeValue, "IF condition is not a boolean")
	}
	if b {
		return scalar(args[1])
	}
	if len(args) == 3 {
		return scalar(args[2])
	}
	return false
}

func logical(args []Value, all bool) Value {
	vals, err := flatten(args)
	if err != nil {
		return err
	}
	seen := false
	result := all
	for _, v := range vals {
		if v == nil {
			continue
		}
		b, ok := toBool(v)
		if !ok {
			continue
		}
		seen = true
		if all {
			result = result && b
		} else {
			result = result || b
		}
	}
	if !seen {
		return newError(CodeValue, "no logical values")
	}
	return result
}

func fnAnd(args []Value) Value { return logical(args, true) }

func fnOr(args []Value) Value { return logical(args, false) }

func fnNot(args []Value) Value {
	if len(args) != 1 {
		return newError(CodeValue, "NOT takes 1 argument")
	}
	v := scalar(args[0])
	if e, ok := v.(*Error); ok {
		return e
	}
	b, ok := toBool(v)
	if !ok {
		return newError(CodeValue, "NOT needs a boolean")
	}
	return !b
}

func fnConcat(args []Value) Value {
	vals, err := flatten(args)
	if err != nil {
		return err
	}
	var sb strings.Builder
	for _, v := range vals {
		sb.WriteString(toText(v))
	}
	return sb.String()
}

func textFn(fn func(string) Value) Function {
	return func(args []Value) Value {
		if len(args) != 1 {
			return newError(CodeValue, "wrong number of arguments")
		}
		v := scalar(args[0])
		if e, ok := v.(*Error); ok {
			return e
		}
		return fn(toText(v))
	}
}

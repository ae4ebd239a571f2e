// Package formula holds the small expression trees protocols use to describe
// derived quantities. An expression is evaluated per specimen against named
// operands and can be printed in spreadsheet syntax by a renderer that knows
// where each operand lives.
package formula

import (
	"math"
	"strconv"
	"strings"
)

// Env resolves a named operand for one specimen. ok is false when the
// operand is missing.
type Env func(name string) (v float64, ok bool)

// Expr is a node of a formula.
type Expr interface {
	// Eval returns the value and false when any operand is missing or the
	// result is not a finite number.
	Eval(env Env) (float64, bool)
	// Operands lists referenced names in first-use order without duplicates.
	Operands() []string
	// Format prints the expression, mapping each operand through ref.
	Format(ref func(name string) string) string
}

type reference string

type constant float64

type product []Expr

type quotient struct{ num, den Expr }

type power struct {
	base Expr
	exp  int
}

// Ref names another quantity or dimension of the same specimen.
func Ref(name string) Expr { return reference(name) }

// Const is a literal number, e.g. a unit conversion factor.
func Const(v float64) Expr { return constant(v) }

// Mul multiplies all factors.
func Mul(factors ...Expr) Expr { return product(factors) }

// Div divides num by den.
func Div(num, den Expr) Expr { return quotient{num: num, den: den} }

// Pow raises base to an integer exponent.
func Pow(base Expr, exp int) Expr { return power{base: base, exp: exp} }

func (r reference) Eval(env Env) (float64, bool) {
	v, ok := env(string(r))
	if !ok || !finite(v) {
		return 0, false
	}
	return v, true
}

func (r reference) Operands() []string { return []string{string(r)} }

func (r reference) Format(ref func(string) string) string { return ref(string(r)) }

func (c constant) Eval(Env) (float64, bool) { return float64(c), finite(float64(c)) }

func (c constant) Operands() []string { return nil }

func (c constant) Format(func(string) string) string {
	return strconv.FormatFloat(float64(c), 'f', -1, 64)
}

func (p product) Eval(env Env) (float64, bool) {
	out := 1.0
	for _, f := range p {
		v, ok := f.Eval(env)
		if !ok {
			return 0, false
		}
		out *= v
	}
	return out, finite(out)
}

func (p product) Operands() []string {
	var names []string
	for _, f := range p {
		names = appendUnique(names, f.Operands()...)
	}
	return names
}

func (p product) Format(ref func(string) string) string {
	parts := make([]string, len(p))
	for i, f := range p {
		parts[i] = group(f, ref)
	}
	return strings.Join(parts, "*")
}

func (q quotient) Eval(env Env) (float64, bool) {
	n, ok := q.num.Eval(env)
	if !ok {
		return 0, false
	}
	d, ok := q.den.Eval(env)
	if !ok || d == 0 {
		return 0, false
	}
	out := n / d
	return out, finite(out)
}

func (q quotient) Operands() []string {
	return appendUnique(q.num.Operands(), q.den.Operands()...)
}

func (q quotient) Format(ref func(string) string) string {
	return group(q.num, ref) + "/" + group(q.den, ref)
}

func (p power) Eval(env Env) (float64, bool) {
	b, ok := p.base.Eval(env)
	if !ok {
		return 0, false
	}
	out := math.Pow(b, float64(p.exp))
	return out, finite(out)
}

func (p power) Operands() []string { return p.base.Operands() }

func (p power) Format(ref func(string) string) string {
	return group(p.base, ref) + "^" + strconv.Itoa(p.exp)
}

// group parenthesises compound sub-expressions.
func group(e Expr, ref func(string) string) string {
	switch e.(type) {
	case reference, constant:
		return e.Format(ref)
	}
	return "(" + e.Format(ref) + ")"
}

func appendUnique(dst []string, names ...string) []string {
	for _, n := range names {
		seen := false
		for _, d := range dst {
			if d == n {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, n)
		}
	}
	return dst
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

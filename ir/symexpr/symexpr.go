// Copyright 2025 The FlowIR Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package symexpr represents symbolic integer expressions used for
// container shapes, strides, offsets and memlet subset bounds.
//
// Expressions are kept as text so that run-time symbols flow through
// the graph unevaluated. Integer arithmetic folds eagerly; declared
// constant symbols substitute their value before folding.
package symexpr

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr is a symbolic integer expression.
type Expr string

// Int returns a literal integer expression.
func Int(v int64) Expr {
	return Expr(strconv.FormatInt(v, 10))
}

// IntValue returns the literal value of the expression, if it is one.
func (e Expr) IntValue() (int64, bool) {
	v, err := strconv.ParseInt(string(e), 10, 64)
	return v, err == nil
}

// String returns the expression text.
func (e Expr) String() string { return string(e) }

// IsOne returns true for the literal expression 1.
func (e Expr) IsOne() bool {
	v, ok := e.IntValue()
	return ok && v == 1
}

func needsParens(e Expr) bool {
	return strings.ContainsAny(string(e), "+- ")
}

func wrap(e Expr) string {
	if needsParens(e) {
		return "(" + string(e) + ")"
	}
	return string(e)
}

// Mul returns the product of two expressions, folding literals and
// dropping unit factors.
func Mul(a, b Expr) Expr {
	if av, ok := a.IntValue(); ok {
		if bv, bok := b.IntValue(); bok {
			return Int(av * bv)
		}
		if av == 1 {
			return b
		}
	}
	if b.IsOne() {
		return a
	}
	return Expr(wrap(a) + "*" + wrap(b))
}

// Add returns the sum of two expressions, folding literals and
// dropping zero terms.
func Add(a, b Expr) Expr {
	if av, ok := a.IntValue(); ok {
		if bv, bok := b.IntValue(); bok {
			return Int(av + bv)
		}
		if av == 0 {
			return b
		}
	}
	if bv, ok := b.IntValue(); ok {
		if bv == 0 {
			return a
		}
		if bv < 0 {
			return Expr(string(a) + " - " + Int(-bv).String())
		}
	}
	return Expr(string(a) + " + " + string(b))
}

// Sub returns the difference of two expressions, folding literals.
func Sub(a, b Expr) Expr {
	if bv, ok := b.IntValue(); ok {
		return Add(a, Int(-bv))
	}
	return Expr(string(a) + " - " + wrap(b))
}

// Strides returns the row-major prefix products of the sizes:
// the stride of dimension i is the product of all earlier sizes.
func Strides(sizes []Expr) []Expr {
	strides := make([]Expr, len(sizes))
	acc := Int(1)
	for i, size := range sizes {
		strides[i] = acc
		acc = Mul(acc, size)
	}
	return strides
}

// Fold substitutes known constant symbols into the expression and
// evaluates it when the result is fully literal. Expressions that still
// reference run-time symbols are returned with the substitutions applied.
func Fold(e Expr, consts func(string) (int64, bool)) Expr {
	if consts == nil {
		consts = func(string) (int64, bool) { return 0, false }
	}
	p := parser{src: string(e), consts: consts}
	folded, ok := p.parseSum()
	p.skipSpace()
	if !ok || p.pos != len(p.src) {
		// Not an arithmetic expression this package understands:
		// leave it untouched.
		return e
	}
	return folded
}

// Eval evaluates the expression against a constant table, returning
// false when the expression still references unknown symbols.
func Eval(e Expr, consts func(string) (int64, bool)) (int64, bool) {
	return Fold(e, consts).IntValue()
}

// parser is a minimal recursive-descent parser over +, -, *, /,
// parentheses, integer literals and identifiers.
type parser struct {
	src    string
	pos    int
	consts func(string) (int64, bool)
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *parser) parseSum() (Expr, bool) {
	left, ok := p.parseProduct()
	if !ok {
		return "", false
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return left, true
		}
		op := p.src[p.pos]
		if op != '+' && op != '-' {
			return left, true
		}
		p.pos++
		right, rok := p.parseProduct()
		if !rok {
			return "", false
		}
		if op == '+' {
			left = Add(left, right)
		} else {
			left = Sub(left, right)
		}
	}
}

func (p *parser) parseProduct() (Expr, bool) {
	left, ok := p.parseAtom()
	if !ok {
		return "", false
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return left, true
		}
		op := p.src[p.pos]
		if op != '*' && op != '/' {
			return left, true
		}
		p.pos++
		right, rok := p.parseAtom()
		if !rok {
			return "", false
		}
		if op == '*' {
			left = Mul(left, right)
			continue
		}
		lv, lok := left.IntValue()
		rv, rok2 := right.IntValue()
		if lok && rok2 && rv != 0 {
			left = Int(lv / rv)
		} else {
			left = Expr(wrap(left) + "/" + wrap(right))
		}
	}
}

func (p *parser) parseAtom() (Expr, bool) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return "", false
	}
	c := p.src[p.pos]
	switch {
	case c == '(':
		p.pos++
		inner, ok := p.parseSum()
		if !ok {
			return "", false
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ')' {
			return "", false
		}
		p.pos++
		return inner, true
	case c == '-':
		p.pos++
		inner, ok := p.parseAtom()
		if !ok {
			return "", false
		}
		if v, isInt := inner.IntValue(); isInt {
			return Int(-v), true
		}
		return Expr("-" + wrap(inner)), true
	case c >= '0' && c <= '9':
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		return Expr(p.src[start:p.pos]), true
	case isIdentStart(c):
		start := p.pos
		for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
			p.pos++
		}
		name := p.src[start:p.pos]
		if v, known := p.consts(name); known {
			return Int(v), true
		}
		return Expr(name), true
	}
	return "", false
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// MustInt returns the literal value of the expression, panicking when it
// is symbolic. Only for tests and internal invariants.
func MustInt(e Expr) int64 {
	v, ok := e.IntValue()
	if !ok {
		panic(fmt.Sprintf("expression %q is not a literal", e))
	}
	return v
}

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

package graphexec

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// evaluator computes the textual expressions carried by guard
// conditions, interstate assignments and tasklet bodies. Values are
// float64; comparisons and logical operators yield 0 or 1.
type evaluator struct {
	// lookup resolves a bare identifier.
	lookup func(name string) (float64, bool)
	// index resolves a subscripted identifier.
	index func(name string, indices []float64) (float64, bool)
}

type evalParser struct {
	ev  *evaluator
	src string
	pos int
}

func (e *evaluator) eval(src string) (float64, error) {
	p := &evalParser{ev: e, src: src}
	v, err := p.parseOr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return 0, errors.Errorf("trailing input in %q at %d", p.src, p.pos)
	}
	return v, nil
}

func truthy(v float64) bool { return v != 0 }

func boolVal(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (p *evalParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *evalParser) word() string {
	start := p.pos
	for p.pos < len(p.src) && isIdentPart(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *evalParser) peekWord() string {
	save := p.pos
	p.skipSpace()
	if p.pos >= len(p.src) || !isIdentStart(p.src[p.pos]) {
		p.pos = save
		return ""
	}
	w := p.word()
	p.pos = save
	return w
}

func (p *evalParser) acceptWord(w string) bool {
	if p.peekWord() != w {
		return false
	}
	p.skipSpace()
	p.word()
	return true
}

func (p *evalParser) parseOr() (float64, error) {
	left, err := p.parseAnd()
	if err != nil {
		return 0, err
	}
	for p.acceptWord("or") {
		right, err := p.parseAnd()
		if err != nil {
			return 0, err
		}
		left = boolVal(truthy(left) || truthy(right))
	}
	return left, nil
}

func (p *evalParser) parseAnd() (float64, error) {
	left, err := p.parseNot()
	if err != nil {
		return 0, err
	}
	for p.acceptWord("and") {
		right, err := p.parseNot()
		if err != nil {
			return 0, err
		}
		left = boolVal(truthy(left) && truthy(right))
	}
	return left, nil
}

func (p *evalParser) parseNot() (float64, error) {
	if p.acceptWord("not") {
		v, err := p.parseNot()
		if err != nil {
			return 0, err
		}
		return boolVal(!truthy(v)), nil
	}
	return p.parseComparison()
}

var comparisonOps = []string{"==", "!=", "<=", ">=", "<", ">"}

func (p *evalParser) parseComparison() (float64, error) {
	left, err := p.parseSum()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	for _, op := range comparisonOps {
		if !strings.HasPrefix(p.src[p.pos:], op) {
			continue
		}
		p.pos += len(op)
		right, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		switch op {
		case "==":
			return boolVal(left == right), nil
		case "!=":
			return boolVal(left != right), nil
		case "<=":
			return boolVal(left <= right), nil
		case ">=":
			return boolVal(left >= right), nil
		case "<":
			return boolVal(left < right), nil
		case ">":
			return boolVal(left > right), nil
		}
	}
	return left, nil
}

func (p *evalParser) parseSum() (float64, error) {
	left, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return left, nil
		}
		op := p.src[p.pos]
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseProduct()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *evalParser) parseProduct() (float64, error) {
	left, err := p.parsePower()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return left, nil
		}
		op := p.src[p.pos]
		if op == '*' && strings.HasPrefix(p.src[p.pos:], "**") {
			return left, nil
		}
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			left *= right
		} else {
			left /= right
		}
	}
}

func (p *evalParser) parsePower() (float64, error) {
	left, err := p.parseAtom()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], "**") {
		p.pos += 2
		right, err := p.parsePower()
		if err != nil {
			return 0, err
		}
		return math.Pow(left, right), nil
	}
	return left, nil
}

// intrinsicFns evaluates the scalar math intrinsics that appear
// verbatim in tasklet bodies.
func intrinsicFns(name string, args []float64) (float64, bool) {
	one := func(f func(float64) float64) (float64, bool) {
		if len(args) != 1 {
			return 0, false
		}
		return f(args[0]), true
	}
	switch name {
	case "sqrt":
		return one(math.Sqrt)
	case "exp":
		return one(math.Exp)
	case "log":
		return one(math.Log)
	case "abs":
		return one(math.Abs)
	case "tanh":
		return one(math.Tanh)
	case "sign":
		return one(func(v float64) float64 {
			if v < 0 {
				return -1
			}
			return 1
		})
	case "min":
		if len(args) != 2 {
			return 0, false
		}
		return math.Min(args[0], args[1]), true
	case "max":
		if len(args) != 2 {
			return 0, false
		}
		return math.Max(args[0], args[1]), true
	case "mod":
		if len(args) != 2 {
			return 0, false
		}
		return math.Mod(args[0], args[1]), true
	case "pow":
		if len(args) != 2 {
			return 0, false
		}
		return math.Pow(args[0], args[1]), true
	}
	return 0, false
}

func (p *evalParser) parseAtom() (float64, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0, errors.Errorf("unexpected end of %q", p.src)
	}
	c := p.src[p.pos]
	switch {
	case c == '(':
		p.pos++
		v, err := p.parseOr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ')' {
			return 0, errors.Errorf("missing ) in %q", p.src)
		}
		p.pos++
		return v, nil
	case c == '-':
		p.pos++
		v, err := p.parseAtom()
		if err != nil {
			return 0, err
		}
		return -v, nil
	case c >= '0' && c <= '9':
		start := p.pos
		for p.pos < len(p.src) && (p.src[p.pos] >= '0' && p.src[p.pos] <= '9' || p.src[p.pos] == '.' || p.src[p.pos] == 'e' ||
			(p.src[p.pos] == '-' || p.src[p.pos] == '+') && p.pos > start && p.src[p.pos-1] == 'e') {
			p.pos++
		}
		v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
		if err != nil {
			return 0, errors.Wrapf(err, "bad number in %q", p.src)
		}
		return v, nil
	case isIdentStart(c):
		name := p.word()
		switch name {
		case "True":
			return 1, nil
		case "False":
			return 0, nil
		}
		p.skipSpace()
		if p.pos < len(p.src) && p.src[p.pos] == '(' {
			p.pos++
			var args []float64
			for {
				v, err := p.parseOr()
				if err != nil {
					return 0, err
				}
				args = append(args, v)
				p.skipSpace()
				if p.pos < len(p.src) && p.src[p.pos] == ',' {
					p.pos++
					continue
				}
				break
			}
			if p.pos >= len(p.src) || p.src[p.pos] != ')' {
				return 0, errors.Errorf("missing ) after %s in %q", name, p.src)
			}
			p.pos++
			if v, ok := intrinsicFns(name, args); ok {
				return v, nil
			}
			if p.ev.index != nil {
				if v, ok := p.ev.index(name, args); ok {
					return v, nil
				}
			}
			return 0, errors.Errorf("cannot evaluate %s(...) in %q", name, p.src)
		}
		if p.ev.lookup != nil {
			if v, ok := p.ev.lookup(name); ok {
				return v, nil
			}
		}
		return 0, errors.Errorf("unknown name %s in %q", name, p.src)
	}
	return 0, errors.Errorf("unexpected %q in %q", c, p.src)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

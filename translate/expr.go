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

package translate

import (
	"fmt"
	"strings"

	"github.com/flowir-org/flowir/ast"
)

// exprWriter renders expression trees to the textual form used in guard
// conditions, interstate assignments and tasklet bodies.
//
// rename substitutes identifiers (context binding); ports substitutes
// whole variable occurrences by tasklet port names, identified by node
// pointer. An occurrence of a subscripted variable with a port loses
// its index list: the indices move into the memlet subset.
type exprWriter struct {
	sb     strings.Builder
	rename func(*ast.Name) (string, bool)
	ports  map[*ast.Name]string
}

func (w *exprWriter) name(n *ast.Name) {
	if w.ports != nil {
		if port, ok := w.ports[n]; ok {
			w.sb.WriteString(port)
			return
		}
	}
	if w.rename != nil {
		if to, ok := w.rename(n); ok {
			w.sb.WriteString(to)
			return
		}
	}
	w.sb.WriteString(n.Ident)
}

func (w *exprWriter) expr(e ast.Expr, nested bool) {
	switch e := e.(type) {
	case *ast.Name:
		w.name(e)
	case *ast.ArraySubscript:
		if w.ports != nil {
			if port, ok := w.ports[e.Name]; ok {
				w.sb.WriteString(port)
				return
			}
		}
		w.name(e.Name)
		w.sb.WriteByte('(')
		for i, idx := range e.Indices {
			if i > 0 {
				w.sb.WriteString(", ")
			}
			w.expr(idx, false)
		}
		w.sb.WriteByte(')')
	case *ast.BinOp:
		if nested {
			w.sb.WriteByte('(')
		}
		w.expr(e.Left, true)
		w.sb.WriteByte(' ')
		w.sb.WriteString(e.Op)
		w.sb.WriteByte(' ')
		w.expr(e.Right, true)
		if nested {
			w.sb.WriteByte(')')
		}
	case *ast.UnaryOp:
		w.sb.WriteString(e.Op)
		if e.Op == "not" {
			w.sb.WriteByte(' ')
		}
		w.expr(e.Expr, true)
	case *ast.Call:
		w.name(e.Name)
		w.sb.WriteByte('(')
		for i, arg := range e.Args {
			if i > 0 {
				w.sb.WriteString(", ")
			}
			w.expr(arg, false)
		}
		w.sb.WriteByte(')')
	case *ast.RangeAll:
		w.sb.WriteByte(':')
	case *ast.RangeIndex:
		w.expr(e.Lo, false)
		w.sb.WriteByte(':')
		w.expr(e.Hi, false)
	case *ast.IntLit:
		w.sb.WriteString(e.Value)
	case *ast.RealLit:
		w.sb.WriteString(e.Value)
	case *ast.BoolLit:
		if e.Value {
			w.sb.WriteString("True")
		} else {
			w.sb.WriteString("False")
		}
	case *ast.StringLit:
		fmt.Fprintf(&w.sb, "%q", e.Value)
	default:
		fmt.Fprintf(&w.sb, "<%T>", e)
	}
}

// exprText renders an expression with source names untouched. Shape
// expressions are rendered this way: they reference run-time symbols,
// which are never renamed.
func exprText(e ast.Expr) string {
	w := &exprWriter{}
	w.expr(e, false)
	return w.sb.String()
}

// processedText renders an expression with container identifiers
// substituted by their graph-unique names. Symbols keep their source
// name. Used for guard conditions, interstate assignments and memlet
// subset indices.
func (ctx *context) processedText(e ast.Expr) string {
	w := &exprWriter{rename: func(n *ast.Name) (string, bool) {
		if ctx.graph.HasSymbol(n.Ident) {
			return "", false
		}
		return ctx.lookupInContext(n.Ident)
	}}
	w.expr(e, false)
	return w.sb.String()
}

// negate wraps a rendered condition in a syntactic negation. The
// negated text is built from the condition text, never re-derived from
// the tree, so both guards always agree.
func negate(cond string) string {
	return "not (" + cond + ")"
}

// taskletText renders an assignment statement as a tasklet body: every
// variable occurrence listed in ports becomes its port name, indices
// of ported occurrences are dropped, and everything else keeps its
// source name.
func taskletText(node *ast.BinOp, ports map[*ast.Name]string) string {
	w := &exprWriter{ports: ports}
	w.expr(node.Left, false)
	w.sb.WriteString(" = ")
	w.expr(node.Right, false)
	return w.sb.String()
}

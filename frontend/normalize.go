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

package frontend

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"

	"github.com/flowir-org/flowir/ast"
	"github.com/flowir-org/flowir/translate"
)

// normalizer converts the parse tree into the statement-level tree.
// It needs the set of known procedure names to tell a function
// reference apart from an array subscript.
type normalizer struct {
	procs map[string]bool
}

func pos(p lexer.Position) ast.Pos {
	return ast.Pos{File: p.Filename, Line: p.Line, Col: p.Column}
}

// ProcedureNames returns the names of every procedure defined in a
// parsed file.
func ProcedureNames(f *File) []string {
	var names []string
	add := func(procs []*ProcDecl) {
		for _, p := range procs {
			if p.Subroutine != nil {
				names = append(names, p.Subroutine.Name)
			}
			if p.Function != nil {
				names = append(names, p.Function.Name)
			}
		}
	}
	for _, u := range f.Units {
		switch {
		case u.Module != nil:
			add(u.Module.Procs)
		case u.Subroutine != nil:
			names = append(names, u.Subroutine.Name)
		case u.Function != nil:
			names = append(names, u.Function.Name)
		}
	}
	return names
}

// Normalize converts a parsed file into a program tree. known lists
// procedure names defined outside this file; procedures of the file
// itself are always known.
func Normalize(f *File, known []string) (*ast.Program, error) {
	n := &normalizer{procs: map[string]bool{}}
	for _, name := range known {
		n.procs[name] = true
	}
	for _, name := range ProcedureNames(f) {
		n.procs[name] = true
	}
	prog := &ast.Program{}
	for _, u := range f.Units {
		switch {
		case u.Module != nil:
			mod, err := n.module(u.Module)
			if err != nil {
				return nil, err
			}
			prog.Modules = append(prog.Modules, mod)
		case u.Program != nil:
			if prog.Main != nil {
				return nil, errors.Errorf("%s: more than one main program", u.Program.Pos)
			}
			main, err := n.mainProgram(u.Program)
			if err != nil {
				return nil, err
			}
			prog.Main = main
		case u.Subroutine != nil:
			proc, err := n.subroutine(u.Subroutine)
			if err != nil {
				return nil, err
			}
			prog.Subroutines = append(prog.Subroutines, proc)
		case u.Function != nil:
			proc, err := n.function(u.Function)
			if err != nil {
				return nil, err
			}
			prog.Functions = append(prog.Functions, proc)
		}
	}
	return prog, nil
}

func (n *normalizer) module(m *ModuleDecl) (*ast.Module, error) {
	spec, err := n.spec(m.Spec)
	if err != nil {
		return nil, err
	}
	mod := &ast.Module{Src: pos(m.Pos), Name: m.Name, Spec: spec}
	for _, p := range m.Procs {
		if p.Subroutine != nil {
			proc, err := n.subroutine(p.Subroutine)
			if err != nil {
				return nil, err
			}
			mod.Subroutines = append(mod.Subroutines, proc)
		}
		if p.Function != nil {
			proc, err := n.function(p.Function)
			if err != nil {
				return nil, err
			}
			mod.Functions = append(mod.Functions, proc)
		}
	}
	return mod, nil
}

func (n *normalizer) mainProgram(p *ProgramDecl) (*ast.MainProgram, error) {
	spec, err := n.spec(p.Spec)
	if err != nil {
		return nil, err
	}
	body, err := n.block(pos(p.Pos), p.Body)
	if err != nil {
		return nil, err
	}
	return &ast.MainProgram{Src: pos(p.Pos), Name: p.Name, Spec: spec, Body: body}, nil
}

func (n *normalizer) subroutine(s *SubroutineDecl) (*ast.Procedure, error) {
	return n.procedure(pos(s.Pos), ast.Subroutine, s.Name, "", s.Params, s.Spec, s.Body)
}

func (n *normalizer) function(f *FunctionDecl) (*ast.Procedure, error) {
	return n.procedure(pos(f.Pos), ast.Function, f.Name, f.RetType, f.Params, f.Spec, f.Body)
}

func (n *normalizer) procedure(src ast.Pos, kind ast.ProcKind, name, retType string, params []string, spec []*SpecItem, body []*Statement) (*ast.Procedure, error) {
	sp, err := n.spec(spec)
	if err != nil {
		return nil, err
	}
	block, err := n.block(src, body)
	if err != nil {
		return nil, err
	}
	proc := &ast.Procedure{Src: src, Kind: kind, Name: name, RetType: retType, Spec: sp, Body: block}
	for _, p := range params {
		proc.Args = append(proc.Args, &ast.Name{Src: src, Ident: p})
	}
	return proc, nil
}

func (n *normalizer) spec(items []*SpecItem) (*ast.SpecificationPart, error) {
	spec := &ast.SpecificationPart{}
	for _, item := range items {
		switch {
		case item.Use != nil:
			use := &ast.Use{Src: pos(item.Use.Pos), Module: item.Use.Module, All: len(item.Use.Only) == 0}
			for _, only := range item.Use.Only {
				canonical := only.Canonical
				if canonical == "" {
					canonical = only.Local
				}
				use.Items = append(use.Items, ast.UseItem{Local: only.Local, Canonical: canonical})
			}
			spec.Uses = append(spec.Uses, use)
		case item.Type != nil:
			td := &ast.DerivedTypeDef{Src: pos(item.Type.Pos), Name: item.Type.Name}
			for _, comp := range item.Type.Components {
				decls, _, err := n.declLine(comp)
				if err != nil {
					return nil, err
				}
				td.Components = append(td.Components, decls...)
			}
			spec.TypeDefs = append(spec.TypeDefs, td)
		case item.Decl != nil:
			decls, symbols, err := n.declLine(item.Decl)
			if err != nil {
				return nil, err
			}
			spec.Symbols = append(spec.Symbols, symbols...)
			if len(decls) > 0 {
				spec.Decls = append(spec.Decls, &ast.DeclStmt{Src: pos(item.Decl.Pos), Decls: decls})
			}
		}
	}
	return spec, nil
}

// declLine splits one declaration line into variable declarations and
// symbol declarations. Parameters are always symbols. A plain integer
// scalar also declares a symbol: counters and extents participate in
// shapes and guards, which only symbols can do.
func (n *normalizer) declLine(d *DeclLine) ([]*ast.VarDecl, []*ast.SymbolDecl, error) {
	typeName := declTypeName(d.Type)
	var parameter, allocatable, pointer bool
	for _, attr := range d.Attrs {
		parameter = parameter || attr.Parameter
		allocatable = allocatable || attr.Allocatable
		pointer = pointer || attr.Pointer
	}

	var decls []*ast.VarDecl
	var symbols []*ast.SymbolDecl
	for _, e := range d.Entities {
		var init ast.Expr
		if e.Init != nil {
			var err error
			init, err = n.expr(e.Init)
			if err != nil {
				return nil, nil, err
			}
		}
		if parameter {
			symbols = append(symbols, &ast.SymbolDecl{Src: pos(e.Pos), Name: e.Name, Type: typeName, Init: init})
			continue
		}
		scalar := len(e.Sizes) == 0
		if scalar && typeName == "integer" && !allocatable && !pointer {
			symbols = append(symbols, &ast.SymbolDecl{Src: pos(e.Pos), Name: e.Name, Type: typeName, Init: init})
			continue
		}
		decl := &ast.VarDecl{Src: pos(e.Pos), Name: e.Name, Type: typeName}
		deferred := allocatable || pointer
		for _, size := range e.Sizes {
			if size.Deferred {
				deferred = true
				continue
			}
			expr, err := n.expr(size.Size)
			if err != nil {
				return nil, nil, err
			}
			decl.Sizes = append(decl.Sizes, expr)
		}
		if deferred {
			decl.Alloc = true
			decl.Sizes = nil
		}
		decls = append(decls, decl)
	}
	return decls, symbols, nil
}

// declTypeName strips the derived-type wrapper: "type(point)" names
// the derived type point.
func declTypeName(t string) string {
	compact := strings.ReplaceAll(t, " ", "")
	if inner, ok := strings.CutPrefix(compact, "type("); ok {
		return strings.TrimSuffix(inner, ")")
	}
	return compact
}

func (n *normalizer) block(src ast.Pos, stmts []*Statement) (*ast.Block, error) {
	block := &ast.Block{Src: src}
	for _, s := range stmts {
		stmt, err := n.stmt(s)
		if err != nil {
			return nil, err
		}
		block.Stmts = append(block.Stmts, stmt)
	}
	return block, nil
}

func (n *normalizer) stmt(s *Statement) (ast.Stmt, error) {
	switch {
	case s.If != nil:
		return n.ifStmt(s.If)
	case s.Do != nil:
		return n.doStmt(s.Do)
	case s.Call != nil:
		return n.callStmt(s.Call)
	case s.Allocate != nil:
		return n.allocStmt(s.Allocate)
	case s.Exit != nil:
		return &ast.Break{Src: pos(s.Exit.Pos)}, nil
	case s.Write != nil:
		w := &ast.Write{Src: pos(s.Write.Pos)}
		for _, arg := range s.Write.Args {
			e, err := n.expr(arg)
			if err != nil {
				return nil, err
			}
			w.Args = append(w.Args, e)
		}
		return w, nil
	case s.Assign != nil:
		return n.assignStmt(s.Assign)
	}
	return nil, errors.New("empty statement")
}

func (n *normalizer) ifStmt(s *IfStmt) (ast.Stmt, error) {
	cond, err := n.expr(s.Cond)
	if err != nil {
		return nil, err
	}
	body, err := n.block(pos(s.Pos), s.Then)
	if err != nil {
		return nil, err
	}
	stmt := &ast.If{Src: pos(s.Pos), Cond: cond, Body: body}
	if len(s.Else) > 0 {
		stmt.Else, err = n.block(pos(s.Pos), s.Else)
		if err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// doStmt normalizes a counted loop into explicit init, condition and
// increment assignments over the loop variable.
func (n *normalizer) doStmt(s *DoStmt) (ast.Stmt, error) {
	src := pos(s.Pos)
	iter := func() *ast.Name { return &ast.Name{Src: src, Ident: s.Var} }
	from, err := n.expr(s.From)
	if err != nil {
		return nil, err
	}
	to, err := n.expr(s.To)
	if err != nil {
		return nil, err
	}
	var step ast.Expr = &ast.IntLit{Src: src, Value: "1"}
	if s.Step != nil {
		step, err = n.expr(s.Step)
		if err != nil {
			return nil, err
		}
	}
	body, err := n.block(src, s.Body)
	if err != nil {
		return nil, err
	}
	return &ast.For{
		Src:  src,
		Init: &ast.BinOp{Src: src, Op: "=", Left: iter(), Right: from},
		Cond: &ast.BinOp{Src: src, Op: "<=", Left: iter(), Right: to},
		Iter: &ast.BinOp{Src: src, Op: "=", Left: iter(), Right: &ast.BinOp{Src: src, Op: "+", Left: iter(), Right: step}},
		Body: body,
	}, nil
}

func (n *normalizer) callStmt(s *CallStmt) (ast.Stmt, error) {
	call := &ast.Call{Src: pos(s.Pos), Name: &ast.Name{Src: pos(s.Pos), Ident: s.Name}}
	for _, arg := range s.Args {
		e, err := n.expr(arg)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, e)
	}
	return call, nil
}

func (n *normalizer) allocStmt(s *AllocStmt) (ast.Stmt, error) {
	alloc := &ast.Allocate{Src: pos(s.Pos)}
	for _, item := range s.Items {
		a := &ast.Allocation{Src: pos(item.Pos), Name: &ast.Name{Src: pos(item.Pos), Ident: item.Name}}
		for _, size := range item.Sizes {
			e, err := n.expr(size)
			if err != nil {
				return nil, err
			}
			a.Sizes = append(a.Sizes, e)
		}
		alloc.Items = append(alloc.Items, a)
	}
	return alloc, nil
}

func (n *normalizer) assignStmt(s *AssignStmt) (ast.Stmt, error) {
	if s.Pointer {
		target, ok := s.Value.bareName()
		if !ok || len(s.Target.Args) > 0 {
			return nil, errors.Errorf("%s: pointer assignment requires plain names", s.Pos)
		}
		return &ast.PointerAssign{
			Src:     pos(s.Pos),
			Pointer: &ast.Name{Src: pos(s.Target.Pos), Ident: s.Target.Name},
			Target:  &ast.Name{Src: pos(s.Pos), Ident: target},
		}, nil
	}
	lhs, err := n.designator(s.Target)
	if err != nil {
		return nil, err
	}
	rhs, err := n.expr(s.Value)
	if err != nil {
		return nil, err
	}
	return &ast.BinOp{Src: pos(s.Pos), Op: "=", Left: lhs, Right: rhs}, nil
}

// bareName returns the identifier of an expression that is one plain
// designator.
func (e *Expr) bareName() (string, bool) {
	if e == nil || len(e.Right) > 0 || len(e.Left.Right) > 0 || e.Left.Left.Not {
		return "", false
	}
	rel := e.Left.Left.Expr
	if rel.Op != "" || len(rel.Left.Right) > 0 || len(rel.Left.Left.Right) > 0 || rel.Left.Left.Left.Right != nil {
		return "", false
	}
	unary := rel.Left.Left.Left.Left
	if unary.Sign != "" || unary.Expr.Designator == nil || len(unary.Expr.Designator.Args) > 0 {
		return "", false
	}
	return unary.Expr.Designator.Name, true
}

func (n *normalizer) expr(e *Expr) (ast.Expr, error) {
	left, err := n.andExpr(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Right {
		right, err := n.andExpr(r)
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Src: pos(e.Pos), Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (n *normalizer) andExpr(e *AndExpr) (ast.Expr, error) {
	left, err := n.notExpr(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Right {
		right, err := n.notExpr(r)
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Src: pos(e.Pos), Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (n *normalizer) notExpr(e *NotExpr) (ast.Expr, error) {
	inner, err := n.relExpr(e.Expr)
	if err != nil {
		return nil, err
	}
	if e.Not {
		return &ast.UnaryOp{Src: pos(e.Pos), Op: "not", Expr: inner}, nil
	}
	return inner, nil
}

func (n *normalizer) relExpr(e *RelExpr) (ast.Expr, error) {
	left, err := n.addExpr(e.Left)
	if err != nil {
		return nil, err
	}
	if e.Op == "" {
		return left, nil
	}
	right, err := n.addExpr(e.Right)
	if err != nil {
		return nil, err
	}
	op := e.Op
	if op == "/=" {
		op = "!="
	}
	return &ast.BinOp{Src: pos(e.Pos), Op: op, Left: left, Right: right}, nil
}

func (n *normalizer) addExpr(e *AddExpr) (ast.Expr, error) {
	left, err := n.mulExpr(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Right {
		right, err := n.mulExpr(r.Right)
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Src: pos(e.Pos), Op: r.Op, Left: left, Right: right}
	}
	return left, nil
}

func (n *normalizer) mulExpr(e *MulExpr) (ast.Expr, error) {
	left, err := n.powExpr(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Right {
		right, err := n.powExpr(r.Right)
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Src: pos(e.Pos), Op: r.Op, Left: left, Right: right}
	}
	return left, nil
}

func (n *normalizer) powExpr(e *PowExpr) (ast.Expr, error) {
	left, err := n.unaryExpr(e.Left)
	if err != nil {
		return nil, err
	}
	if e.Right == nil {
		return left, nil
	}
	right, err := n.powExpr(e.Right)
	if err != nil {
		return nil, err
	}
	return &ast.BinOp{Src: pos(e.Pos), Op: "**", Left: left, Right: right}, nil
}

func (n *normalizer) unaryExpr(e *UnaryExpr) (ast.Expr, error) {
	inner, err := n.primary(e.Expr)
	if err != nil {
		return nil, err
	}
	if e.Sign == "-" {
		return &ast.UnaryOp{Src: pos(e.Pos), Op: "-", Expr: inner}, nil
	}
	return inner, nil
}

func (n *normalizer) primary(p *Primary) (ast.Expr, error) {
	src := pos(p.Pos)
	switch {
	case p.Number != nil:
		return numberLit(src, *p.Number), nil
	case p.True:
		return &ast.BoolLit{Src: src, Value: true}, nil
	case p.False:
		return &ast.BoolLit{Src: src, Value: false}, nil
	case p.Str != nil:
		return &ast.StringLit{Src: src, Value: strings.Trim(*p.Str, `"'`)}, nil
	case p.Paren != nil:
		return n.expr(p.Paren)
	case p.Designator != nil:
		return n.designator(p.Designator)
	}
	return nil, errors.Errorf("%s: empty expression", p.Pos)
}

// numberLit classifies a numeric literal; the d exponent marker
// normalizes to e.
func numberLit(src ast.Pos, text string) ast.Expr {
	if strings.ContainsAny(text, ".eEdD") {
		text = strings.NewReplacer("d", "e", "D", "e", "E", "e").Replace(text)
		return &ast.RealLit{Src: src, Value: text}
	}
	return &ast.IntLit{Src: src, Value: text}
}

// designator resolves a name with an argument list: a function
// reference when the name is a known procedure or intrinsic, an array
// subscript otherwise.
func (n *normalizer) designator(d *Designator) (ast.Expr, error) {
	src := pos(d.Pos)
	name := &ast.Name{Src: src, Ident: d.Name}
	if d.Args == nil {
		return name, nil
	}
	if n.procs[d.Name] || translate.IsIntrinsic(d.Name) {
		call := &ast.Call{Src: src, Name: name}
		for _, arg := range d.Args {
			if arg.All || arg.Hi != nil {
				return nil, errors.Errorf("%s: array section argument in call to %s", d.Pos, d.Name)
			}
			e, err := n.expr(arg.Lo)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, e)
		}
		return call, nil
	}
	sub := &ast.ArraySubscript{Src: src, Name: name}
	for _, arg := range d.Args {
		switch {
		case arg.All:
			sub.Indices = append(sub.Indices, &ast.RangeAll{Src: src})
		case arg.Hi != nil:
			lo, err := n.expr(arg.Lo)
			if err != nil {
				return nil, err
			}
			hi, err := n.expr(arg.Hi)
			if err != nil {
				return nil, err
			}
			sub.Indices = append(sub.Indices, &ast.RangeIndex{Src: src, Lo: lo, Hi: hi})
		default:
			e, err := n.expr(arg.Lo)
			if err != nil {
				return nil, err
			}
			sub.Indices = append(sub.Indices, e)
		}
	}
	return sub, nil
}

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

package translate_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/flowir-org/flowir/ast"
	"github.com/flowir-org/flowir/diag"
	"github.com/flowir-org/flowir/internal/graphexec"
	"github.com/flowir-org/flowir/ir"
	"github.com/flowir-org/flowir/translate"
)

func pos(line int) ast.Pos { return ast.Pos{File: "test.f90", Line: line, Col: 1} }

func nm(line int, ident string) *ast.Name { return &ast.Name{Src: pos(line), Ident: ident} }

func intLit(line, v int) *ast.IntLit {
	return &ast.IntLit{Src: pos(line), Value: fmt.Sprint(v)}
}

func realLit(line int, v string) *ast.RealLit { return &ast.RealLit{Src: pos(line), Value: v} }

func sub(line int, base string, indices ...ast.Expr) *ast.ArraySubscript {
	return &ast.ArraySubscript{Src: pos(line), Name: nm(line, base), Indices: indices}
}

func binop(line int, op string, left, right ast.Expr) *ast.BinOp {
	return &ast.BinOp{Src: pos(line), Op: op, Left: left, Right: right}
}

func assign(line int, left, right ast.Expr) *ast.BinOp {
	return binop(line, "=", left, right)
}

func block(line int, stmts ...ast.Stmt) *ast.Block {
	return &ast.Block{Src: pos(line), Stmts: stmts}
}

func decl(line int, name, typ string, sizes ...ast.Expr) *ast.DeclStmt {
	return &ast.DeclStmt{Src: pos(line), Decls: []*ast.VarDecl{
		{Src: pos(line), Name: name, Type: typ, Sizes: sizes},
	}}
}

func allocDecl(line int, name, typ string) *ast.DeclStmt {
	return &ast.DeclStmt{Src: pos(line), Decls: []*ast.VarDecl{
		{Src: pos(line), Name: name, Type: typ, Alloc: true},
	}}
}

func symDecl(line int, name, typ string, init ast.Expr) *ast.SymbolDecl {
	return &ast.SymbolDecl{Src: pos(line), Name: name, Type: typ, Init: init}
}

// counted builds a loop over iter from low to high with unit step.
func counted(line int, iter string, low, high ast.Expr, body *ast.Block) *ast.For {
	return &ast.For{
		Src:  pos(line),
		Init: assign(line, nm(line, iter), low),
		Cond: binop(line, "<=", nm(line, iter), high),
		Iter: assign(line, nm(line, iter), binop(line, "+", nm(line, iter), intLit(line, 1))),
		Body: body,
	}
}

func mainProg(spec *ast.SpecificationPart, body *ast.Block) *ast.Program {
	return &ast.Program{
		Src:  pos(1),
		Main: &ast.MainProgram{Src: pos(1), Name: "main", Spec: spec, Body: body},
	}
}

func mustTranslate(t *testing.T, prog *ast.Program, opts ...translate.Option) *ir.Graph {
	t.Helper()
	g, err := translate.New(prog, opts...).Translate("main")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if err := g.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}
	return g
}

func execute(t *testing.T, g *ir.Graph, data map[string][]float64) map[string]float64 {
	t.Helper()
	symbols := map[string]float64{}
	if err := graphexec.New().Run(g, symbols, data); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return symbols
}

func findTasklet(t *testing.T, g *ir.Graph, name string) *ir.Tasklet {
	t.Helper()
	for _, s := range g.States {
		for _, n := range s.Nodes {
			if tk, ok := n.(*ir.Tasklet); ok && tk.Name == name {
				return tk
			}
		}
	}
	t.Fatalf("no tasklet %s in graph %s", name, g.Name)
	return nil
}

func findStatePrefix(t *testing.T, g *ir.Graph, prefix string) *ir.State {
	t.Helper()
	for _, s := range g.States {
		if strings.HasPrefix(s.Name, prefix) {
			return s
		}
	}
	t.Fatalf("no state with prefix %s in graph %s", prefix, g.Name)
	return nil
}

func TestAssignTasklet(t *testing.T) {
	prog := mainProg(
		&ast.SpecificationPart{
			Symbols: []*ast.SymbolDecl{symDecl(1, "n", "integer", intLit(1, 4))},
			Decls: []*ast.DeclStmt{
				decl(2, "a", "real", nm(2, "n")),
				decl(3, "x", "real"),
			},
		},
		block(4, assign(5, nm(5, "x"), binop(5, "+", sub(5, "a", intLit(5, 2)), realLit(5, "1.5")))),
	)
	g := mustTranslate(t, prog)

	tk := findTasklet(t, g, "T_l_5_c_1")
	if tk.Body != "x_out = a_0_in + 1.5" {
		t.Errorf("tasklet body: got %q", tk.Body)
	}
	if diff := cmp.Diff([]string{"a_0_in"}, tk.Inputs); diff != "" {
		t.Errorf("tasklet inputs:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"x_out"}, tk.Outputs); diff != "" {
		t.Errorf("tasklet outputs:\n%s", diff)
	}

	data := map[string][]float64{"a": {10, 20, 30, 40}}
	execute(t, g, data)
	if got := data["x"][0]; got != 21.5 {
		t.Errorf("x = %v, want 21.5", got)
	}
}

func TestIfGuards(t *testing.T) {
	prog := mainProg(
		&ast.SpecificationPart{Decls: []*ast.DeclStmt{
			decl(1, "x", "real"),
			decl(2, "y", "real"),
		}},
		block(3, &ast.If{
			Src:  pos(4),
			Cond: binop(4, ">", nm(4, "x"), realLit(4, "2.0")),
			Body: block(5, assign(5, nm(5, "y"), realLit(5, "1.0"))),
			Else: block(6, assign(6, nm(6, "y"), realLit(6, "2.0"))),
		}),
	)
	g := mustTranslate(t, prog)

	guard := findStatePrefix(t, g, "GuardIf_l_4")
	var conds []string
	for _, e := range g.OutEdges(guard) {
		conds = append(conds, e.Condition)
	}
	want := []string{"x > 2.0", "not (x > 2.0)"}
	if diff := cmp.Diff(want, conds); diff != "" {
		t.Errorf("guard conditions:\n%s", diff)
	}

	for _, test := range []struct {
		x, want float64
	}{
		{3.0, 1.0},
		{1.0, 2.0},
	} {
		data := map[string][]float64{"x": {test.x}}
		execute(t, g, data)
		if got := data["y"][0]; got != test.want {
			t.Errorf("x=%v: y = %v, want %v", test.x, got, test.want)
		}
	}
}

func TestLoopSum(t *testing.T) {
	prog := mainProg(
		&ast.SpecificationPart{
			Symbols: []*ast.SymbolDecl{
				symDecl(1, "n", "integer", intLit(1, 5)),
				symDecl(2, "i", "integer", nil),
			},
			Decls: []*ast.DeclStmt{
				decl(3, "a", "real", nm(3, "n")),
				decl(4, "s", "real"),
			},
		},
		block(5,
			assign(6, nm(6, "s"), realLit(6, "0.0")),
			counted(7, "i", intLit(7, 1), nm(7, "n"),
				block(8, assign(8, nm(8, "s"), binop(8, "+", nm(8, "s"), sub(8, "a", nm(8, "i")))))),
		),
	)
	g := mustTranslate(t, prog)

	data := map[string][]float64{"a": {1, 2, 3, 4, 5}}
	symbols := execute(t, g, data)
	if got := data["s"][0]; got != 15 {
		t.Errorf("s = %v, want 15", got)
	}
	if got := symbols["i"]; got != 6 {
		t.Errorf("loop left i = %v, want 6", got)
	}
}

func TestLoopBreak(t *testing.T) {
	prog := mainProg(
		&ast.SpecificationPart{
			Symbols: []*ast.SymbolDecl{symDecl(1, "i", "integer", nil)},
			Decls:   []*ast.DeclStmt{decl(2, "s", "real")},
		},
		block(3,
			counted(4, "i", intLit(4, 1), intLit(4, 10),
				block(5,
					&ast.If{
						Src:  pos(5),
						Cond: binop(5, ">", nm(5, "i"), intLit(5, 3)),
						Body: block(5, &ast.Break{Src: pos(5)}),
					},
					assign(6, nm(6, "s"), binop(6, "+", nm(6, "s"), realLit(6, "1.0"))),
				)),
		),
	)
	g := mustTranslate(t, prog)

	data := map[string][]float64{}
	execute(t, g, data)
	if got := data["s"][0]; got != 3 {
		t.Errorf("s = %v, want 3", got)
	}
}

func TestAllocate(t *testing.T) {
	prog := mainProg(
		&ast.SpecificationPart{
			Symbols: []*ast.SymbolDecl{symDecl(1, "n", "integer", intLit(1, 4))},
			Decls:   []*ast.DeclStmt{allocDecl(2, "buf", "real")},
		},
		block(3,
			&ast.Allocate{Src: pos(4), Items: []*ast.Allocation{
				{Src: pos(4), Name: nm(4, "buf"), Sizes: []ast.Expr{nm(4, "n")}},
			}},
			assign(5, sub(5, "buf", intLit(5, 2)), realLit(5, "9.0")),
		),
	)
	g := mustTranslate(t, prog)

	c, ok := g.Container("buf")
	if !ok {
		t.Fatal("buf was not materialized")
	}
	if c.Rank() != 1 || string(c.Shape[0]) != "4" {
		t.Errorf("buf descriptor: %+v", c)
	}

	data := map[string][]float64{}
	execute(t, g, data)
	if got := data["buf"][1]; got != 9 {
		t.Errorf("buf(2) = %v, want 9", got)
	}
}

func TestPointerAssignAliases(t *testing.T) {
	prog := mainProg(
		&ast.SpecificationPart{Decls: []*ast.DeclStmt{
			decl(1, "a", "real", intLit(1, 3)),
			allocDecl(2, "p", "real"),
		}},
		block(3,
			&ast.PointerAssign{Src: pos(4), Pointer: nm(4, "p"), Target: nm(4, "a")},
			assign(5, sub(5, "p", intLit(5, 2)), realLit(5, "7.0")),
		),
	)
	g := mustTranslate(t, prog)

	if _, ok := g.Container("p"); ok {
		t.Error("aliased pointer got its own container")
	}
	data := map[string][]float64{}
	execute(t, g, data)
	if got := data["a"][1]; got != 7 {
		t.Errorf("a(2) = %v, want 7", got)
	}
}

// viewCallProgram passes the second row of a 2x3 array to a subroutine
// scaling it in place by a literal factor.
func viewCallProgram() *ast.Program {
	scale := &ast.Procedure{
		Src:  pos(20),
		Kind: ast.Subroutine,
		Name: "scale",
		Args: []*ast.Name{nm(20, "vec"), nm(20, "f")},
		Spec: &ast.SpecificationPart{
			Symbols: []*ast.SymbolDecl{symDecl(21, "j", "integer", nil)},
			Decls: []*ast.DeclStmt{
				decl(22, "vec", "real", intLit(22, 3)),
				decl(23, "f", "real"),
			},
		},
		Body: block(24,
			counted(25, "j", intLit(25, 1), intLit(25, 3),
				block(26, assign(26, sub(26, "vec", nm(26, "j")),
					binop(26, "*", sub(26, "vec", nm(26, "j")), nm(26, "f"))))),
		),
	}
	prog := mainProg(
		&ast.SpecificationPart{Decls: []*ast.DeclStmt{
			decl(1, "grid", "real", intLit(1, 2), intLit(1, 3)),
		}},
		block(2, &ast.Call{
			Src:  pos(3),
			Name: nm(3, "scale"),
			Args: []ast.Expr{
				sub(3, "grid", intLit(3, 2), &ast.RangeAll{Src: pos(3)}),
				realLit(3, "2.0"),
			},
		}),
	)
	prog.Subroutines = []*ast.Procedure{scale}
	return prog
}

func TestCallWithViewArgument(t *testing.T) {
	g := mustTranslate(t, viewCallProgram())

	v, ok := g.Container("grid_view_0")
	if !ok {
		t.Fatal("no view container for the sliced argument")
	}
	if !v.View || v.ViewOf != "grid" || string(v.Strides[0]) != "2" {
		t.Errorf("view descriptor: %+v", v)
	}

	// Column-major layout: cell(r, c) = (r-1) + (c-1)*2.
	data := map[string][]float64{"grid": {10, 20, 30, 40, 50, 60}}
	execute(t, g, data)
	want := []float64{10, 40, 30, 80, 50, 120}
	if diff := cmp.Diff(want, data["grid"]); diff != "" {
		t.Errorf("grid after call:\n%s", diff)
	}
}

// TestMaskSelection picks each output element from one of two source
// arrays depending on a mask read inside the loop guard.
func TestMaskSelection(t *testing.T) {
	prog := mainProg(
		&ast.SpecificationPart{
			Symbols: []*ast.SymbolDecl{
				symDecl(1, "n", "integer", intLit(1, 7)),
				symDecl(2, "i", "integer", nil),
			},
			Decls: []*ast.DeclStmt{
				decl(3, "first", "real", nm(3, "n")),
				decl(4, "second", "real", nm(4, "n")),
				decl(5, "mask", "real", nm(5, "n")),
				decl(6, "res", "real", nm(6, "n")),
			},
		},
		block(7,
			counted(8, "i", intLit(8, 1), nm(8, "n"),
				block(9, &ast.If{
					Src:  pos(9),
					Cond: binop(9, ">", sub(9, "mask", nm(9, "i")), realLit(9, "0.5")),
					Body: block(10, assign(10, sub(10, "res", nm(10, "i")), sub(10, "first", nm(10, "i")))),
					Else: block(11, assign(11, sub(11, "res", nm(11, "i")), sub(11, "second", nm(11, "i")))),
				})),
		),
	)
	g := mustTranslate(t, prog)

	data := map[string][]float64{
		"first":  {13, 13, 13, 13, 13, 13, 13},
		"second": {42, 42, 42, 42, 42, 42, 42},
		"mask":   {1, 1, 1, 0, 0, 0, 0},
	}
	execute(t, g, data)
	want := []float64{13, 13, 13, 42, 42, 42, 42}
	if diff := cmp.Diff(want, data["res"]); diff != "" {
		t.Errorf("res after selection:\n%s", diff)
	}
}

// TestNestedMaskSelection layers two masks: the outer mask gates the
// inner selection and forces a constant where it is unset.
func TestNestedMaskSelection(t *testing.T) {
	prog := mainProg(
		&ast.SpecificationPart{
			Symbols: []*ast.SymbolDecl{
				symDecl(1, "n", "integer", intLit(1, 7)),
				symDecl(2, "i", "integer", nil),
			},
			Decls: []*ast.DeclStmt{
				decl(3, "first", "real", nm(3, "n")),
				decl(4, "second", "real", nm(4, "n")),
				decl(5, "m1", "real", nm(5, "n")),
				decl(6, "m2", "real", nm(6, "n")),
				decl(7, "res", "real", nm(7, "n")),
			},
		},
		block(8,
			counted(9, "i", intLit(9, 1), nm(9, "n"),
				block(10, &ast.If{
					Src:  pos(10),
					Cond: binop(10, ">", sub(10, "m2", nm(10, "i")), realLit(10, "0.5")),
					Body: block(11, &ast.If{
						Src:  pos(11),
						Cond: binop(11, ">", sub(11, "m1", nm(11, "i")), realLit(11, "0.5")),
						Body: block(12, assign(12, sub(12, "res", nm(12, "i")), sub(12, "first", nm(12, "i")))),
						Else: block(13, assign(13, sub(13, "res", nm(13, "i")), sub(13, "second", nm(13, "i")))),
					}),
					Else: block(14, assign(14, sub(14, "res", nm(14, "i")), realLit(14, "43.0"))),
				})),
		),
	)
	g := mustTranslate(t, prog)

	data := map[string][]float64{
		"first":  {13, 13, 13, 13, 13, 13, 13},
		"second": {42, 42, 42, 42, 42, 42, 42},
		"m1":     {1, 1, 1, 0, 0, 0, 0},
		"m2":     {1, 1, 1, 1, 1, 1, 0},
	}
	execute(t, g, data)
	want := []float64{13, 13, 13, 42, 42, 42, 43}
	if diff := cmp.Diff(want, data["res"]); diff != "" {
		t.Errorf("res after nested selection:\n%s", diff)
	}
}

// TestCallWithOffsetSlice passes elements 3..9 of a 14-element array to
// a subroutine declaring a 7-element formal.
func TestCallWithOffsetSlice(t *testing.T) {
	bump7 := &ast.Procedure{
		Src:  pos(20),
		Kind: ast.Subroutine,
		Name: "bump7",
		Args: []*ast.Name{nm(20, "vec")},
		Spec: &ast.SpecificationPart{
			Symbols: []*ast.SymbolDecl{symDecl(21, "j", "integer", nil)},
			Decls:   []*ast.DeclStmt{decl(22, "vec", "real", intLit(22, 7))},
		},
		Body: block(23,
			counted(24, "j", intLit(24, 1), intLit(24, 7),
				block(25, assign(25, sub(25, "vec", nm(25, "j")),
					binop(25, "+", sub(25, "vec", nm(25, "j")), realLit(25, "100.0"))))),
		),
	}
	prog := mainProg(
		&ast.SpecificationPart{Decls: []*ast.DeclStmt{
			decl(1, "a", "real", intLit(1, 14)),
		}},
		block(2, &ast.Call{
			Src:  pos(3),
			Name: nm(3, "bump7"),
			Args: []ast.Expr{
				sub(3, "a", &ast.RangeIndex{Src: pos(3), Lo: intLit(3, 3), Hi: intLit(3, 9)}),
			},
		}),
	)
	prog.Subroutines = []*ast.Procedure{bump7}
	g := mustTranslate(t, prog)

	v, ok := g.Container("a_view_0")
	if !ok {
		t.Fatal("no view container for the sliced argument")
	}
	if !v.View || v.ViewOf != "a" || string(v.Shape[0]) != "7" {
		t.Errorf("view descriptor: %+v", v)
	}

	data := map[string][]float64{"a": {1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}}
	execute(t, g, data)
	want := []float64{1, 2, 103, 104, 105, 106, 107, 108, 109, 10, 11, 12, 13, 14}
	if diff := cmp.Diff(want, data["a"]); diff != "" {
		t.Errorf("a after call:\n%s", diff)
	}
}

// TestRenamedCalleeInlines resolves callees through import rename
// tables: the entry scope calls t for run, and run calls c for its
// sibling canon. Both calls must inline instead of degrading to
// external tasklets.
func TestRenamedCalleeInlines(t *testing.T) {
	canon := &ast.Procedure{
		Src:  pos(20),
		Kind: ast.Subroutine,
		Name: "canon",
		Args: []*ast.Name{nm(20, "v")},
		Spec: &ast.SpecificationPart{Decls: []*ast.DeclStmt{decl(21, "v", "real")}},
		Body: block(22, assign(22, nm(22, "v"), binop(22, "+", nm(22, "v"), realLit(22, "1.0")))),
	}
	run := &ast.Procedure{
		Src:  pos(25),
		Kind: ast.Subroutine,
		Name: "run",
		Args: []*ast.Name{nm(25, "w")},
		Spec: &ast.SpecificationPart{Decls: []*ast.DeclStmt{decl(26, "w", "real")}},
		Body: block(27, &ast.Call{Src: pos(27), Name: nm(27, "c"), Args: []ast.Expr{nm(27, "w")}}),
	}
	prog := mainProg(
		&ast.SpecificationPart{Decls: []*ast.DeclStmt{decl(1, "x", "real")}},
		block(2,
			assign(3, nm(3, "x"), realLit(3, "1.0")),
			&ast.Call{Src: pos(4), Name: nm(4, "t"), Args: []ast.Expr{nm(4, "x")}},
		),
	)
	prog.Modules = []*ast.Module{{
		Src:         pos(10),
		Name:        "outer",
		Subroutines: []*ast.Procedure{run, canon},
	}}
	g := mustTranslate(t, prog, translate.WithRenames(map[string]map[string]string{
		"":      {"t": "run"},
		"outer": {"c": "canon"},
	}))

	findStatePrefix(t, g, "Call_run")
	var checkInlined func(g *ir.Graph)
	checkInlined = func(g *ir.Graph) {
		for _, s := range g.States {
			for _, n := range s.Nodes {
				switch n := n.(type) {
				case *ir.Tasklet:
					if strings.HasPrefix(n.Name, "Ext_") {
						t.Errorf("renamed callee fell back to external tasklet %s", n.Name)
					}
				case *ir.Invoke:
					if n.Graph != nil {
						checkInlined(n.Graph)
					}
				}
			}
		}
	}
	checkInlined(g)

	data := map[string][]float64{}
	execute(t, g, data)
	if got := data["x"][0]; got != 2 {
		t.Errorf("x = %v, want 2", got)
	}
}

func TestFunctionResult(t *testing.T) {
	twice := &ast.Procedure{
		Src:     pos(20),
		Kind:    ast.Function,
		Name:    "twice",
		Args:    []*ast.Name{nm(20, "v")},
		RetType: "real",
		Spec: &ast.SpecificationPart{Decls: []*ast.DeclStmt{
			decl(21, "v", "real"),
		}},
		Body: block(22, assign(22, nm(22, "twice"), binop(22, "*", nm(22, "v"), realLit(22, "2.0")))),
	}
	prog := mainProg(
		&ast.SpecificationPart{Decls: []*ast.DeclStmt{
			decl(1, "x", "real"),
			decl(2, "y", "real"),
		}},
		block(3,
			assign(4, nm(4, "x"), realLit(4, "3.5")),
			assign(5, nm(5, "y"), &ast.Call{Src: pos(5), Name: nm(5, "twice"), Args: []ast.Expr{nm(5, "x")}}),
		),
	)
	prog.Functions = []*ast.Procedure{twice}
	g := mustTranslate(t, prog)

	data := map[string][]float64{}
	execute(t, g, data)
	if got := data["y"][0]; got != 7 {
		t.Errorf("y = %v, want 7", got)
	}
}

func TestModuleVariableInCallee(t *testing.T) {
	bump := &ast.Procedure{
		Src:  pos(20),
		Kind: ast.Subroutine,
		Name: "bump",
		Body: block(21, assign(21, nm(21, "g"), binop(21, "+", nm(21, "g"), realLit(21, "1.0")))),
	}
	prog := mainProg(
		nil,
		block(2,
			assign(3, nm(3, "g"), realLit(3, "1.0")),
			&ast.Call{Src: pos(4), Name: nm(4, "bump")},
		),
	)
	prog.Modules = []*ast.Module{{
		Src:         pos(10),
		Name:        "globals",
		Spec:        &ast.SpecificationPart{Decls: []*ast.DeclStmt{decl(11, "g", "real")}},
		Subroutines: []*ast.Procedure{bump},
	}}
	g := mustTranslate(t, prog)

	data := map[string][]float64{}
	execute(t, g, data)
	if got := data["g"][0]; got != 2 {
		t.Errorf("g = %v, want 2", got)
	}
}

func TestExternalCallLibraryState(t *testing.T) {
	prog := mainProg(
		&ast.SpecificationPart{Decls: []*ast.DeclStmt{
			decl(1, "rand_state", "integer"),
			decl(2, "x", "real"),
		}},
		block(3, &ast.Call{Src: pos(4), Name: nm(4, "my_rand"), Args: []ast.Expr{nm(4, "x")}}),
	)
	g := mustTranslate(t, prog, translate.WithLibraryState("my_rand", "rand_state"))

	tk := findTasklet(t, g, "Ext_my_rand_l_4")
	if tk.Body != "my_rand(x_0_in)" {
		t.Errorf("tasklet body: got %q", tk.Body)
	}
	if diff := cmp.Diff([]string{"x_0_in", "rand_state_task"}, tk.Inputs); diff != "" {
		t.Errorf("tasklet inputs:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"rand_state_task_out"}, tk.Outputs); diff != "" {
		t.Errorf("tasklet outputs:\n%s", diff)
	}
}

func TestDeterminism(t *testing.T) {
	prog := viewCallProgram()
	save := func() string {
		t.Helper()
		g := mustTranslate(t, prog)
		var buf bytes.Buffer
		if err := g.Save(&buf); err != nil {
			t.Fatal(err)
		}
		return buf.String()
	}
	first, second := save(), save()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("two translations of the same program differ:\n%s", diff)
	}
}

func TestProceduresEmitIndependentGraphs(t *testing.T) {
	bump := &ast.Procedure{
		Src:  pos(20),
		Kind: ast.Subroutine,
		Name: "bump",
		Body: block(21, assign(21, nm(21, "g"), binop(21, "+", nm(21, "g"), realLit(21, "1.0")))),
	}
	prog := &ast.Program{
		Src: pos(1),
		Modules: []*ast.Module{{
			Src:         pos(10),
			Name:        "globals",
			Spec:        &ast.SpecificationPart{Decls: []*ast.DeclStmt{decl(11, "g", "real")}},
			Subroutines: []*ast.Procedure{bump},
		}},
	}
	graphs, diags := translate.Procedures(prog)
	if !diags.Empty() {
		t.Fatalf("unexpected diagnostics: %v", diags.Err())
	}
	var names []string
	for _, g := range graphs {
		names = append(names, g.Name)
	}
	want := []string{"bump_entry", "bump"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("graph names:\n%s", diff)
	}

	// The procedure graph runs through the external registry.
	data := map[string][]float64{"g": {1}}
	m := graphexec.New(graphexec.WithExternal(graphs[1]))
	if err := m.Run(graphs[0], nil, data); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := data["g"][0]; got != 2 {
		t.Errorf("g = %v, want 2", got)
	}
}

func TestAmbiguousAllocation(t *testing.T) {
	prog := mainProg(
		&ast.SpecificationPart{Decls: []*ast.DeclStmt{
			allocDecl(1, "buf", "real"),
			allocDecl(2, "buf", "real"),
		}},
		block(3, &ast.Allocate{Src: pos(4), Items: []*ast.Allocation{
			{Src: pos(4), Name: nm(4, "buf"), Sizes: []ast.Expr{intLit(4, 4)}},
		}}),
	)
	_, err := translate.New(prog).Translate("main")
	if !diag.IsKind(err, diag.AmbiguousAllocation) {
		t.Errorf("got %v, want an ambiguous allocation error", err)
	}
}

func TestArityMismatch(t *testing.T) {
	f := &ast.Procedure{
		Src:  pos(20),
		Kind: ast.Subroutine,
		Name: "f",
		Args: []*ast.Name{nm(20, "a")},
		Body: block(21),
	}
	prog := mainProg(nil, block(2, &ast.Call{Src: pos(3), Name: nm(3, "f")}))
	prog.Subroutines = []*ast.Procedure{f}
	_, err := translate.New(prog).Translate("main")
	if !diag.IsKind(err, diag.ArityMismatch) {
		t.Errorf("got %v, want an arity mismatch error", err)
	}
}

func TestWriteUnsupported(t *testing.T) {
	prog := mainProg(nil, block(2, &ast.Write{Src: pos(3), Args: []ast.Expr{intLit(3, 1)}}))
	_, err := translate.New(prog).Translate("main")
	if !diag.IsKind(err, diag.UnsupportedConstruct) {
		t.Errorf("got %v, want an unsupported construct error", err)
	}
}

func TestBreakOutsideLoop(t *testing.T) {
	prog := mainProg(nil, block(2, &ast.Break{Src: pos(3)}))
	_, err := translate.New(prog).Translate("main")
	if !diag.IsKind(err, diag.UnsupportedConstruct) {
		t.Errorf("got %v, want an unsupported construct error", err)
	}
}

func TestUnknownVariable(t *testing.T) {
	prog := mainProg(nil, block(2, assign(3, nm(3, "z"), realLit(3, "1.0"))))
	_, err := translate.New(prog).Translate("main")
	if !diag.IsKind(err, diag.UnknownVariable) {
		t.Errorf("got %v, want an unknown variable error", err)
	}
}

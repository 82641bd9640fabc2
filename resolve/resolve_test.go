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

package resolve_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowir-org/flowir/ast"
	"github.com/flowir-org/flowir/diag"
	"github.com/flowir-org/flowir/resolve"
)

type mapLoader struct {
	modules map[string]*ast.Module
	broken  map[string]error
}

func (l *mapLoader) Load(name string) (*ast.Module, error) {
	if err, ok := l.broken[name]; ok {
		return nil, err
	}
	mod, ok := l.modules[name]
	if !ok {
		return nil, errors.Wrapf(resolve.ErrNotFound, "%s", name)
	}
	return mod, nil
}

func loaderOf(mods ...*ast.Module) *mapLoader {
	l := &mapLoader{modules: map[string]*ast.Module{}, broken: map[string]error{}}
	for _, mod := range mods {
		l.modules[mod.Name] = mod
	}
	return l
}

func module(name string, uses ...*ast.Use) *ast.Module {
	return &ast.Module{Name: name, Spec: &ast.SpecificationPart{Uses: uses}}
}

// constant exports a literal-initialized symbol from a module.
func constant(mod *ast.Module, name string) {
	mod.Spec.Symbols = append(mod.Spec.Symbols, &ast.SymbolDecl{
		Name: name, Type: "integer", Init: &ast.IntLit{Value: "1"},
	})
}

// derived exports a symbol whose initializer references another name,
// typically an import.
func derived(mod *ast.Module, name, from string) {
	mod.Spec.Symbols = append(mod.Spec.Symbols, &ast.SymbolDecl{
		Name: name, Type: "integer", Init: &ast.Name{Ident: from},
	})
}

// subroutine adds a module subroutine whose body calls the given names.
func subroutine(mod *ast.Module, name string, calls ...string) {
	body := &ast.Block{}
	for _, c := range calls {
		body.Stmts = append(body.Stmts, &ast.Call{Name: &ast.Name{Ident: c}})
	}
	mod.Subroutines = append(mod.Subroutines, &ast.Procedure{Name: name, Body: body})
}

func use(name string) *ast.Use { return &ast.Use{Module: name, All: true} }

func mainUsing(uses ...*ast.Use) *ast.MainProgram {
	return &ast.MainProgram{Name: "main", Spec: &ast.SpecificationPart{Uses: uses}}
}

// mainCalling is a main program calling the given names.
func mainCalling(refs []string, uses ...*ast.Use) *ast.MainProgram {
	main := mainUsing(uses...)
	main.Body = &ast.Block{}
	for _, r := range refs {
		main.Body.Stmts = append(main.Body.Stmts, &ast.Call{Name: &ast.Name{Ident: r}})
	}
	return main
}

func TestDiamondOrder(t *testing.T) {
	d := module("d")
	constant(d, "unit")
	c := module("c", use("d"))
	derived(c, "c_step", "unit")
	b := module("b", use("d"))
	derived(b, "b_step", "unit")
	a := module("a", use("b"), use("c"))
	a.Spec.Symbols = append(a.Spec.Symbols, &ast.SymbolDecl{
		Name: "a_step", Type: "integer",
		Init: &ast.BinOp{Op: "+", Left: &ast.Name{Ident: "b_step"}, Right: &ast.Name{Ident: "c_step"}},
	})
	loader := loaderOf(a, b, c, d)

	res, diags, err := resolve.New(loader).Program(mainCalling([]string{"a_step"}, use("a")))
	require.NoError(t, err)
	assert.True(t, diags.Empty(), "unexpected diagnostics: %v", diags.Err())
	assert.Equal(t, []string{"d", "c", "b", "a"}, res.Order)
	require.Len(t, res.Program.Modules, 4)
	assert.Equal(t, "d", res.Program.Modules[0].Name)
	assert.NotNil(t, res.Program.Main)
	assert.Equal(t, []string{"unit"}, res.Live["d"])
	assert.Equal(t, []string{"a_step"}, res.Live["a"])
}

func TestUnreferencedImportPruned(t *testing.T) {
	helper := module("helper")
	subroutine(helper, "unused_sub")
	loader := loaderOf(helper)

	onlyUse := &ast.Use{Module: "helper", Items: []ast.UseItem{
		{Local: "unused_sub", Canonical: "unused_sub"},
	}}
	res, diags, err := resolve.New(loader).Program(mainUsing(onlyUse))
	require.NoError(t, err)
	assert.True(t, diags.Empty())
	assert.Empty(t, res.Order, "imported module survived with nothing referencing it")
	assert.Empty(t, res.Program.Modules)
	assert.Empty(t, res.Live)
}

func TestProcedurePruning(t *testing.T) {
	m := module("m")
	subroutine(m, "used_sub")
	subroutine(m, "dead_sub")
	loader := loaderOf(m)

	res, _, err := resolve.New(loader).Program(mainCalling([]string{"used_sub"}, use("m")))
	require.NoError(t, err)
	assert.Equal(t, []string{"m"}, res.Order)
	kept := res.Program.Modules[0]
	require.Len(t, kept.Subroutines, 1)
	assert.Equal(t, "used_sub", kept.Subroutines[0].Name)
	assert.Equal(t, []string{"used_sub"}, res.Live["m"])
	// The loader's tree is shared across entries and must not lose
	// the pruned procedure.
	assert.Len(t, m.Subroutines, 2)
}

func TestTransitiveProcedureLiveness(t *testing.T) {
	k := module("k")
	subroutine(k, "k_sub")
	m := module("m", use("k"))
	subroutine(m, "used_sub", "k_sub")
	subroutine(m, "spare_sub")
	loader := loaderOf(k, m)

	res, _, err := resolve.New(loader).Program(mainCalling([]string{"used_sub"}, use("m")))
	require.NoError(t, err)
	assert.Equal(t, []string{"k", "m"}, res.Order)
	assert.Equal(t, []string{"k_sub"}, res.Live["k"])
	assert.Equal(t, []string{"used_sub"}, res.Live["m"])
	require.Len(t, res.Program.Modules[1].Subroutines, 1)
}

func TestIntraModuleCall(t *testing.T) {
	m := module("m")
	subroutine(m, "inner")
	subroutine(m, "outer", "inner")
	loader := loaderOf(m)

	res, _, err := resolve.New(loader).Program(mainCalling([]string{"outer"}, use("m")))
	require.NoError(t, err)
	assert.Equal(t, []string{"m"}, res.Order)
	assert.Equal(t, []string{"inner", "outer"}, res.Live["m"])
	assert.Len(t, res.Program.Modules[0].Subroutines, 2)
}

func TestMissingModuleIsSoft(t *testing.T) {
	a := module("a")
	constant(a, "a_val")
	loader := loaderOf(a)
	res, diags, err := resolve.New(loader).Program(mainCalling([]string{"a_val"}, use("a"), use("ghost")))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Order)
	require.Len(t, diags.List(), 1)
	assert.True(t, diag.IsKind(diags.List()[0], diag.ModuleNotFound))
}

func TestMissingModuleReportedOnce(t *testing.T) {
	loader := loaderOf(
		module("a", use("ghost")),
		module("b", use("ghost")),
	)
	_, diags, err := resolve.New(loader).Program(mainUsing(use("a"), use("b")))
	require.NoError(t, err)
	assert.Len(t, diags.List(), 1)
}

func TestBrokenModuleIsSoft(t *testing.T) {
	loader := loaderOf(module("a"))
	loader.broken["bad"] = errors.New("syntax error")
	_, diags, err := resolve.New(loader).Program(mainUsing(use("a"), use("bad")))
	require.NoError(t, err)
	require.Len(t, diags.List(), 1)
	assert.True(t, diag.IsKind(diags.List()[0], diag.ModuleLoweringFailed))
}

func TestMissingEntryModuleIsHard(t *testing.T) {
	_, _, err := resolve.New(loaderOf()).Module("ghost")
	require.Error(t, err)
	assert.True(t, diag.IsKind(err, diag.ModuleNotFound))
}

func TestModuleEntry(t *testing.T) {
	b := module("b")
	constant(b, "g")
	a := module("a", use("b"))
	derived(a, "exported", "g")
	loader := loaderOf(a, b)

	res, diags, err := resolve.New(loader).Module("a")
	require.NoError(t, err)
	assert.True(t, diags.Empty())
	assert.Equal(t, []string{"b", "a"}, res.Order)
	// All exports of the entry module are live unconditionally.
	assert.Equal(t, []string{"exported"}, res.Live["a"])
	assert.Equal(t, []string{"g"}, res.Live["b"])
}

func TestRenameTables(t *testing.T) {
	b := module("b")
	constant(b, "canon")
	constant(b, "same")
	aUses := &ast.Use{Module: "b", Items: []ast.UseItem{
		{Local: "loc", Canonical: "canon"},
		{Local: "same", Canonical: "same"},
	}}
	a := module("a", aUses)
	derived(a, "exported", "loc")
	derived(a, "kept", "same")
	loader := loaderOf(a, b)

	entryUse := &ast.Use{Module: "a", Items: []ast.UseItem{
		{Local: "alias", Canonical: "exported"},
	}}
	res, _, err := resolve.New(loader).Program(mainCalling([]string{"alias"}, entryUse))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, res.Order)
	assert.Equal(t, map[string]string{"alias": "exported"}, res.Renames[""])
	assert.Equal(t, map[string]string{"loc": "canon"}, res.Renames["a"])
	_, hasB := res.Renames["b"]
	assert.False(t, hasB, "module without renames got a table")
	// The rename chains mark the canonical names live in b.
	assert.Equal(t, []string{"canon", "same"}, res.Live["b"])
}

func TestCycleIsHard(t *testing.T) {
	a := module("a", use("b"))
	derived(a, "a_val", "b_val")
	b := module("b", use("a"))
	derived(b, "b_val", "a_val")
	loader := loaderOf(a, b)
	_, _, err := resolve.New(loader).Program(mainCalling([]string{"a_val"}, use("a")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

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

// Package resolve builds the module closure of a translation entry:
// it loads every transitively used module, orders modules so that
// dependencies come first, prunes the modules and procedures nothing
// reachable references, and collects the import rename tables.
package resolve

import (
	stderrors "errors"

	"github.com/pkg/errors"

	"github.com/flowir-org/flowir/ast"
	"github.com/flowir-org/flowir/base/ordered"
	"github.com/flowir-org/flowir/diag"
)

// ErrNotFound is returned (possibly wrapped) by loaders when a module
// does not exist in the corpus. The resolver reports it as a soft
// diagnostic and continues without the module.
var ErrNotFound = stderrors.New("module not found")

// Loader fetches the parsed tree of a module by its canonical name.
type Loader interface {
	Load(name string) (*ast.Module, error)
}

// Result is a resolved translation unit.
type Result struct {
	// Program holds the entry program and the live modules, ordered
	// with dependencies before their dependents.
	Program *ast.Program
	// Order lists the module names of Program.Modules.
	Order []string
	// Renames maps, per importing scope (module name, or the empty
	// string for the entry scope), the local import name to the
	// canonical exported name.
	Renames map[string]map[string]string
	// Live maps each kept module to the exported names reachable code
	// references, in declaration order.
	Live map[string][]string
}

// Resolver loads module closures. A resolver is reusable across
// entries; diagnostics accumulate per call.
type Resolver struct {
	loader Loader
}

// New returns a resolver reading modules through the given loader.
func New(loader Loader) *Resolver {
	return &Resolver{loader: loader}
}

// Program resolves the closure of a main program entry. Free
// procedures of the entry file passed alongside count as reachable:
// their imports and references seed the liveness walk together with
// the main program's.
func (r *Resolver) Program(main *ast.MainProgram, procs ...*ast.Procedure) (*Result, *diag.Diagnostics, error) {
	var uses []*ast.Use
	if main.Spec != nil {
		uses = main.Spec.Uses
	}
	seed := refNames(main)
	seed = append(seed, specRefNames(main.Spec)...)
	for _, proc := range procs {
		if proc.Spec != nil {
			uses = append(uses, proc.Spec.Uses...)
		}
		seed = append(seed, refNames(proc)...)
		seed = append(seed, specRefNames(proc.Spec)...)
	}
	res, diags, err := r.closureStrict(uses, seed, "")
	if err != nil {
		return nil, diags, err
	}
	res.Program.Main = main
	return res, diags, nil
}

// Module resolves the closure of a single module entry. The entry
// module itself is last in the resulting order, with all of its
// exports live.
func (r *Resolver) Module(name string) (*Result, *diag.Diagnostics, error) {
	entry := &ast.Use{Module: name, All: true}
	return r.closureStrict([]*ast.Use{entry}, nil, name)
}

// closureStrict loads the transitive closure of the given imports.
// A missing or unloadable module named entry is a hard failure;
// everything else degrades to a soft diagnostic.
func (r *Resolver) closureStrict(uses []*ast.Use, seed []string, entry string) (*Result, *diag.Diagnostics, error) {
	diags := &diag.Diagnostics{}
	modules := ordered.NewMap[string, *ast.Module]()
	// deps[m] lists the modules m uses, in import order.
	deps := ordered.NewMap[string, []string]()

	queue := append([]*ast.Use{}, uses...)
	from := make([]string, len(queue))
	for len(queue) > 0 {
		use := queue[0]
		importer := from[0]
		queue, from = queue[1:], from[1:]

		name := use.Module
		if importer != "" {
			cur, _ := deps.Load(importer)
			deps.Store(importer, append(cur, name))
		}
		if modules.Contains(name) {
			continue
		}
		mod, err := r.loader.Load(name)
		if err != nil {
			kind := diag.ModuleLoweringFailed
			if stderrors.Is(err, ErrNotFound) {
				kind = diag.ModuleNotFound
			}
			if name == entry {
				return nil, diags, diag.Errorf(kind, use, "entry module %s: %v", name, err)
			}
			diags.Appendf(kind, use, "module %s: %v", name, err)
			// Remember the name so repeated imports do not re-report.
			modules.Store(name, nil)
			continue
		}
		modules.Store(name, mod)
		if mod.Spec != nil {
			for _, u := range mod.Spec.Uses {
				queue = append(queue, u)
				from = append(from, name)
			}
		}
	}

	order, err := topoSort(modules, deps)
	if err != nil {
		return nil, diags, err
	}
	live := liveness(modules, uses, seed, entry)

	res := &Result{
		Program: &ast.Program{},
		Renames: map[string]map[string]string{},
		Live:    map[string][]string{},
	}
	if table := scopeRenames(uses); len(table) > 0 {
		res.Renames[""] = table
	}
	for _, name := range order {
		mod, _ := modules.Load(name)
		if mod == nil || !live.modules[name] {
			continue
		}
		liveSyms := live.symbols[name]
		for export := range exports(mod).Keys() {
			if liveSyms[export] {
				res.Live[name] = append(res.Live[name], export)
			}
		}
		res.Program.Modules = append(res.Program.Modules, pruneDead(mod, liveSyms))
		res.Order = append(res.Order, name)
		if mod.Spec == nil {
			continue
		}
		if table := scopeRenames(mod.Spec.Uses); len(table) > 0 {
			res.Renames[mod.Name] = table
		}
	}
	return res, diags, nil
}

// scopeRenames collects the local -> canonical import renames declared
// by the use statements of one scope.
func scopeRenames(uses []*ast.Use) map[string]string {
	table := map[string]string{}
	for _, use := range uses {
		for _, item := range use.Items {
			if item.Local == item.Canonical {
				continue
			}
			table[item.Local] = item.Canonical
		}
	}
	return table
}

// topoSort orders module names with dependencies first. Iteration over
// insertion-ordered tables keeps the order deterministic.
func topoSort(modules *ordered.Map[string, *ast.Module], deps *ordered.Map[string, []string]) ([]string, error) {
	// indegree counts dependents: edges point from a module to the
	// modules it uses.
	indegree := ordered.NewMap[string, int]()
	for name := range modules.Keys() {
		indegree.Store(name, 0)
	}
	for _, used := range deps.Iter() {
		for _, d := range used {
			if n, ok := indegree.Load(d); ok {
				indegree.Store(d, n+1)
			}
		}
	}
	var frontier []string
	for name, n := range indegree.Iter() {
		if n == 0 {
			frontier = append(frontier, name)
		}
	}
	var reversed []string
	for len(frontier) > 0 {
		name := frontier[0]
		frontier = frontier[1:]
		reversed = append(reversed, name)
		used, _ := deps.Load(name)
		for _, d := range used {
			n, ok := indegree.Load(d)
			if !ok {
				continue
			}
			indegree.Store(d, n-1)
			if n-1 == 0 {
				frontier = append(frontier, d)
			}
		}
	}
	if len(reversed) != indegree.Size() {
		return nil, errors.Errorf("module dependency cycle among %d modules", indegree.Size()-len(reversed))
	}
	// Dependents were visited first; reverse so dependencies lower
	// before their users.
	order := make([]string, len(reversed))
	for i, name := range reversed {
		order[len(reversed)-1-i] = name
	}
	return order, nil
}

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

package resolve

import (
	"github.com/flowir-org/flowir/ast"
	"github.com/flowir-org/flowir/base/ordered"
)

// symbolRef is one referenced name in one scope. The empty scope is the
// translation entry.
type symbolRef struct {
	scope string
	name  string
}

// liveInfo is the result of the liveness walk: the modules reachable
// from the entry, and per module the set of exported names some
// reachable code references.
type liveInfo struct {
	modules map[string]bool
	symbols map[string]map[string]bool
}

// exports builds the export table of a module: every run-time symbol,
// variable, derived type and procedure declared at module level, in
// declaration order. Procedure entries carry their definition; data
// entries are nil.
func exports(mod *ast.Module) *ordered.Map[string, *ast.Procedure] {
	table := ordered.NewMap[string, *ast.Procedure]()
	if mod.Spec != nil {
		for _, td := range mod.Spec.TypeDefs {
			table.Store(td.Name, nil)
		}
		for _, sym := range mod.Spec.Symbols {
			table.Store(sym.Name, nil)
		}
		for _, decl := range mod.Spec.Decls {
			for _, v := range decl.Decls {
				table.Store(v.Name, nil)
			}
		}
	}
	for _, p := range mod.Subroutines {
		table.Store(p.Name, p)
	}
	for _, p := range mod.Functions {
		table.Store(p.Name, p)
	}
	return table
}

// refNames lists every name a subtree references: reads, writes and
// callee names. Duplicates are harmless; the walk deduplicates.
func refNames(n ast.Node) []string {
	var names []string
	for _, occ := range ast.Inputs(n) {
		names = append(names, occ.Ident)
	}
	for _, occ := range ast.Outputs(n) {
		names = append(names, occ.Ident)
	}
	for _, call := range ast.Calls(n) {
		names = append(names, call.Name.Ident)
	}
	return names
}

// specRefNames lists the names the declarations of a scope reference:
// symbol initializers, array sizes, type component sizes, and the type
// names of variable declarations, which may name an imported derived
// type.
func specRefNames(spec *ast.SpecificationPart) []string {
	if spec == nil {
		return nil
	}
	var names []string
	for _, td := range spec.TypeDefs {
		names = append(names, refNames(td)...)
	}
	for _, sym := range spec.Symbols {
		names = append(names, refNames(sym)...)
	}
	for _, decl := range spec.Decls {
		names = append(names, refNames(decl)...)
		for _, v := range decl.Decls {
			names = append(names, v.Type)
		}
	}
	return names
}

// importName resolves a local name through one use statement to the
// canonical exported name, honoring only-lists and import renames.
func importName(use *ast.Use, local string) (string, bool) {
	for _, item := range use.Items {
		if item.Local == local {
			return item.Canonical, true
		}
	}
	if use.All {
		return local, true
	}
	return "", false
}

// liveness walks symbol references outward from the entry scope. A
// reference resolves against the defining scope's own exports first,
// then through its use statements in import order; resolving a name
// wakes the defining module and, for a procedure, queues the names its
// definition references. A name that resolves nowhere is a local or an
// external and marks nothing. With a non-empty entry module, that
// module and all of its exports are live unconditionally.
func liveness(modules *ordered.Map[string, *ast.Module], entryUses []*ast.Use, seed []string, entry string) *liveInfo {
	info := &liveInfo{
		modules: map[string]bool{},
		symbols: map[string]map[string]bool{},
	}
	tables := map[string]*ordered.Map[string, *ast.Procedure]{}
	exportsOf := func(name string) *ordered.Map[string, *ast.Procedure] {
		if t, ok := tables[name]; ok {
			return t
		}
		mod, _ := modules.Load(name)
		var t *ordered.Map[string, *ast.Procedure]
		if mod != nil {
			t = exports(mod)
		}
		tables[name] = t
		return t
	}
	usesOf := func(scope string) []*ast.Use {
		if scope == "" {
			return entryUses
		}
		mod, _ := modules.Load(scope)
		if mod == nil || mod.Spec == nil {
			return nil
		}
		return mod.Spec.Uses
	}

	var queue []symbolRef
	push := func(scope string, names []string) {
		for _, n := range names {
			queue = append(queue, symbolRef{scope: scope, name: n})
		}
	}
	markLive := func(modName, symName string) {
		set := info.symbols[modName]
		if set == nil {
			set = map[string]bool{}
			info.symbols[modName] = set
		}
		if set[symName] {
			return
		}
		set[symName] = true
		if !info.modules[modName] {
			info.modules[modName] = true
			if mod, _ := modules.Load(modName); mod != nil {
				push(modName, specRefNames(mod.Spec))
			}
		}
		table := exportsOf(modName)
		if table == nil {
			return
		}
		if proc, _ := table.Load(symName); proc != nil {
			push(modName, refNames(proc))
			push(modName, specRefNames(proc.Spec))
		}
	}

	if entry != "" {
		if table := exportsOf(entry); table != nil {
			for name := range table.Keys() {
				markLive(entry, name)
			}
		}
	}
	push("", seed)

	seen := map[symbolRef]bool{}
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		if seen[ref] {
			continue
		}
		seen[ref] = true
		if ref.scope != "" {
			if table := exportsOf(ref.scope); table != nil && table.Contains(ref.name) {
				markLive(ref.scope, ref.name)
				continue
			}
		}
		for _, use := range usesOf(ref.scope) {
			canonical, ok := importName(use, ref.name)
			if !ok {
				continue
			}
			table := exportsOf(use.Module)
			if table == nil || !table.Contains(canonical) {
				continue
			}
			markLive(use.Module, canonical)
			break
		}
	}
	return info
}

// pruneDead drops the procedures of a module nothing alive references.
// Data declarations always survive: same-module shape and guard
// expressions reference them without an import edge. The loader's tree
// is never mutated; a module losing procedures is shallow-copied.
func pruneDead(mod *ast.Module, live map[string]bool) *ast.Module {
	keep := func(procs []*ast.Procedure) []*ast.Procedure {
		var kept []*ast.Procedure
		for _, p := range procs {
			if live[p.Name] {
				kept = append(kept, p)
			}
		}
		return kept
	}
	subs, funcs := keep(mod.Subroutines), keep(mod.Functions)
	if len(subs) == len(mod.Subroutines) && len(funcs) == len(mod.Functions) {
		return mod
	}
	pruned := *mod
	pruned.Subroutines = subs
	pruned.Functions = funcs
	return &pruned
}

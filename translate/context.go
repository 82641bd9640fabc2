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
	"github.com/flowir-org/flowir/ast"
	"github.com/flowir-org/flowir/base/ordered"
	"github.com/flowir-org/flowir/diag"
	"github.com/flowir-org/flowir/ir"
	"github.com/flowir-org/flowir/ir/symexpr"
)

// context is the translation state owned by one graph: the name binding
// tables, the symbolic constant table, the current tail state and the
// loop targets of the construct being lowered.
//
// Contexts are created by the translator alongside their graph and
// passed explicitly through the recursive descent. They must never be
// shared across graphs; the single-threaded depth-first lowering
// enforces this by construction.
type context struct {
	tr    *Translator
	graph *ir.Graph
	// global is the top-level context, nil for the top-level itself.
	global *context

	// names maps source identifiers to graph-unique container names.
	// An identifier is never remapped once bound.
	names *ordered.Map[string, string]
	// constants records symbols whose value is known at translation
	// time; they participate in folding of shape expressions.
	constants *ordered.Map[string, symexpr.Expr]

	// tail is the current end of the control flow being built.
	tail *ir.State
	// loopMerge is the merge state of the innermost enclosing loop,
	// the target of break statements.
	loopMerge *ir.State
	// breakSrc marks the state a break escaped from, so sibling
	// wiring does not re-merge it.
	breakSrc *ir.State
	// scope names the module defining the procedure this context
	// lowers, empty for the entry scope. Callee resolution applies
	// the scope's import renames.
	scope string
}

func (t *Translator) newContext(g *ir.Graph, global *context) *context {
	ctx := &context{
		tr:        t,
		graph:     g,
		global:    global,
		names:     ordered.NewMap[string, string](),
		constants: ordered.NewMap[string, symexpr.Expr](),
	}
	t.contexts = append(t.contexts, ctx)
	return ctx
}

// topLevel returns the top-level context.
func (ctx *context) topLevel() *context {
	if ctx.global == nil {
		return ctx
	}
	return ctx.global
}

// bind returns the graph-unique container name for a source identifier,
// creating the mapping on first use. Binding is idempotent.
func (ctx *context) bind(name string) string {
	if unique, ok := ctx.names.Load(name); ok {
		return unique
	}
	unique := ctx.graph.FindNewName(name)
	ctx.names.Store(name, unique)
	ctx.tr.allContainerNames = append(ctx.tr.allContainerNames, unique)
	return unique
}

// lookupLocal resolves an identifier in the local graph only.
func (ctx *context) lookupLocal(name string) (string, bool) {
	return ctx.names.Load(name)
}

// lookupInContext resolves an identifier in the local scope first,
// falling back to the top-level scope: union semantics where local
// shadows global.
func (ctx *context) lookupInContext(name string) (string, bool) {
	if unique, ok := ctx.names.Load(name); ok {
		return unique, true
	}
	if ctx.global == nil {
		return "", false
	}
	return ctx.global.names.Load(name)
}

// mustLookup resolves an identifier or fails with UnknownVariable.
func (ctx *context) mustLookup(node ast.Node, name string) (string, error) {
	unique, ok := ctx.lookupInContext(name)
	if !ok {
		return "", diag.Errorf(diag.UnknownVariable, node, "unknown variable %s", name)
	}
	return unique, nil
}

// containerInContext resolves a graph-unique name against the union of
// the local and the top-level container sets.
func (ctx *context) containerInContext(unique string) (*ir.Container, bool) {
	if c, ok := ctx.graph.Container(unique); ok {
		return c, true
	}
	if ctx.global == nil {
		return nil, false
	}
	return ctx.global.graph.Container(unique)
}

// constant returns the known value of a constant symbol, resolving the
// local table first and the top-level table second.
func (ctx *context) constant(name string) (symexpr.Expr, bool) {
	if v, ok := ctx.constants.Load(name); ok {
		return v, true
	}
	if ctx.global == nil {
		return "", false
	}
	return ctx.global.constants.Load(name)
}

// constValue adapts the constant table for symbolic folding.
func (ctx *context) constValue(name string) (int64, bool) {
	v, ok := ctx.constant(name)
	if !ok {
		return 0, false
	}
	return v.IntValue()
}

// ensureStart makes sure the graph has a start state to chain from.
func (ctx *context) ensureStart() *ir.State {
	if ctx.tail == nil {
		ctx.tail = ctx.graph.AddState("Begin")
	}
	return ctx.tail
}

// addSimpleState appends a state connected to the current tail with an
// unconditional edge and advances the tail.
func (ctx *context) addSimpleState(label string) *ir.State {
	s := ctx.graph.AddState(label)
	if ctx.tail != nil {
		ctx.graph.AddEdge(ctx.tail, s, nil)
	}
	ctx.tail = s
	return s
}

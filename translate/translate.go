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

// Package translate lowers a normalized syntax tree into a stateful
// dataflow graph: control flow becomes states and guarded transitions,
// statements become tasklets wired to containers by memlets, and
// procedure calls become nested graph invocations.
package translate

import (
	"github.com/flowir-org/flowir/ast"
	"github.com/flowir-org/flowir/diag"
	"github.com/flowir-org/flowir/ir"
)

// Translator lowers one program into one graph tree. A translator is
// single use: create one per top-level graph.
type Translator struct {
	prog *ast.Program

	root    *ir.Graph
	rootCtx *context
	// contexts is the arena of all graph contexts in creation order.
	contexts []*context

	// pending holds allocatable declarations waiting for their
	// allocate statement. Entries keep a stable index; matched
	// entries are marked done rather than shifted.
	pending []*pendingAlloc

	// moduleVars records module-level variables and their defining
	// module, in declaration order.
	moduleVars []moduleVar

	// structTypes registers derived types by source name.
	structTypes map[string]*ir.StructType

	// libraries maps external call names to the name of their
	// library state variable; libStates lists those variables.
	libraries map[string]string
	libStates []string

	// renames holds the per-scope import rename tables of the
	// resolver: local name to canonical exported name, keyed by the
	// importing module (empty key for the entry scope).
	renames map[string]map[string]string

	// allContainerNames accumulates every bound unique name, for
	// introspection and tests.
	allContainerNames []string

	// transient is the current transient mode for declarations.
	transient bool

	// startPoint selects a procedure as the translation entry
	// instead of the main program.
	startPoint string

	// multiGraphs emits each inlined procedure as an independent
	// graph referenced by name instead of nesting it.
	multiGraphs bool

	// produced collects the independent graphs emitted in
	// multi-graph mode.
	produced []*ir.Graph

	viewCount int
}

type moduleVar struct {
	name   string
	module string
}

type pendingAlloc struct {
	name      string
	dtype     ir.DataType
	ctx       *context
	transient bool
	done      bool
}

// Option configures a translator.
type Option func(*Translator)

// WithStartPoint translates the named procedure instead of the main
// program. Module specifications are still lowered first, as
// non-transient globals.
func WithStartPoint(name string) Option {
	return func(t *Translator) { t.startPoint = name }
}

// WithMultipleGraphs emits inlined procedures as independent graphs.
func WithMultipleGraphs() Option {
	return func(t *Translator) { t.multiGraphs = true }
}

// WithLibraryState wires every call to callName through the named
// library state variable, serializing such calls against each other.
func WithLibraryState(callName, stateVar string) Option {
	return func(t *Translator) {
		t.libraries[callName] = stateVar
		t.libStates = append(t.libStates, stateVar)
	}
}

// WithRenames applies the resolver's import rename tables, so a callee
// imported under a local alias still resolves to its definition.
func WithRenames(tables map[string]map[string]string) Option {
	return func(t *Translator) { t.renames = tables }
}

// New returns a translator for one program.
func New(prog *ast.Program, opts ...Option) *Translator {
	t := &Translator{
		prog:        prog,
		structTypes: make(map[string]*ir.StructType),
		libraries:   make(map[string]string),
		transient:   true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate lowers the program into a graph with the given name.
func (t *Translator) Translate(name string) (*ir.Graph, error) {
	t.root = ir.New(name)
	t.rootCtx = t.newContext(t.root, nil)
	if err := t.lowerProgram(t.rootCtx, t.prog); err != nil {
		return nil, err
	}
	return t.root, nil
}

// Produced returns the independent graphs emitted in multi-graph mode,
// in emission order.
func (t *Translator) Produced() []*ir.Graph { return t.produced }

// ContainerNames returns every unique container name bound during the
// translation, in binding order.
func (t *Translator) ContainerNames() []string { return t.allContainerNames }

func (t *Translator) lowerProgram(ctx *context, prog *ast.Program) error {
	// Module-level declarations become shared globals of the
	// top-level graph and are never transient.
	t.transient = false
	for _, mod := range prog.Modules {
		if err := t.lowerModuleSpec(ctx, mod); err != nil {
			return err
		}
	}
	t.transient = true

	if t.startPoint != "" {
		proc, home := t.findProcedure("", t.startPoint)
		if proc == nil {
			return diag.Errorf(diag.UnknownVariable, prog, "start point %s not found", t.startPoint)
		}
		call := &ast.Call{Src: proc.Src, Name: &ast.Name{Src: proc.Src, Ident: proc.Name}}
		for _, arg := range proc.Args {
			call.Args = append(call.Args, arg)
		}
		return t.inlineProcedure(ctx, proc, call, home)
	}

	main := prog.Main
	if main == nil {
		return nil
	}
	if err := t.lowerSpec(ctx, main.Spec); err != nil {
		return err
	}
	return t.lower(ctx, main.Body)
}

func (t *Translator) lowerModuleSpec(ctx *context, mod *ast.Module) error {
	if mod.Spec == nil {
		return nil
	}
	if err := t.lowerSpec(ctx, mod.Spec); err != nil {
		return err
	}
	for _, decl := range mod.Spec.Decls {
		for _, v := range decl.Decls {
			t.moduleVars = append(t.moduleVars, moduleVar{name: v.Name, module: mod.Name})
		}
	}
	return nil
}

func (t *Translator) lowerSpec(ctx *context, spec *ast.SpecificationPart) error {
	if spec == nil {
		return nil
	}
	for _, td := range spec.TypeDefs {
		if err := t.lowerDerivedType(ctx, td); err != nil {
			return err
		}
	}
	for _, sym := range spec.Symbols {
		if err := t.lowerSymbolDecl(ctx, sym); err != nil {
			return err
		}
	}
	for _, decl := range spec.Decls {
		if err := t.lower(ctx, decl); err != nil {
			return err
		}
	}
	return nil
}

// lower dispatches one statement node. The node set is closed; an
// unknown node is a translator bug surfaced as an unsupported
// construct.
func (t *Translator) lower(ctx *context, n ast.Node) error {
	switch n := n.(type) {
	case nil:
		return nil
	case *ast.Block:
		for _, stmt := range n.Stmts {
			if err := t.lower(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	case *ast.DeclStmt:
		for _, v := range n.Decls {
			if err := t.lowerVarDecl(ctx, v); err != nil {
				return err
			}
		}
		return nil
	case *ast.SymbolDecl:
		return t.lowerSymbolDecl(ctx, n)
	case *ast.DerivedTypeDef:
		return t.lowerDerivedType(ctx, n)
	case *ast.If:
		return t.lowerIf(ctx, n)
	case *ast.For:
		return t.lowerFor(ctx, n)
	case *ast.Break:
		return t.lowerBreak(ctx, n)
	case *ast.BinOp:
		return t.lowerBinOp(ctx, n)
	case *ast.Call:
		return t.lowerCall(ctx, n)
	case *ast.Allocate:
		return t.lowerAllocate(ctx, n)
	case *ast.PointerAssign:
		return t.lowerPointerAssign(ctx, n)
	case *ast.Write:
		return diag.Errorf(diag.UnsupportedConstruct, n, "write statements have no graph lowering")
	}
	return diag.Errorf(diag.UnsupportedConstruct, n, "cannot lower %T", n)
}

// findProcedure resolves a callee definition by name across the free
// procedures and every module, after applying the import renames of
// the calling scope. The second result names the defining module.
func (t *Translator) findProcedure(scope, name string) (*ast.Procedure, string) {
	if table, ok := t.renames[scope]; ok {
		if canonical, ok := table[name]; ok {
			name = canonical
		}
	}
	for _, p := range t.prog.Subroutines {
		if p.Name == name {
			return p, ""
		}
	}
	for _, p := range t.prog.Functions {
		if p.Name == name {
			return p, ""
		}
	}
	for _, mod := range t.prog.Modules {
		for _, p := range mod.Subroutines {
			if p.Name == name {
				return p, mod.Name
			}
		}
		for _, p := range mod.Functions {
			if p.Name == name {
				return p, mod.Name
			}
		}
	}
	return nil, ""
}

// Procedures translates every module procedure that has a body into its
// own independent graph. Failures are reported per procedure as soft
// diagnostics; graphs that lowered successfully are still returned.
func Procedures(prog *ast.Program, opts ...Option) ([]*ir.Graph, *diag.Diagnostics) {
	diags := &diag.Diagnostics{}
	var graphs []*ir.Graph
	for _, mod := range prog.Modules {
		for _, proc := range mod.Subroutines {
			if proc.Body == nil {
				continue
			}
			// The entry wrapper holds the globals and the call wiring;
			// the procedure graph itself is emitted alongside under the
			// procedure's own name.
			t := New(prog, append(opts, WithStartPoint(proc.Name), WithMultipleGraphs())...)
			g, err := t.Translate(proc.Name + "_entry")
			if err != nil {
				diags.Append(diag.Errorf(diag.ModuleLoweringFailed, proc, "cannot lower %s: %v", proc.Name, err))
				continue
			}
			graphs = append(graphs, g)
			graphs = append(graphs, t.Produced()...)
		}
	}
	return graphs, diags
}

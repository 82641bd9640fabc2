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
	"github.com/flowir-org/flowir/diag"
	"github.com/flowir-org/flowir/ir"
	"github.com/flowir-org/flowir/ir/symexpr"
)

// primitiveTypes is the fixed source-type table. Unlisted type names
// resolve through the derived type registry and otherwise fail.
var primitiveTypes = map[string]ir.DataType{
	"integer": ir.Int32,
	"real":    ir.Float64,
	"double":  ir.Float64,
	"logical": ir.Bool,
	"char":    ir.Char,
}

func (t *Translator) dataType(node ast.Node, name string) (ir.DataType, error) {
	if dt, ok := primitiveTypes[name]; ok {
		return dt, nil
	}
	return "", diag.Errorf(diag.UnknownType, node, "unknown type %s", name)
}

// shape evaluates declared size expressions into symbolic extents,
// folding known constants.
func (ctx *context) shape(sizes []ast.Expr) []symexpr.Expr {
	var shape []symexpr.Expr
	for _, size := range sizes {
		e := symexpr.Expr(exprText(size))
		shape = append(shape, symexpr.Fold(e, ctx.constValue))
	}
	return shape
}

// oneBasedOffsets returns the offset vector of a one-based array.
func oneBasedOffsets(rank int) []symexpr.Expr {
	offsets := make([]symexpr.Expr, rank)
	for i := range offsets {
		offsets[i] = symexpr.Int(-1)
	}
	return offsets
}

func zeroOffsets(rank int) []symexpr.Expr {
	offsets := make([]symexpr.Expr, rank)
	for i := range offsets {
		offsets[i] = symexpr.Int(0)
	}
	return offsets
}

// lowerVarDecl declares a container for one variable. Declarations of
// already-bound names and of names shadowed by a run-time symbol are
// no-ops. Allocatable arrays only join the pending arena; their
// container appears when the allocate statement arrives.
func (t *Translator) lowerVarDecl(ctx *context, node *ast.VarDecl) error {
	if node.Alloc {
		dt, err := t.dataType(node, node.Type)
		if err != nil {
			return err
		}
		t.pending = append(t.pending, &pendingAlloc{
			name:      node.Name,
			dtype:     dt,
			ctx:       ctx,
			transient: t.transient,
		})
		return nil
	}
	if _, bound := ctx.lookupLocal(node.Name); bound {
		return nil
	}
	if ctx.graph.HasSymbol(node.Name) {
		return nil
	}
	if st, ok := t.structTypes[node.Type]; ok {
		unique := ctx.bind(node.Name)
		_, err := ctx.graph.AddStructData(unique, st, t.transient)
		return err
	}
	dt, err := t.dataType(node, node.Type)
	if err != nil {
		return err
	}
	unique := ctx.bind(node.Name)
	shape := ctx.shape(node.Sizes)
	if len(shape) == 0 {
		_, err := ctx.graph.AddScalar(unique, dt, t.transient)
		return err
	}
	_, err = ctx.graph.AddArray(unique, dt, shape, symexpr.Strides(shape), oneBasedOffsets(len(shape)), t.transient)
	return err
}

// lowerSymbolDecl declares a run-time symbol. A literal initializer,
// or an initializer naming an already-known constant, also records the
// symbol in the constant table. Initialized symbols get their value
// through an interstate assignment out of a dedicated state.
func (t *Translator) lowerSymbolDecl(ctx *context, node *ast.SymbolDecl) error {
	if _, known := ctx.constants.Load(node.Name); !known {
		switch init := node.Init.(type) {
		case *ast.IntLit:
			ctx.constants.Store(node.Name, symexpr.Expr(init.Value))
		case *ast.RealLit:
			ctx.constants.Store(node.Name, symexpr.Expr(init.Value))
		case *ast.Name:
			if v, ok := ctx.constants.Load(init.Ident); ok {
				ctx.constants.Store(node.Name, v)
			}
		}
	}
	if ctx.graph.HasSymbol(node.Name) {
		return nil
	}
	dt, err := t.dataType(node, node.Type)
	if err != nil {
		return err
	}
	ctx.graph.AddSymbol(node.Name, dt)
	ctx.ensureStart()
	if node.Init != nil {
		state := ctx.graph.AddState("Dummystate_" + node.Name)
		edge := (&ir.Edge{}).Assign(node.Name, ctx.processedText(node.Init))
		ctx.graph.AddEdge(ctx.tail, state, edge)
		ctx.tail = state
	}
	return nil
}

// lowerAllocate materializes pending allocatable arrays with the
// concrete sizes of the allocate statement. More than one live pending
// entry for the same name is ambiguous and rejected. An allocation
// with no pending entry is ignored; the name was either already
// materialized or belongs to another scope.
func (t *Translator) lowerAllocate(ctx *context, node *ast.Allocate) error {
	for _, item := range node.Items {
		idx, err := t.findPending(item, item.Name.Ident)
		if err != nil {
			return err
		}
		if idx < 0 {
			continue
		}
		p := t.pending[idx]
		shape := p.ctx.shape(item.Sizes)
		unique := p.ctx.bind(p.name)
		if _, err := p.ctx.graph.AddArray(unique, p.dtype, shape, symexpr.Strides(shape), oneBasedOffsets(len(shape)), p.transient); err != nil {
			return err
		}
		p.done = true
	}
	return nil
}

// findPending locates the single live pending allocation for a name.
func (t *Translator) findPending(node ast.Node, name string) (int, error) {
	found := -1
	for i, p := range t.pending {
		if p.done || p.name != name {
			continue
		}
		if found >= 0 {
			return -1, diag.Errorf(diag.AmbiguousAllocation, node, "more than one pending allocation for %s", name)
		}
		found = i
	}
	return found, nil
}

// lowerPointerAssign aliases the pointer name onto the container bound
// to the target: both names map to the same container afterwards. The
// pointer's own pending allocation, if any, is retired.
func (t *Translator) lowerPointerAssign(ctx *context, node *ast.PointerAssign) error {
	target, ok := ctx.lookupLocal(node.Target.Ident)
	if !ok {
		return diag.Errorf(diag.UnknownVariable, node, "pointer target %s is not bound", node.Target.Ident)
	}
	idx, err := t.findPending(node, node.Pointer.Ident)
	if err != nil {
		return err
	}
	if idx >= 0 {
		t.pending[idx].done = true
	}
	ctx.names.Store(node.Pointer.Ident, target)
	return nil
}

// lowerDerivedType registers a derived type from its component
// declarations.
func (t *Translator) lowerDerivedType(ctx *context, node *ast.DerivedTypeDef) error {
	st := ir.NewStructType(node.Name)
	for _, comp := range node.Components {
		dt, err := t.dataType(comp, comp.Type)
		if err != nil {
			return err
		}
		field := &ir.Container{Name: comp.Name, Type: dt, Storage: ir.Default}
		if len(comp.Sizes) > 0 {
			shape := ctx.shape(comp.Sizes)
			field.Shape = shape
			field.Strides = symexpr.Strides(shape)
			field.Offsets = oneBasedOffsets(len(shape))
		}
		st.Fields.Store(comp.Name, field)
	}
	t.structTypes[node.Name] = st
	return nil
}

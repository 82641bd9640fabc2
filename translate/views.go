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

	"github.com/flowir-org/flowir/ast"
	"github.com/flowir-org/flowir/ir"
	"github.com/flowir-org/flowir/ir/symexpr"
)

// axisSel is the selection applied to one base axis: a concrete index
// dropping the axis, or the kept span lo..hi.
type axisSel struct {
	index symexpr.Expr
	lo    symexpr.Expr
	hi    symexpr.Expr
}

// reduced is an argument descriptor after applying a subscript: the
// axes kept by whole-axis or bounded-range indices, with the stride
// and offset of each dropped axis removed.
type reduced struct {
	shape   []symexpr.Expr
	strides []symexpr.Expr
	offsets []symexpr.Expr
	axes    []axisSel
}

// scalar reports whether the reduced descriptor selects one element.
func (r *reduced) scalar() bool {
	return len(r.shape) == 0 || (len(r.shape) == 1 && r.shape[0].IsOne())
}

// reduce applies an argument expression to the base container
// descriptor. A bare name keeps the full descriptor; a subscript drops
// every axis bound to a concrete index and narrows every axis bound to
// a bounded range.
func (ctx *context) reduce(base *ir.Container, actual ast.Expr) *reduced {
	r := &reduced{}
	sub, ok := actual.(*ast.ArraySubscript)
	if !ok {
		r.shape = base.Shape
		r.strides = base.Strides
		r.offsets = base.Offsets
		for k := range base.Shape {
			r.axes = append(r.axes, axisSel{lo: symexpr.Int(1), hi: base.Shape[k]})
		}
		return r
	}
	for k, idx := range sub.Indices {
		if k >= base.Rank() {
			break
		}
		switch idx := idx.(type) {
		case *ast.RangeAll:
			r.shape = append(r.shape, base.Shape[k])
			r.strides = append(r.strides, base.Strides[k])
			r.offsets = append(r.offsets, base.Offsets[k])
			r.axes = append(r.axes, axisSel{lo: symexpr.Int(1), hi: base.Shape[k]})
		case *ast.RangeIndex:
			lo := symexpr.Fold(symexpr.Expr(ctx.processedText(idx.Lo)), ctx.constValue)
			hi := symexpr.Fold(symexpr.Expr(ctx.processedText(idx.Hi)), ctx.constValue)
			r.shape = append(r.shape, symexpr.Add(symexpr.Sub(hi, lo), symexpr.Int(1)))
			r.strides = append(r.strides, base.Strides[k])
			r.offsets = append(r.offsets, base.Offsets[k])
			r.axes = append(r.axes, axisSel{lo: lo, hi: hi})
		default:
			r.axes = append(r.axes, axisSel{index: symexpr.Expr(ctx.processedText(idx))})
		}
	}
	return r
}

// baseRange is the full-rank subset on the base container: a point per
// concrete index, the selected one-based span per kept axis.
func (r *reduced) baseRange() ir.Range {
	var rng ir.Range
	for _, ax := range r.axes {
		if ax.index != "" {
			rng = append(rng, ir.Point(ax.index))
			continue
		}
		rng = append(rng, ir.Span{Start: ax.lo, End: ax.hi, Step: symexpr.Int(1)})
	}
	return rng
}

// viewRange is the zero-based subset covering the whole view.
func (r *reduced) viewRange() ir.Range {
	var rng ir.Range
	for _, size := range r.shape {
		rng = append(rng, ir.Span{
			Start: symexpr.Int(0),
			End:   symexpr.Sub(size, symexpr.Int(1)),
			Step:  symexpr.Int(1),
		})
	}
	return rng
}

// viewNodes holds the access nodes of one argument view inside the
// call state.
type viewNodes struct {
	name string
	// in exposes the view for reading by the invocation; data flows
	// base -> in before the call.
	in *ir.AccessNode
	// out receives the written view; data flows out -> base after
	// the call.
	out *ir.AccessNode
}

// makeView declares a zero-offset view over a subset of a base
// container and wires the aliasing memlets in the call state: one
// filling the view from the base before the call when the callee
// reads, one spilling it back when the callee writes.
func (t *Translator) makeView(ctx *context, state *ir.State, base *ir.Container, r *reduced, read, write bool) (*viewNodes, error) {
	name := fmt.Sprintf("%s_view_%d", base.Name, t.viewCount)
	t.viewCount++
	if _, err := ctx.graph.AddView(name, base, r.shape, r.strides, zeroOffsets(len(r.shape))); err != nil {
		return nil, err
	}
	v := &viewNodes{name: name}
	if read {
		v.in = state.AddWrite(name)
		state.AddMemlet(&ir.Memlet{
			Src:         state.AddRead(base.Name),
			Dst:         v.in,
			Data:        base.Name,
			Subset:      r.baseRange(),
			OtherSubset: r.viewRange(),
		})
	}
	if write {
		v.out = state.AddRead(name)
		state.AddMemlet(&ir.Memlet{
			Src:         v.out,
			Dst:         state.AddWrite(base.Name),
			Data:        name,
			Subset:      r.viewRange(),
			OtherSubset: r.baseRange(),
		})
	}
	return v, nil
}

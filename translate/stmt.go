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
	"github.com/flowir-org/flowir/diag"
	"github.com/flowir-org/flowir/ir"
	"github.com/flowir-org/flowir/ir/symexpr"
)

// lowerBinOp lowers an assignment statement into a single-tasklet
// state. Each container occurrence on the right-hand side becomes an
// input port named after the source identifier and its occurrence
// count; the written container becomes the single output port. Indices
// move out of the body into the memlet subsets.
//
// An assignment whose right-hand side is one non-intrinsic call is
// re-dispatched as a procedure call with the target as the trailing
// result argument.
func (t *Translator) lowerBinOp(ctx *context, node *ast.BinOp) error {
	if node.Op != "=" {
		return diag.Errorf(diag.UnsupportedConstruct, node, "operator %s is not a statement", node.Op)
	}
	calls := ast.Calls(node)
	var external []*ast.Call
	for _, c := range calls {
		if !isIntrinsic(c.Name.Ident) {
			external = append(external, c)
		}
	}
	if len(external) > 1 {
		return diag.Errorf(diag.UnsupportedConstruct, node, "more than one procedure call in one assignment")
	}
	if len(external) == 1 {
		call := external[0]
		args := append(append([]ast.Expr{}, call.Args...), node.Left)
		return t.lowerCall(ctx, &ast.Call{Src: call.Src, Name: call.Name, Args: args, HasRet: true})
	}

	var lval *ast.Name
	switch lhs := node.Left.(type) {
	case *ast.Name:
		lval = lhs
	case *ast.ArraySubscript:
		lval = lhs.Name
	default:
		return diag.Errorf(diag.UnsupportedConstruct, node.Left, "cannot assign to %T", node.Left)
	}

	// Assigning to a run-time symbol is an interstate assignment,
	// not a tasklet.
	if ctx.graph.HasSymbol(lval.Ident) {
		ctx.ensureStart()
		state := ctx.graph.AddState(fmt.Sprintf("Assign_l_%d_c_%d", node.Src.Line, node.Src.Col))
		edge := (&ir.Edge{}).Assign(lval.Ident, ctx.processedText(node.Right))
		ctx.graph.AddEdge(ctx.tail, state, edge)
		ctx.tail = state
		return nil
	}

	subsOf := subscriptsOf(node)

	// Input ports, one per container occurrence, in source order.
	ports := map[*ast.Name]string{}
	var inOcc []*ast.Name
	var inNames, inPorts []string
	counts := map[string]int{}
	for _, occ := range ast.Inputs(node) {
		if ctx.graph.HasSymbol(occ.Ident) {
			continue
		}
		mapped, ok := ctx.lookupInContext(occ.Ident)
		if !ok {
			continue
		}
		if _, isContainer := ctx.containerInContext(mapped); !isContainer {
			continue
		}
		port := fmt.Sprintf("%s_%d_in", occ.Ident, counts[mapped])
		counts[mapped]++
		ports[occ] = port
		inOcc = append(inOcc, occ)
		inNames = append(inNames, mapped)
		inPorts = append(inPorts, port)
	}

	outMapped, err := ctx.mustLookup(lval, lval.Ident)
	if err != nil {
		return err
	}
	outContainer, ok := ctx.containerInContext(outMapped)
	if !ok {
		return diag.Errorf(diag.UnknownVariable, lval, "%s is not a container", lval.Ident)
	}
	outPort := lval.Ident + "_out"
	ports[lval] = outPort

	state := ctx.addSimpleState(fmt.Sprintf("State_l_%d_c_%d", node.Src.Line, node.Src.Col))
	tasklet := state.AddTasklet(
		fmt.Sprintf("T_l_%d_c_%d", node.Src.Line, node.Src.Col),
		inPorts, []string{outPort}, "")
	tasklet.Body = taskletText(node, ports)

	for i, occ := range inOcc {
		c, _ := ctx.containerInContext(inNames[i])
		state.ReadMemlet(inNames[i], tasklet, inPorts[i], ctx.occurrenceRange(subsOf[occ], c))
	}
	state.WriteMemlet(outMapped, tasklet, outPort, ctx.occurrenceRange(subsOf[lval], outContainer))
	return nil
}

// subscriptsOf maps each subscripted variable occurrence to its
// subscript expression, by node identity.
func subscriptsOf(node ast.Node) map[*ast.Name]*ast.ArraySubscript {
	subs := map[*ast.Name]*ast.ArraySubscript{}
	ast.Walk(node, func(c ast.Node) bool {
		if s, ok := c.(*ast.ArraySubscript); ok {
			subs[s.Name] = s
		}
		return true
	})
	return subs
}

// occurrenceRange derives the memlet subset of one variable occurrence.
// A bare name or a scalar container accesses the whole container; a
// subscripted occurrence accesses a point per concrete index, the full
// extent per whole-axis index and the bounded span per range index.
func (ctx *context) occurrenceRange(sub *ast.ArraySubscript, c *ir.Container) ir.Range {
	if c == nil || c.IsScalar() || sub == nil {
		return nil
	}
	var rng ir.Range
	for k, idx := range sub.Indices {
		if k >= c.Rank() {
			break
		}
		switch idx := idx.(type) {
		case *ast.RangeAll:
			rng = append(rng, ir.Span{Start: symexpr.Int(1), End: c.Shape[k], Step: symexpr.Int(1)})
		case *ast.RangeIndex:
			rng = append(rng, ir.Span{
				Start: symexpr.Expr(ctx.processedText(idx.Lo)),
				End:   symexpr.Expr(ctx.processedText(idx.Hi)),
				Step:  symexpr.Int(1),
			})
		default:
			rng = append(rng, ir.Point(symexpr.Expr(ctx.processedText(idx))))
		}
	}
	return rng
}

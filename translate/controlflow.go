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
)

// lowerIf builds the conditional state topology:
//
//	Begin -> Guard -(cond)-> BodyStart ... BodyEnd -> Merge
//	             \-(not cond)-> [BodyElseStart ... BodyElseEnd ->] Merge
//
// The two guard conditions are the rendered text and its syntactic
// negation, so exactly one outgoing edge matches.
func (t *Translator) lowerIf(ctx *context, node *ast.If) error {
	name := fmt.Sprintf("If_l_%d_c_%d", node.Src.Line, node.Src.Col)
	ctx.addSimpleState("Begin" + name)
	guard := ctx.addSimpleState("Guard" + name)
	cond := ctx.processedText(node.Cond)

	bodyStart := ctx.graph.AddState("BodyIfStart" + name)
	ctx.graph.AddEdge(guard, bodyStart, &ir.Edge{Condition: cond})
	ctx.tail = bodyStart
	if err := t.lower(ctx, node.Body); err != nil {
		return err
	}
	merge := ctx.graph.AddState("MergeState" + name)
	// A branch that escaped through a break must not fall through to
	// the merge state.
	if !ctx.escaped() {
		bodyEnd := ctx.addSimpleState("BodyIfEnd" + name)
		ctx.graph.AddEdge(bodyEnd, merge, nil)
	}

	if node.Else != nil && len(node.Else.Stmts) > 0 {
		elseName := fmt.Sprintf("Else_l_%d_c_%d", node.Else.Src.Line, node.Else.Src.Col)
		elseStart := ctx.graph.AddState("BodyElseStart" + elseName)
		ctx.graph.AddEdge(guard, elseStart, &ir.Edge{Condition: negate(cond)})
		ctx.tail = elseStart
		if err := t.lower(ctx, node.Else); err != nil {
			return err
		}
		if !ctx.escaped() {
			elseEnd := ctx.addSimpleState("BodyElseEnd" + elseName)
			ctx.graph.AddEdge(elseEnd, merge, nil)
		}
	} else {
		ctx.graph.AddEdge(guard, merge, &ir.Edge{Condition: negate(cond)})
	}
	ctx.tail = merge
	return nil
}

// escaped reports whether the current tail already left the structured
// flow through a break.
func (ctx *context) escaped() bool {
	return ctx.tail == ctx.breakSrc
}

// lowerFor builds the counted loop topology:
//
//	Begin -(iter := init)-> Guard -(cond)-> BeginLoop ... -> EndLoop
//	                          ^  \-(not cond)-> Merge        |
//	                          \----(iter := iter + step)-----/
//
// The iterator must already exist as a run-time symbol or a bound
// container; loop headers never declare.
func (t *Translator) lowerFor(ctx *context, node *ast.For) error {
	name := fmt.Sprintf("FOR_l_%d_c_%d", node.Src.Line, node.Src.Col)
	begin := ctx.addSimpleState("Begin" + name)
	guard := ctx.graph.AddState("Guard" + name)
	merge := ctx.graph.AddState("Merge" + name)

	lval, ok := node.Init.Left.(*ast.Name)
	if !ok {
		return diag.Errorf(diag.UnsupportedConstruct, node.Init, "loop iterator must be a plain variable")
	}
	iter := lval.Ident
	if !ctx.graph.HasSymbol(iter) {
		mapped, found := ctx.lookupLocal(iter)
		if !found {
			return diag.Errorf(diag.UnknownVariable, lval, "unknown loop iterator %s", iter)
		}
		iter = mapped
	}

	initEdge := (&ir.Edge{}).Assign(iter, ctx.processedText(node.Init.Right))
	ctx.graph.AddEdge(begin, guard, initEdge)

	cond := ctx.processedText(node.Cond)
	increment := iter + " + 1"
	if node.Iter != nil {
		increment = ctx.processedText(node.Iter.Right)
	}

	loopBody := ctx.graph.AddState("BeginLoop" + name)
	endLoop := ctx.graph.AddState("EndLoop" + name)
	ctx.graph.AddEdge(guard, loopBody, &ir.Edge{Condition: cond})
	ctx.graph.AddEdge(guard, merge, &ir.Edge{Condition: negate(cond)})

	savedMerge, savedBreak := ctx.loopMerge, ctx.breakSrc
	ctx.loopMerge, ctx.breakSrc = merge, nil
	ctx.tail = loopBody
	err := t.lower(ctx, node.Body)
	if err == nil && ctx.tail != ctx.breakSrc {
		ctx.graph.AddEdge(ctx.tail, endLoop, nil)
	}
	ctx.loopMerge, ctx.breakSrc = savedMerge, savedBreak
	if err != nil {
		return err
	}

	incEdge := (&ir.Edge{}).Assign(iter, increment)
	ctx.graph.AddEdge(endLoop, guard, incEdge)
	ctx.tail = merge
	return nil
}

// lowerBreak wires the current tail straight to the merge state of the
// innermost loop and marks it as a break source.
func (t *Translator) lowerBreak(ctx *context, node *ast.Break) error {
	if ctx.loopMerge == nil {
		return diag.Errorf(diag.UnsupportedConstruct, node, "break outside of a loop")
	}
	ctx.ensureStart()
	ctx.breakSrc = ctx.tail
	ctx.graph.AddEdge(ctx.tail, ctx.loopMerge, nil)
	return nil
}

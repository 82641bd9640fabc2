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
	"github.com/flowir-org/flowir/base/ordered"
	"github.com/flowir-org/flowir/diag"
	"github.com/flowir-org/flowir/ir"
)

// argPair binds one formal parameter to its actual argument.
type argPair struct {
	formal *ast.Name
	actual ast.Expr
}

// pairArguments builds the ordered formal/actual pairing of a call.
// A function callee accepts one extra trailing actual: the result
// receiver, paired with an implicit formal named after the procedure.
func pairArguments(proc *ast.Procedure, call *ast.Call) ([]argPair, error) {
	formals := proc.Args
	switch {
	case len(call.Args) == len(formals):
	case len(call.Args) == len(formals)+1 && proc.RetType != "":
		formals = append(append([]*ast.Name{}, formals...), &ast.Name{Src: proc.Src, Ident: proc.Name})
	default:
		return nil, diag.Errorf(diag.ArityMismatch, call,
			"call to %s has %d arguments, expected %d", proc.Name, len(call.Args), len(formals))
	}
	pairs := make([]argPair, len(formals))
	for i := range formals {
		pairs[i] = argPair{formal: formals[i], actual: call.Args[i]}
	}
	return pairs, nil
}

// lowerCall dispatches a call statement: callees with a known
// definition are inlined as nested graphs, everything else becomes an
// opaque external tasklet.
func (t *Translator) lowerCall(ctx *context, node *ast.Call) error {
	if proc, home := t.findProcedure(ctx.scope, node.Name.Ident); proc != nil {
		return t.inlineProcedure(ctx, proc, node, home)
	}
	return t.externalCall(ctx, node)
}

// boundArg is one container argument after binding: the caller-side
// container (or view) the memlets attach to, the nested-graph
// connector, and the subset moved through it.
type boundArg struct {
	conn   string
	data   string
	rng    ir.Range
	read   bool
	write  bool
	view   *viewNodes
	module bool
}

// inlineProcedure lowers a call to a defined procedure: a nested graph
// holding the callee body, an invocation node in a fresh call state,
// and memlets binding every container argument. Literal and renamed
// symbol arguments become prologue assignments inside the callee.
func (t *Translator) inlineProcedure(ctx *context, proc *ast.Procedure, call *ast.Call, home string) error {
	if proc.Body == nil {
		return nil
	}
	pairs, err := pairArguments(proc, call)
	if err != nil {
		return err
	}
	readSet, writeSet := procAccessSets(proc)

	nested := ir.New(proc.Name)
	nctx := t.newContext(nested, ctx.topLevel())
	nctx.scope = home
	callState := ctx.addSimpleState("Call_" + proc.Name)

	var injected []*ast.BinOp
	var bound []boundArg
	var ins, outs []string
	for _, p := range pairs {
		if ast.IsLiteral(p.actual) {
			injected = append(injected, &ast.BinOp{
				Src: call.Src, Op: "=",
				Left:  &ast.Name{Src: p.formal.Src, Ident: p.formal.Ident},
				Right: p.actual,
			})
			continue
		}
		srcName, isVar := ast.BaseName(p.actual)
		if !isVar {
			return diag.Errorf(diag.UnsupportedConstruct, p.actual,
				"argument %s of %s is neither a literal nor a variable", p.formal.Ident, proc.Name)
		}
		if ctx.graph.HasSymbol(srcName) {
			if p.formal.Ident != srcName {
				injected = append(injected, &ast.BinOp{
					Src: call.Src, Op: "=",
					Left:  &ast.Name{Src: p.formal.Src, Ident: p.formal.Ident},
					Right: p.actual,
				})
			}
			continue
		}
		ba, err := t.bindContainerArg(ctx, nctx, callState, p, srcName, readSet, writeSet)
		if err != nil {
			return err
		}
		if ba == nil {
			continue
		}
		bound = append(bound, *ba)
		if ba.read {
			ins = append(ins, ba.conn)
		}
		if ba.write {
			outs = append(outs, ba.conn)
		}
	}

	// Module variables referenced by the callee body without being
	// passed as arguments bind by name against the caller scope.
	for _, mv := range t.moduleVars {
		if _, alreadyBound := nctx.lookupLocal(mv.name); alreadyBound {
			continue
		}
		read, write := readSet[mv.name], writeSet[mv.name]
		if !read && !write {
			continue
		}
		mapped, ok := ctx.lookupLocal(mv.name)
		var base *ir.Container
		if ok {
			base, ok = ctx.containerInContext(mapped)
			if !ok {
				continue
			}
		} else {
			// The variable lives in the top-level graph only. Memlets
			// must stay graph-local, so the caller graph receives its
			// own copy of the descriptor first.
			gmapped, gok := ctx.topLevel().lookupLocal(mv.name)
			if !gok {
				continue
			}
			base, gok = ctx.topLevel().graph.Container(gmapped)
			if !gok {
				continue
			}
			mapped = ctx.bind(mv.name)
			if err := cloneContainer(ctx.graph, mapped, base); err != nil {
				return err
			}
		}
		conn := nctx.bind(mv.name)
		if err := cloneContainer(nested, conn, base); err != nil {
			return err
		}
		if read {
			ins = append(ins, conn)
		}
		if write {
			outs = append(outs, conn)
		}
		bound = append(bound, boundArg{conn: conn, data: mapped, read: read, write: write, module: true})
	}

	// Library state scalars serialize external calls across the
	// nesting boundary: always both an input and an output.
	for _, stateVar := range t.libStates {
		if !readSet[stateVar] && !writeSet[stateVar] {
			continue
		}
		mapped, ok, err := ctx.materialize(stateVar)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		conn := nctx.bind(stateVar)
		if _, err := nested.AddScalar(conn, ir.Int32, false); err != nil {
			return err
		}
		ins = append(ins, conn)
		outs = append(outs, conn)
		bound = append(bound, boundArg{conn: conn, data: mapped, read: true, write: true})
	}

	symbols := ordered.NewMap[string, string]()
	for name := range ctx.graph.Symbols.Keys() {
		symbols.Store(name, name)
	}
	if global := ctx.topLevel(); global != ctx {
		for name := range global.graph.Symbols.Keys() {
			if !symbols.Contains(name) {
				symbols.Store(name, name)
			}
		}
	}

	invoke := callState.AddInvoke(proc.Name, nested, ins, outs, symbols)
	if t.multiGraphs {
		invoke.Graph = nil
		invoke.External = proc.Name
		t.produced = append(t.produced, nested)
	}

	for _, ba := range bound {
		if ba.view != nil {
			if ba.read {
				callState.AddMemlet(&ir.Memlet{
					Src: ba.view.in, Dst: invoke, DstConn: ba.conn,
					Data: ba.view.name, Subset: ba.rng,
				})
			}
			if ba.write {
				callState.AddMemlet(&ir.Memlet{
					Src: invoke, SrcConn: ba.conn, Dst: ba.view.out,
					Data: ba.view.name, Subset: ba.rng,
				})
			}
			continue
		}
		if ba.read {
			callState.ReadMemlet(ba.data, invoke, ba.conn, ba.rng)
		}
		if ba.write {
			callState.WriteMemlet(ba.data, invoke, ba.conn, ba.rng)
		}
	}

	// Callee lowering: own declarations first, then the injected
	// prologue assignments, then the body.
	if err := t.lowerSpec(nctx, proc.Spec); err != nil {
		return err
	}
	for _, assign := range injected {
		if err := t.lowerBinOp(nctx, assign); err != nil {
			return err
		}
	}
	return t.lower(nctx, proc.Body)
}

// bindContainerArg binds one container argument: it declares the
// reduced-descriptor container in the nested graph and, for array
// subsets, synthesizes the caller-side view.
func (t *Translator) bindContainerArg(ctx, nctx *context, callState *ir.State, p argPair, srcName string, readSet, writeSet map[string]bool) (*boundArg, error) {
	mapped, err := ctx.mustLookup(p.actual, srcName)
	if err != nil {
		return nil, err
	}
	base, ok := ctx.containerInContext(mapped)
	if !ok {
		return nil, diag.Errorf(diag.UnknownVariable, p.actual, "%s is not a container", srcName)
	}
	read, write := readSet[p.formal.Ident], writeSet[p.formal.Ident]
	conn := nctx.bind(p.formal.Ident)
	r := ctx.reduce(base, p.actual)

	if r.scalar() {
		if _, err := nctx.graph.AddScalar(conn, base.Type, false); err != nil {
			return nil, err
		}
		rng := r.baseRange()
		if base.IsScalar() {
			rng = nil
		}
		return &boundArg{conn: conn, data: mapped, rng: rng, read: read, write: write}, nil
	}

	_, subscripted := p.actual.(*ast.ArraySubscript)
	if !subscripted {
		if _, err := nctx.graph.AddArray(conn, base.Type, r.shape, r.strides, r.offsets, false); err != nil {
			return nil, err
		}
		return &boundArg{conn: conn, data: mapped, read: read, write: write}, nil
	}

	// A strict array subset passes through a zero-offset view. The
	// connector stays one-based: the callee body indexes it like any
	// declared array.
	view, err := t.makeView(ctx, callState, base, r, read, write)
	if err != nil {
		return nil, err
	}
	if _, err := nctx.graph.AddArray(conn, base.Type, r.shape, r.strides, oneBasedOffsets(len(r.shape)), false); err != nil {
		return nil, err
	}
	return &boundArg{conn: conn, data: mapped, rng: r.viewRange(), read: read, write: write, view: view}, nil
}

// materialize resolves a name to a container of the local graph,
// cloning the descriptor down from the top level when the name is only
// bound there. Memlets must never cross a graph boundary.
func (ctx *context) materialize(name string) (string, bool, error) {
	if mapped, ok := ctx.lookupLocal(name); ok {
		return mapped, true, nil
	}
	gmapped, ok := ctx.topLevel().lookupLocal(name)
	if !ok {
		return "", false, nil
	}
	base, ok := ctx.topLevel().graph.Container(gmapped)
	if !ok {
		return "", false, nil
	}
	mapped := ctx.bind(name)
	if err := cloneContainer(ctx.graph, mapped, base); err != nil {
		return "", false, err
	}
	return mapped, true, nil
}

// cloneContainer declares a non-transient copy of a container
// descriptor in another graph.
func cloneContainer(g *ir.Graph, name string, base *ir.Container) error {
	if base.IsScalar() {
		_, err := g.AddScalar(name, base.Type, false)
		return err
	}
	_, err := g.AddArray(name, base.Type, base.Shape, base.Strides, base.Offsets, false)
	return err
}

// procAccessSets computes the source names a procedure reads and
// writes anywhere in its body or declarations.
func procAccessSets(proc *ast.Procedure) (reads, writes map[string]bool) {
	reads = map[string]bool{}
	writes = map[string]bool{}
	for _, occ := range ast.Inputs(proc) {
		reads[occ.Ident] = true
	}
	for _, occ := range ast.Outputs(proc) {
		writes[occ.Ident] = true
	}
	return reads, writes
}

// externalCall lowers a call with no known definition into an opaque
// tasklet. Array arguments are conservatively treated as read and
// written; a registered library state variable is wired through in
// both directions, serializing such calls. Calls to free are dropped.
func (t *Translator) externalCall(ctx *context, node *ast.Call) error {
	if node.Name.Ident == "free" {
		return nil
	}
	args := node.Args
	var retval ast.Expr
	if node.HasRet {
		retval = args[len(args)-1]
		args = args[:len(args)-1]
	}
	callExpr := &ast.Call{Src: node.Src, Name: node.Name, Args: args}
	subsOf := subscriptsOf(callExpr)

	ports := map[*ast.Name]string{}
	var inOcc []*ast.Name
	var inNames, inPorts []string
	var outNames, outPorts []string
	counts := map[string]int{}
	written := map[string]bool{}
	for _, occ := range ast.Inputs(callExpr) {
		if ctx.graph.HasSymbol(occ.Ident) {
			continue
		}
		mapped, ok := ctx.lookupInContext(occ.Ident)
		if !ok {
			continue
		}
		c, isContainer := ctx.containerInContext(mapped)
		if !isContainer {
			continue
		}
		port := fmt.Sprintf("%s_%d_in", occ.Ident, counts[mapped])
		counts[mapped]++
		ports[occ] = port
		inOcc = append(inOcc, occ)
		inNames = append(inNames, mapped)
		inPorts = append(inPorts, port)
		if !c.IsScalar() && !written[mapped] {
			written[mapped] = true
			outNames = append(outNames, mapped)
			outPorts = append(outPorts, occ.Ident+"_out")
		}
	}

	var retName *ast.Name
	var retMapped string
	var retContainer *ir.Container
	if retval != nil {
		ident, ok := ast.BaseName(retval)
		if !ok {
			return diag.Errorf(diag.UnsupportedConstruct, retval, "result of %s must be a variable", node.Name.Ident)
		}
		switch rv := retval.(type) {
		case *ast.Name:
			retName = rv
		case *ast.ArraySubscript:
			retName = rv.Name
			subsOf[retName] = rv
		}
		mapped, err := ctx.mustLookup(retval, ident)
		if err != nil {
			return err
		}
		retContainer, ok = ctx.containerInContext(mapped)
		if !ok {
			return diag.Errorf(diag.UnknownVariable, retval, "%s is not a container", ident)
		}
		retMapped = mapped
		ports[retName] = ident + "_out"
		outNames = append(outNames, mapped)
		outPorts = append(outPorts, ident+"_out")
	}

	stateVar, hasLib := t.libraries[node.Name.Ident]
	var libMapped string
	if hasLib {
		mapped, ok, err := ctx.materialize(stateVar)
		if err != nil {
			return err
		}
		if !ok {
			return diag.Errorf(diag.UnknownVariable, node, "library state %s is not declared", stateVar)
		}
		libMapped = mapped
		inPorts = append(inPorts, stateVar+"_task")
		outPorts = append(outPorts, stateVar+"_task_out")
	}

	state := ctx.addSimpleState(fmt.Sprintf("Ext_l_%d_c_%d", node.Src.Line, node.Src.Col))
	w := &exprWriter{ports: ports}
	if retval != nil {
		w.expr(retval, false)
		w.sb.WriteString(" = ")
	}
	w.expr(callExpr, false)
	tasklet := state.AddTasklet(
		fmt.Sprintf("Ext_%s_l_%d", node.Name.Ident, node.Src.Line),
		inPorts, outPorts, w.sb.String())

	for i, occ := range inOcc {
		c, _ := ctx.containerInContext(inNames[i])
		state.ReadMemlet(inNames[i], tasklet, inPorts[i], ctx.occurrenceRange(subsOf[occ], c))
	}
	for i, mapped := range outNames {
		if retval != nil && i == len(outNames)-1 {
			state.WriteMemlet(retMapped, tasklet, outPorts[i], ctx.occurrenceRange(subsOf[retName], retContainer))
			continue
		}
		state.WriteMemlet(mapped, tasklet, outPorts[i], nil)
	}
	if hasLib {
		state.ReadMemlet(libMapped, tasklet, stateVar+"_task", nil)
		state.WriteMemlet(libMapped, tasklet, stateVar+"_task_out", nil)
	}
	return nil
}

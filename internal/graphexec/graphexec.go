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

// Package graphexec interprets stateful dataflow graphs over float64
// data. It exists so that tests can check translated graphs against
// source-level semantics; it is not a backend and implements only what
// the translator emits.
package graphexec

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/flowir-org/flowir/ir"
	"github.com/flowir-org/flowir/ir/symexpr"
)

// Machine interprets graphs.
type Machine struct {
	external map[string]*ir.Graph
	// MaxSteps bounds the number of state transitions of one graph
	// run, so a bad guard cannot hang a test.
	MaxSteps int
}

// Option configures a machine.
type Option func(*Machine)

// WithExternal registers independently emitted graphs, resolved by
// name when an invoke node carries no inline graph.
func WithExternal(graphs ...*ir.Graph) Option {
	return func(m *Machine) {
		for _, g := range graphs {
			m.external[g.Name] = g
		}
	}
}

// New returns a machine.
func New(opts ...Option) *Machine {
	m := &Machine{external: map[string]*ir.Graph{}, MaxSteps: 100000}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run interprets a graph. symbols and data are read and mutated in
// place; containers absent from data are allocated zeroed.
func (m *Machine) Run(g *ir.Graph, symbols map[string]float64, data map[string][]float64) error {
	if symbols == nil {
		symbols = map[string]float64{}
	}
	return m.runGraph(g, symbols, data)
}

func consts(symbols map[string]float64) func(string) (int64, bool) {
	return func(name string) (int64, bool) {
		v, ok := symbols[name]
		return int64(v), ok
	}
}

func (m *Machine) runGraph(g *ir.Graph, symbols map[string]float64, data map[string][]float64) error {
	state := g.Start
	for steps := 0; state != nil; steps++ {
		if steps > m.MaxSteps {
			return errors.Errorf("graph %s: no termination after %d transitions", g.Name, m.MaxSteps)
		}
		// Allocation is re-attempted per state: extents may depend on
		// symbols assigned by earlier transitions.
		ensureAlloc(g, symbols, data)
		if err := m.runState(g, state, symbols, data); err != nil {
			return errors.Wrapf(err, "graph %s, state %s", g.Name, state.Name)
		}
		var next *ir.State
		for _, e := range g.OutEdges(state) {
			take := true
			if !e.Unconditional() {
				v, err := stateScope(symbols, data, g).eval(e.Condition)
				if err != nil {
					return errors.Wrapf(err, "graph %s, guard on %s -> %s", g.Name, e.From.Name, e.To.Name)
				}
				take = truthy(v)
			}
			if !take {
				continue
			}
			// Evaluate every assignment against the pre-transition
			// values, then commit.
			staged := map[string]float64{}
			for sym, valExpr := range e.Assignments.Iter() {
				v, err := stateScope(symbols, data, g).eval(valExpr)
				if err != nil {
					return errors.Wrapf(err, "graph %s, assignment of %s", g.Name, sym)
				}
				staged[sym] = v
			}
			for sym, v := range staged {
				symbols[sym] = v
			}
			next = e.To
			break
		}
		state = next
	}
	return nil
}

// stateScope resolves names for guards and assignments: symbols first,
// then scalar containers, with subscripted reads against arrays.
func stateScope(symbols map[string]float64, data map[string][]float64, g *ir.Graph) *evaluator {
	return &evaluator{
		lookup: func(name string) (float64, bool) {
			if v, ok := symbols[name]; ok {
				return v, true
			}
			c, ok := g.Container(name)
			if !ok || !c.IsScalar() {
				return 0, false
			}
			cells, ok := data[name]
			if !ok || len(cells) == 0 {
				return 0, false
			}
			return cells[0], true
		},
		index: func(name string, indices []float64) (float64, bool) {
			c, ok := g.Container(name)
			if !ok {
				return 0, false
			}
			at, err := flatIndex(c, indices, symbols)
			if err != nil {
				return 0, false
			}
			cells := data[name]
			if at < 0 || at >= len(cells) {
				return 0, false
			}
			return cells[at], true
		},
	}
}

func (m *Machine) runState(g *ir.Graph, s *ir.State, symbols map[string]float64, data map[string][]float64) error {
	// Dataflow schedule: a node runs once all memlets into it have a
	// completed source. Ties resolve in insertion order.
	indegree := map[ir.StateNode]int{}
	for _, mm := range s.Memlets {
		indegree[mm.Dst]++
	}
	var ready []ir.StateNode
	queued := map[ir.StateNode]bool{}
	for _, n := range s.Nodes {
		if indegree[n] == 0 {
			ready = append(ready, n)
			queued[n] = true
		}
	}
	done := 0
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		done++
		if err := m.runNode(g, s, n, symbols, data); err != nil {
			return err
		}
		for _, mm := range s.Memlets {
			if mm.Src != n {
				continue
			}
			indegree[mm.Dst]--
			if indegree[mm.Dst] == 0 && !queued[mm.Dst] {
				ready = append(ready, mm.Dst)
				queued[mm.Dst] = true
			}
		}
	}
	if done != len(s.Nodes) {
		return errors.Errorf("dataflow cycle: ran %d of %d nodes", done, len(s.Nodes))
	}
	return nil
}

func (m *Machine) runNode(g *ir.Graph, s *ir.State, n ir.StateNode, symbols map[string]float64, data map[string][]float64) error {
	switch n := n.(type) {
	case *ir.AccessNode:
		// Aliasing copies between two access nodes run when their
		// source materializes.
		for _, mm := range s.Memlets {
			if mm.Src != n {
				continue
			}
			if _, ok := mm.Dst.(*ir.AccessNode); !ok {
				continue
			}
			if err := copyMemlet(g, mm, symbols, data); err != nil {
				return err
			}
		}
		return nil
	case *ir.Tasklet:
		return m.runTasklet(g, s, n, symbols, data)
	case *ir.Invoke:
		return m.runInvoke(g, s, n, symbols, data)
	}
	return errors.Errorf("unknown node %T", n)
}

func (m *Machine) runTasklet(g *ir.Graph, s *ir.State, t *ir.Tasklet, symbols map[string]float64, data map[string][]float64) error {
	ports := map[string]float64{}
	for _, mm := range s.Memlets {
		if mm.Dst != t {
			continue
		}
		c, ok := g.Container(mm.Data)
		if !ok {
			return errors.Errorf("tasklet %s: unknown container %s", t.Name, mm.Data)
		}
		at, ok, err := pointIndex(c, mm.Subset, symbols)
		if err != nil {
			return err
		}
		if !ok {
			// Non-scalar port; usable only if the body never
			// references it.
			continue
		}
		cells := data[mm.Data]
		if at < 0 || at >= len(cells) {
			return errors.Errorf("tasklet %s: cell %d out of %s (%d cells)", t.Name, at, mm.Data, len(cells))
		}
		ports[mm.DstConn] = cells[at]
	}

	lhs, rhs, found := strings.Cut(t.Body, " = ")
	if !found {
		// Opaque external call body; nothing to compute.
		return nil
	}
	scope := stateScope(symbols, data, g)
	ev := &evaluator{
		lookup: func(name string) (float64, bool) {
			if v, ok := ports[name]; ok {
				return v, true
			}
			return scope.lookup(name)
		},
		index: scope.index,
	}
	v, err := ev.eval(rhs)
	if err != nil {
		return errors.Wrapf(err, "tasklet %s", t.Name)
	}
	outPort := strings.TrimSpace(lhs)
	for _, mm := range s.Memlets {
		if mm.Src != t || mm.SrcConn != outPort {
			continue
		}
		c, ok := g.Container(mm.Data)
		if !ok {
			return errors.Errorf("tasklet %s: unknown container %s", t.Name, mm.Data)
		}
		at, ok, err := pointIndex(c, mm.Subset, symbols)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Errorf("tasklet %s: output %s is not a single cell", t.Name, outPort)
		}
		cells := data[mm.Data]
		if at < 0 || at >= len(cells) {
			return errors.Errorf("tasklet %s: cell %d out of %s (%d cells)", t.Name, at, mm.Data, len(cells))
		}
		cells[at] = v
	}
	return nil
}

func (m *Machine) runInvoke(g *ir.Graph, s *ir.State, inv *ir.Invoke, symbols map[string]float64, data map[string][]float64) error {
	nested := inv.Graph
	if nested == nil {
		nested = m.external[inv.External]
	}
	if nested == nil {
		return errors.Errorf("invoke %s: no graph", inv.Name)
	}
	nestedSyms := map[string]float64{}
	scope := stateScope(symbols, data, g)
	for sym, valExpr := range inv.SymbolMapping.Iter() {
		v, err := scope.eval(valExpr)
		if err != nil {
			return errors.Wrapf(err, "invoke %s: symbol %s", inv.Name, sym)
		}
		nestedSyms[sym] = v
	}
	nestedData := map[string][]float64{}
	ensureAlloc(nested, nestedSyms, nestedData)
	for _, mm := range s.Memlets {
		if mm.Dst != inv {
			continue
		}
		src, ok := containerOf(g, mm)
		if !ok {
			return errors.Errorf("invoke %s: unknown container %s", inv.Name, mm.Data)
		}
		idx, err := subsetIndices(src, mm.Subset, symbols)
		if err != nil {
			return err
		}
		connIdx, err := connectorCells(nested, mm.DstConn, nestedSyms)
		if err != nil {
			return errors.Wrapf(err, "invoke %s", inv.Name)
		}
		if len(idx) != len(connIdx) {
			return errors.Errorf("invoke %s: %d cells into connector %s of %d cells",
				inv.Name, len(idx), mm.DstConn, len(connIdx))
		}
		dst := nestedData[mm.DstConn]
		for i, at := range idx {
			dst[connIdx[i]] = data[mm.Data][at]
		}
	}
	if err := m.runGraph(nested, nestedSyms, nestedData); err != nil {
		return err
	}
	for _, mm := range s.Memlets {
		if mm.Src != inv {
			continue
		}
		dst, ok := containerOf(g, mm)
		if !ok {
			return errors.Errorf("invoke %s: unknown container %s", inv.Name, mm.Data)
		}
		idx, err := subsetIndices(dst, mm.Subset, symbols)
		if err != nil {
			return err
		}
		connIdx, err := connectorCells(nested, mm.SrcConn, nestedSyms)
		if err != nil {
			return errors.Wrapf(err, "invoke %s", inv.Name)
		}
		if len(idx) != len(connIdx) {
			return errors.Errorf("invoke %s: %d cells out of connector %s of %d cells",
				inv.Name, len(idx), mm.SrcConn, len(connIdx))
		}
		src := nestedData[mm.SrcConn]
		for i, at := range idx {
			data[mm.Data][at] = src[connIdx[i]]
		}
	}
	return nil
}

// connectorCells enumerates the cells of an invoke connector's
// container in logical order. Connector containers may carry the
// strides of a larger caller array, so cells are not contiguous.
func connectorCells(nested *ir.Graph, conn string, nestedSyms map[string]float64) ([]int, error) {
	c, ok := nested.Container(conn)
	if !ok {
		return nil, errors.Errorf("connector %s has no container", conn)
	}
	return subsetIndices(c, nil, nestedSyms)
}

// copyMemlet moves data between two access nodes: Subset addresses the
// Data container, OtherSubset the other endpoint.
func copyMemlet(g *ir.Graph, mm *ir.Memlet, symbols map[string]float64, data map[string][]float64) error {
	srcName := mm.Src.(*ir.AccessNode).Container
	dstName := mm.Dst.(*ir.AccessNode).Container
	srcRange, dstRange := mm.Subset, mm.OtherSubset
	if mm.Data != srcName {
		srcRange, dstRange = mm.OtherSubset, mm.Subset
	}
	srcC, ok := g.Container(srcName)
	if !ok {
		return errors.Errorf("unknown container %s", srcName)
	}
	dstC, ok := g.Container(dstName)
	if !ok {
		return errors.Errorf("unknown container %s", dstName)
	}
	srcIdx, err := subsetIndices(srcC, srcRange, symbols)
	if err != nil {
		return err
	}
	dstIdx, err := subsetIndices(dstC, dstRange, symbols)
	if err != nil {
		return err
	}
	if len(srcIdx) != len(dstIdx) {
		return errors.Errorf("copy %s -> %s: %d cells into %d", srcName, dstName, len(srcIdx), len(dstIdx))
	}
	for i := range srcIdx {
		data[dstName][dstIdx[i]] = data[srcName][srcIdx[i]]
	}
	return nil
}

func containerOf(g *ir.Graph, mm *ir.Memlet) (*ir.Container, bool) {
	return g.Container(mm.Data)
}

// ensureAlloc backs every container whose extents are currently
// evaluable. Views get their own cells; aliasing memlets copy
// explicitly.
func ensureAlloc(g *ir.Graph, symbols map[string]float64, data map[string][]float64) {
	for name, c := range g.Containers.Iter() {
		if _, ok := data[name]; ok {
			continue
		}
		size, err := containerSize(c, symbols)
		if err != nil {
			continue
		}
		data[name] = make([]float64, size)
	}
}

// containerSize is the flat extent spanned by the container's strides:
// 1 + sum((shape_k - 1) * stride_k). Containers carrying the strides
// of a larger base need the padding.
func containerSize(c *ir.Container, symbols map[string]float64) (int, error) {
	cs := consts(symbols)
	size := 1
	for k, s := range c.Shape {
		extent, ok := symexpr.Eval(s, cs)
		if !ok {
			return 0, errors.Errorf("container %s: cannot evaluate extent %s", c.Name, s)
		}
		stride, ok := symexpr.Eval(c.Strides[k], cs)
		if !ok {
			return 0, errors.Errorf("container %s: cannot evaluate stride %s", c.Name, c.Strides[k])
		}
		if extent > 0 {
			size += int(extent-1) * int(stride)
		}
	}
	return size, nil
}

// flatIndex maps logical indices to a flat cell using the container's
// strides and offsets.
func flatIndex(c *ir.Container, indices []float64, symbols map[string]float64) (int, error) {
	if len(indices) != c.Rank() {
		return 0, errors.Errorf("container %s: %d indices for rank %d", c.Name, len(indices), c.Rank())
	}
	at := 0
	for k, idx := range indices {
		stride, ok := symexpr.Eval(c.Strides[k], consts(symbols))
		if !ok {
			return 0, errors.Errorf("container %s: cannot evaluate stride %s", c.Name, c.Strides[k])
		}
		offset, ok := symexpr.Eval(c.Offsets[k], consts(symbols))
		if !ok {
			return 0, errors.Errorf("container %s: cannot evaluate offset %s", c.Name, c.Offsets[k])
		}
		at += (int(idx) + int(offset)) * int(stride)
	}
	return at, nil
}

// pointIndex resolves a subset that addresses exactly one cell.
func pointIndex(c *ir.Container, rng ir.Range, symbols map[string]float64) (int, bool, error) {
	idx, err := subsetIndices(c, rng, symbols)
	if err != nil {
		return 0, false, err
	}
	if len(idx) != 1 {
		return 0, false, nil
	}
	return idx[0], true, nil
}

// subsetIndices enumerates the flat cells of a subset in row-major
// logical order. A nil range covers the whole container.
func subsetIndices(c *ir.Container, rng ir.Range, symbols map[string]float64) ([]int, error) {
	if c.IsScalar() {
		return []int{0}, nil
	}
	cs := consts(symbols)
	// Per-dimension logical index lists.
	lists := make([][]int, c.Rank())
	for k := 0; k < c.Rank(); k++ {
		var lo, hi, step int64 = 0, 0, 1
		if rng == nil {
			offset, ok := symexpr.Eval(c.Offsets[k], cs)
			if !ok {
				return nil, errors.Errorf("container %s: cannot evaluate offset %s", c.Name, c.Offsets[k])
			}
			size, ok := symexpr.Eval(c.Shape[k], cs)
			if !ok {
				return nil, errors.Errorf("container %s: cannot evaluate extent %s", c.Name, c.Shape[k])
			}
			lo, hi = -offset, -offset+size-1
		} else {
			if k >= len(rng) {
				break
			}
			sp := rng[k]
			ev := &evaluator{lookup: func(name string) (float64, bool) {
				v, ok := symbols[name]
				return v, ok
			}}
			lov, err := ev.eval(string(sp.Start))
			if err != nil {
				return nil, errors.Wrapf(err, "container %s: span start", c.Name)
			}
			hiv, err := ev.eval(string(sp.End))
			if err != nil {
				return nil, errors.Wrapf(err, "container %s: span end", c.Name)
			}
			stepv, err := ev.eval(string(sp.Step))
			if err != nil {
				return nil, errors.Wrapf(err, "container %s: span step", c.Name)
			}
			lo, hi, step = int64(lov), int64(hiv), int64(stepv)
		}
		if step <= 0 {
			step = 1
		}
		for i := lo; i <= hi; i += step {
			lists[k] = append(lists[k], int(i))
		}
	}

	// Cartesian product, first dimension slowest.
	points := [][]int{{}}
	for k := 0; k < c.Rank(); k++ {
		var next [][]int
		for _, p := range points {
			for _, i := range lists[k] {
				np := append(append([]int{}, p...), i)
				next = append(next, np)
			}
		}
		points = next
	}
	var cells []int
	for _, p := range points {
		idx := make([]float64, len(p))
		for k, i := range p {
			idx[k] = float64(i)
		}
		at, err := flatIndex(c, idx, symbols)
		if err != nil {
			return nil, err
		}
		cells = append(cells, at)
	}
	return cells, nil
}

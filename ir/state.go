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

package ir

import (
	"github.com/flowir-org/flowir/base/ordered"
	"github.com/flowir-org/flowir/ir/symexpr"
)

// State is a node of the control-flow layer. It holds the dataflow
// active at that point: access nodes, tasklets, nested-graph
// invocations and the memlets connecting them.
type State struct {
	Name    string
	Nodes   []StateNode
	Memlets []*Memlet
}

// StateNode is a dataflow node inside a state.
type StateNode interface {
	Label() string
	stateNode()
}

// AccessKind distinguishes reading from writing access nodes.
type AccessKind int

const (
	// Read exposes a container for reading.
	Read AccessKind = iota
	// Write exposes a container for writing.
	Write
)

// AccessNode exposes a container or view inside a state.
type AccessNode struct {
	Container string
	Access    AccessKind
}

// Label returns the accessed container name.
func (n *AccessNode) Label() string { return n.Container }

// Tasklet is an atomic compute unit: named input and output ports and a
// body referencing only those ports. Never a control-flow construct.
type Tasklet struct {
	Name    string
	Inputs  []string
	Outputs []string
	Body    string
}

// Label returns the tasklet name.
func (n *Tasklet) Label() string { return n.Name }

// Invoke embeds a nested graph as a single node. Inputs and Outputs are
// the connector names bound by memlets. External names a graph emitted
// separately in multi-graph mode, in which case Graph is nil.
type Invoke struct {
	Name          string
	Graph         *Graph
	External      string
	Inputs        []string
	Outputs       []string
	SymbolMapping *ordered.Map[string, string]
}

// Label returns the invocation node name.
func (n *Invoke) Label() string { return n.Name }

func (*AccessNode) stateNode() {}
func (*Tasklet) stateNode()    {}
func (*Invoke) stateNode()     {}

// Span is one dimension of a subset range: an inclusive start/end pair
// and a step, all symbolic.
type Span struct {
	Start symexpr.Expr
	End   symexpr.Expr
	Step  symexpr.Expr
}

// Point returns the single-element span [e, e].
func Point(e symexpr.Expr) Span {
	return Span{Start: e, End: e, Step: symexpr.Int(1)}
}

// Range is a subset of a container, one span per dimension. A nil range
// denotes the whole container.
type Range []Span

// ScalarRange is the subset of a scalar container.
func ScalarRange() Range {
	return Range{Point(symexpr.Int(0))}
}

// Memlet moves data between a container access node and a compute unit
// port, or between two access nodes (view aliasing). Subset is the
// accessed range on the Data container; OtherSubset, when set, is the
// matching range on the other endpoint (the reduced view range for
// view aliasing memlets).
type Memlet struct {
	Src         StateNode
	SrcConn     string
	Dst         StateNode
	DstConn     string
	Data        string
	Subset      Range
	OtherSubset Range
}

// AddRead adds an access node exposing a container for reading.
func (s *State) AddRead(container string) *AccessNode {
	n := &AccessNode{Container: container, Access: Read}
	s.Nodes = append(s.Nodes, n)
	return n
}

// AddWrite adds an access node exposing a container for writing.
func (s *State) AddWrite(container string) *AccessNode {
	n := &AccessNode{Container: container, Access: Write}
	s.Nodes = append(s.Nodes, n)
	return n
}

// AddTasklet adds an atomic compute unit.
func (s *State) AddTasklet(name string, inputs, outputs []string, body string) *Tasklet {
	n := &Tasklet{Name: name, Inputs: inputs, Outputs: outputs, Body: body}
	s.Nodes = append(s.Nodes, n)
	return n
}

// AddInvoke adds a nested graph invocation node.
func (s *State) AddInvoke(name string, nested *Graph, inputs, outputs []string, symbols *ordered.Map[string, string]) *Invoke {
	if symbols == nil {
		symbols = ordered.NewMap[string, string]()
	}
	n := &Invoke{
		Name:          name,
		Graph:         nested,
		Inputs:        inputs,
		Outputs:       outputs,
		SymbolMapping: symbols,
	}
	s.Nodes = append(s.Nodes, n)
	return n
}

// AddMemlet connects two dataflow nodes of the state.
func (s *State) AddMemlet(m *Memlet) *Memlet {
	s.Memlets = append(s.Memlets, m)
	return m
}

// ReadMemlet wires container -> node port.
func (s *State) ReadMemlet(container string, dst StateNode, port string, subset Range) *Memlet {
	return s.AddMemlet(&Memlet{
		Src:     s.AddRead(container),
		Dst:     dst,
		DstConn: port,
		Data:    container,
		Subset:  subset,
	})
}

// WriteMemlet wires node port -> container.
func (s *State) WriteMemlet(container string, src StateNode, port string, subset Range) *Memlet {
	return s.AddMemlet(&Memlet{
		Src:     src,
		SrcConn: port,
		Dst:     s.AddWrite(container),
		Data:    container,
		Subset:  subset,
	})
}

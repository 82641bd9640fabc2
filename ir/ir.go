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

// Package ir defines the stateful dataflow graph intermediate
// representation produced by the translator.
//
// A graph is a control-flow graph whose nodes are states. A state holds
// data-access nodes, atomic compute units (tasklets) and nested-graph
// invocations, connected by data-movement edges (memlets) annotated with
// the accessed subset. Transition edges between states optionally carry a
// boolean guard and symbol reassignments applied on traversal.
//
// The package only builds and serializes graphs. Validation beyond the
// structural contract, simplification and code generation belong to the
// downstream backend.
package ir

import (
	"github.com/pkg/errors"

	"github.com/flowir-org/flowir/base/ordered"
	"github.com/flowir-org/flowir/base/uname"
)

// Graph is one stateful dataflow graph. Nested graphs are reachable only
// through an Invoke node of a parent state and are never mutated once
// their procedure body has been fully lowered.
type Graph struct {
	Name       string
	States     []*State
	Edges      []*Edge
	Containers *ordered.Map[string, *Container]
	Symbols    *ordered.Map[string, DataType]
	Start      *State

	names *uname.Unique
}

// New returns an empty graph.
func New(name string) *Graph {
	return &Graph{
		Name:       name,
		Containers: ordered.NewMap[string, *Container](),
		Symbols:    ordered.NewMap[string, DataType](),
		names:      uname.New(),
	}
}

// FindNewName returns a name unique within the graph namespace,
// derived from the desired base name.
func (g *Graph) FindNewName(base string) string {
	return g.names.Name(base)
}

// AddState appends a new state with a unique label.
// The first state added becomes the start state.
func (g *Graph) AddState(label string) *State {
	s := &State{Name: g.names.Name(label)}
	g.States = append(g.States, s)
	if g.Start == nil {
		g.Start = s
	}
	return s
}

// AddEdge connects two states. A nil assignment map is normalized to an
// empty one.
func (g *Graph) AddEdge(from, to *State, e *Edge) *Edge {
	if e == nil {
		e = &Edge{}
	}
	e.From, e.To = from, to
	if e.Assignments == nil {
		e.Assignments = ordered.NewMap[string, string]()
	}
	g.Edges = append(g.Edges, e)
	return e
}

// OutEdges returns the transition edges leaving a state.
func (g *Graph) OutEdges(s *State) []*Edge {
	var out []*Edge
	for _, e := range g.Edges {
		if e.From == s {
			out = append(out, e)
		}
	}
	return out
}

// AddSymbol declares a named scalar symbol usable in guards and shapes.
// Redeclaring a symbol is a no-op.
func (g *Graph) AddSymbol(name string, dt DataType) {
	if g.Symbols.Contains(name) {
		return
	}
	g.Symbols.Store(name, dt)
	g.names.Reserve(name)
}

// HasSymbol returns true if name is a declared symbol of this graph.
func (g *Graph) HasSymbol(name string) bool {
	return g.Symbols.Contains(name)
}

// Container returns a named container of this graph.
func (g *Graph) Container(name string) (*Container, bool) {
	return g.Containers.Load(name)
}

func (g *Graph) addContainer(c *Container) (*Container, error) {
	if len(c.Shape) != len(c.Strides) || len(c.Shape) != len(c.Offsets) {
		return nil, errors.Errorf("container %s: shape, strides and offsets have lengths %d, %d, %d",
			c.Name, len(c.Shape), len(c.Strides), len(c.Offsets))
	}
	if g.Containers.Contains(c.Name) {
		return nil, errors.Errorf("container %s already declared in graph %s", c.Name, g.Name)
	}
	g.Containers.Store(c.Name, c)
	g.names.Reserve(c.Name)
	return c, nil
}

// Check verifies the structural contract expected by the downstream
// backend: memlets reference existing containers with subsets matching
// the container rank, and every nested graph is reachable from exactly
// one invoke node.
func (g *Graph) Check() error {
	seen := map[*Graph]int{}
	if err := g.check(seen); err != nil {
		return err
	}
	for nested, count := range seen {
		if count != 1 {
			return errors.Errorf("nested graph %s reachable from %d invoke nodes", nested.Name, count)
		}
	}
	return nil
}

func (g *Graph) check(invoked map[*Graph]int) error {
	for _, s := range g.States {
		for _, n := range s.Nodes {
			inv, ok := n.(*Invoke)
			if !ok || inv.Graph == nil {
				continue
			}
			invoked[inv.Graph]++
			if err := inv.Graph.check(invoked); err != nil {
				return err
			}
		}
		for _, m := range s.Memlets {
			c, ok := g.Container(m.Data)
			if !ok {
				return errors.Errorf("state %s: memlet references unknown container %s", s.Name, m.Data)
			}
			if len(m.Subset) > 0 && !c.IsScalar() && len(m.Subset) != c.Rank() {
				return errors.Errorf("state %s: memlet on %s has %d subset dimensions for rank %d",
					s.Name, m.Data, len(m.Subset), c.Rank())
			}
		}
	}
	return nil
}

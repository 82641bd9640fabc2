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
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Graph-description documents. In multi-graph mode each top-level
// procedure graph is written to its own file; nested graphs of a single
// tree are inlined under their invoke node.

type graphDoc struct {
	Name       string         `yaml:"name"`
	Start      string         `yaml:"start,omitempty"`
	Symbols    []symbolDoc    `yaml:"symbols,omitempty"`
	Containers []containerDoc `yaml:"containers,omitempty"`
	States     []stateDoc     `yaml:"states"`
	Edges      []edgeDoc      `yaml:"edges,omitempty"`
}

type symbolDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type containerDoc struct {
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type,omitempty"`
	Struct    string   `yaml:"struct,omitempty"`
	Shape     []string `yaml:"shape,omitempty"`
	Strides   []string `yaml:"strides,omitempty"`
	Offsets   []string `yaml:"offsets,omitempty"`
	Storage   string   `yaml:"storage"`
	Transient bool     `yaml:"transient,omitempty"`
	View      bool     `yaml:"view,omitempty"`
	ViewOf    string   `yaml:"view_of,omitempty"`
}

type stateDoc struct {
	Name    string      `yaml:"name"`
	Nodes   []nodeDoc   `yaml:"nodes,omitempty"`
	Memlets []memletDoc `yaml:"memlets,omitempty"`
}

type nodeDoc struct {
	Kind      string      `yaml:"kind"`
	Container string      `yaml:"container,omitempty"`
	Access    string      `yaml:"access,omitempty"`
	Name      string      `yaml:"name,omitempty"`
	Inputs    []string    `yaml:"inputs,omitempty"`
	Outputs   []string    `yaml:"outputs,omitempty"`
	Body      string      `yaml:"body,omitempty"`
	External  string      `yaml:"external,omitempty"`
	Symbols   []assignDoc `yaml:"symbols,omitempty"`
	Graph     *graphDoc   `yaml:"graph,omitempty"`
}

type memletDoc struct {
	Src         int      `yaml:"src"`
	SrcConn     string   `yaml:"src_conn,omitempty"`
	Dst         int      `yaml:"dst"`
	DstConn     string   `yaml:"dst_conn,omitempty"`
	Data        string   `yaml:"data"`
	Subset      []string `yaml:"subset,omitempty"`
	OtherSubset []string `yaml:"other_subset,omitempty"`
}

type edgeDoc struct {
	From        string      `yaml:"from"`
	To          string      `yaml:"to"`
	Condition   string      `yaml:"condition,omitempty"`
	Assignments []assignDoc `yaml:"assignments,omitempty"`
}

type assignDoc struct {
	Symbol string `yaml:"symbol"`
	Value  string `yaml:"value"`
}

// Save writes the graph description to a writer.
func (g *Graph) Save(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(g.doc()); err != nil {
		return errors.Wrapf(err, "cannot serialize graph %s", g.Name)
	}
	return enc.Close()
}

// WriteFile writes the graph description to a file.
func (g *Graph) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot write graph %s", g.Name)
	}
	if err := g.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (g *Graph) doc() *graphDoc {
	doc := &graphDoc{Name: g.Name}
	if g.Start != nil {
		doc.Start = g.Start.Name
	}
	for name, dt := range g.Symbols.Iter() {
		doc.Symbols = append(doc.Symbols, symbolDoc{Name: name, Type: string(dt)})
	}
	for c := range g.Containers.Values() {
		doc.Containers = append(doc.Containers, containerToDoc(c))
	}
	for _, s := range g.States {
		doc.States = append(doc.States, stateToDoc(s))
	}
	for _, e := range g.Edges {
		ed := edgeDoc{From: e.From.Name, To: e.To.Name, Condition: e.Condition}
		for sym, val := range e.Assignments.Iter() {
			ed.Assignments = append(ed.Assignments, assignDoc{Symbol: sym, Value: val})
		}
		doc.Edges = append(doc.Edges, ed)
	}
	return doc
}

func containerToDoc(c *Container) containerDoc {
	doc := containerDoc{
		Name:      c.Name,
		Type:      string(c.Type),
		Storage:   string(c.Storage),
		Transient: c.Transient,
		View:      c.View,
		ViewOf:    c.ViewOf,
	}
	if c.Struct != nil {
		doc.Struct = c.Struct.Name
	}
	for _, e := range c.Shape {
		doc.Shape = append(doc.Shape, e.String())
	}
	for _, e := range c.Strides {
		doc.Strides = append(doc.Strides, e.String())
	}
	for _, e := range c.Offsets {
		doc.Offsets = append(doc.Offsets, e.String())
	}
	return doc
}

func stateToDoc(s *State) stateDoc {
	doc := stateDoc{Name: s.Name}
	index := make(map[StateNode]int, len(s.Nodes))
	for i, n := range s.Nodes {
		index[n] = i
		doc.Nodes = append(doc.Nodes, nodeToDoc(n))
	}
	for _, m := range s.Memlets {
		doc.Memlets = append(doc.Memlets, memletDoc{
			Src:         index[m.Src],
			SrcConn:     m.SrcConn,
			Dst:         index[m.Dst],
			DstConn:     m.DstConn,
			Data:        m.Data,
			Subset:      rangeToDoc(m.Subset),
			OtherSubset: rangeToDoc(m.OtherSubset),
		})
	}
	return doc
}

func nodeToDoc(n StateNode) nodeDoc {
	switch n := n.(type) {
	case *AccessNode:
		access := "read"
		if n.Access == Write {
			access = "write"
		}
		return nodeDoc{Kind: "access", Container: n.Container, Access: access}
	case *Tasklet:
		return nodeDoc{
			Kind:    "tasklet",
			Name:    n.Name,
			Inputs:  n.Inputs,
			Outputs: n.Outputs,
			Body:    n.Body,
		}
	case *Invoke:
		doc := nodeDoc{
			Kind:     "invoke",
			Name:     n.Name,
			Inputs:   n.Inputs,
			Outputs:  n.Outputs,
			External: n.External,
		}
		for sym, val := range n.SymbolMapping.Iter() {
			doc.Symbols = append(doc.Symbols, assignDoc{Symbol: sym, Value: val})
		}
		if n.Graph != nil {
			doc.Graph = n.Graph.doc()
		}
		return doc
	}
	return nodeDoc{Kind: fmt.Sprintf("unknown(%T)", n)}
}

func rangeToDoc(r Range) []string {
	var spans []string
	for _, sp := range r {
		spans = append(spans, fmt.Sprintf("%s:%s:%s", sp.Start, sp.End, sp.Step))
	}
	return spans
}

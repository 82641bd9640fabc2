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

package ir_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/flowir-org/flowir/ir"
	"github.com/flowir-org/flowir/ir/symexpr"
)

func buildGraph(t *testing.T) *ir.Graph {
	t.Helper()
	g := ir.New("test")
	shape := []symexpr.Expr{"n"}
	if _, err := g.AddArray("a", ir.Float64, shape, symexpr.Strides(shape), []symexpr.Expr{"-1"}, false); err != nil {
		t.Fatal(err)
	}
	if _, err := g.AddScalar("x", ir.Float64, true); err != nil {
		t.Fatal(err)
	}
	g.AddSymbol("n", ir.Int32)
	g.AddSymbol("i", ir.Int32)

	begin := g.AddState("Begin")
	body := g.AddState("Body")
	g.AddEdge(begin, body, (&ir.Edge{}).Assign("i", "1"))
	tasklet := body.AddTasklet("t", []string{"a_0_in"}, []string{"x_out"}, "x_out = a_0_in")
	body.ReadMemlet("a", tasklet, "a_0_in", ir.Range{ir.Point("i")})
	body.WriteMemlet("x", tasklet, "x_out", nil)
	return g
}

func TestGraphBasics(t *testing.T) {
	g := buildGraph(t)
	if g.Start == nil || g.Start.Name != "Begin" {
		t.Fatalf("start state: got %v, want Begin", g.Start)
	}
	if !g.HasSymbol("n") || g.HasSymbol("a") {
		t.Errorf("symbol table: HasSymbol(n)=%v, HasSymbol(a)=%v", g.HasSymbol("n"), g.HasSymbol("a"))
	}
	c, ok := g.Container("a")
	if !ok || c.Rank() != 1 {
		t.Fatalf("container a: ok=%v, rank=%d", ok, c.Rank())
	}
	if got := len(g.OutEdges(g.Start)); got != 1 {
		t.Errorf("out edges of start: got %d, want 1", got)
	}
	if err := g.Check(); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestUniqueNames(t *testing.T) {
	g := ir.New("test")
	first := g.FindNewName("v")
	if _, err := g.AddScalar(first, ir.Float64, true); err != nil {
		t.Fatal(err)
	}
	second := g.FindNewName("v")
	if first == second {
		t.Errorf("FindNewName returned %q twice", first)
	}
	if _, err := g.AddScalar(first, ir.Float64, true); err == nil {
		t.Errorf("redeclaring %q did not fail", first)
	}
}

func TestCheckRejectsBadMemlets(t *testing.T) {
	g := ir.New("test")
	s := g.AddState("S")
	tasklet := s.AddTasklet("t", nil, []string{"y_out"}, "y_out = 1")
	s.WriteMemlet("missing", tasklet, "y_out", nil)
	if err := g.Check(); err == nil {
		t.Error("Check accepted a memlet on an undeclared container")
	}

	g2 := ir.New("test2")
	shape := []symexpr.Expr{"4", "4"}
	if _, err := g2.AddArray("m", ir.Float64, shape, symexpr.Strides(shape), []symexpr.Expr{"-1", "-1"}, false); err != nil {
		t.Fatal(err)
	}
	s2 := g2.AddState("S")
	t2 := s2.AddTasklet("t", nil, []string{"m_out"}, "m_out = 1")
	s2.WriteMemlet("m", t2, "m_out", ir.Range{ir.Point("1")})
	if err := g2.Check(); err == nil {
		t.Error("Check accepted a rank-1 subset on a rank-2 container")
	}
}

func TestAddViewInheritsBase(t *testing.T) {
	g := ir.New("test")
	shape := []symexpr.Expr{"8", "3"}
	base, err := g.AddArray("grid", ir.Float32, shape, symexpr.Strides(shape), []symexpr.Expr{"-1", "-1"}, false)
	if err != nil {
		t.Fatal(err)
	}
	v, err := g.AddView("grid_view_0", base, []symexpr.Expr{"3"}, []symexpr.Expr{"8"}, []symexpr.Expr{"0"})
	if err != nil {
		t.Fatal(err)
	}
	if !v.View || !v.Transient || v.ViewOf != "grid" || v.Type != ir.Float32 {
		t.Errorf("view descriptor: %+v", v)
	}
}

func TestSerialize(t *testing.T) {
	g := buildGraph(t)
	var buf bytes.Buffer
	if err := g.Save(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"name: test", "start: Begin", "container: a", "kind: tasklet", "subset:", "i:i:1"} {
		if !strings.Contains(out, want) {
			t.Errorf("serialized graph misses %q:\n%s", want, out)
		}
	}
}

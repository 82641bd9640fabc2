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

package symexpr_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/flowir-org/flowir/ir/symexpr"
)

func TestArithmetic(t *testing.T) {
	tests := []struct {
		got  symexpr.Expr
		want symexpr.Expr
	}{
		{symexpr.Mul(symexpr.Int(3), symexpr.Int(4)), "12"},
		{symexpr.Mul(symexpr.Int(1), "n"), "n"},
		{symexpr.Mul("n", symexpr.Int(1)), "n"},
		{symexpr.Mul("n", "m"), "n*m"},
		{symexpr.Mul("n + 1", "m"), "(n + 1)*m"},
		{symexpr.Add(symexpr.Int(0), "n"), "n"},
		{symexpr.Add("n", symexpr.Int(0)), "n"},
		{symexpr.Add("n", symexpr.Int(-2)), "n - 2"},
		{symexpr.Sub("n", symexpr.Int(1)), "n - 1"},
		{symexpr.Sub(symexpr.Int(5), symexpr.Int(2)), "3"},
	}
	for i, test := range tests {
		if test.got != test.want {
			t.Errorf("test %d: got %q, want %q", i, test.got, test.want)
		}
	}
}

func TestStrides(t *testing.T) {
	got := symexpr.Strides([]symexpr.Expr{"4", "n", "2"})
	want := []symexpr.Expr{"1", "4", "4*n"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("strides mismatch:\n%s", diff)
	}
}

func TestFold(t *testing.T) {
	consts := func(name string) (int64, bool) {
		if name == "k" {
			return 3, true
		}
		return 0, false
	}
	tests := []struct {
		src  symexpr.Expr
		want symexpr.Expr
	}{
		{"2 + 3", "5"},
		{"k * 4", "12"},
		{"k + n", "3 + n"},
		{"(k + 1) * 2", "8"},
		{"n", "n"},
		{"10 / 2", "5"},
		{"-k", "-3"},
	}
	for _, test := range tests {
		if got := symexpr.Fold(test.src, consts); got != test.want {
			t.Errorf("Fold(%q): got %q, want %q", test.src, got, test.want)
		}
	}
}

func TestEval(t *testing.T) {
	consts := func(name string) (int64, bool) {
		if name == "n" {
			return 7, true
		}
		return 0, false
	}
	if v, ok := symexpr.Eval("n - 1", consts); !ok || v != 6 {
		t.Errorf("Eval(n - 1) = %d, %v; want 6, true", v, ok)
	}
	if _, ok := symexpr.Eval("m + 1", consts); ok {
		t.Errorf("Eval(m + 1) unexpectedly succeeded")
	}
}

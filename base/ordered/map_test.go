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

package ordered_test

import (
	"testing"

	"github.com/flowir-org/flowir/base/ordered"
)

type entry struct {
	k string
	v int
}

func TestMapOrder(t *testing.T) {
	tests := []struct {
		entries []entry
		want    []entry
	}{
		{
			entries: []entry{{"a", 1}, {"b", 2}, {"c", 3}},
			want:    []entry{{"a", 1}, {"b", 2}, {"c", 3}},
		},
		{
			entries: []entry{{"a", 1}, {"b", 2}, {"a", 3}},
			want:    []entry{{"a", 3}, {"b", 2}},
		},
		{
			entries: []entry{{"a", 1}, {"a", 2}, {"a", 3}},
			want:    []entry{{"a", 3}},
		},
	}
	for ti, test := range tests {
		m := ordered.NewMap[string, int]()
		for _, e := range test.entries {
			m.Store(e.k, e.v)
		}
		if m.Size() != len(test.want) {
			t.Errorf("test %d: map has %d entries but want %d", ti, m.Size(), len(test.want))
			continue
		}
		m = m.Clone()
		i := 0
		for gotK, gotV := range m.Iter() {
			wantK, wantV := test.want[i].k, test.want[i].v
			if gotK != wantK || gotV != wantV {
				t.Errorf("test %d entry %d: got %s->%d but want %s->%d", ti, i, gotK, gotV, wantK, wantV)
			}
			i++
		}
	}
}

func TestMapDelete(t *testing.T) {
	m := ordered.NewMap[string, int]()
	m.Store("a", 1)
	m.Store("b", 2)
	m.Store("c", 3)
	m.Delete("b")
	m.Delete("missing")
	if m.Size() != 2 {
		t.Fatalf("map has %d entries but want 2", m.Size())
	}
	if m.Contains("b") {
		t.Errorf("map still contains deleted key b")
	}
	wantKeys := []string{"a", "c"}
	i := 0
	for k := range m.Keys() {
		if k != wantKeys[i] {
			t.Errorf("key %d: got %s but want %s", i, k, wantKeys[i])
		}
		i++
	}
	if k, v := m.At(1); k != "c" || v != 3 {
		t.Errorf("At(1) = %s,%d but want c,3", k, v)
	}
}

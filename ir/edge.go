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

import "github.com/flowir-org/flowir/base/ordered"

// Edge is a transition between two states. An empty condition is always
// taken. Assignments map symbols to their new value expression, applied
// when the edge is traversed.
type Edge struct {
	From        *State
	To          *State
	Condition   string
	Assignments *ordered.Map[string, string]
}

// Unconditional returns true when the edge carries no guard.
func (e *Edge) Unconditional() bool { return e.Condition == "" }

// Assign records a symbol reassignment applied on traversal.
func (e *Edge) Assign(symbol, value string) *Edge {
	if e.Assignments == nil {
		e.Assignments = ordered.NewMap[string, string]()
	}
	e.Assignments.Store(symbol, value)
	return e
}

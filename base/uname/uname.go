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

// Package uname provides unique names within a namespace.
//
// Each graph owns one generator so that container, symbol and state
// names are unique within that graph. Collisions are avoided at
// creation time: a name handed out once is never handed out again.
package uname

import "fmt"

// Unique generates unique names.
type Unique struct {
	taken map[string]int
}

// New returns a new name generator.
func New() *Unique {
	return &Unique{taken: make(map[string]int)}
}

// Name returns a unique name for a desired base name.
// The base name is returned directly when still available,
// else the next free numbered variant.
func (u *Unique) Name(base string) string {
	next, ok := u.taken[base]
	if !ok {
		u.taken[base] = 1
		return base
	}
	for {
		name := fmt.Sprintf("%s_%d", base, next)
		next++
		if _, in := u.taken[name]; !in {
			u.taken[base] = next
			u.taken[name] = 1
			return name
		}
	}
}

// Reserve marks a name as taken without generating it.
// Reserving an already taken name returns false.
func (u *Unique) Reserve(name string) bool {
	if _, in := u.taken[name]; in {
		return false
	}
	u.taken[name] = 1
	return true
}

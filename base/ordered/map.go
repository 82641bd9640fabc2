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

// Package ordered provides ordered data structures.
package ordered

// Map is a map iterating over its entries in the order
// in which the keys have been stored. All name tables of the
// translator use it so that repeated translations of the same
// input produce structurally identical graphs.
type Map[K comparable, V any] struct {
	keys  []K
	index map[K]int
	vals  map[K]V
}

// NewMap returns a new ordered map.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		index: make(map[K]int),
		vals:  make(map[K]V),
	}
}

// Store a key,value pair. Storing an existing key overwrites
// its value but keeps its original position.
func (m *Map[K, V]) Store(k K, v V) {
	if _, in := m.index[k]; !in {
		m.index[k] = len(m.keys)
		m.keys = append(m.keys, k)
	}
	m.vals[k] = v
}

// Load returns the value stored for a key.
func (m *Map[K, V]) Load(k K) (V, bool) {
	v, ok := m.vals[k]
	return v, ok
}

// Contains returns true if the key has been stored.
func (m *Map[K, V]) Contains(k K) bool {
	_, ok := m.vals[k]
	return ok
}

// Delete removes a key from the map. Removing an absent key is a no-op.
func (m *Map[K, V]) Delete(k K) {
	at, ok := m.index[k]
	if !ok {
		return
	}
	m.keys = append(m.keys[:at], m.keys[at+1:]...)
	for i := at; i < len(m.keys); i++ {
		m.index[m.keys[i]] = i
	}
	delete(m.index, k)
	delete(m.vals, k)
}

// At returns the i-th key,value pair in insertion order.
func (m *Map[K, V]) At(i int) (K, V) {
	k := m.keys[i]
	return k, m.vals[k]
}

// Iter returns an iterator over the entries of the map in insertion order.
func (m *Map[K, V]) Iter() func(func(K, V) bool) {
	return func(yield func(K, V) bool) {
		for _, k := range m.keys {
			if !yield(k, m.vals[k]) {
				break
			}
		}
	}
}

// Keys returns an iterator over the keys of the map in insertion order.
func (m *Map[K, V]) Keys() func(func(K) bool) {
	return func(yield func(K) bool) {
		for _, k := range m.keys {
			if !yield(k) {
				break
			}
		}
	}
}

// Values returns an iterator over the values of the map in insertion order.
func (m *Map[K, V]) Values() func(func(V) bool) {
	return func(yield func(V) bool) {
		for _, k := range m.keys {
			if !yield(m.vals[k]) {
				break
			}
		}
	}
}

// Clone returns a shallow copy of the map.
func (m *Map[K, V]) Clone() *Map[K, V] {
	r := NewMap[K, V]()
	for k, v := range m.Iter() {
		r.Store(k, v)
	}
	return r
}

// Size returns the number of entries in the map.
func (m *Map[K, V]) Size() int {
	return len(m.keys)
}

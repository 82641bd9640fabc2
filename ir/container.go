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

// DataType is an element type from the fixed primitive table.
type DataType string

// Primitive element types.
const (
	Bool    DataType = "bool"
	Int32   DataType = "int32"
	Int64   DataType = "int64"
	Float32 DataType = "float32"
	Float64 DataType = "float64"
	Char    DataType = "char"
)

// Storage is the storage class of a container.
type Storage string

// Storage classes. The translator only emits Default; the constant set
// mirrors what the downstream backend accepts.
const (
	Default  Storage = "default"
	Heap     Storage = "heap"
	Register Storage = "register"
)

// StructType describes a derived type as an ordered set of component
// descriptors.
type StructType struct {
	Name   string
	Fields *ordered.Map[string, *Container]
}

// NewStructType returns an empty derived type description.
func NewStructType(name string) *StructType {
	return &StructType{Name: name, Fields: ordered.NewMap[string, *Container]()}
}

// Container is named storage: a scalar, an array, or a view aliasing a
// subset of another container.
//
// Invariant: Shape, Strides and Offsets always have equal length; a
// zero-length shape denotes a scalar.
type Container struct {
	Name    string
	Type    DataType
	Struct  *StructType // non-nil for derived-type data
	Shape   []symexpr.Expr
	Strides []symexpr.Expr
	Offsets []symexpr.Expr
	Storage Storage
	// Transient marks locally allocated temporaries that do not
	// outlive the graph.
	Transient bool
	// View marks aliasing descriptors that do not own storage.
	View bool
	// ViewOf names the base container a view aliases.
	ViewOf string
}

// IsScalar returns true for zero-rank containers.
func (c *Container) IsScalar() bool { return len(c.Shape) == 0 }

// Rank returns the number of dimensions.
func (c *Container) Rank() int { return len(c.Shape) }

// AddScalar declares a scalar container.
func (g *Graph) AddScalar(name string, dt DataType, transient bool) (*Container, error) {
	return g.addContainer(&Container{
		Name:      name,
		Type:      dt,
		Storage:   Default,
		Transient: transient,
	})
}

// AddStructData declares a container of a derived type.
func (g *Graph) AddStructData(name string, st *StructType, transient bool) (*Container, error) {
	return g.addContainer(&Container{
		Name:      name,
		Struct:    st,
		Storage:   Default,
		Transient: transient,
	})
}

// AddArray declares an array container.
func (g *Graph) AddArray(name string, dt DataType, shape, strides, offsets []symexpr.Expr, transient bool) (*Container, error) {
	return g.addContainer(&Container{
		Name:      name,
		Type:      dt,
		Shape:     shape,
		Strides:   strides,
		Offsets:   offsets,
		Storage:   Default,
		Transient: transient,
	})
}

// AddView declares a view aliasing a subset of a base container.
// Views never own storage and are always transient.
func (g *Graph) AddView(name string, base *Container, shape, strides, offsets []symexpr.Expr) (*Container, error) {
	return g.addContainer(&Container{
		Name:      name,
		Type:      base.Type,
		Struct:    base.Struct,
		Shape:     shape,
		Strides:   strides,
		Offsets:   offsets,
		Storage:   base.Storage,
		Transient: true,
		View:      true,
		ViewOf:    base.Name,
	})
}

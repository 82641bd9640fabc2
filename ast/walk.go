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

package ast

// Walk visits n and its children depth-first in source order.
// The visit function returns false to skip the children of a node.
func Walk(n Node, visit func(Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	walkChildren(n, visit)
}

func walkAll[T Node](nodes []T, visit func(Node) bool) {
	for _, n := range nodes {
		Walk(n, visit)
	}
}

func walkChildren(n Node, visit func(Node) bool) {
	switch n := n.(type) {
	case *Program:
		walkAll(n.Modules, visit)
		if n.Main != nil {
			Walk(n.Main, visit)
		}
		walkAll(n.Subroutines, visit)
		walkAll(n.Functions, visit)
	case *Module:
		walkSpec(n.Spec, visit)
		walkAll(n.Subroutines, visit)
		walkAll(n.Functions, visit)
	case *MainProgram:
		walkSpec(n.Spec, visit)
		Walk(n.Body, visit)
	case *Procedure:
		walkSpec(n.Spec, visit)
		Walk(n.Body, visit)
	case *Block:
		walkAll(n.Stmts, visit)
	case *DeclStmt:
		walkAll(n.Decls, visit)
	case *VarDecl:
		walkAll(n.Sizes, visit)
	case *SymbolDecl:
		if n.Init != nil {
			Walk(n.Init, visit)
		}
	case *DerivedTypeDef:
		walkAll(n.Components, visit)
	case *If:
		Walk(n.Cond, visit)
		Walk(n.Body, visit)
		if n.Else != nil {
			Walk(n.Else, visit)
		}
	case *For:
		Walk(n.Init, visit)
		Walk(n.Cond, visit)
		Walk(n.Iter, visit)
		Walk(n.Body, visit)
	case *BinOp:
		Walk(n.Left, visit)
		Walk(n.Right, visit)
	case *Call:
		walkAll(n.Args, visit)
	case *Allocate:
		walkAll(n.Items, visit)
	case *Allocation:
		walkAll(n.Sizes, visit)
	case *PointerAssign:
		Walk(n.Pointer, visit)
		Walk(n.Target, visit)
	case *Write:
		walkAll(n.Args, visit)
	case *ArraySubscript:
		walkAll(n.Indices, visit)
	case *RangeIndex:
		Walk(n.Lo, visit)
		Walk(n.Hi, visit)
	case *UnaryOp:
		Walk(n.Expr, visit)
	}
}

// Inputs returns every variable occurrence read by a statement subtree,
// in source order and with duplicates preserved: right-hand sides,
// subscript indices (including those of written variables), guard
// conditions and call arguments.
func Inputs(n Node) []*Name {
	var reads []*Name
	collectReads(n, &reads)
	return reads
}

func collectReads(n Node, reads *[]*Name) {
	switch n := n.(type) {
	case nil:
	case *BinOp:
		if n.Op == "=" {
			// The written variable itself is not a read, but its
			// subscript indices are.
			if sub, ok := n.Left.(*ArraySubscript); ok {
				for _, idx := range sub.Indices {
					collectReads(idx, reads)
				}
			}
			collectReads(n.Right, reads)
			return
		}
		collectReads(n.Left, reads)
		collectReads(n.Right, reads)
	case *Name:
		*reads = append(*reads, n)
	case *ArraySubscript:
		*reads = append(*reads, n.Name)
		for _, idx := range n.Indices {
			collectReads(idx, reads)
		}
	default:
		walkChildren(n, func(c Node) bool {
			collectReads(c, reads)
			return false
		})
	}
}

// Outputs returns every variable occurrence written by a statement
// subtree in source order: assignment targets, and call arguments
// (a callee may write any of its by-reference arguments).
func Outputs(n Node) []*Name {
	var writes []*Name
	collectWrites(n, &writes)
	return writes
}

func collectWrites(n Node, writes *[]*Name) {
	switch n := n.(type) {
	case nil:
	case *BinOp:
		if n.Op == "=" {
			switch lhs := n.Left.(type) {
			case *Name:
				*writes = append(*writes, lhs)
			case *ArraySubscript:
				*writes = append(*writes, lhs.Name)
			}
		}
		collectWrites(n.Right, writes)
	case *Call:
		for _, arg := range n.Args {
			switch a := arg.(type) {
			case *Name:
				*writes = append(*writes, a)
			case *ArraySubscript:
				*writes = append(*writes, a.Name)
			}
		}
	default:
		walkChildren(n, func(c Node) bool {
			collectWrites(c, writes)
			return false
		})
	}
}

// Calls returns the calls embedded in a statement subtree in source order.
func Calls(n Node) []*Call {
	var calls []*Call
	Walk(n, func(c Node) bool {
		if call, ok := c.(*Call); ok {
			calls = append(calls, call)
		}
		return true
	})
	return calls
}

func walkSpec(spec *SpecificationPart, visit func(Node) bool) {
	if spec == nil {
		return
	}
	walkAll(spec.Uses, visit)
	walkAll(spec.TypeDefs, visit)
	walkAll(spec.Symbols, visit)
	walkAll(spec.Decls, visit)
}

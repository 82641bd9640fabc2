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

// Package ast defines the normalized abstract syntax tree consumed by the
// translator.
//
// The tree is statement-level and already normalized by the frontend:
// element-wise array operations have been rewritten as loops, intrinsic
// sugar has been lowered, and loop headers carry explicit init, condition
// and increment assignments. The node set is closed: the translator
// dispatches over it with an exhaustive switch and fails explicitly on
// anything it does not lower.
package ast

import "fmt"

// Pos is a position in a source file. The zero value means unknown.
type Pos struct {
	File string
	Line int
	Col  int
}

// String returns the position formatted for diagnostics.
func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Node is a node of the normalized tree.
type Node interface {
	Position() Pos
	node()
}

type (
	// Expr is an expression node.
	Expr interface {
		Node
		expr()
	}

	// Stmt is a statement node.
	Stmt interface {
		Node
		stmt()
	}
)

// Program is the root of a translation unit: the modules selected by the
// dependency resolver plus an optional main program.
type Program struct {
	Src         Pos
	Modules     []*Module
	Main        *MainProgram
	Subroutines []*Procedure
	Functions   []*Procedure
}

// Module is a source module: imports, declarations and contained procedures.
type Module struct {
	Src         Pos
	Name        string
	Spec        *SpecificationPart
	Subroutines []*Procedure
	Functions   []*Procedure
}

// MainProgram is the entry program block.
type MainProgram struct {
	Src  Pos
	Name string
	Spec *SpecificationPart
	Body *Block
}

// SpecificationPart groups the declarative statements of a scope.
type SpecificationPart struct {
	Uses     []*Use
	TypeDefs []*DerivedTypeDef
	Symbols  []*SymbolDecl
	Decls    []*DeclStmt
}

// Use imports symbols from another module. An empty item list with
// All set imports every public symbol.
type Use struct {
	Src    Pos
	Module string
	All    bool
	Items  []UseItem
}

// UseItem is one imported symbol, possibly renamed on import.
// Local and Canonical are equal unless the import renames.
type UseItem struct {
	Local     string
	Canonical string
}

// ProcKind distinguishes subroutines from value-returning functions.
type ProcKind int

const (
	// Subroutine returns no value.
	Subroutine ProcKind = iota
	// Function returns a value through a result variable named
	// after the procedure.
	Function
)

// Procedure is a subroutine or function definition.
type Procedure struct {
	Src     Pos
	Kind    ProcKind
	Name    string
	Args    []*Name
	RetType string // empty for subroutines
	Spec    *SpecificationPart
	Body    *Block
}

// Block is an ordered list of executable statements.
type Block struct {
	Src   Pos
	Stmts []Stmt
}

// DeclStmt declares one or more variables.
type DeclStmt struct {
	Src   Pos
	Decls []*VarDecl
}

// VarDecl declares a scalar or array variable. Nil Sizes declares a
// scalar. Alloc marks a deferred (allocatable) array whose concrete
// sizes arrive with a later Allocate statement.
type VarDecl struct {
	Src   Pos
	Name  string
	Type  string
	Sizes []Expr
	Alloc bool
}

// SymbolDecl declares a compile/run-time scalar symbol usable in shape
// expressions and guard conditions, with an optional initializer.
type SymbolDecl struct {
	Src  Pos
	Name string
	Type string
	Init Expr
}

// DerivedTypeDef defines a composite type from component declarations.
type DerivedTypeDef struct {
	Src        Pos
	Name       string
	Components []*VarDecl
}

// If is a conditional with an optional else branch. Else is nil or empty
// when the source has no else branch.
type If struct {
	Src  Pos
	Cond Expr
	Body *Block
	Else *Block
}

// For is a counted loop normalized to explicit init, condition and
// increment assignments.
type For struct {
	Src  Pos
	Init *BinOp
	Cond Expr
	Iter *BinOp
	Body *Block
}

// Break exits the innermost enclosing loop.
type Break struct {
	Src Pos
}

// BinOp is a binary operation. With Op "=" it is an assignment statement;
// any other operator makes it an expression.
type BinOp struct {
	Src   Pos
	Op    string
	Left  Expr
	Right Expr
}

// Call invokes a procedure. HasRet marks calls whose trailing argument
// receives the return value of a function callee.
type Call struct {
	Src    Pos
	Name   *Name
	Args   []Expr
	HasRet bool
}

// Allocate materializes deferred arrays with concrete sizes.
type Allocate struct {
	Src   Pos
	Items []*Allocation
}

// Allocation is one target of an allocate statement.
type Allocation struct {
	Src   Pos
	Name  *Name
	Sizes []Expr
}

// PointerAssign aliases Pointer onto the container bound to Target.
type PointerAssign struct {
	Src     Pos
	Pointer *Name
	Target  *Name
}

// Write is a formatted output statement. It has no lowering and fails
// with an unsupported-construct error.
type Write struct {
	Src  Pos
	Args []Expr
}

// Name references a variable or symbol.
type Name struct {
	Src   Pos
	Ident string
}

// ArraySubscript references an array with a full-rank index list.
// A RangeAll entry selects the whole extent of its axis; a RangeIndex
// entry selects a bounded sub-range.
type ArraySubscript struct {
	Src     Pos
	Name    *Name
	Indices []Expr
}

// RangeAll is the "select all" index of one array axis.
type RangeAll struct {
	Src Pos
}

// RangeIndex is a bounded slice of one array axis, selecting the
// inclusive range Lo..Hi.
type RangeIndex struct {
	Src Pos
	Lo  Expr
	Hi  Expr
}

// UnaryOp is a unary operation such as negation or logical not.
type UnaryOp struct {
	Src  Pos
	Op   string
	Expr Expr
}

// IntLit is an integer literal.
type IntLit struct {
	Src   Pos
	Value string
}

// RealLit is a floating point literal.
type RealLit struct {
	Src   Pos
	Value string
}

// BoolLit is a logical literal.
type BoolLit struct {
	Src   Pos
	Value bool
}

// StringLit is a character literal.
type StringLit struct {
	Src   Pos
	Value string
}

// Position returns the node position.
func (n *Program) Position() Pos           { return n.Src }
func (n *Module) Position() Pos            { return n.Src }
func (n *MainProgram) Position() Pos       { return n.Src }
func (n *Use) Position() Pos               { return n.Src }
func (n *Procedure) Position() Pos         { return n.Src }
func (n *Block) Position() Pos             { return n.Src }
func (n *DeclStmt) Position() Pos          { return n.Src }
func (n *VarDecl) Position() Pos           { return n.Src }
func (n *SymbolDecl) Position() Pos        { return n.Src }
func (n *DerivedTypeDef) Position() Pos    { return n.Src }
func (n *If) Position() Pos                { return n.Src }
func (n *For) Position() Pos               { return n.Src }
func (n *Break) Position() Pos             { return n.Src }
func (n *BinOp) Position() Pos             { return n.Src }
func (n *Call) Position() Pos              { return n.Src }
func (n *Allocate) Position() Pos          { return n.Src }
func (n *Allocation) Position() Pos        { return n.Src }
func (n *PointerAssign) Position() Pos     { return n.Src }
func (n *Write) Position() Pos             { return n.Src }
func (n *Name) Position() Pos              { return n.Src }
func (n *ArraySubscript) Position() Pos    { return n.Src }
func (n *RangeAll) Position() Pos          { return n.Src }
func (n *RangeIndex) Position() Pos        { return n.Src }
func (n *UnaryOp) Position() Pos           { return n.Src }
func (n *IntLit) Position() Pos            { return n.Src }
func (n *RealLit) Position() Pos           { return n.Src }
func (n *BoolLit) Position() Pos           { return n.Src }
func (n *StringLit) Position() Pos         { return n.Src }

func (*Program) node()        {}
func (*Module) node()         {}
func (*MainProgram) node()    {}
func (*Use) node()            {}
func (*Procedure) node()      {}
func (*Block) node()          {}
func (*DeclStmt) node()       {}
func (*VarDecl) node()        {}
func (*SymbolDecl) node()     {}
func (*DerivedTypeDef) node() {}
func (*If) node()             {}
func (*For) node()            {}
func (*Break) node()          {}
func (*BinOp) node()          {}
func (*Call) node()           {}
func (*Allocate) node()       {}
func (*Allocation) node()     {}
func (*PointerAssign) node()  {}
func (*Write) node()          {}
func (*Name) node()           {}
func (*ArraySubscript) node() {}
func (*RangeAll) node()       {}
func (*RangeIndex) node()     {}
func (*UnaryOp) node()        {}
func (*IntLit) node()         {}
func (*RealLit) node()        {}
func (*BoolLit) node()        {}
func (*StringLit) node()      {}

func (*DeclStmt) stmt()      {}
func (*SymbolDecl) stmt()    {}
func (*If) stmt()            {}
func (*For) stmt()           {}
func (*Break) stmt()         {}
func (*BinOp) stmt()         {}
func (*Call) stmt()          {}
func (*Allocate) stmt()      {}
func (*PointerAssign) stmt() {}
func (*Write) stmt()         {}

func (*BinOp) expr()          {}
func (*Call) expr()           {}
func (*Name) expr()           {}
func (*ArraySubscript) expr() {}
func (*RangeAll) expr()       {}
func (*RangeIndex) expr()     {}
func (*UnaryOp) expr()        {}
func (*IntLit) expr()         {}
func (*RealLit) expr()        {}
func (*BoolLit) expr()        {}
func (*StringLit) expr()      {}

// IsLiteral reports whether an argument expression is a literal constant.
// This is the single classification used by the call inliner.
func IsLiteral(e Expr) bool {
	switch e.(type) {
	case *IntLit, *RealLit, *BoolLit, *StringLit:
		return true
	}
	return false
}

// BaseName returns the variable name referenced by a name or subscript
// expression, or false for any other expression.
func BaseName(e Expr) (string, bool) {
	switch n := e.(type) {
	case *Name:
		return n.Ident, true
	case *ArraySubscript:
		return n.Name.Ident, true
	}
	return "", false
}

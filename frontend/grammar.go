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

// Package frontend parses the Fortran-flavoured source subset and
// normalizes it into the statement-level tree the translator consumes.
package frontend

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var sourceLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `![^\n]*`},
	{Name: "String", Pattern: `"[^"]*"|'[^']*'`},
	{Name: "DotOp", Pattern: `\.[a-zA-Z]+\.`},
	{Name: "Number", Pattern: `[0-9]+(\.[0-9]+)?([eEdD][-+]?[0-9]+)?`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Op", Pattern: `=>|==|/=|<=|>=|\*\*|::|[-+*/()=<>,:%]`},
	{Name: "EOL", Pattern: `[\n;]+`},
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
})

var fileParser = participle.MustBuild[File](
	participle.Lexer(sourceLexer),
	participle.Elide("Comment", "Whitespace"),
	participle.UseLookahead(4),
)

// File is one parsed source file.
type File struct {
	Units []*Unit `parser:"EOL* (@@ EOL*)*"`
}

// Unit is one top-level program unit.
type Unit struct {
	Module     *ModuleDecl     `parser:"  @@"`
	Program    *ProgramDecl    `parser:"| @@"`
	Subroutine *SubroutineDecl `parser:"| @@"`
	Function   *FunctionDecl   `parser:"| @@"`
}

// ModuleDecl is a module: specification statements and contained
// procedures.
type ModuleDecl struct {
	Pos   lexer.Position
	Name  string      `parser:"'module' @Ident EOL+"`
	Spec  []*SpecItem `parser:"@@*"`
	Procs []*ProcDecl `parser:"('contains' EOL+ @@*)?"`
	End   string      `parser:"'end' 'module' @Ident? EOL*"`
}

// ProgramDecl is the main program unit.
type ProgramDecl struct {
	Pos  lexer.Position
	Name string       `parser:"'program' @Ident EOL+"`
	Spec []*SpecItem  `parser:"@@*"`
	Body []*Statement `parser:"@@*"`
	End  string       `parser:"'end' 'program' @Ident? EOL*"`
}

// ProcDecl is one contained procedure.
type ProcDecl struct {
	Subroutine *SubroutineDecl `parser:"  @@"`
	Function   *FunctionDecl   `parser:"| @@"`
}

// SubroutineDecl is a subroutine definition.
type SubroutineDecl struct {
	Pos    lexer.Position
	Name   string       `parser:"'subroutine' @Ident"`
	Params []string     `parser:"('(' (@Ident (',' @Ident)*)? ')')? EOL+"`
	Spec   []*SpecItem  `parser:"@@*"`
	Body   []*Statement `parser:"@@*"`
	End    string       `parser:"'end' 'subroutine' @Ident? EOL*"`
}

// FunctionDecl is a function definition; the result variable is named
// after the function.
type FunctionDecl struct {
	Pos     lexer.Position
	RetType string       `parser:"@('integer'|'real'|'double'|'logical')"`
	Name    string       `parser:"'function' @Ident"`
	Params  []string     `parser:"('(' (@Ident (',' @Ident)*)? ')')? EOL+"`
	Spec    []*SpecItem  `parser:"@@*"`
	Body    []*Statement `parser:"@@*"`
	End     string       `parser:"'end' 'function' @Ident? EOL*"`
}

// SpecItem is one specification statement.
type SpecItem struct {
	Use  *UseStmt  `parser:"  @@"`
	Type *TypeDef  `parser:"| @@"`
	Decl *DeclLine `parser:"| @@"`
}

// UseStmt imports from a module, optionally restricted to an only
// list with renames.
type UseStmt struct {
	Pos    lexer.Position
	Module string      `parser:"'use' @Ident"`
	Only   []*OnlyItem `parser:"(',' 'only' ':' @@ (',' @@)*)? EOL+"`
}

// OnlyItem is one imported name; "local => canonical" renames.
type OnlyItem struct {
	Local     string `parser:"@Ident"`
	Canonical string `parser:"('=>' @Ident)?"`
}

// TypeDef defines a derived type from component declarations.
type TypeDef struct {
	Pos        lexer.Position
	Name       string      `parser:"'type' '::' @Ident EOL+"`
	Components []*DeclLine `parser:"@@*"`
	End        string      `parser:"'end' 'type' @Ident? EOL+"`
}

// DeclLine declares entities of one type with optional attributes.
type DeclLine struct {
	Pos      lexer.Position
	Type     string        `parser:"@('integer'|'real'|'double'|'logical'|'char'|('type' '(' Ident ')'))"`
	Attrs    []*DeclAttr   `parser:"(',' @@)*"`
	Entities []*DeclEntity `parser:"'::' @@ (',' @@)* EOL+"`
}

// DeclAttr is one declaration attribute.
type DeclAttr struct {
	Parameter   bool   `parser:"  @'parameter'"`
	Allocatable bool   `parser:"| @'allocatable'"`
	Pointer     bool   `parser:"| @'pointer'"`
	Intent      string `parser:"| 'intent' '(' @('in'|'out'|'inout') ')'"`
}

// DeclEntity is one declared name with optional sizes and initializer.
type DeclEntity struct {
	Pos   lexer.Position
	Name  string      `parser:"@Ident"`
	Sizes []*SizeSpec `parser:"('(' @@ (',' @@)* ')')?"`
	Init  *Expr       `parser:"('=' @@)?"`
}

// SizeSpec is one declared extent; a bare colon defers the extent to
// an allocate statement.
type SizeSpec struct {
	Deferred bool  `parser:"  @':'"`
	Size     *Expr `parser:"| @@"`
}

// Statement is one executable statement.
type Statement struct {
	If       *IfStmt     `parser:"  @@"`
	Do       *DoStmt     `parser:"| @@"`
	Call     *CallStmt   `parser:"| @@"`
	Allocate *AllocStmt  `parser:"| @@"`
	Exit     *ExitStmt   `parser:"| @@"`
	Write    *WriteStmt  `parser:"| @@"`
	Assign   *AssignStmt `parser:"| @@"`
}

// IfStmt is a block conditional.
type IfStmt struct {
	Pos  lexer.Position
	Cond *Expr        `parser:"'if' '(' @@ ')' 'then' EOL+"`
	Then []*Statement `parser:"@@*"`
	Else []*Statement `parser:"('else' EOL+ @@*)?"`
	End  string       `parser:"'end' 'if' EOL+"`
}

// DoStmt is a counted loop.
type DoStmt struct {
	Pos  lexer.Position
	Var  string       `parser:"'do' @Ident '='"`
	From *Expr        `parser:"@@ ','"`
	To   *Expr        `parser:"@@"`
	Step *Expr        `parser:"(',' @@)? EOL+"`
	Body []*Statement `parser:"@@*"`
	End  string       `parser:"'end' 'do' EOL+"`
}

// CallStmt invokes a subroutine.
type CallStmt struct {
	Pos  lexer.Position
	Name string  `parser:"'call' @Ident"`
	Args []*Expr `parser:"('(' (@@ (',' @@)*)? ')')? EOL+"`
}

// AllocStmt materializes deferred arrays.
type AllocStmt struct {
	Pos   lexer.Position
	Items []*AllocItem `parser:"'allocate' '(' @@ (',' @@)* ')' EOL+"`
}

// AllocItem is one allocation target with its concrete sizes.
type AllocItem struct {
	Pos   lexer.Position
	Name  string  `parser:"@Ident"`
	Sizes []*Expr `parser:"'(' @@ (',' @@)* ')'"`
}

// ExitStmt leaves the innermost loop.
type ExitStmt struct {
	Pos lexer.Position
	Kw  string `parser:"@'exit' EOL+"`
}

// WriteStmt is list-directed output.
type WriteStmt struct {
	Pos  lexer.Position
	Args []*Expr `parser:"'write' '(' '*' ',' '*' ')' @@ (',' @@)* EOL+"`
}

// AssignStmt is a value assignment or, with the arrow, a pointer
// assignment.
type AssignStmt struct {
	Pos     lexer.Position
	Target  *Designator `parser:"@@"`
	Pointer bool        `parser:"(@'=>' | '=')"`
	Value   *Expr       `parser:"@@ EOL+"`
}

// Expression grammar, loosest binding first.

// Expr is a disjunction.
type Expr struct {
	Pos   lexer.Position
	Left  *AndExpr   `parser:"@@"`
	Right []*AndExpr `parser:"('.or.' @@)*"`
}

// AndExpr is a conjunction.
type AndExpr struct {
	Pos   lexer.Position
	Left  *NotExpr   `parser:"@@"`
	Right []*NotExpr `parser:"('.and.' @@)*"`
}

// NotExpr is an optionally negated comparison.
type NotExpr struct {
	Pos  lexer.Position
	Not  bool     `parser:"@'.not.'?"`
	Expr *RelExpr `parser:"@@"`
}

// RelExpr is a comparison.
type RelExpr struct {
	Pos   lexer.Position
	Left  *AddExpr `parser:"@@"`
	Op    string   `parser:"(@('=='|'/='|'<='|'>='|'<'|'>')"`
	Right *AddExpr `parser:"@@)?"`
}

// AddExpr is a sum.
type AddExpr struct {
	Pos   lexer.Position
	Left  *MulExpr   `parser:"@@"`
	Right []*AddRest `parser:"@@*"`
}

// AddRest is one additive term.
type AddRest struct {
	Op    string   `parser:"@('+'|'-')"`
	Right *MulExpr `parser:"@@"`
}

// MulExpr is a product.
type MulExpr struct {
	Pos   lexer.Position
	Left  *PowExpr   `parser:"@@"`
	Right []*MulRest `parser:"@@*"`
}

// MulRest is one multiplicative factor.
type MulRest struct {
	Op    string   `parser:"@('*'|'/')"`
	Right *PowExpr `parser:"@@"`
}

// PowExpr is an exponentiation; right-associative.
type PowExpr struct {
	Pos   lexer.Position
	Left  *UnaryExpr `parser:"@@"`
	Right *PowExpr   `parser:"('**' @@)?"`
}

// UnaryExpr is an optionally signed primary.
type UnaryExpr struct {
	Pos  lexer.Position
	Sign string   `parser:"@('-'|'+')?"`
	Expr *Primary `parser:"@@"`
}

// Primary is a literal, a parenthesized expression or a designator.
type Primary struct {
	Pos        lexer.Position
	Number     *string     `parser:"  @Number"`
	True       bool        `parser:"| @'.true.'"`
	False      bool        `parser:"| @'.false.'"`
	Str        *string     `parser:"| @String"`
	Paren      *Expr       `parser:"| '(' @@ ')'"`
	Designator *Designator `parser:"| @@"`
}

// Designator is a name with an optional argument or index list. The
// normalizer decides between variable reference, array subscript and
// function call.
type Designator struct {
	Pos  lexer.Position
	Name string     `parser:"@Ident"`
	Args []*ArgItem `parser:"('(' (@@ (',' @@)*)? ')')?"`
}

// ArgItem is one index or argument. A bare colon selects a whole
// axis; lo:hi selects a bounded slice.
type ArgItem struct {
	All bool  `parser:"  @':'"`
	Lo  *Expr `parser:"| @@"`
	Hi  *Expr `parser:"(':' @@)?"`
}

// ParseSource parses one source file.
func ParseSource(filename, src string) (*File, error) {
	return fileParser.ParseString(filename, src)
}

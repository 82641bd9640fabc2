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

// Package diag defines the translator error taxonomy and accumulates
// non-fatal diagnostics.
//
// Hard kinds abort the translation of the current procedure or program
// with the originating node position attached. Soft kinds are collected
// into lists returned alongside (or instead of) a graph, so that a
// partial corpus can still translate.
package diag

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/flowir-org/flowir/ast"
)

// Kind classifies an error.
type Kind int

const (
	// UnknownType reports an unmapped primitive or derived type name.
	UnknownType Kind = iota
	// UnknownVariable reports an identifier unresolved in any visible scope.
	UnknownVariable
	// ArityMismatch reports a call argument count incompatible with the
	// formal signature.
	ArityMismatch
	// AmbiguousAllocation reports more than one pending-allocation entry
	// matching an allocate target.
	AmbiguousAllocation
	// UnsupportedConstruct reports a construct that has no lowering.
	UnsupportedConstruct
	// ModuleNotFound reports a used module absent from the corpus. Soft.
	ModuleNotFound
	// ModuleLoweringFailed reports a module whose raw tree could not be
	// normalized. Soft for non-entry modules, fatal for the entry module.
	ModuleLoweringFailed
)

var kindNames = map[Kind]string{
	UnknownType:          "unknown type",
	UnknownVariable:      "unknown variable",
	ArityMismatch:        "arity mismatch",
	AmbiguousAllocation:  "ambiguous allocation",
	UnsupportedConstruct: "unsupported construct",
	ModuleNotFound:       "module not found",
	ModuleLoweringFailed: "module lowering failed",
}

// String returns the kind name used in error messages.
func (k Kind) String() string {
	name, ok := kindNames[k]
	if !ok {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return name
}

// Soft returns true for kinds that are accumulated rather than aborting.
func (k Kind) Soft() bool {
	return k == ModuleNotFound || k == ModuleLoweringFailed
}

// Error is an error of a given kind attached to a source position.
type Error struct {
	Knd Kind
	Pos ast.Pos
	Err error
}

// Errorf returns a formatted error of a kind at the position of a node.
func Errorf(kind Kind, node ast.Node, format string, a ...any) *Error {
	var pos ast.Pos
	if node != nil {
		pos = node.Position()
	}
	return &Error{Knd: kind, Pos: pos, Err: errors.Errorf(format, a...)}
}

// Error formats the error with its position and kind.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Pos, e.Knd, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// Kind returns the error classification.
func (e *Error) Kind() Kind { return e.Knd }

// IsKind reports whether any error in the chain has the given kind.
func IsKind(err error, kind Kind) bool {
	var derr *Error
	if !stderrors.As(err, &derr) {
		return false
	}
	return derr.Knd == kind
}

// Diagnostics accumulates soft errors during a multi-file translation.
type Diagnostics struct {
	errs error
}

// Append adds a diagnostic.
func (d *Diagnostics) Append(err error) {
	d.errs = multierr.Append(d.errs, err)
}

// Appendf adds a formatted diagnostic of a kind at a node position.
func (d *Diagnostics) Appendf(kind Kind, node ast.Node, format string, a ...any) {
	d.Append(Errorf(kind, node, format, a...))
}

// Err returns the accumulated diagnostics as a single error, or nil.
func (d *Diagnostics) Err() error { return d.errs }

// List returns the individual accumulated diagnostics.
func (d *Diagnostics) List() []error { return multierr.Errors(d.errs) }

// Empty returns true when nothing has been accumulated.
func (d *Diagnostics) Empty() bool { return d.errs == nil }

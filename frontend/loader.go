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

package frontend

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/flowir-org/flowir/ast"
	"github.com/flowir-org/flowir/resolve"
)

// Parse parses and normalizes one source file. known lists procedure
// names defined elsewhere in the corpus.
func Parse(filename, src string, known []string) (*ast.Program, error) {
	f, err := ParseSource(filename, src)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse %s", filename)
	}
	return Normalize(f, known)
}

// ParseFile parses and normalizes a file from disk.
func ParseFile(path string, known []string) (*ast.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}
	return Parse(path, string(data), known)
}

// Loader reads modules from a directory, one file per module named
// <module>.f90. It implements resolve.Loader.
type Loader struct {
	dir   string
	known []string
	cache map[string]*ast.Module
}

// NewLoader returns a loader rooted at a directory. known lists
// procedure names the loader cannot discover on its own, so that
// function references normalize as calls before their defining module
// is read.
func NewLoader(dir string, known ...string) *Loader {
	return &Loader{dir: dir, known: known, cache: map[string]*ast.Module{}}
}

// Load reads, parses and normalizes the file of one module.
func (l *Loader) Load(name string) (*ast.Module, error) {
	if mod, ok := l.cache[name]; ok {
		return mod, nil
	}
	path := filepath.Join(l.dir, name+".f90")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(resolve.ErrNotFound, "%s", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read module %s", name)
	}
	f, err := ParseSource(path, string(data))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse module %s", name)
	}
	l.known = append(l.known, ProcedureNames(f)...)
	prog, err := Normalize(f, l.known)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot normalize module %s", name)
	}
	for _, mod := range prog.Modules {
		l.cache[mod.Name] = mod
	}
	mod, ok := l.cache[name]
	if !ok {
		return nil, errors.Wrapf(resolve.ErrNotFound, "file %s defines no module %s", path, name)
	}
	return mod, nil
}

// Known returns the procedure names discovered so far.
func (l *Loader) Known() []string { return l.known }

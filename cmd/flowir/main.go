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

// Command flowir translates a source project into stateful dataflow
// graph descriptions.
//
// The project is described by a TOML file:
//
//	[project]
//	name = "heat"
//	entry = "main.f90"
//	source_dir = "src"
//	output_dir = "build"
//	multi_graphs = false
//
//	[library_states]
//	my_rand = "rand_state"
//
// Every produced graph is written to <output_dir>/<name>.graph.yaml.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/flowir-org/flowir/ast"
	"github.com/flowir-org/flowir/diag"
	"github.com/flowir-org/flowir/frontend"
	"github.com/flowir-org/flowir/ir"
	"github.com/flowir-org/flowir/resolve"
	"github.com/flowir-org/flowir/translate"
)

type config struct {
	Project struct {
		Name        string `toml:"name"`
		Entry       string `toml:"entry"`
		SourceDir   string `toml:"source_dir"`
		OutputDir   string `toml:"output_dir"`
		MultiGraphs bool   `toml:"multi_graphs"`
	} `toml:"project"`
	LibraryStates map[string]string `toml:"library_states"`
}

func loadConfig(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read project file")
	}
	cfg := &config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "cannot parse %s", path)
	}
	if cfg.Project.Entry == "" {
		return nil, errors.Errorf("%s: project.entry is required", path)
	}
	if cfg.Project.SourceDir == "" {
		cfg.Project.SourceDir = "."
	}
	if cfg.Project.OutputDir == "" {
		cfg.Project.OutputDir = "."
	}
	if cfg.Project.Name == "" {
		name := filepath.Base(cfg.Project.Entry)
		cfg.Project.Name = name[:len(name)-len(filepath.Ext(name))]
	}
	return cfg, nil
}

var (
	warnf = color.New(color.FgYellow).FprintfFunc()
	errf  = color.New(color.FgRed).FprintfFunc()
)

func reportDiags(diags *diag.Diagnostics) {
	for _, err := range diags.List() {
		warnf(os.Stderr, "warning: %v\n", err)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	loader := frontend.NewLoader(cfg.Project.SourceDir)
	entryPath := filepath.Join(cfg.Project.SourceDir, cfg.Project.Entry)
	prog, err := frontend.ParseFile(entryPath, loader.Known())
	if err != nil {
		return err
	}
	if prog.Main == nil {
		return errors.Errorf("%s: no main program", entryPath)
	}

	// Free procedures of the entry file count as reachable roots:
	// their references keep the modules they depend on alive.
	entryProcs := append(append([]*ast.Procedure{}, prog.Subroutines...), prog.Functions...)
	res, diags, err := resolve.New(loader).Program(prog.Main, entryProcs...)
	if err != nil {
		return err
	}
	reportDiags(diags)
	// Modules defined in the entry file itself come after the
	// resolved closure, keeping dependencies first.
	res.Program.Modules = append(res.Program.Modules, prog.Modules...)
	res.Program.Subroutines = prog.Subroutines
	res.Program.Functions = prog.Functions

	// Sorted so the translation does not depend on map iteration order.
	opts := []translate.Option{translate.WithRenames(res.Renames)}
	calls := maps.Keys(cfg.LibraryStates)
	slices.Sort(calls)
	for _, call := range calls {
		opts = append(opts, translate.WithLibraryState(call, cfg.LibraryStates[call]))
	}

	var graphs []*ir.Graph
	if cfg.Project.MultiGraphs {
		var tdiags *diag.Diagnostics
		graphs, tdiags = translate.Procedures(res.Program, opts...)
		reportDiags(tdiags)
	} else {
		g, err := translate.New(res.Program, opts...).Translate(cfg.Project.Name)
		if err != nil {
			return err
		}
		graphs = append(graphs, g)
	}

	if err := os.MkdirAll(cfg.Project.OutputDir, 0o755); err != nil {
		return errors.Wrapf(err, "cannot create output directory")
	}
	for _, g := range graphs {
		if err := g.Check(); err != nil {
			return errors.Wrapf(err, "graph %s failed validation", g.Name)
		}
		out := filepath.Join(cfg.Project.OutputDir, g.Name+".graph.yaml")
		if err := g.WriteFile(out); err != nil {
			return err
		}
		fmt.Println(out)
	}
	return nil
}

func main() {
	configPath := flag.String("config", "flowir.toml", "project description file")
	flag.Parse()
	if err := run(*configPath); err != nil {
		errf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

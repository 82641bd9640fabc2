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

package frontend_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowir-org/flowir/frontend"
	"github.com/flowir-org/flowir/internal/graphexec"
	"github.com/flowir-org/flowir/resolve"
	"github.com/flowir-org/flowir/translate"
)

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoader(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "consts.f90", `
module consts
  integer, parameter :: n = 5
end module consts
`)
	writeSource(t, dir, "vecs.f90", `
module vecs
  use consts
contains
  subroutine fill(a)
    real :: a(n)
  end subroutine fill
end module vecs
`)
	loader := frontend.NewLoader(dir)

	mod, err := loader.Load("vecs")
	require.NoError(t, err)
	assert.Equal(t, "vecs", mod.Name)
	assert.Contains(t, loader.Known(), "fill")

	again, err := loader.Load("vecs")
	require.NoError(t, err)
	assert.Same(t, mod, again)

	_, err = loader.Load("ghost")
	assert.True(t, errors.Is(err, resolve.ErrNotFound))
}

// TestPipeline runs the full chain: parse, resolve the module closure,
// translate and interpret the resulting graph.
func TestPipeline(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "consts.f90", `
module consts
  integer, parameter :: n = 5
end module consts
`)
	entry := writeSource(t, dir, "main.f90", `
program main
  use consts
  integer :: i
  real :: a(n)
  real :: s

  s = 0.0
  do i = 1, n
    a(i) = i * 1.0
    s = s + a(i)
  end do
end program main
`)
	loader := frontend.NewLoader(dir)
	prog, err := frontend.ParseFile(entry, loader.Known())
	require.NoError(t, err)
	require.NotNil(t, prog.Main)

	res, diags, err := resolve.New(loader).Program(prog.Main)
	require.NoError(t, err)
	assert.True(t, diags.Empty(), "unexpected diagnostics: %v", diags.Err())
	assert.Equal(t, []string{"consts"}, res.Order)

	g, err := translate.New(res.Program).Translate("main")
	require.NoError(t, err)
	require.NoError(t, g.Check())

	data := map[string][]float64{}
	require.NoError(t, graphexec.New().Run(g, nil, data))
	assert.Equal(t, 15.0, data["s"][0])
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, data["a"])
}

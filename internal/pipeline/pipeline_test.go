package pipeline

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/condaforge/condabuild/internal/buildconfig"
	"github.com/condaforge/condabuild/internal/recipe"
	"github.com/condaforge/condabuild/internal/resolver"
	"github.com/condaforge/condabuild/internal/template"
	"github.com/condaforge/condabuild/internal/variantcfg"
)

func requireBash(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}

const simpleRecipe = `
context:
  name: mylib
  version: "1.0.0"

package:
  name: ${{ name }}
  version: ${{ version }}

build:
  number: 0
  script:
    - echo hello > $PREFIX/hello.txt

about:
  license: MIT
  homepage: https://example.org
`

// fakeResolver satisfies resolver.DependencyResolver without touching
// a real channel or solver, returning no packages for every request.
type fakeResolver struct{}

func (fakeResolver) Resolve(ctx context.Context, req resolver.Request) ([]resolver.ResolvedPackage, error) {
	return nil, nil
}

// fakeFetcher satisfies pipeline.SourceFetcher in memory; no recipe in
// these tests names a source, so Fetch is never expected to be called.
type fakeFetcher struct{}

func (fakeFetcher) Fetch(ctx context.Context, url, checksum string) (string, error) {
	return "", nil
}

func TestBuildSingleVariantProducesArchive(t *testing.T) {
	requireBash(t)
	outputDir := t.TempDir()
	recipeDir := t.TempDir()

	varCfg := variantcfg.NewConfig()

	opts := Options{
		TargetPlatform: buildconfig.Platform("linux-64"),
		RecipeDir:      recipeDir,
		OutputDir:      outputDir,
		Resolver:       fakeResolver{},
		Fetcher:        fakeFetcher{},
		Timestamp:      1700000000,
		EvalOpts:       recipe.EvalOptions{OS: "linux"},
	}

	run, errs := Build(context.Background(), []byte(simpleRecipe), "recipe.yaml", varCfg, opts)
	require.Nil(t, errs, "%v", errs)
	require.NotNil(t, run)
	require.Len(t, run.Results, 1)

	res := run.Results[0]
	require.NoError(t, res.Err, "%v", res.Err)
	assert.False(t, run.HasFailures())
	assert.FileExists(t, res.ArchivePath)
	assert.Equal(t, filepath.Join(outputDir, "linux-64"), filepath.Dir(res.ArchivePath))
}

func TestBuildExpandsVariantMatrix(t *testing.T) {
	requireBash(t)
	outputDir := t.TempDir()
	recipeDir := t.TempDir()

	src := `
package:
  name: mylib
  version: "1.0.0"

requirements:
  host:
    - ${{ python }}

build:
  number: 0
  script:
    - echo hello > $PREFIX/hello.txt
`

	varCfg := variantcfg.NewConfig()
	varCfg.Set("python", []variantcfg.Variable{template.String("3.10"), template.String("3.11")})

	opts := Options{
		TargetPlatform: buildconfig.Platform("linux-64"),
		RecipeDir:      recipeDir,
		OutputDir:      outputDir,
		Resolver:       fakeResolver{},
		Fetcher:        fakeFetcher{},
		Timestamp:      1700000000,
		EvalOpts:       recipe.EvalOptions{OS: "linux"},
	}

	run, errs := Build(context.Background(), []byte(src), "recipe.yaml", varCfg, opts)
	require.Nil(t, errs, "%v", errs)
	require.Len(t, run.Results, 2)

	hashes := map[string]bool{}
	for _, res := range run.Results {
		require.NoError(t, res.Err, "%v", res.Err)
		hashes[string(res.Hash)] = true
	}
	assert.Len(t, hashes, 2, "each variant should produce a distinct hash")
}

func TestBuildSkipsVariantsMatchingBuildSkip(t *testing.T) {
	outputDir := t.TempDir()
	recipeDir := t.TempDir()

	src := `
package:
  name: mylib
  version: "1.0.0"

build:
  number: 0
  skip:
    - ${{ win }}
  script:
    - echo hello > $PREFIX/hello.txt
`

	varCfg := variantcfg.NewConfig()
	opts := Options{
		TargetPlatform: buildconfig.Platform("win-64"),
		RecipeDir:      recipeDir,
		OutputDir:      outputDir,
		Resolver:       fakeResolver{},
		Fetcher:        fakeFetcher{},
		Timestamp:      1700000000,
		EvalOpts:       recipe.EvalOptions{OS: "win"},
	}

	run, errs := Build(context.Background(), []byte(src), "recipe.yaml", varCfg, opts)
	require.Nil(t, errs, "%v", errs)
	assert.Len(t, run.Results, 0)
}

func TestBuildParseFailureReturnsFatalDiagnostics(t *testing.T) {
	outputDir := t.TempDir()
	recipeDir := t.TempDir()

	opts := Options{
		TargetPlatform: buildconfig.Platform("linux-64"),
		RecipeDir:      recipeDir,
		OutputDir:      outputDir,
		EvalOpts:       recipe.EvalOptions{OS: "linux"},
	}

	run, errs := Build(context.Background(), []byte("not: [valid"), "recipe.yaml", variantcfg.NewConfig(), opts)
	assert.Nil(t, run)
	require.NotNil(t, errs)
	assert.True(t, errs.HasFatal())
}

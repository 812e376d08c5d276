package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/condaforge/condabuild/internal/platform"
	"github.com/condaforge/condabuild/internal/recipe"
	"github.com/condaforge/condabuild/internal/variantcfg"
)

// hostPlatform derives the default --target-platform from the running
// host's detected Target, the same linux_family/libc-aware detection
// recipe evaluation's compiler/CDT helpers use.
func hostPlatform() string {
	target, err := platform.DetectTarget()
	if err != nil {
		target = platform.Target{Platform: ""}
	}
	if subdir := target.Subdir(); subdir != "-" {
		return subdir
	}
	return "linux-64"
}

// evalOptionsFor builds the recipe.EvalOptions a build/render run
// against targetSubdir should use: the OS label stage-1's
// unix/linux/osx/win predicates expect, plus compiler()/cdt() Jinja
// helpers backed by platform.Target for that subdir.
func evalOptionsFor(targetSubdir string) recipe.EvalOptions {
	target := platform.ParseSubdir(targetSubdir)
	return recipe.EvalOptions{
		OS:          platform.CondaOSLabel(targetSubdir),
		CompilerFor: target.CompilerFor,
		CDTFor:      target.CDTFor,
	}
}

// recipeFileNames are tried in order inside a recipe directory, the
// same precedence rattler-build-style tooling uses.
var recipeFileNames = []string{"recipe.yaml", "meta.yaml"}

func loadRecipeSource(recipeDir string) ([]byte, string, error) {
	for _, name := range recipeFileNames {
		path := filepath.Join(recipeDir, name)
		if data, err := os.ReadFile(path); err == nil {
			return data, path, nil
		}
	}
	return nil, "", fmt.Errorf("no recipe.yaml or meta.yaml found in %s", recipeDir)
}

func parseRecipeDir(recipeDir string) (*recipe.Stage0Recipe, string, error) {
	src, path, err := loadRecipeSource(recipeDir)
	if err != nil {
		return nil, "", err
	}
	rec, errs := recipe.Parse(src, path)
	if errs.HasFatal() {
		return nil, path, errs.Fatal()
	}
	return rec, path, nil
}

// loadVariantConfig reads a variant_config.yaml-style file at path, or
// returns an empty Config when path is empty (no variant dimensions,
// i.e. a single-variant build).
func loadVariantConfig(path string) (*variantcfg.Config, error) {
	if path == "" {
		return variantcfg.NewConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	values, zipKeys, errs := recipe.ParseVariantFile(data, path)
	if errs.HasFatal() {
		return nil, errs.Fatal()
	}
	return variantcfg.FromParsed(values, zipKeys), nil
}

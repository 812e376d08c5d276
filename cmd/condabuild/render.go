package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/condaforge/condabuild/internal/recipe"
	"github.com/condaforge/condabuild/internal/template"
	"github.com/condaforge/condabuild/internal/variantcfg"
)

var (
	renderTargetPlatform string
	renderVariantConfig  string
	renderVariantFilter  []string
)

var renderCmd = &cobra.Command{
	Use:   "render <recipe-dir>",
	Short: "Print the fully stage-1-evaluated recipe for one variant",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().StringVar(&renderTargetPlatform, "target-platform", defaultTargetPlatform(), "Target platform subdir (e.g. linux-64)")
	renderCmd.Flags().StringVar(&renderVariantConfig, "variant-config", "", "Path to a variant_config.yaml")
	renderCmd.Flags().StringSliceVar(&renderVariantFilter, "variant", nil, "Pin a variant dimension as key=value (repeatable); renders the first matching assignment")
}

// stage1Output is a JSON-friendly projection of recipe.Stage1Recipe;
// Stage1Recipe.Variant holds template.Value entries with unexported
// fields, so it is rendered separately via AsString/Kind.
type stage1Output struct {
	PackageName    string                 `json:"package_name"`
	PackageVersion string                 `json:"package_version"`
	BuildNumber    int                    `json:"build_number"`
	BuildString    string                 `json:"build_string"`
	Script         []string               `json:"script"`
	NoarchPython   bool                   `json:"noarch_python"`
	Source         []recipe.Stage1Source  `json:"source"`
	BuildDeps      []string               `json:"build_deps"`
	HostDeps       []string               `json:"host_deps"`
	RunDeps        []string               `json:"run_deps"`
	RunConstraints []string               `json:"run_constraints"`
	RunExports     recipe.Stage1RunExports `json:"run_exports"`
	Tests          []recipe.Stage1Test    `json:"tests"`
	Homepage       string                 `json:"homepage"`
	License        string                 `json:"license"`
	Summary        string                 `json:"summary"`
	Description    string                 `json:"description"`
	Variant        map[string]string      `json:"variant"`
}

func runRender(cmd *cobra.Command, args []string) error {
	recipeDir := args[0]
	rec, _, err := parseRecipeDir(recipeDir)
	if err != nil {
		return err
	}

	varCfg, err := loadVariantConfig(renderVariantConfig)
	if err != nil {
		return err
	}
	pin, err := parseVariantFilter(renderVariantFilter)
	if err != nil {
		return err
	}

	used := map[string]bool{}
	for _, v := range rec.UsedVariables() {
		used[v] = true
	}
	assignments, err := variantcfg.Expand(used, varCfg, pin, variantcfg.Lenient)
	if err != nil {
		return err
	}
	if len(assignments) == 0 {
		return fmt.Errorf("condabuild: no variant assignment matches the given --variant pins")
	}

	opts := evalOptionsFor(renderTargetPlatform)
	stage1, errs := recipe.Eval(rec, assignmentToStrings(assignments[0]), opts)
	if errs.HasFatal() {
		return errs.Fatal()
	}

	out := stage1Output{
		PackageName:    stage1.PackageName,
		PackageVersion: stage1.PackageVersion,
		BuildNumber:    stage1.BuildNumber,
		BuildString:    stage1.BuildString,
		Script:         stage1.Script,
		NoarchPython:   stage1.NoarchPython,
		Source:         stage1.Source,
		BuildDeps:      stage1.BuildDeps,
		HostDeps:       stage1.HostDeps,
		RunDeps:        stage1.RunDeps,
		RunConstraints: stage1.RunConstraints,
		RunExports:     stage1.RunExports,
		Tests:          stage1.Tests,
		Homepage:       stage1.Homepage,
		License:        stage1.License,
		Summary:        stage1.Summary,
		Description:    stage1.Description,
		Variant:        variantToStrings(assignments[0]),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func parseVariantFilter(pins []string) (variantcfg.Assignment, error) {
	if len(pins) == 0 {
		return nil, nil
	}
	a := variantcfg.Assignment{}
	for _, p := range pins {
		key, value, err := splitKV(p)
		if err != nil {
			return nil, err
		}
		a[variantcfg.Normalize(key)] = template.String(value)
	}
	return a, nil
}

func splitKV(s string) (string, string, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("condabuild: invalid --variant %q, expected key=value", s)
}

func assignmentToStrings(a variantcfg.Assignment) map[string]template.Value {
	m := make(map[string]template.Value, len(a))
	for k, v := range a {
		m[k.String()] = v
	}
	return m
}

func variantToStrings(a variantcfg.Assignment) map[string]string {
	m := make(map[string]string, len(a))
	for k, v := range a {
		m[k.String()] = v.AsString()
	}
	return m
}

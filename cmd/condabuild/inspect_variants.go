package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/condaforge/condabuild/internal/variantcfg"
)

var (
	inspectVariantConfig string
	inspectVariantPins   []string
)

var inspectVariantsCmd = &cobra.Command{
	Use:   "inspect-variants <recipe-dir>",
	Short: "List the variant matrix a recipe expands to, with each variant's hash",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspectVariants,
}

func init() {
	inspectVariantsCmd.Flags().StringVar(&inspectVariantConfig, "variant-config", "", "Path to a variant_config.yaml")
	inspectVariantsCmd.Flags().StringSliceVar(&inspectVariantPins, "variant", nil, "Pin a variant dimension as key=value (repeatable)")
}

type variantEntry struct {
	Hash   string            `json:"hash"`
	Values map[string]string `json:"values"`
}

func runInspectVariants(cmd *cobra.Command, args []string) error {
	recipeDir := args[0]
	rec, _, err := parseRecipeDir(recipeDir)
	if err != nil {
		return err
	}

	varCfg, err := loadVariantConfig(inspectVariantConfig)
	if err != nil {
		return err
	}
	pin, err := parseVariantFilter(inspectVariantPins)
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

	entries := make([]variantEntry, len(assignments))
	for i, a := range assignments {
		entries[i] = variantEntry{
			Hash:   string(variantcfg.ComputeHash(a)),
			Values: variantToStrings(a),
		}
	}

	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no variants matched")
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

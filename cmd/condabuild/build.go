package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/condaforge/condabuild/internal/buildconfig"
	"github.com/condaforge/condabuild/internal/log"
	"github.com/condaforge/condabuild/internal/pipeline"
	"github.com/condaforge/condabuild/internal/sandbox"
	"github.com/condaforge/condabuild/internal/sourcecache"
)

var (
	buildOutputDir        string
	buildVariantConfig    string
	buildTargetPlatform   string
	buildChannels         []string
	buildChannelPriority  string
	buildContinueOnFail   bool
	buildStoreRecipe      bool
	buildArchiveFormatStr string
	buildSourceCacheDir   string
	buildSandbox          bool
	buildTimestampFlag    int64
)

var buildCmd = &cobra.Command{
	Use:   "build <recipe-dir>",
	Short: "Build every variant of a recipe",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

func init() {
	defaultOutputDir := "output"
	if v := os.Getenv(buildconfig.EnvOutputDir); v != "" {
		defaultOutputDir = v
	}
	buildCmd.Flags().StringVar(&buildOutputDir, "output-dir", defaultOutputDir, "Directory packages are written under")
	buildCmd.Flags().StringVar(&buildVariantConfig, "variant-config", "", "Path to a variant_config.yaml")
	buildCmd.Flags().StringVar(&buildTargetPlatform, "target-platform", defaultTargetPlatform(), "Target platform subdir (e.g. linux-64)")
	buildCmd.Flags().StringSliceVar(&buildChannels, "channel", nil, "Channel to resolve dependencies from (repeatable)")
	buildCmd.Flags().StringVar(&buildChannelPriority, "channel-priority", "strict", "Channel priority: strict or flexible")
	buildCmd.Flags().BoolVar(&buildContinueOnFail, "continue-on-failure", false, "Keep building remaining variants after one fails")
	buildCmd.Flags().BoolVar(&buildStoreRecipe, "store-recipe", true, "Embed the recipe source in info/recipe/")
	buildCmd.Flags().StringVar(&buildArchiveFormatStr, "archive-format", "conda", "Package format: conda or tar.bz2")
	buildCmd.Flags().StringVar(&buildSourceCacheDir, "source-cache-dir", buildconfig.GetSourceCacheDir(), "Directory the source cache is rooted at")
	buildCmd.Flags().BoolVar(&buildSandbox, "sandbox", false, "Run build scripts under bubblewrap when it is on PATH (Linux only), without network access")
	buildCmd.Flags().Int64Var(&buildTimestampFlag, "timestamp", 0, "Unix timestamp forced into the package metadata (0 = now)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	recipeDir := args[0]
	src, path, err := loadRecipeSource(recipeDir)
	if err != nil {
		return err
	}

	varCfg, err := loadVariantConfig(buildVariantConfig)
	if err != nil {
		return err
	}

	format := buildconfig.FormatConda
	if buildArchiveFormatStr == "tar.bz2" {
		format = buildconfig.FormatTarBz2
	}

	cache, err := sourcecache.New(buildSourceCacheDir)
	if err != nil {
		return err
	}
	fetcher := sourcecache.NewFetcher(cache, buildconfig.GetFetchConcurrency(), log.Default())

	var confiner sandbox.Confiner
	if buildSandbox {
		confiner = sandbox.New()
	}

	timestamp := buildTimestampFlag
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}

	opts := pipeline.Options{
		TargetPlatform:    buildconfig.Platform(buildTargetPlatform),
		RecipeDir:         recipeDir,
		OutputDir:         buildOutputDir,
		Channels:          buildChannels,
		ChannelPriority:   buildChannelPriority,
		Fetcher:           fetcher,
		Confiner:          confiner,
		Logger:            log.Default(),
		Timestamp:         timestamp,
		ContinueOnFailure: buildContinueOnFail,
		StoreRecipe:       buildStoreRecipe,
		ArchiveFormat:     format,
		EvalOpts:          evalOptionsFor(buildTargetPlatform),
	}

	run, errs := pipeline.Build(globalCtx, src, path, varCfg, opts)
	if errs != nil {
		for _, d := range errs {
			fmt.Fprintln(os.Stderr, d.Error())
		}
		return fmt.Errorf("condabuild: recipe failed to parse")
	}

	for _, res := range run.Results {
		if res.Err != nil {
			fmt.Fprintf(os.Stderr, "variant %s failed: %v\n", res.Hash, res.Err)
			continue
		}
		fmt.Println(res.ArchivePath)
	}
	if run.HasFailures() && !buildContinueOnFail {
		return fmt.Errorf("condabuild: build failed")
	}
	return nil
}

func defaultTargetPlatform() string {
	return hostPlatform()
}

// Package pipeline wires the stage-0 parser, variant expander, stage-1
// evaluator, dependency resolver, source cache, script executor,
// capture, prefix detector, relocator, and archive writer into a
// single build run (spec §2, §5). Nothing here implements a solver or
// a channel index fetcher — those are external collaborators reached
// through internal/resolver and internal/channel — but the pipeline
// compiles and builds against in-memory fakes of both.
package pipeline

import (
	"context"
	"sync"

	"github.com/condaforge/condabuild/internal/buildconfig"
	"github.com/condaforge/condabuild/internal/diag"
	"github.com/condaforge/condabuild/internal/log"
	"github.com/condaforge/condabuild/internal/recipe"
	"github.com/condaforge/condabuild/internal/resolver"
	"github.com/condaforge/condabuild/internal/sandbox"
	"github.com/condaforge/condabuild/internal/template"
	"github.com/condaforge/condabuild/internal/variantcfg"
)

// SourceFetcher is the subset of *sourcecache.Fetcher the pipeline
// needs, narrowed to an interface so tests can supply an in-memory
// fake instead of performing real network fetches.
type SourceFetcher interface {
	Fetch(ctx context.Context, url, checksum string) (string, error)
}

// Options configures one pipeline run across every expanded variant
// of a recipe.
type Options struct {
	TargetPlatform  buildconfig.Platform
	RecipeDir       string
	OutputDir       string
	Channels        []string
	ChannelPriority string
	SolveStrategy   string

	Resolver resolver.DependencyResolver
	Fetcher  SourceFetcher
	Confiner sandbox.Confiner
	Logger   log.Logger

	Timestamp         int64
	ContinueOnFailure bool
	StoreRecipe       bool
	ArchiveFormat     buildconfig.ArchiveFormat
	ZstdLevel         int
	Secrets           []string

	EvalOpts        recipe.EvalOptions
	UndefinedPolicy variantcfg.UndefinedPolicy
}

func (o Options) logger() log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

// VariantResult is the outcome of building one variant of one output.
type VariantResult struct {
	OutputName  string
	Assignment  variantcfg.Assignment
	Hash        variantcfg.Hash
	ArchivePath string
	Skipped     bool
	Diagnostics diag.List
	Err         error
}

// Run is the full outcome of a pipeline invocation: one VariantResult
// per (output, variant) pair that was not filtered out by build.skip.
type Run struct {
	Results []VariantResult
}

// HasFailures reports whether any non-skipped result carries an error.
func (r *Run) HasFailures() bool {
	for _, res := range r.Results {
		if res.Err != nil {
			return true
		}
	}
	return false
}

// Build parses recipeSrc, expands it against varCfg, and builds every
// resulting variant, following spec §2's pipeline order for each one.
// continueOnFailure (opts.ContinueOnFailure) controls whether a failed
// variant aborts the whole run or is recorded and skipped over.
func Build(ctx context.Context, recipeSrc []byte, filename string, varCfg *variantcfg.Config, opts Options) (*Run, diag.List) {
	rec, errs := recipe.Parse(recipeSrc, filename)
	if errs.HasFatal() {
		return nil, errs.Fatal()
	}

	jobs, jerrs := planJobs(rec, varCfg, opts)
	if jerrs.HasFatal() {
		return nil, jerrs.Fatal()
	}

	run := &Run{}
	concurrency := buildconfig.GetFetchConcurrency()
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	abort := false
	for _, j := range jobs {
		mu.Lock()
		stop := abort
		mu.Unlock()
		if stop {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(job buildJob) {
			defer wg.Done()
			defer func() { <-sem }()

			res := buildOne(ctx, job, opts)

			mu.Lock()
			run.Results = append(run.Results, res)
			if res.Err != nil && !opts.ContinueOnFailure {
				abort = true
			}
			mu.Unlock()
		}(j)
	}
	wg.Wait()

	return run, nil
}

// buildJob is one (output, variant-assignment) pair queued for a
// build, after skip-filtering and multi-output cache resolution.
type buildJob struct {
	outputName string
	recipe     *recipe.Stage0Recipe
	assignment variantcfg.Assignment
}

// planJobs expands the variant matrix for the root recipe (or each
// non-cache output of a multi-output recipe) and drops any assignment
// for which build.skip evaluates truthy (spec §9 build.skip).
func planJobs(rec *recipe.Stage0Recipe, varCfg *variantcfg.Config, opts Options) ([]buildJob, diag.List) {
	var jobs []buildJob
	var diags diag.List

	if !rec.IsMultiOutput() {
		used := toSet(rec.UsedVariables())
		assignments, err := variantcfg.Expand(used, varCfg, nil, opts.UndefinedPolicy)
		if err != nil {
			return nil, wrapVariantErr(err)
		}
		for _, a := range assignments {
			skip, serrs := recipe.Skipped(rec, toEvalAssignment(a), opts.EvalOpts)
			diags = append(diags, serrs...)
			if skip {
				continue
			}
			jobs = append(jobs, buildJob{recipe: rec, assignment: a})
		}
		return jobs, diags
	}

	resolved, err := recipe.ResolveOutputs(rec)
	if err != nil {
		return nil, wrapVariantErr(err)
	}
	for _, o := range resolved {
		if o.Cache {
			continue // cache outputs are never packaged themselves
		}
		outRecipe := recipeForOutput(rec, o)
		used := toSet(outRecipe.UsedVariables())
		assignments, err := variantcfg.Expand(used, varCfg, nil, opts.UndefinedPolicy)
		if err != nil {
			return nil, wrapVariantErr(err)
		}
		for _, a := range assignments {
			skip, serrs := recipe.Skipped(outRecipe, toEvalAssignment(a), opts.EvalOpts)
			diags = append(diags, serrs...)
			if skip {
				continue
			}
			jobs = append(jobs, buildJob{outputName: outputName(o), recipe: outRecipe, assignment: a})
		}
	}
	return jobs, diags
}

// recipeForOutput builds the synthetic Stage0Recipe a single
// multi-output entry is evaluated as: the root's context and source
// apply to every output, but build/requirements/tests/about and the
// package identity come from the (already cache-merged) output.
func recipeForOutput(root *recipe.Stage0Recipe, o recipe.ResolvedOutput) *recipe.Stage0Recipe {
	out := &recipe.Stage0Recipe{
		Context: root.Context,
		Source:  root.Source,
		Extra:   root.Extra,
		Span:    root.Span,

		Build:        o.Build,
		Requirements: o.Requirements,
		Tests:        o.Tests,
		About:        o.About,
	}
	name := o.Name
	version := o.Version
	if version.Concrete == "" && version.Template == nil && root.Package != nil {
		version = root.Package.Version
	}
	out.Package = &recipe.PackageSection{Name: name, Version: version}
	return out
}

func outputName(o recipe.ResolvedOutput) string {
	if o.Name.Template != nil {
		return ""
	}
	return o.Name.Concrete
}

func toSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// wrapVariantErr preserves a *diag.VariantError's Kind when one of the
// expansion/resolution helpers fails, falling back to a generic
// multi-output-cycle diagnostic for anything else (both call sites
// only return that error shape today).
func wrapVariantErr(err error) diag.List {
	if verr, ok := err.(*diag.VariantError); ok {
		return diag.List{verr.Diagnostic}
	}
	return diag.List{&diag.Diagnostic{Kind: diag.KindMultiOutputCycle, Message: err.Error()}}
}

func toEvalAssignment(a variantcfg.Assignment) map[string]template.Value {
	m := make(map[string]template.Value, len(a))
	for k, v := range a {
		m[k.String()] = v
	}
	return m
}

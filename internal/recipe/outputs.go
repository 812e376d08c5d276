package recipe

import (
	"fmt"

	"github.com/condaforge/condabuild/internal/diag"
)

// ResolvedOutput is one multi-output recipe output after cache
// inheritance has been resolved: a package output merged with the
// cache output it names via cache_from, in topological order so a
// package output never inherits from a cache that has not itself been
// resolved yet (spec §9 "Multi-output recipes with cache
// inheritance").
type ResolvedOutput struct {
	OutputSection
	IsCacheDependent bool
}

// ResolveOutputs topologically orders r.Outputs and applies explicit
// field-merge rules for every package output naming a cache output
// via cache_from.
//
// Merge rules (supplemented from original_source — spec.md §3 and §9
// name cache-vs-package outputs and cache inheritance but do not
// detail the merge):
//
//   - package.name / package.version never inherit: every output
//     keeps its own identity.
//   - build.script and the three requirements lists (build, host,
//     run) inherit from the named cache only when the package
//     output's own list is empty; a non-empty list on the package
//     output is an explicit override and is kept as-is.
//
// A cycle among cache_from references (including a cache referencing
// itself, directly or transitively) fails with a
// diag.KindMultiOutputCycle error.
func ResolveOutputs(r *Stage0Recipe) ([]ResolvedOutput, error) {
	byName := map[string]*OutputSection{}
	for i := range r.Outputs {
		if name := concreteOutputName(&r.Outputs[i]); name != "" {
			byName[name] = &r.Outputs[i]
		}
	}

	ordered, err := topoSortOutputs(r.Outputs, byName)
	if err != nil {
		return nil, err
	}

	resolved := make([]ResolvedOutput, 0, len(ordered))
	for _, o := range ordered {
		ro := ResolvedOutput{OutputSection: o}
		if o.CacheFrom != "" {
			if cache, ok := byName[o.CacheFrom]; ok {
				ro.OutputSection = mergeFromCache(o, *cache)
				ro.IsCacheDependent = true
			}
		}
		resolved = append(resolved, ro)
	}
	return resolved, nil
}

// concreteOutputName returns o's name when it is a literal (untemplated)
// string; outputs with a templated name cannot be referenced by
// cache_from before variant evaluation and are simply not addressable
// targets of inheritance at this stage.
func concreteOutputName(o *OutputSection) string {
	if o.Name.Template != nil {
		return ""
	}
	return o.Name.Concrete
}

// topoSortOutputs orders outputs so every cache_from target precedes
// its dependents, detecting cycles via a three-color DFS.
func topoSortOutputs(outputs []OutputSection, byName map[string]*OutputSection) ([]OutputSection, error) {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := map[string]int{}
	var order []OutputSection

	var visit func(o OutputSection) error
	visit = func(o OutputSection) error {
		name := concreteOutputName(&o)
		if name != "" {
			switch state[name] {
			case done:
				return nil
			case visiting:
				return &diag.VariantError{Diagnostic: &diag.Diagnostic{
					Kind:    diag.KindMultiOutputCycle,
					Message: fmt.Sprintf("cycle in multi-output cache_from graph at output %q", name),
				}}
			}
			state[name] = visiting
		}
		if o.CacheFrom != "" {
			if dep, ok := byName[o.CacheFrom]; ok {
				if err := visit(*dep); err != nil {
					return err
				}
			}
		}
		if name != "" {
			state[name] = done
		}
		order = append(order, o)
		return nil
	}

	for _, o := range outputs {
		if err := visit(o); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// mergeFromCache applies the field-merge rules described on
// ResolveOutputs to a single package output and its named cache.
func mergeFromCache(out, cache OutputSection) OutputSection {
	merged := out
	if len(merged.Build.Script) == 0 {
		merged.Build.Script = cache.Build.Script
	}
	if len(merged.Requirements.Build) == 0 {
		merged.Requirements.Build = cache.Requirements.Build
	}
	if len(merged.Requirements.Host) == 0 {
		merged.Requirements.Host = cache.Requirements.Host
	}
	if len(merged.Requirements.Run) == 0 {
		merged.Requirements.Run = cache.Requirements.Run
	}
	return merged
}

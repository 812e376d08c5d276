package matchspec

import "strings"

// RunExports mirrors internal/resolver.RunExports: the constraints a
// resolved package declares for its downstream dependents (spec §3
// "requirements"; the strong/weak split and ignore_run_exports
// weakening are supplemented from original_source, which the
// distilled spec names via the requirements struct shape but does not
// detail — see SPEC_FULL.md).
type RunExports struct {
	Strong           []string
	Weak             []string
	StrongConstrains []string
	WeakConstrains   []string
}

// Contribution is one resolved dependency's run_exports, labeled with
// the package name that contributed it so ignore_run_exports_from can
// drop an entire origin at once.
type Contribution struct {
	From       string
	RunExports RunExports
}

// Apply computes the final list of constraint match-specs a
// dependent's environment picks up from its resolved dependencies'
// run_exports, honoring:
//
//   - ignore_run_exports: drop an export by the name of the package it
//     would constrain, regardless of which dependency exported it.
//   - ignore_run_exports_from: drop every export contributed by the
//     named origin packages entirely.
//
// Strong run_exports apply to both a build dependency and a host
// dependency's dependents; weak run_exports apply only when the
// exporting package is itself a host (not build-only) dependency —
// callers select includeWeak accordingly (original_source: strong
// exports cross the build/host boundary, weak ones do not).
func Apply(contributions []Contribution, ignorePackages, ignoreFrom []string, includeWeak bool) []string {
	ignoreP := toSet(ignorePackages)
	ignoreF := toSet(ignoreFrom)

	seen := map[string]bool{}
	var out []string
	add := func(spec string) {
		if seen[spec] || ignoreP[specName(spec)] {
			return
		}
		seen[spec] = true
		out = append(out, spec)
	}

	for _, c := range contributions {
		if ignoreF[c.From] {
			continue
		}
		for _, s := range c.RunExports.Strong {
			add(s)
		}
		for _, s := range c.RunExports.StrongConstrains {
			add(s)
		}
		if includeWeak {
			for _, s := range c.RunExports.Weak {
				add(s)
			}
			for _, s := range c.RunExports.WeakConstrains {
				add(s)
			}
		}
	}
	return out
}

// specName extracts the package-name prefix of a match-spec string,
// falling back to a best-effort split when it does not parse (a
// run_exports entry written by an upstream recipe may use looser
// syntax than this module's own strict-mode grammar).
func specName(spec string) string {
	if ms, err := Parse(spec); err == nil {
		return ms.Name
	}
	fields := strings.Fields(spec)
	if len(fields) > 0 {
		return fields[0]
	}
	return spec
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

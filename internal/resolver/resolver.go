// Package resolver defines the external dependency-resolution
// collaborator consumed by internal/pipeline. Concrete SAT-solver
// implementations are out of scope for this module (spec.md §1
// Non-goals); this package exists so the pipeline compiles and is
// testable against in-memory fakes.
package resolver

import "context"

// Request describes one environment to resolve: a platform and a set
// of match-spec strings to satisfy together.
type Request struct {
	Platform     string
	Subdir       string
	MatchSpecs   []string
	Channels     []string
	ChannelPriority string
}

// ResolvedPackage is one entry of a solved environment.
type ResolvedPackage struct {
	Name       string
	Version    string
	BuildString string
	Channel    string
	SHA256     string
	URL        string
	RunExports RunExports
}

// RunExports mirrors internal/recipe.Stage1RunExports for packages
// already resolved from a channel, so run-export propagation (spec §3
// "requirements", supplemented ignore_run_exports semantics) can be
// computed without re-evaluating their recipes.
type RunExports struct {
	Strong           []string
	Weak             []string
	StrongConstrains []string
	WeakConstrains   []string
}

// DependencyResolver resolves a Request into a pinned, ordered set of
// packages for one environment (build_env or host_env).
type DependencyResolver interface {
	Resolve(ctx context.Context, req Request) ([]ResolvedPackage, error)
}

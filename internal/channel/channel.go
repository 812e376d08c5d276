// Package channel defines the external repodata-fetch collaborator
// consumed by internal/pipeline and internal/resolver implementations.
// A concrete HTTP-backed fetcher is out of scope for this module
// (spec.md §1 Non-goals); this package exists so the pipeline compiles
// and is testable against in-memory fakes.
package channel

import (
	"context"
	"time"
)

// Record is one package's repodata.json entry.
type Record struct {
	Name        string
	Version     string
	BuildString string
	BuildNumber int
	Subdir      string
	SHA256      string
	SizeBytes   int64
	Depends     []string
	Constrains  []string
}

// Repodata is one channel/subdir's package index.
type Repodata struct {
	Channel   string
	Subdir    string
	Packages  []Record
	FetchedAt time.Time
}

// ChannelFetcher fetches repodata for a channel/subdir pair, used by
// a DependencyResolver to build its candidate package universe.
type ChannelFetcher interface {
	FetchRepodata(ctx context.Context, channel, subdir string, timeout time.Duration) (*Repodata, error)
}

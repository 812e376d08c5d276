// Package diag provides source-span-aware diagnostics for the recipe
// pipeline: parse errors, variant errors, evaluation errors, and the
// packaging/build error taxonomy, all rendered with an annotated
// source snippet in the style the teacher's errmsg package used for
// possible-causes/suggestion blocks.
package diag

import "fmt"

// Span is a byte-offset range into a source document, used for
// diagnostic rendering. Spans nest: a child span lies inside its
// parent's range.
type Span struct {
	File  string // source file label, e.g. "recipe.yaml"
	Start int    // inclusive byte offset
	End   int    // exclusive byte offset
	Line  int    // 1-based line of Start, when known (0 = unknown)
	Col   int    // 1-based column of Start, when known (0 = unknown)
}

// IsZero reports whether the span carries no position information.
func (s Span) IsZero() bool {
	return s.File == "" && s.Start == 0 && s.End == 0 && s.Line == 0
}

// Contains reports whether s fully contains other, the nesting
// invariant every parsed span in this module must satisfy.
func (s Span) Contains(other Span) bool {
	if s.File != other.File {
		return false
	}
	return s.Start <= other.Start && other.End <= s.End
}

func (s Span) String() string {
	if s.Line > 0 {
		return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Col)
	}
	if s.File != "" {
		return fmt.Sprintf("%s@%d", s.File, s.Start)
	}
	return "<unknown>"
}

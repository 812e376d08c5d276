package diag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanContains(t *testing.T) {
	parent := Span{File: "r.yaml", Start: 0, End: 100}
	child := Span{File: "r.yaml", Start: 10, End: 20}
	assert.True(t, parent.Contains(child))
	assert.False(t, child.Contains(parent))

	other := Span{File: "other.yaml", Start: 10, End: 20}
	assert.False(t, parent.Contains(other))
}

func TestListFatalFiltersWarnings(t *testing.T) {
	l := List{
		{Kind: KindDuplicateKey, Message: "dup", Warning: false},
		{Kind: KindMissingField, Message: "symlink outside prefix", Warning: true},
	}
	require.True(t, l.HasFatal())
	fatal := l.Fatal()
	require.Len(t, fatal, 1)
	assert.Equal(t, KindDuplicateKey, fatal[0].Kind)
}

func TestRenderUnderlinesSpan(t *testing.T) {
	source := "package:\n  name: 1bad\n  version: 1.0\n"
	d := &Diagnostic{
		Kind:    KindInvalidValue,
		Message: "invalid package name",
		Span: Span{
			File: "recipe.yaml", Line: 2, Col: 9,
			Start: 15, End: 19,
		},
		Suggestion: "package names must start with a letter or digit",
	}
	out := Render(d, source)
	assert.Contains(t, out, "error[invalid_value]")
	assert.Contains(t, out, "recipe.yaml:2:9")
	assert.Contains(t, out, strings.Repeat("^", 4))
	assert.Contains(t, out, "suggestion:")
}

func TestDiagnosticErrorWithoutSpan(t *testing.T) {
	d := &Diagnostic{Kind: KindMissingField, Message: "name is required"}
	assert.Equal(t, "missing_field: name is required", d.Error())
}

package variantcfg

import (
	"testing"

	"github.com/condaforge/condabuild/internal/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strs(vs ...string) []template.Value {
	out := make([]template.Value, len(vs))
	for i, v := range vs {
		out[i] = template.String(v)
	}
	return out
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, k := range []string{"python-version", "python_version", "python.version"} {
		assert.Equal(t, Normalize(k), Normalize(string(Normalize(k))))
	}
	assert.Equal(t, Normalize("python-version"), Normalize("python.version"))
}

func TestExpandZipKeys(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("python", strs("3.9", "3.10"))
	cfg.Set("numpy", strs("1.20", "1.21"))
	cfg.AddZipGroup([]string{"python", "numpy"})

	used := map[string]bool{"python": true, "numpy": true}
	assignments, err := Expand(used, cfg, nil, Lenient)
	require.NoError(t, err)
	require.Len(t, assignments, 2)

	assert.Equal(t, "3.9", assignments[0][Normalize("python")].AsString())
	assert.Equal(t, "1.20", assignments[0][Normalize("numpy")].AsString())
	assert.Equal(t, "3.10", assignments[1][Normalize("python")].AsString())
	assert.Equal(t, "1.21", assignments[1][Normalize("numpy")].AsString())
}

func TestExpandMismatchedZipLengthFails(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("python", strs("3.9", "3.10"))
	cfg.Set("numpy", strs("1.20"))
	cfg.AddZipGroup([]string{"python", "numpy"})

	_, err := Expand(map[string]bool{"python": true, "numpy": true}, cfg, nil, Lenient)
	require.Error(t, err)
}

func TestExpandIndependentDimensionsMultiply(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("python", strs("3.9", "3.10"))
	cfg.Set("openssl", strs("1.1", "3.0", "3.1"))

	used := map[string]bool{"python": true, "openssl": true}
	assignments, err := Expand(used, cfg, nil, Lenient)
	require.NoError(t, err)
	assert.Len(t, assignments, 6)
}

func TestExpandUnusedVariablesDoNotMultiply(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("python", strs("3.9", "3.10"))
	cfg.Set("rarely_used", strs("a", "b", "c"))

	assignments, err := Expand(map[string]bool{"python": true}, cfg, nil, Lenient)
	require.NoError(t, err)
	assert.Len(t, assignments, 2)
}

func TestExpandNoUsedVariablesYieldsOneBuild(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("python", strs("3.9", "3.10"))

	assignments, err := Expand(map[string]bool{}, cfg, nil, Lenient)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Empty(t, assignments[0])
}

func TestExpandAlreadyUsedVarsFiltersAssignments(t *testing.T) {
	cfg := NewConfig()
	cfg.Set("python", strs("3.9", "3.10"))

	already := Assignment{Normalize("python"): template.String("3.9")}
	assignments, err := Expand(map[string]bool{"python": true}, cfg, already, Lenient)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, "3.9", assignments[0][Normalize("python")].AsString())
}

func TestHashStableRegardlessOfInsertionOrder(t *testing.T) {
	a1 := Assignment{
		Normalize("python"): template.String("3.9"),
		Normalize("numpy"):  template.String("1.20"),
	}
	a2 := Assignment{
		Normalize("numpy"):  template.String("1.20"),
		Normalize("python"): template.String("3.9"),
	}
	assert.Equal(t, ComputeHash(a1), ComputeHash(a2))
}

func TestHashDiffersOnDifferentAssignment(t *testing.T) {
	a1 := Assignment{Normalize("python"): template.String("3.9")}
	a2 := Assignment{Normalize("python"): template.String("3.10")}
	assert.NotEqual(t, ComputeHash(a1), ComputeHash(a2))
}

func TestHashFormat(t *testing.T) {
	h := ComputeHash(Assignment{Normalize("python"): template.String("3.9")})
	s := h.String()
	require.Len(t, s, 8)
	assert.Equal(t, byte('h'), s[0])
}

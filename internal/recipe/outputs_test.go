package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multiOutputRecipe = `
outputs:
  - name: mylib-cache
    cache: true
    build:
      script:
        - build_common.sh
    requirements:
      build:
        - ${{ compiler('c') }}
      host:
        - zlib
  - name: mylib
    cache_from: mylib-cache
    requirements:
      run:
        - zlib
  - name: mylib-static
    cache_from: mylib-cache
    requirements:
      host:
        - ninja
`

func TestResolveOutputsInheritsFromCache(t *testing.T) {
	rec, errs := Parse([]byte(multiOutputRecipe), "recipe.yaml")
	require.False(t, errs.HasFatal(), "%v", errs)
	require.Len(t, rec.Outputs, 3)

	resolved, err := ResolveOutputs(rec)
	require.NoError(t, err)
	require.Len(t, resolved, 3)

	byName := map[string]ResolvedOutput{}
	for _, o := range resolved {
		byName[concreteOutputName(&o.OutputSection)] = o
	}

	cache := byName["mylib-cache"]
	assert.False(t, cache.IsCacheDependent)

	pkg := byName["mylib"]
	assert.True(t, pkg.IsCacheDependent)
	assert.Equal(t, cache.Build.Script, pkg.Build.Script)
	assert.Equal(t, cache.Requirements.Build, pkg.Requirements.Build)
	assert.Equal(t, cache.Requirements.Host, pkg.Requirements.Host)
	assert.Len(t, pkg.Requirements.Run, 1) // own list, not inherited (empty on cache anyway)

	// mylib-static overrides host with its own list rather than
	// inheriting the cache's.
	static := byName["mylib-static"]
	assert.True(t, static.IsCacheDependent)
	assert.Len(t, static.Requirements.Host, 1)
}

func TestResolveOutputsOrdersCacheBeforeDependents(t *testing.T) {
	rec, errs := Parse([]byte(multiOutputRecipe), "recipe.yaml")
	require.False(t, errs.HasFatal(), "%v", errs)

	resolved, err := ResolveOutputs(rec)
	require.NoError(t, err)

	pos := map[string]int{}
	for i, o := range resolved {
		pos[concreteOutputName(&o.OutputSection)] = i
	}
	assert.Less(t, pos["mylib-cache"], pos["mylib"])
	assert.Less(t, pos["mylib-cache"], pos["mylib-static"])
}

func TestResolveOutputsDetectsCycle(t *testing.T) {
	src := `
outputs:
  - name: a
    cache_from: b
  - name: b
    cache_from: a
`
	rec, errs := Parse([]byte(src), "recipe.yaml")
	require.False(t, errs.HasFatal(), "%v", errs)

	_, err := ResolveOutputs(rec)
	require.Error(t, err)
}

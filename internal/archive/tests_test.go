package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/condaforge/condabuild/internal/recipe"
)

func TestBuildTestsYAMLEmptyReturnsNil(t *testing.T) {
	data, err := BuildTestsYAML(nil)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestBuildTestsYAMLRoundTrips(t *testing.T) {
	tests := []recipe.Stage1Test{
		{Script: []string{"mylib --version"}, Imports: []string{"mylib"}},
	}
	data, err := BuildTestsYAML(tests)
	require.NoError(t, err)

	var out []testYAMLEntry
	require.NoError(t, yaml.Unmarshal(data, &out))
	require.Len(t, out, 1)
	assert.Equal(t, []string{"mylib --version"}, out[0].Script)
	assert.Equal(t, []string{"mylib"}, out[0].Imports)
}

func TestStageTestFilesCopiesMatches(t *testing.T) {
	recipeDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(recipeDir, "test-data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(recipeDir, "test-data", "sample.txt"), []byte("x"), 0o644))

	destDir := t.TempDir()
	staged, err := StageTestFiles(recipeDir, destDir, []string{"test-data/*.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"test-data/sample.txt"}, staged)

	data, err := os.ReadFile(filepath.Join(destDir, "test-data", "sample.txt"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestStageTestFilesEmptyGlobsNoop(t *testing.T) {
	staged, err := StageTestFiles(t.TempDir(), t.TempDir(), nil)
	require.NoError(t, err)
	assert.Nil(t, staged)
}

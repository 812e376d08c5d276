package buildconfig

import (
	"testing"

	"github.com/condaforge/condabuild/internal/template"
	"github.com/condaforge/condabuild/internal/variantcfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAllocatesWorkTreeUnderHash(t *testing.T) {
	assignment := map[variantcfg.NormalizedKey]variantcfg.Variable{
		variantcfg.Normalize("python"): template.String("3.10"),
	}
	cfg := New("mylib", "linux-64", assignment, "/recipes/mylib", "/out", 1700000000)

	assert.Contains(t, cfg.WorkBase, "mylib_1700000000_")
	assert.Contains(t, cfg.WorkBase, string(cfg.VariantHash))
	assert.Equal(t, cfg.WorkBase+"/work", cfg.WorkDir)
	assert.Equal(t, cfg.WorkBase+"/host_env", cfg.HostEnv)
	assert.Equal(t, cfg.HostEnv, cfg.EncodedPrefix())
}

func TestBuildStringDefaultsToHashAndNumber(t *testing.T) {
	h := variantcfg.Hash("h1234567")
	assert.Equal(t, "h1234567_0", BuildString(h, 0))
	assert.Equal(t, "h1234567_3", BuildString(h, 3))
}

func TestPaddedPrefixPadsToLength(t *testing.T) {
	assignment := map[variantcfg.NormalizedKey]variantcfg.Variable{}
	cfg := New("a", "linux-64", assignment, "/r", "/out", 1)
	padded := cfg.PaddedPrefix(255)
	require.Len(t, padded, 255)
	assert.Equal(t, cfg.EncodedPrefix(), padded[:len(cfg.EncodedPrefix())])
}

func TestSameAssignmentProducesSameHashRegardlessOfConfig(t *testing.T) {
	a1 := map[variantcfg.NormalizedKey]variantcfg.Variable{
		variantcfg.Normalize("python"): template.String("3.9"),
	}
	a2 := map[variantcfg.NormalizedKey]variantcfg.Variable{
		variantcfg.Normalize("python"): template.String("3.9"),
	}
	c1 := New("a", "linux-64", a1, "/r", "/out", 1)
	c2 := New("a", "linux-64", a2, "/r", "/out", 2)
	assert.Equal(t, c1.VariantHash, c2.VariantHash)
}

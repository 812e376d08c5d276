package matchspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyRunExportsStrongOnly(t *testing.T) {
	contributions := []Contribution{
		{From: "libzlib", RunExports: RunExports{Strong: []string{"libzlib >=1.2"}}},
		{From: "openssl", RunExports: RunExports{Weak: []string{"openssl >=3.0"}}},
	}
	out := Apply(contributions, nil, nil, false)
	assert.Equal(t, []string{"libzlib >=1.2"}, out)
}

func TestApplyRunExportsIncludesWeakWhenRequested(t *testing.T) {
	contributions := []Contribution{
		{From: "openssl", RunExports: RunExports{Weak: []string{"openssl >=3.0"}}},
	}
	out := Apply(contributions, nil, nil, true)
	assert.Equal(t, []string{"openssl >=3.0"}, out)
}

func TestApplyRunExportsIgnoresByPackageName(t *testing.T) {
	contributions := []Contribution{
		{From: "libzlib", RunExports: RunExports{Strong: []string{"libzlib >=1.2"}}},
	}
	out := Apply(contributions, []string{"libzlib"}, nil, false)
	assert.Empty(t, out)
}

func TestApplyRunExportsIgnoresByOrigin(t *testing.T) {
	contributions := []Contribution{
		{From: "libzlib", RunExports: RunExports{Strong: []string{"libzlib >=1.2"}}},
		{From: "openssl", RunExports: RunExports{Strong: []string{"openssl >=3.0"}}},
	}
	out := Apply(contributions, nil, []string{"libzlib"}, false)
	assert.Equal(t, []string{"openssl >=3.0"}, out)
}

func TestApplyRunExportsDeduplicates(t *testing.T) {
	contributions := []Contribution{
		{From: "a", RunExports: RunExports{Strong: []string{"foo >=1.0"}}},
		{From: "b", RunExports: RunExports{Strong: []string{"foo >=1.0"}}},
	}
	out := Apply(contributions, nil, nil, false)
	assert.Equal(t, []string{"foo >=1.0"}, out)
}

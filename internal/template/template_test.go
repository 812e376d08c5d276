package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTemplate(t *testing.T) {
	assert.True(t, IsTemplate("${{ version }}"))
	assert.False(t, IsTemplate("plain string"))
	assert.False(t, IsTemplate("${{ incomplete"))
}

func TestParseUsedVariables(t *testing.T) {
	e, err := Parse("v${{ version }}-${{ build_number }}")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"version", "build_number"}, e.UsedVariables())
}

func TestRenderMixedLiteralAndExpr(t *testing.T) {
	e, err := Parse("tool-${{ version }}.tar.gz")
	require.NoError(t, err)
	ctx := Context{"version": String("1.2.3")}
	out, err := e.Render(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "tool-1.2.3.tar.gz", out)
}

func TestEvalBoolTernary(t *testing.T) {
	e, err := Parse("${{ \"vs2019\" if win else \"clang\" }}")
	require.NoError(t, err)

	reg := NewRegistry()
	RegisterPlatformPredicates(reg, "linux")
	v, err := e.RenderValue(Context{}, reg)
	require.NoError(t, err)
	assert.Equal(t, "clang", v.AsString())

	reg2 := NewRegistry()
	RegisterPlatformPredicates(reg2, "win")
	v2, err := e.RenderValue(Context{}, reg2)
	require.NoError(t, err)
	assert.Equal(t, "vs2019", v2.AsString())
}

func TestConditionIsBoolean(t *testing.T) {
	e, err := Parse("${{ win }}")
	require.NoError(t, err)
	assert.True(t, e.IsBoolean())

	ok, err := e.EvalBool(Context{}, func() *Registry {
		r := NewRegistry()
		RegisterPlatformPredicates(r, "win")
		return r
	}())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUndefinedVariableIsLenientByDefault(t *testing.T) {
	e, err := Parse("${{ missing }}")
	require.NoError(t, err)
	v, err := e.RenderValue(Context{}, nil)
	require.NoError(t, err)
	assert.True(t, v.IsUndefined())
}

func TestCompilerHelper(t *testing.T) {
	e, err := Parse("${{ compiler('c') }}")
	require.NoError(t, err)
	reg := NewRegistry()
	RegisterBuildHelpers(reg, func(lang string) string {
		return lang + "_compiler_stub"
	}, func(name string) string { return name })
	v, err := e.RenderValue(Context{}, reg)
	require.NoError(t, err)
	assert.Equal(t, "c_compiler_stub", v.AsString())
}

func TestPinSubpackageKwargs(t *testing.T) {
	e, err := Parse("${{ pin_subpackage('libfoo', exact=True) }}")
	require.NoError(t, err)
	reg := NewRegistry()
	RegisterPinHelpers(reg,
		func(name string, exact bool, min, max string) string {
			if exact {
				return name + "==exact"
			}
			return name
		},
		func(name string, exact bool, min, max string) string { return name })
	v, err := e.RenderValue(Context{}, reg)
	require.NoError(t, err)
	assert.Equal(t, "libfoo==exact", v.AsString())
}

func TestComparisonAndListMembership(t *testing.T) {
	e, err := Parse("${{ python_version in [\"3.9\", \"3.10\"] }}")
	require.NoError(t, err)
	ctx := Context{"python_version": String("3.9")}
	v, err := e.RenderValue(ctx, nil)
	require.NoError(t, err)
	assert.True(t, v.AsBool())
}

func TestParseVariantScalarRule(t *testing.T) {
	assert.Equal(t, KindString, ParseVariantScalar("3.14", false).Kind())
	assert.Equal(t, KindInt, ParseVariantScalar("3", false).Kind())
	assert.Equal(t, KindString, ParseVariantScalar("3", true).Kind())
	assert.Equal(t, "3", ParseVariantScalar("3", true).AsString())
}

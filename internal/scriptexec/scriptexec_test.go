package scriptexec

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/condaforge/condabuild/internal/buildconfig"
	"github.com/condaforge/condabuild/internal/template"
	"github.com/condaforge/condabuild/internal/variantcfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveExplicitWins(t *testing.T) {
	assert.Equal(t, InterpreterPerl, Resolve("perl", "build.sh", "linux"))
}

func TestResolveByExtension(t *testing.T) {
	assert.Equal(t, InterpreterPowerShell, Resolve("", "build.ps1", "win"))
	assert.Equal(t, InterpreterPython, Resolve("", "build.py", "linux"))
}

func TestResolveByPlatformDefault(t *testing.T) {
	assert.Equal(t, InterpreterBash, Resolve("", "", "linux"))
	assert.Equal(t, InterpreterCmd, Resolve("", "", "win"))
}

func TestNeedsHostShellActivation(t *testing.T) {
	assert.True(t, needsHostShellActivation(InterpreterPython))
	assert.False(t, needsHostShellActivation(InterpreterBash))
	assert.False(t, needsHostShellActivation(InterpreterCmd))
}

func TestComposeBashIncludesSentinelGuardAndActivation(t *testing.T) {
	cfg := testConfig(t)
	script := composeBash(cfg, "echo hi\n")
	assert.Contains(t, script, "CONDA_BUILD_ACTIVATED")
	assert.Contains(t, script, cfg.BuildEnv)
	assert.Contains(t, script, cfg.HostEnv)
	assert.Contains(t, script, "echo hi")
}

func TestComposeDelegatedExecsInterpreterOnScript(t *testing.T) {
	cfg := testConfig(t)
	script := composeDelegated(cfg, "linux", InterpreterPython, "/work/user.py")
	assert.Contains(t, script, "exec python \"/work/user.py\"")
	assert.Contains(t, script, "CONDA_BUILD_ACTIVATED")
}

func TestLineNormalizerHandlesSplitCRLF(t *testing.T) {
	var w lineNormalizer
	w.Write([]byte("line one\r"))
	w.Write([]byte("\nline two\r\n"))
	assert.Equal(t, "line one\nline two\n", w.String())
}

func TestLineNormalizerHandlesLoneCR(t *testing.T) {
	var w lineNormalizer
	w.Write([]byte("a\rb\rc"))
	assert.Equal(t, "a\nb\nc", w.String())
}

func TestMaskReplacesSecrets(t *testing.T) {
	out := mask("token=SECRET123 done", []string{"SECRET123"})
	assert.NotContains(t, out, "SECRET123")
	assert.Contains(t, out, "********")
}

func TestRunExecutesBashScriptAndCapturesOutput(t *testing.T) {
	if _, err := defaultLookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.WorkDir, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.BuildEnv, "bin"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.HostEnv, "bin"), 0o755))
	writeNoopActivate(t, cfg.BuildEnv)
	writeNoopActivate(t, cfg.HostEnv)

	res, err := Run(context.Background(), cfg, "echo hello-world\n", Options{GOOS: "linux"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "hello-world")
}

func TestRunReportsExecutionFailedOnNonzeroExit(t *testing.T) {
	if _, err := defaultLookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.WorkDir, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.BuildEnv, "bin"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.HostEnv, "bin"), 0o755))
	writeNoopActivate(t, cfg.BuildEnv)
	writeNoopActivate(t, cfg.HostEnv)

	_, err := Run(context.Background(), cfg, "exit 3\n", Options{GOOS: "linux"})
	require.Error(t, err)
}

func testConfig(t *testing.T) *buildconfig.Config {
	t.Helper()
	dir := t.TempDir()
	assignment := map[variantcfg.NormalizedKey]variantcfg.Variable{
		variantcfg.Normalize("python"): template.String("3.10"),
	}
	return buildconfig.New("pkg", "linux-64", assignment, filepath.Join(dir, "recipe"), dir, 1700000000)
}

func writeNoopActivate(t *testing.T, envDir string) {
	t.Helper()
	path := filepath.Join(envDir, "bin", "activate")
	err := os.WriteFile(path, []byte("#!/bin/bash\nreturn 0 2>/dev/null || exit 0\n"), 0o755)
	require.NoError(t, err)
}

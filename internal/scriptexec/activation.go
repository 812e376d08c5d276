package scriptexec

import (
	"fmt"
	"strings"

	"github.com/condaforge/condabuild/internal/buildconfig"
)

// sentinelVar guards against double-activation when a non-bash
// interpreter delegates to bash/cmd first and that shell in turn
// execs the interpreter (spec §4.5 "activation must not run twice").
const sentinelVar = "CONDA_BUILD_ACTIVATED"

// composeBash builds the full bash script written to cfg.ScriptPath():
// a sentinel-guarded activation preamble for build_env then host_env,
// followed by the user's script body (spec §4.5 steps 1-2).
func composeBash(cfg *buildconfig.Config, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#!/bin/bash\n")
	fmt.Fprintf(&b, "set -euo pipefail\n")
	fmt.Fprintf(&b, "if [ -z \"${%s:-}\" ]; then\n", sentinelVar)
	fmt.Fprintf(&b, "  export %s=1\n", sentinelVar)
	fmt.Fprintf(&b, "  source \"%s/etc/conda/activate.d\"/*.sh 2>/dev/null || true\n", cfg.BuildEnv)
	fmt.Fprintf(&b, "  source \"%s/bin/activate\" \"%s\"\n", cfg.BuildEnv, cfg.BuildEnv)
	fmt.Fprintf(&b, "  source \"%s/bin/activate\" \"%s\"\n", cfg.HostEnv, cfg.HostEnv)
	fmt.Fprintf(&b, "fi\n")
	fmt.Fprintf(&b, "export PREFIX=\"%s\"\n", cfg.HostEnv)
	fmt.Fprintf(&b, "export BUILD_PREFIX=\"%s\"\n", cfg.BuildEnv)
	fmt.Fprintf(&b, "export SRC_DIR=\"%s\"\n", cfg.WorkDir)
	fmt.Fprintf(&b, "cd \"%s\"\n", cfg.WorkDir)
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

// composeCmd builds the equivalent Windows cmd.exe script (spec §4.5,
// Windows activation via activate.bat rather than a sourced shell
// function).
func composeCmd(cfg *buildconfig.Config, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "@echo off\n")
	fmt.Fprintf(&b, "if not defined %s (\n", sentinelVar)
	fmt.Fprintf(&b, "  set %s=1\n", sentinelVar)
	fmt.Fprintf(&b, "  call \"%s\\condabin\\activate.bat\" \"%s\"\n", cfg.BuildEnv, cfg.BuildEnv)
	fmt.Fprintf(&b, "  call \"%s\\condabin\\activate.bat\" \"%s\"\n", cfg.HostEnv, cfg.HostEnv)
	fmt.Fprintf(&b, ")\n")
	fmt.Fprintf(&b, "set PREFIX=%s\n", cfg.HostEnv)
	fmt.Fprintf(&b, "set BUILD_PREFIX=%s\n", cfg.BuildEnv)
	fmt.Fprintf(&b, "set SRC_DIR=%s\n", cfg.WorkDir)
	fmt.Fprintf(&b, "cd /D \"%s\"\n", cfg.WorkDir)
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

// composeDelegated wraps a non-bash interpreter invocation in the
// bash (or cmd) activation preamble, then execs the interpreter on
// scriptPath — the pattern spec §4.5 calls "non-bash interpreters
// delegate activation to the platform shell, then invoke themselves
// on the user script".
func composeDelegated(cfg *buildconfig.Config, goos string, interp Interpreter, scriptPath string) string {
	inv := strings.Join(invocation(interp, goos), " ")
	exec := fmt.Sprintf("exec %s %q\n", inv, scriptPath)
	if goos == "win" {
		return composeCmd(cfg, exec)
	}
	return composeBash(cfg, exec)
}

package scriptexec

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/condaforge/condabuild/internal/buildconfig"
	"github.com/condaforge/condabuild/internal/diag"
	"github.com/condaforge/condabuild/internal/log"
	"github.com/condaforge/condabuild/internal/sandbox"
)

var defaultLookPath = exec.LookPath

// Options configures one script execution (spec §4.5).
type Options struct {
	// Interpreter, when non-empty, overrides detection (the recipe's
	// `build.interpreter:` field).
	Interpreter string
	// ScriptRef is the referenced script file name, if the recipe
	// points at a file rather than inline lines; used for
	// extension-based interpreter detection.
	ScriptRef string
	// GOOS is the build platform's OS family: "linux", "osx", or "win".
	GOOS string
	// Secrets are literal substrings masked out of captured
	// stdout/stderr before they are logged or returned (spec §4.5
	// "Secrets configured for the build must never appear in logs").
	Secrets []string
	// Confiner optionally sandboxes the subprocess. Nil disables
	// sandboxing.
	Confiner sandbox.Confiner
	Sandbox  sandbox.Config
	Logger   log.Logger
}

// Result carries the captured, line-normalized, secret-masked output
// of a script run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run writes the composed activation+body script to cfg.ScriptPath(),
// then executes it under the resolved interpreter with cfg's
// environment activated (spec §4.5 steps 1-4). body is the already
// template-rendered script text (one or more lines joined by "\n").
func Run(ctx context.Context, cfg *buildconfig.Config, body string, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	goos := opts.GOOS
	if goos == "" {
		goos = hostGOOS()
	}

	interp := Resolve(opts.Interpreter, opts.ScriptRef, goos)
	if _, ok := invocationLookup(interp, goos); !ok {
		return nil, diag.NewBuildError(diag.KindInterpreterNotFound,
			"interpreter not found: "+string(interp), cfg.WorkDir, -1)
	}
	if interp == InterpreterPowerShell {
		if _, ok := preferredPowerShell(); !ok {
			logger.Warn("pwsh (PowerShell 7.4+) not found; Windows PowerShell may silently ignore native-command errors")
		}
	}

	scriptPath := cfg.ScriptPath()
	var content string
	if needsHostShellActivation(interp) {
		userScript := scriptPath + userScriptSuffix(interp)
		if err := os.WriteFile(userScript, []byte(body), 0o755); err != nil {
			return nil, err
		}
		content = composeDelegated(cfg, goos, interp, userScript)
	} else if goos == "win" {
		content = composeCmd(cfg, body)
	} else {
		content = composeBash(cfg, body)
	}
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(scriptPath, []byte(content), 0o755); err != nil {
		return nil, err
	}

	argv := invocation(launcherFor(interp, goos), goos)
	cmd := exec.CommandContext(ctx, argv[0], append(argv[1:], scriptPath)...)
	cmd.Dir = cfg.WorkDir
	cmd.Env = os.Environ()

	if opts.Confiner != nil {
		if err := opts.Confiner.Apply(ctx, cmd, opts.Sandbox); err != nil {
			return nil, err
		}
	}

	var stdout, stderr lineNormalizer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	out := mask(stdout.String(), opts.Secrets)
	errOut := mask(stderr.String(), opts.Secrets)
	logger.Debug("script execution finished", "interpreter", string(interp), "work_dir", cfg.WorkDir)

	exitCode := 0
	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		exitCode = 0
	case errors.As(runErr, &exitErr):
		exitCode = exitErr.ExitCode()
	default:
		return nil, runErr
	}

	result := &Result{Stdout: out, Stderr: errOut, ExitCode: exitCode}
	if exitCode != 0 {
		return result, diag.NewBuildError(diag.KindExecutionFailed,
			"build script exited with status "+itoa(exitCode), cfg.WorkDir, exitCode)
	}
	return result, nil
}

// launcherFor returns the interpreter actually exec'd as argv[0]: the
// shell that performs activation for interpreters that delegate to it,
// or interp itself otherwise.
func launcherFor(interp Interpreter, goos string) Interpreter {
	if !needsHostShellActivation(interp) {
		return interp
	}
	if goos == "win" {
		return InterpreterCmd
	}
	return InterpreterBash
}

func invocationLookup(interp Interpreter, goos string) (string, bool) {
	argv := invocation(interp, goos)
	if len(argv) == 0 {
		return "", false
	}
	if _, err := defaultLookPath(argv[0]); err != nil {
		return "", false
	}
	return argv[0], true
}

func userScriptSuffix(interp Interpreter) string {
	switch interp {
	case InterpreterPython:
		return ".py"
	case InterpreterPerl:
		return ".pl"
	case InterpreterRuby:
		return ".rb"
	case InterpreterR:
		return ".R"
	case InterpreterNode:
		return ".js"
	default:
		return ".txt"
	}
}

func hostGOOS() string {
	switch runtime.GOOS {
	case "windows":
		return "win"
	case "darwin":
		return "osx"
	default:
		return "linux"
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// mask replaces every occurrence of each secret with a fixed-width
// mask before output leaves the process (spec §4.5).
func mask(s string, secrets []string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, "********")
	}
	return s
}

// lineNormalizer is an io.Writer that canonicalizes "\r\n" and lone
// "\r" line endings to "\n" as bytes arrive, correctly across reads
// that split a "\r\n" pair at the buffer boundary (spec §4.5 /
// property 9: line endings are normalized regardless of the
// interpreter's native convention).
type lineNormalizer struct {
	buf      bytes.Buffer
	pendCR   bool
}

func (w *lineNormalizer) Write(p []byte) (int, error) {
	n := len(p)
	for _, c := range p {
		if w.pendCR {
			w.pendCR = false
			if c == '\n' {
				w.buf.WriteByte('\n')
				continue
			}
			w.buf.WriteByte('\n')
		}
		if c == '\r' {
			w.pendCR = true
			continue
		}
		w.buf.WriteByte(c)
	}
	return n, nil
}

func (w *lineNormalizer) String() string {
	if w.pendCR {
		w.buf.WriteByte('\n')
		w.pendCR = false
	}
	return w.buf.String()
}

// Package sandbox wraps a build script's subprocess in an external
// confinement tool where one is available, given lists of read-only
// and read-write paths and a network toggle (spec §4.5 "Sandbox
// (optional, where the OS supports it)"). See linuxConfiner for which
// of these settings take effect.
package sandbox

import (
	"context"
	"os/exec"
	"runtime"
)

// Config is the allowlist a Confiner applies to a spawned process.
type Config struct {
	ReadPaths      []string
	ReadWritePaths []string
	AllowNetwork   bool
}

// Confiner prepares an *exec.Cmd for confinement before it is
// started. Implementations are platform-specific; Apply mutates cmd
// in place (e.g. setting SysProcAttr, wrapping Path/Args with an
// external confinement tool) and must be safe to call even when the
// underlying OS mechanism is unavailable, in which case it logs
// nothing and returns nil — confinement degrades to "best effort",
// per spec §4.5's "where the OS supports it".
type Confiner interface {
	Apply(ctx context.Context, cmd *exec.Cmd, cfg Config) error
}

// New returns the Confiner appropriate for the current platform, or
// noopConfiner if sandboxing is not implemented for it. On every OS
// other than Linux the returned Confiner is a no-op: neither the path
// lists nor the network toggle is applied there.
func New() Confiner {
	switch runtime.GOOS {
	case "linux":
		return linuxConfiner{}
	default:
		return noopConfiner{}
	}
}

type noopConfiner struct{}

func (noopConfiner) Apply(context.Context, *exec.Cmd, Config) error { return nil }

// linuxConfiner runs the command under an external `bwrap`
// (bubblewrap) binary when present on PATH; it degrades to noop when
// bwrap is absent rather than failing the build outright (spec §4.5:
// the sandbox is always "optional, where the OS supports it"). The
// whole host root is bound read-write (--dev-bind / /), so paths
// outside cfg's lists stay readable and writable: ReadPaths entries
// are re-bound read-only and ReadWritePaths entries read-write, and
// neither list narrows what else the script can reach. The command
// also gets a fresh /proc, an empty /tmp (unless ReadPaths lists
// /tmp), and, when AllowNetwork is false, no network access.
type linuxConfiner struct{}

func (linuxConfiner) Apply(ctx context.Context, cmd *exec.Cmd, cfg Config) error {
	bwrap, err := exec.LookPath("bwrap")
	if err != nil {
		return nil
	}

	args := []string{"--dev-bind", "/", "/", "--proc", "/proc", "--tmpfs", "/tmp"}
	for _, p := range cfg.ReadPaths {
		args = append(args, "--ro-bind", p, p)
	}
	for _, p := range cfg.ReadWritePaths {
		args = append(args, "--bind", p, p)
	}
	if !cfg.AllowNetwork {
		args = append(args, "--unshare-net")
	}
	args = append(args, cmd.Path)
	args = append(args, cmd.Args[1:]...)

	cmd.Path = bwrap
	cmd.Args = append([]string{bwrap}, args...)
	return nil
}

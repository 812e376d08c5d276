package buildconfig

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/condaforge/condabuild/internal/platform"
	"github.com/condaforge/condabuild/internal/variantcfg"
)

// Platform identifies a conda subdir triple (e.g. "linux-64",
// "osx-arm64", "win-64") used for both the build and host platform of
// a Config.
type Platform string

// SandboxConfig is the allowlist handed to the script-execution
// sandbox (spec §4.5 "Sandbox (optional)").
type SandboxConfig struct {
	ReadPaths      []string
	ReadWritePaths []string
	AllowNetwork   bool
}

// Config is the immutable per-variant Build configuration record
// (spec §3 "Build configuration"): everything a single build of a
// single variant needs, computed once before script execution begins.
type Config struct {
	Name           string
	TargetPlatform Platform
	HostPlatform   Platform
	BuildPlatform  Platform

	Variant     map[variantcfg.NormalizedKey]variantcfg.Variable
	VariantHash variantcfg.Hash

	RecipeDir string
	WorkBase  string // bld/<name>_<timestamp>_<hash>
	WorkDir   string // .../work
	BuildEnv  string // .../build_env
	HostEnv   string // .../host_env — the encoded prefix
	OutputDir string

	Channels        []string
	ChannelPriority string // "strict" or "flexible"
	SolveStrategy   string

	Timestamp int64 // unix seconds; forced to a fixed value for reproducible archives when set

	StoreRecipe   bool
	ZstdLevel     int
	ArchiveFormat ArchiveFormat

	Sandbox SandboxConfig
}

// ArchiveFormat selects the packaging format (spec §4.9).
type ArchiveFormat int

const (
	FormatConda ArchiveFormat = iota
	FormatTarBz2
)

// New builds a Config for one variant assignment, allocating the
// bld/<name>_<timestamp>_<hash> work tree under outputDir (spec
// §4.4). timestamp is supplied by the caller rather than read from
// the clock, keeping Config construction deterministic and testable.
func New(name string, targetPlatform Platform, assignment map[variantcfg.NormalizedKey]variantcfg.Variable, recipeDir, outputDir string, timestamp int64) *Config {
	hash := variantcfg.ComputeHash(variantcfg.Assignment(assignment))
	base := filepath.Join(outputDir, "bld", uniqueWorkBaseName(outputDir, name, timestamp, hash))

	return &Config{
		Name:           name,
		TargetPlatform: targetPlatform,
		HostPlatform:   targetPlatform,
		BuildPlatform:  detectBuildPlatform(),
		Variant:        assignment,
		VariantHash:    hash,
		RecipeDir:      recipeDir,
		WorkBase:       base,
		WorkDir:        filepath.Join(base, "work"),
		BuildEnv:       filepath.Join(base, "build_env"),
		HostEnv:        filepath.Join(base, "host_env"),
		OutputDir:      outputDir,
		ChannelPriority: "strict",
		SolveStrategy:   "highest",
		Timestamp:       timestamp,
		ZstdLevel:       19,
		ArchiveFormat:   FormatConda,
		Sandbox: SandboxConfig{
			ReadPaths: append([]string{"/bin", "/usr/bin", "/usr/lib", "/lib", "/tmp"}, GetSandboxAllowlist()...),
		},
	}
}

// detectBuildPlatform reports the subdir of the machine actually
// running the build, independent of TargetPlatform/HostPlatform —
// the two only diverge when cross-compiling. Falls back to "linux-64"
// when detection fails (e.g. no /etc/os-release in a minimal
// container), the same fallback cmd/condabuild's flag default uses.
func detectBuildPlatform() Platform {
	target, err := platform.DetectTarget()
	if err != nil {
		return "linux-64"
	}
	if subdir := target.Subdir(); subdir != "-" {
		return Platform(subdir)
	}
	return "linux-64"
}

func workBaseName(name string, timestamp int64, hash variantcfg.Hash) string {
	return name + "_" + itoa(timestamp) + "_" + string(hash)
}

// uniqueWorkBaseName returns workBaseName, or — if outputDir/bld/<name>
// already exists (two outputs of a multi-output recipe sharing one
// variant, or a forced --timestamp reused across runs) — the same name
// with a short uuid suffix so the two builds don't clobber each
// other's work tree.
func uniqueWorkBaseName(outputDir, name string, timestamp int64, hash variantcfg.Hash) string {
	base := workBaseName(name, timestamp, hash)
	if _, err := os.Stat(filepath.Join(outputDir, "bld", base)); os.IsNotExist(err) {
		return base
	}
	return base + "_" + uuid.NewString()[:8]
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
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

// ScriptPath is the generated activation+user-script file written
// into WorkDir (spec §4.4 conda_build.sh, §4.5 steps 1-2).
func (c *Config) ScriptPath() string {
	return filepath.Join(c.WorkDir, "conda_build.sh")
}

// EncodedPrefix is the HostEnv path used as the search key during
// prefix detection and relocation (spec §4.4 contract, §4.7, §4.8).
func (c *Config) EncodedPrefix() string { return c.HostEnv }

// PaddedPrefix returns EncodedPrefix padded to length n with trailing
// '_' characters — used on platforms needing a fixed-length
// placeholder for in-place rewriting (spec §4.4).
func (c *Config) PaddedPrefix(n int) string {
	p := c.EncodedPrefix()
	if len(p) >= n {
		return p
	}
	pad := make([]byte, n-len(p))
	for i := range pad {
		pad[i] = '_'
	}
	return p + string(pad)
}

// BuildString computes the default build string: {variant-hash}_{build-number}
// (spec §4.9), used unless the recipe overrides build.string.
func BuildString(hash variantcfg.Hash, buildNumber int) string {
	return string(hash) + "_" + itoa(int64(buildNumber))
}

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/condaforge/condabuild/internal/archive"
	"github.com/condaforge/condabuild/internal/buildconfig"
	"github.com/condaforge/condabuild/internal/capture"
	"github.com/condaforge/condabuild/internal/diag"
	"github.com/condaforge/condabuild/internal/prefix"
	"github.com/condaforge/condabuild/internal/recipe"
	"github.com/condaforge/condabuild/internal/relocate"
	"github.com/condaforge/condabuild/internal/resolver"
	"github.com/condaforge/condabuild/internal/sandbox"
	"github.com/condaforge/condabuild/internal/scriptexec"
	"github.com/condaforge/condabuild/internal/sourcecache"
	"github.com/condaforge/condabuild/internal/variantcfg"
)

// buildOne runs one (output, variant) job through the full pipeline:
// stage-1 evaluation, environment resolution, source fetch, script
// execution, capture, prefix detection, relocation, and packaging
// (spec §2's diagram, in order).
func buildOne(ctx context.Context, job buildJob, opts Options) VariantResult {
	logger := opts.logger()
	hash := variantcfg.ComputeHash(job.assignment)
	res := VariantResult{OutputName: job.outputName, Assignment: job.assignment, Hash: hash}

	stage1, evalErrs := recipe.Eval(job.recipe, toEvalAssignment(job.assignment), opts.EvalOpts)
	res.Diagnostics = evalErrs
	if evalErrs.HasFatal() {
		res.Err = evalErrs.Fatal()
		return res
	}

	cfg := buildconfig.New(stage1.PackageName, opts.TargetPlatform, job.assignment, opts.RecipeDir, opts.OutputDir, opts.Timestamp)
	cfg.Channels = opts.Channels
	if opts.ChannelPriority != "" {
		cfg.ChannelPriority = opts.ChannelPriority
	}
	if opts.SolveStrategy != "" {
		cfg.SolveStrategy = opts.SolveStrategy
	}
	cfg.StoreRecipe = opts.StoreRecipe
	cfg.ArchiveFormat = opts.ArchiveFormat
	if opts.ZstdLevel != 0 {
		cfg.ZstdLevel = opts.ZstdLevel
	}

	unlock, err := lockOutputDir(cfg.OutputDir, hash)
	if err != nil {
		res.Err = err
		return res
	}
	defer unlock()

	for _, dir := range []string{cfg.WorkDir, cfg.BuildEnv, cfg.HostEnv} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			res.Err = err
			return res
		}
	}

	if err := materializeEnv(ctx, cfg.BuildEnv, stage1.BuildDeps, opts); err != nil {
		res.Err = err
		return res
	}
	if err := materializeEnv(ctx, cfg.HostEnv, stage1.HostDeps, opts); err != nil {
		res.Err = err
		return res
	}
	if err := ensureActivateScript(cfg.BuildEnv); err != nil {
		res.Err = err
		return res
	}
	if err := ensureActivateScript(cfg.HostEnv); err != nil {
		res.Err = err
		return res
	}

	if err := fetchSources(ctx, stage1.Source, cfg.WorkDir, opts); err != nil {
		res.Err = err
		return res
	}

	before, err := capture.SnapshotPrefix(cfg.HostEnv)
	if err != nil {
		res.Err = err
		return res
	}

	windows := opts.EvalOpts.OS == "win"
	body := strings.Join(stage1.Script, "\n")
	if _, err := scriptexec.Run(ctx, cfg, body, scriptexec.Options{
		GOOS:     opts.EvalOpts.OS,
		Secrets:  opts.Secrets,
		Confiner: opts.Confiner,
		Sandbox:  sandboxConfigFrom(cfg.Sandbox),
		Logger:   logger,
	}); err != nil {
		res.Err = err
		return res
	}

	after, err := capture.SnapshotPrefix(cfg.HostEnv)
	if err != nil {
		res.Err = err
		return res
	}

	capturedRel, err := capture.Diff(cfg.HostEnv, before, after, stage1.AlwaysInclude)
	if err != nil {
		res.Err = err
		return res
	}

	entries := make([]capture.Entry, 0, len(capturedRel))
	placeholders := map[string]*prefix.Placeholder{}
	for _, rel := range capturedRel {
		entry, err := capture.Classify(cfg.HostEnv, rel)
		if err != nil {
			res.Err = err
			return res
		}
		if err := capture.RewriteSymlinkTarget(cfg.HostEnv, &entry); err != nil {
			res.Err = err
			return res
		}

		ph, err := prefix.Scan(entry, cfg.EncodedPrefix(), windows, logger)
		if err != nil {
			res.Err = diag.NewPackagingError(diag.KindMixedPrefixPlaceholders, entry.RelPath, err.Error())
			return res
		}
		if ph != nil {
			placeholders[entry.RelPath] = ph
		}

		if entry.ContentType != capture.ContentSymlink {
			if err := relocateEntry(entry.SourcePath, cfg.EncodedPrefix()); err != nil {
				logger.Warn("relocation skipped", "path", entry.RelPath, "error", err)
			}
		}

		entries = append(entries, entry)
	}

	pkg, buildString, err := buildArchivePackage(cfg, stage1, entries, placeholders, opts)
	if err != nil {
		res.Err = err
		return res
	}

	outPath, err := writeArchive(cfg, stage1, buildString, pkg, opts)
	if err != nil {
		res.Err = diag.NewPackagingError(diag.KindArchiveWriteFailed, outPath, err.Error())
		return res
	}

	res.ArchivePath = outPath
	return res
}

// materializeEnv resolves matchSpecs into a pinned package set and
// unpacks each into envDir, sharing opts.Fetcher's bounded-concurrency
// download path with source fetches (spec §5 "fetches proceed in
// parallel with a configurable ceiling" applies to channel packages
// exactly as it does to recipe sources).
func materializeEnv(ctx context.Context, envDir string, matchSpecs []string, opts Options) error {
	if len(matchSpecs) == 0 || opts.Resolver == nil {
		return nil
	}
	packages, err := opts.Resolver.Resolve(ctx, resolver.Request{
		Platform:        string(opts.TargetPlatform),
		Subdir:          string(opts.TargetPlatform),
		MatchSpecs:      matchSpecs,
		Channels:        opts.Channels,
		ChannelPriority: opts.ChannelPriority,
	})
	if err != nil {
		return err
	}
	if opts.Fetcher == nil {
		return nil
	}
	for _, pkg := range packages {
		if pkg.URL == "" {
			continue
		}
		path, err := opts.Fetcher.Fetch(ctx, pkg.URL, pkg.SHA256)
		if err != nil {
			return err
		}
		if err := sourcecache.Extract(path, envDir); err != nil {
			return err
		}
	}
	return nil
}

// fetchSources checks out or downloads every stage-1 source item into
// workDir (spec §4.1 source fields, §11 archive extraction).
func fetchSources(ctx context.Context, sources []recipe.Stage1Source, workDir string, opts Options) error {
	for _, s := range sources {
		dest := workDir
		if s.Folder != "" {
			dest = filepath.Join(workDir, s.Folder)
		}

		switch {
		case s.GitURL != "":
			if err := sourcecache.GitCheckout(ctx, s.GitURL, s.GitRev, dest); err != nil {
				return err
			}
		case s.URL != "":
			if opts.Fetcher == nil {
				return fmt.Errorf("pipeline: source %q requires a configured fetcher", s.URL)
			}
			checksum := s.SHA256
			if checksum == "" {
				checksum = s.MD5
			}
			path, err := opts.Fetcher.Fetch(ctx, s.URL, checksum)
			if err != nil {
				return err
			}
			if err := verifySourceSignature(ctx, s, path, opts); err != nil {
				return err
			}
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			if err := sourcecache.Extract(path, dest); err != nil {
				return err
			}
		}
	}
	return nil
}

// verifySourceSignature fetches s.Signature and s.PGPKey (when set)
// through the same fetcher and cache as the payload itself, then
// verifies payloadPath against them. A source with no signature/pgp_key
// fields is left unverified beyond its checksum, same as today.
func verifySourceSignature(ctx context.Context, s recipe.Stage1Source, payloadPath string, opts Options) error {
	if s.Signature == "" || s.PGPKey == "" {
		return nil
	}
	if opts.Fetcher == nil {
		return fmt.Errorf("pipeline: source %q declares a signature but no fetcher is configured", s.URL)
	}
	sigPath, err := opts.Fetcher.Fetch(ctx, s.Signature, "")
	if err != nil {
		return err
	}
	keyPath, err := opts.Fetcher.Fetch(ctx, s.PGPKey, "")
	if err != nil {
		return err
	}
	sigData, err := os.ReadFile(sigPath)
	if err != nil {
		return err
	}
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return err
	}
	return sourcecache.VerifySignature(payloadPath, string(sigData), string(keyData))
}

// relocateEntry detects a captured binary's container format and
// applies the matching relocation; non-binary formats (including PE,
// detection-only per spec §4.8) are a no-op.
func relocateEntry(path, encodedPrefix string) error {
	format, err := relocate.Detect(path)
	if err != nil {
		return err
	}
	switch format {
	case relocate.FormatELF:
		return relocate.RelocateELF(path, encodedPrefix)
	case relocate.FormatMachO:
		return relocate.RelocateMachO(path, encodedPrefix)
	default:
		return nil
	}
}

// ensureActivateScript writes a no-op bin/activate into envDir when
// materializeEnv left none behind — composeBash's activation sequence
// (internal/scriptexec) sources build_env/bin/activate and
// host_env/bin/activate unconditionally, so an environment with no
// packages still needs a file there to source.
func ensureActivateScript(envDir string) error {
	path := filepath.Join(envDir, "bin", "activate")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Join(envDir, "bin"), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("#!/bin/bash\nreturn 0 2>/dev/null || exit 0\n"), 0o755)
}

func sandboxConfigFrom(b buildconfig.SandboxConfig) sandbox.Config {
	return sandbox.Config{
		ReadPaths:      b.ReadPaths,
		ReadWritePaths: b.ReadWritePaths,
		AllowNetwork:   b.AllowNetwork,
	}
}

func splitPlatform(subdir string) (platform, arch string) {
	idx := strings.LastIndex(subdir, "-")
	if idx < 0 {
		return subdir, ""
	}
	return subdir[:idx], subdir[idx+1:]
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

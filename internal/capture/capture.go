// Package capture computes the set of files a build produced by
// diffing the host prefix before and after script execution (spec
// §4.6).
package capture

import (
	"io/fs"
	"path/filepath"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
)

// ContentType classifies a captured file's bytes (spec §4.6).
type ContentType int

const (
	ContentBinary ContentType = iota
	ContentText
	ContentSymlink
)

// Entry describes one captured file (spec §3 "File entry").
type Entry struct {
	SourcePath  string // absolute path under host_env/
	RelPath     string // destination path inside the package
	ContentType ContentType
	LinkTarget  string // non-empty iff ContentType == ContentSymlink
}

// Snapshot is the set of paths (relative to the prefix root) known to
// exist at a point in time.
type Snapshot map[string]bool

// SnapshotInstalled builds S0 by reading every installed package's
// record file under conda-meta/ and unioning their files[] lists
// (spec §4.6 "via the set of installed packages' record files").
func SnapshotInstalled(records []PackageRecord) Snapshot {
	s := make(Snapshot)
	for _, r := range records {
		for _, f := range r.Files {
			s[filepath.ToSlash(f)] = true
		}
	}
	return s
}

// PackageRecord is the subset of a conda-meta/*.json record capture
// needs: the list of files that package installed.
type PackageRecord struct {
	Name  string
	Files []string
}

// SnapshotPrefix builds S1 (or S0, when no installed-package records
// are available) by walking every file currently under prefix.
func SnapshotPrefix(prefix string) (Snapshot, error) {
	s := make(Snapshot)
	err := filepath.WalkDir(prefix, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(prefix, path)
		if err != nil {
			return err
		}
		s[filepath.ToSlash(rel)] = true
		return nil
	})
	return s, err
}

// Diff computes the captured set S1 \ S0, force-including any path
// under prefix matching an always_include glob (spec §4.6).
func Diff(prefix string, s0, s1 Snapshot, alwaysInclude []string) ([]string, error) {
	var captured []string
	for rel := range s1 {
		if s0[rel] {
			if !matchesAny(rel, alwaysInclude) {
				continue
			}
		}
		captured = append(captured, rel)
	}
	return captured, nil
}

func matchesAny(rel string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return false
}

// Classify builds the full Entry for a captured relative path,
// reading up to the first 1024 bytes to determine content type (spec
// §4.6): NUL byte or invalid UTF-8 -> binary, valid UTF-8 -> text,
// symlink -> ContentSymlink with no byte inspection.
func Classify(prefix, rel string) (Entry, error) {
	abs := filepath.Join(prefix, rel)
	entry := Entry{SourcePath: abs, RelPath: filepath.ToSlash(rel)}

	info, err := lstat(abs)
	if err != nil {
		return entry, err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := readlink(abs)
		if err != nil {
			return entry, err
		}
		entry.ContentType = ContentSymlink
		entry.LinkTarget = target
		return entry, nil
	}

	sample, err := readSample(abs, 1024)
	if err != nil {
		return entry, err
	}
	if isBinarySample(sample) {
		entry.ContentType = ContentBinary
	} else {
		entry.ContentType = ContentText
	}
	return entry, nil
}

// RewriteSymlinkTarget replaces an absolute symlink target that lies
// inside prefix with a path relative to the symlink's own directory,
// at capture time rather than relocation time (spec §4.8 "Symlinks
// are skipped for relocation but their target ... is rewritten to a
// relative target at capture time").
func RewriteSymlinkTarget(prefix string, entry *Entry) error {
	if entry.ContentType != ContentSymlink || entry.LinkTarget == "" {
		return nil
	}
	if !filepath.IsAbs(entry.LinkTarget) {
		return nil
	}
	rel, err := filepath.Rel(prefix, entry.LinkTarget)
	if err != nil || rel == ".." || len(rel) >= 2 && rel[:2] == ".." {
		return nil
	}
	linkDir := filepath.Dir(entry.SourcePath)
	relFromLink, err := filepath.Rel(linkDir, entry.LinkTarget)
	if err != nil {
		return err
	}
	if err := replaceSymlink(entry.SourcePath, relFromLink); err != nil {
		return err
	}
	entry.LinkTarget = relFromLink
	return nil
}

func isBinarySample(sample []byte) bool {
	for _, b := range sample {
		if b == 0 {
			return true
		}
	}
	return !utf8.Valid(sample)
}

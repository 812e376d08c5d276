package capture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffExcludesPreexistingFiles(t *testing.T) {
	s0 := Snapshot{"lib/old.so": true}
	s1 := Snapshot{"lib/old.so": true, "bin/new": true}
	captured, err := Diff("", s0, s1, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"bin/new"}, captured)
}

func TestDiffAlwaysIncludeForcesPreexistingFile(t *testing.T) {
	s0 := Snapshot{"etc/config.json": true}
	s1 := Snapshot{"etc/config.json": true}
	captured, err := Diff("", s0, s1, []string{"etc/*.json"})
	require.NoError(t, err)
	assert.Equal(t, []string{"etc/config.json"}, captured)
}

func TestClassifyDetectsText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "readme.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	entry, err := Classify(dir, "readme.txt")
	require.NoError(t, err)
	assert.Equal(t, ContentText, entry.ContentType)
}

func TestClassifyDetectsBinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x7f, 0x45, 0x4c, 0x46, 0x00, 0x01}, 0o644))

	entry, err := Classify(dir, "blob.bin")
	require.NoError(t, err)
	assert.Equal(t, ContentBinary, entry.ContentType)
}

func TestClassifyDetectsSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.Symlink(target, link))

	entry, err := Classify(dir, "link.txt")
	require.NoError(t, err)
	assert.Equal(t, ContentSymlink, entry.ContentType)
	assert.Equal(t, target, entry.LinkTarget)
}

func TestSnapshotInstalledUnionsRecordFiles(t *testing.T) {
	records := []PackageRecord{
		{Name: "a", Files: []string{"bin/a"}},
		{Name: "b", Files: []string{"bin/b", "lib/b.so"}},
	}
	s := SnapshotInstalled(records)
	assert.True(t, s["bin/a"])
	assert.True(t, s["lib/b.so"])
	assert.False(t, s["bin/missing"])
}

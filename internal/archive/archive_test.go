package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/condaforge/condabuild/internal/capture"
	"github.com/condaforge/condabuild/internal/prefix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestBuildIndexJSONOmitsEmptyNoarch(t *testing.T) {
	data, err := BuildIndexJSON(IndexMeta{Name: "foo", Version: "1.0", BuildString: "h1234567_0", Subdir: "linux-64"})
	require.NoError(t, err)
	assert.Equal(t, "foo", gjson.GetBytes(data, "name").String())
	assert.False(t, gjson.GetBytes(data, "noarch").Exists())
}

func TestBuildIndexJSONIncludesNoarch(t *testing.T) {
	data, err := BuildIndexJSON(IndexMeta{Name: "foo", NoarchType: "python"})
	require.NoError(t, err)
	assert.Equal(t, "python", gjson.GetBytes(data, "noarch").String())
}

func TestBuildPathEntriesSortsAndHashes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("bbb"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("aaa"), 0o644))

	entries := []capture.Entry{
		{SourcePath: filepath.Join(dir, "b.txt"), RelPath: "b.txt", ContentType: capture.ContentText},
		{SourcePath: filepath.Join(dir, "a.txt"), RelPath: "a.txt", ContentType: capture.ContentText},
	}
	out, err := BuildPathEntries(entries, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a.txt", out[0].RelPath)
	assert.Equal(t, "b.txt", out[1].RelPath)
	assert.NotEmpty(t, out[0].SHA256)
	assert.Equal(t, int64(3), out[0].SizeBytes)
}

func TestBuildPathEntriesIncludesPlaceholder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	entries := []capture.Entry{{SourcePath: path, RelPath: "script", ContentType: capture.ContentText}}
	placeholders := map[string]*prefix.Placeholder{
		"script": {Mode: prefix.ModeText, Placeholder: "/opt/host_env"},
	}
	out, err := BuildPathEntries(entries, placeholders)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].Placeholder)
	assert.Equal(t, "/opt/host_env", out[0].Placeholder.Placeholder)
}

func TestBuildPathsJSONRendersSortedEntries(t *testing.T) {
	entries := []PathEntry{
		{RelPath: "a.txt", SHA256: "deadbeef", SizeBytes: 3, PathType: "hardlink"},
		{RelPath: "link", PathType: "softlink"},
	}
	data, err := BuildPathsJSON(entries)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", gjson.GetBytes(data, "paths.0.path").String())
	assert.Equal(t, "softlink", gjson.GetBytes(data, "paths.1.path_type").String())
}

func TestWriteCondaProducesValidZip(t *testing.T) {
	dir := t.TempDir()
	payloadSrc := filepath.Join(dir, "payload.txt")
	require.NoError(t, os.WriteFile(payloadSrc, []byte("hello"), 0o644))

	pkg := Package{
		IndexJSON: []byte(`{"name":"foo"}`),
		AboutJSON: []byte(`{}`),
		PathsJSON: []byte(`{"paths":[]}`),
		ZstdLevel: 3,
		PayloadFiles: []PayloadFile{
			{RelPath: "bin/payload.txt", SourcePath: payloadSrc, PathType: "hardlink"},
		},
	}

	out := filepath.Join(dir, "foo-1.0-h0_0.conda")
	require.NoError(t, WriteConda(out, "foo-1.0-h0_0", pkg))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

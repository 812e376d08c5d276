package prefix

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/condaforge/condabuild/internal/capture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanTextFindsPrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script")
	prefixStr := "/opt/cb/work/host_env"
	require.NoError(t, os.WriteFile(path, []byte("#!"+prefixStr+"/bin/python\n"), 0o644))

	entry := capture.Entry{SourcePath: path, RelPath: "bin/script", ContentType: capture.ContentText}
	p, err := Scan(entry, prefixStr, false, nil)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, ModeText, p.Mode)
	assert.Equal(t, prefixStr, p.Placeholder)
}

func TestScanTextNoMatchReturnsNil(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script")
	require.NoError(t, os.WriteFile(path, []byte("no prefix here\n"), 0o644))

	entry := capture.Entry{SourcePath: path, RelPath: "bin/script", ContentType: capture.ContentText}
	p, err := Scan(entry, "/opt/cb/work/host_env", false, nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestScanTextMixedFormsOnWindowsFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script")
	native := `C:\cb\host_env`
	slash := "C:/cb/host_env"
	content := native + "\n" + slash + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	entry := capture.Entry{SourcePath: path, RelPath: "bin/script", ContentType: capture.ContentText}
	_, err := Scan(entry, native, true, nil)
	require.Error(t, err)
	var mixed *MixedPrefixError
	assert.ErrorAs(t, err, &mixed)
}

func TestScanSymlinkReturnsNil(t *testing.T) {
	entry := capture.Entry{ContentType: capture.ContentSymlink}
	p, err := Scan(entry, "/opt/cb/work/host_env", false, nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestScanBinaryFindsPrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lib.so")
	prefixStr := "/opt/cb/work/host_env"
	data := append([]byte{0x7f, 0x45, 0x4c, 0x46}, []byte(prefixStr)...)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	entry := capture.Entry{SourcePath: path, RelPath: "lib/lib.so", ContentType: capture.ContentBinary}
	p, err := Scan(entry, prefixStr, false, nil)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, ModeBinary, p.Mode)
}

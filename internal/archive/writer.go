package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Package is everything the writer needs to produce one archive for
// one build (spec §4.9).
type Package struct {
	IndexJSON     []byte
	AboutJSON     []byte
	PathsJSON     []byte
	RunExports    []byte // nil if absent
	TestsYAML     []byte // nil if absent
	RecipeFiles   map[string][]byte // relative path under recipe/ -> contents, nil unless store_recipe
	PayloadFiles  []PayloadFile
	ZstdLevel     int
	Timestamp     int64 // unix seconds; forces a reproducible mtime when nonzero
}

// PayloadFile is one file written into the package payload (outside
// info/).
type PayloadFile struct {
	RelPath    string
	SourcePath string // empty for symlinks
	PathType   string // "hardlink" | "softlink" | "directory"
	LinkTarget string
	Mode       os.FileMode
}

// WriteConda writes pkg as a .conda archive: a zip containing
// info-<name>.tar.zst and pkg-<name>.tar.zst (spec §4.9 ".conda
// (preferred)").
func WriteConda(outPath, name string, pkg Package) error {
	infoTar, err := buildInfoTar(pkg)
	if err != nil {
		return err
	}
	payloadTar, err := buildPayloadTar(pkg)
	if err != nil {
		return err
	}

	infoZst, err := zstdCompress(infoTar, pkg.ZstdLevel)
	if err != nil {
		return err
	}
	payloadZst, err := zstdCompress(payloadTar, pkg.ZstdLevel)
	if err != nil {
		return err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	if err := writeZipEntry(zw, "metadata.json", []byte(`{"conda_pkg_format_version":2}`)); err != nil {
		return err
	}
	if err := writeZipEntry(zw, "info-"+name+".tar.zst", infoZst); err != nil {
		return err
	}
	if err := writeZipEntry(zw, "pkg-"+name+".tar.zst", payloadZst); err != nil {
		return err
	}
	return zw.Close()
}

// WriteTarBz2 writes pkg as a legacy single bzip2-compressed tar
// containing both info/ and the payload, via an external bzip2
// subprocess — the Go standard library only implements bzip2
// decompression (spec §4.9 "tar.bz2 (legacy)").
func WriteTarBz2(outPath string, pkg Package) error {
	combined, err := buildCombinedTar(pkg)
	if err != nil {
		return err
	}

	bzip2Path, err := exec.LookPath("bzip2")
	if err != nil {
		return fmt.Errorf("archive: bzip2 not found: %w", err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	cmd := exec.Command(bzip2Path, "-c")
	cmd.Stdin = bytes.NewReader(combined)
	cmd.Stdout = out
	return cmd.Run()
}

func zstdCompress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstdLevel(level)))
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func zstdLevel(n int) zstd.EncoderLevel {
	switch {
	case n <= 1:
		return zstd.SpeedFastest
	case n <= 9:
		return zstd.SpeedDefault
	case n <= 19:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

func buildInfoTar(pkg Package) ([]byte, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	mtime := pkgMtime(pkg.Timestamp)

	files := map[string][]byte{
		"info/index.json": pkg.IndexJSON,
		"info/about.json": pkg.AboutJSON,
		"info/paths.json": pkg.PathsJSON,
	}
	if pkg.RunExports != nil {
		files["info/run_exports.json"] = pkg.RunExports
	}
	if pkg.TestsYAML != nil {
		files["info/tests/tests.yaml"] = pkg.TestsYAML
	}
	for rel, data := range pkg.RecipeFiles {
		files[filepath.ToSlash(filepath.Join("info/recipe", rel))] = data
	}

	for _, name := range sortedKeys(files) {
		if err := writeTarEntry(tw, name, files[name], mtime); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildPayloadTar(pkg Package) ([]byte, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	mtime := pkgMtime(pkg.Timestamp)

	for _, pf := range pkg.PayloadFiles {
		if err := writePayloadEntry(tw, pf, mtime); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildCombinedTar(pkg Package) ([]byte, error) {
	infoTar, err := buildInfoTar(pkg)
	if err != nil {
		return nil, err
	}
	payloadTar, err := buildPayloadTar(pkg)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := appendTar(tw, infoTar); err != nil {
		return nil, err
	}
	if err := appendTar(tw, payloadTar); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func appendTar(dst *tar.Writer, src []byte) error {
	tr := tar.NewReader(bytes.NewReader(src))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := dst.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := io.Copy(dst, tr); err != nil {
			return err
		}
	}
}

func writeTarEntry(tw *tar.Writer, name string, data []byte, mtime time.Time) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: mtime,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

func writePayloadEntry(tw *tar.Writer, pf PayloadFile, mtime time.Time) error {
	switch pf.PathType {
	case "softlink":
		hdr := &tar.Header{
			Typeflag: tar.TypeSymlink,
			Name:     pf.RelPath,
			Linkname: pf.LinkTarget,
			Mode:     0o777,
			ModTime:  mtime,
		}
		return tw.WriteHeader(hdr)
	case "directory":
		hdr := &tar.Header{
			Typeflag: tar.TypeDir,
			Name:     pf.RelPath + "/",
			Mode:     0o755,
			ModTime:  mtime,
		}
		return tw.WriteHeader(hdr)
	default:
		data, err := os.ReadFile(pf.SourcePath)
		if err != nil {
			return err
		}
		mode := pf.Mode
		if mode == 0 {
			mode = 0o644
		}
		hdr := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     pf.RelPath,
			Mode:     int64(mode.Perm()),
			Size:     int64(len(data)),
			ModTime:  mtime,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		_, err = tw.Write(data)
		return err
	}
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func pkgMtime(timestamp int64) time.Time {
	if timestamp == 0 {
		return time.Unix(0, 0).UTC()
	}
	return time.Unix(timestamp, 0).UTC()
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

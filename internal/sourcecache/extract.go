package sourcecache

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sorairolake/lzip-go"
	"github.com/ulikunitz/xz"
)

// Extract unpacks archivePath into destDir, dispatching on
// archivePath's extension: tar.gz, tar.bz2, tar.xz (via
// github.com/ulikunitz/xz), tar.lz (via
// github.com/sorairolake/lzip-go), and zip (spec §11 "archive
// extraction ... feeding the build's work/ directory").
func Extract(archivePath, destDir string) error {
	lower := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return extractZip(archivePath, destDir)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return extractTar(archivePath, destDir, gzipReader)
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return extractTar(archivePath, destDir, bzip2Reader)
	case strings.HasSuffix(lower, ".tar.xz"):
		return extractTar(archivePath, destDir, xzReader)
	case strings.HasSuffix(lower, ".tar.lz"):
		return extractTar(archivePath, destDir, lzReader)
	case strings.HasSuffix(lower, ".tar"):
		return extractTar(archivePath, destDir, plainReader)
	default:
		return fmt.Errorf("sourcecache: unrecognized archive format: %s", archivePath)
	}
}

type readerOpener func(io.Reader) (io.Reader, error)

func gzipReader(r io.Reader) (io.Reader, error)  { return gzip.NewReader(r) }
func bzip2Reader(r io.Reader) (io.Reader, error) { return bzip2.NewReader(r), nil }
func xzReader(r io.Reader) (io.Reader, error)    { return xz.NewReader(r) }
func plainReader(r io.Reader) (io.Reader, error) { return r, nil }
func lzReader(r io.Reader) (io.Reader, error)    { return lzip.NewReader(r) }

func extractTar(archivePath, destDir string, open readerOpener) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := open(f)
	if err != nil {
		return err
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}

func extractZip(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, zf := range zr.File {
		target, err := safeJoin(destDir, zf.Name)
		if err != nil {
			return err
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := zf.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, zf.Mode())
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		out.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// safeJoin joins destDir and name, rejecting archive entries that
// would escape destDir via ".." path traversal.
func safeJoin(destDir, name string) (string, error) {
	target := filepath.Join(destDir, name)
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) && target != filepath.Clean(destDir) {
		return "", fmt.Errorf("sourcecache: archive entry escapes destination: %s", name)
	}
	return target, nil
}

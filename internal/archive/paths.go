package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sort"

	"github.com/condaforge/condabuild/internal/capture"
	"github.com/condaforge/condabuild/internal/prefix"
	"github.com/tidwall/sjson"
)

// PathEntry is one row of info/paths.json (spec §3 "File entry", §4.9
// paths.json).
type PathEntry struct {
	RelPath     string
	SHA256      string
	SizeBytes   int64
	PathType    string // "hardlink", "softlink", "directory"
	Placeholder *prefix.Placeholder
}

// BuildPathEntries hashes and sizes every captured file and sorts the
// result by relative path, making the manifest deterministic (spec
// §4.9 invariant "File paths in paths.json are sorted").
func BuildPathEntries(entries []capture.Entry, placeholders map[string]*prefix.Placeholder) ([]PathEntry, error) {
	out := make([]PathEntry, 0, len(entries))
	for _, e := range entries {
		pe := PathEntry{RelPath: e.RelPath, Placeholder: placeholders[e.RelPath]}
		if e.ContentType == capture.ContentSymlink {
			pe.PathType = "softlink"
			out = append(out, pe)
			continue
		}
		pe.PathType = "hardlink"

		sum, size, err := hashFile(e.SourcePath)
		if err != nil {
			return nil, err
		}
		pe.SHA256 = sum
		pe.SizeBytes = size
		out = append(out, pe)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out, nil
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// BuildPathsJSON serializes entries into the info/paths.json document
// (spec §4.9).
func BuildPathsJSON(entries []PathEntry) ([]byte, error) {
	json := `{"paths":[],"paths_version":1}`
	for i, e := range entries {
		base := "paths." + itoa(i)
		var err error
		set := func(suffix string, value any) {
			if err != nil {
				return
			}
			json, err = sjson.Set(json, base+suffix, value)
		}
		set(".path", e.RelPath)
		set(".path_type", e.PathType)
		if e.SHA256 != "" {
			set(".sha256", e.SHA256)
			set(".size_in_bytes", e.SizeBytes)
		}
		if e.Placeholder != nil {
			set(".file_mode", string(e.Placeholder.Mode))
			set(".prefix_placeholder", e.Placeholder.Placeholder)
		}
		if err != nil {
			return nil, err
		}
	}
	return []byte(json), nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

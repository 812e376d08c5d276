// Package prefix scans captured files for the encoded build-prefix
// string, producing the placeholder records written into a package's
// paths.json manifest (spec §4.7).
package prefix

import (
	"bytes"
	"fmt"
	"os"

	"github.com/condaforge/condabuild/internal/capture"
	"github.com/condaforge/condabuild/internal/log"
)

// Mode identifies whether a placeholder was found in a text or binary
// file (spec §3 "Prefix placeholder record").
type Mode string

const (
	ModeText   Mode = "text"
	ModeBinary Mode = "binary"
)

// Placeholder is the record written into paths.json for a file whose
// contents embed the encoded build prefix.
type Placeholder struct {
	Mode        Mode
	Placeholder string
}

// MixedPrefixError is returned when a text file contains both the
// native-slash and forward-slash forms of the prefix on Windows (spec
// §4.7 "If both forms appear, fail").
type MixedPrefixError struct {
	Path string
}

func (e *MixedPrefixError) Error() string {
	return fmt.Sprintf("mixed prefix placeholders in %s", e.Path)
}

// Scan searches entry's file for the encoded prefix, returning nil if
// none is found. entry.ContentType selects text vs. binary handling;
// symlinks are never scanned (spec §4.7).
func Scan(entry capture.Entry, encodedPrefix string, windows bool, logger log.Logger) (*Placeholder, error) {
	switch entry.ContentType {
	case capture.ContentSymlink:
		return nil, nil
	case capture.ContentText:
		return scanText(entry, encodedPrefix, windows)
	case capture.ContentBinary:
		if windows {
			return ScanPE(entry, encodedPrefix, logger)
		}
		return scanBinary(entry, encodedPrefix, logger)
	default:
		return nil, nil
	}
}

func scanText(entry capture.Entry, encodedPrefix string, windows bool) (*Placeholder, error) {
	data, err := os.ReadFile(entry.SourcePath)
	if err != nil {
		return nil, err
	}

	nativeForm := []byte(encodedPrefix)
	hasNative := bytes.Contains(data, nativeForm)

	var hasSlash bool
	slashForm := toForwardSlash(encodedPrefix)
	if windows && slashForm != encodedPrefix {
		hasSlash = bytes.Contains(data, []byte(slashForm))
	}

	switch {
	case hasNative && hasSlash:
		return nil, &MixedPrefixError{Path: entry.RelPath}
	case hasNative:
		return &Placeholder{Mode: ModeText, Placeholder: encodedPrefix}, nil
	case hasSlash:
		return &Placeholder{Mode: ModeText, Placeholder: slashForm}, nil
	default:
		return nil, nil
	}
}

func scanBinary(entry capture.Entry, encodedPrefix string, logger log.Logger) (*Placeholder, error) {
	data, err := mmapFile(entry.SourcePath)
	if err != nil {
		if logger != nil {
			logger.Info("binary prefix scan skipped: unsupported on this platform", "path", entry.RelPath, "error", err)
		}
		return nil, nil
	}
	defer data.Close()

	if bytes.Contains(data.Bytes(), []byte(encodedPrefix)) {
		return &Placeholder{Mode: ModeBinary, Placeholder: encodedPrefix}, nil
	}
	return nil, nil
}

func toForwardSlash(p string) string {
	out := make([]byte, len(p))
	for i := 0; i < len(p); i++ {
		if p[i] == '\\' {
			out[i] = '/'
		} else {
			out[i] = p[i]
		}
	}
	return string(out)
}

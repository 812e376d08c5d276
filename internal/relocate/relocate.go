// Package relocate rewrites absolute library search paths embedded
// in produced binaries so packages remain relocatable (spec §4.8).
package relocate

import (
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Format identifies a binary's container format.
type Format int

const (
	FormatUnknown Format = iota
	FormatELF
	FormatMachO
	FormatPE
)

// Detect sniffs path's format from its magic bytes without fully
// parsing it.
func Detect(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	var magic [4]byte
	if _, err := f.Read(magic[:]); err != nil {
		return FormatUnknown, nil
	}

	switch {
	case string(magic[:4]) == "\x7fELF":
		return FormatELF, nil
	case magic[0] == 0xfe && magic[1] == 0xed && magic[2] == 0xfa,
		magic[0] == 0xcf && magic[1] == 0xfa && magic[2] == 0xed,
		magic[0] == 0xca && magic[1] == 0xfe && magic[2] == 0xba:
		return FormatMachO, nil
	case magic[0] == 'M' && magic[1] == 'Z':
		return FormatPE, nil
	default:
		return FormatUnknown, nil
	}
}

// ELFRPaths returns the binary's DT_RPATH/DT_RUNPATH entries that
// start with encodedPrefix (spec §4.8 ELF).
func ELFRPaths(path, encodedPrefix string) ([]string, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rpaths []string
	for _, tag := range []elf.DynTag{elf.DT_RPATH, elf.DT_RUNPATH} {
		vals, err := f.DynString(tag)
		if err != nil {
			continue
		}
		for _, v := range vals {
			for _, entry := range strings.Split(v, ":") {
				if strings.HasPrefix(entry, encodedPrefix) {
					rpaths = append(rpaths, entry)
				}
			}
		}
	}
	return dedupe(rpaths), nil
}

// RelocateELF rewrites every DT_RPATH/DT_RUNPATH entry under
// encodedPrefix to $ORIGIN/<relative>, applied via an external
// patchelf invocation (spec §4.8 "Apply using an external
// patchelf-equivalent tool").
func RelocateELF(path, encodedPrefix string) error {
	rpaths, err := ELFRPaths(path, encodedPrefix)
	if err != nil {
		return err
	}
	if len(rpaths) == 0 {
		return nil
	}

	binDir := filepath.Dir(path)
	var rewritten []string
	for _, rp := range rpaths {
		rel, err := filepath.Rel(binDir, rp)
		if err != nil {
			return err
		}
		rewritten = append(rewritten, "$ORIGIN/"+filepath.ToSlash(rel))
	}

	patchelf, err := exec.LookPath("patchelf")
	if err != nil {
		return fmt.Errorf("relocate: patchelf not found: %w", err)
	}
	newRpath := strings.Join(dedupe(rewritten), ":")
	cmd := exec.Command(patchelf, "--set-rpath", newRpath, path)
	return cmd.Run()
}

// MachOAbsolutePaths returns path's LC_RPATH entries, plus the
// LC_LOAD_DYLIB/LC_ID_DYLIB paths, that are absolute and lie inside
// encodedPrefix (spec §4.8 Mach-O).
func MachOAbsolutePaths(path, encodedPrefix string) (rpaths []string, loadDylibs []string, idDylib string, err error) {
	f, err := macho.Open(path)
	if err != nil {
		return nil, nil, "", err
	}
	defer f.Close()

	for _, l := range f.Loads {
		switch v := l.(type) {
		case *macho.Rpath:
			if strings.HasPrefix(v.Path, encodedPrefix) {
				rpaths = append(rpaths, v.Path)
			}
		case *macho.Dylib:
			if strings.HasPrefix(v.Name, encodedPrefix) {
				loadDylibs = append(loadDylibs, v.Name)
			}
		}
	}
	if f.Dylib != nil && strings.HasPrefix(f.Dylib.Name, encodedPrefix) {
		idDylib = f.Dylib.Name
	}
	return rpaths, loadDylibs, idDylib, nil
}

// RelocateMachO rewrites LC_RPATH entries to @loader_path/<relative>,
// LC_LOAD_DYLIB entries to @rpath/<relative-to-prefix>, and a set
// LC_ID_DYLIB similarly, applied via an external install_name_tool
// invocation (spec §4.8 Mach-O).
func RelocateMachO(path, encodedPrefix string) error {
	rpaths, loadDylibs, idDylib, err := MachOAbsolutePaths(path, encodedPrefix)
	if err != nil {
		return err
	}
	if len(rpaths) == 0 && len(loadDylibs) == 0 && idDylib == "" {
		return nil
	}

	tool, err := exec.LookPath("install_name_tool")
	if err != nil {
		return fmt.Errorf("relocate: install_name_tool not found: %w", err)
	}

	binDir := filepath.Dir(path)
	var args []string
	for _, rp := range rpaths {
		rel, err := filepath.Rel(binDir, rp)
		if err != nil {
			return err
		}
		args = append(args, "-rpath", rp, "@loader_path/"+filepath.ToSlash(rel))
	}
	for _, d := range loadDylibs {
		rel, err := filepath.Rel(encodedPrefix, d)
		if err != nil {
			return err
		}
		args = append(args, "-change", d, "@rpath/"+filepath.ToSlash(rel))
	}
	if idDylib != "" {
		rel, err := filepath.Rel(encodedPrefix, idDylib)
		if err != nil {
			return err
		}
		args = append(args, "-id", "@rpath/"+filepath.ToSlash(rel))
	}
	args = append(args, path)

	return exec.Command(tool, args...).Run()
}

// PEImports lists path's import-directory DLL names, for detection
// and listing only — PE has no rpath mechanism to rewrite (spec §4.8
// "PE (Windows): no rpath mechanism; detection and listing only").
func PEImports(path string) ([]string, error) {
	f, err := pe.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return f.ImportedLibraries()
}

func dedupe(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := ss[:0]
	for _, s := range ss {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

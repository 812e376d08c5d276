package prefix

import (
	"github.com/condaforge/condabuild/internal/capture"
	"github.com/condaforge/condabuild/internal/log"
)

// ScanPE is the binary prefix scan used for entries built for the
// Windows target platform (spec §9 Open Question "whether PE binaries
// need prefix placeholder scanning like ELF/Mach-O"). Decided against:
// Windows build prefixes are short, DLL search paths are resolved by
// name rather than embedded absolute path, and relocate.PEImports
// already surfaces the import table conda-build's own Windows
// relocation path relies on. Unlike scanBinary's unsupported-platform
// fallback this is a permanent decision for every OS, not a
// per-platform capability gap, so it gets its own named entry point
// rather than silently falling through scanBinary.
//
// TODO: revisit if a recipe is found shipping a PE binary with the
// build prefix embedded outside the import table (e.g. in a resource
// section written by a non-standard linker).
func ScanPE(entry capture.Entry, encodedPrefix string, logger log.Logger) (*Placeholder, error) {
	if logger != nil {
		logger.Info("PE binary prefix scan skipped by design", "path", entry.RelPath)
	}
	return nil, nil
}

package diag

// ParseError is returned by the stage-0 parser (§4.1).
type ParseError struct{ *Diagnostic }

// NewParseError constructs a ParseError of the given kind.
func NewParseError(kind Kind, span Span, message string, suggestion string) *ParseError {
	return &ParseError{&Diagnostic{Kind: kind, Span: span, Message: message, Suggestion: suggestion}}
}

// EvalError is returned by stage-1 evaluation (§4.3).
type EvalError struct{ *Diagnostic }

func NewEvalError(kind Kind, span Span, message string) *EvalError {
	return &EvalError{&Diagnostic{Kind: kind, Span: span, Message: message}}
}

// VariantError is returned by variant expansion (§4.2).
type VariantError struct{ *Diagnostic }

func NewVariantError(kind Kind, message string) *VariantError {
	return &VariantError{&Diagnostic{Kind: kind, Message: message}}
}

// SourceError is returned by the source cache (§6, §7).
type SourceError struct {
	*Diagnostic
	Expected string // for checksum mismatches
	Actual   string
}

func NewSourceError(kind Kind, message string) *SourceError {
	return &SourceError{Diagnostic: &Diagnostic{Kind: kind, Message: message}}
}

// BuildError is returned by the script executor (§4.5, §7).
type BuildError struct {
	*Diagnostic
	ExitCode int
	WorkDir  string
}

func NewBuildError(kind Kind, message, workDir string, exitCode int) *BuildError {
	return &BuildError{
		Diagnostic: &Diagnostic{Kind: kind, Message: message},
		ExitCode:   exitCode,
		WorkDir:    workDir,
	}
}

// PackagingError is returned by the archive writer (§4.9, §7).
type PackagingError struct {
	*Diagnostic
	Path string
}

func NewPackagingError(kind Kind, path, message string) *PackagingError {
	return &PackagingError{Diagnostic: &Diagnostic{Kind: kind, Message: message}, Path: path}
}

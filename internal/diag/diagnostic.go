package diag

import "fmt"

// Kind identifies the category of a diagnostic. The parser, variant
// expander, stage-1 evaluator, source cache, build executor, and
// packager each contribute their own kinds from the taxonomy in
// spec §7.
type Kind string

// Parser error kinds (§4.1).
const (
	KindExpectedMapping  Kind = "expected_mapping"
	KindExpectedSequence Kind = "expected_sequence"
	KindExpectedScalar   Kind = "expected_scalar"
	KindMissingField     Kind = "missing_field"
	KindInvalidField     Kind = "invalid_field"
	KindDuplicateKey     Kind = "duplicate_key"
	KindInvalidValue     Kind = "invalid_value"
	KindJinjaError       Kind = "jinja_error"
	KindGlobParsing      Kind = "glob_parsing"
	KindRegexParsing     Kind = "regex_parsing"
)

// Variant expansion error kinds (§4.2, §7).
const (
	KindMissingZipMember     Kind = "missing_zip_member"
	KindInvalidZipKeyLength  Kind = "invalid_zip_key_length"
	KindMultiOutputCycle     Kind = "multi_output_cycle"
)

// Stage-1 evaluation error kinds (§4.3, §7).
const (
	KindUndefinedVariable Kind = "undefined_variable"
	KindTypeMismatch      Kind = "type_mismatch"
	KindInvalidMatchSpec  Kind = "invalid_match_spec"
	KindInvalidVersion    Kind = "invalid_version"
	KindInvalidLicense    Kind = "invalid_license"
)

// Source cache error kinds (§7).
const (
	KindChecksumMismatch Kind = "checksum_mismatch"
	KindDownloadFailed   Kind = "download_failed"
	KindGitCheckoutFailed Kind = "git_checkout_failed"
	KindSignatureInvalid Kind = "signature_invalid"
)

// Build execution error kinds (§7).
const (
	KindInterpreterNotFound Kind = "interpreter_not_found"
	KindExecutionFailed     Kind = "execution_failed"
	KindSandboxViolation    Kind = "sandbox_violation"
)

// Packaging error kinds (§7, §4.7).
const (
	KindMixedPrefixPlaceholders Kind = "mixed_prefix_placeholders"
	KindMissingLicense          Kind = "missing_license"
	KindContentTypeUndetermined Kind = "content_type_undetermined"
	KindArchiveWriteFailed      Kind = "archive_write_failed"
)

// Diagnostic is a single error or warning produced anywhere in the
// pipeline, carrying enough context to render a source-annotated
// snippet plus an actionable suggestion.
type Diagnostic struct {
	Kind       Kind
	Span       Span   // zero Span means "no source location"
	Message    string
	Suggestion string // optional, e.g. "valid fields are: ..."
	Warning    bool   // true for non-fatal findings logged but not aborting (§7)
}

func (d *Diagnostic) Error() string {
	if d.Span.IsZero() {
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.Span, d.Kind, d.Message)
}

// List is an ordered collection of diagnostics, returned by the
// parser and evaluator instead of a single error so every problem in
// a document can be reported at once.
type List []*Diagnostic

func (l List) Error() string {
	if len(l) == 0 {
		return "no diagnostics"
	}
	if len(l) == 1 {
		return l[0].Error()
	}
	return fmt.Sprintf("%d diagnostics, first: %s", len(l), l[0].Error())
}

// HasFatal reports whether the list contains any non-warning entry.
func (l List) HasFatal() bool {
	for _, d := range l {
		if !d.Warning {
			return true
		}
	}
	return false
}

// Fatal returns only the non-warning diagnostics.
func (l List) Fatal() List {
	var out List
	for _, d := range l {
		if !d.Warning {
			out = append(out, d)
		}
	}
	return out
}

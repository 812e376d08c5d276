package recipe

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/condaforge/condabuild/internal/diag"
	"github.com/condaforge/condabuild/internal/matchspec"
)

// packageNamePattern is conda's package-name grammar: lowercase
// alphanumerics, '-', '_', '.', must start with an alphanumeric.
var packageNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)

// versionPattern is a permissive PEP440/conda version grammar used as
// a fallback for package versions semver.NewVersion can't parse
// (calendar versions with more than three dotted components are
// common and legal conda versions but outside semver's grammar).
var versionPattern = regexp.MustCompile(`^[0-9][A-Za-z0-9_.!+-]*$`)

// validPackageVersion prefers semver.NewVersion, the same
// comparison-capable parser requirement/run_constraints match-specs
// validate their version tokens with, falling back to the permissive
// grammar for conda versions semver doesn't model.
func validPackageVersion(v string) bool {
	if _, err := semver.NewVersion(v); err == nil {
		return true
	}
	return versionPattern.MatchString(v)
}

// normalizePackageName lowercases a name — conda's canonical form.
// Idempotent by construction: normalizePackageName is a pure
// lowercase map, so normalizePackageName(normalizePackageName(n)) ==
// normalizePackageName(n) for every n (spec §4.3 step 4 invariant).
func normalizePackageName(name string) string { return strings.ToLower(name) }

// validate checks a fully-evaluated Stage1Recipe against spec §4.3
// step 4: package name/version grammar, match-spec strings, and SPDX
// license expression. Failures are appended to e.errs rather than
// aborting, so a single Eval call surfaces every problem at once.
func validate(r *Stage1Recipe, e *evaluator) {
	if r.PackageName != "" {
		norm := normalizePackageName(r.PackageName)
		if norm != r.PackageName || !packageNamePattern.MatchString(norm) {
			e.fail(diag.KindInvalidValue, diag.Span{}, "package name %q does not normalize to a canonical form (expected %q)", r.PackageName, norm)
		}
	}
	if r.PackageVersion != "" && !validPackageVersion(r.PackageVersion) {
		e.fail(diag.KindInvalidVersion, diag.Span{}, "invalid version %q", r.PackageVersion)
	}

	validateSpecs(e, "requirements.build", r.BuildDeps)
	validateSpecs(e, "requirements.host", r.HostDeps)
	validateSpecs(e, "requirements.run", r.RunDeps)
	validateSpecs(e, "run_constraints", r.RunConstraints)

	if r.License != "" {
		if err := matchspec.ParseSPDX(r.License); err != nil {
			e.fail(diag.KindInvalidLicense, diag.Span{}, "about.license: %v", err)
		}
	}
}

func validateSpecs(e *evaluator, field string, specs []string) {
	for _, s := range specs {
		if _, err := matchspec.Parse(s); err != nil {
			e.fail(diag.KindInvalidMatchSpec, diag.Span{}, "%s: %v", field, err)
		}
	}
}

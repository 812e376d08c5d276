// Package matchspec validates conda match-spec strings — the
// dependency expression grammar used in requirements.build/host/run
// and run_constraints (spec §4.3 step 4 "match-specs (strict parse
// mode)").
package matchspec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// namePattern matches a conda package name: lowercase alphanumerics,
// '-', '_', '.'.
var namePattern = regexp.MustCompile(`^[a-z0-9_][a-z0-9_.-]*$`)

// constraintClausePattern splits one comma-separated version
// constraint clause into its optional operator and version token.
// Conda operators: ==, !=, <=, >=, <, >, =, ~=.
var constraintClausePattern = regexp.MustCompile(`^(==|!=|<=|>=|~=|<|>|=)?(.+)$`)

// looseVersionPattern accepts version tokens semver.NewVersion can't
// parse: glob wildcards (`1.2.*`) and conda's calendar-style versions
// with more than three dotted components (`2021.04.01.1`), both
// common in real recipes and both outside semver's three-component
// grammar.
var looseVersionPattern = regexp.MustCompile(`^[A-Za-z0-9_.*+!]+$`)

// validateVersionToken accepts tok if it parses as a semantic version
// (preferred: gives every match-spec a real, comparable version) or,
// failing that, as a loose conda version/glob token. Most conda
// versions are valid semver once padded (semver.NewVersion pads
// missing minor/patch); calendar versions and glob wildcards fall
// back to the permissive grammar.
func validateVersionToken(tok string) error {
	if _, err := semver.NewVersion(tok); err == nil {
		return nil
	}
	if !looseVersionPattern.MatchString(tok) {
		return fmt.Errorf("invalid version token %q", tok)
	}
	return nil
}

// MatchSpec is a validated, parsed dependency expression:
// `name[ version][ build]` or `name[version_constraints]`.
type MatchSpec struct {
	Name        string
	Constraints []string // e.g. [">=1.2", "<2.0"]
	Build       string   // build-string glob, optional
	Raw         string
}

// Parse validates raw as a strict-mode match-spec and returns its
// parsed form. Accepted forms:
//
//	name
//	name version
//	name version build
//	name ==version
//	name >=1.2,<2.0
//	name[version="1.2.*"]
func Parse(raw string) (*MatchSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("empty match-spec")
	}

	if idx := strings.IndexByte(s, '['); idx >= 0 {
		return parseBracketed(s, idx)
	}

	fields := strings.Fields(s)
	name := fields[0]
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid package name %q", name)
	}
	ms := &MatchSpec{Name: name, Raw: raw}
	if len(fields) >= 2 {
		for _, clause := range strings.Split(fields[1], ",") {
			clause = strings.TrimSpace(clause)
			if clause == "" {
				continue
			}
			m := constraintClausePattern.FindStringSubmatch(clause)
			if m == nil {
				return nil, fmt.Errorf("invalid version constraint %q in %q", clause, raw)
			}
			if err := validateVersionToken(m[2]); err != nil {
				return nil, fmt.Errorf("invalid version constraint %q in %q: %v", clause, raw, err)
			}
			ms.Constraints = append(ms.Constraints, clause)
		}
	}
	if len(fields) >= 3 {
		ms.Build = fields[2]
	}
	if len(fields) > 3 {
		return nil, fmt.Errorf("too many fields in match-spec %q", raw)
	}
	return ms, nil
}

// parseBracketed handles the `name[key=value, ...]` bracket form,
// recognizing version= and build= keys.
func parseBracketed(s string, bracketIdx int) (*MatchSpec, error) {
	name := strings.TrimSpace(s[:bracketIdx])
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("invalid package name %q", name)
	}
	if !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("unterminated bracket in match-spec %q", s)
	}
	inner := s[bracketIdx+1 : len(s)-1]
	ms := &MatchSpec{Name: name, Raw: s}
	for _, kv := range strings.Split(inner, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed bracket clause %q in %q", kv, s)
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		switch key {
		case "version":
			for _, clause := range strings.Split(val, ",") {
				clause = strings.TrimSpace(clause)
				if clause == "" {
					continue
				}
				m := constraintClausePattern.FindStringSubmatch(clause)
				if m == nil {
					return nil, fmt.Errorf("invalid version constraint %q in %q", clause, s)
				}
				if err := validateVersionToken(m[2]); err != nil {
					return nil, fmt.Errorf("invalid version constraint %q in %q: %v", clause, s, err)
				}
			}
			ms.Constraints = append(ms.Constraints, val)
		case "build":
			ms.Build = val
		default:
			return nil, fmt.Errorf("unknown match-spec key %q in %q", key, s)
		}
	}
	return ms, nil
}

func (m *MatchSpec) String() string { return m.Raw }

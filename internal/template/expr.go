package template

import (
	"fmt"
	"regexp"
	"strings"
)

// delimiterPattern finds `${{ ... }}` template spans within a larger
// string (a recipe scalar may mix literal text and one or more
// template spans, e.g. "v${{ version }}-${{ build_number }}").
var delimiterPattern = regexp.MustCompile(`\$\{\{(.*?)\}\}`)

// Expression is a parsed `${{ ... }}` template: it remembers the
// original text and the exact set of free variables it references,
// satisfying spec §3's invariant that a parsed Expression "reports
// the exact set of variables it depends on without re-parsing".
type Expression struct {
	text string
	segs []segment
	vars map[string]bool
}

type segment struct {
	literal string // non-template text, used verbatim when rendering
	expr    node   // nil for a pure-literal segment
}

// IsTemplate reports whether s contains a `${{ ... }}` span — the
// parser's criterion (§4.1) for treating a scalar as a template
// rather than a concrete value.
func IsTemplate(s string) bool {
	return strings.Contains(s, "${{") && strings.Contains(s, "}}")
}

// Parse parses every `${{ ... }}` span in text into an Expression.
// Pure literal text between/around spans is preserved for Render.
func Parse(text string) (*Expression, error) {
	e := &Expression{text: text, vars: map[string]bool{}}
	last := 0
	matches := delimiterPattern.FindAllStringSubmatchIndex(text, -1)
	for _, m := range matches {
		start, end := m[0], m[1]
		exprStart, exprEnd := m[2], m[3]
		if start > last {
			e.segs = append(e.segs, segment{literal: text[last:start]})
		}
		n, err := parseExpr(text[exprStart:exprEnd])
		if err != nil {
			return nil, fmt.Errorf("template expression %q: %w", text[exprStart:exprEnd], err)
		}
		found := map[string]bool{}
		collectIdents(n, false, found)
		for k := range found {
			e.vars[k] = true
		}
		e.segs = append(e.segs, segment{expr: n})
		last = end
	}
	if last < len(text) {
		e.segs = append(e.segs, segment{literal: text[last:]})
	}
	return e, nil
}

// Text returns the original unparsed template text.
func (e *Expression) Text() string { return e.text }

// UsedVariables returns the free variables e depends on, without
// re-parsing (spec §3 invariant).
func (e *Expression) UsedVariables() []string {
	out := make([]string, 0, len(e.vars))
	for k := range e.vars {
		out = append(out, k)
	}
	return out
}

// IsBoolean reports whether e is a single expression segment with no
// surrounding literal text — the form required for a conditional's
// `if:` field (§3's Conditional item).
func (e *Expression) IsBoolean() bool {
	return len(e.segs) == 1 && e.segs[0].expr != nil
}

// EvalBool evaluates e as a boolean condition. Returns an error if e
// is not a single bare expression segment.
func (e *Expression) EvalBool(ctx Context, reg *Registry) (bool, error) {
	if !e.IsBoolean() {
		return false, fmt.Errorf("condition must be a single expression, got mixed template text")
	}
	v, err := Eval(e.segs[0].expr, ctx, reg)
	if err != nil {
		return false, err
	}
	return v.AsBool(), nil
}

// Render evaluates every expression segment of e against ctx/reg and
// concatenates the results with the surrounding literal text,
// producing the rendered string that is then re-parsed into the
// target type by the same field converter used at parse time (§4.3
// step 3).
func (e *Expression) Render(ctx Context, reg *Registry) (string, error) {
	var sb strings.Builder
	for _, s := range e.segs {
		if s.expr == nil {
			sb.WriteString(s.literal)
			continue
		}
		v, err := Eval(s.expr, ctx, reg)
		if err != nil {
			return "", err
		}
		sb.WriteString(v.AsString())
	}
	return sb.String(), nil
}

// RenderValue evaluates e as a single bare expression and returns its
// Value directly, without stringifying — used when a template spans
// an entire field so the result can keep list/bool/int typing instead
// of being coerced to a string (e.g. a template that resolves to a
// whole dependency list).
func (e *Expression) RenderValue(ctx Context, reg *Registry) (Value, error) {
	if !e.IsBoolean() {
		s, err := e.Render(ctx, reg)
		if err != nil {
			return Undefined, err
		}
		return String(s), nil
	}
	return Eval(e.segs[0].expr, ctx, reg)
}

package recipe

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
	"github.com/goccy/go-yaml/token"

	"github.com/condaforge/condabuild/internal/diag"
	"github.com/condaforge/condabuild/internal/template"
)

// Parse parses a recipe document into a Stage0Recipe, preserving
// source spans for diagnostics (spec §4.1). filename labels the
// source for error messages; it need not exist on disk.
func Parse(src []byte, filename string) (*Stage0Recipe, diag.List) {
	p := &parseCtx{filename: filename, source: string(src)}

	file, err := parser.ParseBytes(src, parser.ParseComments)
	if err != nil {
		p.errs = append(p.errs, &diag.Diagnostic{
			Kind:    diag.KindExpectedMapping,
			Message: fmt.Sprintf("invalid YAML: %v", err),
		})
		return nil, p.errs
	}
	if len(file.Docs) == 0 || file.Docs[0].Body == nil {
		p.errs = append(p.errs, &diag.Diagnostic{Kind: diag.KindExpectedMapping, Message: "empty document"})
		return nil, p.errs
	}

	root, ok := p.asMapping(file.Docs[0].Body)
	if !ok {
		return nil, p.errs
	}
	rec := p.parseRoot(root)
	if p.errs.HasFatal() {
		return nil, p.errs
	}
	return rec, p.errs
}

type parseCtx struct {
	filename string
	source   string
	errs     diag.List
}

func (p *parseCtx) fail(kind diag.Kind, n ast.Node, format string, args ...any) {
	p.errs = append(p.errs, &diag.Diagnostic{
		Kind:    kind,
		Span:    p.span(n),
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *parseCtx) span(n ast.Node) diag.Span {
	if n == nil {
		return diag.Span{File: p.filename}
	}
	tok := n.GetToken()
	if tok == nil || tok.Position == nil {
		return diag.Span{File: p.filename}
	}
	start := tok.Position.Offset
	end := start + len(tok.Value)
	return diag.Span{
		File:  p.filename,
		Start: start,
		End:   end,
		Line:  tok.Position.Line,
		Col:   tok.Position.Column,
	}
}

// orderedMap is a mapping's entries in source order, with duplicate
// keys detected and reported with both span locations (spec §4.1).
type orderedMap struct {
	keys    []string
	entries map[string]*ast.MappingValueNode
}

func (p *parseCtx) asMapping(n ast.Node) (*orderedMap, bool) {
	n = unwrap(n)
	mn, ok := n.(*ast.MappingNode)
	if !ok {
		if mv, ok2 := n.(*ast.MappingValueNode); ok2 {
			mn = &ast.MappingNode{Values: []*ast.MappingValueNode{mv}}
		} else {
			p.fail(diag.KindExpectedMapping, n, "expected a mapping")
			return nil, false
		}
	}
	om := &orderedMap{entries: map[string]*ast.MappingValueNode{}}
	for _, v := range mn.Values {
		key := scalarText(v.Key)
		if prev, dup := om.entries[key]; dup {
			p.errs = append(p.errs, &diag.Diagnostic{
				Kind:    diag.KindDuplicateKey,
				Span:    p.span(v.Key),
				Message: fmt.Sprintf("duplicate key %q (first defined at %s)", key, p.span(prev.Key).String()),
			})
			continue
		}
		om.keys = append(om.keys, key)
		om.entries[key] = v
	}
	return om, true
}

func (p *parseCtx) asSequence(n ast.Node) ([]ast.Node, bool) {
	n = unwrap(n)
	sn, ok := n.(*ast.SequenceNode)
	if !ok {
		p.fail(diag.KindExpectedSequence, n, "expected a sequence")
		return nil, false
	}
	return sn.Values, true
}

func unwrap(n ast.Node) ast.Node {
	for {
		switch t := n.(type) {
		case *ast.DocumentNode:
			n = t.Body
		case *ast.AnchorNode:
			n = t.Value
		default:
			return n
		}
	}
}

func scalarText(n ast.Node) string {
	n = unwrap(n)
	if s, ok := n.(*ast.StringNode); ok {
		return s.Value
	}
	if n == nil {
		return ""
	}
	return n.String()
}

// isQuoted reports whether the scalar node n was written with an
// explicit YAML quote style, as opposed to a bare/plain scalar — the
// distinction spec §3's Variable rule and §4.1's Variant converter
// both key off (an unquoted "3.14" keeps version semantics; a quoted
// one is always a plain string).
func isQuoted(n ast.Node) bool {
	n = unwrap(n)
	tok := n.GetToken()
	if tok == nil {
		return false
	}
	switch tok.Type {
	case token.SingleQuoteType, token.DoubleQuoteType:
		return true
	default:
		return false
	}
}

func (om *orderedMap) get(key string) (ast.Node, bool) {
	v, ok := om.entries[key]
	if !ok {
		return nil, false
	}
	return v.Value, true
}

func (om *orderedMap) has(key string) bool {
	_, ok := om.entries[key]
	return ok
}

// parseScalarString reads a scalar node into a Value[string], routed
// through the template detector: a node whose text contains `${{ }}`
// becomes a Template value; otherwise it is Concrete.
func (p *parseCtx) parseScalarString(n ast.Node) Value[string] {
	span := p.span(n)
	text := scalarText(n)
	if template.IsTemplate(text) {
		expr, err := template.Parse(text)
		if err != nil {
			p.fail(diag.KindJinjaError, n, "%v", err)
			return ConcreteValue(text, span)
		}
		return TemplateValue[string](expr, span)
	}
	return ConcreteValue(text, span)
}

func (p *parseCtx) parseScalarInt(n ast.Node) Value[int] {
	span := p.span(n)
	text := scalarText(n)
	if template.IsTemplate(text) {
		expr, err := template.Parse(text)
		if err != nil {
			p.fail(diag.KindJinjaError, n, "%v", err)
			return ConcreteValue(0, span)
		}
		return TemplateValue[int](expr, span)
	}
	i, err := strconv.Atoi(text)
	if err != nil {
		p.fail(diag.KindInvalidValue, n, "expected integer, got %q", text)
	}
	return ConcreteValue(i, span)
}

// parseConditionalListString reads a sequence that may mix bare
// string scalars with `{if, then, else}` conditional mappings (spec
// §4.1 "Conditional list parsing").
func (p *parseCtx) parseConditionalListString(n ast.Node) ConditionalList[string] {
	if _, isSeq := unwrap(n).(*ast.SequenceNode); !isSeq {
		return ConditionalList[string]{{Value: ptr(p.parseScalarString(n))}}
	}
	items, ok := p.asSequence(n)
	if !ok {
		return nil
	}
	var out ConditionalList[string]
	for _, item := range items {
		if om, isMap := p.tryMapping(item); isMap && om.has("if") {
			out = append(out, ConditionalItem[string]{Condition: p.parseConditional(om, item)})
			continue
		}
		out = append(out, ConditionalItem[string]{Value: ptr(p.parseScalarString(item))})
	}
	return out
}

func (p *parseCtx) tryMapping(n ast.Node) (*orderedMap, bool) {
	u := unwrap(n)
	if _, ok := u.(*ast.MappingNode); ok {
		om, ok := p.asMapping(n)
		return om, ok
	}
	if _, ok := u.(*ast.MappingValueNode); ok {
		om, ok := p.asMapping(n)
		return om, ok
	}
	return nil, false
}

func (p *parseCtx) parseConditional(om *orderedMap, n ast.Node) *Conditional[string] {
	c := &Conditional[string]{Span: p.span(n)}
	ifNode, _ := om.get("if")
	ifText := scalarText(ifNode)
	expr, err := template.Parse("${{ " + ifText + " }}")
	if err != nil {
		p.fail(diag.KindJinjaError, ifNode, "%v", err)
	}
	c.If = expr
	if thenNode, ok := om.get("then"); ok {
		c.Then = p.parseValueOrList(thenNode)
	} else {
		p.fail(diag.KindMissingField, n, "conditional missing required field \"then\"")
	}
	if elseNode, ok := om.get("else"); ok {
		c.Else = p.parseValueOrList(elseNode)
	}
	for _, k := range om.keys {
		if k != "if" && k != "then" && k != "else" {
			p.fail(diag.KindInvalidField, om.entries[k].Key, "unknown field %q in conditional (expected if/then/else)", k)
		}
	}
	return c
}

func (p *parseCtx) parseValueOrList(n ast.Node) []Value[string] {
	if seq, ok := unwrap(n).(*ast.SequenceNode); ok {
		out := make([]Value[string], len(seq.Values))
		for i, v := range seq.Values {
			out[i] = p.parseScalarString(v)
		}
		return out
	}
	return []Value[string]{p.parseScalarString(n)}
}

func ptr[T any](v T) *T { return &v }

// parseRoot builds the Stage0Recipe from the document's root mapping,
// enforcing the multi-output exclusivity rule from spec §4.1.
func (p *parseCtx) parseRoot(root *orderedMap) *Stage0Recipe {
	rec := &Stage0Recipe{Extra: map[string]string{}}

	if n, ok := root.get("context"); ok {
		if om, isMap := p.tryMapping(n); isMap {
			for _, k := range om.keys {
				rec.Context = append(rec.Context, ContextEntry{
					Name:  k,
					Value: p.parseScalarString(om.entries[k].Value),
				})
			}
		}
	}

	hasOutputs := root.has("outputs")
	hasPackage := root.has("package")
	hasReqs := root.has("requirements")

	if hasOutputs && (hasPackage || hasReqs) {
		p.fail(diag.KindInvalidValue, root.entries["outputs"].Key,
			"a multi-output recipe (outputs[]) must not also declare a root-level package or requirements")
	}

	if hasOutputs {
		seq, _ := p.asSequence(root.entries["outputs"].Value)
		for _, o := range seq {
			om, ok := p.tryMapping(o)
			if !ok {
				continue
			}
			rec.Outputs = append(rec.Outputs, p.parseOutput(om))
		}
	} else if hasPackage {
		pkgOm, ok := p.tryMapping(root.entries["package"].Value)
		if ok {
			name, hasName := pkgOm.get("name")
			ver, hasVer := pkgOm.get("version")
			if !hasName {
				p.fail(diag.KindMissingField, root.entries["package"].Key, "package missing required field \"name\"")
			}
			if !hasVer {
				p.fail(diag.KindMissingField, root.entries["package"].Key, "package missing required field \"version\"")
			}
			rec.Package = &PackageSection{
				Name:    p.parseScalarString(name),
				Version: p.parseScalarString(ver),
			}
		}
	} else {
		p.fail(diag.KindMissingField, nil, "recipe must declare either \"package\" or \"outputs\"")
	}

	if n, ok := root.get("source"); ok {
		rec.Source = p.parseSourceList(n)
	}
	if n, ok := root.get("build"); ok {
		if om, isMap := p.tryMapping(n); isMap {
			rec.Build = p.parseBuild(om)
		}
	}
	if n, ok := root.get("requirements"); ok {
		if om, isMap := p.tryMapping(n); isMap {
			rec.Requirements = p.parseRequirements(om)
		}
	}
	if n, ok := root.get("tests"); ok {
		rec.Tests = p.parseTestList(n)
	}
	if n, ok := root.get("about"); ok {
		if om, isMap := p.tryMapping(n); isMap {
			rec.About = p.parseAbout(om)
		}
	}
	if n, ok := root.get("extra"); ok {
		if om, isMap := p.tryMapping(n); isMap {
			for _, k := range om.keys {
				rec.Extra[k] = scalarText(om.entries[k].Value)
			}
		}
	}

	known := map[string]bool{
		"context": true, "package": true, "outputs": true, "source": true,
		"build": true, "requirements": true, "tests": true, "about": true, "extra": true,
	}
	for _, k := range root.keys {
		if !known[k] {
			p.fail(diag.KindInvalidField, root.entries[k].Key,
				"unknown top-level field %q", k)
		}
	}

	return rec
}

func (p *parseCtx) parseOutput(om *orderedMap) OutputSection {
	o := OutputSection{}
	if n, ok := om.get("name"); ok {
		o.Name = p.parseScalarString(n)
	}
	if n, ok := om.get("version"); ok {
		o.Version = p.parseScalarString(n)
	}
	if n, ok := om.get("cache"); ok {
		o.Cache = scalarText(n) == "true"
	}
	if n, ok := om.get("cache_from"); ok {
		o.CacheFrom = scalarText(n)
	}
	if n, ok := om.get("build"); ok {
		if bom, isMap := p.tryMapping(n); isMap {
			o.Build = p.parseBuild(bom)
		}
	}
	if n, ok := om.get("requirements"); ok {
		if rom, isMap := p.tryMapping(n); isMap {
			o.Requirements = p.parseRequirements(rom)
		}
	}
	if n, ok := om.get("tests"); ok {
		o.Tests = p.parseTestList(n)
	}
	if n, ok := om.get("about"); ok {
		if aom, isMap := p.tryMapping(n); isMap {
			o.About = p.parseAbout(aom)
		}
	}
	return o
}

func (p *parseCtx) parseSourceList(n ast.Node) ConditionalList[SourceItem] {
	items, ok := p.asSequence(n)
	if !ok {
		return nil
	}
	var out ConditionalList[SourceItem]
	for _, item := range items {
		om, isMap := p.tryMapping(item)
		if !isMap {
			continue
		}
		if om.has("if") {
			out = append(out, ConditionalItem[SourceItem]{Condition: p.parseSourceConditional(om, item)})
			continue
		}
		src := p.parseSourceItem(om)
		out = append(out, ConditionalItem[SourceItem]{Value: ptr(ConcreteValue(src, p.span(item)))})
	}
	return out
}

func (p *parseCtx) parseSourceConditional(om *orderedMap, n ast.Node) *Conditional[SourceItem] {
	c := &Conditional[SourceItem]{Span: p.span(n)}
	ifNode, _ := om.get("if")
	expr, err := template.Parse("${{ " + scalarText(ifNode) + " }}")
	if err != nil {
		p.fail(diag.KindJinjaError, ifNode, "%v", err)
	}
	c.If = expr
	if thenNode, ok := om.get("then"); ok {
		if thenOm, isMap := p.tryMapping(thenNode); isMap {
			c.Then = []Value[SourceItem]{ConcreteValue(p.parseSourceItem(thenOm), p.span(thenNode))}
		}
	}
	if elseNode, ok := om.get("else"); ok {
		if elseOm, isMap := p.tryMapping(elseNode); isMap {
			c.Else = []Value[SourceItem]{ConcreteValue(p.parseSourceItem(elseOm), p.span(elseNode))}
		}
	}
	return c
}

func (p *parseCtx) parseSourceItem(om *orderedMap) SourceItem {
	var s SourceItem
	if n, ok := om.get("url"); ok {
		s.URL = p.parseScalarString(n)
	}
	if n, ok := om.get("git"); ok {
		s.GitURL = p.parseScalarString(n)
	}
	if n, ok := om.get("rev"); ok {
		s.GitRev = p.parseScalarString(n)
	}
	if n, ok := om.get("sha256"); ok {
		s.SHA256 = p.parseScalarString(n)
	}
	if n, ok := om.get("md5"); ok {
		s.MD5 = p.parseScalarString(n)
	}
	if n, ok := om.get("folder"); ok {
		s.Folder = p.parseScalarString(n)
	}
	if n, ok := om.get("signature"); ok {
		s.Signature = p.parseScalarString(n)
	}
	if n, ok := om.get("pgp_key"); ok {
		s.PGPKey = p.parseScalarString(n)
	}
	if n, ok := om.get("patches"); ok {
		if seq, isSeq := p.asSequence(n); isSeq {
			for _, pv := range seq {
				s.Patches = append(s.Patches, p.parseScalarString(pv))
			}
		}
	}
	if !om.has("url") && !om.has("git") {
		p.fail(diag.KindMissingField, nil, "source entry requires either \"url\" or \"git\"")
	}
	return s
}

func (p *parseCtx) parseBuild(om *orderedMap) BuildSection {
	var b BuildSection
	if n, ok := om.get("number"); ok {
		b.Number = p.parseScalarInt(n)
	} else {
		b.Number = ConcreteValue(0, diag.Span{})
	}
	if n, ok := om.get("string"); ok {
		b.String = p.parseScalarString(n)
	}
	if n, ok := om.get("script"); ok {
		b.Script = p.parseConditionalListString(n)
	}
	if n, ok := om.get("skip"); ok {
		b.Skip = p.parseSkip(n)
	}
	if n, ok := om.get("noarch"); ok {
		b.NoarchPython = scalarText(n) == "python"
	}
	if n, ok := om.get("always_include"); ok {
		b.AlwaysInclude = p.parseConditionalListString(n)
	}
	if n, ok := om.get("run_exports"); ok {
		if reOm, isMap := p.tryMapping(n); isMap {
			if sn, ok := reOm.get("strong"); ok {
				b.RunExports.Strong = p.parseConditionalListString(sn)
			}
			if wn, ok := reOm.get("weak"); ok {
				b.RunExports.Weak = p.parseConditionalListString(wn)
			}
			if sn, ok := reOm.get("strong_constrains"); ok {
				b.RunExports.StrongConstrains = p.parseConditionalListString(sn)
			}
			if wn, ok := reOm.get("weak_constrains"); ok {
				b.RunExports.WeakConstrains = p.parseConditionalListString(wn)
			}
		}
	}
	return b
}

// parseSkip reads build.skip: one or more boolean templates; any
// truthy one at variant-expansion time removes that variant entirely
// (a supplemented feature — see SPEC_FULL.md build.skip).
func (p *parseCtx) parseSkip(n ast.Node) ConditionalList[string] {
	if seq, ok := unwrap(n).(*ast.SequenceNode); ok {
		var out ConditionalList[string]
		for _, v := range seq.Values {
			out = append(out, ConditionalItem[string]{Value: ptr(p.parseScalarString(v))})
		}
		return out
	}
	return ConditionalList[string]{{Value: ptr(p.parseScalarString(n))}}
}

func (p *parseCtx) parseRequirements(om *orderedMap) RequirementsSection {
	var r RequirementsSection
	if n, ok := om.get("build"); ok {
		r.Build = p.parseConditionalListString(n)
	}
	if n, ok := om.get("host"); ok {
		r.Host = p.parseConditionalListString(n)
	}
	if n, ok := om.get("run"); ok {
		r.Run = p.parseConditionalListString(n)
	}
	if n, ok := om.get("run_constraints"); ok {
		r.RunConstraints = p.parseConditionalListString(n)
	}
	if n, ok := om.get("ignore_run_exports"); ok {
		r.IgnoreRunExports = p.parseConditionalListString(n)
	}
	return r
}

func (p *parseCtx) parseTestList(n ast.Node) ConditionalList[TestItem] {
	items, ok := p.asSequence(n)
	if !ok {
		return nil
	}
	var out ConditionalList[TestItem]
	for _, item := range items {
		om, isMap := p.tryMapping(item)
		if !isMap {
			continue
		}
		if om.has("if") {
			continue // conditional whole-test blocks ({if, then, else}) are not parsed; such entries are dropped
		}
		var t TestItem
		if sn, ok := om.get("script"); ok {
			t.Script = p.parseConditionalListString(sn)
		}
		if in, ok := om.get("imports"); ok {
			t.Imports = p.parseConditionalListString(in)
		}
		if fn, ok := om.get("files"); ok {
			t.Files = p.parseConditionalListString(fn)
		}
		out = append(out, ConditionalItem[TestItem]{Value: ptr(ConcreteValue(t, p.span(item)))})
	}
	return out
}

func (p *parseCtx) parseAbout(om *orderedMap) AboutSection {
	var a AboutSection
	if n, ok := om.get("homepage"); ok {
		a.Homepage = p.parseScalarString(n)
	}
	if n, ok := om.get("license"); ok {
		a.License = p.parseScalarString(n)
	}
	if n, ok := om.get("license_file"); ok {
		a.LicenseFile = p.parseConditionalListString(n)
	}
	if n, ok := om.get("summary"); ok {
		a.Summary = p.parseScalarString(n)
	}
	if n, ok := om.get("description"); ok {
		a.Description = p.parseScalarString(n)
	}
	return a
}

// variantScalar reads a scalar for variant-config values (not recipe
// values): applies §3's Variable rule (ParseVariantScalar) rather
// than the template/concrete split used for recipe fields.
func variantScalar(n ast.Node) template.Value {
	return template.ParseVariantScalar(scalarText(n), isQuoted(n))
}

// ParseVariantFile parses a `variant_config.yaml`-style document into
// a map of normalized key to the raw ordered scalars under it, plus
// any zip_keys groups — the input to variantcfg.Config (spec §3
// "Variant configuration").
func ParseVariantFile(src []byte, filename string) (map[string][]template.Value, [][]string, diag.List) {
	p := &parseCtx{filename: filename, source: string(src)}
	file, err := parser.ParseBytes(src, 0)
	if err != nil {
		p.fail(diag.KindExpectedMapping, nil, "invalid YAML: %v", err)
		return nil, nil, p.errs
	}
	if len(file.Docs) == 0 {
		return nil, nil, p.errs
	}
	root, ok := p.asMapping(file.Docs[0].Body)
	if !ok {
		return nil, nil, p.errs
	}
	values := map[string][]template.Value{}
	var zipKeys [][]string
	for _, k := range root.keys {
		if k == "zip_keys" {
			groups, _ := p.asSequence(root.entries[k].Value)
			for _, g := range groups {
				members, _ := p.asSequence(g)
				var group []string
				for _, m := range members {
					group = append(group, scalarText(m))
				}
				zipKeys = append(zipKeys, group)
			}
			continue
		}
		seq, isSeq := p.asSequence(root.entries[k].Value)
		if !isSeq {
			values[k] = []template.Value{variantScalar(root.entries[k].Value)}
			continue
		}
		for _, v := range seq {
			values[k] = append(values[k], variantScalar(v))
		}
	}
	return values, zipKeys, p.errs
}

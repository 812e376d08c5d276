package recipe

import (
	"fmt"

	"github.com/condaforge/condabuild/internal/diag"
	"github.com/condaforge/condabuild/internal/template"
)

// EvalOptions wires the platform-dependent helper functions a
// recipe's templates may call, plus the OS label used for the
// unix/linux/osx/win predicates (spec §4.3 step 1).
type EvalOptions struct {
	OS            string
	CompilerFor   func(lang string) string
	CDTFor        func(name string) string
	PinSubpackage func(name string, exact bool, min, max string) string
	PinCompatible func(name string, exact bool, min, max string) string
}

func (o EvalOptions) registry() *template.Registry {
	reg := template.NewRegistry()
	template.RegisterPlatformPredicates(reg, o.OS)
	compilerFor := o.CompilerFor
	if compilerFor == nil {
		compilerFor = func(lang string) string { return lang + "_compiler" }
	}
	cdtFor := o.CDTFor
	if cdtFor == nil {
		cdtFor = func(name string) string { return name + "-cos7-x86_64" }
	}
	template.RegisterBuildHelpers(reg, compilerFor, cdtFor)
	pinSub := o.PinSubpackage
	if pinSub == nil {
		pinSub = func(name string, exact bool, min, max string) string { return name }
	}
	pinCompat := o.PinCompatible
	if pinCompat == nil {
		pinCompat = func(name string, exact bool, min, max string) string { return name }
	}
	template.RegisterPinHelpers(reg, pinSub, pinCompat)
	return reg
}

// Eval evaluates a Stage0Recipe under a single variant assignment,
// producing a Stage1Recipe (spec §4.3). The assignment's keys are
// assumed already normalized (variantcfg.NormalizedKey strings).
func Eval(r *Stage0Recipe, assignment map[string]template.Value, opts EvalOptions) (*Stage1Recipe, diag.List) {
	e := &evaluator{reg: opts.registry(), ctx: template.Context{}}
	for k, v := range assignment {
		e.ctx[k] = v
	}

	for _, entry := range r.Context {
		v, err := e.evalString(entry.Value)
		if err != nil {
			e.fail(diag.KindUndefinedVariable, entry.Value.Span, "context.%s: %v", entry.Name, err)
			continue
		}
		e.ctx[entry.Name] = template.String(v)
	}

	out := &Stage1Recipe{Variant: e.ctx}

	if r.Package != nil {
		out.PackageName, _ = e.evalString(r.Package.Name)
		out.PackageVersion, _ = e.evalString(r.Package.Version)
	}

	for _, s := range e.flattenSource(r.Source) {
		out.Source = append(out.Source, s)
	}

	out.BuildNumber, _ = e.evalInt(r.Build.Number)
	out.BuildString, _ = e.evalString(r.Build.String)
	out.Script = e.flattenStrings(r.Build.Script)
	out.NoarchPython = r.Build.NoarchPython
	out.AlwaysInclude = e.flattenStrings(r.Build.AlwaysInclude)
	out.RunExports = Stage1RunExports{
		Strong:           e.flattenStrings(r.Build.RunExports.Strong),
		Weak:             e.flattenStrings(r.Build.RunExports.Weak),
		StrongConstrains: e.flattenStrings(r.Build.RunExports.StrongConstrains),
		WeakConstrains:   e.flattenStrings(r.Build.RunExports.WeakConstrains),
	}

	out.BuildDeps = e.flattenStrings(r.Requirements.Build)
	out.HostDeps = e.flattenStrings(r.Requirements.Host)
	out.RunDeps = e.flattenStrings(r.Requirements.Run)
	out.RunConstraints = e.flattenStrings(r.Requirements.RunConstraints)
	out.IgnoreRunExports = e.flattenStrings(r.Requirements.IgnoreRunExports)

	for _, item := range r.Tests {
		t, ok := e.selectTest(item)
		if !ok {
			continue
		}
		out.Tests = append(out.Tests, Stage1Test{
			Script:  e.flattenStrings(t.Script),
			Imports: e.flattenStrings(t.Imports),
			Files:   e.flattenStrings(t.Files),
		})
	}

	out.Homepage, _ = e.evalString(r.About.Homepage)
	out.License, _ = e.evalString(r.About.License)
	out.LicenseFile = e.flattenStrings(r.About.LicenseFile)
	out.Summary, _ = e.evalString(r.About.Summary)
	out.Description, _ = e.evalString(r.About.Description)

	validate(out, e)

	return out, e.errs
}

// Skipped reports whether build.skip evaluates truthy under this
// evaluator's context — the recipe author's variant exclusion escape
// hatch (a supplemented feature, see SPEC_FULL.md build.skip).
func Skipped(r *Stage0Recipe, assignment map[string]template.Value, opts EvalOptions) (bool, diag.List) {
	e := &evaluator{reg: opts.registry(), ctx: template.Context{}}
	for k, v := range assignment {
		e.ctx[k] = v
	}
	for _, entry := range r.Context {
		v, err := e.evalString(entry.Value)
		if err == nil {
			e.ctx[entry.Name] = template.String(v)
		}
	}
	for _, item := range r.Build.Skip {
		if item.Value == nil {
			continue
		}
		if item.Value.Template == nil {
			if item.Value.Concrete == "true" || item.Value.Concrete == "True" {
				return true, e.errs
			}
			continue
		}
		ok, err := item.Value.Template.EvalBool(e.ctx, e.reg)
		if err != nil {
			e.fail(diag.KindUndefinedVariable, item.Value.Span, "build.skip: %v", err)
			continue
		}
		if ok {
			return true, e.errs
		}
	}
	return false, e.errs
}

type evaluator struct {
	reg  *template.Registry
	ctx  template.Context
	errs diag.List
}

func (e *evaluator) fail(kind diag.Kind, span diag.Span, format string, args ...any) {
	e.errs = append(e.errs, &diag.Diagnostic{Kind: kind, Span: span, Message: fmt.Sprintf(format, args...)})
}

func (e *evaluator) evalString(v Value[string]) (string, error) {
	if v.Template == nil {
		return v.Concrete, nil
	}
	return v.Template.Render(e.ctx, e.reg)
}

func (e *evaluator) evalInt(v Value[int]) (int, error) {
	if v.Template == nil {
		return v.Concrete, nil
	}
	rv, err := v.Template.RenderValue(e.ctx, e.reg)
	if err != nil {
		return 0, err
	}
	i, err := rv.AsInt()
	if err != nil {
		return 0, err
	}
	return int(i), nil
}

// flattenStrings evaluates every conditional in l against e's context
// and concatenates the then/else branch (or nothing) in order (spec
// §4.3 step 3 "Walk the stage-0 tree").
func (e *evaluator) flattenStrings(l ConditionalList[string]) []string {
	var out []string
	for _, item := range l {
		if item.Value != nil {
			s, err := e.evalString(*item.Value)
			if err != nil {
				e.fail(diag.KindUndefinedVariable, item.Value.Span, "%v", err)
				continue
			}
			if s != "" {
				out = append(out, s)
			}
			continue
		}
		c := item.Condition
		if c.If == nil {
			continue
		}
		ok, err := c.If.EvalBool(e.ctx, e.reg)
		if err != nil {
			e.fail(diag.KindUndefinedVariable, c.Span, "if: %v", err)
			continue
		}
		branch := c.Else
		if ok {
			branch = c.Then
		}
		for _, v := range branch {
			s, err := e.evalString(v)
			if err != nil {
				e.fail(diag.KindUndefinedVariable, v.Span, "%v", err)
				continue
			}
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func (e *evaluator) flattenSource(l ConditionalList[SourceItem]) []Stage1Source {
	var out []Stage1Source
	for _, item := range l {
		if item.Value != nil {
			out = append(out, e.evalSource(item.Value.Concrete))
			continue
		}
		c := item.Condition
		ok, err := c.If.EvalBool(e.ctx, e.reg)
		if err != nil {
			e.fail(diag.KindUndefinedVariable, c.Span, "source if: %v", err)
			continue
		}
		branch := c.Else
		if ok {
			branch = c.Then
		}
		for _, v := range branch {
			out = append(out, e.evalSource(v.Concrete))
		}
	}
	return out
}

func (e *evaluator) evalSource(s SourceItem) Stage1Source {
	url, _ := e.evalString(s.URL)
	git, _ := e.evalString(s.GitURL)
	rev, _ := e.evalString(s.GitRev)
	sha, _ := e.evalString(s.SHA256)
	md5, _ := e.evalString(s.MD5)
	folder, _ := e.evalString(s.Folder)
	sig, _ := e.evalString(s.Signature)
	pgpKey, _ := e.evalString(s.PGPKey)
	var patches []string
	for _, p := range s.Patches {
		v, _ := e.evalString(p)
		patches = append(patches, v)
	}
	return Stage1Source{
		URL: url, GitURL: git, GitRev: rev, SHA256: sha, MD5: md5, Folder: folder, Patches: patches,
		Signature: sig, PGPKey: pgpKey,
	}
}

func (e *evaluator) selectTest(item ConditionalItem[TestItem]) (TestItem, bool) {
	if item.Value != nil {
		return item.Value.Concrete, true
	}
	c := item.Condition
	ok, err := c.If.EvalBool(e.ctx, e.reg)
	if err != nil {
		e.fail(diag.KindUndefinedVariable, c.Span, "test if: %v", err)
		return TestItem{}, false
	}
	branch := c.Else
	if ok {
		branch = c.Then
	}
	if len(branch) == 0 {
		return TestItem{}, false
	}
	return branch[0].Concrete, true
}

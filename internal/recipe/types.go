// Package recipe implements the two-stage recipe model: stage-0 (the
// parsed-but-unevaluated document, values either concrete or
// templated) and stage-1 (fully evaluated, every value concrete).
package recipe

import (
	"github.com/condaforge/condabuild/internal/diag"
	"github.com/condaforge/condabuild/internal/template"
)

// Value is a sum of Concrete(T) or Template(expr) (spec §3). Stage-0
// trees carry either form; stage-1 evaluation collapses every Value
// down to its Concrete form.
type Value[T any] struct {
	Concrete T
	Template *template.Expression
	IsConst  bool
	Span     diag.Span
}

// ConcreteValue wraps a literal, already-evaluated T.
func ConcreteValue[T any](v T, span diag.Span) Value[T] {
	return Value[T]{Concrete: v, IsConst: true, Span: span}
}

// TemplateValue wraps a parsed template expression that has not yet
// been rendered against an evaluation context.
func TemplateValue[T any](expr *template.Expression, span diag.Span) Value[T] {
	return Value[T]{Template: expr, Span: span}
}

func (v Value[T]) UsedVariables() []string {
	if v.Template == nil {
		return nil
	}
	return v.Template.UsedVariables()
}

// Conditional is `{ if: <expr>, then: <value|list>, else?: <value|list> }`
// (spec §3). then/else hold zero or more raw scalar strings; the
// evaluator re-parses each through the same field converter used for
// a concrete value once the branch is selected.
type Conditional[T any] struct {
	If   *template.Expression
	Then []Value[T]
	Else []Value[T]
	Span diag.Span
}

// ConditionalItem is either a concrete Value[T] or a Conditional[T],
// the element type of a ConditionalList.
type ConditionalItem[T any] struct {
	Value     *Value[T]
	Condition *Conditional[T]
}

// ConditionalList is an ordered sequence whose elements are either
// concrete values or conditionals (spec §3). Evaluation flattens
// every conditional into its selected branch's items, in place.
type ConditionalList[T any] []ConditionalItem[T]

// UsedVariables returns every free variable referenced anywhere in l:
// by item templates and by conditional `if` expressions alike.
func (l ConditionalList[T]) UsedVariables() []string {
	seen := map[string]bool{}
	var out []string
	add := func(vs []string) {
		for _, v := range vs {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	for _, item := range l {
		if item.Value != nil {
			add(item.Value.UsedVariables())
		}
		if item.Condition != nil {
			add(item.Condition.If.UsedVariables())
			for _, t := range item.Condition.Then {
				add(t.UsedVariables())
			}
			for _, e := range item.Condition.Else {
				add(e.UsedVariables())
			}
		}
	}
	return out
}

// Stage0Recipe is the root parsed document (spec §3 "Stage-0 recipe").
type Stage0Recipe struct {
	Context      []ContextEntry
	Package      *PackageSection // nil for a multi-output recipe
	Source       ConditionalList[SourceItem]
	Build        BuildSection
	Requirements RequirementsSection
	Tests        ConditionalList[TestItem]
	About        AboutSection
	Extra        map[string]string
	Outputs      []OutputSection // non-nil for a multi-output recipe

	Span diag.Span
}

// ContextEntry is one `context:` block entry: a named template
// evaluated in declaration order, each becoming a variable visible to
// subsequent entries and the rest of the recipe (spec §4.3 step 2).
type ContextEntry struct {
	Name  string
	Value Value[string]
}

type PackageSection struct {
	Name    Value[string]
	Version Value[string]
}

type SourceItem struct {
	URL       Value[string]
	GitURL    Value[string]
	GitRev    Value[string]
	SHA256    Value[string]
	MD5       Value[string]
	Patches   []Value[string]
	Folder    Value[string]
	Signature Value[string] // URL to an armored detached PGP signature of the url payload
	PGPKey    Value[string] // URL to the armored public key that signed it
	TargetOK  bool
}

type BuildSection struct {
	Number       Value[int]
	String       Value[string]
	Script       ConditionalList[string]
	Skip         ConditionalList[string] // boolean templates; a truthy hit skips this variant
	NoarchPython bool
	RunExports   RunExportsSection
	AlwaysInclude ConditionalList[string]
}

type RunExportsSection struct {
	Strong     ConditionalList[string]
	Weak       ConditionalList[string]
	StrongConstrains ConditionalList[string]
	WeakConstrains   ConditionalList[string]
}

type RequirementsSection struct {
	Build           ConditionalList[string]
	Host            ConditionalList[string]
	Run             ConditionalList[string]
	RunConstraints  ConditionalList[string]
	IgnoreRunExports ConditionalList[string]
}

type TestItem struct {
	Script  ConditionalList[string]
	Imports ConditionalList[string]
	Files   ConditionalList[string]
}

type AboutSection struct {
	Homepage      Value[string]
	License       Value[string]
	LicenseFile   ConditionalList[string]
	Summary       Value[string]
	Description   Value[string]
}

// OutputSection is one element of `outputs[]` in a multi-output
// recipe: either a "cache" output (shared intermediate artifacts) or
// a "package" output that may inherit from a cache by name.
type OutputSection struct {
	Name         Value[string]
	Version      Value[string]
	Cache        bool
	CacheFrom    string
	Build        BuildSection
	Requirements RequirementsSection
	Tests        ConditionalList[TestItem]
	About        AboutSection
}

// Stage1Recipe mirrors Stage0Recipe but every Value is concrete and
// every ConditionalList has been flattened to a plain slice (spec §3
// "Stage-1 recipe"). Name/version/license/match-specs are validated.
type Stage1Recipe struct {
	PackageName    string
	PackageVersion string
	Source         []Stage1Source
	BuildNumber    int
	BuildString    string
	Script         []string
	NoarchPython   bool
	RunExports     Stage1RunExports
	AlwaysInclude  []string

	BuildDeps  []string
	HostDeps   []string
	RunDeps    []string
	RunConstraints []string
	IgnoreRunExports []string

	Tests []Stage1Test

	Homepage    string
	License     string
	LicenseFile []string
	Summary     string
	Description string

	Variant template.Context
}

type Stage1Source struct {
	URL       string
	GitURL    string
	GitRev    string
	SHA256    string
	MD5       string
	Patches   []string
	Folder    string
	Signature string
	PGPKey    string
}

type Stage1RunExports struct {
	Strong           []string
	Weak             []string
	StrongConstrains []string
	WeakConstrains   []string
}

type Stage1Test struct {
	Script  []string
	Imports []string
	Files   []string
}

// UsedVariables returns the union of variables referenced anywhere in
// r's root recipe: context entries, package fields, build number and
// string, about fields, and every conditional list (spec §3 Stage-0
// recipe "Derives: used_variables()"). For each outputs[] entry only
// its name, version, build script, build/host/run requirements and
// tests are searched.
func (r *Stage0Recipe) UsedVariables() []string {
	seen := map[string]bool{}
	var out []string
	add := func(vs []string) {
		for _, v := range vs {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	for _, c := range r.Context {
		add(c.Value.UsedVariables())
	}
	if r.Package != nil {
		add(r.Package.Name.UsedVariables())
		add(r.Package.Version.UsedVariables())
	}
	add(r.Source.UsedVariables())
	add(r.Build.Number.UsedVariables())
	add(r.Build.String.UsedVariables())
	add(r.Build.Script.UsedVariables())
	add(r.Build.Skip.UsedVariables())
	add(r.Build.AlwaysInclude.UsedVariables())
	add(r.Build.RunExports.Strong.UsedVariables())
	add(r.Build.RunExports.Weak.UsedVariables())
	add(r.Build.RunExports.StrongConstrains.UsedVariables())
	add(r.Build.RunExports.WeakConstrains.UsedVariables())
	add(r.Requirements.Build.UsedVariables())
	add(r.Requirements.Host.UsedVariables())
	add(r.Requirements.Run.UsedVariables())
	add(r.Requirements.RunConstraints.UsedVariables())
	add(r.Requirements.IgnoreRunExports.UsedVariables())
	add(r.Tests.UsedVariables())
	add(r.About.Homepage.UsedVariables())
	add(r.About.License.UsedVariables())
	add(r.About.LicenseFile.UsedVariables())
	add(r.About.Summary.UsedVariables())
	add(r.About.Description.UsedVariables())
	for _, o := range r.Outputs {
		add(o.Name.UsedVariables())
		add(o.Version.UsedVariables())
		add(o.Build.Script.UsedVariables())
		add(o.Requirements.Build.UsedVariables())
		add(o.Requirements.Host.UsedVariables())
		add(o.Requirements.Run.UsedVariables())
		add(o.Tests.UsedVariables())
	}
	return out
}

// IsMultiOutput reports whether r declares outputs[] rather than a
// single root package.
func (r *Stage0Recipe) IsMultiOutput() bool { return len(r.Outputs) > 0 }

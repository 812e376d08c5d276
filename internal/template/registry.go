package template

import "fmt"

// Func is a helper callable registered by name, e.g. `compiler("c")`
// or `pin_subpackage("libfoo", exact=True)`. Helpers receive already
// evaluated positional arguments plus any keyword arguments captured
// via the parser's `__kwarg__` desugaring.
type Func func(args []Value, kwargs map[string]Value) (Value, error)

// Registry holds the helper callables available to expression
// evaluation: the built-in predicates (unix, linux, osx, win) and
// conda-specific functions (compiler, cdt, pin_subpackage,
// pin_compatible). Callers may register additional helpers (e.g. a
// stage-1 evaluator registering pin_subpackage bound to the current
// recipe's outputs).
type Registry struct {
	funcs map[string]Func
}

// NewRegistry returns an empty Registry. The platform predicates and
// domain-specific helpers are added with RegisterPlatformPredicates,
// RegisterBuildHelpers, RegisterPinHelpers or Register by the stage-1
// evaluator, which knows the active platform and output graph.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds or replaces a helper callable.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

func (r *Registry) lookup(name string) (Func, bool) {
	fn, ok := r.funcs[name]
	return fn, ok
}

// RegisterPlatformPredicates wires `unix`, `linux`, `osx`, and `win`
// as zero-argument boolean helpers. Eval also resolves a bare
// identifier that is absent from the Context by calling the helper of
// that name, since recipes reference them both ways (`win`, `win()`).
func RegisterPlatformPredicates(r *Registry, os string) {
	is := func(want string) Func {
		return func(args []Value, kwargs map[string]Value) (Value, error) {
			return Bool(os == want), nil
		}
	}
	r.Register("linux", is("linux"))
	r.Register("osx", is("osx"))
	r.Register("win", is("win"))
	r.Register("unix", func(args []Value, kwargs map[string]Value) (Value, error) {
		return Bool(os == "linux" || os == "osx"), nil
	})
}

// RegisterBuildHelpers wires the conda-specific build helpers.
// compilerFor maps a language name ("c", "cxx", "fortran", "rust") to
// the matchspec string for the active build platform's compiler
// package; cdtFor maps a CDT package name to its platform-suffixed
// form. Both are supplied by the stage-1 evaluator, which knows the
// active variant's platform.
func RegisterBuildHelpers(r *Registry, compilerFor func(lang string) string, cdtFor func(name string) string) {
	r.Register("compiler", func(args []Value, kwargs map[string]Value) (Value, error) {
		if len(args) != 1 {
			return Undefined, fmt.Errorf("compiler() takes exactly one argument")
		}
		return String(compilerFor(args[0].AsString())), nil
	})
	r.Register("cdt", func(args []Value, kwargs map[string]Value) (Value, error) {
		if len(args) != 1 {
			return Undefined, fmt.Errorf("cdt() takes exactly one argument")
		}
		return String(cdtFor(args[0].AsString())), nil
	})
}

// RegisterPinHelpers wires pin_subpackage/pin_compatible. resolve is
// supplied by the stage-1 evaluator and returns the pinned
// match-spec string for a given package name plus exact/min/max
// keyword options.
func RegisterPinHelpers(r *Registry, pinSubpackage, pinCompatible func(name string, exact bool, min, max string) string) {
	pin := func(resolve func(string, bool, string, string) string) Func {
		return func(args []Value, kwargs map[string]Value) (Value, error) {
			if len(args) != 1 {
				return Undefined, fmt.Errorf("pin function takes exactly one positional argument")
			}
			exact := false
			if v, ok := kwargs["exact"]; ok {
				exact = v.AsBool()
			}
			minV, maxV := "", ""
			if v, ok := kwargs["min_pin"]; ok {
				minV = v.AsString()
			}
			if v, ok := kwargs["max_pin"]; ok {
				maxV = v.AsString()
			}
			return String(resolve(args[0].AsString(), exact, minV, maxV)), nil
		}
	}
	r.Register("pin_subpackage", pin(pinSubpackage))
	r.Register("pin_compatible", pin(pinCompatible))
}

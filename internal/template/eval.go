package template

import (
	"fmt"
	"strings"
)

// Eval evaluates an already-parsed expression node against ctx and
// reg. Undefined variables evaluate to Undefined rather than erroring
// — strict-vs-lenient policy is the caller's job (variant expansion's
// §4.2 step 2, stage-1's "undefined variable in strict mode" §7),
// applied by checking IsUndefined() on the result where it matters.
func Eval(n node, ctx Context, reg *Registry) (Value, error) {
	switch t := n.(type) {
	case litNode:
		return t.val, nil
	case identNode:
		if v, ok := ctx[t.name]; ok {
			return v, nil
		}
		if reg != nil {
			if fn, ok := reg.lookup(t.name); ok {
				return fn(nil, nil)
			}
		}
		return Undefined, nil
	case listNode:
		vals := make([]Value, len(t.items))
		for i, it := range t.items {
			v, err := Eval(it, ctx, reg)
			if err != nil {
				return Undefined, err
			}
			vals[i] = v
		}
		return List(vals), nil
	case attrNode:
		base, err := Eval(t.base, ctx, reg)
		if err != nil {
			return Undefined, err
		}
		_ = base
		// Attribute access on scalars/lists is not meaningful in this
		// subset beyond what filters already cover; treat as undefined.
		return Undefined, nil
	case indexNode:
		base, err := Eval(t.base, ctx, reg)
		if err != nil {
			return Undefined, err
		}
		idx, err := Eval(t.index, ctx, reg)
		if err != nil {
			return Undefined, err
		}
		if base.kind != KindList {
			return Undefined, nil
		}
		i, err := idx.AsInt()
		if err != nil {
			return Undefined, err
		}
		if i < 0 || int(i) >= len(base.list) {
			return Undefined, fmt.Errorf("index %d out of range", i)
		}
		return base.list[i], nil
	case callNode:
		name, ok := t.fn.(identNode)
		if !ok {
			return Undefined, fmt.Errorf("unsupported call target")
		}
		if name.name == "__kwarg__" {
			return Undefined, fmt.Errorf("__kwarg__ cannot be evaluated directly")
		}
		if reg == nil {
			return Undefined, fmt.Errorf("undefined function %q", name.name)
		}
		fn, ok := reg.lookup(name.name)
		if !ok {
			return Undefined, fmt.Errorf("undefined function %q", name.name)
		}
		var positional []Value
		kwargs := map[string]Value{}
		for _, a := range t.args {
			if kw, ok := a.(callNode); ok {
				if kwName, ok := kw.fn.(identNode); ok && kwName.name == "__kwarg__" {
					keyNode := kw.args[0].(identNode)
					v, err := Eval(kw.args[1], ctx, reg)
					if err != nil {
						return Undefined, err
					}
					kwargs[keyNode.name] = v
					continue
				}
			}
			v, err := Eval(a, ctx, reg)
			if err != nil {
				return Undefined, err
			}
			positional = append(positional, v)
		}
		return fn(positional, kwargs)
	case filterNode:
		base, err := Eval(t.base, ctx, reg)
		if err != nil {
			return Undefined, err
		}
		return applyFilter(t.name, base)
	case unaryNode:
		v, err := Eval(t.operand, ctx, reg)
		if err != nil {
			return Undefined, err
		}
		switch t.op {
		case "not":
			return Bool(!v.AsBool()), nil
		case "-":
			i, err := v.AsInt()
			if err != nil {
				return Undefined, err
			}
			return Int(-i), nil
		}
		return Undefined, fmt.Errorf("unsupported unary operator %q", t.op)
	case binNode:
		return evalBin(t, ctx, reg)
	case ternaryNode:
		cond, err := Eval(t.cond, ctx, reg)
		if err != nil {
			return Undefined, err
		}
		if cond.AsBool() {
			return Eval(t.then, ctx, reg)
		}
		if t.els == nil {
			return Undefined, nil
		}
		return Eval(t.els, ctx, reg)
	}
	return Undefined, fmt.Errorf("unsupported node %T", n)
}

func evalBin(t binNode, ctx Context, reg *Registry) (Value, error) {
	switch t.op {
	case "and":
		l, err := Eval(t.left, ctx, reg)
		if err != nil {
			return Undefined, err
		}
		if !l.AsBool() {
			return Bool(false), nil
		}
		r, err := Eval(t.right, ctx, reg)
		if err != nil {
			return Undefined, err
		}
		return Bool(r.AsBool()), nil
	case "or":
		l, err := Eval(t.left, ctx, reg)
		if err != nil {
			return Undefined, err
		}
		if l.AsBool() {
			return Bool(true), nil
		}
		r, err := Eval(t.right, ctx, reg)
		if err != nil {
			return Undefined, err
		}
		return Bool(r.AsBool()), nil
	}

	l, err := Eval(t.left, ctx, reg)
	if err != nil {
		return Undefined, err
	}
	r, err := Eval(t.right, ctx, reg)
	if err != nil {
		return Undefined, err
	}

	switch t.op {
	case "==":
		return Bool(l.Equal(r)), nil
	case "!=":
		return Bool(!l.Equal(r)), nil
	case "in":
		for _, e := range r.AsList() {
			if e.Equal(l) {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	case "+":
		if l.kind == KindInt && r.kind == KindInt {
			return Int(l.i + r.i), nil
		}
		return String(l.AsString() + r.AsString()), nil
	case ">", "<", ">=", "<=":
		li, lerr := l.AsInt()
		ri, rerr := r.AsInt()
		if lerr == nil && rerr == nil {
			return Bool(compareInt(li, ri, t.op)), nil
		}
		return Bool(compareString(l.AsString(), r.AsString(), t.op)), nil
	}
	return Undefined, fmt.Errorf("unsupported operator %q", t.op)
}

func compareInt(l, r int64, op string) bool {
	switch op {
	case ">":
		return l > r
	case "<":
		return l < r
	case ">=":
		return l >= r
	case "<=":
		return l <= r
	}
	return false
}

func compareString(l, r, op string) bool {
	switch op {
	case ">":
		return l > r
	case "<":
		return l < r
	case ">=":
		return l >= r
	case "<=":
		return l <= r
	}
	return false
}

// applyFilter implements the small set of filters recipes commonly
// use: `lower`, `upper`, `length` (alias `count`), and `trim`. Filter
// arguments are not passed in; any other filter name is an error.
func applyFilter(name string, base Value) (Value, error) {
	switch name {
	case "lower":
		return String(strings.ToLower(base.AsString())), nil
	case "upper":
		return String(strings.ToUpper(base.AsString())), nil
	case "length", "count":
		if base.kind == KindList {
			return Int(int64(len(base.list))), nil
		}
		return Int(int64(len(base.AsString()))), nil
	case "trim":
		return String(strings.TrimSpace(base.AsString())), nil
	default:
		return Undefined, fmt.Errorf("unknown filter %q", name)
	}
}

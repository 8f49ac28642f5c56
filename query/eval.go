package query

import "reflect"

// Eval evaluates expr against row, dispatching on the static node
// kind (spec.md §9: "static dispatcher per node kind"). Ref resolves a
// dotted path; Value returns its literal; Func dispatches to
// functions.go; Agg is only meaningful inside a grouped evaluator
// (compiler/aggregate.go) and is rejected here.
func Eval(expr Expr, row NamespacedRow) (any, error) {
	switch e := expr.(type) {
	case Ref:
		return resolvePath(row, e.Path), nil
	case Value:
		return e.Literal, nil
	case Func:
		args := make([]any, len(e.Args))
		for i, a := range e.Args {
			v, err := Eval(a, row)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return evalFunc(e.Name, args)
	case Agg:
		return nil, newError("aggregate expression evaluated outside a grouping context")
	default:
		return nil, newError("unknown expression node %T", expr)
	}
}

// MustEval evaluates expr and panics on error, for callers that have
// already validated the expression tree and want a plain
// func(NamespacedRow) any.
func MustEval(expr Expr, row NamespacedRow) any {
	v, err := Eval(expr, row)
	if err != nil {
		panic(err)
	}
	return v
}

// resolvePath walks a dotted Ref path against a NamespacedRow. The
// first segment selects the alias; remaining segments navigate into
// the aliased record, which may be a map[string]any, a struct (via
// reflection, matched case-insensitively against the field name), or
// another NamespacedRow (after a join, before final projection).
func resolvePath(row NamespacedRow, path []string) any {
	if len(path) == 0 {
		return nil
	}
	cur, ok := row[path[0]]
	if !ok {
		return nil
	}
	for _, seg := range path[1:] {
		cur = fieldOf(cur, seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// fieldOf reads one field/key named seg from v, whatever its
// underlying shape.
func fieldOf(v any, seg string) any {
	if v == nil {
		return nil
	}
	switch m := v.(type) {
	case map[string]any:
		return m[seg]
	case NamespacedRow:
		return m[seg]
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Map {
		mv := rv.MapIndex(reflect.ValueOf(seg))
		if !mv.IsValid() {
			return nil
		}
		return mv.Interface()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Name == seg || equalFold(f.Name, seg) {
			return rv.Field(i).Interface()
		}
	}
	return nil
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

package query

import (
	"strings"

	"github.com/samwillis/reactive-db/key"
)

// Builder helpers for the function registry of spec.md §4.5, so
// callers assemble expressions with typed constructors instead of
// hand-building Func{Name: "eq", ...} literals.

func call(name string, args ...Expr) Func { return Func{Name: name, Args: args} }

func Eq(a, b Expr) Func       { return call("eq", a, b) }
func Neq(a, b Expr) Func      { return call("neq", a, b) }
func Lt(a, b Expr) Func       { return call("lt", a, b) }
func Lte(a, b Expr) Func      { return call("lte", a, b) }
func Gt(a, b Expr) Func       { return call("gt", a, b) }
func Gte(a, b Expr) Func      { return call("gte", a, b) }
func And(args ...Expr) Func   { return call("and", args...) }
func Or(args ...Expr) Func    { return call("or", args...) }
func Not(a Expr) Func         { return call("not", a) }
func Like(a, b Expr) Func     { return call("like", a, b) }
func NotLike(a, b Expr) Func  { return call("notLike", a, b) }
func Upper(a Expr) Func       { return call("upper", a) }
func Lower(a Expr) Func       { return call("lower", a) }
func Length(a Expr) Func      { return call("length", a) }
func Concat(args ...Expr) Func { return call("concat", args...) }
func In(a Expr, set Expr) Func { return call("in", a, set) }
func NotIn(a Expr, set Expr) Func { return call("notIn", a, set) }
func Is(a, b Expr) Func       { return call("is", a, b) }
func IsNot(a, b Expr) Func    { return call("isNot", a, b) }
func Coalesce(args ...Expr) Func { return call("coalesce", args...) }

// funcArity lists the fixed arity of each registered function, per
// spec.md §4.5's "fixed arity and semantics"; variadic entries are
// marked with -1.
var funcArity = map[string]int{
	"eq": 2, "neq": 2, "lt": 2, "lte": 2, "gt": 2, "gte": 2,
	"and": -1, "or": -1, "not": 1,
	"like": 2, "notLike": 2, "upper": 1, "lower": 1, "length": 1, "concat": -1,
	"in": 2, "notIn": 2,
	"is": 2, "isNot": 2,
	"coalesce": -1,
	"orderIndex": 1,
}

func checkArity(name string, n int) error {
	arity, ok := funcArity[name]
	if !ok {
		return newError("unknown function %q", name)
	}
	if arity >= 0 && n != arity {
		return newError("function %q expects %d args, got %d", name, arity, n)
	}
	return nil
}

// ApplyFunc dispatches a registered function by name against
// already-evaluated arguments. It is exported so the compiler's
// group-aggregate evaluator (which resolves Agg nodes itself, outside
// Eval's per-row walk) can still route and/or/not/coalesce/etc.
// through this single registry instead of duplicating its semantics.
func ApplyFunc(name string, args []any) (any, error) {
	return evalFunc(name, args)
}

// evalFunc dispatches a Func node, per spec.md §4.5's function
// registry. It returns a QueryError for an unknown function name or a
// violated arity, since those are structural mistakes a caller should
// see at compile time rather than silently coerce.
func evalFunc(name string, args []any) (any, error) {
	if err := checkArity(name, len(args)); err != nil {
		return nil, err
	}
	switch name {
	case "eq":
		return key.CompareValues(args[0], args[1]) == 0, nil
	case "neq":
		return key.CompareValues(args[0], args[1]) != 0, nil
	case "lt":
		return nonNullCompare(args[0], args[1], func(c int) bool { return c < 0 }), nil
	case "lte":
		return nonNullCompare(args[0], args[1], func(c int) bool { return c <= 0 }), nil
	case "gt":
		return nonNullCompare(args[0], args[1], func(c int) bool { return c > 0 }), nil
	case "gte":
		return nonNullCompare(args[0], args[1], func(c int) bool { return c >= 0 }), nil
	case "and":
		for _, a := range args {
			if !truthy(a) {
				return false, nil
			}
		}
		return true, nil
	case "or":
		for _, a := range args {
			if truthy(a) {
				return true, nil
			}
		}
		return false, nil
	case "not":
		return !truthy(args[0]), nil
	case "like":
		return likeMatch(asString(args[0]), asString(args[1])), nil
	case "notLike":
		return !likeMatch(asString(args[0]), asString(args[1])), nil
	case "upper":
		return strings.ToUpper(asString(args[0])), nil
	case "lower":
		return strings.ToLower(asString(args[0])), nil
	case "length":
		return len(asString(args[0])), nil
	case "concat":
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(asString(a))
		}
		return sb.String(), nil
	case "in":
		return inSet(args[0], args[1]), nil
	case "notIn":
		return !inSet(args[0], args[1]), nil
	case "is":
		return args[0] == nil && args[1] == nil || key.CompareValues(args[0], args[1]) == 0, nil
	case "isNot":
		is := args[0] == nil && args[1] == nil || key.CompareValues(args[0], args[1]) == 0
		return !is, nil
	case "coalesce":
		for _, a := range args {
			if a != nil {
				return a, nil
			}
		}
		return nil, nil
	case "orderIndex":
		return args[0], nil
	default:
		return nil, newError("unknown function %q", name)
	}
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// nonNullCompare applies cmp to key.CompareValues(a, b) unless either
// side is nil, in which case the comparison result is always false:
// SQL-style three-valued-logic for ordering comparisons against NULL.
func nonNullCompare(a, b any, cmp func(int) bool) bool {
	if a == nil || b == nil {
		return false
	}
	return cmp(key.CompareValues(a, b))
}

// likeMatch implements the SQL LIKE subset this registry supports: %
// as a multi-character wildcard, _ as a single-character wildcard, no
// escape character.
func likeMatch(s, pattern string) bool {
	return likeMatchRunes([]rune(s), []rune(pattern))
}

func likeMatchRunes(s, p []rune) bool {
	if len(p) == 0 {
		return len(s) == 0
	}
	switch p[0] {
	case '%':
		if likeMatchRunes(s, p[1:]) {
			return true
		}
		for i := range s {
			if likeMatchRunes(s[i+1:], p[1:]) {
				return true
			}
		}
		return false
	case '_':
		if len(s) == 0 {
			return false
		}
		return likeMatchRunes(s[1:], p[1:])
	default:
		if len(s) == 0 || s[0] != p[0] {
			return false
		}
		return likeMatchRunes(s[1:], p[1:])
	}
}

// inSet reports whether v equals any element of set, which must be a
// []any (a Value literal list); a set of any other type, including a
// differently typed Go slice, never matches.
func inSet(v any, set any) bool {
	items, ok := set.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if key.CompareValues(v, item) == 0 {
			return true
		}
	}
	return false
}

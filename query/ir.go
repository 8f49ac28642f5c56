// Package query implements the immutable query IR of spec.md §4.5: a
// language-neutral expression/query tree that the builder in this
// package produces directly (no SQL text parsing, per spec.md §1's
// non-goals). Node kinds are a closed set of tagged variants
// implementing marker interfaces, per spec.md §9's "dynamic dispatch
// on tagged expression shape... implement as a tagged variant and a
// static dispatcher per node kind" guidance — no inheritance, no
// interface{} dispatch beyond the type switch in eval.go.
package query

// Expr is the marker interface every expression node implements:
// Ref, Value, Func, Agg.
type Expr interface {
	isExpr()
}

// Ref resolves a dotted path against a NamespacedRow, e.g.
// ["u", "dept"] reads row["u"].(field "dept"). A single-element path
// such as ["u"] yields the whole record stored under that alias.
type Ref struct {
	Path []string
}

func (Ref) isExpr() {}

// Value is a literal.
type Value struct {
	Literal any
}

func (Value) isExpr() {}

// Func applies a named, fixed-arity function from the registry in
// functions.go to Args.
type Func struct {
	Name string
	Args []Expr
}

func (Func) isExpr() {}

// AggOp enumerates the aggregate operators of spec.md §4.5/§4.7.2.
type AggOp string

const (
	AggCount  AggOp = "count"
	AggSum    AggOp = "sum"
	AggAvg    AggOp = "avg"
	AggMin    AggOp = "min"
	AggMax    AggOp = "max"
	AggMedian AggOp = "median"
	AggMode   AggOp = "mode"
)

// Agg is an aggregate expression, legal only in SELECT/HAVING of a
// grouped query (spec.md §4.7.1 step 8).
type Agg struct {
	Op  AggOp
	Arg Expr
}

func (Agg) isExpr() {}

// Source is the marker interface a query's FROM and JOIN clauses
// implement: CollectionRef, QueryRef.
type Source interface {
	isSource()
	// Alias returns the namespace this source's rows are placed under
	// in a NamespacedRow.
	Alias() string
}

// CollectionRef names a registered collection by id.
type CollectionRef struct {
	Collection string
	AliasName  string
}

func (CollectionRef) isSource()      {}
func (c CollectionRef) Alias() string { return c.AliasName }

// QueryRef nests a subquery as a source, per spec.md §3 ("Sources:
// CollectionRef{collection, alias} or QueryRef{query, alias}").
type QueryRef struct {
	Query     *Query
	AliasName string
}

func (QueryRef) isSource()      {}
func (q QueryRef) Alias() string { return q.AliasName }

// JoinKind enumerates the join kinds a Query's Join clauses declare,
// per spec.md §4.7.3. Cross/Outer are surface-level synonyms the
// builder normalizes at construction time (cross -> Inner with a
// constant-true predicate, outer -> Full) so that everything
// downstream (optimizer, compiler) only ever sees the four kinds
// dataflow.Join implements.
type JoinKind string

const (
	JoinInner JoinKind = "inner"
	JoinLeft  JoinKind = "left"
	JoinRight JoinKind = "right"
	JoinFull  JoinKind = "full"
	JoinCross JoinKind = "cross"
	JoinOuter JoinKind = "outer"
)

// Join is one JOIN clause: a source, its kind, and the pair of
// expressions (evaluated on the accumulated namespaced row so far,
// and on the new source's own namespaced row respectively) whose
// equality drives the equi-join.
type Join struct {
	Source Source
	Kind   JoinKind
	Left   Expr
	Right  Expr
}

// SortDirection is an ORDER BY term's direction.
type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// NullsPosition overrides the default null-sort-first behavior of
// spec.md §4.7.1 step 9 ("implementations may expose explicit nulls
// to override").
type NullsPosition string

const (
	NullsDefault NullsPosition = ""
	NullsFirst   NullsPosition = "first"
	NullsLast    NullsPosition = "last"
)

// OrderTerm is one ORDER BY entry.
type OrderTerm struct {
	Expr      Expr
	Direction SortDirection
	Nulls     NullsPosition
}

// Query is the immutable query tree of spec.md §3: a single FROM
// source, zero or more JOINs, a WHERE clause (as a conjunction split
// across Where and the opaque FnWhere predicates), an optional
// projection (Select / FnSelect), GROUP BY / HAVING, ORDER BY, and
// LIMIT/OFFSET. Construct with the Builder in builder.go; Query
// values are never mutated in place once built (the optimizer in
// ../optimizer produces a new tree rather than editing this one).
type Query struct {
	From Source
	Join []Join

	Where   []Expr
	FnWhere []func(NamespacedRow) bool

	Select   map[string]Expr
	FnSelect func(NamespacedRow) any

	GroupBy []Expr

	Having   []Expr
	FnHaving []func(NamespacedRow) bool

	OrderBy []OrderTerm

	Limit  *int
	Offset *int
}

// NamespacedRow is `{ alias: record }`, per spec.md's glossary: the
// shape a row takes between joins and before final projection.
// SelectResultsKey is the reserved slot (spec.md's "__select_results")
// holding the projected row while the namespaced row underneath it is
// preserved for ORDER BY evaluation.
type NamespacedRow map[string]any

// SelectResultsKey is the reserved key under which a compiled query's
// projected row is stored within its own NamespacedRow, per spec.md
// §3/§4.7.1 step 7.
const SelectResultsKey = "__select_results"

// HasAggregate reports whether expr contains an Agg node anywhere in
// its tree, used to decide implicit GROUP BY (spec.md §4.7.1 step 8)
// and to validate HAVING-without-GROUP-BY (spec.md §4.7.1 step 8,
// §10 property 10).
func HasAggregate(expr Expr) bool {
	switch e := expr.(type) {
	case Agg:
		return true
	case Func:
		for _, a := range e.Args {
			if HasAggregate(a) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// AliasesOf returns the set of source aliases expr's Ref nodes
// reference, used by the optimizer's pushdown classification (spec.md
// §4.6 step 3).
func AliasesOf(expr Expr) map[string]bool {
	out := map[string]bool{}
	collectAliases(expr, out)
	return out
}

func collectAliases(expr Expr, out map[string]bool) {
	switch e := expr.(type) {
	case Ref:
		if len(e.Path) > 0 {
			out[e.Path[0]] = true
		}
	case Func:
		for _, a := range e.Args {
			collectAliases(a, out)
		}
	case Agg:
		collectAliases(e.Arg, out)
	}
}

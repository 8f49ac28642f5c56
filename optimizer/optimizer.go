// Package optimizer implements spec.md §4.6: a single conservative
// predicate-pushdown pass over a query.Query. It never mutates its
// input — every rewrite produces a fresh tree via query.Clone/
// query.Builder, per spec.md §9's "operate on freshly cloned IR trees
// when lifting clauses" guidance, so that a subquery shared by
// multiple outer contexts is never affected by optimizing one of them
// (spec.md §9 "Optimizer recursion on shared subquery IR").
package optimizer

import "github.com/samwillis/reactive-db/query"

// Optimize returns a semantically equivalent query.Query with
// safe single-source WHERE clauses pushed down into their source, per
// spec.md §4.6's five numbered rules. It is idempotent: optimizing an
// already-optimized tree returns an equivalent tree (testable property
// 5 depends on this).
func Optimize(q *query.Query) *query.Query {
	if len(q.Join) == 0 {
		// Rule 1: no joins, nothing to push.
		return q
	}

	out := query.Clone(q)

	clauses := splitConjunctions(q.Where)

	sources := map[string]query.Source{q.From.Alias(): q.From}
	for _, j := range q.Join {
		sources[j.Source.Alias()] = j.Source
	}

	pushed := map[int]bool{}
	pushTargets := map[string][]query.Expr{}

	for i, clause := range clauses {
		aliases := query.AliasesOf(clause)
		if len(aliases) != 1 {
			continue // multi-source: stays in the outer WHERE (rule 3).
		}
		var alias string
		for a := range aliases {
			alias = a
		}
		src, ok := sources[alias]
		if !ok {
			continue
		}
		if !isSafeToOptimize(src) {
			continue // rule 4.
		}
		pushTargets[alias] = append(pushTargets[alias], clause)
		pushed[i] = true
	}

	if len(pushTargets) == 0 {
		out.Where = clauses
		return out
	}

	if extra, ok := pushTargets[q.From.Alias()]; ok {
		out.From = pushInto(q.From, extra)
	}
	for i := range out.Join {
		if extra, ok := pushTargets[out.Join[i].Source.Alias()]; ok {
			out.Join[i].Source = pushInto(out.Join[i].Source, extra)
		}
	}

	var remaining []query.Expr
	for i, c := range clauses {
		if !pushed[i] {
			remaining = append(remaining, c)
		}
	}
	out.Where = remaining

	return out
}

// splitConjunctions implements rule 2: split each root WHERE clause
// that is and(a,b,...) into separate clauses; a non-and clause (in
// particular any or(...)) is kept whole.
func splitConjunctions(clauses []query.Expr) []query.Expr {
	var out []query.Expr
	for _, c := range clauses {
		out = append(out, flattenAnd(c)...)
	}
	return out
}

func flattenAnd(e query.Expr) []query.Expr {
	f, ok := e.(query.Func)
	if !ok || f.Name != "and" {
		return []query.Expr{e}
	}
	var out []query.Expr
	for _, a := range f.Args {
		out = append(out, flattenAnd(a)...)
	}
	return out
}

// isSafeToOptimize implements rule 4: a source may receive pushed
// predicates only if doing so cannot change its own semantics — no
// grouping/aggregation, no ordering combined with limiting, and no
// opaque (fnSelect/fnWhere/fnHaving) escape hatches a pushed predicate
// could not see through.
func isSafeToOptimize(s query.Source) bool {
	qr, ok := s.(query.QueryRef)
	if !ok {
		// A bare CollectionRef has no query-level structure of its own
		// to protect; it is always safe (it becomes a QueryRef with
		// just the pushed where, per rule 5).
		return true
	}
	sub := qr.Query

	if len(sub.GroupBy) > 0 || len(sub.Having) > 0 || len(sub.FnHaving) > 0 {
		return false
	}
	for _, e := range sub.Select {
		if query.HasAggregate(e) {
			return false
		}
	}
	if len(sub.OrderBy) > 0 && (sub.Limit != nil || sub.Offset != nil) {
		return false
	}
	if sub.FnSelect != nil || len(sub.FnWhere) > 0 {
		return false
	}
	return true
}

// pushInto implements rule 5: wraps src in a new QueryRef whose inner
// query gains the pushed clauses (AND-combined if several). If src is
// already a QueryRef, the clauses are appended to its existing WHERE
// instead of nesting another layer.
func pushInto(src query.Source, clauses []query.Expr) query.Source {
	combined := combineAnd(clauses)

	if qr, ok := src.(query.QueryRef); ok {
		inner := query.Clone(qr.Query)
		inner.Where = append(inner.Where, combined)
		return query.QueryRef{Query: inner, AliasName: qr.AliasName}
	}

	cr := src.(query.CollectionRef)
	return query.QueryRef{
		Query:     &query.Query{From: cr, Where: []query.Expr{combined}},
		AliasName: cr.AliasName,
	}
}

func combineAnd(clauses []query.Expr) query.Expr {
	if len(clauses) == 1 {
		return clauses[0]
	}
	return query.Func{Name: "and", Args: clauses}
}

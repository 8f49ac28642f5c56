package query

// Builder assembles a Query via a fluent, chainable API, producing IR
// directly per spec.md §1's non-goal of "SQL parsing from text (the
// builder produces IR directly)". Each method returns a new *Builder
// so that a builder can be branched/reused without aliasing the same
// underlying Query across callers, matching the optimizer's own
// "operate on freshly cloned IR trees" discipline (spec.md §9).
type Builder struct {
	q *Query
}

// From starts a Builder rooted at a collection.
func From(collection, alias string) *Builder {
	return &Builder{q: &Query{From: CollectionRef{Collection: collection, AliasName: alias}}}
}

// FromQuery starts a Builder rooted at a subquery.
func FromQuery(sub *Query, alias string) *Builder {
	return &Builder{q: &Query{From: QueryRef{Query: sub, AliasName: alias}}}
}

func (b *Builder) clone() *Query {
	cp := *b.q
	cp.Join = append([]Join(nil), b.q.Join...)
	cp.Where = append([]Expr(nil), b.q.Where...)
	cp.FnWhere = append([]func(NamespacedRow) bool(nil), b.q.FnWhere...)
	cp.GroupBy = append([]Expr(nil), b.q.GroupBy...)
	cp.Having = append([]Expr(nil), b.q.Having...)
	cp.FnHaving = append([]func(NamespacedRow) bool(nil), b.q.FnHaving...)
	cp.OrderBy = append([]OrderTerm(nil), b.q.OrderBy...)
	if b.q.Select != nil {
		cp.Select = make(map[string]Expr, len(b.q.Select))
		for k, v := range b.q.Select {
			cp.Select[k] = v
		}
	}
	return &cp
}

// Join adds a JOIN clause. kind is normalized: "cross" becomes an
// Inner join against a constant-true predicate (spec.md §4.7.3);
// "outer" is a synonym for Full.
func (b *Builder) Join(source Source, kind JoinKind, left, right Expr) *Builder {
	q := b.clone()
	normKind := kind
	switch kind {
	case JoinOuter:
		normKind = JoinFull
	case JoinCross:
		normKind = JoinInner
		left = Value{Literal: true}
		right = Value{Literal: true}
	}
	q.Join = append(q.Join, Join{Source: source, Kind: normKind, Left: left, Right: right})
	return &Builder{q: q}
}

// Where adds a conjunctive WHERE clause evaluated by the compiled
// expression evaluator.
func (b *Builder) Where(expr Expr) *Builder {
	q := b.clone()
	q.Where = append(q.Where, expr)
	return &Builder{q: q}
}

// WhereFunc adds an opaque (non-IR) WHERE predicate, per spec.md §3's
// fnWhere; it is never a pushdown candidate (spec.md §4.6 rule 4).
func (b *Builder) WhereFunc(pred func(NamespacedRow) bool) *Builder {
	q := b.clone()
	q.FnWhere = append(q.FnWhere, pred)
	return &Builder{q: q}
}

// Select sets the projection map; field order is not significant
// since NamespacedRow/the result row are keyed maps.
func (b *Builder) Select(fields map[string]Expr) *Builder {
	q := b.clone()
	q.Select = fields
	return &Builder{q: q}
}

// SelectFunc sets an opaque projection function, per spec.md §3's
// fnSelect.
func (b *Builder) SelectFunc(fn func(NamespacedRow) any) *Builder {
	q := b.clone()
	q.FnSelect = fn
	return &Builder{q: q}
}

// GroupBy sets the explicit grouping expressions.
func (b *Builder) GroupBy(exprs ...Expr) *Builder {
	q := b.clone()
	q.GroupBy = append(q.GroupBy, exprs...)
	return &Builder{q: q}
}

// Having adds a conjunctive HAVING clause, evaluated on the grouped
// row.
func (b *Builder) Having(expr Expr) *Builder {
	q := b.clone()
	q.Having = append(q.Having, expr)
	return &Builder{q: q}
}

// HavingFunc adds an opaque HAVING predicate.
func (b *Builder) HavingFunc(pred func(NamespacedRow) bool) *Builder {
	q := b.clone()
	q.FnHaving = append(q.FnHaving, pred)
	return &Builder{q: q}
}

// OrderBy appends an ORDER BY term.
func (b *Builder) OrderBy(expr Expr, dir SortDirection, nulls NullsPosition) *Builder {
	q := b.clone()
	q.OrderBy = append(q.OrderBy, OrderTerm{Expr: expr, Direction: dir, Nulls: nulls})
	return &Builder{q: q}
}

// Limit sets LIMIT.
func (b *Builder) Limit(n int) *Builder {
	q := b.clone()
	q.Limit = &n
	return &Builder{q: q}
}

// Offset sets OFFSET.
func (b *Builder) Offset(n int) *Builder {
	q := b.clone()
	q.Offset = &n
	return &Builder{q: q}
}

// Build validates and returns the assembled Query. Per spec.md §4.7.1
// step 9 / testable property 10, LIMIT/OFFSET without ORDER BY and
// HAVING without GROUP BY or any aggregate in SELECT are rejected
// here, at "compile time" in the spec's sense of "before a pipeline is
// ever run".
func (b *Builder) Build() (*Query, error) {
	q := b.clone()

	if (q.Limit != nil || q.Offset != nil) && len(q.OrderBy) == 0 {
		return nil, newError("LIMIT/OFFSET requires ORDER BY")
	}

	if len(q.Having) > 0 || len(q.FnHaving) > 0 {
		if len(q.GroupBy) == 0 && !selectHasAggregate(q) {
			return nil, newError("HAVING requires GROUP BY or an aggregate in SELECT")
		}
	}

	for _, j := range q.Join {
		switch j.Kind {
		case JoinInner, JoinLeft, JoinRight, JoinFull:
		default:
			return nil, newError("unknown join kind %q", j.Kind)
		}
	}

	return q, nil
}

func selectHasAggregate(q *Query) bool {
	for _, e := range q.Select {
		if HasAggregate(e) {
			return true
		}
	}
	return false
}

// Clone returns a deep-enough copy of q suitable for the optimizer to
// mutate without aliasing the caller's tree (spec.md §9: "operate on
// freshly cloned IR trees when lifting clauses"). Join/Where/Select/
// GroupBy/Having/OrderBy slices and maps are copied; Expr/Source leaf
// values are immutable and safely shared.
func Clone(q *Query) *Query {
	cp := *q
	cp.Join = append([]Join(nil), q.Join...)
	cp.Where = append([]Expr(nil), q.Where...)
	cp.FnWhere = append([]func(NamespacedRow) bool(nil), q.FnWhere...)
	cp.GroupBy = append([]Expr(nil), q.GroupBy...)
	cp.Having = append([]Expr(nil), q.Having...)
	cp.FnHaving = append([]func(NamespacedRow) bool(nil), q.FnHaving...)
	cp.OrderBy = append([]OrderTerm(nil), q.OrderBy...)
	if q.Select != nil {
		cp.Select = make(map[string]Expr, len(q.Select))
		for k, v := range q.Select {
			cp.Select[k] = v
		}
	}
	return &cp
}

package optimizer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samwillis/reactive-db/query"
)

func TestOptimizeNoJoinIsNoop(t *testing.T) {
	q, err := query.From("todos", "t").Where(query.Eq(query.Ref{Path: []string{"t", "id"}}, query.Value{Literal: 1})).Build()
	require.NoError(t, err)
	out := Optimize(q)
	require.Same(t, q, out)
}

func TestOptimizePushesSingleSourcePredicate(t *testing.T) {
	q, err := query.From("users", "u").
		Join(query.CollectionRef{Collection: "depts", AliasName: "d"}, query.JoinInner,
			query.Ref{Path: []string{"u", "dept"}}, query.Ref{Path: []string{"d", "id"}}).
		Where(query.Eq(query.Ref{Path: []string{"u", "id"}}, query.Value{Literal: 1})).
		Build()
	require.NoError(t, err)

	out := Optimize(q)
	require.Empty(t, out.Where)

	qr, ok := out.From.(query.QueryRef)
	require.True(t, ok)
	require.Len(t, qr.Query.Where, 1)
}

func TestOptimizeKeepsMultiSourcePredicateInOuterWhere(t *testing.T) {
	q, err := query.From("users", "u").
		Join(query.CollectionRef{Collection: "depts", AliasName: "d"}, query.JoinInner,
			query.Ref{Path: []string{"u", "dept"}}, query.Ref{Path: []string{"d", "id"}}).
		Where(query.Eq(query.Ref{Path: []string{"u", "dept"}}, query.Ref{Path: []string{"d", "id"}})).
		Build()
	require.NoError(t, err)

	out := Optimize(q)
	require.Len(t, out.Where, 1)
	if cr, ok := out.From.(query.CollectionRef); ok {
		require.Equal(t, "users", cr.Collection)
	}
}

func TestOptimizeDoesNotSplitOr(t *testing.T) {
	q, err := query.From("users", "u").
		Join(query.CollectionRef{Collection: "depts", AliasName: "d"}, query.JoinInner,
			query.Ref{Path: []string{"u", "dept"}}, query.Ref{Path: []string{"d", "id"}}).
		Where(query.Or(
			query.Eq(query.Ref{Path: []string{"u", "id"}}, query.Value{Literal: 1}),
			query.Eq(query.Ref{Path: []string{"u", "id"}}, query.Value{Literal: 2}),
		)).
		Build()
	require.NoError(t, err)

	out := Optimize(q)
	qr, ok := out.From.(query.QueryRef)
	require.True(t, ok)
	require.Len(t, qr.Query.Where, 1)
	f := qr.Query.Where[0].(query.Func)
	require.Equal(t, "or", f.Name)
}

func TestOptimizeSkipsUnsafeSource(t *testing.T) {
	limited, err := query.From("depts", "d").
		OrderBy(query.Ref{Path: []string{"d", "id"}}, query.Asc, query.NullsDefault).
		Limit(1).
		Build()
	require.NoError(t, err)

	q, err := query.From("users", "u").
		Join(query.QueryRef{Query: limited, AliasName: "d"}, query.JoinInner,
			query.Ref{Path: []string{"u", "dept"}}, query.Ref{Path: []string{"d", "id"}}).
		Where(query.Eq(query.Ref{Path: []string{"d", "id"}}, query.Value{Literal: 10})).
		Build()
	require.NoError(t, err)

	out := Optimize(q)
	require.Len(t, out.Where, 1, "predicate on a limited/ordered source must not be pushed")
}

func TestOptimizeIsIdempotent(t *testing.T) {
	q, err := query.From("users", "u").
		Join(query.CollectionRef{Collection: "depts", AliasName: "d"}, query.JoinInner,
			query.Ref{Path: []string{"u", "dept"}}, query.Ref{Path: []string{"d", "id"}}).
		Where(query.Eq(query.Ref{Path: []string{"u", "id"}}, query.Value{Literal: 1})).
		Build()
	require.NoError(t, err)

	once := Optimize(q)
	twice := Optimize(once)
	require.Equal(t, once.Where, twice.Where)
}

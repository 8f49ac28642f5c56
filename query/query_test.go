package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvalRefAndFunc(t *testing.T) {
	row := NamespacedRow{
		"u": map[string]any{"id": 1, "dept": 10},
	}
	v, err := Eval(Eq(Ref{Path: []string{"u", "id"}}, Value{Literal: 1}), row)
	require.NoError(t, err)
	require.Equal(t, true, v)
}

func TestEvalLike(t *testing.T) {
	row := NamespacedRow{"u": map[string]any{"name": "alice"}}
	v, err := Eval(Like(Ref{Path: []string{"u", "name"}}, Value{Literal: "al%"}), row)
	require.NoError(t, err)
	require.Equal(t, true, v)
}

func TestBuildRejectsLimitWithoutOrderBy(t *testing.T) {
	_, err := From("todos", "t").Limit(5).Build()
	require.Error(t, err)
}

func TestBuildRejectsHavingWithoutGroupBy(t *testing.T) {
	_, err := From("todos", "t").Having(Eq(Ref{Path: []string{"t", "id"}}, Value{Literal: 1})).Build()
	require.Error(t, err)
}

func TestBuildAllowsHavingWithAggregateSelect(t *testing.T) {
	_, err := From("issues", "i").
		Select(map[string]Expr{"c": Agg{Op: AggCount, Arg: Ref{Path: []string{"i", "id"}}}}).
		Having(Gt(Agg{Op: AggCount, Arg: Ref{Path: []string{"i", "id"}}}, Value{Literal: 0})).
		Build()
	require.NoError(t, err)
}

func TestAliasesOf(t *testing.T) {
	expr := And(
		Eq(Ref{Path: []string{"u", "id"}}, Value{Literal: 1}),
		Eq(Ref{Path: []string{"d", "id"}}, Ref{Path: []string{"u", "dept"}}),
	)
	aliases := AliasesOf(expr)
	require.Len(t, aliases, 2)
	require.True(t, aliases["u"])
	require.True(t, aliases["d"])
}

func TestJoinCrossNormalizesToInner(t *testing.T) {
	q, err := From("a", "a").Join(CollectionRef{Collection: "b", AliasName: "b"}, JoinCross, nil, nil).Build()
	require.NoError(t, err)
	require.Equal(t, JoinInner, q.Join[0].Kind)
}

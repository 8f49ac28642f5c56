package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samwillis/reactive-db/dataflow"
	"github.com/samwillis/reactive-db/key"
	"github.com/samwillis/reactive-db/query"
)

type user struct {
	ID   int
	Dept int
}

type dept struct {
	ID   int
	Name string
}

func TestCompileJoinSelectWhere(t *testing.T) {
	users := dataflow.New()
	depts := dataflow.New()

	c := New(map[string]*dataflow.Stream{"users": users, "depts": depts})

	q, err := query.From("users", "u").
		Join(query.CollectionRef{Collection: "depts", AliasName: "d"}, query.JoinInner,
			query.Ref{Path: []string{"u", "Dept"}}, query.Ref{Path: []string{"d", "ID"}}).
		Where(query.Eq(query.Ref{Path: []string{"u", "ID"}}, query.Value{Literal: 1})).
		Select(map[string]query.Expr{
			"id": query.Ref{Path: []string{"u", "ID"}},
			"n":  query.Ref{Path: []string{"d", "Name"}},
		}).
		Build()
	require.NoError(t, err)

	out, err := c.Compile(q)
	require.NoError(t, err)

	var got []Row
	dataflow.Output(out, func(b dataflow.Batch) {
		for _, r := range b {
			if r.Delta > 0 {
				got = append(got, r.Value.(Row))
			}
		}
	})

	users.Push(dataflow.Batch{
		{Key: key.Int(1), Value: user{ID: 1, Dept: 10}, Delta: 1},
		{Key: key.Int(2), Value: user{ID: 2, Dept: 20}, Delta: 1},
	})
	depts.Push(dataflow.Batch{
		{Key: key.Int(10), Value: dept{ID: 10, Name: "E"}, Delta: 1},
		{Key: key.Int(20), Value: dept{ID: 20, Name: "P"}, Delta: 1},
	})

	require.Len(t, got, 1)
	result := got[0].Value.(map[string]any)
	require.Equal(t, 1, result["id"])
	require.Equal(t, "E", result["n"])
}

func TestCompileGroupByAggregate(t *testing.T) {
	issues := dataflow.New()
	comments := dataflow.New()
	c := New(map[string]*dataflow.Stream{"issues": issues, "comments": comments})

	q, err := query.From("issues", "i").
		Join(query.CollectionRef{Collection: "comments", AliasName: "c"}, query.JoinLeft,
			query.Ref{Path: []string{"i", "ID"}}, query.Ref{Path: []string{"c", "IssueID"}}).
		GroupBy(query.Ref{Path: []string{"i", "ID"}}).
		Select(map[string]query.Expr{
			"id":    query.Ref{Path: []string{"i", "ID"}},
			"count": query.Agg{Op: query.AggCount, Arg: query.Ref{Path: []string{"c", "CommentID"}}},
		}).
		Build()
	require.NoError(t, err)

	out, err := c.Compile(q)
	require.NoError(t, err)

	counts := map[any]int{}
	dataflow.Output(out, func(b dataflow.Batch) {
		for _, r := range b {
			row := r.Value.(Row).Value.(map[string]any)
			if r.Delta > 0 {
				counts[row["id"]] = row["count"].(int)
			}
		}
	})

	issues.Push(dataflow.Batch{{Key: key.Int(1), Value: map[string]any{"ID": 1}, Delta: 1}})

	type comment struct {
		CommentID int
		IssueID   int
	}
	comments.Push(dataflow.Batch{
		{Key: key.Int(901), Value: comment{CommentID: 901, IssueID: 1}, Delta: 1},
		{Key: key.Int(902), Value: comment{CommentID: 902, IssueID: 1}, Delta: 1},
	})

	require.Equal(t, 2, counts[1])

	comments.Push(dataflow.Batch{
		{Key: key.Int(903), Value: comment{CommentID: 903, IssueID: 1}, Delta: 1},
	})
	require.Equal(t, 3, counts[1])
}

func TestCompileOrderByLimit(t *testing.T) {
	todos := dataflow.New()
	c := New(map[string]*dataflow.Stream{"todos": todos})

	q, err := query.From("todos", "t").
		OrderBy(query.Ref{Path: []string{"t", "Priority"}}, query.Desc, query.NullsDefault).
		Limit(2).
		Build()
	require.NoError(t, err)

	out, err := c.Compile(q)
	require.NoError(t, err)

	var visible []int
	dataflow.Output(out, func(b dataflow.Batch) {
		for _, r := range b {
			row := r.Value.(Row)
			p := row.Value.(map[string]any)["Priority"].(int)
			if r.Delta > 0 {
				visible = append(visible, p)
			}
		}
	})

	todos.Push(dataflow.Batch{
		{Key: key.Int(1), Value: map[string]any{"Priority": 1}, Delta: 1},
		{Key: key.Int(2), Value: map[string]any{"Priority": 5}, Delta: 1},
		{Key: key.Int(3), Value: map[string]any{"Priority": 3}, Delta: 1},
	})

	require.ElementsMatch(t, []int{5, 3}, visible)
}

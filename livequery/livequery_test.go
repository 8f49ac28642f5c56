package livequery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samwillis/reactive-db/collection"
	"github.com/samwillis/reactive-db/key"
	"github.com/samwillis/reactive-db/query"
)

type todo struct {
	ID       int
	Title    string
	Priority int
}

func newTodos(t *testing.T) *collection.Collection[any] {
	t.Helper()
	return collection.New(collection.Config[any]{
		ID:        "todos",
		GetKey:    func(v any) key.Key { return key.Int(int64(v.(todo).ID)) },
		StartSync: true,
	})
}

func TestLiveQueryTracksInsertsAndUpdates(t *testing.T) {
	// todos has no mutation handlers, so its writes go through an
	// ambient transaction that stays pending for the whole test.
	ctx := collection.WithTransaction(context.Background(), collection.NewTestTransactor("lq-test"))
	todos := newTodos(t)

	_, err := todos.Insert(ctx, todo{ID: 1, Title: "a", Priority: 1}, true, nil)
	require.NoError(t, err)

	q, err := query.From("todos", "t").
		Where(query.Gt(query.Ref{Path: []string{"t", "Priority"}}, query.Value{Literal: 0})).
		Build()
	require.NoError(t, err)

	lq := New(q, map[string]*collection.Collection[any]{"todos": todos}, Options{ID: "active-todos"})
	require.NoError(t, lq.Preload(ctx))

	require.Equal(t, 1, lq.Size())

	_, err = todos.Insert(ctx, todo{ID: 2, Title: "b", Priority: 2}, true, nil)
	require.NoError(t, err)
	require.Equal(t, 2, lq.Size())

	_, err = todos.Update(ctx, key.Int(1), true, nil, func(draft *any) {
		v := (*draft).(todo)
		v.Title = "a-renamed"
		*draft = v
	})
	require.NoError(t, err)
	require.Equal(t, 2, lq.Size())

	_, err = todos.Delete(ctx, key.Int(1), true, nil)
	require.NoError(t, err)
	require.Equal(t, 1, lq.Size())
}

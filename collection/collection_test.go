package collection_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/samwillis/reactive-db/collection"
	"github.com/samwillis/reactive-db/key"
)

type todo struct {
	ID   int
	Text string
	Done bool
}

func getKey(t todo) key.Key { return key.Int(int64(t.ID)) }

func newTestCollection(t *testing.T) *collection.Collection[todo] {
	t.Helper()
	scCh := make(chan *collection.SyncContext[todo], 1)
	var sc *collection.SyncContext[todo]
	// The handlers confirm each write back through the sync contract:
	// a completed transaction leaves no optimistic overlay, so a record
	// stays visible only once sync has written it.
	confirm := func(mc collection.MutationContext[todo]) error {
		sc.Begin()
		for _, m := range mc.Mutations {
			if m.Type == collection.Delete {
				sc.Write(collection.SyncWrite[todo]{Type: collection.Delete, Value: m.Original.(todo)})
			} else {
				sc.Write(collection.SyncWrite[todo]{Type: m.Type, Value: m.Modified.(todo)})
			}
		}
		sc.Commit()
		return nil
	}
	cfg := collection.Config[todo]{
		ID:     "todos",
		GetKey: getKey,
		Sync: func(ctx context.Context, s *collection.SyncContext[todo]) (func(), error) {
			scCh <- s
			return func() {}, nil
		},
		StartSync:     true,
		RowUpdateMode: collection.RowUpdateFull,
		OnInsert:      confirm,
		OnUpdate:      confirm,
		OnDelete:      confirm,
	}
	c := collection.New(cfg)
	select {
	case sc = <-scCh:
	case <-time.After(time.Second):
		t.Fatal("sync driver never started")
	}
	return c
}

func TestInsertIsVisibleImmediately(t *testing.T) {
	c := newTestCollection(t)
	_, err := c.Insert(context.Background(), todo{ID: 1, Text: "a"}, true, nil)
	require.NoError(t, err)

	v, ok := c.Get(key.Int(1))
	require.True(t, ok)
	require.Equal(t, "a", v.Text)
}

func TestInsertDuplicateKeyFails(t *testing.T) {
	c := newTestCollection(t)
	_, err := c.Insert(context.Background(), todo{ID: 1, Text: "a"}, true, nil)
	require.NoError(t, err)

	_, err = c.Insert(context.Background(), todo{ID: 1, Text: "b"}, true, nil)
	require.Error(t, err)
	require.IsType(t, &collection.DuplicateKey{}, err)
}

func TestUpdateChangingKeyFails(t *testing.T) {
	c := newTestCollection(t)
	_, err := c.Insert(context.Background(), todo{ID: 1, Text: "a"}, true, nil)
	require.NoError(t, err)

	_, err = c.Update(context.Background(), key.Int(1), true, nil, func(d *todo) { d.ID = 2 })
	require.Error(t, err)
	require.IsType(t, &collection.KeyChanged{}, err)
}

func TestDeleteRemovesKey(t *testing.T) {
	c := newTestCollection(t)
	_, err := c.Insert(context.Background(), todo{ID: 1, Text: "a"}, true, nil)
	require.NoError(t, err)

	_, err = c.Delete(context.Background(), key.Int(1), true, nil)
	require.NoError(t, err)
	require.False(t, c.Has(key.Int(1)))
}

func TestSubscribeReceivesInitialStateThenChanges(t *testing.T) {
	c := newTestCollection(t)
	_, err := c.Insert(context.Background(), todo{ID: 1, Text: "a"}, true, nil)
	require.NoError(t, err)

	var batches [][]collection.ChangeMessage[todo]
	unsub := c.Subscribe(func(b []collection.ChangeMessage[todo]) {
		batches = append(batches, b)
	}, true, nil)
	defer unsub()

	require.Len(t, batches, 1)
	require.Equal(t, collection.Insert, batches[0][0].Type)

	_, err = c.Insert(context.Background(), todo{ID: 2, Text: "b"}, true, nil)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	require.Equal(t, collection.Insert, batches[1][0].Type)
	require.Equal(t, 2, batches[1][0].Value.ID)
}

func TestFilteredSubscriptionOnlySeesMatching(t *testing.T) {
	c := newTestCollection(t)
	var batches [][]collection.ChangeMessage[todo]
	unsub := c.Subscribe(func(b []collection.ChangeMessage[todo]) {
		batches = append(batches, b)
	}, false, func(tv todo) bool { return tv.Done })
	defer unsub()

	_, err := c.Insert(context.Background(), todo{ID: 1, Text: "a", Done: false}, true, nil)
	require.NoError(t, err)
	require.Empty(t, batches)

	_, err = c.Insert(context.Background(), todo{ID: 2, Text: "b", Done: true}, true, nil)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Equal(t, 2, batches[0][0].Value.ID)
}

func TestCreateIndexRangeQuery(t *testing.T) {
	c := newTestCollection(t)
	for i := 1; i <= 5; i++ {
		_, err := c.Insert(context.Background(), todo{ID: i, Text: "x"}, true, nil)
		require.NoError(t, err)
	}

	ix := c.CreateIndex("by_id", func(tv todo) any { return tv.ID })
	ks := ix.Range(collection.OpGte, 3)
	require.Len(t, ks, 3)
}

func TestAmbientTransactionEnrollsInstead(t *testing.T) {
	c := newTestCollection(t)

	dt := collection.NewTestTransactor("tx-1")
	ctx := collection.WithTransaction(context.Background(), dt)

	got, err := c.Insert(ctx, todo{ID: 1, Text: "a"}, true, nil)
	require.NoError(t, err)
	require.Equal(t, dt, got)
	require.True(t, c.Has(key.Int(1)))
}

func TestSyncCommitReconciliation(t *testing.T) {
	scCh := make(chan *collection.SyncContext[todo], 1)
	cfg := collection.Config[todo]{
		ID:     "synced",
		GetKey: getKey,
		Sync: func(ctx context.Context, s *collection.SyncContext[todo]) (func(), error) {
			scCh <- s
			<-ctx.Done()
			return func() {}, nil
		},
		StartSync: true,
	}
	c := collection.New(cfg)

	var sc *collection.SyncContext[todo]
	select {
	case sc = <-scCh:
	case <-time.After(time.Second):
		t.Fatal("sync driver never started")
	}

	sc.Begin()
	sc.Write(collection.SyncWrite[todo]{Type: collection.Insert, Value: todo{ID: 1, Text: "a"}})
	sc.Commit()

	require.Eventually(t, func() bool {
		v, ok := c.Get(key.Int(1))
		return ok && v.Text == "a"
	}, time.Second, time.Millisecond)

	require.Equal(t, collection.StatusReady, c.Status())
}

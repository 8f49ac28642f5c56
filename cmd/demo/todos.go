package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/samwillis/reactive-db/collection"
	"github.com/samwillis/reactive-db/key"
)

// Todo is the seed record type this demo streams through a collection
// and a live query. It is stored as `any` in the source collection
// (livequery.New's sources map requires *collection.Collection[any])
// and read back with a type assertion inside query evaluation, the
// same reflection-based field access query/eval.go already gives any
// struct value.
type Todo struct {
	ID       int64
	Title    string
	Priority int64
	Done     bool
}

func todoKey(t any) key.Key {
	return key.Int(t.(Todo).ID)
}

// newTodosCollection builds the seed collection: an initial batch of
// todos followed by a steady trickle of inserts, priority bumps, and
// occasional deletes, so that a live query subscribed against it has
// something to show a diff stream for.
func newTodosCollection(mutateInterval time.Duration) *collection.Collection[any] {
	cfg := collection.Config[any]{
		ID:        "todos",
		GetKey:    todoKey,
		StartSync: true,
		Sync:      newTodosSync(mutateInterval),
	}
	return collection.New(cfg)
}

func newTodosSync(mutateInterval time.Duration) collection.SyncFunc[any] {
	seed := []Todo{
		{ID: 1, Title: "write design doc", Priority: 2},
		{ID: 2, Title: "review PR", Priority: 5},
		{ID: 3, Title: "fix flaky test", Priority: 8},
		{ID: 4, Title: "update dependencies", Priority: 1},
	}

	return func(ctx context.Context, sc *collection.SyncContext[any]) (func(), error) {
		sc.Begin()
		for _, t := range seed {
			sc.Write(collection.SyncWrite[any]{Type: collection.Insert, Value: t})
		}
		sc.Commit()

		stop := make(chan struct{})
		go func() {
			rnd := rand.New(rand.NewSource(1))
			nextID := int64(len(seed) + 1)
			live := append([]Todo(nil), seed...)

			ticker := time.NewTicker(mutateInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					close(stop)
					return
				case <-ticker.C:
					mutateOnce(sc, rnd, &live, &nextID)
				}
			}
		}()

		return func() { <-stop }, nil
	}
}

// mutateOnce applies one random change to live, mirroring it into sc,
// so the live query's diff stream has a steady, visible trickle of
// inserts/updates/deletes to print.
func mutateOnce(sc *collection.SyncContext[any], rnd *rand.Rand, live *[]Todo, nextID *int64) {
	sc.Begin()
	defer sc.Commit()

	switch {
	case len(*live) == 0 || rnd.Intn(3) == 0:
		t := Todo{ID: *nextID, Title: "task", Priority: int64(rnd.Intn(10))}
		*nextID++
		*live = append(*live, t)
		sc.Write(collection.SyncWrite[any]{Type: collection.Insert, Value: t})
	case rnd.Intn(2) == 0:
		i := rnd.Intn(len(*live))
		prev := (*live)[i]
		updated := prev
		updated.Priority = int64(rnd.Intn(10))
		(*live)[i] = updated
		sc.Write(collection.SyncWrite[any]{
			Type:     collection.Update,
			Value:    updated,
			Previous: prev,
			HasPrev:  true,
		})
	default:
		i := rnd.Intn(len(*live))
		removed := (*live)[i]
		*live = append((*live)[:i], (*live)[i+1:]...)
		sc.Write(collection.SyncWrite[any]{Type: collection.Delete, Value: removed})
	}
}

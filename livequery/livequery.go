// Package livequery implements spec.md §4.8: a live query is itself a
// collection whose sync driver subscribes to every referenced source
// collection, feeds a compiled dataflow pipeline, and drains the
// pipeline's output back into the live collection's own sync contract.
// It is grounded on the same subscribe-and-feed shape as
// internal/source/logical/serial_events.go's consumer loop, here
// driving an in-process dataflow.Stream instead of a downstream SQL
// apply loop.
package livequery

import (
	"context"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/samwillis/reactive-db/collection"
	"github.com/samwillis/reactive-db/compiler"
	"github.com/samwillis/reactive-db/dataflow"
	"github.com/samwillis/reactive-db/key"
	"github.com/samwillis/reactive-db/query"
)

// Options configures the collection a live query materializes into,
// per spec.md §4.8/§6's createLiveQueryCollection(options).
type Options struct {
	ID     string
	GCTime time.Duration
}

// New builds a collection.Collection[compiler.Row] that continuously
// maintains def's result set. sources must contain, keyed by
// collection name, every collection def's FROM/JOIN clauses (including
// nested subqueries) reference.
func New(def *query.Query, sources map[string]*collection.Collection[any], opts Options) *collection.Collection[compiler.Row] {
	cfg := collection.Config[compiler.Row]{
		ID:            opts.ID,
		GetKey:        compiler.GetKey,
		RowUpdateMode: collection.RowUpdateFull,
		GCTime:        opts.GCTime,
		Sync:          newSyncFunc(def, sources),
	}
	return collection.New(cfg)
}

// newSyncFunc implements spec.md §4.8's three-step sync driver.
func newSyncFunc(def *query.Query, sources map[string]*collection.Collection[any]) collection.SyncFunc[compiler.Row] {
	return func(ctx context.Context, sc *collection.SyncContext[compiler.Row]) (func(), error) {
		names := collectionNames(def)

		inputs := make(map[string]*dataflow.Stream, len(names))
		srcCollections := make([]*collection.Collection[any], 0, len(names))
		for _, name := range names {
			src, ok := sources[name]
			if !ok {
				return nil, newError("no source collection registered for %q", name)
			}
			inputs[name] = dataflow.New()
			srcCollections = append(srcCollections, src)
		}

		c := compiler.New(inputs)
		out, err := c.Compile(def)
		if err != nil {
			return nil, err
		}

		present := mapset.NewThreadUnsafeSet[key.Key]()
		out.Subscribe(func(b dataflow.Batch) {
			applyBatch(sc, b, present)
		})

		// Subscribing to each source (with its current visible state
		// delivered synchronously) drives the pipeline's first batch
		// through to applyBatch above, since Stream has no buffering.
		var unsubs []func()
		for i, name := range names {
			in := inputs[name]
			src := srcCollections[i]
			unsubs = append(unsubs, src.Subscribe(func(events []collection.ChangeMessage[any]) {
				in.Push(toBatch(events))
			}, true, nil))
		}

		cleanup := func() {
			for _, u := range unsubs {
				u()
			}
		}
		return cleanup, nil
	}
}

// applyBatch implements spec.md §4.8 step 2's multiplicity mapping: net
// +1 on a key not yet materialized is an insert, net +1 on a key
// already materialized is an update, net −1 is a delete, net 0 (not
// observable here since every operator already emits minimal diffs) is
// no event. present tracks which keys this sync driver has materialized
// so far, since the live collection itself is not yet constructed when
// this closure is built.
func applyBatch(sc *collection.SyncContext[compiler.Row], b dataflow.Batch, present mapset.Set[key.Key]) {
	if len(b) == 0 {
		return
	}
	sc.Begin()
	for _, r := range b {
		row, ok := r.Value.(compiler.Row)
		if !ok {
			continue
		}
		switch {
		case r.Delta > 0:
			if present.Contains(r.Key) {
				sc.Write(collection.SyncWrite[compiler.Row]{Type: collection.Update, Value: row})
			} else {
				sc.Write(collection.SyncWrite[compiler.Row]{Type: collection.Insert, Value: row})
				present.Add(r.Key)
			}
		case r.Delta < 0:
			sc.Write(collection.SyncWrite[compiler.Row]{Type: collection.Delete, Value: row})
			present.Remove(r.Key)
		}
	}
	sc.Commit()
}

// toBatch turns one collection's ChangeMessage batch into dataflow
// Records: an update retracts its previous value and inserts its new
// one, since the differential-dataflow operators downstream only ever
// see add/retract multiplicities, never an in-place replace.
func toBatch(events []collection.ChangeMessage[any]) dataflow.Batch {
	var out dataflow.Batch
	for _, e := range events {
		switch e.Type {
		case collection.Insert:
			out = append(out, dataflow.Record{Key: e.Key, Value: e.Value, Delta: 1})
		case collection.Update:
			if e.HasPrev {
				out = append(out, dataflow.Record{Key: e.Key, Value: e.Previous, Delta: -1})
			}
			out = append(out, dataflow.Record{Key: e.Key, Value: e.Value, Delta: 1})
		case collection.Delete:
			out = append(out, dataflow.Record{Key: e.Key, Value: e.Previous, Delta: -1})
		}
	}
	return out
}

// collectionNames returns every distinct collection name def's FROM and
// JOIN clauses reference, recursing into QueryRef subqueries.
func collectionNames(q *query.Query) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	var walk func(q *query.Query)
	var visitSource func(src query.Source)
	visitSource = func(src query.Source) {
		switch s := src.(type) {
		case query.CollectionRef:
			seen.Add(s.Collection)
		case query.QueryRef:
			walk(s.Query)
		}
	}
	walk = func(q *query.Query) {
		visitSource(q.From)
		for _, j := range q.Join {
			visitSource(j.Source)
		}
	}
	walk(q)

	return seen.ToSlice()
}

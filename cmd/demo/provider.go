package main

import (
	"context"

	"github.com/google/wire"
	"github.com/pkg/errors"

	"github.com/samwillis/reactive-db/collection"
	"github.com/samwillis/reactive-db/compiler"
	"github.com/samwillis/reactive-db/internal/util/diag"
	"github.com/samwillis/reactive-db/livequery"
	"github.com/samwillis/reactive-db/query"
)

// Set is used by Wire.
var Set = wire.NewSet(
	ProvideDiagnostics,
	ProvideTodosCollection,
	ProvideActiveTodosQuery,
	ProvideLiveQuery,
	ProvidePrinter,
)

// ProvideDiagnostics builds the process-local health-check registry,
// the way every ProvideXxxPool provider in internal/source/logical
// registers itself against a shared *diag.Diagnostics.
func ProvideDiagnostics() *diag.Diagnostics {
	return diag.New()
}

// ProvideTodosCollection builds the seed source collection and
// registers a liveness check against it.
func ProvideTodosCollection(config *Config, diagnostics *diag.Diagnostics) (*collection.Collection[any], error) {
	c := newTodosCollection(config.MutateInterval)
	err := diagnostics.Register("todos", func(ctx context.Context) error {
		if c.Size() == 0 {
			return errors.New("todos collection has no rows")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ProvideActiveTodosQuery builds the IR for "every todo with a
// priority greater than config.PriorityThreshold", via the builder
// rather than parsed SQL text, per spec.md §1's non-goals.
func ProvideActiveTodosQuery(config *Config) (*query.Query, error) {
	return query.From("todos", "t").
		Where(query.Gt(
			query.Ref{Path: []string{"t", "Priority"}},
			query.Value{Literal: config.PriorityThreshold},
		)).
		OrderBy(query.Ref{Path: []string{"t", "Priority"}}, query.Desc, query.NullsLast).
		Build()
}

// ProvideLiveQuery wires the seed collection into a live query
// collection, per livequery.New's contract.
func ProvideLiveQuery(
	ctx context.Context, def *query.Query, todos *collection.Collection[any], config *Config,
) *collection.Collection[compiler.Row] {
	sources := map[string]*collection.Collection[any]{"todos": todos}
	return livequery.New(def, sources, livequery.Options{
		ID:     "active-todos",
		GCTime: config.GCTime,
	})
}

// ProvidePrinter returns the component that subscribes to the live
// query and prints each diff batch, exercising the whole stack end to
// end, per SPEC_FULL.md's description of this command.
func ProvidePrinter(lq *collection.Collection[compiler.Row]) *Printer {
	return &Printer{lq: lq}
}

package collection

import (
	"context"
	"time"

	"github.com/samwillis/reactive-db/key"
)

// RowUpdateMode controls how an update's changes are merged into
// syncedData at commit time (spec.md §4.3.3 step 2).
type RowUpdateMode int

const (
	// RowUpdatePartial merges only the fields present in a write's
	// Value onto the existing row.
	RowUpdatePartial RowUpdateMode = iota
	// RowUpdateFull replaces the entire row with the write's Value.
	RowUpdateFull
)

// Validator synchronously validates (and may normalize) a record
// before it is admitted by insert/update. Per spec.md §4.3.6, an
// async-looking validator is a usage error; Go's synchronous Validate
// signature rules that out by construction.
type Validator[T any] interface {
	Validate(T) (T, error)
}

// MutationContext is passed to OnInsert/OnUpdate/OnDelete handlers,
// per spec.md §4.4.4/§8 ("handlers... where context includes the
// transaction and the collection reference").
type MutationContext[T any] struct {
	Context      context.Context
	CollectionID string
	Transaction  Transactor
	Mutations    []PendingMutation
}

// MutationHandler is invoked to actually persist a direct
// insert/update/delete when no ambient transaction's mutationFn will
// do so. A non-nil return fails the owning transaction.
type MutationHandler[T any] func(MutationContext[T]) error

// SyncContext is the set of callbacks a SyncFunc uses to deliver
// change batches into the collection's store, grounded in cdc-sink's
// logical.Events{OnBegin,OnData,OnCommit,OnRollback} contract
// (internal/source/logical/serial_events.go) generalized from SQL
// mutation batches to arbitrary typed records.
type SyncContext[T any] struct {
	Begin    func()
	Write    func(SyncWrite[T])
	Commit   func()
	Rollback func()
}

// SyncFunc is a caller-supplied driver, activated once a collection
// transitions out of idle/cleaned-up. It should run until ctx is
// canceled, and may return a cleanup function that is invoked exactly
// once on teardown (spec.md §4.3.2).
type SyncFunc[T any] func(ctx context.Context, sc *SyncContext[T]) (cleanup func(), err error)

// Config configures a Collection, mirroring spec.md §4.3.1's
// `{ id, getKey, compare?, schema?, onInsert?, onUpdate?, onDelete?,
// sync, gcTime?, startSync? }`.
type Config[T any] struct {
	ID      string
	GetKey  func(T) key.Key
	Compare func(a, b T) int

	Schema Validator[T]

	OnInsert MutationHandler[T]
	OnUpdate MutationHandler[T]
	OnDelete MutationHandler[T]

	Sync SyncFunc[T]

	RowUpdateMode RowUpdateMode

	// GCTime is how long the collection waits with zero subscribers
	// before transitioning to cleaned-up. Defaults to 300s.
	GCTime time.Duration

	// StartSync, if true, activates the sync driver immediately on
	// New rather than waiting for the first subscriber/preload.
	StartSync bool
}

func (c Config[T]) gcTime() time.Duration {
	if c.GCTime <= 0 {
		return 300 * time.Second
	}
	return c.GCTime
}

package collection

import (
	"context"
	"time"

	"github.com/samwillis/reactive-db/key"
)

// TxnStatus is the Transaction state machine from spec.md §4.4.3:
// pending -> persisting -> completed|failed, no other transitions.
type TxnStatus int

const (
	TxnPending TxnStatus = iota
	TxnPersisting
	TxnCompleted
	TxnFailed
)

func (s TxnStatus) String() string {
	switch s {
	case TxnPending:
		return "pending"
	case TxnPersisting:
		return "persisting"
	case TxnCompleted:
		return "completed"
	case TxnFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PendingMutation records one optimistic mutation enrolled in a
// transaction, per spec.md §4.2/§4.4.1: "{ mutationId, type, key,
// original, modified, changes, collectionRef, optimistic, metadata }".
// Original/Modified are stored as `any` since a single transaction may
// span multiple collections with different record types.
type PendingMutation struct {
	MutationID   string
	Type         ChangeType
	Key          key.Key
	Original     any
	Modified     any
	Changes      map[string]any
	CollectionID string
	Optimistic   bool
	Metadata     map[string]any
	CreatedAt    time.Time
}

// Participant is the capability a Transactor needs back from a
// collection it has enrolled a mutation from, so that once the
// transaction reaches completed|failed it can tell every collection it
// touched to drop its bookkeeping and recompute optimistic state
// (spec.md §4.4.2's "dropped from every participating collection's
// registry"). *Collection[T] implements this for any T.
type Participant interface {
	ReleaseTransaction(t Transactor)
}

// Transactor is the capability a collection needs from whatever is
// acting as the ambient transaction for a mutation: somewhere to
// enroll the PendingMutation (along with the enrolling collection, so
// it can be released later), and a status/result it can be awaited on.
// txn.Transaction (the general-purpose, multi-collection manager built
// on top of this package) implements Transactor; collection also uses
// a minimal internal implementation for the auto-transaction/
// auto-commit direct-operation path of spec.md §4.4.4.
type Transactor interface {
	ID() string
	Status() TxnStatus
	Enroll(m PendingMutation, p Participant)
	Done() <-chan struct{}
	Err() error
}

type ambientKey struct{}

// WithTransaction marks t as the ambient transaction for ctx, so that
// collection operations performed while ctx is threaded through them
// enroll in t instead of auto-creating one (spec.md §4.4.2 "mutate(fn)
// ... marking itself as the ambient transaction").
func WithTransaction(ctx context.Context, t Transactor) context.Context {
	return context.WithValue(ctx, ambientKey{}, t)
}

// TransactionFrom returns the ambient transaction carried by ctx, if
// any.
func TransactionFrom(ctx context.Context) (Transactor, bool) {
	t, ok := ctx.Value(ambientKey{}).(Transactor)
	return t, ok
}

// directTxn is the collection package's own minimal Transactor,
// used only for the direct-operation auto-transaction/auto-commit
// path (spec.md §4.4.4) when no ambient transaction exists. It is not
// exported: callers that want the full createTransaction/mutate/
// commit contract of spec.md §4.4.2 use the txn package, which wraps
// this same Transactor interface with richer bookkeeping.
type directTxn struct {
	id     string
	status TxnStatus
	muts   []PendingMutation
	done   chan struct{}
	err    error
}

func newDirectTxn(id string) *directTxn {
	return &directTxn{id: id, status: TxnPending, done: make(chan struct{})}
}

func (t *directTxn) ID() string       { return t.id }
func (t *directTxn) Status() TxnStatus { return t.status }
func (t *directTxn) Done() <-chan struct{} { return t.done }
func (t *directTxn) Err() error        { return t.err }

// Enroll ignores p: a directTxn is scoped to exactly one auto-created
// mutation on exactly one collection, which releases it synchronously
// via completeTransaction right after invoking its handler.
func (t *directTxn) Enroll(m PendingMutation, p Participant) { t.muts = append(t.muts, m) }

func (t *directTxn) finish(err error) {
	if err != nil {
		t.status = TxnFailed
		t.err = err
	} else {
		t.status = TxnCompleted
	}
	close(t.done)
}

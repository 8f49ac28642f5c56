// Package txn implements the transaction manager of spec.md §4.4: a
// Manager that creates Transactions coordinating optimistic mutations
// across one or more collections, driving a caller-supplied
// mutationFn and tracking the pending -> persisting -> completed|failed
// state machine. It is grounded in cdc-sink's batch-commit contract
// (internal/source/logical/serial_events.go's OnBegin/OnCommit pair)
// generalized from a single SQL apply-loop to an explicit,
// caller-driven transaction object spanning arbitrary collections.
package txn

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/samwillis/reactive-db/collection"
	"github.com/samwillis/reactive-db/internal/util/hlc"
	"github.com/samwillis/reactive-db/internal/util/notify"
	"github.com/samwillis/reactive-db/orderedmap"
)

// MutationFunc persists a transaction's accumulated mutations. Its
// error, if any, fails the transaction (spec.md §4.4.2).
type MutationFunc func(ctx context.Context, t *Transaction) error

// Options configures a Transaction at creation, per spec.md §4.4.2
// `createTransaction({ mutationFn, autoCommit? })`.
type Options struct {
	MutationFn MutationFunc
	AutoCommit bool
}

// Transaction coordinates a sequence of collection.PendingMutation
// across any number of collections, per spec.md §4.4. It implements
// collection.Transactor so collection operations performed with it set
// as the ambient transaction (via collection.WithTransaction) enroll in
// it instead of auto-creating their own.
type Transaction struct {
	id        string
	createdAt hlc.Time

	mu           sync.Mutex
	statusVar    notify.Var[collection.TxnStatus]
	mutations    []collection.PendingMutation
	participants map[string]collection.Participant

	mutationFn MutationFunc
	autoCommit bool

	done chan struct{}
	err  error
}

func newTransaction(opts Options, createdAt hlc.Time) *Transaction {
	return &Transaction{
		id:           uuid.NewString(),
		createdAt:    createdAt,
		participants: map[string]collection.Participant{},
		mutationFn:   opts.MutationFn,
		autoCommit:   opts.AutoCommit,
		done:         make(chan struct{}),
	}
}

// ID implements collection.Transactor.
func (t *Transaction) ID() string { return t.id }

// CreatedAt is this transaction's creation timestamp, used to order
// the Manager's registry.
func (t *Transaction) CreatedAt() hlc.Time { return t.createdAt }

// Status implements collection.Transactor. It is backed by a
// notify.Var so callers that want to react to a transaction's status
// changing (rather than poll Status()) can use StatusVar instead.
func (t *Transaction) Status() collection.TxnStatus {
	return t.statusVar.Peek()
}

// StatusVar exposes this transaction's current-status signal, the
// ambient-transaction broadcast point referenced in spec.md §4.4.3.
func (t *Transaction) StatusVar() *notify.Var[collection.TxnStatus] {
	return &t.statusVar
}

// Enroll implements collection.Transactor: it appends the mutation to
// this transaction's ordered list and remembers p as the participant
// to release when the transaction completes.
func (t *Transaction) Enroll(m collection.PendingMutation, p collection.Participant) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mutations = append(t.mutations, m)
	if p != nil {
		t.participants[m.CollectionID] = p
	}
	if t.autoCommit && t.statusVar.Peek() == collection.TxnPending {
		go t.commitLocked()
	}
}

// ApplyMutations appends pre-built mutations directly, per spec.md
// §4.4.2 `applyMutations(muts)`, stamping CreatedAt/MutationID for any
// that lack one.
func (t *Transaction) ApplyMutations(muts []collection.PendingMutation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range muts {
		if m.MutationID == "" {
			m.MutationID = uuid.NewString()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		t.mutations = append(t.mutations, m)
	}
}

// Mutations returns a copy of this transaction's accumulated mutations
// in enrollment order.
func (t *Transaction) Mutations() []collection.PendingMutation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]collection.PendingMutation, len(t.mutations))
	copy(out, t.mutations)
	return out
}

// Done implements collection.Transactor.
func (t *Transaction) Done() <-chan struct{} { return t.done }

// Err implements collection.Transactor.
func (t *Transaction) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Mutate runs fn with this transaction set as ctx's ambient
// transaction, per spec.md §4.4.2: collection operations performed
// inside fn enroll in t instead of auto-creating their own.
func (t *Transaction) Mutate(ctx context.Context, fn func(ctx context.Context)) {
	fn(collection.WithTransaction(ctx, t))
}

// Commit transitions pending -> persisting, invokes mutationFn, and
// on completion transitions to completed or failed, releasing every
// participating collection (spec.md §4.4.2/§4.4.3). Calling Commit
// more than once is a no-op after the first.
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	if t.statusVar.Peek() != collection.TxnPending {
		err := t.err
		t.mu.Unlock()
		return err
	}
	t.statusVar.Set(collection.TxnPersisting)
	fn := t.mutationFn
	t.mu.Unlock()

	var err error
	if fn != nil {
		err = fn(ctx, t)
	}

	t.mu.Lock()
	if err != nil {
		t.statusVar.Set(collection.TxnFailed)
		t.err = errors.Wrap(err, "transaction mutationFn failed")
	} else {
		t.statusVar.Set(collection.TxnCompleted)
	}
	participants := make([]collection.Participant, 0, len(t.participants))
	for _, p := range t.participants {
		participants = append(participants, p)
	}
	close(t.done)
	t.mu.Unlock()

	for _, p := range participants {
		p.ReleaseTransaction(t)
	}
	return t.err
}

func (t *Transaction) commitLocked() {
	_ = t.Commit(context.Background())
}

// IsPersisted blocks until the transaction reaches completed or
// failed, returning the failure error if any (spec.md §4.4.2
// "isPersisted awaitable").
func (t *Transaction) IsPersisted(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Manager creates and tracks Transactions, keyed by (createdAt, id)
// in an orderedmap.Map so the active set can be iterated in creation
// order (spec.md §4.4.1/§3 "Transaction" glossary entry).
type Manager struct {
	mu    sync.Mutex
	clock hlc.Clock
	byID  map[string]*Transaction
	order *orderedmap.Map[orderKey, *Transaction]
}

type orderKey struct {
	createdAt hlc.Time
	id        string
}

func orderKeyLess(a, b orderKey) bool {
	if c := hlc.Compare(a.createdAt, b.createdAt); c != 0 {
		return c < 0
	}
	return a.id < b.id
}

// NewManager constructs an empty transaction registry.
func NewManager() *Manager {
	return &Manager{
		byID:  map[string]*Transaction{},
		order: orderedmap.New[orderKey, *Transaction](orderKeyLess),
	}
}

// CreateTransaction registers and returns a new pending Transaction.
// Its creation order is stamped from the Manager's own hlc.Clock, so
// concurrent CreateTransaction calls racing on the wall clock still
// get a strict, deterministic order (spec.md §4.4.1 "Transaction"
// glossary entry).
func (m *Manager) CreateTransaction(opts Options) *Transaction {
	m.mu.Lock()
	createdAt := m.clock.Next(time.Now().UnixNano())
	t := newTransaction(opts, createdAt)
	m.byID[t.id] = t
	m.order.Set(orderKey{createdAt: t.createdAt, id: t.id}, t)
	m.mu.Unlock()

	go m.reap(t)
	return t
}

// reap drops t from the registry once it completes or fails, per
// spec.md §4.3.1 "Transactions live only until completed or failed,
// then are dropped from the active list."
func (m *Manager) reap(t *Transaction) {
	<-t.Done()
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, t.id)
	m.order.Delete(orderKey{createdAt: t.createdAt, id: t.id})
}

// Get returns the still-active transaction with the given ID, if any.
func (m *Manager) Get(id string) (*Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	return t, ok
}

// Active returns every still-pending/persisting transaction, ordered
// by creation time.
func (m *Manager) Active() []*Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Values()
}

// CommitAll commits every currently active transaction concurrently,
// for a caller that wants to flush the whole pending set (e.g. before
// a clean shutdown) rather than commit each one individually. It
// returns the first error encountered, per errgroup's usual semantics,
// but still waits for every commit to finish before returning.
func (m *Manager) CommitAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range m.Active() {
		t := t
		g.Go(func() error { return t.Commit(ctx) })
	}
	return g.Wait()
}

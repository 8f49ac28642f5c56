// Package collection implements the keyed, mutable record store with
// layered optimistic overlay, subscriber notification, and ordered
// secondary indexes described in spec.md §4.3. Its sync contract
// (begin/write/commit, a stored cleanup func) is grounded in
// cdc-sink's internal/source/logical.Events/Batch pair
// (serial_events.go, chaos.go), generalized from SQL row mutations to
// an arbitrary typed record T.
package collection

import (
	"context"
	"sort"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/samwillis/reactive-db/internal/util/hlc"
	"github.com/samwillis/reactive-db/internal/util/notify"
	"github.com/samwillis/reactive-db/internal/util/stopper"
	"github.com/samwillis/reactive-db/key"
)

// syncStopTimeout bounds how long Cleanup waits for a collection's sync
// driver goroutine to exit once its stopper.Context begins stopping,
// per the timeout argument stopper.Context.Stop always takes.
const syncStopTimeout = 5 * time.Second

// Collection is the keyed record store of spec.md §4.3. The zero
// value is not usable; construct with New.
type Collection[T any] struct {
	cfg Config[T]

	mu        sync.Mutex
	status    Status
	statusVar notify.Var[Status]

	clock hlc.Clock

	syncedData        map[key.Key]T
	optimisticUpserts map[key.Key]T
	optimisticDeletes mapset.Set[key.Key]

	activeTxns map[string]*enrolledTxn

	indexes map[string]*Index[T]

	subs       []*subscription[T]
	subscribed int

	gcCancel   chan struct{}
	cleaningUp bool

	cleanupFn func()
	syncErr   error

	sup *stopper.Context

	pending *pendingBatchState[T]
}

// enrolledTxn tracks, per still-active transaction touching this
// collection, the mutations it has applied so optimistic state can be
// recomputed from "remaining active transactions" per spec.md §4.3.3
// step 4.
type enrolledTxn struct {
	txn       Transactor
	muts      []PendingMutation
	createdAt hlc.Time
}

// New constructs a Collection in the idle state. Sync is activated on
// first subscriber, first preload(), or immediately if cfg.StartSync.
func New[T any](cfg Config[T]) *Collection[T] {
	c := &Collection[T]{
		cfg:               cfg,
		status:            StatusIdle,
		syncedData:        map[key.Key]T{},
		optimisticUpserts: map[key.Key]T{},
		optimisticDeletes: mapset.NewThreadUnsafeSet[key.Key](),
		activeTxns:        map[string]*enrolledTxn{},
		indexes:           map[string]*Index[T]{},
	}
	if cfg.StartSync {
		c.activate()
	}
	return c
}

// ID returns the collection's configured identifier.
func (c *Collection[T]) ID() string { return c.cfg.ID }

// Status returns the collection's current lifecycle state.
func (c *Collection[T]) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Collection[T]) setStatus(s Status) {
	if err := checkTransition(c.status, s); err != nil {
		panic(err)
	}
	c.status = s
	c.statusVar.Set(s)
}

// -- visible view --------------------------------------------------

// visibleLocked returns the value visible for k under the current
// overlay, per spec.md §4.3.3: optimisticUpserts wins, then
// optimisticDeletes hides the synced row, else syncedData.
func (c *Collection[T]) visibleLocked(k key.Key) (T, bool) {
	if v, ok := c.optimisticUpserts[k]; ok {
		return v, true
	}
	if c.optimisticDeletes.Contains(k) {
		var zero T
		return zero, false
	}
	v, ok := c.syncedData[k]
	return v, ok
}

// Get returns the visible value for k.
func (c *Collection[T]) Get(k key.Key) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visibleLocked(k)
}

// Has reports whether k is visible.
func (c *Collection[T]) Has(k key.Key) bool {
	_, ok := c.Get(k)
	return ok
}

// Size returns the number of visible records.
func (c *Collection[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.visibleSnapshotLocked())
}

// visibleSnapshotLocked materializes the full visible view.
func (c *Collection[T]) visibleSnapshotLocked() map[key.Key]T {
	out := make(map[key.Key]T, len(c.syncedData)+len(c.optimisticUpserts))
	for k, v := range c.syncedData {
		if c.optimisticDeletes.Contains(k) {
			continue
		}
		out[k] = v
	}
	for k, v := range c.optimisticUpserts {
		out[k] = v
	}
	return out
}

// Keys returns the keys of the visible view, in no particular order.
func (c *Collection[T]) Keys() []key.Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.visibleSnapshotLocked()
	out := make([]key.Key, 0, len(snap))
	for k := range snap {
		out = append(out, k)
	}
	return out
}

// Values returns the values of the visible view, in no particular
// order.
func (c *Collection[T]) Values() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.visibleSnapshotLocked()
	out := make([]T, 0, len(snap))
	for _, v := range snap {
		out = append(out, v)
	}
	return out
}

// Entry is one key/value pair of a visible view snapshot.
type Entry[T any] struct {
	Key   key.Key
	Value T
}

// Entries returns the key/value pairs of the visible view, in no
// particular order.
func (c *Collection[T]) Entries() []Entry[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.visibleSnapshotLocked()
	out := make([]Entry[T], 0, len(snap))
	for k, v := range snap {
		out = append(out, Entry[T]{Key: k, Value: v})
	}
	return out
}

// CurrentStateAsChanges snapshots the visible view as a batch of
// Insert ChangeMessages, optionally filtered by where.
func (c *Collection[T]) CurrentStateAsChanges(where func(T) bool) []ChangeMessage[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.visibleSnapshotLocked()
	out := make([]ChangeMessage[T], 0, len(snap))
	for k, v := range snap {
		if where != nil && !where(v) {
			continue
		}
		out = append(out, ChangeMessage[T]{Type: Insert, Key: k, Value: v})
	}
	return out
}

// -- direct mutation operations -------------------------------------

// Insert admits one record, enrolling it in the ambient transaction
// from ctx if present, else auto-creating a transaction via
// cfg.OnInsert (spec.md §4.4.4). Returns the Transactor the mutation
// was enrolled in.
func (c *Collection[T]) Insert(ctx context.Context, record T, optimistic bool, metadata map[string]any) (Transactor, error) {
	k := c.cfg.GetKey(record)

	c.mu.Lock()
	if _, exists := c.visibleLocked(k); exists {
		c.mu.Unlock()
		return nil, &DuplicateKey{CollectionID: c.cfg.ID, Key: k}
	}
	c.mu.Unlock()

	if c.cfg.Schema != nil {
		validated, err := c.cfg.Schema.Validate(record)
		if err != nil {
			return nil, &SchemaError{CollectionID: c.cfg.ID, Cause: err}
		}
		record = validated
	}

	mut := PendingMutation{
		MutationID:   uuid.NewString(),
		Type:         Insert,
		Key:          k,
		Modified:     record,
		CollectionID: c.cfg.ID,
		Optimistic:   optimistic,
		Metadata:     metadata,
		CreatedAt:    time.Now(),
	}
	return c.apply(ctx, mut, c.cfg.OnInsert)
}

// Update applies fn to a draft copy of the current value for k and
// admits the result, failing if fn changes the computed key (spec.md
// §4.3.6).
func (c *Collection[T]) Update(ctx context.Context, k key.Key, optimistic bool, metadata map[string]any, fn func(draft *T)) (Transactor, error) {
	c.mu.Lock()
	original, ok := c.visibleLocked(k)
	c.mu.Unlock()
	if !ok {
		return nil, &KeyNotFound{CollectionID: c.cfg.ID, Key: k}
	}

	draft := original
	fn(&draft)

	if newKey := c.cfg.GetKey(draft); newKey != k {
		return nil, &KeyChanged{CollectionID: c.cfg.ID, From: k, To: newKey}
	}

	if c.cfg.Schema != nil {
		validated, err := c.cfg.Schema.Validate(draft)
		if err != nil {
			return nil, &SchemaError{CollectionID: c.cfg.ID, Cause: err}
		}
		draft = validated
	}

	mut := PendingMutation{
		MutationID:   uuid.NewString(),
		Type:         Update,
		Key:          k,
		Original:     original,
		Modified:     draft,
		CollectionID: c.cfg.ID,
		Optimistic:   optimistic,
		Metadata:     metadata,
		CreatedAt:    time.Now(),
	}
	return c.apply(ctx, mut, c.cfg.OnUpdate)
}

// Delete removes k.
func (c *Collection[T]) Delete(ctx context.Context, k key.Key, optimistic bool, metadata map[string]any) (Transactor, error) {
	c.mu.Lock()
	original, ok := c.visibleLocked(k)
	c.mu.Unlock()
	if !ok {
		return nil, &KeyNotFound{CollectionID: c.cfg.ID, Key: k}
	}

	mut := PendingMutation{
		MutationID:   uuid.NewString(),
		Type:         Delete,
		Key:          k,
		Original:     original,
		CollectionID: c.cfg.ID,
		Optimistic:   optimistic,
		Metadata:     metadata,
		CreatedAt:    time.Now(),
	}
	return c.apply(ctx, mut, c.cfg.OnDelete)
}

// apply enrolls mut in the ambient transaction if one exists on ctx,
// applying its optimistic overlay immediately; otherwise it
// auto-creates a transaction and invokes handler synchronously
// (spec.md §4.4.4), failing fatally if handler is nil.
func (c *Collection[T]) apply(ctx context.Context, mut PendingMutation, handler MutationHandler[T]) (Transactor, error) {
	if ambient, ok := TransactionFrom(ctx); ok {
		c.enrollOptimistic(ambient, mut)
		return ambient, nil
	}

	if handler == nil {
		return nil, &UsageError{CollectionID: c.cfg.ID, Reason: "direct mutation without ambient transaction or mutation handler"}
	}

	t := newDirectTxn(uuid.NewString())
	c.enrollOptimistic(t, mut)

	t.status = TxnPersisting
	err := handler(MutationContext[T]{
		Context:      ctx,
		CollectionID: c.cfg.ID,
		Transaction:  t,
		Mutations:    []PendingMutation{mut},
	})
	if err != nil {
		err = &MutationFailed{CollectionID: c.cfg.ID, Cause: err}
	}
	c.completeTransaction(t, err)
	return t, err
}

// enrollOptimistic records mut against t's active-transaction state
// and recomputes the optimistic overlay so the mutation becomes
// immediately visible, then notifies subscribers.
func (c *Collection[T]) enrollOptimistic(t Transactor, mut PendingMutation) {
	t.Enroll(mut, c)

	c.mu.Lock()
	et, ok := c.activeTxns[t.ID()]
	if !ok {
		et = &enrolledTxn{txn: t, createdAt: c.clock.Next(time.Now().UnixNano())}
		c.activeTxns[t.ID()] = et
	}
	et.muts = append(et.muts, mut)

	before := c.visibleSnapshotLocked()
	c.recomputeOverlayLocked()
	after := c.visibleSnapshotLocked()
	events := diffSnapshots(before, after)
	c.updateIndexesLocked(events)
	c.mu.Unlock()

	c.notify(events)
}

// recomputeOverlayLocked rebuilds optimisticUpserts/optimisticDeletes
// from every still-active (non completed/failed) transaction's
// mutations, per spec.md §4.3.3 step 4 / §4.3.6 recovery note. Active
// transactions are processed in hlc.Time creation order rather than
// map iteration order, so that two still-active transactions racing to
// write the same key resolve deterministically to whichever was
// created last. Must be called with c.mu held.
func (c *Collection[T]) recomputeOverlayLocked() {
	ordered := make([]*enrolledTxn, 0, len(c.activeTxns))
	for _, et := range c.activeTxns {
		ordered = append(ordered, et)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return hlc.Compare(ordered[i].createdAt, ordered[j].createdAt) < 0
	})

	upserts := map[key.Key]T{}
	deletes := mapset.NewThreadUnsafeSet[key.Key]()
	for _, et := range ordered {
		if et.txn.Status() == TxnCompleted || et.txn.Status() == TxnFailed {
			continue
		}
		for _, m := range et.muts {
			if !m.Optimistic {
				continue
			}
			switch m.Type {
			case Insert, Update:
				if v, ok := m.Modified.(T); ok {
					upserts[m.Key] = v
					deletes.Remove(m.Key)
				}
			case Delete:
				deletes.Add(m.Key)
				delete(upserts, m.Key)
			}
		}
	}
	c.optimisticUpserts = upserts
	c.optimisticDeletes = deletes
}

// completeTransaction drops t from this collection's active-transaction
// registry once it reaches completed|failed, recomputes the overlay,
// and emits any resulting delta (spec.md §4.4.2 last bullet).
func (c *Collection[T]) completeTransaction(t Transactor, err error) {
	if dt, ok := t.(*directTxn); ok {
		dt.finish(err)
	}

	c.mu.Lock()
	before := c.visibleSnapshotLocked()
	delete(c.activeTxns, t.ID())
	c.recomputeOverlayLocked()
	after := c.visibleSnapshotLocked()
	events := diffSnapshots(before, after)
	c.updateIndexesLocked(events)
	c.mu.Unlock()

	c.notify(events)
}

// ReleaseTransaction is called by a Manager (in the txn package) once
// a multi-collection transaction it tracks reaches completed|failed,
// so every collection it touched can drop its bookkeeping and
// recompute optimistic state.
func (c *Collection[T]) ReleaseTransaction(t Transactor) {
	c.completeTransaction(t, t.Err())
}

// diffSnapshots computes ChangeMessages between two visible-view
// snapshots of the same collection, for keys present in either.
func diffSnapshots[T any](before, after map[key.Key]T) []ChangeMessage[T] {
	var out []ChangeMessage[T]
	seen := map[key.Key]struct{}{}
	for k, bv := range before {
		seen[k] = struct{}{}
		av, ok := after[k]
		if !ok {
			out = append(out, ChangeMessage[T]{Type: Delete, Key: k, Previous: bv, HasPrev: true})
			continue
		}
		if !key.ValuesEqual(bv, av) {
			out = append(out, ChangeMessage[T]{Type: Update, Key: k, Value: av, Previous: bv, HasPrev: true})
		}
	}
	for k, av := range after {
		if _, ok := seen[k]; ok {
			continue
		}
		out = append(out, ChangeMessage[T]{Type: Insert, Key: k, Value: av})
	}
	return out
}

// -- sync contract ---------------------------------------------------

// activate transitions idle/cleaned-up -> loading and starts the sync
// driver goroutine under a fresh stopper.Context, the same supervised-
// goroutine primitive cdc-sink's logical-replication loops run under.
// A new Context is created per activation (rather than reused across
// the collection's lifetime) so a collection cleaned up and later
// reactivated gets a sync driver that is not already stopping.
func (c *Collection[T]) activate() {
	c.mu.Lock()
	if c.status != StatusIdle && c.status != StatusCleanedUp {
		c.mu.Unlock()
		return
	}
	c.setStatus(StatusLoading)
	sup := stopper.WithContext(context.Background())
	c.sup = sup
	sync := c.cfg.Sync
	c.mu.Unlock()

	if sync == nil {
		c.mu.Lock()
		c.setStatus(StatusInitialCommit)
		c.setStatus(StatusReady)
		c.mu.Unlock()
		return
	}

	sup.Go(func() error {
		sc := &SyncContext[T]{
			Begin:    func() { c.syncBegin() },
			Write:    func(w SyncWrite[T]) { c.syncWrite(w) },
			Commit:   func() { c.syncCommit() },
			Rollback: func() { c.syncRollback() },
		}
		cleanup, err := sync(sup, sc)
		c.mu.Lock()
		c.cleanupFn = cleanup
		if err != nil {
			c.syncErr = err
			c.setStatus(StatusError)
		}
		c.mu.Unlock()
		return err
	})
}

// pendingBatch accumulates SyncWrites between Begin and Commit.
type pendingBatchState[T any] struct {
	writes []SyncWrite[T]
}

func (c *Collection[T]) syncBegin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = &pendingBatchState[T]{}
}

func (c *Collection[T]) syncWrite(w SyncWrite[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		c.pending = &pendingBatchState[T]{}
	}
	c.pending.writes = append(c.pending.writes, w)
}

func (c *Collection[T]) syncRollback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
}

// syncCommit applies the pending batch atomically to syncedData per
// spec.md §4.3.3, then transitions loading->initialCommit->ready on
// the first commit.
func (c *Collection[T]) syncCommit() {
	c.mu.Lock()

	batch := c.pending
	c.pending = nil
	if batch == nil {
		c.mu.Unlock()
		return
	}

	touched := map[key.Key]struct{}{}
	for _, w := range batch.writes {
		touched[c.syncWriteKey(w)] = struct{}{}
	}

	before := map[key.Key]T{}
	for k := range touched {
		if v, ok := c.visibleLocked(k); ok {
			before[k] = v
		}
	}

	for _, w := range batch.writes {
		k := c.syncWriteKey(w)
		switch w.Type {
		case Insert:
			if _, exists := c.syncedData[k]; exists {
				c.syncErr = &DuplicateKey{CollectionID: c.cfg.ID, Key: k}
				c.setStatus(StatusError)
				c.mu.Unlock()
				return
			}
			c.syncedData[k] = w.Value
		case Update:
			if c.cfg.RowUpdateMode == RowUpdateFull {
				c.syncedData[k] = w.Value
			} else {
				c.syncedData[k] = key.MergePartial(c.syncedData[k], w.Value)
			}
		case Delete:
			delete(c.syncedData, k)
		}
	}

	c.recomputeOverlayLocked()

	after := map[key.Key]T{}
	for k := range touched {
		if v, ok := c.visibleLocked(k); ok {
			after[k] = v
		}
	}

	events := diffSnapshots(before, after)
	c.updateIndexesLocked(events)

	if c.status == StatusLoading {
		c.setStatus(StatusInitialCommit)
		c.setStatus(StatusReady)
	}
	c.mu.Unlock()

	c.notify(events)
}

func (c *Collection[T]) syncWriteKey(w SyncWrite[T]) key.Key {
	if w.Type == Delete && w.HasPrev {
		return c.cfg.GetKey(w.Previous)
	}
	return c.cfg.GetKey(w.Value)
}

// -- indexes -----------------------------------------------------------

// CreateIndex builds an Index from expr evaluated over every visible
// row, registering it to stay current on subsequent changes (spec.md
// §4.3.5).
func (c *Collection[T]) CreateIndex(name string, expr func(T) any) *Index[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name == "" {
		name = "idx" + uuid.NewString()
	}
	ix := newIndex[T](name, expr)
	ix.build(c.visibleSnapshotLocked())
	c.indexes[name] = ix
	return ix
}

func (c *Collection[T]) updateIndexesLocked(events []ChangeMessage[T]) {
	for _, ix := range c.indexes {
		for _, e := range events {
			switch e.Type {
			case Insert:
				ix.onInsert(e.Key, e.Value)
			case Update:
				ix.onUpdate(e.Key, e.Value)
			case Delete:
				ix.onDelete(e.Key)
			}
		}
	}
}

// -- subscriptions ------------------------------------------------------

// Subscribe registers listener for change events. If includeInitial is
// true, the listener first synchronously receives an Insert batch for
// the current visible view. where, if non-nil, filters both the
// initial snapshot and subsequent events by the new value (for
// deletes, the prior value).
func (c *Collection[T]) Subscribe(listener func([]ChangeMessage[T]), includeInitial bool, where func(T) bool) (unsubscribe func()) {
	c.mu.Lock()
	sub := &subscription[T]{listener: listener, where: where}
	c.subs = append(c.subs, sub)
	c.subscribed++
	c.cancelPendingGCLocked()
	needsActivate := c.status == StatusIdle || c.status == StatusCleanedUp
	var initial []ChangeMessage[T]
	if includeInitial {
		initial = c.currentStateAsChangesLocked(where)
	}
	c.mu.Unlock()

	if needsActivate {
		c.activate()
	}
	if len(initial) > 0 {
		listener(initial)
	}

	return func() { c.unsubscribe(sub) }
}

// SubscribeKey subscribes to change events for a single key only.
func (c *Collection[T]) SubscribeKey(k key.Key, listener func([]ChangeMessage[T]), includeInitial bool) (unsubscribe func()) {
	c.mu.Lock()
	sub := &subscription[T]{listener: listener, keyOnly: &k}
	c.subs = append(c.subs, sub)
	c.subscribed++
	c.cancelPendingGCLocked()
	needsActivate := c.status == StatusIdle || c.status == StatusCleanedUp
	var initial []ChangeMessage[T]
	if includeInitial {
		if v, ok := c.visibleLocked(k); ok {
			initial = []ChangeMessage[T]{{Type: Insert, Key: k, Value: v}}
		}
	}
	c.mu.Unlock()

	if needsActivate {
		c.activate()
	}
	if len(initial) > 0 {
		listener(initial)
	}

	return func() { c.unsubscribe(sub) }
}

func (c *Collection[T]) currentStateAsChangesLocked(where func(T) bool) []ChangeMessage[T] {
	snap := c.visibleSnapshotLocked()
	out := make([]ChangeMessage[T], 0, len(snap))
	for k, v := range snap {
		if where != nil && !where(v) {
			continue
		}
		out = append(out, ChangeMessage[T]{Type: Insert, Key: k, Value: v})
	}
	return out
}

func (c *Collection[T]) unsubscribe(sub *subscription[T]) {
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.subscribed--
	zero := c.subscribed == 0
	gcTime := c.cfg.gcTime()
	var stopping <-chan struct{}
	if c.sup != nil {
		stopping = c.sup.Stopping()
	}
	c.mu.Unlock()

	if zero {
		c.scheduleGC(gcTime, stopping)
	}
}

// cancelPendingGCLocked aborts a GC wait scheduled by scheduleGC, if
// one is pending. Must be called with c.mu held.
func (c *Collection[T]) cancelPendingGCLocked() {
	if c.gcCancel != nil {
		close(c.gcCancel)
		c.gcCancel = nil
	}
}

// scheduleGC waits gcTime for a new subscriber before tearing the
// collection down, the way cdc-sink's resolver.go retires an
// unreferenced resolver on a timer. The wait also ends early if the
// sync driver's own stopper.Context begins stopping, so a collection
// whose sync is already winding down doesn't leave a dangling GC timer
// behind it.
func (c *Collection[T]) scheduleGC(gcTime time.Duration, stopping <-chan struct{}) {
	c.mu.Lock()
	cancel := make(chan struct{})
	c.gcCancel = cancel
	c.mu.Unlock()

	go func() {
		select {
		case <-time.After(gcTime):
			c.mu.Lock()
			fire := c.gcCancel == cancel
			if fire {
				c.gcCancel = nil
			}
			c.mu.Unlock()
			if fire {
				c.cleanup()
			}
		case <-cancel:
		case <-stopping:
		}
	}()
}

type subscription[T any] struct {
	listener func([]ChangeMessage[T])
	where    func(T) bool
	keyOnly  *key.Key
}

// notify delivers events to every matching subscriber. For a filtered
// subscription, delete events are matched against the prior value.
func (c *Collection[T]) notify(events []ChangeMessage[T]) {
	if len(events) == 0 {
		return
	}
	c.mu.Lock()
	subs := make([]*subscription[T], len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, s := range subs {
		var matched []ChangeMessage[T]
		for _, e := range events {
			if s.keyOnly != nil && e.Key != *s.keyOnly {
				continue
			}
			v := e.Value
			if e.Type == Delete {
				v = e.Previous
			}
			if s.where != nil && !s.where(v) {
				continue
			}
			matched = append(matched, e)
		}
		if len(matched) > 0 {
			s.listener(matched)
		}
	}
}

// -- lifecycle -----------------------------------------------------------

// Preload ensures the sync driver has been activated and blocks until
// the collection reaches ready or error.
func (c *Collection[T]) Preload(ctx context.Context) error {
	c.mu.Lock()
	status := c.status
	c.mu.Unlock()
	if status == StatusIdle || status == StatusCleanedUp {
		c.activate()
	}
	return c.waitReady(ctx)
}

func (c *Collection[T]) waitReady(ctx context.Context) error {
	for {
		status, changed := c.statusVar.Get()
		switch status {
		case StatusReady:
			return nil
		case StatusError:
			c.mu.Lock()
			err := c.syncErr
			c.mu.Unlock()
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// StateWhenReady blocks until ready, then returns the visible view as
// a map.
func (c *Collection[T]) StateWhenReady(ctx context.Context) (map[key.Key]T, error) {
	if err := c.waitReady(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visibleSnapshotLocked(), nil
}

// ToArrayWhenReady blocks until ready, then returns the visible view
// as a slice ordered by key, then sorted by cfg.Compare if set.
func (c *Collection[T]) ToArrayWhenReady(ctx context.Context) ([]T, error) {
	state, err := c.StateWhenReady(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]key.Key, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return key.Less(keys[i], keys[j]) })
	out := make([]T, 0, len(state))
	for _, k := range keys {
		out = append(out, state[k])
	}
	if c.cfg.Compare != nil {
		sort.Slice(out, func(i, j int) bool { return c.cfg.Compare(out[i], out[j]) < 0 })
	}
	return out, nil
}

// Cleanup tears the collection down: closes sync (invoking its
// cleanup exactly once), clears caches, and transitions to
// cleaned-up. Safe to call multiple times.
func (c *Collection[T]) Cleanup() {
	c.cleanup()
}

func (c *Collection[T]) cleanup() {
	c.mu.Lock()
	if c.status != StatusReady || c.cleaningUp {
		c.mu.Unlock()
		return
	}
	c.cleaningUp = true
	sup := c.sup
	c.mu.Unlock()

	if sup != nil {
		if err := sup.Stop(syncStopTimeout); err != nil {
			c.mu.Lock()
			if c.syncErr == nil {
				c.syncErr = err
			}
			c.mu.Unlock()
		}
	}

	c.mu.Lock()
	cleanupFn := c.cleanupFn
	c.mu.Unlock()

	func() {
		defer func() {
			if r := recover(); r != nil {
				c.mu.Lock()
				c.syncErr = errors.Errorf("collection %q: sync cleanup panicked: %v", c.cfg.ID, r)
				c.mu.Unlock()
			}
		}()
		if cleanupFn != nil {
			cleanupFn()
		}
	}()

	c.mu.Lock()
	c.syncedData = map[key.Key]T{}
	c.optimisticUpserts = map[key.Key]T{}
	c.optimisticDeletes = mapset.NewThreadUnsafeSet[key.Key]()
	c.indexes = map[string]*Index[T]{}
	c.cleaningUp = false
	c.setStatus(StatusCleanedUp)
	c.mu.Unlock()
}

package collection

import "github.com/pkg/errors"

// Error taxonomy from spec.md §7: DuplicateKey, KeyNotFound,
// UsageError and StatusTransitionError (see status.go) are fatal to
// the caller; SchemaError wraps a synchronous validator rejection.
//
// Grounded in cdc-sink's pkg/errors usage throughout internal/source
// and internal/target (errors.Errorf/errors.Wrap for stack-carrying
// sentinel-like errors rather than bare fmt.Errorf).

// DuplicateKey reports an insert (via sync or direct call) of a key
// already present in the touched dataset.
type DuplicateKey struct {
	CollectionID string
	Key          any
}

func (e *DuplicateKey) Error() string {
	return errors.Errorf("collection %q: duplicate key %v", e.CollectionID, e.Key).Error()
}

// KeyNotFound reports delete or update of a key absent from the
// collection.
type KeyNotFound struct {
	CollectionID string
	Key          any
}

func (e *KeyNotFound) Error() string {
	return errors.Errorf("collection %q: key not found %v", e.CollectionID, e.Key).Error()
}

// KeyChanged reports an update whose callback mutated the value such
// that getKey(draft) no longer matches the original key.
type KeyChanged struct {
	CollectionID string
	From, To     any
}

func (e *KeyChanged) Error() string {
	return errors.Errorf("collection %q: update changed key %v -> %v", e.CollectionID, e.From, e.To).Error()
}

// UsageError reports misuse of a collection; it is raised for a direct
// mutation made with neither an ambient transaction nor a mutation
// handler.
type UsageError struct {
	CollectionID string
	Reason       string
}

func (e *UsageError) Error() string {
	return errors.Errorf("collection %q: usage error: %s", e.CollectionID, e.Reason).Error()
}

// SchemaError wraps a synchronous schema validator's rejection of a
// record.
type SchemaError struct {
	CollectionID string
	Cause        error
}

func (e *SchemaError) Error() string {
	return errors.Wrapf(e.Cause, "collection %q: schema validation failed", e.CollectionID).Error()
}

func (e *SchemaError) Unwrap() error { return e.Cause }

// MutationFailed wraps an onInsert/onUpdate/onDelete handler rejection
// on the direct-mutation path; it becomes the auto-created
// transaction's error and is returned from the mutating call.
type MutationFailed struct {
	CollectionID string
	Cause        error
}

func (e *MutationFailed) Error() string {
	return errors.Wrapf(e.Cause, "collection %q: mutation handler failed", e.CollectionID).Error()
}

func (e *MutationFailed) Unwrap() error { return e.Cause }

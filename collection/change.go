package collection

import "github.com/samwillis/reactive-db/key"

// ChangeType enumerates the three kinds of row-level events a
// collection emits, per spec.md §4.3.1/§4.8.
type ChangeType int

const (
	Insert ChangeType = iota
	Update
	Delete
)

func (t ChangeType) String() string {
	switch t {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// ChangeMessage describes one row-level event on the collection's
// visible view: an insert/update/delete, carrying the new Value (for
// insert/update) and, for update/delete, the value it replaces.
type ChangeMessage[T any] struct {
	Type     ChangeType
	Key      key.Key
	Value    T
	Previous T
	HasPrev  bool
}

// SyncWrite is what a sync driver passes to its Write callback: a
// ChangeMessage without a Key, since the key is derived from Value (or
// Previous, for a delete) via the collection's getKey function —
// mirroring cdc-sink's types.Mutation, whose row key is likewise
// derived from the encoded row rather than carried as an explicit
// field of the write call.
type SyncWrite[T any] struct {
	Type     ChangeType
	Value    T
	Previous T
	HasPrev  bool
	Metadata map[string]any
}

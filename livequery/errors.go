package livequery

import "github.com/pkg/errors"

// Error reports a live query that cannot be wired up: a collection
// name referenced by the query's FROM/JOIN clauses that was not
// supplied in the sources map passed to New.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return errors.Errorf("livequery: %s", e.Reason).Error()
}

func newError(format string, args ...any) error {
	return &Error{Reason: errors.Errorf(format, args...).Error()}
}

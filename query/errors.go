package query

import "github.com/pkg/errors"

// Error is the QueryError kind of spec.md §7: a fatal rejection of an
// IR tree that violates a structural rule. Builder.Build raises it for
// LIMIT/OFFSET without ORDER BY, HAVING without GROUP BY/aggregates and
// an unknown join kind; Eval raises it for an unknown function name or
// a wrong argument count.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return errors.Errorf("query: %s", e.Reason).Error()
}

func newError(format string, args ...any) error {
	return &Error{Reason: errors.Errorf(format, args...).Error()}
}

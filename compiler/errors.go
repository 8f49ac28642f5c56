package compiler

import "github.com/pkg/errors"

// Error is the QueryError kind of spec.md §7 surfaced at compile time
// by this package specifically (an unknown source type reaching the
// compiler, a collection referenced by a CollectionRef that was never
// registered in the Compiler's inputs).
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return errors.Errorf("compiler: %s", e.Reason).Error()
}

func newError(format string, args ...any) error {
	return &Error{Reason: errors.Errorf(format, args...).Error()}
}

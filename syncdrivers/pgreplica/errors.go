package pgreplica

import "github.com/pkg/errors"

// Error reports a malformed replication stream: an unparseable
// wal2json payload, an unknown change action, a malformed LSN, or an
// empty IDENTIFY_SYSTEM reply.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return errors.Errorf("pgreplica: %s", e.Reason).Error()
}

func newError(format string, args ...any) error {
	return &Error{Reason: errors.Errorf(format, args...).Error()}
}

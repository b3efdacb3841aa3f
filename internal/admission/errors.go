package admission

import (
	"errors"
	"fmt"
)

// ErrUserNotFound is returned when the target participant id does not
// resolve to a record at all.
var ErrUserNotFound = errors.New("user not found")

// PreconditionError signals that a state-machine guard failed: the
// conditional update matched no record and nothing was mutated. The
// reason is safe to show to the caller.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return e.Reason
}

func preconditionf(format string, args ...interface{}) error {
	return &PreconditionError{Reason: fmt.Sprintf(format, args...)}
}

// IsPrecondition reports whether err is a failed transition guard.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

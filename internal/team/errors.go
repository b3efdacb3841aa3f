package team

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound is returned when the acting participant id does
	// not resolve.
	ErrUserNotFound = errors.New("user not found")
	// ErrTeamNotFound is returned when a team id does not resolve.
	// Dangling team references read the same way.
	ErrTeamNotFound = errors.New("team not found")
)

// PreconditionError signals that a membership guard failed and nothing
// was mutated.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return e.Reason
}

func preconditionf(format string, args ...interface{}) error {
	return &PreconditionError{Reason: fmt.Sprintf(format, args...)}
}

// IsPrecondition reports whether err is a failed membership guard.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

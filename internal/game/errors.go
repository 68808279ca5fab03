package game

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIdentity is returned when a subject id does not parse in a backend's id format.
	ErrInvalidIdentity = errors.New("invalid subject identity")
	// ErrNotFound is returned by queries about a subject that has no matching entry.
	ErrNotFound = errors.New("not found")
	// ErrInvalidDuration is returned when a negative ban duration is passed.
	ErrInvalidDuration = errors.New("ban duration must not be negative")
	// ErrSessionNotFound is returned by a ChatTransport that does not own the session it was handed.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAlreadyActive is returned when a second Server is activated in the same process.
	ErrAlreadyActive = errors.New("a server is already active")
)

// IdentityError describes a subject id rejected by a backend's id format.
type IdentityError struct {
	Format string
	ID     string
	Err    error
}

func (e *IdentityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s id %q: %v", e.Format, e.ID, e.Err)
	}
	return fmt.Sprintf("%s id %q is malformed", e.Format, e.ID)
}

// Unwrap makes errors.Is(err, ErrInvalidIdentity) hold for every IdentityError.
func (e *IdentityError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidIdentity}
	}
	return []error{ErrInvalidIdentity, e.Err}
}

package domainerr

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing records.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDuplicate marks a creation that collided with an existing idempotency key.
	ErrDuplicate = errors.New("duplicate request")
)

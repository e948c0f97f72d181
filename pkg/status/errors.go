package status

import "errors"

var (
	// ErrInvalidTransition is returned when a lifecycle call does not match
	// the current state, e.g. Succeed without a preceding Begin.
	ErrInvalidTransition = errors.New("invalid status transition")
)

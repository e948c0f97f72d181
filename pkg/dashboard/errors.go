package dashboard

import "errors"

var (
	// ErrAlreadyStarted is returned by Start on a running scheduler.
	ErrAlreadyStarted = errors.New("scheduler already started")

	// ErrStopped is returned by Start once Stop has been called.
	ErrStopped = errors.New("scheduler stopped")

	// ErrCycleInFlight is returned by RunCycle under the skip policy when
	// another cycle has not finished yet.
	ErrCycleInFlight = errors.New("refresh cycle already in flight")
)

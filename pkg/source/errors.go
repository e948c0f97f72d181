package source

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrTransport covers an unreachable source, a timeout and a non-2xx
	// response.
	ErrTransport = errors.New("transport failure")

	// ErrDecode is returned when the payload is not a valid snapshot.
	ErrDecode = errors.New("invalid payload")

	// ErrSourceNotRunning is returned when the unix socket does not exist.
	ErrSourceNotRunning = errors.New("source not running")

	// ErrPermissionDenied is returned when the unix socket cannot be opened.
	ErrPermissionDenied = errors.New("permission denied")
)

// TransportError wraps a failure to get a response out of the source.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string        { return "transport failure: " + e.Err.Error() }
func (e *TransportError) Unwrap() error        { return e.Err }
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("got HTTP %d", e.Code)
	}
	return fmt.Sprintf("got HTTP %d: %s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool { return target == ErrTransport }

// DecodeError wraps a payload that could not be decoded.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string        { return "invalid payload: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error        { return e.Err }
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Describe turns a fetch error into the short cause shown in the status
// line, e.g. "HTTP 500" or "timeout". It never changes control flow: every
// error is one failed cycle.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var se *StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("HTTP %d", se.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	if errors.Is(err, ErrDecode) {
		return "invalid payload"
	}
	if errors.Is(err, ErrSourceNotRunning) {
		return ErrSourceNotRunning.Error()
	}
	if errors.Is(err, ErrPermissionDenied) {
		return ErrPermissionDenied.Error()
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Err.Error()
	}
	return err.Error()
}

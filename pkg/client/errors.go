package client

import "errors"

var (
	// ErrNotRunning is returned when nothing listens on the API address
	ErrNotRunning = errors.New("livedash is not running")

	// ErrNoData is returned before the dashboard has completed a cycle
	ErrNoData = errors.New("no data yet")

	// ErrNotFound is returned when 404 is returned from the API
	ErrNotFound = errors.New("404 not found")
)

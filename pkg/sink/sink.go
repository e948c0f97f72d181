// Package sink contains the presentation targets the dashboard renders into.
package sink

import (
	"time"

	"github.com/solarstation/livedash/pkg/metrics"
	"github.com/solarstation/livedash/pkg/status"
)

// Sink receives everything the dashboard shows. Calls must be cheap and must
// not fail the caller; implementations log their own errors.
type Sink interface {
	Render(m metrics.Metrics)
	SetStatus(state status.State, message string)
	TickClock(now time.Time)
}

// Closer is implemented by sinks that hold connections.
type Closer interface {
	Close() error
}

// Multi fans every call out to all sinks, in order.
type Multi []Sink

func (m Multi) Render(mt metrics.Metrics) {
	for _, s := range m {
		s.Render(mt)
	}
}

func (m Multi) SetStatus(state status.State, message string) {
	for _, s := range m {
		s.SetStatus(state, message)
	}
}

func (m Multi) TickClock(now time.Time) {
	for _, s := range m {
		s.TickClock(now)
	}
}

// Close closes every sink that implements Closer and returns the first error.
func (m Multi) Close() error {
	var first error
	for _, s := range m {
		c, ok := s.(Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Nop discards everything.
type Nop struct{}

func (Nop) Render(metrics.Metrics)         {}
func (Nop) SetStatus(status.State, string) {}
func (Nop) TickClock(time.Time)            {}

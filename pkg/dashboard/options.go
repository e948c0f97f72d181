package dashboard

import (
	"time"

	"github.com/jonboulle/clockwork"
	pkgerrors "github.com/pkg/errors"

	"github.com/solarstation/livedash/pkg/metrics"
	"github.com/solarstation/livedash/pkg/savings"
	"github.com/solarstation/livedash/pkg/sink"
	"github.com/solarstation/livedash/pkg/source"
)

// Policy decides what happens when the refresh timer fires while a cycle
// is still in flight.
type Policy string

const (
	// PolicySkip drops the tick. Cycles never overlap.
	PolicySkip Policy = "skip"
	// PolicyOverlap starts another cycle anyway. The last cycle to finish
	// wins the display.
	PolicyOverlap Policy = "overlap"
)

// ParsePolicy parses "skip" or "overlap".
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicySkip, PolicyOverlap:
		return p, nil
	default:
		return "", pkgerrors.Errorf("unknown overlap policy %q, must be %q or %q", s, PolicySkip, PolicyOverlap)
	}
}

const (
	DefaultRefreshInterval = 5000 * time.Millisecond
	DefaultClockInterval   = 1000 * time.Millisecond
	DefaultFetchTimeout    = 4000 * time.Millisecond
)

// Options configures a Scheduler. Zero values take the defaults above;
// each Limits field that is not positive takes its metrics default.
type Options struct {
	Source source.Source
	Sink   sink.Sink
	Limits metrics.Limits

	RefreshInterval time.Duration
	ClockInterval   time.Duration
	// FetchTimeout bounds each fetch. Hitting it fails the cycle.
	FetchTimeout time.Duration
	Policy       Policy

	// Savings attaches the savings figure to every derived frame.
	Savings savings.Provider
	Clock   clockwork.Clock
}

func (o *Options) setDefaults() error {
	if o.Source == nil {
		return pkgerrors.New("source is required")
	}
	if o.Sink == nil {
		o.Sink = sink.Nop{}
	}
	if o.Limits.MaxPVWatts <= 0 {
		o.Limits.MaxPVWatts = metrics.DefaultMaxPVWatts
	}
	if o.Limits.MaxPhaseWatts <= 0 {
		o.Limits.MaxPhaseWatts = metrics.DefaultMaxPhaseWatts
	}
	if o.Limits.TimeEstimateCeiling <= 0 {
		o.Limits.TimeEstimateCeiling = metrics.DefaultTimeEstimateCeiling
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = DefaultRefreshInterval
	}
	if o.ClockInterval <= 0 {
		o.ClockInterval = DefaultClockInterval
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.Policy == "" {
		o.Policy = PolicySkip
	}
	if _, err := ParsePolicy(string(o.Policy)); err != nil {
		return err
	}
	if o.Savings == nil {
		o.Savings = savings.None{}
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Package status tracks the connection state of the dashboard across refresh
// cycles.
package status

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/solarstation/livedash/pkg/metrics"
)

// State is the connection state shown next to the dashboard.
type State string

const (
	Idle    State = "idle"
	Loading State = "loading"
	OK      State = "ok"
	Error   State = "error"
)

const (
	MessageIdle    = "Waiting for first update"
	MessageLoading = "Updating..."
	MessageOK      = "Connected"
)

// ErrorMessage is the message shown for a failed cycle.
func ErrorMessage(cause string) string {
	if cause == "" {
		return "Connection error"
	}
	return "Connection error: " + cause
}

// Notifier receives every state transition.
type Notifier interface {
	SetStatus(state State, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(state State, message string)

func (f NotifierFunc) SetStatus(state State, message string) { f(state, message) }

// Status is a point-in-time view of the tracker.
type Status struct {
	State     State     `json:"state"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updatedAt"`
	// LastSuccess is zero until the first successful cycle.
	LastSuccess time.Time `json:"lastSuccess"`
	// Failures counts consecutive failed cycles.
	Failures int `json:"failures"`
}

// Tracker is the status state machine. It also holds the metrics of the last
// successful cycle, which stay current through failures.
type Tracker struct {
	mu sync.RWMutex

	state       State
	message     string
	updatedAt   time.Time
	lastSuccess time.Time
	failures    int
	inflight    int

	metrics    metrics.Metrics
	hasMetrics bool

	allowOverlap bool
	notifier     Notifier
	clock        clockwork.Clock
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the clock used for timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithOverlap allows Begin while a cycle is already loading.
func WithOverlap(allow bool) Option {
	return func(t *Tracker) { t.allowOverlap = allow }
}

// NewTracker returns a tracker in the idle state. n may be nil.
func NewTracker(n Notifier, opts ...Option) *Tracker {
	t := &Tracker{
		state:    Idle,
		message:  MessageIdle,
		notifier: n,
		clock:    clockwork.NewRealClock(),
	}
	for _, o := range opts {
		o(t)
	}
	t.updatedAt = t.clock.Now()
	return t
}

// Begin marks the start of a cycle: idle, ok or error -> loading.
func (t *Tracker) Begin() error {
	t.mu.Lock()
	switch t.state {
	case Idle, OK, Error:
	case Loading:
		if !t.allowOverlap {
			t.mu.Unlock()
			return fmt.Errorf("%w: cycle already in flight", ErrInvalidTransition)
		}
		// Already showing "loading"; just count the extra cycle.
		t.inflight++
		t.mu.Unlock()
		return nil
	}
	t.inflight++
	t.set(Loading, MessageLoading)
	t.mu.Unlock()

	t.notify(Loading, MessageLoading)
	return nil
}

// Succeed ends a cycle with freshly derived metrics: loading -> ok. With
// overlapping cycles the metrics are stored right away, but the state only
// settles when the last cycle in flight completes.
func (t *Tracker) Succeed(m metrics.Metrics) error {
	t.mu.Lock()
	if err := t.complete(OK); err != nil {
		t.mu.Unlock()
		return err
	}
	t.metrics = m
	t.hasMetrics = true
	t.failures = 0
	t.lastSuccess = t.clock.Now()
	settled := t.settle(OK, MessageOK)
	t.mu.Unlock()

	if settled {
		t.notify(OK, MessageOK)
	}
	return nil
}

// Fail ends a cycle with a failure: loading -> error. The metrics of the last
// successful cycle are kept. cause is the short human-readable reason.
func (t *Tracker) Fail(cause string) error {
	msg := ErrorMessage(cause)

	t.mu.Lock()
	if err := t.complete(Error); err != nil {
		t.mu.Unlock()
		return err
	}
	t.failures++
	settled := t.settle(Error, msg)
	t.mu.Unlock()

	if settled {
		t.notify(Error, msg)
	}
	return nil
}

// complete must be called with mu held.
func (t *Tracker) complete(to State) error {
	if t.inflight == 0 {
		return fmt.Errorf("%w: %s -> %s without a cycle in flight", ErrInvalidTransition, t.state, to)
	}
	t.inflight--
	return nil
}

// settle moves to s unless other cycles are still loading. It must be called
// with mu held, after complete.
func (t *Tracker) settle(s State, msg string) bool {
	if t.inflight > 0 {
		return false
	}
	t.set(s, msg)
	return true
}

// set must be called with mu held.
func (t *Tracker) set(s State, msg string) {
	logrus.WithFields(logrus.Fields{
		"from":    t.state,
		"to":      s,
		"message": msg,
	}).Trace("status transition")
	t.state = s
	t.message = msg
	t.updatedAt = t.clock.Now()
}

func (t *Tracker) notify(s State, msg string) {
	if t.notifier != nil {
		t.notifier.SetStatus(s, msg)
	}
}

// Status returns the current status.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Status{
		State:       t.state,
		Message:     t.message,
		UpdatedAt:   t.updatedAt,
		LastSuccess: t.lastSuccess,
		Failures:    t.failures,
	}
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Metrics returns the metrics of the last successful cycle. ok is false
// until a cycle has succeeded.
func (t *Tracker) Metrics() (m metrics.Metrics, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.metrics, t.hasMetrics
}

// InFlight returns the number of cycles currently loading.
func (t *Tracker) InFlight() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.inflight
}

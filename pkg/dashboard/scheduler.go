// Package dashboard drives the refresh loop: fetch a snapshot, derive the
// metrics, render them, and keep the connection status current.
package dashboard

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/solarstation/livedash/pkg/metrics"
	"github.com/solarstation/livedash/pkg/source"
	"github.com/solarstation/livedash/pkg/status"
)

// Stats counts cycles since the scheduler was created.
type Stats struct {
	Cycles    uint64 `json:"cycles"`
	Succeeded uint64 `json:"succeeded"`
	Failed    uint64 `json:"failed"`
	Skipped   uint64 `json:"skipped"`
}

// Scheduler owns the refresh and clock timers.
type Scheduler struct {
	opts    Options
	tracker *status.Tracker

	busy     atomic.Bool
	inflight sync.WaitGroup

	cycles    atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	skipped   atomic.Uint64

	mu       sync.Mutex
	started  bool
	stopCh   chan struct{}
	loopDone chan struct{}
	stopOnce sync.Once
}

// New validates opts and returns a stopped scheduler.
func New(opts Options) (*Scheduler, error) {
	if err := opts.setDefaults(); err != nil {
		return nil, err
	}
	return &Scheduler{
		opts: opts,
		tracker: status.NewTracker(opts.Sink,
			status.WithClock(opts.Clock),
			status.WithOverlap(opts.Policy == PolicyOverlap)),
		stopCh:   make(chan struct{}),
		loopDone: make(chan struct{}),
	}, nil
}

// Tracker returns the status tracker, which also holds the last good metrics.
func (s *Scheduler) Tracker() *status.Tracker {
	return s.tracker
}

// Options returns the effective options.
func (s *Scheduler) Options() Options {
	return s.opts
}

// Stats returns the cycle counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Cycles:    s.cycles.Load(),
		Succeeded: s.succeeded.Load(),
		Failed:    s.failed.Load(),
		Skipped:   s.skipped.Load(),
	}
}

// Start runs one cycle and one clock tick immediately, then keeps both
// timers running until Stop is called or ctx is done. Cycles run with ctx;
// Stop does not cancel them.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	select {
	case <-s.stopCh:
		return ErrStopped
	default:
	}
	s.started = true

	logrus.WithFields(logrus.Fields{
		"refreshInterval": s.opts.RefreshInterval,
		"clockInterval":   s.opts.ClockInterval,
		"fetchTimeout":    s.opts.FetchTimeout,
		"policy":          s.opts.Policy,
	}).Info("starting refresh scheduler")

	go s.loop(ctx)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.loopDone)

	select {
	case <-s.stopCh:
		return
	case <-ctx.Done():
		return
	default:
	}

	refresh := s.opts.Clock.NewTicker(s.opts.RefreshInterval)
	defer refresh.Stop()
	clock := s.opts.Clock.NewTicker(s.opts.ClockInterval)
	defer clock.Stop()

	s.opts.Sink.TickClock(s.opts.Clock.Now())
	s.trigger(ctx)

	for {
		select {
		case <-ctx.Done():
			logrus.Debug("scheduler context done")
			return
		case <-s.stopCh:
			logrus.Debug("scheduler stopped")
			return
		case now := <-clock.Chan():
			s.opts.Sink.TickClock(now)
		case <-refresh.Chan():
			s.trigger(ctx)
		}
	}
}

// trigger starts a cycle in the background according to the policy.
func (s *Scheduler) trigger(ctx context.Context) {
	if s.opts.Policy == PolicySkip && !s.busy.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		logrus.Debug("previous refresh cycle still in flight, skipping tick")
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if s.opts.Policy == PolicySkip {
			defer s.busy.Store(false)
		}
		// Failures are logged and reflected in the status; the loop goes on.
		_ = s.cycle(ctx)
	}()
}

// RunCycle runs one cycle synchronously and returns its error, if any.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	if s.opts.Policy == PolicySkip {
		if !s.busy.CompareAndSwap(false, true) {
			return ErrCycleInFlight
		}
		defer s.busy.Store(false)
	}
	s.inflight.Add(1)
	defer s.inflight.Done()
	return s.cycle(ctx)
}

// cycle is status transition, fetch, derive and render, in that order.
func (s *Scheduler) cycle(ctx context.Context) error {
	id := uuid.NewString()
	logger := logrus.WithField("cycle", id)
	s.cycles.Add(1)

	if err := s.tracker.Begin(); err != nil {
		logger.WithError(err).Error("failed to begin refresh cycle")
		return err
	}

	start := s.opts.Clock.Now()
	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	snap, err := s.opts.Source.Fetch(fetchCtx)
	cancel()
	if err != nil {
		s.failed.Add(1)
		cause := source.Describe(err)
		logger.WithFields(logrus.Fields{
			"cause":   cause,
			"elapsed": s.opts.Clock.Since(start),
		}).WithError(err).Warn("refresh cycle failed")
		if terr := s.tracker.Fail(cause); terr != nil {
			logger.WithError(terr).Error("failed to record cycle failure")
		}
		return pkgerrors.Wrap(err, "failed to fetch snapshot")
	}

	m := metrics.Derive(snap, s.opts.Limits)
	if sv, err := s.opts.Savings.Savings(ctx, m); err != nil {
		logger.WithError(err).Warn("failed to get savings")
	} else {
		m.Savings = sv
	}

	s.opts.Sink.Render(m)
	s.succeeded.Add(1)
	if err := s.tracker.Succeed(m); err != nil {
		logger.WithError(err).Error("failed to record cycle success")
		return err
	}

	logger.WithFields(logrus.Fields{
		"pv":      m.TotalPVPower,
		"soc":     m.SOC,
		"grid":    m.TotalGridPower,
		"load":    m.LoadPower,
		"elapsed": s.opts.Clock.Since(start),
	}).Debug("refresh cycle succeeded")
	return nil
}

// Stop prevents future cycles and clock ticks, including those of a later
// Start, which returns ErrStopped. It returns once the loop has
// exited; cycles already in flight keep running, see Wait.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.loopDone
	}
}

// Wait blocks until the loop has exited and every in-flight cycle is done.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.loopDone
	}
	s.inflight.Wait()
}

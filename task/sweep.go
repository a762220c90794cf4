package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrSweepRunning is returned when a sweep is requested while one is already
// in flight.
var ErrSweepRunning = errors.New("sweep already running")

// Sweeper drives the daily status reconciliation. It fires once at the start
// of each calendar day, reconciles every task against a single reference
// date, and fans each transition out to the task's team.
type Sweeper struct {
	Engine    *Engine
	Announcer Announcer
	Now       Clock
	Logger    *slog.Logger

	running sync.Mutex // single-flight guard
	stop    chan struct{}
	done    chan struct{}
}

// NewSweeper wires a Sweeper. clock may be nil, defaulting to time.Now.
func NewSweeper(engine *Engine, announcer Announcer, clock Clock, logger *slog.Logger) *Sweeper {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		Engine:    engine,
		Announcer: announcer,
		Now:       clock,
		Logger:    logger,
	}
}

// Start launches the background loop. Each firing waits for the previous run
// to finish before the next day's can begin, so two sweeps never straddle a
// day boundary with different reference dates.
func (s *Sweeper) Start() {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop()
}

// Stop shuts the loop down and waits for it to exit.
func (s *Sweeper) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
}

func (s *Sweeper) loop() {
	defer close(s.done)
	for {
		wait := time.Until(nextMidnight(s.Now()))
		timer := time.NewTimer(wait)
		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
			if _, err := s.RunOnce(context.Background()); err != nil && !errors.Is(err, ErrSweepRunning) {
				s.Logger.Error("daily sweep finished with errors", slog.Any("err", err))
			}
		}
	}
}

// RunOnce performs a single sweep. The reference date is captured once, so
// every task in the run is judged against the same day regardless of how
// long the scan takes. Safe to call manually; a call that overlaps an
// in-flight sweep returns ErrSweepRunning instead of double-evaluating.
func (s *Sweeper) RunOnce(ctx context.Context) ([]*Transition, error) {
	if !s.running.TryLock() {
		return nil, ErrSweepRunning
	}
	defer s.running.Unlock()

	ref := s.Now()
	s.Logger.Info("sweep started", slog.Time("reference", ref))

	transitions, err := s.Engine.ReconcileAll(ref)
	for _, tr := range transitions {
		if s.Announcer != nil {
			s.Announcer.AnnounceTransition(ctx, tr)
		}
	}

	s.Logger.Info("sweep finished",
		slog.Int("transitions", len(transitions)),
		slog.Bool("had_errors", err != nil))
	return transitions, err
}

// nextMidnight returns the start of the calendar day after now.
func nextMidnight(now time.Time) time.Time {
	return dateOnly(now).AddDate(0, 0, 1)
}

package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Runner is the work triggered once per day.
type Runner interface {
	Execute(ctx context.Context) (int, error)
}

// Scheduler fires a Runner every day at a fixed wall-clock time in a fixed
// timezone. Outcomes are only logged; there is no caller to report to.
type Scheduler struct {
	runner     Runner
	hour       int
	minute     int
	loc        *time.Location
	runTimeout time.Duration
	now        func() time.Time
}

func New(r Runner, hour, minute int, loc *time.Location, runTimeout time.Duration) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		runner:     r,
		hour:       hour,
		minute:     minute,
		loc:        loc,
		runTimeout: runTimeout,
		now:        time.Now,
	}
}

// Start blocks until ctx is cancelled, running the job at each daily slot.
func (s *Scheduler) Start(ctx context.Context) {
	for {
		now := s.now()
		next := NextRun(now, s.hour, s.minute, s.loc)
		slog.Info("Next scheduled run", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("Scheduler stopped")
			return
		case <-timer.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in scheduled run", "panic", r)
		}
	}()
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	n, err := s.runner.Execute(runCtx)
	if err != nil {
		slog.Error("Scheduled run failed", "error", err, "stored", n)
		return
	}
	slog.Info("Scheduled run finished", "stored", n)
}

// NextRun returns the first hour:minute in loc strictly after now.
// time.Date normalizes nonexistent DST wall times.
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

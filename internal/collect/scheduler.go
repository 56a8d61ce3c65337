package collect

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Updater is the part of Collector the scheduler drives.
type Updater interface {
	UpdateCurrent(ctx context.Context) (*Result, error)
}

// Scheduler runs a daily current-year update at a fixed local time.
type Scheduler struct {
	updater Updater
	hour    int
	minute  int
	log     *zap.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// NewScheduler creates a scheduler firing every day at hour:minute local time.
func NewScheduler(u Updater, hour, minute int, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		updater: u,
		hour:    hour,
		minute:  minute,
		log:     log,
		now:     time.Now,
		after:   time.After,
	}
}

// Run blocks until ctx is cancelled. A failed update is logged and the next
// day's run is still scheduled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		next := NextRun(s.now(), s.hour, s.minute)
		s.log.Info("next scheduled update", zap.Time("at", next))

		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-s.after(next.Sub(s.now())):
		}

		res, err := s.updater.UpdateCurrent(ctx)
		if err != nil {
			s.log.Error("scheduled update failed", zap.Error(err))
			continue
		}
		s.log.Info("scheduled update done", zap.String("run_id", res.RunID), zap.Int("added", res.Added))
	}
}

// NextRun returns the first hour:minute strictly after now, in now's location.
func NextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, now.Location())
	}
	return next
}

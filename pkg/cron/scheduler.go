// Package cron runs scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// SessionPurger is the slice of the session store the scheduler needs.
type SessionPurger interface {
	Purge(now time.Time) int
	Len() int
}

// Scheduler manages background jobs. Right now that is one job: reaping
// idle import sessions so abandoned wizards release their file buffers.
type Scheduler struct {
	cron     *cron.Cron
	sessions SessionPurger
	logger   *slog.Logger
}

// NewScheduler creates the job scheduler.
func NewScheduler(sessions SessionPurger, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))
	return &Scheduler{
		cron:     c,
		sessions: sessions,
		logger:   logger,
	}
}

// Start registers and begins the scheduled jobs.
func (s *Scheduler) Start() error {
	// Session purge: every five minutes.
	if _, err := s.cron.AddFunc("*/5 * * * *", s.purgeSessions); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started", slog.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow triggers the purge immediately (admin/testing).
func (s *Scheduler) RunNow() {
	go s.purgeSessions()
}

func (s *Scheduler) purgeSessions() {
	removed := s.sessions.Purge(time.Now())
	if removed > 0 {
		s.logger.Info("purged idle import sessions",
			slog.Int("removed", removed),
			slog.Int("remaining", s.sessions.Len()),
		)
	}
}

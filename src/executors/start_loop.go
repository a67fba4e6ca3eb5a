package executors

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"stockbot/src/risk"
)

type sweeper interface {
	RunAll(ctx context.Context) SweepResult
}

// Scheduler fires the all-users sweep on a cron schedule.
type Scheduler struct {
	logger   *logrus.Entry
	sweeper  sweeper
	schedule cron.Schedule
	location *time.Location
	skipShut bool

	now   func() time.Time
	after func(d time.Duration) <-chan time.Time
}

func NewScheduler(logger *logrus.Entry, s sweeper, cfg Config) (*Scheduler, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	loc, err := time.LoadLocation(cfg.ScheduleTimezone)
	if err != nil {
		return nil, fmt.Errorf("load schedule timezone %q: %w", cfg.ScheduleTimezone, err)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", cfg.Schedule, err)
	}

	return &Scheduler{
		logger:   logger.WithField("component", "scheduler"),
		sweeper:  s,
		schedule: schedule,
		location: loc,
		skipShut: cfg.SkipMarketClosed,
		now:      time.Now,
		after:    time.After,
	}, nil
}

// Next returns the first firing strictly after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.location))
}

// StartLoop blocks until ctx is done, running one sweep per firing.
func (s *Scheduler) StartLoop(ctx context.Context) error {
	for {
		next := s.Next(s.now())
		s.logger.WithField("next_run", next.Format(time.RFC3339)).Info("waiting for next sweep")

		select {
		case <-ctx.Done():
			s.logger.Info("loop stopped")
			return nil

		case fired := <-s.after(next.Sub(s.now())):
			s.tick(ctx, fired)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, fired time.Time) {
	if s.skipShut && !risk.IsTradingDay(fired) {
		s.logger.WithField("date", fired.Format("2006-01-02")).Info("market closed today, sweep skipped")
		return
	}

	res := s.sweeper.RunAll(ctx)
	log := s.logger.WithFields(logrus.Fields{
		"skipped": res.Skipped,
		"users":   len(res.Runs),
	})
	if res.Err != nil {
		log.WithError(res.Err).Error("sweep finished with error")
		return
	}
	log.Info("sweep finished")
}

// Package scheduler fires draws and housekeeping on the fixed schedule:
// daily draws at 12:00, weekly draws on Friday at 12:00, monthly draws on
// the 1st at 12:00, and a retention sweep every hour. All times are in the
// bot's fixed zone.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"lottery-bot/internal/clock"
	"lottery-bot/internal/draw"
	"lottery-bot/internal/model"
)

// Triggerer starts a draw for a tier.
type Triggerer interface {
	Trigger(ctx context.Context, tier model.Tier) error
}

// Sweeper runs one retention pass.
type Sweeper interface {
	Run(ctx context.Context)
}

// Scheduler owns the cron instance and translates its ticks into draw
// triggers and sweeps.
type Scheduler struct {
	cron    *cron.Cron
	engine  Triggerer
	sweeper Sweeper
	logger  zerolog.Logger
}

// New creates a scheduler. Entries are registered immediately; nothing
// fires until Start.
func New(engine Triggerer, sweeper Sweeper, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(clock.Zone)),
		engine:  engine,
		sweeper: sweeper,
		logger:  logger.With().Str("component", "scheduler").Logger(),
	}

	entries := []struct {
		spec string
		tier model.Tier
	}{
		{"0 12 * * *", model.TierDaily},
		{"0 12 * * FRI", model.TierWeekly},
		{"0 12 1 * *", model.TierMonthly},
	}
	for _, e := range entries {
		tier := e.tier
		if _, err := s.cron.AddFunc(e.spec, func() { s.fire(tier) }); err != nil {
			return nil, err
		}
	}

	if _, err := s.cron.AddFunc("0 * * * *", s.sweep); err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins firing scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("scheduler started")
}

// Stop halts scheduling and waits for running jobs to return. Draws that
// already detached their countdown goroutine finish on their own.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) fire(tier model.Tier) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info().Str("tier", tier.String()).Msg("scheduled draw firing")
	err := s.engine.Trigger(ctx, tier)
	switch {
	case err == nil:
	case errors.Is(err, draw.ErrNoTickets), errors.Is(err, draw.ErrDrawDisabled):
		// Both outcomes are announced by the engine; nothing to retry.
		s.logger.Info().Err(err).Str("tier", tier.String()).Msg("scheduled draw skipped")
	default:
		s.logger.Error().Err(err).Str("tier", tier.String()).Msg("scheduled draw failed to start")
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	s.sweeper.Run(ctx)
}

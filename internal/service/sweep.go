package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"lottery-bot/internal/clock"
	"lottery-bot/internal/model"
	"lottery-bot/internal/repository"
)

// Retention windows applied by the hourly sweep.
const (
	requestRetention = 30 * 24 * time.Hour
	auditRetention   = 30 * 24 * time.Hour
	winnerRetention  = 365 * 24 * time.Hour
)

// SessionEvictor removes expired in-memory dialogue sessions.
type SessionEvictor interface {
	EvictExpired() int
}

// SweepService prunes aged rows and stale dialogue state. It shares the
// scheduler with the draw jobs but has no bearing on draw correctness.
type SweepService struct {
	pending  *repository.PendingRequestRepository
	audit    *repository.AuditLogRepository
	winners  *repository.WinnerRepository
	sessions SessionEvictor
}

// NewSweepService creates a new SweepService instance.
func NewSweepService(
	pending *repository.PendingRequestRepository,
	audit *repository.AuditLogRepository,
	winners *repository.WinnerRepository,
	sessions SessionEvictor,
) *SweepService {
	return &SweepService{
		pending:  pending,
		audit:    audit,
		winners:  winners,
		sessions: sessions,
	}
}

// Run performs one retention pass. Each target is pruned independently; a
// failure on one is logged and the rest still run. A pass that deleted
// anything leaves a purge entry in the audit log.
func (s *SweepService) Run(ctx context.Context) {
	now := clock.Now()

	var requests, winners, auditRows int64

	requestCutoff := now.Add(-requestRetention).Format(clock.DateFormat)
	if n, err := s.pending.DeleteOlderThan(ctx, requestCutoff); err != nil {
		log.Error().Err(err).Msg("Failed to prune pending requests")
	} else if n > 0 {
		requests = n
		log.Info().Int64("deleted", n).Msg("Pruned stale pending requests")
	}

	if n, err := s.audit.DeleteOlderThan(ctx, now.Add(-auditRetention)); err != nil {
		log.Error().Err(err).Msg("Failed to prune audit log")
	} else if n > 0 {
		auditRows = n
		log.Info().Int64("deleted", n).Msg("Pruned audit log")
	}

	winnerCutoff := now.Add(-winnerRetention).Format(clock.DateFormat)
	if n, err := s.winners.DeleteOlderThan(ctx, winnerCutoff); err != nil {
		log.Error().Err(err).Msg("Failed to prune winners")
	} else if n > 0 {
		winners = n
		log.Info().Int64("deleted", n).Msg("Pruned old winners")
	}

	if requests+winners+auditRows > 0 {
		details := fmt.Sprintf("requests %d, winners %d, audit rows %d", requests, winners, auditRows)
		if err := s.audit.Record(ctx, 0, model.AuditPurge, 0, details); err != nil {
			log.Error().Err(err).Msg("Failed to record purge in audit log")
		}
	}

	if evicted := s.sessions.EvictExpired(); evicted > 0 {
		log.Info().Int("evicted", evicted).Msg("Evicted idle dialogue sessions")
	}
}

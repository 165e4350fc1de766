package service

import (
	"context"
	"strconv"

	"github.com/rs/zerolog/log"

	"lottery-bot/internal/clock"
	"lottery-bot/internal/model"
	"lottery-bot/internal/repository"
)

// GlobalStats aggregates all-time sales figures. PaidOut is the running
// payout total maintained by the settle step.
type GlobalStats struct {
	TotalUsers   int
	TotalTickets int
	TotalRevenue int64
	PrizePool    int64
	PaidOut      int64
}

// TierStats aggregates one tier's current window.
type TierStats struct {
	Tier    model.Tier
	Window  clock.Window
	Tickets int
	Users   int
	Prize   int64
}

// StatsService computes the figures shown on the stats screens. Everything
// is re-queried from storage on each call; nothing is cached in memory.
type StatsService struct {
	tickets  *repository.TicketRepository
	winners  *repository.WinnerRepository
	settings *repository.SettingsRepository
}

// NewStatsService creates a new StatsService instance.
func NewStatsService(tickets *repository.TicketRepository, winners *repository.WinnerRepository, settings *repository.SettingsRepository) *StatsService {
	return &StatsService{tickets: tickets, winners: winners, settings: settings}
}

// Global returns all-time totals with the prize pool preview.
func (s *StatsService) Global(ctx context.Context) (*GlobalStats, error) {
	users, tickets, err := s.tickets.GlobalStats(ctx)
	if err != nil {
		return nil, err
	}
	return &GlobalStats{
		TotalUsers:   users,
		TotalTickets: tickets,
		TotalRevenue: int64(tickets) * model.TicketPrice,
		PrizePool:    model.PrizeAmount(tickets),
		PaidOut:      s.paidOut(ctx),
	}, nil
}

// paidOut reads the cumulative payout counter. A missing or unreadable
// value degrades to zero rather than failing the stats screen.
func (s *StatsService) paidOut(ctx context.Context) int64 {
	value, err := s.settings.Get(ctx, model.SettingCumulativePrize)
	if err != nil {
		return 0
	}
	total, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Warn().Str("value", value).Msg("Malformed cumulative prize setting")
		return 0
	}
	return total
}

// Window returns one tier's current-window figures with the prize that a
// draw held now would pay.
func (s *StatsService) Window(ctx context.Context, tier model.Tier) (*TierStats, error) {
	w := clock.WindowFor(tier, clock.Now())
	tickets, users, err := s.tickets.WindowStats(ctx, tier, w)
	if err != nil {
		return nil, err
	}
	return &TierStats{
		Tier:    tier,
		Window:  w,
		Tickets: tickets,
		Users:   users,
		Prize:   model.PrizeAmount(tickets),
	}, nil
}

// RecentWinners lists the latest draw outcomes, newest first.
func (s *StatsService) RecentWinners(ctx context.Context, limit int) ([]*model.Winner, error) {
	return s.winners.ListRecent(ctx, limit)
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"lottery-bot/internal/clock"
	"lottery-bot/internal/model"
	"lottery-bot/internal/pkg/db"
)

// DrawRepository performs the settle step of a draw: select a winner,
// record it, and retire the window's ticket pool. The statements run in
// one transaction on one connection so the winner record and the
// retirement can never be observed apart.
type DrawRepository struct {
	pool  *db.Pool
	audit *AuditLogRepository
}

// NewDrawRepository creates a new DrawRepository instance.
func NewDrawRepository(pool *db.Pool, audit *AuditLogRepository) *DrawRepository {
	return &DrawRepository{pool: pool, audit: audit}
}

// DrawStore bundles the pool check with the settle step, which is the
// persistence surface the draw engine works against.
type DrawStore struct {
	*TicketRepository
	*DrawRepository
}

// NewDrawStore creates a DrawStore over the two repositories.
func NewDrawStore(tickets *TicketRepository, draws *DrawRepository) *DrawStore {
	return &DrawStore{TicketRepository: tickets, DrawRepository: draws}
}

// Settle draws one uniformly random winner from the tier's window,
// records it with the prize computed from the full pool size, and deletes
// every ticket of that tier in the window. Returns ErrNoTickets when the
// window is empty at settle time.
func (r *DrawRepository) Settle(ctx context.Context, tier model.Tier, w clock.Window, drawTime time.Time) (*model.DrawResult, error) {
	var result model.DrawResult

	err := r.pool.WithTx(ctx, func(tx pgx.Tx) error {
		const countQuery = `
			SELECT COUNT(*) FROM tickets
			WHERE ticket_type = $1 AND purchase_date >= $2 AND purchase_date <= $3
		`
		var total int
		if err := tx.QueryRow(ctx, countQuery, tier.String(), w.Start, w.End).Scan(&total); err != nil {
			return fmt.Errorf("failed to count window tickets: %w", err)
		}
		if total == 0 {
			return ErrNoTickets
		}

		// Uniform row sampling; pools are small enough that ORDER BY
		// RANDOM() stays cheap.
		const selectQuery = `
			SELECT id, user_id, username, ticket_number, purchase_date
			FROM tickets
			WHERE ticket_type = $1 AND purchase_date >= $2 AND purchase_date <= $3
			ORDER BY RANDOM()
			LIMIT 1
		`
		var (
			ticketID     int64
			userID       int64
			username     string
			ticketNumber string
			purchaseDate string
		)
		err := tx.QueryRow(ctx, selectQuery, tier.String(), w.Start, w.End).
			Scan(&ticketID, &userID, &username, &ticketNumber, &purchaseDate)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNoTickets
			}
			return fmt.Errorf("failed to select winner: %w", err)
		}

		winner := &model.Winner{
			UserID:       userID,
			Username:     username,
			TicketNumber: ticketNumber,
			PurchaseDate: purchaseDate,
			TicketType:   tier.String(),
			WinDate:      drawTime.Format("2006-01-02 15:04:05"),
			PrizeAmount:  model.PrizeAmount(total),
		}

		const insertQuery = `
			INSERT INTO winners (user_id, username, ticket_number, purchase_date, ticket_type, win_date, prize_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`
		err = tx.QueryRow(ctx, insertQuery,
			winner.UserID, winner.Username, winner.TicketNumber, winner.PurchaseDate,
			winner.TicketType, winner.WinDate, winner.PrizeAmount,
		).Scan(&winner.ID)
		if err != nil {
			return fmt.Errorf("failed to record winner: %w", err)
		}

		// Retire the entire window pool, not just the winning ticket.
		const retireQuery = `
			DELETE FROM tickets
			WHERE ticket_type = $1 AND purchase_date >= $2 AND purchase_date <= $3
		`
		if _, err := tx.Exec(ctx, retireQuery, tier.String(), w.Start, w.End); err != nil {
			return fmt.Errorf("failed to retire tickets: %w", err)
		}

		// Running totals shown on the stats screens: every settle adds to
		// the cumulative payout, the daily counter mirrors the last daily
		// draw's prize.
		const bumpCumulativeQuery = `
			INSERT INTO settings (key, value) VALUES ($1, $2::TEXT)
			ON CONFLICT (key) DO UPDATE SET value = ((settings.value)::BIGINT + $2)::TEXT
		`
		if _, err := tx.Exec(ctx, bumpCumulativeQuery, model.SettingCumulativePrize, winner.PrizeAmount); err != nil {
			return fmt.Errorf("failed to update cumulative prize: %w", err)
		}
		if tier == model.TierDaily {
			const setDailyQuery = `
				INSERT INTO settings (key, value) VALUES ($1, $2::TEXT)
				ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
			`
			if _, err := tx.Exec(ctx, setDailyQuery, model.SettingDailyPrize, winner.PrizeAmount); err != nil {
				return fmt.Errorf("failed to update daily prize: %w", err)
			}
		}

		details := fmt.Sprintf("%s: ticket %s won %d from a pool of %d",
			tier, winner.TicketNumber, winner.PrizeAmount, total)
		if err := r.audit.RecordTx(ctx, tx, 0, model.AuditDraw, winner.UserID, details); err != nil {
			return err
		}

		result.Winner = winner
		result.TotalTickets = total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

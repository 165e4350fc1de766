// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lottery-bot/internal/clock"
	"lottery-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrRequestNotFound  = errors.New("pending request not found")
	ErrDuplicateReceipt = errors.New("receipt number already used")
	ErrNoTickets        = errors.New("no tickets in window")
	ErrSettingNotFound  = errors.New("setting not found")
)

// TicketRepository handles sold-ticket persistence. Tickets are created in
// batches on approval and deleted wholesale when their window is drawn.
type TicketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository creates a new TicketRepository instance.
func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

// InsertBatchTx inserts tickets inside the caller's transaction. All rows
// commit or none do.
func (r *TicketRepository) InsertBatchTx(ctx context.Context, tx pgx.Tx, tickets []*model.Ticket) error {
	const query = `
		INSERT INTO tickets (user_id, username, ticket_number, purchase_date, ticket_type, is_winner, receipt_number)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
	`

	for _, t := range tickets {
		if _, err := tx.Exec(ctx, query,
			t.UserID, t.Username, t.TicketNumber, t.PurchaseDate, t.TicketType, t.ReceiptNumber,
		); err != nil {
			return fmt.Errorf("failed to insert ticket: %w", err)
		}
	}
	return nil
}

// CountInWindow counts a tier's tickets inside the window.
func (r *TicketRepository) CountInWindow(ctx context.Context, tier model.Tier, w clock.Window) (int, error) {
	const query = `
		SELECT COUNT(*) FROM tickets
		WHERE ticket_type = $1 AND purchase_date >= $2 AND purchase_date <= $3
	`

	var count int
	err := r.pool.QueryRow(ctx, query, tier.String(), w.Start, w.End).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tickets: %w", err)
	}
	return count, nil
}

// NumbersInWindow returns the set of ticket numbers already issued for a
// tier's window. Number generation queries this fresh on every approval.
func (r *TicketRepository) NumbersInWindow(ctx context.Context, tier model.Tier, w clock.Window) (map[string]struct{}, error) {
	const query = `
		SELECT ticket_number FROM tickets
		WHERE ticket_type = $1 AND purchase_date >= $2 AND purchase_date <= $3
	`

	rows, err := r.pool.Query(ctx, query, tier.String(), w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticket numbers: %w", err)
	}
	defer rows.Close()

	numbers := make(map[string]struct{})
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan ticket number: %w", err)
		}
		numbers[n] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ticket numbers: %w", err)
	}
	return numbers, nil
}

// ListByUser retrieves all of a user's live tickets.
func (r *TicketRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Ticket, error) {
	const query = `
		SELECT id, user_id, username, ticket_number, purchase_date, ticket_type, is_winner, receipt_number
		FROM tickets
		WHERE user_id = $1
		ORDER BY purchase_date DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*model.Ticket
	for rows.Next() {
		var t model.Ticket
		err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.Username,
			&t.TicketNumber,
			&t.PurchaseDate,
			&t.TicketType,
			&t.IsWinner,
			&t.ReceiptNumber,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}
	return tickets, nil
}

// WindowStats returns the ticket and distinct-buyer counts for a tier's
// window, used for prize previews.
func (r *TicketRepository) WindowStats(ctx context.Context, tier model.Tier, w clock.Window) (tickets, users int, err error) {
	const query = `
		SELECT COUNT(*), COUNT(DISTINCT user_id) FROM tickets
		WHERE ticket_type = $1 AND purchase_date >= $2 AND purchase_date <= $3
	`

	err = r.pool.QueryRow(ctx, query, tier.String(), w.Start, w.End).Scan(&tickets, &users)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get window stats: %w", err)
	}
	return tickets, users, nil
}

// GlobalStats returns all-time buyer and ticket totals.
func (r *TicketRepository) GlobalStats(ctx context.Context) (totalUsers, totalTickets int, err error) {
	const query = `SELECT COUNT(DISTINCT user_id), COUNT(*) FROM tickets`

	err = r.pool.QueryRow(ctx, query).Scan(&totalUsers, &totalTickets)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get global stats: %w", err)
	}
	return totalUsers, totalTickets, nil
}

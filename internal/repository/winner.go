package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"lottery-bot/internal/model"
)

// WinnerRepository handles the append-only record of draw outcomes.
// Winner rows are written only by DrawRepository.Settle, inside the same
// transaction that retires the drawn ticket pool.
type WinnerRepository struct {
	pool *pgxpool.Pool
}

// NewWinnerRepository creates a new WinnerRepository instance.
func NewWinnerRepository(pool *pgxpool.Pool) *WinnerRepository {
	return &WinnerRepository{pool: pool}
}

// ListRecent retrieves the most recent winners, newest first.
func (r *WinnerRepository) ListRecent(ctx context.Context, limit int) ([]*model.Winner, error) {
	const query = `
		SELECT id, user_id, username, ticket_number, purchase_date, ticket_type, win_date, prize_amount
		FROM winners
		ORDER BY id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list winners: %w", err)
	}
	defer rows.Close()

	var winners []*model.Winner
	for rows.Next() {
		var w model.Winner
		err := rows.Scan(
			&w.ID,
			&w.UserID,
			&w.Username,
			&w.TicketNumber,
			&w.PurchaseDate,
			&w.TicketType,
			&w.WinDate,
			&w.PrizeAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan winner: %w", err)
		}
		winners = append(winners, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating winners: %w", err)
	}
	return winners, nil
}

// DeleteOlderThan removes winner records older than the cutoff date
// (YYYY-MM-DD; win_date strings compare lexicographically).
func (r *WinnerRepository) DeleteOlderThan(ctx context.Context, cutoff string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM winners WHERE win_date < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune winners: %w", err)
	}
	return tag.RowsAffected(), nil
}

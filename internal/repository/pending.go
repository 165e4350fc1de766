package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lottery-bot/internal/model"
)

const pendingColumns = `id, user_id, username, ticket_type, payment_method, request_time, receipt_number, status, quantity, admin_notes`

// PendingRequestRepository handles the queue of submitted, not-yet-reviewed
// purchase requests. Rows are deleted on approval or rejection, never
// status-transitioned.
type PendingRequestRepository struct {
	pool *pgxpool.Pool
}

// NewPendingRequestRepository creates a new PendingRequestRepository instance.
func NewPendingRequestRepository(pool *pgxpool.Pool) *PendingRequestRepository {
	return &PendingRequestRepository{pool: pool}
}

// Create inserts a new pending request and returns its id.
// A non-null receipt number must be unique across all pending requests;
// a duplicate returns ErrDuplicateReceipt with no row inserted.
func (r *PendingRequestRepository) Create(ctx context.Context, req *model.PendingRequest) (int64, error) {
	if req.ReceiptNumber != nil {
		const dupQuery = `SELECT id FROM pending_requests WHERE receipt_number = $1`
		var existing int64
		err := r.pool.QueryRow(ctx, dupQuery, *req.ReceiptNumber).Scan(&existing)
		if err == nil {
			return 0, fmt.Errorf("%w: already used by request #%d", ErrDuplicateReceipt, existing)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("failed to check receipt uniqueness: %w", err)
		}
	}

	const query = `
		INSERT INTO pending_requests (user_id, username, ticket_type, payment_method, request_time, receipt_number, status, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7)
		RETURNING id
	`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		req.UserID, req.Username, req.TicketType, req.PaymentMethod,
		req.RequestTime, req.ReceiptNumber, req.Quantity,
	).Scan(&id)
	if err != nil {
		// The partial unique index closes the pre-check's race window.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateReceipt
		}
		return 0, fmt.Errorf("failed to create pending request: %w", err)
	}
	return id, nil
}

// GetByID retrieves a pending request.
// Returns ErrRequestNotFound if it was already processed or never existed.
func (r *PendingRequestRepository) GetByID(ctx context.Context, id int64) (*model.PendingRequest, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_requests WHERE id = $1`

	req, err := scanPending(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get pending request: %w", err)
	}
	return req, nil
}

// DeleteTx removes a pending request inside the caller's transaction.
// Returns ErrRequestNotFound when no row was deleted, which makes
// double-approval a visible no-op instead of a duplicate ticket batch.
func (r *PendingRequestRepository) DeleteTx(ctx context.Context, tx pgx.Tx, id int64) error {
	tag, err := tx.Exec(ctx, `DELETE FROM pending_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pending request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// List retrieves pending requests oldest first, paged.
func (r *PendingRequestRepository) List(ctx context.Context, limit, offset int) ([]*model.PendingRequest, error) {
	query := `
		SELECT ` + pendingColumns + `
		FROM pending_requests
		ORDER BY id ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	defer rows.Close()

	var requests []*model.PendingRequest
	for rows.Next() {
		req, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending requests: %w", err)
	}
	return requests, nil
}

// ListByUser retrieves a user's own pending requests, newest first.
func (r *PendingRequestRepository) ListByUser(ctx context.Context, userID int64) ([]*model.PendingRequest, error) {
	query := `
		SELECT ` + pendingColumns + `
		FROM pending_requests
		WHERE user_id = $1
		ORDER BY id DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user pending requests: %w", err)
	}
	defer rows.Close()

	var requests []*model.PendingRequest
	for rows.Next() {
		req, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending requests: %w", err)
	}
	return requests, nil
}

// CountByUser counts a user's open requests.
func (r *PendingRequestRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM pending_requests WHERE user_id = $1`

	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending requests: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes requests submitted before the cutoff date
// (a YYYY-MM-DD string; request_time strings compare lexicographically).
func (r *PendingRequestRepository) DeleteOlderThan(ctx context.Context, cutoff string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pending_requests WHERE request_time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune pending requests: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanPending(row pgx.Row) (*model.PendingRequest, error) {
	var req model.PendingRequest
	err := row.Scan(
		&req.ID,
		&req.UserID,
		&req.Username,
		&req.TicketType,
		&req.PaymentMethod,
		&req.RequestTime,
		&req.ReceiptNumber,
		&req.Status,
		&req.Quantity,
		&req.AdminNotes,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

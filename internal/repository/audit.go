package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLogRepository records admin actions.
type AuditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository creates a new AuditLogRepository instance.
func NewAuditLogRepository(pool *pgxpool.Pool) *AuditLogRepository {
	return &AuditLogRepository{pool: pool}
}

// RecordTx appends an audit entry inside the caller's transaction, so the
// entry commits together with the action it describes.
func (r *AuditLogRepository) RecordTx(ctx context.Context, tx pgx.Tx, adminID int64, action string, targetID int64, details string) error {
	const query = `
		INSERT INTO audit_log (admin_id, action, target_id, details, timestamp)
		VALUES ($1, $2, $3, $4, NOW())
	`

	if _, err := tx.Exec(ctx, query, adminID, action, targetID, details); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// Record appends an audit entry outside any transaction.
func (r *AuditLogRepository) Record(ctx context.Context, adminID int64, action string, targetID int64, details string) error {
	const query = `
		INSERT INTO audit_log (admin_id, action, target_id, details, timestamp)
		VALUES ($1, $2, $3, $4, NOW())
	`

	if _, err := r.pool.Exec(ctx, query, adminID, action, targetID, details); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// DeleteOlderThan removes audit entries older than the cutoff.
func (r *AuditLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_log WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit log: %w", err)
	}
	return tag.RowsAffected(), nil
}

// audit_repository.go implements AuditRepository. Audit rows are written by
// RequestRepository inside the transaction that caused them; this repository
// only reads.
package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/platformhub/platformhub/internal/db/models"
)

// AuditRepository handles audit log queries
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// ListByRequest returns all entries for a request, oldest first, annotated
// with the actor's username.
func (r *AuditRepository) ListByRequest(ctx context.Context, requestID int64) ([]models.AuditEntry, error) {
	query := `
		SELECT a.id, a.request_id, a.action, u.username AS actor, a.details, a.created_at
		FROM audit_logs a
		JOIN users u ON u.id = a.actor_id
		WHERE a.request_id = $1
		ORDER BY a.created_at ASC, a.id ASC
	`

	entries := []models.AuditEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, requestID); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

// insertAuditLog appends an entry using the caller's transaction and fills in
// ID and CreatedAt.
func insertAuditLog(ctx context.Context, tx *sqlx.Tx, entry *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (request_id, action, actor_id, details)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := tx.QueryRowxContext(ctx, query,
		entry.RequestID,
		entry.Action,
		entry.ActorID,
		entry.Details,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

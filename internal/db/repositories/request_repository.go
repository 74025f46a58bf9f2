// request_repository.go implements RequestRepository: request creation, scoped
// listing, and the transactional review that enforces the pending → terminal
// state machine under a row lock.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/platformhub/platformhub/internal/db/models"
)

const requestColumns = `id, resource_type, name, environment, parameters, status, generated_manifest,
	requester_id, reviewer_id, review_comment, created_at, reviewed_at`

// RequestFilter narrows List. Zero values mean "no restriction".
type RequestFilter struct {
	RequesterID *int64
	Status      *models.RequestStatus
	// OldestFirst flips the default newest-first ordering.
	OldestFirst bool
}

// ReviewFunc decides a review against the locked, current row. It mutates req
// in place and returns the audit entry to append, or an error to abort the
// transaction.
type ReviewFunc func(req *models.ResourceRequest) (*models.AuditLog, error)

// RequestRepository handles resource request database operations
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository creates a new RequestRepository
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a pending request together with its "created" audit entry in
// a single transaction. ID, Status and CreatedAt are filled in on req; ID,
// RequestID and CreatedAt on entry.
func (r *RequestRepository) Create(ctx context.Context, req *models.ResourceRequest, entry *models.AuditLog) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	query := `
		INSERT INTO resource_requests (resource_type, name, environment, parameters, requester_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, status, created_at
	`
	err = tx.QueryRowxContext(ctx, query,
		req.ResourceType,
		req.Name,
		req.Environment,
		req.Parameters,
		req.RequesterID,
	).Scan(&req.ID, &req.Status, &req.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	entry.RequestID = req.ID
	if err := insertAuditLog(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit request: %w", err)
	}
	return nil
}

// GetByID retrieves a request by ID. Returns nil, nil when absent.
func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*models.ResourceRequest, error) {
	var req models.ResourceRequest
	err := r.db.GetContext(ctx, &req, `SELECT `+requestColumns+` FROM resource_requests WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return &req, nil
}

// List returns requests matching filter, newest first unless
// filter.OldestFirst is set.
func (r *RequestRepository) List(ctx context.Context, filter RequestFilter) ([]models.ResourceRequest, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		where = append(where, fmt.Sprintf("requester_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + requestColumns + ` FROM resource_requests`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if filter.OldestFirst {
		query += ` ORDER BY created_at ASC, id ASC`
	} else {
		query += ` ORDER BY created_at DESC, id DESC`
	}

	requests := []models.ResourceRequest{}
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, nil
}

// Review locks the request row, lets decide apply the transition, writes the
// new state back only if the row is still pending, and appends the audit
// entry, all in one transaction. Returns nil, nil, nil when the request does
// not exist. Any error leaves the row untouched.
func (r *RequestRepository) Review(ctx context.Context, id int64, decide ReviewFunc) (*models.ResourceRequest, *models.AuditLog, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	var req models.ResourceRequest
	err = tx.GetContext(ctx, &req,
		`SELECT `+requestColumns+` FROM resource_requests WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock request: %w", err)
	}

	entry, err := decide(&req)
	if err != nil {
		return nil, nil, err
	}

	update := `
		UPDATE resource_requests
		SET status = $2, generated_manifest = $3, reviewer_id = $4, review_comment = $5, reviewed_at = $6
		WHERE id = $1 AND status = 'pending'
	`
	res, err := tx.ExecContext(ctx, update,
		req.ID,
		req.Status,
		req.GeneratedManifest,
		req.ReviewerID,
		req.ReviewComment,
		req.ReviewedAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update request: %w", err)
	}
	if n == 0 {
		return nil, nil, ErrConcurrentUpdate
	}

	entry.RequestID = req.ID
	if err := insertAuditLog(ctx, tx, entry); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit review: %w", err)
	}
	return &req, entry, nil
}

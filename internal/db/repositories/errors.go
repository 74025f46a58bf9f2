// Package repositories implements the data access layer for PlatformHub.
// Each repository encapsulates all SQL for one table; handlers and services
// never issue queries directly.
package repositories

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")

	// ErrConcurrentUpdate is returned when a conditional update matched no
	// rows because another transaction changed the row first.
	ErrConcurrentUpdate = errors.New("row was modified concurrently")
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

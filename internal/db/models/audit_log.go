// Package models - audit_log.go defines the append-only audit trail attached to
// resource requests.
package models

import "time"

// Audit actions
const (
	AuditActionCreated  = "created"
	AuditActionApproved = "approved"
	AuditActionRejected = "rejected"
)

// AuditLog is a write-once event recorded against a request
type AuditLog struct {
	ID        int64     `json:"id" db:"id"`
	RequestID int64     `json:"request_id" db:"request_id"`
	Action    string    `json:"action" db:"action"`
	ActorID   int64     `json:"actor_id" db:"actor_id"`
	Details   string    `json:"details" db:"details"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AuditEntry is an AuditLog joined with the actor's username, as returned by
// the audit trail endpoint.
type AuditEntry struct {
	ID        int64     `json:"id" db:"id"`
	RequestID int64     `json:"-" db:"request_id"`
	Action    string    `json:"action" db:"action"`
	Actor     string    `json:"actor" db:"actor"`
	Details   string    `json:"details" db:"details"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

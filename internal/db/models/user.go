// Package models - user.go defines the User model and the closed set of roles
// that gate endpoint and row-level access.
package models

import "time"

// Role determines what a user may see and do.
type Role string

const (
	RoleDeveloper Role = "developer"
	RoleApprover  Role = "approver"
	RoleAdmin     Role = "admin"
)

// Roles lists every role in ascending privilege order.
var Roles = []Role{RoleDeveloper, RoleApprover, RoleAdmin}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleDeveloper, RoleApprover, RoleAdmin:
		return true
	}
	return false
}

// CanReview reports whether the role may act on the review queue.
func (r Role) CanReview() bool {
	return r == RoleApprover || r == RoleAdmin
}

// User represents a registered account
type User struct {
	ID             int64     `json:"id" db:"id"`
	Username       string    `json:"username" db:"username"`
	Email          string    `json:"email" db:"email"`
	HashedPassword string    `json:"-" db:"hashed_password"`
	Role           Role      `json:"role" db:"role"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Package auth - roles.go holds the single authorization decision used by every
// role-gated endpoint.
package auth

import (
	"errors"
	"fmt"

	"github.com/platformhub/platformhub/internal/db/models"
)

// ErrForbidden is returned when a role is not in the allowed set.
var ErrForbidden = errors.New("insufficient permissions")

// ReviewerRoles may list and decide pending requests.
var ReviewerRoles = []models.Role{models.RoleApprover, models.RoleAdmin}

// Authorize returns nil when role is one of allowed, ErrForbidden otherwise.
// An empty allowed set denies everyone.
func Authorize(role models.Role, allowed ...models.Role) error {
	for _, a := range allowed {
		if role == a {
			return nil
		}
	}
	return fmt.Errorf("%w: role %q", ErrForbidden, role)
}

// SeesAllRequests reports whether role may read requests it does not own.
func SeesAllRequests(role models.Role) bool {
	return Authorize(role, ReviewerRoles...) == nil
}

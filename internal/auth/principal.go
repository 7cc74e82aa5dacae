package auth

import (
	"slices"

	"github.com/vakspot/vakspot/internal/models"
)

// Principal is the authenticated identity derived from a verified session token.
// It is immutable for the lifetime of a request.
type Principal struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

// HasRole reports whether the principal holds one of roles
func (p *Principal) HasRole(roles ...models.Role) bool {
	return p != nil && slices.Contains(roles, p.Role)
}

// IsAdmin reports whether the principal is an admin
func (p *Principal) IsAdmin() bool {
	return p.HasRole(models.RoleAdmin)
}

// RoleHome returns the landing path for a role
func RoleHome(role models.Role) string {
	switch role {
	case models.RolePro:
		return "/pro/leads"
	case models.RoleAdmin:
		return "/admin"
	default:
		return "/client/jobs"
	}
}

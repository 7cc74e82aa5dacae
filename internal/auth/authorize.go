package auth

import (
	"github.com/vakspot/vakspot/internal/apperrors"
	"github.com/vakspot/vakspot/internal/models"
)

// Require checks presence and role membership. With no roles any
// authenticated principal passes.
func Require(p *Principal, roles ...models.Role) error {
	if p == nil {
		return apperrors.Unauthenticated()
	}
	if len(roles) > 0 && !p.HasRole(roles...) {
		return apperrors.Forbidden("")
	}
	return nil
}

// RequireOwner checks that the principal owns a resource
func RequireOwner(p *Principal, ownerID string) error {
	if p == nil {
		return apperrors.Unauthenticated()
	}
	if p.ID != ownerID {
		return apperrors.Forbidden("")
	}
	return nil
}

// RequireOwnerOrAdmin checks that the principal owns a resource or is an admin
func RequireOwnerOrAdmin(p *Principal, ownerID string) error {
	if p.IsAdmin() {
		return nil
	}
	return RequireOwner(p, ownerID)
}

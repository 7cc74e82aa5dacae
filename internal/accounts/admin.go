package accounts

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/vakspot/vakspot/internal/apperrors"
	"github.com/vakspot/vakspot/internal/auth"
	"github.com/vakspot/vakspot/internal/models"
)

// ListUsers returns all users, newest first, optionally filtered by role
func (s *Service) ListUsers(ctx context.Context, p *auth.Principal, role string) ([]models.User, error) {
	if err := auth.Require(p, models.RoleAdmin); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Order("created_at DESC")
	if role != "" {
		r, ok := models.ParseRole(role)
		if !ok {
			return nil, apperrors.Validation("Unknown role %q", role)
		}
		query = query.Where("role = ?", r)
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, apperrors.Unexpected("failed to list users", err)
	}
	return users, nil
}

// UpdateUserParams holds admin changes to an account; nil fields are left as-is
type UpdateUserParams struct {
	Role *string
	Name *string
}

// UpdateUser changes another user's role or name. Admins cannot modify their
// own account here. A role change takes effect at the user's next sign-in;
// tokens already issued keep the old role until they expire.
func (s *Service) UpdateUser(ctx context.Context, p *auth.Principal, id string, params UpdateUserParams) (*models.User, error) {
	if err := auth.Require(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	if id == p.ID {
		return nil, apperrors.Forbidden("You cannot modify your own account")
	}

	db := s.db.WithContext(ctx)
	var user models.User
	if err := models.FindByID(db, id, &user); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("User")
		}
		return nil, apperrors.Unexpected("failed to find user", err)
	}

	updates := map[string]any{}
	var newRole models.Role
	if params.Role != nil {
		r, ok := models.ParseRole(*params.Role)
		if !ok {
			return nil, apperrors.Validation("Unknown role %q", *params.Role)
		}
		if r != user.Role {
			newRole = r
			updates["role"] = r
		}
	}
	if params.Name != nil {
		updates["name"] = strings.TrimSpace(*params.Name)
	}

	if len(updates) > 0 {
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&user).Updates(updates).Error; err != nil {
				return apperrors.Unexpected("failed to update user", err)
			}
			return ensureRoleProfile(tx, user.ID, newRole)
		})
		if err != nil {
			return nil, err
		}
	}

	if newRole != "" {
		s.logger.Info().
			Str("user_id", user.ID).
			Str("role", string(newRole)).
			Str("changed_by", p.ID).
			Msg("User role changed")
	}

	return s.loadUser(db, user.ID)
}

// DeleteUser removes another user and everything they own
func (s *Service) DeleteUser(ctx context.Context, p *auth.Principal, id string) error {
	if err := auth.Require(p, models.RoleAdmin); err != nil {
		return err
	}
	if id == p.ID {
		return apperrors.Forbidden("You cannot delete your own account")
	}

	db := s.db.WithContext(ctx)
	var user models.User
	if err := models.FindByID(db, id, &user); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("User")
		}
		return apperrors.Unexpected("failed to find user", err)
	}

	if err := db.Delete(&user).Error; err != nil {
		return apperrors.Unexpected("failed to delete user", err)
	}

	s.logger.Info().
		Str("user_id", id).
		Str("deleted_by", p.ID).
		Msg("User deleted")
	return nil
}

// ensureRoleProfile creates the profile row a newly assigned role needs
func ensureRoleProfile(tx *gorm.DB, userID string, role models.Role) error {
	var profile any
	switch role {
	case models.RoleClient:
		profile = &models.ClientProfile{UserID: userID}
	case models.RolePro:
		profile = &models.ProProfile{UserID: userID}
	default:
		return nil
	}

	var count int64
	if err := tx.Model(profile).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return apperrors.Unexpected("failed to check profile", err)
	}
	if count > 0 {
		return nil
	}
	if err := tx.Create(profile).Error; err != nil {
		return apperrors.Unexpected("failed to create profile", err)
	}
	return nil
}

// Package accounts implements registration, profile management and admin
// user management.
package accounts

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vakspot/vakspot/internal/apperrors"
	"github.com/vakspot/vakspot/internal/auth"
	vmail "github.com/vakspot/vakspot/internal/mail"
	"github.com/vakspot/vakspot/internal/models"
)

const minPasswordLength = 8

// Service handles account operations
type Service struct {
	db        *gorm.DB
	notifier  vmail.Notifier
	publicURL string
	logger    zerolog.Logger
}

// NewService creates a new accounts service
func NewService(db *gorm.DB, notifier vmail.Notifier, publicURL string, logger zerolog.Logger) *Service {
	return &Service{
		db:        db,
		notifier:  notifier,
		publicURL: publicURL,
		logger:    logger.With().Str("component", "accounts_service").Logger(),
	}
}

// RegisterParams holds the fields of a signup
type RegisterParams struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Role     models.Role

	// Client fields
	City     string
	Postcode string

	// Pro fields
	CompanyName string
	KvkNumber   string
	Description string
	CategoryIDs []string
}

// Register creates a user with its role profile. For pros one association is
// created per distinct category id.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.User, error) {
	email := models.NormalizeEmail(params.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.Validation("Invalid email address")
	}
	if len(params.Password) < minPasswordLength {
		return nil, apperrors.Validation("Password must be at least %d characters", minPasswordLength)
	}
	if params.Role != models.RoleClient && params.Role != models.RolePro {
		return nil, apperrors.Validation("Role must be CLIENT or PRO")
	}

	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return nil, apperrors.Unexpected("failed to hash password", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(params.Name),
		Phone:        strings.TrimSpace(params.Phone),
		Role:         params.Role,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureEmailFree(tx, email); err != nil {
			return err
		}

		if err := tx.Create(user).Error; err != nil {
			return apperrors.Unexpected("failed to create user", err)
		}

		if params.Role == models.RoleClient {
			profile := &models.ClientProfile{UserID: user.ID, City: params.City, Postcode: params.Postcode}
			if err := tx.Create(profile).Error; err != nil {
				return apperrors.Unexpected("failed to create client profile", err)
			}
			user.ClientProfile = profile
			return nil
		}

		profile := &models.ProProfile{
			UserID:      user.ID,
			CompanyName: params.CompanyName,
			KvkNumber:   params.KvkNumber,
			Description: params.Description,
			City:        params.City,
		}
		if err := tx.Create(profile).Error; err != nil {
			return apperrors.Unexpected("failed to create pro profile", err)
		}
		if err := replaceProCategories(tx, profile.ID, params.CategoryIDs); err != nil {
			return err
		}
		user.ProProfile = profile
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("User registered")
	s.notifier.Notify(ctx, vmail.Welcome(user.Email, user.Name, s.publicURL+"/login"))

	return user, nil
}

// CreateAdmin creates an admin account. It backs the CLI bootstrap and is not
// reachable over HTTP.
func (s *Service) CreateAdmin(ctx context.Context, email, password, name string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.Validation("Invalid email address")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.Validation("Password must be at least %d characters", minPasswordLength)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, apperrors.Unexpected("failed to hash password", err)
	}

	user := &models.User{Email: email, PasswordHash: hash, Name: name, Role: models.RoleAdmin}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureEmailFree(tx, email); err != nil {
			return err
		}
		if err := tx.Create(user).Error; err != nil {
			return apperrors.Unexpected("failed to create admin", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Me returns the principal's account with its profile
func (s *Service) Me(ctx context.Context, p *auth.Principal) (*models.User, error) {
	if err := auth.Require(p); err != nil {
		return nil, err
	}
	return s.loadUser(s.db.WithContext(ctx), p.ID)
}

// UpdateMeParams holds self-service account changes; nil fields are left as-is
type UpdateMeParams struct {
	Name  *string
	Phone *string
}

// UpdateMe updates the principal's own name and phone
func (s *Service) UpdateMe(ctx context.Context, p *auth.Principal, params UpdateMeParams) (*models.User, error) {
	if err := auth.Require(p); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if params.Name != nil {
		updates["name"] = strings.TrimSpace(*params.Name)
	}
	if params.Phone != nil {
		updates["phone"] = strings.TrimSpace(*params.Phone)
	}

	db := s.db.WithContext(ctx)
	if len(updates) > 0 {
		if err := db.Model(&models.User{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
			return nil, apperrors.Unexpected("failed to update user", err)
		}
	}
	return s.loadUser(db, p.ID)
}

func (s *Service) loadUser(db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	if err := models.FindByIDWithPreload(db, id, &user, "ClientProfile", "ProProfile", "ProProfile.Categories.Category"); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("User")
		}
		return nil, apperrors.Unexpected("failed to load user", err)
	}
	return &user, nil
}

func ensureEmailFree(tx *gorm.DB, email string) error {
	var count int64
	if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return apperrors.Unexpected("failed to check email", err)
	}
	if count > 0 {
		return apperrors.Conflict("An account with this email already exists")
	}
	return nil
}

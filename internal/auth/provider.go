package auth

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vakspot/vakspot/internal/apperrors"
	"github.com/vakspot/vakspot/internal/models"
)

// Provider authenticates email and password credentials against stored hashes
type Provider struct {
	db        *gorm.DB
	logger    zerolog.Logger
	dummyHash string
}

// NewProvider creates a credentials provider
func NewProvider(db *gorm.DB, logger zerolog.Logger) (*Provider, error) {
	// Compared against when no usable hash exists, so every failed attempt
	// costs one bcrypt comparison.
	dummy, err := HashPassword("vakspot-no-account")
	if err != nil {
		return nil, err
	}
	return &Provider{
		db:        db,
		logger:    logger.With().Str("component", "auth_provider").Logger(),
		dummyHash: dummy,
	}, nil
}

// Authenticate returns the principal for valid credentials. Unknown accounts,
// accounts without a password and wrong passwords all yield (nil, nil).
func (p *Provider) Authenticate(ctx context.Context, email, password string) (*Principal, error) {
	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, nil
	}

	var user models.User
	err := p.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Unexpected("failed to find user", err)
	}

	if err != nil || user.PasswordHash == "" {
		_ = VerifyPassword(password, p.dummyHash)
		return nil, nil
	}

	if err := VerifyPassword(password, user.PasswordHash); err != nil {
		p.logger.Debug().Str("user_id", user.ID).Msg("Password mismatch")
		return nil, nil
	}

	return &Principal{
		ID:    user.ID,
		Email: user.Email,
		Role:  user.Role,
	}, nil
}

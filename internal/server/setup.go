package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vakspot/vakspot/internal/catalog"
	"github.com/vakspot/vakspot/internal/models"
)

// resolveSessionSecret returns the configured secret, or the one persisted in
// the settings row, generating and storing it on first start.
func resolveSessionSecret(db *gorm.DB, configured string, zlog zerolog.Logger) (string, error) {
	if configured != "" {
		return configured, nil
	}

	var settings models.Settings
	err := db.First(&settings).Error
	if err == nil && settings.SessionSecret != "" {
		zlog.Debug().Msg("Loaded session secret from database")
		return settings.SessionSecret, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to load settings: %w", err)
	}

	// 64 hex characters = 32 bytes of randomness
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("failed to generate session secret: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)

	if settings.ID != "" {
		err = db.Model(&settings).Update("session_secret", secret).Error
	} else {
		err = db.Create(&models.Settings{SessionSecret: secret}).Error
	}
	if err != nil {
		return "", fmt.Errorf("failed to persist session secret: %w", err)
	}

	zlog.Info().Msg("Generated session secret")
	return secret, nil
}

// newValidator returns the request validator with the marketplace's custom rules
func newValidator() *validator.Validate {
	validate := validator.New()

	validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return value == "" || catalog.ValidSlug(value)
	})

	// Self-service signup may only pick CLIENT or PRO
	validate.RegisterValidation("signuprole", func(fl validator.FieldLevel) bool {
		role, ok := models.ParseRole(fl.Field().String())
		return ok && role != models.RoleAdmin
	})

	return validate
}

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

// ProProfile returns the principal's pro profile with its categories
func (s *Service) ProProfile(ctx context.Context, p *auth.Principal) (*models.ProProfile, error) {
	if err := auth.Require(p, models.RolePro); err != nil {
		return nil, err
	}
	return findProProfile(s.db.WithContext(ctx).Preload("Categories.Category"), p.ID)
}

// UpdateProProfileParams holds pro profile changes; nil fields are left as-is
type UpdateProProfileParams struct {
	CompanyName *string
	Description *string
	City        *string
	KvkNumber   *string
}

// UpdateProProfile updates the principal's pro profile
func (s *Service) UpdateProProfile(ctx context.Context, p *auth.Principal, params UpdateProProfileParams) (*models.ProProfile, error) {
	if err := auth.Require(p, models.RolePro); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	profile, err := findProProfile(db, p.ID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if params.CompanyName != nil {
		updates["company_name"] = strings.TrimSpace(*params.CompanyName)
	}
	if params.Description != nil {
		updates["description"] = *params.Description
	}
	if params.City != nil {
		updates["city"] = strings.TrimSpace(*params.City)
	}
	if params.KvkNumber != nil {
		updates["kvk_number"] = strings.TrimSpace(*params.KvkNumber)
	}
	if len(updates) > 0 {
		if err := db.Model(profile).Updates(updates).Error; err != nil {
			return nil, apperrors.Unexpected("failed to update pro profile", err)
		}
	}

	return findProProfile(db.Preload("Categories.Category"), p.ID)
}

// SetProCategories replaces the categories the principal covers
func (s *Service) SetProCategories(ctx context.Context, p *auth.Principal, categoryIDs []string) (*models.ProProfile, error) {
	if err := auth.Require(p, models.RolePro); err != nil {
		return nil, err
	}
	if len(categoryIDs) == 0 {
		return nil, apperrors.Validation("Select at least one category")
	}

	db := s.db.WithContext(ctx)
	profile, err := findProProfile(db, p.ID)
	if err != nil {
		return nil, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pro_profile_id = ?", profile.ID).Delete(&models.ProCategory{}).Error; err != nil {
			return apperrors.Unexpected("failed to clear categories", err)
		}
		return replaceProCategories(tx, profile.ID, categoryIDs)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", p.ID).Int("categories", len(categoryIDs)).Msg("Pro categories updated")
	return findProProfile(db.Preload("Categories.Category"), p.ID)
}

func findProProfile(db *gorm.DB, userID string) (*models.ProProfile, error) {
	var profile models.ProProfile
	if err := db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Pro profile")
		}
		return nil, apperrors.Unexpected("failed to load pro profile", err)
	}
	return &profile, nil
}

// replaceProCategories inserts one association per distinct id. Callers clear
// existing rows first; every id must name an existing category.
func replaceProCategories(tx *gorm.DB, profileID string, categoryIDs []string) error {
	ids := dedupe(categoryIDs)
	if len(ids) == 0 {
		return nil
	}

	var found int64
	if err := tx.Model(&models.Category{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
		return apperrors.Unexpected("failed to check categories", err)
	}
	if int(found) != len(ids) {
		return apperrors.Validation("Unknown category")
	}

	rows := make([]models.ProCategory, len(ids))
	for i, id := range ids {
		rows[i] = models.ProCategory{ProProfileID: profileID, CategoryID: id}
	}
	if err := tx.Create(&rows).Error; err != nil {
		return apperrors.Unexpected("failed to save categories", err)
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

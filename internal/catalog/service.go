// Package catalog manages the trade categories jobs are posted under and pros
// register for.
package catalog

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vakspot/vakspot/internal/apperrors"
	"github.com/vakspot/vakspot/internal/auth"
	"github.com/vakspot/vakspot/internal/models"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidSlug reports whether s is a lowercase dash-separated slug
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// Slugify derives a slug from a display name
func Slugify(name string) string {
	replacer := strings.NewReplacer("é", "e", "ë", "e", "è", "e", "ï", "i", "ö", "o", "ü", "u", "á", "a", "&", " en ")
	name = replacer.Replace(strings.ToLower(name))

	var b strings.Builder
	dash := false
	for _, r := range name {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Service handles category operations
type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewService creates a new catalog service
func NewService(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "catalog_service").Logger(),
	}
}

// ListCategories returns all categories by name. Public.
func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, apperrors.Unexpected("failed to list categories", err)
	}
	return categories, nil
}

// CategoryParams holds category fields; an empty slug is derived from the name
type CategoryParams struct {
	Name        string
	Slug        string
	Description string
}

func (p *CategoryParams) normalize() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return apperrors.Validation("Name is required")
	}
	p.Slug = strings.TrimSpace(p.Slug)
	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	if !ValidSlug(p.Slug) {
		return apperrors.Validation("Slug may only contain lowercase letters, digits and dashes")
	}
	return nil
}

// CreateCategory adds a category. Admin only.
func (s *Service) CreateCategory(ctx context.Context, p *auth.Principal, params CategoryParams) (*models.Category, error) {
	if err := auth.Require(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := params.normalize(); err != nil {
		return nil, err
	}

	category := &models.Category{Name: params.Name, Slug: params.Slug, Description: params.Description}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureSlugFree(tx, params.Slug, ""); err != nil {
			return err
		}
		if err := tx.Create(category).Error; err != nil {
			return apperrors.Unexpected("failed to create category", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("category_id", category.ID).Str("slug", category.Slug).Msg("Category created")
	return category, nil
}

// UpdateCategory replaces a category's fields. Admin only.
func (s *Service) UpdateCategory(ctx context.Context, p *auth.Principal, id string, params CategoryParams) (*models.Category, error) {
	if err := auth.Require(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := params.normalize(); err != nil {
		return nil, err
	}

	var category models.Category
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findCategory(tx, id, &category); err != nil {
			return err
		}
		if err := ensureSlugFree(tx, params.Slug, id); err != nil {
			return err
		}
		err := tx.Model(&category).Updates(map[string]any{
			"name":        params.Name,
			"slug":        params.Slug,
			"description": params.Description,
		}).Error
		if err != nil {
			return apperrors.Unexpected("failed to update category", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := findCategory(s.db.WithContext(ctx), id, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// DeleteCategory removes a category no job uses, together with its pro
// associations. Admin only.
func (s *Service) DeleteCategory(ctx context.Context, p *auth.Principal, id string) error {
	if err := auth.Require(p, models.RoleAdmin); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var category models.Category
		if err := findCategory(tx, id, &category); err != nil {
			return err
		}

		var jobs int64
		if err := tx.Model(&models.Job{}).Where("category_id = ?", id).Count(&jobs).Error; err != nil {
			return apperrors.Unexpected("failed to count jobs", err)
		}
		if jobs > 0 {
			return apperrors.Conflict("Category is used by %d job(s) and cannot be deleted", jobs)
		}

		if err := tx.Where("category_id = ?", id).Delete(&models.ProCategory{}).Error; err != nil {
			return apperrors.Unexpected("failed to remove pro associations", err)
		}
		if err := tx.Delete(&category).Error; err != nil {
			return apperrors.Unexpected("failed to delete category", err)
		}

		s.logger.Info().Str("category_id", id).Str("deleted_by", p.ID).Msg("Category deleted")
		return nil
	})
}

// Seed inserts categories whose slug is not present yet and reports how many were added
func (s *Service) Seed(ctx context.Context, names []string) (int, error) {
	added := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range names {
			params := CategoryParams{Name: name}
			if err := params.normalize(); err != nil {
				return err
			}
			if err := ensureSlugFree(tx, params.Slug, ""); err != nil {
				if apperrors.Is(err, apperrors.KindConflict) {
					continue
				}
				return err
			}
			if err := tx.Create(&models.Category{Name: params.Name, Slug: params.Slug}).Error; err != nil {
				return apperrors.Unexpected("failed to seed category", err)
			}
			added++
		}
		return nil
	})
	return added, err
}

func findCategory(tx *gorm.DB, id string, category *models.Category) error {
	if err := models.FindByID(tx, id, category); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("Category")
		}
		return apperrors.Unexpected("failed to find category", err)
	}
	return nil
}

func ensureSlugFree(tx *gorm.DB, slug, exceptID string) error {
	query := tx.Model(&models.Category{}).Where("slug = ?", slug)
	if exceptID != "" {
		query = query.Where("id <> ?", exceptID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return apperrors.Unexpected("failed to check slug", err)
	}
	if count > 0 {
		return apperrors.Conflict("A category with slug %q already exists", slug)
	}
	return nil
}

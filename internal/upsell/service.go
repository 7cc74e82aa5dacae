// Package upsell implements the paid add-on services pros can buy and the
// admin bookkeeping of their purchases.
package upsell

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vakspot/vakspot/internal/apperrors"
	"github.com/vakspot/vakspot/internal/auth"
	"github.com/vakspot/vakspot/internal/catalog"
	"github.com/vakspot/vakspot/internal/jobs"
	"github.com/vakspot/vakspot/internal/models"
)

// Service handles upsell operations
type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new upsell service
func NewService(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "upsell_service").Logger(),
		now:    time.Now,
	}
}

// ListServices returns the services on offer. Admins also see inactive ones.
func (s *Service) ListServices(ctx context.Context, p *auth.Principal) ([]models.Service, error) {
	if err := auth.Require(p); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Order("price_cents ASC, name ASC")
	if !p.IsAdmin() {
		query = query.Where("active = ?", true)
	}

	var services []models.Service
	if err := query.Find(&services).Error; err != nil {
		return nil, apperrors.Unexpected("failed to list services", err)
	}
	return services, nil
}

// ServiceParams holds the fields of a service. Active is only applied when set.
type ServiceParams struct {
	Name        string
	Slug        string
	Description string
	PriceCents  int64
	Active      *bool
}

func (p *ServiceParams) normalize() error {
	p.Name = strings.TrimSpace(p.Name)
	p.Slug = strings.TrimSpace(p.Slug)
	if p.Name == "" {
		return apperrors.Validation("Name is required")
	}
	if p.Slug == "" {
		p.Slug = catalog.Slugify(p.Name)
	}
	if !catalog.ValidSlug(p.Slug) {
		return apperrors.Validation("Invalid slug %q", p.Slug)
	}
	if p.PriceCents < 0 {
		return apperrors.Validation("Price cannot be negative")
	}
	return nil
}

// CreateService adds a service. New services are active unless Active says otherwise. Admin only.
func (s *Service) CreateService(ctx context.Context, p *auth.Principal, params ServiceParams) (*models.Service, error) {
	if err := auth.Require(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := params.normalize(); err != nil {
		return nil, err
	}

	service := &models.Service{
		Name:        params.Name,
		Slug:        params.Slug,
		Description: strings.TrimSpace(params.Description),
		PriceCents:  params.PriceCents,
		Active:      params.Active == nil || *params.Active,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureSlugFree(tx, service.Slug, ""); err != nil {
			return err
		}
		if err := tx.Create(service).Error; err != nil {
			return apperrors.Unexpected("failed to create service", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("service_id", service.ID).Str("slug", service.Slug).Msg("Service created")
	return service, nil
}

// UpdateService replaces a service's fields. Admin only.
func (s *Service) UpdateService(ctx context.Context, p *auth.Principal, id string, params ServiceParams) (*models.Service, error) {
	if err := auth.Require(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := params.normalize(); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var service models.Service
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := findService(tx, id, &service); err != nil {
			return err
		}
		if err := ensureSlugFree(tx, params.Slug, id); err != nil {
			return err
		}

		updates := map[string]any{
			"name":        params.Name,
			"slug":        params.Slug,
			"description": strings.TrimSpace(params.Description),
			"price_cents": params.PriceCents,
		}
		if params.Active != nil {
			updates["active"] = *params.Active
		}
		if err := tx.Model(&models.Service{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return apperrors.Unexpected("failed to update service", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := findService(db, id, &service); err != nil {
		return nil, err
	}
	return &service, nil
}

// DeleteService removes a service that was never purchased. Admin only.
func (s *Service) DeleteService(ctx context.Context, p *auth.Principal, id string) error {
	if err := auth.Require(p, models.RoleAdmin); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var service models.Service
		if err := findService(tx, id, &service); err != nil {
			return err
		}

		var purchases int64
		if err := tx.Model(&models.ServicePurchase{}).Where("service_id = ?", id).Count(&purchases).Error; err != nil {
			return apperrors.Unexpected("failed to count purchases", err)
		}
		if purchases > 0 {
			return apperrors.Conflict("Service has %d purchase(s); deactivate it instead", purchases)
		}

		if err := tx.Delete(&service).Error; err != nil {
			return apperrors.Unexpected("failed to delete service", err)
		}
		return nil
	})
}

// Purchase records the principal buying an active service at its current
// price, optionally for a job the principal bid on. Pro only.
func (s *Service) Purchase(ctx context.Context, p *auth.Principal, serviceID string, jobID *string) (*models.ServicePurchase, error) {
	if err := auth.Require(p, models.RolePro); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var service models.Service
	if err := findService(db, serviceID, &service); err != nil {
		return nil, err
	}
	if !service.Active {
		return nil, apperrors.Conflict("This service is no longer available")
	}

	if jobID != nil && *jobID == "" {
		jobID = nil
	}
	if jobID != nil {
		bid, err := jobs.HasBid(db, *jobID, p.ID)
		if err != nil {
			return nil, err
		}
		if !bid {
			return nil, apperrors.Forbidden("You can only buy services for jobs you bid on")
		}
	}

	purchase := &models.ServicePurchase{
		ServiceID:  service.ID,
		ProID:      p.ID,
		JobID:      jobID,
		PriceCents: service.PriceCents,
		Status:     models.PurchaseStatusPending,
	}
	if err := db.Create(purchase).Error; err != nil {
		return nil, apperrors.Unexpected("failed to record purchase", err)
	}
	purchase.Service = &service

	s.logger.Info().
		Str("purchase_id", purchase.ID).
		Str("service", service.Slug).
		Str("pro_id", p.ID).
		Int64("price_cents", purchase.PriceCents).
		Msg("Service purchased")
	return purchase, nil
}

// ListPurchases returns every purchase for admins and the principal's own
// purchases for pros, newest first
func (s *Service) ListPurchases(ctx context.Context, p *auth.Principal) ([]models.ServicePurchase, error) {
	if err := auth.Require(p, models.RolePro, models.RoleAdmin); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Preload("Service").Order("created_at DESC")
	if !p.IsAdmin() {
		query = query.Where("pro_id = ?", p.ID)
	}

	var purchases []models.ServicePurchase
	if err := query.Find(&purchases).Error; err != nil {
		return nil, apperrors.Unexpected("failed to list purchases", err)
	}
	return purchases, nil
}

// MarkPaid settles a pending purchase. Admin only.
func (s *Service) MarkPaid(ctx context.Context, p *auth.Principal, id string) (*models.ServicePurchase, error) {
	now := s.now()
	return s.settle(ctx, p, id, map[string]any{"status": models.PurchaseStatusPaid, "paid_at": now})
}

// CancelPurchase voids a pending purchase. Admin only.
func (s *Service) CancelPurchase(ctx context.Context, p *auth.Principal, id string) (*models.ServicePurchase, error) {
	return s.settle(ctx, p, id, map[string]any{"status": models.PurchaseStatusCancelled})
}

func (s *Service) settle(ctx context.Context, p *auth.Principal, id string, updates map[string]any) (*models.ServicePurchase, error) {
	if err := auth.Require(p, models.RoleAdmin); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var purchase models.ServicePurchase
	if err := findPurchase(db, id, &purchase); err != nil {
		return nil, err
	}

	result := db.Model(&models.ServicePurchase{}).
		Where("id = ? AND status = ?", id, models.PurchaseStatusPending).
		Updates(updates)
	if result.Error != nil {
		return nil, apperrors.Unexpected("failed to update purchase", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.Conflict("Purchase is already %s", strings.ToLower(string(purchase.Status)))
	}

	s.logger.Info().Str("purchase_id", id).Interface("status", updates["status"]).Str("by", p.ID).Msg("Purchase settled")
	if err := findPurchase(db.Preload("Service"), id, &purchase); err != nil {
		return nil, err
	}
	return &purchase, nil
}

func findService(db *gorm.DB, id string, service *models.Service) error {
	if err := models.FindByID(db, id, service); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("Service")
		}
		return apperrors.Unexpected("failed to find service", err)
	}
	return nil
}

func findPurchase(db *gorm.DB, id string, purchase *models.ServicePurchase) error {
	if err := models.FindByID(db, id, purchase); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("Purchase")
		}
		return apperrors.Unexpected("failed to find purchase", err)
	}
	return nil
}

func ensureSlugFree(tx *gorm.DB, slug, exceptID string) error {
	query := tx.Model(&models.Service{}).Where("slug = ?", slug)
	if exceptID != "" {
		query = query.Where("id <> ?", exceptID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return apperrors.Unexpected("failed to check slug", err)
	}
	if count > 0 {
		return apperrors.Conflict("A service with slug %q already exists", slug)
	}
	return nil
}

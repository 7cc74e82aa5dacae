// Package bids implements offers pros place on jobs and the client's
// decision on them.
package bids

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vakspot/vakspot/internal/apperrors"
	"github.com/vakspot/vakspot/internal/auth"
	vmail "github.com/vakspot/vakspot/internal/mail"
	"github.com/vakspot/vakspot/internal/models"
)

const maxMessageLength = 2000

// Service handles bid operations
type Service struct {
	db        *gorm.DB
	notifier  vmail.Notifier
	publicURL string
	logger    zerolog.Logger
}

// NewService creates a new bids service
func NewService(db *gorm.DB, notifier vmail.Notifier, publicURL string, logger zerolog.Logger) *Service {
	return &Service{
		db:        db,
		notifier:  notifier,
		publicURL: publicURL,
		logger:    logger.With().Str("component", "bids_service").Logger(),
	}
}

// SubmitParams holds the fields of a new bid
type SubmitParams struct {
	AmountCents int64
	Message     string
}

// Submit places the principal's bid on an open job in a category the
// principal covers. Pro only; one bid per job.
func (s *Service) Submit(ctx context.Context, p *auth.Principal, jobID string, params SubmitParams) (*models.Bid, error) {
	if err := auth.Require(p, models.RolePro); err != nil {
		return nil, err
	}
	if params.AmountCents <= 0 {
		return nil, apperrors.Validation("Amount must be greater than zero")
	}
	message := strings.TrimSpace(params.Message)
	if len(message) > maxMessageLength {
		return nil, apperrors.Validation("Message cannot exceed %d characters", maxMessageLength)
	}

	db := s.db.WithContext(ctx)
	var job models.Job
	bid := &models.Bid{
		JobID:       jobID,
		ProID:       p.ID,
		AmountCents: params.AmountCents,
		Message:     message,
		Status:      models.BidStatusPending,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := findJob(tx.Preload("Client"), jobID, &job); err != nil {
			return err
		}
		if job.Status != models.JobStatusOpen {
			return apperrors.Conflict("This job is no longer accepting bids")
		}

		covers, err := coversCategory(tx, p.ID, job.CategoryID)
		if err != nil {
			return err
		}
		if !covers {
			return apperrors.Forbidden("You do not work in this job's category")
		}

		var existing int64
		if err := tx.Model(&models.Bid{}).Where("job_id = ? AND pro_id = ?", jobID, p.ID).Count(&existing).Error; err != nil {
			return apperrors.Unexpected("failed to check bids", err)
		}
		if existing > 0 {
			return apperrors.Conflict("You already placed a bid on this job")
		}

		if err := tx.Create(bid).Error; err != nil {
			return apperrors.Unexpected("failed to create bid", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("bid_id", bid.ID).Str("job_id", jobID).Str("pro_id", p.ID).Msg("Bid submitted")
	if job.Client != nil {
		s.notifier.Notify(ctx, vmail.NewBid(job.Client.Email, job.Client.Name, job.Title, bid.AmountCents,
			s.publicURL+"/client/jobs/"+job.ID))
	}
	return bid, nil
}

// ListForJob returns the bids on a job, cheapest first. Job owner or admin.
func (s *Service) ListForJob(ctx context.Context, p *auth.Principal, jobID string) ([]models.Bid, error) {
	if err := auth.Require(p, models.RoleClient, models.RoleAdmin); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var job models.Job
	if err := findJob(db, jobID, &job); err != nil {
		return nil, err
	}
	if err := auth.RequireOwnerOrAdmin(p, job.ClientID); err != nil {
		return nil, err
	}

	var bids []models.Bid
	err := db.Preload("Pro.ProProfile").
		Where("job_id = ?", jobID).
		Order("amount_cents ASC, created_at ASC").
		Find(&bids).Error
	if err != nil {
		return nil, apperrors.Unexpected("failed to list bids", err)
	}
	return bids, nil
}

// ListMine returns the principal's bids, newest first. Pro only.
func (s *Service) ListMine(ctx context.Context, p *auth.Principal) ([]models.Bid, error) {
	if err := auth.Require(p, models.RolePro); err != nil {
		return nil, err
	}

	var bids []models.Bid
	err := s.db.WithContext(ctx).
		Preload("Job.Category").
		Where("pro_id = ?", p.ID).
		Order("created_at DESC").
		Find(&bids).Error
	if err != nil {
		return nil, apperrors.Unexpected("failed to list bids", err)
	}
	return bids, nil
}

// Accept accepts a pending bid on an open job. The other pending bids are
// rejected and the job moves to IN_PROGRESS in the same transaction.
// Owning client only.
func (s *Service) Accept(ctx context.Context, p *auth.Principal, bidID string) (*models.Bid, error) {
	if err := auth.Require(p, models.RoleClient); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var bid models.Bid
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := s.ownedBid(tx.Preload("Job").Preload("Pro"), p, bidID, &bid); err != nil {
			return err
		}
		if bid.Status != models.BidStatusPending {
			return apperrors.Conflict("Only pending bids can be accepted")
		}

		result := tx.Model(&models.Job{}).
			Where("id = ? AND status = ?", bid.JobID, models.JobStatusOpen).
			Update("status", models.JobStatusInProgress)
		if result.Error != nil {
			return apperrors.Unexpected("failed to update job", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.Conflict("This job is no longer open")
		}

		if err := tx.Model(&models.Bid{}).Where("id = ?", bid.ID).Update("status", models.BidStatusAccepted).Error; err != nil {
			return apperrors.Unexpected("failed to accept bid", err)
		}

		err := tx.Model(&models.Bid{}).
			Where("job_id = ? AND id <> ? AND status = ?", bid.JobID, bid.ID, models.BidStatusPending).
			Update("status", models.BidStatusRejected).Error
		if err != nil {
			return apperrors.Unexpected("failed to reject other bids", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("bid_id", bid.ID).Str("job_id", bid.JobID).Msg("Bid accepted")
	if bid.Pro != nil && bid.Job != nil {
		s.notifier.Notify(ctx, vmail.BidAccepted(bid.Pro.Email, bid.Pro.Name, bid.Job.Title,
			s.publicURL+"/messages?job="+bid.JobID))
	}
	return s.load(db, bid.ID)
}

// Reject declines a pending bid. Owning client only.
func (s *Service) Reject(ctx context.Context, p *auth.Principal, bidID string) (*models.Bid, error) {
	if err := auth.Require(p, models.RoleClient); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var bid models.Bid
	if err := s.ownedBid(db.Preload("Job"), p, bidID, &bid); err != nil {
		return nil, err
	}
	if err := transition(db, &bid, models.BidStatusRejected); err != nil {
		return nil, err
	}
	return s.load(db, bid.ID)
}

// Withdraw pulls back a pending bid. Bidding pro only.
func (s *Service) Withdraw(ctx context.Context, p *auth.Principal, bidID string) (*models.Bid, error) {
	if err := auth.Require(p, models.RolePro); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	bid, err := s.load(db, bidID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireOwner(p, bid.ProID); err != nil {
		return nil, err
	}
	if err := transition(db, bid, models.BidStatusWithdrawn); err != nil {
		return nil, err
	}
	return s.load(db, bid.ID)
}

// ownedBid loads a bid whose job belongs to the principal. db must preload Job.
func (s *Service) ownedBid(db *gorm.DB, p *auth.Principal, bidID string, bid *models.Bid) error {
	if err := models.FindByID(db, bidID, bid); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("Bid")
		}
		return apperrors.Unexpected("failed to find bid", err)
	}
	if bid.Job == nil {
		return apperrors.NotFound("Job")
	}
	return auth.RequireOwner(p, bid.Job.ClientID)
}

func (s *Service) load(db *gorm.DB, id string) (*models.Bid, error) {
	var bid models.Bid
	if err := models.FindByID(db, id, &bid); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Bid")
		}
		return nil, apperrors.Unexpected("failed to load bid", err)
	}
	return &bid, nil
}

// transition moves a pending bid to status, failing if it is no longer pending
func transition(db *gorm.DB, bid *models.Bid, status models.BidStatus) error {
	result := db.Model(&models.Bid{}).
		Where("id = ? AND status = ?", bid.ID, models.BidStatusPending).
		Update("status", status)
	if result.Error != nil {
		return apperrors.Unexpected("failed to update bid", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.Conflict("Only pending bids can be %s", strings.ToLower(string(status)))
	}
	bid.Status = status
	return nil
}

func coversCategory(db *gorm.DB, userID, categoryID string) (bool, error) {
	var count int64
	err := db.Model(&models.ProCategory{}).
		Joins("JOIN pro_profiles ON pro_profiles.id = pro_categories.pro_profile_id").
		Where("pro_profiles.user_id = ? AND pro_categories.category_id = ?", userID, categoryID).
		Count(&count).Error
	if err != nil {
		return false, apperrors.Unexpected("failed to check categories", err)
	}
	return count > 0, nil
}

func findJob(db *gorm.DB, id string, job *models.Job) error {
	if err := models.FindByID(db, id, job); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("Job")
		}
		return apperrors.Unexpected("failed to find job", err)
	}
	return nil
}

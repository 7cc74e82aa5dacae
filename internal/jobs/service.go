// Package jobs implements the client side of the marketplace: posting,
// browsing and closing jobs, plus the lead list pros work from.
package jobs

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vakspot/vakspot/internal/apperrors"
	"github.com/vakspot/vakspot/internal/auth"
	"github.com/vakspot/vakspot/internal/models"
)

const (
	maxTitleLength = 120
	maxPhotos      = 10
)

// Service handles job operations
type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new jobs service
func NewService(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "jobs_service").Logger(),
		now:    time.Now,
	}
}

// Summary is a job with the number of bids it received
type Summary struct {
	models.Job
	BidCount int64 `json:"bid_count"`
}

// CreateParams holds the fields of a new job
type CreateParams struct {
	CategoryID  string
	Title       string
	Description string
	City        string
	Postcode    string
	BudgetCents *int64
	PhotoURLs   []string
}

// Create posts a job for the principal. Client only.
func (s *Service) Create(ctx context.Context, p *auth.Principal, params CreateParams) (*models.Job, error) {
	if err := auth.Require(p, models.RoleClient); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(params.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return nil, apperrors.Validation("Title must be between 1 and %d characters", maxTitleLength)
	}
	if params.BudgetCents != nil && *params.BudgetCents < 0 {
		return nil, apperrors.Validation("Budget cannot be negative")
	}
	if len(params.PhotoURLs) > maxPhotos {
		return nil, apperrors.Validation("At most %d photos per job", maxPhotos)
	}

	job := &models.Job{
		ClientID:    p.ID,
		CategoryID:  params.CategoryID,
		Title:       title,
		Description: strings.TrimSpace(params.Description),
		City:        strings.TrimSpace(params.City),
		Postcode:    strings.ToUpper(strings.ReplaceAll(params.Postcode, " ", "")),
		BudgetCents: params.BudgetCents,
		Status:      models.JobStatusOpen,
	}

	db := s.db.WithContext(ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		var categories int64
		if err := tx.Model(&models.Category{}).Where("id = ?", params.CategoryID).Count(&categories).Error; err != nil {
			return apperrors.Unexpected("failed to check category", err)
		}
		if categories == 0 {
			return apperrors.Validation("Unknown category")
		}

		if err := tx.Create(job).Error; err != nil {
			return apperrors.Unexpected("failed to create job", err)
		}

		for _, url := range params.PhotoURLs {
			if url = strings.TrimSpace(url); url == "" {
				continue
			}
			if err := tx.Create(&models.JobPhoto{JobID: job.ID, URL: url}).Error; err != nil {
				return apperrors.Unexpected("failed to attach photo", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("job_id", job.ID).Str("client_id", p.ID).Msg("Job posted")
	return s.load(db, job.ID)
}

// ListMine returns the principal's jobs, newest first. Client only.
func (s *Service) ListMine(ctx context.Context, p *auth.Principal) ([]Summary, error) {
	if err := auth.Require(p, models.RoleClient); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	return summaries(db, db.Where("client_id = ?", p.ID))
}

// ListAll returns every job for moderation, optionally filtered by status. Admin only.
func (s *Service) ListAll(ctx context.Context, p *auth.Principal, status string) ([]Summary, error) {
	if err := auth.Require(p, models.RoleAdmin); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	query := db.Preload("Client")
	if status != "" {
		st, ok := parseStatus(status)
		if !ok {
			return nil, apperrors.Validation("Unknown status %q", status)
		}
		query = query.Where("status = ?", st)
	}
	return summaries(db, query)
}

// Leads returns open jobs in the principal's categories that the principal
// has not bid on yet. Pro only.
func (s *Service) Leads(ctx context.Context, p *auth.Principal) ([]models.Job, error) {
	if err := auth.Require(p, models.RolePro); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	covered := db.Model(&models.ProCategory{}).
		Select("pro_categories.category_id").
		Joins("JOIN pro_profiles ON pro_profiles.id = pro_categories.pro_profile_id").
		Where("pro_profiles.user_id = ?", p.ID)
	bidOn := db.Model(&models.Bid{}).Select("job_id").Where("pro_id = ?", p.ID)

	var jobs []models.Job
	err := db.Preload("Category").Preload("Photos").
		Where("status = ?", models.JobStatusOpen).
		Where("category_id IN (?)", covered).
		Where("id NOT IN (?)", bidOn).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, apperrors.Unexpected("failed to list leads", err)
	}
	return jobs, nil
}

// Get returns a job visible to the principal: its owner, an admin, or a pro
// when the job is open or the pro bid on it.
func (s *Service) Get(ctx context.Context, p *auth.Principal, id string) (*models.Job, error) {
	if err := auth.Require(p); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	job, err := s.load(db, id)
	if err != nil {
		return nil, err
	}

	switch {
	case p.IsAdmin(), job.ClientID == p.ID:
		return job, nil
	case p.Role == models.RolePro:
		if job.Status != models.JobStatusOpen {
			bid, err := HasBid(db, id, p.ID)
			if err != nil {
				return nil, err
			}
			if !bid {
				return nil, apperrors.Forbidden("")
			}
		}
		// Pros see the client's name only
		if job.Client != nil {
			job.Client = &models.User{BaseModel: job.Client.BaseModel, Name: job.Client.Name, Role: job.Client.Role}
		}
		return job, nil
	default:
		return nil, apperrors.Forbidden("")
	}
}

// UpdateParams holds job changes; nil fields are left as-is
type UpdateParams struct {
	Title       *string
	Description *string
	City        *string
	Postcode    *string
	BudgetCents *int64
}

// Update edits an open job. Owning client only.
func (s *Service) Update(ctx context.Context, p *auth.Principal, id string, params UpdateParams) (*models.Job, error) {
	db := s.db.WithContext(ctx)
	job, err := s.ownedJob(db, p, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if params.Title != nil {
		title := strings.TrimSpace(*params.Title)
		if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
			return nil, apperrors.Validation("Title must be between 1 and %d characters", maxTitleLength)
		}
		updates["title"] = title
	}
	if params.Description != nil {
		updates["description"] = strings.TrimSpace(*params.Description)
	}
	if params.City != nil {
		updates["city"] = strings.TrimSpace(*params.City)
	}
	if params.Postcode != nil {
		updates["postcode"] = strings.ToUpper(strings.ReplaceAll(*params.Postcode, " ", ""))
	}
	if params.BudgetCents != nil {
		if *params.BudgetCents < 0 {
			return nil, apperrors.Validation("Budget cannot be negative")
		}
		updates["budget_cents"] = *params.BudgetCents
	}

	if len(updates) == 0 {
		if job.Status != models.JobStatusOpen {
			return nil, apperrors.Conflict("Only open jobs can be edited")
		}
		return s.load(db, id)
	}

	result := db.Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobStatusOpen).
		Updates(updates)
	if result.Error != nil {
		return nil, apperrors.Unexpected("failed to update job", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.Conflict("Only open jobs can be edited")
	}
	return s.load(db, id)
}

// Cancel withdraws an open or in-progress job and rejects its pending bids.
// Owning client only.
func (s *Service) Cancel(ctx context.Context, p *auth.Principal, id string) (*models.Job, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.ownedJob(db, p, id); err != nil {
		return nil, err
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		n, err := closeJobs(tx, []string{id}, models.JobStatusCancelled, models.JobStatusOpen, models.JobStatusInProgress)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.Conflict("Only open or in-progress jobs can be cancelled")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.load(db, id)
}

// Complete marks an in-progress job done. Owning client only.
func (s *Service) Complete(ctx context.Context, p *auth.Principal, id string) (*models.Job, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.ownedJob(db, p, id); err != nil {
		return nil, err
	}

	result := db.Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobStatusInProgress).
		Update("status", models.JobStatusCompleted)
	if result.Error != nil {
		return nil, apperrors.Unexpected("failed to complete job", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.Conflict("Only jobs in progress can be completed")
	}
	return s.load(db, id)
}

// Delete removes a job with its bids, photos and messages. Owning client or admin.
func (s *Service) Delete(ctx context.Context, p *auth.Principal, id string) error {
	if err := auth.Require(p, models.RoleClient, models.RoleAdmin); err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	var job models.Job
	if err := findJob(db, id, &job); err != nil {
		return err
	}
	if err := auth.RequireOwnerOrAdmin(p, job.ClientID); err != nil {
		return err
	}

	if err := db.Delete(&job).Error; err != nil {
		return apperrors.Unexpected("failed to delete job", err)
	}

	s.logger.Info().Str("job_id", id).Str("deleted_by", p.ID).Msg("Job deleted")
	return nil
}

// ExpireStale marks open jobs older than maxAge as expired and rejects their
// pending bids. It runs from the worker, outside any request.
func (s *Service) ExpireStale(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge)

	var ids []string
	expired := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Job{}).
			Where("status = ? AND created_at < ?", models.JobStatusOpen, cutoff).
			Pluck("id", &ids).Error
		if err != nil {
			return apperrors.Unexpected("failed to find stale jobs", err)
		}
		if len(ids) == 0 {
			return nil
		}
		n, err := closeJobs(tx, ids, models.JobStatusExpired, models.JobStatusOpen)
		expired = int(n)
		return err
	})
	if err != nil {
		return 0, err
	}

	if expired > 0 {
		s.logger.Info().Int("count", expired).Time("cutoff", cutoff).Msg("Expired stale jobs")
	}
	return expired, nil
}

// HasBid reports whether pro has a bid on job
func HasBid(db *gorm.DB, jobID, proID string) (bool, error) {
	var count int64
	if err := db.Model(&models.Bid{}).Where("job_id = ? AND pro_id = ?", jobID, proID).Count(&count).Error; err != nil {
		return false, apperrors.Unexpected("failed to check bids", err)
	}
	return count > 0, nil
}

func (s *Service) ownedJob(db *gorm.DB, p *auth.Principal, id string) (*models.Job, error) {
	if err := auth.Require(p, models.RoleClient); err != nil {
		return nil, err
	}
	var job models.Job
	if err := findJob(db, id, &job); err != nil {
		return nil, err
	}
	if err := auth.RequireOwner(p, job.ClientID); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *Service) load(db *gorm.DB, id string) (*models.Job, error) {
	var job models.Job
	if err := models.FindByIDWithPreload(db, id, &job, "Category", "Photos", "Client"); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Job")
		}
		return nil, apperrors.Unexpected("failed to load job", err)
	}
	return &job, nil
}

func summaries(db, query *gorm.DB) ([]Summary, error) {
	var jobs []models.Job
	if err := query.Preload("Category").Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, apperrors.Unexpected("failed to list jobs", err)
	}

	counts, err := bidCounts(db, jobs)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, len(jobs))
	for i, job := range jobs {
		out[i] = Summary{Job: job, BidCount: counts[job.ID]}
	}
	return out, nil
}

func bidCounts(db *gorm.DB, jobs []models.Job) (map[string]int64, error) {
	counts := make(map[string]int64, len(jobs))
	if len(jobs) == 0 {
		return counts, nil
	}
	ids := make([]string, len(jobs))
	for i, job := range jobs {
		ids[i] = job.ID
	}

	var rows []struct {
		JobID string
		Count int64
	}
	err := db.Model(&models.Bid{}).
		Select("job_id, COUNT(*) AS count").
		Where("job_id IN ? AND status <> ?", ids, models.BidStatusWithdrawn).
		Group("job_id").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Unexpected("failed to count bids", err)
	}
	for _, row := range rows {
		counts[row.JobID] = row.Count
	}
	return counts, nil
}

// closeJobs moves the jobs in ids that are still in one of the from states to
// status and rejects their pending bids. It returns how many jobs moved.
func closeJobs(tx *gorm.DB, ids []string, status models.JobStatus, from ...models.JobStatus) (int64, error) {
	var closing []string
	err := tx.Model(&models.Job{}).Where("id IN ? AND status IN ?", ids, from).Pluck("id", &closing).Error
	if err != nil {
		return 0, apperrors.Unexpected("failed to find jobs", err)
	}
	if len(closing) == 0 {
		return 0, nil
	}

	result := tx.Model(&models.Job{}).
		Where("id IN ? AND status IN ?", closing, from).
		Update("status", status)
	if result.Error != nil {
		return 0, apperrors.Unexpected("failed to update jobs", result.Error)
	}

	err = tx.Model(&models.Bid{}).
		Where("job_id IN ? AND status = ?", closing, models.BidStatusPending).
		Update("status", models.BidStatusRejected).Error
	if err != nil {
		return 0, apperrors.Unexpected("failed to reject bids", err)
	}
	return result.RowsAffected, nil
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

func parseStatus(s string) (models.JobStatus, bool) {
	switch st := models.JobStatus(strings.ToUpper(s)); st {
	case models.JobStatusOpen, models.JobStatusInProgress, models.JobStatusCompleted,
		models.JobStatusCancelled, models.JobStatusExpired:
		return st, true
	default:
		return "", false
	}
}

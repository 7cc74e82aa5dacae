// Package messaging implements the per-job message threads between a client
// and the pros who bid on the job.
package messaging

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
	"github.com/vakspot/vakspot/internal/jobs"
	vmail "github.com/vakspot/vakspot/internal/mail"
	"github.com/vakspot/vakspot/internal/models"
)

const maxBodyLength = 4000

// Service handles messaging operations
type Service struct {
	db        *gorm.DB
	notifier  vmail.Notifier
	publicURL string
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a new messaging service
func NewService(db *gorm.DB, notifier vmail.Notifier, publicURL string, logger zerolog.Logger) *Service {
	return &Service{
		db:        db,
		notifier:  notifier,
		publicURL: publicURL,
		logger:    logger.With().Str("component", "messaging_service").Logger(),
		now:       time.Now,
	}
}

// Conversation summarizes one thread from the principal's point of view
type Conversation struct {
	JobID           string         `json:"job_id"`
	JobTitle        string         `json:"job_title"`
	CounterpartID   string         `json:"counterpart_id"`
	CounterpartName string         `json:"counterpart_name"`
	LastMessage     models.Message `json:"last_message"`
	Unread          int            `json:"unread"`
}

// Send posts a message on a job thread. Sender and recipient must be the
// job's client and a pro who bid on it.
func (s *Service) Send(ctx context.Context, p *auth.Principal, jobID, recipientID, body string) (*models.Message, error) {
	if err := auth.Require(p, models.RoleClient, models.RolePro); err != nil {
		return nil, err
	}

	body = strings.TrimSpace(body)
	if n := utf8.RuneCountInString(body); n == 0 || n > maxBodyLength {
		return nil, apperrors.Validation("Message must be between 1 and %d characters", maxBodyLength)
	}

	db := s.db.WithContext(ctx)
	job, err := findJob(db, jobID)
	if err != nil {
		return nil, err
	}
	if err := requirePair(db, job, p.ID, recipientID); err != nil {
		return nil, err
	}

	var recipient models.User
	if err := models.FindByID(db, recipientID, &recipient); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Recipient")
		}
		return nil, apperrors.Unexpected("failed to find recipient", err)
	}

	msg := &models.Message{
		JobID:       jobID,
		SenderID:    p.ID,
		RecipientID: recipientID,
		Body:        body,
	}
	if err := db.Create(msg).Error; err != nil {
		return nil, apperrors.Unexpected("failed to send message", err)
	}

	s.logger.Debug().Str("message_id", msg.ID).Str("job_id", jobID).Msg("Message sent")
	s.notifier.Notify(ctx, vmail.NewMessage(recipient.Email, recipient.Name, job.Title,
		s.publicURL+"/messages?job="+jobID))
	return msg, nil
}

// Thread returns the messages between the principal and counterpart on a
// job, oldest first, and marks those addressed to the principal as read.
// Admins can read the thread between the job's client and any pro.
func (s *Service) Thread(ctx context.Context, p *auth.Principal, jobID, counterpartID string) ([]models.Message, error) {
	if err := auth.Require(p); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	job, err := findJob(db, jobID)
	if err != nil {
		return nil, err
	}

	reader := p.ID
	if p.IsAdmin() && p.ID != job.ClientID {
		reader = job.ClientID
	}
	if err := requirePair(db, job, reader, counterpartID); err != nil {
		return nil, err
	}

	var messages []models.Message
	err = db.Where("job_id = ?", jobID).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			reader, counterpartID, counterpartID, reader).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, apperrors.Unexpected("failed to load thread", err)
	}

	if reader != p.ID {
		return messages, nil
	}

	now := s.now()
	err = db.Model(&models.Message{}).
		Where("job_id = ? AND sender_id = ? AND recipient_id = ? AND read_at IS NULL", jobID, counterpartID, p.ID).
		Update("read_at", now).Error
	if err != nil {
		return nil, apperrors.Unexpected("failed to mark messages read", err)
	}
	for i := range messages {
		if messages[i].RecipientID == p.ID && messages[i].ReadAt == nil {
			messages[i].ReadAt = &now
		}
	}
	return messages, nil
}

// Conversations lists the principal's threads, most recent first
func (s *Service) Conversations(ctx context.Context, p *auth.Principal) ([]Conversation, error) {
	if err := auth.Require(p); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var messages []models.Message
	err := db.Where("sender_id = ? OR recipient_id = ?", p.ID, p.ID).
		Order("created_at DESC, id DESC").
		Find(&messages).Error
	if err != nil {
		return nil, apperrors.Unexpected("failed to list messages", err)
	}

	type key struct{ job, counterpart string }
	index := map[key]int{}
	var conversations []Conversation
	jobIDs := map[string]struct{}{}
	userIDs := map[string]struct{}{}

	for _, m := range messages {
		counterpart := m.SenderID
		if counterpart == p.ID {
			counterpart = m.RecipientID
		}
		k := key{m.JobID, counterpart}
		i, ok := index[k]
		if !ok {
			i = len(conversations)
			index[k] = i
			conversations = append(conversations, Conversation{JobID: m.JobID, CounterpartID: counterpart, LastMessage: m})
			jobIDs[m.JobID] = struct{}{}
			userIDs[counterpart] = struct{}{}
		}
		if m.RecipientID == p.ID && m.ReadAt == nil {
			conversations[i].Unread++
		}
	}
	if len(conversations) == 0 {
		return []Conversation{}, nil
	}

	titles, err := pluckNames(db, &models.Job{}, "title", jobIDs)
	if err != nil {
		return nil, err
	}
	names, err := pluckNames(db, &models.User{}, "name", userIDs)
	if err != nil {
		return nil, err
	}
	for i := range conversations {
		conversations[i].JobTitle = titles[conversations[i].JobID]
		conversations[i].CounterpartName = names[conversations[i].CounterpartID]
	}
	return conversations, nil
}

// requirePair checks that a and b are the job's client and a pro who bid on it
func requirePair(db *gorm.DB, job *models.Job, a, b string) error {
	if a == b {
		return apperrors.Forbidden("")
	}

	var pro string
	switch job.ClientID {
	case a:
		pro = b
	case b:
		pro = a
	default:
		return apperrors.Forbidden("")
	}

	bid, err := jobs.HasBid(db, job.ID, pro)
	if err != nil {
		return err
	}
	if !bid {
		return apperrors.Forbidden("")
	}
	return nil
}

func findJob(db *gorm.DB, id string) (*models.Job, error) {
	var job models.Job
	if err := models.FindByID(db, id, &job); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Job")
		}
		return nil, apperrors.Unexpected("failed to find job", err)
	}
	return &job, nil
}

func pluckNames(db *gorm.DB, model any, column string, ids map[string]struct{}) (map[string]string, error) {
	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}

	var rows []struct {
		ID    string
		Value string
	}
	if err := db.Model(model).Select("id, "+column+" AS value").Where("id IN ?", list).Scan(&rows).Error; err != nil {
		return nil, apperrors.Unexpected("failed to load names", err)
	}

	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.ID] = row.Value
	}
	return out, nil
}

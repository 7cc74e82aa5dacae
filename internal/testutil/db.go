// Package testutil provides an in-memory database and fixtures for package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vakspot/vakspot/internal/database"
	"github.com/vakspot/vakspot/internal/mail"
	"github.com/vakspot/vakspot/internal/models"
)

// NewDB returns a migrated, isolated in-memory SQLite database
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", ulid.Make().String())
	db, err := database.Open(dsn, zerolog.Nop(), database.Options{MaxOpenConns: 1, MaxIdleConns: 1})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}

// CreateUser inserts a user with the given role and a bcrypt hash of password.
// An empty password leaves the hash empty.
func CreateUser(t *testing.T, db *gorm.DB, email string, role models.Role, passwordHash string) *models.User {
	t.Helper()

	user := &models.User{
		Email:        models.NormalizeEmail(email),
		PasswordHash: passwordHash,
		Name:         email,
		Role:         role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateCategory inserts a category
func CreateCategory(t *testing.T, db *gorm.DB, name, slug string) *models.Category {
	t.Helper()

	category := &models.Category{Name: name, Slug: slug}
	require.NoError(t, db.Create(category).Error)
	return category
}

// CreatePro inserts a pro user with a profile covering categories
func CreatePro(t *testing.T, db *gorm.DB, email string, categories ...*models.Category) (*models.User, *models.ProProfile) {
	t.Helper()

	user := CreateUser(t, db, email, models.RolePro, "")
	profile := &models.ProProfile{UserID: user.ID, CompanyName: email}
	require.NoError(t, db.Create(profile).Error)
	for _, c := range categories {
		require.NoError(t, db.Create(&models.ProCategory{ProProfileID: profile.ID, CategoryID: c.ID}).Error)
	}
	return user, profile
}

// CreateJob inserts an open job owned by client
func CreateJob(t *testing.T, db *gorm.DB, client *models.User, category *models.Category, title string) *models.Job {
	t.Helper()

	job := &models.Job{
		ClientID:   client.ID,
		CategoryID: category.ID,
		Title:      title,
		Status:     models.JobStatusOpen,
	}
	require.NoError(t, db.Create(job).Error)
	return job
}

// CreateBid inserts a pending bid
func CreateBid(t *testing.T, db *gorm.DB, job *models.Job, pro *models.User, amountCents int64) *models.Bid {
	t.Helper()

	bid := &models.Bid{
		JobID:       job.ID,
		ProID:       pro.ID,
		AmountCents: amountCents,
		Status:      models.BidStatusPending,
	}
	require.NoError(t, db.Create(bid).Error)
	return bid
}

// Notifier records notifications instead of sending them
type Notifier struct {
	mu   sync.Mutex
	Sent []mail.Message
}

func (n *Notifier) Notify(ctx context.Context, msg mail.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, msg)
}

// SentTo returns the messages addressed to recipient
func (n *Notifier) SentTo(recipient string) []mail.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []mail.Message
	for _, m := range n.Sent {
		if m.To == recipient {
			out = append(out, m)
		}
	}
	return out
}

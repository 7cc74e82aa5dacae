package messaging

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vakspot/vakspot/internal/apperrors"
	"github.com/vakspot/vakspot/internal/auth"
	"github.com/vakspot/vakspot/internal/models"
	"github.com/vakspot/vakspot/internal/testutil"
)

type fixture struct {
	svc      *Service
	db       *gorm.DB
	notifier *testutil.Notifier
	client   *models.User
	pro      *models.User
	stranger *models.User
	admin    *models.User
	job      *models.Job
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	notifier := &testutil.Notifier{}
	category := testutil.CreateCategory(t, db, "Loodgieter", "loodgieter")
	client := testutil.CreateUser(t, db, "client@example.nl", models.RoleClient, "")
	pro, _ := testutil.CreatePro(t, db, "pro@example.nl", category)
	stranger, _ := testutil.CreatePro(t, db, "stranger@example.nl", category)
	job := testutil.CreateJob(t, db, client, category, "Lekkende kraan")
	testutil.CreateBid(t, db, job, pro, 10000)

	return &fixture{
		svc:      NewService(db, notifier, "https://vakspot.nl", zerolog.Nop()),
		db:       db,
		notifier: notifier,
		client:   client,
		pro:      pro,
		stranger: stranger,
		admin:    testutil.CreateUser(t, db, "admin@example.nl", models.RoleAdmin, ""),
		job:      job,
	}
}

func principalFor(u *models.User) *auth.Principal {
	return &auth.Principal{ID: u.ID, Email: u.Email, Role: u.Role}
}

func TestSend(t *testing.T) {
	f := setup(t)

	msg, err := f.svc.Send(context.Background(), principalFor(f.client), f.job.ID, f.pro.ID, "  Wanneer kun je langskomen? ")
	require.NoError(t, err)
	assert.Equal(t, "Wanneer kun je langskomen?", msg.Body)
	assert.Nil(t, msg.ReadAt)

	_, err = f.svc.Send(context.Background(), principalFor(f.pro), f.job.ID, f.client.ID, "Morgen om 9 uur")
	require.NoError(t, err)

	assert.Len(t, f.notifier.SentTo("pro@example.nl"), 1)
	assert.Len(t, f.notifier.SentTo("client@example.nl"), 1)
}

func TestSend_Failures(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name      string
		p         *auth.Principal
		recipient string
		body      string
		kind      apperrors.Kind
	}{
		{"anonymous", nil, f.pro.ID, "hi", apperrors.KindUnauthenticated},
		{"admin", principalFor(f.admin), f.pro.ID, "hi", apperrors.KindForbidden},
		{"empty body", principalFor(f.client), f.pro.ID, "   ", apperrors.KindValidation},
		{"body too long", principalFor(f.client), f.pro.ID, strings.Repeat("a", maxBodyLength+1), apperrors.KindValidation},
		{"pro without bid", principalFor(f.stranger), f.client.ID, "hi", apperrors.KindForbidden},
		{"client to pro without bid", principalFor(f.client), f.stranger.ID, "hi", apperrors.KindForbidden},
		{"pro to pro", principalFor(f.pro), f.stranger.ID, "hi", apperrors.KindForbidden},
		{"to self", principalFor(f.client), f.client.ID, "hi", apperrors.KindForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Send(context.Background(), tt.p, f.job.ID, tt.recipient, tt.body)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
		})
	}

	_, err := f.svc.Send(context.Background(), principalFor(f.client), "missing", f.pro.ID, "hi")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	assert.Empty(t, f.notifier.Sent)
}

func TestThread_OrdersAndMarksRead(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, principalFor(f.client), f.job.ID, f.pro.ID, "eerste")
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, principalFor(f.pro), f.job.ID, f.client.ID, "tweede")
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, principalFor(f.client), f.job.ID, f.pro.ID, "derde")
	require.NoError(t, err)

	// Admin reads without marking anything
	thread, err := f.svc.Thread(ctx, principalFor(f.admin), f.job.ID, f.pro.ID)
	require.NoError(t, err)
	require.Len(t, thread, 3)

	thread, err = f.svc.Thread(ctx, principalFor(f.pro), f.job.ID, f.client.ID)
	require.NoError(t, err)
	require.Len(t, thread, 3)
	assert.Equal(t, "eerste", thread[0].Body)
	assert.Equal(t, "tweede", thread[1].Body)
	assert.Equal(t, "derde", thread[2].Body)
	assert.NotNil(t, thread[0].ReadAt)
	assert.Nil(t, thread[1].ReadAt)

	var unread int64
	require.NoError(t, f.db.Model(&models.Message{}).Where("recipient_id = ? AND read_at IS NULL", f.pro.ID).Count(&unread).Error)
	assert.Zero(t, unread)
	require.NoError(t, f.db.Model(&models.Message{}).Where("recipient_id = ? AND read_at IS NULL", f.client.ID).Count(&unread).Error)
	assert.Equal(t, int64(1), unread)

	_, err = f.svc.Thread(ctx, principalFor(f.stranger), f.job.ID, f.client.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
}

func TestConversations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	other := testutil.CreateJob(t, f.db, f.client, &models.Category{BaseModel: models.BaseModel{ID: f.job.CategoryID}}, "Cv-ketel")
	testutil.CreateBid(t, f.db, other, f.pro, 30000)

	_, err := f.svc.Send(ctx, principalFor(f.client), f.job.ID, f.pro.ID, "kraan 1")
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, principalFor(f.client), f.job.ID, f.pro.ID, "kraan 2")
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, principalFor(f.client), other.ID, f.pro.ID, "ketel")
	require.NoError(t, err)

	conversations, err := f.svc.Conversations(ctx, principalFor(f.pro))
	require.NoError(t, err)
	require.Len(t, conversations, 2)

	byJob := map[string]Conversation{}
	for _, c := range conversations {
		byJob[c.JobID] = c
	}
	assert.Equal(t, 2, byJob[f.job.ID].Unread)
	assert.Equal(t, "kraan 2", byJob[f.job.ID].LastMessage.Body)
	assert.Equal(t, "Lekkende kraan", byJob[f.job.ID].JobTitle)
	assert.Equal(t, f.client.Name, byJob[f.job.ID].CounterpartName)
	assert.Equal(t, 1, byJob[other.ID].Unread)

	mine, err := f.svc.Conversations(ctx, principalFor(f.client))
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Zero(t, mine[0].Unread)

	none, err := f.svc.Conversations(ctx, principalFor(f.stranger))
	require.NoError(t, err)
	assert.Empty(t, none)
}

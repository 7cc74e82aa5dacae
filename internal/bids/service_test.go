package bids

import (
	"context"
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
	other    *models.User
	pro      *models.User
	rival    *models.User
	painter  *models.User
	job      *models.Job
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	notifier := &testutil.Notifier{}
	plumbing := testutil.CreateCategory(t, db, "Loodgieter", "loodgieter")
	painting := testutil.CreateCategory(t, db, "Schilder", "schilder")
	client := testutil.CreateUser(t, db, "client@example.nl", models.RoleClient, "")
	pro, _ := testutil.CreatePro(t, db, "pro@example.nl", plumbing)
	rival, _ := testutil.CreatePro(t, db, "rival@example.nl", plumbing)
	painter, _ := testutil.CreatePro(t, db, "painter@example.nl", painting)

	return &fixture{
		svc:      NewService(db, notifier, "https://vakspot.nl", zerolog.Nop()),
		db:       db,
		notifier: notifier,
		client:   client,
		other:    testutil.CreateUser(t, db, "other@example.nl", models.RoleClient, ""),
		pro:      pro,
		rival:    rival,
		painter:  painter,
		job:      testutil.CreateJob(t, db, client, plumbing, "Lekkende kraan"),
	}
}

func principalFor(u *models.User) *auth.Principal {
	return &auth.Principal{ID: u.ID, Email: u.Email, Role: u.Role}
}

func reloadBid(t *testing.T, db *gorm.DB, id string) models.Bid {
	t.Helper()
	var bid models.Bid
	require.NoError(t, db.First(&bid, "id = ?", id).Error)
	return bid
}

func reloadJob(t *testing.T, db *gorm.DB, id string) models.Job {
	t.Helper()
	var job models.Job
	require.NoError(t, db.First(&job, "id = ?", id).Error)
	return job
}

func TestSubmit(t *testing.T) {
	f := setup(t)

	bid, err := f.svc.Submit(context.Background(), principalFor(f.pro), f.job.ID, SubmitParams{AmountCents: 12550, Message: "Kan morgen"})
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusPending, bid.Status)
	assert.Equal(t, f.pro.ID, bid.ProID)

	sent := f.notifier.SentTo("client@example.nl")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Body, "€ 125,50")
	assert.Contains(t, sent[0].Body, "https://vakspot.nl/client/jobs/"+f.job.ID)
}

func TestSubmit_Failures(t *testing.T) {
	f := setup(t)
	testutil.CreateBid(t, f.db, f.job, f.rival, 9000)

	closed := testutil.CreateJob(t, f.db, f.client, &models.Category{BaseModel: models.BaseModel{ID: f.job.CategoryID}}, "Closed")
	require.NoError(t, f.db.Model(closed).Update("status", models.JobStatusInProgress).Error)

	tests := []struct {
		name   string
		p      *auth.Principal
		jobID  string
		amount int64
		kind   apperrors.Kind
	}{
		{"anonymous", nil, f.job.ID, 100, apperrors.KindUnauthenticated},
		{"client", principalFor(f.client), f.job.ID, 100, apperrors.KindForbidden},
		{"zero amount", principalFor(f.pro), f.job.ID, 0, apperrors.KindValidation},
		{"unknown job", principalFor(f.pro), "missing", 100, apperrors.KindNotFound},
		{"job not open", principalFor(f.pro), closed.ID, 100, apperrors.KindConflict},
		{"category not covered", principalFor(f.painter), f.job.ID, 100, apperrors.KindForbidden},
		{"second bid", principalFor(f.rival), f.job.ID, 100, apperrors.KindConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(context.Background(), tt.p, tt.jobID, SubmitParams{AmountCents: tt.amount})
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
		})
	}

	assert.Empty(t, f.notifier.Sent)
}

func TestListForJob(t *testing.T) {
	f := setup(t)
	testutil.CreateBid(t, f.db, f.job, f.pro, 20000)
	testutil.CreateBid(t, f.db, f.job, f.rival, 15000)

	bids, err := f.svc.ListForJob(context.Background(), principalFor(f.client), f.job.ID)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.Equal(t, f.rival.ID, bids[0].ProID)
	require.NotNil(t, bids[0].Pro)
	assert.NotNil(t, bids[0].Pro.ProProfile)

	_, err = f.svc.ListForJob(context.Background(), principalFor(f.other), f.job.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	_, err = f.svc.ListForJob(context.Background(), principalFor(f.pro), f.job.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	admin := testutil.CreateUser(t, f.db, "admin@example.nl", models.RoleAdmin, "")
	bids, err = f.svc.ListForJob(context.Background(), principalFor(admin), f.job.ID)
	require.NoError(t, err)
	assert.Len(t, bids, 2)
}

func TestListMine(t *testing.T) {
	f := setup(t)
	testutil.CreateBid(t, f.db, f.job, f.pro, 20000)
	testutil.CreateBid(t, f.db, f.job, f.rival, 15000)

	bids, err := f.svc.ListMine(context.Background(), principalFor(f.pro))
	require.NoError(t, err)
	require.Len(t, bids, 1)
	require.NotNil(t, bids[0].Job)
	assert.Equal(t, f.job.Title, bids[0].Job.Title)
}

func TestAccept(t *testing.T) {
	f := setup(t)
	winner := testutil.CreateBid(t, f.db, f.job, f.pro, 20000)
	loser := testutil.CreateBid(t, f.db, f.job, f.rival, 15000)

	accepted, err := f.svc.Accept(context.Background(), principalFor(f.client), winner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusAccepted, accepted.Status)

	assert.Equal(t, models.BidStatusRejected, reloadBid(t, f.db, loser.ID).Status)
	assert.Equal(t, models.JobStatusInProgress, reloadJob(t, f.db, f.job.ID).Status)

	sent := f.notifier.SentTo("pro@example.nl")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Body, "https://vakspot.nl/messages?job="+f.job.ID)

	_, err = f.svc.Accept(context.Background(), principalFor(f.client), loser.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
}

func TestAccept_OnlyOwner(t *testing.T) {
	f := setup(t)
	bid := testutil.CreateBid(t, f.db, f.job, f.pro, 20000)

	_, err := f.svc.Accept(context.Background(), principalFor(f.other), bid.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	_, err = f.svc.Accept(context.Background(), principalFor(f.pro), bid.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	_, err = f.svc.Accept(context.Background(), principalFor(f.client), "missing")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	assert.Equal(t, models.BidStatusPending, reloadBid(t, f.db, bid.ID).Status)
	assert.Equal(t, models.JobStatusOpen, reloadJob(t, f.db, f.job.ID).Status)
}

func TestAccept_JobNoLongerOpen(t *testing.T) {
	f := setup(t)
	bid := testutil.CreateBid(t, f.db, f.job, f.pro, 20000)
	require.NoError(t, f.db.Model(f.job).Update("status", models.JobStatusCancelled).Error)

	_, err := f.svc.Accept(context.Background(), principalFor(f.client), bid.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
	assert.Equal(t, models.BidStatusPending, reloadBid(t, f.db, bid.ID).Status)
}

func TestReject(t *testing.T) {
	f := setup(t)
	bid := testutil.CreateBid(t, f.db, f.job, f.pro, 20000)

	_, err := f.svc.Reject(context.Background(), principalFor(f.other), bid.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	rejected, err := f.svc.Reject(context.Background(), principalFor(f.client), bid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusRejected, rejected.Status)

	_, err = f.svc.Reject(context.Background(), principalFor(f.client), bid.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
}

func TestWithdraw(t *testing.T) {
	f := setup(t)
	bid := testutil.CreateBid(t, f.db, f.job, f.pro, 20000)

	_, err := f.svc.Withdraw(context.Background(), principalFor(f.rival), bid.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	withdrawn, err := f.svc.Withdraw(context.Background(), principalFor(f.pro), bid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidStatusWithdrawn, withdrawn.Status)

	_, err = f.svc.Withdraw(context.Background(), principalFor(f.pro), bid.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
}

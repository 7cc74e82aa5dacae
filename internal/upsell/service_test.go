package upsell

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vakspot/vakspot/internal/apperrors"
	"github.com/vakspot/vakspot/internal/auth"
	"github.com/vakspot/vakspot/internal/models"
	"github.com/vakspot/vakspot/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	return NewService(db, zerolog.Nop()), db
}

func principalFor(u *models.User) *auth.Principal {
	return &auth.Principal{ID: u.ID, Email: u.Email, Role: u.Role}
}

func boolPtr(b bool) *bool { return &b }

func TestServiceAdministration(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	admin := principalFor(testutil.CreateUser(t, db, "admin@example.nl", models.RoleAdmin, ""))
	pro, _ := testutil.CreatePro(t, db, "pro@example.nl")

	featured, err := svc.CreateService(ctx, admin, ServiceParams{Name: "Uitgelicht profiel", PriceCents: 1999})
	require.NoError(t, err)
	assert.Equal(t, "uitgelicht-profiel", featured.Slug)
	assert.True(t, featured.Active)

	hidden, err := svc.CreateService(ctx, admin, ServiceParams{Name: "KvK check", Slug: "kvk-check", PriceCents: 999, Active: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, hidden.Active)

	_, err = svc.CreateService(ctx, admin, ServiceParams{Name: "Dup", Slug: "kvk-check"})
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	_, err = svc.CreateService(ctx, principalFor(pro), ServiceParams{Name: "Nope"})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	forPro, err := svc.ListServices(ctx, principalFor(pro))
	require.NoError(t, err)
	require.Len(t, forPro, 1)
	assert.Equal(t, featured.ID, forPro[0].ID)

	forAdmin, err := svc.ListServices(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, forAdmin, 2)

	updated, err := svc.UpdateService(ctx, admin, hidden.ID, ServiceParams{Name: "KvK check", Slug: "kvk-check", PriceCents: 1499, Active: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, updated.Active)
	assert.Equal(t, int64(1499), updated.PriceCents)

	_, err = svc.UpdateService(ctx, admin, hidden.ID, ServiceParams{Name: "x", Slug: "uitgelicht-profiel"})
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	require.NoError(t, svc.DeleteService(ctx, admin, hidden.ID))
	assert.True(t, apperrors.Is(svc.DeleteService(ctx, admin, hidden.ID), apperrors.KindNotFound))
}

func TestPurchase(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	admin := principalFor(testutil.CreateUser(t, db, "admin@example.nl", models.RoleAdmin, ""))
	category := testutil.CreateCategory(t, db, "Loodgieter", "loodgieter")
	pro, _ := testutil.CreatePro(t, db, "pro@example.nl", category)
	client := testutil.CreateUser(t, db, "client@example.nl", models.RoleClient, "")
	job := testutil.CreateJob(t, db, client, category, "Kraan")
	otherJob := testutil.CreateJob(t, db, client, category, "Ketel")
	testutil.CreateBid(t, db, job, pro, 10000)

	service, err := svc.CreateService(ctx, admin, ServiceParams{Name: "Uitgelicht bod", PriceCents: 499})
	require.NoError(t, err)

	purchase, err := svc.Purchase(ctx, principalFor(pro), service.ID, &job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusPending, purchase.Status)
	assert.Equal(t, int64(499), purchase.PriceCents)
	require.NotNil(t, purchase.JobID)
	assert.Equal(t, job.ID, *purchase.JobID)

	// Price changes do not touch existing purchases
	_, err = svc.UpdateService(ctx, admin, service.ID, ServiceParams{Name: "Uitgelicht bod", PriceCents: 999})
	require.NoError(t, err)
	var reloaded models.ServicePurchase
	require.NoError(t, db.First(&reloaded, "id = ?", purchase.ID).Error)
	assert.Equal(t, int64(499), reloaded.PriceCents)

	_, err = svc.Purchase(ctx, principalFor(pro), service.ID, &otherJob.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	_, err = svc.Purchase(ctx, principalFor(client), service.ID, nil)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	_, err = svc.UpdateService(ctx, admin, service.ID, ServiceParams{Name: "Uitgelicht bod", PriceCents: 999, Active: boolPtr(false)})
	require.NoError(t, err)
	_, err = svc.Purchase(ctx, principalFor(pro), service.ID, nil)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	assert.True(t, apperrors.Is(svc.DeleteService(ctx, admin, service.ID), apperrors.KindConflict))
}

func TestListPurchases(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	admin := principalFor(testutil.CreateUser(t, db, "admin@example.nl", models.RoleAdmin, ""))
	pro, _ := testutil.CreatePro(t, db, "pro@example.nl")
	rival, _ := testutil.CreatePro(t, db, "rival@example.nl")

	service, err := svc.CreateService(ctx, admin, ServiceParams{Name: "Uitgelicht profiel", PriceCents: 1999})
	require.NoError(t, err)
	_, err = svc.Purchase(ctx, principalFor(pro), service.ID, nil)
	require.NoError(t, err)
	_, err = svc.Purchase(ctx, principalFor(rival), service.ID, nil)
	require.NoError(t, err)

	mine, err := svc.ListPurchases(ctx, principalFor(pro))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, pro.ID, mine[0].ProID)
	assert.NotNil(t, mine[0].Service)

	all, err := svc.ListPurchases(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	client := testutil.CreateUser(t, db, "client@example.nl", models.RoleClient, "")
	_, err = svc.ListPurchases(ctx, principalFor(client))
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
}

func TestSettlePurchase(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	admin := principalFor(testutil.CreateUser(t, db, "admin@example.nl", models.RoleAdmin, ""))
	pro, _ := testutil.CreatePro(t, db, "pro@example.nl")

	service, err := svc.CreateService(ctx, admin, ServiceParams{Name: "Uitgelicht profiel", PriceCents: 1999})
	require.NoError(t, err)
	first, err := svc.Purchase(ctx, principalFor(pro), service.ID, nil)
	require.NoError(t, err)
	second, err := svc.Purchase(ctx, principalFor(pro), service.ID, nil)
	require.NoError(t, err)

	_, err = svc.MarkPaid(ctx, principalFor(pro), first.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	paid, err := svc.MarkPaid(ctx, admin, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.True(t, now.Equal(*paid.PaidAt))

	_, err = svc.CancelPurchase(ctx, admin, first.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	cancelled, err := svc.CancelPurchase(ctx, admin, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseStatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.PaidAt)

	_, err = svc.MarkPaid(ctx, admin, "missing")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

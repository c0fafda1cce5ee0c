package service

import (
	"context"
	"testing"
	"time"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/internal/metrics"
	"github.com/Dhoini/subscription-service/internal/repository"
	"github.com/Dhoini/subscription-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCancel_LatestRecordOnly(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewInMemorySubscriptionRepository()
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, eventOfType(domain.EventSubscriptionCanceled)).Return(nil).Once()
	svc := NewCancelService(repo, pub, logger.NewNop())

	now := time.Now().UTC()
	userID := uuid.New()
	older := domain.NewPendingSubscription(userID, domain.PlanPro, "pref-1", now.Add(-time.Hour))
	require.NoError(t, repo.Insert(ctx, older))
	latest := domain.NewPendingSubscription(userID, domain.PlanPro, "pref-2", now)
	require.NoError(t, repo.Insert(ctx, latest))
	_, err := repo.Activate(ctx, domain.NewActivation(latest, "pay-1", now))
	require.NoError(t, err)

	res, err := svc.Cancel(ctx, userID.String())
	require.NoError(t, err)

	assert.True(t, res.Canceled)
	assert.Equal(t, domain.PlanPro, res.Plan)
	require.NotNil(t, res.ExpiresAt)
	assert.WithinDuration(t, now.Add(domain.GrantPeriod), *res.ExpiresAt, time.Millisecond)

	got, err := repo.FindLatestByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCanceled, got.Status)
	assert.Equal(t, res.ExpiresAt.Unix(), got.ExpiresAt.Unix(), "expiry is untouched")

	untouched, err := repo.FindByIntentID(ctx, "pref-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusPending, untouched.Status)
	pub.AssertExpectations(t)
}

func TestCancel_Errors(t *testing.T) {
	svc := NewCancelService(repository.NewInMemorySubscriptionRepository(), NopPublisher(), logger.NewNop())

	_, err := svc.Cancel(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Cancel(context.Background(), "")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.CodeMissingField, verr.Code)
}

// Full lifecycle: checkout, approval, duplicate delivery, status, cancel.
func TestSubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewInMemorySubscriptionRepository()
	provider := &mockProvider{}
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()

	checkout := newCheckout(repo, provider, pub)
	checkout.now = fixedClock(now)
	provider.On("CreatePreference", mock.Anything, mock.Anything).
		Return(&domain.PaymentIntent{ID: "pref-1", RedirectURL: "https://mp.example/pref-1"}, nil)

	_, err := checkout.CreateCheckout(ctx, userID.String(), "pro")
	require.NoError(t, err)

	status := newStatus(repo, now.Add(time.Minute))
	view, err := status.GetStatus(ctx, userID.String())
	require.NoError(t, err)
	assert.False(t, view.Premium)

	rec := NewReconciler(repo, provider, pub, metrics.NewNop(), logger.NewNop()).(*reconciler)
	rec.now = fixedClock(now.Add(time.Minute))
	provider.On("GetPayment", mock.Anything, "pay-1").Return(&domain.ProviderPayment{
		ID:               "pay-1",
		Status:           domain.PaymentStatusApproved,
		CorrelationToken: userID.String() + ":pro",
	}, nil)

	for i := 0; i < 3; i++ {
		rec.HandleNotification(ctx, paymentNotification("pay-1"))
	}

	view, err = status.GetStatus(ctx, userID.String())
	require.NoError(t, err)
	assert.True(t, view.Premium)
	assert.Equal(t, domain.PlanPro, view.Plan)
	assert.Equal(t, 30, view.DaysLeft)

	_, err = NewCancelService(repo, pub, logger.NewNop()).Cancel(ctx, userID.String())
	require.NoError(t, err)

	view, err = status.GetStatus(ctx, userID.String())
	require.NoError(t, err)
	assert.False(t, view.Premium)
	assert.Equal(t, domain.SubscriptionStatusCanceled, view.Status)
}

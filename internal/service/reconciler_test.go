package service

import (
	"context"
	"testing"
	"time"

	"github.com/Dhoini/subscription-service/internal/correlation"
	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/internal/metrics"
	"github.com/Dhoini/subscription-service/internal/repository"
	"github.com/Dhoini/subscription-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var reconcileNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type reconcileFixture struct {
	repo     *repository.InMemorySubscriptionRepository
	provider *mockProvider
	pub      *mockPublisher
	svc      *reconciler
	userID   uuid.UUID
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	f := &reconcileFixture{
		repo:     repository.NewInMemorySubscriptionRepository(),
		provider: &mockProvider{},
		pub:      &mockPublisher{},
		userID:   uuid.New(),
	}
	f.svc = NewReconciler(f.repo, f.provider, f.pub, metrics.NewNop(), logger.NewNop()).(*reconciler)
	f.svc.now = fixedClock(reconcileNow)
	f.pub.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	return f
}

func (f *reconcileFixture) seedPending(t *testing.T, intentID string, createdAt time.Time) *domain.Subscription {
	t.Helper()
	sub := domain.NewPendingSubscription(f.userID, domain.PlanPro, intentID, createdAt)
	require.NoError(t, f.repo.Insert(context.Background(), sub))
	return sub
}

func (f *reconcileFixture) approved(paymentID, intentRef string) *domain.ProviderPayment {
	return &domain.ProviderPayment{
		ID:               paymentID,
		Status:           domain.PaymentStatusApproved,
		CorrelationToken: correlation.Encode(f.userID, domain.PlanPro),
		IntentRef:        intentRef,
	}
}

func paymentNotification(id string) domain.Notification {
	return domain.Notification{Topic: domain.NotificationTopicPayment, ResourceID: id, ReceivedAt: reconcileNow}
}

func single(t *testing.T, results []domain.ReconcileResult) domain.ReconcileResult {
	t.Helper()
	require.Len(t, results, 1)
	return results[0]
}

func TestReconciler_ApprovedPaymentActivatesPendingRecord(t *testing.T) {
	f := newReconcileFixture(t)
	sub := f.seedPending(t, "pref-1", reconcileNow.Add(-time.Hour))
	f.provider.On("GetPayment", mock.Anything, "pay-1").Return(f.approved("pay-1", "pref-1"), nil)

	res := single(t, f.svc.HandleNotification(context.Background(), paymentNotification("pay-1")))

	assert.Equal(t, domain.OutcomeActivated, res.Outcome)
	assert.Equal(t, sub.ID, res.SubscriptionID)

	got, err := f.repo.FindLatestByUser(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, got.Status)
	assert.Equal(t, reconcileNow, *got.StartedAt)
	assert.Equal(t, reconcileNow.Add(30*24*time.Hour), *got.ExpiresAt)
	assert.True(t, got.ActivatedWith("pay-1"))
	f.pub.AssertCalled(t, "Publish", mock.Anything, eventOfType(domain.EventSubscriptionActivated))
}

func TestReconciler_DuplicateDeliveryDoesNotMoveExpiry(t *testing.T) {
	f := newReconcileFixture(t)
	f.seedPending(t, "pref-1", reconcileNow.Add(-time.Hour))
	f.provider.On("GetPayment", mock.Anything, "pay-1").Return(f.approved("pay-1", "pref-1"), nil)

	first := single(t, f.svc.HandleNotification(context.Background(), paymentNotification("pay-1")))
	require.Equal(t, domain.OutcomeActivated, first.Outcome)

	f.svc.now = fixedClock(reconcileNow.Add(2 * time.Hour))
	second := single(t, f.svc.HandleNotification(context.Background(), paymentNotification("pay-1")))

	assert.Equal(t, domain.OutcomeDuplicate, second.Outcome)
	assert.Equal(t, first.SubscriptionID, second.SubscriptionID)

	got, err := f.repo.FindLatestByUser(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Equal(t, reconcileNow.Add(30*24*time.Hour), *got.ExpiresAt)
	f.pub.AssertNumberOfCalls(t, "Publish", 1)
}

func TestReconciler_NonApprovedPaymentIsIgnored(t *testing.T) {
	for _, status := range []domain.PaymentStatus{
		domain.PaymentStatusPending,
		domain.PaymentStatusRejected,
		domain.PaymentStatusInProcess,
		domain.PaymentStatusUnknown,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newReconcileFixture(t)
			f.seedPending(t, "pref-1", reconcileNow)
			payment := f.approved("pay-1", "pref-1")
			payment.Status = status
			f.provider.On("GetPayment", mock.Anything, "pay-1").Return(payment, nil)

			res := f.svc.ReconcilePayment(context.Background(), "pay-1")

			assert.Equal(t, domain.OutcomeIgnored, res.Outcome)
			got, err := f.repo.FindLatestByUser(context.Background(), f.userID)
			require.NoError(t, err)
			assert.Equal(t, domain.SubscriptionStatusPending, got.Status)
		})
	}
}

func TestReconciler_ProviderFailureDefers(t *testing.T) {
	f := newReconcileFixture(t)
	f.seedPending(t, "pref-1", reconcileNow)
	f.provider.On("GetPayment", mock.Anything, "pay-1").
		Return(nil, domain.NewExternalServiceError("mercadopago", "get_payment", "bad gateway", 502, nil))

	res := f.svc.ReconcilePayment(context.Background(), "pay-1")

	assert.Equal(t, domain.OutcomeDeferred, res.Outcome)
}

func TestReconciler_StoreFailureDefers(t *testing.T) {
	f := newReconcileFixture(t)
	f.seedPending(t, "pref-1", reconcileNow)
	f.provider.On("GetPayment", mock.Anything, "pay-1").Return(f.approved("pay-1", "pref-1"), nil)

	f.svc.repo = &failingRepo{SubscriptionRepository: f.repo, failActivate: true}
	assert.Equal(t, domain.OutcomeDeferred, f.svc.ReconcilePayment(context.Background(), "pay-1").Outcome)

	f.svc.repo = &failingRepo{SubscriptionRepository: f.repo, failByPayment: true}
	assert.Equal(t, domain.OutcomeDeferred, f.svc.ReconcilePayment(context.Background(), "pay-1").Outcome)
}

func TestReconciler_UncorrelatedPaymentDefers(t *testing.T) {
	f := newReconcileFixture(t)
	f.provider.On("GetPayment", mock.Anything, "pay-1").
		Return(&domain.ProviderPayment{ID: "pay-1", Status: domain.PaymentStatusApproved, IntentRef: "pref-unknown"}, nil)

	res := f.svc.ReconcilePayment(context.Background(), "pay-1")

	assert.Equal(t, domain.OutcomeDeferred, res.Outcome)
}

func TestReconciler_MalformedTokenWithoutRecordDefers(t *testing.T) {
	f := newReconcileFixture(t)
	f.provider.On("GetPayment", mock.Anything, "pay-1").
		Return(&domain.ProviderPayment{ID: "pay-1", Status: domain.PaymentStatusApproved, CorrelationToken: "garbage"}, nil)

	assert.Equal(t, domain.OutcomeDeferred, f.svc.ReconcilePayment(context.Background(), "pay-1").Outcome)
}

func TestReconciler_TokenOnlyActivatesWithoutPriorRecord(t *testing.T) {
	f := newReconcileFixture(t)
	f.provider.On("GetPayment", mock.Anything, "pay-1").Return(f.approved("pay-1", ""), nil)

	res := f.svc.ReconcilePayment(context.Background(), "pay-1")

	require.Equal(t, domain.OutcomeActivated, res.Outcome)
	got, err := f.repo.FindLatestByUser(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Equal(t, res.SubscriptionID, got.ID)
	assert.Equal(t, domain.SubscriptionStatusActive, got.Status)
	assert.Equal(t, domain.PlanPro, got.Plan)

	// the same payment delivered again finds the inserted record
	assert.Equal(t, domain.OutcomeDuplicate, f.svc.ReconcilePayment(context.Background(), "pay-1").Outcome)
}

func TestReconciler_TokenFindsLatestPendingWhenIntentUnknown(t *testing.T) {
	f := newReconcileFixture(t)
	older := f.seedPending(t, "pref-1", reconcileNow.Add(-2*time.Hour))
	newer := f.seedPending(t, "pref-2", reconcileNow.Add(-time.Hour))
	f.provider.On("GetPayment", mock.Anything, "pay-1").Return(f.approved("pay-1", ""), nil)

	res := f.svc.ReconcilePayment(context.Background(), "pay-1")

	assert.Equal(t, domain.OutcomeActivated, res.Outcome)
	assert.Equal(t, newer.ID, res.SubscriptionID)
	assert.NotEqual(t, older.ID, res.SubscriptionID)
}

func TestReconciler_IntentRefWithoutToken(t *testing.T) {
	f := newReconcileFixture(t)
	sub := f.seedPending(t, "pref-1", reconcileNow)
	f.provider.On("GetPayment", mock.Anything, "pay-1").
		Return(&domain.ProviderPayment{ID: "pay-1", Status: domain.PaymentStatusApproved, IntentRef: "pref-1"}, nil)

	res := f.svc.ReconcilePayment(context.Background(), "pay-1")

	assert.Equal(t, domain.OutcomeActivated, res.Outcome)
	assert.Equal(t, sub.ID, res.SubscriptionID)
}

func TestReconciler_IntentRecordMismatchingTokenIsSkipped(t *testing.T) {
	f := newReconcileFixture(t)
	stranger := domain.NewPendingSubscription(uuid.New(), domain.PlanPro, "pref-1", reconcileNow)
	require.NoError(t, f.repo.Insert(context.Background(), stranger))
	own := f.seedPending(t, "pref-2", reconcileNow.Add(-time.Minute))
	f.provider.On("GetPayment", mock.Anything, "pay-1").Return(f.approved("pay-1", "pref-1"), nil)

	res := f.svc.ReconcilePayment(context.Background(), "pay-1")

	assert.Equal(t, domain.OutcomeActivated, res.Outcome)
	assert.Equal(t, own.ID, res.SubscriptionID)
	got, err := f.repo.FindLatestByUser(context.Background(), stranger.UserID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusPending, got.Status)
}

func TestReconciler_PaymentOrderFallback(t *testing.T) {
	f := newReconcileFixture(t)
	sub := f.seedPending(t, "pref-1", reconcileNow)
	f.provider.On("GetPayment", mock.Anything, "pay-1").
		Return(&domain.ProviderPayment{ID: "pay-1", Status: domain.PaymentStatusApproved, OrderRef: "order-9"}, nil)
	f.provider.On("GetMerchantOrder", mock.Anything, "order-9").
		Return(&domain.ProviderOrder{ID: "order-9", IntentRef: "pref-1", PaymentIDs: []string{"pay-1"}}, nil)

	res := f.svc.ReconcilePayment(context.Background(), "pay-1")

	assert.Equal(t, domain.OutcomeActivated, res.Outcome)
	assert.Equal(t, sub.ID, res.SubscriptionID)
}

func TestReconciler_MerchantOrderNotification(t *testing.T) {
	f := newReconcileFixture(t)
	sub := f.seedPending(t, "pref-1", reconcileNow)
	f.provider.On("GetMerchantOrder", mock.Anything, "order-1").
		Return(&domain.ProviderOrder{ID: "order-1", IntentRef: "pref-1", PaymentIDs: []string{"pay-rejected", "pay-ok"}}, nil)
	f.provider.On("GetPayment", mock.Anything, "pay-rejected").
		Return(&domain.ProviderPayment{ID: "pay-rejected", Status: domain.PaymentStatusRejected}, nil)
	f.provider.On("GetPayment", mock.Anything, "pay-ok").
		Return(&domain.ProviderPayment{ID: "pay-ok", Status: domain.PaymentStatusApproved}, nil)

	results := f.svc.HandleNotification(context.Background(), domain.Notification{
		Topic:      domain.NotificationTopicMerchantOrder,
		ResourceID: "order-1",
	})

	require.Len(t, results, 2)
	assert.Equal(t, domain.OutcomeIgnored, results[0].Outcome)
	assert.Equal(t, domain.OutcomeActivated, results[1].Outcome)
	assert.Equal(t, sub.ID, results[1].SubscriptionID)
}

func TestReconciler_MerchantOrderLookupFailureDefers(t *testing.T) {
	f := newReconcileFixture(t)
	f.provider.On("GetMerchantOrder", mock.Anything, "order-1").Return(nil, assert.AnError)

	res := single(t, f.svc.HandleNotification(context.Background(), domain.Notification{
		Topic:      domain.NotificationTopicMerchantOrder,
		ResourceID: "order-1",
	}))

	assert.Equal(t, domain.OutcomeDeferred, res.Outcome)
}

func TestReconciler_UnresolvableNotificationsAreIgnored(t *testing.T) {
	f := newReconcileFixture(t)

	for _, n := range []domain.Notification{
		{Topic: domain.NotificationTopicPayment},
		{Topic: domain.NotificationTopicUnknown, ResourceID: "123"},
		{Topic: "chargebacks", ResourceID: "123"},
	} {
		res := single(t, f.svc.HandleNotification(context.Background(), n))
		assert.Equal(t, domain.OutcomeIgnored, res.Outcome)
	}
	f.provider.AssertNotCalled(t, "GetPayment", mock.Anything, mock.Anything)
}

func TestReconciler_RenewalSupersedesPreviousGrant(t *testing.T) {
	f := newReconcileFixture(t)
	f.seedPending(t, "pref-1", reconcileNow.Add(-48*time.Hour))
	f.provider.On("GetPayment", mock.Anything, "pay-1").Return(f.approved("pay-1", "pref-1"), nil)
	require.Equal(t, domain.OutcomeActivated, f.svc.ReconcilePayment(context.Background(), "pay-1").Outcome)

	renewal := f.seedPending(t, "pref-2", reconcileNow.Add(-time.Hour))
	f.provider.On("GetPayment", mock.Anything, "pay-2").Return(f.approved("pay-2", "pref-2"), nil)
	require.Equal(t, domain.OutcomeActivated, f.svc.ReconcilePayment(context.Background(), "pay-2").Outcome)

	old, err := f.repo.FindByPaymentID(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusInactive, old.Status)

	latest, err := f.repo.FindLatestByUser(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Equal(t, renewal.ID, latest.ID)
	assert.Equal(t, domain.SubscriptionStatusActive, latest.Status)
}

func TestReconciler_CanceledRecordIsNotReactivated(t *testing.T) {
	f := newReconcileFixture(t)
	sub := f.seedPending(t, "pref-1", reconcileNow)
	sub.Status = domain.SubscriptionStatusCanceled
	require.NoError(t, f.repo.UpdateStatus(context.Background(), sub))

	f.provider.On("GetPayment", mock.Anything, "pay-1").
		Return(&domain.ProviderPayment{ID: "pay-1", Status: domain.PaymentStatusApproved, IntentRef: "pref-1"}, nil)

	res := f.svc.ReconcilePayment(context.Background(), "pay-1")

	assert.Equal(t, domain.OutcomeDeferred, res.Outcome)
	got, err := f.repo.FindLatestByUser(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCanceled, got.Status)
}

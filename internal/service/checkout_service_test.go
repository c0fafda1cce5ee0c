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

const notificationURL = "https://api.example.com/webhook/mercadopago"

func newCheckout(repo repository.SubscriptionRepository, provider *mockProvider, pub *mockPublisher) *checkoutService {
	s := NewCheckoutService(repo, provider, pub, metrics.NewNop(), notificationURL, logger.NewNop()).(*checkoutService)
	s.now = fixedClock(time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC))
	return s
}

func TestCreateCheckout_Success(t *testing.T) {
	repo := repository.NewInMemorySubscriptionRepository()
	provider := &mockProvider{}
	pub := &mockPublisher{}
	svc := newCheckout(repo, provider, pub)
	userID := uuid.New()

	provider.On("CreatePreference", mock.Anything, mock.MatchedBy(func(req domain.PaymentIntentRequest) bool {
		return req.ItemID == "pro" &&
			req.Title == "Assinatura Guied – PRO" &&
			req.Quantity == 1 &&
			req.UnitPrice.String() == "9.9" &&
			req.Currency == "BRL" &&
			req.CorrelationToken == userID.String()+":pro" &&
			req.NotificationURL == notificationURL &&
			req.Metadata["user_id"] == userID.String()
	})).Return(&domain.PaymentIntent{ID: "pref-123", RedirectURL: "https://mp.example/checkout/pref-123"}, nil).Once()
	pub.On("Publish", mock.Anything, eventOfType(domain.EventCheckoutCreated)).Return(nil).Once()

	res, err := svc.CreateCheckout(context.Background(), userID.String(), "pro")
	require.NoError(t, err)

	assert.Equal(t, "https://mp.example/checkout/pref-123", res.InitPoint)
	assert.Equal(t, "pref-123", res.PreferenceID)
	assert.Equal(t, domain.SubscriptionStatusPending, res.Subscription.Status)

	stored, err := repo.FindByIntentID(context.Background(), "pref-123")
	require.NoError(t, err)
	assert.Equal(t, userID, stored.UserID)
	assert.Equal(t, domain.PlanPro, stored.Plan)
	assert.Nil(t, stored.ExpiresAt)

	provider.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestCreateCheckout_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		plan   string
		code   string
	}{
		{"missing user", "", "pro", domain.CodeMissingField},
		{"missing plan", uuid.NewString(), "", domain.CodeMissingField},
		{"malformed user", "not-a-uuid", "pro", domain.CodeInvalidIdentifier},
		{"plan not available yet", uuid.NewString(), "pro_plus", domain.CodePlanUnavailable},
		{"unknown plan", uuid.NewString(), "enterprise", domain.CodeUnsupportedPlan},
		{"free is not sold", uuid.NewString(), "free", domain.CodeUnsupportedPlan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{}
			svc := newCheckout(repository.NewInMemorySubscriptionRepository(), provider, &mockPublisher{})

			_, err := svc.CreateCheckout(context.Background(), tt.userID, tt.plan)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.code, verr.Code)
			provider.AssertNotCalled(t, "CreatePreference", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateCheckout_ProviderFailureStoresNothing(t *testing.T) {
	repo := repository.NewInMemorySubscriptionRepository()
	provider := &mockProvider{}
	svc := newCheckout(repo, provider, &mockPublisher{})
	userID := uuid.New()

	provider.On("CreatePreference", mock.Anything, mock.Anything).
		Return(nil, domain.NewExternalServiceError("mercadopago", "create_preference", "unauthorized", 401, nil))

	_, err := svc.CreateCheckout(context.Background(), userID.String(), "pro")

	assert.ErrorIs(t, err, domain.ErrIssuanceFailed)
	assert.ErrorIs(t, err, domain.ErrExternalServiceUnavailable)
	_, err = repo.FindLatestByUser(context.Background(), userID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateCheckout_StoreFailure(t *testing.T) {
	repo := &failingRepo{SubscriptionRepository: repository.NewInMemorySubscriptionRepository(), failInsert: true}
	provider := &mockProvider{}
	svc := newCheckout(repo, provider, &mockPublisher{})

	provider.On("CreatePreference", mock.Anything, mock.Anything).
		Return(&domain.PaymentIntent{ID: "pref-1", RedirectURL: "https://mp.example"}, nil)

	_, err := svc.CreateCheckout(context.Background(), uuid.NewString(), "pro")

	assert.ErrorIs(t, err, domain.ErrIssuanceFailed)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestCreateCheckout_PublishFailureIsNotFatal(t *testing.T) {
	provider := &mockProvider{}
	pub := &mockPublisher{}
	svc := newCheckout(repository.NewInMemorySubscriptionRepository(), provider, pub)

	provider.On("CreatePreference", mock.Anything, mock.Anything).
		Return(&domain.PaymentIntent{ID: "pref-1", RedirectURL: "https://mp.example"}, nil)
	pub.On("Publish", mock.Anything, mock.Anything).Return(assert.AnError)

	res, err := svc.CreateCheckout(context.Background(), uuid.NewString(), "pro")
	require.NoError(t, err)
	assert.Equal(t, "pref-1", res.PreferenceID)
}

func TestCreateCheckout_RepeatedCheckoutsAreNotDeduplicated(t *testing.T) {
	repo := repository.NewInMemorySubscriptionRepository()
	provider := &mockProvider{}
	pub := &mockPublisher{}
	svc := newCheckout(repo, provider, pub)
	userID := uuid.New()

	provider.On("CreatePreference", mock.Anything, mock.Anything).
		Return(&domain.PaymentIntent{ID: "pref-1", RedirectURL: "https://mp.example/1"}, nil).Once()
	provider.On("CreatePreference", mock.Anything, mock.Anything).
		Return(&domain.PaymentIntent{ID: "pref-2", RedirectURL: "https://mp.example/2"}, nil).Once()
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	first, err := svc.CreateCheckout(context.Background(), userID.String(), "pro")
	require.NoError(t, err)
	svc.now = fixedClock(svc.now().Add(time.Minute))
	second, err := svc.CreateCheckout(context.Background(), userID.String(), "pro")
	require.NoError(t, err)

	assert.NotEqual(t, first.Subscription.ID, second.Subscription.ID)
	latest, err := repo.FindLatestByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "pref-2", latest.ExternalIntentID)
}

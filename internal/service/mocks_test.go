package service

import (
	"context"
	"errors"
	"time"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreatePreference(ctx context.Context, req domain.PaymentIntentRequest) (*domain.PaymentIntent, error) {
	args := m.Called(ctx, req)
	intent, _ := args.Get(0).(*domain.PaymentIntent)
	return intent, args.Error(1)
}

func (m *mockProvider) GetPayment(ctx context.Context, paymentID string) (*domain.ProviderPayment, error) {
	args := m.Called(ctx, paymentID)
	payment, _ := args.Get(0).(*domain.ProviderPayment)
	return payment, args.Error(1)
}

func (m *mockProvider) GetMerchantOrder(ctx context.Context, orderID string) (*domain.ProviderOrder, error) {
	args := m.Called(ctx, orderID)
	order, _ := args.Get(0).(*domain.ProviderOrder)
	return order, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event domain.SubscriptionEvent) error {
	return m.Called(ctx, event).Error(0)
}

func eventOfType(t domain.SubscriptionEventType) interface{} {
	return mock.MatchedBy(func(ev domain.SubscriptionEvent) bool { return ev.Type == t })
}

// failingRepo breaks selected store calls of an otherwise working repository.
type failingRepo struct {
	repository.SubscriptionRepository
	failInsert     bool
	failFindLatest bool
	failActivate   bool
	failByPayment  bool
}

var errStoreDown = errors.New("connection reset by peer")

func (r *failingRepo) Insert(ctx context.Context, sub *domain.Subscription) error {
	if r.failInsert {
		return errStoreDown
	}
	return r.SubscriptionRepository.Insert(ctx, sub)
}

func (r *failingRepo) FindLatestByUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	if r.failFindLatest {
		return nil, errStoreDown
	}
	return r.SubscriptionRepository.FindLatestByUser(ctx, userID)
}

func (r *failingRepo) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Subscription, error) {
	if r.failByPayment {
		return nil, errStoreDown
	}
	return r.SubscriptionRepository.FindByPaymentID(ctx, paymentID)
}

func (r *failingRepo) Activate(ctx context.Context, a domain.Activation) (bool, error) {
	if r.failActivate {
		return false, errStoreDown
	}
	return r.SubscriptionRepository.Activate(ctx, a)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

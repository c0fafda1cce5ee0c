package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-service/internal/correlation"
	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/internal/metrics"
	"github.com/Dhoini/subscription-service/internal/repository"
	"github.com/Dhoini/subscription-service/pkg/logger"
)

// CheckoutResult ответ на создание оформления подписки
type CheckoutResult struct {
	InitPoint    string               `json:"init_point"`
	PreferenceID string               `json:"preference_id"`
	Subscription *domain.Subscription `json:"subscription"`
}

// CheckoutService интерфейс сервиса оформления подписки
type CheckoutService interface {
	CreateCheckout(ctx context.Context, userID, plan string) (*CheckoutResult, error)
}

type checkoutService struct {
	repo            repository.SubscriptionRepository
	provider        PaymentProvider
	events          EventPublisher
	metrics         metrics.SubscriptionMetrics
	notificationURL string
	log             *logger.Logger
	now             func() time.Time
}

// NewCheckoutService создает новый сервис оформления подписки
func NewCheckoutService(
	repo repository.SubscriptionRepository,
	provider PaymentProvider,
	events EventPublisher,
	m metrics.SubscriptionMetrics,
	notificationURL string,
	log *logger.Logger,
) CheckoutService {
	return &checkoutService{
		repo:            repo,
		provider:        provider,
		events:          events,
		metrics:         m,
		notificationURL: notificationURL,
		log:             log.Named("checkout"),
		now:             utcNow,
	}
}

// CreateCheckout создает намерение оплаты у провайдера и сохраняет ожидающую запись.
// Every call issues a fresh intent; repeated checkouts are not deduplicated.
func (s *checkoutService) CreateCheckout(ctx context.Context, rawUserID, rawPlan string) (*CheckoutResult, error) {
	userID, err := parseUserID(rawUserID)
	if err != nil {
		s.metrics.IncCheckout(rawPlan, "rejected")
		return nil, err
	}
	if rawPlan == "" {
		s.metrics.IncCheckout(rawPlan, "rejected")
		return nil, domain.NewValidationError(domain.CodeMissingField, "plan", "plan is required")
	}

	offer, err := domain.LookupOffer(rawPlan)
	if err != nil {
		s.log.Infow("Checkout rejected", "userID", userID, "plan", rawPlan, "error", err)
		s.metrics.IncCheckout(rawPlan, "rejected")
		return nil, err
	}

	token := correlation.Encode(userID, offer.Plan)
	intent, err := s.provider.CreatePreference(ctx, domain.PaymentIntentRequest{
		ItemID:           string(offer.Plan),
		Title:            offer.Title(),
		Quantity:         1,
		UnitPrice:        offer.Price,
		Currency:         domain.Currency,
		CorrelationToken: token,
		NotificationURL:  s.notificationURL,
		Metadata: map[string]string{
			"user_id":           userID.String(),
			"plan":              string(offer.Plan),
			"correlation_token": token,
		},
	})
	if err != nil {
		s.log.Errorw("Failed to create payment preference", "error", err, "userID", userID, "plan", offer.Plan)
		s.metrics.IncCheckout(string(offer.Plan), "provider_error")
		return nil, fmt.Errorf("%w: %w", domain.ErrIssuanceFailed, err)
	}

	sub := domain.NewPendingSubscription(userID, offer.Plan, intent.ID, s.now())
	if err := s.repo.Insert(ctx, sub); err != nil {
		// the intent stays orphaned at the provider; a later payment for it is
		// still correlated through the token
		s.log.Errorw("Failed to store pending subscription", "error", err, "userID", userID, "preferenceID", intent.ID)
		s.metrics.IncCheckout(string(offer.Plan), "store_error")
		return nil, fmt.Errorf("%w: %w", domain.ErrIssuanceFailed, persistenceError("insert pending subscription", err))
	}

	publishEvent(ctx, s.events, s.log, domain.NewSubscriptionEvent(domain.EventCheckoutCreated, sub, s.now()))
	s.metrics.IncCheckout(string(offer.Plan), "created")
	s.log.Infow("Checkout created", "userID", userID, "plan", offer.Plan, "preferenceID", intent.ID, "subscriptionID", sub.ID)

	return &CheckoutResult{
		InitPoint:    intent.RedirectURL,
		PreferenceID: intent.ID,
		Subscription: sub,
	}, nil
}

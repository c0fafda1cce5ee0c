package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/pkg/logger"
	"github.com/google/uuid"
)

// PaymentProvider платежный провайдер (Mercado Pago)
type PaymentProvider interface {
	CreatePreference(ctx context.Context, req domain.PaymentIntentRequest) (*domain.PaymentIntent, error)
	GetPayment(ctx context.Context, paymentID string) (*domain.ProviderPayment, error)
	GetMerchantOrder(ctx context.Context, orderID string) (*domain.ProviderOrder, error)
}

// EventPublisher публикует события подписок
type EventPublisher interface {
	Publish(ctx context.Context, event domain.SubscriptionEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.SubscriptionEvent) error { return nil }

// NopPublisher is used when Kafka is disabled.
func NopPublisher() EventPublisher { return nopPublisher{} }

// publishEvent is best effort: a failed publish never fails the operation.
func publishEvent(ctx context.Context, pub EventPublisher, log *logger.Logger, event domain.SubscriptionEvent) {
	if err := pub.Publish(ctx, event); err != nil {
		log.Warnw("Failed to publish subscription event",
			"error", err, "type", event.Type, "subscriptionID", event.SubscriptionID)
	}
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}

// parseUserID validates the raw user id the same way for every operation.
func parseUserID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, domain.NewValidationError(domain.CodeMissingField, "user_id", "user_id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(domain.CodeInvalidIdentifier, "user_id", "user_id must be a UUID")
	}
	return id, nil
}

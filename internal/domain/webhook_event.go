package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationTopic тип уведомления от провайдера
type NotificationTopic string

const (
	NotificationTopicPayment       NotificationTopic = "payment"
	NotificationTopicMerchantOrder NotificationTopic = "merchant_order"
	NotificationTopicUnknown       NotificationTopic = ""
)

// Notification is the transport-normalized inbound event. Only the topic and
// the resource identifier are kept: nothing else in the body is trusted.
type Notification struct {
	Topic      NotificationTopic
	ResourceID string
	Action     string
	ReceivedAt time.Time
}

// ReconcileOutcome terminal state of processing one notification.
type ReconcileOutcome string

const (
	OutcomeActivated ReconcileOutcome = "activated"
	OutcomeDuplicate ReconcileOutcome = "duplicate"
	OutcomeIgnored   ReconcileOutcome = "ignored"
	OutcomeDeferred  ReconcileOutcome = "deferred"
)

// ReconcileResult описывает результат обработки одного платежа
type ReconcileResult struct {
	Outcome        ReconcileOutcome
	PaymentID      string
	SubscriptionID uuid.UUID
	Reason         string
}

// SubscriptionEventType тип события подписки для шины событий
type SubscriptionEventType string

const (
	EventCheckoutCreated       SubscriptionEventType = "subscription.checkout_created"
	EventSubscriptionActivated SubscriptionEventType = "subscription.activated"
	EventSubscriptionCanceled  SubscriptionEventType = "subscription.canceled"
)

// SubscriptionEvent представляет событие подписки для публикации
type SubscriptionEvent struct {
	Type           SubscriptionEventType `json:"type"`
	SubscriptionID uuid.UUID             `json:"subscription_id"`
	UserID         uuid.UUID             `json:"user_id"`
	Plan           Plan                  `json:"plan"`
	Status         SubscriptionStatus    `json:"status"`
	PaymentID      string                `json:"payment_id,omitempty"`
	ExpiresAt      *time.Time            `json:"expires_at,omitempty"`
	Timestamp      time.Time             `json:"timestamp"`
}

// NewSubscriptionEvent snapshots a record into an event.
func NewSubscriptionEvent(t SubscriptionEventType, sub *Subscription, now time.Time) SubscriptionEvent {
	ev := SubscriptionEvent{
		Type:           t,
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		Plan:           sub.Plan,
		Status:         sub.Status,
		ExpiresAt:      sub.ExpiresAt,
		Timestamp:      now,
	}
	if sub.ExternalPaymentID != nil {
		ev.PaymentID = *sub.ExternalPaymentID
	}
	return ev
}

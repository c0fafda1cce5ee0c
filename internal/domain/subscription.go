package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus статус записи подписки
type SubscriptionStatus string

const (
	SubscriptionStatusPending  SubscriptionStatus = "pending"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	// SubscriptionStatusInactive marks a record superseded by a newer activation.
	SubscriptionStatusInactive SubscriptionStatus = "inactive"

	// SubscriptionStatusNone is only ever reported by the status projection
	// for users without any record; it is never stored.
	SubscriptionStatusNone SubscriptionStatus = "none"
)

// GrantPeriod is the fixed length of an activated grant.
const GrantPeriod = 30 * 24 * time.Hour

// Subscription is one checkout attempt of a user. A user accumulates one
// record per checkout; the most recently created one is authoritative.
type Subscription struct {
	ID                uuid.UUID          `db:"id" json:"id"`
	UserID            uuid.UUID          `db:"user_id" json:"user_id"`
	Plan              Plan               `db:"plan" json:"plan"`
	Status            SubscriptionStatus `db:"status" json:"status"`
	ExternalIntentID  string             `db:"external_intent_id" json:"external_intent_id"`
	ExternalPaymentID *string            `db:"external_payment_id" json:"external_payment_id,omitempty"`
	StartedAt         *time.Time         `db:"started_at" json:"started_at,omitempty"`
	ExpiresAt         *time.Time         `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt         time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `db:"updated_at" json:"updated_at"`
}

// NewPendingSubscription builds the record persisted right after the
// provider accepted a checkout intent.
func NewPendingSubscription(userID uuid.UUID, plan Plan, intentID string, now time.Time) *Subscription {
	return &Subscription{
		ID:               uuid.New(),
		UserID:           userID,
		Plan:             plan,
		Status:           SubscriptionStatusPending,
		ExternalIntentID: intentID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// ActivatedWith reports whether the record was activated by the given payment.
func (s *Subscription) ActivatedWith(paymentID string) bool {
	return s.ExternalPaymentID != nil && *s.ExternalPaymentID == paymentID
}

// Activation carries the fields written when a pending record becomes active.
type Activation struct {
	SubscriptionID uuid.UUID
	UserID         uuid.UUID
	PaymentID      string
	StartedAt      time.Time
	ExpiresAt      time.Time
}

// NewActivation computes the grant window starting at now.
func NewActivation(sub *Subscription, paymentID string, now time.Time) Activation {
	return Activation{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		PaymentID:      paymentID,
		StartedAt:      now,
		ExpiresAt:      now.Add(GrantPeriod),
	}
}

// Apply copies the activation onto an in-memory record.
func (a Activation) Apply(sub *Subscription) {
	paymentID := a.PaymentID
	started, expires := a.StartedAt, a.ExpiresAt
	sub.Status = SubscriptionStatusActive
	sub.ExternalPaymentID = &paymentID
	sub.StartedAt = &started
	sub.ExpiresAt = &expires
	sub.UpdatedAt = a.StartedAt
}

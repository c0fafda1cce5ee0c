package repository

import (
	"context"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/google/uuid"
)

// SubscriptionRepository определяет методы для работы с хранилищем подписок.
// Lookups return ErrNotFound when nothing matches.
type SubscriptionRepository interface {
	// Insert сохраняет новую запись.
	Insert(ctx context.Context, sub *domain.Subscription) error

	// FindLatestByUser returns the most recently created record of a user.
	FindLatestByUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error)

	// FindByIntentID returns the newest record issued for a provider intent.
	FindByIntentID(ctx context.Context, intentID string) (*domain.Subscription, error)

	// FindByPaymentID returns the record a payment already activated.
	FindByPaymentID(ctx context.Context, paymentID string) (*domain.Subscription, error)

	// FindLatestPending returns the newest pending record of a user for a plan.
	FindLatestPending(ctx context.Context, userID uuid.UUID, plan domain.Plan) (*domain.Subscription, error)

	// Activate moves a pending record to active and supersedes the user's
	// other active records. It reports false without writing anything when
	// the record is no longer pending. A payment already bound to another
	// record yields ErrDuplicate.
	Activate(ctx context.Context, a domain.Activation) (bool, error)

	// InsertActivated stores an already active record, superseding the
	// user's other active records. ErrDuplicate when the payment is taken.
	InsertActivated(ctx context.Context, sub *domain.Subscription) error

	// UpdateStatus persists sub.Status for an existing record.
	UpdateStatus(ctx context.Context, sub *domain.Subscription) error
}

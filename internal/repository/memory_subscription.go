package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/google/uuid"
)

// InMemorySubscriptionRepository хранит подписки в памяти процесса.
// Used for local runs without PostgreSQL and in tests.
type InMemorySubscriptionRepository struct {
	mu   sync.RWMutex
	subs []*domain.Subscription
}

// NewInMemorySubscriptionRepository создает пустое хранилище.
func NewInMemorySubscriptionRepository() *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{}
}

func (r *InMemorySubscriptionRepository) Insert(_ context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(sub)
}

func (r *InMemorySubscriptionRepository) insertLocked(sub *domain.Subscription) error {
	for _, s := range r.subs {
		if s.ID == sub.ID {
			return ErrDuplicate
		}
		if sub.ExternalPaymentID != nil && s.ExternalPaymentID != nil && *s.ExternalPaymentID == *sub.ExternalPaymentID {
			return ErrDuplicate
		}
	}
	r.subs = append(r.subs, clone(sub))
	return nil
}

func (r *InMemorySubscriptionRepository) FindLatestByUser(_ context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	return r.latest(func(s *domain.Subscription) bool { return s.UserID == userID })
}

func (r *InMemorySubscriptionRepository) FindByIntentID(_ context.Context, intentID string) (*domain.Subscription, error) {
	return r.latest(func(s *domain.Subscription) bool { return s.ExternalIntentID == intentID })
}

func (r *InMemorySubscriptionRepository) FindByPaymentID(_ context.Context, paymentID string) (*domain.Subscription, error) {
	return r.latest(func(s *domain.Subscription) bool { return s.ActivatedWith(paymentID) })
}

func (r *InMemorySubscriptionRepository) FindLatestPending(_ context.Context, userID uuid.UUID, plan domain.Plan) (*domain.Subscription, error) {
	return r.latest(func(s *domain.Subscription) bool {
		return s.UserID == userID && s.Plan == plan && s.Status == domain.SubscriptionStatusPending
	})
}

func (r *InMemorySubscriptionRepository) Activate(_ context.Context, a domain.Activation) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var target *domain.Subscription
	for _, s := range r.subs {
		if s.ActivatedWith(a.PaymentID) && s.ID != a.SubscriptionID {
			return false, ErrDuplicate
		}
		if s.ID == a.SubscriptionID {
			target = s
		}
	}
	if target == nil || target.Status != domain.SubscriptionStatusPending {
		return false, nil
	}

	a.Apply(target)
	r.supersedeLocked(a.UserID, a.SubscriptionID, a.StartedAt)
	return true, nil
}

func (r *InMemorySubscriptionRepository) InsertActivated(_ context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.insertLocked(sub); err != nil {
		return err
	}
	r.supersedeLocked(sub.UserID, sub.ID, sub.UpdatedAt)
	return nil
}

func (r *InMemorySubscriptionRepository) UpdateStatus(_ context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.subs {
		if s.ID == sub.ID {
			sub.UpdatedAt = time.Now().UTC()
			s.Status = sub.Status
			s.UpdatedAt = sub.UpdatedAt
			return nil
		}
	}
	return ErrNotFound
}

func (r *InMemorySubscriptionRepository) supersedeLocked(userID, keepID uuid.UUID, at time.Time) {
	for _, s := range r.subs {
		if s.UserID == userID && s.ID != keepID && s.Status == domain.SubscriptionStatusActive {
			s.Status = domain.SubscriptionStatusInactive
			s.UpdatedAt = at
		}
	}
}

// latest returns a copy of the newest matching record; ties on created_at
// go to the record inserted last.
func (r *InMemorySubscriptionRepository) latest(match func(*domain.Subscription) bool) (*domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *domain.Subscription
	for _, s := range r.subs {
		if !match(s) {
			continue
		}
		if found == nil || !s.CreatedAt.Before(found.CreatedAt) {
			found = s
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return clone(found), nil
}

func clone(sub *domain.Subscription) *domain.Subscription {
	c := *sub
	if sub.ExternalPaymentID != nil {
		id := *sub.ExternalPaymentID
		c.ExternalPaymentID = &id
	}
	if sub.StartedAt != nil {
		t := *sub.StartedAt
		c.StartedAt = &t
	}
	if sub.ExpiresAt != nil {
		t := *sub.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

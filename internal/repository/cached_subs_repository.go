package repository

import (
	"context"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/pkg/logger"
	"github.com/google/uuid"
)

// SubscriptionCache хранит последнюю запись пользователя.
// GetLatest returns (nil, nil) on a miss.
type SubscriptionCache interface {
	GetLatest(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error)
	SetLatest(ctx context.Context, sub *domain.Subscription) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// CachedSubscriptionRepository реализует SubscriptionRepository с кешированием
// последней записи пользователя. Cache failures never fail a call.
type CachedSubscriptionRepository struct {
	repo  SubscriptionRepository
	cache SubscriptionCache
	log   *logger.Logger
}

// NewCachedSubscriptionRepository создает новый репозиторий с кешированием
func NewCachedSubscriptionRepository(repo SubscriptionRepository, cache SubscriptionCache, log *logger.Logger) SubscriptionRepository {
	return &CachedSubscriptionRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

func (r *CachedSubscriptionRepository) Insert(ctx context.Context, sub *domain.Subscription) error {
	if err := r.repo.Insert(ctx, sub); err != nil {
		return err
	}
	r.invalidate(ctx, sub.UserID)
	return nil
}

// FindLatestByUser получает запись сначала из кеша, потом из БД
func (r *CachedSubscriptionRepository) FindLatestByUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	cached, err := r.cache.GetLatest(ctx, userID)
	if err != nil {
		r.log.Warnw("Error getting subscription from cache", "error", err, "userID", userID)
	}
	if cached != nil {
		r.log.Debugw("Subscription found in cache", "userID", userID)
		return cached, nil
	}

	sub, err := r.repo.FindLatestByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.SetLatest(ctx, sub); err != nil {
		r.log.Warnw("Failed to cache subscription after fetching", "error", err, "userID", userID)
	}
	return sub, nil
}

func (r *CachedSubscriptionRepository) FindByIntentID(ctx context.Context, intentID string) (*domain.Subscription, error) {
	return r.repo.FindByIntentID(ctx, intentID)
}

func (r *CachedSubscriptionRepository) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Subscription, error) {
	return r.repo.FindByPaymentID(ctx, paymentID)
}

func (r *CachedSubscriptionRepository) FindLatestPending(ctx context.Context, userID uuid.UUID, plan domain.Plan) (*domain.Subscription, error) {
	return r.repo.FindLatestPending(ctx, userID, plan)
}

func (r *CachedSubscriptionRepository) Activate(ctx context.Context, a domain.Activation) (bool, error) {
	changed, err := r.repo.Activate(ctx, a)
	if err != nil {
		return false, err
	}
	if changed {
		r.invalidate(ctx, a.UserID)
	}
	return changed, nil
}

func (r *CachedSubscriptionRepository) InsertActivated(ctx context.Context, sub *domain.Subscription) error {
	if err := r.repo.InsertActivated(ctx, sub); err != nil {
		return err
	}
	r.invalidate(ctx, sub.UserID)
	return nil
}

func (r *CachedSubscriptionRepository) UpdateStatus(ctx context.Context, sub *domain.Subscription) error {
	if err := r.repo.UpdateStatus(ctx, sub); err != nil {
		return err
	}
	r.invalidate(ctx, sub.UserID)
	return nil
}

func (r *CachedSubscriptionRepository) invalidate(ctx context.Context, userID uuid.UUID) {
	if err := r.cache.Invalidate(ctx, userID); err != nil {
		r.log.Warnw("Failed to invalidate cached subscription", "error", err, "userID", userID)
	}
}

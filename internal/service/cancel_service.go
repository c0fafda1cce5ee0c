package service

import (
	"context"
	"errors"
	"time"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/internal/repository"
	"github.com/Dhoini/subscription-service/pkg/logger"
)

// CancelResult ответ на отмену подписки
type CancelResult struct {
	Canceled  bool        `json:"canceled"`
	Plan      domain.Plan `json:"plan"`
	ExpiresAt *time.Time  `json:"expires_at"`
}

// CancelService отменяет подписку пользователя
type CancelService interface {
	Cancel(ctx context.Context, userID string) (*CancelResult, error)
}

type cancelService struct {
	repo   repository.SubscriptionRepository
	events EventPublisher
	log    *logger.Logger
	now    func() time.Time
}

// NewCancelService создает сервис отмены
func NewCancelService(repo repository.SubscriptionRepository, events EventPublisher, log *logger.Logger) CancelService {
	return &cancelService{
		repo:   repo,
		events: events,
		log:    log.Named("cancel"),
		now:    utcNow,
	}
}

// Cancel marks the user's latest record canceled. Older records and the
// expiry date are left as they are.
func (s *cancelService) Cancel(ctx context.Context, rawUserID string) (*CancelResult, error) {
	userID, err := parseUserID(rawUserID)
	if err != nil {
		return nil, err
	}

	sub, err := s.repo.FindLatestByUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NewNotFoundError("subscription", userID.String())
	}
	if err != nil {
		s.log.Errorw("Failed to read latest subscription", "userID", userID, "error", err)
		return nil, persistenceError("read latest subscription", err)
	}

	sub.Status = domain.SubscriptionStatusCanceled
	if err := s.repo.UpdateStatus(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewNotFoundError("subscription", sub.ID.String())
		}
		s.log.Errorw("Failed to cancel subscription", "subscriptionID", sub.ID, "error", err)
		return nil, persistenceError("cancel subscription", err)
	}

	publishEvent(ctx, s.events, s.log, domain.NewSubscriptionEvent(domain.EventSubscriptionCanceled, sub, s.now()))
	s.log.Infow("Subscription canceled", "subscriptionID", sub.ID, "userID", userID, "plan", sub.Plan)

	return &CancelResult{Canceled: true, Plan: sub.Plan, ExpiresAt: sub.ExpiresAt}, nil
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/internal/repository"
	"github.com/Dhoini/subscription-service/pkg/logger"
)

// StatusService отдает текущий статус подписки пользователя
type StatusService interface {
	GetStatus(ctx context.Context, userID string) (domain.StatusView, error)
}

type statusService struct {
	repo   repository.SubscriptionRepository
	policy domain.CancellationPolicy
	log    *logger.Logger
	now    func() time.Time
}

// NewStatusService создает сервис статуса
func NewStatusService(repo repository.SubscriptionRepository, policy domain.CancellationPolicy, log *logger.Logger) StatusService {
	return &statusService{
		repo:   repo,
		policy: policy,
		log:    log.Named("status"),
		now:    utcNow,
	}
}

// GetStatus projects the user's latest record at the current instant.
func (s *statusService) GetStatus(ctx context.Context, rawUserID string) (domain.StatusView, error) {
	userID, err := parseUserID(rawUserID)
	if err != nil {
		return domain.StatusView{}, err
	}

	sub, err := s.repo.FindLatestByUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.FreeStatus(), nil
	}
	if err != nil {
		s.log.Errorw("Failed to read latest subscription", "userID", userID, "error", err)
		return domain.StatusView{}, persistenceError("read latest subscription", err)
	}

	return domain.Project(sub, s.now(), s.policy), nil
}

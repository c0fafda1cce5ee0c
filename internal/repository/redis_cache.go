package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// Префикс ключа последней записи пользователя
	latestSubscriptionKeyPrefix = "subscription:latest:"

	// TTL для кэша
	defaultCacheTTL = time.Minute
)

// RedisCacheRepository кеширует последнюю запись пользователя в Redis
type RedisCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCacheRepository создает новый экземпляр Redis кеша и проверяет соединение
func NewRedisCacheRepository(ctx context.Context, opts *redis.Options, ttl time.Duration, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		log.Errorw("Failed to connect to Redis", "error", err, "addr", opts.Addr)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	log.Infow("Connected to Redis successfully", "addr", opts.Addr, "ttl", ttl)
	return &RedisCacheRepository{client: client, ttl: ttl, log: log}, nil
}

// Close закрывает соединение с Redis
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// Ping проверяет доступность Redis
func (r *RedisCacheRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func latestKey(userID uuid.UUID) string {
	return latestSubscriptionKeyPrefix + userID.String()
}

// GetLatest returns nil without error on a cache miss.
func (r *RedisCacheRepository) GetLatest(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	data, err := r.client.Get(ctx, latestKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription from cache: %w", err)
	}

	var sub domain.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached subscription: %w", err)
	}
	return &sub, nil
}

func (r *RedisCacheRepository) SetLatest(ctx context.Context, sub *domain.Subscription) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}
	if err := r.client.Set(ctx, latestKey(sub.UserID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache subscription: %w", err)
	}
	return nil
}

func (r *RedisCacheRepository) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if err := r.client.Del(ctx, latestKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached subscription: %w", err)
	}
	return nil
}

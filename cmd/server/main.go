package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Dhoini/subscription-service/config"
	"github.com/Dhoini/subscription-service/internal/api/rest"
	"github.com/Dhoini/subscription-service/internal/api/rest/handlers"
	"github.com/Dhoini/subscription-service/internal/api/rest/middleware"
	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/internal/integration/mercadopago"
	"github.com/Dhoini/subscription-service/internal/kafka"
	"github.com/Dhoini/subscription-service/internal/kafka/producer"
	"github.com/Dhoini/subscription-service/internal/metrics"
	"github.com/Dhoini/subscription-service/internal/repository"
	"github.com/Dhoini/subscription-service/internal/repository/postgres"
	"github.com/Dhoini/subscription-service/internal/service"
	"github.com/Dhoini/subscription-service/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig(".env", ".")
	if err != nil {
		panic(err)
	}

	log, err := logger.New(logger.ParseLevel(cfg.Log.Level), !cfg.IsProduction())
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	log.Infow("Subscription service starting up...", "env", cfg.App.Env, "storage", cfg.Storage.Driver)
	if cfg.MercadoPago.AccessToken == "" {
		log.Warnw("Mercado Pago access token is not set, checkouts will fail")
	}
	if cfg.MercadoPago.NotificationURL == "" {
		log.Warnw("Notification URL is not set, the provider will not deliver webhooks")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализация Prometheus
	registry := metrics.NewRegistry()
	subscriptionMetrics := metrics.NewSubscriptionMetrics(registry, log)

	checks := map[string]handlers.HealthCheck{}

	// Хранилище подписок
	var repo repository.SubscriptionRepository
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		log.Warnw("Using in-memory subscription store, data is lost on restart")
		repo = repository.NewInMemorySubscriptionRepository()
	default:
		poolCfg := postgres.DefaultPoolConfig()
		poolCfg.MaxConns = cfg.Database.MaxConns
		poolCfg.MinConns = cfg.Database.MinConns
		poolCfg.ConnectTimeout = cfg.Database.ConnectTimeout

		pool, err := postgres.NewConnection(ctx, cfg.Database.DSN, poolCfg, log)
		if err != nil {
			log.Fatalw("Failed to connect to database", "error", err)
		}
		defer pool.Close()

		db := postgres.NewSQLX(pool)
		defer func() { _ = db.Close() }()

		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db.DB, log); err != nil {
				log.Fatalw("Failed to apply migrations", "error", err)
			}
		}

		repo = repository.NewPostgresSubscriptionRepository(db, log)
		checks["postgres"] = pool.Ping
	}

	// Redis кеш статусов (не обязателен)
	if cfg.Redis.Enabled {
		cache, err := repository.NewRedisCacheRepository(ctx, &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.TTL, log)
		if err != nil {
			log.Warnw("Failed to initialize Redis cache, continuing without caching", "error", err)
		} else {
			defer func() {
				if err := cache.Close(); err != nil {
					log.Errorw("Error closing Redis connection", "error", err)
				}
			}()
			repo = repository.NewCachedSubscriptionRepository(repo, cache, log)
			checks["redis"] = cache.Ping
			log.Infow("Using cached subscription repository")
		}
	}

	// Kafka продюсер событий (не обязателен)
	events := service.NopPublisher()
	if cfg.Kafka.Enabled {
		kafkaCfg := kafka.NewConfig(cfg.Kafka.Brokers)
		if cfg.Kafka.EnsureTopics {
			if err := kafka.EnsureKafkaTopics(ctx, kafkaCfg, log); err != nil {
				log.Warnw("Failed to ensure Kafka topics", "error", err)
			}
		}

		syncProducer, err := producer.NewSyncProducer(kafkaCfg.Brokers, kafka.NewSaramaConfig(kafkaCfg))
		if err != nil {
			log.Errorw("Failed to initialize Kafka producer, continuing without event publishing", "error", err)
		} else {
			subscriptionProducer := producer.NewSubscriptionProducer(syncProducer, log)
			defer func() {
				if err := subscriptionProducer.Close(); err != nil {
					log.Errorw("Error closing Kafka producer", "error", err)
				}
			}()
			events = subscriptionProducer
			log.Infow("Kafka producer initialized", "brokers", kafkaCfg.Brokers)
		}
	}

	provider := mercadopago.NewClient(mercadopago.Config{
		AccessToken: cfg.MercadoPago.AccessToken,
		BaseURL:     cfg.MercadoPago.BaseURL,
		BackURLs: mercadopago.BackURLs{
			Success: cfg.MercadoPago.SuccessURL,
			Failure: cfg.MercadoPago.FailureURL,
			Pending: cfg.MercadoPago.PendingURL,
		},
		UseSandbox: cfg.MercadoPago.Sandbox,
		Timeout:    cfg.MercadoPago.Timeout,
	}, subscriptionMetrics, log)

	policy, err := domain.ParseCancellationPolicy(cfg.Subscription.CancellationPolicy)
	if err != nil {
		log.Fatalw("Invalid cancellation policy", "error", err)
	}

	// Инициализация сервисов
	checkoutService := service.NewCheckoutService(repo, provider, events, subscriptionMetrics, cfg.MercadoPago.NotificationURL, log)
	statusService := service.NewStatusService(repo, policy, log)
	cancelService := service.NewCancelService(repo, events, log)
	reconciler := service.NewReconciler(repo, provider, events, subscriptionMetrics, log)

	var auth *middleware.JWTMiddleware
	if cfg.Auth.JWTSecret != "" {
		auth = middleware.NewJWTMiddleware(log, &middleware.DefaultTokenValidator{Secret: []byte(cfg.Auth.JWTSecret)})
	} else {
		log.Warnw("JWT secret is not set, user endpoints are not authenticated")
	}

	router := rest.SetupRouter(log, registry, rest.Handlers{
		Subscription: handlers.NewSubscriptionHandler(checkoutService, statusService, cancelService, log),
		Webhook:      handlers.NewWebhookHandler(reconciler, log),
		Health:       handlers.NewHealthHandler(checks),
	}, auth)

	server := rest.NewServer(router, cfg.App, log)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Infow("Received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			log.Errorw("HTTP server stopped unexpectedly", "error", err)
		}
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Errorw("Server forced to shutdown", "error", err)
	}

	log.Infow("Server stopped gracefully")
}

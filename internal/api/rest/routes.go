package rest

import (
	"github.com/Dhoini/subscription-service/internal/api/rest/handlers"
	"github.com/Dhoini/subscription-service/internal/api/rest/middleware"
	"github.com/Dhoini/subscription-service/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers набор обработчиков, собранных в main
type Handlers struct {
	Subscription *handlers.SubscriptionHandler
	Webhook      *handlers.WebhookHandler
	Health       *handlers.HealthHandler
}

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware.
// auth may be nil, in which case the user endpoints are open.
func SetupRouter(log *logger.Logger, registry *prometheus.Registry, h Handlers, auth *middleware.JWTMiddleware) *gin.Engine {
	r := gin.New()

	// Подключение middleware
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(gin.Recovery())

	// Endpoint для проверки работоспособности сервиса
	r.GET("/health", h.Health.Health)

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	user := r.Group("/")
	if auth != nil {
		user.Use(auth.RequireAuth())
	}
	{
		user.POST("/create-checkout", h.Subscription.CreateCheckout)
		user.GET("/subscription-status", h.Subscription.GetStatus)
		user.POST("/cancel-subscription", h.Subscription.CancelSubscription)
	}

	// Вебхуки провайдера не аутентифицируются: payload is re-fetched from the provider
	r.POST("/webhook/mercadopago", h.Webhook.HandleMercadoPago)

	return r
}

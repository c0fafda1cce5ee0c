package metrics

import (
	"time"

	"github.com/Dhoini/subscription-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "subscription"

// SubscriptionMetrics интерфейс для метрик подписок
type SubscriptionMetrics interface {
	IncCheckout(plan, result string)
	IncWebhookNotification(outcome string)
	IncActivation(plan string)
	ObserveProviderRequest(operation, outcome string, d time.Duration)
}

type subscriptionMetrics struct {
	log             *logger.Logger
	checkouts       *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	activations     *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
}

// NewSubscriptionMetrics создает новые метрики подписок
func NewSubscriptionMetrics(registry *prometheus.Registry, log *logger.Logger) SubscriptionMetrics {
	checkouts := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "The total number of checkout requests by plan and result",
		},
		[]string{"plan", "result"},
	)

	notifications := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_notifications_total",
			Help:      "Provider notifications by reconciliation outcome",
		},
		[]string{"outcome"},
	)

	activations := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activations_total",
			Help:      "Records moved to active",
		},
		[]string{"plan"},
	)

	providerLatency := promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Latency of payment provider calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	return &subscriptionMetrics{
		log:             log,
		checkouts:       checkouts,
		notifications:   notifications,
		activations:     activations,
		providerLatency: providerLatency,
	}
}

// IncCheckout увеличивает счетчик попыток оформления
func (m *subscriptionMetrics) IncCheckout(plan, result string) {
	m.checkouts.WithLabelValues(plan, result).Inc()
}

// IncWebhookNotification учитывает результат обработки уведомления
func (m *subscriptionMetrics) IncWebhookNotification(outcome string) {
	m.notifications.WithLabelValues(outcome).Inc()
}

// IncActivation увеличивает счетчик активаций
func (m *subscriptionMetrics) IncActivation(plan string) {
	m.activations.WithLabelValues(plan).Inc()
}

// ObserveProviderRequest записывает длительность запроса к провайдеру
func (m *subscriptionMetrics) ObserveProviderRequest(operation, outcome string, d time.Duration) {
	m.providerLatency.WithLabelValues(operation, outcome).Observe(d.Seconds())
}

type nopMetrics struct{}

// NewNop returns metrics that record nothing.
func NewNop() SubscriptionMetrics { return nopMetrics{} }

func (nopMetrics) IncCheckout(string, string) {}
func (nopMetrics) IncWebhookNotification(string) {}
func (nopMetrics) IncActivation(string) {}
func (nopMetrics) ObserveProviderRequest(string, string, time.Duration) {}

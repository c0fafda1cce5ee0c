package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/internal/service"
	"github.com/Dhoini/subscription-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

const maxWebhookBytes = 1 << 20

// webhookPayload covers both the webhook and the legacy IPN body shapes.
type webhookPayload struct {
	Type     string `json:"type"`
	Topic    string `json:"topic"`
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Data     struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// WebhookHandler обработчик для вебхуков
type WebhookHandler struct {
	reconciler service.Reconciler
	log        *logger.Logger
}

// NewWebhookHandler создает новый обработчик вебхуков
func NewWebhookHandler(reconciler service.Reconciler, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		log:        log,
	}
}

// HandleMercadoPago принимает уведомление провайдера. The provider retries
// anything that is not a 2xx, so every readable notification is acknowledged
// whatever the reconciliation outcome.
func (h *WebhookHandler) HandleMercadoPago(c *gin.Context) {
	bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		h.log.Errorw("Failed to read webhook body", "error", err)
		c.String(http.StatusBadRequest, "unreadable body")
		return
	}

	n := parseNotification(bodyBytes, c.Request.URL.Query().Get, h.log)
	n.ReceivedAt = time.Now().UTC()

	h.reconciler.HandleNotification(c.Request.Context(), n)
	c.String(http.StatusOK, "ok")
}

// parseNotification keeps only the topic and the resource id; body fields win
// over query parameters.
func parseNotification(body []byte, query func(string) string, log *logger.Logger) domain.Notification {
	var p webhookPayload
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 {
		if err := json.Unmarshal(trimmed, &p); err != nil {
			log.Warnw("Webhook body is not valid JSON, falling back to query parameters", "error", err)
			p = webhookPayload{}
		}
	}

	topic := firstNonEmpty(p.Type, p.Topic, query("type"), query("topic"))
	id := firstNonEmpty(rawID(p.Data.ID), query("data.id"), query("id"), lastSegment(p.Resource))

	return domain.Notification{
		Topic:      normalizeTopic(topic),
		ResourceID: id,
		Action:     p.Action,
	}
}

func normalizeTopic(topic string) domain.NotificationTopic {
	switch t := strings.ToLower(strings.TrimSpace(topic)); t {
	case string(domain.NotificationTopicPayment):
		return domain.NotificationTopicPayment
	case string(domain.NotificationTopicMerchantOrder):
		return domain.NotificationTopicMerchantOrder
	default:
		return domain.NotificationTopic(t)
	}
}

// rawID accepts both "123" and 123.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// lastSegment extracts the id from a resource URL such as
// https://api.mercadolibre.com/merchant_orders/456.
func lastSegment(resource string) string {
	resource = strings.TrimRight(strings.TrimSpace(resource), "/")
	if i := strings.LastIndex(resource, "/"); i >= 0 {
		return resource[i+1:]
	}
	return resource
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

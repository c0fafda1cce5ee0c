package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck is a dependency probe, e.g. a database ping.
type HealthCheck func(ctx context.Context) error

// HealthHandler обработчик для проверки работоспособности сервиса
type HealthHandler struct {
	checks map[string]HealthCheck
}

// NewHealthHandler создает обработчик с набором проверок зависимостей
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health отвечает 200, если все зависимости доступны, иначе 503
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "OK"
	}

	overall := "OK"
	if status != http.StatusOK {
		overall = "DEGRADED"
	}
	c.JSON(status, gin.H{
		"status":       overall,
		"time":         time.Now().Format(time.RFC3339),
		"dependencies": deps,
	})
}

package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/Dhoini/subscription-service/internal/api/rest/middleware"
	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/internal/service"
	"github.com/Dhoini/subscription-service/pkg/logger"
	"github.com/Dhoini/subscription-service/pkg/req"
	"github.com/Dhoini/subscription-service/pkg/res"
	"github.com/gin-gonic/gin"
)

const maxBodyBytes = 64 << 10

// CreateCheckoutRequest тело запроса на оформление подписки
type CreateCheckoutRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Plan   string `json:"plan" validate:"required"`
}

// CancelRequest тело запроса на отмену подписки
type CancelRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

// SubscriptionHandler обработчик для подписок
type SubscriptionHandler struct {
	checkout service.CheckoutService
	status   service.StatusService
	cancel   service.CancelService
	log      *logger.Logger
}

// NewSubscriptionHandler создает новый обработчик подписок
func NewSubscriptionHandler(
	checkout service.CheckoutService,
	status service.StatusService,
	cancel service.CancelService,
	log *logger.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		checkout: checkout,
		status:   status,
		cancel:   cancel,
		log:      log,
	}
}

// decodeBody reads and validates a JSON body. An empty body decodes to the
// zero value so missing fields are reported as such.
func decodeBody[T any](c *gin.Context) (T, *domain.ValidationError) {
	payload, err := req.Decode[T](io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil && !errors.Is(err, io.EOF) {
		return payload, domain.NewValidationError(codeInvalidBody, "", "request body must be a JSON object")
	}
	if err := req.IsValid(payload); err != nil {
		return payload, validationFailure(err)
	}
	return payload, nil
}

// CreateCheckout создает платежное намерение и ожидающую запись
func (h *SubscriptionHandler) CreateCheckout(c *gin.Context) {
	body, verr := decodeBody[CreateCheckoutRequest](c)
	if verr != nil {
		writeError(c, h.log, verr)
		return
	}
	if !middleware.AuthorizedFor(c, body.UserID) {
		res.JsonError(c.Writer, http.StatusForbidden, codeForbidden, "token subject does not match user_id")
		return
	}

	result, err := h.checkout.CreateCheckout(c.Request.Context(), body.UserID, body.Plan)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, result, http.StatusOK)
}

// GetStatus возвращает эффективный статус подписки пользователя
func (h *SubscriptionHandler) GetStatus(c *gin.Context) {
	userID := c.Query("user_id")
	if userID != "" && !middleware.AuthorizedFor(c, userID) {
		res.JsonError(c.Writer, http.StatusForbidden, codeForbidden, "token subject does not match user_id")
		return
	}

	view, err := h.status.GetStatus(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, view, http.StatusOK)
}

// CancelSubscription отменяет последнюю запись пользователя
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	body, verr := decodeBody[CancelRequest](c)
	if verr != nil {
		writeError(c, h.log, verr)
		return
	}
	if !middleware.AuthorizedFor(c, body.UserID) {
		res.JsonError(c.Writer, http.StatusForbidden, codeForbidden, "token subject does not match user_id")
		return
	}

	result, err := h.cancel.Cancel(c.Request.Context(), body.UserID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	res.JsonResponse(c.Writer, result, http.StatusOK)
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/Dhoini/subscription-service/internal/domain"
	"github.com/Dhoini/subscription-service/pkg/logger"
	"github.com/Dhoini/subscription-service/pkg/req"
	"github.com/Dhoini/subscription-service/pkg/res"
	"github.com/gin-gonic/gin"
)

const (
	codeInvalidBody = "invalid_body"
	codeForbidden   = "forbidden"
	codeNotFound    = "not_found"
	codeInternal    = "internal"
)

// writeError maps a service error onto the HTTP response.
func writeError(c *gin.Context, log *logger.Logger, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		res.JsonError(c.Writer, http.StatusBadRequest, verr.Code, verr.Message)
	case errors.Is(err, domain.ErrNotFound):
		res.JsonError(c.Writer, http.StatusNotFound, codeNotFound, "subscription not found")
	default:
		_ = c.Error(err)
		log.Errorw("Request failed", "path", c.Request.URL.Path, "error", err)
		res.JsonError(c.Writer, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

// validationFailure converts a struct validation error into the public error codes.
func validationFailure(err error) *domain.ValidationError {
	v, ok := req.FirstViolation(err)
	if !ok {
		return domain.NewValidationError(codeInvalidBody, "", err.Error())
	}
	switch v.Tag {
	case "required":
		return domain.NewValidationError(domain.CodeMissingField, v.Field, v.Field+" is required")
	case "uuid":
		return domain.NewValidationError(domain.CodeInvalidIdentifier, v.Field, v.Field+" must be a UUID")
	default:
		return domain.NewValidationError(codeInvalidBody, v.Field, v.Field+" is invalid")
	}
}

package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate дубликат записи
	ErrDuplicate = errors.New("duplicate record")

	// ErrValidation groups every ValidationError for errors.Is checks.
	ErrValidation = errors.New("validation failed")

	// ErrMalformedToken the correlation token does not split into user and plan
	ErrMalformedToken = errors.New("malformed correlation token")

	// ErrIssuanceFailed checkout could not be issued (provider or store failure)
	ErrIssuanceFailed = errors.New("checkout issuance failed")

	// ErrPersistence the subscription store failed
	ErrPersistence = errors.New("persistence error")

	// ErrExternalServiceUnavailable внешний сервис недоступен
	ErrExternalServiceUnavailable = errors.New("external service unavailable")
)

// Machine-readable validation codes returned to HTTP callers.
const (
	CodeMissingField      = "missing_field"
	CodeInvalidIdentifier = "invalid_identifier"
	CodePlanUnavailable   = "plan_unavailable"
	CodeUnsupportedPlan   = "unsupported_plan"
)

// ValidationError представляет ошибку валидации
type ValidationError struct {
	Code    string
	Field   string
	Message string
}

// NewValidationError создает новую ошибку валидации
func NewValidationError(code, field, message string) *ValidationError {
	return &ValidationError{Code: code, Field: field, Message: message}
}

// Error реализует интерфейс error
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed [%s]: %s - %s", e.Code, e.Field, e.Message)
}

// Is lets errors.Is(err, ErrValidation) match any validation error.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ExternalServiceError представляет ошибку внешнего сервиса
type ExternalServiceError struct {
	Service     string
	Operation   string
	Message     string
	StatusCode  int
	OriginalErr error
}

// Error реализует интерфейс error
func (e *ExternalServiceError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("%s %s failed (status %d): %s: %v", e.Service, e.Operation, e.StatusCode, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("%s %s failed (status %d): %s", e.Service, e.Operation, e.StatusCode, e.Message)
}

// Unwrap возвращает оригинальную ошибку
func (e *ExternalServiceError) Unwrap() error {
	return e.OriginalErr
}

// Is matches ErrExternalServiceUnavailable so callers need not know the concrete type.
func (e *ExternalServiceError) Is(target error) bool {
	return target == ErrExternalServiceUnavailable
}

// NewExternalServiceError создает новую ошибку внешнего сервиса
func NewExternalServiceError(service, operation, message string, statusCode int, err error) *ExternalServiceError {
	return &ExternalServiceError{
		Service:     service,
		Operation:   operation,
		Message:     message,
		StatusCode:  statusCode,
		OriginalErr: err,
	}
}

// NotFoundError представляет ошибку "не найдено"
type NotFoundError struct {
	Entity string
	ID     string
}

// Error реализует интерфейс error
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Entity, e.ID)
}

// Is проверяет, является ли ошибка ошибкой типа "не найдено"
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError создает новую ошибку "не найдено"
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

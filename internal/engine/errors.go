package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"entity-admin/internal/metadata"
	"entity-admin/internal/store"
)

type AppError struct {
	Code    string        `json:"code"`
	Status  int           `json:"-"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

func NotFoundError(entity, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Status:  404,
		Message: fmt.Sprintf("%s with id %s not found", entity, id),
	}
}

func UnknownEntityError(name string) *AppError {
	return &AppError{
		Code:    "UNKNOWN_ENTITY",
		Status:  404,
		Message: fmt.Sprintf("Unknown entity: %s", name),
	}
}

func UnknownFieldError(entity string, fields ...string) *AppError {
	details := make([]ErrorDetail, len(fields))
	for i, f := range fields {
		details[i] = ErrorDetail{Field: f, Rule: "unknown", Message: fmt.Sprintf("%s has no field %s", entity, f)}
	}
	return &AppError{
		Code:    "UNKNOWN_FIELD",
		Status:  400,
		Message: fmt.Sprintf("Unknown field for %s", entity),
		Details: details,
	}
}

func ValidationError(details []ErrorDetail) *AppError {
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Status:  422,
		Message: "Validation failed",
		Details: details,
	}
}

func ConflictError(msg string) *AppError {
	return &AppError{Code: "CONFLICT", Status: 409, Message: msg}
}

func ConcurrencyConflictError(entity, id string) *AppError {
	return &AppError{
		Code:    "CONCURRENCY_CONFLICT",
		Status:  409,
		Message: fmt.Sprintf("%s with id %s was changed by someone else", entity, id),
	}
}

func ConfigurationError(msg string) *AppError {
	return &AppError{Code: "CONFIGURATION_ERROR", Status: 500, Message: msg}
}

func ReadOnlyError(entity string) *AppError {
	return &AppError{
		Code:    "READ_ONLY",
		Status:  403,
		Message: fmt.Sprintf("%s is read-only", entity),
	}
}

func UnauthorizedError(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Status: 401, Message: msg}
}

func ForbiddenError(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Status: 403, Message: msg}
}

func InvalidPayloadError(msg string) *AppError {
	return &AppError{Code: "INVALID_PAYLOAD", Status: 400, Message: msg}
}

// AsAppError maps err to the AppError reported to clients. Errors without
// a known meaning become a 500 INTERNAL_ERROR that hides the cause.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var cfgErr *metadata.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return ConfigurationError(cfgErr.Error())
	case errors.Is(err, store.ErrConcurrencyConflict):
		return NewAppError("CONCURRENCY_CONFLICT", 409, "The record was changed by someone else")
	case errors.Is(err, store.ErrUniqueViolation):
		msg := "A record with this value already exists"
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			msg = pgErr.Detail
		}
		return ConflictError(msg)
	case errors.Is(err, ErrAfterUpdate):
		return NewAppError("AFTER_UPDATE_FAILED", 500, "The record was saved but its after-update action failed")
	case errors.Is(err, store.ErrNotFound):
		return NewAppError("NOT_FOUND", 404, "Record not found")
	case errors.Is(err, metadata.ErrNotFound):
		return NewAppError("UNKNOWN_ENTITY", 404, "Unknown entity")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewAppError("REQUEST_CANCELLED", 499, "Request cancelled")
	}
	return NewAppError("INTERNAL_ERROR", 500, "Internal server error")
}

package httpx

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes used across the gateway. They mirror the failure classes the
// console distinguishes: missing/invalid session, insufficient role, input
// rejected by the backend, a dead magic-link token, throttled link issuance,
// and upstream fetches that failed or returned garbage.
const (
	CodeBadRequest   = "ERR_BAD_REQUEST"
	CodeValidation   = "ERR_VALIDATION"
	CodeUnauthorized = "ERR_UNAUTHORIZED"
	CodeForbidden    = "ERR_FORBIDDEN"
	CodeNotFound     = "ERR_NOT_FOUND"
	CodeTokenInvalid = "ERR_TOKEN_INVALID"
	CodeRateLimited  = "ERR_RATE_LIMITED"
	CodeUpstream     = "ERR_UPSTREAM"
	CodeInternal     = "ERR_INTERNAL"
)

// AppError represents application-level error with HTTP status.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
		Status:  status,
	}
}

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// CodeOf extracts the AppError code from err, or CodeInternal for foreign errors.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// MessageOf extracts the AppError message from err, or def for foreign errors.
func MessageOf(err error, def string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return def
}

// IsCode reports whether err carries the given AppError code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// BadRequestError creates a 400 error.
func BadRequestError(message string) *AppError {
	return NewAppError(CodeBadRequest, "", message, http.StatusBadRequest)
}

// ValidationFailedError creates a 400 error for input rejected before or by the backend.
func ValidationFailedError(message string) *AppError {
	return NewAppError(CodeValidation, "", message, http.StatusBadRequest)
}

// FieldValidationError creates a 400 error attributed to a single field.
func FieldValidationError(field, message string) *AppError {
	return NewAppError(CodeValidation, field, message, http.StatusBadRequest)
}

// UnauthorizedError creates a 401 error.
func UnauthorizedError(message string) *AppError {
	return NewAppError(CodeUnauthorized, "", message, http.StatusUnauthorized)
}

// ForbiddenError creates a 403 error.
func ForbiddenError(message string) *AppError {
	return NewAppError(CodeForbidden, "", message, http.StatusForbidden)
}

// NotFoundError creates a 404 error.
func NotFoundError(message string) *AppError {
	return NewAppError(CodeNotFound, "", message, http.StatusNotFound)
}

// TokenInvalidError creates a 401 error for a consumed/expired magic-link token.
func TokenInvalidError(message string) *AppError {
	return NewAppError(CodeTokenInvalid, "", message, http.StatusUnauthorized)
}

// RateLimitedError creates a 429 error.
func RateLimitedError(message string) *AppError {
	return NewAppError(CodeRateLimited, "", message, http.StatusTooManyRequests)
}

// UpstreamError creates a 502 error for failed or malformed backend responses.
func UpstreamError(message string) *AppError {
	return NewAppError(CodeUpstream, "", message, http.StatusBadGateway)
}

// InternalError creates a 500 error.
func InternalError(message string) *AppError {
	return NewAppError(CodeInternal, "", message, http.StatusInternalServerError)
}

// InternalErrorf creates a 500 error with formatting.
func InternalErrorf(format string, a ...interface{}) *AppError {
	return InternalError(fmt.Sprintf(format, a...))
}

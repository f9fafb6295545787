// Package apierror provides the standardized error taxonomy for the research
// platform API: a structured error type with a single HTTP-status conversion
// point, mirroring the teacher's errors package.
package apierror

import (
	"fmt"
	"net/http"
)

// AppError represents a standardized application error with HTTP context.
type AppError struct {
	// Code is a machine-readable error identifier, UPPER_SNAKE_CASE.
	Code string `json:"code"`

	// Message is a human-readable error description suitable for clients.
	Message string `json:"message"`

	// Details carries additional context, not always shown to clients.
	Details string `json:"details,omitempty"`

	// StatusCode is the HTTP status to return; not serialized.
	StatusCode int `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorResponse is the JSON body returned to clients.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Error codes, per spec.md §7.
const (
	CodeValidationError        = "VALIDATION_ERROR"
	CodeConsentRequired        = "CONSENT_REQUIRED"
	CodePaymentRequired        = "PAYMENT_REQUIRED"
	CodeNotFound               = "NOT_FOUND"
	CodeConflict               = "CONFLICT"
	CodePayloadTooLarge        = "PAYLOAD_TOO_LARGE"
	CodeUnsupportedMediaType   = "UNSUPPORTED_MEDIA_TYPE"
	CodeRateLimited            = "RATE_LIMITED"
	CodeInternal               = "INTERNAL"
	CodeServiceUnavailable     = "SERVICE_UNAVAILABLE"
)

func statusForCode(code string) int {
	switch code {
	case CodeValidationError:
		return http.StatusBadRequest
	case CodeConsentRequired:
		return http.StatusForbidden
	case CodePaymentRequired:
		return http.StatusPaymentRequired
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new AppError with the status implied by code.
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusForCode(code)}
}

// NewWithDetails creates a new AppError carrying debug details.
func NewWithDetails(code, message, details string) *AppError {
	return &AppError{Code: code, Message: message, Details: details, StatusCode: statusForCode(code)}
}

// Wrap wraps an underlying error as details on a new AppError.
func Wrap(code, message string, err error) *AppError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return NewWithDetails(code, message, details)
}

// ToResponse converts the error to its wire representation: {"error": "<message>"}
// per spec.md §6 — the code is not exposed, only the human-readable message.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message}
}

func ValidationError(message string) *AppError { return New(CodeValidationError, message) }

func ConsentRequired() *AppError {
	return New(CodeConsentRequired, "active consent is required")
}

func PaymentRequired() *AppError {
	return New(CodePaymentRequired, "a confirmed payment is required")
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func Conflict(message string) *AppError { return New(CodeConflict, message) }

func PayloadTooLarge() *AppError {
	return New(CodePayloadTooLarge, "request body exceeds the maximum allowed size")
}

func UnsupportedMediaType() *AppError {
	return New(CodeUnsupportedMediaType, "Content-Type must be application/json")
}

func RateLimited() *AppError {
	return New(CodeRateLimited, "rate limit exceeded")
}

func Internal(err error) *AppError {
	return Wrap(CodeInternal, "an unexpected error occurred", err)
}

func ServiceUnavailable(message string) *AppError {
	return New(CodeServiceUnavailable, message)
}

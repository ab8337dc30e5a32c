package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application-level error with HTTP status code
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	StatusCode int    `json:"-"`

	cause error
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches another AppError by code, so wrapped copies of the sentinels
// below compare equal with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Common error codes
const (
	ErrCodeBadRequest        = "bad_request"
	ErrCodeNotFound          = "not_found"
	ErrCodeInternalError     = "internal_error"
	ErrCodeInvalidAddress    = "invalid_address"
	ErrCodeMissingPrivateKey = "missing_private_key"
	ErrCodeHashMismatch      = "hash_mismatch"
	ErrCodeSigningFailed     = "signing_failed"
	ErrCodeNetworkFailure    = "network_failure"
	ErrCodeCancelled         = "cancelled"
	ErrCodeMissingDeviceID   = "missing_device_id"
)

// Predefined errors
var (
	ErrBadRequest = &AppError{
		Code:       ErrCodeBadRequest,
		Message:    "Invalid request parameters",
		StatusCode: http.StatusBadRequest,
	}

	ErrNotFound = &AppError{
		Code:       ErrCodeNotFound,
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrInternalError = &AppError{
		Code:       ErrCodeInternalError,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrMissingPrivateKey = &AppError{
		Code:       ErrCodeMissingPrivateKey,
		Message:    "Private key not found",
		StatusCode: http.StatusNotFound,
	}

	ErrHashMismatch = &AppError{
		Code:       ErrCodeHashMismatch,
		Message:    "Transaction signing mismatch",
		StatusCode: http.StatusUnprocessableEntity,
	}

	ErrSigningFailure = &AppError{
		Code:       ErrCodeSigningFailed,
		Message:    "Signing failed",
		StatusCode: http.StatusInternalServerError,
	}

	ErrNetworkFailure = &AppError{
		Code:       ErrCodeNetworkFailure,
		Message:    "Transaction service request failed",
		StatusCode: http.StatusBadGateway,
	}

	ErrCancelled = &AppError{
		Code:       ErrCodeCancelled,
		Message:    "Request cancelled",
		StatusCode: 499,
	}

	ErrMissingDeviceID = &AppError{
		Code:       ErrCodeMissingDeviceID,
		Message:    "Device ID is not set",
		StatusCode: http.StatusConflict,
	}
)

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewWithDetail creates a new AppError with additional detail
func NewWithDetail(code, message, detail string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Detail:     detail,
		StatusCode: statusCode,
	}
}

// Wrap returns a copy of base carrying cause. The cause's message becomes the detail.
func Wrap(base *AppError, cause error) *AppError {
	e := *base
	e.cause = cause
	if cause != nil {
		e.Detail = cause.Error()
	}
	return &e
}

// InvalidAddress creates an invalid address error
func InvalidAddress(value string) *AppError {
	return &AppError{
		Code:       ErrCodeInvalidAddress,
		Message:    "The address is malformed. Please provide an Ethereum address.",
		Detail:     fmt.Sprintf("address: %q", value),
		StatusCode: http.StatusBadRequest,
	}
}

// NetworkFailure creates a transaction service failure error
func NetworkFailure(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeNetworkFailure,
		Message:    ErrNetworkFailure.Message,
		Detail:     detail,
		StatusCode: http.StatusBadGateway,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCancellation reports whether err comes from a request its caller gave up on.
// Such errors are not failures and are not shown to the user.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled)
}

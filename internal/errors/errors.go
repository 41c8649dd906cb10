// Package errors provides structured error types for the polling core.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Base error types
var (
	ErrTimeout           = errors.New("timeout")
	ErrConnectionFailed  = errors.New("connection failed")
	ErrMalformedResponse = errors.New("malformed response")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeConnection ErrorType = "connection"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeAPI        ErrorType = "api"
	ErrorTypeMalformed  ErrorType = "malformed"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeInternal   ErrorType = "internal"
)

// MonitorError is a structured error for fetch and evaluation operations.
type MonitorError struct {
	Type       ErrorType
	Op         string // Operation that failed (e.g. "fetch_latest", "query_range")
	Endpoint   string // Upstream endpoint involved, if any
	Err        error  // Underlying error
	StatusCode int    // HTTP status code if applicable
	Timestamp  time.Time
	Retryable  bool
}

func (e *MonitorError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("%s failed on %s: %v", e.Op, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *MonitorError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support for the base error types.
func (e *MonitorError) Is(target error) bool {
	if target == nil {
		return false
	}

	switch target {
	case ErrTimeout:
		return e.Type == ErrorTypeTimeout
	case ErrConnectionFailed:
		return e.Type == ErrorTypeConnection
	case ErrMalformedResponse:
		return e.Type == ErrorTypeMalformed
	case ErrInvalidInput:
		return e.Type == ErrorTypeValidation
	}

	return errors.Is(e.Err, target)
}

// NewMonitorError creates a new MonitorError
func NewMonitorError(errorType ErrorType, op, endpoint string, err error) *MonitorError {
	return &MonitorError{
		Type:      errorType,
		Op:        op,
		Endpoint:  endpoint,
		Err:       err,
		Timestamp: time.Now(),
		Retryable: isRetryable(errorType),
	}
}

// WithStatusCode adds the upstream HTTP status code to the error
func (e *MonitorError) WithStatusCode(code int) *MonitorError {
	e.StatusCode = code
	if code >= 500 || code == 429 || code == 408 {
		e.Retryable = true
	} else if code >= 400 {
		e.Retryable = false
	}
	return e
}

func isRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeConnection, ErrorTypeTimeout:
		return true
	case ErrorTypeMalformed, ErrorTypeValidation:
		return false
	default:
		return true
	}
}

// WrapConnectionError wraps a network-level failure with operation context.
func WrapConnectionError(op, endpoint string, err error) error {
	return NewMonitorError(ErrorTypeConnection, op, endpoint, err)
}

// WrapTimeoutError wraps a deadline failure with operation context.
func WrapTimeoutError(op, endpoint string, err error) error {
	return NewMonitorError(ErrorTypeTimeout, op, endpoint, err)
}

// WrapAPIError wraps a non-success upstream response.
func WrapAPIError(op, endpoint string, err error, statusCode int) error {
	return NewMonitorError(ErrorTypeAPI, op, endpoint, err).WithStatusCode(statusCode)
}

// WrapMalformedError wraps a payload that does not match the expected shape.
func WrapMalformedError(op, endpoint string, err error) error {
	return NewMonitorError(ErrorTypeMalformed, op, endpoint, err)
}

// NewValidationError reports an invalid configuration or request payload.
func NewValidationError(op string, format string, args ...any) error {
	return NewMonitorError(ErrorTypeValidation, op, "", fmt.Errorf(format, args...))
}

// IsRetryableError checks if an error should be retried on a later cycle.
func IsRetryableError(err error) bool {
	var monErr *MonitorError
	if errors.As(err, &monErr) {
		return monErr.Retryable
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnectionFailed)
}

// IsValidationError checks if an error stems from invalid caller input.
func IsValidationError(err error) bool {
	var monErr *MonitorError
	if errors.As(err, &monErr) {
		return monErr.Type == ErrorTypeValidation
	}
	return errors.Is(err, ErrInvalidInput)
}

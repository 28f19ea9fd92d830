package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different types of errors that can occur while acquiring an image
type ErrorType string

const (
	ErrorTypeNetwork           ErrorType = "network"
	ErrorTypeRateLimit         ErrorType = "rate_limit"
	ErrorTypeServerError       ErrorType = "server_error"
	ErrorTypeValidationSuspect ErrorType = "validation_suspect"
	ErrorTypeFatal             ErrorType = "fatal"
	ErrorTypeRedirectLoop      ErrorType = "redirect_loop"
	ErrorTypeInvalidURL        ErrorType = "invalid_url"
	ErrorTypeFilesystem        ErrorType = "filesystem"
	ErrorTypeParsing           ErrorType = "parsing"
	ErrorTypeAuth              ErrorType = "auth"
	ErrorTypeUnknown           ErrorType = "unknown"
)

// Error carries a type, an optional HTTP status code and the underlying cause
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Type, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message}
}

// Wrap creates a typed error around a cause
func Wrap(errType ErrorType, message string, err error) *Error {
	return &Error{Type: errType, Message: message, Err: err}
}

// FromStatusCode maps a non-2xx HTTP status onto a typed error.
// 429 and 403 are both treated as rate limiting because image hosts use 403 for throttling.
// 401 means a rejected API key.
func FromStatusCode(statusCode int, message string) *Error {
	errType := ErrorTypeFatal
	switch {
	case statusCode == http.StatusTooManyRequests || statusCode == http.StatusForbidden:
		errType = ErrorTypeRateLimit
	case statusCode == http.StatusUnauthorized:
		errType = ErrorTypeAuth
	case statusCode >= 500:
		errType = ErrorTypeServerError
	}
	return &Error{Type: errType, Message: message, Code: statusCode}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeValidationSuspect:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429, 403:
		return true
	default:
		return statusCode >= 500
	}
}

// TypeOf returns the type of err, or ErrorTypeUnknown when err is not typed
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err is a typed error of the given type
func IsType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// IsRateLimit reports whether err signals provider throttling
func IsRateLimit(err error) bool {
	return IsType(err, ErrorTypeRateLimit)
}

// IsTransient reports whether err may succeed if the operation is repeated
func IsTransient(err error) bool {
	return err != nil && IsRetryable(TypeOf(err))
}

// IsFatal reports whether err should abandon the current URL without retrying
func IsFatal(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeFatal, ErrorTypeAuth, ErrorTypeRedirectLoop, ErrorTypeInvalidURL, ErrorTypeFilesystem:
		return true
	default:
		return false
	}
}

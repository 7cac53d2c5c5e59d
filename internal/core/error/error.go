package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage is used when a Redis key does not exist.
	RedisNotFoundMessage = "redis key not found"
	// RedisUnavailableMessage is used when the session store cannot be reached in time.
	RedisUnavailableMessage = "session store unavailable"
	// InvalidArgumentMessage is used when caller supplied input is rejected.
	InvalidArgumentMessage = "invalid argument"
)

// ErrNotFound is the sentinel behind every NotFound error.
var ErrNotFound = errors.New("not found")

// AppError wraps an underlying error with a status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// NotFound reports a missing entity. The message is shown to the model verbatim.
func NotFound(message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Status:  http.StatusNotFound,
		Message: message,
	}
}

// Invalid reports rejected input.
func Invalid(err error) *AppError {
	return &AppError{
		Err:     err,
		Status:  http.StatusBadRequest,
		Message: InvalidArgumentMessage,
	}
}

// Public returns the message safe to hand back to a model or user.
// AppErrors with a nil cause expose only their message.
func Public(err error) string {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		if ae.Err == nil || errors.Is(ae.Err, ErrNotFound) {
			return ae.Message
		}
	}
	return err.Error()
}

// StatusOf returns the status carried by an AppError, or 500.
func StatusOf(err error) int {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return http.StatusInternalServerError
}

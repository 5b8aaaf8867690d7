// Package errors defines the failure taxonomy shared by index building and
// search, and maps each kind onto an HTTP status for the boundary handlers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrModelFileNotFound   = errors.New("model file not found")
	ErrInvalidModelFile    = errors.New("invalid model file")
	ErrProviderUnavailable = errors.New("vector provider unavailable")
	ErrUnknownModel        = errors.New("unknown model")
	ErrEmptyCorpusIndex    = errors.New("empty corpus index")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInternal            = errors.New("internal error")
	ErrTimeout             = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Of builds an AppError for sentinel with the status HTTPStatusCode assigns it.
func Of(sentinel error, format string, args ...any) *AppError {
	return Newf(sentinel, HTTPStatusCode(sentinel), format, args...)
}

// Kind returns a stable, machine-readable name for the failure class of err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrModelFileNotFound):
		return "ModelFileNotFound"
	case errors.Is(err, ErrInvalidModelFile):
		return "InvalidModelFile"
	case errors.Is(err, ErrProviderUnavailable):
		return "ProviderUnavailable"
	case errors.Is(err, ErrUnknownModel):
		return "UnknownModel"
	case errors.Is(err, ErrEmptyCorpusIndex):
		return "EmptyCorpusIndex"
	case errors.Is(err, ErrInvalidInput):
		return "InvalidInput"
	case errors.Is(err, ErrTimeout):
		return "Timeout"
	default:
		return "Internal"
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrUnknownModel), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrModelFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyCorpusIndex), errors.Is(err, ErrInvalidModelFile):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrProviderUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

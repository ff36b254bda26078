// Package errors defines the sentinel error kinds of the ingestion pipeline
// and an AppError wrapper that carries an HTTP status for the service
// boundaries. The consumer uses the sentinels to decide between discarding a
// poison message and leaving it unacknowledged for redelivery.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMalformedEvent marks a broker payload that can never be processed.
	// It is unrecoverable: the message is discarded, never requeued.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrFileAccess marks a failure to resolve or read the uploaded file.
	ErrFileAccess = errors.New("file access failed")
	// ErrExtraction marks a text-extraction failure (including timeouts).
	ErrExtraction = errors.New("text extraction failed")
	// ErrPersistence marks a store write failure; the message must not be
	// acknowledged so the broker redelivers it.
	ErrPersistence = errors.New("persistence failed")
	// ErrPublish marks a broker publish failure, surfaced synchronously to
	// the upload path.
	ErrPublish = errors.New("event publish failed")

	ErrDocumentNotFound  = errors.New("document not found")
	ErrIngestionNotFound = errors.New("ingestion not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTimeout           = errors.New("operation timed out")
	ErrInternal          = errors.New("internal error")
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

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound), errors.Is(err, ErrIngestionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMalformedEvent):
		return http.StatusBadRequest
	case errors.Is(err, ErrPublish):
		return http.StatusBadGateway
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

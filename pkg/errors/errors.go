// Package errors defines the retrieval error taxonomy. Callers classify
// failures with errors.Is against the sentinels below; AppError carries an
// explicit HTTP status for the searcher service.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnsupportedOperator is returned when neither an index part nor the
	// feature factory can resolve a query node's operator.
	ErrUnsupportedOperator = errors.New("unsupported operator")
	// ErrInvalidArgument is returned when an input is malformed or an iterator
	// lacks the capability an operation requires.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStorageIO wraps read and decode failures of the underlying store.
	ErrStorageIO = errors.New("storage i/o failure")
	// ErrInterrupted is returned when a wait on an asynchronous evaluation is
	// abandoned before the evaluation finished.
	ErrInterrupted = errors.New("interrupted")
	// ErrNotPositioned is returned by key/value accessors called before a
	// successful positioning or after the iterator is exhausted.
	ErrNotPositioned = errors.New("iterator not positioned on a key")
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

// Unsupported reports an operator nothing could resolve.
func Unsupported(operator string) error {
	return fmt.Errorf("%w: %q", ErrUnsupportedOperator, operator)
}

// Invalid formats an ErrInvalidArgument with context.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// IO wraps a storage failure. A nil err yields nil.
func IO(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorageIO) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageIO, op, err)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrUnsupportedOperator), errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrInterrupted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

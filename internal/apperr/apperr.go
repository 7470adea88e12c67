package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthenticated        = errors.New("authentication required")
	ErrForbidden              = errors.New("forbidden")
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrDuplicateRequest       = errors.New("duplicate request")
)

// Validation wraps ErrValidation with a human readable reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Forbidden wraps ErrForbidden with a human readable reason.
func Forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with the kind of record that was looked up.
func NotFound(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}

// Unavailable marks a persistence failure as transient. The cause stays in
// the chain so deadlines and cancellations keep their own kind.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"

	case errors.Is(err, ErrForbidden):
		return "forbidden"

	case errors.Is(err, ErrValidation):
		return "validation_error"

	case errors.Is(err, ErrNotFound):
		return "not_found"

	case errors.Is(err, ErrInvalidStateTransition):
		return "invalid_state_transition"

	case errors.Is(err, ErrDuplicateRequest):
		return "duplicate_request"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"

	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized

	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidStateTransition):
		return http.StatusBadRequest

	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrDuplicateRequest):
		return http.StatusConflict

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

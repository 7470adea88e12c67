package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKind(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("wrapped: %w", ErrInvalidStateTransition)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "unauthenticated", err: ErrUnauthenticated, want: "unauthenticated"},
		{name: "forbidden", err: Forbidden("vendors cannot delete"), want: "forbidden"},
		{name: "validation", err: Validation("reason is required"), want: "validation_error"},
		{name: "not_found", err: NotFound("refund request"), want: "not_found"},
		{name: "state_wrapped", err: wrapped, want: "invalid_state_transition"},
		{name: "duplicate", err: ErrDuplicateRequest, want: "duplicate_request"},
		{name: "store", err: Unavailable(errors.New("throttled")), want: "store_unavailable"},
		{name: "deadline", err: context.DeadlineExceeded, want: "timeout"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "store_deadline", err: Unavailable(fmt.Errorf("get item: %w", context.DeadlineExceeded)), want: "timeout"},
		{name: "store_canceled", err: Unavailable(context.Canceled), want: "canceled"},
		{name: "unknown", err: errors.New("unknown"), want: "internal"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Kind(tt.err); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "unauthenticated", err: ErrUnauthenticated, want: http.StatusUnauthorized},
		{name: "forbidden", err: ErrForbidden, want: http.StatusForbidden},
		{name: "validation", err: Validation("amount must be positive"), want: http.StatusBadRequest},
		{name: "not_found", err: NotFound("refund request"), want: http.StatusNotFound},
		{name: "state", err: ErrInvalidStateTransition, want: http.StatusBadRequest},
		{name: "duplicate", err: ErrDuplicateRequest, want: http.StatusConflict},
		{name: "store", err: Unavailable(errors.New("boom")), want: http.StatusInternalServerError},
		{name: "deadline", err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{name: "unknown", err: errors.New("unknown"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := HTTPStatus(tt.err); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestUnavailableNil(t *testing.T) {
	if err := Unavailable(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

package refunds

import (
	"context"
	"errors"
)

var (
	// ErrConditionFailed means a conditional write matched no record: the id
	// is unknown, outside the scope, or not in the expected status.
	ErrConditionFailed = errors.New("conditional check failed")

	// ErrIdempotencyConflict means the idempotency key was already used.
	ErrIdempotencyConflict = errors.New("idempotency key already exists")
)

// Repository persists refund requests. Implementations must apply
// FindByIDAndUpdate as a single atomic conditional write.
type Repository interface {
	// Insert stores a new request. A non-empty idempotencyKey is recorded in
	// the same write; reuse fails with ErrIdempotencyConflict.
	Insert(ctx context.Context, r *RefundRequest, idempotencyKey string) error

	// FindOne returns the request if it exists within scope, or nil.
	FindOne(ctx context.Context, id string, scope Scope) (*RefundRequest, error)

	// Find returns matching requests, newest first.
	Find(ctx context.Context, f Filter) ([]*RefundRequest, error)

	// FindByIDAndUpdate applies patch and stamp when the request exists
	// within scope and, if requirePending is set, is still pending. It
	// returns ErrConditionFailed otherwise.
	FindByIDAndUpdate(ctx context.Context, id string, scope Scope, patch Patch, stamp Stamp, requirePending bool) (*RefundRequest, error)

	// DeleteByID removes a request and reports whether it existed.
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// OrderLookup resolves orders referenced by refund requests.
type OrderLookup interface {
	GetOrderSummary(ctx context.Context, orderID string) (*OrderSummary, error)
}

// PartyLookup resolves customers and vendors.
type PartyLookup interface {
	GetPartySummary(ctx context.Context, id string) (*PartySummary, error)
}

// Notifier delivers lifecycle events.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

// Metrics counts lifecycle activity.
type Metrics interface {
	Increment(ctx context.Context, name string, dims map[string]string)
}

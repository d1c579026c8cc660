package order

import (
	"context"

	"github.com/mallkit/storefront/internal/domain/audit"
	"github.com/mallkit/storefront/internal/domain/inventory"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status     Status
	UserID     int64
	UnreadOnly bool
}

// Repository owns Order and OrderItem rows and the public identifier space.
//
// Verify and Transition are composite operations: the status guard, the
// timestamp, the stock decrements (Verify only) and the audit record all
// commit or roll back as one unit.
type Repository interface {
	// Create inserts the order with its items atomically and allocates a
	// free 6-digit public identifier, retrying on collision a bounded
	// number of times before returning ErrDuplicateID.
	Create(ctx context.Context, o *Order) error
	Find(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, f Filter) ([]*Order, error)

	// Verify moves processing -> verified, conditionally decrementing every
	// item's variant stock all-or-nothing, stamping verified-at and writing
	// the audit record in the same transaction. Returns the updated order
	// and the post-decrement stock levels.
	Verify(ctx context.Context, id int64, rec audit.Record) (*Order, []inventory.Level, error)

	// Transition performs a guarded from -> to move, stamping the matching
	// timestamp and writing the audit record (when given) in one
	// transaction. Replays surface as *InvalidTransitionError.
	Transition(ctx context.Context, id int64, from, to Status, rec *audit.Record) (*Order, error)

	// MarkRead clears the staff-notification flag.
	MarkRead(ctx context.Context, id int64) error
}

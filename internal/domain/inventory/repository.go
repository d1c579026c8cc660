package inventory

import "context"

// Ledger owns the per-variant stock counters.
type Ledger interface {
	Get(ctx context.Context, variantID int64) (*Stock, error)
	Put(ctx context.Context, stock *Stock) error
	// Reserve applies every reservation's conditional decrement inside one
	// transaction. If any variant cannot cover its claim the whole call
	// fails with *InsufficientStockError and no counter changes.
	Reserve(ctx context.Context, reservations []Reservation) ([]Level, error)
}

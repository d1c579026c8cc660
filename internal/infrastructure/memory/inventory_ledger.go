package memory

import (
	"context"
	"sync"
	"time"

	dominv "github.com/mallkit/storefront/internal/domain/inventory"
)

// InventoryLedger is a mutex-guarded ledger used by tests and local wiring.
// Reserve applies the same all-or-nothing semantics as the SQL store.
type InventoryLedger struct {
	mu     sync.Mutex
	stocks map[int64]*dominv.Stock
}

func NewInventoryLedger() *InventoryLedger {
	return &InventoryLedger{stocks: make(map[int64]*dominv.Stock)}
}

func (l *InventoryLedger) Get(ctx context.Context, variantID int64) (*dominv.Stock, error) {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()

	stock, ok := l.stocks[variantID]
	if !ok {
		return nil, dominv.ErrNotFound
	}
	clone := *stock
	return &clone, nil
}

func (l *InventoryLedger) Put(ctx context.Context, stock *dominv.Stock) error {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()

	clone := *stock
	l.stocks[stock.VariantID] = &clone
	return nil
}

func (l *InventoryLedger) Reserve(ctx context.Context, reservations []dominv.Reservation) ([]dominv.Level, error) {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.reserveLocked(reservations)
}

// reserveLocked assumes l.mu is held. The order repository composes it into
// its verification step under the same lock discipline.
func (l *InventoryLedger) reserveLocked(reservations []dominv.Reservation) ([]dominv.Level, error) {
	// Stage the decrements on a scratch copy so a late failure leaves every
	// counter untouched.
	staged := make(map[int64]int, len(reservations))
	for _, r := range reservations {
		if r.Quantity <= 0 {
			return nil, dominv.ErrInvalidQuantity
		}
		stock, ok := l.stocks[r.VariantID]
		if !ok {
			return nil, dominv.ErrNotFound
		}
		remaining, seen := staged[r.VariantID]
		if !seen {
			remaining = stock.Quantity
		}
		if remaining < r.Quantity {
			return nil, &dominv.InsufficientStockError{
				VariantID: r.VariantID,
				Requested: r.Quantity,
				Available: remaining,
			}
		}
		staged[r.VariantID] = remaining - r.Quantity
	}

	now := time.Now().UTC()
	levels := make([]dominv.Level, 0, len(staged))
	for variantID, remaining := range staged {
		stock := l.stocks[variantID]
		stock.Quantity = remaining
		stock.UpdatedAt = now
		levels = append(levels, dominv.Level{
			VariantID:    variantID,
			Remaining:    remaining,
			LowThreshold: stock.LowThreshold,
		})
	}
	return levels, nil
}

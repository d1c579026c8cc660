package order

import (
	"context"
	"errors"

	domorder "github.com/mallkit/storefront/internal/domain/order"
)

var ErrNoDefaultAddress = errors.New("order: no default address on file")

// AddressBook resolves shipping addresses. Address management itself lives
// outside the core.
type AddressBook interface {
	// DefaultAddress returns the id of the user's currently-marked-default
	// address, or ErrNoDefaultAddress.
	DefaultAddress(ctx context.Context, userID int64) (int64, error)
}

// Cart removes purchased entries after a successful placement. Items are
// keyed by the same line reference used for reservation, not by cart row id.
type Cart interface {
	RemoveItem(ctx context.Context, userID int64, ref domorder.LineRef) error
}

// Recipients addresses a notification without leaking email addresses into
// the core; the gateway resolves them.
type Recipients struct {
	UserID int64 // 0 when not buyer-directed
	Staff  bool
}

const (
	TemplateOrderPlacedBuyer = "order_placed_buyer"
	TemplateOrderPlacedStaff = "order_placed_staff"
	TemplateOrderStatus      = "order_status_changed"
	TemplateStockLow         = "stock_low"
)

// Notifier delivers buyer/staff emails. It is invoked only after the owning
// transaction has committed and its failures never propagate to the caller
// of the triggering operation.
type Notifier interface {
	Send(ctx context.Context, to Recipients, template string, payload map[string]any) error
}

// StatusCache is a read-side cache for buyer status polling. Misses and cache
// failures fall through to the repository.
type StatusCache interface {
	GetStatus(ctx context.Context, orderID int64) (domorder.Status, bool, error)
	SetStatus(ctx context.Context, orderID int64, status domorder.Status) error
	Invalidate(ctx context.Context, orderID int64) error
}

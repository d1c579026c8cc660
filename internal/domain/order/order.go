package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("order: not found")
	ErrEmptyOrder        = errors.New("order: at least one item is required")
	ErrInvalidQuantity   = errors.New("order: quantity must be greater than zero")
	ErrInvalidAmount     = errors.New("order: amount must be zero or greater")
	ErrInvalidTransition = errors.New("order: invalid transition")
	ErrDuplicateID       = errors.New("order: identifier allocation exhausted")
	ErrLineRef           = errors.New("order: item must reference exactly one of variant or requested variant")
)

// InvalidTransitionError reports the status an order was actually in when a
// transition required a different predecessor.
type InvalidTransitionError struct {
	OrderID  int64
	Current  Status
	Expected Status
}

func (e *InvalidTransitionError) Error() string {
	return "order: cannot transition from " + string(e.Current) + ", requires " + string(e.Expected)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// LineRef is a polymorphic reference to the purchasable unit of a line item:
// either a standard catalog variant or a buyer-requested custom variant.
// Exactly one side is set.
type LineRef struct {
	VariantID   int64
	RequestedID int64
}

func VariantRef(id int64) LineRef   { return LineRef{VariantID: id} }
func RequestedRef(id int64) LineRef { return LineRef{RequestedID: id} }

func (r LineRef) Validate() error {
	if (r.VariantID == 0) == (r.RequestedID == 0) {
		return ErrLineRef
	}
	return nil
}

func (r LineRef) IsRequested() bool { return r.RequestedID != 0 }

type Item struct {
	ID        int64
	ProductID int64
	Ref       LineRef
	Quantity  int
	UnitPrice int64 // checkout-time snapshot, cents
}

type Order struct {
	ID            int64 // public 6-digit identifier, allocated on insert
	UserID        int64
	AddressID     int64
	Subtotal      int64
	ShippingFee   int64
	Total         int64
	PaymentMethod string
	PaymentRef    string
	Status        Status
	Unread        bool
	PlacedAt      time.Time
	VerifiedAt    *time.Time
	ShippingAt    *time.Time
	ReceivedAt    *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
	Items         []Item
}

// New builds an order in its initial state. The public identifier stays zero
// until the repository allocates one.
func New(userID, addressID int64, items []Item, subtotal, shippingFee, total int64, paymentMethod, paymentRef string) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	if subtotal < 0 || shippingFee < 0 || total < 0 {
		return nil, ErrInvalidAmount
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if it.UnitPrice < 0 {
			return nil, ErrInvalidAmount
		}
		if err := it.Ref.Validate(); err != nil {
			return nil, err
		}
	}

	return &Order{
		UserID:        userID,
		AddressID:     addressID,
		Subtotal:      subtotal,
		ShippingFee:   shippingFee,
		Total:         total,
		PaymentMethod: paymentMethod,
		PaymentRef:    paymentRef,
		Status:        StatusProcessing,
		Unread:        true,
		PlacedAt:      time.Now().UTC(),
		Items:         items,
	}, nil
}

// Advance moves the order to the given status and stamps the matching
// transition timestamp. Repositories re-check the predecessor inside their
// own transaction; this guards in-memory callers.
func (o *Order) Advance(to Status, at time.Time) error {
	if !CanTransition(o.Status, to) {
		return &InvalidTransitionError{OrderID: o.ID, Current: o.Status, Expected: PredecessorOf(to)}
	}
	o.Status = to
	switch to {
	case StatusVerified:
		o.VerifiedAt = &at
	case StatusShipping:
		o.ShippingAt = &at
	case StatusReceived:
		o.ReceivedAt = &at
	case StatusCompleted:
		o.CompletedAt = &at
	case StatusCancelled:
		o.CancelledAt = &at
	}
	return nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]Item(nil), o.Items...)
	clone.VerifiedAt = cloneTime(o.VerifiedAt)
	clone.ShippingAt = cloneTime(o.ShippingAt)
	clone.ReceivedAt = cloneTime(o.ReceivedAt)
	clone.CompletedAt = cloneTime(o.CompletedAt)
	clone.CancelledAt = cloneTime(o.CancelledAt)
	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

package inventory

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("inventory: variant not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// InsufficientStockError names the variant that blocked a reservation and the
// quantities involved, so staff see an actionable message.
type InsufficientStockError struct {
	VariantID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: variant %d has %d in stock, %d requested", e.VariantID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Stock is the per-variant counter. Quantity never goes negative; the ledger
// only mutates it through a conditional decrement.
type Stock struct {
	VariantID    int64
	Quantity     int
	LowThreshold int
	UpdatedAt    time.Time
}

func NewStock(variantID int64, quantity, lowThreshold int) (*Stock, error) {
	if quantity < 0 || lowThreshold < 0 {
		return nil, ErrInvalidQuantity
	}
	return &Stock{
		VariantID:    variantID,
		Quantity:     quantity,
		LowThreshold: lowThreshold,
		UpdatedAt:    time.Now().UTC(),
	}, nil
}

func (s *Stock) Deduct(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > s.Quantity {
		return &InsufficientStockError{VariantID: s.VariantID, Requested: quantity, Available: s.Quantity}
	}
	s.Quantity -= quantity
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Reservation is one item's claim against a variant's stock.
type Reservation struct {
	VariantID int64
	Quantity  int
}

// Level reports where a counter landed after a reservation committed.
type Level struct {
	VariantID    int64
	Remaining    int
	LowThreshold int
}

func (l Level) Low() bool { return l.Remaining < l.LowThreshold }

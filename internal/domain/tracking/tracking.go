package tracking

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("tracking: entry not found")
	ErrStatusMissing = errors.New("tracking: status label is required")
)

// Entry is one manually-curated checkpoint in an order's shipment history.
type Entry struct {
	ID       int64
	OrderID  int64
	Status   string
	Location string
	At       time.Time
}

func NewEntry(orderID int64, status, location string, at time.Time) (*Entry, error) {
	if status == "" {
		return nil, ErrStatusMissing
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return &Entry{
		OrderID:  orderID,
		Status:   status,
		Location: location,
		At:       at,
	}, nil
}

func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

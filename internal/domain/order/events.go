package order

import "time"

// PlacedEvent is emitted after a checkout has been committed. It carries
// enough context for buyer and staff notifications without another read.
type PlacedEvent struct {
	OrderID    int64
	UserID     int64
	AddressID  int64
	ItemCount  int
	Total      int64
	OccurredAt time.Time
}

func (PlacedEvent) EventName() string { return "order.placed" }

func NewPlacedEvent(o *Order) PlacedEvent {
	return PlacedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		AddressID:  o.AddressID,
		ItemCount:  len(o.Items),
		Total:      o.Total,
		OccurredAt: time.Now().UTC(),
	}
}

// TransitionedEvent is emitted after any committed status change.
type TransitionedEvent struct {
	OrderID    int64
	UserID     int64
	From       Status
	To         Status
	OccurredAt time.Time
}

func (e TransitionedEvent) EventName() string { return "order." + string(e.To) }

func NewTransitionedEvent(o *Order, from Status) TransitionedEvent {
	return TransitionedEvent{
		OrderID:    o.ID,
		UserID:     o.UserID,
		From:       from,
		To:         o.Status,
		OccurredAt: time.Now().UTC(),
	}
}

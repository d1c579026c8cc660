package inventory

import "time"

// StockLowEvent is emitted when a committed reservation leaves a variant's
// counter below its threshold. Consumed by the staff notifier.
type StockLowEvent struct {
	VariantID  int64
	Remaining  int
	Threshold  int
	OccurredAt time.Time
}

func (StockLowEvent) EventName() string { return "inventory.stock_low" }

func NewStockLowEvent(l Level) StockLowEvent {
	return StockLowEvent{
		VariantID:  l.VariantID,
		Remaining:  l.Remaining,
		Threshold:  l.LowThreshold,
		OccurredAt: time.Now().UTC(),
	}
}

package audit

import (
	"context"
	"time"
)

const (
	RoleBuyer = "buyer"
	RoleStaff = "staff"
)

const (
	EntityOrder    = "order"
	EntityTracking = "tracking_entry"
)

const (
	ActionVerify         = "order.verify"
	ActionShip           = "order.ship"
	ActionReceive        = "order.receive"
	ActionComplete       = "order.complete"
	ActionCancel         = "order.cancel"
	ActionTrackingAdd    = "tracking.add"
	ActionTrackingEdit   = "tracking.edit"
	ActionTrackingDelete = "tracking.delete"
)

// Actor identifies who triggered a state-changing operation.
type Actor struct {
	ID   int64
	Name string
	Role string
}

func (a Actor) IsStaff() bool { return a.Role == RoleStaff }

// Record is one append-only entry in the action log. The core writes records
// and never reads them back.
type Record struct {
	Actor      Actor
	Action     string
	EntityType string
	EntityID   int64
	Details    string
	At         time.Time
}

func NewRecord(actor Actor, action, entityType string, entityID int64, details string) Record {
	return Record{
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		At:         time.Now().UTC(),
	}
}

// Recorder appends records outside any caller-owned transaction. Stores that
// participate in a transition write the record inside that transaction
// instead; a Recorder failure is logged and never escalated.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/mallkit/storefront/internal/domain/audit"
	domorder "github.com/mallkit/storefront/internal/domain/order"
	domtracking "github.com/mallkit/storefront/internal/domain/tracking"
	"github.com/mallkit/storefront/internal/observability"
	"github.com/mallkit/storefront/internal/observability/logctx"
)

const serviceName = "tracking"

// Service curates the per-order shipment log. Entries are staff-authored;
// nothing appends them automatically after placement.
type Service struct {
	entries  domtracking.Repository
	orders   domorder.Repository
	recorder audit.Recorder
	log      observability.Logger
}

func NewService(entries domtracking.Repository, orders domorder.Repository, recorder audit.Recorder, obs observability.Observability) *Service {
	if obs == nil {
		obs = observability.Nop()
	}
	return &Service{
		entries:  entries,
		orders:   orders,
		recorder: recorder,
		log:      obs.Logger().With(observability.F("service", serviceName)),
	}
}

func (s *Service) Add(ctx context.Context, orderID int64, status, location string, at time.Time, actor audit.Actor) (*domtracking.Entry, error) {
	if _, err := s.orders.Find(ctx, orderID); err != nil {
		return nil, err
	}
	entry, err := domtracking.NewEntry(orderID, status, location, at)
	if err != nil {
		return nil, err
	}
	if err := s.entries.Append(ctx, entry); err != nil {
		return nil, err
	}
	s.record(ctx, audit.NewRecord(actor, audit.ActionTrackingAdd, audit.EntityTracking, entry.ID,
		fmt.Sprintf("added checkpoint %q at %q for order #%d", entry.Status, entry.Location, orderID)))
	return entry, nil
}

// EditInput carries optional replacements; nil fields stay untouched.
type EditInput struct {
	Status   *string
	Location *string
	At       *time.Time
}

func (s *Service) Edit(ctx context.Context, entryID int64, input EditInput, actor audit.Actor) (*domtracking.Entry, error) {
	before, err := s.entries.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	after := before.Clone()
	if input.Status != nil {
		after.Status = *input.Status
	}
	if input.Location != nil {
		after.Location = *input.Location
	}
	if input.At != nil {
		after.At = *input.At
	}
	if after.Status == "" {
		return nil, domtracking.ErrStatusMissing
	}
	if err := s.entries.Update(ctx, after); err != nil {
		return nil, err
	}
	s.record(ctx, audit.NewRecord(actor, audit.ActionTrackingEdit, audit.EntityTracking, entryID,
		fmt.Sprintf("edited checkpoint of order #%d: %q@%q -> %q@%q",
			before.OrderID, before.Status, before.Location, after.Status, after.Location)))
	return after, nil
}

func (s *Service) Remove(ctx context.Context, entryID int64, actor audit.Actor) error {
	entry, err := s.entries.Get(ctx, entryID)
	if err != nil {
		return err
	}
	if err := s.entries.Delete(ctx, entryID); err != nil {
		return err
	}
	s.record(ctx, audit.NewRecord(actor, audit.ActionTrackingDelete, audit.EntityTracking, entryID,
		fmt.Sprintf("removed checkpoint %q@%q of order #%d", entry.Status, entry.Location, entry.OrderID)))
	return nil
}

// List returns the order's checkpoints, oldest-first for the buyer view and
// newest-first for the staff view.
func (s *Service) List(ctx context.Context, orderID int64, sort domtracking.SortOrder) ([]*domtracking.Entry, error) {
	if _, err := s.orders.Find(ctx, orderID); err != nil {
		return nil, err
	}
	return s.entries.List(ctx, orderID, sort)
}

func (s *Service) record(ctx context.Context, rec audit.Record) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
		logctx.FromOr(ctx, s.log).Warn("audit_record_failed",
			observability.F("action", rec.Action),
			observability.F("entity_id", rec.EntityID),
			observability.F("error", err.Error()),
		)
	}
}

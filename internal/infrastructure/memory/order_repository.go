package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/mallkit/storefront/internal/domain/audit"
	dominv "github.com/mallkit/storefront/internal/domain/inventory"
	domorder "github.com/mallkit/storefront/internal/domain/order"
)

const (
	publicIDMin   = 100000
	publicIDSpan  = 900000
	maxIDAttempts = 5
)

// OrderRepository keeps orders in a map and composes the ledger and audit
// log to give Verify and Transition the same commit-or-nothing behavior as
// the SQL store.
type OrderRepository struct {
	mu      sync.Mutex
	orders  map[int64]*domorder.Order
	itemSeq int64
	ledger  *InventoryLedger
	audit   *AuditLog
}

func NewOrderRepository(ledger *InventoryLedger, auditLog *AuditLog) *OrderRepository {
	return &OrderRepository{
		orders: make(map[int64]*domorder.Order),
		ledger: ledger,
		audit:  auditLog,
	}
}

func (r *OrderRepository) Create(ctx context.Context, o *domorder.Order) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.allocateIDLocked()
	if err != nil {
		return err
	}
	o.ID = id
	for i := range o.Items {
		r.itemSeq++
		o.Items[i].ID = r.itemSeq
	}
	r.orders[id] = o.Clone()
	return nil
}

func (r *OrderRepository) allocateIDLocked() (int64, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		candidate := int64(publicIDMin + rand.Intn(publicIDSpan))
		if _, taken := r.orders[candidate]; !taken {
			return candidate, nil
		}
	}
	return 0, domorder.ErrDuplicateID
}

func (r *OrderRepository) Find(ctx context.Context, id int64) (*domorder.Order, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, domorder.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *OrderRepository) List(ctx context.Context, f domorder.Filter) ([]*domorder.Order, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domorder.Order
	for _, o := range r.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.UserID != 0 && o.UserID != f.UserID {
			continue
		}
		if f.UnreadOnly && !o.Unread {
			continue
		}
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PlacedAt.Equal(out[j].PlacedAt) {
			return out[i].PlacedAt.After(out[j].PlacedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *OrderRepository) Verify(ctx context.Context, id int64, rec audit.Record) (*domorder.Order, []dominv.Level, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, nil, domorder.ErrNotFound
	}
	if o.Status != domorder.StatusProcessing {
		return nil, nil, &domorder.InvalidTransitionError{
			OrderID:  id,
			Current:  o.Status,
			Expected: domorder.StatusProcessing,
		}
	}

	// Requested variants carry no stock record, so only standard variants
	// take part in the reservation.
	var reservations []dominv.Reservation
	for _, it := range o.Items {
		if it.Ref.IsRequested() {
			continue
		}
		reservations = append(reservations, dominv.Reservation{
			VariantID: it.Ref.VariantID,
			Quantity:  it.Quantity,
		})
	}

	var levels []dominv.Level
	if len(reservations) > 0 {
		r.ledger.mu.Lock()
		var err error
		levels, err = r.ledger.reserveLocked(reservations)
		r.ledger.mu.Unlock()
		if err != nil {
			return nil, nil, err
		}
	}

	if err := o.Advance(domorder.StatusVerified, time.Now().UTC()); err != nil {
		return nil, nil, err
	}
	if r.audit != nil {
		r.audit.append(rec)
	}
	return o.Clone(), levels, nil
}

func (r *OrderRepository) Transition(ctx context.Context, id int64, from, to domorder.Status, rec *audit.Record) (*domorder.Order, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, domorder.ErrNotFound
	}
	if o.Status != from {
		return nil, &domorder.InvalidTransitionError{OrderID: id, Current: o.Status, Expected: from}
	}
	if err := o.Advance(to, time.Now().UTC()); err != nil {
		return nil, err
	}
	if rec != nil && r.audit != nil {
		r.audit.append(*rec)
	}
	return o.Clone(), nil
}

func (r *OrderRepository) MarkRead(ctx context.Context, id int64) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return domorder.ErrNotFound
	}
	o.Unread = false
	return nil
}

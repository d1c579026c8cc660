package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mallkit/storefront/internal/domain/audit"
	dominv "github.com/mallkit/storefront/internal/domain/inventory"
	domorder "github.com/mallkit/storefront/internal/domain/order"
)

const (
	publicIDMin   = 100000
	publicIDSpan  = 900000
	maxIDAttempts = 5
	orderColumns  = `id, user_id, address_id, subtotal, shipping_fee, total, payment_method, payment_ref, status, unread, placed_at, verified_at, shipping_at, received_at, completed_at, cancelled_at`
	itemColumns   = `id, order_id, product_id, variant_id, requested_id, quantity, unit_price`
)

var stampColumn = map[domorder.Status]string{
	domorder.StatusVerified:  "verified_at",
	domorder.StatusShipping:  "shipping_at",
	domorder.StatusReceived:  "received_at",
	domorder.StatusCompleted: "completed_at",
	domorder.StatusCancelled: "cancelled_at",
}

// OrderStore persists orders and their items. Verification and transitions
// commit the status change, timestamps, stock decrements and audit record as
// one transaction.
type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create inserts the order under a random 6-digit identifier. The primary
// key constraint arbitrates concurrent allocations; a collision rolls the
// attempt back and a fresh candidate is tried.
func (s *OrderStore) Create(ctx context.Context, o *domorder.Order) error {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		candidate := int64(publicIDMin + rand.Intn(publicIDSpan))
		err := s.createWithID(ctx, o, candidate)
		if err == nil {
			o.ID = candidate
			return nil
		}
		if isUniqueViolation(err) {
			continue
		}
		return err
	}
	return domorder.ErrDuplicateID
}

func (s *OrderStore) createWithID(ctx context.Context, o *domorder.Order, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, address_id, subtotal, shipping_fee, total,
			payment_method, payment_ref, status, unread, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, o.UserID, o.AddressID, o.Subtotal, o.ShippingFee, o.Total,
		o.PaymentMethod, o.PaymentRef, string(o.Status), o.Unread, o.PlacedAt,
	)
	if err != nil {
		return err
	}

	for i := range o.Items {
		it := &o.Items[i]
		var variantID, requestedID any
		if it.Ref.VariantID != 0 {
			variantID = it.Ref.VariantID
		}
		if it.Ref.RequestedID != 0 {
			requestedID = it.Ref.RequestedID
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, variant_id, requested_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			id, it.ProductID, variantID, requestedID, it.Quantity, it.UnitPrice,
		).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *OrderStore) Find(ctx context.Context, id int64) (*domorder.Order, error) {
	o, err := s.findOrder(ctx, s.pool, id)
	if err != nil {
		return nil, err
	}
	o.Items, err = s.findItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *OrderStore) findOrder(ctx context.Context, q rowQuerier, id int64) (*domorder.Order, error) {
	var o domorder.Order
	var status string
	err := q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id).Scan(
		&o.ID, &o.UserID, &o.AddressID, &o.Subtotal, &o.ShippingFee, &o.Total,
		&o.PaymentMethod, &o.PaymentRef, &status, &o.Unread, &o.PlacedAt,
		&o.VerifiedAt, &o.ShippingAt, &o.ReceivedAt, &o.CompletedAt, &o.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domorder.ErrNotFound
		}
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	o.Status = domorder.Status(status)
	return &o, nil
}

func (s *OrderStore) findItems(ctx context.Context, orderID int64) ([]domorder.Item, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+itemColumns+` FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items %d: %w", orderID, err)
	}
	defer rows.Close()

	var items []domorder.Item
	for rows.Next() {
		var it domorder.Item
		var orderRef int64
		var variantID, requestedID pgtype.Int8
		if err := rows.Scan(&it.ID, &orderRef, &it.ProductID, &variantID, &requestedID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if variantID.Valid {
			it.Ref.VariantID = variantID.Int64
		}
		if requestedID.Valid {
			it.Ref.RequestedID = requestedID.Int64
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

func (s *OrderStore) List(ctx context.Context, f domorder.Filter) ([]*domorder.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var conds []string
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.UserID != 0 {
		args = append(args, f.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.UnreadOnly {
		conds = append(conds, "unread")
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY placed_at DESC, id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []*domorder.Order
	for rows.Next() {
		var o domorder.Order
		var status string
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.AddressID, &o.Subtotal, &o.ShippingFee, &o.Total,
			&o.PaymentMethod, &o.PaymentRef, &status, &o.Unread, &o.PlacedAt,
			&o.VerifiedAt, &o.ShippingAt, &o.ReceivedAt, &o.CompletedAt, &o.CancelledAt,
		); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = domorder.Status(status)
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func (s *OrderStore) Verify(ctx context.Context, id int64, rec audit.Record) (*domorder.Order, []dominv.Level, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, domorder.ErrNotFound
		}
		return nil, nil, fmt.Errorf("lock order %d: %w", id, err)
	}
	if domorder.Status(status) != domorder.StatusProcessing {
		return nil, nil, &domorder.InvalidTransitionError{
			OrderID:  id,
			Current:  domorder.Status(status),
			Expected: domorder.StatusProcessing,
		}
	}

	// Only standard variants hold stock records; requested variants are
	// made to order.
	itemRows, err := tx.Query(ctx, `
		SELECT variant_id, quantity FROM order_items
		WHERE order_id = $1 AND variant_id IS NOT NULL
		ORDER BY variant_id`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load reservations %d: %w", id, err)
	}
	var reservations []dominv.Reservation
	for itemRows.Next() {
		var r dominv.Reservation
		if err := itemRows.Scan(&r.VariantID, &r.Quantity); err != nil {
			itemRows.Close()
			return nil, nil, fmt.Errorf("scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	itemRows.Close()
	if err := itemRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate reservations: %w", err)
	}

	levels := make([]dominv.Level, 0, len(reservations))
	for _, r := range reservations {
		level, err := reserveTx(ctx, tx, r)
		if err != nil {
			return nil, nil, err
		}
		levels = append(levels, level)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status = $2, verified_at = $3 WHERE id = $1`,
		id, string(domorder.StatusVerified), now,
	); err != nil {
		return nil, nil, fmt.Errorf("update order %d: %w", id, err)
	}

	if err := insertAuditTx(ctx, tx, rec); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit verify %d: %w", id, err)
	}

	o, err := s.Find(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return o, levels, nil
}

func (s *OrderStore) Transition(ctx context.Context, id int64, from, to domorder.Status, rec *audit.Record) (*domorder.Order, error) {
	column, ok := stampColumn[to]
	if !ok {
		return nil, &domorder.InvalidTransitionError{OrderID: id, Current: from, Expected: domorder.PredecessorOf(to)}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status = $2, `+column+` = $3
		WHERE id = $1 AND status = $4`,
		id, string(to), time.Now().UTC(), string(from),
	)
	if err != nil {
		return nil, fmt.Errorf("transition order %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		// Distinguish a missing order from a guard rejection.
		current, findErr := s.findOrder(ctx, tx, id)
		if findErr != nil {
			return nil, findErr
		}
		return nil, &domorder.InvalidTransitionError{OrderID: id, Current: current.Status, Expected: from}
	}

	if rec != nil {
		if err := insertAuditTx(ctx, tx, *rec); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transition %d: %w", id, err)
	}

	return s.Find(ctx, id)
}

func (s *OrderStore) MarkRead(ctx context.Context, id int64) error {
	ct, err := s.pool.Exec(ctx, `UPDATE orders SET unread = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark order %d read: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return domorder.ErrNotFound
	}
	return nil
}

func insertAuditTx(ctx context.Context, tx pgx.Tx, rec audit.Record) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO audit_records (actor_id, actor_name, actor_role, action, entity_type, entity_id, details, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.Actor.ID, rec.Actor.Name, rec.Actor.Role, rec.Action, rec.EntityType, rec.EntityID, rec.Details, rec.At,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id             BIGINT PRIMARY KEY,
		user_id        BIGINT NOT NULL,
		address_id     BIGINT NOT NULL,
		subtotal       BIGINT NOT NULL,
		shipping_fee   BIGINT NOT NULL,
		total          BIGINT NOT NULL,
		payment_method TEXT NOT NULL DEFAULT '',
		payment_ref    TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL,
		unread         BOOLEAN NOT NULL DEFAULT TRUE,
		placed_at      TIMESTAMPTZ NOT NULL,
		verified_at    TIMESTAMPTZ,
		shipping_at    TIMESTAMPTZ,
		received_at    TIMESTAMPTZ,
		completed_at   TIMESTAMPTZ,
		cancelled_at   TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id           BIGSERIAL PRIMARY KEY,
		order_id     BIGINT NOT NULL REFERENCES orders (id),
		product_id   BIGINT NOT NULL,
		variant_id   BIGINT,
		requested_id BIGINT,
		quantity     INT NOT NULL CHECK (quantity > 0),
		unit_price   BIGINT NOT NULL CHECK (unit_price >= 0),
		CHECK ((variant_id IS NULL) <> (requested_id IS NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items (order_id)`,
	`CREATE TABLE IF NOT EXISTS variant_stocks (
		variant_id    BIGINT PRIMARY KEY,
		quantity      INT NOT NULL CHECK (quantity >= 0),
		low_threshold INT NOT NULL DEFAULT 0,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS tracking_entries (
		id       BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL REFERENCES orders (id),
		status   TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tracking_order_at ON tracking_entries (order_id, at)`,
	`CREATE TABLE IF NOT EXISTS audit_records (
		id          BIGSERIAL PRIMARY KEY,
		actor_id    BIGINT NOT NULL,
		actor_name  TEXT NOT NULL,
		actor_role  TEXT NOT NULL,
		action      TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id   BIGINT NOT NULL,
		details     TEXT NOT NULL DEFAULT '',
		at          TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate applies the schema. Statements are idempotent so repeated startup
// runs are safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

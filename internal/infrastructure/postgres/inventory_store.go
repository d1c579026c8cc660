package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	dominv "github.com/mallkit/storefront/internal/domain/inventory"
)

// InventoryStore owns the variant_stocks counters. All decrements go through
// the conditional update so a counter can never go negative, whatever the
// interleaving.
type InventoryStore struct {
	pool *pgxpool.Pool
}

func NewInventoryStore(pool *pgxpool.Pool) *InventoryStore {
	return &InventoryStore{pool: pool}
}

func (s *InventoryStore) Get(ctx context.Context, variantID int64) (*dominv.Stock, error) {
	var stock dominv.Stock
	err := s.pool.QueryRow(ctx, `
		SELECT variant_id, quantity, low_threshold, updated_at
		FROM variant_stocks WHERE variant_id = $1`, variantID,
	).Scan(&stock.VariantID, &stock.Quantity, &stock.LowThreshold, &stock.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dominv.ErrNotFound
		}
		return nil, fmt.Errorf("get stock %d: %w", variantID, err)
	}
	return &stock, nil
}

func (s *InventoryStore) Put(ctx context.Context, stock *dominv.Stock) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO variant_stocks (variant_id, quantity, low_threshold, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (variant_id) DO UPDATE
		SET quantity = EXCLUDED.quantity,
		    low_threshold = EXCLUDED.low_threshold,
		    updated_at = EXCLUDED.updated_at`,
		stock.VariantID, stock.Quantity, stock.LowThreshold, stock.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put stock %d: %w", stock.VariantID, err)
	}
	return nil
}

func (s *InventoryStore) Reserve(ctx context.Context, reservations []dominv.Reservation) ([]dominv.Level, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	levels := make([]dominv.Level, 0, len(reservations))
	for _, r := range reservations {
		level, err := reserveTx(ctx, tx, r)
		if err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reserve: %w", err)
	}
	return levels, nil
}

// reserveTx applies one conditional decrement inside the caller's
// transaction. Zero rows affected means the guard rejected the claim; the
// follow-up read only feeds the error detail, the transaction rolls back
// either way.
func reserveTx(ctx context.Context, tx pgx.Tx, r dominv.Reservation) (dominv.Level, error) {
	if r.Quantity <= 0 {
		return dominv.Level{}, dominv.ErrInvalidQuantity
	}
	var level dominv.Level
	err := tx.QueryRow(ctx, `
		UPDATE variant_stocks
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE variant_id = $1 AND quantity >= $2
		RETURNING variant_id, quantity, low_threshold`,
		r.VariantID, r.Quantity,
	).Scan(&level.VariantID, &level.Remaining, &level.LowThreshold)
	if err == nil {
		return level, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return dominv.Level{}, fmt.Errorf("reserve variant %d: %w", r.VariantID, err)
	}

	var available int
	err = tx.QueryRow(ctx, `SELECT quantity FROM variant_stocks WHERE variant_id = $1`, r.VariantID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dominv.Level{}, dominv.ErrNotFound
		}
		return dominv.Level{}, fmt.Errorf("read stock %d: %w", r.VariantID, err)
	}
	return dominv.Level{}, &dominv.InsufficientStockError{
		VariantID: r.VariantID,
		Requested: r.Quantity,
		Available: available,
	}
}

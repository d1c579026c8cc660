package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domtracking "github.com/mallkit/storefront/internal/domain/tracking"
)

type TrackingStore struct {
	pool *pgxpool.Pool
}

func NewTrackingStore(pool *pgxpool.Pool) *TrackingStore {
	return &TrackingStore{pool: pool}
}

func (s *TrackingStore) Append(ctx context.Context, entry *domtracking.Entry) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tracking_entries (order_id, status, location, at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		entry.OrderID, entry.Status, entry.Location, entry.At,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("append tracking entry: %w", err)
	}
	return nil
}

func (s *TrackingStore) Get(ctx context.Context, id int64) (*domtracking.Entry, error) {
	var entry domtracking.Entry
	err := s.pool.QueryRow(ctx, `
		SELECT id, order_id, status, location, at
		FROM tracking_entries WHERE id = $1`, id,
	).Scan(&entry.ID, &entry.OrderID, &entry.Status, &entry.Location, &entry.At)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domtracking.ErrNotFound
		}
		return nil, fmt.Errorf("get tracking entry %d: %w", id, err)
	}
	return &entry, nil
}

func (s *TrackingStore) Update(ctx context.Context, entry *domtracking.Entry) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE tracking_entries SET status = $2, location = $3, at = $4
		WHERE id = $1`,
		entry.ID, entry.Status, entry.Location, entry.At,
	)
	if err != nil {
		return fmt.Errorf("update tracking entry %d: %w", entry.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return domtracking.ErrNotFound
	}
	return nil
}

func (s *TrackingStore) Delete(ctx context.Context, id int64) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM tracking_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tracking entry %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return domtracking.ErrNotFound
	}
	return nil
}

func (s *TrackingStore) List(ctx context.Context, orderID int64, order domtracking.SortOrder) ([]*domtracking.Entry, error) {
	direction := "ASC"
	if order == domtracking.NewestFirst {
		direction = "DESC"
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, status, location, at
		FROM tracking_entries WHERE order_id = $1
		ORDER BY at `+direction+`, id `+direction, orderID)
	if err != nil {
		return nil, fmt.Errorf("list tracking entries %d: %w", orderID, err)
	}
	defer rows.Close()

	var entries []*domtracking.Entry
	for rows.Next() {
		var entry domtracking.Entry
		if err := rows.Scan(&entry.ID, &entry.OrderID, &entry.Status, &entry.Location, &entry.At); err != nil {
			return nil, fmt.Errorf("scan tracking entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracking entries: %w", err)
	}
	return entries, nil
}

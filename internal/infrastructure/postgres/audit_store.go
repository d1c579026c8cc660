package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mallkit/storefront/internal/domain/audit"
)

// AuditStore appends records outside any caller transaction. Transition
// records go through the order store's composite operations instead.
type AuditStore struct {
	pool *pgxpool.Pool
}

func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

func (s *AuditStore) Record(ctx context.Context, rec audit.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_records (actor_id, actor_name, actor_role, action, entity_type, entity_id, details, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.Actor.ID, rec.Actor.Name, rec.Actor.Role, rec.Action, rec.EntityType, rec.EntityID, rec.Details, rec.At,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

package inventory

import (
	"context"

	dominv "github.com/mallkit/storefront/internal/domain/inventory"
	"github.com/mallkit/storefront/internal/observability"
)

// Service exposes ledger reads and staff restocking. Reservations are not
// available here; they only happen through order verification.
type Service struct {
	ledger dominv.Ledger
	log    observability.Logger
}

func NewService(ledger dominv.Ledger, obs observability.Observability) *Service {
	if obs == nil {
		obs = observability.Nop()
	}
	return &Service{
		ledger: ledger,
		log:    obs.Logger().With(observability.F("service", "inventory")),
	}
}

func (s *Service) Get(ctx context.Context, variantID int64) (*dominv.Stock, error) {
	return s.ledger.Get(ctx, variantID)
}

// Restock sets a variant's counter and threshold, creating the record when
// it does not exist yet.
func (s *Service) Restock(ctx context.Context, variantID int64, quantity, lowThreshold int) (*dominv.Stock, error) {
	stock, err := dominv.NewStock(variantID, quantity, lowThreshold)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Put(ctx, stock); err != nil {
		return nil, err
	}
	return stock, nil
}

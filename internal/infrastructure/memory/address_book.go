package memory

import (
	"context"
	"sync"

	apporder "github.com/mallkit/storefront/internal/application/order"
)

// AddressBook is a mutex-guarded default-address map used by tests and
// local wiring. Address management lives outside the core.
type AddressBook struct {
	mu       sync.RWMutex
	defaults map[int64]int64 // userID -> addressID
}

func NewAddressBook() *AddressBook {
	return &AddressBook{defaults: make(map[int64]int64)}
}

func (b *AddressBook) SetDefault(userID, addressID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.defaults[userID] = addressID
}

func (b *AddressBook) DefaultAddress(ctx context.Context, userID int64) (int64, error) {
	_ = ctx
	b.mu.RLock()
	defer b.mu.RUnlock()

	addressID, ok := b.defaults[userID]
	if !ok {
		return 0, apporder.ErrNoDefaultAddress
	}
	return addressID, nil
}

package memory

import (
	"context"
	"sync"

	domorder "github.com/mallkit/storefront/internal/domain/order"
)

// Cart keeps per-user cart lines keyed by line reference. Removal of an
// absent line is a no-op, matching the post-commit cleanup contract.
type Cart struct {
	mu    sync.Mutex
	lines map[int64]map[domorder.LineRef]int // userID -> ref -> quantity
}

func NewCart() *Cart {
	return &Cart{lines: make(map[int64]map[domorder.LineRef]int)}
}

func (c *Cart) AddItem(userID int64, ref domorder.LineRef, quantity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lines[userID] == nil {
		c.lines[userID] = make(map[domorder.LineRef]int)
	}
	c.lines[userID][ref] += quantity
}

func (c *Cart) RemoveItem(ctx context.Context, userID int64, ref domorder.LineRef) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lines[userID], ref)
	return nil
}

func (c *Cart) Items(userID int64) map[domorder.LineRef]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[domorder.LineRef]int, len(c.lines[userID]))
	for ref, qty := range c.lines[userID] {
		out[ref] = qty
	}
	return out
}

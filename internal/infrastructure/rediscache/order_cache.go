package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domorder "github.com/mallkit/storefront/internal/domain/order"
)

const (
	// order_status:{order_id} -> status string
	keyOrderStatus = "order_status:%d"
)

var ttlStatus = 5 * time.Minute

// New opens a redis client and verifies the connection.
func New(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// OrderStatusCache serves buyer status polling without hitting the orders
// table. Entries are refreshed on every committed transition and expire on
// their own otherwise.
type OrderStatusCache struct {
	rdb *redis.Client
}

func NewOrderStatusCache(rdb *redis.Client) *OrderStatusCache {
	return &OrderStatusCache{rdb: rdb}
}

func (c *OrderStatusCache) GetStatus(ctx context.Context, orderID int64) (domorder.Status, bool, error) {
	val, err := c.rdb.Get(ctx, fmt.Sprintf(keyOrderStatus, orderID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("cache get order %d: %w", orderID, err)
	}
	status := domorder.Status(val)
	if !status.Valid() {
		return "", false, nil
	}
	return status, true, nil
}

func (c *OrderStatusCache) SetStatus(ctx context.Context, orderID int64, status domorder.Status) error {
	if err := c.rdb.Set(ctx, fmt.Sprintf(keyOrderStatus, orderID), string(status), ttlStatus).Err(); err != nil {
		return fmt.Errorf("cache set order %d: %w", orderID, err)
	}
	return nil
}

func (c *OrderStatusCache) Invalidate(ctx context.Context, orderID int64) error {
	if err := c.rdb.Del(ctx, fmt.Sprintf(keyOrderStatus, orderID)).Err(); err != nil {
		return fmt.Errorf("cache del order %d: %w", orderID, err)
	}
	return nil
}

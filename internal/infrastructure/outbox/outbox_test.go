package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domoutbox "github.com/mallkit/storefront/internal/domain/outbox"
)

type testEvent struct{ name string }

func (e testEvent) EventName() string { return e.name }

func TestBus_DeliversToSubscribers(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	var mu sync.Mutex
	var got []string
	bus.Subscribe("order.placed", func(ctx context.Context, e domoutbox.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.EventName())
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "order.placed"}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestBus_HandlerFailureDoesNotBlockOthers(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	delivered := make(chan struct{})
	bus.Subscribe("order.verified", func(ctx context.Context, e domoutbox.Event) error {
		return errors.New("boom")
	})
	bus.Subscribe("order.verified", func(ctx context.Context, e domoutbox.Event) error {
		close(delivered)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "order.verified"}))

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("second handler never ran")
	}
}

func TestBus_PanickingHandlerIsContained(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	delivered := make(chan struct{})
	bus.Subscribe("inventory.stock_low", func(ctx context.Context, e domoutbox.Event) error {
		panic("handler bug")
	})
	bus.Subscribe("inventory.stock_low", func(ctx context.Context, e domoutbox.Event) error {
		close(delivered)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "inventory.stock_low"}))

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("panic escaped the dispatch")
	}
}

func TestBus_NoSubscriberIsDropped(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	assert.NoError(t, bus.Publish(context.Background(), testEvent{name: "order.unknown"}))
}

package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apporder "github.com/mallkit/storefront/internal/application/order"
	dominv "github.com/mallkit/storefront/internal/domain/inventory"
	domorder "github.com/mallkit/storefront/internal/domain/order"
	domoutbox "github.com/mallkit/storefront/internal/domain/outbox"
)

type sentMail struct {
	to       apporder.Recipients
	template string
	payload  map[string]any
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) Send(ctx context.Context, to apporder.Recipients, template string, payload map[string]any) error {
	_ = ctx
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{to: to, template: template, payload: payload})
	return n.err
}

type subscriberSpy struct {
	names []string
}

func (s *subscriberSpy) Subscribe(eventName string, _ domoutbox.Handler) {
	s.names = append(s.names, eventName)
}

func TestWorker_Start_SubscribesLifecycle(t *testing.T) {
	sub := &subscriberSpy{}
	notifier := &fakeNotifier{}
	New(sub, notifier, nil).Start()

	assert.ElementsMatch(t, []string{
		"order.placed",
		"order.verified",
		"order.shipping",
		"order.received",
		"order.completed",
		"order.cancelled",
		"inventory.stock_low",
	}, sub.names)
}

func TestWorker_Placed_NotifiesBuyerAndStaff(t *testing.T) {
	notifier := &fakeNotifier{}
	w := New(&subscriberSpy{}, notifier, nil)

	err := w.handlePlaced(context.Background(), domorder.PlacedEvent{OrderID: 100001, UserID: 7, ItemCount: 2, Total: 3060})
	require.NoError(t, err)

	require.Len(t, notifier.sent, 2)
	assert.Equal(t, apporder.TemplateOrderPlacedBuyer, notifier.sent[0].template)
	assert.Equal(t, int64(7), notifier.sent[0].to.UserID)
	assert.Equal(t, apporder.TemplateOrderPlacedStaff, notifier.sent[1].template)
	assert.True(t, notifier.sent[1].to.Staff)
}

func TestWorker_Transitioned_NotifiesBuyer(t *testing.T) {
	notifier := &fakeNotifier{}
	w := New(&subscriberSpy{}, notifier, nil)

	err := w.handleTransitioned(context.Background(), domorder.TransitionedEvent{
		OrderID: 100001, UserID: 7, From: domorder.StatusProcessing, To: domorder.StatusVerified,
	})
	require.NoError(t, err)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, apporder.TemplateOrderStatus, notifier.sent[0].template)
	assert.Equal(t, "verified", notifier.sent[0].payload["to"])
}

func TestWorker_StockLow_NotifiesStaff(t *testing.T) {
	notifier := &fakeNotifier{}
	w := New(&subscriberSpy{}, notifier, nil)

	err := w.handleStockLow(context.Background(), dominv.StockLowEvent{VariantID: 10, Remaining: 1, Threshold: 3})
	require.NoError(t, err)

	require.Len(t, notifier.sent, 1)
	assert.True(t, notifier.sent[0].to.Staff)
	assert.Equal(t, apporder.TemplateStockLow, notifier.sent[0].template)
}

func TestWorker_DeliveryFailureIsSwallowed(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("gateway down")}
	w := New(&subscriberSpy{}, notifier, nil)

	err := w.handlePlaced(context.Background(), domorder.PlacedEvent{OrderID: 100001, UserID: 7})
	assert.NoError(t, err, "delivery failures never propagate")
}

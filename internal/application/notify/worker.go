package notify

import (
	"context"

	apporder "github.com/mallkit/storefront/internal/application/order"
	dominv "github.com/mallkit/storefront/internal/domain/inventory"
	domorder "github.com/mallkit/storefront/internal/domain/order"
	domoutbox "github.com/mallkit/storefront/internal/domain/outbox"
	"github.com/mallkit/storefront/internal/observability"
	"github.com/mallkit/storefront/internal/observability/logctx"
)

// Worker turns committed lifecycle events into buyer and staff emails. It
// consumes the event bus, so a delivery failure can never reach the
// transition that produced the event; it is logged and counted instead.
type Worker struct {
	subscriber domoutbox.Subscriber
	notifier   apporder.Notifier

	log         observability.Logger
	sentCounter observability.Counter
}

func New(subscriber domoutbox.Subscriber, notifier apporder.Notifier, obs observability.Observability) *Worker {
	if obs == nil {
		obs = observability.Nop()
	}
	return &Worker{
		subscriber:  subscriber,
		notifier:    notifier,
		log:         obs.Logger().With(observability.F("service", "notify-worker")),
		sentCounter: obs.Metrics().Counter(observability.MNotificationsSent),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.notifier == nil {
		return
	}
	w.subscriber.Subscribe(domorder.PlacedEvent{}.EventName(), w.handlePlaced)
	for _, status := range []domorder.Status{
		domorder.StatusVerified,
		domorder.StatusShipping,
		domorder.StatusReceived,
		domorder.StatusCompleted,
		domorder.StatusCancelled,
	} {
		w.subscriber.Subscribe(domorder.TransitionedEvent{To: status}.EventName(), w.handleTransitioned)
	}
	w.subscriber.Subscribe(dominv.StockLowEvent{}.EventName(), w.handleStockLow)
}

func (w *Worker) handlePlaced(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.PlacedEvent)
	if !ok {
		return nil
	}
	payload := map[string]any{
		"order_id":   evt.OrderID,
		"item_count": evt.ItemCount,
		"total":      evt.Total,
		"address_id": evt.AddressID,
	}
	w.send(ctx, apporder.Recipients{UserID: evt.UserID}, apporder.TemplateOrderPlacedBuyer, payload)
	w.send(ctx, apporder.Recipients{Staff: true}, apporder.TemplateOrderPlacedStaff, payload)
	return nil
}

func (w *Worker) handleTransitioned(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.TransitionedEvent)
	if !ok {
		return nil
	}
	w.send(ctx, apporder.Recipients{UserID: evt.UserID}, apporder.TemplateOrderStatus, map[string]any{
		"order_id": evt.OrderID,
		"from":     string(evt.From),
		"to":       string(evt.To),
	})
	return nil
}

func (w *Worker) handleStockLow(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(dominv.StockLowEvent)
	if !ok {
		return nil
	}
	w.send(ctx, apporder.Recipients{Staff: true}, apporder.TemplateStockLow, map[string]any{
		"variant_id": evt.VariantID,
		"remaining":  evt.Remaining,
		"threshold":  evt.Threshold,
	})
	return nil
}

func (w *Worker) send(ctx context.Context, to apporder.Recipients, template string, payload map[string]any) {
	outcome := "success"
	if err := w.notifier.Send(ctx, to, template, payload); err != nil {
		outcome = "error"
		logctx.FromOr(ctx, w.log).Warn("notification_send_failed",
			observability.F("template", template),
			observability.F("error", err.Error()),
		)
	}
	w.sentCounter.Add(1,
		observability.L("template", template),
		observability.L("outcome", outcome),
	)
}

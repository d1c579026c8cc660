package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	dominv "github.com/mallkit/storefront/internal/domain/inventory"
	domorder "github.com/mallkit/storefront/internal/domain/order"
	domoutbox "github.com/mallkit/storefront/internal/domain/outbox"
	"github.com/mallkit/storefront/internal/observability"
)

const producerName = "storefront-core"

// Envelope is the wire form of a lifecycle event on the stream.
type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	OrderID      int64           `json:"order_id,omitempty"`
	Payload      json.RawMessage `json:"payload"`
}

// Publisher mirrors committed lifecycle events onto a Kafka topic for
// downstream consumers (analytics, search indexing). Writes are async;
// failures are logged, never surfaced to the transition that emitted the
// event.
type Publisher struct {
	w   *kafka.Writer
	log observability.Logger
}

func NewPublisher(brokers []string, topic string, logger observability.Logger) *Publisher {
	if logger == nil {
		logger = observability.NopLogger()
	}
	p := &Publisher{
		log: logger.With(observability.F("component", "stream-publisher")),
	}
	p.w = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				p.log.Warn("stream_write_failed",
					observability.F("messages", len(messages)),
					observability.F("error", err.Error()),
				)
			}
		},
	}
	return p
}

// Attach subscribes the publisher to every lifecycle event on the bus.
func (p *Publisher) Attach(sub domoutbox.Subscriber) {
	sub.Subscribe(domorder.PlacedEvent{}.EventName(), p.handle)
	for _, status := range []domorder.Status{
		domorder.StatusVerified,
		domorder.StatusShipping,
		domorder.StatusReceived,
		domorder.StatusCompleted,
		domorder.StatusCancelled,
	} {
		sub.Subscribe(domorder.TransitionedEvent{To: status}.EventName(), p.handle)
	}
	sub.Subscribe(dominv.StockLowEvent{}.EventName(), p.handle)
}

func (p *Publisher) handle(ctx context.Context, e domoutbox.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.EventName(), err)
	}
	env := Envelope{
		EventID:      uuid.NewString(),
		EventType:    e.EventName(),
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     producerName,
		OrderID:      orderIDOf(e),
		Payload:      payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", env.OrderID)),
		Value: value,
		Time:  env.OccurredAt,
	})
}

func (p *Publisher) Close() error {
	return p.w.Close()
}

func orderIDOf(e domoutbox.Event) int64 {
	switch evt := e.(type) {
	case domorder.PlacedEvent:
		return evt.OrderID
	case domorder.TransitionedEvent:
		return evt.OrderID
	}
	return 0
}

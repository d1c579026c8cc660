package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mallkit/storefront/internal/domain/audit"
	"github.com/mallkit/storefront/internal/domain/inventory"
	domorder "github.com/mallkit/storefront/internal/domain/order"
	domoutbox "github.com/mallkit/storefront/internal/domain/outbox"
	"github.com/mallkit/storefront/internal/observability"
	"github.com/mallkit/storefront/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName    = "order-lifecycle"
	spanPrefix     = "UC."
	publishTimeout = 300 * time.Millisecond
)

var (
	ErrEmptyCart = errors.New("order: cart is empty")
	ErrForbidden = errors.New("order: actor does not own this order")
)

// Service is the order lifecycle controller. It orchestrates placement and
// every fulfillment transition; side effects (cart removal, notifications,
// stream publication, cache refresh) run strictly after the owning
// transaction has committed.
type Service struct {
	orders    domorder.Repository
	addresses AddressBook
	cart      Cart
	cache     StatusCache
	publisher domoutbox.Publisher
	obs       observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	resCounter   observability.Counter
}

func NewService(
	orders domorder.Repository,
	addresses AddressBook,
	cart Cart,
	cache StatusCache,
	publisher domoutbox.Publisher,
	obs observability.Observability,
) *Service {
	if obs == nil {
		obs = observability.Nop()
	}
	return &Service{
		orders:       orders,
		addresses:    addresses,
		cart:         cart,
		cache:        cache,
		publisher:    publisher,
		obs:          obs,
		log:          obs.Logger().With(observability.F("service", serviceName)),
		reqCounter:   obs.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: obs.Metrics().Histogram(observability.MUsecaseDuration),
		resCounter:   obs.Metrics().Counter(observability.MStockReservations),
	}
}

type ItemInput struct {
	ProductID   int64
	VariantID   int64
	RequestedID int64
	Quantity    int
	UnitPrice   int64
}

type PlaceOrderInput struct {
	UserID        int64
	AddressID     int64 // 0 falls back to the user's default address
	Items         []ItemInput
	Subtotal      int64
	ShippingFee   int64
	Total         int64
	PaymentMethod string
	PaymentRef    string
}

// PlaceOrder turns a checkout request into a persisted order and returns its
// public identifier. The order and its items commit atomically; cart removal
// and notifications follow the commit.
func (s *Service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (o *domorder.Order, err error) {
	ctx, done := s.begin(ctx, "order.place",
		attribute.Int64("order.user_id", input.UserID),
	)
	defer func() { done(err) }()

	if len(input.Items) == 0 {
		return nil, ErrEmptyCart
	}

	addressID := input.AddressID
	if addressID == 0 {
		addressID, err = s.addresses.DefaultAddress(ctx, input.UserID)
		if err != nil {
			return nil, err
		}
	}

	items := make([]domorder.Item, 0, len(input.Items))
	for _, in := range input.Items {
		items = append(items, domorder.Item{
			ProductID: in.ProductID,
			Ref:       domorder.LineRef{VariantID: in.VariantID, RequestedID: in.RequestedID},
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
		})
	}

	o, err = domorder.New(input.UserID, addressID, items,
		input.Subtotal, input.ShippingFee, input.Total,
		input.PaymentMethod, input.PaymentRef)
	if err != nil {
		return nil, err
	}

	if err = s.orders.Create(ctx, o); err != nil {
		return nil, err
	}

	s.removeFromCart(ctx, o)
	s.cacheStatus(ctx, o.ID, o.Status)
	s.publish(ctx, domorder.NewPlacedEvent(o))

	return o, nil
}

// Verify reserves stock for every item of a processing order. The status
// guard, the conditional decrements, the verified-at stamp and the audit
// record commit as one unit; a second call finds the order already verified
// and fails without touching stock again.
func (s *Service) Verify(ctx context.Context, orderID int64, actor audit.Actor) (o *domorder.Order, err error) {
	ctx, done := s.begin(ctx, "order.verify",
		attribute.Int64("order.id", orderID),
	)
	defer func() { done(err) }()

	rec := audit.NewRecord(actor, audit.ActionVerify, audit.EntityOrder, orderID,
		fmt.Sprintf("verified order #%d", orderID))

	o, levels, err := s.orders.Verify(ctx, orderID, rec)
	if err != nil {
		if errors.Is(err, inventory.ErrInsufficientStock) {
			s.resCounter.Add(1, observability.L("outcome", "rejected"))
		}
		return nil, err
	}
	s.resCounter.Add(1, observability.L("outcome", "reserved"))

	s.cacheStatus(ctx, o.ID, o.Status)
	s.publish(ctx, domorder.NewTransitionedEvent(o, domorder.StatusProcessing))
	for _, l := range levels {
		if l.Low() {
			s.publish(ctx, inventory.NewStockLowEvent(l))
		}
	}
	return o, nil
}

// StartShipping moves a verified order into shipping. Tracking checkpoints
// are curated separately by staff and are not written here.
func (s *Service) StartShipping(ctx context.Context, orderID int64, actor audit.Actor) (*domorder.Order, error) {
	rec := audit.NewRecord(actor, audit.ActionShip, audit.EntityOrder, orderID,
		fmt.Sprintf("started shipping order #%d", orderID))
	return s.advance(ctx, "order.ship", orderID, domorder.StatusVerified, domorder.StatusShipping, &rec)
}

// MarkReceived records that the shipment reached the buyer.
func (s *Service) MarkReceived(ctx context.Context, orderID int64, actor audit.Actor) (*domorder.Order, error) {
	rec := audit.NewRecord(actor, audit.ActionReceive, audit.EntityOrder, orderID,
		fmt.Sprintf("marked order #%d received", orderID))
	return s.advance(ctx, "order.receive", orderID, domorder.StatusShipping, domorder.StatusReceived, &rec)
}

// Complete is the buyer's confirmation after receipt. Stock was committed at
// verification, so no inventory or tracking side effects occur here.
func (s *Service) Complete(ctx context.Context, orderID int64, actor audit.Actor) (o *domorder.Order, err error) {
	ctx, done := s.begin(ctx, "order.complete",
		attribute.Int64("order.id", orderID),
	)
	defer func() { done(err) }()

	if err = s.requireOwner(ctx, orderID, actor); err != nil {
		return nil, err
	}
	rec := audit.NewRecord(actor, audit.ActionComplete, audit.EntityOrder, orderID,
		fmt.Sprintf("buyer confirmed receipt of order #%d", orderID))
	o, err = s.orders.Transition(ctx, orderID, domorder.StatusReceived, domorder.StatusCompleted, &rec)
	if err != nil {
		return nil, err
	}
	s.cacheStatus(ctx, o.ID, o.Status)
	s.publish(ctx, domorder.NewTransitionedEvent(o, domorder.StatusReceived))
	return o, nil
}

// Cancel withdraws an order that is still processing. No stock was reserved
// at that point, so nothing is released.
func (s *Service) Cancel(ctx context.Context, orderID int64, actor audit.Actor) (o *domorder.Order, err error) {
	ctx, done := s.begin(ctx, "order.cancel",
		attribute.Int64("order.id", orderID),
	)
	defer func() { done(err) }()

	if !actor.IsStaff() {
		if err = s.requireOwner(ctx, orderID, actor); err != nil {
			return nil, err
		}
	}
	rec := audit.NewRecord(actor, audit.ActionCancel, audit.EntityOrder, orderID,
		fmt.Sprintf("cancelled order #%d", orderID))
	o, err = s.orders.Transition(ctx, orderID, domorder.StatusProcessing, domorder.StatusCancelled, &rec)
	if err != nil {
		return nil, err
	}
	s.cacheStatus(ctx, o.ID, o.Status)
	s.publish(ctx, domorder.NewTransitionedEvent(o, domorder.StatusProcessing))
	return o, nil
}

// Get returns the order with its items. Buyers only see their own orders; a
// staff read clears the unread flag.
func (s *Service) Get(ctx context.Context, orderID int64, actor audit.Actor) (*domorder.Order, error) {
	o, err := s.orders.Find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && o.UserID != actor.ID {
		return nil, ErrForbidden
	}
	if actor.IsStaff() && o.Unread {
		if err := s.orders.MarkRead(ctx, orderID); err != nil {
			logctx.FromOr(ctx, s.log).Warn("order_mark_read_failed",
				observability.F("order_id", orderID),
				observability.F("error", err.Error()),
			)
		}
		o.Unread = false
	}
	return o, nil
}

// Authorize confirms the actor may read the order. Staff see everything;
// buyers only their own orders.
func (s *Service) Authorize(ctx context.Context, orderID int64, actor audit.Actor) error {
	if actor.IsStaff() {
		return nil
	}
	return s.requireOwner(ctx, orderID, actor)
}

// Status serves buyer polling through the read cache, falling back to the
// repository on a miss. Callers authorize the read first; the cache holds no
// ownership information.
func (s *Service) Status(ctx context.Context, orderID int64) (domorder.Status, error) {
	if s.cache != nil {
		if st, ok, err := s.cache.GetStatus(ctx, orderID); err == nil && ok {
			return st, nil
		}
	}
	o, err := s.orders.Find(ctx, orderID)
	if err != nil {
		return "", err
	}
	s.cacheStatus(ctx, o.ID, o.Status)
	return o.Status, nil
}

// List returns orders matching the filter. Non-staff actors are pinned to
// their own orders.
func (s *Service) List(ctx context.Context, f domorder.Filter, actor audit.Actor) ([]*domorder.Order, error) {
	if !actor.IsStaff() {
		f.UserID = actor.ID
		f.UnreadOnly = false
	}
	return s.orders.List(ctx, f)
}

func (s *Service) advance(ctx context.Context, useCase string, orderID int64, from, to domorder.Status, rec *audit.Record) (o *domorder.Order, err error) {
	ctx, done := s.begin(ctx, useCase,
		attribute.Int64("order.id", orderID),
		attribute.String("order.to", string(to)),
	)
	defer func() { done(err) }()

	o, err = s.orders.Transition(ctx, orderID, from, to, rec)
	if err != nil {
		return nil, err
	}
	s.cacheStatus(ctx, o.ID, o.Status)
	s.publish(ctx, domorder.NewTransitionedEvent(o, from))
	return o, nil
}

func (s *Service) requireOwner(ctx context.Context, orderID int64, actor audit.Actor) error {
	o, err := s.orders.Find(ctx, orderID)
	if err != nil {
		return err
	}
	if o.UserID != actor.ID {
		return ErrForbidden
	}
	return nil
}

func (s *Service) removeFromCart(ctx context.Context, o *domorder.Order) {
	if s.cart == nil {
		return
	}
	logger := logctx.FromOr(ctx, s.log)
	for _, it := range o.Items {
		if err := s.cart.RemoveItem(ctx, o.UserID, it.Ref); err != nil {
			logger.Warn("cart_remove_failed",
				observability.F("order_id", o.ID),
				observability.F("variant_id", it.Ref.VariantID),
				observability.F("requested_id", it.Ref.RequestedID),
				observability.F("error", err.Error()),
			)
		}
	}
}

func (s *Service) cacheStatus(ctx context.Context, orderID int64, status domorder.Status) {
	if s.cache == nil {
		return
	}
	cacheCtx := context.WithoutCancel(ctx)
	err := s.cache.SetStatus(cacheCtx, orderID, status)
	if err == nil {
		return
	}
	logctx.FromOr(ctx, s.log).Warn("status_cache_set_failed",
		observability.F("order_id", orderID),
		observability.F("error", err.Error()),
	)
	// A transition already committed; a stale entry must not outlive it.
	if err := s.cache.Invalidate(cacheCtx, orderID); err != nil {
		logctx.FromOr(ctx, s.log).Warn("status_cache_invalidate_failed",
			observability.F("order_id", orderID),
			observability.F("error", err.Error()),
		)
	}
}

func (s *Service) publish(ctx context.Context, e domoutbox.Event) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, e); err != nil {
		logctx.FromOr(ctx, s.log).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}

// begin opens the use-case span and returns a closer that records the span
// status, RED metrics and the use_case_done log line.
func (s *Service) begin(ctx context.Context, useCase string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	attrs = append(attrs, attribute.String("use_case", useCase))
	ctx, span := s.obs.Tracer().Start(ctx, spanPrefix+useCase, attrs...)
	start := time.Now()

	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCase))
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With(
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	ctx = logctx.With(ctx, logger)

	return ctx, func(err error) {
		lat := time.Since(start).Seconds()
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "OK")
		}
		span.End()

		s.reqCounter.Add(1,
			observability.L("use_case", useCase),
			observability.L("outcome", outcome),
		)
		s.durHistogram.Observe(lat,
			observability.L("use_case", useCase),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("latency_seconds", lat),
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}
}

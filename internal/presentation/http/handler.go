package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	appinv "github.com/mallkit/storefront/internal/application/inventory"
	apporder "github.com/mallkit/storefront/internal/application/order"
	apptracking "github.com/mallkit/storefront/internal/application/tracking"
	"github.com/mallkit/storefront/internal/domain/audit"
	dominv "github.com/mallkit/storefront/internal/domain/inventory"
	domorder "github.com/mallkit/storefront/internal/domain/order"
	domtracking "github.com/mallkit/storefront/internal/domain/tracking"
	"github.com/mallkit/storefront/internal/observability"
)

type Handler struct {
	orders    *apporder.Service
	tracking  *apptracking.Service
	inventory *appinv.Service
	jwtSecret string
	obs       observability.Observability
}

func NewHandler(
	orders *apporder.Service,
	tracking *apptracking.Service,
	inventory *appinv.Service,
	jwtSecret string,
	obs observability.Observability,
) *Handler {
	if obs == nil {
		obs = observability.Nop()
	}
	return &Handler{
		orders:    orders,
		tracking:  tracking,
		inventory: inventory,
		jwtSecret: jwtSecret,
		obs:       obs,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(ObservabilityMiddleware(h.obs))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(Auth(h.jwtSecret))

		r.Route("/api/orders", func(r chi.Router) {
			r.Post("/", h.placeOrder)
			r.Get("/", h.listOwnOrders)
			r.Get("/{id}", h.getOrder)
			r.Get("/{id}/status", h.orderStatus)
			r.Post("/{id}/complete", h.completeOrder)
			r.Post("/{id}/cancel", h.cancelOrder)
			r.Get("/{id}/tracking", h.listTracking(domtracking.OldestFirst))
		})

		r.Route("/api/staff", func(r chi.Router) {
			r.Use(RequireStaff)
			r.Get("/orders", h.listOrders)
			r.Get("/orders/{id}", h.getOrder)
			r.Post("/orders/{id}/verify", h.verifyOrder)
			r.Post("/orders/{id}/ship", h.shipOrder)
			r.Post("/orders/{id}/receive", h.receiveOrder)
			r.Post("/orders/{id}/cancel", h.cancelOrder)
			r.Get("/orders/{id}/tracking", h.listTracking(domtracking.NewestFirst))
			r.Post("/orders/{id}/tracking", h.addTracking)
			r.Put("/tracking/{entryID}", h.editTracking)
			r.Delete("/tracking/{entryID}", h.deleteTracking)
			r.Get("/stock/{variantID}", h.getStock)
			r.Put("/stock/{variantID}", h.putStock)
		})
	})

	return r
}

type itemRequest struct {
	ProductID   int64 `json:"product_id"`
	VariantID   int64 `json:"variant_id,omitempty"`
	RequestedID int64 `json:"requested_id,omitempty"`
	Quantity    int   `json:"quantity"`
	UnitPrice   int64 `json:"unit_price"`
}

type placeOrderRequest struct {
	AddressID     int64         `json:"address_id,omitempty"`
	Items         []itemRequest `json:"items"`
	Subtotal      int64         `json:"subtotal"`
	ShippingFee   int64         `json:"shipping_fee"`
	Total         int64         `json:"total"`
	PaymentMethod string        `json:"payment_method"`
	PaymentRef    string        `json:"payment_ref,omitempty"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	items := make([]apporder.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, apporder.ItemInput{
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			RequestedID: it.RequestedID,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}

	o, err := h.orders.PlaceOrder(r.Context(), apporder.PlaceOrderInput{
		UserID:        actor.ID,
		AddressID:     req.AddressID,
		Items:         items,
		Subtotal:      req.Subtotal,
		ShippingFee:   req.ShippingFee,
		Total:         req.Total,
		PaymentMethod: req.PaymentMethod,
		PaymentRef:    req.PaymentRef,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderView(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	o, err := h.orders.Get(r.Context(), id, actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderView(o))
}

func (h *Handler) orderStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.orders.Authorize(r.Context(), id, actor); err != nil {
		writeDomainError(w, err)
		return
	}
	status, err := h.orders.Status(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (h *Handler) listOwnOrders(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	h.writeOrderList(w, r, domorder.Filter{UserID: actor.ID}, actor)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	f := domorder.Filter{
		Status:     domorder.Status(r.URL.Query().Get("status")),
		UnreadOnly: r.URL.Query().Get("unread") == "true",
	}
	if f.Status != "" && !f.Status.Valid() {
		writeError(w, http.StatusBadRequest, errors.New("unknown status filter"))
		return
	}
	h.writeOrderList(w, r, f, actor)
}

func (h *Handler) writeOrderList(w http.ResponseWriter, r *http.Request, f domorder.Filter, actor audit.Actor) {
	orders, err := h.orders.List(r.Context(), f, actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	views := make([]*orderResponse, 0, len(orders))
	for _, o := range orders {
		views = append(views, orderView(o))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) verifyOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.Verify)
}

func (h *Handler) shipOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.StartShipping)
}

func (h *Handler) receiveOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.MarkReceived)
}

func (h *Handler) completeOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.Complete)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orders.Cancel)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, int64, audit.Actor) (*domorder.Order, error)) {
	actor, _ := ActorFrom(r.Context())
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	o, err := op(r.Context(), id, actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderView(o))
}

type trackingRequest struct {
	Status   string     `json:"status"`
	Location string     `json:"location"`
	At       *time.Time `json:"at,omitempty"`
}

func (h *Handler) addTracking(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	orderID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req trackingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	at := time.Time{}
	if req.At != nil {
		at = *req.At
	}
	entry, err := h.tracking.Add(r.Context(), orderID, req.Status, req.Location, at, actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, trackingView(entry))
}

type trackingEditRequest struct {
	Status   *string    `json:"status,omitempty"`
	Location *string    `json:"location,omitempty"`
	At       *time.Time `json:"at,omitempty"`
}

func (h *Handler) editTracking(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	entryID, err := parseID(chi.URLParam(r, "entryID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req trackingEditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entry, err := h.tracking.Edit(r.Context(), entryID, apptracking.EditInput{
		Status:   req.Status,
		Location: req.Location,
		At:       req.At,
	}, actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trackingView(entry))
}

func (h *Handler) deleteTracking(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	entryID, err := parseID(chi.URLParam(r, "entryID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.tracking.Remove(r.Context(), entryID, actor); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listTracking(sort domtracking.SortOrder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFrom(r.Context())
		orderID, err := parseID(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := h.orders.Authorize(r.Context(), orderID, actor); err != nil {
			writeDomainError(w, err)
			return
		}
		entries, err := h.tracking.List(r.Context(), orderID, sort)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		views := make([]*trackingResponse, 0, len(entries))
		for _, e := range entries {
			views = append(views, trackingView(e))
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	variantID, err := parseID(chi.URLParam(r, "variantID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	stock, err := h.inventory.Get(r.Context(), variantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockView(stock))
}

type stockRequest struct {
	Quantity     int `json:"quantity"`
	LowThreshold int `json:"low_threshold"`
}

func (h *Handler) putStock(w http.ResponseWriter, r *http.Request) {
	variantID, err := parseID(chi.URLParam(r, "variantID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req stockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	stock, err := h.inventory.Restock(r.Context(), variantID, req.Quantity, req.LowThreshold)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockView(stock))
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("malformed identifier")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	var insufficientErr *dominv.InsufficientStockError
	var transitionErr *domorder.InvalidTransitionError
	switch {
	case errors.As(err, &insufficientErr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      insufficientErr.Error(),
			"variant_id": insufficientErr.VariantID,
			"requested":  insufficientErr.Requested,
			"available":  insufficientErr.Available,
		})
	case errors.As(err, &transitionErr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":    transitionErr.Error(),
			"current":  string(transitionErr.Current),
			"required": string(transitionErr.Expected),
		})
	case errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, domtracking.ErrNotFound),
		errors.Is(err, dominv.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domorder.ErrInvalidTransition),
		errors.Is(err, dominv.ErrInsufficientStock):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, apporder.ErrForbidden):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, apporder.ErrEmptyCart),
		errors.Is(err, apporder.ErrNoDefaultAddress),
		errors.Is(err, domorder.ErrEmptyOrder),
		errors.Is(err, domorder.ErrInvalidQuantity),
		errors.Is(err, domorder.ErrInvalidAmount),
		errors.Is(err, domorder.ErrLineRef),
		errors.Is(err, dominv.ErrInvalidQuantity),
		errors.Is(err, domtracking.ErrStatusMissing):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

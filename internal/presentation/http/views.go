package httptransport

import (
	"time"

	"github.com/mallkit/storefront/internal/domain/inventory"
	"github.com/mallkit/storefront/internal/domain/order"
	"github.com/mallkit/storefront/internal/domain/tracking"
)

type itemResponse struct {
	ID          int64 `json:"id"`
	ProductID   int64 `json:"product_id"`
	VariantID   int64 `json:"variant_id,omitempty"`
	RequestedID int64 `json:"requested_id,omitempty"`
	Quantity    int   `json:"quantity"`
	UnitPrice   int64 `json:"unit_price"`
}

type orderResponse struct {
	ID            int64          `json:"id"`
	UserID        int64          `json:"user_id"`
	AddressID     int64          `json:"address_id"`
	Subtotal      int64          `json:"subtotal"`
	ShippingFee   int64          `json:"shipping_fee"`
	Total         int64          `json:"total"`
	PaymentMethod string         `json:"payment_method"`
	PaymentRef    string         `json:"payment_ref,omitempty"`
	Status        string         `json:"status"`
	Unread        bool           `json:"unread"`
	PlacedAt      time.Time      `json:"placed_at"`
	VerifiedAt    *time.Time     `json:"verified_at,omitempty"`
	ShippingAt    *time.Time     `json:"shipping_at,omitempty"`
	ReceivedAt    *time.Time     `json:"received_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	CancelledAt   *time.Time     `json:"cancelled_at,omitempty"`
	Items         []itemResponse `json:"items"`
}

func orderView(o *order.Order) *orderResponse {
	items := make([]itemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			VariantID:   it.Ref.VariantID,
			RequestedID: it.Ref.RequestedID,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	return &orderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		AddressID:     o.AddressID,
		Subtotal:      o.Subtotal,
		ShippingFee:   o.ShippingFee,
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
		PaymentRef:    o.PaymentRef,
		Status:        string(o.Status),
		Unread:        o.Unread,
		PlacedAt:      o.PlacedAt,
		VerifiedAt:    o.VerifiedAt,
		ShippingAt:    o.ShippingAt,
		ReceivedAt:    o.ReceivedAt,
		CompletedAt:   o.CompletedAt,
		CancelledAt:   o.CancelledAt,
		Items:         items,
	}
}

type trackingResponse struct {
	ID       int64     `json:"id"`
	OrderID  int64     `json:"order_id"`
	Status   string    `json:"status"`
	Location string    `json:"location,omitempty"`
	At       time.Time `json:"at"`
}

func trackingView(e *tracking.Entry) *trackingResponse {
	return &trackingResponse{
		ID:       e.ID,
		OrderID:  e.OrderID,
		Status:   e.Status,
		Location: e.Location,
		At:       e.At,
	}
}

type stockResponse struct {
	VariantID    int64     `json:"variant_id"`
	Quantity     int       `json:"quantity"`
	LowThreshold int       `json:"low_threshold"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func stockView(s *inventory.Stock) *stockResponse {
	return &stockResponse{
		VariantID:    s.VariantID,
		Quantity:     s.Quantity,
		LowThreshold: s.LowThreshold,
		UpdatedAt:    s.UpdatedAt,
	}
}

package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appinv "github.com/mallkit/storefront/internal/application/inventory"
	apporder "github.com/mallkit/storefront/internal/application/order"
	apptracking "github.com/mallkit/storefront/internal/application/tracking"
	"github.com/mallkit/storefront/internal/domain/audit"
	dominv "github.com/mallkit/storefront/internal/domain/inventory"
	"github.com/mallkit/storefront/internal/infrastructure/memory"
)

const testSecret = "test-secret"

type env struct {
	router    http.Handler
	ledger    *memory.InventoryLedger
	addresses *memory.AddressBook
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ledger := memory.NewInventoryLedger()
	auditLog := memory.NewAuditLog()
	orders := memory.NewOrderRepository(ledger, auditLog)
	entries := memory.NewTrackingRepository()
	addresses := memory.NewAddressBook()
	addresses.SetDefault(7, 3)

	orderService := apporder.NewService(orders, addresses, memory.NewCart(), nil, nil, nil)
	trackingService := apptracking.NewService(entries, orders, auditLog, nil)
	inventoryService := appinv.NewService(ledger, nil)

	h := NewHandler(orderService, trackingService, inventoryService, testSecret, nil)
	return &env{router: h.Router(), ledger: ledger, addresses: addresses}
}

func token(t *testing.T, userID int64, role string) string {
	t.Helper()
	claims := actorClaims{
		Name: "tester",
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (e *env) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func placeBody() map[string]any {
	return map[string]any{
		"items": []map[string]any{
			{"product_id": 1, "variant_id": 10, "quantity": 2, "unit_price": 1500},
		},
		"subtotal":       3000,
		"shipping_fee":   60,
		"total":          3060,
		"payment_method": "credit_card",
	}
}

func (e *env) place(t *testing.T, bearer string) int64 {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/orders", bearer, placeBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[orderResponse](t, rec).ID
}

func (e *env) stock(t *testing.T, variantID int64, quantity, threshold int) {
	t.Helper()
	stock, err := dominv.NewStock(variantID, quantity, threshold)
	require.NoError(t, err)
	require.NoError(t, e.ledger.Put(context.Background(), stock))
}

func TestRouter_Unauthenticated(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/api/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/orders", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_BuyerCannotReachStaffRoutes(t *testing.T) {
	e := newEnv(t)
	buyer := token(t, 7, audit.RoleBuyer)

	rec := e.do(t, http.MethodPost, "/api/staff/orders/100001/verify", buyer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_Health(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPlaceOrder_Endpoint(t *testing.T) {
	e := newEnv(t)
	buyer := token(t, 7, audit.RoleBuyer)

	rec := e.do(t, http.MethodPost, "/api/orders", buyer, placeBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decodeBody[orderResponse](t, rec)
	assert.GreaterOrEqual(t, got.ID, int64(100000))
	assert.Equal(t, "processing", got.Status)
	assert.Equal(t, int64(3), got.AddressID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(10), got.Items[0].VariantID)
}

func TestPlaceOrder_UnknownFieldRejected(t *testing.T) {
	e := newEnv(t)
	buyer := token(t, 7, audit.RoleBuyer)

	body := placeBody()
	body["surprise"] = true
	rec := e.do(t, http.MethodPost, "/api/orders", buyer, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrder_NoDefaultAddress(t *testing.T) {
	e := newEnv(t)
	stranger := token(t, 9, audit.RoleBuyer)

	rec := e.do(t, http.MethodPost, "/api/orders", stranger, placeBody())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrder_Ownership(t *testing.T) {
	e := newEnv(t)
	buyer := token(t, 7, audit.RoleBuyer)
	e.addresses.SetDefault(8, 4)
	stranger := token(t, 8, audit.RoleBuyer)
	id := e.place(t, buyer)

	rec := e.do(t, http.MethodGet, fmt.Sprintf("/api/orders/%d", id), buyer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, fmt.Sprintf("/api/orders/%d", id), stranger, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/orders/999999", buyer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/orders/abc", buyer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusAndTracking_Ownership(t *testing.T) {
	e := newEnv(t)
	buyer := token(t, 7, audit.RoleBuyer)
	e.addresses.SetDefault(8, 4)
	stranger := token(t, 8, audit.RoleBuyer)
	staff := token(t, 1, audit.RoleStaff)
	id := e.place(t, buyer)

	// every buyer-facing read of the order is gated the same way
	rec := e.do(t, http.MethodGet, fmt.Sprintf("/api/orders/%d/status", id), stranger, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.do(t, http.MethodGet, fmt.Sprintf("/api/orders/%d/tracking", id), stranger, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodGet, fmt.Sprintf("/api/orders/%d/status", id), buyer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodGet, fmt.Sprintf("/api/orders/%d/tracking", id), buyer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, fmt.Sprintf("/api/staff/orders/%d/tracking", id), staff, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerify_Endpoint(t *testing.T) {
	e := newEnv(t)
	e.stock(t, 10, 5, 0)
	buyer := token(t, 7, audit.RoleBuyer)
	staff := token(t, 1, audit.RoleStaff)
	id := e.place(t, buyer)

	rec := e.do(t, http.MethodPost, fmt.Sprintf("/api/staff/orders/%d/verify", id), staff, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeBody[orderResponse](t, rec)
	assert.Equal(t, "verified", got.Status)
	assert.NotNil(t, got.VerifiedAt)

	// replay is a conflict and reports the actual status
	rec = e.do(t, http.MethodPost, fmt.Sprintf("/api/staff/orders/%d/verify", id), staff, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	conflict := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "verified", conflict["current"])
	assert.Equal(t, "processing", conflict["required"])
}

func TestVerify_InsufficientStockDetail(t *testing.T) {
	e := newEnv(t)
	e.stock(t, 10, 1, 0)
	buyer := token(t, 7, audit.RoleBuyer)
	staff := token(t, 1, audit.RoleStaff)
	id := e.place(t, buyer)

	rec := e.do(t, http.MethodPost, fmt.Sprintf("/api/staff/orders/%d/verify", id), staff, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	detail := decodeBody[map[string]any](t, rec)
	assert.Equal(t, float64(10), detail["variant_id"])
	assert.Equal(t, float64(2), detail["requested"])
	assert.Equal(t, float64(1), detail["available"])
}

func TestLifecycle_Endpoints(t *testing.T) {
	e := newEnv(t)
	e.stock(t, 10, 5, 0)
	buyer := token(t, 7, audit.RoleBuyer)
	staff := token(t, 1, audit.RoleStaff)
	id := e.place(t, buyer)

	for _, step := range []string{"verify", "ship", "receive"} {
		rec := e.do(t, http.MethodPost, fmt.Sprintf("/api/staff/orders/%d/%s", id, step), staff, nil)
		require.Equal(t, http.StatusOK, rec.Code, "step %s: %s", step, rec.Body.String())
	}

	rec := e.do(t, http.MethodPost, fmt.Sprintf("/api/orders/%d/complete", id), buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", decodeBody[orderResponse](t, rec).Status)

	rec = e.do(t, http.MethodGet, fmt.Sprintf("/api/orders/%d/status", id), buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", decodeBody[map[string]string](t, rec)["status"])
}

func TestCancel_Endpoint(t *testing.T) {
	e := newEnv(t)
	buyer := token(t, 7, audit.RoleBuyer)
	id := e.place(t, buyer)

	rec := e.do(t, http.MethodPost, fmt.Sprintf("/api/orders/%d/cancel", id), buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decodeBody[orderResponse](t, rec).Status)
}

func TestStaffList_StatusFilter(t *testing.T) {
	e := newEnv(t)
	buyer := token(t, 7, audit.RoleBuyer)
	staff := token(t, 1, audit.RoleStaff)
	e.place(t, buyer)

	rec := e.do(t, http.MethodGet, "/api/staff/orders?status=processing", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]orderResponse](t, rec), 1)

	rec = e.do(t, http.MethodGet, "/api/staff/orders?status=shipping", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]orderResponse](t, rec))

	rec = e.do(t, http.MethodGet, "/api/staff/orders?status=bogus", staff, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTracking_Endpoints(t *testing.T) {
	e := newEnv(t)
	buyer := token(t, 7, audit.RoleBuyer)
	staff := token(t, 1, audit.RoleStaff)
	id := e.place(t, buyer)

	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	rec := e.do(t, http.MethodPost, fmt.Sprintf("/api/staff/orders/%d/tracking", id), staff,
		map[string]any{"status": "picked_up", "location": "warehouse A", "at": base})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decodeBody[trackingResponse](t, rec)

	rec = e.do(t, http.MethodPost, fmt.Sprintf("/api/staff/orders/%d/tracking", id), staff,
		map[string]any{"status": "in_transit", "at": base.Add(time.Hour)})
	require.Equal(t, http.StatusCreated, rec.Code)

	// buyer view is oldest-first, staff view newest-first
	rec = e.do(t, http.MethodGet, fmt.Sprintf("/api/orders/%d/tracking", id), buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	buyerView := decodeBody[[]trackingResponse](t, rec)
	require.Len(t, buyerView, 2)
	assert.Equal(t, "picked_up", buyerView[0].Status)

	rec = e.do(t, http.MethodGet, fmt.Sprintf("/api/staff/orders/%d/tracking", id), staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	staffView := decodeBody[[]trackingResponse](t, rec)
	require.Len(t, staffView, 2)
	assert.Equal(t, "in_transit", staffView[0].Status)

	// edit only the location
	rec = e.do(t, http.MethodPut, fmt.Sprintf("/api/staff/tracking/%d", first.ID), staff,
		map[string]any{"location": "sorting hub"})
	require.Equal(t, http.StatusOK, rec.Code)
	edited := decodeBody[trackingResponse](t, rec)
	assert.Equal(t, "picked_up", edited.Status)
	assert.Equal(t, "sorting hub", edited.Location)

	rec = e.do(t, http.MethodDelete, fmt.Sprintf("/api/staff/tracking/%d", first.ID), staff, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, http.MethodDelete, fmt.Sprintf("/api/staff/tracking/%d", first.ID), staff, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStock_Endpoints(t *testing.T) {
	e := newEnv(t)
	staff := token(t, 1, audit.RoleStaff)

	rec := e.do(t, http.MethodPut, "/api/staff/stock/10", staff,
		map[string]any{"quantity": 5, "low_threshold": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 5, decodeBody[stockResponse](t, rec).Quantity)

	rec = e.do(t, http.MethodGet, "/api/staff/stock/10", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeBody[stockResponse](t, rec).LowThreshold)

	rec = e.do(t, http.MethodGet, "/api/staff/stock/99", staff, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPut, "/api/staff/stock/10", staff,
		map[string]any{"quantity": -1, "low_threshold": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

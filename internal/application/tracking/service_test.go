package tracking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apptracking "github.com/mallkit/storefront/internal/application/tracking"
	"github.com/mallkit/storefront/internal/domain/audit"
	domorder "github.com/mallkit/storefront/internal/domain/order"
	domtracking "github.com/mallkit/storefront/internal/domain/tracking"
	"github.com/mallkit/storefront/internal/infrastructure/memory"
)

type fixture struct {
	service  *apptracking.Service
	auditLog *memory.AuditLog
	orderID  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	auditLog := memory.NewAuditLog()
	orders := memory.NewOrderRepository(memory.NewInventoryLedger(), auditLog)

	o, err := domorder.New(7, 3,
		[]domorder.Item{{ProductID: 1, Ref: domorder.VariantRef(10), Quantity: 1, UnitPrice: 100}},
		100, 0, 100, "credit_card", "")
	require.NoError(t, err)
	require.NoError(t, orders.Create(context.Background(), o))

	return &fixture{
		service:  apptracking.NewService(memory.NewTrackingRepository(), orders, auditLog, nil),
		auditLog: auditLog,
		orderID:  o.ID,
	}
}

func staff() audit.Actor { return audit.Actor{ID: 1, Name: "ops", Role: audit.RoleStaff} }

func TestAdd(t *testing.T) {
	f := newFixture(t)

	entry, err := f.service.Add(context.Background(), f.orderID, "picked_up", "warehouse A", time.Time{}, staff())
	require.NoError(t, err)
	assert.NotZero(t, entry.ID)
	assert.False(t, entry.At.IsZero(), "missing timestamp defaults to now")

	records := f.auditLog.Records()
	require.Len(t, records, 1)
	assert.Equal(t, audit.ActionTrackingAdd, records[0].Action)
	assert.Equal(t, audit.EntityTracking, records[0].EntityType)
}

func TestAdd_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Add(context.Background(), 999999, "picked_up", "", time.Time{}, staff())
	assert.ErrorIs(t, err, domorder.ErrNotFound)
}

func TestAdd_MissingStatus(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Add(context.Background(), f.orderID, "", "somewhere", time.Time{}, staff())
	assert.ErrorIs(t, err, domtracking.ErrStatusMissing)
}

func TestEdit_OnlyGivenFieldsChange(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	entry, err := f.service.Add(context.Background(), f.orderID, "picked_up", "warehouse A", at, staff())
	require.NoError(t, err)

	location := "sorting hub"
	edited, err := f.service.Edit(context.Background(), entry.ID, apptracking.EditInput{Location: &location}, staff())
	require.NoError(t, err)

	assert.Equal(t, "picked_up", edited.Status)
	assert.Equal(t, "sorting hub", edited.Location)
	assert.Equal(t, at, edited.At)

	records := f.auditLog.Records()
	require.Len(t, records, 2)
	assert.Equal(t, audit.ActionTrackingEdit, records[1].Action)
	assert.Contains(t, records[1].Details, "warehouse A")
	assert.Contains(t, records[1].Details, "sorting hub")
}

func TestEdit_CannotBlankStatus(t *testing.T) {
	f := newFixture(t)
	entry, err := f.service.Add(context.Background(), f.orderID, "picked_up", "", time.Time{}, staff())
	require.NoError(t, err)

	blank := ""
	_, err = f.service.Edit(context.Background(), entry.ID, apptracking.EditInput{Status: &blank}, staff())
	assert.ErrorIs(t, err, domtracking.ErrStatusMissing)
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	entry, err := f.service.Add(context.Background(), f.orderID, "picked_up", "warehouse A", time.Time{}, staff())
	require.NoError(t, err)

	require.NoError(t, f.service.Remove(context.Background(), entry.ID, staff()))
	assert.ErrorIs(t, f.service.Remove(context.Background(), entry.ID, staff()), domtracking.ErrNotFound)

	records := f.auditLog.Records()
	require.Len(t, records, 2)
	assert.Equal(t, audit.ActionTrackingDelete, records[1].Action)
	assert.Contains(t, records[1].Details, "picked_up", "removed values survive in the audit trail")
}

func TestList_Orderings(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	_, err := f.service.Add(context.Background(), f.orderID, "picked_up", "", base, staff())
	require.NoError(t, err)
	_, err = f.service.Add(context.Background(), f.orderID, "in_transit", "", base.Add(time.Hour), staff())
	require.NoError(t, err)

	buyerView, err := f.service.List(context.Background(), f.orderID, domtracking.OldestFirst)
	require.NoError(t, err)
	require.Len(t, buyerView, 2)
	assert.Equal(t, "picked_up", buyerView[0].Status)

	staffView, err := f.service.List(context.Background(), f.orderID, domtracking.NewestFirst)
	require.NoError(t, err)
	require.Len(t, staffView, 2)
	assert.Equal(t, "in_transit", staffView[0].Status)
}

package order

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validItems() []Item {
	return []Item{
		{ProductID: 1, Ref: VariantRef(10), Quantity: 2, UnitPrice: 1500},
	}
}

func TestNew_Valid(t *testing.T) {
	o, err := New(7, 3, validItems(), 3000, 60, 3060, "credit_card", "txn-1")
	require.NoError(t, err)

	assert.Zero(t, o.ID, "identifier is allocated by the repository")
	assert.Equal(t, StatusProcessing, o.Status)
	assert.True(t, o.Unread)
	assert.False(t, o.PlacedAt.IsZero())
	assert.Nil(t, o.VerifiedAt)
}

func TestNew_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		items   []Item
		total   int64
		wantErr error
	}{
		{"no items", nil, 100, ErrEmptyOrder},
		{"zero quantity", []Item{{Ref: VariantRef(10), Quantity: 0, UnitPrice: 100}}, 100, ErrInvalidQuantity},
		{"negative quantity", []Item{{Ref: VariantRef(10), Quantity: -1, UnitPrice: 100}}, 100, ErrInvalidQuantity},
		{"negative unit price", []Item{{Ref: VariantRef(10), Quantity: 1, UnitPrice: -5}}, 100, ErrInvalidAmount},
		{"negative total", validItems(), -1, ErrInvalidAmount},
		{"both refs set", []Item{{Ref: LineRef{VariantID: 1, RequestedID: 2}, Quantity: 1, UnitPrice: 100}}, 100, ErrLineRef},
		{"no ref set", []Item{{Quantity: 1, UnitPrice: 100}}, 100, ErrLineRef},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(7, 3, tt.items, 100, 0, tt.total, "credit_card", "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLineRef(t *testing.T) {
	assert.NoError(t, VariantRef(5).Validate())
	assert.NoError(t, RequestedRef(5).Validate())
	assert.False(t, VariantRef(5).IsRequested())
	assert.True(t, RequestedRef(5).IsRequested())
}

func TestCanTransition(t *testing.T) {
	allowed := map[Status]Status{
		StatusProcessing: StatusVerified,
		StatusVerified:   StatusShipping,
		StatusShipping:   StatusReceived,
		StatusReceived:   StatusCompleted,
	}
	statuses := []Status{StatusProcessing, StatusVerified, StatusShipping, StatusReceived, StatusCompleted, StatusCancelled}
	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[from] == to || (from == StatusProcessing && to == StatusCancelled)
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestAdvance_StampsTimestamps(t *testing.T) {
	o, err := New(7, 3, validItems(), 3000, 60, 3060, "credit_card", "")
	require.NoError(t, err)

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, o.Advance(StatusVerified, at))
	require.NotNil(t, o.VerifiedAt)
	assert.Equal(t, at, *o.VerifiedAt)
	assert.Nil(t, o.ShippingAt)

	require.NoError(t, o.Advance(StatusShipping, at.Add(time.Hour)))
	require.NoError(t, o.Advance(StatusReceived, at.Add(2*time.Hour)))
	require.NoError(t, o.Advance(StatusCompleted, at.Add(3*time.Hour)))
	assert.Equal(t, StatusCompleted, o.Status)
	assert.NotNil(t, o.CompletedAt)
}

func TestAdvance_InvalidTransition(t *testing.T) {
	o, err := New(7, 3, validItems(), 3000, 60, 3060, "credit_card", "")
	require.NoError(t, err)

	err = o.Advance(StatusShipping, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	var transitionErr *InvalidTransitionError
	require.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, StatusProcessing, transitionErr.Current)
	assert.Equal(t, StatusVerified, transitionErr.Expected)
	assert.Nil(t, o.ShippingAt, "failed transition must not stamp")
	assert.Equal(t, StatusProcessing, o.Status)
}

func TestAdvance_CancelAfterVerifyRejected(t *testing.T) {
	o, err := New(7, 3, validItems(), 3000, 60, 3060, "credit_card", "")
	require.NoError(t, err)
	require.NoError(t, o.Advance(StatusVerified, time.Now()))

	err = o.Advance(StatusCancelled, time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Nil(t, o.CancelledAt)
}

func TestClone_Independent(t *testing.T) {
	o, err := New(7, 3, validItems(), 3000, 60, 3060, "credit_card", "")
	require.NoError(t, err)
	require.NoError(t, o.Advance(StatusVerified, time.Now()))

	clone := o.Clone()
	clone.Items[0].Quantity = 99
	*clone.VerifiedAt = time.Time{}

	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.False(t, o.VerifiedAt.IsZero())
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domtracking "github.com/mallkit/storefront/internal/domain/tracking"
)

func appendEntry(t *testing.T, repo *TrackingRepository, orderID int64, status string, at time.Time) *domtracking.Entry {
	t.Helper()
	entry, err := domtracking.NewEntry(orderID, status, "hub", at)
	require.NoError(t, err)
	require.NoError(t, repo.Append(context.Background(), entry))
	return entry
}

func TestTrackingRepository_ListOrdering(t *testing.T) {
	repo := NewTrackingRepository()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	appendEntry(t, repo, 100001, "picked_up", base)
	appendEntry(t, repo, 100001, "in_transit", base.Add(time.Hour))
	appendEntry(t, repo, 999999, "picked_up", base)

	oldest, err := repo.List(context.Background(), 100001, domtracking.OldestFirst)
	require.NoError(t, err)
	require.Len(t, oldest, 2)
	assert.Equal(t, "picked_up", oldest[0].Status)

	newest, err := repo.List(context.Background(), 100001, domtracking.NewestFirst)
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, "in_transit", newest[0].Status)
}

func TestTrackingRepository_UpdateDelete(t *testing.T) {
	repo := NewTrackingRepository()
	entry := appendEntry(t, repo, 100001, "picked_up", time.Now().UTC())

	entry.Status = "delivered"
	require.NoError(t, repo.Update(context.Background(), entry))
	got, err := repo.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "delivered", got.Status)

	require.NoError(t, repo.Delete(context.Background(), entry.ID))
	_, err = repo.Get(context.Background(), entry.ID)
	assert.ErrorIs(t, err, domtracking.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(context.Background(), entry.ID), domtracking.ErrNotFound)
}

package memory

import (
	"context"
	"sort"
	"sync"

	domtracking "github.com/mallkit/storefront/internal/domain/tracking"
)

type TrackingRepository struct {
	mu      sync.Mutex
	entries map[int64]*domtracking.Entry
	seq     int64
}

func NewTrackingRepository() *TrackingRepository {
	return &TrackingRepository{entries: make(map[int64]*domtracking.Entry)}
}

func (r *TrackingRepository) Append(ctx context.Context, entry *domtracking.Entry) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	entry.ID = r.seq
	r.entries[entry.ID] = entry.Clone()
	return nil
}

func (r *TrackingRepository) Get(ctx context.Context, id int64) (*domtracking.Entry, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, domtracking.ErrNotFound
	}
	return entry.Clone(), nil
}

func (r *TrackingRepository) Update(ctx context.Context, entry *domtracking.Entry) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[entry.ID]; !ok {
		return domtracking.ErrNotFound
	}
	r.entries[entry.ID] = entry.Clone()
	return nil
}

func (r *TrackingRepository) Delete(ctx context.Context, id int64) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return domtracking.ErrNotFound
	}
	delete(r.entries, id)
	return nil
}

func (r *TrackingRepository) List(ctx context.Context, orderID int64, order domtracking.SortOrder) ([]*domtracking.Entry, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domtracking.Entry
	for _, e := range r.entries {
		if e.OrderID == orderID {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			if order == domtracking.NewestFirst {
				return out[i].At.After(out[j].At)
			}
			return out[i].At.Before(out[j].At)
		}
		if order == domtracking.NewestFirst {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

package tracking

import "context"

// SortOrder selects the display ordering. The buyer view reads oldest-first,
// the staff view newest-first; both are first-class.
type SortOrder int

const (
	OldestFirst SortOrder = iota
	NewestFirst
)

type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	Get(ctx context.Context, id int64) (*Entry, error)
	Update(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, orderID int64, order SortOrder) ([]*Entry, error)
}

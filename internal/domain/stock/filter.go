package stock

import (
	"time"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/id"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// ListFilter contains common filtering options for list operations.
type ListFilter struct {
	// Search matches free text: product name/SKU and location name/code for
	// items, reason/reference/notes for movements and reservations.
	Search string

	// OrderBy specifies sorting, e.g. "quantity" or "-created_at".
	OrderBy string

	Limit  int
	Offset int
}

// Normalize clamps pagination to sane bounds.
func (f *ListFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// ItemFilter filters stock items.
type ItemFilter struct {
	ListFilter
	ProductID  *id.ID
	LocationID *id.ID
	LowStock   bool
	OutOfStock bool
}

// MovementFilter filters the movement journal.
type MovementFilter struct {
	ListFilter
	ProductID  *id.ID
	LocationID *id.ID // matches source or destination
	Type       *MovementType
	From       *time.Time
	To         *time.Time
}

// ReservationFilter filters reservations.
type ReservationFilter struct {
	ListFilter
	ProductID     *id.ID
	LocationID    *id.ID
	Status        *ReservationStatus
	ReferenceType *ReferenceType
	ReferenceID   *string
	From          *time.Time
	To            *time.Time
}

// LocationFilter filters locations.
type LocationFilter struct {
	ListFilter
	Type     *LocationType
	IsActive *bool
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
}

func newListResult[T any](items []T, total int, f ListFilter) ListResult[T] {
	if items == nil {
		items = []T{}
	}
	return ListResult[T]{Items: items, TotalCount: total, Limit: f.Limit, Offset: f.Offset}
}

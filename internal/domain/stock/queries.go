package stock

import (
	"context"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/id"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/security"
)

// FindMany lists stock items.
func (s *Service) FindMany(ctx context.Context, p Principal, f ItemFilter) (ListResult[Item], error) {
	return guarded(ctx, s, p, security.ActionRead, "find_items", func(ctx context.Context, repo Repository) (ListResult[Item], error) {
		f.Normalize()
		items, total, err := repo.ListItems(ctx, f)
		if err != nil {
			return ListResult[Item]{}, err
		}
		return newListResult(items, total, f.ListFilter), nil
	})
}

// FindMovements lists ledger entries.
func (s *Service) FindMovements(ctx context.Context, p Principal, f MovementFilter) (ListResult[Movement], error) {
	return guarded(ctx, s, p, security.ActionRead, "find_movements", func(ctx context.Context, repo Repository) (ListResult[Movement], error) {
		f.Normalize()
		items, total, err := repo.ListMovements(ctx, f)
		if err != nil {
			return ListResult[Movement]{}, err
		}
		return newListResult(items, total, f.ListFilter), nil
	})
}

// FindReservations lists reservations.
func (s *Service) FindReservations(ctx context.Context, p Principal, f ReservationFilter) (ListResult[Reservation], error) {
	return guarded(ctx, s, p, security.ActionRead, "find_reservations", func(ctx context.Context, repo Repository) (ListResult[Reservation], error) {
		f.Normalize()
		items, total, err := repo.ListReservations(ctx, f)
		if err != nil {
			return ListResult[Reservation]{}, err
		}
		return newListResult(items, total, f.ListFilter), nil
	})
}

// GetItem returns one item with its batch lines.
func (s *Service) GetItem(ctx context.Context, p Principal, productID id.ID, locationID *id.ID) (*Item, error) {
	return guarded(ctx, s, p, security.ActionRead, "get_item", func(ctx context.Context, repo Repository) (*Item, error) {
		return repo.GetItem(ctx, productID, locationID)
	})
}

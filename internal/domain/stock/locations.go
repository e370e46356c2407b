package stock

import (
	"context"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/apperror"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/id"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/security"
)

const auditEntityLocation = "stock_location"

// CreateLocation adds a location to the tenant.
func (s *Service) CreateLocation(ctx context.Context, p Principal, in LocationInput) (*Location, error) {
	return guarded(ctx, s, p, security.ActionManageLocations, "create_location", func(ctx context.Context, repo Repository) (*Location, error) {
		if err := in.validate(); err != nil {
			return nil, err
		}

		now := s.now()
		loc := &Location{
			ID:          id.New(),
			TenantID:    repo.TenantID(),
			Name:        in.Name,
			Code:        in.Code,
			Type:        in.Type,
			Description: in.Description,
			Address:     in.Address,
			IsActive:    in.IsActive == nil || *in.IsActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		err := s.mutate(ctx, repo, func(ctx context.Context) error {
			if err := repo.InsertLocation(ctx, loc); err != nil {
				return err
			}
			return s.audit.LogChange(ctx, auditEntityLocation, loc.ID, "create", locationState(loc))
		})
		if err != nil {
			return nil, err
		}
		return loc, nil
	})
}

// UpdateLocation replaces the editable fields of a location.
func (s *Service) UpdateLocation(ctx context.Context, p Principal, locationID id.ID, in LocationInput) (*Location, error) {
	return guarded(ctx, s, p, security.ActionManageLocations, "update_location", func(ctx context.Context, repo Repository) (*Location, error) {
		if err := in.validate(); err != nil {
			return nil, err
		}

		var loc *Location
		err := s.mutate(ctx, repo, func(ctx context.Context) error {
			current, err := repo.GetLocation(ctx, locationID)
			if err != nil {
				return err
			}
			before := locationState(current)

			updated := *current
			updated.Name = in.Name
			updated.Code = in.Code
			updated.Type = in.Type
			updated.Description = in.Description
			updated.Address = in.Address
			if in.IsActive != nil {
				updated.IsActive = *in.IsActive
			}
			updated.UpdatedAt = s.now()

			if err := repo.UpdateLocation(ctx, &updated); err != nil {
				return err
			}
			loc = &updated
			return s.audit.LogChange(ctx, auditEntityLocation, loc.ID, "update", diff(before, locationState(loc)))
		})
		if err != nil {
			return nil, err
		}
		return loc, nil
	})
}

// DeleteLocation soft-deletes an empty location. A location still holding
// on-hand or reserved quantity cannot be deleted.
func (s *Service) DeleteLocation(ctx context.Context, p Principal, locationID id.ID) error {
	_, err := guarded(ctx, s, p, security.ActionManageLocations, "delete_location", func(ctx context.Context, repo Repository) (struct{}, error) {
		err := s.mutate(ctx, repo, func(ctx context.Context) error {
			loc, err := repo.GetLocation(ctx, locationID)
			if err != nil {
				return err
			}
			stocked, err := repo.CountStockedItems(ctx, locationID)
			if err != nil {
				return err
			}
			if stocked > 0 {
				return apperror.NewInvalidState("location still holds stock").
					WithDetail("locationId", locationID).
					WithDetail("totalProducts", stocked)
			}
			if err := repo.SoftDeleteLocation(ctx, locationID, s.now()); err != nil {
				return err
			}
			return s.audit.LogChange(ctx, auditEntityLocation, loc.ID, "delete", locationState(loc))
		})
		return struct{}{}, err
	})
	return err
}

// GetLocation returns one location with its product count.
func (s *Service) GetLocation(ctx context.Context, p Principal, locationID id.ID) (*Location, error) {
	return guarded(ctx, s, p, security.ActionRead, "get_location", func(ctx context.Context, repo Repository) (*Location, error) {
		return repo.GetLocation(ctx, locationID)
	})
}

// ListLocations returns the tenant's locations.
func (s *Service) ListLocations(ctx context.Context, p Principal, f LocationFilter) (ListResult[Location], error) {
	return guarded(ctx, s, p, security.ActionRead, "list_locations", func(ctx context.Context, repo Repository) (ListResult[Location], error) {
		f.Normalize()
		items, total, err := repo.ListLocations(ctx, f)
		if err != nil {
			return ListResult[Location]{}, err
		}
		return newListResult(items, total, f.ListFilter), nil
	})
}

func locationState(l *Location) map[string]any {
	return map[string]any{
		"name":        l.Name,
		"code":        deref(l.Code),
		"type":        string(l.Type),
		"description": deref(l.Description),
		"address":     deref(l.Address),
		"isActive":    l.IsActive,
	}
}

// diff keeps only the keys whose values changed, as {old, new} pairs.
func diff(before, after map[string]any) map[string]any {
	changes := make(map[string]any)
	for key, newVal := range after {
		if oldVal := before[key]; oldVal != newVal {
			changes[key] = map[string]any{"old": oldVal, "new": newVal}
		}
	}
	return changes
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

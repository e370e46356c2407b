package stock

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/apperror"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/id"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/security"
)

// StockIn receives quantity into a location, creating the item on first receipt.
func (s *Service) StockIn(ctx context.Context, p Principal, in MovementInput) (*Movement, error) {
	return guarded(ctx, s, p, security.ActionWrite, "stock_in", func(ctx context.Context, repo Repository) (*Movement, error) {
		if err := in.validate(MovementIn); err != nil {
			return nil, err
		}

		var mv *Movement
		err := s.mutate(ctx, repo, func(ctx context.Context) error {
			if err := requireProduct(ctx, repo, in.ProductID); err != nil {
				return err
			}
			if err := requireLocation(ctx, repo, in.LocationID); err != nil {
				return err
			}

			now := s.now()
			mv = &Movement{
				ID:         id.New(),
				TenantID:   repo.TenantID(),
				ProductID:  in.ProductID,
				Type:       MovementIn,
				Quantity:   in.Quantity,
				UnitCost:   in.UnitCost,
				TotalCost:  totalCost(in.Quantity, in.UnitCost),
				Reason:     in.Reason,
				Reference:  in.Reference,
				LocationID: in.LocationID,
				Notes:      in.Notes,
				UserID:     p.UserID,
				CreatedAt:  now,
			}
			if err := repo.InsertMovement(ctx, mv); err != nil {
				return err
			}
			if _, err := repo.ApplyQuantityDelta(ctx, QuantityDelta{
				ProductID:    in.ProductID,
				LocationID:   in.LocationID,
				Delta:        in.Quantity,
				UnitCost:     in.UnitCost,
				MovementType: MovementIn,
				At:           now,
			}); err != nil {
				return err
			}
			return s.publishMovement(ctx, repo, mv)
		})
		if err != nil {
			return nil, err
		}

		s.logMovement(ctx, mv)
		return mv, nil
	})
}

// StockOut issues quantity from an existing item.
func (s *Service) StockOut(ctx context.Context, p Principal, in MovementInput) (*Movement, error) {
	return guarded(ctx, s, p, security.ActionWrite, "stock_out", func(ctx context.Context, repo Repository) (*Movement, error) {
		if err := in.validate(MovementOut); err != nil {
			return nil, err
		}

		var mv *Movement
		err := s.mutate(ctx, repo, func(ctx context.Context) error {
			item, err := repo.GetItemForUpdate(ctx, in.ProductID, in.LocationID)
			if err != nil {
				return err
			}
			if item.AvailableQuantity.LessThan(in.Quantity) {
				return apperror.NewInsufficientStock(in.ProductID.String(), in.Quantity, item.AvailableQuantity)
			}

			unitCost := in.UnitCost
			if unitCost == nil {
				unitCost = &item.UnitCost
			}

			now := s.now()
			mv = &Movement{
				ID:         id.New(),
				TenantID:   repo.TenantID(),
				ProductID:  in.ProductID,
				Type:       MovementOut,
				Quantity:   in.Quantity,
				UnitCost:   unitCost,
				TotalCost:  totalCost(in.Quantity, unitCost),
				Reason:     in.Reason,
				Reference:  in.Reference,
				LocationID: in.LocationID,
				Notes:      in.Notes,
				UserID:     p.UserID,
				CreatedAt:  now,
			}
			if err := repo.InsertMovement(ctx, mv); err != nil {
				return err
			}
			if _, err := repo.ApplyQuantityDelta(ctx, QuantityDelta{
				ProductID:    in.ProductID,
				LocationID:   in.LocationID,
				Delta:        in.Quantity.Neg(),
				MovementType: MovementOut,
				At:           now,
			}); err != nil {
				return err
			}
			return s.publishMovement(ctx, repo, mv)
		})
		if err != nil {
			return nil, err
		}

		s.logMovement(ctx, mv)
		return mv, nil
	})
}

// AdjustStock sets the on-hand quantity to an absolute value and records the
// difference as an ADJUSTMENT movement.
func (s *Service) AdjustStock(ctx context.Context, p Principal, in AdjustmentInput) (*Movement, error) {
	return guarded(ctx, s, p, security.ActionAdjust, "adjust_stock", func(ctx context.Context, repo Repository) (*Movement, error) {
		if err := in.validate(); err != nil {
			return nil, err
		}

		var mv *Movement
		err := s.mutate(ctx, repo, func(ctx context.Context) error {
			item, err := lockItemIfExists(ctx, repo, in.ProductID, in.LocationID)
			if err != nil {
				return err
			}

			current, reserved := decimal.Zero, decimal.Zero
			var unitCost *decimal.Decimal
			if item != nil {
				current, reserved = item.Quantity, item.ReservedQuantity
				unitCost = &item.UnitCost
			}

			delta := in.NewQuantity.Sub(current)
			if delta.IsZero() {
				return apperror.NewInvalidArgument("new quantity equals the current quantity").
					WithDetail("quantity", current.String())
			}
			if in.NewQuantity.LessThan(reserved) {
				return apperror.NewInsufficientStock(in.ProductID.String(), delta.Neg(), current.Sub(reserved)).
					WithDetail("reserved", reserved.String())
			}
			if item == nil {
				if err := requireProduct(ctx, repo, in.ProductID); err != nil {
					return err
				}
				if err := requireLocation(ctx, repo, in.LocationID); err != nil {
					return err
				}
			}

			now := s.now()
			qty := delta.Abs()
			mv = &Movement{
				ID:         id.New(),
				TenantID:   repo.TenantID(),
				ProductID:  in.ProductID,
				Type:       MovementAdjustment,
				Quantity:   qty,
				UnitCost:   unitCost,
				TotalCost:  totalCost(qty, unitCost),
				Reason:     in.Reason,
				LocationID: in.LocationID,
				Notes:      in.Notes,
				UserID:     p.UserID,
				CreatedAt:  now,
			}
			if err := repo.InsertMovement(ctx, mv); err != nil {
				return err
			}
			if _, err := repo.ApplyQuantityDelta(ctx, QuantityDelta{
				ProductID:    in.ProductID,
				LocationID:   in.LocationID,
				Delta:        delta,
				MovementType: MovementAdjustment,
				At:           now,
			}); err != nil {
				return err
			}
			return s.publishMovement(ctx, repo, mv)
		})
		if err != nil {
			return nil, err
		}

		s.logMovement(ctx, mv)
		return mv, nil
	})
}

// TransferStock moves quantity between two locations as one TRANSFER movement.
func (s *Service) TransferStock(ctx context.Context, p Principal, in TransferInput) (*Movement, error) {
	return guarded(ctx, s, p, security.ActionTransfer, "transfer_stock", func(ctx context.Context, repo Repository) (*Movement, error) {
		if err := in.validate(); err != nil {
			return nil, err
		}

		from, to := in.FromLocationID, in.ToLocationID

		var mv *Movement
		err := s.mutate(ctx, repo, func(ctx context.Context) error {
			source, dest, err := lockTransferPair(ctx, repo, in.ProductID, from, to)
			if err != nil {
				return err
			}
			if source == nil {
				return apperror.NewNotFound("stock item", in.ProductID).
					WithDetail("locationId", from)
			}
			if source.AvailableQuantity.LessThan(in.Quantity) {
				return apperror.NewInsufficientStock(in.ProductID.String(), in.Quantity, source.AvailableQuantity)
			}
			if dest == nil {
				if err := requireLocation(ctx, repo, &to); err != nil {
					return err
				}
			}

			now := s.now()
			unitCost := source.UnitCost
			mv = &Movement{
				ID:                    id.New(),
				TenantID:              repo.TenantID(),
				ProductID:             in.ProductID,
				Type:                  MovementTransfer,
				Quantity:              in.Quantity,
				UnitCost:              &unitCost,
				TotalCost:             totalCost(in.Quantity, &unitCost),
				Reason:                in.Reason,
				LocationID:            &from,
				DestinationLocationID: &to,
				Notes:                 in.Notes,
				UserID:                p.UserID,
				CreatedAt:             now,
			}
			if err := repo.InsertMovement(ctx, mv); err != nil {
				return err
			}
			if _, err := repo.ApplyQuantityDelta(ctx, QuantityDelta{
				ProductID:    in.ProductID,
				LocationID:   &from,
				Delta:        in.Quantity.Neg(),
				MovementType: MovementTransfer,
				At:           now,
			}); err != nil {
				return err
			}
			if _, err := repo.ApplyQuantityDelta(ctx, QuantityDelta{
				ProductID:       in.ProductID,
				LocationID:      &to,
				Delta:           in.Quantity,
				InitialUnitCost: &unitCost,
				MovementType:    MovementTransfer,
				At:              now,
			}); err != nil {
				return err
			}
			return s.publishMovement(ctx, repo, mv)
		})
		if err != nil {
			return nil, err
		}

		s.logMovement(ctx, mv)
		return mv, nil
	})
}

// lockTransferPair locks both items in location id order so that two opposite
// transfers cannot deadlock. Missing items come back nil.
func lockTransferPair(ctx context.Context, repo Repository, productID, from, to id.ID) (source, dest *Item, err error) {
	first, second := from, to
	if to.String() < from.String() {
		first, second = to, from
	}

	a, err := lockItemIfExists(ctx, repo, productID, &first)
	if err != nil {
		return nil, nil, err
	}
	b, err := lockItemIfExists(ctx, repo, productID, &second)
	if err != nil {
		return nil, nil, err
	}

	if first == from {
		return a, b, nil
	}
	return b, a, nil
}

func lockItemIfExists(ctx context.Context, repo Repository, productID id.ID, locationID *id.ID) (*Item, error) {
	item, err := repo.GetItemForUpdate(ctx, productID, locationID)
	if apperror.IsNotFound(err) {
		return nil, nil
	}
	return item, err
}

func requireProduct(ctx context.Context, repo Repository, productID id.ID) error {
	ok, err := repo.ProductExists(ctx, productID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NewNotFound("product", productID)
	}
	return nil
}

func requireLocation(ctx context.Context, repo Repository, locationID *id.ID) error {
	if locationID == nil {
		return nil
	}
	_, err := repo.GetLocation(ctx, *locationID)
	return err
}

func totalCost(qty decimal.Decimal, unitCost *decimal.Decimal) *decimal.Decimal {
	if unitCost == nil {
		return nil
	}
	total := qty.Mul(*unitCost)
	return &total
}

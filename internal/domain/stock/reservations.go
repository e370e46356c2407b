package stock

import (
	"context"
	"fmt"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/apperror"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/id"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/security"
)

// CreateReservation holds quantity of an item. The item's reserved quantity
// grows by the reservation's quantity; on-hand is untouched.
func (s *Service) CreateReservation(ctx context.Context, p Principal, in ReservationInput) (*Reservation, error) {
	return guarded(ctx, s, p, security.ActionReserve, "create_reservation", func(ctx context.Context, repo Repository) (*Reservation, error) {
		if err := in.validate(s.now()); err != nil {
			return nil, err
		}

		var res *Reservation
		err := s.mutate(ctx, repo, func(ctx context.Context) error {
			item, err := repo.GetItemForUpdate(ctx, in.ProductID, in.LocationID)
			if err != nil {
				return err
			}
			if item.AvailableQuantity.LessThan(in.Quantity) {
				return apperror.NewInsufficientStock(in.ProductID.String(), in.Quantity, item.AvailableQuantity)
			}

			now := s.now()
			res = &Reservation{
				ID:            id.New(),
				TenantID:      repo.TenantID(),
				ProductID:     in.ProductID,
				LocationID:    in.LocationID,
				Quantity:      in.Quantity,
				Status:        ReservationActive,
				ExpiresAt:     in.ExpiresAt,
				Reason:        in.Reason,
				ReferenceID:   in.ReferenceID,
				ReferenceType: in.ReferenceType,
				UserID:        p.UserID,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := repo.InsertReservation(ctx, res); err != nil {
				return err
			}
			if _, err := repo.ApplyReservedDelta(ctx, in.ProductID, in.LocationID, in.Quantity); err != nil {
				return err
			}
			return s.events.Publish(ctx, Event{
				Type:        EventReservationCreated,
				TenantID:    repo.TenantID(),
				AggregateID: res.ID,
				Payload:     res,
			})
		})
		if err != nil {
			return nil, err
		}

		s.log.WithContext(ctx).Infow("stock reserved",
			"reservation_id", res.ID,
			"product_id", res.ProductID,
			"quantity", res.Quantity.String(),
		)
		return res, nil
	})
}

// CancelReservation releases an ACTIVE reservation.
func (s *Service) CancelReservation(ctx context.Context, p Principal, reservationID id.ID, in CancelReservationInput) error {
	_, err := guarded(ctx, s, p, security.ActionReserve, "cancel_reservation", func(ctx context.Context, repo Repository) (struct{}, error) {
		err := s.mutate(ctx, repo, func(ctx context.Context) error {
			res, err := lockActiveReservation(ctx, repo, reservationID, "cancelled")
			if err != nil {
				return err
			}
			if err := repo.UpdateReservationStatus(ctx, res.ID, ReservationCancelled, in.Notes, s.now()); err != nil {
				return err
			}
			if _, err := repo.ApplyReservedDelta(ctx, res.ProductID, res.LocationID, res.Quantity.Neg()); err != nil {
				return err
			}
			res.Status = ReservationCancelled
			res.Notes = in.Notes
			return s.events.Publish(ctx, Event{
				Type:        EventReservationCancelled,
				TenantID:    repo.TenantID(),
				AggregateID: res.ID,
				Payload:     res,
			})
		})
		if err != nil {
			return struct{}{}, err
		}

		s.log.WithContext(ctx).Infow("reservation cancelled", "reservation_id", reservationID)
		return struct{}{}, nil
	})
	return err
}

// FulfillReservation consumes an ACTIVE reservation: the held quantity leaves
// both reserved and on-hand, recorded as an OUT movement.
func (s *Service) FulfillReservation(ctx context.Context, p Principal, reservationID id.ID, in FulfillReservationInput) (*Movement, error) {
	return guarded(ctx, s, p, security.ActionWrite, "fulfill_reservation", func(ctx context.Context, repo Repository) (*Movement, error) {
		var mv *Movement
		err := s.mutate(ctx, repo, func(ctx context.Context) error {
			res, err := lockActiveReservation(ctx, repo, reservationID, "fulfilled")
			if err != nil {
				return err
			}
			item, err := repo.GetItemForUpdate(ctx, res.ProductID, res.LocationID)
			if err != nil {
				return err
			}

			reference := in.Reference
			if reference == nil {
				ref := fmt.Sprintf("reservation:%s", res.ID)
				reference = &ref
			}
			unitCost := item.UnitCost

			now := s.now()
			mv = &Movement{
				ID:         id.New(),
				TenantID:   repo.TenantID(),
				ProductID:  res.ProductID,
				Type:       MovementOut,
				Quantity:   res.Quantity,
				UnitCost:   &unitCost,
				TotalCost:  totalCost(res.Quantity, &unitCost),
				Reason:     "reservation fulfilled",
				Reference:  reference,
				LocationID: res.LocationID,
				Notes:      in.Notes,
				UserID:     p.UserID,
				CreatedAt:  now,
			}
			if err := repo.UpdateReservationStatus(ctx, res.ID, ReservationFulfilled, in.Notes, now); err != nil {
				return err
			}
			if _, err := repo.ApplyReservedDelta(ctx, res.ProductID, res.LocationID, res.Quantity.Neg()); err != nil {
				return err
			}
			if err := repo.InsertMovement(ctx, mv); err != nil {
				return err
			}
			if _, err := repo.ApplyQuantityDelta(ctx, QuantityDelta{
				ProductID:    res.ProductID,
				LocationID:   res.LocationID,
				Delta:        res.Quantity.Neg(),
				MovementType: MovementOut,
				At:           now,
			}); err != nil {
				return err
			}

			res.Status = ReservationFulfilled
			if err := s.events.Publish(ctx, Event{
				Type:        EventReservationFulfilled,
				TenantID:    repo.TenantID(),
				AggregateID: res.ID,
				Payload:     res,
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

// GetReservation returns one reservation of the tenant.
func (s *Service) GetReservation(ctx context.Context, p Principal, reservationID id.ID) (*Reservation, error) {
	return guarded(ctx, s, p, security.ActionRead, "get_reservation", func(ctx context.Context, repo Repository) (*Reservation, error) {
		return repo.GetReservation(ctx, reservationID)
	})
}

func lockActiveReservation(ctx context.Context, repo Repository, reservationID id.ID, outcome string) (*Reservation, error) {
	res, err := repo.GetReservationForUpdate(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.Status != ReservationActive {
		return nil, apperror.NewInvalidState(fmt.Sprintf("only ACTIVE reservations can be %s", outcome)).
			WithDetail("reservationId", res.ID).
			WithDetail("status", res.Status)
	}
	return res, nil
}

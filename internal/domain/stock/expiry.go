package stock

import (
	"context"
	"fmt"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/tenant"
)

// expiryBatchSize bounds the rows locked by one sweep transaction.
const expiryBatchSize = 200

// ExpireReservations moves the tenant's ACTIVE reservations whose expiry has
// passed to EXPIRED and releases their reserved quantity. It is a system job:
// no user principal is involved, so it is not reachable from the HTTP surface.
func (s *Service) ExpireReservations(ctx context.Context, tenantID string) (int, error) {
	ctx, span := tracer.Start(ctx, "stock.expire_reservations")
	defer span.End()

	repo := s.store.ForTenant(tenantID)
	ctx = tenant.WithTenantID(ctx, tenantID)

	total := 0
	for {
		n, err := s.expireBatch(ctx, repo)
		if err != nil {
			span.RecordError(err)
			return total, fmt.Errorf("expire reservations for tenant %s: %w", tenantID, err)
		}
		total += n
		if n < expiryBatchSize {
			break
		}
	}

	if total > 0 {
		s.log.WithContext(ctx).Infow("reservations expired", "count", total)
	}
	return total, nil
}

func (s *Service) expireBatch(ctx context.Context, repo Repository) (int, error) {
	expired := 0
	err := s.mutate(ctx, repo, func(ctx context.Context) error {
		now := s.now()
		batch, err := repo.LockExpiredReservations(ctx, now, expiryBatchSize)
		if err != nil {
			return err
		}
		for i := range batch {
			res := &batch[i]
			if err := repo.UpdateReservationStatus(ctx, res.ID, ReservationExpired, nil, now); err != nil {
				return err
			}
			if _, err := repo.ApplyReservedDelta(ctx, res.ProductID, res.LocationID, res.Quantity.Neg()); err != nil {
				return err
			}
			res.Status = ReservationExpired
			if err := s.events.Publish(ctx, Event{
				Type:        EventReservationExpired,
				TenantID:    repo.TenantID(),
				AggregateID: res.ID,
				Payload:     res,
			}); err != nil {
				return err
			}
		}
		expired = len(batch)
		return nil
	})
	return expired, err
}

// SweepExpiredReservations runs ExpireReservations for every tenant that has
// something to expire. One failing tenant does not stop the others.
func (s *Service) SweepExpiredReservations(ctx context.Context) (int, error) {
	tenants, err := s.store.TenantsWithExpiredReservations(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("list tenants: %w", err)
	}

	total := 0
	var firstErr error
	for _, tenantID := range tenants {
		n, err := s.ExpireReservations(ctx, tenantID)
		total += n
		if err != nil {
			s.log.WithContext(ctx).Errorw("reservation sweep failed", "tenant_id", tenantID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return total, firstErr
}

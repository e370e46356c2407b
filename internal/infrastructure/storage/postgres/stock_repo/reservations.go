package stock_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/apperror"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/id"
	"github.com/alvarodevdoo/ERP-sub000/internal/domain/stock"
)

var reservationColumns = []string{
	"id", "tenant_id::text AS tenant_id", "product_id", "location_id", "quantity", "status", "expires_at",
	"reason", "notes", "reference_id", "reference_type", "user_id", "created_at", "updated_at",
}

var reservationOrderFields = map[string]string{
	"created_at": "created_at",
	"expires_at": "expires_at",
	"quantity":   "quantity",
	"status":     "status",
}

func (r *tenantRepo) InsertReservation(ctx context.Context, res *stock.Reservation) error {
	sql, args, err := builder().
		Insert(tableReservations).
		Columns(
			"id", "tenant_id", "product_id", "location_id", "quantity", "status", "expires_at",
			"reason", "notes", "reference_id", "reference_type", "user_id", "created_at", "updated_at",
		).
		Values(
			res.ID, r.tenantID, res.ProductID, res.LocationID, res.Quantity, res.Status, res.ExpiresAt,
			res.Reason, res.Notes, res.ReferenceID, res.ReferenceType, res.UserID, res.CreatedAt, res.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.q(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert stock reservation: %w", err)
	}
	return nil
}

func (r *tenantRepo) reservationSelect(reservationID id.ID) squirrel.SelectBuilder {
	return builder().
		Select(reservationColumns...).
		From(tableReservations).
		Where(r.scoped("")).
		Where(squirrel.Eq{"id": reservationID})
}

func (r *tenantRepo) GetReservation(ctx context.Context, reservationID id.ID) (*stock.Reservation, error) {
	var res stock.Reservation
	if err := get(ctx, r.q(ctx), &res, r.reservationSelect(reservationID), "reservation", reservationID); err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *tenantRepo) GetReservationForUpdate(ctx context.Context, reservationID id.ID) (*stock.Reservation, error) {
	var res stock.Reservation
	b := r.reservationSelect(reservationID).Suffix("FOR UPDATE")
	if err := get(ctx, r.q(ctx), &res, b, "reservation", reservationID); err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *tenantRepo) UpdateReservationStatus(ctx context.Context, reservationID id.ID, status stock.ReservationStatus, notes *string, at time.Time) error {
	sql, args, err := builder().
		Update(tableReservations).
		Set("status", status).
		Set("notes", squirrel.Expr("COALESCE(?, notes)", notes)).
		Set("updated_at", at).
		Where(r.scoped("")).
		Where(squirrel.Eq{"id": reservationID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.q(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("reservation", reservationID)
	}
	return nil
}

func (r *tenantRepo) reservationListQuery(f stock.ReservationFilter) (squirrel.SelectBuilder, string, error) {
	b := builder().
		Select(reservationColumns...).
		From(tableReservations).
		Where(r.scoped(""))

	if f.ProductID != nil {
		b = b.Where(squirrel.Eq{"product_id": *f.ProductID})
	}
	if f.LocationID != nil {
		b = b.Where(squirrel.Eq{"location_id": *f.LocationID})
	}
	if f.Status != nil {
		b = b.Where(squirrel.Eq{"status": *f.Status})
	}
	if f.ReferenceType != nil {
		b = b.Where(squirrel.Eq{"reference_type": *f.ReferenceType})
	}
	if f.ReferenceID != nil {
		b = b.Where(squirrel.Eq{"reference_id": *f.ReferenceID})
	}
	if f.From != nil {
		b = b.Where(squirrel.GtOrEq{"created_at": *f.From})
	}
	if f.To != nil {
		b = b.Where(squirrel.Lt{"created_at": *f.To})
	}
	if f.Search != "" {
		pattern := searchPattern(f.Search)
		b = b.Where(squirrel.Or{
			squirrel.ILike{"reason": pattern},
			squirrel.ILike{"notes": pattern},
			squirrel.ILike{"reference_id": pattern},
		})
	}

	orderBy, err := parseOrderBy(f.OrderBy, reservationOrderFields, "created_at DESC")
	if err != nil {
		return b, "", err
	}
	return b, orderBy + ", id", nil
}

func (r *tenantRepo) ListReservations(ctx context.Context, f stock.ReservationFilter) ([]stock.Reservation, int, error) {
	b, orderBy, err := r.reservationListQuery(f)
	if err != nil {
		return nil, 0, err
	}
	rows, total, err := list[stock.Reservation](ctx, r.q(ctx), b, orderBy, f.ListFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("list stock reservations: %w", err)
	}
	return rows, total, nil
}

func (r *tenantRepo) expiredReservationsQuery(now time.Time, limit int) squirrel.SelectBuilder {
	return builder().
		Select(reservationColumns...).
		From(tableReservations).
		Where(r.scoped("")).
		Where(squirrel.Eq{"status": stock.ReservationActive}).
		Where(squirrel.LtOrEq{"expires_at": now}).
		OrderBy("expires_at").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED")
}

func (r *tenantRepo) LockExpiredReservations(ctx context.Context, now time.Time, limit int) ([]stock.Reservation, error) {
	sql, args, err := r.expiredReservationsQuery(now, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []stock.Reservation
	if err := pgxscan.Select(ctx, r.q(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("lock expired reservations: %w", err)
	}
	return rows, nil
}

package stock

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/apperror"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/security"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/tx"
	"github.com/alvarodevdoo/ERP-sub000/pkg/logger"
)

var tracer = otel.Tracer("stock/service")

// Deps are the collaborators of Service. Every field is required.
type Deps struct {
	Store  Store
	Tx     tx.ReadOnlyManager
	Oracle security.PermissionOracle
	Cache  Cache
	Events EventPublisher
	Audit  AuditLogger
	Clock  func() time.Time
	Logger *logger.Logger
}

// Service enforces the ledger's business rules. Every public operation goes
// through guarded, which asks the permission oracle first and only then hands
// out the tenant-bound repository.
type Service struct {
	store  Store
	tx     tx.ReadOnlyManager
	oracle security.PermissionOracle
	cache  Cache
	events EventPublisher
	audit  AuditLogger
	now    func() time.Time
	log    *logger.Logger
}

// NewService wires a Service from explicit dependencies.
func NewService(d Deps) (*Service, error) {
	switch {
	case d.Store == nil:
		return nil, errors.New("stock: store is required")
	case d.Tx == nil:
		return nil, errors.New("stock: tx manager is required")
	case d.Oracle == nil:
		return nil, errors.New("stock: permission oracle is required")
	case d.Cache == nil:
		return nil, errors.New("stock: cache is required")
	case d.Events == nil:
		return nil, errors.New("stock: event publisher is required")
	case d.Audit == nil:
		return nil, errors.New("stock: audit logger is required")
	case d.Clock == nil:
		return nil, errors.New("stock: clock is required")
	case d.Logger == nil:
		return nil, errors.New("stock: logger is required")
	}
	return &Service{
		store:  d.Store,
		tx:     d.Tx,
		oracle: d.Oracle,
		cache:  d.Cache,
		events: d.Events,
		audit:  d.Audit,
		now:    d.Clock,
		log:    d.Logger.WithComponent("stock"),
	}, nil
}

// authorize is the single permission gate. The repository is the capability
// granted on success.
func (s *Service) authorize(ctx context.Context, p Principal, action security.Action) (Repository, error) {
	allowed, err := s.oracle.CheckPermission(ctx, p.UserID, security.ResourceStock, action)
	if err != nil {
		return nil, apperror.NewInternal(err).WithDetail("component", "permission_oracle")
	}
	if !allowed {
		return nil, apperror.NewPermissionDenied(string(security.ResourceStock), string(action))
	}
	if p.TenantID == "" {
		return nil, apperror.NewInvalidArgument("tenant is required")
	}
	return s.store.ForTenant(p.TenantID), nil
}

// guarded wraps one operation: span, permission check, error normalization.
func guarded[T any](
	ctx context.Context,
	s *Service,
	p Principal,
	action security.Action,
	op string,
	fn func(ctx context.Context, repo Repository) (T, error),
) (T, error) {
	ctx, span := tracer.Start(ctx, "stock."+op, trace.WithAttributes(
		attribute.String("tenant.id", p.TenantID),
		attribute.String("user.id", p.UserID),
		attribute.String("stock.action", string(action)),
	))
	defer span.End()

	var zero T
	repo, err := s.authorize(ctx, p, action)
	if err != nil {
		span.SetStatus(codes.Error, "denied")
		return zero, err
	}

	res, err := fn(ctx, repo)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if appErr, ok := apperror.AsAppError(err); !ok || appErr.Code == apperror.CodeInternal {
			s.log.WithContext(ctx).Errorw("stock operation failed", "op", op, "error", err)
		}
		return zero, apperror.Wrap(err)
	}
	return res, nil
}

// mutate runs fn in one transaction and drops the tenant's cached read models
// after commit.
func (s *Service) mutate(ctx context.Context, repo Repository, fn func(ctx context.Context) error) error {
	if err := s.tx.RunInTransaction(ctx, fn); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, repo.TenantID()); err != nil {
		s.log.WithContext(ctx).Warnw("cache invalidation failed", "tenant_id", repo.TenantID(), "error", err)
	}
	return nil
}

func (s *Service) publishMovement(ctx context.Context, repo Repository, m *Movement) error {
	return s.events.Publish(ctx, Event{
		Type:        EventMovementRecorded,
		TenantID:    repo.TenantID(),
		AggregateID: m.ID,
		Payload:     m,
	})
}

func (s *Service) logMovement(ctx context.Context, m *Movement) {
	s.log.WithContext(ctx).Infow("stock movement recorded",
		"movement_id", m.ID,
		"type", m.Type,
		"product_id", m.ProductID,
		"location_id", m.LocationID,
		"quantity", m.Quantity.String(),
	)
}

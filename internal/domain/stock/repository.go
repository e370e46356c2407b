package stock

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/id"
)

// Store hands out repositories bound to one tenant. There is no way to reach
// ledger rows without first naming the tenant.
type Store interface {
	ForTenant(tenantID string) Repository

	// TenantsWithExpiredReservations lists tenants that own at least one ACTIVE
	// reservation expiring at or before now. Used by the expiry sweep only.
	TenantsWithExpiredReservations(ctx context.Context, now time.Time) ([]string, error)
}

// QuantityDelta describes a change of on-hand quantity for one item.
type QuantityDelta struct {
	ProductID  id.ID
	LocationID *id.ID
	Delta      decimal.Decimal

	// UnitCost overwrites the item's unit cost when set.
	UnitCost *decimal.Decimal
	// InitialUnitCost is used only when the item row is created by this delta.
	InitialUnitCost *decimal.Decimal

	MovementType MovementType
	At           time.Time
}

// Repository is the tenant-bound data access contract. It holds no permission
// or business-rule logic; derived item fields are computed on every read.
// Lookups of missing rows return an apperror NotFound.
type Repository interface {
	TenantID() string

	ProductExists(ctx context.Context, productID id.ID) (bool, error)

	// --- Items ---

	// GetItem returns the item with its batch lines, soonest expiry first.
	GetItem(ctx context.Context, productID id.ID, locationID *id.ID) (*Item, error)
	// GetItemForUpdate locks the item row for the rest of the transaction.
	GetItemForUpdate(ctx context.Context, productID id.ID, locationID *id.ID) (*Item, error)
	// ApplyQuantityDelta adds Delta to on-hand, creating the row for a positive
	// delta when it does not exist, and stamps last-movement metadata.
	ApplyQuantityDelta(ctx context.Context, d QuantityDelta) (*Item, error)
	// ApplyReservedDelta adds delta to reserved quantity only.
	ApplyReservedDelta(ctx context.Context, productID id.ID, locationID *id.ID, delta decimal.Decimal) (*Item, error)
	ListItems(ctx context.Context, f ItemFilter) ([]Item, int, error)

	// --- Movements ---

	InsertMovement(ctx context.Context, m *Movement) error
	ListMovements(ctx context.Context, f MovementFilter) ([]Movement, int, error)

	// --- Reservations ---

	InsertReservation(ctx context.Context, r *Reservation) error
	GetReservation(ctx context.Context, reservationID id.ID) (*Reservation, error)
	GetReservationForUpdate(ctx context.Context, reservationID id.ID) (*Reservation, error)
	UpdateReservationStatus(ctx context.Context, reservationID id.ID, status ReservationStatus, notes *string, at time.Time) error
	ListReservations(ctx context.Context, f ReservationFilter) ([]Reservation, int, error)
	// LockExpiredReservations locks up to limit ACTIVE reservations with
	// expires_at <= now, skipping rows locked by other transactions.
	LockExpiredReservations(ctx context.Context, now time.Time, limit int) ([]Reservation, error)

	// --- Locations ---

	InsertLocation(ctx context.Context, l *Location) error
	UpdateLocation(ctx context.Context, l *Location) error
	GetLocation(ctx context.Context, locationID id.ID) (*Location, error)
	ListLocations(ctx context.Context, f LocationFilter) ([]Location, int, error)
	SoftDeleteLocation(ctx context.Context, locationID id.ID, at time.Time) error
	// CountStockedItems counts non-deleted items at the location still holding
	// on-hand or reserved quantity.
	CountStockedItems(ctx context.Context, locationID id.ID) (int, error)

	// --- Aggregates ---

	Stats(ctx context.Context, topN int) (*Stats, error)
}

// Event is a domain event written to the outbox inside the ledger transaction.
type Event struct {
	Type        string
	TenantID    string
	AggregateID id.ID
	Payload     any
}

// Event types emitted by the ledger.
const (
	EventMovementRecorded     = "stock.movement.recorded"
	EventReservationCreated   = "stock.reservation.created"
	EventReservationCancelled = "stock.reservation.cancelled"
	EventReservationFulfilled = "stock.reservation.fulfilled"
	EventReservationExpired   = "stock.reservation.expired"
)

// EventPublisher records events in the current transaction.
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}

// AuditLogger records before/after change sets of locations.
type AuditLogger interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error
}

// Cache stores read models (stats, dashboard) per tenant. Every ledger
// mutation invalidates the tenant's entries after commit, which also advances
// the tenant's generation.
//
// Load returns the generation current at read time. Store must be handed that
// generation and drops the value when an invalidation happened in between, so
// a snapshot read before a commit never outlives it.
type Cache interface {
	Load(ctx context.Context, tenantID, key string, dst any) (gen int64, hit bool, err error)
	Store(ctx context.Context, tenantID, key string, gen int64, value any) error
	Invalidate(ctx context.Context, tenantID string) error
}

// NopCache never hits.
type NopCache struct{}

func (NopCache) Load(context.Context, string, string, any) (int64, bool, error) { return 0, false, nil }
func (NopCache) Store(context.Context, string, string, int64, any) error        { return nil }
func (NopCache) Invalidate(context.Context, string) error                       { return nil }

// NopEvents drops events.
type NopEvents struct{}

func (NopEvents) Publish(context.Context, Event) error { return nil }

// NopAudit drops audit entries.
type NopAudit struct{}

func (NopAudit) LogChange(context.Context, string, id.ID, string, map[string]any) error { return nil }

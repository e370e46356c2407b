// Package stock implements the stock ledger: per-location balances, the
// immutable movement journal, reservations and stock locations.
package stock

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/id"
)

// MovementType is the kind of a ledger entry. The quantity of a movement is
// always positive; the direction follows from the type.
type MovementType string

const (
	MovementIn         MovementType = "IN"
	MovementOut        MovementType = "OUT"
	MovementAdjustment MovementType = "ADJUSTMENT"
	MovementTransfer   MovementType = "TRANSFER"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementIn, MovementOut, MovementAdjustment, MovementTransfer:
		return true
	}
	return false
}

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationExpired   ReservationStatus = "EXPIRED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationFulfilled ReservationStatus = "FULFILLED"
)

// Valid reports whether s is a known status.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationActive, ReservationExpired, ReservationCancelled, ReservationFulfilled:
		return true
	}
	return false
}

// ReferenceType names what a reservation holds stock for.
type ReferenceType string

const (
	ReferenceOrder ReferenceType = "ORDER"
	ReferenceQuote ReferenceType = "QUOTE"
	ReferenceOther ReferenceType = "OTHER"
)

// Valid reports whether r is a known reference type.
func (r ReferenceType) Valid() bool {
	switch r {
	case ReferenceOrder, ReferenceQuote, ReferenceOther:
		return true
	}
	return false
}

// LocationType classifies a stock location.
type LocationType string

const (
	LocationWarehouse LocationType = "WAREHOUSE"
	LocationStore     LocationType = "STORE"
	LocationVirtual   LocationType = "VIRTUAL"
)

// Valid reports whether t is a known location type.
func (t LocationType) Valid() bool {
	switch t {
	case LocationWarehouse, LocationStore, LocationVirtual:
		return true
	}
	return false
}

// Item is the balance of one product at one location (nil location means
// unlocated). The derived fields are recomputed by Derive on every read and
// never persisted.
type Item struct {
	ID               id.ID           `db:"id" json:"id"`
	TenantID         string          `db:"tenant_id" json:"-"`
	ProductID        id.ID           `db:"product_id" json:"productId"`
	LocationID       *id.ID          `db:"location_id" json:"locationId,omitempty"`
	Quantity         decimal.Decimal `db:"quantity" json:"quantity"`
	ReservedQuantity decimal.Decimal `db:"reserved_quantity" json:"reservedQuantity"`
	UnitCost         decimal.Decimal `db:"unit_cost" json:"unitCost"`
	MinStock         int             `db:"min_stock" json:"minStock"`
	MaxStock         int             `db:"max_stock" json:"maxStock"`
	LastMovementAt   *time.Time      `db:"last_movement_at" json:"lastMovementAt,omitempty"`
	LastMovementType *MovementType   `db:"last_movement_type" json:"lastMovementType,omitempty"`
	DeletionMark     bool            `db:"deletion_mark" json:"-"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`

	AvailableQuantity decimal.Decimal `db:"-" json:"availableQuantity"`
	IsLowStock        bool            `db:"-" json:"isLowStock"`
	IsOutOfStock      bool            `db:"-" json:"isOutOfStock"`
	TotalValue        decimal.Decimal `db:"-" json:"totalValue"`
	Batches           []Batch         `db:"-" json:"batches,omitempty"`
}

// Derive recomputes available quantity, stock flags and value.
func (i *Item) Derive() {
	i.AvailableQuantity = i.Quantity.Sub(i.ReservedQuantity)
	i.IsLowStock = i.Quantity.LessThanOrEqual(decimal.NewFromInt(int64(i.MinStock)))
	i.IsOutOfStock = !i.Quantity.IsPositive()
	i.TotalValue = i.Quantity.Mul(i.UnitCost)
}

// Batch is a lot of an item with its own expiry date.
type Batch struct {
	ID          id.ID           `db:"id" json:"id"`
	ItemID      id.ID           `db:"item_id" json:"-"`
	BatchNumber string          `db:"batch_number" json:"batchNumber"`
	Quantity    decimal.Decimal `db:"quantity" json:"quantity"`
	ExpiryDate  *time.Time      `db:"expiry_date" json:"expiryDate,omitempty"`
}

// Movement is an immutable ledger entry.
type Movement struct {
	ID                    id.ID            `db:"id" json:"id"`
	TenantID              string           `db:"tenant_id" json:"-"`
	ProductID             id.ID            `db:"product_id" json:"productId"`
	Type                  MovementType     `db:"type" json:"type"`
	Quantity              decimal.Decimal  `db:"quantity" json:"quantity"`
	UnitCost              *decimal.Decimal `db:"unit_cost" json:"unitCost,omitempty"`
	TotalCost             *decimal.Decimal `db:"total_cost" json:"totalCost,omitempty"`
	Reason                string           `db:"reason" json:"reason"`
	Reference             *string          `db:"reference" json:"reference,omitempty"`
	LocationID            *id.ID           `db:"location_id" json:"locationId,omitempty"`
	DestinationLocationID *id.ID           `db:"destination_location_id" json:"destinationLocationId,omitempty"`
	Notes                 *string          `db:"notes" json:"notes,omitempty"`
	UserID                string           `db:"user_id" json:"userId"`
	CreatedAt             time.Time        `db:"created_at" json:"createdAt"`
}

// Reservation holds part of an item's available quantity for an order or quote.
type Reservation struct {
	ID            id.ID             `db:"id" json:"id"`
	TenantID      string            `db:"tenant_id" json:"-"`
	ProductID     id.ID             `db:"product_id" json:"productId"`
	LocationID    *id.ID            `db:"location_id" json:"locationId,omitempty"`
	Quantity      decimal.Decimal   `db:"quantity" json:"quantity"`
	Status        ReservationStatus `db:"status" json:"status"`
	ExpiresAt     *time.Time        `db:"expires_at" json:"expiresAt,omitempty"`
	Reason        *string           `db:"reason" json:"reason,omitempty"`
	Notes         *string           `db:"notes" json:"notes,omitempty"`
	ReferenceID   *string           `db:"reference_id" json:"referenceId,omitempty"`
	ReferenceType ReferenceType     `db:"reference_type" json:"referenceType"`
	UserID        string            `db:"user_id" json:"userId"`
	CreatedAt     time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updatedAt"`
}

// Location is a named place products can sit in.
type Location struct {
	ID            id.ID        `db:"id" json:"id"`
	TenantID      string       `db:"tenant_id" json:"-"`
	Name          string       `db:"name" json:"name"`
	Code          *string      `db:"code" json:"code,omitempty"`
	Type          LocationType `db:"type" json:"type"`
	Description   *string      `db:"description" json:"description,omitempty"`
	Address       *string      `db:"address" json:"address,omitempty"`
	IsActive      bool         `db:"is_active" json:"isActive"`
	DeletionMark  bool         `db:"deletion_mark" json:"-"`
	TotalProducts int          `db:"total_products" json:"totalProducts"`
	CreatedAt     time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updatedAt"`
}

// ProductValue is one row of the top-products ranking.
type ProductValue struct {
	ProductID  id.ID           `db:"product_id" json:"productId"`
	Quantity   decimal.Decimal `db:"quantity" json:"quantity"`
	TotalValue decimal.Decimal `db:"total_value" json:"totalValue"`
}

// Stats is the tenant-wide stock rollup.
type Stats struct {
	TotalItems         int             `json:"totalItems"`
	TotalValue         decimal.Decimal `json:"totalValue"`
	LowStockCount      int             `json:"lowStockCount"`
	OutOfStockCount    int             `json:"outOfStockCount"`
	TopProducts        []ProductValue  `json:"topProducts"`
	ActiveReservations int             `json:"activeReservations"`
	TotalMovements     int             `json:"totalMovements"`
}

// Dashboard composes stats with the short lists shown on the stock overview.
type Dashboard struct {
	Stats              Stats         `json:"stats"`
	LowStock           []Item        `json:"lowStock"`
	RecentMovements    []Movement    `json:"recentMovements"`
	ActiveReservations []Reservation `json:"activeReservations"`
}

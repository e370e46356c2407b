package stock

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/apperror"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/id"
)

// Principal is the caller of a ledger operation.
type Principal struct {
	UserID   string
	TenantID string
}

// MovementInput is the payload of StockIn and StockOut.
type MovementInput struct {
	ProductID             id.ID
	Type                  MovementType
	Quantity              decimal.Decimal
	UnitCost              *decimal.Decimal
	Reason                string
	Reference             *string
	LocationID            *id.ID
	DestinationLocationID *id.ID
	Notes                 *string
}

func (in *MovementInput) validate(want MovementType) error {
	if in.Type == "" {
		in.Type = want
	}
	if in.Type != want {
		return apperror.NewInvalidArgument("movement type must be " + string(want)).
			WithDetail("type", in.Type)
	}
	if id.IsNil(in.ProductID) {
		return apperror.NewInvalidArgument("productId is required")
	}
	if !in.Quantity.IsPositive() {
		return apperror.NewInvalidArgument("quantity must be greater than zero").
			WithDetail("quantity", in.Quantity.String())
	}
	if in.UnitCost != nil && in.UnitCost.IsNegative() {
		return apperror.NewInvalidArgument("unitCost must not be negative").
			WithDetail("unitCost", in.UnitCost.String())
	}
	if in.DestinationLocationID != nil {
		return apperror.NewInvalidArgument("destinationLocationId is only allowed on transfers")
	}
	return requireReason(in.Reason)
}

// AdjustmentInput sets the on-hand quantity of an item to an absolute value.
type AdjustmentInput struct {
	ProductID   id.ID
	NewQuantity decimal.Decimal
	LocationID  *id.ID
	Reason      string
	Notes       *string
}

func (in *AdjustmentInput) validate() error {
	if id.IsNil(in.ProductID) {
		return apperror.NewInvalidArgument("productId is required")
	}
	if in.NewQuantity.IsNegative() {
		return apperror.NewInvalidArgument("newQuantity must not be negative").
			WithDetail("newQuantity", in.NewQuantity.String())
	}
	return requireReason(in.Reason)
}

// TransferInput moves quantity between two locations.
type TransferInput struct {
	ProductID      id.ID
	FromLocationID id.ID
	ToLocationID   id.ID
	Quantity       decimal.Decimal
	Reason         string
	Notes          *string
}

func (in *TransferInput) validate() error {
	if id.IsNil(in.ProductID) {
		return apperror.NewInvalidArgument("productId is required")
	}
	if id.IsNil(in.FromLocationID) || id.IsNil(in.ToLocationID) {
		return apperror.NewInvalidArgument("fromLocationId and toLocationId are required")
	}
	if in.FromLocationID == in.ToLocationID {
		return apperror.NewInvalidArgument("source and destination locations must differ").
			WithDetail("locationId", in.FromLocationID)
	}
	if !in.Quantity.IsPositive() {
		return apperror.NewInvalidArgument("quantity must be greater than zero").
			WithDetail("quantity", in.Quantity.String())
	}
	return requireReason(in.Reason)
}

// ReservationInput holds quantity for an order, a quote or another reference.
type ReservationInput struct {
	ProductID     id.ID
	LocationID    *id.ID
	Quantity      decimal.Decimal
	ExpiresAt     *time.Time
	Reason        *string
	ReferenceID   *string
	ReferenceType ReferenceType
}

func (in *ReservationInput) validate(now time.Time) error {
	if id.IsNil(in.ProductID) {
		return apperror.NewInvalidArgument("productId is required")
	}
	if !in.Quantity.IsPositive() {
		return apperror.NewInvalidArgument("quantity must be greater than zero").
			WithDetail("quantity", in.Quantity.String())
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return apperror.NewInvalidArgument("expiresAt must be in the future")
	}
	if in.ReferenceType == "" {
		in.ReferenceType = ReferenceOther
	}
	if !in.ReferenceType.Valid() {
		return apperror.NewInvalidArgument("unknown referenceType").
			WithDetail("referenceType", in.ReferenceType)
	}
	if in.ReferenceType != ReferenceOther && (in.ReferenceID == nil || strings.TrimSpace(*in.ReferenceID) == "") {
		return apperror.NewInvalidArgument("referenceId is required for " + string(in.ReferenceType) + " reservations")
	}
	return nil
}

// CancelReservationInput carries optional cancellation notes.
type CancelReservationInput struct {
	Notes *string
}

// FulfillReservationInput carries the reference written on the OUT movement.
type FulfillReservationInput struct {
	Reference *string
	Notes     *string
}

// LocationInput is the payload of CreateLocation and UpdateLocation.
type LocationInput struct {
	Name        string
	Code        *string
	Type        LocationType
	Description *string
	Address     *string
	IsActive    *bool
}

func (in *LocationInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperror.NewInvalidArgument("name is required")
	}
	if in.Type == "" {
		in.Type = LocationWarehouse
	}
	if !in.Type.Valid() {
		return apperror.NewInvalidArgument("unknown location type").
			WithDetail("type", in.Type)
	}
	if in.Code != nil {
		code := strings.TrimSpace(*in.Code)
		if code == "" {
			in.Code = nil
		} else {
			in.Code = &code
		}
	}
	return nil
}

func requireReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return apperror.NewInvalidArgument("reason is required")
	}
	return nil
}

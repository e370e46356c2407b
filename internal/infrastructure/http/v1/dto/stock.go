package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/alvarodevdoo/ERP-sub000/internal/domain/stock"
)

// --- Movements ---

// MovementRequest is the body of POST /stock/in and POST /stock/out.
type MovementRequest struct {
	ProductID             string           `json:"productId" binding:"required"`
	Type                  string           `json:"type"`
	Quantity              decimal.Decimal  `json:"quantity"`
	UnitCost              *decimal.Decimal `json:"unitCost"`
	Reason                string           `json:"reason"`
	Reference             *string          `json:"reference"`
	LocationID            *string          `json:"locationId"`
	DestinationLocationID *string          `json:"destinationLocationId"`
	Notes                 *string          `json:"notes"`
}

// ToInput converts the request to a domain input.
func (r MovementRequest) ToInput() (stock.MovementInput, error) {
	productID, err := ParseID("productId", r.ProductID)
	if err != nil {
		return stock.MovementInput{}, err
	}
	locationID, err := ParseOptionalID("locationId", r.LocationID)
	if err != nil {
		return stock.MovementInput{}, err
	}
	destinationID, err := ParseOptionalID("destinationLocationId", r.DestinationLocationID)
	if err != nil {
		return stock.MovementInput{}, err
	}
	return stock.MovementInput{
		ProductID:             productID,
		Type:                  stock.MovementType(r.Type),
		Quantity:              r.Quantity,
		UnitCost:              r.UnitCost,
		Reason:                r.Reason,
		Reference:             r.Reference,
		LocationID:            locationID,
		DestinationLocationID: destinationID,
		Notes:                 r.Notes,
	}, nil
}

// AdjustRequest is the body of POST /stock/adjust.
type AdjustRequest struct {
	ProductID   string          `json:"productId" binding:"required"`
	NewQuantity decimal.Decimal `json:"newQuantity"`
	LocationID  *string         `json:"locationId"`
	Reason      string          `json:"reason"`
	Notes       *string         `json:"notes"`
}

// ToInput converts the request to a domain input.
func (r AdjustRequest) ToInput() (stock.AdjustmentInput, error) {
	productID, err := ParseID("productId", r.ProductID)
	if err != nil {
		return stock.AdjustmentInput{}, err
	}
	locationID, err := ParseOptionalID("locationId", r.LocationID)
	if err != nil {
		return stock.AdjustmentInput{}, err
	}
	return stock.AdjustmentInput{
		ProductID:   productID,
		NewQuantity: r.NewQuantity,
		LocationID:  locationID,
		Reason:      r.Reason,
		Notes:       r.Notes,
	}, nil
}

// TransferRequest is the body of POST /stock/transfer.
type TransferRequest struct {
	ProductID      string          `json:"productId" binding:"required"`
	FromLocationID string          `json:"fromLocationId"`
	ToLocationID   string          `json:"toLocationId"`
	Quantity       decimal.Decimal `json:"quantity"`
	Reason         string          `json:"reason"`
	Notes          *string         `json:"notes"`
}

// ToInput converts the request to a domain input.
func (r TransferRequest) ToInput() (stock.TransferInput, error) {
	productID, err := ParseID("productId", r.ProductID)
	if err != nil {
		return stock.TransferInput{}, err
	}
	from, err := ParseID("fromLocationId", r.FromLocationID)
	if err != nil {
		return stock.TransferInput{}, err
	}
	to, err := ParseID("toLocationId", r.ToLocationID)
	if err != nil {
		return stock.TransferInput{}, err
	}
	return stock.TransferInput{
		ProductID:      productID,
		FromLocationID: from,
		ToLocationID:   to,
		Quantity:       r.Quantity,
		Reason:         r.Reason,
		Notes:          r.Notes,
	}, nil
}

// --- Reservations ---

// ReservationRequest is the body of POST /stock/reservations.
type ReservationRequest struct {
	ProductID     string          `json:"productId" binding:"required"`
	LocationID    *string         `json:"locationId"`
	Quantity      decimal.Decimal `json:"quantity"`
	ExpiresAt     *time.Time      `json:"expiresAt"`
	Reason        *string         `json:"reason"`
	ReferenceID   *string         `json:"referenceId"`
	ReferenceType string          `json:"referenceType"`
}

// ToInput converts the request to a domain input.
func (r ReservationRequest) ToInput() (stock.ReservationInput, error) {
	productID, err := ParseID("productId", r.ProductID)
	if err != nil {
		return stock.ReservationInput{}, err
	}
	locationID, err := ParseOptionalID("locationId", r.LocationID)
	if err != nil {
		return stock.ReservationInput{}, err
	}
	return stock.ReservationInput{
		ProductID:     productID,
		LocationID:    locationID,
		Quantity:      r.Quantity,
		ExpiresAt:     r.ExpiresAt,
		Reason:        r.Reason,
		ReferenceID:   r.ReferenceID,
		ReferenceType: stock.ReferenceType(r.ReferenceType),
	}, nil
}

// CancelReservationRequest is the optional body of POST /stock/reservations/:id/cancel.
type CancelReservationRequest struct {
	Notes *string `json:"notes"`
}

// FulfillReservationRequest is the optional body of POST /stock/reservations/:id/fulfill.
type FulfillReservationRequest struct {
	Reference *string `json:"reference"`
	Notes     *string `json:"notes"`
}

// --- Locations ---

// LocationRequest is the body of location create and update.
type LocationRequest struct {
	Name        string  `json:"name" binding:"required"`
	Code        *string `json:"code"`
	Type        string  `json:"type"`
	Description *string `json:"description"`
	Address     *string `json:"address"`
	IsActive    *bool   `json:"isActive"`
}

// ToInput converts the request to a domain input.
func (r LocationRequest) ToInput() stock.LocationInput {
	return stock.LocationInput{
		Name:        r.Name,
		Code:        r.Code,
		Type:        stock.LocationType(r.Type),
		Description: r.Description,
		Address:     r.Address,
		IsActive:    r.IsActive,
	}
}

// --- Queries ---

// ItemQuery filters GET /stock/items.
type ItemQuery struct {
	PageQuery
	ProductID  string `form:"productId"`
	LocationID string `form:"locationId"`
	LowStock   bool   `form:"lowStock"`
	OutOfStock bool   `form:"outOfStock"`
}

// ToFilter converts the query to a domain filter.
func (q ItemQuery) ToFilter() (stock.ItemFilter, error) {
	productID, err := ParseOptionalID("productId", optional(q.ProductID))
	if err != nil {
		return stock.ItemFilter{}, err
	}
	locationID, err := ParseOptionalID("locationId", optional(q.LocationID))
	if err != nil {
		return stock.ItemFilter{}, err
	}
	return stock.ItemFilter{
		ListFilter: q.listFilter(),
		ProductID:  productID,
		LocationID: locationID,
		LowStock:   q.LowStock,
		OutOfStock: q.OutOfStock,
	}, nil
}

// MovementQuery filters GET /stock/movements.
type MovementQuery struct {
	PageQuery
	ProductID  string     `form:"productId"`
	LocationID string     `form:"locationId"`
	Type       string     `form:"type"`
	From       *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To         *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// ToFilter converts the query to a domain filter.
func (q MovementQuery) ToFilter() (stock.MovementFilter, error) {
	productID, err := ParseOptionalID("productId", optional(q.ProductID))
	if err != nil {
		return stock.MovementFilter{}, err
	}
	locationID, err := ParseOptionalID("locationId", optional(q.LocationID))
	if err != nil {
		return stock.MovementFilter{}, err
	}
	f := stock.MovementFilter{
		ListFilter: q.listFilter(),
		ProductID:  productID,
		LocationID: locationID,
		From:       q.From,
		To:         q.To,
	}
	if q.Type != "" {
		t := stock.MovementType(q.Type)
		f.Type = &t
	}
	return f, nil
}

// ReservationQuery filters GET /stock/reservations.
type ReservationQuery struct {
	PageQuery
	ProductID     string     `form:"productId"`
	LocationID    string     `form:"locationId"`
	Status        string     `form:"status"`
	ReferenceType string     `form:"referenceType"`
	ReferenceID   string     `form:"referenceId"`
	From          *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To            *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// ToFilter converts the query to a domain filter.
func (q ReservationQuery) ToFilter() (stock.ReservationFilter, error) {
	productID, err := ParseOptionalID("productId", optional(q.ProductID))
	if err != nil {
		return stock.ReservationFilter{}, err
	}
	locationID, err := ParseOptionalID("locationId", optional(q.LocationID))
	if err != nil {
		return stock.ReservationFilter{}, err
	}
	f := stock.ReservationFilter{
		ListFilter:  q.listFilter(),
		ProductID:   productID,
		LocationID:  locationID,
		ReferenceID: optional(q.ReferenceID),
		From:        q.From,
		To:          q.To,
	}
	if q.Status != "" {
		s := stock.ReservationStatus(q.Status)
		f.Status = &s
	}
	if q.ReferenceType != "" {
		rt := stock.ReferenceType(q.ReferenceType)
		f.ReferenceType = &rt
	}
	return f, nil
}

// LocationQuery filters GET /stock/locations.
type LocationQuery struct {
	PageQuery
	Type     string `form:"type"`
	IsActive *bool  `form:"isActive"`
}

// ToFilter converts the query to a domain filter.
func (q LocationQuery) ToFilter() stock.LocationFilter {
	f := stock.LocationFilter{ListFilter: q.listFilter(), IsActive: q.IsActive}
	if q.Type != "" {
		t := stock.LocationType(q.Type)
		f.Type = &t
	}
	return f
}

// ReportQuery selects GET /stock/reports/:kind. Item filters apply to the
// stock report, movement filters to the movements report.
type ReportQuery struct {
	MovementQuery
	Format     string `form:"format"`
	LowStock   bool   `form:"lowStock"`
	OutOfStock bool   `form:"outOfStock"`
}

// ToRequest converts the query to a domain report request.
func (q ReportQuery) ToRequest(kind string) (stock.ReportRequest, error) {
	movements, err := q.MovementQuery.ToFilter()
	if err != nil {
		return stock.ReportRequest{}, err
	}
	items := stock.ItemFilter{
		ListFilter: stock.ListFilter{Search: q.Search},
		ProductID:  movements.ProductID,
		LocationID: movements.LocationID,
		LowStock:   q.LowStock,
		OutOfStock: q.OutOfStock,
	}
	return stock.ReportRequest{
		Kind:      stock.ReportKind(kind),
		Format:    stock.ReportFormat(q.Format),
		Items:     items,
		Movements: movements,
	}, nil
}

func (q PageQuery) listFilter() stock.ListFilter {
	return stock.ListFilter{Search: q.Search, OrderBy: q.OrderBy, Limit: q.Limit, Offset: q.Offset}
}

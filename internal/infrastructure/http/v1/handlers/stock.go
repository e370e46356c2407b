package handlers

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/zstd"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/apperror"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/id"
	"github.com/alvarodevdoo/ERP-sub000/internal/domain/stock"
	"github.com/alvarodevdoo/ERP-sub000/internal/infrastructure/http/v1/dto"
)

// StockService is the part of stock.Service the HTTP adapter calls.
type StockService interface {
	StockIn(ctx context.Context, p stock.Principal, in stock.MovementInput) (*stock.Movement, error)
	StockOut(ctx context.Context, p stock.Principal, in stock.MovementInput) (*stock.Movement, error)
	AdjustStock(ctx context.Context, p stock.Principal, in stock.AdjustmentInput) (*stock.Movement, error)
	TransferStock(ctx context.Context, p stock.Principal, in stock.TransferInput) (*stock.Movement, error)

	CreateReservation(ctx context.Context, p stock.Principal, in stock.ReservationInput) (*stock.Reservation, error)
	CancelReservation(ctx context.Context, p stock.Principal, reservationID id.ID, in stock.CancelReservationInput) error
	FulfillReservation(ctx context.Context, p stock.Principal, reservationID id.ID, in stock.FulfillReservationInput) (*stock.Movement, error)
	GetReservation(ctx context.Context, p stock.Principal, reservationID id.ID) (*stock.Reservation, error)

	CreateLocation(ctx context.Context, p stock.Principal, in stock.LocationInput) (*stock.Location, error)
	UpdateLocation(ctx context.Context, p stock.Principal, locationID id.ID, in stock.LocationInput) (*stock.Location, error)
	DeleteLocation(ctx context.Context, p stock.Principal, locationID id.ID) error
	GetLocation(ctx context.Context, p stock.Principal, locationID id.ID) (*stock.Location, error)
	ListLocations(ctx context.Context, p stock.Principal, f stock.LocationFilter) (stock.ListResult[stock.Location], error)

	FindMany(ctx context.Context, p stock.Principal, f stock.ItemFilter) (stock.ListResult[stock.Item], error)
	FindMovements(ctx context.Context, p stock.Principal, f stock.MovementFilter) (stock.ListResult[stock.Movement], error)
	FindReservations(ctx context.Context, p stock.Principal, f stock.ReservationFilter) (stock.ListResult[stock.Reservation], error)
	GetItem(ctx context.Context, p stock.Principal, productID id.ID, locationID *id.ID) (*stock.Item, error)

	GetStats(ctx context.Context, p stock.Principal) (*stock.Stats, error)
	GetDashboard(ctx context.Context, p stock.Principal) (*stock.Dashboard, error)
	GenerateReport(ctx context.Context, p stock.Principal, req stock.ReportRequest) (*stock.Report, error)
}

var _ StockService = (*stock.Service)(nil)

// StockHandler handles HTTP requests for the stock ledger.
type StockHandler struct {
	*BaseHandler
	service StockService
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service StockService) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts the stock endpoints on rg.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/items", h.ListItems)
	rg.GET("/items/:productId", h.GetItem)

	rg.GET("/movements", h.ListMovements)
	rg.POST("/in", h.StockIn)
	rg.POST("/out", h.StockOut)
	rg.POST("/adjust", h.Adjust)
	rg.POST("/transfer", h.Transfer)

	rg.GET("/reservations", h.ListReservations)
	rg.POST("/reservations", h.CreateReservation)
	rg.GET("/reservations/:id", h.GetReservation)
	rg.POST("/reservations/:id/cancel", h.CancelReservation)
	rg.POST("/reservations/:id/fulfill", h.FulfillReservation)

	rg.GET("/locations", h.ListLocations)
	rg.POST("/locations", h.CreateLocation)
	rg.GET("/locations/:id", h.GetLocation)
	rg.PUT("/locations/:id", h.UpdateLocation)
	rg.DELETE("/locations/:id", h.DeleteLocation)

	rg.GET("/stats", h.Stats)
	rg.GET("/dashboard", h.Dashboard)
	rg.GET("/reports/:kind", h.Report)
}

// --- Items ---

// ListItems handles GET /stock/items
func (h *StockHandler) ListItems(c *gin.Context) {
	var q dto.ItemQuery
	if !h.BindQuery(c, &q) {
		return
	}
	f, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}
	res, err := h.service.FindMany(c.Request.Context(), h.Principal(c), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// GetItem handles GET /stock/items/:productId?locationId=
func (h *StockHandler) GetItem(c *gin.Context) {
	productID, ok := h.PathID(c, "productId")
	if !ok {
		return
	}
	var locationID *id.ID
	if raw := c.Query("locationId"); raw != "" {
		v, err := dto.ParseID("locationId", raw)
		if err != nil {
			h.Error(c, err)
			return
		}
		locationID = &v
	}
	item, err := h.service.GetItem(c.Request.Context(), h.Principal(c), productID, locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}

// --- Movements ---

// ListMovements handles GET /stock/movements
func (h *StockHandler) ListMovements(c *gin.Context) {
	var q dto.MovementQuery
	if !h.BindQuery(c, &q) {
		return
	}
	f, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}
	res, err := h.service.FindMovements(c.Request.Context(), h.Principal(c), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// StockIn handles POST /stock/in
func (h *StockHandler) StockIn(c *gin.Context) {
	h.movement(c, h.service.StockIn)
}

// StockOut handles POST /stock/out
func (h *StockHandler) StockOut(c *gin.Context) {
	h.movement(c, h.service.StockOut)
}

func (h *StockHandler) movement(c *gin.Context, record func(context.Context, stock.Principal, stock.MovementInput) (*stock.Movement, error)) {
	var req dto.MovementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}
	m, err := record(c.Request.Context(), h.Principal(c), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, m)
}

// Adjust handles POST /stock/adjust
func (h *StockHandler) Adjust(c *gin.Context) {
	var req dto.AdjustRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}
	m, err := h.service.AdjustStock(c.Request.Context(), h.Principal(c), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, m)
}

// Transfer handles POST /stock/transfer
func (h *StockHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}
	m, err := h.service.TransferStock(c.Request.Context(), h.Principal(c), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, m)
}

// --- Reservations ---

// ListReservations handles GET /stock/reservations
func (h *StockHandler) ListReservations(c *gin.Context) {
	var q dto.ReservationQuery
	if !h.BindQuery(c, &q) {
		return
	}
	f, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}
	res, err := h.service.FindReservations(c.Request.Context(), h.Principal(c), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// CreateReservation handles POST /stock/reservations
func (h *StockHandler) CreateReservation(c *gin.Context) {
	var req dto.ReservationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}
	r, err := h.service.CreateReservation(c.Request.Context(), h.Principal(c), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, r)
}

// GetReservation handles GET /stock/reservations/:id
func (h *StockHandler) GetReservation(c *gin.Context) {
	reservationID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	r, err := h.service.GetReservation(c.Request.Context(), h.Principal(c), reservationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, r)
}

// CancelReservation handles POST /stock/reservations/:id/cancel
func (h *StockHandler) CancelReservation(c *gin.Context) {
	reservationID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.CancelReservationRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	err := h.service.CancelReservation(c.Request.Context(), h.Principal(c), reservationID,
		stock.CancelReservationInput{Notes: req.Notes})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "reservation cancelled")
}

// FulfillReservation handles POST /stock/reservations/:id/fulfill
func (h *StockHandler) FulfillReservation(c *gin.Context) {
	reservationID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.FulfillReservationRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	m, err := h.service.FulfillReservation(c.Request.Context(), h.Principal(c), reservationID,
		stock.FulfillReservationInput{Reference: req.Reference, Notes: req.Notes})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, m)
}

// --- Locations ---

// ListLocations handles GET /stock/locations
func (h *StockHandler) ListLocations(c *gin.Context) {
	var q dto.LocationQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.service.ListLocations(c.Request.Context(), h.Principal(c), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// CreateLocation handles POST /stock/locations
func (h *StockHandler) CreateLocation(c *gin.Context) {
	var req dto.LocationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	loc, err := h.service.CreateLocation(c.Request.Context(), h.Principal(c), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, loc)
}

// GetLocation handles GET /stock/locations/:id
func (h *StockHandler) GetLocation(c *gin.Context) {
	locationID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	loc, err := h.service.GetLocation(c.Request.Context(), h.Principal(c), locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, loc)
}

// UpdateLocation handles PUT /stock/locations/:id
func (h *StockHandler) UpdateLocation(c *gin.Context) {
	locationID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.LocationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	loc, err := h.service.UpdateLocation(c.Request.Context(), h.Principal(c), locationID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, loc)
}

// DeleteLocation handles DELETE /stock/locations/:id
func (h *StockHandler) DeleteLocation(c *gin.Context) {
	locationID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteLocation(c.Request.Context(), h.Principal(c), locationID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "location deleted")
}

// --- Reporting ---

// Stats handles GET /stock/stats
func (h *StockHandler) Stats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context(), h.Principal(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, stats)
}

// Dashboard handles GET /stock/dashboard
func (h *StockHandler) Dashboard(c *gin.Context) {
	d, err := h.service.GetDashboard(c.Request.Context(), h.Principal(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, d)
}

// Report handles GET /stock/reports/:kind?format=json|csv
// CSV is sent zstd-encoded when the client accepts it.
func (h *StockHandler) Report(c *gin.Context) {
	var q dto.ReportQuery
	if !h.BindQuery(c, &q) {
		return
	}
	req, err := q.ToRequest(c.Param("kind"))
	if err != nil {
		h.Error(c, err)
		return
	}
	report, err := h.service.GenerateReport(c.Request.Context(), h.Principal(c), req)
	if err != nil {
		h.Error(c, err)
		return
	}

	if report.Format != stock.FormatCSV {
		h.OK(c, report)
		return
	}

	body := report.CSV
	if acceptsZstd(c.GetHeader("Accept-Encoding")) {
		body, err = compressZstd(body)
		if err != nil {
			h.Error(c, apperror.NewInternal(err))
			return
		}
		c.Header("Content-Encoding", "zstd")
		c.Header("Vary", "Accept-Encoding")
	}
	c.Header("Content-Disposition", `attachment; filename="`+report.Filename()+`"`)
	c.Header("X-Row-Count", strconv.Itoa(report.RowCount))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", body)
}

func acceptsZstd(header string) bool {
	for _, part := range strings.Split(header, ",") {
		enc, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(strings.TrimSpace(enc), "zstd") && strings.ReplaceAll(params, " ", "") != "q=0" {
			return true
		}
	}
	return false
}

func compressZstd(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

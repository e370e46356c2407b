package stock

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alvarodevdoo/ERP-sub000/internal/core/apperror"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/id"
	"github.com/alvarodevdoo/ERP-sub000/internal/core/security"
)

// ReportKind selects the exported data set.
type ReportKind string

const (
	ReportStock     ReportKind = "stock"
	ReportMovements ReportKind = "movements"
)

// ReportFormat selects records or CSV text.
type ReportFormat string

const (
	FormatJSON ReportFormat = "json"
	FormatCSV  ReportFormat = "csv"
)

// maxReportRows caps one export.
const maxReportRows = 100_000

// Fixed CSV header rows, one per report kind.
var (
	StockReportHeader = []string{
		"product_id", "location_id", "quantity", "reserved_quantity", "available_quantity",
		"unit_cost", "total_value", "min_stock", "max_stock", "is_low_stock", "is_out_of_stock",
		"last_movement_at",
	}
	MovementReportHeader = []string{
		"id", "created_at", "product_id", "type", "quantity", "unit_cost", "total_cost",
		"location_id", "destination_location_id", "reason", "reference", "notes", "user_id",
	}
)

// ReportRequest selects the kind, the format and the filters of an export.
type ReportRequest struct {
	Kind      ReportKind
	Format    ReportFormat
	Items     ItemFilter
	Movements MovementFilter
}

// Report is the result of GenerateReport. Exactly one of Rows and CSV is set.
type Report struct {
	Kind        ReportKind   `json:"kind"`
	Format      ReportFormat `json:"format"`
	GeneratedAt time.Time    `json:"generatedAt"`
	RowCount    int          `json:"rowCount"`
	Rows        any          `json:"rows,omitempty"`
	CSV         []byte       `json:"-"`
}

// Filename suggests a download name.
func (r *Report) Filename() string {
	return "stock-" + string(r.Kind) + "-" + r.GeneratedAt.UTC().Format("20060102-150405") + "." + string(r.Format)
}

// StockReportRow is one flattened item of the stock snapshot.
type StockReportRow struct {
	ProductID         string `json:"productId"`
	LocationID        string `json:"locationId"`
	Quantity          string `json:"quantity"`
	ReservedQuantity  string `json:"reservedQuantity"`
	AvailableQuantity string `json:"availableQuantity"`
	UnitCost          string `json:"unitCost"`
	TotalValue        string `json:"totalValue"`
	MinStock          int    `json:"minStock"`
	MaxStock          int    `json:"maxStock"`
	IsLowStock        bool   `json:"isLowStock"`
	IsOutOfStock      bool   `json:"isOutOfStock"`
	LastMovementAt    string `json:"lastMovementAt"`
}

func (r StockReportRow) record() []string {
	return []string{
		r.ProductID, r.LocationID, r.Quantity, r.ReservedQuantity, r.AvailableQuantity,
		r.UnitCost, r.TotalValue, strconv.Itoa(r.MinStock), strconv.Itoa(r.MaxStock),
		strconv.FormatBool(r.IsLowStock), strconv.FormatBool(r.IsOutOfStock), r.LastMovementAt,
	}
}

// MovementReportRow is one flattened ledger entry.
type MovementReportRow struct {
	ID                    string `json:"id"`
	CreatedAt             string `json:"createdAt"`
	ProductID             string `json:"productId"`
	Type                  string `json:"type"`
	Quantity              string `json:"quantity"`
	UnitCost              string `json:"unitCost"`
	TotalCost             string `json:"totalCost"`
	LocationID            string `json:"locationId"`
	DestinationLocationID string `json:"destinationLocationId"`
	Reason                string `json:"reason"`
	Reference             string `json:"reference"`
	Notes                 string `json:"notes"`
	UserID                string `json:"userId"`
}

func (r MovementReportRow) record() []string {
	return []string{
		r.ID, r.CreatedAt, r.ProductID, r.Type, r.Quantity, r.UnitCost, r.TotalCost,
		r.LocationID, r.DestinationLocationID, r.Reason, r.Reference, r.Notes, r.UserID,
	}
}

// GenerateReport exports the stock snapshot or the movement history.
func (s *Service) GenerateReport(ctx context.Context, p Principal, req ReportRequest) (*Report, error) {
	return guarded(ctx, s, p, security.ActionReport, "generate_report", func(ctx context.Context, repo Repository) (*Report, error) {
		if req.Format == "" {
			req.Format = FormatJSON
		}
		if req.Format != FormatJSON && req.Format != FormatCSV {
			return nil, apperror.NewInvalidArgument("unknown report format").WithDetail("format", req.Format)
		}

		if req.Kind != ReportStock && req.Kind != ReportMovements {
			return nil, apperror.NewInvalidArgument("unknown report kind").WithDetail("kind", req.Kind)
		}

		report := &Report{Kind: req.Kind, Format: req.Format, GeneratedAt: s.now()}

		// All pages come from one snapshot; rows moving between pages
		// mid-export would otherwise be duplicated or skipped.
		err := s.tx.ReadOnly(ctx, func(ctx context.Context) error {
			var err error
			if req.Kind == ReportStock {
				var rows []StockReportRow
				if rows, err = s.stockRows(ctx, repo, req.Items); err != nil {
					return err
				}
				report.RowCount = len(rows)
				if req.Format == FormatCSV {
					report.CSV, err = writeCSV(StockReportHeader, rows)
					return err
				}
				report.Rows = rows
				return nil
			}

			var rows []MovementReportRow
			if rows, err = s.movementRows(ctx, repo, req.Movements); err != nil {
				return err
			}
			report.RowCount = len(rows)
			if req.Format == FormatCSV {
				report.CSV, err = writeCSV(MovementReportHeader, rows)
				return err
			}
			report.Rows = rows
			return nil
		})
		if err != nil {
			return nil, err
		}
		return report, nil
	})
}

func (s *Service) stockRows(ctx context.Context, repo Repository, f ItemFilter) ([]StockReportRow, error) {
	rows := []StockReportRow{}
	f.Limit, f.Offset = maxLimit, 0
	for {
		page, total, err := repo.ListItems(ctx, f)
		if err != nil {
			return nil, err
		}
		for _, it := range page {
			rows = append(rows, StockReportRow{
				ProductID:         it.ProductID.String(),
				LocationID:        idString(it.LocationID),
				Quantity:          it.Quantity.String(),
				ReservedQuantity:  it.ReservedQuantity.String(),
				AvailableQuantity: it.AvailableQuantity.String(),
				UnitCost:          it.UnitCost.String(),
				TotalValue:        it.TotalValue.String(),
				MinStock:          it.MinStock,
				MaxStock:          it.MaxStock,
				IsLowStock:        it.IsLowStock,
				IsOutOfStock:      it.IsOutOfStock,
				LastMovementAt:    timeString(it.LastMovementAt),
			})
		}
		f.Offset += len(page)
		if len(page) == 0 || f.Offset >= total || len(rows) >= maxReportRows {
			return rows, nil
		}
	}
}

func (s *Service) movementRows(ctx context.Context, repo Repository, f MovementFilter) ([]MovementReportRow, error) {
	rows := []MovementReportRow{}
	f.Limit, f.Offset = maxLimit, 0
	if f.OrderBy == "" {
		f.OrderBy = "-created_at"
	}
	for {
		page, total, err := repo.ListMovements(ctx, f)
		if err != nil {
			return nil, err
		}
		for _, m := range page {
			rows = append(rows, MovementReportRow{
				ID:                    m.ID.String(),
				CreatedAt:             m.CreatedAt.UTC().Format(time.RFC3339),
				ProductID:             m.ProductID.String(),
				Type:                  string(m.Type),
				Quantity:              m.Quantity.String(),
				UnitCost:              decimalString(m.UnitCost),
				TotalCost:             decimalString(m.TotalCost),
				LocationID:            idString(m.LocationID),
				DestinationLocationID: idString(m.DestinationLocationID),
				Reason:                m.Reason,
				Reference:             deref(m.Reference),
				Notes:                 deref(m.Notes),
				UserID:                m.UserID,
			})
		}
		f.Offset += len(page)
		if len(page) == 0 || f.Offset >= total || len(rows) >= maxReportRows {
			return rows, nil
		}
	}
}

type csvRow interface{ record() []string }

// writeCSV renders RFC 4180 CSV: fields with commas, quotes or line breaks
// are quoted and embedded quotes are doubled.
func writeCSV[R csvRow](header []string, rows []R) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write(r.record()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func idString(v *id.ID) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func decimalString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func timeString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tradedesk/tradedesk-api/policy"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// XLSXContentType is the media type of generated workbooks
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const exportSheet = "Merged orders"

var exportHeader = []any{"Code", "Name", "Unit price", "Total quantity"}

// ExportResult is a generated workbook. Key and URL are set when the
// workbook was archived instead of streamed.
type ExportResult struct {
	Filename    string   `json:"filename"`
	ContentType string   `json:"content_type"`
	Months      []string `json:"months"`
	Key         string   `json:"key,omitempty"`
	URL         string   `json:"url,omitempty"`
	Content     []byte   `json:"-"`
}

// ExportService renders the monthly rollup as a spreadsheet
type ExportService struct {
	orders  *OrderService
	storage ArchiveStorage
	log     *zap.Logger
	now     func() time.Time
}

// NewExportService creates the exporter. storage may be nil, in which case
// archiving is refused and only direct downloads work.
func NewExportService(orders *OrderService, storage ArchiveStorage, log *zap.Logger) *ExportService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExportService{orders: orders, storage: storage, log: log, now: orders.now}
}

// ArchiveEnabled reports whether exports can be uploaded
func (e *ExportService) ArchiveEnabled() bool {
	return e.storage != nil
}

// Export builds a workbook for the requested MM/YYYY months. Malformed months
// are ignored; at least one must be valid.
func (e *ExportService) Export(ctx context.Context, actor policy.Actor, rawMonths []string, archive bool) (*ExportResult, error) {
	if d := policy.Authorize(actor, policy.ActionExport, nil); !d.Allowed {
		return nil, forbidden(d.Reason)
	}
	months := ParseMonths(rawMonths)
	if len(months) == 0 {
		return nil, validationError("No valid month selected", map[string]string{"months": "expected one or more months as MM/YYYY"})
	}
	if archive && e.storage == nil {
		return nil, validationError("Export archiving is not configured", nil)
	}

	rollup, err := e.orders.rollup(ctx, months)
	if err != nil {
		return nil, err
	}
	if len(rollup) == 0 {
		return nil, notFound(CodeNoOrders, "No merged orders found for the selected months")
	}

	content, err := renderWorkbook(rollup)
	if err != nil {
		return nil, &Error{Kind: KindPersistence, Code: CodeStorage, Message: "Failed to build workbook", Err: err}
	}

	result := &ExportResult{
		Filename:    fmt.Sprintf("merged-orders-%s.xlsx", e.now().Format("20060102-150405")),
		ContentType: XLSXContentType,
		Months:      months,
		Content:     content,
	}
	if !archive {
		return result, nil
	}

	result.Key = "exports/" + result.Filename
	if err := e.storage.Upload(ctx, result.Key, content, XLSXContentType); err != nil {
		return nil, &Error{Kind: KindPersistence, Code: CodeStorage, Message: "Failed to archive export", Err: err, Details: err.Error()}
	}
	url, err := e.storage.PresignedURL(ctx, result.Key)
	if err != nil {
		return nil, &Error{Kind: KindPersistence, Code: CodeStorage, Message: "Failed to sign export link", Err: err, Details: err.Error()}
	}
	result.URL = url
	result.Content = nil

	e.log.Info("Export archived",
		zap.String("key", result.Key),
		zap.Strings("months", months),
		zap.Uint("actor_user_id", actor.UserID),
	)
	return result, nil
}

// renderWorkbook writes one block per month: a title row, the column
// header, a row per product and a blank separator row
func renderWorkbook(rollup []MonthRollup) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	row := 1
	setRow := func(values []any) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return err
		}
		row++
		return nil
	}

	for _, month := range rollup {
		title, _ := excelize.CoordinatesToCellName(1, row)
		if err := setRow([]any{"Month " + month.Month}); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(exportSheet, title, title, bold); err != nil {
			return nil, err
		}

		headerStart, _ := excelize.CoordinatesToCellName(1, row)
		headerEnd, _ := excelize.CoordinatesToCellName(len(exportHeader), row)
		if err := setRow(exportHeader); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(exportSheet, headerStart, headerEnd, bold); err != nil {
			return nil, err
		}

		for _, line := range month.Items {
			err := setRow([]any{line.ProductCode, line.ProductName, line.UnitPrice.InexactFloat64(), line.TotalQuantity})
			if err != nil {
				return nil, err
			}
		}
		row++
	}

	if err := f.SetColWidth(exportSheet, "A", "A", 22); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(exportSheet, "B", "B", 36); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(exportSheet, "C", "D", 16); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// SplitMonths accepts months either repeated or comma separated
func SplitMonths(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

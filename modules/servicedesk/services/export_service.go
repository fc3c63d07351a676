package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/modules/servicedesk/permissions"
	"github.com/iota-uz/servicedesk/pkg/money"
)

const (
	exportSheet      = "Requests"
	exportTimeLayout = "2006-01-02 15:04"
	// Built-in number format "#,##0.00".
	exportAmountFormat = 4
)

var exportHeader = []any{
	"ID", "Submitted", "Updated", "Customer", "Email", "Category", "Brand",
	"OS / Vendor", "Issue", "Error Messages", "Appointment",
	"Status", "Cost", "Cost (INR)", "Invoice Notes",
}

type ExportService struct {
	requests *RequestService
}

func NewExportService(requests *RequestService) *ExportService {
	return &ExportService{requests: requests}
}

// Export writes the filtered records as an XLSX workbook to w and returns the
// number of data rows.
func (s *ExportService) Export(ctx context.Context, filter request.Filter, w io.Writer) (int, error) {
	ctx, span := startSpan(ctx, "servicedesk.Export", uuid.Nil)
	n, err := s.export(ctx, filter, w)
	endSpan(span, err)
	return n, err
}

func (s *ExportService) export(ctx context.Context, filter request.Filter, w io.Writer) (int, error) {
	if _, err := authorize(ctx, s.requests.authorizer, RequestsAuthzObject, permissions.ActionExport); err != nil {
		s.requests.report(ctx, OpExport, uuid.Nil, err)
		return 0, err
	}
	records, err := s.requests.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	f, err := Workbook(records, s.requests.Location())
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	return len(records), nil
}

// Workbook lays records out one per row under a bold header.
func Workbook(records []request.Request, loc *time.Location) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := fillSheet(f, records, loc); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to build workbook: %w", err)
	}
	return f, nil
}

func fillSheet(f *excelize.File, records []request.Request, loc *time.Location) error {
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: exportAmountFormat})
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(exportHeader))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(exportSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	for i, r := range records {
		row := i + 2
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		values := []any{
			r.ID().String(),
			r.SubmittedAt().In(loc).Format(exportTimeLayout),
			r.UpdatedAt().In(loc).Format(exportTimeLayout),
			r.CustomerName(),
			r.CustomerEmail(),
			string(r.Category()),
			r.Brand(),
			r.OSVersionOrVendor(),
			r.IssueDescription(),
			r.ErrorMessages(),
			"",
			string(r.Status()),
			nil,
			"",
			r.InvoiceNotes(),
		}
		if d, ok := r.AppointmentDate(); ok {
			values[10] = d.Format(request.DateLayout)
		}
		if cost, ok := r.Cost(); ok {
			values[12] = cost.InexactFloat64()
			values[13] = money.Format(cost, money.INR)
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return err
		}
	}

	if err := f.SetColStyle(exportSheet, "M", amountStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(exportSheet, "A", lastCol, 18); err != nil {
		return err
	}
	return f.AutoFilter(exportSheet, "A1:"+lastCol+"1", nil)
}

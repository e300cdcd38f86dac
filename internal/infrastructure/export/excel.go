package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/autoclaim/internal/domain/entity"
)

const (
	sheetName = "Claims"

	// ContentType is the MIME type of the generated workbook
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var headers = []string{
	"Claim ID", "Employee", "Type", "Months", "Provider", "Billing Date",
	"Customer Name", "Total Billed", "Eligible", "Status", "Reasoning",
	"Admin Reason", "Submitted At",
}

// Column widths, same order as headers
var widths = []float64{28, 22, 10, 22, 20, 14, 22, 14, 12, 14, 60, 40, 20}

// LedgerExporter writes claim lists as .xlsx workbooks
type LedgerExporter struct {
	logger *zap.Logger
}

// NewLedgerExporter creates a new LedgerExporter
func NewLedgerExporter(logger *zap.Logger) *LedgerExporter {
	return &LedgerExporter{logger: logger}
}

// Export writes one row per claim, in the given order, followed by a totals row
func (e *LedgerExporter) Export(ctx context.Context, claims []*entity.Claim, w io.Writer) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := e.writeHeader(file); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, c := range claims {
		if err := ctx.Err(); err != nil {
			return err
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{
			c.ID,
			c.UserID,
			string(c.Type),
			strings.Join(c.Months, ", "),
			c.Details.Provider,
			c.Details.BillingDate,
			c.Details.CustomerName,
			c.Details.TotalAmount,
			c.EligibleAmount,
			string(c.Status),
			c.Reasoning,
			c.AdminReason,
			c.SubmittedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := file.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write claim %s: %w", c.ID, err)
		}
	}

	if err := e.writeTotals(file, len(claims)); err != nil {
		return fmt.Errorf("failed to write totals: %w", err)
	}

	if _, err := file.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Claim ledger exported", zap.Int("rows", len(claims)))
	return nil
}

func (e *LedgerExporter) writeHeader(file *excelize.File) error {
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := file.SetSheetRow(sheetName, "A1", &row); err != nil {
		return err
	}

	style, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E7FF"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := file.SetCellStyle(sheetName, "A1", last, style); err != nil {
		return err
	}

	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := file.SetColWidth(sheetName, col, col, width); err != nil {
			return err
		}
	}

	return file.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// writeTotals adds SUM formulas under the amount columns
func (e *LedgerExporter) writeTotals(file *excelize.File, count int) error {
	totalRow := count + 2
	label, _ := excelize.CoordinatesToCellName(1, totalRow)
	if err := file.SetCellValue(sheetName, label, "Total"); err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	for _, col := range []string{"H", "I"} {
		cell := fmt.Sprintf("%s%d", col, totalRow)
		formula := fmt.Sprintf("SUM(%s2:%s%d)", col, col, count+1)
		if err := file.SetCellFormula(sheetName, cell, formula); err != nil {
			return err
		}
	}
	return nil
}

// Package export renders request listings as XLSX ledgers.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/garyjia/disbursement/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// SheetName is the name of the ledger worksheet
const SheetName = "Ledger"

const dateLayout = "2006-01-02"

type column struct {
	header string
	width  float64
	value  func(r *entity.Request) interface{}
}

var columns = []column{
	{"Request ID", 12, func(r *entity.Request) interface{} { return r.ID }},
	{"Type", 16, func(r *entity.Request) interface{} { return string(r.RequestType) }},
	{"Employee", 20, func(r *entity.Request) interface{} { return r.EmployeeName }},
	{"Department", 16, func(r *entity.Request) interface{} { return r.Department }},
	{"Category", 16, func(r *entity.Request) interface{} { return r.Category }},
	{"Priority", 10, func(r *entity.Request) interface{} { return r.Priority }},
	{"Currency", 10, func(r *entity.Request) interface{} { return r.Currency }},
	{"Amount", 14, func(r *entity.Request) interface{} { return r.Amount.InexactFloat64() }},
	{"Status", 22, func(r *entity.Request) interface{} { return string(r.Status) }},
	{"Next Action By", 18, func(r *entity.Request) interface{} { return joinRoles(r.NextActionBy) }},
	{"Advance ID", 12, func(r *entity.Request) interface{} { return r.AdvanceID }},
	{"Remaining", 14, func(r *entity.Request) interface{} {
		if r.RemainingAmount == nil {
			return ""
		}
		return r.RemainingAmount.InexactFloat64()
	}},
	{"Submitted", 12, func(r *entity.Request) interface{} { return r.CreatedAt.Format(dateLayout) }},
	{"Updated", 12, func(r *entity.Request) interface{} { return r.UpdatedAt.Format(dateLayout) }},
}

// LedgerWriter writes requests into a single-sheet workbook
type LedgerWriter struct {
	logger *zap.Logger
}

// NewLedgerWriter creates a new ledger writer
func NewLedgerWriter(logger *zap.Logger) *LedgerWriter {
	return &LedgerWriter{logger: logger}
}

// Extension returns the file extension of the workbook
func (lw *LedgerWriter) Extension() string {
	return ".xlsx"
}

// Write renders one row per request, with a styled frozen header and a totals row
func (lw *LedgerWriter) Write(w io.Writer, requests []*entity.Request) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			lw.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := lw.writeHeader(f); err != nil {
		return err
	}

	for i, req := range requests {
		row := i + 2
		for c, col := range columns {
			if err := lw.setCell(f, c+1, row, col.value(req)); err != nil {
				return err
			}
		}
	}

	if err := lw.writeTotals(f, len(requests)); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	lw.logger.Info("Ledger written", zap.Int("rows", len(requests)))
	return nil
}

func (lw *LedgerWriter) writeHeader(f *excelize.File) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1F4E78"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for c, col := range columns {
		name, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, name, name, col.width); err != nil {
			return fmt.Errorf("failed to size column %s: %w", name, err)
		}
		if err := lw.setCell(f, c+1, 1, col.header); err != nil {
			return err
		}
	}

	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	return f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// writeTotals adds a SUM formula under the amount column
func (lw *LedgerWriter) writeTotals(f *excelize.File, rows int) error {
	if rows == 0 {
		return nil
	}

	amountCol := columnIndex("Amount")
	totalRow := rows + 2

	if err := lw.setCell(f, amountCol-1, totalRow, "Total"); err != nil {
		return err
	}

	colName, err := excelize.ColumnNumberToName(amountCol)
	if err != nil {
		return err
	}
	cell := fmt.Sprintf("%s%d", colName, totalRow)
	formula := fmt.Sprintf("SUM(%s2:%s%d)", colName, colName, rows+1)
	if err := f.SetCellFormula(SheetName, cell, formula); err != nil {
		return fmt.Errorf("failed to set total formula: %w", err)
	}
	return nil
}

func (lw *LedgerWriter) setCell(f *excelize.File, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(SheetName, cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
	return nil
}

func columnIndex(header string) int {
	for i, col := range columns {
		if col.header == header {
			return i + 1
		}
	}
	return 0
}

func joinRoles(roles []entity.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

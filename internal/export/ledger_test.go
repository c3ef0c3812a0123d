package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/garyjia/disbursement/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestLedgerWriter_Write(t *testing.T) {
	created := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	remaining := decimal.RequireFromString("-250.5")
	requests := []*entity.Request{
		{
			ID:              "REQ002",
			RequestType:     entity.RequestTypeLiquidation,
			EmployeeName:    "Ella Santos",
			Category:        entity.CategoryTravel,
			Currency:        "PHP",
			Amount:          decimal.RequireFromString("8250.5"),
			Status:          entity.StatusPendingFinance,
			NextActionBy:    []entity.Role{entity.RoleFinance},
			AdvanceID:       "REQ001",
			RemainingAmount: &remaining,
			CreatedAt:       created,
			UpdatedAt:       created,
		},
		{
			ID:           "REQ001",
			RequestType:  entity.RequestTypeCashAdvance,
			EmployeeName: "Ella Santos",
			Category:     entity.CategoryTravel,
			Currency:     "PHP",
			Amount:       decimal.NewFromInt(8000),
			Status:       entity.StatusPendingLiquidation,
			NextActionBy: []entity.Role{entity.RoleEmployee},
			CreatedAt:    created.Add(-time.Hour),
			UpdatedAt:    created,
		},
	}

	var buf bytes.Buffer
	lw := NewLedgerWriter(zap.NewNop())
	require.NoError(t, lw.Write(&buf, requests))
	assert.Equal(t, ".xlsx", lw.Extension())

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	header, _ := f.GetCellValue(SheetName, "A1")
	assert.Equal(t, "Request ID", header)

	id, _ := f.GetCellValue(SheetName, "A2")
	assert.Equal(t, "REQ002", id)
	amount, _ := f.GetCellValue(SheetName, "H2")
	assert.Equal(t, "8250.5", amount)
	next, _ := f.GetCellValue(SheetName, "J2")
	assert.Equal(t, "Finance", next)
	advance, _ := f.GetCellValue(SheetName, "K2")
	assert.Equal(t, "REQ001", advance)
	rem, _ := f.GetCellValue(SheetName, "L2")
	assert.Equal(t, "-250.5", rem)
	submitted, _ := f.GetCellValue(SheetName, "M2")
	assert.Equal(t, "2026-03-04", submitted)

	emptyRemaining, _ := f.GetCellValue(SheetName, "L3")
	assert.Empty(t, emptyRemaining)

	label, _ := f.GetCellValue(SheetName, "G4")
	assert.Equal(t, "Total", label)
	formula, err := f.GetCellFormula(SheetName, "H4")
	require.NoError(t, err)
	assert.Equal(t, "SUM(H2:H3)", formula)
}

func TestLedgerWriter_EmptyListing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewLedgerWriter(zap.NewNop()).Write(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], len(columns))
}

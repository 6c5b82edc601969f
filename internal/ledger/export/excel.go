package export

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// SheetName is the worksheet holding the ledger.
const SheetName = "Ledger"

const amountFormat = "#,##0.00"

// ExcelRenderer builds an .xlsx workbook. Amount cells are written as numbers
// so they stay summable in a spreadsheet.
type ExcelRenderer struct{}

func (ExcelRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (ExcelRenderer) Extension() string { return "xlsx" }

// Render implements Renderer.
func (ExcelRenderer) Render(_ context.Context, ds Dataset) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	numFmt := amountFormat
	amount, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return nil, err
	}

	m := ds.Meta
	header := [][2]string{
		{"Report", ds.Title},
		{"Customer", m.Customer.ID},
		{"Period", m.Period.Label()},
		{"Opening Balance", balanceLabel(m.OpeningBalance, m.Policy)},
		{"Closing Balance", balanceLabel(m.ClosingBalance, m.Policy)},
	}
	row := 1
	for _, kv := range header {
		if err := setRow(f, row, []interface{}{kv[0], kv[1]}); err != nil {
			return nil, err
		}
		if err := styleRange(f, 1, row, 1, row, bold); err != nil {
			return nil, err
		}
		row++
	}
	row++

	titles := make([]interface{}, len(ds.Columns))
	for i, col := range ds.Columns {
		titles[i] = col.Title
	}
	if err := setRow(f, row, titles); err != nil {
		return nil, err
	}
	if err := styleRange(f, 1, row, len(ds.Columns), row, bold); err != nil {
		return nil, err
	}
	row++
	firstData := row

	for _, values := range ds.Rows {
		cells := make([]interface{}, len(values))
		for i, v := range values {
			cells[i] = v
			if i < len(ds.Columns) && ds.Columns[i].Numeric && v != "" {
				if d, err := ledger.ParseAmount(v); err == nil {
					cells[i] = d.InexactFloat64()
				}
			}
		}
		if err := setRow(f, row, cells); err != nil {
			return nil, err
		}
		row++
	}

	totals := make([]interface{}, len(ds.Columns))
	for i, col := range ds.Columns {
		totals[i] = ""
		if i == 0 {
			totals[i] = "Totals"
		}
		switch col.Key {
		case ledger.ColDebit:
			totals[i] = ds.TotalDebits.InexactFloat64()
		case ledger.ColCredit:
			totals[i] = ds.TotalCredits.InexactFloat64()
		}
	}
	if err := setRow(f, row, totals); err != nil {
		return nil, err
	}
	if err := styleRange(f, 1, row, 1, row, bold); err != nil {
		return nil, err
	}

	for i, col := range ds.Columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		width := 14.0
		if col.Key == ledger.ColParticulars {
			width = 40
		}
		if err := f.SetColWidth(SheetName, name, name, width); err != nil {
			return nil, err
		}
		if col.Numeric {
			if err := styleRange(f, i+1, firstData, i+1, row, amount); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(SheetName, cell, &values)
}

func styleRange(f *excelize.File, c1, r1, c2, r2, style int) error {
	from, err := excelize.CoordinatesToCellName(c1, r1)
	if err != nil {
		return err
	}
	to, err := excelize.CoordinatesToCellName(c2, r2)
	if err != nil {
		return err
	}
	return f.SetCellStyle(SheetName, from, to, style)
}

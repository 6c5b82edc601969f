package export

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

type fakeConverter struct {
	html string
}

func (f *fakeConverter) RenderHTML(_ context.Context, html string) ([]byte, error) {
	f.html = html
	return []byte("%PDF-fake"), nil
}

func sampleView() []ledger.Row {
	return []ledger.Row{
		{Transaction: ledger.Transaction{Date: "01 Apr 24", Particulars: "Sale <Acme>", VchType: ledger.VchInvoice, VchNo: "INV-1", Debit: "₹1,200.00", Balance: "₹1,200.00", BalanceType: ledger.BalanceDr}, DisplayDate: "01 Apr 24"},
		{Transaction: ledger.Transaction{Particulars: "Freight", VchType: ledger.VchInvoice, VchNo: "INV-1", Debit: "₹50.00", Balance: "₹1,250.00", BalanceType: ledger.BalanceDr}, DisplayDate: "01 Apr 24"},
	}
}

func sampleMeta(t *testing.T) Meta {
	t.Helper()
	period, err := ledger.ResolvePeriod(ledger.ReportContext{}, ledger.PeriodSelector{Type: ledger.ReportFinancialYear, Value: "2024-25"})
	require.NoError(t, err)
	return Meta{
		Customer:       ledger.Customer{ID: "C-1", Name: "Acme"},
		Period:         period,
		ClosingBalance: decimal.NewFromInt(1250),
		Summary:        ledger.Summary{TotalDebits: decimal.NewFromInt(1250), TransactionCount: 2},
		Policy:         ledger.SignPositiveDr,
	}
}

func TestExportEmptyViewIsRejected(t *testing.T) {
	a := NewAdapter(DefaultRenderers(nil))
	_, err := a.Export(context.Background(), nil, sampleMeta(t), FormatCSV)
	require.ErrorIs(t, err, ledger.ErrEmptyExport)
	assert.Equal(t, "Table is empty", err.Error())
}

func TestExportUnsupportedFormat(t *testing.T) {
	_, err := ParseFormat("docx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	f, err := ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatExcel, f)

	a := NewAdapter(DefaultRenderers(nil))
	assert.False(t, a.Supports(FormatPDF))
	_, err = a.Export(context.Background(), sampleView(), sampleMeta(t), FormatPDF)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestExportCSV(t *testing.T) {
	a := NewAdapter(DefaultRenderers(nil))
	art, err := a.Export(context.Background(), sampleView(), sampleMeta(t), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "customer-ledger-C-1-FY-2024-25.csv", art.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", art.ContentType)

	content := string(art.Body)
	assert.True(t, strings.HasPrefix(content, "# Report: Customer Ledger - Acme\r\n"))
	assert.Contains(t, content, "# Period: FY 2024-25\r\n")
	assert.Contains(t, content, "# Closing Balance: 1,250.00 Dr\r\n")
	assert.Contains(t, content, "Date,Particulars,Vch Type,Vch No.,Debit,Credit,Balance,Dr/Cr\r\n")
	assert.Contains(t, content, "01 Apr 24,Freight,Invoice,INV-1,₹50.00,,\"₹1,250.00\",Dr\r\n")
	assert.Contains(t, content, "Totals,,,,\"₹1,250.00\",,,\r\n")
}

func TestCSVStreamerFlushInterval(t *testing.T) {
	var buf bytes.Buffer
	streamer := newCSVStreamer(&buf)
	for i := 0; i < csvFlushEvery; i++ {
		require.NoError(t, streamer.writeRow([]string{"row"}))
	}
	assert.Equal(t, 0, streamer.pendingLines)
	require.NoError(t, streamer.writeRow([]string{"next"}))
	assert.Equal(t, 1, streamer.pendingLines)
	require.NoError(t, streamer.Close())
}

func TestExportExcel(t *testing.T) {
	a := NewAdapter(DefaultRenderers(nil))
	art, err := a.Export(context.Background(), sampleView(), sampleMeta(t), FormatExcel)
	require.NoError(t, err)
	assert.Equal(t, "customer-ledger-C-1-FY-2024-25.xlsx", art.Filename)

	f, err := excelize.OpenReader(bytes.NewReader(art.Body))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)

	header := -1
	for i, r := range rows {
		if len(r) > 0 && r[0] == "Date" {
			header = i
			break
		}
	}
	require.GreaterOrEqual(t, header, 0)
	require.Greater(t, len(rows), header+2)
	assert.Equal(t, "Sale <Acme>", rows[header+1][1])
	debit, err := ledger.ParseAmount(rows[header+1][4])
	require.NoError(t, err)
	assert.True(t, debit.Equal(decimal.NewFromInt(1200)))
}

func TestExportPrintEscapesHTML(t *testing.T) {
	a := NewAdapter(DefaultRenderers(nil))
	art, err := a.Export(context.Background(), sampleView(), sampleMeta(t), FormatPrint)
	require.NoError(t, err)
	html := string(art.Body)
	assert.Contains(t, html, "Sale &lt;Acme&gt;")
	assert.Contains(t, html, "FY 2024-25")
	assert.Equal(t, 2, strings.Count(html, "INV-1"))
}

func TestExportPDFUsesConverter(t *testing.T) {
	conv := &fakeConverter{}
	a := NewAdapter(DefaultRenderers(conv))
	art, err := a.Export(context.Background(), sampleView(), sampleMeta(t), FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", art.ContentType)
	assert.Equal(t, "customer-ledger-C-1-FY-2024-25.pdf", art.Filename)
	assert.Equal(t, "%PDF-fake", string(art.Body))
	assert.Contains(t, conv.html, "Freight")
}

func TestBuildDatasetKeepsViewOrder(t *testing.T) {
	view := sampleView()
	view[0], view[1] = view[1], view[0]
	ds := BuildDataset(view, sampleMeta(t))
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "Freight", ds.Rows[0][1])
	assert.Equal(t, "01 Apr 24", ds.Rows[0][0])
}

func TestExportTotalsFollowFilteredView(t *testing.T) {
	view := []ledger.Row{
		{Transaction: ledger.Transaction{Date: "05 Apr 24", Particulars: "Payment", VchType: ledger.VchReceipt, VchNo: "RC-1", Credit: "₹100.00", Balance: "₹900.00", BalanceType: ledger.BalanceDr}, DisplayDate: "05 Apr 24"},
	}
	meta := sampleMeta(t)
	meta.Summary = ledger.Summary{TotalDebits: decimal.NewFromInt(1000), TotalCredits: decimal.NewFromInt(100), TransactionCount: 2}

	ds := BuildDataset(view, meta)
	assert.True(t, ds.TotalDebits.IsZero())
	assert.True(t, ds.TotalCredits.Equal(decimal.NewFromInt(100)))

	a := NewAdapter(DefaultRenderers(nil))
	art, err := a.Export(context.Background(), view, meta, FormatCSV)
	require.NoError(t, err)
	assert.Contains(t, string(art.Body), "Totals,,,,,₹100.00,,\r\n")
	assert.NotContains(t, string(art.Body), "1,000.00")

	art, err = a.Export(context.Background(), view, meta, FormatPrint)
	require.NoError(t, err)
	assert.NotContains(t, string(art.Body), "1,000.00")

	art, err = a.Export(context.Background(), view, meta, FormatExcel)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(art.Body))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	last := rows[len(rows)-1]
	require.Equal(t, "Totals", last[0])
	require.Len(t, last, 6)
	credit, err := ledger.ParseAmount(last[5])
	require.NoError(t, err)
	assert.True(t, credit.Equal(decimal.NewFromInt(100)))
	debit, err := ledger.ParseAmount(last[4])
	require.NoError(t, err)
	assert.True(t, debit.IsZero())
}

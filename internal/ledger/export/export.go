// Package export turns the visible ledger view into downloadable artifacts.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// Format names an export target.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatExcel Format = "excel"
	FormatCSV   Format = "csv"
	FormatPrint Format = "print"
)

// ErrUnsupportedFormat is returned for formats without a renderer.
var ErrUnsupportedFormat = errors.New("export: unsupported format")

// ParseFormat accepts a format name case-insensitively. "xlsx" is an alias
// of excel.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPDF, FormatExcel, FormatCSV, FormatPrint:
		return f, nil
	case "xlsx":
		return FormatExcel, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Meta describes the report an export was taken from.
type Meta struct {
	Customer       ledger.Customer
	Period         ledger.Period
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	Summary        ledger.Summary
	Policy         ledger.SignPolicy
	GeneratedAt    time.Time
}

// MetaFromReport copies the header figures of r.
func MetaFromReport(r *ledger.Report, policy ledger.SignPolicy) Meta {
	if r == nil {
		return Meta{Policy: policy}
	}
	return Meta{
		Customer:       r.Customer,
		Period:         r.Period,
		OpeningBalance: r.OpeningBalance,
		ClosingBalance: r.ClosingBalance,
		Summary:        r.Summary,
		Policy:         policy,
		GeneratedAt:    r.GeneratedAt,
	}
}

// Column is one exported column.
type Column struct {
	Key     ledger.Column
	Title   string
	Numeric bool
}

// LedgerColumns is the fixed export layout.
var LedgerColumns = []Column{
	{Key: ledger.ColDate, Title: "Date"},
	{Key: ledger.ColParticulars, Title: "Particulars"},
	{Key: ledger.ColVchType, Title: "Vch Type"},
	{Key: ledger.ColVchNo, Title: "Vch No."},
	{Key: ledger.ColDebit, Title: "Debit", Numeric: true},
	{Key: ledger.ColCredit, Title: "Credit", Numeric: true},
	{Key: ledger.ColBalance, Title: "Balance", Numeric: true},
	{Key: ledger.ColBalanceType, Title: "Dr/Cr"},
}

// Dataset is the renderer-neutral form of an export. Totals cover the
// exported rows only, so a filtered view foots to its own figures.
type Dataset struct {
	Title        string
	Columns      []Column
	Rows         [][]string
	TotalDebits  decimal.Decimal
	TotalCredits decimal.Decimal
	Meta         Meta
}

// Artifact is a rendered export ready for download.
type Artifact struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Renderer produces the bytes of one format.
type Renderer interface {
	Render(ctx context.Context, ds Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// Adapter dispatches datasets to the registered renderers.
type Adapter struct {
	renderers map[Format]Renderer
}

// NewAdapter registers renderers per format.
func NewAdapter(renderers map[Format]Renderer) *Adapter {
	copied := make(map[Format]Renderer, len(renderers))
	for f, r := range renderers {
		if r != nil {
			copied[f] = r
		}
	}
	return &Adapter{renderers: copied}
}

// DefaultRenderers wires every format. A nil pdf converter leaves PDF
// unregistered.
func DefaultRenderers(pdf HTMLConverter) map[Format]Renderer {
	out := map[Format]Renderer{
		FormatCSV:   CSVRenderer{},
		FormatExcel: ExcelRenderer{},
		FormatPrint: PrintRenderer{},
	}
	if pdf != nil {
		out[FormatPDF] = PDFRenderer{Converter: pdf}
	}
	return out
}

// Supports reports whether format has a renderer.
func (a *Adapter) Supports(format Format) bool {
	_, ok := a.renderers[format]
	return ok
}

// Export renders exactly the rows of view, in their current order.
func (a *Adapter) Export(ctx context.Context, view []ledger.Row, meta Meta, format Format) (Artifact, error) {
	if len(view) == 0 {
		return Artifact{}, &ledger.EmptyExportError{}
	}
	renderer, ok := a.renderers[format]
	if !ok {
		return Artifact{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	ds := BuildDataset(view, meta)
	body, err := renderer.Render(ctx, ds)
	if err != nil {
		return Artifact{}, fmt.Errorf("render %s: %w", format, err)
	}
	return Artifact{
		Filename:    Filename(meta, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

// BuildDataset flattens rows into LedgerColumns order. The date column shows
// the propagated display date.
func BuildDataset(view []ledger.Row, meta Meta) Dataset {
	rows := make([][]string, 0, len(view))
	debits, credits := decimal.Zero, decimal.Zero
	for _, r := range view {
		debits = debits.Add(cellAmount(r.Debit))
		credits = credits.Add(cellAmount(r.Credit))
		rows = append(rows, []string{
			r.DisplayDate,
			r.Particulars,
			r.VchType,
			r.VchNo,
			r.Debit,
			r.Credit,
			r.Balance,
			r.BalanceType,
		})
	}
	title := "Customer Ledger"
	if meta.Customer.Name != "" {
		title += " - " + meta.Customer.Name
	}
	return Dataset{
		Title:        title,
		Columns:      LedgerColumns,
		Rows:         rows,
		TotalDebits:  debits,
		TotalCredits: credits,
		Meta:         meta,
	}
}

func cellAmount(s string) decimal.Decimal {
	d, err := ledger.ParseAmount(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Filename follows the customer ledger download naming with ext appended.
func Filename(meta Meta, ext string) string {
	id := meta.Customer.ID
	if id == "" {
		id = "unknown"
	}
	return meta.Period.FileStem(id) + "." + ext
}

func balanceLabel(v decimal.Decimal, policy ledger.SignPolicy) string {
	if policy == "" {
		policy = ledger.SignPositiveDr
	}
	return ledger.BalanceLabel(v, policy)
}

package export

import (
	"bytes"
	"context"
	"html/template"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

var printTemplate = template.Must(template.New("ledger-print").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body{font-family:Arial,Helvetica,sans-serif;font-size:11px;margin:24px;color:#111}
h1{font-size:16px;margin:0 0 4px}
.meta{margin-bottom:12px}
.meta div{margin:2px 0}
table{width:100%;border-collapse:collapse}
th,td{border:1px solid #999;padding:4px 6px;text-align:left}
th{background:#eee}
td.num,th.num{text-align:right}
tfoot td{font-weight:bold}
@media print{body{margin:0}}
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="meta">
<div>Customer: {{.Customer}}</div>
<div>Period: {{.Period}}</div>
<div>Opening Balance: {{.Opening}}</div>
<div>Closing Balance: {{.Closing}}</div>
</div>
<table>
<thead><tr>{{range .Columns}}<th{{if .Numeric}} class="num"{{end}}>{{.Title}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Rows}}
<tr>{{range .}}<td{{if .Numeric}} class="num"{{end}}>{{.Value}}</td>{{end}}</tr>
{{- end}}
</tbody>
<tfoot><tr>{{range .Totals}}<td{{if .Numeric}} class="num"{{end}}>{{.Value}}</td>{{end}}</tr></tfoot>
</table>
</body>
</html>
`))

type printCell struct {
	Value   string
	Numeric bool
}

type printView struct {
	Title    string
	Customer string
	Period   string
	Opening  string
	Closing  string
	Columns  []Column
	Rows     [][]printCell
	Totals   []printCell
}

// PrintRenderer produces a standalone printable HTML document.
type PrintRenderer struct{}

func (PrintRenderer) ContentType() string { return "text/html; charset=utf-8" }
func (PrintRenderer) Extension() string   { return "html" }

// Render implements Renderer.
func (PrintRenderer) Render(_ context.Context, ds Dataset) ([]byte, error) {
	html, err := RenderHTML(ds)
	if err != nil {
		return nil, err
	}
	return []byte(html), nil
}

// RenderHTML executes the print template for ds.
func RenderHTML(ds Dataset) (string, error) {
	m := ds.Meta
	customer := m.Customer.Name
	if customer == "" {
		customer = m.Customer.ID
	}
	view := printView{
		Title:    ds.Title,
		Customer: customer,
		Period:   m.Period.Label(),
		Opening:  balanceLabel(m.OpeningBalance, m.Policy),
		Closing:  balanceLabel(m.ClosingBalance, m.Policy),
		Columns:  ds.Columns,
	}
	for _, row := range ds.Rows {
		cells := make([]printCell, len(row))
		for i, v := range row {
			cells[i] = printCell{Value: v, Numeric: i < len(ds.Columns) && ds.Columns[i].Numeric}
		}
		view.Rows = append(view.Rows, cells)
	}
	view.Totals = make([]printCell, len(ds.Columns))
	for i, col := range ds.Columns {
		cell := printCell{Numeric: col.Numeric}
		switch {
		case i == 0:
			cell.Value = "Totals"
		case col.Key == ledger.ColDebit:
			cell.Value = ledger.FormatCurrency(ds.TotalDebits)
		case col.Key == ledger.ColCredit:
			cell.Value = ledger.FormatCurrency(ds.TotalCredits)
		}
		view.Totals[i] = cell
	}
	var buf bytes.Buffer
	if err := printTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

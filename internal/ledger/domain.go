// Package ledger implements the customer ledger reporting engine: period
// resolution, normalisation of upstream transaction records, voucher date
// propagation, client-side range narrowing and the filter/sort view engine.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance directions.
const (
	BalanceDr = "Dr"
	BalanceCr = "Cr"
)

// Known voucher types. The set is open; unknown values pass through untouched.
const (
	VchInvoice    = "Invoice"
	VchReceipt    = "Receipt"
	VchReturn     = "Return"
	VchCreditNote = "Credit Note"
)

// FilterAll disables a vchType or balanceType filter.
const FilterAll = "all"

// ReportContext carries the caller scope explicitly into the resolver and
// fetcher instead of reading it from ambient session state.
type ReportContext struct {
	DivisionID string
	Location   *time.Location
}

func (rc ReportContext) location() *time.Location {
	if rc.Location == nil {
		return time.UTC
	}
	return rc.Location
}

// Customer is fetched once per report and treated as immutable.
type Customer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	GSTIN     string `json:"gstin,omitempty"`
	PAN       string `json:"pan,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	Division  string `json:"divisionId,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// Transaction is the canonical ledger row after normalisation. Amount fields
// hold display strings; empty means a blank cell.
type Transaction struct {
	Date        string `json:"date"`
	Particulars string `json:"particulars"`
	VchType     string `json:"vchType"`
	VchNo       string `json:"vchNo"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Balance     string `json:"balance"`
	BalanceType string `json:"balanceType"`
}

// Row is a transaction as rendered, with the date propagated from the
// voucher's first line.
type Row struct {
	Transaction
	DisplayDate string `json:"displayDate"`
}

// Summary aggregates the report totals.
type Summary struct {
	TotalDebits      decimal.Decimal `json:"totalDebits"`
	TotalCredits     decimal.Decimal `json:"totalCredits"`
	TransactionCount int             `json:"transactionCount"`
	NetBalance       decimal.Decimal `json:"netBalance"`
}

// Report is built fresh on every submit and never mutated afterwards;
// filtering and sorting operate on derived row slices.
type Report struct {
	Customer       Customer        `json:"customer"`
	Period         Period          `json:"period"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	ClosingBalance decimal.Decimal `json:"closingBalance"`
	Transactions   []Transaction   `json:"transactions"`
	Rows           []Row           `json:"rows"`
	Summary        Summary         `json:"summary"`
	GeneratedAt    time.Time       `json:"generatedAt"`
}

// Empty reports whether the report carries no transactions.
func (r *Report) Empty() bool {
	return r == nil || len(r.Transactions) == 0
}

// View returns a copy of the filled rows so callers can derive views
// without touching the report.
func (r *Report) View() []Row {
	if r == nil {
		return nil
	}
	out := make([]Row, len(r.Rows))
	copy(out, r.Rows)
	return out
}

// BalanceLabel renders a signed balance as "1,234.00 Dr" style text.
func BalanceLabel(v decimal.Decimal, policy SignPolicy) string {
	return FormatPlain(v.Abs()) + " " + policy.Direction(v)
}

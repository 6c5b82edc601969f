package ledger

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Column identifies a sortable ledger column.
type Column string

const (
	ColDate        Column = "date"
	ColParticulars Column = "particulars"
	ColVchType     Column = "vchType"
	ColVchNo       Column = "vchNo"
	ColDebit       Column = "debit"
	ColCredit      Column = "credit"
	ColBalance     Column = "balance"
	ColBalanceType Column = "balanceType"
)

// Columns lists the table columns in display order.
var Columns = []Column{ColDate, ColParticulars, ColVchType, ColVchNo, ColDebit, ColCredit, ColBalance, ColBalanceType}

// Direction is the sort order of the active column.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

var missingDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// ParseColumn accepts a column key case-insensitively.
func ParseColumn(s string) (Column, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Columns {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// ParseDirection defaults anything but "desc" to ascending.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Desc)) {
		return Desc
	}
	return Asc
}

// SortState is the single active sort key.
type SortState struct {
	Column    Column    `json:"column,omitempty"`
	Direction Direction `json:"direction,omitempty"`
}

// Toggle flips the direction when column is already active and otherwise
// activates column ascending.
func (s SortState) Toggle(column Column) SortState {
	if s.Column == column {
		if s.Direction == Asc {
			return SortState{Column: column, Direction: Desc}
		}
		return SortState{Column: column, Direction: Asc}
	}
	return SortState{Column: column, Direction: Asc}
}

// ViewQuery holds the table controls. Empty fields disable their filter.
type ViewQuery struct {
	Search      string
	VchType     string
	BalanceType string
	Sort        SortState
}

// ApplyView filters rows (all conditions must hold) and then sorts them with
// a stable, type aware comparator. The input slice is left untouched.
func ApplyView(rows []Row, q ViewQuery) []Row {
	term := strings.ToLower(strings.TrimSpace(q.Search))
	vchType := activeFilter(q.VchType)
	balanceType := activeFilter(q.BalanceType)

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if term != "" &&
			!strings.Contains(strings.ToLower(row.Particulars), term) &&
			!strings.Contains(strings.ToLower(row.VchNo), term) {
			continue
		}
		if vchType != "" && row.VchType != vchType {
			continue
		}
		if balanceType != "" && row.BalanceType != balanceType {
			continue
		}
		out = append(out, row)
	}
	SortRows(out, q.Sort)
	return out
}

// SortRows sorts rows in place. Equal keys keep their relative order.
func SortRows(rows []Row, state SortState) {
	if state.Column == "" {
		return
	}
	less := comparator(state.Column)
	if less == nil {
		return
	}
	desc := state.Direction == Desc
	sort.SliceStable(rows, func(i, j int) bool {
		if desc {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})
}

func comparator(col Column) func(a, b Row) bool {
	switch col {
	case ColDate:
		return func(a, b Row) bool { return sortDate(a).Before(sortDate(b)) }
	case ColDebit, ColCredit, ColBalance:
		return func(a, b Row) bool { return sortAmount(a, col).LessThan(sortAmount(b, col)) }
	case ColParticulars, ColVchType, ColVchNo, ColBalanceType:
		return func(a, b Row) bool { return sortText(a, col) < sortText(b, col) }
	default:
		return nil
	}
}

func sortDate(r Row) time.Time {
	raw := r.DisplayDate
	if raw == "" {
		raw = r.Date
	}
	if t, ok := ParseDisplayDate(raw, time.UTC); ok {
		return t
	}
	return missingDate
}

func sortAmount(r Row, col Column) decimal.Decimal {
	switch col {
	case ColDebit:
		return amountOrZero(r.Debit)
	case ColCredit:
		return amountOrZero(r.Credit)
	default:
		return amountOrZero(r.Balance)
	}
}

func sortText(r Row, col Column) string {
	var v string
	switch col {
	case ColParticulars:
		v = r.Particulars
	case ColVchType:
		v = r.VchType
	case ColVchNo:
		v = r.VchNo
	case ColBalanceType:
		v = r.BalanceType
	}
	return strings.ToLower(v)
}

func activeFilter(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, FilterAll) {
		return ""
	}
	return v
}

// VoucherTypes returns the distinct vchType values of rows in first-seen
// order, for populating the transaction type filter.
func VoucherTypes(rows []Row) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, row := range rows {
		if row.VchType == "" {
			continue
		}
		if _, ok := seen[row.VchType]; ok {
			continue
		}
		seen[row.VchType] = struct{}{}
		out = append(out, row.VchType)
	}
	return out
}

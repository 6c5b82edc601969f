package ledger

import "strings"

// FillDates propagates the last seen non-blank date onto continuation rows
// of multi-line vouchers. The input slice is not modified.
func FillDates(txns []Transaction) []Row {
	rows := make([]Row, len(txns))
	lastSeen := ""
	for i, txn := range txns {
		if strings.TrimSpace(txn.Date) != "" {
			lastSeen = txn.Date
		}
		rows[i] = Row{Transaction: txn, DisplayDate: lastSeen}
	}
	return rows
}

// PromoteDisplayDates returns the transactions of rows with DisplayDate moved
// into Date, so a filled sequence can be fed back through FillDates.
func PromoteDisplayDates(rows []Row) []Transaction {
	out := make([]Transaction, len(rows))
	for i, row := range rows {
		txn := row.Transaction
		txn.Date = row.DisplayDate
		out[i] = txn
	}
	return out
}

package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amt(v string) Amount {
	return Amount{Value: decimal.RequireFromString(v), Present: true}
}

func TestNormalizeMapsRecords(t *testing.T) {
	n := NewNormalizer(DefaultLocale, SignPositiveDr)
	raw := []RawTransaction{
		{Date: "01 Apr 24", Particulars: "Sale", VchType: VchInvoice, VchNo: "INV-1", Debit: amt("1200"), Balance: amt("1200")},
		{Date: "05 Apr 24", Particulars: "Payment", VchType: VchReceipt, VchNo: "RC-1", Credit: amt("1500"), Balance: amt("-300")},
		{Particulars: "Adjustment", VchType: "Journal", VchNo: "J-1", Balance: amt("300"), BalanceType: "CR"},
	}
	txns, totals, err := n.Normalize(raw)
	require.NoError(t, err)
	require.Len(t, txns, 3)

	assert.Equal(t, "₹1,200.00", txns[0].Debit)
	assert.Equal(t, "", txns[0].Credit)
	assert.Equal(t, BalanceDr, txns[0].BalanceType)

	assert.Equal(t, "₹1,500.00", txns[1].Credit)
	assert.Equal(t, "₹300.00", txns[1].Balance)
	assert.Equal(t, BalanceCr, txns[1].BalanceType)

	assert.Equal(t, "", txns[2].Date)
	assert.Equal(t, "Journal", txns[2].VchType)
	assert.Equal(t, BalanceCr, txns[2].BalanceType)

	assert.Equal(t, 3, totals.Count)
	assert.True(t, totals.Debits.Equal(decimal.NewFromInt(1200)))
	assert.True(t, totals.Credits.Equal(decimal.NewFromInt(1500)))
	assert.True(t, totals.FirstBalance.Equal(decimal.NewFromInt(1200)))
	assert.True(t, totals.LastBalance.Equal(decimal.NewFromInt(-300)))
}

func TestNormalizePreservesOrderAndDuplicates(t *testing.T) {
	n := NewNormalizer(DefaultLocale, "")
	raw := []RawTransaction{
		{Date: "02 Apr 24", VchNo: "B"},
		{Date: "01 Apr 24", VchNo: "A"},
		{Date: "01 Apr 24", VchNo: "A"},
	}
	txns, _, err := n.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "A"}, []string{txns[0].VchNo, txns[1].VchNo, txns[2].VchNo})
}

func TestNormalizeRejectsDebitAndCreditOnOneRow(t *testing.T) {
	n := NewNormalizer(DefaultLocale, SignPositiveDr)
	_, _, err := n.Normalize([]RawTransaction{{Debit: amt("10"), Credit: amt("5")}})
	assert.ErrorIs(t, err, ErrFetch)
}

func TestSignPolicy(t *testing.T) {
	pos := decimal.NewFromInt(50)
	neg := decimal.NewFromInt(-50)
	assert.Equal(t, BalanceDr, SignPositiveDr.Direction(pos))
	assert.Equal(t, BalanceCr, SignPositiveDr.Direction(neg))
	assert.Equal(t, BalanceCr, SignPositiveCr.Direction(pos))
	assert.Equal(t, BalanceDr, SignPositiveCr.Direction(neg))

	assert.True(t, SignPositiveDr.Signed(pos, BalanceCr).Equal(neg))
	assert.True(t, SignPositiveCr.Signed(pos, BalanceCr).Equal(pos))

	_, err := ParseSignPolicy("sideways")
	assert.Error(t, err)
	p, err := ParseSignPolicy("")
	require.NoError(t, err)
	assert.Equal(t, SignPositiveDr, p)

	assert.Equal(t, "50.00 Cr", BalanceLabel(neg, SignPositiveDr))
}

package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelopePriority(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		source string
	}{
		{"data wins over ledger", `{"data":{"transactions":[{"date":"01 Apr 24"}]},"ledger":{"transactions":[]}}`, SourceData},
		{"ledger when data lacks transactions", `{"data":{"foo":1},"ledger":{"transactions":[{"date":"01 Apr 24"}]}}`, SourceLedger},
		{"items array", `{"items":[{"date":"01 Apr 24"}]}`, SourceItems},
		{"body object", `{"success":true,"transactions":[{"date":"01 Apr 24"}]}`, SourceBody},
		{"bare array", `[{"date":"01 Apr 24"}]`, SourceBody},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := DecodeEnvelope([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.source, p.Source)
		})
	}
}

func TestDecodeEnvelopeAliasesAndAmounts(t *testing.T) {
	body := `{"data":{
		"customer":{"_id":"C-9","customerName":"Acme Traders","gstNumber":"27AAAAA0000A1Z5"},
		"openingBalance":"₹1,000.00",
		"transactions":[
			{"txnDate":"01 Apr 24","narration":"Sale","voucherType":"Invoice","voucherNo":1001,"dr":"1,200.00","runningBalance":2200,"drCr":"dr"},
			{"transactionDate":null,"description":"Freight","vch_type":"Invoice","vch_no":"1001","debit":null,"credit":"","balance":"2,200.00"}
		],
		"summary":{"totalDebits":1200,"transactionCount":2}
	}}`
	p, err := DecodeEnvelope([]byte(body))
	require.NoError(t, err)
	require.Len(t, p.Transactions, 2)

	first := p.Transactions[0]
	assert.Equal(t, "01 Apr 24", first.Date)
	assert.Equal(t, "Sale", first.Particulars)
	assert.Equal(t, "Invoice", first.VchType)
	assert.Equal(t, "1001", first.VchNo)
	assert.True(t, first.Debit.Value.Equal(decimal.NewFromInt(1200)))
	assert.False(t, first.Credit.Present)
	assert.Equal(t, "dr", first.BalanceType)

	second := p.Transactions[1]
	assert.Equal(t, "", second.Date)
	assert.False(t, second.Debit.Present)
	assert.False(t, second.Credit.Present)
	assert.True(t, second.Balance.Value.Equal(decimal.NewFromInt(2200)))

	assert.Equal(t, "C-9", p.Customer.ID)
	assert.Equal(t, "Acme Traders", p.Customer.Name)
	assert.Equal(t, "27AAAAA0000A1Z5", p.Customer.GSTIN)
	assert.True(t, p.OpeningBalance.Present)
	require.NotNil(t, p.Summary)
	require.NotNil(t, p.Summary.TransactionCount)
	assert.Equal(t, 2, *p.Summary.TransactionCount)
	assert.False(t, p.Summary.TotalCredits.Present)
}

func TestDecodeEnvelopeFailures(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"success":false,"message":"Customer not found"}`))
	var ferr *FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, "Customer not found", ferr.Error())

	_, err = DecodeEnvelope([]byte(`{"success":false}`))
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, DefaultFetchMessage, ferr.Error())

	for _, body := range []string{``, `not json`, `{"data":{"foo":1}}`, `{"data":{"transactions":[{"debit":"abc"}]}}`} {
		_, err := DecodeEnvelope([]byte(body))
		assert.ErrorIs(t, err, ErrFetch, body)
	}
}

func TestDecodeCustomers(t *testing.T) {
	list, err := DecodeCustomers([]byte(`{"success":true,"data":[{"id":"C-1","name":"Acme"},{"customerId":"C-2","displayName":"Beta"}]}`))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, Customer{ID: "C-2", Name: "Beta"}, list[1])

	list, err = DecodeCustomers([]byte(`[{"id":"C-3","name":"Gamma","divisionId":"D1"}]`))
	require.NoError(t, err)
	assert.Equal(t, "D1", list[0].Division)

	_, err = DecodeCustomers([]byte(`{"data":{"id":"C-1"}}`))
	assert.ErrorIs(t, err, ErrFetch)
}

func TestBackendMessage(t *testing.T) {
	assert.Equal(t, "boom", BackendMessage([]byte(`{"error":"boom"}`)))
	assert.Equal(t, DefaultFetchMessage, BackendMessage([]byte(`<html>`)))
}

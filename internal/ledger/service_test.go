package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu       sync.Mutex
	body     []byte
	err      error
	fyCalls  []string
	rangeFor []Period
	gate     chan struct{}
}

func (f *fakeFetcher) FetchRange(ctx context.Context, rc ReportContext, customerID string, period Period) ([]byte, error) {
	f.mu.Lock()
	f.rangeFor = append(f.rangeFor, period)
	body, err, gate := f.body, f.err, f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return body, err
}

func (f *fakeFetcher) FetchFinancialYear(ctx context.Context, rc ReportContext, customerID, fy string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fyCalls = append(f.fyCalls, fy)
	return f.body, f.err
}

const settledLedger = `{"success":true,"data":{
	"customer":{"id":"X","name":"Customer X"},
	"transactions":[
		{"date":"01 Apr 24","particulars":"Opening Balance","vchType":"","vchNo":"","debit":0,"credit":0,"balance":0,"balanceType":"Dr"},
		{"date":"10 Apr 24","particulars":"Sales","vchType":"Invoice","vchNo":"INV-1","debit":0,"credit":29150,"balance":29150,"balanceType":"Dr"},
		{"date":"20 Apr 24","particulars":"Bank","vchType":"Receipt","vchNo":"RC-1","debit":29150,"credit":0,"balance":0,"balanceType":"Dr"}
	]
}}`

func newTestService(f Fetcher) *Service {
	return NewService(f, nil, ServiceConfig{
		Policy: SignPositiveDr,
		Clock:  func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) },
	})
}

func TestGenerateFinancialYearSettlesToZero(t *testing.T) {
	f := &fakeFetcher{body: []byte(settledLedger)}
	svc := newTestService(f)

	report, err := svc.Generate(context.Background(), ReportContext{DivisionID: "D1"}, ReportRequest{
		CustomerID:    "X",
		ReportType:    ReportFinancialYear,
		FinancialYear: "2024-25",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-25"}, f.fyCalls)
	assert.Empty(t, f.rangeFor)

	assert.Equal(t, "0.00", FormatPlain(report.ClosingBalance))
	assert.Equal(t, 3, report.Summary.TransactionCount)
	assert.Equal(t, "Customer X", report.Customer.Name)
	assert.Equal(t, "2024-04-01", report.Period.FromParam())
	assert.Equal(t, "2025-03-31", report.Period.ToParam())
	require.Len(t, report.Rows, 3)
	assert.Equal(t, "₹29,150.00", report.Rows[1].Credit)
	assert.Equal(t, "", report.Rows[0].Debit)
}

func TestGenerateUsesRangeEndpointForOtherTypes(t *testing.T) {
	f := &fakeFetcher{body: []byte(settledLedger)}
	svc := newTestService(f)
	_, err := svc.Generate(context.Background(), ReportContext{}, ReportRequest{
		CustomerID: "X",
		ReportType: ReportQuarterly,
		Quarter:    "2024-Q2",
	})
	require.NoError(t, err)
	require.Len(t, f.rangeFor, 1)
	assert.Equal(t, "2024-04-01", f.rangeFor[0].FromParam())
	assert.Equal(t, "2024-06-30", f.rangeFor[0].ToParam())
}

func TestGenerateValidatesBeforeFetching(t *testing.T) {
	f := &fakeFetcher{body: []byte(settledLedger)}
	svc := newTestService(f)

	_, err := svc.Generate(context.Background(), ReportContext{}, ReportRequest{ReportType: ReportYearly, Year: "2024"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "customerId", verr.Field)

	_, err = svc.Generate(context.Background(), ReportContext{}, ReportRequest{CustomerID: "X", ReportType: "weekly"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Generate(context.Background(), ReportContext{}, ReportRequest{CustomerID: "X", ReportType: ReportCustom, FromDate: "2024-05-01", ToDate: "2024-04-01"})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, f.fyCalls)
	assert.Empty(t, f.rangeFor)
}

func TestGenerateEmptyPeriodIsSoft(t *testing.T) {
	f := &fakeFetcher{body: []byte(`{"data":{"transactions":[]}}`)}
	svc := newTestService(f)
	report, err := svc.Generate(context.Background(), ReportContext{}, ReportRequest{CustomerID: "X", ReportType: ReportYearly, Year: "2023"})
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrEmptyResult)
	assert.True(t, IsSoft(err))
}

func TestBuildReportPrefersServerFigures(t *testing.T) {
	p, err := DecodeEnvelope([]byte(`{"ledger":{
		"openingBalance":500,"closingBalance":"1,700.00",
		"summary":{"totalDebits":1200,"totalCredits":0,"netBalance":1700,"transactionCount":9},
		"transactions":[{"date":"01 Apr 24","debit":1200,"balance":1700}]
	}}`))
	require.NoError(t, err)
	report, err := BuildReport(p, Period{}, "C-1", NewNormalizer(DefaultLocale, SignPositiveDr), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "C-1", report.Customer.ID)
	assert.Equal(t, "500.00", FormatPlain(report.OpeningBalance))
	assert.Equal(t, "1,700.00", FormatPlain(report.ClosingBalance))
	assert.Equal(t, 9, report.Summary.TransactionCount)
	assert.Equal(t, "1,700.00", FormatPlain(report.Summary.NetBalance))
}

func TestBuildReportFallsBackToRowBalances(t *testing.T) {
	p, err := DecodeEnvelope([]byte(`[{"date":"01 Apr 24","debit":100,"balance":100},{"date":"","credit":40,"balance":60}]`))
	require.NoError(t, err)
	report, err := BuildReport(p, Period{}, "C-1", NewNormalizer(DefaultLocale, SignPositiveDr), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "100.00", FormatPlain(report.OpeningBalance))
	assert.Equal(t, "60.00", FormatPlain(report.ClosingBalance))
	assert.Equal(t, "60.00", FormatPlain(report.Summary.NetBalance))
	assert.Equal(t, "01 Apr 24", report.Rows[1].DisplayDate)
}

func TestSubmitFailureKeepsPreviousReport(t *testing.T) {
	f := &fakeFetcher{body: []byte(settledLedger)}
	svc := newTestService(f)
	slot := &Slot{}
	req := ReportRequest{CustomerID: "X", ReportType: ReportFinancialYear, FinancialYear: "2024-25"}

	_, committed, err := svc.Submit(context.Background(), slot, ReportContext{}, req)
	require.NoError(t, err)
	require.True(t, committed)

	f.mu.Lock()
	f.err = &FetchError{Status: 500, Message: "upstream down"}
	f.mu.Unlock()
	_, committed, err = svc.Submit(context.Background(), slot, ReportContext{}, req)
	assert.ErrorIs(t, err, ErrFetch)
	assert.False(t, committed)
	require.NotNil(t, slot.Current())
	assert.Equal(t, "X", slot.Current().Customer.ID)
}

func TestSubmitEmptyResultClearsSlot(t *testing.T) {
	f := &fakeFetcher{body: []byte(settledLedger)}
	svc := newTestService(f)
	slot := &Slot{}
	req := ReportRequest{CustomerID: "X", ReportType: ReportFinancialYear, FinancialYear: "2024-25"}

	_, _, err := svc.Submit(context.Background(), slot, ReportContext{}, req)
	require.NoError(t, err)
	require.NotNil(t, slot.Current())

	f.mu.Lock()
	f.body = []byte(`{"transactions":[]}`)
	f.mu.Unlock()
	_, committed, err := svc.Submit(context.Background(), slot, ReportContext{}, req)
	assert.True(t, IsSoft(err))
	assert.False(t, committed)
	assert.Nil(t, slot.Current())
}

func TestSubmitStaleResponseDoesNotOverwrite(t *testing.T) {
	gate := make(chan struct{})
	slow := &fakeFetcher{body: []byte(`[{"date":"01 Jan 24","particulars":"slow","debit":1,"balance":1}]`), gate: gate}
	fast := &fakeFetcher{body: []byte(`[{"date":"01 Jan 24","particulars":"fast","debit":2,"balance":2}]`)}
	slot := &Slot{}
	req := ReportRequest{CustomerID: "X", ReportType: ReportYearly, Year: "2024"}

	done := make(chan bool, 1)
	go func() {
		_, committed, _ := newTestService(slow).Submit(context.Background(), slot, ReportContext{}, req)
		done <- committed
	}()
	require.Eventually(t, func() bool {
		slow.mu.Lock()
		defer slow.mu.Unlock()
		return len(slow.rangeFor) == 1
	}, time.Second, time.Millisecond)

	_, committed, err := newTestService(fast).Submit(context.Background(), slot, ReportContext{}, req)
	require.NoError(t, err)
	require.True(t, committed)

	close(gate)
	assert.False(t, <-done)
	assert.Equal(t, "fast", slot.Current().Rows[0].Particulars)
}

func TestSubmitPropagatesFetchMessage(t *testing.T) {
	f := &fakeFetcher{err: &FetchError{Status: 404, Message: "Customer not found"}}
	_, _, err := newTestService(f).Submit(context.Background(), &Slot{}, ReportContext{}, ReportRequest{CustomerID: "X", ReportType: ReportYearly, Year: "2024"})
	var ferr *FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, "Customer not found", ferr.Error())
}

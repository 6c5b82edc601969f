package ledger

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Fetcher issues period-bound requests to the upstream ledger API and returns
// raw response bodies.
type Fetcher interface {
	FetchRange(ctx context.Context, rc ReportContext, customerID string, period Period) ([]byte, error)
	FetchFinancialYear(ctx context.Context, rc ReportContext, customerID, financialYear string) ([]byte, error)
}

// ReportRequest is the "Submit" input of the ledger screen.
type ReportRequest struct {
	CustomerID    string     `json:"customerId" validate:"required"`
	ReportType    ReportType `json:"reportType" validate:"required,oneof=custom financial-year monthly quarterly yearly"`
	FromDate      string     `json:"fromDate"`
	ToDate        string     `json:"toDate"`
	FinancialYear string     `json:"financialYear"`
	Month         string     `json:"month"`
	Quarter       string     `json:"quarter"`
	Year          string     `json:"year"`
}

// Selector extracts the period selector for the request's report type.
func (r ReportRequest) Selector() PeriodSelector {
	sel := PeriodSelector{Type: r.ReportType, From: r.FromDate, To: r.ToDate}
	switch r.ReportType {
	case ReportFinancialYear:
		sel.Value = r.FinancialYear
	case ReportMonthly:
		sel.Value = r.Month
	case ReportQuarterly:
		sel.Value = r.Quarter
	case ReportYearly:
		sel.Value = r.Year
	}
	return sel
}

// ServiceConfig tunes report assembly.
type ServiceConfig struct {
	Locale string
	Policy SignPolicy
	Logger *slog.Logger
	Clock  func() time.Time
}

// Service runs the report pipeline: validate, resolve, fetch, normalise, fill.
type Service struct {
	fetcher    Fetcher
	cache      *Cache
	normalizer Normalizer
	validate   *validator.Validate
	logger     *slog.Logger
	now        func() time.Time
}

// NewService wires a Fetcher with an optional Cache.
func NewService(fetcher Fetcher, cache *Cache, cfg ServiceConfig) *Service {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	locale := cfg.Locale
	if locale == "" {
		locale = DefaultLocale
	}
	return &Service{
		fetcher:    fetcher,
		cache:      cache,
		normalizer: NewNormalizer(locale, cfg.Policy),
		validate:   v,
		logger:     logger,
		now:        now,
	}
}

// Normalizer exposes the configured normalizer.
func (s *Service) Normalizer() Normalizer { return s.normalizer }

// Validate checks the request shape before any network call.
func (s *Service) Validate(req ReportRequest) error {
	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			switch {
			case fe.Field() == "customerId":
				return validationErr("customerId", "customer is required")
			case fe.Tag() == "required":
				return validationErr(fe.Field(), "is required")
			default:
				return validationErr(fe.Field(), "has an unsupported value")
			}
		}
		return validationErr("", err.Error())
	}
	return nil
}

// Resolve validates req and resolves its period.
func (s *Service) Resolve(rc ReportContext, req ReportRequest) (Period, error) {
	if err := s.Validate(req); err != nil {
		return Period{}, err
	}
	return ResolvePeriod(rc, req.Selector())
}

// Generate builds a fresh report. A valid period without transactions
// yields *EmptyResultError.
func (s *Service) Generate(ctx context.Context, rc ReportContext, req ReportRequest) (*Report, error) {
	period, err := s.Resolve(rc, req)
	if err != nil {
		return nil, err
	}
	customerID := strings.TrimSpace(req.CustomerID)
	payload, err := s.load(ctx, rc, customerID, period)
	if err != nil {
		return nil, err
	}
	report, err := BuildReport(payload, period, customerID, s.normalizer, s.now())
	if err != nil {
		return nil, err
	}
	if report.Empty() {
		return nil, &EmptyResultError{CustomerID: customerID, Period: period}
	}
	s.logger.Debug("ledger report generated",
		slog.String("customer_id", customerID),
		slog.String("period", period.Label()),
		slog.String("source", payload.Source),
		slog.Int("rows", len(report.Rows)))
	return report, nil
}

// Submit generates a report into slot under a fresh ticket. The report is
// committed only if no newer submit started meanwhile; committed reports
// whether that happened. An empty result clears the slot.
func (s *Service) Submit(ctx context.Context, slot *Slot, rc ReportContext, req ReportRequest) (report *Report, committed bool, err error) {
	ticket := slot.Begin()
	report, err = s.Generate(ctx, rc, req)
	if err != nil {
		// An empty period replaces the shown report; a failure keeps it.
		if IsSoft(err) {
			slot.Commit(ticket, nil)
		} else {
			slot.Fail(ticket)
		}
		return nil, false, err
	}
	if !slot.Commit(ticket, report) {
		s.logger.Info("discarding stale ledger report",
			slog.String("customer_id", req.CustomerID),
			slog.Uint64("generation", ticket.Generation()))
		return report, false, nil
	}
	return report, true, nil
}

// Warm loads the upstream body for customerID and period into the cache.
func (s *Service) Warm(ctx context.Context, rc ReportContext, customerID string, period Period) error {
	_, err := s.load(ctx, rc, customerID, period)
	return err
}

func (s *Service) load(ctx context.Context, rc ReportContext, customerID string, period Period) (Payload, error) {
	if s.fetcher == nil {
		return Payload{}, fetchErr("", errors.New("ledger fetcher not configured"))
	}
	var payload Payload
	loader := func(ctx context.Context) ([]byte, error) {
		var body []byte
		var err error
		if period.FinancialYear != "" {
			body, err = s.fetcher.FetchFinancialYear(ctx, rc, customerID, period.FinancialYear)
		} else {
			body, err = s.fetcher.FetchRange(ctx, rc, customerID, period)
		}
		if err != nil {
			return nil, err
		}
		// Decode before caching so an unusable body is never stored.
		if payload, err = DecodeEnvelope(body); err != nil {
			return nil, err
		}
		return body, nil
	}
	key, err := s.cache.BuildKey(ctx, rc.DivisionID, customerID, string(period.Type), period.FromParam(), period.ToParam(), period.FinancialYear)
	if err != nil {
		s.logger.Warn("ledger cache unavailable", slog.Any("error", err))
		if _, err := loader(ctx); err != nil {
			return Payload{}, err
		}
		return payload, nil
	}
	body, hit, err := s.cache.FetchBytes(ctx, key, loader)
	if err != nil {
		return Payload{}, err
	}
	if hit {
		return DecodeEnvelope(body)
	}
	return payload, nil
}

// BuildReport assembles a Report from a decoded payload. Server supplied
// summary and balances win; missing figures are computed from the rows.
func BuildReport(payload Payload, period Period, customerID string, n Normalizer, now time.Time) (*Report, error) {
	txns, totals, err := n.Normalize(payload.Transactions)
	if err != nil {
		return nil, err
	}
	customer := payload.Customer
	if customer.ID == "" {
		customer.ID = customerID
	}
	report := &Report{
		Customer:       customer,
		Period:         period,
		OpeningBalance: decimal.Zero,
		ClosingBalance: decimal.Zero,
		Transactions:   txns,
		Rows:           FillDates(txns),
		GeneratedAt:    now,
	}
	switch {
	case payload.OpeningBalance.Present:
		report.OpeningBalance = payload.OpeningBalance.Value
	case totals.HasBalance:
		report.OpeningBalance = totals.FirstBalance
	}
	switch {
	case payload.ClosingBalance.Present:
		report.ClosingBalance = payload.ClosingBalance.Value
	case totals.HasBalance:
		report.ClosingBalance = totals.LastBalance
	}
	report.Summary = Summary{
		TotalDebits:      totals.Debits,
		TotalCredits:     totals.Credits,
		TransactionCount: totals.Count,
		NetBalance:       totals.Debits.Sub(totals.Credits),
	}
	if sum := payload.Summary; sum != nil {
		if sum.TotalDebits.Present {
			report.Summary.TotalDebits = sum.TotalDebits.Value
		}
		if sum.TotalCredits.Present {
			report.Summary.TotalCredits = sum.TotalCredits.Value
		}
		if sum.TransactionCount != nil {
			report.Summary.TransactionCount = *sum.TransactionCount
		}
		if sum.NetBalance.Present {
			report.Summary.NetBalance = sum.NetBalance.Value
		}
	}
	return report, nil
}

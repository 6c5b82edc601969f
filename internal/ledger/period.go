package ledger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ReportType selects how a period is derived.
type ReportType string

const (
	ReportCustom        ReportType = "custom"
	ReportFinancialYear ReportType = "financial-year"
	ReportMonthly       ReportType = "monthly"
	ReportQuarterly     ReportType = "quarterly"
	ReportYearly        ReportType = "yearly"
)

// DateParamLayout is the wire format for fromDate/toDate parameters.
const DateParamLayout = "2006-01-02"

var (
	fyPattern      = regexp.MustCompile(`^(\d{4})-(\d{2})$`)
	monthPattern   = regexp.MustCompile(`^(\d{4})-(\d{2})$`)
	quarterPattern = regexp.MustCompile(`^(\d{4})-[Qq]([1-4])$`)
	yearPattern    = regexp.MustCompile(`^(\d{4})$`)
)

// PeriodSelector is the raw UI selection handed to the resolver.
type PeriodSelector struct {
	Type  ReportType
	From  string
	To    string
	Value string
}

// Period is a resolved, inclusive date window.
type Period struct {
	Type          ReportType `json:"type"`
	From          time.Time  `json:"fromDate"`
	To            time.Time  `json:"toDate"`
	FinancialYear string     `json:"financialYear,omitempty"`
}

// FromParam renders the lower bound as YYYY-MM-DD.
func (p Period) FromParam() string { return p.From.Format(DateParamLayout) }

// ToParam renders the upper bound as YYYY-MM-DD.
func (p Period) ToParam() string { return p.To.Format(DateParamLayout) }

// Label renders a human readable description of the period.
func (p Period) Label() string {
	if p.FinancialYear != "" {
		return "FY " + p.FinancialYear
	}
	return p.From.Format("02 Jan 2006") + " to " + p.To.Format("02 Jan 2006")
}

// ResolvePeriod converts a selector into concrete bounds. It performs no I/O.
func ResolvePeriod(rc ReportContext, sel PeriodSelector) (Period, error) {
	loc := rc.location()
	value := strings.TrimSpace(sel.Value)
	switch sel.Type {
	case ReportCustom:
		return resolveCustom(loc, strings.TrimSpace(sel.From), strings.TrimSpace(sel.To))
	case ReportFinancialYear:
		if value == "" {
			return Period{}, validationErr("financialYear", "financial year is required")
		}
		return resolveFinancialYear(loc, value)
	case ReportMonthly:
		if value == "" {
			return Period{}, validationErr("month", "month is required")
		}
		m := monthPattern.FindStringSubmatch(value)
		if m == nil {
			return Period{}, &InvalidPeriodError{Type: sel.Type, Value: value, Reason: "expected YYYY-MM"}
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return Period{}, &InvalidPeriodError{Type: sel.Type, Value: value, Reason: "month out of range"}
		}
		from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
		return Period{Type: sel.Type, From: from, To: from.AddDate(0, 1, -1)}, nil
	case ReportQuarterly:
		if value == "" {
			return Period{}, validationErr("quarter", "quarter is required")
		}
		m := quarterPattern.FindStringSubmatch(value)
		if m == nil {
			return Period{}, &InvalidPeriodError{Type: sel.Type, Value: value, Reason: "expected YYYY-Qn with n in 1..4"}
		}
		year, _ := strconv.Atoi(m[1])
		q, _ := strconv.Atoi(m[2])
		from := time.Date(year, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, loc)
		return Period{Type: sel.Type, From: from, To: from.AddDate(0, 3, -1)}, nil
	case ReportYearly:
		if value == "" {
			return Period{}, validationErr("year", "year is required")
		}
		m := yearPattern.FindStringSubmatch(value)
		if m == nil {
			return Period{}, &InvalidPeriodError{Type: sel.Type, Value: value, Reason: "expected YYYY"}
		}
		year, _ := strconv.Atoi(m[1])
		return Period{
			Type: sel.Type,
			From: time.Date(year, time.January, 1, 0, 0, 0, 0, loc),
			To:   time.Date(year, time.December, 31, 0, 0, 0, 0, loc),
		}, nil
	default:
		return Period{}, &InvalidPeriodError{Type: sel.Type, Value: value, Reason: "unknown report type"}
	}
}

func resolveCustom(loc *time.Location, fromRaw, toRaw string) (Period, error) {
	if fromRaw == "" {
		return Period{}, validationErr("fromDate", "from date is required")
	}
	if toRaw == "" {
		return Period{}, validationErr("toDate", "to date is required")
	}
	from, err := time.ParseInLocation(DateParamLayout, fromRaw, loc)
	if err != nil {
		return Period{}, &InvalidPeriodError{Type: ReportCustom, Value: fromRaw, Reason: "expected YYYY-MM-DD"}
	}
	to, err := time.ParseInLocation(DateParamLayout, toRaw, loc)
	if err != nil {
		return Period{}, &InvalidPeriodError{Type: ReportCustom, Value: toRaw, Reason: "expected YYYY-MM-DD"}
	}
	if from.After(to) {
		return Period{}, validationErr("fromDate", "from date must not be after to date")
	}
	return Period{Type: ReportCustom, From: from, To: to}, nil
}

func resolveFinancialYear(loc *time.Location, value string) (Period, error) {
	m := fyPattern.FindStringSubmatch(value)
	if m == nil {
		return Period{}, &InvalidPeriodError{Type: ReportFinancialYear, Value: value, Reason: "expected YYYY-YY"}
	}
	start, _ := strconv.Atoi(m[1])
	suffix, _ := strconv.Atoi(m[2])
	if (start+1)%100 != suffix {
		return Period{}, &InvalidPeriodError{Type: ReportFinancialYear, Value: value, Reason: "years are not consecutive"}
	}
	return Period{
		Type:          ReportFinancialYear,
		From:          time.Date(start, time.April, 1, 0, 0, 0, 0, loc),
		To:            time.Date(start+1, time.March, 31, 0, 0, 0, 0, loc),
		FinancialYear: value,
	}, nil
}

// FinancialYearFor returns the "YYYY-YY" tag of the financial year containing t.
func FinancialYearFor(t time.Time) string {
	start := t.Year()
	if t.Month() < time.April {
		start--
	}
	return fmt.Sprintf("%d-%02d", start, (start+1)%100)
}

// FileStem names downloads for customerID over p, without extension.
func (p Period) FileStem(customerID string) string {
	if p.FinancialYear != "" {
		return fmt.Sprintf("customer-ledger-%s-FY-%s", customerID, p.FinancialYear)
	}
	return fmt.Sprintf("customer-ledger-%s-%s-to-%s", customerID, p.FromParam(), p.ToParam())
}

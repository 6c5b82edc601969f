package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// Exit codes of the ledger print command.
const (
	ExitOK    = 0
	ExitError = 1
	ExitEmpty = 3
)

// ReportGenerator builds a ledger report; ledger.Service satisfies it.
type ReportGenerator interface {
	Generate(ctx context.Context, rc ledger.ReportContext, req ledger.ReportRequest) (*ledger.Report, error)
}

// LedgerCLI prints customer ledgers from the command line.
type LedgerCLI struct {
	reports ReportGenerator
	rc      ledger.ReportContext
	policy  ledger.SignPolicy
}

// NewLedgerCLI constructs the helper. rc supplies the default location.
func NewLedgerCLI(reports ReportGenerator, rc ledger.ReportContext, policy ledger.SignPolicy) (*LedgerCLI, error) {
	if reports == nil {
		return nil, errors.New("ledger cli: report generator required")
	}
	if policy == "" {
		policy = ledger.SignPositiveDr
	}
	return &LedgerCLI{reports: reports, rc: rc, policy: policy}, nil
}

// PrintOptions defines available flags for the ledger print command.
type PrintOptions struct {
	Request    ledger.ReportRequest
	DivisionID string
	View       ledger.ViewQuery
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// PrintSummary is the JSON document written by ledger print --json.
type PrintSummary struct {
	Customer ledger.Customer `json:"customer"`
	Period   string          `json:"period"`
	Opening  string          `json:"openingBalance"`
	Closing  string          `json:"closingBalance"`
	Summary  ledger.Summary  `json:"summary"`
	Rows     []ledger.Row    `json:"rows"`
}

// ParsePrintArgs reads ledger print flags.
func ParsePrintArgs(args []string, stderr io.Writer) (PrintOptions, error) {
	fs := flag.NewFlagSet("ledger print", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts PrintOptions
	var reportType, sortCol, dir string
	fs.StringVar(&opts.Request.CustomerID, "customer", "", "customer id")
	fs.StringVar(&reportType, "type", string(ledger.ReportFinancialYear), "custom|financial-year|monthly|quarterly|yearly")
	fs.StringVar(&opts.Request.FromDate, "from", "", "custom range start (YYYY-MM-DD)")
	fs.StringVar(&opts.Request.ToDate, "to", "", "custom range end (YYYY-MM-DD)")
	fs.StringVar(&opts.Request.FinancialYear, "fy", "", "financial year (YYYY-YY)")
	fs.StringVar(&opts.Request.Month, "month", "", "month (YYYY-MM)")
	fs.StringVar(&opts.Request.Quarter, "quarter", "", "quarter (YYYY-Qn)")
	fs.StringVar(&opts.Request.Year, "year", "", "year (YYYY)")
	fs.StringVar(&opts.DivisionID, "division", "", "division id")
	fs.StringVar(&opts.View.Search, "search", "", "particulars or voucher number filter")
	fs.StringVar(&opts.View.VchType, "vch-type", ledger.FilterAll, "voucher type filter")
	fs.StringVar(&opts.View.BalanceType, "balance-type", ledger.FilterAll, "Dr|Cr|all")
	fs.StringVar(&sortCol, "sort", "", "sort column")
	fs.StringVar(&dir, "dir", string(ledger.Asc), "asc|desc")
	fs.BoolVar(&opts.JSONOutput, "json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return PrintOptions{}, err
	}
	opts.Request.ReportType = ledger.ReportType(reportType)
	if sortCol != "" {
		col, ok := ledger.ParseColumn(sortCol)
		if !ok {
			return PrintOptions{}, fmt.Errorf("unknown sort column %q", sortCol)
		}
		opts.View.Sort = ledger.SortState{Column: col, Direction: ledger.ParseDirection(dir)}
	}
	return opts, nil
}

// PrintCommand generates a report and prints the derived view.
func (c *LedgerCLI) PrintCommand(ctx context.Context, opts PrintOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if strings.TrimSpace(opts.Request.CustomerID) == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "ledger print: --customer is required")
		return ExitError
	}
	rc := c.rc
	if opts.DivisionID != "" {
		rc.DivisionID = opts.DivisionID
	}
	report, err := c.reports.Generate(ctx, rc, opts.Request)
	if err != nil {
		if ledger.IsSoft(err) {
			_, _ = fmt.Fprintln(opts.Stderr, "No transactions found for the selected period")
			return ExitEmpty
		}
		_, _ = fmt.Fprintf(opts.Stderr, "ledger print: %v\n", err)
		return ExitError
	}
	rows := ledger.ApplyView(report.Rows, opts.View)
	if opts.JSONOutput {
		summary := PrintSummary{
			Customer: report.Customer,
			Period:   report.Period.Label(),
			Opening:  ledger.BalanceLabel(report.OpeningBalance, c.policy),
			Closing:  ledger.BalanceLabel(report.ClosingBalance, c.policy),
			Summary:  report.Summary,
			Rows:     rows,
		}
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "ledger print: encode json: %v\n", err)
			return ExitError
		}
		return ExitOK
	}
	if err := c.renderHuman(opts.Stdout, report, rows); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "ledger print: %v\n", err)
		return ExitError
	}
	return ExitOK
}

func (c *LedgerCLI) renderHuman(out io.Writer, report *ledger.Report, rows []ledger.Row) error {
	name := report.Customer.Name
	if name == "" {
		name = report.Customer.ID
	}
	_, _ = fmt.Fprintf(out, "Customer Ledger: %s (%s)\n", name, report.Period.Label())
	_, _ = fmt.Fprintf(out, "Opening Balance: %s\n", ledger.BalanceLabel(report.OpeningBalance, c.policy))
	_, _ = fmt.Fprintf(out, "Closing Balance: %s\n\n", ledger.BalanceLabel(report.ClosingBalance, c.policy))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "Date\tParticulars\tVch Type\tVch No.\tDebit\tCredit\tBalance\tDr/Cr")
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.DisplayDate, r.Particulars, r.VchType, r.VchNo, r.Debit, r.Credit, r.Balance, r.BalanceType)
	}
	_, _ = fmt.Fprintf(tw, "Totals\t\t\t\t%s\t%s\t\t\n",
		ledger.FormatCurrency(report.Summary.TotalDebits), ledger.FormatCurrency(report.Summary.TotalCredits))
	if err := tw.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "\n%d of %d transaction(s)\n", len(rows), len(report.Rows))
	return nil
}

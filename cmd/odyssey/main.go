package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/export"
	ledgerhttp "github.com/odyssey-erp/odyssey-ledger/internal/ledger/http"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
	"github.com/odyssey-erp/odyssey-ledger/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	if len(os.Args) > 1 {
		os.Exit(runCommand(ctx, cfg, os.Args[1:], os.Stdout, os.Stderr))
	}

	logger := app.NewLogger(cfg)
	if err := serve(ctx, stop, cfg, logger); err != nil {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()

	stack, err := app.NewLedgerStack(ctx, cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var auditLogger *shared.AuditLogger
	if cfg.PGDSN != "" {
		pool, err := db.New(ctx, db.Options{DSN: cfg.PGDSN, MaxConns: 4})
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		auditLogger = shared.NewAuditLogger(pool)
	} else {
		logger.Info("PG_DSN empty, export audit disabled")
	}

	pdfClient := report.NewClient(cfg.GotenbergURL, cfg.AppRequestTimeout)
	var converter export.HTMLConverter
	if pdfClient.Configured() {
		converter = pdfClient
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	var audit ledgerhttp.AuditRecorder
	if auditLogger != nil {
		audit = auditLogger
	}
	ledgerHandler := ledgerhttp.NewHandler(ledgerhttp.Config{
		Logger:          logger,
		Reports:         stack.Service,
		Upstream:        stack.Client,
		Exporter:        export.NewAdapter(export.DefaultRenderers(converter)),
		Workspaces:      ledger.NewWorkspaces(cfg.WorkspaceIdle),
		Audit:           audit,
		Metrics:         metrics,
		Policy:          cfg.SignPolicy(),
		Location:        cfg.Location(),
		ExportRateLimit: cfg.ExportRateLimit,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		LedgerHandler: ledgerHandler,
		ReportHandler: report.NewHandler(pdfClient, logger),
		JobHandler:    jobs.NewHandler(inspector, jobsClient, logger),
		Metrics:       metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

const usage = `usage:
  odyssey                         run the HTTP server
  odyssey ledger print [flags]    print a customer ledger
  odyssey jobs trigger <job> [-division id] [-fy 2024-25] [-reason text] [customer ids...]
  odyssey jobs inspect`

func runCommand(ctx context.Context, cfg *app.Config, args []string, stdout, stderr io.Writer) int {
	// CLI output stays on stdout; operational logs go to stderr.
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	switch args[0] {
	case "ledger":
		if len(args) < 2 || args[1] != "print" {
			_, _ = fmt.Fprintln(stderr, usage)
			return cli.ExitError
		}
		opts, err := cli.ParsePrintArgs(args[2:], stderr)
		if err != nil {
			return cli.ExitError
		}
		opts.Stdout, opts.Stderr = stdout, stderr
		stack, err := app.NewLedgerStack(ctx, cfg, logger, nil)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "ledger print: %v\n", err)
			return cli.ExitError
		}
		defer func() { _ = stack.Close() }()
		ledgerCLI, err := cli.NewLedgerCLI(stack.Service, cfg.ReportContext(), cfg.SignPolicy())
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "ledger print: %v\n", err)
			return cli.ExitError
		}
		return ledgerCLI.PrintCommand(ctx, opts)
	case "jobs":
		return runJobs(ctx, cfg, args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintln(stderr, usage)
		return cli.ExitError
	}
}

func runJobs(ctx context.Context, cfg *app.Config, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, usage)
		return cli.ExitError
	}
	jobsCLI := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() { _ = jobsCLI.Close() }()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			_, _ = fmt.Fprintln(stderr, usage)
			return cli.ExitError
		}
		fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
		fs.SetOutput(stderr)
		division := fs.String("division", "", "division id")
		fy := fs.String("fy", jobs.CurrentFinancialYear, "financial year (YYYY-YY) or current")
		reason := fs.String("reason", "", "cache bump reason")
		if err := fs.Parse(args[2:]); err != nil {
			return cli.ExitError
		}
		customers := fs.Args()
		if len(customers) == 0 {
			customers = cfg.WarmupCustomers
		}
		info, err := jobsCLI.Trigger(ctx, args[1], cli.TriggerOptions{
			DivisionID:    *division,
			CustomerIDs:   customers,
			FinancialYear: *fy,
			Reason:        *reason,
		})
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs trigger: %v\n", err)
			return cli.ExitError
		}
		_, _ = fmt.Fprintf(stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	case "inspect":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs inspect: %v\n", err)
			return cli.ExitError
		}
		_, _ = fmt.Fprintf(stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		scheduled, err := jobsCLI.ListScheduled(ctx, 10)
		if err == nil && len(scheduled) > 0 {
			types := make([]string, 0, len(scheduled))
			for _, t := range scheduled {
				types = append(types, t.Type)
			}
			_, _ = fmt.Fprintf(stdout, "next scheduled: %s\n", strings.Join(types, ", "))
		}
	default:
		_, _ = fmt.Fprintln(stderr, usage)
		return cli.ExitError
	}
	return cli.ExitOK
}

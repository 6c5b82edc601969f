package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const (
	defaultWarmupConcurrency = 4
	warmupCustomerTimeout    = 20 * time.Second
)

// Warmer loads a ledger into the payload cache; ledger.Service satisfies it.
type Warmer interface {
	Warm(ctx context.Context, rc ledger.ReportContext, customerID string, period ledger.Period) error
}

// CacheBumper invalidates cached payloads; ledger.Cache satisfies it.
type CacheBumper interface {
	Bump(ctx context.Context) (int64, error)
}

// LedgerWarmupJob prefetches financial-year ledgers for a set of customers.
type LedgerWarmupJob struct {
	Warmer      Warmer
	Location    *time.Location
	Concurrency int
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	clock       func() time.Time
}

// NewLedgerWarmupJob wires dependencies for the warmup handler.
func NewLedgerWarmupJob(warmer Warmer, loc *time.Location, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerWarmupJob {
	return &LedgerWarmupJob{
		Warmer:      warmer,
		Location:    loc,
		Concurrency: defaultWarmupConcurrency,
		Logger:      logger,
		Metrics:     metrics,
		clock:       time.Now,
	}
}

// Handle processes ledger warmup tasks.
func (j *LedgerWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Warmer == nil {
		return errors.New("ledger warmup: handler not configured")
	}
	var payload LedgerWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("ledger warmup: decode payload: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskLedgerWarmup)
	rc := ledger.ReportContext{DivisionID: payload.DivisionID, Location: j.Location}
	fy := strings.TrimSpace(payload.FinancialYear)
	if fy == "" || fy == CurrentFinancialYear {
		fy = ledger.FinancialYearFor(j.now().In(j.location()))
	}
	period, err := ledger.ResolvePeriod(rc, ledger.PeriodSelector{Type: ledger.ReportFinancialYear, Value: fy})
	if err != nil {
		_ = tracker.End(err)
		return fmt.Errorf("ledger warmup: %v: %w", err, asynq.SkipRetry)
	}

	logger := j.logger().With(slog.String("financial_year", fy), slog.String("division_id", payload.DivisionID))
	customers := uniqueCustomers(payload.CustomerIDs)
	if len(customers) == 0 {
		logger.Info("no customers configured for warmup")
		return tracker.End(nil)
	}
	logger.Info("starting ledger warmup", slog.Int("customers", len(customers)))
	start := j.now()

	var cached, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(j.concurrency())
	for _, id := range customers {
		g.Go(func() error {
			custCtx, cancel := context.WithTimeout(ctx, warmupCustomerTimeout)
			defer cancel()
			if err := j.Warmer.Warm(custCtx, rc, id, period); err != nil {
				failed.Add(1)
				logger.Warn("warm customer ledger", slog.String("customer_id", id), slog.Any("error", err))
				return fmt.Errorf("customer %s: %w", id, err)
			}
			cached.Add(1)
			return nil
		})
	}
	err = g.Wait()

	m := j.metrics()
	m.AddWarmed("cached", int(cached.Load()))
	m.AddWarmed("failed", int(failed.Load()))
	logger.Info("completed ledger warmup",
		slog.Int64("cached", cached.Load()),
		slog.Int64("failed", failed.Load()),
		slog.Duration("duration", j.now().Sub(start)))
	return tracker.End(err)
}

func (j *LedgerWarmupJob) concurrency() int {
	if j.Concurrency > 0 {
		return j.Concurrency
	}
	return defaultWarmupConcurrency
}

func (j *LedgerWarmupJob) location() *time.Location {
	if j.Location != nil {
		return j.Location
	}
	return time.UTC
}

func (j *LedgerWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerWarmup))
	}
	return slog.Default().With(slog.String("job", TaskLedgerWarmup))
}

func (j *LedgerWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LedgerWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}

func uniqueCustomers(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// CacheBumpJob invalidates the ledger payload cache.
type CacheBumpJob struct {
	Cache   CacheBumper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes cache bump tasks.
func (j *CacheBumpJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Cache == nil {
		return errors.New("ledger cache bump: handler not configured")
	}
	var payload LedgerCacheBumpPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("ledger cache bump: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskLedgerCacheBump)
	version, err := j.Cache.Bump(ctx)
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err != nil {
		logger.Error("bump ledger cache", slog.Any("error", err))
		return tracker.End(err)
	}
	logger.Info("ledger cache bumped", slog.Int64("version", version), slog.String("reason", payload.Reason))
	return tracker.End(nil)
}

package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerWarmup prefetches financial-year ledgers into the payload cache.
	TaskLedgerWarmup = "ledger:warmup"
	// TaskLedgerCacheBump invalidates every cached ledger payload.
	TaskLedgerCacheBump = "ledger:cache_bump"
)

// CurrentFinancialYear asks the warmup to resolve the financial year at run time.
const CurrentFinancialYear = "current"

// LedgerWarmupPayload describes which ledgers to prefetch.
type LedgerWarmupPayload struct {
	DivisionID    string   `json:"division_id,omitempty"`
	CustomerIDs   []string `json:"customer_ids"`
	FinancialYear string   `json:"financial_year"`
}

// LedgerCacheBumpPayload records why the cache was invalidated.
type LedgerCacheBumpPayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewLedgerWarmupTask constructs the warmup task. An empty financial year
// defaults to the current one.
func NewLedgerWarmupTask(payload LedgerWarmupPayload) (*asynq.Task, error) {
	if payload.FinancialYear == "" {
		payload.FinancialYear = CurrentFinancialYear
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerWarmup, data, asynq.Timeout(10*time.Minute)), nil
}

// NewLedgerCacheBumpTask constructs the cache invalidation task.
func NewLedgerCacheBumpTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(LedgerCacheBumpPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerCacheBump, data), nil
}

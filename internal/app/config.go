package app

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"60s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"45s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// Empty PG_DSN disables the export audit trail.
	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	GotenbergURL string `envconfig:"GOTENBERG_URL" default:"http://127.0.0.1:3000"`

	LedgerAPIURL         string        `envconfig:"LEDGER_API_URL" required:"true"`
	LedgerAPIToken       string        `envconfig:"LEDGER_API_TOKEN"`
	LedgerFetchTimeout   time.Duration `envconfig:"LEDGER_FETCH_TIMEOUT" default:"20s"`
	LedgerCacheTTL       time.Duration `envconfig:"LEDGER_CACHE_TTL" default:"5m"`
	LedgerBalanceSign    string        `envconfig:"LEDGER_BALANCE_SIGN" default:"positive-dr"`
	LedgerLocale         string        `envconfig:"LEDGER_LOCALE" default:"en-IN"`
	LedgerTimezone       string        `envconfig:"LEDGER_TIMEZONE" default:"Asia/Kolkata"`
	LedgerBreakerFailure uint32        `envconfig:"LEDGER_BREAKER_FAILURES" default:"5"`
	LedgerBreakerTimeout time.Duration `envconfig:"LEDGER_BREAKER_TIMEOUT" default:"30s"`
	WorkspaceIdle        time.Duration `envconfig:"LEDGER_WORKSPACE_IDLE" default:"2h"`

	ExportRateLimit int `envconfig:"EXPORT_RATE_LIMIT" default:"20"`

	WarmupCustomers []string `envconfig:"WARMUP_CUSTOMERS"`
	WarmupCron      string   `envconfig:"WARMUP_CRON"`

	// Empty disables the worker's /metrics listener.
	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerations and ranges envconfig cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LedgerAPIURL) == "" {
		return fmt.Errorf("ledger api url must be provided")
	}
	if _, err := ledger.ParseSignPolicy(c.LedgerBalanceSign); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.LedgerTimezone); err != nil {
		return fmt.Errorf("invalid LEDGER_TIMEZONE: %w", err)
	}
	if c.ExportRateLimit <= 0 {
		return fmt.Errorf("EXPORT_RATE_LIMIT must be positive")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// SignPolicy returns the validated balance sign policy.
func (c *Config) SignPolicy() ledger.SignPolicy {
	p, err := ledger.ParseSignPolicy(c.LedgerBalanceSign)
	if err != nil {
		return ledger.SignPositiveDr
	}
	return p
}

// Location returns the reporting time zone, UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.LedgerTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

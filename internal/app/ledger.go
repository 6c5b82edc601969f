package app

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/client"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
)

// LedgerStack bundles the upstream client, payload cache and report service
// shared by the server, the worker and the CLI.
type LedgerStack struct {
	Client  *client.Client
	Cache   *ledger.Cache
	Service *ledger.Service
	Redis   *redis.Client
}

// NewLedgerStack wires the ledger engine from configuration. Redis is
// optional; without it reports are fetched on every request.
func NewLedgerStack(ctx context.Context, cfg *Config, logger *slog.Logger, observer client.Observer) (*LedgerStack, error) {
	upstream, err := client.New(client.Config{
		BaseURL:         cfg.LedgerAPIURL,
		Token:           cfg.LedgerAPIToken,
		Timeout:         cfg.LedgerFetchTimeout,
		BreakerFailures: cfg.LedgerBreakerFailure,
		BreakerTimeout:  cfg.LedgerBreakerTimeout,
		Logger:          logger,
		Observer:        observer,
	})
	if err != nil {
		return nil, err
	}

	stack := &LedgerStack{Client: upstream}
	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("ledger cache disabled", slog.Any("error", err))
	} else {
		stack.Redis = redisClient
	}
	stack.Cache = ledger.NewCache(stack.Redis, cfg.LedgerCacheTTL)
	stack.Service = ledger.NewService(upstream, stack.Cache, ledger.ServiceConfig{
		Locale: cfg.LedgerLocale,
		Policy: cfg.SignPolicy(),
		Logger: logger,
	})
	return stack, nil
}

// ReportContext returns the default report context for cfg.
func (c *Config) ReportContext() ledger.ReportContext {
	return ledger.ReportContext{Location: c.Location()}
}

// Close releases the Redis connection.
func (s *LedgerStack) Close() error {
	if s == nil || s.Redis == nil {
		return nil
	}
	return s.Redis.Close()
}

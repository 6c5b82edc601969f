// Package client talks to the upstream customer ledger API.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// Endpoint labels reported to the Observer.
const (
	EndpointRange         = "range"
	EndpointFinancialYear = "financial_year"
	EndpointPDF           = "pdf"
	EndpointCustomers     = "customers"
)

// Outcome labels reported to the Observer.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
)

const maxBodyBytes = 32 << 20

// UnavailableMessage is surfaced while the circuit breaker is open.
const UnavailableMessage = "Ledger service is temporarily unavailable"

// Observer receives one call per upstream request.
type Observer interface {
	ObserveFetch(endpoint, outcome string, elapsed time.Duration)
}

// Config configures the upstream client.
type Config struct {
	BaseURL         string
	Token           string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	HTTPClient      *http.Client
	Logger          *slog.Logger
	Observer        Observer
}

// Document is a binary download from the upstream API.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Client implements ledger.Fetcher over HTTP.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	group      singleflight.Group
	logger     *slog.Logger
	observer   Observer
}

var _ ledger.Fetcher = (*Client)(nil)

type response struct {
	status      int
	contentType string
	disposition string
	body        []byte
}

// New constructs a client. BaseURL must be absolute.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("ledger client: invalid base url %q", cfg.BaseURL)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	openFor := cfg.BreakerTimeout
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ledger-api",
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return &Client{
		baseURL:    base,
		token:      strings.TrimSpace(cfg.Token),
		httpClient: httpClient,
		breaker:    breaker,
		logger:     logger,
		observer:   cfg.Observer,
	}, nil
}

// FetchRange loads the ledger of customerID between the period bounds.
func (c *Client) FetchRange(ctx context.Context, rc ledger.ReportContext, customerID string, period ledger.Period) ([]byte, error) {
	q := url.Values{}
	q.Set("fromDate", period.FromParam())
	q.Set("toDate", period.ToParam())
	resp, err := c.get(ctx, EndpointRange, rc, []string{"customers", customerID, "ledger"}, q)
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// FetchFinancialYear loads the ledger of customerID for a "YYYY-YY" year.
func (c *Client) FetchFinancialYear(ctx context.Context, rc ledger.ReportContext, customerID, financialYear string) ([]byte, error) {
	resp, err := c.get(ctx, EndpointFinancialYear, rc, []string{"customers", customerID, "ledger", "financial-year", financialYear}, nil)
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// FetchCustomers lists customers, scoped to the context division when set.
func (c *Client) FetchCustomers(ctx context.Context, rc ledger.ReportContext) ([]ledger.Customer, error) {
	var q url.Values
	if rc.DivisionID != "" {
		q = url.Values{"divisionId": []string{rc.DivisionID}}
	}
	resp, err := c.get(ctx, EndpointCustomers, rc, []string{"customers"}, q)
	if err != nil {
		return nil, err
	}
	return ledger.DecodeCustomers(resp.body)
}

// DownloadPDF fetches the server rendered ledger PDF. The filename always
// follows the customer-ledger naming scheme regardless of upstream headers.
func (c *Client) DownloadPDF(ctx context.Context, rc ledger.ReportContext, customerID string, period ledger.Period) (Document, error) {
	q := url.Values{}
	q.Set("fromDate", period.FromParam())
	q.Set("toDate", period.ToParam())
	if period.FinancialYear != "" {
		q.Set("financialYear", period.FinancialYear)
	}
	resp, err := c.get(ctx, EndpointPDF, rc, []string{"customers", customerID, "ledger", "pdf"}, q)
	if err != nil {
		return Document{}, err
	}
	ct := resp.contentType
	if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/pdf" {
		c.logger.Debug("ledger pdf content type", slog.String("content_type", ct), slog.String("disposition", resp.disposition))
		ct = "application/pdf"
	}
	return Document{
		Filename:    period.FileStem(customerID) + ".pdf",
		ContentType: ct,
		Body:        resp.body,
	}, nil
}

func (c *Client) get(ctx context.Context, endpoint string, rc ledger.ReportContext, segments []string, query url.Values) (response, error) {
	target := c.endpointURL(segments, query)
	key := endpoint + "|" + rc.DivisionID + "|" + target
	start := time.Now()

	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.breaker.Execute(func() (interface{}, error) {
			return c.doRequest(context.WithoutCancel(ctx), target, rc)
		})
	})
	var (
		val interface{}
		err error
	)
	select {
	case <-ctx.Done():
		c.observe(endpoint, OutcomeError, start)
		return response{}, &ledger.FetchError{Err: ctx.Err()}
	case res := <-ch:
		val, err = res.Val, res.Err
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.observe(endpoint, OutcomeRejected, start)
		return response{}, &ledger.FetchError{Status: http.StatusServiceUnavailable, Message: UnavailableMessage, Err: err}
	case err != nil:
		c.observe(endpoint, OutcomeError, start)
		var ferr *ledger.FetchError
		if errors.As(err, &ferr) {
			return response{}, ferr
		}
		c.logger.Warn("ledger upstream request failed", slog.String("endpoint", endpoint), slog.Any("error", err))
		return response{}, &ledger.FetchError{Err: err}
	}

	resp := val.(response)
	if resp.status >= 400 {
		c.observe(endpoint, OutcomeError, start)
		return response{}, &ledger.FetchError{
			Status:  resp.status,
			Message: ledger.BackendMessage(resp.body),
			Err:     fmt.Errorf("ledger api %s returned status %d", endpoint, resp.status),
		}
	}
	c.observe(endpoint, OutcomeOK, start)
	return resp, nil
}

// doRequest returns an error only for failures that should count against the
// breaker: transport errors and 5xx responses. 4xx responses are returned as
// values.
func (c *Client) doRequest(ctx context.Context, target string, rc ledger.ReportContext) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/pdf")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if rc.DivisionID != "" {
		req.Header.Set("X-Division-ID", rc.DivisionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return response{}, fmt.Errorf("read response body: %w", err)
	}
	out := response{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		disposition: resp.Header.Get("Content-Disposition"),
		body:        body,
	}
	if resp.StatusCode >= 500 {
		return response{}, &ledger.FetchError{
			Status:  resp.StatusCode,
			Message: ledger.BackendMessage(body),
			Err:     fmt.Errorf("ledger api returned status %d", resp.StatusCode),
		}
	}
	return out, nil
}

func (c *Client) endpointURL(segments []string, query url.Values) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.Join(segments, "/")
	u.RawPath = strings.TrimRight(c.baseURL.EscapedPath(), "/") + "/" + strings.Join(escaped, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) observe(endpoint, outcome string, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveFetch(endpoint, outcome, time.Since(start))
}

// Package resilience wraps outbound HTTP calls (made by search providers
// and the content extractor) with a per-client circuit breaker and
// retry-with-backoff: the breaker gates the call first (a trip fails
// fast), then a timed, retrying HTTP call runs against its own result.
// This package does not consult the search cache (search/cache), and no
// caller in this module puts that cache in front of it.
//
// Uses github.com/sony/gobreaker/v2 for the breaker and
// github.com/cenkalti/backoff/v5 for jittered exponential backoff.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned when a call is rejected because the breaker
// for this client is open.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// Config parameterizes a Client. Zero values fall back to sensible
// production defaults.
type Config struct {
	Timeout     time.Duration // per-request timeout, default 30s
	MaxRetries  int           // max attempts, default 3
	InitialWait time.Duration // default 1s

	// Circuit breaker tuning: 30s sampling window, trip at >=0.5 failure
	// ratio over >=5 observed requests, 30s open duration.
	BreakerWindow      time.Duration
	BreakerMinRequests uint32
	BreakerFailRatio   float64
	BreakerOpenFor     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.InitialWait <= 0 {
		c.InitialWait = time.Second
	}
	if c.BreakerWindow <= 0 {
		c.BreakerWindow = 30 * time.Second
	}
	if c.BreakerMinRequests <= 0 {
		c.BreakerMinRequests = 5
	}
	if c.BreakerFailRatio <= 0 {
		c.BreakerFailRatio = 0.5
	}
	if c.BreakerOpenFor <= 0 {
		c.BreakerOpenFor = 30 * time.Second
	}
	return c
}

// Client is an HTTP client wrapped with a circuit breaker and retry.
type Client struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	cfg     Config
}

// New builds a Client whose circuit breaker is named name.
func New(name string, cfg Config) *Client {
	cfg = cfg.withDefaults()

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.BreakerWindow,
		Timeout:     cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.BreakerFailRatio
		},
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
		cfg:     cfg,
	}
}

// isRetryable reports whether err/resp warrants another attempt:
// transport errors, 408, 429, and 5xx.
func isRetryable(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return true
	}
	return resp.StatusCode == http.StatusRequestTimeout ||
		resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode >= 500
}

// Do executes req through the breaker and, on a breaker-permitted
// attempt, with retry/backoff on transient failures. The total time
// spent across retries is bounded by 2x the configured timeout.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	budget := 2 * c.cfg.Timeout
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	operation := func() (*http.Response, error) {
		attempt := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			attempt.Body = body
		}
		resp, err := c.http.Do(attempt)
		if isRetryable(resp, err) {
			if err == nil {
				err = fmt.Errorf("resilience: retryable status %d", resp.StatusCode)
			}
			return nil, err
		}
		return resp, err
	}

	result, err := c.breaker.Execute(func() (*http.Response, error) {
		return retryWithBackoff(ctx, c.cfg, operation)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return result, nil
}

// retryWithBackoff retries operation up to cfg.MaxRetries times with
// exponential backoff seeded at cfg.InitialWait, doubling each time, with
// ±50% jitter on every interval.
func retryWithBackoff(ctx context.Context, cfg Config, operation func() (*http.Response, error)) (*http.Response, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialWait
	b.Multiplier = 2
	b.RandomizationFactor = 0.5

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(cfg.MaxRetries)),
	)
}

// Jitter returns a random duration in [min, max), used by providers that
// need an ad hoc jittered delay outside the HTTP retry path (e.g. the
// scraped-HTML provider's inter-query pacing and bot-protection backoff).
func Jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)))
}

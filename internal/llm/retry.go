package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var retryTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "veritas",
	Name:      "llm_retries_total",
	Help:      "Rate-limit retries against the LLM provider.",
})

// RetryConfig controls retry behavior for rate-limited calls.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts after the first call.
	MaxRetries int
	// Backoff is the base wait; retry n sleeps n times this long.
	Backoff time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		Backoff:    5 * time.Second,
	}
}

// RetryClient wraps an LLMClient and retries calls that failed on a provider
// rate limit, sleeping Backoff, 2*Backoff, 3*Backoff between attempts. Every
// other failure is returned immediately. A streaming call is never retried
// once partial output has reached the caller.
type RetryClient struct {
	inner  LLMClient
	cfg    RetryConfig
	logger *zap.Logger

	// OnRetry, when set, observes every retry before its backoff wait.
	OnRetry func(attempt int, wait time.Duration)
}

func NewRetryClient(inner LLMClient, cfg RetryConfig, logger *zap.Logger) *RetryClient {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultRetryConfig().MaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultRetryConfig().Backoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryClient{inner: inner, cfg: cfg, logger: logger}
}

func (c *RetryClient) Generate(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.wait(ctx, attempt); err != nil {
				return "", err
			}
		}

		text, err := c.inner.Generate(ctx, req)
		if err == nil {
			return text, nil
		}
		if !IsRateLimited(err) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("giving up after %d retries: %w", c.cfg.MaxRetries, lastErr)
}

func (c *RetryClient) GenerateStream(ctx context.Context, req Request, fn StreamFunc) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.wait(ctx, attempt); err != nil {
				return "", err
			}
		}

		emitted := false
		wrapped := func(text string) error {
			emitted = true
			return fn(text)
		}
		if fn == nil {
			wrapped = nil
		}

		text, err := c.inner.GenerateStream(ctx, req, wrapped)
		if err == nil {
			return text, nil
		}
		if emitted || !IsRateLimited(err) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("giving up after %d retries: %w", c.cfg.MaxRetries, lastErr)
}

func (c *RetryClient) wait(ctx context.Context, attempt int) error {
	delay := time.Duration(attempt) * c.cfg.Backoff
	retryTotal.Inc()
	c.logger.Warn("rate limited, retrying",
		zap.Int("attempt", attempt),
		zap.Int("max_retries", c.cfg.MaxRetries),
		zap.Duration("wait", delay))
	if c.OnRetry != nil {
		c.OnRetry(attempt, delay)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

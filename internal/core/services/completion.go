package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/time/rate"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/runtime"
)

const (
	defaultCompletionAttempts = 3
	defaultBaseDelay          = 500 * time.Millisecond
	defaultMaxDelay           = 8 * time.Second
	defaultCallTimeout        = 30 * time.Second
)

// CompletionClient calls the installed completion provider with bounded
// retries. Each attempt runs under its own CallTimeout; the caller's context
// bounds the whole operation including backoff sleeps.
type CompletionClient struct {
	services    *runtime.Services
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	callTimeout time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// CompletionClientConfig holds dependencies and retry policy for CompletionClient.
type CompletionClientConfig struct {
	Services *runtime.Services

	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	CallTimeout time.Duration

	// RequestsPerSecond throttles provider calls across all requests.
	// Zero disables throttling.
	RequestsPerSecond float64
	Burst             int

	Logger *slog.Logger
}

// NewCompletionClient creates a new completion client.
func NewCompletionClient(cfg CompletionClientConfig) *CompletionClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &CompletionClient{
		services:    cfg.Services,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
		callTimeout: cfg.CallTimeout,
		logger:      logger,
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultCompletionAttempts
	}
	if c.baseDelay <= 0 {
		c.baseDelay = defaultBaseDelay
	}
	if c.maxDelay <= 0 {
		c.maxDelay = defaultMaxDelay
	}
	if c.maxDelay < c.baseDelay {
		c.maxDelay = c.baseDelay
	}
	if c.callTimeout <= 0 {
		c.callTimeout = defaultCallTimeout
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// Complete generates text for the prompt. Transient failures (timeouts, rate
// limits, 5xx) are retried with exponential backoff; other failures return
// at once. When every attempt fails the error matches domain.ErrUnavailable.
func (c *CompletionClient) Complete(ctx context.Context, prompt *domain.Prompt, opts domain.CompletionOptions) (*domain.Completion, error) {
	if prompt == nil || prompt.User == "" {
		return nil, goerr.Wrap(domain.ErrInvalidInput, "prompt is empty")
	}

	svc := c.services.CompletionService()
	if svc == nil {
		return nil, goerr.Wrap(domain.ErrUnavailable, "no completion service configured")
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, c.cancelled(ctx, err, attempt-1)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		out, err := svc.Complete(callCtx, prompt, opts)
		cancel()

		if err == nil {
			out.Attempts = attempt
			if attempt > 1 {
				c.logger.Info("completion succeeded after retry", "attempt", attempt, "model", out.Model)
			}
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, c.cancelled(ctx, ctx.Err(), attempt)
		}
		if !isTransient(err) {
			return nil, goerr.Wrap(err, "completion failed", goerr.V(domain.KeyAttempts, attempt))
		}

		lastErr = err
		if attempt == c.maxAttempts {
			break
		}

		delay := c.backoff(attempt, err)
		c.logger.Warn("transient completion failure, retrying",
			"attempt", attempt,
			"max_attempts", c.maxAttempts,
			"delay_ms", delay.Milliseconds(),
			"error", err,
		)
		if err := sleep(ctx, delay); err != nil {
			return nil, c.cancelled(ctx, err, attempt)
		}
	}

	return nil, goerr.Wrap(fmt.Errorf("%w: %w", domain.ErrUnavailable, lastErr), "completion retries exhausted",
		goerr.V(domain.KeyAttempts, c.maxAttempts))
}

func (c *CompletionClient) cancelled(ctx context.Context, err error, attempts int) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return goerr.Wrap(err, "completion cancelled", goerr.V(domain.KeyAttempts, attempts))
}

// backoff returns the wait before the next attempt: base * 2^(attempt-1),
// or the provider's Retry-After when that is longer, capped at maxDelay.
func (c *CompletionClient) backoff(attempt int, err error) time.Duration {
	delay := c.baseDelay << (attempt - 1)
	if delay <= 0 || delay > c.maxDelay {
		delay = c.maxDelay
	}

	var pe *domain.ProviderError
	if errors.As(err, &pe) && pe.RetryAfter > delay {
		delay = min(pe.RetryAfter, c.maxDelay)
	}
	return delay
}

// isTransient reports whether a failed attempt is worth repeating. A
// per-attempt timeout counts as transient.
func isTransient(err error) bool {
	return errors.Is(err, domain.ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

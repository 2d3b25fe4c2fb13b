package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven/mocks"
	"github.com/Rikshjoeriks/sales-assistant/internal/runtime"
)

func transientErr(status int) error {
	return &domain.ProviderError{Provider: "openai", StatusCode: status, Message: "try later", Transient: true}
}

func newCompletionClient(t *testing.T, mock *mocks.MockCompletionService, mutate ...func(*CompletionClientConfig)) *CompletionClient {
	t.Helper()
	services := runtime.NewServices(domain.NewRuntimeConfig("memory", "memory"), 0)
	if mock != nil {
		services.SetCompletionService(mock)
	}
	cfg := CompletionClientConfig{
		Services:    services,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		CallTimeout: time.Second,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return NewCompletionClient(cfg)
}

var testPrompt = &domain.Prompt{System: "system", User: "user"}

func TestCompletionClient_RetriesThenSucceeds(t *testing.T) {
	mock := mocks.NewMockCompletionService(
		mocks.CompletionStep{Err: transientErr(503)},
		mocks.CompletionStep{Err: transientErr(429)},
		mocks.CompletionStep{Completion: &domain.Completion{Text: "third time lucky", Model: "gpt-4o-mini"}},
	)
	client := newCompletionClient(t, mock)

	out, err := client.Complete(context.Background(), testPrompt, domain.DefaultCompletionOptions())
	require.NoError(t, err)
	assert.Equal(t, "third time lucky", out.Text)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, mock.Calls())
}

func TestCompletionClient_ExhaustedIsUnavailable(t *testing.T) {
	mock := mocks.NewMockCompletionService(
		mocks.CompletionStep{Err: transientErr(500)},
		mocks.CompletionStep{Err: transientErr(502)},
		mocks.CompletionStep{Err: transientErr(503)},
		mocks.CompletionStep{Completion: &domain.Completion{Text: "too late"}},
	)
	client := newCompletionClient(t, mock)

	_, err := client.Complete(context.Background(), testPrompt, domain.DefaultCompletionOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.Equal(t, 3, mock.Calls(), "bounded attempts")
	assert.Equal(t, 3, domain.ErrorDetail(err)[domain.KeyAttempts])

	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 503, pe.StatusCode, "last failure is kept")
}

func TestCompletionClient_PermanentFailsImmediately(t *testing.T) {
	mock := mocks.NewMockCompletionService(
		mocks.CompletionStep{Err: &domain.ProviderError{Provider: "openai", StatusCode: 401, Message: "bad key"}},
	)
	client := newCompletionClient(t, mock)

	_, err := client.Complete(context.Background(), testPrompt, domain.DefaultCompletionOptions())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUnavailable)
	assert.Equal(t, 1, mock.Calls())

	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 401, pe.StatusCode)
}

func TestCompletionClient_CallTimeoutIsTransient(t *testing.T) {
	mock := mocks.NewMockCompletionService(
		mocks.CompletionStep{Delay: time.Second, Completion: &domain.Completion{Text: "slow"}},
		mocks.CompletionStep{Completion: &domain.Completion{Text: "fast"}},
	)
	client := newCompletionClient(t, mock, func(cfg *CompletionClientConfig) {
		cfg.CallTimeout = 20 * time.Millisecond
	})

	start := time.Now()
	out, err := client.Complete(context.Background(), testPrompt, domain.DefaultCompletionOptions())
	require.NoError(t, err)
	assert.Equal(t, "fast", out.Text)
	assert.Equal(t, 2, out.Attempts)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "slow call was cut off")
}

func TestCompletionClient_CallerCancelStopsBackoff(t *testing.T) {
	mock := mocks.NewMockCompletionService(
		mocks.CompletionStep{Err: transientErr(503)},
	)
	client := newCompletionClient(t, mock, func(cfg *CompletionClientConfig) {
		cfg.BaseDelay = 5 * time.Second
		cfg.MaxDelay = 5 * time.Second
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.Complete(ctx, testPrompt, domain.DefaultCompletionOptions())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrUnavailable)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, mock.Calls())
}

func TestCompletionClient_CallerCancelDuringCall(t *testing.T) {
	mock := mocks.NewMockCompletionService(
		mocks.CompletionStep{Delay: 5 * time.Second, Completion: &domain.Completion{Text: "never"}},
	)
	client := newCompletionClient(t, mock)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, testPrompt, domain.DefaultCompletionOptions())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, mock.Calls(), "caller deadline is not retried")
}

func TestCompletionClient_Backoff(t *testing.T) {
	client := newCompletionClient(t, nil, func(cfg *CompletionClientConfig) {
		cfg.BaseDelay = 100 * time.Millisecond
		cfg.MaxDelay = 2 * time.Second
	})

	tests := []struct {
		name    string
		attempt int
		err     error
		want    time.Duration
	}{
		{"first", 1, transientErr(503), 100 * time.Millisecond},
		{"third", 3, transientErr(503), 400 * time.Millisecond},
		{"capped", 10, transientErr(503), 2 * time.Second},
		{"retry-after longer", 1, &domain.ProviderError{StatusCode: 429, Transient: true, RetryAfter: 700 * time.Millisecond}, 700 * time.Millisecond},
		{"retry-after capped", 1, &domain.ProviderError{StatusCode: 429, Transient: true, RetryAfter: time.Minute}, 2 * time.Second},
		{"retry-after shorter", 3, &domain.ProviderError{StatusCode: 429, Transient: true, RetryAfter: 50 * time.Millisecond}, 400 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, client.backoff(tt.attempt, tt.err))
		})
	}
}

func TestCompletionClient_Validation(t *testing.T) {
	client := newCompletionClient(t, nil)

	_, err := client.Complete(context.Background(), testPrompt, domain.DefaultCompletionOptions())
	assert.ErrorIs(t, err, domain.ErrUnavailable, "no provider installed")

	client = newCompletionClient(t, mocks.NewMockCompletionService())
	_, err = client.Complete(context.Background(), &domain.Prompt{}, domain.DefaultCompletionOptions())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCompletionClient_Throttled(t *testing.T) {
	mock := mocks.NewMockCompletionService()
	client := newCompletionClient(t, mock, func(cfg *CompletionClientConfig) {
		cfg.RequestsPerSecond = 20
		cfg.Burst = 1
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Complete(context.Background(), testPrompt, domain.DefaultCompletionOptions())
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(transientErr(503)))
	assert.True(t, isTransient(context.DeadlineExceeded))
	assert.False(t, isTransient(&domain.ProviderError{StatusCode: 400}))
	assert.False(t, isTransient(errors.New("boom")))
}

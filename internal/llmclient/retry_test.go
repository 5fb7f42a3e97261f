package llmclient

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/bamlgo/baml/internal/ast"
	"github.com/bamlgo/baml/internal/ir"
	"github.com/stretchr/testify/require"
)

// TestRetryExhaustsThenSucceedsScenarioC is end-to-end scenario C: a
// provider that answers 503 twice then 200 should be retried exactly
// twice (three attempts total) with cumulative backoff sleep of at
// least the two configured 150ms delays.
func TestRetryExhaustsThenSucceedsScenarioC(t *testing.T) {
	policy := &ir.RetryPolicy{
		Name:       "TwoRetries",
		MaxRetries: 2,
		Strategy: ast.StrategyDecl{
			Type:       "constant_delay",
			DelayMs:    150,
			Multiplier: 1,
		},
	}
	driver := &RetryDriver{Policy: policy, Rand: rand.New(rand.NewSource(1))}

	var attempts int
	start := time.Now()
	resp, err := driver.Run(context.Background(), func(ctx context.Context) (Response, error) {
		attempts++
		if attempts <= 2 {
			return Response{Code: ErrServiceUnavailable, Message: "service unavailable"}, nil
		}
		return Response{Text: "ok"}, nil
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	require.Equal(t, "ok", resp.Text)
	require.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
}

// TestRetryGivesUpAfterMaxRetries checks that a persistently failing
// provider returns the last failure once attempts are exhausted, rather
// than retrying forever.
func TestRetryGivesUpAfterMaxRetries(t *testing.T) {
	policy := &ir.RetryPolicy{
		Name:       "OneRetry",
		MaxRetries: 1,
		Strategy:   ast.StrategyDecl{Type: "constant_delay", DelayMs: 1},
	}
	driver := &RetryDriver{Policy: policy, Rand: rand.New(rand.NewSource(1))}

	var attempts int
	resp, err := driver.Run(context.Background(), func(ctx context.Context) (Response, error) {
		attempts++
		return Response{Code: ErrServerError, Message: "boom"}, nil
	})

	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.True(t, resp.Failed())
	require.Equal(t, ErrServerError, resp.Code)
}

// TestRetryDoesNotRetryNonTransientFailure checks that a classified,
// non-transient failure (e.g. bad request) returns on the first attempt.
func TestRetryDoesNotRetryNonTransientFailure(t *testing.T) {
	policy := &ir.RetryPolicy{MaxRetries: 5, Strategy: ast.StrategyDecl{Type: "constant_delay", DelayMs: 100}}
	driver := &RetryDriver{Policy: policy}

	var attempts int
	_, err := driver.Run(context.Background(), func(ctx context.Context) (Response, error) {
		attempts++
		return Response{Code: ErrBadRequest, Message: "nope"}, nil
	})

	require.NoError(t, err)
	require.Equal(t, 1, attempts)
}

// TestRetryExponentialBackoffGrows checks the exponential strategy's
// per-attempt base delay actually scales by the configured multiplier.
func TestRetryExponentialBackoffGrows(t *testing.T) {
	policy := &ir.RetryPolicy{
		MaxRetries: 3,
		Strategy: ast.StrategyDecl{
			Type:       "exponential_backoff",
			DelayMs:    100,
			Multiplier: 2,
			MaxDelayMs: 1000,
		},
	}
	driver := &RetryDriver{Policy: policy}
	// jitter adds up to 20% on top of the base delay, so compare ranges
	// rather than exact values.
	d1 := driver.delayFor(1) / time.Millisecond
	d2 := driver.delayFor(2) / time.Millisecond
	d3 := driver.delayFor(3) / time.Millisecond
	require.GreaterOrEqual(t, d1, int64(100))
	require.LessOrEqual(t, d1, int64(120))
	require.GreaterOrEqual(t, d2, int64(200))
	require.LessOrEqual(t, d2, int64(240))
	require.GreaterOrEqual(t, d3, int64(400))
	require.LessOrEqual(t, d3, int64(480))
}

package llmclient

import (
	"context"
	"math/rand"
	"time"

	"github.com/bamlgo/baml/internal/ir"
)

// RetryDriver executes a call against a RetryPolicy, sleeping between
// attempts: only transient failures (RateLimited, ServerError,
// ServiceUnavailable, InternalFailure) retry; success and any other
// failure return immediately. On exhaustion the last failure is
// returned. Sleeps are jittered and cancel cooperatively via ctx.
type RetryDriver struct {
	Policy *ir.RetryPolicy // nil means "no retries configured"
	Rand   *rand.Rand      // nil uses a package-level source
}

func (d *RetryDriver) maxRetries() int64 {
	if d.Policy == nil {
		return 0
	}
	return d.Policy.MaxRetries
}

// Run invokes attempt up to 1+maxRetries times, sleeping between attempts
// per the policy's strategy, and returns the last Response/error.
func (d *RetryDriver) Run(ctx context.Context, attempt func(ctx context.Context) (Response, error)) (Response, error) {
	var lastResp Response
	var lastErr error
	for try := int64(0); try <= d.maxRetries(); try++ {
		if try > 0 {
			if err := d.sleep(ctx, try); err != nil {
				return lastResp, err
			}
		}
		resp, err := attempt(ctx)
		lastResp, lastErr = resp, err
		if err != nil {
			// A transport-level error (not a classified provider response)
			// is treated as transient: worth one more attempt.
			continue
		}
		if !resp.Failed() || !resp.Code.transient() {
			return resp, nil
		}
	}
	return lastResp, lastErr
}

// sleep waits for this attempt's backoff delay, honoring ctx cancellation.
func (d *RetryDriver) sleep(ctx context.Context, attemptIndex int64) error {
	delay := d.delayFor(attemptIndex)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (d *RetryDriver) delayFor(attemptIndex int64) time.Duration {
	if d.Policy == nil {
		return 0
	}
	var base int64
	switch d.Policy.Strategy.Type {
	case "constant_delay":
		base = d.Policy.Strategy.DelayMs
	case "exponential_backoff":
		base = d.Policy.Strategy.DelayMs
		for i := int64(1); i < attemptIndex; i++ {
			scaled := float64(base) * d.Policy.Strategy.Multiplier
			if d.Policy.Strategy.MaxDelayMs > 0 && int64(scaled) > d.Policy.Strategy.MaxDelayMs {
				scaled = float64(d.Policy.Strategy.MaxDelayMs)
			}
			base = int64(scaled)
		}
	default:
		base = d.Policy.Strategy.DelayMs
	}
	if d.Policy.Strategy.MaxDelayMs > 0 && base > d.Policy.Strategy.MaxDelayMs {
		base = d.Policy.Strategy.MaxDelayMs
	}
	return time.Duration(base)*time.Millisecond + d.jitter(base)
}

// jitter adds up to 20% extra delay so retrying clients don't synchronize.
func (d *RetryDriver) jitter(baseMs int64) time.Duration {
	if baseMs <= 0 {
		return 0
	}
	r := d.Rand
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	extra := r.Int63n(baseMs/5 + 1)
	return time.Duration(extra) * time.Millisecond
}

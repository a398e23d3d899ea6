package mcpwire

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig controls the bounded re-attempt strategy applied around one
// logical operation. Delay before attempt k is base*2^(k-1) capped at
// MaxDelay, perturbed by ±JitterFraction of that value.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`

	// BaseDelay is the delay before the first re-attempt.
	BaseDelay time.Duration `envconfig:"RETRY_BASE_DELAY" default:"100ms"`

	// MaxDelay caps the exponential growth of the delay.
	MaxDelay time.Duration `envconfig:"RETRY_MAX_DELAY" default:"5s"`

	// JitterFraction perturbs each delay within ±fraction of its value.
	JitterFraction float64 `envconfig:"RETRY_JITTER_FRACTION" default:"0.2"`
}

// retryPolicy re-attempts an operation on transient errors. It is stateless
// across calls; each execute creates a fresh backoff schedule.
type retryPolicy struct {
	cfg RetryConfig
}

func newRetryPolicy(cfg RetryConfig) retryPolicy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	return retryPolicy{cfg: cfg}
}

// execute runs op up to MaxAttempts times. Only errors classified transient
// are retried; a non-transient error or attempt exhaustion returns the last
// error unchanged. Delays respect ctx cancellation.
func (r retryPolicy) execute(ctx context.Context, op func() (any, error)) (any, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.BaseDelay
	b.Multiplier = 2
	b.MaxInterval = r.cfg.MaxDelay
	b.RandomizationFactor = r.cfg.JitterFraction
	b.MaxElapsedTime = 0

	schedule := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.cfg.MaxAttempts-1)), ctx)

	return backoff.RetryWithData(func() (any, error) {
		res, err := op()
		if err == nil {
			return res, nil
		}
		if !isTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}, schedule)
}

package mcpwire

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DedupConfig controls the idempotency memo consulted before handlers run.
type DedupConfig struct {
	// TTL is how long an observed outcome stays servable.
	TTL time.Duration `envconfig:"DEDUP_TTL" default:"30s"`

	// SweepInterval is how often fully-resolved expired entries are
	// reclaimed in the background. Expired entries are also evicted
	// lazily on access.
	SweepInterval time.Duration `envconfig:"DEDUP_SWEEP_INTERVAL" default:"1m"`
}

type dedupEntry struct {
	done chan struct{} // closed once the computation resolves

	value     any
	err       error
	cancelled bool
	expiresAt time.Time // zero while the computation is in flight
}

// DedupCache memoizes the outcome of a logical call, success or failure,
// keyed by an idempotency key. While a key's computation is in flight,
// concurrent callers for the same key wait and share its result instead of
// executing again. A cancelled computation is never cached: waiters observe
// the cancellation distinctly and exactly one of them re-executes.
type DedupCache struct {
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*dedupEntry

	done        chan struct{}
	sweepClosed chan struct{}
}

// NewDedupCache creates the cache and starts its background sweep.
// Call Close to release it.
func NewDedupCache(cfg DedupConfig, logger *slog.Logger) *DedupCache {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	c := &DedupCache{
		logger:      logger,
		entries:     make(map[string]*dedupEntry),
		done:        make(chan struct{}),
		sweepClosed: make(chan struct{}),
	}
	go c.sweepLoop(cfg.SweepInterval)
	return c
}

// GetOrCompute returns the stored outcome for key if an unexpired entry
// exists; otherwise it runs op, stores the outcome with the given ttl, and
// returns it. At most one execution runs per key per cache window.
func (c *DedupCache) GetOrCompute(
	ctx context.Context,
	key string,
	ttl time.Duration,
	op func(ctx context.Context) (any, error),
) (any, error) {
	// Two passes at most: a waiter whose computer got cancelled retries
	// once as the new computer instead of adopting the cancellation.
	for attempt := 0; ; attempt++ {
		c.mu.Lock()
		e, ok := c.entries[key]
		if ok && !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
			delete(c.entries, key)
			ok = false
		}
		if !ok {
			e = &dedupEntry{done: make(chan struct{})}
			c.entries[key] = e
			c.mu.Unlock()
			return c.compute(ctx, key, ttl, e, op)
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-e.done:
		}

		if !e.cancelled {
			return e.value, e.err
		}
		if attempt >= 1 {
			return nil, e.err
		}
	}
}

// Len returns the number of live entries, in-flight included.
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the background sweep. In-flight computations are unaffected.
func (c *DedupCache) Close() {
	close(c.done)
	<-c.sweepClosed
}

func (c *DedupCache) compute(
	ctx context.Context,
	key string,
	ttl time.Duration,
	e *dedupEntry,
	op func(ctx context.Context) (any, error),
) (any, error) {
	value, err := op(ctx)

	c.mu.Lock()
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		// Cancellation must not poison waiters with a cached outcome.
		e.cancelled = true
		e.err = err
		delete(c.entries, key)
	} else {
		e.value = value
		e.err = err
		e.expiresAt = time.Now().Add(ttl)
	}
	c.mu.Unlock()
	close(e.done)

	return value, err
}

func (c *DedupCache) sweepLoop(interval time.Duration) {
	defer close(c.sweepClosed)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.sweep(now)
		}
	}
}

func (c *DedupCache) sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for key, e := range c.entries {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}
	if evicted > 0 {
		c.logger.Debug("dedup sweep evicted entries", slog.Int("count", evicted))
	}
}

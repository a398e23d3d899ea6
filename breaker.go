package mcpwire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig controls the per-endpoint circuit breakers.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that trips the
	// breaker from closed to open.
	FailureThreshold uint32 `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"5"`

	// ResetTimeout is how long the breaker stays open before admitting a
	// single half-open trial call.
	ResetTimeout time.Duration `envconfig:"BREAKER_RESET_TIMEOUT" default:"60s"`
}

// breakerSet lazily creates one circuit breaker per protected endpoint.
// State transitions are serialized per endpoint by the breaker itself, so
// unrelated endpoints never contend.
type breakerSet struct {
	cfg     BreakerConfig
	logger  *slog.Logger
	onOpen  func(endpoint string)
	mu      sync.Mutex
	entries map[string]*gobreaker.CircuitBreaker[any]
}

func newBreakerSet(cfg BreakerConfig, logger *slog.Logger, onOpen func(endpoint string)) *breakerSet {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout == 0 {
		cfg.ResetTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &breakerSet{
		cfg:     cfg,
		logger:  logger,
		onOpen:  onOpen,
		entries: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// execute runs op under the endpoint's breaker. Breaker rejections (open
// state, or a second call racing the single half-open trial) surface as
// ErrCircuitOpen without invoking op.
func (b *breakerSet) execute(endpoint string, op func() (any, error)) (any, error) {
	res, err := b.get(endpoint).Execute(op)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, endpoint)
	}
	return res, err
}

func (b *breakerSet) get(endpoint string) *gobreaker.CircuitBreaker[any] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.entries[endpoint]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name: endpoint,
		// Exactly one trial call is admitted while half-open; concurrent
		// calls during the trial are rejected as if the breaker were open.
		MaxRequests: 1,
		Timeout:     b.cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.cfg.FailureThreshold
		},
		// A caller-side cancellation says nothing about downstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Info("circuit breaker state change",
				slog.String("endpoint", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			if to == gobreaker.StateOpen && b.onOpen != nil {
				b.onOpen(name)
			}
		},
	})
	b.entries[endpoint] = cb
	return cb
}

// state returns the endpoint's current breaker state, creating the breaker
// if it does not exist yet.
func (b *breakerSet) state(endpoint string) gobreaker.State {
	return b.get(endpoint).State()
}

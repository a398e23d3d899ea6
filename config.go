package mcpwire

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the router's configuration surface. It is read at construction
// and immutable for the router's lifetime.
type Config struct {
	// ValidateRequests runs a handler's validation hook before dispatch.
	ValidateRequests bool `envconfig:"VALIDATE_REQUESTS" default:"true"`

	// ValidateResponses checks handler results before they are serialized
	// into a response.
	ValidateResponses bool `envconfig:"VALIDATE_RESPONSES" default:"true"`

	// DefaultTimeout bounds inbound request processing and is the fallback
	// deadline for outbound peer requests.
	DefaultTimeout time.Duration `envconfig:"DEFAULT_TIMEOUT" default:"30s"`

	// MaxConcurrentRequests bounds inbound requests in flight at once.
	MaxConcurrentRequests int64 `envconfig:"MAX_CONCURRENT_REQUESTS" default:"1000"`

	// QueueOnBusy makes admission wait for a free permit (up to the request
	// timeout) instead of rejecting immediately with a busy error.
	QueueOnBusy bool `envconfig:"QUEUE_ON_BUSY" default:"true"`

	// EnableBidirectional permits requests initiated by this peer through
	// Call. When false, Call fails without touching the transport.
	EnableBidirectional bool `envconfig:"ENABLE_BIDIRECTIONAL" default:"true"`

	// EnableTracing emits one tracing span per routed request.
	EnableTracing bool `envconfig:"ENABLE_TRACING" default:"true"`

	// ResilientNotifications runs notification dispatch under the breaker
	// and retry layers like requests. Default is to bypass them: a dropped
	// notification has no caller to report to.
	ResilientNotifications bool `envconfig:"RESILIENT_NOTIFICATIONS" default:"false"`

	Breaker BreakerConfig
	Retry   RetryConfig
	Dedup   DedupConfig
}

// DefaultConfig returns the documented defaults: validation on, 30s timeout,
// tracing on, 1000 concurrent requests, bidirectional on.
func DefaultConfig() Config {
	return Config{
		ValidateRequests:      true,
		ValidateResponses:     true,
		DefaultTimeout:        30 * time.Second,
		MaxConcurrentRequests: 1000,
		QueueOnBusy:           true,
		EnableBidirectional:   true,
		EnableTracing:         true,
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     60 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			BaseDelay:      100 * time.Millisecond,
			MaxDelay:       5 * time.Second,
			JitterFraction: 0.2,
		},
		Dedup: DedupConfig{
			TTL:           30 * time.Second,
			SweepInterval: time.Minute,
		},
	}
}

// ConfigFromEnv loads the configuration from MCPWIRE_-prefixed environment
// variables, falling back to the documented defaults.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("mcpwire", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process environment config: %w", err)
	}
	return cfg, nil
}

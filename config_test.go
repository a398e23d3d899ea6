package mcpwire_test

import (
	"testing"
	"time"

	"github.com/relaywire/mcpwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := mcpwire.DefaultConfig()

	assert.True(t, cfg.ValidateRequests)
	assert.True(t, cfg.ValidateResponses)
	assert.Equal(t, 30*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, int64(1000), cfg.MaxConcurrentRequests)
	assert.True(t, cfg.QueueOnBusy)
	assert.True(t, cfg.EnableBidirectional)
	assert.True(t, cfg.EnableTracing)
	assert.False(t, cfg.ResilientNotifications)

	assert.Equal(t, uint32(5), cfg.Breaker.FailureThreshold)
	assert.Equal(t, time.Minute, cfg.Breaker.ResetTimeout)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 5*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, 0.2, cfg.Retry.JitterFraction)
	assert.Equal(t, 30*time.Second, cfg.Dedup.TTL)
}

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg, err := mcpwire.ConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, mcpwire.DefaultConfig(), cfg)
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("MCPWIRE_DEFAULT_TIMEOUT", "5s")
	t.Setenv("MCPWIRE_MAX_CONCURRENT_REQUESTS", "10")
	t.Setenv("MCPWIRE_QUEUE_ON_BUSY", "false")
	t.Setenv("MCPWIRE_BREAKER_FAILURE_THRESHOLD", "2")
	t.Setenv("MCPWIRE_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("MCPWIRE_DEDUP_TTL", "90s")

	cfg, err := mcpwire.ConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, int64(10), cfg.MaxConcurrentRequests)
	assert.False(t, cfg.QueueOnBusy)
	assert.Equal(t, uint32(2), cfg.Breaker.FailureThreshold)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.Equal(t, 90*time.Second, cfg.Dedup.TTL)
}

func TestConfigFromEnvInvalidValue(t *testing.T) {
	t.Setenv("MCPWIRE_DEFAULT_TIMEOUT", "not-a-duration")

	_, err := mcpwire.ConfigFromEnv()
	assert.Error(t, err)
}

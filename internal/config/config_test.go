package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":9090", cfg.GRPCAddr)
	assert.Equal(t, 10000, cfg.EventLog.MaxEventsPerSource)
	assert.True(t, cfg.Local.Enabled)
	assert.Equal(t, int64(100000), cfg.Local.MaxItems)
	assert.Equal(t, int64(64*1024*1024), cfg.Local.MaxCost)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":7000")
	t.Setenv("MAX_EVENTS_PER_SOURCE", "50")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_DIAL_TIMEOUT", "250ms")
	t.Setenv("SOURCES", "app,,sessions")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.HTTPAddr)
	assert.Equal(t, 50, cfg.EventLog.MaxEventsPerSource)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Redis.DialTimeout)
	assert.Equal(t, []string{"app", "sessions"}, cfg.EventLog.Sources)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("MAX_EVENTS_PER_SOURCE", "lots")
	t.Setenv("LOCAL_CACHE_ENABLED", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10000, cfg.EventLog.MaxEventsPerSource)
	assert.True(t, cfg.Local.Enabled)
}

func TestValidate(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.EventLog.MaxEventsPerSource = -1
	assert.ErrorIs(t, cfg.Validate(), ErrNegativeLimit)

	cfg.HTTPAddr = ""
	assert.ErrorIs(t, cfg.Validate(), ErrNoHTTPAddr)
}

func TestValidate_LocalCacheSize(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Local.MaxItems = 0
	assert.ErrorIs(t, cfg.Validate(), ErrLocalCacheSize)

	cfg.Local.Enabled = false
	assert.NoError(t, cfg.Validate())
}

// The default local cache must stay small enough to start in a modest container.
func TestLoad_DefaultLocalCacheCounters(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	counters := cfg.Local.MaxItems * 10
	assert.LessOrEqual(t, counters, int64(10_000_000))
	assert.Less(t, counters, cfg.Local.MaxCost)
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMemoryDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 3, cfg.Scheduler.MaxEdits)
	assert.Equal(t, 4, cfg.Scheduler.CombinationCeiling)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.CheckInLead)
	assert.Equal(t, LockLocal, cfg.Scheduler.LockBackend)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, "reservation_events", cfg.Rabbit.Queue)
}

func TestLoadMySQLRequiresDB(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mysql")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_NAME", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_USER")
	assert.Contains(t, err.Error(), "DB_NAME")
}

func TestLoadSchedulerOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SCHED_MAX_EDITS", "5")
	t.Setenv("SCHED_LOCK_BACKEND", "redis")
	t.Setenv("SCHED_CHECKIN_LEAD", "30m")
	t.Setenv("APP_TIMEZONE", "Europe/Berlin")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Scheduler.MaxEdits)
	assert.Equal(t, LockRedis, cfg.Scheduler.LockBackend)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.CheckInLead)
	assert.Equal(t, "Europe/Berlin", cfg.Location.String())
}

func TestLoadRejectsUnknownValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	t.Setenv("STORE_DRIVER", "sqlite")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("SCHED_LOCK_BACKEND", "zookeeper")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadRateLimitConfigBurstOverride(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")

	rl := LoadRateLimitConfig()
	assert.Equal(t, 10, rl.Capacity)
	assert.Equal(t, 1, rl.RefillTokens)
	assert.Equal(t, 2*time.Second, rl.RefillInterval)
	assert.GreaterOrEqual(t, rl.TTL, 10*time.Second)
}

func TestLoadCacheConfigMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	c := LoadCacheConfig()
	assert.True(t, c.Methods["GET"])
	assert.True(t, c.Methods["HEAD"])
	assert.False(t, c.Methods["POST"])
}

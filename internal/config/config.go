// Package config loads application configuration from environment
// variables.  An optional .env file is read first.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Lock backends.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Config holds all runtime configuration values.
type Config struct {
	Env         string // application environment (dev, test, prod)
	Port        string // HTTP port to listen on
	LogLevel    string
	Location    *time.Location // calendar used to group reservations by day
	StoreDriver string
	SeedCatalog bool // insert the default catalog into an empty store

	DBUser string
	DBPass string
	DBHost string
	DBPort string
	DBName string

	JWTSecret string

	Scheduler SchedulerConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Rabbit    RabbitConfig
}

// SchedulerConfig tunes the reservation scheduler.
type SchedulerConfig struct {
	MaxEdits           int
	CombinationCeiling int
	CheckInLead        time.Duration
	LockBackend        string
	LockTimeout        time.Duration
	LockTTL            time.Duration
	MaxAttempts        int
	RetryBackoff       time.Duration
}

// RabbitConfig configures reservation event publishing and the log
// consumer.  An empty URL disables both.
type RabbitConfig struct {
	URL             string
	Queue           string
	ConsumerEnabled bool
	LogDir          string
}

// Load reads configuration values from the environment.  Required
// variables that are missing are reported together in one error.
func Load() (Config, error) {
	_ = godotenv.Load()

	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		Env:         envStr("APP_ENV", "dev"),
		Port:        envStr("APP_PORT", "8080"),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		StoreDriver: strings.ToLower(envStr("STORE_DRIVER", StoreMySQL)),
		SeedCatalog: envBool("SEED_CATALOG", false),
		DBPass:      os.Getenv("DB_PASS"),
		JWTSecret:   must("JWT_SECRET"),
		Scheduler: SchedulerConfig{
			MaxEdits:           envInt("SCHED_MAX_EDITS", 3),
			CombinationCeiling: envInt("SCHED_COMBINATION_CEILING", 4),
			CheckInLead:        envDur("SCHED_CHECKIN_LEAD", 15*time.Minute),
			LockBackend:        strings.ToLower(envStr("SCHED_LOCK_BACKEND", LockLocal)),
			LockTimeout:        envDur("SCHED_LOCK_TIMEOUT", 2*time.Second),
			LockTTL:            envDur("SCHED_LOCK_TTL", 10*time.Second),
			MaxAttempts:        envInt("SCHED_MAX_ATTEMPTS", 3),
			RetryBackoff:       envDur("SCHED_RETRY_BACKOFF", 50*time.Millisecond),
		},
		Redis:     LoadRedisConfig(),
		RateLimit: LoadRateLimitConfig(),
		Cache:     LoadCacheConfig(),
		Rabbit: RabbitConfig{
			URL:             os.Getenv("RABBITMQ_URL"),
			Queue:           envStr("RABBITMQ_QUEUE", "reservation_events"),
			ConsumerEnabled: envBool("RABBITMQ_CONSUMER_ENABLED", true),
			LogDir:          envStr("RABBITMQ_LOG_DIR", "logs"),
		},
	}

	switch cfg.StoreDriver {
	case StoreMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case StoreMemory:
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	switch cfg.Scheduler.LockBackend {
	case LockLocal, LockRedis:
	default:
		return Config{}, fmt.Errorf("unknown SCHED_LOCK_BACKEND %q", cfg.Scheduler.LockBackend)
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if cfg.Scheduler.MaxEdits < 1 {
		return Config{}, errors.New("SCHED_MAX_EDITS must be at least 1")
	}

	loc, err := time.LoadLocation(envStr("APP_TIMEZONE", "UTC"))
	if err != nil {
		return Config{}, fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	cfg.Location = loc
	return cfg, nil
}

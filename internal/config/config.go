package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the analytical core.
type Config struct {
	Sentiment     SentimentConfig
	Dissonance    DissonanceConfig
	Baseline      BaselineConfig
	Cultural      CulturalConfig
	Overnight     OvernightConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
	Security      SecurityConfig
}

type SentimentConfig struct {
	CacheMaxEntries int
	ModelTimeout    time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
}

type DissonanceConfig struct {
	LowThreshold  float64
	HighThreshold float64
}

type BaselineConfig struct {
	WindowDays int
	MinSamples int
	DecayTau   float64
}

type CulturalConfig struct {
	KBPath          string
	KBReloadOnWrite bool
}

type OvernightConfig struct {
	LookbackDays        int
	MaxConcurrentUsers  int
	RunWideDeadline     time.Duration
	AdmissionRatePerSec float64
	AdmissionBurst      int
}

type DatabaseConfig struct {
	URL                 string
	MaxOpenConns        int
	MaxIdleConns        int
	ConnMaxLifetime     time.Duration
	ConnMaxIdleTime     time.Duration
	QueryTimeout        time.Duration
	HealthCheckInterval time.Duration
}

type RedisConfig struct {
	URL             string
	Password        string
	DB              int
	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	IdleTimeout     time.Duration
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
	CacheTTL        time.Duration
}

type ObservabilityConfig struct {
	ServiceName string
	LogLevel    string
	LogFormat   string
}

type SecurityConfig struct {
	PBKDF2Iterations  int
	KeyRotationPeriod time.Duration
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Sentiment: SentimentConfig{
			CacheMaxEntries: getIntEnv("SENTIMENT_CACHE_MAX_ENTRIES", 1000),
			ModelTimeout:    getDurationEnv("SENTIMENT_MODEL_TIMEOUT", 5*time.Second),
			MaxRetries:      getIntEnv("SENTIMENT_MAX_RETRIES", 3),
			RetryDelay:      getDurationEnv("SENTIMENT_RETRY_DELAY", 200*time.Millisecond),
		},
		Dissonance: DissonanceConfig{
			LowThreshold:  getFloatEnv("DISSONANCE_LOW_THRESHOLD", 0.3),
			HighThreshold: getFloatEnv("DISSONANCE_HIGH_THRESHOLD", 0.7),
		},
		Baseline: BaselineConfig{
			WindowDays: getIntEnv("BASELINE_WINDOW_DAYS", 30),
			MinSamples: getIntEnv("BASELINE_MIN_SAMPLES", 15),
			DecayTau:   getFloatEnv("BASELINE_DECAY_TAU", 30),
		},
		Cultural: CulturalConfig{
			KBPath:          getEnv("CULTURAL_KB_PATH", "internal/cultural/testdata/kb.json"),
			KBReloadOnWrite: getBoolEnv("CULTURAL_KB_RELOAD_ON_WRITE", true),
		},
		Overnight: OvernightConfig{
			LookbackDays:        getIntEnv("OVERNIGHT_LOOKBACK_DAYS", 30),
			MaxConcurrentUsers:  getIntEnv("OVERNIGHT_MAX_CONCURRENT_USERS", 8),
			RunWideDeadline:     getDurationEnv("OVERNIGHT_RUN_DEADLINE", 2*time.Hour),
			AdmissionRatePerSec: getFloatEnv("OVERNIGHT_ADMISSION_RATE", 4.0),
			AdmissionBurst:      getIntEnv("OVERNIGHT_ADMISSION_BURST", 8),
		},
		Database: DatabaseConfig{
			URL:                 getEnv("DATABASE_URL", ""),
			MaxOpenConns:        getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:        getIntEnv("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime:     getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime:     getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			QueryTimeout:        getDurationEnv("DB_QUERY_TIMEOUT", 10*time.Second),
			HealthCheckInterval: getDurationEnv("DB_HEALTH_CHECK_INTERVAL", 30*time.Second),
		},
		Redis: RedisConfig{
			URL:             getEnv("REDIS_URL", "redis://localhost:6379"),
			Password:        getEnv("REDIS_PASSWORD", ""),
			DB:              getIntEnv("REDIS_DB", 0),
			PoolSize:        getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns:    getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
			PoolTimeout:     getDurationEnv("REDIS_POOL_TIMEOUT", 4*time.Second),
			IdleTimeout:     getDurationEnv("REDIS_IDLE_TIMEOUT", 5*time.Minute),
			MaxRetries:      getIntEnv("REDIS_MAX_RETRIES", 3),
			MinRetryBackoff: getDurationEnv("REDIS_MIN_RETRY_BACKOFF", 8*time.Millisecond),
			MaxRetryBackoff: getDurationEnv("REDIS_MAX_RETRY_BACKOFF", 512*time.Millisecond),
			CacheTTL:        getDurationEnv("REDIS_CACHE_TTL", 24*time.Hour),
		},
		Observability: ObservabilityConfig{
			ServiceName: getEnv("OTEL_SERVICE_NAME", "resona-core"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			PBKDF2Iterations:  getIntEnv("ENCRYPTION_PBKDF2_ITERATIONS", 100000),
			KeyRotationPeriod: getDurationEnv("KEY_ROTATION_PERIOD", 90*24*time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Security.PBKDF2Iterations < 1000 {
		return fmt.Errorf("ENCRYPTION_PBKDF2_ITERATIONS must be at least 1000")
	}
	if c.Dissonance.LowThreshold >= c.Dissonance.HighThreshold {
		return fmt.Errorf("DISSONANCE_LOW_THRESHOLD must be less than DISSONANCE_HIGH_THRESHOLD")
	}
	return nil
}

// Helper functions for environment variable parsing, same shape the core has
// always used.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/leon-madara/resona-core/internal/config"
	"github.com/leon-madara/resona-core/pkg/observability"
	"github.com/redis/go-redis/v9"
)

// RedisClient wraps redis.Client with advanced caching functionality
type RedisClient struct {
	*redis.Client
	logger      *observability.Logger
	metrics     *RedisMetrics
	cacheConfig *CacheConfig
	mu          sync.RWMutex
}

// RedisMetrics tracks Redis performance metrics
type RedisMetrics struct {
	HitCount      int64
	MissCount     int64
	SetCount      int64
	DeleteCount   int64
	EvictionCount int64
	AvgLatency    time.Duration
	mu            sync.RWMutex
}

// CacheConfig contains caching configuration
type CacheConfig struct {
	MaxMemory      string
	EvictionPolicy string
	EnableMetrics  bool
}

// NewRedisClient creates a new Redis client with advanced caching capabilities
func NewRedisClient(cfg config.RedisConfig, logger *observability.Logger) (*RedisClient, error) {
	if logger == nil {
		logger = observability.NewLogger(config.ObservabilityConfig{})
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	opt.DB = cfg.DB

	// Enhanced connection pool settings
	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = 5
	opt.MaxIdleConns = 10
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.MaxRetries = 3
	opt.MinRetryBackoff = 8 * time.Millisecond
	opt.MaxRetryBackoff = 512 * time.Millisecond

	client := redis.NewClient(opt)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	// Initialize cache configuration
	cacheConfig := &CacheConfig{
		MaxMemory:      "256mb",
		EvictionPolicy: "allkeys-lru",
		EnableMetrics:  true,
	}

	redisClient := &RedisClient{
		Client:      client,
		logger:      logger,
		metrics:     &RedisMetrics{},
		cacheConfig: cacheConfig,
	}

	// Configure Redis for optimal performance
	if err := redisClient.configureRedis(ctx); err != nil {
		logger.Warn(ctx, "Failed to configure Redis optimizations", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Start background monitoring
	go redisClient.startMetricsCollection()

	logger.Info(ctx, "Redis client initialized with advanced caching", map[string]interface{}{
		"pool_size":       opt.PoolSize,
		"min_idle_conns":  opt.MinIdleConns,
		"max_memory":      cacheConfig.MaxMemory,
		"eviction_policy": cacheConfig.EvictionPolicy,
		"metrics_enabled": cacheConfig.EnableMetrics,
	})

	return redisClient, nil
}

// configureRedis applies optimal Redis configuration
func (r *RedisClient) configureRedis(ctx context.Context) error {
	configs := map[string]string{
		"maxmemory":        r.cacheConfig.MaxMemory,
		"maxmemory-policy": r.cacheConfig.EvictionPolicy,
		"timeout":          "300",
		"tcp-keepalive":    "60",
		"tcp-nodelay":      "yes",
		"save":             "900 1 300 10 60 10000", // Optimized save intervals
	}

	for key, value := range configs {
		if err := r.ConfigSet(ctx, key, value).Err(); err != nil {
			r.logger.Warn(ctx, "Failed to set Redis config", map[string]interface{}{
				"key":   key,
				"value": value,
				"error": err.Error(),
			})
		}
	}

	return nil
}

// startMetricsCollection starts background metrics collection
func (r *RedisClient) startMetricsCollection() {
	if !r.cacheConfig.EnableMetrics {
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		r.collectMetrics()
	}
}

// collectMetrics collects Redis performance metrics
func (r *RedisClient) collectMetrics() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	info := r.Info(ctx, "stats", "memory")
	if info.Err() != nil {
		r.logger.Error(ctx, "Failed to collect Redis metrics", info.Err())
		return
	}

	// Parse and log key metrics
	r.logger.Debug(ctx, "Redis metrics collected", map[string]interface{}{
		"info": info.Val(),
	})
}

// updateMetrics updates Redis operation metrics
func (r *RedisClient) updateMetrics(operation string, duration time.Duration, success bool) {
	if !r.cacheConfig.EnableMetrics {
		return
	}

	r.metrics.mu.Lock()
	defer r.metrics.mu.Unlock()

	// Update average latency using exponential moving average
	if r.metrics.AvgLatency == 0 {
		r.metrics.AvgLatency = duration
	} else {
		alpha := 0.1
		r.metrics.AvgLatency = time.Duration(float64(r.metrics.AvgLatency)*(1-alpha) + float64(duration)*alpha)
	}
}

// Close closes the Redis connection and cleanup resources
func (r *RedisClient) Close() error {
	r.logger.Info(context.Background(), "Closing Redis connection")
	return r.Client.Close()
}

// Health checks the Redis health with detailed diagnostics
func (r *RedisClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()

	if err := r.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis health check failed: %w", err)
	}

	latency := time.Since(start)

	// Check if latency is acceptable
	if latency > 100*time.Millisecond {
		r.logger.Warn(ctx, "High Redis latency detected", map[string]interface{}{
			"latency": latency,
		})
	}

	return nil
}

// Exists checks if a key exists with metrics
func (r *RedisClient) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()

	result := r.Client.Exists(ctx, key)
	r.updateMetrics("exists", time.Since(start), result.Err() == nil)

	if err := result.Err(); err != nil {
		return false, err
	}
	return result.Val() > 0, nil
}

// GetMetrics returns current Redis metrics
func (r *RedisClient) GetMetrics() map[string]interface{} {
	r.metrics.mu.RLock()
	defer r.metrics.mu.RUnlock()

	hitRate := float64(0)
	totalRequests := r.metrics.HitCount + r.metrics.MissCount
	if totalRequests > 0 {
		hitRate = float64(r.metrics.HitCount) / float64(totalRequests) * 100
	}

	return map[string]interface{}{
		"hit_count":      r.metrics.HitCount,
		"miss_count":     r.metrics.MissCount,
		"set_count":      r.metrics.SetCount,
		"delete_count":   r.metrics.DeleteCount,
		"eviction_count": r.metrics.EvictionCount,
		"avg_latency":    r.metrics.AvgLatency,
		"hit_rate":       hitRate,
		"total_requests": totalRequests,
	}
}

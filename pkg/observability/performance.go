package observability

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// PerformanceMonitor tracks system and pipeline-level performance metrics.
type PerformanceMonitor struct {
	logger   *Logger
	metrics  *PerformanceMetrics
	config   *PerformanceConfig
	stopChan chan struct{}
}

// PerformanceMetrics contains performance data for the running process.
type PerformanceMetrics struct {
	CPUUsage       float64
	MemoryUsage    int64
	GoroutineCount int
	GCStats        debug.GCStats

	OperationCount int64
	OperationTime  time.Duration
	ErrorRate      float64
	ThroughputOPS  float64

	DBConnections int64
	DBQueryTime   time.Duration
	DBSlowQueries int64

	CacheHitRate   float64
	CacheSize      int64
	CacheEvictions int64

	CustomMetrics map[string]interface{}

	LastUpdated time.Time
	mu          sync.RWMutex
}

// PerformanceConfig contains monitoring configuration.
type PerformanceConfig struct {
	CollectionInterval time.Duration
	AlertThresholds    *AlertThresholds
}

// AlertThresholds defines performance alert thresholds.
type AlertThresholds struct {
	CPUUsageThreshold    float64
	MemoryUsageThreshold int64
	OperationTimeThresh  time.Duration
	ErrorRateThreshold   float64
	GoroutineThreshold   int
}

// OperationMetrics tracks a single unit of work (a sentiment analysis call,
// a dissonance scoring, a per-user overnight build).
type OperationMetrics struct {
	Name       string
	Duration   time.Duration
	Succeeded  bool
	StartedAt  time.Time
}

// NewPerformanceMonitor creates a new performance monitor and starts its
// background collection loop.
func NewPerformanceMonitor(logger *Logger) *PerformanceMonitor {
	config := &PerformanceConfig{
		CollectionInterval: 30 * time.Second,
		AlertThresholds: &AlertThresholds{
			CPUUsageThreshold:    80.0,
			MemoryUsageThreshold: 1024 * 1024 * 1024,
			OperationTimeThresh:  2 * time.Second,
			ErrorRateThreshold:   5.0,
			GoroutineThreshold:   10000,
		},
	}

	pm := &PerformanceMonitor{
		logger:   logger,
		metrics:  &PerformanceMetrics{CustomMetrics: make(map[string]interface{})},
		config:   config,
		stopChan: make(chan struct{}),
	}

	go pm.startMonitoring()

	return pm
}

func (pm *PerformanceMonitor) startMonitoring() {
	ticker := time.NewTicker(pm.config.CollectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pm.collectMetrics()
		case <-pm.stopChan:
			return
		}
	}
}

func (pm *PerformanceMonitor) collectMetrics() {
	ctx := context.Background()

	pm.metrics.mu.Lock()
	defer pm.metrics.mu.Unlock()

	pm.collectSystemMetrics()
	pm.metrics.LastUpdated = time.Now()
	pm.checkAlertThresholds(ctx)

	pm.logger.Debug(ctx, "performance metrics collected", map[string]interface{}{
		"cpu_usage":       pm.metrics.CPUUsage,
		"memory_usage":    pm.metrics.MemoryUsage,
		"goroutine_count": pm.metrics.GoroutineCount,
		"operation_time":  pm.metrics.OperationTime,
		"error_rate":      pm.metrics.ErrorRate,
		"cache_hit_rate":  pm.metrics.CacheHitRate,
	})
}

func (pm *PerformanceMonitor) collectSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	pm.metrics.MemoryUsage = int64(memStats.Alloc)
	pm.metrics.GoroutineCount = runtime.NumGoroutine()
	debug.ReadGCStats(&pm.metrics.GCStats)
	pm.metrics.CPUUsage = pm.estimateCPUUsage()
}

// estimateCPUUsage is a rough proxy based on goroutine count; a real
// deployment wires in a proper /proc-based or cgroup-based sampler instead.
func (pm *PerformanceMonitor) estimateCPUUsage() float64 {
	goroutines := float64(pm.metrics.GoroutineCount)
	if goroutines > 1000 {
		return 50.0 + (goroutines-1000)/100
	}
	return goroutines / 20
}

// RecordOperation records the outcome of one unit of pipeline work.
func (pm *PerformanceMonitor) RecordOperation(op *OperationMetrics) {
	pm.metrics.mu.Lock()
	defer pm.metrics.mu.Unlock()

	pm.metrics.OperationCount++

	if pm.metrics.OperationTime == 0 {
		pm.metrics.OperationTime = op.Duration
	} else {
		const alpha = 0.1
		pm.metrics.OperationTime = time.Duration(
			float64(pm.metrics.OperationTime)*(1-alpha) + float64(op.Duration)*alpha,
		)
	}

	const alpha = 0.1
	if !op.Succeeded {
		if pm.metrics.ErrorRate == 0 {
			pm.metrics.ErrorRate = 1.0
		} else {
			pm.metrics.ErrorRate = pm.metrics.ErrorRate*(1-alpha) + alpha
		}
	} else {
		pm.metrics.ErrorRate = pm.metrics.ErrorRate * (1 - alpha)
	}

	pm.updateThroughput()
}

func (pm *PerformanceMonitor) updateThroughput() {
	elapsed := time.Since(pm.metrics.LastUpdated)
	if elapsed > 0 {
		pm.metrics.ThroughputOPS = float64(pm.metrics.OperationCount) / elapsed.Seconds()
	}
}

// RecordDatabaseMetrics records storage performance metrics.
func (pm *PerformanceMonitor) RecordDatabaseMetrics(connections int64, queryTime time.Duration, slowQueries int64) {
	pm.metrics.mu.Lock()
	defer pm.metrics.mu.Unlock()

	pm.metrics.DBConnections = connections

	if pm.metrics.DBQueryTime == 0 {
		pm.metrics.DBQueryTime = queryTime
	} else {
		const alpha = 0.1
		pm.metrics.DBQueryTime = time.Duration(
			float64(pm.metrics.DBQueryTime)*(1-alpha) + float64(queryTime)*alpha,
		)
	}

	pm.metrics.DBSlowQueries = slowQueries
}

// RecordCacheMetrics records sentiment-cache performance metrics.
func (pm *PerformanceMonitor) RecordCacheMetrics(hitRate float64, size int64, evictions int64) {
	pm.metrics.mu.Lock()
	defer pm.metrics.mu.Unlock()

	pm.metrics.CacheHitRate = hitRate
	pm.metrics.CacheSize = size
	pm.metrics.CacheEvictions = evictions
}

// SetCustomMetric sets a custom performance metric.
func (pm *PerformanceMonitor) SetCustomMetric(key string, value interface{}) {
	pm.metrics.mu.Lock()
	defer pm.metrics.mu.Unlock()
	pm.metrics.CustomMetrics[key] = value
}

func (pm *PerformanceMonitor) checkAlertThresholds(ctx context.Context) {
	thresholds := pm.config.AlertThresholds

	if pm.metrics.CPUUsage > thresholds.CPUUsageThreshold {
		pm.logger.Warn(ctx, "high CPU usage detected", map[string]interface{}{
			"current_usage": pm.metrics.CPUUsage,
			"threshold":     thresholds.CPUUsageThreshold,
		})
	}

	if pm.metrics.MemoryUsage > thresholds.MemoryUsageThreshold {
		pm.logger.Warn(ctx, "high memory usage detected", map[string]interface{}{
			"current_usage": pm.metrics.MemoryUsage,
			"threshold":     thresholds.MemoryUsageThreshold,
		})
	}

	if pm.metrics.OperationTime > thresholds.OperationTimeThresh {
		pm.logger.Warn(ctx, "high operation latency detected", map[string]interface{}{
			"current_time": pm.metrics.OperationTime,
			"threshold":    thresholds.OperationTimeThresh,
		})
	}

	if pm.metrics.ErrorRate > thresholds.ErrorRateThreshold {
		pm.logger.Warn(ctx, "high error rate detected", map[string]interface{}{
			"current_rate": pm.metrics.ErrorRate,
			"threshold":    thresholds.ErrorRateThreshold,
		})
	}

	if pm.metrics.GoroutineCount > thresholds.GoroutineThreshold {
		pm.logger.Warn(ctx, "high goroutine count detected", map[string]interface{}{
			"current_count": pm.metrics.GoroutineCount,
			"threshold":     thresholds.GoroutineThreshold,
		})
	}
}

// GetMetrics returns a snapshot of current performance metrics.
func (pm *PerformanceMonitor) GetMetrics() *PerformanceMetrics {
	pm.metrics.mu.RLock()
	defer pm.metrics.mu.RUnlock()

	customMetrics := make(map[string]interface{}, len(pm.metrics.CustomMetrics))
	for k, v := range pm.metrics.CustomMetrics {
		customMetrics[k] = v
	}

	return &PerformanceMetrics{
		CPUUsage:       pm.metrics.CPUUsage,
		MemoryUsage:    pm.metrics.MemoryUsage,
		GoroutineCount: pm.metrics.GoroutineCount,
		GCStats:        pm.metrics.GCStats,
		OperationCount: pm.metrics.OperationCount,
		OperationTime:  pm.metrics.OperationTime,
		ErrorRate:      pm.metrics.ErrorRate,
		ThroughputOPS:  pm.metrics.ThroughputOPS,
		CustomMetrics:  customMetrics,
		LastUpdated:    pm.metrics.LastUpdated,
	}
}

// Stop stops the performance monitoring loop.
func (pm *PerformanceMonitor) Stop() {
	close(pm.stopChan)
}

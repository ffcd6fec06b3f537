package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics and Prometheus integration
// for the analytical core.
type MetricsProvider struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	registry      *prometheus.Registry

	sentimentCacheHits   metric.Int64Counter
	sentimentCacheMisses metric.Int64Counter
	sentimentDuration    metric.Float64Histogram
	dissonanceScored     metric.Int64Counter
	dissonanceGap        metric.Float64Histogram
	baselineDeviations   metric.Int64Counter
	baselineScore        metric.Float64Histogram
	culturalFindings     metric.Int64Counter
	culturalCritical     metric.Int64Counter
	overnightQueueDepth  metric.Int64UpDownCounter
	overnightBuildTotal  metric.Int64Counter
	overnightBuildDur    metric.Float64Histogram
}

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string
	Namespace      string
	Port           int
	Enabled        bool
}

// NewMetricsProvider creates a new metrics provider.
func NewMetricsProvider(cfg MetricsConfig) (*MetricsProvider, error) {
	if !cfg.Enabled {
		return &MetricsProvider{}, nil
	}

	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithNamespace(cfg.Namespace),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	otel.SetMeterProvider(meterProvider)

	meter := meterProvider.Meter(cfg.ServiceName)

	mp := &MetricsProvider{
		meterProvider: meterProvider,
		meter:         meter,
		registry:      registry,
	}

	if err := mp.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return mp, nil
}

func (mp *MetricsProvider) initializeMetrics() error {
	var err error

	mp.sentimentCacheHits, err = mp.meter.Int64Counter(
		"sentiment_cache_hits_total",
		metric.WithDescription("Total sentiment cache hits"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sentiment_cache_hits_total counter: %w", err)
	}

	mp.sentimentCacheMisses, err = mp.meter.Int64Counter(
		"sentiment_cache_misses_total",
		metric.WithDescription("Total sentiment cache misses"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sentiment_cache_misses_total counter: %w", err)
	}

	mp.sentimentDuration, err = mp.meter.Float64Histogram(
		"sentiment_analyze_duration_seconds",
		metric.WithDescription("SentimentAnalyzer.Analyze duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1),
	)
	if err != nil {
		return fmt.Errorf("failed to create sentiment_analyze_duration histogram: %w", err)
	}

	mp.dissonanceScored, err = mp.meter.Int64Counter(
		"dissonance_records_total",
		metric.WithDescription("Total DissonanceRecords produced, by risk level"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create dissonance_records_total counter: %w", err)
	}

	mp.dissonanceGap, err = mp.meter.Float64Histogram(
		"dissonance_normalized_gap",
		metric.WithDescription("Distribution of normalized dissonance gap"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create dissonance_normalized_gap histogram: %w", err)
	}

	mp.baselineDeviations, err = mp.meter.Int64Counter(
		"baseline_deviations_total",
		metric.WithDescription("Total deviation events detected, by severity"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create baseline_deviations_total counter: %w", err)
	}

	mp.baselineScore, err = mp.meter.Float64Histogram(
		"baseline_combined_deviation_score",
		metric.WithDescription("Distribution of combined deviation scores"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(0, 0.2, 0.4, 0.5, 0.65, 0.8, 1.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create baseline_combined_deviation_score histogram: %w", err)
	}

	mp.culturalFindings, err = mp.meter.Int64Counter(
		"cultural_findings_total",
		metric.WithDescription("Total deflection findings emitted, by severity"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create cultural_findings_total counter: %w", err)
	}

	mp.culturalCritical, err = mp.meter.Int64Counter(
		"cultural_critical_findings_total",
		metric.WithDescription("Total critical-severity findings (safety critical)"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create cultural_critical_findings_total counter: %w", err)
	}

	mp.overnightQueueDepth, err = mp.meter.Int64UpDownCounter(
		"overnight_build_queue_depth",
		metric.WithDescription("Users currently queued or in-flight for an overnight build"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create overnight_build_queue_depth gauge: %w", err)
	}

	mp.overnightBuildTotal, err = mp.meter.Int64Counter(
		"overnight_builds_total",
		metric.WithDescription("Total per-user overnight builds, by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create overnight_builds_total counter: %w", err)
	}

	mp.overnightBuildDur, err = mp.meter.Float64Histogram(
		"overnight_build_duration_seconds",
		metric.WithDescription("Per-user overnight build duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30),
	)
	if err != nil {
		return fmt.Errorf("failed to create overnight_build_duration histogram: %w", err)
	}

	return nil
}

// RecordSentimentCache records a cache hit or miss for SentimentAnalyzer.
func (mp *MetricsProvider) RecordSentimentCache(ctx context.Context, hit bool) {
	if mp.sentimentCacheHits == nil {
		return
	}
	if hit {
		mp.sentimentCacheHits.Add(ctx, 1)
	} else {
		mp.sentimentCacheMisses.Add(ctx, 1)
	}
}

// RecordSentimentDuration records how long a SentimentAnalyzer.Analyze call took.
func (mp *MetricsProvider) RecordSentimentDuration(ctx context.Context, duration time.Duration) {
	if mp.sentimentDuration == nil {
		return
	}
	mp.sentimentDuration.Record(ctx, duration.Seconds())
}

// RecordDissonance records a scored DissonanceRecord.
func (mp *MetricsProvider) RecordDissonance(ctx context.Context, riskLevel string, normalizedGap float64) {
	if mp.dissonanceScored == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("risk_level", riskLevel)}
	mp.dissonanceScored.Add(ctx, 1, metric.WithAttributes(attrs...))
	mp.dissonanceGap.Record(ctx, normalizedGap)
}

// RecordBaselineDeviation records a BaselineTracker deviation check outcome.
func (mp *MetricsProvider) RecordBaselineDeviation(ctx context.Context, severity string, combinedScore float64, detected bool) {
	if mp.baselineDeviations == nil {
		return
	}
	if detected {
		attrs := []attribute.KeyValue{attribute.String("severity", severity)}
		mp.baselineDeviations.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	mp.baselineScore.Record(ctx, combinedScore)
}

// RecordCulturalFinding records a deflection finding and its safety criticality.
func (mp *MetricsProvider) RecordCulturalFinding(ctx context.Context, severity string, critical bool) {
	if mp.culturalFindings == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("severity", severity)}
	mp.culturalFindings.Add(ctx, 1, metric.WithAttributes(attrs...))
	if critical {
		mp.culturalCritical.Add(ctx, 1)
	}
}

// IncrementOvernightQueue increments the in-flight overnight build gauge.
func (mp *MetricsProvider) IncrementOvernightQueue(ctx context.Context) {
	if mp.overnightQueueDepth == nil {
		return
	}
	mp.overnightQueueDepth.Add(ctx, 1)
}

// DecrementOvernightQueue decrements the in-flight overnight build gauge.
func (mp *MetricsProvider) DecrementOvernightQueue(ctx context.Context) {
	if mp.overnightQueueDepth == nil {
		return
	}
	mp.overnightQueueDepth.Add(ctx, -1)
}

// RecordOvernightBuild records the outcome and duration of a per-user overnight build.
func (mp *MetricsProvider) RecordOvernightBuild(ctx context.Context, outcome string, duration time.Duration) {
	if mp.overnightBuildTotal == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("outcome", outcome)}
	mp.overnightBuildTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	mp.overnightBuildDur.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// StartMetricsServer starts the Prometheus metrics HTTP server.
func (mp *MetricsProvider) StartMetricsServer(port int) error {
	if mp.registry == nil {
		return fmt.Errorf("metrics not enabled")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(mp.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	return server.ListenAndServe()
}

// Shutdown gracefully shuts down the metrics provider.
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	if mp.meterProvider == nil {
		return nil
	}
	return mp.meterProvider.Shutdown(ctx)
}

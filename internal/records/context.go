package records

import (
	"github.com/leon-madara/resona-core/internal/config"
	"github.com/leon-madara/resona-core/pkg/observability"
)

// AnalyzerContext bundles the process-wide dependencies (config, logger,
// metrics, tracer, stores) a component needs. No component constructor
// takes it: each takes its dependencies as separate arguments, and
// cmd/session-processor and cmd/overnight-scheduler build those
// dependencies directly rather than through an AnalyzerContext.
type AnalyzerContext struct {
	Config  *config.Config
	Logger  *observability.Logger
	Metrics *observability.MetricsProvider
	Tracer  *observability.TracingProvider

	Store             Store
	FingerprintStore  FingerprintStore
	BaselineStore     BaselineStore
	UIConfigStore     UIConfigStore
}

// NewAnalyzerContext assembles an AnalyzerContext from already-constructed
// dependencies. Callers are expected to have opened storage connections and
// started the tracing/metrics providers before calling this.
func NewAnalyzerContext(
	cfg *config.Config,
	logger *observability.Logger,
	metrics *observability.MetricsProvider,
	tracer *observability.TracingProvider,
	store Store,
	fingerprints FingerprintStore,
	baselines BaselineStore,
	uiconfigs UIConfigStore,
) *AnalyzerContext {
	return &AnalyzerContext{
		Config:           cfg,
		Logger:           logger,
		Metrics:          metrics,
		Tracer:           tracer,
		Store:            store,
		FingerprintStore: fingerprints,
		BaselineStore:    baselines,
		UIConfigStore:    uiconfigs,
	}
}

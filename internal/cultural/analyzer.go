// Package cultural implements CulturalAnalyzer: deflection-pattern
// detection, code-switching analysis, voice-text contradiction detection,
// and risk aggregation for Swahili/English mixed speech.
package cultural

import (
	"context"
	"time"

	"github.com/leon-madara/resona-core/internal/config"
	"github.com/leon-madara/resona-core/internal/records"
	"github.com/leon-madara/resona-core/pkg/observability"
)

// VoiceCue is the optional emotion signal analyze() can fold into
// contradiction detection.
type VoiceCue struct {
	Label      records.VoiceEmotionLabel
	Confidence float64
}

// Analyzer is CulturalAnalyzer.
type Analyzer struct {
	cfg     config.CulturalConfig
	kb      *KBLoader
	store   records.Store
	logger  *observability.Logger
	metrics *observability.MetricsProvider
}

// NewAnalyzer constructs an Analyzer around an already-loaded KBLoader; it
// does not load a knowledge base itself. kb may be
// nil, in which case retrieve() always returns no contexts (pattern-only
// detection), matching §4.4's KB-load-failure fallback.
func NewAnalyzer(cfg config.CulturalConfig, kb *KBLoader, store records.Store, logger *observability.Logger, metrics *observability.MetricsProvider) *Analyzer {
	return &Analyzer{cfg: cfg, kb: kb, store: store, logger: logger, metrics: metrics}
}

// Retrieve performs keyword retrieval from the cultural knowledge base for
// the given query/language. Returns nil if the KB is unavailable.
func (a *Analyzer) Retrieve(query string, language records.Language) []KBEntry {
	if a.kb == nil {
		return nil
	}
	return a.kb.Current().retrieve(query, language)
}

// Analyze runs deflection detection, code-switching analysis, contradiction
// detection, and risk aggregation over one utterance, then persists and
// returns the resulting CulturalAnalysis. It never returns an error: a
// missing KB or absent voice cue degrades gracefully to pattern-only,
// contradiction-free analysis rather than failing (§4.4).
func (a *Analyzer) Analyze(ctx context.Context, sessionID, userID, text string, language records.Language, voice *VoiceCue) records.CulturalAnalysis {
	findings := detectFindings(sessionID, text, language)
	switching := analyzeCodeSwitching(text)

	var emotionLabel records.VoiceEmotionLabel
	hasEmotion := voice != nil
	if hasEmotion {
		emotionLabel = voice.Label
	}
	contradictions := countContradictions(findings, emotionLabel, hasEmotion)

	overall := aggregateRisk(findings, contradictions)
	severity := highestSeverity(findings)
	action := recommendedAction(severity, contradictions > 0)
	probes := probeSuggestions(findings)

	analysis := records.CulturalAnalysis{
		SessionID:               sessionID,
		UserID:                  userID,
		Findings:                findings,
		CodeSwitching:           switching,
		VoiceTextContradictions: contradictions,
		OverallRiskLevel:        overall,
		ProbeSuggestions:        probes,
		RecommendedAction:       action,
		CreatedAt:               time.Now(),
	}

	if a.store != nil {
		if err := a.store.AppendCulturalAnalysis(ctx, analysis); err != nil && a.logger != nil {
			a.logger.Warn(ctx, "failed to record cultural analysis", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		}
	}
	if a.metrics != nil {
		for _, f := range findings {
			a.metrics.RecordCulturalFinding(ctx, string(f.Severity), f.Severity == records.SeverityCritical)
		}
	}

	return analysis
}

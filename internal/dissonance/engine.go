// Package dissonance implements DissonanceEngine: continuous scoring of the
// gap between stated sentiment and vocal affect with interpretive
// classification.
package dissonance

import (
	"context"
	"math"
	"time"

	"github.com/leon-madara/resona-core/internal/config"
	"github.com/leon-madara/resona-core/internal/records"
	"github.com/leon-madara/resona-core/internal/sentiment"
	"github.com/leon-madara/resona-core/pkg/observability"
)

// actualValenceAnchors maps a voice-emotion label to its fixed valence,
// per §4.2 step 2. Not recalibrated — see DESIGN.md's Open Question
// decisions.
var actualValenceAnchors = map[records.VoiceEmotionLabel]float64{
	records.EmotionHappy:    0.8,
	records.EmotionSurprise: 0.3,
	records.EmotionNeutral:  0.0,
	records.EmotionFear:     -0.4,
	records.EmotionSad:      -0.6,
	records.EmotionDisgust:  -0.6,
	records.EmotionAngry:    -0.7,
}

// maxExpectedGap normalizes the raw valence gap into [0,1]. Stated valence
// tops out at 0.75 (the sentiment model's positive/negative anchor) and
// acoustic valence tops out at 0.8 (happy); a stated-vs-sad concealment
// case at 0.85 voice confidence (0.75 vs -0.51) already produces a gap of
// 1.26 (1.35 at full confidence), so a
// divisor of 2 over-compresses it into the medium band. 1.5 is the largest
// single-emotion-pair gap that stays reachable at realistic confidence and
// keeps the high band meaningful without saturating every negative pairing.
const maxExpectedGap = 1.5

// SentimentProvider is the narrow slice of sentiment.Analyzer the engine
// depends on; declared here so dissonance owns its own dependency contract.
type SentimentProvider interface {
	Analyze(ctx context.Context, text string, hint sentiment.LanguageHint) sentiment.Result
}

// Engine is DissonanceEngine.
type Engine struct {
	cfg       config.DissonanceConfig
	sentiment SentimentProvider
	store     records.Store
	logger    *observability.Logger
	metrics   *observability.MetricsProvider
}

// NewEngine constructs an Engine.
func NewEngine(cfg config.DissonanceConfig, sentimentProvider SentimentProvider, store records.Store, logger *observability.Logger, metrics *observability.MetricsProvider) *Engine {
	return &Engine{
		cfg:       cfg,
		sentiment: sentimentProvider,
		store:     store,
		logger:    logger,
		metrics:   metrics,
	}
}

// Score implements `score(transcript, voice_emotion) -> DissonanceRecord`.
// It never fails: degraded sentiment or an absent voice emotion produce an
// unclear, low-risk, zero-confidence record rather than an error, per §4.2's
// failure semantics. The record is appended to the store as an observable
// side effect before being returned.
func (e *Engine) Score(ctx context.Context, transcript records.Transcript, voiceEmotion *records.VoiceEmotion) records.DissonanceRecord {
	sentimentResult := e.sentiment.Analyze(ctx, transcript.Text, sentiment.LanguageHint(transcript.DetectedLanguage))

	record := records.DissonanceRecord{
		SessionID: transcript.SessionID,
		Seq:       transcript.Seq,
		UserID:    transcript.UserID,
		CreatedAt: time.Now(),
	}

	if sentimentResult.Degraded || voiceEmotion == nil {
		record.StatedEmotion = sentimentResult.Label
		record.Interpretation = records.InterpretationUnclear
		record.RiskLevel = records.RiskLow
		record.Level = records.DissonanceLow
		record.Confidence = 0
		e.append(ctx, record)
		return record
	}

	statedValence := sentimentResult.Valence
	actualValence := actualValenceAnchors[voiceEmotion.Label] * voiceEmotion.Confidence

	gap := math.Abs(statedValence - actualValence)
	normalizedGap := math.Min(1, gap/maxExpectedGap)

	level := e.dissonanceLevel(normalizedGap)
	interpretation := classify(normalizedGap, statedValence, actualValence)
	riskLevel := riskFromLevelAndInterpretation(level, interpretation)
	confidence := math.Min(sentimentResult.Confidence, voiceEmotion.Confidence)

	record.StatedEmotion = sentimentResult.Label
	record.ActualEmotion = voiceEmotion.Label
	record.StatedValence = statedValence
	record.ActualValence = actualValence
	record.Gap = gap
	record.NormalizedGap = normalizedGap
	record.Level = level
	record.Interpretation = interpretation
	record.RiskLevel = riskLevel
	record.Confidence = confidence

	e.append(ctx, record)
	if e.metrics != nil {
		e.metrics.RecordDissonance(ctx, string(riskLevel), normalizedGap)
	}
	return record
}

func (e *Engine) dissonanceLevel(normalizedGap float64) records.DissonanceLevel {
	switch {
	case normalizedGap < e.cfg.LowThreshold:
		return records.DissonanceLow
	case normalizedGap < e.cfg.HighThreshold:
		return records.DissonanceMedium
	default:
		return records.DissonanceHigh
	}
}

// classify applies the §4.2 step-5 interpretation tie-breaks in order.
func classify(normalizedGap, stated, actual float64) records.DissonanceInterpretation {
	switch {
	case normalizedGap < 0.15:
		return records.InterpretationAuthentic
	case stated >= 0.3 && actual <= -0.3:
		return records.InterpretationDefensiveConcealment
	case stated <= -0.3 && actual >= 0.3:
		return records.InterpretationRecoveryIndicator
	case stated < 0 && actual < 0 && math.Abs(stated-actual) >= 0.4:
		return records.InterpretationIntensityMismatch
	default:
		return records.InterpretationUnclear
	}
}

func riskFromLevelAndInterpretation(level records.DissonanceLevel, interpretation records.DissonanceInterpretation) records.RiskLevel {
	switch level {
	case records.DissonanceHigh:
		if interpretation == records.InterpretationDefensiveConcealment {
			return records.RiskMediumHigh
		}
		return records.RiskMedium
	case records.DissonanceMedium:
		return records.RiskMedium
	default:
		return records.RiskLow
	}
}

func (e *Engine) append(ctx context.Context, record records.DissonanceRecord) {
	if e.store == nil {
		return
	}
	if err := e.store.AppendDissonanceRecord(ctx, record); err != nil && e.logger != nil {
		e.logger.Error(ctx, "failed to append dissonance record", err, map[string]interface{}{
			"session_id": record.SessionID,
			"seq":        record.Seq,
		})
	}
}

package dissonance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leon-madara/resona-core/internal/config"
	"github.com/leon-madara/resona-core/internal/records"
	"github.com/leon-madara/resona-core/internal/sentiment"
)

// stubSentiment returns a fixed Result regardless of input, letting tests
// pin down the transcript side of the dissonance calculation exactly.
type stubSentiment struct {
	result sentiment.Result
}

func (s stubSentiment) Analyze(ctx context.Context, text string, hint sentiment.LanguageHint) sentiment.Result {
	return s.result
}

func newEngine(result sentiment.Result) (*Engine, *records.MemoryStore) {
	store := records.NewMemoryStore()
	cfg := config.DissonanceConfig{LowThreshold: 0.3, HighThreshold: 0.7}
	return NewEngine(cfg, stubSentiment{result: result}, store, nil, nil), store
}

func TestEngine_S1_DefensiveConcealment(t *testing.T) {
	engine, _ := newEngine(sentiment.Result{
		Label: records.SentimentPositive, Valence: 0.75, Confidence: 0.9,
	})

	transcript := records.Transcript{SessionID: "s1", Seq: 1, UserID: "u1", Text: "I'm fine, everything is okay"}
	voice := &records.VoiceEmotion{Label: records.EmotionSad, Confidence: 0.85}

	record := engine.Score(context.Background(), transcript, voice)

	assert.Equal(t, records.DissonanceHigh, record.Level)
	assert.Equal(t, records.InterpretationDefensiveConcealment, record.Interpretation)
	assert.Equal(t, records.RiskMediumHigh, record.RiskLevel)
	assert.GreaterOrEqual(t, record.NormalizedGap, 0.7)
	assert.Equal(t, records.SentimentPositive, record.StatedEmotion)
	assert.Equal(t, records.EmotionSad, record.ActualEmotion)
}

func TestEngine_S2_Authentic(t *testing.T) {
	engine, _ := newEngine(sentiment.Result{
		Label: records.SentimentPositive, Valence: 0.75, Confidence: 0.9,
	})

	transcript := records.Transcript{SessionID: "s2", Seq: 1, UserID: "u1", Text: "I feel good today"}
	voice := &records.VoiceEmotion{Label: records.EmotionHappy, Confidence: 0.9}

	record := engine.Score(context.Background(), transcript, voice)

	assert.Equal(t, records.DissonanceLow, record.Level)
	assert.Equal(t, records.InterpretationAuthentic, record.Interpretation)
	assert.Equal(t, records.RiskLow, record.RiskLevel)
}

func TestEngine_DegradedSentimentProducesUnclear(t *testing.T) {
	engine, _ := newEngine(sentiment.Result{Degraded: true})

	transcript := records.Transcript{SessionID: "s3", Seq: 1, UserID: "u1", Text: "anything"}
	voice := &records.VoiceEmotion{Label: records.EmotionHappy, Confidence: 0.9}

	record := engine.Score(context.Background(), transcript, voice)

	assert.Equal(t, records.InterpretationUnclear, record.Interpretation)
	assert.Equal(t, records.RiskLow, record.RiskLevel)
	assert.Equal(t, 0.0, record.Confidence)
}

func TestEngine_AbsentVoiceEmotionProducesUnclear(t *testing.T) {
	engine, _ := newEngine(sentiment.Result{Label: records.SentimentPositive, Valence: 0.75, Confidence: 0.9})

	transcript := records.Transcript{SessionID: "s4", Seq: 1, UserID: "u1", Text: "anything"}

	record := engine.Score(context.Background(), transcript, nil)

	assert.Equal(t, records.InterpretationUnclear, record.Interpretation)
	assert.Equal(t, records.RiskLow, record.RiskLevel)
}

func TestEngine_NormalizedGapInvariants(t *testing.T) {
	engine, _ := newEngine(sentiment.Result{Label: records.SentimentNegative, Valence: -0.75, Confidence: 0.8})

	transcript := records.Transcript{SessionID: "s5", Seq: 1, UserID: "u1", Text: "anything"}
	voice := &records.VoiceEmotion{Label: records.EmotionAngry, Confidence: 0.8}

	record := engine.Score(context.Background(), transcript, voice)

	assert.GreaterOrEqual(t, record.NormalizedGap, 0.0)
	assert.LessOrEqual(t, record.NormalizedGap, 1.0)
	if record.Level == records.DissonanceHigh {
		assert.GreaterOrEqual(t, record.NormalizedGap, 0.7)
	}
	if record.Level == records.DissonanceMedium {
		assert.GreaterOrEqual(t, record.NormalizedGap, 0.3)
		assert.Less(t, record.NormalizedGap, 0.7)
	}
}

func TestEngine_AppendsToStore(t *testing.T) {
	engine, store := newEngine(sentiment.Result{Label: records.SentimentPositive, Valence: 0.75, Confidence: 0.9})
	transcript := records.Transcript{SessionID: "s6", Seq: 1, UserID: "u1", Text: "anything"}
	voice := &records.VoiceEmotion{Label: records.EmotionHappy, Confidence: 0.9}

	engine.Score(context.Background(), transcript, voice)

	got, err := store.DissonanceRecordsSince(context.Background(), "u1", time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

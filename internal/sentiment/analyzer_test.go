package sentiment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leon-madara/resona-core/internal/config"
	"github.com/leon-madara/resona-core/internal/records"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	cfg := config.SentimentConfig{CacheMaxEntries: 16}
	return NewAnalyzer(cfg, NewLexiconModel(), nil, nil, nil)
}

func TestAnalyzer_EmptyTranscript(t *testing.T) {
	a := newTestAnalyzer(t)
	result := a.Analyze(context.Background(), "", HintAuto)

	assert.Equal(t, records.SentimentNeutral, result.Label)
	assert.Equal(t, 0.0, result.Valence)
	assert.Equal(t, 0.0, result.Confidence)
	assert.False(t, result.Degraded)
}

func TestAnalyzer_DegradedWhenModelUnavailable(t *testing.T) {
	a := NewAnalyzer(config.SentimentConfig{CacheMaxEntries: 16}, nil, nil, nil, nil)
	result := a.Analyze(context.Background(), "I feel good today", HintEnglish)

	assert.True(t, result.Degraded)
	assert.Equal(t, records.SentimentNeutral, result.Label)
	assert.Equal(t, 0.0, result.Valence)
}

func TestAnalyzer_PositiveText(t *testing.T) {
	a := newTestAnalyzer(t)
	result := a.Analyze(context.Background(), "I feel good today", HintEnglish)

	require.Equal(t, records.SentimentPositive, result.Label)
	assert.Equal(t, 0.75, result.Valence)
	assert.Greater(t, result.Confidence, 0.5)
}

func TestAnalyzer_NegativeText(t *testing.T) {
	a := newTestAnalyzer(t)
	result := a.Analyze(context.Background(), "I'm so sad and exhausted", HintEnglish)

	require.Equal(t, records.SentimentNegative, result.Label)
	assert.Equal(t, -0.75, result.Valence)
}

func TestAnalyzer_CacheHitReturnsIdenticalResult(t *testing.T) {
	a := newTestAnalyzer(t)
	ctx := context.Background()

	first := a.Analyze(ctx, "I feel good today", HintEnglish)
	second := a.Analyze(ctx, "I feel good today", HintEnglish)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, a.cache.len())
}

func TestAnalyzer_CacheIsBoundedByMaxEntries(t *testing.T) {
	cfg := config.SentimentConfig{CacheMaxEntries: 2}
	a := NewAnalyzer(cfg, NewLexiconModel(), nil, nil, nil)
	ctx := context.Background()

	a.Analyze(ctx, "one", HintEnglish)
	a.Analyze(ctx, "two", HintEnglish)
	a.Analyze(ctx, "three", HintEnglish)

	assert.LessOrEqual(t, a.cache.len(), 2)
}

func TestNormalize_CollapsesPunctuationAndWhitespace(t *testing.T) {
	assert.Equal(t, "i feel good today", normalize("I feel  good, today!!"))
	assert.Equal(t, "", normalize("   "))
}

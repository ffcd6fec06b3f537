package cultural

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leon-madara/resona-core/internal/config"
	"github.com/leon-madara/resona-core/internal/records"
)

func newTestAnalyzer(t *testing.T) (*Analyzer, *records.MemoryStore) {
	t.Helper()
	store := records.NewMemoryStore()
	return NewAnalyzer(config.CulturalConfig{}, nil, store, nil, nil), store
}

func TestAnalyzer_S3_CulturalDeflection(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t)
	ctx := context.Background()

	analysis := analyzer.Analyze(ctx, "s1", "u1", "Nimechoka sana, lakini sawa tu", records.LanguageSwahili,
		&VoiceCue{Label: records.EmotionSad, Confidence: 0.8})

	require.Len(t, analysis.Findings, 2)

	types := map[string]bool{}
	for _, f := range analysis.Findings {
		types[f.Type] = true
		assert.Equal(t, records.SeverityMedium, f.Severity)
	}
	assert.True(t, types["emotional_exhaustion"])
	assert.True(t, types["minimization"])

	assert.Equal(t, 1, analysis.VoiceTextContradictions)
	assert.Equal(t, records.RiskMedium, analysis.OverallRiskLevel)
	assert.GreaterOrEqual(t, len(analysis.ProbeSuggestions), len(analysis.Findings))
}

func TestAnalyzer_S4_Crisis(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t)
	ctx := context.Background()

	analysis := analyzer.Analyze(ctx, "s2", "u2", "Nataka kufa, sina sababu ya kuishi", records.LanguageSwahili, nil)

	require.Len(t, analysis.Findings, 2)
	for _, f := range analysis.Findings {
		assert.Equal(t, records.SeverityCritical, f.Severity)
	}
	assert.Equal(t, records.RiskCritical, analysis.OverallRiskLevel)
	assert.Equal(t, "crisis_intervention", analysis.RecommendedAction)

	safetyProbes := 0
	for _, p := range analysis.ProbeSuggestions {
		if containsSafetyLanguage(p) {
			safetyProbes++
		}
	}
	assert.GreaterOrEqual(t, safetyProbes, 2)
}

func TestAnalyzer_EnglishOnlyNoPatterns(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t)
	ctx := context.Background()

	analysis := analyzer.Analyze(ctx, "s3", "u3", "I had a pretty normal day at work today", records.LanguageEnglish, nil)

	assert.Empty(t, analysis.Findings)
	assert.Equal(t, records.RiskLow, analysis.OverallRiskLevel)
}

func TestAnalyzer_AnyCriticalFindingForcesCriticalRisk(t *testing.T) {
	analyzer, _ := newTestAnalyzer(t)
	ctx := context.Background()

	analysis := analyzer.Analyze(ctx, "s4", "u4", "sawa tu, nataka kufa", records.LanguageSwahili, nil)

	hasCritical := false
	for _, f := range analysis.Findings {
		if f.Severity == records.SeverityCritical {
			hasCritical = true
		}
	}
	require.True(t, hasCritical)
	assert.Equal(t, records.RiskCritical, analysis.OverallRiskLevel)
}

func TestAnalyzer_AppendsToStore(t *testing.T) {
	analyzer, store := newTestAnalyzer(t)
	ctx := context.Background()

	analyzer.Analyze(ctx, "s5", "u5", "sawa tu", records.LanguageSwahili, nil)

	analyses, err := store.CulturalAnalysesSince(ctx, "u5", records.Transcript{}.CreatedAt)
	require.NoError(t, err)
	require.Len(t, analyses, 1)
	assert.Equal(t, "s5", analyses[0].SessionID)
}

func TestCodeSwitching_IntensityBands(t *testing.T) {
	assert.Equal(t, records.IntensityNone, intensityBand(0))
	assert.Equal(t, records.IntensityNone, intensityBand(1))
	assert.Equal(t, records.IntensityLow, intensityBand(2))
	assert.Equal(t, records.IntensityLow, intensityBand(3))
	assert.Equal(t, records.IntensityMedium, intensityBand(4))
	assert.Equal(t, records.IntensityMedium, intensityBand(6))
	assert.Equal(t, records.IntensityHigh, intensityBand(7))
}

func TestAggregateRisk_Thresholds(t *testing.T) {
	low := []records.DeflectionFinding{{Severity: records.SeverityLow}}
	assert.Equal(t, records.RiskLow, aggregateRisk(low, 0))

	medium := []records.DeflectionFinding{{Severity: records.SeverityMedium}, {Severity: records.SeverityMedium}}
	assert.Equal(t, records.RiskMedium, aggregateRisk(medium, 0))

	high := []records.DeflectionFinding{{Severity: records.SeverityHigh}, {Severity: records.SeverityHigh}}
	assert.Equal(t, records.RiskHigh, aggregateRisk(high, 0))

	critical := []records.DeflectionFinding{{Severity: records.SeverityCritical}}
	assert.Equal(t, records.RiskCritical, aggregateRisk(critical, 0))
}

func containsSafetyLanguage(s string) bool {
	return len(s) > 0 && (contains(s, "safe") || contains(s, "serious"))
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

package baseline

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leon-madara/resona-core/internal/config"
	"github.com/leon-madara/resona-core/internal/records"
)

func newTestTracker() (*Tracker, *records.MemoryStore) {
	store := records.NewMemoryStore()
	cfg := config.BaselineConfig{WindowDays: 30, MinSamples: 15, DecayTau: 30}
	return NewTracker(cfg, store, store, store, nil, nil), store
}

func TestTracker_FirstSampleCreatesFingerprintWithScaledConfidence(t *testing.T) {
	tracker, _ := newTestTracker()
	ctx := context.Background()

	snap, err := tracker.Update(ctx, "u1", &records.AcousticFeatures{PitchMean: 180, EnergyMean: 0.5}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, snap.Fingerprint.SampleCount)
	assert.InDelta(t, 1.0/15.0, snap.Fingerprint.Confidence, 1e-9)
	assert.False(t, snap.DeviationDetected)
}

func TestTracker_S5_BaselineDeviation(t *testing.T) {
	tracker, _ := newTestTracker()
	ctx := context.Background()

	// 30 samples with pitch_mean oscillating tightly around 180.
	for i := 0; i < 30; i++ {
		pitch := 180.0
		if i%2 == 0 {
			pitch = 170.0
		} else {
			pitch = 190.0
		}
		_, err := tracker.Update(ctx, "u2", &records.AcousticFeatures{PitchMean: pitch, EnergyMean: 0.5}, nil)
		require.NoError(t, err)
	}

	snap, err := tracker.Update(ctx, "u2", &records.AcousticFeatures{PitchMean: 230, EnergyMean: 0.5}, nil)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, snap.DeviationScore, 0.5)
	assert.True(t, snap.DeviationDetected)
	assert.Contains(t, []records.DeviationSeverity{records.DeviationSeverityMedium, records.DeviationSeverityHigh}, snap.Severity)
}

func TestTracker_EmotionDistributionSumsToOne(t *testing.T) {
	tracker, _ := newTestTracker()
	ctx := context.Background()

	emotions := []records.VoiceEmotionLabel{records.EmotionHappy, records.EmotionSad, records.EmotionHappy, records.EmotionNeutral}
	var snap Snapshot
	var err error
	for _, e := range emotions {
		snap, err = tracker.Update(ctx, "u3", nil, &EmotionSample{Label: e, Confidence: 0.8})
		require.NoError(t, err)
	}

	var sum float64
	for _, v := range snap.Baseline.Distribution {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestTracker_WelfordMeanMatchesDirectAverage(t *testing.T) {
	tracker, _ := newTestTracker()
	ctx := context.Background()

	samples := []float64{100, 110, 90, 105, 95}
	var snap Snapshot
	var err error
	for _, s := range samples {
		snap, err = tracker.Update(ctx, "u4", &records.AcousticFeatures{PitchMean: s}, nil)
		require.NoError(t, err)
	}

	var sum float64
	for _, s := range samples {
		sum += s
	}
	expectedMean := sum / float64(len(samples))

	assert.InDelta(t, expectedMean, snap.Fingerprint.PitchMean.Mean, 1e-9)
}

func TestTracker_CheckDeviationDoesNotMutateState(t *testing.T) {
	tracker, store := newTestTracker()
	ctx := context.Background()

	_, err := tracker.Update(ctx, "u5", &records.AcousticFeatures{PitchMean: 180}, nil)
	require.NoError(t, err)

	before, _, err := store.GetFingerprint(ctx, "u5")
	require.NoError(t, err)

	_, err = tracker.CheckDeviation(ctx, "u5", &records.AcousticFeatures{PitchMean: 300}, nil)
	require.NoError(t, err)

	after, _, err := store.GetFingerprint(ctx, "u5")
	require.NoError(t, err)

	assert.Equal(t, before.SampleCount, after.SampleCount)
	assert.Equal(t, before.PitchMean.Mean, after.PitchMean.Mean)
}

func TestFeatureZScore_ClampsAtThree(t *testing.T) {
	z := featureZScore(1000, 0, 1)
	assert.Equal(t, 3.0, z)
}

func TestEmotionDeviation_IdenticalDistributionIsZero(t *testing.T) {
	dist := map[records.VoiceEmotionLabel]float64{records.EmotionHappy: 1.0}
	score := emotionDeviation(dist, records.EmotionHappy)
	assert.InDelta(t, 0.0, score, 1e-9)
}

func TestEmotionDeviation_DisjointDistributionIsOne(t *testing.T) {
	dist := map[records.VoiceEmotionLabel]float64{records.EmotionHappy: 1.0}
	score := emotionDeviation(dist, records.EmotionSad)
	assert.InDelta(t, 1.0, score, 1e-6)
}

func TestVoiceDeviation_BoundedUnitInterval(t *testing.T) {
	fp := records.VoiceFingerprint{}
	fp.PitchMean.Update(180)
	fp.PitchMean.Update(182)
	fp.PitchMean.Update(178)

	score, _ := voiceDeviation(fp, records.AcousticFeatures{PitchMean: 5000})
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
	assert.False(t, math.IsNaN(score))
}

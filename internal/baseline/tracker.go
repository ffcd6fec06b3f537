// Package baseline implements BaselineTracker: a rolling voice fingerprint
// and emotion-distribution baseline per user, with deviation scoring robust
// to sparse samples.
package baseline

import (
	"context"
	"math"
	"time"

	"github.com/leon-madara/resona-core/internal/config"
	"github.com/leon-madara/resona-core/internal/records"
	"github.com/leon-madara/resona-core/pkg/observability"
)

// EmotionSample is the emotion half of an update/check-deviation call.
type EmotionSample struct {
	Label      records.VoiceEmotionLabel
	Confidence float64
}

// Snapshot is what Update, CheckDeviation and GetBaseline all return: the
// current fingerprint and baseline alongside the deviation outcome for the
// sample that produced it (zero-valued for GetBaseline, which reports no
// new sample).
type Snapshot struct {
	Fingerprint       records.VoiceFingerprint
	Baseline          records.EmotionBaseline
	DeviationScore    float64
	DeviationDetected bool
	Severity          records.DeviationSeverity
	RecentDeviations  []records.DeviationRecord
}

// Tracker is BaselineTracker.
type Tracker struct {
	cfg              config.BaselineConfig
	fingerprintStore records.FingerprintStore
	baselineStore    records.BaselineStore
	store            records.Store
	locks            *keyedMutex
	logger           *observability.Logger
	metrics          *observability.MetricsProvider
}

// NewTracker constructs a Tracker.
func NewTracker(cfg config.BaselineConfig, fingerprints records.FingerprintStore, baselines records.BaselineStore, store records.Store, logger *observability.Logger, metrics *observability.MetricsProvider) *Tracker {
	return &Tracker{
		cfg:              cfg,
		fingerprintStore: fingerprints,
		baselineStore:    baselines,
		store:            store,
		locks:            newKeyedMutex(),
		logger:           logger,
		metrics:          metrics,
	}
}

// Update incorporates a new sample and persists the resulting fingerprint
// and baseline. Per-user updates are serialized via a keyed lock so Welford
// accumulation is never interleaved for the same user (§4.3's concurrency
// invariant); distinct users proceed fully in parallel.
func (t *Tracker) Update(ctx context.Context, userID string, voiceFeatures *records.AcousticFeatures, emotion *EmotionSample) (Snapshot, error) {
	unlock := t.locks.lockFor(userID)
	defer unlock()

	fp, _, err := t.fingerprintStore.GetFingerprint(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if fp.UserID == "" {
		fp.UserID = userID
	}

	eb, _, err := t.baselineStore.GetEmotionBaseline(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if eb.UserID == "" {
		eb.UserID = userID
		eb.WindowDays = t.cfg.WindowDays
		eb.RawWeights = make(map[records.VoiceEmotionLabel]float64)
	}
	if eb.RawWeights == nil {
		eb.RawWeights = make(map[records.VoiceEmotionLabel]float64)
	}

	var voiceScore *float64
	var zscores map[string]float64
	if voiceFeatures != nil {
		score, z := voiceDeviation(fp, *voiceFeatures)
		voiceScore = &score
		zscores = z
	}

	var emotionScore *float64
	if emotion != nil {
		score := emotionDeviation(eb.Distribution, emotion.Label)
		emotionScore = &score
	}

	combined := combinedDeviation(voiceScore, emotionScore)

	if voiceFeatures != nil {
		updateFingerprint(&fp, *voiceFeatures)
	}
	fp.SampleCount++
	fp.Confidence = fingerprintConfidence(fp.SampleCount, t.cfg.MinSamples)
	fp.CalculatedAt = time.Now()

	if emotion != nil {
		applyDecay(&eb, t.decayTau(), time.Now())
		eb.RawWeights[emotion.Label] += 1
		eb.SampleCount++
		eb.Distribution = normalizeWeights(eb.RawWeights)
		eb.DominantEmotion = dominantEmotion(eb.Distribution)
		eb.AverageConfidence = emaConfidence(eb.AverageConfidence, emotion.Confidence, eb.SampleCount)
		eb.UpdatedAt = time.Now()
	}

	// Below min_samples, scale deviation scores by fingerprint confidence
	// to avoid false alarms on sparse data.
	if fp.SampleCount < t.cfg.MinSamples {
		combined *= fp.Confidence
	}

	detected := combined >= 0.5
	severity := severityFor(combined)

	if err := t.fingerprintStore.PutFingerprint(ctx, fp); err != nil {
		return Snapshot{}, err
	}
	if err := t.baselineStore.PutEmotionBaseline(ctx, eb); err != nil {
		return Snapshot{}, err
	}

	if detected {
		deviation := records.DeviationRecord{
			UserID:    userID,
			Timestamp: time.Now(),
			Type:      deviationType(voiceScore, emotionScore),
			Score:     combined,
			Severity:  severity,
			Detected:  true,
			ZScores:   zscores,
		}
		if t.store != nil {
			if err := t.store.AppendDeviationRecord(ctx, deviation); err != nil && t.logger != nil {
				t.logger.Warn(ctx, "failed to record deviation", map[string]interface{}{"user_id": userID, "error": err.Error()})
			}
		}
	}

	if t.metrics != nil {
		t.metrics.RecordBaselineDeviation(ctx, string(severity), combined, detected)
	}

	return Snapshot{
		Fingerprint:       fp,
		Baseline:          eb,
		DeviationScore:    combined,
		DeviationDetected: detected,
		Severity:          severity,
	}, nil
}

// CheckDeviation computes the same deviation outcome as Update but never
// mutates stored state.
func (t *Tracker) CheckDeviation(ctx context.Context, userID string, voiceFeatures *records.AcousticFeatures, emotion *EmotionSample) (Snapshot, error) {
	fp, _, err := t.fingerprintStore.GetFingerprint(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	eb, _, err := t.baselineStore.GetEmotionBaseline(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}

	var voiceScore *float64
	if voiceFeatures != nil {
		score, _ := voiceDeviation(fp, *voiceFeatures)
		voiceScore = &score
	}

	var emotionScore *float64
	if emotion != nil {
		score := emotionDeviation(eb.Distribution, emotion.Label)
		emotionScore = &score
	}

	combined := combinedDeviation(voiceScore, emotionScore)
	// Scale by the confidence Update reaches once it has counted this sample.
	if n := fp.SampleCount + 1; n < t.cfg.MinSamples {
		combined *= fingerprintConfidence(n, t.cfg.MinSamples)
	}

	return Snapshot{
		Fingerprint:       fp,
		Baseline:          eb,
		DeviationScore:    combined,
		DeviationDetected: combined >= 0.5,
		Severity:          severityFor(combined),
	}, nil
}

// GetBaseline returns the current fingerprint, baseline, and recent
// deviation history for a user.
func (t *Tracker) GetBaseline(ctx context.Context, userID string) (Snapshot, error) {
	fp, _, err := t.fingerprintStore.GetFingerprint(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	eb, _, err := t.baselineStore.GetEmotionBaseline(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	recent, err := t.baselineStore.RecentDeviations(ctx, userID, 20)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Fingerprint: fp, Baseline: eb, RecentDeviations: recent}, nil
}

func (t *Tracker) decayTau() float64 {
	if t.cfg.DecayTau > 0 {
		return t.cfg.DecayTau
	}
	return float64(t.cfg.WindowDays)
}

func updateFingerprint(fp *records.VoiceFingerprint, f records.AcousticFeatures) {
	fp.PitchMean.Update(f.PitchMean)
	fp.PitchStd.Update(f.PitchStd)
	fp.EnergyMean.Update(f.EnergyMean)
	fp.EnergyStd.Update(f.EnergyStd)
	fp.SpeechRate.Update(f.SpeechRate)
	fp.PauseFreq.Update(f.PauseFrequency)
}

func fingerprintConfidence(sampleCount, minSamples int) float64 {
	if minSamples <= 0 {
		minSamples = 15
	}
	if sampleCount >= minSamples {
		return 1.0
	}
	return float64(sampleCount) / float64(minSamples)
}

// applyDecay multiplies every raw weight by exp(-Δt/τ) before the caller
// increments the current sample's count, per §4.3's EmotionBaseline decay.
func applyDecay(eb *records.EmotionBaseline, tau float64, now time.Time) {
	if eb.UpdatedAt.IsZero() || tau <= 0 {
		return
	}
	deltaDays := now.Sub(eb.UpdatedAt).Hours() / 24
	if deltaDays <= 0 {
		return
	}
	factor := math.Exp(-deltaDays / tau)
	for label, w := range eb.RawWeights {
		eb.RawWeights[label] = w * factor
	}
}

func normalizeWeights(weights map[records.VoiceEmotionLabel]float64) map[records.VoiceEmotionLabel]float64 {
	var total float64
	for _, w := range weights {
		total += w
	}
	out := make(map[records.VoiceEmotionLabel]float64, len(weights))
	if total <= 0 {
		return out
	}
	for label, w := range weights {
		out[label] = w / total
	}
	return out
}

func dominantEmotion(dist map[records.VoiceEmotionLabel]float64) records.VoiceEmotionLabel {
	var best records.VoiceEmotionLabel
	var bestWeight float64
	for label, w := range dist {
		if w > bestWeight {
			bestWeight = w
			best = label
		}
	}
	return best
}

func emaConfidence(previous, sample float64, sampleCount int) float64 {
	if sampleCount <= 1 {
		return sample
	}
	const alpha = 0.1
	return previous*(1-alpha) + sample*alpha
}

func deviationType(voiceScore, emotionScore *float64) records.DeviationType {
	switch {
	case voiceScore != nil && emotionScore != nil:
		return records.DeviationCombined
	case voiceScore != nil:
		return records.DeviationVoice
	default:
		return records.DeviationEmotion
	}
}

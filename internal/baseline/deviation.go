package baseline

import (
	"math"

	"github.com/leon-madara/resona-core/internal/records"
)

const zScoreClamp = 3.0

// featureZScore returns |x-mean|/max(std,eps), clamped to zScoreClamp.
func featureZScore(x, mean, std float64) float64 {
	const eps = 1e-6
	denom := std
	if denom < eps {
		denom = eps
	}
	z := math.Abs(x-mean) / denom
	if z > zScoreClamp {
		return zScoreClamp
	}
	return z
}

// voiceDeviation computes the per-feature z-score average (clamped, then
// divided by zScoreClamp to land in [0,1]) across the six fingerprint
// features that are present in features. A zero-valued field counts as
// absent: it gets no z-score and is left out of the average, and a sample
// with no present feature scores 0. It returns the per-feature z-scores
// too, for DeviationRecord.ZScores.
func voiceDeviation(fp records.VoiceFingerprint, features records.AcousticFeatures) (score float64, zscores map[string]float64) {
	type pair struct {
		name string
		x    float64
		stat records.WelfordStat
	}
	pairs := []pair{
		{"pitch_mean", features.PitchMean, fp.PitchMean},
		{"pitch_std", features.PitchStd, fp.PitchStd},
		{"energy_mean", features.EnergyMean, fp.EnergyMean},
		{"energy_std", features.EnergyStd, fp.EnergyStd},
		{"speech_rate", features.SpeechRate, fp.SpeechRate},
		{"pause_frequency", features.PauseFrequency, fp.PauseFreq},
	}

	zscores = make(map[string]float64, len(pairs))
	var sum float64
	var present int
	for _, p := range pairs {
		if p.x == 0 {
			continue
		}
		z := featureZScore(p.x, p.stat.Mean, p.stat.StdDev())
		zscores[p.name] = z
		sum += z
		present++
	}
	if present == 0 {
		return 0, zscores
	}

	score = (sum / float64(present)) / zScoreClamp
	return score, zscores
}

// emotionDeviation computes a Jensen-Shannon-like divergence between a
// one-hot distribution for the current sample's label and the baseline
// distribution, normalized to [0,1] (JS divergence in nats is bounded by
// ln(2)).
func emotionDeviation(baseline map[records.VoiceEmotionLabel]float64, label records.VoiceEmotionLabel) float64 {
	labels := allEmotionLabels()

	p := make(map[records.VoiceEmotionLabel]float64, len(labels))
	for _, l := range labels {
		p[l] = 0
	}
	p[label] = 1

	q := make(map[records.VoiceEmotionLabel]float64, len(labels))
	for _, l := range labels {
		q[l] = baseline[l]
	}

	var js float64
	for _, l := range labels {
		m := (p[l] + q[l]) / 2
		js += 0.5*klTerm(p[l], m) + 0.5*klTerm(q[l], m)
	}

	return js / math.Ln2
}

func klTerm(x, m float64) float64 {
	if x <= 0 || m <= 0 {
		return 0
	}
	return x * math.Log(x/m)
}

func allEmotionLabels() []records.VoiceEmotionLabel {
	return []records.VoiceEmotionLabel{
		records.EmotionNeutral, records.EmotionHappy, records.EmotionSad,
		records.EmotionAngry, records.EmotionFear, records.EmotionSurprise,
		records.EmotionDisgust,
	}
}

// combinedDeviation implements §4.3's weighted average: 0.6 voice, 0.4
// emotion when both signals are present; otherwise the single present
// signal carries full weight.
func combinedDeviation(voiceScore *float64, emotionScore *float64) float64 {
	switch {
	case voiceScore != nil && emotionScore != nil:
		return 0.6**voiceScore + 0.4**emotionScore
	case voiceScore != nil:
		return *voiceScore
	case emotionScore != nil:
		return *emotionScore
	default:
		return 0
	}
}

func severityFor(score float64) records.DeviationSeverity {
	switch {
	case score >= 0.8:
		return records.DeviationSeverityHigh
	case score >= 0.65:
		return records.DeviationSeverityMedium
	default:
		return records.DeviationSeverityLow
	}
}

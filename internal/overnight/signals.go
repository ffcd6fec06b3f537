package overnight

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/leon-madara/resona-core/internal/baseline"
	"github.com/leon-madara/resona-core/internal/records"
)

// signalSet is the full collected-and-derived input to the rest of the
// build pipeline (§4.5 stage 1).
type signalSet struct {
	meanNormalizedGap            float64
	defensiveConcealmentFraction float64
	sevenDayMeanGap              float64
	topDeflectionCategories      []string
	codeSwitchingFrequency       float64
	fingerprintConfidence        float64
	recentDeviationSeverities    []records.DeviationSeverity

	primaryEmotions      []records.VoiceEmotionLabel
	primaryLanguage      records.Language
	sessionCount         int
	triggerCount         int
	effectiveCopingCount int

	criticalFindingLast24h bool

	last14DayComposite float64
	prior14DayComposite float64
	compositeVariance  float64
}

// collectSignals implements §4.5 stage 1: pull the last lookbackDays of
// DissonanceRecords and CulturalAnalyses for the user plus current
// BaselineTracker state, and derive the summary signals every later stage
// reads from.
func collectSignals(ctx context.Context, userID string, now time.Time, lookbackDays int, store records.Store, tracker *baseline.Tracker) (signalSet, error) {
	since := now.AddDate(0, 0, -lookbackDays)

	dissonance, err := store.DissonanceRecordsSince(ctx, userID, since)
	if err != nil {
		return signalSet{}, err
	}
	cultural, err := store.CulturalAnalysesSince(ctx, userID, since)
	if err != nil {
		return signalSet{}, err
	}

	var sig signalSet
	sig.sessionCount = countSessions(dissonance, cultural)

	sig.meanNormalizedGap = meanGap(dissonance)
	sig.defensiveConcealmentFraction = fractionWithInterpretation(dissonance, records.InterpretationDefensiveConcealment)
	sig.sevenDayMeanGap = meanGap(recordsSince(dissonance, now.AddDate(0, 0, -7)))
	sig.triggerCount = countWithLevel(dissonance, records.DissonanceHigh)
	sig.effectiveCopingCount = countWithInterpretation(dissonance, records.InterpretationRecoveryIndicator)

	sig.primaryEmotions = topEmotions(dissonance, 3)
	sig.primaryLanguage = dominantLanguage(cultural)
	sig.topDeflectionCategories = topDeflectionCategories(cultural, 3)
	sig.codeSwitchingFrequency = codeSwitchFrequency(cultural)
	sig.criticalFindingLast24h = hasCriticalFindingSince(cultural, now.Add(-24*time.Hour))

	if tracker != nil {
		snap, err := tracker.GetBaseline(ctx, userID)
		if err == nil {
			sig.fingerprintConfidence = snap.Fingerprint.Confidence
			for _, d := range snap.RecentDeviations {
				sig.recentDeviationSeverities = append(sig.recentDeviationSeverities, d.Severity)
			}
		}
	}

	sig.last14DayComposite = compositeRisk(recordsSince(dissonance, now.AddDate(0, 0, -14)))
	prior14 := recordsBetween(dissonance, now.AddDate(0, 0, -28), now.AddDate(0, 0, -14))
	sig.prior14DayComposite = compositeRisk(prior14)
	sig.compositeVariance = gapVariance(recordsSince(dissonance, now.AddDate(0, 0, -14)))

	return sig, nil
}

func countSessions(d []records.DissonanceRecord, c []records.CulturalAnalysis) int {
	sessions := map[string]struct{}{}
	for _, r := range d {
		sessions[r.SessionID] = struct{}{}
	}
	for _, r := range c {
		sessions[r.SessionID] = struct{}{}
	}
	return len(sessions)
}

func meanGap(recs []records.DissonanceRecord) float64 {
	if len(recs) == 0 {
		return 0
	}
	var sum float64
	for _, r := range recs {
		sum += r.NormalizedGap
	}
	return sum / float64(len(recs))
}

func gapVariance(recs []records.DissonanceRecord) float64 {
	if len(recs) < 2 {
		return 0
	}
	mean := meanGap(recs)
	var sumSq float64
	for _, r := range recs {
		d := r.NormalizedGap - mean
		sumSq += d * d
	}
	return sumSq / float64(len(recs))
}

func fractionWithInterpretation(recs []records.DissonanceRecord, interp records.DissonanceInterpretation) float64 {
	if len(recs) == 0 {
		return 0
	}
	return float64(countWithInterpretation(recs, interp)) / float64(len(recs))
}

func countWithInterpretation(recs []records.DissonanceRecord, interp records.DissonanceInterpretation) int {
	count := 0
	for _, r := range recs {
		if r.Interpretation == interp {
			count++
		}
	}
	return count
}

func countWithLevel(recs []records.DissonanceRecord, level records.DissonanceLevel) int {
	count := 0
	for _, r := range recs {
		if r.Level == level {
			count++
		}
	}
	return count
}

func recordsSince(recs []records.DissonanceRecord, since time.Time) []records.DissonanceRecord {
	var out []records.DissonanceRecord
	for _, r := range recs {
		if !r.CreatedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out
}

func recordsBetween(recs []records.DissonanceRecord, from, to time.Time) []records.DissonanceRecord {
	var out []records.DissonanceRecord
	for _, r := range recs {
		if !r.CreatedAt.Before(from) && r.CreatedAt.Before(to) {
			out = append(out, r)
		}
	}
	return out
}

// compositeRisk is mean normalized_gap weighted by the dominant severity
// present, used to compare 14-day windows for trajectory classification.
func compositeRisk(recs []records.DissonanceRecord) float64 {
	if len(recs) == 0 {
		return 0
	}
	mean := meanGap(recs)
	weight := dominantSeverityWeight(recs)
	return mean * weight
}

func dominantSeverityWeight(recs []records.DissonanceRecord) float64 {
	var weight float64 = 1.0
	for _, r := range recs {
		switch r.RiskLevel {
		case records.RiskCritical:
			weight = math.Max(weight, 2.0)
		case records.RiskHigh:
			weight = math.Max(weight, 1.5)
		case records.RiskMediumHigh:
			weight = math.Max(weight, 1.25)
		case records.RiskMedium:
			weight = math.Max(weight, 1.0)
		}
	}
	return weight
}

func topEmotions(recs []records.DissonanceRecord, n int) []records.VoiceEmotionLabel {
	counts := map[records.VoiceEmotionLabel]int{}
	for _, r := range recs {
		counts[r.ActualEmotion]++
	}
	type pair struct {
		label records.VoiceEmotionLabel
		count int
	}
	pairs := make([]pair, 0, len(counts))
	for l, c := range counts {
		pairs = append(pairs, pair{l, c})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].count > pairs[j].count })
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make([]records.VoiceEmotionLabel, len(pairs))
	for i, p := range pairs {
		out[i] = p.label
	}
	return out
}

func dominantLanguage(analyses []records.CulturalAnalysis) records.Language {
	var swahiliWeight, total float64
	for _, a := range analyses {
		total++
		swahiliWeight += a.CodeSwitching.SwahiliRatio
	}
	if total == 0 {
		return records.LanguageEnglish
	}
	if swahiliWeight/total > 0.5 {
		return records.LanguageSwahili
	}
	if swahiliWeight/total > 0 {
		return records.LanguageMixed
	}
	return records.LanguageEnglish
}

func topDeflectionCategories(analyses []records.CulturalAnalysis, n int) []string {
	counts := map[string]int{}
	for _, a := range analyses {
		for _, f := range a.Findings {
			counts[f.Type]++
		}
	}
	type pair struct {
		category string
		count    int
	}
	pairs := make([]pair, 0, len(counts))
	for c, n := range counts {
		pairs = append(pairs, pair{c, n})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].count > pairs[j].count })
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.category
	}
	return out
}

func codeSwitchFrequency(analyses []records.CulturalAnalysis) float64 {
	if len(analyses) == 0 {
		return 0
	}
	var total float64
	for _, a := range analyses {
		total += float64(a.CodeSwitching.SwitchCount)
	}
	return total / float64(len(analyses))
}

func hasCriticalFindingSince(analyses []records.CulturalAnalysis, since time.Time) bool {
	for _, a := range analyses {
		if a.CreatedAt.Before(since) {
			continue
		}
		for _, f := range a.Findings {
			if f.Severity == records.SeverityCritical {
				return true
			}
		}
	}
	return false
}

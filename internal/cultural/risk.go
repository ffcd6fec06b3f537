package cultural

import "github.com/leon-madara/resona-core/internal/records"

// severityWeight is the bit-exact finding-severity weight table from §4.4.
var severityWeight = map[records.FindingSeverity]float64{
	records.SeverityLow:    0.10,
	records.SeverityMedium: 0.30,
	records.SeverityHigh:   0.60,
}

// contradictionMultiplier scales a finding's weight when a voice-text
// contradiction accompanies it.
const contradictionMultiplier = 1.5

// negativeEmotionValence mirrors the dissonance engine's valence anchors for
// the subset of labels cultural contradiction detection cares about:
// whether the voice signal reads as negative at all.
var negativeEmotionValence = map[records.VoiceEmotionLabel]struct{}{
	records.EmotionSad:     {},
	records.EmotionAngry:   {},
	records.EmotionFear:    {},
	records.EmotionDisgust: {},
}

func isNegativeValent(label records.VoiceEmotionLabel) bool {
	_, ok := negativeEmotionValence[label]
	return ok
}

// countContradictions implements §4.4's voice-text contradiction rule: a
// negative-valent voice emotion alongside a minimization finding (text that
// reads as dismissively positive) is a contradiction.
func countContradictions(findings []records.DeflectionFinding, emotionLabel records.VoiceEmotionLabel, hasEmotion bool) int {
	if !hasEmotion || !isNegativeValent(emotionLabel) {
		return 0
	}
	count := 0
	for _, f := range findings {
		if f.Type == "minimization" {
			count++
		}
	}
	return count
}

// aggregateRisk implements the risk-aggregation rule: any critical finding
// forces "critical" outright; otherwise average severity_weight across
// findings — a contradicting minimization finding counts at
// contradiction_multiplier rather than its base weight — and threshold the
// result. Averaging (rather than summing) keeps the score a measure of how
// concerning the utterance reads per finding, so one sparse conversation
// with two medium findings doesn't outrank a session with a single
// overwhelming high finding purely from finding count.
func aggregateRisk(findings []records.DeflectionFinding, contradictions int) records.RiskLevel {
	if len(findings) == 0 {
		return records.RiskLow
	}
	for _, f := range findings {
		if f.Severity == records.SeverityCritical {
			return records.RiskCritical
		}
	}

	remaining := contradictions
	var score float64
	for _, f := range findings {
		weight := severityWeight[f.Severity]
		if remaining > 0 && f.Type == "minimization" {
			weight = severityWeight[f.Severity] * contradictionMultiplier
			remaining--
		}
		score += weight
	}
	score /= float64(len(findings))

	switch {
	case score < 0.2:
		return records.RiskLow
	case score < 0.45:
		return records.RiskMedium
	case score < 0.8:
		return records.RiskHigh
	default:
		return records.RiskCritical
	}
}

// probeSuggestions implements §4.4: every finding above "low" contributes
// its default probe; critical findings additionally contribute a
// safety-assessment probe, ordered by severity (critical first).
func probeSuggestions(findings []records.DeflectionFinding) []string {
	ordered := orderBySeverityDesc(findings)

	var probes []string
	for _, f := range ordered {
		if f.Severity == records.SeverityLow {
			continue
		}
		probes = append(probes, f.ProbeSuggestion)
		if f.Severity == records.SeverityCritical {
			probes = append(probes, safetyAssessmentProbe(f))
		}
	}
	return probes
}

func safetyAssessmentProbe(f records.DeflectionFinding) string {
	return "This sounds serious and I want to make sure you're safe — " + f.ProbeSuggestion
}

func orderBySeverityDesc(findings []records.DeflectionFinding) []records.DeflectionFinding {
	rank := map[records.FindingSeverity]int{
		records.SeverityCritical: 3,
		records.SeverityHigh:     2,
		records.SeverityMedium:   1,
		records.SeverityLow:      0,
	}
	ordered := make([]records.DeflectionFinding, len(findings))
	copy(ordered, findings)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && rank[ordered[j].Severity] > rank[ordered[j-1].Severity]; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	return ordered
}

// highestSeverity returns the most severe finding severity present, or ""
// when findings is empty.
func highestSeverity(findings []records.DeflectionFinding) records.FindingSeverity {
	rank := map[records.FindingSeverity]int{
		records.SeverityCritical: 3,
		records.SeverityHigh:     2,
		records.SeverityMedium:   1,
		records.SeverityLow:      0,
	}
	var best records.FindingSeverity
	bestRank := -1
	for _, f := range findings {
		if r := rank[f.Severity]; r > bestRank {
			bestRank = r
			best = f.Severity
		}
	}
	return best
}

// recommendedAction implements §4.4's template table keyed by
// (highest_severity, contradiction_present).
func recommendedAction(severity records.FindingSeverity, contradictionPresent bool) string {
	switch {
	case severity == records.SeverityCritical:
		return "crisis_intervention"
	case severity == records.SeverityHigh, severity == records.SeverityMedium && contradictionPresent:
		return "supportive_exploration"
	case severity == records.SeverityMedium, severity == records.SeverityLow:
		return "gentle_inquiry"
	default:
		return "normal_flow"
	}
}

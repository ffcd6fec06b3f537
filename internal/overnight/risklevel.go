package overnight

import "github.com/leon-madara/resona-core/internal/records"

// riskLevel derives the UIConfig-facing risk_level from the collected
// signals: any critical finding in the last 24h forces critical outright
// (mirroring the cultural analyzer's own critical-finding-forces-critical
// rule); otherwise the 7-day mean dissonance gap is banded using the same
// low/medium/high cutoffs the dissonance engine uses for its own level
// field, escalated to medium-high when concealment is frequent or a recent
// deviation read high severity.
func riskLevel(sig signalSet) records.RiskLevel {
	if sig.criticalFindingLast24h {
		return records.RiskCritical
	}

	hasHighDeviation := false
	for _, sev := range sig.recentDeviationSeverities {
		if sev == records.DeviationSeverityHigh {
			hasHighDeviation = true
			break
		}
	}

	switch {
	case sig.sevenDayMeanGap >= 0.7:
		return records.RiskHigh
	case sig.sevenDayMeanGap >= 0.3:
		if sig.defensiveConcealmentFraction >= 0.5 || hasHighDeviation {
			return records.RiskMediumHigh
		}
		return records.RiskMedium
	default:
		if hasHighDeviation {
			return records.RiskMedium
		}
		return records.RiskLow
	}
}

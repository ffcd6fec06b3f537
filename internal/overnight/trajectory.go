package overnight

import "github.com/leon-madara/resona-core/internal/records"

// volatilityVarianceThreshold is the variance of the trailing window's
// normalized dissonance gaps (signalSet.compositeVariance) above which a
// trajectory is classified volatile regardless of its directional change.
const volatilityVarianceThreshold = 0.05

// trajectoryChangeThreshold is the minimum relative change between the
// trailing and prior 14-day composite risk needed to call a trend
// improving/declining rather than stable.
const trajectoryChangeThreshold = 0.15

// classifyTrajectory implements §4.5 stage 2: a 14-day vs prior-14-day
// comparison of composite risk, with variance over the trailing window
// overriding a directional call when it's high enough to call the trend
// volatile rather than a clean improve/decline.
func classifyTrajectory(sig signalSet) records.Trajectory {
	if sig.compositeVariance > volatilityVarianceThreshold {
		return records.TrajectoryVolatile
	}

	if sig.prior14DayComposite == 0 {
		if sig.last14DayComposite == 0 {
			return records.TrajectoryStable
		}
		return records.TrajectoryDeclining
	}

	relativeChange := (sig.last14DayComposite - sig.prior14DayComposite) / sig.prior14DayComposite

	switch {
	case relativeChange <= -trajectoryChangeThreshold:
		return records.TrajectoryImproving
	case relativeChange >= trajectoryChangeThreshold:
		return records.TrajectoryDeclining
	default:
		return records.TrajectoryStable
	}
}

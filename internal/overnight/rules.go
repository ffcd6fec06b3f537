package overnight

import "github.com/leon-madara/resona-core/internal/records"

// Component names, fixed per §4.5 stage 4.
const (
	componentCulturalGreeting     = "cultural_greeting"
	componentVoiceRecorder        = "voice_recorder"
	componentEmotionTimeline      = "emotion_timeline"
	componentDissonanceIndicator  = "dissonance_indicator"
	componentCrisisResources      = "crisis_resources"
	componentSafetyCheck          = "safety_check"
	componentWhatsWorking         = "whats_working"
	componentGentleObservations   = "gentle_observations"
	componentProgressCelebration  = "progress_celebration"
	componentPersonalizedResources = "personalized_resources"
	componentAdaptiveMenu         = "adaptive_menu"
)

func allComponentNames() []string {
	return []string{
		componentCulturalGreeting, componentVoiceRecorder, componentEmotionTimeline,
		componentDissonanceIndicator, componentCrisisResources, componentSafetyCheck,
		componentWhatsWorking, componentGentleObservations, componentProgressCelebration,
		componentPersonalizedResources, componentAdaptiveMenu,
	}
}

// computeComponentStates implements §4.5 stage 4: for each known component,
// derive {visible, prominence, urgency, props} from (risk_level, trajectory,
// signal flags).
func computeComponentStates(sig signalSet) map[string]records.ComponentState {
	level := riskLevel(sig)
	trajectory := classifyTrajectory(sig)

	states := make(map[string]records.ComponentState, len(allComponentNames()))

	states[componentVoiceRecorder] = records.ComponentState{
		Name: componentVoiceRecorder, Visible: true,
		Prominence: records.ProminenceTop, Urgency: records.UrgencyNone,
	}

	states[componentCrisisResources] = crisisResourcesState(level)
	states[componentSafetyCheck] = safetyCheckState(sig, level)
	states[componentDissonanceIndicator] = dissonanceIndicatorState(sig, level)
	states[componentProgressCelebration] = progressCelebrationState(trajectory, level)
	states[componentEmotionTimeline] = emotionTimelineState(level)
	states[componentCulturalGreeting] = culturalGreetingState(sig)
	states[componentWhatsWorking] = whatsWorkingState(sig, trajectory)
	states[componentGentleObservations] = gentleObservationsState(level)
	states[componentPersonalizedResources] = personalizedResourcesState(level)
	states[componentAdaptiveMenu] = adaptiveMenuState(level)

	return states
}

// crisisResourcesState escalates prominence hidden->sidebar->card->top->modal
// as risk rises.
func crisisResourcesState(level records.RiskLevel) records.ComponentState {
	s := records.ComponentState{Name: componentCrisisResources}
	switch level {
	case records.RiskCritical:
		s.Visible, s.Prominence, s.Urgency = true, records.ProminenceModal, records.UrgencyCritical
	case records.RiskHigh:
		s.Visible, s.Prominence, s.Urgency = true, records.ProminenceTop, records.UrgencyHigh
	case records.RiskMediumHigh:
		s.Visible, s.Prominence, s.Urgency = true, records.ProminenceCard, records.UrgencyMedium
	case records.RiskMedium:
		s.Visible, s.Prominence, s.Urgency = true, records.ProminenceSidebar, records.UrgencyLow
	default:
		s.Visible, s.Prominence, s.Urgency = false, records.ProminenceHidden, records.UrgencyNone
	}
	return s
}

// safetyCheckState: urgency=critical iff any critical finding in the last 24h.
func safetyCheckState(sig signalSet, level records.RiskLevel) records.ComponentState {
	if sig.criticalFindingLast24h {
		return records.ComponentState{Name: componentSafetyCheck, Visible: true, Prominence: records.ProminenceTop, Urgency: records.UrgencyCritical}
	}
	if level == records.RiskHigh || level == records.RiskMediumHigh {
		return records.ComponentState{Name: componentSafetyCheck, Visible: true, Prominence: records.ProminenceCard, Urgency: records.UrgencyHigh}
	}
	if level == records.RiskMedium {
		return records.ComponentState{Name: componentSafetyCheck, Visible: true, Prominence: records.ProminenceSidebar, Urgency: records.UrgencyMedium}
	}
	return records.ComponentState{Name: componentSafetyCheck, Visible: false, Prominence: records.ProminenceHidden, Urgency: records.UrgencyNone}
}

// dissonanceIndicatorState: prominence rises when the 7-day mean gap exceeds 0.7.
func dissonanceIndicatorState(sig signalSet, level records.RiskLevel) records.ComponentState {
	s := records.ComponentState{Name: componentDissonanceIndicator, Visible: true}
	if sig.sevenDayMeanGap > 0.7 {
		s.Prominence, s.Urgency = records.ProminenceTop, records.UrgencyHigh
	} else if sig.sevenDayMeanGap > 0.3 {
		s.Prominence, s.Urgency = records.ProminenceCard, records.UrgencyMedium
	} else {
		s.Prominence, s.Urgency = records.ProminenceSidebar, records.UrgencyLow
	}
	if level == records.RiskCritical {
		s.Visible = false
	}
	return s
}

// progressCelebrationState: prominence rises only when trajectory=improving
// AND risk_level in {low, medium}.
func progressCelebrationState(trajectory records.Trajectory, level records.RiskLevel) records.ComponentState {
	if trajectory == records.TrajectoryImproving && (level == records.RiskLow || level == records.RiskMedium) {
		return records.ComponentState{Name: componentProgressCelebration, Visible: true, Prominence: records.ProminenceCard, Urgency: records.UrgencyNone}
	}
	return records.ComponentState{Name: componentProgressCelebration, Visible: false, Prominence: records.ProminenceHidden, Urgency: records.UrgencyNone}
}

func emotionTimelineState(level records.RiskLevel) records.ComponentState {
	if level == records.RiskCritical {
		return records.ComponentState{Name: componentEmotionTimeline, Visible: false, Prominence: records.ProminenceHidden, Urgency: records.UrgencyNone}
	}
	return records.ComponentState{Name: componentEmotionTimeline, Visible: true, Prominence: records.ProminenceSidebar, Urgency: records.UrgencyNone}
}

func culturalGreetingState(sig signalSet) records.ComponentState {
	if sig.primaryLanguage == records.LanguageSwahili || sig.primaryLanguage == records.LanguageMixed {
		return records.ComponentState{Name: componentCulturalGreeting, Visible: true, Prominence: records.ProminenceMinimal, Urgency: records.UrgencyNone}
	}
	return records.ComponentState{Name: componentCulturalGreeting, Visible: false, Prominence: records.ProminenceHidden, Urgency: records.UrgencyNone}
}

func whatsWorkingState(sig signalSet, trajectory records.Trajectory) records.ComponentState {
	if sig.effectiveCopingCount > 0 {
		return records.ComponentState{Name: componentWhatsWorking, Visible: true, Prominence: records.ProminenceSidebar, Urgency: records.UrgencyNone}
	}
	return records.ComponentState{Name: componentWhatsWorking, Visible: false, Prominence: records.ProminenceHidden, Urgency: records.UrgencyNone}
}

func gentleObservationsState(level records.RiskLevel) records.ComponentState {
	if level == records.RiskCritical {
		return records.ComponentState{Name: componentGentleObservations, Visible: false, Prominence: records.ProminenceHidden, Urgency: records.UrgencyNone}
	}
	return records.ComponentState{Name: componentGentleObservations, Visible: true, Prominence: records.ProminenceMinimal, Urgency: records.UrgencyNone}
}

func personalizedResourcesState(level records.RiskLevel) records.ComponentState {
	switch level {
	case records.RiskCritical:
		return records.ComponentState{Name: componentPersonalizedResources, Visible: false, Prominence: records.ProminenceHidden, Urgency: records.UrgencyNone}
	case records.RiskHigh, records.RiskMediumHigh:
		return records.ComponentState{Name: componentPersonalizedResources, Visible: true, Prominence: records.ProminenceCard, Urgency: records.UrgencyLow}
	default:
		return records.ComponentState{Name: componentPersonalizedResources, Visible: true, Prominence: records.ProminenceMinimal, Urgency: records.UrgencyNone}
	}
}

func adaptiveMenuState(level records.RiskLevel) records.ComponentState {
	if level == records.RiskCritical {
		return records.ComponentState{Name: componentAdaptiveMenu, Visible: false, Prominence: records.ProminenceHidden, Urgency: records.UrgencyNone}
	}
	return records.ComponentState{Name: componentAdaptiveMenu, Visible: true, Prominence: records.ProminenceMinimal, Urgency: records.UrgencyNone}
}

package overnight

import (
	"sort"

	"github.com/leon-madara/resona-core/internal/records"
)

func urgencyBase(u records.ComponentUrgency) float64 {
	switch u {
	case records.UrgencyCritical:
		return 100
	case records.UrgencyHigh:
		return 75
	case records.UrgencyMedium:
		return 50
	case records.UrgencyLow:
		return 25
	default:
		return 0
	}
}

func riskMultiplier(level records.RiskLevel) float64 {
	switch level {
	case records.RiskCritical:
		return 2.0
	case records.RiskHigh:
		return 1.5
	case records.RiskMediumHigh:
		return 1.25
	case records.RiskMedium:
		return 1.0
	default:
		return 0.5
	}
}

func prominenceBonus(p records.ComponentProminence) float64 {
	switch p {
	case records.ProminenceModal:
		return 50
	case records.ProminenceTop:
		return 40
	case records.ProminenceCard:
		return 30
	case records.ProminenceSidebar:
		return 20
	case records.ProminenceMinimal:
		return 10
	default:
		return 0
	}
}

// specialBoost implements §4.5 stage 5's per-component bonuses.
func specialBoost(name string, sig signalSet, trajectory records.Trajectory) float64 {
	var boost float64
	if name == componentCrisisResources || name == componentSafetyCheck {
		boost += 50
	}
	if name == componentDissonanceIndicator && sig.sevenDayMeanGap > 0.7 {
		boost += 30
	}
	if name == componentProgressCelebration && trajectory == records.TrajectoryImproving {
		boost += 20
	}
	return boost
}

// computePriority implements §4.5 stage 5's priority formula.
func computePriority(state records.ComponentState, level records.RiskLevel, sig signalSet, trajectory records.Trajectory) float64 {
	return urgencyBase(state.Urgency)*riskMultiplier(level) + prominenceBonus(state.Prominence) + specialBoost(state.Name, sig, trajectory)
}

// bucketFor maps a prominence to its layout bucket.
func bucketFor(p records.ComponentProminence) string {
	switch p {
	case records.ProminenceModal, records.ProminenceTop:
		return "hero"
	case records.ProminenceCard:
		return "primary"
	case records.ProminenceSidebar:
		return "sidebar"
	default:
		return "footer"
	}
}

type placedComponent struct {
	name     string
	priority float64
	bucket   string
	state    records.ComponentState
}

// buildLayout implements §4.5 stages 5's bucketing plus risk-based
// compaction: priority-score every visible component, bucket it, sort each
// bucket descending by priority, then apply the per-risk-level caps.
func buildLayout(states map[string]records.ComponentState, level records.RiskLevel, sig signalSet, trajectory records.Trajectory) (records.LayoutBuckets, []string) {
	var placed []placedComponent
	for name, state := range states {
		if !state.Visible {
			continue
		}
		state.Priority = computePriority(state, level, sig, trajectory)
		placed = append(placed, placedComponent{name: name, priority: state.Priority, bucket: bucketFor(state.Prominence), state: state})
	}

	sort.Slice(placed, func(i, j int) bool {
		if placed[i].priority != placed[j].priority {
			return placed[i].priority > placed[j].priority
		}
		return placed[i].name < placed[j].name
	})

	placed = compact(placed, level)

	buckets := records.LayoutBuckets{}
	for _, p := range placed {
		switch p.bucket {
		case "hero":
			buckets.Hero = append(buckets.Hero, p.name)
		case "primary":
			buckets.Primary = append(buckets.Primary, p.name)
		case "sidebar":
			buckets.Sidebar = append(buckets.Sidebar, p.name)
		case "footer":
			buckets.Footer = append(buckets.Footer, p.name)
		}
	}

	mobile := mobileOrder(placed)

	return buckets, mobile
}

// compact implements §4.5 stage 5's risk-based compaction caps. placed is
// assumed already sorted descending by priority.
func compact(placed []placedComponent, level records.RiskLevel) []placedComponent {
	var totalCap, heroCap int
	hideSidebar, hideFooter := false, false

	switch level {
	case records.RiskCritical:
		totalCap, heroCap, hideSidebar, hideFooter = 3, 1, true, true
	case records.RiskHigh:
		totalCap, hideFooter = 5, true
	case records.RiskMedium:
		totalCap = 8
	default:
		totalCap = 12
	}

	var out []placedComponent
	heroCount := 0
	for _, p := range placed {
		if len(out) >= totalCap {
			break
		}
		if hideSidebar && p.bucket == "sidebar" {
			continue
		}
		if hideFooter && p.bucket == "footer" {
			continue
		}
		if heroCap > 0 && p.bucket == "hero" {
			if heroCount >= heroCap {
				continue
			}
			heroCount++
		}
		out = append(out, p)
	}
	return out
}

// mobileOrder implements §4.5 stage 5's mobile_layout rule: top 7 overall,
// but always include critical-urgency components and crisis_resources when
// visible, with sidebar capped at 3 and footer capped at 2 within the
// mobile set.
func mobileOrder(placed []placedComponent) []string {
	included := map[string]bool{}
	var order []string
	sidebarCount, footerCount := 0, 0

	add := func(p placedComponent) bool {
		if included[p.name] {
			return false
		}
		if p.bucket == "sidebar" && sidebarCount >= 3 {
			return false
		}
		if p.bucket == "footer" && footerCount >= 2 {
			return false
		}
		included[p.name] = true
		order = append(order, p.name)
		if p.bucket == "sidebar" {
			sidebarCount++
		}
		if p.bucket == "footer" {
			footerCount++
		}
		return true
	}

	for _, p := range placed {
		if p.state.Urgency == records.UrgencyCritical || p.name == componentCrisisResources {
			add(p)
		}
	}
	for _, p := range placed {
		if len(order) >= 7 {
			break
		}
		add(p)
	}

	return order
}

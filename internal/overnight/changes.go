package overnight

import "github.com/leon-madara/resona-core/internal/records"

// detectChanges implements §4.5 stage 6: diff current against previous,
// emitting one entry per changed field of each component (visibility, and
// for visible components prominence and urgency), so one component can
// yield several entries, plus a theme-change entry when applicable. Only entries with
// severity >= medium are meant to be surfaced to the client as
// notifications; that filtering happens at the call site, not here, so the
// full diff is always available for audit/debugging.
func detectChanges(previous *records.UIConfigPlaintext, current records.UIConfigPlaintext) []records.UIConfigChange {
	var changes []records.UIConfigChange

	if previous == nil {
		return changes
	}

	if previous.Theme != current.Theme {
		changes = append(changes, records.UIConfigChange{
			ChangeType: "theme_changed",
			Component:  "theme",
			Reason:     "risk/trajectory shift changed the selected theme",
			Severity:   records.SeverityMedium,
		})
	}

	for name, curr := range current.Components {
		prev, existed := previous.Components[name]
		if !existed {
			if curr.Visible {
				changes = append(changes, records.UIConfigChange{
					ChangeType: "component_shown", Component: name,
					Reason: "component became visible", Severity: records.SeverityLow,
				})
			}
			continue
		}
		changes = append(changes, diffComponent(name, prev, curr)...)
	}

	for name, prev := range previous.Components {
		if _, stillPresent := current.Components[name]; !stillPresent && prev.Visible {
			changes = append(changes, records.UIConfigChange{
				ChangeType: "component_hidden", Component: name,
				Reason: "component no longer present", Severity: records.SeverityMedium,
			})
		}
	}

	return changes
}

func diffComponent(name string, prev, curr records.ComponentState) []records.UIConfigChange {
	var changes []records.UIConfigChange

	if prev.Visible != curr.Visible {
		changeType, reason, severity := "component_shown", "component became visible", records.SeverityLow
		if !curr.Visible {
			changeType, reason, severity = "component_hidden", "component no longer visible", records.SeverityMedium
		}
		changes = append(changes, records.UIConfigChange{ChangeType: changeType, Component: name, Reason: reason, Severity: severity})
	}

	if curr.Visible && prev.Prominence != curr.Prominence {
		changes = append(changes, records.UIConfigChange{
			ChangeType: "prominence_changed", Component: name,
			Reason:   "prominence moved from " + string(prev.Prominence) + " to " + string(curr.Prominence),
			Severity: prominenceChangeSeverity(prev.Prominence, curr.Prominence),
		})
	}

	if curr.Visible && prev.Urgency != curr.Urgency {
		changes = append(changes, records.UIConfigChange{
			ChangeType: "urgency_changed", Component: name,
			Reason:   "urgency moved from " + string(prev.Urgency) + " to " + string(curr.Urgency),
			Severity: urgencyChangeSeverity(prev.Urgency, curr.Urgency),
		})
	}

	return changes
}

func prominenceChangeSeverity(prev, curr records.ComponentProminence) records.FindingSeverity {
	if prominenceRank(curr) > prominenceRank(prev) {
		return records.SeverityMedium
	}
	return records.SeverityLow
}

func prominenceRank(p records.ComponentProminence) int {
	switch p {
	case records.ProminenceModal:
		return 5
	case records.ProminenceTop:
		return 4
	case records.ProminenceCard:
		return 3
	case records.ProminenceSidebar:
		return 2
	case records.ProminenceMinimal:
		return 1
	default:
		return 0
	}
}

func urgencyChangeSeverity(prev, curr records.ComponentUrgency) records.FindingSeverity {
	if urgencyRank(curr) > urgencyRank(prev) {
		if curr == records.UrgencyCritical {
			return records.SeverityHigh
		}
		return records.SeverityMedium
	}
	return records.SeverityLow
}

func urgencyRank(u records.ComponentUrgency) int {
	switch u {
	case records.UrgencyCritical:
		return 4
	case records.UrgencyHigh:
		return 3
	case records.UrgencyMedium:
		return 2
	case records.UrgencyLow:
		return 1
	default:
		return 0
	}
}

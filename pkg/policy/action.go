package policy

import "github.com/luminasec/sentinel/pkg/feature"

// ActionFor maps a severity and age group to the recommended action. The
// table is deterministic: same severity and group, same action, always.
// Minor profiles escalate one notch sooner and carry guardian notification.
func ActionFor(sev feature.Severity, group feature.AgeGroup) feature.Action {
	minor := group == feature.GroupChild || group == feature.GroupTeen

	switch sev {
	case feature.SeverityEmergency:
		return feature.Action{Kind: feature.ActionEscalate, NotifyGuardian: minor}
	case feature.SeverityCritical:
		return feature.Action{Kind: feature.ActionBlock, NotifyGuardian: minor}
	case feature.SeverityHigh:
		if minor {
			return feature.Action{Kind: feature.ActionBlock, NotifyGuardian: true}
		}
		return feature.Action{Kind: feature.ActionBlock}
	case feature.SeverityMedium:
		if minor {
			return feature.Action{Kind: feature.ActionBlock}
		}
		return feature.Action{Kind: feature.ActionWarn}
	case feature.SeverityLow:
		return feature.Action{Kind: feature.ActionWarn}
	default:
		return feature.Action{Kind: feature.ActionAllow}
	}
}

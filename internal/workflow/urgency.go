package workflow

import (
	"github.com/samber/lo"

	"github.com/five82/toolroom/internal/api"
)

// Urgency ranks a pending maintenance.
type Urgency int

const (
	UrgencyLow Urgency = iota
	UrgencyMedium
	UrgencyHigh
)

func (u Urgency) String() string {
	switch u {
	case UrgencyHigh:
		return "high"
	case UrgencyMedium:
		return "medium"
	default:
		return "low"
	}
}

// Classify derives urgency from a machine's parts list: high when any
// required or recommended part is overdue, medium when required parts
// exist, low otherwise. A nil list is low.
func Classify(list *api.MaintenancePartsList) Urgency {
	if list == nil {
		return UrgencyLow
	}
	overdue := func(r api.PartRequirement) bool { return r.IsOverdue }
	if lo.SomeBy(list.RequiredParts, overdue) || lo.SomeBy(list.RecommendedParts, overdue) {
		return UrgencyHigh
	}
	if len(list.RequiredParts) > 0 {
		return UrgencyMedium
	}
	return UrgencyLow
}

// OverdueParts returns every overdue requirement, required first.
func OverdueParts(list *api.MaintenancePartsList) []api.PartRequirement {
	if list == nil {
		return nil
	}
	all := append(append([]api.PartRequirement(nil), list.RequiredParts...), list.RecommendedParts...)
	return lo.Filter(all, func(r api.PartRequirement, _ int) bool { return r.IsOverdue })
}

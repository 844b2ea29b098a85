package workflow

import "github.com/five82/toolroom/internal/api"

// Thresholds configure DueState.
type Thresholds struct {
	IntervalHours int // operating hours between scheduled maintenances
	WarningHours  int // how early a machine is flagged as due soon
}

// DefaultThresholds match the backend's default service interval.
var DefaultThresholds = Thresholds{IntervalHours: 500, WarningHours: 50}

// Due classifies how close a machine is to its next scheduled maintenance.
type Due int

const (
	DueOK Due = iota
	DueSoon
	DueOverdue
)

func (d Due) String() string {
	switch d {
	case DueSoon:
		return "due soon"
	case DueOverdue:
		return "overdue"
	default:
		return "ok"
	}
}

// DueInfo is the result of DueState.
type DueInfo struct {
	State     Due
	NextDueAt int // operating hours at which the next maintenance is due
	Remaining int // hours left until NextDueAt; negative when overdue
}

// DueState reports whether machine m is due for maintenance. Every
// performed maintenance covers one interval, so the next one is due at
// (MaintenanceCount+1) × IntervalHours. Machines that are out of service
// are never flagged. A non-positive interval disables the check.
func DueState(m api.Machine, th Thresholds) DueInfo {
	if th.IntervalHours <= 0 || m.Status == api.StatusOutOfService {
		return DueInfo{State: DueOK}
	}
	next := (m.MaintenanceCount + 1) * th.IntervalHours
	info := DueInfo{NextDueAt: next, Remaining: next - m.OperatingHours}
	switch {
	case info.Remaining <= 0:
		info.State = DueOverdue
	case info.Remaining <= th.WarningHours:
		info.State = DueSoon
	}
	return info
}

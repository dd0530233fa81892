package domain

import "strings"

// Status is a normalized station status. Besides the constants below it may
// hold raw upstream text that matched no rule.
type Status string

const (
	StatusAvailable    Status = "Available"
	StatusInUse        Status = "In Use"
	StatusNeedsService Status = "Needs Service"
	StatusUnreachable  Status = "Unreachable"
	StatusUnknown      Status = "Unknown"
)

// KnownStatuses lists the filterable statuses in display order.
var KnownStatuses = []Status{StatusAvailable, StatusInUse, StatusNeedsService, StatusUnreachable}

// IsKnown reports whether s is one of the four filterable statuses.
func (s Status) IsKnown() bool {
	switch s {
	case StatusAvailable, StatusInUse, StatusNeedsService, StatusUnreachable:
		return true
	default:
		return false
	}
}

// statusRule maps raw text to a status when any of its needles is a
// substring of the upper-cased text, or when the text equals exact.
type statusRule struct {
	contains []string
	exact    string
	status   Status
}

// statusRules are evaluated in order; first match wins.
var statusRules = []statusRule{
	{contains: []string{"AVAILABLE"}, status: StatusAvailable},
	{contains: []string{"CHARGING"}, status: StatusInUse},
	{contains: []string{"OCCUPIED"}, exact: "INUSE", status: StatusInUse},
	{contains: []string{"NEEDS SERVICE", "NEED SERVICE"}, status: StatusNeedsService},
	{contains: []string{"UNREACHABLE", "UNAVAILABLE", "DOWN", "OFFLINE"}, status: StatusUnreachable},
}

// NormalizeStatus folds a raw status into the canonical vocabulary. ok is
// false when the row had no status at all, which yields StatusUnknown.
// Text that matches no rule is returned unmodified.
func NormalizeStatus(raw string, ok bool) Status {
	if !ok {
		return StatusUnknown
	}
	upper := strings.ToUpper(raw)
	for _, rule := range statusRules {
		if rule.exact != "" && strings.TrimSpace(upper) == rule.exact {
			return rule.status
		}
		for _, needle := range rule.contains {
			if strings.Contains(upper, needle) {
				return rule.status
			}
		}
	}
	return Status(raw)
}

// StatusOf picks and normalizes the status of a row. Unmatched text keeps
// its original spacing.
func StatusOf(row Row) Status {
	return NormalizeStatus(PickRaw(row, StatusKeys...))
}

package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownFilterStatus is returned when a filter update names a status
// outside the four filterable ones.
var ErrUnknownFilterStatus = errors.New("unknown filter status")

// FilterState holds the enabled flag of each filterable status. Treat it as
// immutable; use With or Apply to derive a changed copy.
type FilterState map[Status]bool

// NewFilterState returns a state with every known status enabled.
func NewFilterState() FilterState {
	f := make(FilterState, len(KnownStatuses))
	for _, s := range KnownStatuses {
		f[s] = true
	}
	return f
}

// Passes reports whether a row with the given status should be shown.
// Statuses outside the known four are never filtered.
func (f FilterState) Passes(s Status) bool {
	if !s.IsKnown() {
		return true
	}
	enabled, ok := f[s]
	if !ok {
		return true
	}
	return enabled
}

// With returns a copy of f with one status toggled.
func (f FilterState) With(s Status, enabled bool) FilterState {
	out := f.clone()
	if s.IsKnown() {
		out[s] = enabled
	}
	return out
}

// Apply returns a copy of f with the updates applied. Keys are status names
// as displayed, e.g. "In Use".
func (f FilterState) Apply(updates map[string]bool) (FilterState, error) {
	out := f.clone()
	for k, enabled := range updates {
		s := Status(k)
		if !s.IsKnown() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFilterStatus, k)
		}
		out[s] = enabled
	}
	return out, nil
}

func (f FilterState) clone() FilterState {
	out := NewFilterState()
	for s, enabled := range f {
		if s.IsKnown() {
			out[s] = enabled
		}
	}
	return out
}

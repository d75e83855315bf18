package domain

import (
	"strings"
	"time"
)

// FilterAll is the sentinel that deactivates the team or lane predicate.
const FilterAll = "all"

// Filter narrows the task list for display. Zero values and the "all"
// sentinel deactivate the corresponding predicate; active predicates are
// AND-ed.
type Filter struct {
	TeamID      string
	Lane        string
	Search      string
	OverdueOnly bool
}

// Match reports whether the task satisfies every active predicate at the
// given instant.
func (f Filter) Match(t Task, now time.Time) bool {
	if f.TeamID != "" && f.TeamID != FilterAll && t.TeamID != f.TeamID {
		return false
	}
	if f.Lane != "" && f.Lane != FilterAll && string(t.Lane) != f.Lane {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(t.Title), strings.ToLower(f.Search)) {
		return false
	}
	if f.OverdueOnly {
		if t.EndAt == nil || !t.EndAt.Before(now) || t.Lane == LaneDone {
			return false
		}
	}
	return true
}

// Apply returns the tasks matching the filter, preserving input order.
func (f Filter) Apply(tasks []Task, now time.Time) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Match(t, now) {
			out = append(out, t)
		}
	}
	return out
}

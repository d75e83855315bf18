package domain

import (
	"sort"
	"time"
)

// GroupByLane partitions tasks into the fixed lane set and sorts each group
// ascending by sort order. Every lane key is present even when its group is
// empty, and the sort is stable so ties keep their input order.
func GroupByLane(tasks []Task) map[Lane][]Task {
	groups := make(map[Lane][]Task, len(Lanes()))
	for _, lane := range Lanes() {
		groups[lane] = []Task{}
	}
	for _, t := range tasks {
		groups[t.Lane] = append(groups[t.Lane], t)
	}
	for lane := range groups {
		g := groups[lane]
		sort.SliceStable(g, func(i, j int) bool { return g[i].SortOrder < g[j].SortOrder })
	}
	return groups
}

// CellKey addresses one day/hour cell of the weekly grid.
type CellKey struct {
	Day  int
	Hour int
}

// WeekGroups is the weekly-grid partition: scheduled tasks keyed by cell plus
// the unscheduled backlog bucket.
type WeekGroups struct {
	Cells   map[CellKey][]Task
	Backlog []Task
}

// GroupByCell partitions tasks for the week starting at weekStart. Tasks
// without a start time, or scheduled outside the week's working grid, land in
// the backlog bucket. Groups are sorted ascending by sort order, stable.
func GroupByCell(tasks []Task, weekStart time.Time) WeekGroups {
	out := WeekGroups{Cells: make(map[CellKey][]Task), Backlog: []Task{}}
	for _, t := range tasks {
		if t.StartAt == nil {
			out.Backlog = append(out.Backlog, t)
			continue
		}
		day, hour, ok := CellForTime(weekStart, *t.StartAt)
		if !ok {
			out.Backlog = append(out.Backlog, t)
			continue
		}
		key := CellKey{Day: day, Hour: hour}
		out.Cells[key] = append(out.Cells[key], t)
	}
	sort.SliceStable(out.Backlog, func(i, j int) bool {
		return out.Backlog[i].SortOrder < out.Backlog[j].SortOrder
	})
	for key := range out.Cells {
		g := out.Cells[key]
		sort.SliceStable(g, func(i, j int) bool { return g[i].SortOrder < g[j].SortOrder })
	}
	return out
}

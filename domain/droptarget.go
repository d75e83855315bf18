package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// TargetKind discriminates the three drop destinations a board can produce.
type TargetKind int

const (
	// TargetLane is a simple-board column identified by lane name.
	TargetLane TargetKind = iota
	// TargetCell is a weekly-grid day/hour cell.
	TargetCell
	// TargetBacklog is the weekly grid's unscheduled bucket.
	TargetBacklog
)

// DropTarget identifies where a dragged task was released: a lane, the
// literal "backlog" bucket, or a "cell-{dayIndex}-{hour}" grid cell, plus the
// index within that group.
type DropTarget struct {
	Kind  TargetKind
	Lane  Lane
	Day   int
	Hour  int
	Index int
}

// SamePlace reports whether two targets address the same group and index,
// which makes a drop a no-op.
func (d DropTarget) SamePlace(o DropTarget) bool {
	if d.Index != o.Index || d.Kind != o.Kind {
		return false
	}
	switch d.Kind {
	case TargetLane:
		return d.Lane == o.Lane
	case TargetCell:
		return d.Day == o.Day && d.Hour == o.Hour
	default:
		return true
	}
}

// ID renders the droppable identifier the UI convention uses.
func (d DropTarget) ID() string {
	switch d.Kind {
	case TargetCell:
		return fmt.Sprintf("cell-%d-%d", d.Day, d.Hour)
	case TargetBacklog:
		return "backlog"
	default:
		return string(d.Lane)
	}
}

// ParseDropTarget decodes a droppable identifier. Simple-board columns are
// lane names; the weekly grid uses "backlog" and "cell-{dayIndex}-{hour}".
// The backlog identifier is resolved as a lane on the simple board and as the
// unscheduled bucket on the grid, so grid callers must check Kind via
// ParseGridTarget instead.
func ParseDropTarget(id string, index int) (DropTarget, error) {
	if strings.HasPrefix(id, "cell-") {
		parts := strings.Split(id, "-")
		if len(parts) != 3 {
			return DropTarget{}, fmt.Errorf("malformed cell target %q", id)
		}
		day, err := strconv.Atoi(parts[1])
		if err != nil || day < 0 || day >= WorkDays {
			return DropTarget{}, fmt.Errorf("bad day index in target %q", id)
		}
		hour, err := strconv.Atoi(parts[2])
		if err != nil || hour < WorkHoursStart || hour >= WorkHoursEnd {
			return DropTarget{}, fmt.Errorf("bad hour in target %q", id)
		}
		return DropTarget{Kind: TargetCell, Day: day, Hour: hour, Index: index}, nil
	}
	lane := Lane(id)
	if !lane.Valid() {
		return DropTarget{}, fmt.Errorf("unknown drop target %q", id)
	}
	return DropTarget{Kind: TargetLane, Lane: lane, Index: index}, nil
}

// ParseGridTarget decodes a weekly-grid droppable identifier, where "backlog"
// means the unscheduled bucket rather than the backlog lane.
func ParseGridTarget(id string, index int) (DropTarget, error) {
	if id == "backlog" {
		return DropTarget{Kind: TargetBacklog, Index: index}, nil
	}
	t, err := ParseDropTarget(id, index)
	if err != nil {
		return DropTarget{}, err
	}
	if t.Kind != TargetCell {
		return DropTarget{}, fmt.Errorf("target %q is not a grid cell", id)
	}
	return t, nil
}

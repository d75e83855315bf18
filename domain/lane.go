package domain

// Lane is a workflow column on the board. Lanes are a fixed set; they are not
// stored entities.
type Lane string

const (
	LaneBacklog Lane = "backlog"
	LaneTodo    Lane = "todo"
	LaneDoing   Lane = "doing"
	LaneDone    Lane = "done"
	LaneBlocked Lane = "blocked"
)

// Lanes returns the fixed lane set in display order.
func Lanes() []Lane {
	return []Lane{LaneBacklog, LaneTodo, LaneDoing, LaneDone, LaneBlocked}
}

// Valid reports whether l is one of the five known lanes.
func (l Lane) Valid() bool {
	switch l {
	case LaneBacklog, LaneTodo, LaneDoing, LaneDone, LaneBlocked:
		return true
	}
	return false
}

// StatusForLane is the fixed lane to status mapping applied when a task is
// dropped into a lane. Callers must skip the resulting status update when it
// equals the task's current status.
func StatusForLane(l Lane) Status {
	switch l {
	case LaneDone:
		return StatusDone
	case LaneDoing:
		return StatusInProgress
	case LaneBlocked:
		return StatusCancelled
	default: // todo, backlog
		return StatusPending
	}
}

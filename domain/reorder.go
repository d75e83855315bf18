package domain

// OrderUpdate assigns a new sort order to one task.
type OrderUpdate struct {
	ID        string
	SortOrder int
}

// ReorderForLaneMove plans the sort-order renumbering that keeps both lanes
// contiguous (0..n-1) after moving the given task to dest. It returns the
// updates for every task whose order changes, excluding the moved task itself
// (whose lane and order are written by the move update). The moved task is
// inserted at dest.Index, clamped to the destination group size.
func ReorderForLaneMove(tasks []Task, movedID string, dest DropTarget) []OrderUpdate {
	if dest.Kind != TargetLane {
		return nil
	}
	var moved *Task
	for i := range tasks {
		if tasks[i].ID == movedID {
			moved = &tasks[i]
			break
		}
	}
	if moved == nil {
		return nil
	}

	groups := GroupByLane(tasks)
	var updates []OrderUpdate

	// Compact the source lane, skipping the moved task.
	next := 0
	for _, t := range groups[moved.Lane] {
		if t.ID == movedID {
			continue
		}
		if moved.Lane == dest.Lane {
			// Intra-lane move: the gap left at dest.Index belongs to the
			// moved task.
			if next == dest.Index {
				next++
			}
		}
		if t.SortOrder != next {
			updates = append(updates, OrderUpdate{ID: t.ID, SortOrder: next})
		}
		next++
	}
	if moved.Lane == dest.Lane {
		return updates
	}

	// Shift the destination lane open at the insertion point.
	idx := dest.Index
	if n := len(groups[dest.Lane]); idx > n {
		idx = n
	}
	next = 0
	for _, t := range groups[dest.Lane] {
		if next == idx {
			next++
		}
		if t.SortOrder != next {
			updates = append(updates, OrderUpdate{ID: t.ID, SortOrder: next})
		}
		next++
	}
	return updates
}

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/zapprosite/zappro-obras/domain"
)

// moveRequest is the server leg of a drag reconciliation. Target uses the
// board's droppable encoding: a lane name, the literal "backlog" bucket, or
// "cell-{dayIndex}-{hour}". WeekStart anchors cell targets and is required
// for them.
type moveRequest struct {
	Target    string     `json:"target"`
	Index     int        `json:"index"`
	Grid      bool       `json:"grid,omitempty"`
	WeekStart *time.Time `json:"weekStart,omitempty"`
}

// moveTask applies a placement update and renumbers the affected lanes so
// sort orders stay contiguous. Requests may carry an Idempotency-Key header;
// replays return the task's current state without reapplying the move.
func moveTask(store Storage, auth Authenticator, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		projectID := c.Param("projectID")
		taskID := c.Param("id")

		var req moveRequest
		if err := decodeBody(c.Request().Body, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.Index < 0 {
			return c.String(http.StatusBadRequest, "negative index")
		}

		var target domain.DropTarget
		if req.Grid {
			target, err = domain.ParseGridTarget(req.Target, req.Index)
		} else {
			target, err = domain.ParseDropTarget(req.Target, req.Index)
		}
		if err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}
		if target.Kind == domain.TargetCell && req.WeekStart == nil {
			return c.String(http.StatusBadRequest, "weekStart required for cell targets")
		}

		idemKey := c.Request().Header.Get("Idempotency-Key")
		if idemKey != "" && deduper != nil {
			fresh, derr := deduper.Add(ctx, userID, idemKey)
			if derr != nil {
				c.Logger().Errorf("deduper: %v", derr)
			} else if !fresh {
				task, gerr := store.GetTask(ctx, projectID, taskID)
				if gerr != nil {
					return c.String(http.StatusInternalServerError, gerr.Error())
				}
				return c.JSON(http.StatusOK, task)
			}
		}

		releaseKey := func() {
			if idemKey != "" && deduper != nil {
				if rerr := deduper.Remove(ctx, userID, idemKey); rerr != nil {
					c.Logger().Errorf("deduper rollback: %v", rerr)
				}
			}
		}

		current, err := store.GetTask(ctx, projectID, taskID)
		if err != nil {
			releaseKey()
			var notFound TaskNotFoundError
			if errors.As(err, &notFound) {
				return c.String(http.StatusNotFound, notFound.Error())
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		// Lane moves need the project list twice over: to clamp the insert
		// index to the destination group size, and to plan the renumbering
		// that keeps both lanes contiguous.
		var snapshot []domain.Task
		if target.Kind == domain.TargetLane {
			snapshot, err = store.FetchTasks(ctx, projectID)
			if err != nil {
				c.Logger().Errorf("renumber fetch: %v", err)
				snapshot = nil
			} else {
				target.Index = clampLaneIndex(snapshot, taskID, target)
			}
		}

		patch := movePatch(current, target, req.WeekStart)

		task, err := store.UpdateTask(ctx, projectID, taskID, patch)
		if err != nil {
			releaseKey()
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		if target.Kind == domain.TargetLane && snapshot != nil {
			if updates := renumberPlan(snapshot, current, target); len(updates) > 0 {
				if uerr := store.UpdateSortOrders(ctx, projectID, updates); uerr != nil {
					c.Logger().Errorf("renumber: %v", uerr)
				}
			}
		}

		sendChange(store, changeEvent(projectID, taskID, domain.TaskMoved))
		return c.JSON(http.StatusOK, task)
	}
}

// movePatch translates a drop target into the exact fields that change.
func movePatch(current domain.Task, target domain.DropTarget, weekStart *time.Time) domain.TaskPatch {
	idx := target.Index
	patch := domain.TaskPatch{SortOrder: &idx}
	switch target.Kind {
	case domain.TargetLane:
		lane := target.Lane
		patch.Lane = &lane
		if derived := domain.StatusForLane(lane); derived != current.Status {
			patch.Status = &derived
		}
	case domain.TargetCell:
		start, end := domain.CellTimes(*weekStart, target.Day, target.Hour)
		patch.StartAt = &start
		patch.EndAt = &end
	case domain.TargetBacklog:
		patch.ClearSchedule = true
	}
	return patch
}

// clampLaneIndex bounds the insert index by the destination group size so
// the moved task lands at the end of the lane instead of leaving a gap.
func clampLaneIndex(tasks []domain.Task, movedID string, target domain.DropTarget) int {
	size := 0
	for _, t := range tasks {
		if t.Lane == target.Lane && t.ID != movedID {
			size++
		}
	}
	if target.Index > size {
		return size
	}
	return target.Index
}

// renumberPlan builds the sort-order updates against the fetched snapshot,
// normalizing the moved task back to its pre-move lane in case the fetch
// already observed the move.
func renumberPlan(tasks []domain.Task, premove domain.Task, target domain.DropTarget) []domain.OrderUpdate {
	for i := range tasks {
		if tasks[i].ID == premove.ID {
			tasks[i].Lane = premove.Lane
			tasks[i].SortOrder = premove.SortOrder
			break
		}
	}
	return domain.ReorderForLaneMove(tasks, premove.ID, target)
}

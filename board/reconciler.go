package board

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/zapprosite/zappro-obras/domain"
)

// Phase is the reconciler's coarse state. One run per drag gesture:
// Idle -> Dragging -> Reconciling -> Idle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseDragging
	PhaseReconciling
)

// Variant selects how drop targets translate into task placement.
type Variant int

const (
	// VariantLanes is the simple five-column board: a drop sets lane and
	// sort order and derives the status from the lane.
	VariantLanes Variant = iota
	// VariantWeekGrid is the weekly schedule: a drop sets or clears the
	// scheduled window and never touches status.
	VariantWeekGrid
)

// DropEvent is the single input of a reconciliation run.
type DropEvent struct {
	TaskID string
	Source domain.DropTarget
	Dest   domain.DropTarget
}

// Move pairs the optimistic store patch with the backend request. The patch
// carries exactly the fields the drop changed.
type Move struct {
	TaskID string
	Patch  domain.TaskPatch
}

// Engine owns the task store for one project view and translates drag
// gestures into consistent (store, backend) transitions. Writes are applied
// to the store optimistically before the backend call; on failure the store
// is restored from a fresh fetch rather than a field-level undo, since the
// optimistic write may have raced with other changes.
//
// Concurrent reconciliations are intentionally not serialized or fenced:
// each is independent and the backend sees last-write-wins, matching the
// tool's single-editor usage. A rollback re-fetch from an earlier drag can
// overwrite a later in-flight optimistic change.
type Engine struct {
	store     *Store
	backend   Backend
	notify    Notifier
	logger    *log.Logger
	projectID string
	variant   Variant

	weekStart atomic.Pointer[time.Time]
	phase     atomic.Int32
}

// NewLaneEngine builds an engine for the simple lane board.
func NewLaneEngine(store *Store, backend Backend, notify Notifier, logger *log.Logger, projectID string) *Engine {
	return newEngine(store, backend, notify, logger, projectID, VariantLanes)
}

// NewWeekEngine builds an engine for the weekly grid showing the week
// containing ref.
func NewWeekEngine(store *Store, backend Backend, notify Notifier, logger *log.Logger, projectID string, ref time.Time) *Engine {
	e := newEngine(store, backend, notify, logger, projectID, VariantWeekGrid)
	e.SetWeek(ref)
	return e
}

func newEngine(store *Store, backend Backend, notify Notifier, logger *log.Logger, projectID string, v Variant) *Engine {
	if store == nil {
		store = NewStore()
	}
	if notify == nil {
		notify = NopNotifier{}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Engine{store: store, backend: backend, notify: notify, logger: logger, projectID: projectID, variant: v}
}

// Store exposes the engine's task store for derivations (filtering,
// partitioning) and wholesale replacement by the fetch paths.
func (e *Engine) Store() *Store { return e.store }

// Phase returns the current gesture phase.
func (e *Engine) Phase() Phase { return Phase(e.phase.Load()) }

// SetWeek moves the grid to the week containing ref.
func (e *Engine) SetWeek(ref time.Time) {
	ws := domain.WeekStart(ref)
	e.weekStart.Store(&ws)
}

// WeekStart returns the Monday the grid is currently showing.
func (e *Engine) WeekStart() time.Time {
	if ws := e.weekStart.Load(); ws != nil {
		return *ws
	}
	return domain.WeekStart(time.Now())
}

// DragStart marks the gesture as in flight. No store mutation happens while
// dragging.
func (e *Engine) DragStart() {
	e.phase.Store(int32(PhaseDragging))
}

// DragCancel returns to idle without reconciling (drop outside any target).
func (e *Engine) DragCancel() {
	e.phase.Store(int32(PhaseIdle))
}

// Resolve computes the move for a drop event without touching any state. The
// second return is false when the drop is a no-op: same place as the source,
// or the task is unknown to the store.
func (e *Engine) Resolve(ev DropEvent) (Move, bool) {
	if ev.Dest.SamePlace(ev.Source) {
		return Move{}, false
	}
	task, ok := e.store.Get(ev.TaskID)
	if !ok {
		// Store/UI desync; the store is the drag source, so this should
		// not occur. Abort silently.
		e.logger.WithField("task", ev.TaskID).Debug("drop for unknown task ignored")
		return Move{}, false
	}

	idx := ev.Dest.Index
	patch := domain.TaskPatch{SortOrder: &idx}
	switch e.variant {
	case VariantWeekGrid:
		switch ev.Dest.Kind {
		case domain.TargetBacklog:
			patch.ClearSchedule = true
		case domain.TargetCell:
			start, end := domain.CellTimes(e.WeekStart(), ev.Dest.Day, ev.Dest.Hour)
			patch.StartAt = &start
			patch.EndAt = &end
		default:
			e.logger.WithField("target", ev.Dest.ID()).Warn("lane drop on week grid ignored")
			return Move{}, false
		}
	default:
		if ev.Dest.Kind != domain.TargetLane {
			e.logger.WithField("target", ev.Dest.ID()).Warn("grid drop on lane board ignored")
			return Move{}, false
		}
		lane := ev.Dest.Lane
		patch.Lane = &lane
		if derived := domain.StatusForLane(lane); derived != task.Status {
			patch.Status = &derived
		}
	}
	return Move{TaskID: ev.TaskID, Patch: patch}, true
}

// Reconcile runs the full drag-end path: resolve, optimistic apply, backend
// update, and compensation on failure. The optimistic store write always
// happens before the backend call, so the board reflects the move with zero
// latency. A backend failure is recovered by a corrective re-fetch and an
// error notification; the returned error is informational only, the store
// has already been restored to ground truth by the time Reconcile returns.
func (e *Engine) Reconcile(ctx context.Context, ev DropEvent) error {
	e.phase.Store(int32(PhaseReconciling))
	defer e.phase.Store(int32(PhaseIdle))

	move, ok := e.Resolve(ev)
	if !ok {
		return nil
	}

	e.store.ApplyOptimisticMove(move.TaskID, move.Patch)

	if _, err := e.backend.UpdateTask(ctx, move.TaskID, move.Patch); err != nil {
		e.logger.WithFields(log.Fields{"task": move.TaskID, "target": ev.Dest.ID()}).
			Errorf("move update failed: %v", err)
		e.notify.Error("Erro ao mover tarefa", err.Error())
		if rerr := e.Refresh(ctx); rerr != nil {
			e.logger.Errorf("corrective re-fetch failed: %v", rerr)
		}
		return fmt.Errorf("move task %s: %w", move.TaskID, err)
	}

	e.notify.Success("Tarefa movida", "Tarefa movida para "+ev.Dest.ID())
	return nil
}

// Refresh replaces the store with the backend's current task list.
func (e *Engine) Refresh(ctx context.Context) error {
	tasks, err := e.backend.FetchTasks(ctx, e.projectID)
	if err != nil {
		return err
	}
	e.store.ReplaceAll(tasks)
	return nil
}

// BindRealtime subscribes to backend change notifications and re-fetches on
// every event, replacing the store wholesale. It returns the unsubscribe
// function. Subscription loss is best effort: the board degrades to stale
// until the next manual action.
func (e *Engine) BindRealtime(ctx context.Context) (func(), error) {
	return e.backend.Subscribe(ctx, "tarefas", func() {
		if err := e.Refresh(ctx); err != nil {
			e.logger.Errorf("realtime re-fetch failed: %v", err)
		}
	})
}

package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapprosite/zappro-obras/domain"
)

type fakeBackend struct {
	mu        sync.Mutex
	tasks     []domain.Task
	updates   []Move
	updateErr error
	fetches   int
}

func (f *fakeBackend) FetchTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	out := make([]domain.Task, len(f.tasks))
	copy(out, f.tasks)
	return out, nil
}

func (f *fakeBackend) CreateTask(ctx context.Context, projectID string, fields domain.CreateTask) (domain.Task, error) {
	return domain.Task{}, errors.New("not implemented")
}

func (f *fakeBackend) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, Move{TaskID: id, Patch: patch})
	if f.updateErr != nil {
		return domain.Task{}, f.updateErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			patch.Apply(&f.tasks[i])
			return f.tasks[i], nil
		}
	}
	return domain.Task{}, errors.New("task not found")
}

func (f *fakeBackend) SoftDeleteTask(ctx context.Context, id string) error { return nil }

func (f *fakeBackend) Subscribe(ctx context.Context, entity string, onChange func()) (func(), error) {
	return func() {}, nil
}

func (f *fakeBackend) lastUpdate(t *testing.T) Move {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.updates)
	return f.updates[len(f.updates)-1]
}

func (f *fakeBackend) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type recordingNotifier struct {
	successes, failures []string
}

func (n *recordingNotifier) Success(title, detail string) { n.successes = append(n.successes, title) }
func (n *recordingNotifier) Error(title, detail string)   { n.failures = append(n.failures, title) }

func laneEngineFixture(t *testing.T) (*Engine, *fakeBackend, *recordingNotifier) {
	t.Helper()
	backend := &fakeBackend{tasks: []domain.Task{
		{ID: "a", Lane: domain.LaneTodo, Status: domain.StatusPending, SortOrder: 0},
		{ID: "b", Lane: domain.LaneTodo, Status: domain.StatusPending, SortOrder: 1},
		{ID: "c", Lane: domain.LaneDoing, Status: domain.StatusInProgress, SortOrder: 0},
	}}
	notify := &recordingNotifier{}
	e := NewLaneEngine(NewStore(), backend, notify, nil, "obra-1")
	require.NoError(t, e.Refresh(context.Background()))
	return e, backend, notify
}

func laneTarget(lane domain.Lane, index int) domain.DropTarget {
	return domain.DropTarget{Kind: domain.TargetLane, Lane: lane, Index: index}
}

func TestReconcileSamePlaceIsNoOp(t *testing.T) {
	e, backend, notify := laneEngineFixture(t)

	err := e.Reconcile(context.Background(), DropEvent{
		TaskID: "a",
		Source: laneTarget(domain.LaneTodo, 0),
		Dest:   laneTarget(domain.LaneTodo, 0),
	})
	require.NoError(t, err)

	assert.Zero(t, backend.updateCount())
	assert.Empty(t, notify.successes)
	got, _ := e.Store().Get("a")
	assert.Equal(t, domain.LaneTodo, got.Lane)
	assert.Equal(t, PhaseIdle, e.Phase())
}

func TestReconcileUnknownTaskIsSilentNoOp(t *testing.T) {
	e, backend, notify := laneEngineFixture(t)

	err := e.Reconcile(context.Background(), DropEvent{
		TaskID: "ghost",
		Source: laneTarget(domain.LaneTodo, 0),
		Dest:   laneTarget(domain.LaneDoing, 0),
	})
	require.NoError(t, err)
	assert.Zero(t, backend.updateCount())
	assert.Empty(t, notify.failures)
}

func TestReconcileLaneMoveDerivesStatus(t *testing.T) {
	e, backend, notify := laneEngineFixture(t)

	err := e.Reconcile(context.Background(), DropEvent{
		TaskID: "a",
		Source: laneTarget(domain.LaneTodo, 0),
		Dest:   laneTarget(domain.LaneDone, 1),
	})
	require.NoError(t, err)

	got, _ := e.Store().Get("a")
	assert.Equal(t, domain.LaneDone, got.Lane)
	assert.Equal(t, domain.StatusDone, got.Status)
	assert.Equal(t, 1, got.SortOrder)

	sent := backend.lastUpdate(t)
	require.NotNil(t, sent.Patch.Lane)
	assert.Equal(t, domain.LaneDone, *sent.Patch.Lane)
	require.NotNil(t, sent.Patch.Status)
	assert.Equal(t, domain.StatusDone, *sent.Patch.Status)

	assert.Equal(t, []string{"Tarefa movida"}, notify.successes)
}

func TestReconcileSkipsStatusWhenUnchanged(t *testing.T) {
	e, backend, _ := laneEngineFixture(t)

	// b is pending; todo derives pending, so no status field travels.
	err := e.Reconcile(context.Background(), DropEvent{
		TaskID: "b",
		Source: laneTarget(domain.LaneTodo, 1),
		Dest:   laneTarget(domain.LaneTodo, 0),
	})
	require.NoError(t, err)

	sent := backend.lastUpdate(t)
	assert.Nil(t, sent.Patch.Status)
	require.NotNil(t, sent.Patch.Lane)
	assert.Equal(t, domain.LaneTodo, *sent.Patch.Lane)
}

func TestReconcileOptimisticVisibility(t *testing.T) {
	e, backend, _ := laneEngineFixture(t)

	// Fail the backend call; the optimistic write must still have landed
	// before the call, which the corrective re-fetch then undoes.
	backend.updateErr = errors.New("boom")

	err := e.Reconcile(context.Background(), DropEvent{
		TaskID: "a",
		Source: laneTarget(domain.LaneTodo, 0),
		Dest:   laneTarget(domain.LaneDoing, 0),
	})
	require.Error(t, err)

	// The update request carries the optimistic fields, proving the store
	// write preceded the call.
	sent := backend.lastUpdate(t)
	require.NotNil(t, sent.Patch.Lane)
	assert.Equal(t, domain.LaneDoing, *sent.Patch.Lane)
}

func TestReconcileRollbackMatchesServerTruth(t *testing.T) {
	e, backend, notify := laneEngineFixture(t)
	backend.updateErr = errors.New("storage unavailable")

	err := e.Reconcile(context.Background(), DropEvent{
		TaskID: "a",
		Source: laneTarget(domain.LaneTodo, 0),
		Dest:   laneTarget(domain.LaneDoing, 0),
	})
	require.Error(t, err)

	// Store equals a fresh fetch result, not a field-level undo.
	assert.Equal(t, backend.tasks, e.Store().Tasks())
	got, _ := e.Store().Get("a")
	assert.Equal(t, domain.LaneTodo, got.Lane)

	assert.Equal(t, []string{"Erro ao mover tarefa"}, notify.failures)
	assert.Empty(t, notify.successes)
	assert.Equal(t, PhaseIdle, e.Phase())
}

func TestReconcileGridCellSetsScheduledWindow(t *testing.T) {
	start := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	backend := &fakeBackend{tasks: []domain.Task{{ID: "a", Lane: domain.LaneTodo}}}
	e := NewWeekEngine(NewStore(), backend, nil, nil, "obra-1", start.Add(26*time.Hour))
	require.NoError(t, e.Refresh(context.Background()))
	assert.Equal(t, start, e.WeekStart())

	err := e.Reconcile(context.Background(), DropEvent{
		TaskID: "a",
		Source: domain.DropTarget{Kind: domain.TargetBacklog},
		Dest:   domain.DropTarget{Kind: domain.TargetCell, Day: 2, Hour: 9},
	})
	require.NoError(t, err)

	got, _ := e.Store().Get("a")
	require.NotNil(t, got.StartAt)
	require.NotNil(t, got.EndAt)
	assert.Equal(t, time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC), *got.StartAt)
	assert.Equal(t, time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC), *got.EndAt)

	// Status and lane stay untouched on the grid.
	assert.Equal(t, domain.LaneTodo, got.Lane)
	sent := backend.lastUpdate(t)
	assert.Nil(t, sent.Patch.Status)
	assert.Nil(t, sent.Patch.Lane)
}

func TestReconcileGridBacklogClearsSchedule(t *testing.T) {
	start := time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	backend := &fakeBackend{tasks: []domain.Task{{ID: "a", StartAt: &start, EndAt: &end}}}
	e := NewWeekEngine(NewStore(), backend, nil, nil, "obra-1", start)
	require.NoError(t, e.Refresh(context.Background()))

	err := e.Reconcile(context.Background(), DropEvent{
		TaskID: "a",
		Source: domain.DropTarget{Kind: domain.TargetCell, Day: 2, Hour: 9},
		Dest:   domain.DropTarget{Kind: domain.TargetBacklog},
	})
	require.NoError(t, err)

	got, _ := e.Store().Get("a")
	assert.Nil(t, got.StartAt)
	assert.Nil(t, got.EndAt)
	assert.True(t, backend.lastUpdate(t).Patch.ClearSchedule)
}

func TestReconcileRejectsMismatchedTargetKind(t *testing.T) {
	e, backend, _ := laneEngineFixture(t)

	err := e.Reconcile(context.Background(), DropEvent{
		TaskID: "a",
		Source: laneTarget(domain.LaneTodo, 0),
		Dest:   domain.DropTarget{Kind: domain.TargetCell, Day: 1, Hour: 8},
	})
	require.NoError(t, err)
	assert.Zero(t, backend.updateCount())
}

func TestDragPhases(t *testing.T) {
	e, _, _ := laneEngineFixture(t)

	assert.Equal(t, PhaseIdle, e.Phase())
	e.DragStart()
	assert.Equal(t, PhaseDragging, e.Phase())
	e.DragCancel()
	assert.Equal(t, PhaseIdle, e.Phase())
}

func TestBindRealtimeRefreshesOnChange(t *testing.T) {
	backend := &fakeBackend{tasks: []domain.Task{{ID: "a"}}}
	changed := make(chan func(), 1)
	backend2 := &subscribingBackend{fakeBackend: backend, onSubscribe: func(fn func()) { changed <- fn }}

	e := NewLaneEngine(NewStore(), backend2, nil, nil, "obra-1")
	unsubscribe, err := e.BindRealtime(context.Background())
	require.NoError(t, err)
	defer unsubscribe()

	backend.mu.Lock()
	backend.tasks = append(backend.tasks, domain.Task{ID: "b"})
	backend.mu.Unlock()

	(<-changed)()
	assert.Equal(t, 2, e.Store().Len())
}

type subscribingBackend struct {
	*fakeBackend
	onSubscribe func(func())
}

func (s *subscribingBackend) Subscribe(ctx context.Context, entity string, onChange func()) (func(), error) {
	s.onSubscribe(onChange)
	return func() {}, nil
}

package board

import (
	"sync"

	"github.com/zapprosite/zappro-obras/domain"
)

// Store is the in-memory task collection backing one project board. It is the
// single source of truth for display; it is replaced wholesale on fetch and
// mutated field-wise only by the reconciler. All mutation paths go through
// this type so they stay auditable.
//
// The original client ran on a single UI thread; here the realtime refresh
// goroutine and the drag path may touch the store concurrently, so access is
// serialized with a mutex instead.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
	order []string // arrival order of the last ReplaceAll plus appends
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{tasks: make(map[string]*domain.Task)}
}

// ReplaceAll discards the current contents in favor of a fresh fetch result.
func (s *Store) ReplaceAll(tasks []domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[string]*domain.Task, len(tasks))
	s.order = make([]string, 0, len(tasks))
	for i := range tasks {
		t := tasks[i]
		if _, dup := s.tasks[t.ID]; dup {
			continue
		}
		s.tasks[t.ID] = &t
		s.order = append(s.order, t.ID)
	}
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id string) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, false
	}
	return *t, true
}

// Tasks returns a snapshot of all tasks in arrival order.
func (s *Store) Tasks() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.tasks[id])
	}
	return out
}

// Len reports the number of tasks held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// ApplyOptimisticMove patches a single task in place ahead of backend
// confirmation. It reports false when the task is not present.
func (s *Store) ApplyOptimisticMove(id string, patch domain.TaskPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	patch.Apply(t)
	return true
}

package board

import (
	"context"

	"github.com/zapprosite/zappro-obras/domain"
)

// Backend is the hosted service the board talks to. FetchTasks returns all
// non-deleted tasks for a project with team names joined; UpdateTask applies a
// partial update and returns the full record; Subscribe delivers a
// notification on any change to the named entity, and the only expected
// reaction is a full re-fetch.
type Backend interface {
	FetchTasks(ctx context.Context, projectID string) ([]domain.Task, error)
	CreateTask(ctx context.Context, projectID string, fields domain.CreateTask) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error)
	SoftDeleteTask(ctx context.Context, id string) error
	Subscribe(ctx context.Context, entity string, onChange func()) (func(), error)
}

// Notifier surfaces transient user-facing outcomes. Board logic never treats
// a notification failure as an error.
type Notifier interface {
	Success(title, detail string)
	Error(title, detail string)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Success(string, string) {}
func (NopNotifier) Error(string, string)   {}

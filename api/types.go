package api

import (
	"context"

	"github.com/zapprosite/zappro-obras/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	FetchTasks(ctx context.Context, projectID string) ([]domain.Task, error)
	FetchTeams(ctx context.Context, projectID string) ([]domain.Team, error)
	GetTask(ctx context.Context, projectID, taskID string) (domain.Task, error)
	CreateTask(ctx context.Context, projectID string, fields domain.CreateTask) (domain.Task, error)
	UpdateTask(ctx context.Context, projectID, taskID string, patch domain.TaskPatch) (domain.Task, error)
	SoftDeleteTask(ctx context.Context, projectID, taskID string) error
	UpdateSortOrders(ctx context.Context, projectID string, updates []domain.OrderUpdate) error
	EnqueueChange(ctx context.Context, ev domain.ChangeEvent) error
}

// TaskNotFoundError is matched with errors.As to translate storage misses
// into 404 responses.
type TaskNotFoundError interface {
	error
	TaskNotFound()
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents reprocessing of repeated move requests.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when the write fails so the
	// caller may retry.
	Remove(ctx context.Context, userID, key string) error
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

type teamsResponse struct {
	Teams []domain.Team `json:"teams"`
}

const requestBodyMaxSize = 64 * 1024 // 64 KiB

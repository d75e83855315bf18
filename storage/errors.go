package storage

import "fmt"

// TaskNotFoundError is returned when a task id does not exist in the project
// partition.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.TaskID)
}

// TaskNotFound marks the error type for errors.As checks at the API boundary.
func (e *TaskNotFoundError) TaskNotFound() {}

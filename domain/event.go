package domain

// Change event types published on the change feed.
const (
	TaskCreated = "task-created"
	TaskUpdated = "task-updated"
	TaskMoved   = "task-moved"
	TaskDeleted = "task-deleted"
)

// ChangeEvent notifies subscribers that a row of the named entity changed.
// Subscribers are expected to re-fetch; the event intentionally carries no
// field data.
type ChangeEvent struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Entity    string `json:"entity"`
	EntityID  string `json:"entityId"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

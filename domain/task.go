package domain

import "time"

// Status is the business state of a task. It correlates with Lane but may be
// changed independently of it through a full-field edit.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// Priority orders tasks by urgency for display purposes only.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Task represents a single board item for a construction project.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	Lane        Lane       `json:"lane"`
	SortOrder   int        `json:"sortOrder"`
	StartAt     *time.Time `json:"startAt,omitempty"`
	EndAt       *time.Time `json:"endAt,omitempty"`
	TeamID      string     `json:"teamId,omitempty"`
	TeamName    string     `json:"teamName,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Team is referenced by tasks and loaded read-only by the board.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateTask carries the fields accepted when inserting a task. The server
// assigns the ID and timestamps and fills in defaults for zero-valued enums.
type CreateTask struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	Lane        Lane       `json:"lane,omitempty"`
	SortOrder   int        `json:"sortOrder,omitempty"`
	StartAt     *time.Time `json:"startAt,omitempty"`
	EndAt       *time.Time `json:"endAt,omitempty"`
	TeamID      string     `json:"teamId,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// ApplyDefaults fills the defaults the backend guarantees for unspecified
// fields: lane "backlog", status "pending", priority "medium".
func (c *CreateTask) ApplyDefaults() {
	if c.Lane == "" {
		c.Lane = LaneBacklog
	}
	if c.Status == "" {
		c.Status = StatusPending
	}
	if c.Priority == "" {
		c.Priority = PriorityMedium
	}
}

// TaskPatch carries a partial update. Nil fields are left untouched.
// ClearSchedule drops StartAt/EndAt to null and wins over the pointer fields,
// which is how a grid task is returned to the unscheduled backlog bucket.
type TaskPatch struct {
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Status        *Status    `json:"status,omitempty"`
	Priority      *Priority  `json:"priority,omitempty"`
	Lane          *Lane      `json:"lane,omitempty"`
	SortOrder     *int       `json:"sortOrder,omitempty"`
	StartAt       *time.Time `json:"startAt,omitempty"`
	EndAt         *time.Time `json:"endAt,omitempty"`
	ClearSchedule bool       `json:"clearSchedule,omitempty"`
	TeamID        *string    `json:"teamId,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p TaskPatch) IsZero() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.Lane == nil && p.SortOrder == nil &&
		p.StartAt == nil && p.EndAt == nil && !p.ClearSchedule &&
		p.TeamID == nil && p.Notes == nil
}

// Apply merges the patch into the task.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Lane != nil {
		t.Lane = *p.Lane
	}
	if p.SortOrder != nil {
		t.SortOrder = *p.SortOrder
	}
	if p.ClearSchedule {
		t.StartAt = nil
		t.EndAt = nil
	} else {
		if p.StartAt != nil {
			at := *p.StartAt
			t.StartAt = &at
		}
		if p.EndAt != nil {
			at := *p.EndAt
			t.EndAt = &at
		}
	}
	if p.TeamID != nil {
		t.TeamID = *p.TeamID
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/google/uuid"

	"github.com/zapprosite/zappro-obras/domain"
)

// Storage provides access to the underlying persistence mechanisms. Tasks and
// teams are partitioned by project; deletes are soft (a Deleted flag) and
// flagged rows never leave FetchTasks.
type Storage struct {
	taskTable   *aztables.Client
	teamTable   *aztables.Client
	changeQueue *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable, teamsTable, changeQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	cq, err := azqueue.NewQueueClientFromConnectionString(connStr, changeQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		taskTable:   svc.NewClient(tasksTable),
		teamTable:   svc.NewClient(teamsTable),
		changeQueue: cq,
	}, nil
}

type taskEntity struct {
	aztables.Entity
	Title       string `json:"Title"`
	Description string `json:"Description"`
	Status      string `json:"Status"`
	Priority    string `json:"Priority"`
	Lane        string `json:"Lane"`
	SortOrder   int    `json:"SortOrder"`
	StartAt     string `json:"StartAt"` // RFC 3339, empty when unscheduled
	EndAt       string `json:"EndAt"`
	TeamID      string `json:"TeamId"`
	Notes       string `json:"Notes"`
	Deleted     bool   `json:"Deleted"`
	CreatedAt   string `json:"CreatedAt"`
	UpdatedAt   string `json:"UpdatedAt"`
}

type teamEntity struct {
	aztables.Entity
	Name    string `json:"Name"`
	Deleted bool   `json:"Deleted"`
}

func parseTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &at
}

func formatTime(at *time.Time) string {
	if at == nil {
		return ""
	}
	return at.UTC().Format(time.RFC3339)
}

func (e taskEntity) toTask() domain.Task {
	var created, updated time.Time
	if at := parseTime(e.CreatedAt); at != nil {
		created = *at
	}
	if at := parseTime(e.UpdatedAt); at != nil {
		updated = *at
	}
	return domain.Task{
		ID:          e.RowKey,
		ProjectID:   e.PartitionKey,
		Title:       e.Title,
		Description: e.Description,
		Status:      domain.Status(e.Status),
		Priority:    domain.Priority(e.Priority),
		Lane:        domain.Lane(e.Lane),
		SortOrder:   e.SortOrder,
		StartAt:     parseTime(e.StartAt),
		EndAt:       parseTime(e.EndAt),
		TeamID:      e.TeamID,
		Notes:       e.Notes,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
}

// FetchTasks retrieves all non-deleted tasks for the project, joined with
// their team's display name and sorted ascending by sort order.
func (s *Storage) FetchTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	teams, err := s.FetchTeams(ctx, projectID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(teams))
	for _, team := range teams {
		names[team.ID] = team.Name
	}

	filter := "PartitionKey eq '" + projectID + "'"
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			if ent.Deleted {
				continue
			}
			task := ent.toTask()
			task.TeamName = names[task.TeamID]
			tasks = append(tasks, task)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].SortOrder < tasks[j].SortOrder })
	return tasks, nil
}

// FetchTeams retrieves the project's non-deleted teams ordered by name.
func (s *Storage) FetchTeams(ctx context.Context, projectID string) ([]domain.Team, error) {
	filter := "PartitionKey eq '" + projectID + "'"
	pager := s.teamTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	teams := []domain.Team{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent teamEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			if ent.Deleted {
				continue
			}
			teams = append(teams, domain.Team{ID: ent.RowKey, Name: ent.Name})
		}
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })
	return teams, nil
}

// GetTask loads one task by project and id regardless of its deleted flag.
func (s *Storage) GetTask(ctx context.Context, projectID, taskID string) (domain.Task, error) {
	resp, err := s.taskTable.GetEntity(ctx, projectID, taskID, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return domain.Task{}, &TaskNotFoundError{TaskID: taskID}
		}
		return domain.Task{}, err
	}
	var ent taskEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return domain.Task{}, err
	}
	return ent.toTask(), nil
}

// CreateTask inserts one task. The server assigns the id and timestamps and
// fills the documented defaults for unspecified fields.
func (s *Storage) CreateTask(ctx context.Context, projectID string, fields domain.CreateTask) (domain.Task, error) {
	fields.ApplyDefaults()
	now := time.Now().UTC()
	ent := taskEntity{
		Entity:      aztables.Entity{PartitionKey: projectID, RowKey: uuid.NewString()},
		Title:       fields.Title,
		Description: fields.Description,
		Status:      string(fields.Status),
		Priority:    string(fields.Priority),
		Lane:        string(fields.Lane),
		SortOrder:   fields.SortOrder,
		StartAt:     formatTime(fields.StartAt),
		EndAt:       formatTime(fields.EndAt),
		TeamID:      fields.TeamID,
		Notes:       fields.Notes,
		CreatedAt:   now.Format(time.RFC3339),
		UpdatedAt:   now.Format(time.RFC3339),
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return domain.Task{}, err
	}
	if _, err := s.taskTable.AddEntity(ctx, payload, nil); err != nil {
		return domain.Task{}, err
	}
	return ent.toTask(), nil
}

// taskMerge carries a partial entity for merge-mode updates. Absent fields
// stay untouched server side.
type taskMerge struct {
	aztables.Entity
	Title         *string `json:"Title,omitempty"`
	Description   *string `json:"Description,omitempty"`
	Status        *string `json:"Status,omitempty"`
	Priority      *string `json:"Priority,omitempty"`
	Lane          *string `json:"Lane,omitempty"`
	SortOrder     *int    `json:"SortOrder,omitempty"`
	SortOrderType *string `json:"SortOrder@odata.type,omitempty"`
	StartAt       *string `json:"StartAt,omitempty"`
	EndAt         *string `json:"EndAt,omitempty"`
	TeamID        *string `json:"TeamId,omitempty"`
	Notes         *string `json:"Notes,omitempty"`
	Deleted       *bool   `json:"Deleted,omitempty"`
	DeletedType   *string `json:"Deleted@odata.type,omitempty"`
	UpdatedAt     string  `json:"UpdatedAt"`
}

const (
	edmInt32   = "Edm.Int32"
	edmBoolean = "Edm.Boolean"
)

func mergeFromPatch(projectID, taskID string, patch domain.TaskPatch) taskMerge {
	m := taskMerge{
		Entity:    aztables.Entity{PartitionKey: projectID, RowKey: taskID},
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	m.Title = patch.Title
	m.Description = patch.Description
	if patch.Status != nil {
		v := string(*patch.Status)
		m.Status = &v
	}
	if patch.Priority != nil {
		v := string(*patch.Priority)
		m.Priority = &v
	}
	if patch.Lane != nil {
		v := string(*patch.Lane)
		m.Lane = &v
	}
	if patch.SortOrder != nil {
		m.SortOrder = patch.SortOrder
		t := edmInt32
		m.SortOrderType = &t
	}
	if patch.ClearSchedule {
		empty := ""
		m.StartAt = &empty
		m.EndAt = &empty
	} else {
		if patch.StartAt != nil {
			v := formatTime(patch.StartAt)
			m.StartAt = &v
		}
		if patch.EndAt != nil {
			v := formatTime(patch.EndAt)
			m.EndAt = &v
		}
	}
	m.TeamID = patch.TeamID
	m.Notes = patch.Notes
	return m
}

func (s *Storage) mergeTask(ctx context.Context, m taskMerge) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &et,
		UpdateMode: aztables.UpdateModeMerge,
	})
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return &TaskNotFoundError{TaskID: m.RowKey}
		}
	}
	return err
}

// UpdateTask applies a partial update and returns the full updated record.
func (s *Storage) UpdateTask(ctx context.Context, projectID, taskID string, patch domain.TaskPatch) (domain.Task, error) {
	if err := s.mergeTask(ctx, mergeFromPatch(projectID, taskID, patch)); err != nil {
		return domain.Task{}, err
	}
	return s.GetTask(ctx, projectID, taskID)
}

// SoftDeleteTask flags the task as deleted; the record thereafter stops
// appearing in FetchTasks.
func (s *Storage) SoftDeleteTask(ctx context.Context, projectID, taskID string) error {
	deleted := true
	t := edmBoolean
	return s.mergeTask(ctx, taskMerge{
		Entity:      aztables.Entity{PartitionKey: projectID, RowKey: taskID},
		Deleted:     &deleted,
		DeletedType: &t,
		UpdatedAt:   time.Now().UTC().Format(time.RFC3339),
	})
}

// UpdateSortOrders renumbers tasks after a move so sort orders stay
// contiguous within each affected lane.
func (s *Storage) UpdateSortOrders(ctx context.Context, projectID string, updates []domain.OrderUpdate) error {
	for _, upd := range updates {
		order := upd.SortOrder
		t := edmInt32
		m := taskMerge{
			Entity:        aztables.Entity{PartitionKey: projectID, RowKey: upd.ID},
			SortOrder:     &order,
			SortOrderType: &t,
			UpdatedAt:     time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.mergeTask(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// EnqueueChange publishes a change event on the change feed queue.
func (s *Storage) EnqueueChange(ctx context.Context, ev domain.ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.changeQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}

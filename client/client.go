// Package client implements the board's backend contract against the obras
// HTTP API, including the SSE change subscription.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/zapprosite/zappro-obras/domain"
)

// Client talks to the obras API for one project. It satisfies board.Backend.
type Client struct {
	BaseURL   string
	Bearer    string
	ProjectID string
	HTTP      *http.Client
	Logger    *log.Logger

	// RetryDelay spaces out SSE reconnect attempts.
	RetryDelay time.Duration
}

// New creates a Client bound to one project.
func New(baseURL, bearer, projectID string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Bearer:     bearer,
		ProjectID:  projectID,
		HTTP:       &http.Client{},
		Logger:     log.StandardLogger(),
		RetryDelay: time.Second,
	}
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

type teamsResponse struct {
	Teams []domain.Team `json:"teams"`
}

// FetchTasks returns all non-deleted tasks for the project.
func (c *Client) FetchTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	var resp tasksResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/projects/"+projectID+"/tasks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// FetchTeams returns the project's teams.
func (c *Client) FetchTeams(ctx context.Context, projectID string) ([]domain.Team, error) {
	var resp teamsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/projects/"+projectID+"/teams", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Teams, nil
}

// CreateTask inserts one task; the server assigns id and timestamps.
func (c *Client) CreateTask(ctx context.Context, projectID string, fields domain.CreateTask) (domain.Task, error) {
	var task domain.Task
	err := c.doJSON(ctx, http.MethodPost, "/api/projects/"+projectID+"/tasks", fields, &task)
	return task, err
}

// UpdateTask applies a partial update and returns the full updated record.
func (c *Client) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	var task domain.Task
	err := c.doJSON(ctx, http.MethodPatch, "/api/projects/"+c.ProjectID+"/tasks/"+id, patch, &task)
	return task, err
}

// SoftDeleteTask flags the task as deleted.
func (c *Client) SoftDeleteTask(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/projects/"+c.ProjectID+"/tasks/"+id, nil, nil)
}

// MoveRequest mirrors the server's move endpoint body.
type MoveRequest struct {
	Target    string     `json:"target"`
	Index     int        `json:"index"`
	Grid      bool       `json:"grid,omitempty"`
	WeekStart *time.Time `json:"weekStart,omitempty"`
}

// MoveTask asks the server to apply a placement update and renumber the
// affected lanes.
func (c *Client) MoveTask(ctx context.Context, id string, req MoveRequest) (domain.Task, error) {
	var task domain.Task
	err := c.doJSON(ctx, http.MethodPost, "/api/projects/"+c.ProjectID+"/tasks/"+id+"/move", req, &task)
	return task, err
}

// Subscribe opens the project's SSE stream and invokes onChange for every
// pushed update. It returns an unsubscribe function. The stream reconnects
// with a delay until unsubscribed or the context ends; a dead subscription
// degrades to stale data, never to an error for the caller.
func (c *Client) Subscribe(ctx context.Context, entity string, onChange func()) (func(), error) {
	_ = entity // single stream per project; the server scopes events for us
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		initial := true
		for {
			if err := c.consumeStream(ctx, initial, onChange); err != nil && ctx.Err() == nil {
				c.Logger.Errorf("stream closed: %v", err)
			}
			initial = false
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.RetryDelay):
			}
		}
	}()
	return cancel, nil
}

func (c *Client) consumeStream(ctx context.Context, initial bool, onChange func()) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/projects/"+c.ProjectID+"/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	skip := initial
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		// The very first push mirrors state the caller already has. After a
		// reconnect it may carry changes missed while disconnected, so it
		// counts.
		if skip {
			skip = false
			continue
		}
		onChange()
	}
	return scanner.Err()
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return err
		}
		reader = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

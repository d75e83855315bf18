package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/zapprosite/zappro-obras/domain"
)

type mockStorage struct {
	mu         sync.Mutex
	tasks      []domain.Task
	teams      []domain.Team
	created    []domain.CreateTask
	patches    map[string]domain.TaskPatch
	orders     []domain.OrderUpdate
	deleted    []string
	changes    []domain.ChangeEvent
	fetchErr   error
	updateErr  error
	getErr     error
	updateCnt  int
	fetchCount int
}

func newMockStorage(tasks ...domain.Task) *mockStorage {
	return &mockStorage{tasks: tasks, patches: make(map[string]domain.TaskPatch)}
}

func (m *mockStorage) FetchTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCount++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	out := make([]domain.Task, len(m.tasks))
	copy(out, m.tasks)
	return out, nil
}

func (m *mockStorage) FetchTeams(ctx context.Context, projectID string) ([]domain.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.teams, nil
}

func (m *mockStorage) GetTask(ctx context.Context, projectID, taskID string) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domain.Task{}, m.getErr
	}
	for _, t := range m.tasks {
		if t.ID == taskID {
			return t, nil
		}
	}
	return domain.Task{}, &notFoundErr{id: taskID}
}

func (m *mockStorage) CreateTask(ctx context.Context, projectID string, fields domain.CreateTask) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, fields)
	fields.ApplyDefaults()
	return domain.Task{
		ID:        "created-1",
		ProjectID: projectID,
		Title:     fields.Title,
		Status:    fields.Status,
		Priority:  fields.Priority,
		Lane:      fields.Lane,
	}, nil
}

func (m *mockStorage) UpdateTask(ctx context.Context, projectID, taskID string, patch domain.TaskPatch) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCnt++
	if m.updateErr != nil {
		return domain.Task{}, m.updateErr
	}
	for i := range m.tasks {
		if m.tasks[i].ID == taskID {
			patch.Apply(&m.tasks[i])
			m.patches[taskID] = patch
			return m.tasks[i], nil
		}
	}
	return domain.Task{}, &notFoundErr{id: taskID}
}

func (m *mockStorage) SoftDeleteTask(ctx context.Context, projectID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == taskID {
			m.deleted = append(m.deleted, taskID)
			return nil
		}
	}
	return &notFoundErr{id: taskID}
}

func (m *mockStorage) UpdateSortOrders(ctx context.Context, projectID string, updates []domain.OrderUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, updates...)
	return nil
}

func (m *mockStorage) EnqueueChange(ctx context.Context, ev domain.ChangeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, ev)
	return nil
}

func (m *mockStorage) patchFor(t *testing.T, taskID string) domain.TaskPatch {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	patch, ok := m.patches[taskID]
	if !ok {
		t.Fatalf("no update recorded for task %s", taskID)
	}
	return patch
}

type notFoundErr struct{ id string }

func (e *notFoundErr) Error() string { return "task " + e.id + " not found" }
func (e *notFoundErr) TaskNotFound() {}

type mockAuth struct {
	err error
}

func (m *mockAuth) UserIDFromAuthHeader(h string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if !strings.HasPrefix(h, "Bearer ") {
		return "", errMissingAuthorization
	}
	return "user-1", nil
}

type mockDeduper struct {
	fresh   bool
	added   []string
	removed []string
}

func (m *mockDeduper) Add(ctx context.Context, userID, key string) (bool, error) {
	m.added = append(m.added, key)
	return m.fresh, nil
}

func (m *mockDeduper) Remove(ctx context.Context, userID, key string) error {
	m.removed = append(m.removed, key)
	return nil
}

func newTestAPI(t *testing.T, store Storage, deduper Deduper) *echo.Echo {
	t.Helper()
	e := echo.New()
	logger := log.New()
	logger.SetOutput(io.Discard)
	Register(e, store, &mockAuth{}, deduper, logger)
	t.Cleanup(shutdownChangeSender)
	return e
}

func doRequest(e *echo.Echo, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderAuthorization, "Bearer test.token.sig")
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGetTasks(t *testing.T) {
	store := newMockStorage(domain.Task{ID: "a", Title: "Fundacao", Lane: domain.LaneTodo})
	e := newTestAPI(t, store, nil)

	rec := doRequest(e, http.MethodGet, "/api/projects/obra-1/tasks", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"id":"a"`) {
		t.Errorf("response missing task: %s", rec.Body.String())
	}
}

func TestGetTasksUnauthorized(t *testing.T) {
	e := newTestAPI(t, newMockStorage(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/projects/obra-1/tasks", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestGetTasksStorageError(t *testing.T) {
	store := newMockStorage()
	store.fetchErr = errors.New("table offline")
	e := newTestAPI(t, store, nil)

	rec := doRequest(e, http.MethodGet, "/api/projects/obra-1/tasks", nil, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestGetTeams(t *testing.T) {
	store := newMockStorage()
	store.teams = []domain.Team{{ID: "t1", Name: "Eletrica"}}
	e := newTestAPI(t, store, nil)

	rec := doRequest(e, http.MethodGet, "/api/projects/obra-1/teams", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Eletrica") {
		t.Errorf("response missing team: %s", rec.Body.String())
	}
}

func TestCreateTask(t *testing.T) {
	store := newMockStorage()
	e := newTestAPI(t, store, nil)

	body := strings.NewReader(`{"title":"Rebocar parede"}`)
	rec := doRequest(e, http.MethodPost, "/api/projects/obra-1/tasks", body, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"lane":"backlog"`) {
		t.Errorf("defaults not applied: %s", rec.Body.String())
	}
	if len(store.created) != 1 || store.created[0].Title != "Rebocar parede" {
		t.Errorf("unexpected create calls: %+v", store.created)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	e := newTestAPI(t, newMockStorage(), nil)

	cases := []string{
		`{}`,
		`{"title":""}`,
		`{"title":"x","lane":"shipping"}`,
		`{"title":"x","unknown":1}`,
		`not json`,
	}
	for _, body := range cases {
		rec := doRequest(e, http.MethodPost, "/api/projects/obra-1/tasks", strings.NewReader(body), nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestUpdateTask(t *testing.T) {
	store := newMockStorage(domain.Task{ID: "a", Title: "old", Lane: domain.LaneTodo})
	e := newTestAPI(t, store, nil)

	body := strings.NewReader(`{"title":"new"}`)
	rec := doRequest(e, http.MethodPatch, "/api/projects/obra-1/tasks/a", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"title":"new"`) {
		t.Errorf("update not reflected: %s", rec.Body.String())
	}
}

func TestUpdateTaskRejectsEmptyPatch(t *testing.T) {
	e := newTestAPI(t, newMockStorage(domain.Task{ID: "a"}), nil)

	rec := doRequest(e, http.MethodPatch, "/api/projects/obra-1/tasks/a", strings.NewReader(`{}`), nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestUpdateTaskNotFound(t *testing.T) {
	e := newTestAPI(t, newMockStorage(), nil)

	body := strings.NewReader(`{"title":"x"}`)
	rec := doRequest(e, http.MethodPatch, "/api/projects/obra-1/tasks/missing", body, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestDeleteTask(t *testing.T) {
	store := newMockStorage(domain.Task{ID: "a"})
	e := newTestAPI(t, store, nil)

	rec := doRequest(e, http.MethodDelete, "/api/projects/obra-1/tasks/a", nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "a" {
		t.Errorf("unexpected deletes: %v", store.deleted)
	}
}

func TestDeleteTaskNotFound(t *testing.T) {
	e := newTestAPI(t, newMockStorage(), nil)

	rec := doRequest(e, http.MethodDelete, "/api/projects/obra-1/tasks/missing", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	e := newTestAPI(t, newMockStorage(), nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

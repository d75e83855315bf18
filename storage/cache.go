package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zapprosite/zappro-obras/domain"
)

type backend interface {
	FetchTasks(ctx context.Context, projectID string) ([]domain.Task, error)
	FetchTeams(ctx context.Context, projectID string) ([]domain.Team, error)
	GetTask(ctx context.Context, projectID, taskID string) (domain.Task, error)
	CreateTask(ctx context.Context, projectID string, fields domain.CreateTask) (domain.Task, error)
	UpdateTask(ctx context.Context, projectID, taskID string, patch domain.TaskPatch) (domain.Task, error)
	SoftDeleteTask(ctx context.Context, projectID, taskID string) error
	UpdateSortOrders(ctx context.Context, projectID string, updates []domain.OrderUpdate) error
	EnqueueChange(ctx context.Context, ev domain.ChangeEvent) error
}

// Cache wraps a Storage instance with Redis-backed caching for the two list
// reads. Any write to a project evicts that project's cached lists. Redis
// being down never fails a request; reads fall through to the backing store.
type Cache struct {
	*Storage
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client
// and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	c := &Cache{base: base, redis: client, ttl: ttl}
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

func (c *Cache) FetchTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	var cached []domain.Task
	if c.loadJSON(ctx, tasksCacheKey(projectID), &cached) {
		return cached, nil
	}
	tasks, err := c.base.FetchTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	c.storeJSON(ctx, tasksCacheKey(projectID), tasks)
	return tasks, nil
}

func (c *Cache) FetchTeams(ctx context.Context, projectID string) ([]domain.Team, error) {
	var cached []domain.Team
	if c.loadJSON(ctx, teamsCacheKey(projectID), &cached) {
		return cached, nil
	}
	teams, err := c.base.FetchTeams(ctx, projectID)
	if err != nil {
		return nil, err
	}
	c.storeJSON(ctx, teamsCacheKey(projectID), teams)
	return teams, nil
}

func (c *Cache) GetTask(ctx context.Context, projectID, taskID string) (domain.Task, error) {
	return c.base.GetTask(ctx, projectID, taskID)
}

func (c *Cache) CreateTask(ctx context.Context, projectID string, fields domain.CreateTask) (domain.Task, error) {
	task, err := c.base.CreateTask(ctx, projectID, fields)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, projectID)
	return task, nil
}

func (c *Cache) UpdateTask(ctx context.Context, projectID, taskID string, patch domain.TaskPatch) (domain.Task, error) {
	task, err := c.base.UpdateTask(ctx, projectID, taskID, patch)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, projectID)
	return task, nil
}

func (c *Cache) SoftDeleteTask(ctx context.Context, projectID, taskID string) error {
	if err := c.base.SoftDeleteTask(ctx, projectID, taskID); err != nil {
		return err
	}
	c.evict(ctx, projectID)
	return nil
}

func (c *Cache) UpdateSortOrders(ctx context.Context, projectID string, updates []domain.OrderUpdate) error {
	if err := c.base.UpdateSortOrders(ctx, projectID, updates); err != nil {
		return err
	}
	c.evict(ctx, projectID)
	return nil
}

func (c *Cache) EnqueueChange(ctx context.Context, ev domain.ChangeEvent) error {
	return c.base.EnqueueChange(ctx, ev)
}

func (c *Cache) loadJSON(ctx context.Context, key string, out any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) storeJSON(ctx context.Context, key string, val any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, projectID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, tasksCacheKey(projectID), teamsCacheKey(projectID)).Result()
}

func tasksCacheKey(projectID string) string {
	return "tasks:" + projectID
}

func teamsCacheKey(projectID string) string {
	return "teams:" + projectID
}

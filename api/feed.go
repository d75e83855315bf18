package api

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/zapprosite/zappro-obras/domain"
)

// Change events are forwarded to the feed queue off the request path by a
// small worker pool; when the buffer is saturated the enqueue happens inline
// so no event is dropped.

var (
	once           sync.Once
	changeJobs     chan domain.ChangeEvent
	workerCount    int
	jobBuf         int
	enqueueTimeout time.Duration
	bg             = context.Background()
	globalStore    Storage
	globalLog      *log.Logger
	workerWG       sync.WaitGroup
)

// shutdownChangeSender stops worker goroutines and clears shared state. It is
// intended for tests.
func shutdownChangeSender() {
	if changeJobs != nil {
		close(changeJobs)
		changeJobs = nil
	}
	workerWG.Wait()

	globalStore = nil
	globalLog = nil
	workerCount = 0
	jobBuf = 0
	enqueueTimeout = 0
	once = sync.Once{}
	workerWG = sync.WaitGroup{}
}

func initChangeSender(store Storage, logger *log.Logger) {
	once.Do(func() {
		globalStore = store
		if logger == nil {
			panic("Logger is not initialized")
		}
		globalLog = logger

		workerCount = envInt("CHANGE_FEED_WORKERS", 8)
		jobBuf = envInt("CHANGE_FEED_BUFFER", 1024)
		enqueueTimeout = envDur("CHANGE_FEED_TIMEOUT", 30*time.Second)

		changeJobs = make(chan domain.ChangeEvent, jobBuf)
		for i := 0; i < workerCount; i++ {
			workerWG.Add(1)
			go changeWorker(i, changeJobs)
		}
		globalLog.Infof("change sender started, workers: %d, buffer: %d, timeout: %v", workerCount, jobBuf, enqueueTimeout)
	})
}

func changeWorker(id int, jobCh <-chan domain.ChangeEvent) {
	defer workerWG.Done()
	for ev := range jobCh {
		ctx, cancel := context.WithTimeout(bg, enqueueTimeout)
		err := globalStore.EnqueueChange(ctx, ev)
		cancel()
		if err != nil {
			globalLog.Errorf("change enqueue failed, err: %v, project: %s, task: %s, worker: %d", err, ev.ProjectID, ev.EntityID, id)
		}
	}
}

func changeEvent(projectID, taskID, typ string) domain.ChangeEvent {
	return domain.ChangeEvent{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Entity:    "tarefas",
		EntityID:  taskID,
		Type:      typ,
		Timestamp: time.Now().UnixNano(),
	}
}

// sendChange hands the event to the worker pool, falling back to an inline
// enqueue when the buffer is full or the pool is not running.
func sendChange(store Storage, ev domain.ChangeEvent) {
	if trySendChange(ev) {
		return
	}
	if globalLog != nil {
		globalLog.Warn("change buffer saturated; enqueueing inline")
	}
	timeout := enqueueTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(bg, timeout)
	defer cancel()
	if err := store.EnqueueChange(ctx, ev); err != nil && globalLog != nil {
		globalLog.Errorf("inline change enqueue failed: %v", err)
	}
}

func trySendChange(ev domain.ChangeEvent) (ok bool) {
	if changeJobs == nil {
		return false
	}
	// The channel may be closed by a concurrent shutdown in tests.
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	select {
	case changeJobs <- ev:
		return true
	default:
		return false
	}
}

func envInt(name string, def int) int {
	if raw := os.Getenv(name); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envDur(name string, def time.Duration) time.Duration {
	if raw := os.Getenv(name); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return def
}

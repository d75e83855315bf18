// Package notify drains the change-event queue and republishes events on a
// Redis channel, where the stream broker picks them up for SSE fan-out.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/zapprosite/zappro-obras/storage"
)

// Source is the queue side of the change feed.
type Source interface {
	DequeueChange(ctx context.Context) (*storage.ChangeMessage, error)
	DeleteChange(ctx context.Context, messageID, popReceipt string) error
}

// Dispatcher pumps change events from the queue to the pub/sub channel.
type Dispatcher struct {
	source  Source
	redis   *redis.Client
	channel string
	logger  *log.Logger

	// IdleDelay is how long to sleep when the queue is empty or errors.
	IdleDelay time.Duration
}

// NewDispatcher wires a dispatcher for the given queue source and channel.
func NewDispatcher(source Source, rc *redis.Client, channel string, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Dispatcher{source: source, redis: rc, channel: channel, logger: logger, IdleDelay: time.Second}
}

// Run processes the feed until the context is cancelled. Publish failures are
// logged and the message is still acknowledged: the feed is best effort, and
// subscribers degrade to stale data until the next event.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if ok := d.Step(ctx); !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.IdleDelay):
			}
		}
	}
}

// Step processes at most one message and reports whether one was available.
func (d *Dispatcher) Step(ctx context.Context) bool {
	msg, err := d.source.DequeueChange(ctx)
	if err != nil {
		d.logger.Errorf("dequeue change: %v", err)
		return false
	}
	if msg == nil {
		return false
	}
	payload, err := json.Marshal(msg.Event)
	if err != nil {
		d.logger.Errorf("marshal change: %v", err)
	} else if err := d.redis.Publish(ctx, d.channel, payload).Err(); err != nil {
		d.logger.Errorf("unable to publish %s change for project %s: %v", msg.Event.Entity, msg.Event.ProjectID, err)
	}
	if err := d.source.DeleteChange(ctx, msg.MessageID, msg.PopReceipt); err != nil {
		d.logger.Errorf("ack change: %v", err)
	}
	return true
}

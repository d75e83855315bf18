package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/zapprosite/zappro-obras/domain"
)

// SubscribeUpdates listens on the change-feed channel and wakes the broker's
// subscribers for the affected project. It reconnects with a short delay if
// the pub/sub channel closes.
func SubscribeUpdates(ctx context.Context, logger *log.Logger, rc *redis.Client, channel string, broker *Broker) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var ev domain.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.Errorf("unable to parse change event: %v", err)
					continue
				}
				if ev.ProjectID == "" {
					logger.Warn("change event without project id ignored")
					continue
				}
				broker.Notify(ev.ProjectID)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("change feed channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}

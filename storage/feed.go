package storage

import (
	"context"
	"encoding/json"

	"github.com/zapprosite/zappro-obras/domain"
)

// ChangeMessage is a change event pulled off the feed queue together with the
// receipt needed to delete it after processing.
type ChangeMessage struct {
	Event      domain.ChangeEvent
	MessageID  string
	PopReceipt string
}

// DequeueChange pulls at most one change event from the feed queue. It
// returns nil when the queue is empty. Messages with unparseable payloads are
// deleted and skipped.
func (s *Storage) DequeueChange(ctx context.Context) (*ChangeMessage, error) {
	resp, err := s.changeQueue.DequeueMessage(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	msg := resp.Messages[0]
	out := &ChangeMessage{}
	if msg.MessageID != nil {
		out.MessageID = *msg.MessageID
	}
	if msg.PopReceipt != nil {
		out.PopReceipt = *msg.PopReceipt
	}
	if msg.MessageText == nil || json.Unmarshal([]byte(*msg.MessageText), &out.Event) != nil {
		_ = s.DeleteChange(ctx, out.MessageID, out.PopReceipt)
		return nil, nil
	}
	return out, nil
}

// DeleteChange acknowledges a processed change event.
func (s *Storage) DeleteChange(ctx context.Context, messageID, popReceipt string) error {
	_, err := s.changeQueue.DeleteMessage(ctx, messageID, popReceipt, nil)
	return err
}

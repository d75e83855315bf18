// Package stream pushes live task lists to connected boards over SSE. The
// only contract with clients is "something changed, here is the fresh list";
// clients replace their store wholesale.
package stream

import "sync"

// Broker fans change notifications out to SSE subscribers, keyed by project.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe registers a listener for the project and returns its channel.
func (b *Broker) Subscribe(projectID string) chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	if b.subs[projectID] == nil {
		b.subs[projectID] = make(map[chan struct{}]struct{})
	}
	b.subs[projectID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener.
func (b *Broker) Unsubscribe(projectID string, ch chan struct{}) {
	b.mu.Lock()
	if set := b.subs[projectID]; set != nil {
		delete(set, ch)
		if len(set) == 0 {
			delete(b.subs, projectID)
		}
	}
	b.mu.Unlock()
}

// Notify wakes every listener of the project. Slow listeners that already
// have a pending wake-up are skipped rather than blocked on.
func (b *Broker) Notify(projectID string) {
	b.mu.Lock()
	for ch := range b.subs[projectID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	b.mu.Unlock()
}

// Package progress carries scan progress between the detached scan worker
// and everything that wants to observe it.
package progress

import (
	"sync"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Bus is an in-process publish/subscribe channel for scan progress events.
// It always retains the most recent event, so late observers (the progress
// endpoint, the lock-busy response) can read the last known state without
// subscribing.
type Bus struct {
	mu   sync.RWMutex
	last *models.ProgressEvent
	subs map[int]chan models.ProgressEvent
	next int
}

func NewBus() *Bus {
	return &Bus{subs: map[int]chan models.ProgressEvent{}}
}

// Publish stores the event as the latest snapshot and fans it out to
// subscribers. Slow subscribers miss events rather than stalling the scan.
func (b *Bus) Publish(event models.ProgressEvent) {
	b.mu.Lock()
	e := event
	b.last = &e
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
	b.mu.Unlock()
}

// Last returns the most recently published event, or nil if none yet.
func (b *Bus) Last() *models.ProgressEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.last == nil {
		return nil
	}
	e := *b.last
	return &e
}

// Subscribe registers a buffered subscription. The returned cancel func
// closes the channel and must be called exactly once.
func (b *Bus) Subscribe(buffer int) (<-chan models.ProgressEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan models.ProgressEvent, buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

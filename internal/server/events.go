package server

import (
	"context"
	"sync"
	"time"

	"github.com/quizforge/deskbank/backend/internal/assets"
)

const (
	// EventTypeBroadcast is published after a library-to-desks broadcast.
	EventTypeBroadcast = "broadcast"
	// EventTypeImport is published after a canonical question is imported
	// onto a desk.
	EventTypeImport = "import"
	// EventTypeReverseSync is published after a desk record is pushed back
	// to the library.
	EventTypeReverseSync = "reverse-sync"
)

// SyncEvent tells subscribed desk stores that records they hold may have
// changed and which desks are affected.
type SyncEvent struct {
	EventType string           `json:"event_type"`
	AssetRef  assets.Reference `json:"asset_ref,omitempty"`
	Desks     []string         `json:"desks,omitempty"`
	RecordID  string           `json:"record_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// EventDispatcher fans sync events out to SSE subscribers. Slow subscribers
// drop events rather than block the publishing sync path.
type EventDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]chan SyncEvent
	nextID      int64
	bufferSize  int
}

// NewEventDispatcher constructs an EventDispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		subscribers: make(map[int64]chan SyncEvent),
		bufferSize:  16,
	}
}

// Subscribe registers a listener that receives events until the context is
// cancelled. The returned cleanup is idempotent.
func (d *EventDispatcher) Subscribe(ctx context.Context) (<-chan SyncEvent, func()) {
	stream := make(chan SyncEvent, d.bufferSize)

	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subscribers[id] = stream
	d.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subscribers, id)
			d.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return stream, cleanup
}

// Publish delivers the event to every subscriber that has buffer room.
func (d *EventDispatcher) Publish(event SyncEvent) {
	if event.EventType == "" {
		return
	}
	d.mu.RLock()
	streams := make([]chan SyncEvent, 0, len(d.subscribers))
	for _, stream := range d.subscribers {
		streams = append(streams, stream)
	}
	d.mu.RUnlock()

	for _, stream := range streams {
		select {
		case stream <- event:
		default:
		}
	}
}

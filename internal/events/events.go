// Package events provides the pub/sub bus connecting the catalog, the sync
// engine and the upload pipeline to their consumers. Publishing never blocks;
// slow subscribers drop events rather than stalling producers.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimbusdrive/nimbus-cli/internal/constants"
)

// EventType defines the types of events that can be emitted.
type EventType string

const (
	// Catalog / sync events
	EventFilesChanged     EventType = "files_changed"      // Snapshot replaced or a mutation applied
	EventNewItemsDetected EventType = "new_items_detected" // Poll found more entries than before
	EventHealthChanged    EventType = "health_changed"     // Backend healthy flag flipped
	EventSessionChanged   EventType = "session_changed"    // Signed in or out

	// Transfer events
	EventTransferQueued    EventType = "transfer_queued"
	EventTransferStarted   EventType = "transfer_started"
	EventTransferProgress  EventType = "transfer_progress"
	EventTransferCompleted EventType = "transfer_completed"
	EventTransferFailed    EventType = "transfer_failed"
	EventTransferCancelled EventType = "transfer_cancelled"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields.
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// FilesChangedEvent is published whenever the catalog's visible contents
// change, either from a local mutation or a sync refresh.
type FilesChangedEvent struct {
	BaseEvent
	Source string // "mutation" or "sync"
	Total  int    // Active (non-deleted) entry count after the change
}

// NewItemsDetectedEvent is published when a sync refresh finds more entries
// than the previous non-empty snapshot held.
type NewItemsDetectedEvent struct {
	BaseEvent
	NewCount int // How many entries appeared since the last refresh
	Total    int // Entry count after the refresh
}

// HealthChangedEvent is published when the backend health flag flips.
type HealthChangedEvent struct {
	BaseEvent
	Healthy  bool
	Failures int // Consecutive probe failures at the time of the flip
}

// SessionChangedEvent is published on sign-in and sign-out.
type SessionChangedEvent struct {
	BaseEvent
	SignedIn bool
	Email    string // Empty on sign-out
}

// TransferEvent tracks a single upload task through its lifecycle.
type TransferEvent struct {
	BaseEvent
	TaskID   string
	Name     string  // Display name (filename)
	Size     int64   // File size in bytes
	Progress int     // 0-100, coarse milestones
	Error    error   // Set on EventTransferFailed
	BatchID  string  // Groups tasks belonging to one batch upload
}

// EventBus manages event subscriptions and publishing.
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64
}

// NewEventBus creates a new event bus with the specified buffer size.
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type.
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events.
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking. Events are
// dropped for subscribers whose buffers are full.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Unsubscribe removes a subscription channel from a specific event type
// and closes it, ending any range loop draining it.
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			close(subCh)
			break
		}
	}
}

// UnsubscribeAll removes a subscription channel from every event type and
// from the all-events list.
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				close(subCh)
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			close(subCh)
			break
		}
	}
}

// Close shuts down the event bus and closes all channels.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishFilesChanged is a convenience method for the most common event.
func (eb *EventBus) PublishFilesChanged(source string, total int) {
	eb.Publish(&FilesChangedEvent{
		BaseEvent: BaseEvent{EventType: EventFilesChanged, Time: time.Now()},
		Source:    source,
		Total:     total,
	})
}

// PublishNewItems announces entries that appeared since the last refresh.
func (eb *EventBus) PublishNewItems(newCount, total int) {
	eb.Publish(&NewItemsDetectedEvent{
		BaseEvent: BaseEvent{EventType: EventNewItemsDetected, Time: time.Now()},
		NewCount:  newCount,
		Total:     total,
	})
}

// PublishHealthChanged announces a backend health flip.
func (eb *EventBus) PublishHealthChanged(healthy bool, failures int) {
	eb.Publish(&HealthChangedEvent{
		BaseEvent: BaseEvent{EventType: EventHealthChanged, Time: time.Now()},
		Healthy:   healthy,
		Failures:  failures,
	})
}

// PublishSessionChanged announces a sign-in or sign-out.
func (eb *EventBus) PublishSessionChanged(signedIn bool, email string) {
	eb.Publish(&SessionChangedEvent{
		BaseEvent: BaseEvent{EventType: EventSessionChanged, Time: time.Now()},
		SignedIn:  signedIn,
		Email:     email,
	})
}

// PublishTransfer announces a transfer lifecycle step for one task.
func (eb *EventBus) PublishTransfer(eventType EventType, taskID, name string, size int64, progress int, batchID string, err error) {
	eb.Publish(&TransferEvent{
		BaseEvent: BaseEvent{EventType: eventType, Time: time.Now()},
		TaskID:    taskID,
		Name:      name,
		Size:      size,
		Progress:  progress,
		Error:     err,
		BatchID:   batchID,
	})
}

// DroppedEventCount returns the total number of events dropped due to full
// buffers.
func (eb *EventBus) DroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}

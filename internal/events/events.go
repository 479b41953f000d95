package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventTaskSynced       = "task_synced"
	EventTaskSyncError    = "task_sync_error"
	EventTaskDeadLettered = "task_dead_lettered"
	EventSyncPassFinished = "sync_pass_finished"
)

// TaskEventPayload describes the minimal task snapshot for event consumers.
type TaskEventPayload struct {
	TaskID    string `json:"task_id"`
	Operation string `json:"operation,omitempty"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
}

// PassEventPayload summarizes a finished sync pass.
type PassEventPayload struct {
	Success     bool `json:"success"`
	SyncedCount int  `json:"synced_count"`
	FailedCount int  `json:"failed_count"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// Bus provides in-process pub/sub for sync lifecycle events.
type Bus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event. Safe on a nil bus.
func (b *Bus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

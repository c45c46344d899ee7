package eventbus

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	EventTaskCreated         EventType = "task.created"
	EventTaskUpdated         EventType = "task.updated"
	EventTaskProgressUpdated EventType = "task.progress_updated"
	EventTaskMovedToReview   EventType = "task.moved_to_review"
	EventTaskApproved        EventType = "task.approved"
	EventTaskManagerApproved EventType = "task.manager_approved"
	EventTaskBlocked         EventType = "task.blocked"
	EventTaskUnblocked       EventType = "task.unblocked"
	EventTaskSubmitted       EventType = "task.submitted"
	EventTaskVerified        EventType = "task.verified"
	EventTaskRejected        EventType = "task.rejected"
	EventTaskCompleted       EventType = "task.completed"
	EventTasksRolledOver     EventType = "task.rolled_over"
	EventMeetingProcessed    EventType = "meeting.processed"
)

type Event struct {
	ID         string
	Type       EventType
	ResourceID string
	ActorID    string
	Metadata   map[string]string
	CreatedAt  time.Time
}

type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan *Event
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan *Event),
	}
}

func (b *Bus) Subscribe(bufSize int) (string, <-chan *Event) {
	id := ulid.Make().String()
	ch := make(chan *Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// buffer full, drop event for this subscriber
		}
	}
}

func (b *Bus) PublishNew(eventType EventType, resourceID, actorID string, metadata map[string]string) {
	b.Publish(&Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		ResourceID: resourceID,
		ActorID:    actorID,
		Metadata:   metadata,
		CreatedAt:  time.Now(),
	})
}

// Package events is the boundary to the real-time fan-out layer. The session
// manager and earnings calculator publish domain events here; what transport
// carries them to clients is someone else's problem.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	TypeSubTaskStarted     = "subtask:started"
	TypeSubTaskCompleted   = "subtask:completed"
	TypeSubTaskAutoStopped = "subtask:auto-stopped"
	TypeEarningsUpdated    = "earnings:updated"
)

// ReasonScheduledEnd marks an auto-stop issued because a schedule window
// closed, as opposed to an explicit user stop.
const ReasonScheduledEnd = "scheduled_end"

type Event struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	OccurredAt      time.Time `json:"occurred_at"`
	CompanyID       string    `json:"company_id,omitempty"`
	UserID          uint      `json:"user_id"`
	TaskID          uint      `json:"task_id,omitempty"`
	SubTaskID       uint      `json:"sub_task_id,omitempty"`
	DurationSeconds int64     `json:"duration_seconds,omitempty"`
	Reason          string    `json:"reason,omitempty"`
}

// New stamps an envelope with identity and time; callers fill the domain
// fields before emitting.
func New(eventType string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now(),
	}
}

type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// LogEmitter writes events to the structured log. It is the default emitter
// when no real-time transport is attached.
type LogEmitter struct {
	Logger *logrus.Logger
}

func (e *LogEmitter) Emit(_ context.Context, event Event) {
	logger := e.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"event_id":    event.ID,
		"type":        event.Type,
		"user_id":     event.UserID,
		"sub_task_id": event.SubTaskID,
		"duration":    event.DurationSeconds,
		"reason":      event.Reason,
	}).Info("domain event")
}

// Bus fans events out to in-process subscribers. A slow subscriber loses
// events rather than blocking the emitting transaction path.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a cancel function. The buffer
// bounds how far a subscriber may lag before dropping.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

func (b *Bus) Emit(_ context.Context, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		select {
		case sub <- event:
		default:
		}
	}
}

// Multi emits to every wrapped emitter in order.
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, event Event) {
	for _, emitter := range m {
		emitter.Emit(ctx, event)
	}
}

package domain

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	NoteCreated   = "note-created"
	NoteUpdated   = "note-updated"
	NoteDeleted   = "note-deleted"
	TaskCreated   = "task-created"
	TaskUpdated   = "task-updated"
	TaskCompleted = "task-completed"
	TaskReopened  = "task-reopened"
	TaskDeleted   = "task-deleted"
)

const (
	EntityNote = "note"
	EntityTask = "task"
)

const eventPublishTimeout = 5 * time.Second

// Event records a change made through one of the services.
type Event struct {
	ID         string                 `json:"id"`
	EntityID   string                 `json:"entityId"`
	EntityType string                 `json:"entityType"`
	Type       string                 `json:"type"`
	UserID     string                 `json:"userId"`
	Data       sonic.NoCopyRawMessage `json:"data,omitempty"`
	Time       int64                  `json:"time"`
}

// EventPublisher delivers activity events. Implementations must be safe for
// concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func newEvent(typ, entityType, entityID, userID string, at time.Time, data any) Event {
	ev := Event{
		ID:         uuid.NewString(),
		EntityID:   entityID,
		EntityType: entityType,
		Type:       typ,
		UserID:     userID,
		Time:       at.UnixNano(),
	}
	if data != nil {
		if payload, err := sonic.Marshal(data); err == nil {
			ev.Data = payload
		}
	}
	return ev
}

// publish is best effort: the write it describes has already succeeded.
func publish(ctx context.Context, pub EventPublisher, ev Event) {
	if pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if err := pub.Publish(ctx, ev); err != nil {
		log.WithFields(log.Fields{"event": ev.Type, "entity": ev.EntityID, "user": ev.UserID}).WithError(err).Warn("publish activity event failed")
	}
}

package domain

import (
	"context"
	"time"
)

const (
	UserRegistered = "user-registered"
	UserLoggedIn   = "user-logged-in"
	UserLoggedOut  = "user-logged-out"
	TaskCreated    = "task-created"
	TaskToggled    = "task-toggled"
	TaskDeleted    = "task-deleted"
)

// Event records a completed state change for downstream consumers.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	UserID     string         `json:"userId"`
	Data       map[string]any `json:"data,omitempty"`
	Time       int64          `json:"time"`
}

// Publisher delivers events. Implementations own their failure handling;
// a failed publish never fails the operation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, Event) {}

func newEvent(typ, entityType, entityID, userID string, at time.Time, data map[string]any) Event {
	return Event{
		Type:       typ,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     userID,
		Data:       data,
		Time:       at.UnixNano(),
	}
}

package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Activity event names.
const (
	EventUserRegistered       = "user.registered"
	EventUserUpdated          = "user.updated"
	EventUserDeleted          = "user.deleted"
	EventProjectCreated       = "project.created"
	EventProjectUpdated       = "project.updated"
	EventProjectUsersAssigned = "project.users_assigned"
	EventProjectDeleted       = "project.deleted"
	EventProjectTasksPurged   = "project.tasks_purged"
	EventTaskCreated          = "task.created"
	EventTaskUpdated          = "task.updated"
	EventTaskSubmitted        = "task.submitted"
	EventTaskReopened         = "task.reopened"
	EventTaskDeleted          = "task.deleted"
)

// Entity kinds referenced by events.
const (
	EntityUser    = "user"
	EntityProject = "project"
	EntityTask    = "task"
)

// Event records a change applied to an entity.
type Event struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id"`
	ActorID    string          `json:"actor_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewEvent builds an event with a fresh id; payload is marshalled best-effort.
func NewEvent(name, kind, entityID, actorID string, payload interface{}) Event {
	event := Event{
		ID:         uuid.NewString(),
		Name:       name,
		EntityKind: kind,
		EntityID:   entityID,
		ActorID:    actorID,
		CreatedAt:  time.Now().UTC(),
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			event.Payload = raw
		}
	}
	return event
}

package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeUserRegistered      Type = "user.registered"
	TypeUserLoggedIn        Type = "user.logged_in"
	TypeUserLoggedOut       Type = "user.logged_out"
	TypeSessionRefreshed    Type = "session.refreshed"
	TypeUserPasswordChanged Type = "user.password_changed"
	TypeUserProfileUpdated  Type = "user.profile_updated"
)

type Event struct {
	ID        string      `json:"id"`
	Type      Type        `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
	ActorID   string      `json:"actor_id,omitempty"` // Who triggered the event
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}

// New stamps an event with a fresh ID and the current UTC time.
func New(typ Type, actorID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ActorID:   actorID,
	}
}

package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
)

// SessionEvent is the message pushed to WebSocket clients
type SessionEvent struct {
	ID        string          `json:"id"`         // Event UUID
	SessionID string          `json:"session_id"` // Draft session id
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`
}

// EventType represents the type of session event
type EventType string

const (
	EventTypePickMade        EventType = events.TypePickMade
	EventTypePickSkipped     EventType = events.TypePickSkipped
	EventTypePickStarted     EventType = events.TypePickStarted
	EventTypeDraftStarted    EventType = events.TypeDraftStarted
	EventTypeDraftCompleted  EventType = events.TypeDraftCompleted
	EventTypeSessionUpdated  EventType = events.TypeSessionUpdated
	EventTypeSessionRepaired EventType = events.TypeSessionRepaired

	// EventTypeSessionSnapshot is sent once on connect so a client that
	// reconnects can resume its countdown from time_remaining.
	EventTypeSessionSnapshot EventType = "SessionSnapshot"
)

func knownEventType(t string) bool {
	switch EventType(t) {
	case EventTypePickMade, EventTypePickSkipped, EventTypePickStarted, EventTypeDraftStarted,
		EventTypeDraftCompleted, EventTypeSessionUpdated, EventTypeSessionRepaired:
		return true
	}
	return false
}

// FromEnvelope converts a bus envelope into a client event.
func FromEnvelope(env events.Envelope) (*SessionEvent, error) {
	if env.SessionID == "" {
		return nil, fmt.Errorf("event %s has no session id", env.EventID)
	}
	if !knownEventType(env.EventType) {
		return nil, fmt.Errorf("unknown event type: %s", env.EventType)
	}
	return &SessionEvent{
		ID:        env.EventID,
		SessionID: env.SessionID,
		Type:      EventType(env.EventType),
		Timestamp: env.Timestamp,
		Data:      env.Payload,
	}, nil
}

// FromOutbox converts an outbox row into a client event.
func FromOutbox(e events.OutboxEvent) (*SessionEvent, error) {
	return FromEnvelope(events.Envelope{
		EventID:   e.ID.String(),
		EventType: e.EventType,
		SessionID: e.SessionID,
		Timestamp: e.CreatedAt,
		Payload:   e.Payload,
	})
}

// ParseEventPayload parses event data into the matching payload struct
func ParseEventPayload(event *SessionEvent) (any, error) {
	var target any
	switch event.Type {
	case EventTypePickMade:
		target = &events.PickMadePayload{}
	case EventTypePickSkipped:
		target = &events.PickSkippedPayload{}
	case EventTypePickStarted:
		target = &events.PickStartedPayload{}
	case EventTypeDraftStarted:
		target = &events.DraftStartedPayload{}
	case EventTypeDraftCompleted:
		target = &events.DraftCompletedPayload{}
	case EventTypeSessionUpdated:
		target = &events.SessionUpdatedPayload{}
	case EventTypeSessionRepaired:
		target = &events.SessionRepairedPayload{}
	default:
		return nil, nil
	}
	if err := json.Unmarshal(event.Data, target); err != nil {
		return nil, err
	}
	return target, nil
}

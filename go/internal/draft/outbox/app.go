package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
	"github.com/rs/zerolog/log"
)

// Writer is what recording needs from the store. Engines pass their open
// transaction so the event commits or rolls back with the state change.
type Writer interface {
	InsertOutboxEvent(ctx context.Context, event events.OutboxEvent) error
}

// Record marshals payload and inserts it as an outbox event for sessionID.
func Record(ctx context.Context, w Writer, sessionID, eventType string, payload any, at time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	if err := validateEventPayload(data); err != nil {
		return fmt.Errorf("invalid %s payload: %w", eventType, err)
	}

	event := events.OutboxEvent{
		ID:        uuid.New(),
		SessionID: sessionID,
		EventType: eventType,
		Payload:   data,
		CreatedAt: at,
	}
	if err := w.InsertOutboxEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to insert %s event: %w", eventType, err)
	}

	log.Debug().
		Str("session_id", sessionID).
		Str("event_type", eventType).
		Str("event_id", event.ID.String()).
		Msg("outbox event inserted")

	return nil
}

func validateEventPayload(payload []byte) error {
	if len(payload) == 0 {
		return errors.New("payload cannot be empty")
	}
	if string(payload) == "null" {
		return errors.New("payload cannot be null")
	}
	return nil
}

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
	"github.com/rs/zerolog/log"
)

// Publisher delivers one outbox event to a downstream bus or fan-out.
type Publisher interface {
	Publish(ctx context.Context, event events.OutboxEvent) error
}

// NewEnvelope wraps an outbox event in its wire shape.
func NewEnvelope(event events.OutboxEvent) events.Envelope {
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return events.Envelope{
		EventID:   event.ID.String(),
		EventType: event.EventType,
		SessionID: event.SessionID,
		Timestamp: ts,
		Payload:   json.RawMessage(event.Payload),
	}
}

// LogPublisher writes events to the log. Used when no bus is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event events.OutboxEvent) error {
	log.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", event.EventType).
		Str("session_id", event.SessionID).
		Int("size", len(event.Payload)).
		Msg("publishing event")
	return nil
}

// MultiPublisher publishes to every publisher in order. An event counts as
// published only if all of them accept it.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, event events.OutboxEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

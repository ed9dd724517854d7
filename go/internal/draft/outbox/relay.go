package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
	"github.com/rs/zerolog/log"
)

// ErrEventNotFound is returned when a notified id has no unsent row.
var ErrEventNotFound = errors.New("outbox event not found")

// RelayStore reads and acknowledges outbox rows.
type RelayStore interface {
	FetchOutboxByID(ctx context.Context, id uuid.UUID) (*events.OutboxEvent, error)
	FetchUnsentOutbox(ctx context.Context, limit int) ([]events.OutboxEvent, error)
	MarkOutboxSent(ctx context.Context, id uuid.UUID) error
}

// Notifier delivers row ids as they are inserted. A nil notification means
// the connection dropped and was re-established.
type Notifier interface {
	Notify() <-chan *pq.Notification
	Ping() error
	Close() error
}

type RelayConfig struct {
	FallbackInterval time.Duration // How often to poll for missed events
	MaxRetries       int
	RetryDelay       time.Duration
	PingInterval     time.Duration
	BatchSize        int // Max events to fetch per poll
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		FallbackInterval: 30 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
	}
}

// RelayStats counts relay outcomes since start.
type RelayStats struct {
	Published int64 `json:"published"`
	Failed    int64 `json:"failed"`
}

// Relay moves committed outbox rows to a Publisher. Notifications give low
// latency; the fallback poll picks up anything a notification missed.
type Relay struct {
	store     RelayStore
	publisher Publisher
	notifier  Notifier
	clock     clockwork.Clock
	cfg       RelayConfig

	published atomic.Int64
	failed    atomic.Int64
}

// NewRelay creates a Relay. notifier may be nil, in which case the relay only polls.
func NewRelay(store RelayStore, publisher Publisher, notifier Notifier, clock clockwork.Clock, cfg RelayConfig) *Relay {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		notifier:  notifier,
		clock:     clock,
		cfg:       cfg,
	}
}

func (r *Relay) Start(ctx context.Context) error {
	log.Info().
		Bool("notify", r.notifier != nil).
		Dur("ping_interval", r.cfg.PingInterval).
		Dur("fallback_interval", r.cfg.FallbackInterval).
		Msg("outbox relay started")

	fallbackTicker := r.clock.NewTicker(r.cfg.FallbackInterval)
	defer fallbackTicker.Stop()

	var notes <-chan *pq.Notification
	var pings <-chan time.Time
	if r.notifier != nil {
		notes = r.notifier.Notify()
		pingTicker := r.clock.NewTicker(r.cfg.PingInterval)
		defer pingTicker.Stop()
		pings = pingTicker.Chan()
	}

	// Catch up on anything written while the relay was down.
	if _, err := r.ProcessUnsent(ctx); err != nil {
		log.Error().Err(err).Msg("failed to process unsent events")
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("outbox relay shutting down")
			return r.Stop()
		case note := <-notes:
			if note == nil {
				if _, err := r.ProcessUnsent(ctx); err != nil {
					log.Error().Err(err).Msg("failed to process unsent events after reconnect")
				}
				continue
			}
			if err := r.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-fallbackTicker.Chan():
			if _, err := r.ProcessUnsent(ctx); err != nil {
				log.Error().Err(err).Msg("failed to process unsent events")
			}
		case <-pings:
			if err := r.notifier.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (r *Relay) Stop() error {
	if r.notifier == nil {
		return nil
	}
	return r.notifier.Close()
}

func (r *Relay) Stats() RelayStats {
	return RelayStats{Published: r.published.Load(), Failed: r.failed.Load()}
}

// handleNotification reacts to a row being inserted. It drains unsent rows in
// seq order rather than publishing the notified row alone, so a row stuck
// behind an earlier failure is never delivered ahead of it.
func (r *Relay) handleNotification(ctx context.Context, extra string) error {
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid event ID in notification: %w", err)
	}

	event, err := r.store.FetchOutboxByID(ctx, id)
	if errors.Is(err, ErrEventNotFound) {
		// Already relayed by the fallback poll.
		log.Debug().Str("event_id", id.String()).Msg("notified event already sent")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch outbox event: %w", err)
	}

	if _, err := r.ProcessUnsent(ctx); err != nil {
		return fmt.Errorf("failed to relay up to event %s: %w", event.ID, err)
	}
	return nil
}

// ProcessUnsent relays one batch of unsent events in seq order and
// returns how many were published. It stops at the first event that cannot
// be published so a session's events are never delivered out of order.
func (r *Relay) ProcessUnsent(ctx context.Context) (int, error) {
	unsent, err := r.store.FetchUnsentOutbox(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}

	sent := 0
	for _, event := range unsent {
		if err := r.relay(ctx, event); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (r *Relay) relay(ctx context.Context, event events.OutboxEvent) error {
	if err := r.publishWithRetry(ctx, event); err != nil {
		r.failed.Add(1)
		return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
	}

	if err := r.store.MarkOutboxSent(ctx, event.ID); err != nil {
		log.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to mark outbox event as sent")
		return err
	}
	r.published.Add(1)

	log.Debug().
		Str("event_id", event.ID.String()).
		Str("event_type", event.EventType).
		Str("session_id", event.SessionID).
		Msg("published and marked event as sent")
	return nil
}

// publishWithRetry publishes with a linearly growing delay between attempts.
func (r *Relay) publishWithRetry(ctx context.Context, event events.OutboxEvent) error {
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(delay):
			}
		}

		if err := r.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("failed to publish, retrying")
			continue
		}

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}

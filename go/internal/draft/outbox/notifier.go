package outbox

import (
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// NotifyChannel is the Postgres channel the outbox insert trigger notifies on.
const NotifyChannel = "draft_outbox_events"

// PQNotifier is a Notifier backed by a lib/pq LISTEN connection.
type PQNotifier struct {
	listener *pq.Listener
}

func NewPQNotifier(dsn, channel string) (*PQNotifier, error) {
	l := pq.NewListener(
		dsn,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Int("event", int(ev)).Msg("listener event")
			}
		},
	)
	if err := l.Listen(channel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().Str("channel", channel).Msg("listening for notifications")
	return &PQNotifier{listener: l}, nil
}

func (n *PQNotifier) Notify() <-chan *pq.Notification {
	return n.listener.Notify
}

func (n *PQNotifier) Ping() error {
	return n.listener.Ping()
}

func (n *PQNotifier) Close() error {
	return n.listener.Close()
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
	"github.com/mcdev12/leaguedraft/go/internal/draft/outbox"
)

const outboxColumns = `id, seq, session_id, event_type, payload, created_at`

// fetchUnsentOutboxQuery orders by seq because events from one transaction
// share created_at.
const fetchUnsentOutboxQuery = `
		SELECT ` + outboxColumns + `
		FROM draft_outbox WHERE sent_at IS NULL
		ORDER BY seq
		LIMIT $1`

func (r *Repository) InsertOutboxEvent(ctx context.Context, e events.OutboxEvent) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO draft_outbox (id, session_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.SessionID, e.EventType, e.Payload, e.CreatedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("failed to insert outbox event: %w", err))
	}
	return nil
}

func (r *Repository) FetchOutboxByID(ctx context.Context, id uuid.UUID) (*events.OutboxEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+outboxColumns+`
		FROM draft_outbox WHERE id = $1 AND sent_at IS NULL`, id)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to fetch outbox event: %w", err))
	}
	e, err := pgx.CollectExactlyOneRow(rows, scanOutboxEvent)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, outbox.ErrEventNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to scan outbox event: %w", err))
	}
	return &e, nil
}

func (r *Repository) FetchUnsentOutbox(ctx context.Context, limit int) ([]events.OutboxEvent, error) {
	rows, err := r.db.Query(ctx, fetchUnsentOutboxQuery, limit)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to fetch unsent outbox events: %w", err))
	}
	out, err := pgx.CollectRows(rows, scanOutboxEvent)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to scan unsent outbox events: %w", err))
	}
	return out, nil
}

func (r *Repository) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `UPDATE draft_outbox SET sent_at = NOW() WHERE id = $1`, id); err != nil {
		return classify(fmt.Errorf("failed to mark outbox event sent: %w", err))
	}
	return nil
}

func scanOutboxEvent(row pgx.CollectableRow) (events.OutboxEvent, error) {
	var e events.OutboxEvent
	err := row.Scan(&e.ID, &e.Seq, &e.SessionID, &e.EventType, &e.Payload, &e.CreatedAt)
	return e, err
}

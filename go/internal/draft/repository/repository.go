package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/leaguedraft/go/internal/draft/engine"
	"github.com/mcdev12/leaguedraft/go/internal/draft/outbox"
	"github.com/mcdev12/leaguedraft/go/internal/models"
	"github.com/mcdev12/leaguedraft/go/internal/sqlutil"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ engine.Store      = (*Repository)(nil)
	_ outbox.RelayStore = (*Repository)(nil)
)

// Repository is the Postgres draft store.
type Repository struct {
	pool *pgxpool.Pool
	db   DBTX
	inTx bool
}

// NewRepository creates a Repository backed by pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
		db:   pool,
	}
}

// RunInTx runs fn in one database transaction. Sessions read through the
// transaction are locked with FOR UPDATE until it ends.
func (r *Repository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx engine.Tx) error) error {
	err := sqlutil.Run(ctx, r.pool,
		func(tx pgx.Tx) *Repository {
			return &Repository{pool: r.pool, db: tx, inTx: true}
		},
		func(q *Repository) error {
			return fn(ctx, q)
		},
	)
	return classify(err)
}

// Ping checks the pool can reach the database.
func (r *Repository) Ping(ctx context.Context) error {
	return classify(r.pool.Ping(ctx))
}

const sessionColumns = `
	id, COALESCE(league_id, ''), status, draft_order, total_rounds, current_round, current_pick,
	current_team_id, pick_timer_seconds, timer_expires_at, version, started_at, completed_at,
	created_at, updated_at`

func (r *Repository) GetSession(ctx context.Context, id string) (*models.DraftSession, error) {
	query := `SELECT` + sessionColumns + ` FROM draft_sessions WHERE id = $1`
	if r.inTx {
		query += ` FOR UPDATE`
	}

	s, err := scanSession(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrSessionNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to get draft session: %w", err))
	}
	return s, nil
}

func (r *Repository) UpdateSession(ctx context.Context, s *models.DraftSession, expectedVersion int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE draft_sessions SET
			status = $2, draft_order = $3, total_rounds = $4, current_round = $5, current_pick = $6,
			current_team_id = $7, pick_timer_seconds = $8, timer_expires_at = $9,
			started_at = $10, completed_at = $11, updated_at = $12, version = version + 1
		WHERE id = $1 AND version = $13`,
		s.ID, string(s.Status), s.DraftOrder, s.TotalRounds, s.CurrentRound, s.CurrentPick,
		s.CurrentTeamID, s.PickTimerSeconds, s.TimerExpiresAt,
		s.StartedAt, s.CompletedAt, s.UpdatedAt, expectedVersion,
	)
	if err != nil {
		return classify(fmt.Errorf("failed to update draft session: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: session %s at version %d", engine.ErrVersionConflict, s.ID, expectedVersion)
	}
	s.Version = expectedVersion + 1
	return nil
}

// CreateSession inserts a scheduled session. Used by the seed tool.
func (r *Repository) CreateSession(ctx context.Context, s *models.DraftSession) error {
	var leagueID *string
	if s.LeagueID != "" {
		leagueID = &s.LeagueID
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO draft_sessions (id, league_id, status, draft_order, total_rounds, pick_timer_seconds)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING version, created_at, updated_at`,
		s.ID, leagueID, string(s.Status), s.DraftOrder, s.TotalRounds, s.PickTimerSeconds,
	).Scan(&s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return classify(fmt.Errorf("failed to create draft session: %w", err))
	}
	return nil
}

// FetchNextDeadline returns the earliest pick deadline among active sessions.
func (r *Repository) FetchNextDeadline(ctx context.Context) (*time.Time, error) {
	var deadline *time.Time
	err := r.db.QueryRow(ctx, `
		SELECT MIN(timer_expires_at) FROM draft_sessions
		WHERE status = 'active' AND timer_expires_at IS NOT NULL`,
	).Scan(&deadline)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to fetch next deadline: %w", err))
	}
	return deadline, nil
}

// FetchSessionsDue returns active sessions whose timer expired at or before now.
func (r *Repository) FetchSessionsDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM draft_sessions
		WHERE status = 'active' AND timer_expires_at <= $1
		ORDER BY timer_expires_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to fetch sessions due: %w", err))
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, classify(fmt.Errorf("failed to scan sessions due: %w", err))
	}
	return ids, nil
}

func scanSession(row pgx.Row) (*models.DraftSession, error) {
	var s models.DraftSession
	var status string
	err := row.Scan(
		&s.ID, &s.LeagueID, &status, &s.DraftOrder, &s.TotalRounds, &s.CurrentRound, &s.CurrentPick,
		&s.CurrentTeamID, &s.PickTimerSeconds, &s.TimerExpiresAt, &s.Version, &s.StartedAt, &s.CompletedAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = models.DraftSessionStatus(status)
	return &s, nil
}

// classify marks connectivity failures as ErrStoreUnavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, engine.ErrStoreUnavailable) {
		return err
	}
	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", engine.ErrStoreUnavailable, err)
	}
	return err
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mcdev12/leaguedraft/go/internal/draft/engine"
	"github.com/mcdev12/leaguedraft/go/internal/models"
)

const pickColumns = `
	id, session_id, round, pick_number, overall_pick, team_id, player_id, pick_type, picked_at,
	pick_duration_seconds`

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

func (r *Repository) InsertPick(ctx context.Context, p *models.DraftPick) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO draft_picks (`+pickColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.SessionID, p.Round, p.PickNumber, p.OverallPick, p.TeamID, p.PlayerID, p.PickType, p.PickedAt,
		p.PickDurationSeconds,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if pgErr.ConstraintName == "draft_picks_session_player_key" {
			return fmt.Errorf("%w: %v", engine.ErrPlayerAlreadyDrafted, *p.PlayerID)
		}
		return fmt.Errorf("%w: round %d pick %d already recorded", engine.ErrVersionConflict, p.Round, p.PickNumber)
	}
	if err != nil {
		return classify(fmt.Errorf("failed to insert draft pick: %w", err))
	}
	return nil
}

func (r *Repository) ListPicks(ctx context.Context, sessionID string) ([]models.DraftPick, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+pickColumns+` FROM draft_picks
		WHERE session_id = $1
		ORDER BY overall_pick`, sessionID)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list draft picks: %w", err))
	}
	return collectPicks(rows)
}

func (r *Repository) ListPicksByRound(ctx context.Context, sessionID string, round int) ([]models.DraftPick, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+pickColumns+` FROM draft_picks
		WHERE session_id = $1 AND round = $2
		ORDER BY pick_number`, sessionID, round)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list draft picks by round: %w", err))
	}
	return collectPicks(rows)
}

func collectPicks(rows pgx.Rows) ([]models.DraftPick, error) {
	picks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DraftPick, error) {
		var p models.DraftPick
		err := row.Scan(
			&p.ID, &p.SessionID, &p.Round, &p.PickNumber, &p.OverallPick, &p.TeamID, &p.PlayerID, &p.PickType,
			&p.PickedAt, &p.PickDurationSeconds,
		)
		return p, err
	})
	if err != nil {
		return nil, classify(fmt.Errorf("failed to scan draft picks: %w", err))
	}
	if picks == nil {
		picks = []models.DraftPick{}
	}
	return picks, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mcdev12/leaguedraft/go/internal/draft/engine"
	"github.com/mcdev12/leaguedraft/go/internal/models"
)

func (r *Repository) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	var p models.Player
	var status string
	err := r.db.QueryRow(ctx, `
		SELECT id, full_name, draft_status, drafted_by, drafted_at, draft_round, draft_pick
		FROM players WHERE id = $1`, id,
	).Scan(&p.ID, &p.FullName, &status, &p.DraftedBy, &p.DraftedAt, &p.DraftRound, &p.DraftPick)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrPlayerNotFound
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to get player: %w", err))
	}
	p.DraftStatus = models.PlayerDraftStatus(status)
	return &p, nil
}

// MarkPlayerDrafted is conditional on the player still being available, so a
// racing writer that slipped past validation cannot draft the same player twice.
func (r *Repository) MarkPlayerDrafted(ctx context.Context, playerID string, stamp models.DraftStamp) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE players SET
			draft_status = 'drafted', drafted_by = $2, drafted_at = $3, draft_round = $4, draft_pick = $5
		WHERE id = $1 AND draft_status = 'available'`,
		playerID, stamp.TeamID, stamp.At, stamp.Round, stamp.Pick,
	)
	if err != nil {
		return classify(fmt.Errorf("failed to mark player drafted: %w", err))
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetPlayer(ctx, playerID); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", engine.ErrPlayerAlreadyDrafted, playerID)
}

// UpsertPlayer inserts or renames an available player. Used by the seed tool.
func (r *Repository) UpsertPlayer(ctx context.Context, p *models.Player) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO players (id, full_name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET full_name = EXCLUDED.full_name`,
		p.ID, p.FullName,
	)
	if err != nil {
		return classify(fmt.Errorf("failed to upsert player: %w", err))
	}
	return nil
}

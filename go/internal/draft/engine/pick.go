package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
	"github.com/mcdev12/leaguedraft/go/internal/draft/outbox"
	"github.com/mcdev12/leaguedraft/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SubmitPickRequest represents a request to make a draft pick
type SubmitPickRequest struct {
	SessionID string
	TeamID    string
	PlayerID  string
	PickType  string // defaults to manual
}

// PickResult is returned after a pick is applied.
type PickResult struct {
	Pick          models.DraftPick          `json:"pick"`
	NextRound     int                       `json:"nextRound"`
	NextPick      int                       `json:"nextPick"`
	NextTeamID    *string                   `json:"nextTeamId"`
	TimeRemaining int                       `json:"timeRemaining"`
	SessionStatus models.DraftSessionStatus `json:"sessionStatus"`
}

func (r SubmitPickRequest) validate() error {
	switch {
	case strings.TrimSpace(r.SessionID) == "":
		return fmt.Errorf("%w: sessionId is required", ErrInvalidRequest)
	case strings.TrimSpace(r.TeamID) == "":
		return fmt.Errorf("%w: teamId is required", ErrInvalidRequest)
	case strings.TrimSpace(r.PlayerID) == "":
		return fmt.Errorf("%w: playerId is required", ErrInvalidRequest)
	case r.PickType == models.PickTypeAutoSkip:
		return fmt.Errorf("%w: pickType %q is reserved", ErrInvalidRequest, r.PickType)
	}
	return nil
}

// SubmitPick validates and applies one pick, then advances the turn. The
// pick record is written before the player and the player before the session.
func (e *Engine) SubmitPick(ctx context.Context, req SubmitPickRequest) (*PickResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.PickType == "" {
		req.PickType = models.PickTypeManual
	}

	var result *PickResult
	var next *models.DraftSession
	err := e.withSession(ctx, req.SessionID, func(ctx context.Context, tx Tx) error {
		session, err := tx.GetSession(ctx, req.SessionID)
		if err != nil && !errors.Is(err, ErrSessionNotFound) {
			return fmt.Errorf("load session: %w", err)
		}
		player, err := tx.GetPlayer(ctx, req.PlayerID)
		if err != nil && !errors.Is(err, ErrPlayerNotFound) {
			return fmt.Errorf("load player: %w", err)
		}

		if err := ValidatePick(session, player, req.TeamID); err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				return fmt.Errorf("%w: %s", ErrSessionNotFound, req.SessionID)
			}
			if errors.Is(err, ErrPlayerNotFound) {
				return fmt.Errorf("%w: %s", ErrPlayerNotFound, req.PlayerID)
			}
			return err
		}

		turn, err := NextTurn(session.CurrentRound, session.CurrentPick, session.DraftOrder, session.TotalRounds)
		if err != nil {
			return err
		}

		now := e.now()
		playerID := req.PlayerID
		pick := models.DraftPick{
			ID:                  uuid.NewString(),
			SessionID:           session.ID,
			Round:               session.CurrentRound,
			PickNumber:          session.CurrentPick,
			OverallPick:         session.OverallPick(session.CurrentRound, session.CurrentPick),
			TeamID:              req.TeamID,
			PlayerID:            &playerID,
			PickType:            req.PickType,
			PickedAt:            now,
			PickDurationSeconds: PickDuration(session, now),
		}

		if err := tx.InsertPick(ctx, &pick); err != nil {
			return fmt.Errorf("insert pick: %w", err)
		}
		stamp := models.DraftStamp{TeamID: req.TeamID, At: now, Round: pick.Round, Pick: pick.PickNumber}
		if err := tx.MarkPlayerDrafted(ctx, playerID, stamp); err != nil {
			return fmt.Errorf("mark player drafted: %w", err)
		}

		next = session.Clone()
		applyTurn(next, turn, now)
		next.UpdatedAt = now
		if err := tx.UpdateSession(ctx, next, session.Version); err != nil {
			return fmt.Errorf("advance session: %w", err)
		}

		if err := outbox.Record(ctx, tx, session.ID, events.TypePickMade, events.PickMadePayload{
			PickID:              pick.ID,
			SessionID:           session.ID,
			TeamID:              pick.TeamID,
			PlayerID:            playerID,
			PickType:            pick.PickType,
			Round:               pick.Round,
			Pick:                pick.PickNumber,
			OverallPick:         pick.OverallPick,
			PickDurationSeconds: pick.PickDurationSeconds,
			MadeAt:              now,
		}, now); err != nil {
			return err
		}
		if err := recordTurnEvent(ctx, tx, session, next, now); err != nil {
			return err
		}

		result = newPickResult(pick, next, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.notifyDeadline(next)

	log.Info().
		Str("session_id", req.SessionID).
		Str("team_id", req.TeamID).
		Str("player_id", req.PlayerID).
		Int("round", result.Pick.Round).
		Int("pick", result.Pick.PickNumber).
		Str("status", string(result.SessionStatus)).
		Msg("pick applied")

	return result, nil
}

// AutoSkip forfeits the current pick of a session whose timer has expired.
// The forfeited pick is recorded with no player and pickType auto_skip.
func (e *Engine) AutoSkip(ctx context.Context, sessionID string) (*PickResult, error) {
	var result *PickResult
	var next *models.DraftSession
	err := e.withSession(ctx, sessionID, func(ctx context.Context, tx Tx) error {
		session, err := loadSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != models.DraftSessionStatusActive {
			return fmt.Errorf("%w: status is %s", ErrSessionNotActive, session.Status)
		}
		now := e.now()
		if session.TimerExpiresAt == nil || now.Before(*session.TimerExpiresAt) {
			return ErrTimerNotExpired
		}
		if session.CurrentTeamID == nil {
			return fmt.Errorf("%w: active session has no team on the clock", ErrInvalidPosition)
		}

		turn, err := NextTurn(session.CurrentRound, session.CurrentPick, session.DraftOrder, session.TotalRounds)
		if err != nil {
			return err
		}

		pick := models.DraftPick{
			ID:                  uuid.NewString(),
			SessionID:           session.ID,
			Round:               session.CurrentRound,
			PickNumber:          session.CurrentPick,
			OverallPick:         session.OverallPick(session.CurrentRound, session.CurrentPick),
			TeamID:              *session.CurrentTeamID,
			PickType:            models.PickTypeAutoSkip,
			PickedAt:            now,
			PickDurationSeconds: session.PickTimerSeconds,
		}
		if err := tx.InsertPick(ctx, &pick); err != nil {
			return fmt.Errorf("insert skipped pick: %w", err)
		}

		next = session.Clone()
		applyTurn(next, turn, now)
		next.UpdatedAt = now
		if err := tx.UpdateSession(ctx, next, session.Version); err != nil {
			return fmt.Errorf("advance session: %w", err)
		}

		if err := outbox.Record(ctx, tx, session.ID, events.TypePickSkipped, events.PickSkippedPayload{
			PickID:      pick.ID,
			SessionID:   session.ID,
			TeamID:      pick.TeamID,
			Round:       pick.Round,
			Pick:        pick.PickNumber,
			OverallPick: pick.OverallPick,
			ExpiredAt:   *session.TimerExpiresAt,
			SkippedAt:   now,
		}, now); err != nil {
			return err
		}
		if err := recordTurnEvent(ctx, tx, session, next, now); err != nil {
			return err
		}

		result = newPickResult(pick, next, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.notifyDeadline(next)

	log.Warn().
		Str("session_id", sessionID).
		Str("team_id", result.Pick.TeamID).
		Int("round", result.Pick.Round).
		Int("pick", result.Pick.PickNumber).
		Msg("pick auto-skipped after timer expiry")

	return result, nil
}

func newPickResult(pick models.DraftPick, next *models.DraftSession, now time.Time) *PickResult {
	return &PickResult{
		Pick:          pick,
		NextRound:     next.CurrentRound,
		NextPick:      next.CurrentPick,
		NextTeamID:    next.CurrentTeamID,
		TimeRemaining: TimeRemaining(next.TimerExpiresAt, now),
		SessionStatus: next.Status,
	}
}

// recordTurnEvent emits PickStarted for the next team, or DraftCompleted.
func recordTurnEvent(ctx context.Context, tx Tx, before, after *models.DraftSession, now time.Time) error {
	if after.Status == models.DraftSessionStatusCompleted {
		var duration time.Duration
		if before.StartedAt != nil {
			duration = now.Sub(*before.StartedAt)
		}
		return outbox.Record(ctx, tx, after.ID, events.TypeDraftCompleted, events.DraftCompletedPayload{
			SessionID:   after.ID,
			CompletedAt: now,
			Duration:    duration.String(),
			TotalPicks:  after.TotalPicks(),
		}, now)
	}
	return outbox.Record(ctx, tx, after.ID, events.TypePickStarted, events.PickStartedPayload{
		SessionID:        after.ID,
		TeamID:           *after.CurrentTeamID,
		Round:            after.CurrentRound,
		Pick:             after.CurrentPick,
		OverallPick:      after.OverallPick(after.CurrentRound, after.CurrentPick),
		StartedAt:        now,
		TimeoutAt:        *after.TimerExpiresAt,
		PickTimerSeconds: after.PickTimerSeconds,
	}, now)
}

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
	"github.com/mcdev12/leaguedraft/go/internal/draft/outbox"
	"github.com/mcdev12/leaguedraft/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SessionState is the read view served to clients.
type SessionState struct {
	Session           *models.DraftSession `json:"session"`
	TimeRemaining     int                  `json:"timeRemaining"`
	CurrentRoundPicks []models.DraftPick   `json:"currentRoundPicks"`
}

// Optional distinguishes an absent JSON field from an explicit null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON is only called when the key is present.
func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// SessionPatch is an administrative partial update. Only fields that are Set
// are written.
type SessionPatch struct {
	Status           Optional[models.DraftSessionStatus] `json:"status"`
	DraftOrder       Optional[[]string]                  `json:"draftOrder"`
	TotalRounds      Optional[int]                       `json:"totalRounds"`
	CurrentRound     Optional[int]                       `json:"currentRound"`
	CurrentPick      Optional[int]                       `json:"currentPick"`
	CurrentTeamID    Optional[string]                    `json:"currentTeamId"`
	PickTimerSeconds Optional[int]                       `json:"pickTimerSeconds"`
	TimerExpiresAt   Optional[time.Time]                 `json:"timerExpiresAt"`
}

// StartDraft moves a scheduled session to active with the first team on the clock.
func (e *Engine) StartDraft(ctx context.Context, sessionID string) (*models.DraftSession, error) {
	var next *models.DraftSession
	err := e.withSession(ctx, sessionID, func(ctx context.Context, tx Tx) error {
		session, err := loadSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != models.DraftSessionStatusScheduled {
			return fmt.Errorf("%w: status is %s", ErrSessionNotScheduled, session.Status)
		}
		first, err := FirstTurn(session.DraftOrder, session.TotalRounds)
		if err != nil {
			return err
		}

		now := e.now()
		next = session.Clone()
		applyTurn(next, first, now)
		next.StartedAt = &now
		next.UpdatedAt = now
		if err := tx.UpdateSession(ctx, next, session.Version); err != nil {
			return fmt.Errorf("start session: %w", err)
		}

		if err := outbox.Record(ctx, tx, next.ID, events.TypeDraftStarted, events.DraftStartedPayload{
			SessionID:   next.ID,
			DraftOrder:  next.DraftOrder,
			StartedAt:   now,
			TotalRounds: next.TotalRounds,
			TotalPicks:  next.TotalPicks(),
		}, now); err != nil {
			return err
		}
		return recordTurnEvent(ctx, tx, session, next, now)
	})
	if err != nil {
		return nil, err
	}

	e.notifyDeadline(next)

	log.Info().
		Str("session_id", sessionID).
		Int("teams", len(next.DraftOrder)).
		Int("total_rounds", next.TotalRounds).
		Msg("draft started")

	return next, nil
}

// UpdateSession applies an administrative override and stamps updatedAt.
// Overrides may rewind the position; that is the one sanctioned way to do so.
func (e *Engine) UpdateSession(ctx context.Context, sessionID string, patch SessionPatch) (*models.DraftSession, error) {
	if err := patch.validate(); err != nil {
		return nil, err
	}

	var next *models.DraftSession
	err := e.withSession(ctx, sessionID, func(ctx context.Context, tx Tx) error {
		session, err := loadSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}

		now := e.now()
		next = session.Clone()
		fields := patch.apply(next)
		if err := checkActivePosition(next); err != nil {
			return err
		}
		next.UpdatedAt = now
		if err := tx.UpdateSession(ctx, next, session.Version); err != nil {
			return fmt.Errorf("update session: %w", err)
		}

		return outbox.Record(ctx, tx, next.ID, events.TypeSessionUpdated, events.SessionUpdatedPayload{
			SessionID:     next.ID,
			Fields:        fields,
			Status:        string(next.Status),
			CurrentRound:  next.CurrentRound,
			CurrentPick:   next.CurrentPick,
			CurrentTeamID: next.CurrentTeamID,
			UpdatedAt:     now,
		}, now)
	})
	if err != nil {
		return nil, err
	}

	e.notifyDeadline(next)

	log.Info().Str("session_id", sessionID).Msg("session updated by administrator")
	return next, nil
}

// GetState returns the session, its remaining pick time and the picks of the
// current round. A completed session reports its final round.
func (e *Engine) GetState(ctx context.Context, sessionID string) (*SessionState, error) {
	session, err := loadSession(ctx, e.store, sessionID)
	if err != nil {
		return nil, err
	}

	round := session.CurrentRound
	if session.Status == models.DraftSessionStatusCompleted && round > session.TotalRounds {
		round = session.TotalRounds
	}

	picks := []models.DraftPick{}
	if round > 0 {
		picks, err = e.store.ListPicksByRound(ctx, sessionID, round)
		if err != nil {
			return nil, fmt.Errorf("list picks for round %d: %w", round, err)
		}
	}

	return &SessionState{
		Session:           session,
		TimeRemaining:     TimeRemaining(session.TimerExpiresAt, e.now()),
		CurrentRoundPicks: picks,
	}, nil
}

// ListPicks returns every pick of the session in pick order.
func (e *Engine) ListPicks(ctx context.Context, sessionID string) ([]models.DraftPick, error) {
	if _, err := loadSession(ctx, e.store, sessionID); err != nil {
		return nil, err
	}
	picks, err := e.store.ListPicks(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list picks: %w", err)
	}
	return picks, nil
}

func (p SessionPatch) validate() error {
	if p.Status.Set {
		if p.Status.Value == nil || !p.Status.Value.Valid() {
			return fmt.Errorf("%w: status must be one of scheduled, active, completed", ErrInvalidRequest)
		}
	}
	if p.DraftOrder.Set {
		if p.DraftOrder.Value == nil || len(*p.DraftOrder.Value) == 0 {
			return fmt.Errorf("%w: draftOrder cannot be empty", ErrInvalidRequest)
		}
		for _, id := range *p.DraftOrder.Value {
			if strings.TrimSpace(id) == "" {
				return fmt.Errorf("%w: draftOrder contains an empty team id", ErrInvalidRequest)
			}
		}
	}
	if p.TotalRounds.Set && (p.TotalRounds.Value == nil || *p.TotalRounds.Value < 1) {
		return fmt.Errorf("%w: totalRounds must be at least 1", ErrInvalidRequest)
	}
	if p.CurrentRound.Set && (p.CurrentRound.Value == nil || *p.CurrentRound.Value < 0) {
		return fmt.Errorf("%w: currentRound cannot be negative", ErrInvalidRequest)
	}
	if p.CurrentPick.Set && (p.CurrentPick.Value == nil || *p.CurrentPick.Value < 0) {
		return fmt.Errorf("%w: currentPick cannot be negative", ErrInvalidRequest)
	}
	if p.PickTimerSeconds.Set && (p.PickTimerSeconds.Value == nil || *p.PickTimerSeconds.Value < 0) {
		return fmt.Errorf("%w: pickTimerSeconds cannot be negative", ErrInvalidRequest)
	}
	return nil
}

// checkActivePosition rejects an override that would leave an active session
// on a turn the engine cannot advance from, where neither a pick nor a skip
// could ever land.
func checkActivePosition(s *models.DraftSession) error {
	if s.Status != models.DraftSessionStatusActive {
		return nil
	}
	if _, err := NextTurn(s.CurrentRound, s.CurrentPick, s.DraftOrder, s.TotalRounds); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if s.CurrentTeamID == nil {
		return fmt.Errorf("%w: active session needs a team on the clock", ErrInvalidRequest)
	}
	return nil
}

// apply writes the set fields onto s and returns their names.
func (p SessionPatch) apply(s *models.DraftSession) []string {
	var fields []string
	if p.Status.Set {
		s.Status = *p.Status.Value
		fields = append(fields, "status")
	}
	if p.DraftOrder.Set {
		s.DraftOrder = append([]string(nil), (*p.DraftOrder.Value)...)
		fields = append(fields, "draftOrder")
	}
	if p.TotalRounds.Set {
		s.TotalRounds = *p.TotalRounds.Value
		fields = append(fields, "totalRounds")
	}
	if p.CurrentRound.Set {
		s.CurrentRound = *p.CurrentRound.Value
		fields = append(fields, "currentRound")
	}
	if p.CurrentPick.Set {
		s.CurrentPick = *p.CurrentPick.Value
		fields = append(fields, "currentPick")
	}
	if p.CurrentTeamID.Set {
		s.CurrentTeamID = p.CurrentTeamID.Value
		fields = append(fields, "currentTeamId")
	}
	if p.PickTimerSeconds.Set {
		s.PickTimerSeconds = *p.PickTimerSeconds.Value
		fields = append(fields, "pickTimerSeconds")
	}
	if p.TimerExpiresAt.Set {
		s.TimerExpiresAt = p.TimerExpiresAt.Value
		fields = append(fields, "timerExpiresAt")
	}
	return fields
}

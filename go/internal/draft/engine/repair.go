package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
	"github.com/mcdev12/leaguedraft/go/internal/draft/outbox"
	"github.com/mcdev12/leaguedraft/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Position is a (round, pick, status) snapshot used in repair reports.
type Position struct {
	Round  int                       `json:"round"`
	Pick   int                       `json:"pick"`
	Status models.DraftSessionStatus `json:"status"`
}

// RepairReport describes what RepairSession found and changed.
type RepairReport struct {
	SessionID        string   `json:"sessionId"`
	PicksRecorded    int      `json:"picksRecorded"`
	Before           Position `json:"before"`
	After            Position `json:"after"`
	Advanced         bool     `json:"advanced"`
	PlayersRestamped []string `json:"playersRestamped"`
	MissingPlayers   []string `json:"missingPlayers,omitempty"`
}

// Changed reports whether the repair wrote anything.
func (r *RepairReport) Changed() bool {
	return r.Advanced || len(r.PlayersRestamped) > 0
}

// RepairSession re-derives a session's position from the picks already
// recorded. It finishes interrupted picks (pick written, player or session not
// updated) and never rewinds: a session ahead of its picks is reported as
// ErrRepairImpossible and left untouched.
func (e *Engine) RepairSession(ctx context.Context, sessionID string) (*RepairReport, error) {
	var report *RepairReport
	var next *models.DraftSession
	err := e.withSession(ctx, sessionID, func(ctx context.Context, tx Tx) error {
		session, err := loadSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		picks, err := tx.ListPicks(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("list picks: %w", err)
		}
		sort.Slice(picks, func(i, j int) bool { return picks[i].OverallPick < picks[j].OverallPick })

		report = &RepairReport{
			SessionID:        sessionID,
			PicksRecorded:    len(picks),
			Before:           Position{Round: session.CurrentRound, Pick: session.CurrentPick, Status: session.Status},
			PlayersRestamped: []string{},
		}
		report.After = report.Before

		if made := picksMade(session); made > len(picks) {
			return fmt.Errorf("%w: position implies %d picks, %d recorded", ErrRepairImpossible, made, len(picks))
		}

		now := e.now()
		for _, p := range picks {
			if p.PlayerID == nil {
				continue
			}
			player, err := tx.GetPlayer(ctx, *p.PlayerID)
			if errors.Is(err, ErrPlayerNotFound) {
				report.MissingPlayers = append(report.MissingPlayers, *p.PlayerID)
				continue
			}
			if err != nil {
				return fmt.Errorf("load player %s: %w", *p.PlayerID, err)
			}
			if player.DraftStatus == models.PlayerDraftStatusDrafted {
				continue
			}
			stamp := models.DraftStamp{TeamID: p.TeamID, At: p.PickedAt, Round: p.Round, Pick: p.PickNumber}
			if err := tx.MarkPlayerDrafted(ctx, player.ID, stamp); err != nil {
				return fmt.Errorf("restamp player %s: %w", player.ID, err)
			}
			report.PlayersRestamped = append(report.PlayersRestamped, player.ID)
		}

		if len(picks) > picksMade(session) {
			turn, err := TurnAfter(len(picks), session.DraftOrder, session.TotalRounds)
			if err != nil {
				return err
			}
			next = session.Clone()
			applyTurn(next, turn, now)
			if next.StartedAt == nil {
				next.StartedAt = &picks[0].PickedAt
			}
			next.UpdatedAt = now
			if err := tx.UpdateSession(ctx, next, session.Version); err != nil {
				return fmt.Errorf("repair session: %w", err)
			}
			report.Advanced = true
			report.After = Position{Round: next.CurrentRound, Pick: next.CurrentPick, Status: next.Status}
		}

		if !report.Changed() {
			return nil
		}
		return outbox.Record(ctx, tx, sessionID, events.TypeSessionRepaired, events.SessionRepairedPayload{
			SessionID:        sessionID,
			PicksRecorded:    report.PicksRecorded,
			FromRound:        report.Before.Round,
			FromPick:         report.Before.Pick,
			ToRound:          report.After.Round,
			ToPick:           report.After.Pick,
			PlayersRestamped: report.PlayersRestamped,
			RepairedAt:       now,
		}, now)
	})
	if err != nil {
		return nil, err
	}

	e.notifyDeadline(next)

	log.Info().
		Str("session_id", sessionID).
		Int("picks_recorded", report.PicksRecorded).
		Bool("advanced", report.Advanced).
		Int("players_restamped", len(report.PlayersRestamped)).
		Msg("session repair finished")

	return report, nil
}

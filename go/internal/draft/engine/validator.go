package engine

import (
	"fmt"
	"time"

	"github.com/mcdev12/leaguedraft/go/internal/models"
)

// ValidatePick decides whether teamID may pick player against session right
// now. A nil session or player means it was not found. Read-only.
func ValidatePick(session *models.DraftSession, player *models.Player, teamID string) error {
	if session == nil {
		return ErrSessionNotFound
	}
	if session.Status != models.DraftSessionStatusActive {
		return fmt.Errorf("%w: status is %s", ErrSessionNotActive, session.Status)
	}
	if session.CurrentTeamID == nil || *session.CurrentTeamID != teamID {
		return fmt.Errorf("%w: team %s is not on the clock", ErrWrongTurn, teamID)
	}
	if player == nil {
		return ErrPlayerNotFound
	}
	if player.DraftStatus == models.PlayerDraftStatusDrafted {
		return fmt.Errorf("%w: %s", ErrPlayerAlreadyDrafted, player.ID)
	}
	return nil
}

// PickDuration is the number of whole seconds consumed from the current pick
// window. Picks landing after the window closed record 0.
func PickDuration(session *models.DraftSession, now time.Time) int {
	if session.TimerExpiresAt == nil {
		return 0
	}
	if now.After(*session.TimerExpiresAt) {
		return 0
	}
	windowStart := session.TimerExpiresAt.Add(-time.Duration(session.PickTimerSeconds) * time.Second)
	elapsed := int(now.Sub(windowStart) / time.Second)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// TimeRemaining returns whole seconds until expiresAt, floored at 0.
func TimeRemaining(expiresAt *time.Time, now time.Time) int {
	if expiresAt == nil {
		return 0
	}
	d := expiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

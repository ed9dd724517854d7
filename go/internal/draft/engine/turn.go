package engine

import (
	"fmt"
	"time"

	"github.com/mcdev12/leaguedraft/go/internal/models"
)

// Turn is a (round, pick, team) position in a draft. A completed turn has no
// team and sits one round past the last.
type Turn struct {
	Round     int
	Pick      int
	TeamID    string
	Completed bool
}

// FirstTurn returns the opening position of a draft.
func FirstTurn(draftOrder []string, totalRounds int) (Turn, error) {
	if len(draftOrder) == 0 {
		return Turn{}, fmt.Errorf("%w: draft order is empty", ErrInvalidSession)
	}
	if totalRounds < 1 {
		return Turn{}, fmt.Errorf("%w: total rounds must be positive, got %d", ErrInvalidSession, totalRounds)
	}
	return Turn{Round: 1, Pick: 1, TeamID: draftOrder[0]}, nil
}

// NextTurn computes the position after (currentRound, currentPick). Order is
// always forward through draftOrder; every round restarts at draftOrder[0].
func NextTurn(currentRound, currentPick int, draftOrder []string, totalRounds int) (Turn, error) {
	n := len(draftOrder)
	if n == 0 || totalRounds < 1 {
		return Turn{}, fmt.Errorf("%w: order of %d teams over %d rounds", ErrInvalidPosition, n, totalRounds)
	}
	if currentPick < 1 || currentPick > n {
		return Turn{}, fmt.Errorf("%w: pick %d outside 1..%d", ErrInvalidPosition, currentPick, n)
	}
	if currentRound < 1 || currentRound > totalRounds {
		return Turn{}, fmt.Errorf("%w: round %d outside 1..%d", ErrInvalidPosition, currentRound, totalRounds)
	}

	nextPick := currentPick + 1
	if nextPick <= n {
		return Turn{Round: currentRound, Pick: nextPick, TeamID: draftOrder[nextPick-1]}, nil
	}

	nextRound := currentRound + 1
	if nextRound <= totalRounds {
		return Turn{Round: nextRound, Pick: 1, TeamID: draftOrder[0]}, nil
	}
	return Turn{Round: nextRound, Pick: 1, Completed: true}, nil
}

// TurnAfter returns the position once picksMade picks have been recorded.
func TurnAfter(picksMade int, draftOrder []string, totalRounds int) (Turn, error) {
	first, err := FirstTurn(draftOrder, totalRounds)
	if err != nil {
		return Turn{}, err
	}
	if picksMade < 0 {
		return Turn{}, fmt.Errorf("%w: negative pick count %d", ErrInvalidPosition, picksMade)
	}
	n := len(draftOrder)
	if picksMade >= totalRounds*n {
		return Turn{Round: totalRounds + 1, Pick: 1, Completed: true}, nil
	}
	if picksMade == 0 {
		return first, nil
	}
	pick := picksMade%n + 1
	return Turn{Round: picksMade/n + 1, Pick: pick, TeamID: draftOrder[pick-1]}, nil
}

// picksMade is the number of picks a session's position implies.
func picksMade(s *models.DraftSession) int {
	if s.Status == models.DraftSessionStatusScheduled || s.CurrentRound < 1 {
		return 0
	}
	return s.OverallPick(s.CurrentRound, s.CurrentPick) - 1
}

// applyTurn moves the session to t and opens a fresh timer window at now.
func applyTurn(s *models.DraftSession, t Turn, now time.Time) {
	s.CurrentRound = t.Round
	s.CurrentPick = t.Pick
	if t.Completed {
		s.Status = models.DraftSessionStatusCompleted
		s.CurrentTeamID = nil
		s.TimerExpiresAt = nil
		s.CompletedAt = &now
		return
	}
	team := t.TeamID
	expires := now.Add(time.Duration(s.PickTimerSeconds) * time.Second)
	s.Status = models.DraftSessionStatusActive
	s.CurrentTeamID = &team
	s.TimerExpiresAt = &expires
}

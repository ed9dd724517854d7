package models

import (
	"time"
)

// DraftSessionStatus defines the lifecycle status of a draft session.
type DraftSessionStatus string

const (
	DraftSessionStatusScheduled DraftSessionStatus = "scheduled"
	DraftSessionStatusActive    DraftSessionStatus = "active"
	DraftSessionStatusCompleted DraftSessionStatus = "completed"
)

// Valid reports whether s is a known status.
func (s DraftSessionStatus) Valid() bool {
	switch s {
	case DraftSessionStatusScheduled, DraftSessionStatusActive, DraftSessionStatusCompleted:
		return true
	}
	return false
}

// DraftSession represents one draft run over a fixed draft order.
type DraftSession struct {
	ID               string             `json:"id"`
	LeagueID         string             `json:"leagueId,omitempty"`
	Status           DraftSessionStatus `json:"status"`
	DraftOrder       []string           `json:"draftOrder"`
	TotalRounds      int                `json:"totalRounds"`
	CurrentRound     int                `json:"currentRound,omitempty"` // 0 until started
	CurrentPick      int                `json:"currentPick,omitempty"`  // 0 until started
	CurrentTeamID    *string            `json:"currentTeamId"`
	PickTimerSeconds int                `json:"pickTimerSeconds"`
	TimerExpiresAt   *time.Time         `json:"timerExpiresAt"`
	Version          int64              `json:"version"`
	StartedAt        *time.Time         `json:"startedAt,omitempty"`
	CompletedAt      *time.Time         `json:"completedAt,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// PicksPerRound is the length of the draft order.
func (s *DraftSession) PicksPerRound() int {
	return len(s.DraftOrder)
}

// TotalPicks is the number of picks needed to complete the session.
func (s *DraftSession) TotalPicks() int {
	return s.TotalRounds * len(s.DraftOrder)
}

// OverallPick returns the 1-based overall index of a (round, pick) position.
func (s *DraftSession) OverallPick(round, pick int) int {
	return (round-1)*len(s.DraftOrder) + pick
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (s *DraftSession) Clone() *DraftSession {
	if s == nil {
		return nil
	}
	c := *s
	c.DraftOrder = append([]string(nil), s.DraftOrder...)
	if s.CurrentTeamID != nil {
		id := *s.CurrentTeamID
		c.CurrentTeamID = &id
	}
	c.TimerExpiresAt = cloneTime(s.TimerExpiresAt)
	c.StartedAt = cloneTime(s.StartedAt)
	c.CompletedAt = cloneTime(s.CompletedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

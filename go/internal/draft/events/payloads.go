package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types written to the draft outbox.
const (
	TypeDraftStarted    = "DraftStarted"
	TypePickMade        = "PickMade"
	TypePickSkipped     = "PickSkipped"
	TypePickStarted     = "PickStarted"
	TypeDraftCompleted  = "DraftCompleted"
	TypeSessionUpdated  = "SessionUpdated"
	TypeSessionRepaired = "SessionRepaired"
)

// OutboxEvent is one row of the draft outbox.
type OutboxEvent struct {
	ID        uuid.UUID
	Seq       int64 // assigned by the store on insert; relay order
	SessionID string
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// Envelope is the wire shape published to the bus and consumed by gateways.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Event payload types shared between the engine, the relay and the gateway

// PickStartedPayload is the payload for a PickStarted event
type PickStartedPayload struct {
	SessionID        string    `json:"session_id"`
	TeamID           string    `json:"team_id"`
	Round            int       `json:"round"`
	Pick             int       `json:"pick"`
	OverallPick      int       `json:"overall_pick"`
	StartedAt        time.Time `json:"started_at"`
	TimeoutAt        time.Time `json:"timeout_at"`
	PickTimerSeconds int       `json:"pick_timer_seconds"`
}

// PickMadePayload is the payload for a PickMade event
type PickMadePayload struct {
	PickID              string    `json:"pick_id"`
	SessionID           string    `json:"session_id"`
	TeamID              string    `json:"team_id"`
	PlayerID            string    `json:"player_id"`
	PickType            string    `json:"pick_type"`
	Round               int       `json:"round"`
	Pick                int       `json:"pick"`
	OverallPick         int       `json:"overall_pick"`
	PickDurationSeconds int       `json:"pick_duration_seconds"`
	MadeAt              time.Time `json:"made_at"`
}

// PickSkippedPayload is the payload for a PickSkipped event
type PickSkippedPayload struct {
	PickID      string    `json:"pick_id"`
	SessionID   string    `json:"session_id"`
	TeamID      string    `json:"team_id"`
	Round       int       `json:"round"`
	Pick        int       `json:"pick"`
	OverallPick int       `json:"overall_pick"`
	ExpiredAt   time.Time `json:"expired_at"`
	SkippedAt   time.Time `json:"skipped_at"`
}

// DraftStartedPayload is the payload for a DraftStarted event
type DraftStartedPayload struct {
	SessionID   string    `json:"session_id"`
	DraftOrder  []string  `json:"draft_order"`
	StartedAt   time.Time `json:"started_at"`
	TotalRounds int       `json:"total_rounds"`
	TotalPicks  int       `json:"total_picks"`
}

// DraftCompletedPayload is the payload for a DraftCompleted event
type DraftCompletedPayload struct {
	SessionID   string    `json:"session_id"`
	CompletedAt time.Time `json:"completed_at"`
	Duration    string    `json:"duration"`
	TotalPicks  int       `json:"total_picks"`
}

// SessionUpdatedPayload is the payload for an administrative SessionUpdated event
type SessionUpdatedPayload struct {
	SessionID     string    `json:"session_id"`
	Fields        []string  `json:"fields"`
	Status        string    `json:"status"`
	CurrentRound  int       `json:"current_round"`
	CurrentPick   int       `json:"current_pick"`
	CurrentTeamID *string   `json:"current_team_id"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SessionRepairedPayload is the payload for a SessionRepaired event
type SessionRepairedPayload struct {
	SessionID        string    `json:"session_id"`
	PicksRecorded    int       `json:"picks_recorded"`
	FromRound        int       `json:"from_round"`
	FromPick         int       `json:"from_pick"`
	ToRound          int       `json:"to_round"`
	ToPick           int       `json:"to_pick"`
	PlayersRestamped []string  `json:"players_restamped"`
	RepairedAt       time.Time `json:"repaired_at"`
}

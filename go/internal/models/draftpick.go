package models

import (
	"time"
)

const (
	PickTypeManual   = "manual"
	PickTypeAutoSkip = "auto_skip" // written by the expiry watchdog, never by callers
)

// DraftPick represents a single recorded pick. Picks are append-only.
type DraftPick struct {
	ID                  string    `json:"id"`
	SessionID           string    `json:"sessionId"`
	Round               int       `json:"round"`
	PickNumber          int       `json:"pickNumber"`  // pick number in the round
	OverallPick         int       `json:"overallPick"` // pick number overall
	TeamID              string    `json:"teamId"`
	PlayerID            *string   `json:"playerId"` // nil for an auto-skip
	PickType            string    `json:"pickType"`
	PickedAt            time.Time `json:"pickedAt"`
	PickDurationSeconds int       `json:"pickDurationSeconds"`
}

package models

import (
	"time"
)

// PlayerDraftStatus defines whether a player can still be picked.
type PlayerDraftStatus string

const (
	PlayerDraftStatusAvailable PlayerDraftStatus = "available"
	PlayerDraftStatusDrafted   PlayerDraftStatus = "drafted"
)

// Player is the draft-relevant slice of a player profile. The profile itself
// is owned elsewhere; the draft engine only flips available -> drafted.
type Player struct {
	ID          string            `json:"id"`
	FullName    string            `json:"fullName,omitempty"`
	DraftStatus PlayerDraftStatus `json:"draftStatus"`
	DraftedBy   *string           `json:"draftedBy,omitempty"`
	DraftedAt   *time.Time        `json:"draftedAt,omitempty"`
	DraftRound  *int              `json:"draftRound,omitempty"`
	DraftPick   *int              `json:"draftPick,omitempty"`
}

// DraftStamp is the metadata written on the drafted transition.
type DraftStamp struct {
	TeamID string
	At     time.Time
	Round  int
	Pick   int
}

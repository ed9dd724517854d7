package engine

import "errors"

// Caller errors. Never retried by the engine.
var (
	ErrSessionNotFound      = errors.New("draft session not found")
	ErrSessionNotActive     = errors.New("draft session is not active")
	ErrSessionNotScheduled  = errors.New("draft session is not scheduled")
	ErrWrongTurn            = errors.New("not this team's turn")
	ErrPlayerNotFound       = errors.New("player not found")
	ErrPlayerAlreadyDrafted = errors.New("player already drafted")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidSession       = errors.New("invalid draft session")
	ErrInvalidPosition      = errors.New("invalid draft position")
	ErrTimerNotExpired      = errors.New("pick timer has not expired")
	ErrRepairImpossible     = errors.New("session is ahead of its recorded picks")
)

// Infrastructure errors.
var (
	ErrStoreUnavailable = errors.New("draft store unavailable")
	ErrVersionConflict  = errors.New("draft session was modified concurrently")
)

// IsCallerError reports whether err is caused by the request rather than the system.
func IsCallerError(err error) bool {
	for _, target := range []error{
		ErrSessionNotActive, ErrSessionNotScheduled, ErrWrongTurn, ErrPlayerAlreadyDrafted,
		ErrInvalidRequest, ErrInvalidSession, ErrInvalidPosition, ErrTimerNotExpired,
		ErrSessionNotFound, ErrPlayerNotFound, ErrRepairImpossible,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

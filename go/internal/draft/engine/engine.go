package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
	"github.com/mcdev12/leaguedraft/go/internal/draft/lock"
	"github.com/mcdev12/leaguedraft/go/internal/models"
)

// Tx is the unit of work every engine mutation runs in. Lookups return
// ErrSessionNotFound / ErrPlayerNotFound when the record does not exist.
type Tx interface {
	GetSession(ctx context.Context, id string) (*models.DraftSession, error)
	GetPlayer(ctx context.Context, id string) (*models.Player, error)
	ListPicks(ctx context.Context, sessionID string) ([]models.DraftPick, error)
	ListPicksByRound(ctx context.Context, sessionID string, round int) ([]models.DraftPick, error)
	InsertPick(ctx context.Context, pick *models.DraftPick) error
	// MarkPlayerDrafted flips available -> drafted. It fails with
	// ErrPlayerAlreadyDrafted when the player is no longer available.
	MarkPlayerDrafted(ctx context.Context, playerID string, stamp models.DraftStamp) error
	// UpdateSession writes session only if the stored version still equals
	// expectedVersion, then bumps session.Version. Otherwise ErrVersionConflict.
	UpdateSession(ctx context.Context, session *models.DraftSession, expectedVersion int64) error
	InsertOutboxEvent(ctx context.Context, event events.OutboxEvent) error
}

// Store runs reads directly and mutations through RunInTx. Inside RunInTx,
// GetSession locks the session for the rest of the unit of work where the
// backing store supports it.
type Store interface {
	Tx
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Engine applies draft operations with per-session serialization.
type Engine struct {
	store Store
	locks *lock.Sessions
	clock clockwork.Clock

	onDeadline func(time.Time)
}

// NewEngine creates a new draft Engine
func NewEngine(store Store, clock clockwork.Clock) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		store: store,
		locks: lock.NewSessions(),
		clock: clock,
	}
}

// OnDeadline registers fn to be called after a commit that opens a new pick
// window. The expiry watchdog uses it to wake early.
func (e *Engine) OnDeadline(fn func(time.Time)) {
	e.onDeadline = fn
}

// withSession runs fn in a transaction while holding the session's lock.
func (e *Engine) withSession(ctx context.Context, sessionID string, fn func(ctx context.Context, tx Tx) error) error {
	unlock, err := e.locks.Lock(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("acquire session lock: %w", err)
	}
	defer unlock()

	return e.store.RunInTx(ctx, fn)
}

func (e *Engine) now() time.Time {
	return e.clock.Now().UTC()
}

func (e *Engine) notifyDeadline(s *models.DraftSession) {
	if e.onDeadline == nil || s == nil || s.TimerExpiresAt == nil {
		return
	}
	e.onDeadline(*s.TimerExpiresAt)
}

// loadSession wraps a missing session with its id.
func loadSession(ctx context.Context, tx Tx, id string) (*models.DraftSession, error) {
	session, err := tx.GetSession(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return session, nil
}

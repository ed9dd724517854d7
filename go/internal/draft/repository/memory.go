package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/leaguedraft/go/internal/draft/engine"
	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
	"github.com/mcdev12/leaguedraft/go/internal/draft/lock"
	"github.com/mcdev12/leaguedraft/go/internal/draft/outbox"
	"github.com/mcdev12/leaguedraft/go/internal/models"
)

var (
	_ engine.Store      = (*MemoryStore)(nil)
	_ outbox.RelayStore = (*MemoryStore)(nil)
)

// MemoryStore is an in-process draft store for local runs and tests. A unit
// of work stages its writes and applies them in one step on commit, so
// readers only ever see committed state. Reading a session inside a unit of
// work locks it until the unit of work ends.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.DraftSession
	players  map[string]*models.Player
	picks    map[string][]models.DraftPick
	outbox   []*memoryOutboxRow
	seq      int64

	rows    *lock.Sessions
	offline atomic.Bool
}

type memoryOutboxRow struct {
	event events.OutboxEvent
	sent  bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.DraftSession),
		players:  make(map[string]*models.Player),
		picks:    make(map[string][]models.DraftPick),
		rows:     lock.NewSessions(),
	}
}

// SetOffline makes every call fail with ErrStoreUnavailable.
func (m *MemoryStore) SetOffline(offline bool) {
	m.offline.Store(offline)
}

func (m *MemoryStore) check() error {
	if m.offline.Load() {
		return fmt.Errorf("%w: memory store offline", engine.ErrStoreUnavailable)
	}
	return nil
}

// PutSession stores a copy of s, replacing any session with the same id.
func (m *MemoryStore) PutSession(s *models.DraftSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := s.Clone()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
		c.UpdatedAt = c.CreatedAt
	}
	m.sessions[s.ID] = c
}

// PutPlayer stores a copy of p.
func (m *MemoryStore) PutPlayer(p *models.Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *p
	if c.DraftStatus == "" {
		c.DraftStatus = models.PlayerDraftStatusAvailable
	}
	m.players[p.ID] = &c
}

// Outbox returns every recorded event in insertion order.
func (m *MemoryStore) Outbox() []events.OutboxEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]events.OutboxEvent, 0, len(m.outbox))
	for _, row := range m.outbox {
		out = append(out, row.event)
	}
	return out
}

// RunInTx runs fn against a staging view of the store and commits its writes
// only if fn succeeds.
func (m *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx engine.Tx) error) error {
	if err := m.check(); err != nil {
		return err
	}
	tx := newMemoryTx(m)
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*models.DraftSession, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, engine.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) GetPlayer(_ context.Context, id string) (*models.Player, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	if !ok {
		return nil, engine.ErrPlayerNotFound
	}
	c := *p
	return &c, nil
}

func (m *MemoryStore) ListPicks(_ context.Context, sessionID string) ([]models.DraftPick, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]models.DraftPick{}, m.picks[sessionID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].OverallPick < out[j].OverallPick })
	return out, nil
}

func (m *MemoryStore) ListPicksByRound(ctx context.Context, sessionID string, round int) ([]models.DraftPick, error) {
	all, err := m.ListPicks(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := []models.DraftPick{}
	for _, p := range all {
		if p.Round == round {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) InsertPick(ctx context.Context, p *models.DraftPick) error {
	return m.RunInTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		return tx.InsertPick(ctx, p)
	})
}

func (m *MemoryStore) MarkPlayerDrafted(ctx context.Context, playerID string, stamp models.DraftStamp) error {
	return m.RunInTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		return tx.MarkPlayerDrafted(ctx, playerID, stamp)
	})
}

func (m *MemoryStore) UpdateSession(ctx context.Context, s *models.DraftSession, expectedVersion int64) error {
	return m.RunInTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		return tx.UpdateSession(ctx, s, expectedVersion)
	})
}

func (m *MemoryStore) InsertOutboxEvent(ctx context.Context, e events.OutboxEvent) error {
	return m.RunInTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		return tx.InsertOutboxEvent(ctx, e)
	})
}

func (m *MemoryStore) FetchOutboxByID(_ context.Context, id uuid.UUID) (*events.OutboxEvent, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, row := range m.outbox {
		if row.event.ID == id && !row.sent {
			e := row.event
			return &e, nil
		}
	}
	return nil, outbox.ErrEventNotFound
}

func (m *MemoryStore) FetchUnsentOutbox(_ context.Context, limit int) ([]events.OutboxEvent, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []events.OutboxEvent
	for _, row := range m.outbox {
		if len(out) == limit {
			break
		}
		if !row.sent {
			out = append(out, row.event)
		}
	}
	return out, nil
}

func (m *MemoryStore) MarkOutboxSent(_ context.Context, id uuid.UUID) error {
	if err := m.check(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.outbox {
		if row.event.ID == id {
			row.sent = true
		}
	}
	return nil
}

// FetchNextDeadline returns the earliest pick deadline among active sessions.
func (m *MemoryStore) FetchNextDeadline(_ context.Context) (*time.Time, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var next *time.Time
	for _, s := range m.sessions {
		if s.Status != models.DraftSessionStatusActive || s.TimerExpiresAt == nil {
			continue
		}
		if next == nil || s.TimerExpiresAt.Before(*next) {
			t := *s.TimerExpiresAt
			next = &t
		}
	}
	return next, nil
}

// FetchSessionsDue returns active sessions whose timer expired at or before now.
func (m *MemoryStore) FetchSessionsDue(_ context.Context, now time.Time, limit int) ([]string, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []*models.DraftSession
	for _, s := range m.sessions {
		if s.Status == models.DraftSessionStatusActive && s.TimerExpiresAt != nil && !s.TimerExpiresAt.After(now) {
			due = append(due, s)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].TimerExpiresAt.Before(*due[j].TimerExpiresAt) })
	ids := make([]string, 0, len(due))
	for _, s := range due {
		if len(ids) == limit {
			break
		}
		ids = append(ids, s.ID)
	}
	return ids, nil
}

// memoryTx stages the writes of one unit of work.
type memoryTx struct {
	store    *MemoryStore
	unlocks  map[string]func()
	sessions map[string]*stagedSession
	players  map[string]*models.Player
	picks    []models.DraftPick
	outbox   []events.OutboxEvent
}

type stagedSession struct {
	session     *models.DraftSession
	baseVersion int64 // committed version the first staged update was based on
}

func newMemoryTx(m *MemoryStore) *memoryTx {
	return &memoryTx{
		store:    m,
		unlocks:  make(map[string]func()),
		sessions: make(map[string]*stagedSession),
		players:  make(map[string]*models.Player),
	}
}

func (t *memoryTx) release() {
	for _, unlock := range t.unlocks {
		unlock()
	}
	t.unlocks = nil
}

func (t *memoryTx) lockSession(ctx context.Context, id string) error {
	if _, held := t.unlocks[id]; held {
		return nil
	}
	unlock, err := t.store.rows.Lock(ctx, id)
	if err != nil {
		return fmt.Errorf("lock session %s: %w", id, err)
	}
	t.unlocks[id] = unlock
	return nil
}

func (t *memoryTx) GetSession(ctx context.Context, id string) (*models.DraftSession, error) {
	if err := t.store.check(); err != nil {
		return nil, err
	}
	if err := t.lockSession(ctx, id); err != nil {
		return nil, err
	}
	if staged, ok := t.sessions[id]; ok {
		return staged.session.Clone(), nil
	}
	return t.store.GetSession(ctx, id)
}

func (t *memoryTx) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	if err := t.store.check(); err != nil {
		return nil, err
	}
	if p, ok := t.players[id]; ok {
		c := *p
		return &c, nil
	}
	return t.store.GetPlayer(ctx, id)
}

func (t *memoryTx) ListPicks(ctx context.Context, sessionID string) ([]models.DraftPick, error) {
	out, err := t.store.ListPicks(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, p := range t.picks {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OverallPick < out[j].OverallPick })
	return out, nil
}

func (t *memoryTx) ListPicksByRound(ctx context.Context, sessionID string, round int) ([]models.DraftPick, error) {
	all, err := t.ListPicks(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := []models.DraftPick{}
	for _, p := range all {
		if p.Round == round {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *memoryTx) InsertPick(ctx context.Context, p *models.DraftPick) error {
	existing, err := t.ListPicks(ctx, p.SessionID)
	if err != nil {
		return err
	}
	if err := pickConflict(existing, p); err != nil {
		return err
	}
	t.picks = append(t.picks, *p)
	return nil
}

func (t *memoryTx) MarkPlayerDrafted(ctx context.Context, playerID string, stamp models.DraftStamp) error {
	p, err := t.GetPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	if p.DraftStatus != models.PlayerDraftStatusAvailable {
		return fmt.Errorf("%w: %s", engine.ErrPlayerAlreadyDrafted, playerID)
	}
	team, at, round, pick := stamp.TeamID, stamp.At, stamp.Round, stamp.Pick
	p.DraftStatus = models.PlayerDraftStatusDrafted
	p.DraftedBy = &team
	p.DraftedAt = &at
	p.DraftRound = &round
	p.DraftPick = &pick
	t.players[playerID] = p
	return nil
}

func (t *memoryTx) UpdateSession(ctx context.Context, s *models.DraftSession, expectedVersion int64) error {
	if err := t.store.check(); err != nil {
		return err
	}
	if err := t.lockSession(ctx, s.ID); err != nil {
		return err
	}
	staged, ok := t.sessions[s.ID]
	if !ok {
		current, err := t.store.GetSession(ctx, s.ID)
		if err != nil {
			return err
		}
		staged = &stagedSession{session: current, baseVersion: current.Version}
	}
	if staged.session.Version != expectedVersion {
		return fmt.Errorf("%w: session %s at version %d, expected %d",
			engine.ErrVersionConflict, s.ID, staged.session.Version, expectedVersion)
	}
	s.Version = expectedVersion + 1
	staged.session = s.Clone()
	t.sessions[s.ID] = staged
	return nil
}

func (t *memoryTx) InsertOutboxEvent(_ context.Context, e events.OutboxEvent) error {
	if err := t.store.check(); err != nil {
		return err
	}
	t.outbox = append(t.outbox, e)
	return nil
}

// commit re-checks the staged writes against committed state and applies
// them all under one lock.
func (t *memoryTx) commit() error {
	m := t.store
	if err := m.check(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, staged := range t.sessions {
		current, ok := m.sessions[id]
		if !ok {
			return engine.ErrSessionNotFound
		}
		if current.Version != staged.baseVersion {
			return fmt.Errorf("%w: session %s changed before commit", engine.ErrVersionConflict, id)
		}
	}
	for i := range t.picks {
		if err := pickConflict(m.picks[t.picks[i].SessionID], &t.picks[i]); err != nil {
			return err
		}
	}
	for id := range t.players {
		if p, ok := m.players[id]; !ok || p.DraftStatus != models.PlayerDraftStatusAvailable {
			return fmt.Errorf("%w: %s", engine.ErrPlayerAlreadyDrafted, id)
		}
	}

	for id, staged := range t.sessions {
		m.sessions[id] = staged.session.Clone()
	}
	for _, p := range t.picks {
		m.picks[p.SessionID] = append(m.picks[p.SessionID], p)
	}
	for id, p := range t.players {
		c := *p
		m.players[id] = &c
	}
	for _, e := range t.outbox {
		m.seq++
		e.Seq = m.seq
		m.outbox = append(m.outbox, &memoryOutboxRow{event: e})
	}
	return nil
}

// pickConflict mirrors the draft_picks unique constraints.
func pickConflict(existing []models.DraftPick, p *models.DraftPick) error {
	for _, e := range existing {
		if e.Round == p.Round && e.PickNumber == p.PickNumber {
			return fmt.Errorf("%w: round %d pick %d already recorded", engine.ErrVersionConflict, p.Round, p.PickNumber)
		}
		if p.PlayerID != nil && e.PlayerID != nil && *e.PlayerID == *p.PlayerID {
			return fmt.Errorf("%w: %s", engine.ErrPlayerAlreadyDrafted, *p.PlayerID)
		}
	}
	return nil
}

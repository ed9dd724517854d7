package repository

import (
	"context"
	"testing"
	"time"

	"github.com/mcdev12/leaguedraft/go/internal/draft/engine"
	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
	"github.com/mcdev12/leaguedraft/go/internal/draft/outbox"
	"github.com/mcdev12/leaguedraft/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSeededStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	team := "A"
	store.PutSession(&models.DraftSession{
		ID:               "s1",
		Status:           models.DraftSessionStatusActive,
		DraftOrder:       []string{"A", "B"},
		TotalRounds:      2,
		CurrentRound:     1,
		CurrentPick:      1,
		CurrentTeamID:    &team,
		PickTimerSeconds: 60,
		Version:          3,
	})
	store.PutPlayer(&models.Player{ID: "p1", FullName: "Player 1"})
	return store
}

func TestUnitOfWorkIsInvisibleUntilCommit(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()
	at := time.Date(2025, 4, 12, 9, 0, 0, 0, time.UTC)

	staged := make(chan struct{})
	resume := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.RunInTx(ctx, func(ctx context.Context, tx engine.Tx) error {
			s, err := tx.GetSession(ctx, "s1")
			if err != nil {
				return err
			}
			player := "p1"
			if err := tx.InsertPick(ctx, &models.DraftPick{
				ID: "pick-1", SessionID: "s1", Round: 1, PickNumber: 1, OverallPick: 1,
				TeamID: "A", PlayerID: &player, PickType: "manual", PickedAt: at,
			}); err != nil {
				return err
			}
			if err := tx.MarkPlayerDrafted(ctx, "p1", models.DraftStamp{TeamID: "A", At: at, Round: 1, Pick: 1}); err != nil {
				return err
			}
			s.CurrentPick = 2
			if err := tx.UpdateSession(ctx, s, s.Version); err != nil {
				return err
			}
			if err := outbox.Record(ctx, tx, "s1", events.TypePickMade, map[string]string{"playerId": "p1"}, at); err != nil {
				return err
			}
			close(staged)
			<-resume
			return nil
		})
	}()

	<-staged
	s, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.CurrentPick)
	assert.Equal(t, int64(3), s.Version)

	picks, err := store.ListPicks(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, picks)

	p, err := store.GetPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PlayerDraftStatusAvailable, p.DraftStatus)

	unsent, err := store.FetchUnsentOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, unsent)

	close(resume)
	require.NoError(t, <-done)

	s, err = store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, s.CurrentPick)
	assert.Equal(t, int64(4), s.Version)

	picks, err = store.ListPicks(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, picks, 1)

	p, err = store.GetPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PlayerDraftStatusDrafted, p.DraftStatus)

	unsent, err = store.FetchUnsentOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, unsent, 1)
}

func TestSessionReadBlocksConcurrentUnitOfWork(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.RunInTx(ctx, func(ctx context.Context, tx engine.Tx) error {
			if _, err := tx.GetSession(ctx, "s1"); err != nil {
				return err
			}
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := store.RunInTx(waitCtx, func(ctx context.Context, tx engine.Tx) error {
		_, err := tx.GetSession(ctx, "s1")
		return err
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.Eventually(t, func() bool {
		return store.RunInTx(ctx, func(ctx context.Context, tx engine.Tx) error {
			_, err := tx.GetSession(ctx, "s1")
			return err
		}) == nil
	}, time.Second, 5*time.Millisecond)
}

func TestFailedUnitOfWorkDiscardsStagedWrites(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()
	at := time.Date(2025, 4, 12, 9, 0, 0, 0, time.UTC)

	err := store.RunInTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		if err := tx.MarkPlayerDrafted(ctx, "p1", models.DraftStamp{TeamID: "A", At: at, Round: 1, Pick: 1}); err != nil {
			return err
		}
		if err := outbox.Record(ctx, tx, "s1", events.TypePickMade, map[string]string{"playerId": "p1"}, at); err != nil {
			return err
		}
		return tx.UpdateSession(ctx, &models.DraftSession{ID: "s1"}, 99)
	})
	require.ErrorIs(t, err, engine.ErrVersionConflict)

	p, err := store.GetPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PlayerDraftStatusAvailable, p.DraftStatus)
	assert.Empty(t, store.Outbox())
}

func TestOutboxEventsSharingTimestampKeepInsertOrder(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()
	at := time.Date(2025, 4, 12, 9, 0, 0, 0, time.UTC)
	types := []string{events.TypePickMade, events.TypePickStarted, events.TypeDraftCompleted}

	for range 2 {
		err := store.RunInTx(ctx, func(ctx context.Context, tx engine.Tx) error {
			for _, typ := range types {
				if err := outbox.Record(ctx, tx, "s1", typ, map[string]string{"type": typ}, at); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err)
	}

	unsent, err := store.FetchUnsentOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unsent, 6)
	for i, e := range unsent {
		assert.Equal(t, int64(i+1), e.Seq)
		assert.Equal(t, types[i%len(types)], e.EventType)
		assert.True(t, e.CreatedAt.Equal(at))
	}
}

func TestFetchUnsentOutboxOrdersBySeq(t *testing.T) {
	assert.Contains(t, fetchUnsentOutboxQuery, "ORDER BY seq")
	assert.Contains(t, outboxColumns, "seq")
}

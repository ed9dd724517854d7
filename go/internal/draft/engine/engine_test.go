package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/leaguedraft/go/internal/draft/engine"
	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
	"github.com/mcdev12/leaguedraft/go/internal/draft/repository"
	"github.com/mcdev12/leaguedraft/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 4, 12, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store  *repository.MemoryStore
	clock  *clockwork.FakeClock
	engine *engine.Engine
}

func newFixture(t *testing.T, order []string, rounds, players int) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	store.PutSession(&models.DraftSession{
		ID:               "session-1",
		Status:           models.DraftSessionStatusScheduled,
		DraftOrder:       order,
		TotalRounds:      rounds,
		PickTimerSeconds: 60,
	})
	for i := 1; i <= players; i++ {
		store.PutPlayer(&models.Player{ID: fmt.Sprintf("p%d", i), FullName: fmt.Sprintf("Player %d", i)})
	}
	clock := clockwork.NewFakeClockAt(start)
	return &fixture{store: store, clock: clock, engine: engine.NewEngine(store, clock)}
}

func (f *fixture) pick(t *testing.T, team, player string) *engine.PickResult {
	t.Helper()
	res, err := f.engine.SubmitPick(context.Background(), engine.SubmitPickRequest{
		SessionID: "session-1",
		TeamID:    team,
		PlayerID:  player,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) session(t *testing.T) *models.DraftSession {
	t.Helper()
	s, err := f.store.GetSession(context.Background(), "session-1")
	require.NoError(t, err)
	return s
}

func eventTypes(store *repository.MemoryStore) []string {
	var out []string
	for _, e := range store.Outbox() {
		out = append(out, e.EventType)
	}
	return out
}

func TestDraftRunsRoundsWithoutReversal(t *testing.T) {
	f := newFixture(t, []string{"A", "B", "C"}, 2, 10)
	ctx := context.Background()

	started, err := f.engine.StartDraft(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, models.DraftSessionStatusActive, started.Status)
	assert.Equal(t, 1, started.CurrentRound)
	assert.Equal(t, 1, started.CurrentPick)
	require.NotNil(t, started.CurrentTeamID)
	assert.Equal(t, "A", *started.CurrentTeamID)
	require.NotNil(t, started.TimerExpiresAt)
	assert.Equal(t, start.Add(time.Minute), *started.TimerExpiresAt)

	steps := []struct {
		team, player string
		round, pick  int
		next         string
	}{
		{"A", "p1", 1, 2, "B"},
		{"B", "p2", 1, 3, "C"},
		{"C", "p3", 2, 1, "A"},
	}
	for _, step := range steps {
		f.clock.Advance(10 * time.Second)
		res := f.pick(t, step.team, step.player)
		assert.Equal(t, step.round, res.NextRound)
		assert.Equal(t, step.pick, res.NextPick)
		require.NotNil(t, res.NextTeamID)
		assert.Equal(t, step.next, *res.NextTeamID)
		assert.Equal(t, 60, res.TimeRemaining)
		assert.Equal(t, 10, res.Pick.PickDurationSeconds)
	}

	picks, err := f.engine.ListPicks(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, picks, 3)
	for i, p := range picks {
		assert.Equal(t, i+1, p.OverallPick)
		assert.Equal(t, models.PickTypeManual, p.PickType)
	}

	player, err := f.store.GetPlayer(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, models.PlayerDraftStatusDrafted, player.DraftStatus)
	require.NotNil(t, player.DraftedBy)
	assert.Equal(t, "B", *player.DraftedBy)
	require.NotNil(t, player.DraftRound)
	assert.Equal(t, 1, *player.DraftRound)
	require.NotNil(t, player.DraftPick)
	assert.Equal(t, 2, *player.DraftPick)
}

func TestSubmitPickRejectsWrongTeam(t *testing.T) {
	f := newFixture(t, []string{"A", "B", "C"}, 2, 5)
	ctx := context.Background()
	_, err := f.engine.StartDraft(ctx, "session-1")
	require.NoError(t, err)
	f.pick(t, "A", "p1")
	before := f.session(t)
	eventsBefore := len(f.store.Outbox())

	_, err = f.engine.SubmitPick(ctx, engine.SubmitPickRequest{SessionID: "session-1", TeamID: "A", PlayerID: "p2"})
	require.ErrorIs(t, err, engine.ErrWrongTurn)
	assert.True(t, engine.IsCallerError(err))

	assert.Equal(t, before, f.session(t))
	picks, err := f.engine.ListPicks(ctx, "session-1")
	require.NoError(t, err)
	assert.Len(t, picks, 1)
	p2, err := f.store.GetPlayer(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, models.PlayerDraftStatusAvailable, p2.DraftStatus)
	assert.Len(t, f.store.Outbox(), eventsBefore)
}

func TestSubmitPickRejectsDraftedPlayer(t *testing.T) {
	f := newFixture(t, []string{"A", "B", "C"}, 2, 5)
	ctx := context.Background()
	_, err := f.engine.StartDraft(ctx, "session-1")
	require.NoError(t, err)
	f.pick(t, "A", "p1")
	before := f.session(t)

	_, err = f.engine.SubmitPick(ctx, engine.SubmitPickRequest{SessionID: "session-1", TeamID: "B", PlayerID: "p1"})
	require.ErrorIs(t, err, engine.ErrPlayerAlreadyDrafted)
	assert.Equal(t, before, f.session(t))
}

func TestSubmitPickRejectsUnknownRecords(t *testing.T) {
	f := newFixture(t, []string{"A", "B"}, 1, 2)
	ctx := context.Background()
	_, err := f.engine.StartDraft(ctx, "session-1")
	require.NoError(t, err)

	_, err = f.engine.SubmitPick(ctx, engine.SubmitPickRequest{SessionID: "missing", TeamID: "A", PlayerID: "p1"})
	assert.ErrorIs(t, err, engine.ErrSessionNotFound)

	_, err = f.engine.SubmitPick(ctx, engine.SubmitPickRequest{SessionID: "session-1", TeamID: "A", PlayerID: "ghost"})
	assert.ErrorIs(t, err, engine.ErrPlayerNotFound)
}

func TestSubmitPickValidatesRequest(t *testing.T) {
	f := newFixture(t, []string{"A"}, 1, 1)
	ctx := context.Background()

	cases := []engine.SubmitPickRequest{
		{TeamID: "A", PlayerID: "p1"},
		{SessionID: "session-1", PlayerID: "p1"},
		{SessionID: "session-1", TeamID: "A", PlayerID: "  "},
		{SessionID: "session-1", TeamID: "A", PlayerID: "p1", PickType: models.PickTypeAutoSkip},
	}
	for _, req := range cases {
		_, err := f.engine.SubmitPick(ctx, req)
		assert.ErrorIs(t, err, engine.ErrInvalidRequest)
	}
}

func TestFinalPickCompletesSession(t *testing.T) {
	f := newFixture(t, []string{"A", "B", "C"}, 2, 10)
	ctx := context.Background()
	_, err := f.engine.StartDraft(ctx, "session-1")
	require.NoError(t, err)

	teams := []string{"A", "B", "C", "A", "B"}
	for i, team := range teams {
		f.pick(t, team, fmt.Sprintf("p%d", i+1))
	}

	res := f.pick(t, "C", "p6")
	assert.Equal(t, models.DraftSessionStatusCompleted, res.SessionStatus)
	assert.Nil(t, res.NextTeamID)
	assert.Equal(t, 0, res.TimeRemaining)

	s := f.session(t)
	assert.Equal(t, models.DraftSessionStatusCompleted, s.Status)
	assert.Equal(t, 3, s.CurrentRound)
	assert.Equal(t, 1, s.CurrentPick)
	assert.Nil(t, s.CurrentTeamID)
	assert.Nil(t, s.TimerExpiresAt)
	require.NotNil(t, s.CompletedAt)

	_, err = f.engine.SubmitPick(ctx, engine.SubmitPickRequest{SessionID: "session-1", TeamID: "A", PlayerID: "p7"})
	assert.ErrorIs(t, err, engine.ErrSessionNotActive)

	state, err := f.engine.GetState(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 0, state.TimeRemaining)
	assert.Len(t, state.CurrentRoundPicks, 3, "completed session shows its final round")

	types := eventTypes(f.store)
	assert.Equal(t, events.TypeDraftCompleted, types[len(types)-1])
}

func TestConcurrentPicksForSameTurn(t *testing.T) {
	f := newFixture(t, []string{"A", "B", "C"}, 2, 10)
	ctx := context.Background()
	_, err := f.engine.StartDraft(ctx, "session-1")
	require.NoError(t, err)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.SubmitPick(ctx, engine.SubmitPickRequest{
				SessionID: "session-1",
				TeamID:    "A",
				PlayerID:  fmt.Sprintf("p%d", i+1),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, engine.ErrWrongTurn)
	}
	assert.Equal(t, 1, succeeded)

	s := f.session(t)
	assert.Equal(t, 1, s.CurrentRound)
	assert.Equal(t, 2, s.CurrentPick)
	require.NotNil(t, s.CurrentTeamID)
	assert.Equal(t, "B", *s.CurrentTeamID)

	picks, err := f.engine.ListPicks(ctx, "session-1")
	require.NoError(t, err)
	assert.Len(t, picks, 1)
}

func TestConcurrentPicksForSamePlayer(t *testing.T) {
	f := newFixture(t, []string{"A", "B"}, 3, 3)
	ctx := context.Background()
	_, err := f.engine.StartDraft(ctx, "session-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, team := range []string{"A", "B"} {
		wg.Add(1)
		go func(i int, team string) {
			defer wg.Done()
			_, errs[i] = f.engine.SubmitPick(ctx, engine.SubmitPickRequest{SessionID: "session-1", TeamID: team, PlayerID: "p1"})
		}(i, team)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.True(t, errors.Is(err, engine.ErrWrongTurn) || errors.Is(err, engine.ErrPlayerAlreadyDrafted), err)
		}
	}
	assert.Equal(t, 1, failures)

	picks, err := f.engine.ListPicks(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, "p1", *picks[0].PlayerID)
}

func TestPicksFromSeparateEnginesSerializeOnStore(t *testing.T) {
	f := newFixture(t, []string{"A", "B"}, 2, 4)
	ctx := context.Background()
	_, err := f.engine.StartDraft(ctx, "session-1")
	require.NoError(t, err)

	// Two engines share the store but not their in-process locks, as two
	// service instances would.
	engines := []*engine.Engine{engine.NewEngine(f.store, f.clock), engine.NewEngine(f.store, f.clock)}
	var wg sync.WaitGroup
	errs := make([]error, len(engines))
	for i, eng := range engines {
		wg.Add(1)
		go func(i int, eng *engine.Engine) {
			defer wg.Done()
			_, errs[i] = eng.SubmitPick(ctx, engine.SubmitPickRequest{
				SessionID: "session-1",
				TeamID:    "A",
				PlayerID:  fmt.Sprintf("p%d", i+1),
			})
		}(i, eng)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, engine.ErrWrongTurn) || errors.Is(err, engine.ErrVersionConflict), err)
	}
	assert.Equal(t, 1, succeeded)

	picks, err := f.engine.ListPicks(ctx, "session-1")
	require.NoError(t, err)
	assert.Len(t, picks, 1)
	s := f.session(t)
	assert.Equal(t, 2, s.CurrentPick)
	assert.Equal(t, int64(2), s.Version)
}

func TestResubmittedPickIsRejected(t *testing.T) {
	f := newFixture(t, []string{"A", "B"}, 2, 4)
	ctx := context.Background()
	_, err := f.engine.StartDraft(ctx, "session-1")
	require.NoError(t, err)

	f.pick(t, "A", "p1")
	eventsAfterPick := len(f.store.Outbox())

	_, err = f.engine.SubmitPick(ctx, engine.SubmitPickRequest{SessionID: "session-1", TeamID: "A", PlayerID: "p1"})
	require.ErrorIs(t, err, engine.ErrWrongTurn)

	picks, err := f.engine.ListPicks(ctx, "session-1")
	require.NoError(t, err)
	assert.Len(t, picks, 1)
	assert.Equal(t, 2, f.session(t).CurrentPick)
	assert.Len(t, f.store.Outbox(), eventsAfterPick)
}

func TestLatePickRecordsZeroDuration(t *testing.T) {
	f := newFixture(t, []string{"A", "B"}, 1, 2)
	ctx := context.Background()
	_, err := f.engine.StartDraft(ctx, "session-1")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	res := f.pick(t, "A", "p1")
	assert.Equal(t, 0, res.Pick.PickDurationSeconds)
}

func TestPositionNeverMovesBackwards(t *testing.T) {
	f := newFixture(t, []string{"A", "B", "C", "D"}, 3, 20)
	ctx := context.Background()
	_, err := f.engine.StartDraft(ctx, "session-1")
	require.NoError(t, err)

	last := 1
	for i := 0; i < 12; i++ {
		s := f.session(t)
		team := *s.CurrentTeamID
		f.pick(t, team, fmt.Sprintf("p%d", i+1))
		s = f.session(t)
		overall := s.OverallPick(s.CurrentRound, s.CurrentPick)
		assert.Greater(t, overall, last)
		last = overall
	}
	assert.Equal(t, models.DraftSessionStatusCompleted, f.session(t).Status)
}

func TestStartDraft(t *testing.T) {
	t.Run("emits started and pick started events", func(t *testing.T) {
		f := newFixture(t, []string{"A", "B"}, 1, 0)
		_, err := f.engine.StartDraft(context.Background(), "session-1")
		require.NoError(t, err)
		assert.Equal(t, []string{events.TypeDraftStarted, events.TypePickStarted}, eventTypes(f.store))

		var payload events.PickStartedPayload
		require.NoError(t, json.Unmarshal(f.store.Outbox()[1].Payload, &payload))
		assert.Equal(t, "A", payload.TeamID)
		assert.Equal(t, start.Add(time.Minute), payload.TimeoutAt)
	})

	t.Run("refuses a session that already started", func(t *testing.T) {
		f := newFixture(t, []string{"A", "B"}, 1, 0)
		_, err := f.engine.StartDraft(context.Background(), "session-1")
		require.NoError(t, err)
		_, err = f.engine.StartDraft(context.Background(), "session-1")
		assert.ErrorIs(t, err, engine.ErrSessionNotScheduled)
	})

	t.Run("refuses an empty draft order", func(t *testing.T) {
		f := newFixture(t, nil, 1, 0)
		_, err := f.engine.StartDraft(context.Background(), "session-1")
		assert.ErrorIs(t, err, engine.ErrInvalidSession)
		assert.Equal(t, models.DraftSessionStatusScheduled, f.session(t).Status)
	})

	t.Run("unknown session", func(t *testing.T) {
		f := newFixture(t, []string{"A"}, 1, 0)
		_, err := f.engine.StartDraft(context.Background(), "nope")
		assert.ErrorIs(t, err, engine.ErrSessionNotFound)
	})
}

func TestGetStateReportsRemainingTime(t *testing.T) {
	f := newFixture(t, []string{"A", "B"}, 2, 4)
	ctx := context.Background()
	_, err := f.engine.StartDraft(ctx, "session-1")
	require.NoError(t, err)
	f.pick(t, "A", "p1")

	f.clock.Advance(25 * time.Second)
	state, err := f.engine.GetState(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 35, state.TimeRemaining)
	require.Len(t, state.CurrentRoundPicks, 1)
	assert.Equal(t, "p1", *state.CurrentRoundPicks[0].PlayerID)

	f.clock.Advance(time.Hour)
	state, err = f.engine.GetState(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 0, state.TimeRemaining)
}

func TestUpdateSessionAppliesOnlyProvidedFields(t *testing.T) {
	f := newFixture(t, []string{"A", "B"}, 2, 0)
	ctx := context.Background()
	_, err := f.engine.StartDraft(ctx, "session-1")
	require.NoError(t, err)
	before := f.session(t)

	var patch engine.SessionPatch
	require.NoError(t, json.Unmarshal([]byte(`{"pickTimerSeconds": 120, "timerExpiresAt": null}`), &patch))

	f.clock.Advance(time.Second)
	updated, err := f.engine.UpdateSession(ctx, "session-1", patch)
	require.NoError(t, err)
	assert.Equal(t, 120, updated.PickTimerSeconds)
	assert.Nil(t, updated.TimerExpiresAt)
	assert.Equal(t, before.CurrentTeamID, updated.CurrentTeamID)
	assert.Equal(t, before.DraftOrder, updated.DraftOrder)
	assert.True(t, updated.UpdatedAt.After(before.UpdatedAt))
	assert.Equal(t, before.Version+1, updated.Version)

	var payload events.SessionUpdatedPayload
	last := f.store.Outbox()[len(f.store.Outbox())-1]
	assert.Equal(t, events.TypeSessionUpdated, last.EventType)
	require.NoError(t, json.Unmarshal(last.Payload, &payload))
	assert.ElementsMatch(t, []string{"pickTimerSeconds", "timerExpiresAt"}, payload.Fields)
}

func TestUpdateSessionRejectsBadValues(t *testing.T) {
	f := newFixture(t, []string{"A"}, 1, 0)
	for _, body := range []string{
		`{"status": "paused"}`,
		`{"draftOrder": []}`,
		`{"totalRounds": 0}`,
		`{"currentPick": -1}`,
	} {
		var patch engine.SessionPatch
		require.NoError(t, json.Unmarshal([]byte(body), &patch))
		_, err := f.engine.UpdateSession(context.Background(), "session-1", patch)
		assert.ErrorIs(t, err, engine.ErrInvalidRequest, body)
	}
}

func TestUpdateSessionRejectsUnreachableActivePosition(t *testing.T) {
	f := newFixture(t, []string{"A", "B"}, 2, 0)
	ctx := context.Background()
	_, err := f.engine.StartDraft(ctx, "session-1")
	require.NoError(t, err)
	before := f.session(t)

	for _, body := range []string{
		`{"currentRound": 3}`,
		`{"currentPick": 3}`,
		`{"currentRound": 0}`,
		`{"totalRounds": 1, "currentRound": 2, "currentPick": 1}`,
		`{"draftOrder": ["A"], "currentPick": 2}`,
		`{"currentTeamId": null}`,
	} {
		var patch engine.SessionPatch
		require.NoError(t, json.Unmarshal([]byte(body), &patch))
		_, err := f.engine.UpdateSession(ctx, "session-1", patch)
		assert.ErrorIs(t, err, engine.ErrInvalidRequest, body)
	}
	assert.Equal(t, before, f.session(t))

	// The same position is fine once the session is no longer active.
	var patch engine.SessionPatch
	require.NoError(t, json.Unmarshal([]byte(`{"status": "completed", "currentRound": 3}`), &patch))
	_, err = f.engine.UpdateSession(ctx, "session-1", patch)
	require.NoError(t, err)
}

func TestAutoSkip(t *testing.T) {
	f := newFixture(t, []string{"A", "B"}, 1, 2)
	ctx := context.Background()
	_, err := f.engine.StartDraft(ctx, "session-1")
	require.NoError(t, err)

	_, err = f.engine.AutoSkip(ctx, "session-1")
	require.ErrorIs(t, err, engine.ErrTimerNotExpired)

	f.clock.Advance(61 * time.Second)
	res, err := f.engine.AutoSkip(ctx, "session-1")
	require.NoError(t, err)
	assert.Nil(t, res.Pick.PlayerID)
	assert.Equal(t, models.PickTypeAutoSkip, res.Pick.PickType)
	assert.Equal(t, "A", res.Pick.TeamID)
	assert.Equal(t, 60, res.Pick.PickDurationSeconds)
	require.NotNil(t, res.NextTeamID)
	assert.Equal(t, "B", *res.NextTeamID)

	s := f.session(t)
	require.NotNil(t, s.TimerExpiresAt)
	assert.Equal(t, f.clock.Now().UTC().Add(time.Minute), *s.TimerExpiresAt)
	assert.Contains(t, eventTypes(f.store), events.TypePickSkipped)
}

func TestDeadlineCallback(t *testing.T) {
	f := newFixture(t, []string{"A", "B"}, 1, 2)
	var got []time.Time
	f.engine.OnDeadline(func(at time.Time) { got = append(got, at) })

	_, err := f.engine.StartDraft(context.Background(), "session-1")
	require.NoError(t, err)
	f.pick(t, "A", "p1")
	f.pick(t, "B", "p2")

	require.Len(t, got, 2, "completion opens no new window")
	assert.Equal(t, start.Add(time.Minute), got[0])
}

func TestStoreOutageIsReported(t *testing.T) {
	f := newFixture(t, []string{"A", "B"}, 1, 2)
	ctx := context.Background()
	_, err := f.engine.StartDraft(ctx, "session-1")
	require.NoError(t, err)

	f.store.SetOffline(true)
	_, err = f.engine.SubmitPick(ctx, engine.SubmitPickRequest{SessionID: "session-1", TeamID: "A", PlayerID: "p1"})
	assert.ErrorIs(t, err, engine.ErrStoreUnavailable)
	assert.False(t, engine.IsCallerError(err))

	_, err = f.engine.GetState(ctx, "session-1")
	assert.ErrorIs(t, err, engine.ErrStoreUnavailable)
}

func TestRepairSession(t *testing.T) {
	t.Run("finishes an interrupted pick", func(t *testing.T) {
		f := newFixture(t, []string{"A", "B", "C"}, 2, 5)
		ctx := context.Background()
		_, err := f.engine.StartDraft(ctx, "session-1")
		require.NoError(t, err)
		f.pick(t, "A", "p1")

		// Pick row landed but neither the player nor the session moved.
		p2 := "p2"
		require.NoError(t, f.store.InsertPick(ctx, &models.DraftPick{
			ID: "orphan", SessionID: "session-1", Round: 1, PickNumber: 2, OverallPick: 2,
			TeamID: "B", PlayerID: &p2, PickType: models.PickTypeManual, PickedAt: f.clock.Now(),
		}))

		report, err := f.engine.RepairSession(ctx, "session-1")
		require.NoError(t, err)
		assert.True(t, report.Advanced)
		assert.Equal(t, 2, report.PicksRecorded)
		assert.Equal(t, engine.Position{Round: 1, Pick: 2, Status: models.DraftSessionStatusActive}, report.Before)
		assert.Equal(t, engine.Position{Round: 1, Pick: 3, Status: models.DraftSessionStatusActive}, report.After)
		assert.Equal(t, []string{"p2"}, report.PlayersRestamped)

		s := f.session(t)
		assert.Equal(t, "C", *s.CurrentTeamID)
		player, err := f.store.GetPlayer(ctx, "p2")
		require.NoError(t, err)
		assert.Equal(t, models.PlayerDraftStatusDrafted, player.DraftStatus)

		f.pick(t, "C", "p3")
	})

	t.Run("consistent session is left alone", func(t *testing.T) {
		f := newFixture(t, []string{"A", "B"}, 1, 2)
		ctx := context.Background()
		_, err := f.engine.StartDraft(ctx, "session-1")
		require.NoError(t, err)
		f.pick(t, "A", "p1")
		before := f.session(t)
		eventsBefore := len(f.store.Outbox())

		report, err := f.engine.RepairSession(ctx, "session-1")
		require.NoError(t, err)
		assert.False(t, report.Changed())
		assert.Equal(t, before, f.session(t))
		assert.Len(t, f.store.Outbox(), eventsBefore)
	})

	t.Run("session ahead of its picks is not rewound", func(t *testing.T) {
		f := newFixture(t, []string{"A", "B"}, 2, 2)
		ctx := context.Background()
		_, err := f.engine.StartDraft(ctx, "session-1")
		require.NoError(t, err)

		var patch engine.SessionPatch
		require.NoError(t, json.Unmarshal([]byte(`{"currentRound": 2, "currentPick": 1, "currentTeamId": "A"}`), &patch))
		_, err = f.engine.UpdateSession(ctx, "session-1", patch)
		require.NoError(t, err)
		before := f.session(t)

		_, err = f.engine.RepairSession(ctx, "session-1")
		assert.ErrorIs(t, err, engine.ErrRepairImpossible)
		assert.Equal(t, before, f.session(t))
	})
}

func TestFailedUnitOfWorkLeavesNoTrace(t *testing.T) {
	f := newFixture(t, []string{"A", "B"}, 1, 2)
	ctx := context.Background()
	_, err := f.engine.StartDraft(ctx, "session-1")
	require.NoError(t, err)

	// Occupy the (1,1) slot so the engine's pick insert collides.
	require.NoError(t, f.store.InsertPick(ctx, &models.DraftPick{
		ID: "stale", SessionID: "session-1", Round: 1, PickNumber: 1, OverallPick: 1,
		TeamID: "A", PickType: models.PickTypeAutoSkip, PickedAt: start,
	}))
	eventsBefore := len(f.store.Outbox())

	_, err = f.engine.SubmitPick(ctx, engine.SubmitPickRequest{SessionID: "session-1", TeamID: "A", PlayerID: "p1"})
	require.ErrorIs(t, err, engine.ErrVersionConflict)

	p1, err := f.store.GetPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PlayerDraftStatusAvailable, p1.DraftStatus)
	assert.Equal(t, 1, f.session(t).CurrentPick)
	assert.Len(t, f.store.Outbox(), eventsBefore)
}

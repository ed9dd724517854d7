package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/leaguedraft/go/internal/dbconfig"
	"github.com/mcdev12/leaguedraft/go/internal/draft/repository"
	"github.com/mcdev12/leaguedraft/go/internal/models"
)

// seedFile matches the layout of assets/draft_session.json
type seedFile struct {
	Session struct {
		ID               string   `json:"id"`
		LeagueID         string   `json:"league_id"`
		DraftOrder       []string `json:"draft_order"`
		TotalRounds      int      `json:"total_rounds"`
		PickTimerSeconds int      `json:"pick_timer_seconds"`
	} `json:"session"`
	Players []struct {
		ID       string `json:"id"`
		FullName string `json:"full_name"`
	} `json:"players"`
}

func main() {
	ctx := context.Background()

	path := "go/internal/assets/draft_session.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load the seed file
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
		os.Exit(1)
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal seed: %v\n", err)
		os.Exit(1)
	}
	if seed.Session.ID == "" || len(seed.Session.DraftOrder) == 0 || seed.Session.TotalRounds < 1 {
		fmt.Fprintln(os.Stderr, "seed session needs an id, a draft order and at least one round")
		os.Exit(1)
	}

	// 2) Connect to DB
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()
	repo := repository.NewRepository(pool)

	// 3) Seed players
	total, upserted, errs := len(seed.Players), 0, 0
	for _, p := range seed.Players {
		if err := repo.UpsertPlayer(ctx, &models.Player{ID: p.ID, FullName: p.FullName}); err != nil {
			fmt.Fprintf(os.Stderr, "player %s: %v\n", p.ID, err)
			errs++
			continue
		}
		upserted++
	}
	fmt.Printf("Players seed: total=%d upserted=%d errors=%d\n", total, upserted, errs)

	// 4) Seed the session
	session := &models.DraftSession{
		ID:               seed.Session.ID,
		LeagueID:         seed.Session.LeagueID,
		Status:           models.DraftSessionStatusScheduled,
		DraftOrder:       seed.Session.DraftOrder,
		TotalRounds:      seed.Session.TotalRounds,
		PickTimerSeconds: seed.Session.PickTimerSeconds,
	}
	if err := repo.CreateSession(ctx, session); err != nil {
		fmt.Fprintf(os.Stderr, "create session %s: %v\n", session.ID, err)
		os.Exit(1)
	}
	fmt.Printf(
		"Session seed: id=%s teams=%d rounds=%d timer=%ds\n",
		session.ID, len(session.DraftOrder), session.TotalRounds, session.PickTimerSeconds,
	)

	if errs > 0 {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/leaguedraft/go/internal/dbconfig"
	"github.com/mcdev12/leaguedraft/go/internal/draft/engine"
	"github.com/mcdev12/leaguedraft/go/internal/draft/repository"
)

// repair_session realigns a session's turn pointer with its recorded picks.
//
//	go run ./go/internal/tools/repair_session <session-id> [<session-id> ...]
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: repair_session <session-id> [<session-id> ...]")
		os.Exit(2)
	}
	ctx := context.Background()

	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	eng := engine.NewEngine(repository.NewRepository(pool), clockwork.NewRealClock())
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	failed := 0
	for _, sessionID := range os.Args[1:] {
		report, err := eng.RepairSession(ctx, sessionID)
		switch {
		case errors.Is(err, engine.ErrRepairImpossible):
			fmt.Fprintf(os.Stderr, "%s: %v (manual review needed)\n", sessionID, err)
			failed++
			continue
		case err != nil:
			fmt.Fprintf(os.Stderr, "%s: %v\n", sessionID, err)
			failed++
			continue
		}
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
			failed++
		}
	}

	fmt.Printf("Repair: sessions=%d failed=%d\n", len(os.Args)-1, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

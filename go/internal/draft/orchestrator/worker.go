package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/mcdev12/leaguedraft/go/internal/draft/engine"
	"github.com/rs/zerolog/log"
)

// worker forfeits expired picks from the work channel
func (w *Watchdog) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case sessionID := <-w.workCh:
			w.handleExpired(ctx, sessionID, workerID)
		}
	}
}

func (w *Watchdog) handleExpired(ctx context.Context, sessionID string, workerID int) {
	defer w.release(sessionID)

	res, err := w.skipper.AutoSkip(ctx, sessionID)
	switch {
	case err == nil:
		log.Info().
			Str("session_id", sessionID).
			Int("worker_id", workerID).
			Str("session_status", string(res.SessionStatus)).
			Msg("expired pick forfeited")
	case errors.Is(err, engine.ErrTimerNotExpired), errors.Is(err, engine.ErrSessionNotActive):
		// A pick or an override landed between the scan and the skip.
		log.Debug().Err(err).Str("session_id", sessionID).Msg("session no longer expired")
	default:
		log.Error().
			Err(err).
			Str("session_id", sessionID).
			Int("worker_id", workerID).
			Msg("failed to forfeit expired pick")
	}
}

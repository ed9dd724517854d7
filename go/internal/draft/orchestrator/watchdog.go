package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/leaguedraft/go/internal/draft/engine"
	"github.com/rs/zerolog/log"
)

// DeadlineStore finds active sessions by pick deadline.
type DeadlineStore interface {
	FetchNextDeadline(ctx context.Context) (*time.Time, error)
	FetchSessionsDue(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// Skipper forfeits the current pick of an expired session.
type Skipper interface {
	AutoSkip(ctx context.Context, sessionID string) (*engine.PickResult, error)
}

type Config struct {
	Workers     int
	BatchSize   int
	MinInterval time.Duration // Floor between scans, also the retry delay while work is in flight
	MaxInterval time.Duration // Ceiling between scans when no deadline is pending
}

func DefaultConfig() Config {
	return Config{
		Workers:     4,
		BatchSize:   100,
		MinInterval: 250 * time.Millisecond,
		MaxInterval: 30 * time.Second,
	}
}

// Watchdog auto-skips picks whose timer expired. It sleeps until the
// earliest pending deadline and can be woken early when a new one opens.
type Watchdog struct {
	store   DeadlineStore
	skipper Skipper
	clock   clockwork.Clock
	cfg     Config

	workCh chan string
	wakeCh chan struct{}

	inFlightMu sync.Mutex
	inFlight   map[string]bool
}

func NewWatchdog(store DeadlineStore, skipper Skipper, clock clockwork.Clock, cfg Config) *Watchdog {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	return &Watchdog{
		store:    store,
		skipper:  skipper,
		clock:    clock,
		cfg:      cfg,
		workCh:   make(chan string, cfg.BatchSize),
		wakeCh:   make(chan struct{}, 1),
		inFlight: make(map[string]bool),
	}
}

// Wake makes the watchdog rescan now. Its signature matches Engine.OnDeadline.
func (w *Watchdog) Wake(time.Time) {
	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

// Run scans and dispatches until ctx is done.
func (w *Watchdog) Run(ctx context.Context) error {
	log.Info().
		Int("workers", w.cfg.Workers).
		Dur("max_interval", w.cfg.MaxInterval).
		Msg("pick expiry watchdog started")

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	for i := 0; i < w.cfg.Workers; i++ {
		wg.Add(1)
		go w.worker(workerCtx, &wg, i)
	}
	defer func() {
		cancelWorkers()
		wg.Wait()
		log.Info().Msg("pick expiry watchdog stopped")
	}()

	for {
		if _, err := w.dispatchDue(ctx); err != nil {
			log.Error().Err(err).Msg("failed to scan for expired picks")
		}

		timer := w.clock.NewTimer(w.nextWait(ctx))
		select {
		case <-ctx.Done():
			stopAndDrainTimer(timer)
			return nil
		case <-w.wakeCh:
			stopAndDrainTimer(timer)
		case <-timer.Chan():
		}
	}
}

// nextWait is the time until the earliest deadline, clamped to the configured bounds.
func (w *Watchdog) nextWait(ctx context.Context) time.Duration {
	next, err := w.store.FetchNextDeadline(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to fetch next pick deadline")
		return w.cfg.MaxInterval
	}
	if next == nil {
		return w.cfg.MaxInterval
	}
	wait := next.Sub(w.clock.Now())
	if wait < w.cfg.MinInterval {
		return w.cfg.MinInterval
	}
	if wait > w.cfg.MaxInterval {
		return w.cfg.MaxInterval
	}
	return wait
}

// dispatchDue queues every expired session that is not already being handled.
func (w *Watchdog) dispatchDue(ctx context.Context) (int, error) {
	due, err := w.store.FetchSessionsDue(ctx, w.clock.Now(), w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, id := range due {
		if !w.claim(id) {
			continue
		}
		select {
		case w.workCh <- id:
			queued++
			log.Debug().Str("session_id", id).Msg("expired pick queued")
		default:
			w.release(id)
			log.Warn().Str("session_id", id).Msg("work channel full, retrying next scan")
		}
	}
	return queued, nil
}

func (w *Watchdog) claim(id string) bool {
	w.inFlightMu.Lock()
	defer w.inFlightMu.Unlock()
	if w.inFlight[id] {
		return false
	}
	w.inFlight[id] = true
	return true
}

func (w *Watchdog) release(id string) {
	w.inFlightMu.Lock()
	defer w.inFlightMu.Unlock()
	delete(w.inFlight, id)
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

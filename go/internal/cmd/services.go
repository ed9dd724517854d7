package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/leaguedraft/go/internal/config"
	"github.com/mcdev12/leaguedraft/go/internal/dbconfig"
	"github.com/mcdev12/leaguedraft/go/internal/draft/engine"
	"github.com/mcdev12/leaguedraft/go/internal/draft/gateway"
	"github.com/mcdev12/leaguedraft/go/internal/draft/orchestrator"
	"github.com/mcdev12/leaguedraft/go/internal/draft/outbox"
	"github.com/mcdev12/leaguedraft/go/internal/draft/repository"
	"github.com/mcdev12/leaguedraft/go/internal/httpapi"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// memoryPollInterval bounds relay latency when no LISTEN/NOTIFY is available.
const memoryPollInterval = time.Second

type draftStore interface {
	engine.Store
	outbox.RelayStore
	orchestrator.DeadlineStore
}

type Services struct {
	Engine    *engine.Engine
	WebSocket *gateway.WebSocketHandler
	Health    httpapi.HealthFunc

	connections *gateway.ConnectionManager
	relay       *outbox.Relay
	watchdog    *orchestrator.Watchdog
	consumer    *gateway.EventConsumer

	pool *pgxpool.Pool
	nc   *nats.Conn
}

func setupServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	// Wire up dependency injection chain
	// Store → Engine → Outbox relay → Publishers (JetStream / gateway)
	s := &Services{}
	clock := clockwork.NewRealClock()

	var store draftStore
	var notifier outbox.Notifier
	relayCfg := outbox.RelayConfig{
		FallbackInterval: cfg.Relay.FallbackInterval,
		MaxRetries:       cfg.Relay.MaxRetries,
		RetryDelay:       cfg.Relay.RetryDelay,
		PingInterval:     outbox.DefaultRelayConfig().PingInterval,
		BatchSize:        cfg.Relay.BatchSize,
	}

	switch cfg.Store.Driver {
	case config.StorePostgres:
		dbCfg := dbconfig.NewConfigFromEnv()
		pool, err := setupDatabase(ctx, cfg, dbCfg)
		if err != nil {
			return nil, err
		}
		s.pool = pool
		repo := repository.NewRepository(pool)
		store = repo
		s.Health = repo.Ping

		pqNotifier, err := outbox.NewPQNotifier(dbCfg.DSN(), outbox.NotifyChannel)
		if err != nil {
			log.Warn().Err(err).Msg("outbox notifications unavailable, relying on polling")
		} else {
			notifier = pqNotifier
		}
	case config.StoreMemory:
		log.Warn().Msg("using in-memory draft store, state is lost on restart")
		store = repository.NewMemoryStore()
		relayCfg.FallbackInterval = min(relayCfg.FallbackInterval, memoryPollInterval)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	s.Engine = engine.NewEngine(store, clock)

	var publishers outbox.MultiPublisher
	if cfg.NATS.URL != "" {
		jsCfg := outbox.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATS.URL
		jsCfg.StreamName = cfg.NATS.StreamName
		jsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
		jsCfg.MaxAge = cfg.NATS.MaxAge
		jsCfg.DuplicateWindow = cfg.NATS.DuplicateWindow

		nc, err := outbox.ConnectNATS(jsCfg, instanceName())
		if err != nil {
			s.Close()
			return nil, err
		}
		s.nc = nc

		jsPublisher, err := outbox.NewJetStreamPublisher(ctx, nc, jsCfg)
		if err != nil {
			s.Close()
			return nil, err
		}
		publishers = append(publishers, jsPublisher)
	}

	if cfg.Gateway.Enabled {
		connCfg := gateway.DefaultConnectionConfig()
		connCfg.PingInterval = cfg.Gateway.PingInterval
		connCfg.SendBufferSize = cfg.Gateway.SendBuffer
		s.connections = gateway.NewConnectionManager(connCfg)
		s.WebSocket = gateway.NewWebSocketHandler(s.connections, s.Engine)

		if s.nc != nil {
			// Every instance reads the stream so clients on any instance see every event.
			consumerCfg := gateway.DefaultJetStreamConsumerConfig()
			consumerCfg.StreamName = cfg.NATS.StreamName
			consumerCfg.ConsumerPrefix = cfg.NATS.ConsumerPrefix
			consumerCfg.SubjectFilter = cfg.NATS.SubjectPrefix + ".>"
			consumer, err := gateway.NewEventConsumer(ctx, s.nc, s.connections, consumerCfg)
			if err != nil {
				s.Close()
				return nil, err
			}
			s.consumer = consumer
		} else {
			publishers = append(publishers, s.connections)
		}
	}

	if len(publishers) == 0 {
		publishers = append(publishers, outbox.LogPublisher{})
	}
	s.relay = outbox.NewRelay(store, publishers, notifier, clock, relayCfg)

	if cfg.Watchdog.Enabled {
		s.watchdog = orchestrator.NewWatchdog(store, s.Engine, clock, orchestrator.Config{
			Workers:     cfg.Watchdog.Workers,
			BatchSize:   cfg.Watchdog.BatchSize,
			MinInterval: cfg.Watchdog.MinInterval,
			MaxInterval: cfg.Watchdog.MaxInterval,
		})
		s.Engine.OnDeadline(s.watchdog.Wake)
	}

	log.Info().
		Str("store", cfg.Store.Driver).
		Bool("jetstream", s.nc != nil).
		Bool("gateway", s.connections != nil).
		Bool("watchdog", s.watchdog != nil).
		Int("publishers", len(publishers)).
		Msg("services configured")
	return s, nil
}

// Run starts the background workers on g. They stop when ctx is done.
func (s *Services) Run(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error { return s.relay.Start(ctx) })

	if s.connections != nil {
		g.Go(func() error {
			s.connections.Start(ctx)
			return nil
		})
	}
	if s.consumer != nil {
		g.Go(func() error { return s.consumer.Start(ctx) })
	}
	if s.watchdog != nil {
		g.Go(func() error { return s.watchdog.Run(ctx) })
	}
}

func (s *Services) Close() {
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			log.Error().Err(err).Msg("failed to drain NATS connection")
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

func instanceName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return "draft-" + host
}

package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	ballotengine "plenum/contexts/governance/ballot-engine"
	ballotpostgres "plenum/contexts/governance/ballot-engine/adapters/postgres"
	"plenum/contexts/governance/ballot-engine/adapters/proxycall"
	"plenum/contexts/governance/ballot-engine/adapters/state"
	ballotworkers "plenum/contexts/governance/ballot-engine/application/workers"
	ballotports "plenum/contexts/governance/ballot-engine/ports"
	roledirectory "plenum/contexts/governance/role-directory"
	rolespostgres "plenum/contexts/governance/role-directory/adapters/postgres"
	rolesqueries "plenum/contexts/governance/role-directory/application/queries"
	rolesworkers "plenum/contexts/governance/role-directory/application/workers"
	rolesentities "plenum/contexts/governance/role-directory/domain/entities"
	"plenum/internal/platform/config"
	"plenum/internal/platform/db"
	"plenum/internal/platform/httpserver"
	"plenum/internal/platform/messaging"
	"plenum/internal/shared/upgradeproxy"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres          *db.Postgres
	ballotRelay       ballotworkers.OutboxRelay
	rolesRelay        rolesworkers.OutboxRelay
	relayBallotOutbox bool
	relayRolesOutbox  bool
	pollInterval      time.Duration
	logger            *slog.Logger
}

// BuildAPI assembles the full serving stack. With POSTGRES_DSN set the
// directory and the engine's ports bind to postgres; without it everything
// runs over the proxy-owned slot map, which is the deployment the
// upgrade-equivalence guarantees are stated for.
func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	var (
		pg          *db.Postgres
		rolesModule roledirectory.Module
		backend     proxycall.Backend
	)

	if strings.TrimSpace(cfg.PostgresDSN) != "" {
		pg, err = db.Connect(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}

		rolesRepo := rolespostgres.NewRepository(pg.DB, logger)
		rolesModule = roledirectory.NewModule(roledirectory.Dependencies{
			Members: rolesRepo,
			Outbox:  rolesRepo,
			Clock:   rolespostgres.SystemClock{},
			IDGen:   rolespostgres.UUIDGenerator{},
			Logger:  logger,
		})
		if err := seedAdmins(rolesRepo, cfg.BootstrapAdmins); err != nil {
			return nil, err
		}

		ballotRepo := ballotpostgres.NewRepository(pg.DB, logger)
		backend = proxycall.Backend{
			Sessions:    ballotRepo,
			Permissions: ballotRepo,
			Outbox:      ballotRepo,
			Clock:       ballotpostgres.SystemClock{},
			IDGen:       ballotpostgres.UUIDGenerator{},
		}
	} else {
		rolesModule = roledirectory.NewInMemoryModule(cfg.BootstrapAdmins, logger)
	}

	deployer := ballotengine.DefaultDeployer
	if cfg.ProxyDeployer != "" {
		deployer = common.HexToAddress(cfg.ProxyDeployer)
	}

	stateStore := upgradeproxy.NewStateStore()
	sinkOutbox := backend.Outbox
	if sinkOutbox == nil {
		sinkOutbox = state.NewStore(stateStore)
	}

	ballotModule, err := ballotengine.NewModule(ballotengine.Dependencies{
		Directory:      directoryBridge{queries: rolesModule.Queries},
		Backend:        backend,
		Deployer:       deployer,
		Implementation: ballotengine.DefaultImplementation,
		State:          stateStore,
		Events:         upgradeEventSink{outbox: sinkOutbox},
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	server := httpserver.New(ballotModule, rolesModule, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

// BuildWorker assembles the relay process. Outbox rows only land in
// postgres, so the worker requires a DSN.
func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	ballotRepo := ballotpostgres.NewRepository(pg.DB, logger)
	rolesRepo := rolespostgres.NewRepository(pg.DB, logger)
	return &WorkerApp{
		postgres: pg,
		ballotRelay: ballotworkers.OutboxRelay{
			Outbox:    ballotRepo,
			Publisher: kafka,
			Clock:     ballotpostgres.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		rolesRelay: rolesworkers.OutboxRelay{
			Outbox:    rolesRepo,
			Publisher: kafka,
			Clock:     rolespostgres.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		relayBallotOutbox: cfg.EnableBallotOutboxRelay,
		relayRolesOutbox:  cfg.EnableRolesOutboxRelay,
		pollInterval:      2 * time.Second,
		logger:            logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if w.relayBallotOutbox {
			if err := w.ballotRelay.RunOnce(ctx); err != nil {
				return err
			}
		}
		if w.relayRolesOutbox {
			if err := w.rolesRelay.RunOnce(ctx); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

// directoryBridge adapts the directory's read models to the engine's
// capability-check port. Both contexts stay unaware of each other; only the
// composition root joins them.
type directoryBridge struct {
	queries rolesqueries.MembershipQueries
}

func (b directoryBridge) HasRole(ctx context.Context, role string, principal string) (bool, error) {
	return b.queries.HasRole(ctx, role, principal)
}

func (b directoryBridge) Members(ctx context.Context, role string) ([]string, error) {
	return b.queries.MembersOf(ctx, role)
}

// upgradeEventSink lands implementation swaps in the same outbox the engine
// writes, so the relay publishes them like any other governance event.
type upgradeEventSink struct {
	outbox ballotports.OutboxWriter
}

func (s upgradeEventSink) AppendUpgradeEvent(ctx context.Context, event upgradeproxy.UpgradeEvent) error {
	data, err := json.Marshal(map[string]string{
		"previous": event.Previous.Hex(),
		"next":     event.Next.Hex(),
		"caller":   event.Caller.Hex(),
	})
	if err != nil {
		return err
	}
	eventID := uuid.NewString()
	return s.outbox.AppendOutbox(ctx, ballotports.EventEnvelope{
		EventID:          eventID,
		EventType:        "proxy.upgraded",
		OccurredAt:       event.OccurredAt,
		SourceService:    "upgrade-proxy",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "proxy",
		PartitionKey:     "proxy",
		Data:             data,
	})
}

func seedAdmins(repo *rolespostgres.Repository, admins []string) error {
	ctx := context.Background()
	now := time.Now().UTC()
	for _, admin := range admins {
		if _, err := repo.Grant(ctx, rolesentities.RoleAdmin, admin, "bootstrap", now); err != nil {
			return err
		}
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}

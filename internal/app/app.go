// Package app assembles the engine and its adapters from settings. It is
// shared by the server, the worker and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"sdmox/internal/config"
	"sdmox/internal/core/clock"
	"sdmox/internal/domain/address"
	"sdmox/internal/domain/level"
	"sdmox/internal/domain/orgsync"
	"sdmox/internal/domain/payload"
	"sdmox/internal/domain/unitcode"
	"sdmox/internal/domain/verify"
	"sdmox/internal/infrastructure/amqp"
	"sdmox/internal/infrastructure/dawa"
	"sdmox/internal/infrastructure/directory"
	"sdmox/internal/infrastructure/metrics"
	"sdmox/internal/infrastructure/registry"
	"sdmox/internal/infrastructure/sdxml"
	"sdmox/internal/infrastructure/storage/postgres"
	"sdmox/pkg/logger"
)

// App holds the wired components.
type App struct {
	Settings *config.Settings
	Logger   *logger.Logger

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	Directory *directory.Client
	Registry  *registry.Client
	Publisher *amqp.Publisher
	Verifier  *verify.Verifier
	Service   *orgsync.Service

	// Pool, TxManager and Journal are nil when no database is configured.
	Pool      *postgres.Pool
	TxManager *postgres.TxManager
	Journal   *postgres.Journal
}

// New connects to the directory to load the level hierarchy and wires the
// engine. The database is opened only when settings name one.
func New(ctx context.Context, s *config.Settings, log *logger.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &App{
		Settings: s,
		Logger:   log,
		Metrics:  metrics.New(reg),
		Gatherer: reg,
	}

	dir, err := directory.New(directory.Config{
		BaseURL: s.Directory.URL,
		Token:   s.Directory.Token,
		Timeout: s.Directory.Timeout,
	}, nil)
	if err != nil {
		return nil, err
	}
	a.Directory = dir

	levels, err := level.Load(ctx, dir, s.LevelKeys)
	if err != nil {
		return nil, fmt.Errorf("load level hierarchy: %w", err)
	}
	log.Infow("level hierarchy loaded", "levels", s.LevelKeys)

	a.Registry = registry.New(registry.Config{
		BaseURL:     s.Registry.BaseURL,
		Institution: s.Registry.Institution,
		Username:    s.Registry.Username,
		Password:    s.Registry.Password,
		Timeout:     s.Registry.Timeout,
	}, nil)

	a.Publisher = amqp.NewPublisher(amqp.Config{
		Host:        s.AMQP.Host,
		Port:        s.AMQP.Port,
		VirtualHost: s.AMQP.VirtualHost,
		Username:    s.AMQP.Username,
		Password:    s.AMQP.Password,
		Exchange:    s.AMQP.Exchange,
		RoutingKey:  s.AMQP.RoutingKey,
		ReplyGrace:  s.AMQP.ReplyGrace,
	})

	a.Verifier = verify.NewVerifier(a.Registry, clock.Real(), verify.Config{
		Attempts: s.Verification.Retries,
		Wait:     s.Verification.WaitTime,
	})

	if s.Database.DSN != "" {
		if err := a.openJournal(ctx); err != nil {
			return nil, err
		}
	}

	lookup := dawa.New(dawa.Config{BaseURL: s.DAWA.BaseURL, Timeout: s.DAWA.Timeout}, nil)
	cfg := orgsync.ServiceConfig{
		Directory: dir,
		Registry:  a.Registry,
		Levels:    levels,
		Builder: payload.NewBuilder(levels, address.NewResolver(lookup), payload.Config{
			PurposeKey: s.Attributes.PurposeKey,
			SchoolKey:  s.Attributes.SchoolKey,
		}),
		Codes:     unitcode.NewValidator(a.Registry),
		Codec:     sdxml.NewCodec(),
		Submitter: orgsync.NewSubmitter(a.Publisher),
		Verifier:  a.Verifier,
		Metrics:   a.Metrics,
	}
	if a.Journal != nil {
		cfg.Journal = a.Journal
	}
	a.Service = orgsync.NewService(cfg)
	return a, nil
}

func (a *App) openJournal(ctx context.Context) error {
	poolCfg := postgres.DefaultPoolConfig(a.Settings.Database.DSN)
	if a.Settings.Database.MaxConns > 0 {
		poolCfg.MaxConns = a.Settings.Database.MaxConns
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("open journal database: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return err
	}

	txm := postgres.NewTxManager(pool)
	// Fresh entries wait out the engine's own polling before the relay sees them.
	settle := a.Settings.Verification.WaitTime * time.Duration(a.Settings.Verification.Retries+1)
	journal, err := postgres.NewJournal(txm, settle)
	if err != nil {
		pool.Close()
		return err
	}

	a.Pool, a.TxManager, a.Journal = pool, txm, journal
	a.Logger.Infow("submission journal enabled")
	return nil
}

// NewRelay builds the journal re-verification relay. It requires a journal.
func (a *App) NewRelay() (*postgres.Relay, error) {
	if a.Journal == nil {
		return nil, fmt.Errorf("re-verification needs database.dsn")
	}
	return postgres.NewRelay(a.TxManager, a.Journal, orgsync.NewReverifier(a.Verifier), a.Metrics, postgres.RelayConfig{
		BatchSize:   a.Settings.Worker.BatchSize,
		MaxAttempts: a.Settings.Worker.MaxAttempts,
	}), nil
}

// Close releases the database pool.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}

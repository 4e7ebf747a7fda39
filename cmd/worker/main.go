// Package main is the entry point for the sdmox journal re-verification worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"sdmox/internal/app"
	"sdmox/internal/config"
	"sdmox/internal/infrastructure/storage/postgres"
	"sdmox/pkg/logger"
)

func main() {
	configPath := pflag.String("config", "", "path to YAML settings (defaults to $SDMOX_CONFIG)")
	pflag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       settings.Log.Level,
		Development: settings.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting sdmox worker")

	a, err := app.New(ctx, settings, log)
	if err != nil {
		log.Fatalw("failed to initialize", "error", err)
	}
	defer a.Close()

	relay, err := a.NewRelay()
	if err != nil {
		log.Fatalw("worker cannot start", "error", err)
	}

	worker := NewWorker(relay, a.Journal, a.Pool, settings.Worker, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker drives the journal relay on a fixed interval.
type Worker struct {
	relay     *postgres.Relay
	journal   *postgres.Journal
	pool      *postgres.Pool
	interval  time.Duration
	retention time.Duration
	log       *logger.Logger
}

func NewWorker(relay *postgres.Relay, journal *postgres.Journal, pool *postgres.Pool, cfg config.WorkerConfig, log *logger.Logger) *Worker {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Worker{
		relay:     relay,
		journal:   journal,
		pool:      pool,
		interval:  interval,
		retention: cfg.Retention,
		log:       log.WithComponent("worker"),
	}
}

// Run processes batches until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ctx = logger.WithLogger(ctx, w.log)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(1 * time.Hour)
	defer cleanupTicker.Stop()

	w.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		case <-cleanupTicker.C:
			w.cleanupJournal(ctx)
			postgres.LogPoolStats(ctx, w.pool)
		}
	}
}

// drain keeps processing while batches come back full.
func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			w.log.Errorw("re-verification batch failed", "error", err)
			return
		}
		if n > 0 {
			w.log.Debugw("re-verified journal batch", "count", n)
		}
		if n < w.relay.BatchSize() {
			return
		}
	}
}

func (w *Worker) cleanupJournal(ctx context.Context) {
	if w.retention <= 0 {
		return
	}
	n, err := w.journal.PurgeSettled(ctx, time.Now().Add(-w.retention))
	if err != nil {
		w.log.Errorw("journal cleanup failed", "error", err)
		return
	}
	if n > 0 {
		w.log.Infow("purged settled journal entries", "count", n)
	}
}

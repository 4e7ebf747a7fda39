package postgres

import (
	"context"
	"fmt"
	"time"

	"sdmox/internal/core/id"
	"sdmox/internal/core/tx"
	"sdmox/internal/domain/orgsync"
	"sdmox/pkg/logger"
)

// ReverifyHandler checks one journal entry against the registry.
// Satisfied by *orgsync.Reverifier.
type ReverifyHandler interface {
	Reverify(ctx context.Context, entry *orgsync.JournalEntry) (orgsync.Outcome, error)
}

// RelayObserver receives relay outcomes. Satisfied by *metrics.Metrics.
type RelayObserver interface {
	IncrementReverified(status string)
}

// RelayConfig configures the re-verification relay.
type RelayConfig struct {
	BatchSize   int
	MaxAttempts int
	Backoff     time.Duration
	// Lease is how long a claimed entry stays hidden from other workers
	// while it is re-verified.
	Lease       time.Duration
}

// DefaultRelayConfig returns 5 attempts with linear one-minute backoff.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{BatchSize: 20, MaxAttempts: 5, Backoff: time.Minute, Lease: 5 * time.Minute}
}

// Relay re-verifies unsettled journal entries. Several workers may run it
// concurrently: a batch is claimed with SKIP LOCKED and leased by pushing
// next_check_at forward, and the registry is queried after that commits.
type Relay struct {
	txm      tx.Manager
	journal  *Journal
	handler  ReverifyHandler
	observer RelayObserver
	cfg      RelayConfig
}

// NewRelay creates a relay. observer may be nil.
func NewRelay(txm tx.Manager, journal *Journal, handler ReverifyHandler, observer RelayObserver, cfg RelayConfig) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultRelayConfig().BatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRelayConfig().MaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultRelayConfig().Backoff
	}
	if cfg.Lease <= 0 {
		cfg.Lease = DefaultRelayConfig().Lease
	}
	return &Relay{txm: txm, journal: journal, handler: handler, observer: observer, cfg: cfg}
}

// BatchSize is the largest number of entries one ProcessBatch call handles.
func (r *Relay) BatchSize() int { return r.cfg.BatchSize }

// ProcessBatch re-verifies one batch of due entries and returns how many
// were checked.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	entries, err := r.claim(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, entry := range entries {
		outcome, herr := r.handler.Reverify(ctx, entry)
		u := nextRelayState(entry, outcome, herr, r.cfg, r.journal.now())
		if herr != nil {
			logger.Warn(ctx, "re-verification failed", "entry_id", entry.ID, "unit_uuid", entry.UnitUUID, "error", herr)
		}
		if err := r.journal.applyRelay(ctx, entry.ID, u); err != nil {
			return processed, fmt.Errorf("relay entry %s: %w", entry.ID, err)
		}
		if r.observer != nil && u.Status != "" {
			r.observer.IncrementReverified(string(u.Status))
		}
		processed++
	}
	return processed, nil
}

// claim locks one batch of due entries and leases them in a short transaction.
func (r *Relay) claim(ctx context.Context) ([]*orgsync.JournalEntry, error) {
	var entries []*orgsync.JournalEntry
	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		due, err := r.journal.due(ctx, r.cfg.BatchSize)
		if err != nil || len(due) == 0 {
			return err
		}
		ids := make([]id.ID, 0, len(due))
		for _, e := range due {
			ids = append(ids, e.ID)
		}
		if err := r.journal.lease(ctx, ids, r.journal.now().Add(r.cfg.Lease)); err != nil {
			return err
		}
		entries = due
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim journal batch: %w", err)
	}
	return entries, nil
}

// relayUpdate is the change one relay pass makes to an entry. An empty
// Status leaves status, attempts and mismatches unchanged.
type relayUpdate struct {
	orgsync.Outcome
	RelayAttempts int
	NextCheckAt   time.Time
	LastError     string
}

func nextRelayState(entry *orgsync.JournalEntry, outcome orgsync.Outcome, err error, cfg RelayConfig, now time.Time) relayUpdate {
	u := relayUpdate{RelayAttempts: entry.RelayAttempts + 1}
	u.NextCheckAt = now.Add(time.Duration(u.RelayAttempts) * cfg.Backoff)

	if err != nil {
		u.LastError = err.Error()
	} else {
		u.Outcome = outcome
		u.LastError = outcome.Error
		if outcome.Status.Settled() {
			return u
		}
	}

	if u.RelayAttempts >= cfg.MaxAttempts {
		if u.Status == "" {
			u.Attempts = entry.Attempts
			u.Mismatches = entry.Mismatches
		}
		u.Status = orgsync.JournalFailed
		if u.LastError == "" {
			u.LastError = fmt.Sprintf("not converged after %d re-verifications", u.RelayAttempts)
		}
	}
	return u
}

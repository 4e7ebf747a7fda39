//go:build integration

package postgres

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"sdmox/internal/core/apperror"
	"sdmox/internal/core/id"
	"sdmox/internal/domain/orgsync"
	"sdmox/internal/domain/orgunit"
	"sdmox/internal/domain/verify"
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("sdmox"),
		tcpostgres.WithUsername("sdmox"),
		tcpostgres.WithPassword("sdmox"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, DefaultPoolConfig(dsn))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, EnsureSchema(ctx, pool))
	return pool
}

type scriptedHandler struct {
	outcomes map[id.ID]orgsync.Outcome
	seen     []id.ID
	during   func(entry *orgsync.JournalEntry)
}

func (h *scriptedHandler) Reverify(_ context.Context, entry *orgsync.JournalEntry) (orgsync.Outcome, error) {
	h.seen = append(h.seen, entry.ID)
	if h.during != nil {
		h.during(entry)
	}
	return h.outcomes[entry.ID], nil
}

func sampleEntry(t *testing.T, docs ...[]byte) *orgsync.JournalEntry {
	t.Helper()
	w, err := orgunit.NewWindow(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	phone := "12345678"
	return &orgsync.JournalEntry{
		Operation: orgunit.OperationEdit,
		UnitUUID:  "12345-22-22-22-12345",
		Window:    w,
		Expected:  orgunit.ChangePayload{UnitUUID: "12345-22-22-22-12345", Name: "A-sdm1", Phone: &phone},
		Documents: docs,
		Caller:    "operator",
	}
}

func TestJournal_RecordCompleteGet(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	journal, err := NewJournal(NewTxManager(pool), 0)
	require.NoError(t, err)

	large := bytes.Repeat([]byte("<sd:Navn>A-sdm1</sd:Navn>"), 1000)
	entry := sampleEntry(t, []byte("<a/>"), large)
	require.NoError(t, journal.Record(ctx, entry))
	require.False(t, id.IsNil(entry.ID))

	mismatches := []verify.FieldMismatch{{Field: verify.FieldName, Expected: "A-sdm1", Observed: "A-sdm"}}
	require.NoError(t, journal.Complete(ctx, entry.ID, orgsync.Outcome{
		Status: orgsync.JournalMismatched, Attempts: 6, Mismatches: mismatches,
	}))

	got, err := journal.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, orgsync.JournalMismatched, got.Status)
	assert.Equal(t, 6, got.Attempts)
	assert.Equal(t, mismatches, got.Mismatches)
	assert.Equal(t, entry.Window.From, got.Window.From)
	assert.Equal(t, orgunit.OpenEnd, got.Window.To)
	assert.Equal(t, "A-sdm1", got.Expected.Name)
	assert.Equal(t, [][]byte{[]byte("<a/>"), large}, got.Documents)
	assert.Equal(t, "operator", got.Caller)

	list, err := journal.List(ctx, JournalFilter{Status: orgsync.JournalMismatched})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, entry.ID, list[0].ID)

	_, err = journal.Get(ctx, id.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestRelay_ProcessBatch(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	txm := NewTxManager(pool)
	journal, err := NewJournal(txm, 0)
	require.NoError(t, err)

	settled := sampleEntry(t)
	open := sampleEntry(t)
	for _, e := range []*orgsync.JournalEntry{settled, open} {
		require.NoError(t, journal.Record(ctx, e))
	}
	require.NoError(t, journal.Complete(ctx, settled.ID, orgsync.Outcome{Status: orgsync.JournalVerified, Attempts: 1}))
	require.NoError(t, journal.Complete(ctx, open.ID, orgsync.Outcome{Status: orgsync.JournalNotFound, Attempts: 6}))

	handler := &scriptedHandler{outcomes: map[id.ID]orgsync.Outcome{
		open.ID: {Status: orgsync.JournalVerified, Attempts: 7},
	}}
	relay := NewRelay(txm, journal, handler, nil, DefaultRelayConfig())

	n, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []id.ID{open.ID}, handler.seen)

	got, err := journal.Get(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, orgsync.JournalVerified, got.Status)
	assert.Equal(t, 1, got.RelayAttempts)

	n, err = relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestJournal_PurgeSettled(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	journal, err := NewJournal(NewTxManager(pool), 0)
	require.NoError(t, err)

	verified := sampleEntry(t)
	pending := sampleEntry(t)
	for _, e := range []*orgsync.JournalEntry{verified, pending} {
		require.NoError(t, journal.Record(ctx, e))
	}
	require.NoError(t, journal.Complete(ctx, verified.ID, orgsync.Outcome{Status: orgsync.JournalVerified, Attempts: 1}))

	n, err := journal.PurgeSettled(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = journal.PurgeSettled(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = journal.Get(ctx, verified.ID)
	assert.True(t, apperror.IsNotFound(err))
	_, err = journal.Get(ctx, pending.ID)
	assert.NoError(t, err)
}

func TestRelay_LeaseCommittedBeforeReverify(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	txm := NewTxManager(pool)
	journal, err := NewJournal(txm, 0)
	require.NoError(t, err)

	entry := sampleEntry(t)
	require.NoError(t, journal.Record(ctx, entry))

	cfg := DefaultRelayConfig()
	other := NewRelay(txm, journal, &scriptedHandler{}, nil, cfg)

	var leasedUntil time.Time
	var claimedByOther int
	handler := &scriptedHandler{
		outcomes: map[id.ID]orgsync.Outcome{entry.ID: {Status: orgsync.JournalMismatched, Attempts: 1}},
		during: func(e *orgsync.JournalEntry) {
			// Visible from another connection, so the claim has committed.
			require.NoError(t, pool.QueryRow(ctx,
				"SELECT next_check_at FROM sdmox_journal WHERE id = $1", e.ID).Scan(&leasedUntil))
			n, err := other.ProcessBatch(ctx)
			require.NoError(t, err)
			claimedByOther = n
		},
	}
	relay := NewRelay(txm, journal, handler, nil, cfg)

	start := time.Now()
	n, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, claimedByOther)
	assert.True(t, leasedUntil.After(start.Add(cfg.Lease-time.Minute)), "lease not visible: %s", leasedUntil)

	got, err := journal.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, orgsync.JournalMismatched, got.Status)
	assert.Equal(t, 1, got.RelayAttempts)
}

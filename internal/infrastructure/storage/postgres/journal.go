package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"sdmox/internal/core/apperror"
	"sdmox/internal/core/id"
	"sdmox/internal/domain/orgsync"
	"sdmox/internal/domain/orgunit"
	"sdmox/internal/domain/verify"
)

const journalTable = "sdmox_journal"

var journalColumns = []string{
	"id", "operation", "unit_uuid", "window_from", "window_to", "expected",
	"documents", "compression_algo", "caller", "status", "attempts",
	"relay_attempts", "mismatches", "last_error", "next_check_at",
	"created_at", "updated_at",
}

// journalRow is the database representation of orgsync.JournalEntry.
type journalRow struct {
	ID              id.ID           `db:"id"`
	Operation       string          `db:"operation"`
	UnitUUID        string          `db:"unit_uuid"`
	WindowFrom      time.Time       `db:"window_from"`
	WindowTo        time.Time       `db:"window_to"`
	Expected        json.RawMessage `db:"expected"`
	Documents       []byte          `db:"documents"`
	CompressionAlgo CompressionAlgo `db:"compression_algo"`
	Caller          string          `db:"caller"`
	Status          string          `db:"status"`
	Attempts        int             `db:"attempts"`
	RelayAttempts   int             `db:"relay_attempts"`
	Mismatches      json.RawMessage `db:"mismatches"`
	LastError       *string         `db:"last_error"`
	NextCheckAt     time.Time       `db:"next_check_at"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// JournalFilter narrows List.
type JournalFilter struct {
	UnitUUID string
	Status   orgsync.JournalStatus
	Limit    uint64
}

// Journal implements orgsync.Journal on PostgreSQL.
type Journal struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
	docs    *documentCodec

	// settleDelay postpones the first relay check so the engine's own
	// verification finishes first.
	settleDelay time.Duration
	now         func() time.Time
}

var _ orgsync.Journal = (*Journal)(nil)

// NewJournal creates a journal. settleDelay is the time before the relay
// may pick up a fresh entry.
func NewJournal(txm *TxManager, settleDelay time.Duration) (*Journal, error) {
	docs, err := newDocumentCodec(defaultCompressThreshold)
	if err != nil {
		return nil, err
	}
	return &Journal{
		txm:         txm,
		builder:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		docs:        docs,
		settleDelay: settleDelay,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Record inserts entry. ID and CreatedAt are filled in when empty.
func (j *Journal) Record(ctx context.Context, entry *orgsync.JournalEntry) error {
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	now := j.now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.Status == "" {
		entry.Status = orgsync.JournalPending
	}

	expected, err := json.Marshal(entry.Expected)
	if err != nil {
		return fmt.Errorf("marshal expected payload: %w", err)
	}
	docs, algo, err := j.docs.pack(entry.Documents)
	if err != nil {
		return err
	}
	mismatches, err := marshalMismatches(entry.Mismatches)
	if err != nil {
		return err
	}

	sql, args, err := j.builder.Insert(journalTable).
		Columns(journalColumns...).
		Values(
			entry.ID, string(entry.Operation), entry.UnitUUID, entry.Window.From, entry.Window.To, expected,
			docs, algo, entry.Caller, string(entry.Status), entry.Attempts,
			entry.RelayAttempts, mismatches, nullable(entry.LastError), now.Add(j.settleDelay),
			entry.CreatedAt, now,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := j.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Complete records the engine's verification outcome for an entry.
func (j *Journal) Complete(ctx context.Context, entryID id.ID, outcome orgsync.Outcome) error {
	mismatches, err := marshalMismatches(outcome.Mismatches)
	if err != nil {
		return err
	}
	return j.update(ctx, entryID, map[string]any{
		"status":     string(outcome.Status),
		"attempts":   outcome.Attempts,
		"mismatches": mismatches,
		"last_error": nullable(outcome.Error),
		"updated_at": j.now(),
	})
}

// Get returns a single entry.
func (j *Journal) Get(ctx context.Context, entryID id.ID) (*orgsync.JournalEntry, error) {
	sql, args, err := j.builder.Select(journalColumns...).
		From(journalTable).
		Where(squirrel.Eq{"id": entryID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var row journalRow
	if err := pgxscan.Get(ctx, j.txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("journal entry", entryID)
		}
		return nil, fmt.Errorf("get journal entry: %w", err)
	}
	return j.toEntry(row)
}

// List returns entries newest first.
func (j *Journal) List(ctx context.Context, filter JournalFilter) ([]*orgsync.JournalEntry, error) {
	q := j.builder.Select(journalColumns...).
		From(journalTable).
		OrderBy("created_at DESC")
	if filter.UnitUUID != "" {
		q = q.Where(squirrel.Eq{"unit_uuid": filter.UnitUUID})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": string(filter.Status)})
	}
	sql, args, err := q.Limit(listLimit(filter.Limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var rows []journalRow
	if err := pgxscan.Select(ctx, j.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	return j.toEntries(rows)
}

// PurgeSettled deletes verified and failed entries last updated before cutoff
// and returns how many were removed.
func (j *Journal) PurgeSettled(ctx context.Context, cutoff time.Time) (int64, error) {
	sql, args, err := j.builder.Delete(journalTable).
		Where(squirrel.Eq{"status": []string{
			string(orgsync.JournalVerified),
			string(orgsync.JournalFailed),
		}}).
		Where(squirrel.Lt{"updated_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	tag, err := j.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("purge journal: %w", err)
	}
	return tag.RowsAffected(), nil
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// listLimit defaults an unset limit and caps oversized ones.
func listLimit(limit uint64) uint64 {
	switch {
	case limit == 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}

// due locks up to limit unsettled entries whose next check time has passed.
// Must run inside a transaction.
func (j *Journal) due(ctx context.Context, limit int) ([]*orgsync.JournalEntry, error) {
	if j.txm.getTx(ctx) == nil {
		return nil, errors.New("journal relay requires transaction context")
	}
	sql, args, err := j.builder.Select(journalColumns...).
		From(journalTable).
		Where(squirrel.Eq{"status": []string{
			string(orgsync.JournalPending),
			string(orgsync.JournalMismatched),
			string(orgsync.JournalNotFound),
		}}).
		Where(squirrel.LtOrEq{"next_check_at": j.now()}).
		OrderBy("next_check_at").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var rows []journalRow
	if err := pgxscan.Select(ctx, j.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("fetch due entries: %w", err)
	}
	return j.toEntries(rows)
}

// lease hides claimed entries from other relays until the given time.
func (j *Journal) lease(ctx context.Context, ids []id.ID, until time.Time) error {
	sql, args, err := j.builder.Update(journalTable).
		Set("next_check_at", until).
		Where(squirrel.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := j.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("lease journal entries: %w", err)
	}
	return nil
}

// applyRelay stores the result of one relay pass over an entry.
func (j *Journal) applyRelay(ctx context.Context, entryID id.ID, u relayUpdate) error {
	set := map[string]any{
		"relay_attempts": u.RelayAttempts,
		"next_check_at":  u.NextCheckAt,
		"last_error":     nullable(u.LastError),
		"updated_at":     j.now(),
	}
	if u.Status != "" {
		mismatches, err := marshalMismatches(u.Mismatches)
		if err != nil {
			return err
		}
		set["status"] = string(u.Status)
		set["attempts"] = u.Attempts
		set["mismatches"] = mismatches
	}
	return j.update(ctx, entryID, set)
}

func (j *Journal) update(ctx context.Context, entryID id.ID, set map[string]any) error {
	sql, args, err := j.builder.Update(journalTable).
		SetMap(set).
		Where(squirrel.Eq{"id": entryID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := j.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update journal entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("journal entry", entryID)
	}
	return nil
}

func (j *Journal) toEntries(rows []journalRow) ([]*orgsync.JournalEntry, error) {
	out := make([]*orgsync.JournalEntry, 0, len(rows))
	for _, row := range rows {
		e, err := j.toEntry(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (j *Journal) toEntry(row journalRow) (*orgsync.JournalEntry, error) {
	e := &orgsync.JournalEntry{
		ID:            row.ID,
		Operation:     orgunit.Operation(row.Operation),
		UnitUUID:      row.UnitUUID,
		Window:        orgunit.EffectiveWindow{From: row.WindowFrom.UTC(), To: row.WindowTo.UTC()},
		Caller:        row.Caller,
		Status:        orgsync.JournalStatus(row.Status),
		Attempts:      row.Attempts,
		RelayAttempts: row.RelayAttempts,
		CreatedAt:     row.CreatedAt,
	}
	if row.LastError != nil {
		e.LastError = *row.LastError
	}
	if err := json.Unmarshal(row.Expected, &e.Expected); err != nil {
		return nil, fmt.Errorf("unmarshal expected payload of %s: %w", row.ID, err)
	}
	if len(row.Mismatches) > 0 {
		var mm []verify.FieldMismatch
		if err := json.Unmarshal(row.Mismatches, &mm); err != nil {
			return nil, fmt.Errorf("unmarshal mismatches of %s: %w", row.ID, err)
		}
		e.Mismatches = mm
	}
	docs, err := j.docs.unpack(row.Documents, row.CompressionAlgo)
	if err != nil {
		return nil, fmt.Errorf("documents of %s: %w", row.ID, err)
	}
	e.Documents = docs
	return e, nil
}

func marshalMismatches(mm []verify.FieldMismatch) (json.RawMessage, error) {
	if len(mm) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(mm)
	if err != nil {
		return nil, fmt.Errorf("marshal mismatches: %w", err)
	}
	return data, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

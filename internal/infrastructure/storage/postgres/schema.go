package postgres

import (
	"context"
	"fmt"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS sdmox_journal (
	id               UUID PRIMARY KEY,
	operation        TEXT        NOT NULL,
	unit_uuid        TEXT        NOT NULL,
	window_from      DATE        NOT NULL,
	window_to        DATE        NOT NULL,
	expected         JSONB       NOT NULL,
	documents        BYTEA,
	compression_algo TEXT        NOT NULL DEFAULT 'none',
	caller           TEXT        NOT NULL DEFAULT '',
	status           TEXT        NOT NULL,
	attempts         INT         NOT NULL DEFAULT 0,
	relay_attempts   INT         NOT NULL DEFAULT 0,
	mismatches       JSONB,
	last_error       TEXT,
	next_check_at    TIMESTAMPTZ NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sdmox_journal_due
	ON sdmox_journal (next_check_at)
	WHERE status IN ('pending', 'mismatched', 'not_found');

CREATE INDEX IF NOT EXISTS idx_sdmox_journal_unit
	ON sdmox_journal (unit_uuid, created_at DESC);
`

// EnsureSchema creates the journal table and its indexes if missing.
func EnsureSchema(ctx context.Context, pool *Pool) error {
	if _, err := pool.Exec(ctx, journalSchema); err != nil {
		return fmt.Errorf("ensure journal schema: %w", err)
	}
	return nil
}

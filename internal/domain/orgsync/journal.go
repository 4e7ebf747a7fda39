package orgsync

import (
	"context"
	"time"

	"sdmox/internal/core/id"
	"sdmox/internal/domain/orgunit"
	"sdmox/internal/domain/verify"
)

// JournalStatus is the verification state of a submitted change.
type JournalStatus string

const (
	JournalPending    JournalStatus = "pending"
	JournalVerified   JournalStatus = "verified"
	JournalMismatched JournalStatus = "mismatched"
	JournalNotFound   JournalStatus = "not_found"
	JournalFailed     JournalStatus = "failed"
)

// Settled reports whether the worker should stop re-verifying.
func (s JournalStatus) Settled() bool {
	return s == JournalVerified || s == JournalFailed
}

// JournalEntry is a submitted change kept for audit and later re-verification.
type JournalEntry struct {
	ID            id.ID                   `json:"id"`
	Operation     orgunit.Operation       `json:"operation"`
	UnitUUID      string                  `json:"unit_uuid"`
	Window        orgunit.EffectiveWindow `json:"window"`
	Expected      orgunit.ChangePayload   `json:"expected"`
	Documents     [][]byte                `json:"-"`
	Caller        string                  `json:"caller,omitempty"`
	Status        JournalStatus           `json:"status"`
	Attempts      int                     `json:"attempts"`
	RelayAttempts int                     `json:"relay_attempts"`
	Mismatches    []verify.FieldMismatch  `json:"mismatches,omitempty"`
	LastError     string                  `json:"last_error,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}

// Outcome is the verification result recorded against an entry.
type Outcome struct {
	Status     JournalStatus
	Attempts   int
	Mismatches []verify.FieldMismatch
	Error      string
}

// Journal persists submitted changes.
type Journal interface {
	Record(ctx context.Context, entry *JournalEntry) error
	Complete(ctx context.Context, entryID id.ID, outcome Outcome) error
}

// Reverifier re-checks journal entries one registry read at a time.
type Reverifier struct {
	verifier *verify.Verifier
}

// NewReverifier creates a reverifier.
func NewReverifier(verifier *verify.Verifier) *Reverifier {
	return &Reverifier{verifier: verifier}
}

// Reverify compares the registry with the entry's expectation once.
func (r *Reverifier) Reverify(ctx context.Context, entry *JournalEntry) (Outcome, error) {
	res, err := r.verifier.Check(ctx, entry.Operation, entry.Expected, entry.Window)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Attempts: entry.Attempts + 1, Mismatches: res.Mismatches}
	switch {
	case res.Department == nil:
		out.Status = JournalNotFound
	case len(res.Mismatches) > 0:
		out.Status = JournalMismatched
	default:
		out.Status = JournalVerified
	}
	return out, nil
}

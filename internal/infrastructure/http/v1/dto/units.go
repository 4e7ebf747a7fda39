// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"

	"sdmox/internal/core/id"
	"sdmox/internal/domain/orgsync"
	"sdmox/internal/domain/orgunit"
	"sdmox/internal/domain/verify"
)

// RenameRequest is the body of POST /units/:uuid/rename.
type RenameRequest struct {
	Name string `json:"name" binding:"required"`
	At   string `json:"at" binding:"required"`
}

// MoveRequest is the body of POST /units/:uuid/move.
type MoveRequest struct {
	ParentUUID string `json:"parent_uuid" binding:"required"`
	At         string `json:"at" binding:"required"`
}

// CreateRequest is the body of POST /units/:uuid.
type CreateRequest struct {
	Unit   orgunit.Unit `json:"unit"`
	Parent orgunit.Unit `json:"parent"`
	At     string       `json:"at" binding:"required"`
}

// AddressRequest is the body of POST and PUT /units/:uuid/addresses.
type AddressRequest struct {
	Address orgunit.AddressRecord `json:"address"`
	At      string                `json:"at" binding:"required"`
}

// UnitResponse describes a finished operation.
type UnitResponse struct {
	Operation    orgunit.Operation     `json:"operation"`
	UnitUUID     string                `json:"unit_uuid"`
	DryRun       bool                  `json:"dry_run"`
	Expected     orgunit.ChangePayload `json:"expected"`
	Documents    []string              `json:"documents,omitempty"`
	Verification *verify.Result        `json:"verification,omitempty"`
	JournalID    *id.ID                `json:"journal_id,omitempty"`
}

// FromResult converts an engine result. Rendered documents are only
// included for dry runs.
func FromResult(res *orgsync.Result) UnitResponse {
	out := UnitResponse{
		Operation:    res.Operation,
		UnitUUID:     res.UnitUUID,
		DryRun:       res.DryRun,
		Expected:     res.Expected,
		Verification: res.Verification,
	}
	if !id.IsNil(res.JournalID) {
		jid := res.JournalID
		out.JournalID = &jid
	}
	if res.DryRun {
		for _, doc := range res.Documents {
			out.Documents = append(out.Documents, string(doc))
		}
	}
	return out
}

// JournalEntryResponse is a journal entry as returned by the API.
type JournalEntryResponse struct {
	ID            id.ID                  `json:"id"`
	Operation     orgunit.Operation      `json:"operation"`
	UnitUUID      string                 `json:"unit_uuid"`
	From          string                 `json:"from"`
	To            string                 `json:"to"`
	Expected      orgunit.ChangePayload  `json:"expected"`
	Caller        string                 `json:"caller,omitempty"`
	Status        orgsync.JournalStatus  `json:"status"`
	Attempts      int                    `json:"attempts"`
	RelayAttempts int                    `json:"relay_attempts"`
	Mismatches    []verify.FieldMismatch `json:"mismatches,omitempty"`
	LastError     string                 `json:"last_error,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// FromJournalEntry converts a journal entry.
func FromJournalEntry(e *orgsync.JournalEntry) JournalEntryResponse {
	return JournalEntryResponse{
		ID:            e.ID,
		Operation:     e.Operation,
		UnitUUID:      e.UnitUUID,
		From:          e.Window.FromDate(),
		To:            e.Window.ToDate(),
		Expected:      e.Expected,
		Caller:        e.Caller,
		Status:        e.Status,
		Attempts:      e.Attempts,
		RelayAttempts: e.RelayAttempts,
		Mismatches:    e.Mismatches,
		LastError:     e.LastError,
		CreatedAt:     e.CreatedAt,
	}
}

// JournalListRequest holds the query of GET /journal.
type JournalListRequest struct {
	UnitUUID string `form:"unit_uuid"`
	Status   string `form:"status" binding:"omitempty,oneof=pending verified mismatched not_found failed"`
	Limit    uint64 `form:"limit" binding:"omitempty,min=1,max=500"`
}

// ListResponse wraps list results.
type ListResponse struct {
	Items any `json:"items"`
	Count int `json:"count"`
}

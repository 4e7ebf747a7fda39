// Package orgsync is the change-submission engine: it validates directory
// changes, renders them for the registry, submits them and verifies that the
// registry converged.
package orgsync

import (
	"context"
	"time"

	"sdmox/internal/core/id"
	"sdmox/internal/domain/orgunit"
	"sdmox/internal/domain/verify"
)

// Interface lists the public unit operations. Every operation validates
// everything before submitting; with dryRun it stops after rendering.
type Interface interface {
	RenameUnit(ctx context.Context, unitUUID, newName string, at time.Time, dryRun bool) (*Result, error)
	MoveUnit(ctx context.Context, unitUUID, newParentUUID string, at time.Time, dryRun bool) (*Result, error)
	CreateUnit(ctx context.Context, unitUUID string, unit, parent *orgunit.Unit, at time.Time, dryRun bool) (*Result, error)
	CreateAddress(ctx context.Context, unitUUID string, record orgunit.AddressRecord, at time.Time, dryRun bool) (*Result, error)
	EditAddress(ctx context.Context, unitUUID string, record orgunit.AddressRecord, at time.Time, dryRun bool) (*Result, error)
}

// Result describes a finished operation.
type Result struct {
	Operation orgunit.Operation     `json:"operation"`
	UnitUUID  string                `json:"unit_uuid"`
	DryRun    bool                  `json:"dry_run"`
	Expected  orgunit.ChangePayload `json:"expected"`
	// Documents holds the rendered change messages in submission order.
	Documents    [][]byte       `json:"-"`
	Verification *verify.Result `json:"verification,omitempty"`
	JournalID    id.ID          `json:"journal_id"`
}

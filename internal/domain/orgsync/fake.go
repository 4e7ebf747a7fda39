package orgsync

import (
	"context"
	"sync"
	"time"

	"sdmox/internal/domain/orgunit"
)

// Call is one recorded invocation on Fake.
type Call struct {
	Method   string
	UnitUUID string
	Argument string
	Unit     *orgunit.Unit
	Parent   *orgunit.Unit
	Address  orgunit.AddressRecord
	At       time.Time
	DryRun   bool
}

// Fake is an in-memory Interface for callers' tests. It records calls and
// answers with Result/Err, synthesising a Result when none is set.
type Fake struct {
	mu     sync.Mutex
	calls  []Call
	Result *Result
	Err    error
}

var _ Interface = (*Fake)(nil)

// Calls returns the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *Fake) answer(c Call, op orgunit.Operation) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.Err != nil {
		return f.Result, f.Err
	}
	if f.Result != nil {
		return f.Result, nil
	}
	return &Result{Operation: op, UnitUUID: c.UnitUUID, DryRun: c.DryRun}, nil
}

func (f *Fake) RenameUnit(_ context.Context, unitUUID, newName string, at time.Time, dryRun bool) (*Result, error) {
	return f.answer(Call{Method: "RenameUnit", UnitUUID: unitUUID, Argument: newName, At: at, DryRun: dryRun}, orgunit.OperationEdit)
}

func (f *Fake) MoveUnit(_ context.Context, unitUUID, newParentUUID string, at time.Time, dryRun bool) (*Result, error) {
	return f.answer(Call{Method: "MoveUnit", UnitUUID: unitUUID, Argument: newParentUUID, At: at, DryRun: dryRun}, orgunit.OperationMove)
}

func (f *Fake) CreateUnit(_ context.Context, unitUUID string, unit, parent *orgunit.Unit, at time.Time, dryRun bool) (*Result, error) {
	return f.answer(Call{Method: "CreateUnit", UnitUUID: unitUUID, Unit: unit, Parent: parent, At: at, DryRun: dryRun}, orgunit.OperationCreate)
}

func (f *Fake) CreateAddress(_ context.Context, unitUUID string, record orgunit.AddressRecord, at time.Time, dryRun bool) (*Result, error) {
	return f.answer(Call{Method: "CreateAddress", UnitUUID: unitUUID, Address: record, At: at, DryRun: dryRun}, orgunit.OperationEdit)
}

func (f *Fake) EditAddress(_ context.Context, unitUUID string, record orgunit.AddressRecord, at time.Time, dryRun bool) (*Result, error) {
	return f.answer(Call{Method: "EditAddress", UnitUUID: unitUUID, Address: record, At: at, DryRun: dryRun}, orgunit.OperationEdit)
}

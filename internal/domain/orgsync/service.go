package orgsync

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sdmox/internal/core/apperror"
	appctx "sdmox/internal/core/context"
	"sdmox/internal/core/id"
	"sdmox/internal/domain/level"
	"sdmox/internal/domain/orgunit"
	"sdmox/internal/domain/payload"
	"sdmox/internal/domain/unitcode"
	"sdmox/internal/domain/verify"
	"sdmox/pkg/logger"
)

// Recorder receives operation metrics. Satisfied by *metrics.Metrics.
type Recorder interface {
	ObserveOperation(operation, outcome string, d time.Duration)
	ObserveVerification(operation string, attempts int)
}

// ServiceConfig wires the engine's collaborators. Journal and Metrics are optional.
type ServiceConfig struct {
	Directory orgunit.DirectoryReader
	Registry  orgunit.RegistryReader
	Levels    *level.Hierarchy
	Builder   *payload.Builder
	Codes     *unitcode.Validator
	Codec     orgunit.Codec
	Submitter *Submitter
	Verifier  *verify.Verifier
	Journal   Journal
	Metrics   Recorder
}

// Service is the change-submission engine.
type Service struct {
	directory orgunit.DirectoryReader
	registry  orgunit.RegistryReader
	levels    *level.Hierarchy
	builder   *payload.Builder
	codes     *unitcode.Validator
	codec     orgunit.Codec
	submitter *Submitter
	verifier  *verify.Verifier
	journal   Journal
	metrics   Recorder
	tracer    trace.Tracer
}

var _ Interface = (*Service)(nil)

// NewService creates the engine.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		directory: cfg.Directory,
		registry:  cfg.Registry,
		levels:    cfg.Levels,
		builder:   cfg.Builder,
		codes:     cfg.Codes,
		codec:     cfg.Codec,
		submitter: cfg.Submitter,
		verifier:  cfg.Verifier,
		journal:   cfg.Journal,
		metrics:   cfg.Metrics,
		tracer:    otel.Tracer("sdmox/orgsync"),
	}
}

// RenameUnit gives an existing unit a new name from at onwards.
func (s *Service) RenameUnit(ctx context.Context, unitUUID, newName string, at time.Time, dryRun bool) (*Result, error) {
	return s.observe(ctx, "rename", unitUUID, func(ctx context.Context) (*Result, error) {
		w, err := orgunit.NewWindow(at, nil)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(newName) == "" {
			return nil, apperror.NewValidation("new name is required")
		}
		unit, err := s.directory.ReadUnit(ctx, unitUUID, at)
		if err != nil {
			return nil, err
		}
		unit.Name = newName
		if err := s.checkCode(ctx, unit.UserKey, true, w); err != nil {
			return nil, err
		}
		records, err := s.directory.ReadUnitAddresses(ctx, unitUUID, at)
		if err != nil {
			return nil, err
		}
		return s.edit(ctx, unitUUID, unit, records, w, dryRun)
	})
}

// MoveUnit places an existing unit under a new parent from at onwards.
func (s *Service) MoveUnit(ctx context.Context, unitUUID, newParentUUID string, at time.Time, dryRun bool) (*Result, error) {
	return s.observe(ctx, "move", unitUUID, func(ctx context.Context) (*Result, error) {
		w, err := orgunit.NewWindow(at, nil)
		if err != nil {
			return nil, err
		}
		if newParentUUID == "" || newParentUUID == unitUUID {
			return nil, apperror.NewValidation("a unit must be moved under another unit").
				WithDetail("parent_uuid", newParentUUID)
		}
		unit, err := s.directory.ReadUnit(ctx, unitUUID, at)
		if err != nil {
			return nil, err
		}
		if err := s.checkCode(ctx, unit.UserKey, true, w); err != nil {
			return nil, err
		}
		parent, err := s.directory.ReadUnit(ctx, newParentUUID, at)
		if err != nil {
			return nil, err
		}
		p, err := s.builder.ForCreateOrMove(unitUUID, unit, parent)
		if err != nil {
			return nil, err
		}
		if err := s.checkRegistryParent(ctx, p, w); err != nil {
			return nil, err
		}
		docs := [][]byte{s.codec.RenderMove(p, w)}
		return s.submitAndVerify(ctx, orgunit.OperationMove, p, w, docs, dryRun)
	})
}

// CreateUnit creates unit under parent. Addresses in unit.Details are sent
// as a follow-up edit and verified together with the creation.
func (s *Service) CreateUnit(ctx context.Context, unitUUID string, unit, parent *orgunit.Unit, at time.Time, dryRun bool) (*Result, error) {
	return s.observe(ctx, "create", unitUUID, func(ctx context.Context) (*Result, error) {
		w, err := orgunit.NewWindow(at, nil)
		if err != nil {
			return nil, err
		}
		p, err := s.builder.ForCreateOrMove(unitUUID, unit, parent)
		if err != nil {
			return nil, err
		}
		if err := s.checkCode(ctx, p.Code, false, w); err != nil {
			return nil, err
		}
		if err := s.checkRegistryParent(ctx, p, w); err != nil {
			return nil, err
		}

		docs := [][]byte{s.codec.RenderCreate(p, w)}
		expected := p
		if len(unit.Details) > 0 {
			details, err := s.builder.ForEdit(ctx, unitUUID, unit, unit.Details)
			if err != nil {
				return nil, err
			}
			docs = append(docs, s.codec.RenderEdit(details, w))
			expected = p.Merge(details)
		}
		return s.submitAndVerify(ctx, orgunit.OperationCreate, expected, w, docs, dryRun)
	})
}

// CreateAddress adds record to a unit. The new record takes priority over
// existing records of the same scope.
func (s *Service) CreateAddress(ctx context.Context, unitUUID string, record orgunit.AddressRecord, at time.Time, dryRun bool) (*Result, error) {
	return s.observe(ctx, "create_address", unitUUID, func(ctx context.Context) (*Result, error) {
		return s.prependAddress(ctx, unitUUID, record, at, dryRun)
	})
}

// EditAddress re-submits a unit's addresses with record first.
func (s *Service) EditAddress(ctx context.Context, unitUUID string, record orgunit.AddressRecord, at time.Time, dryRun bool) (*Result, error) {
	return s.observe(ctx, "edit_address", unitUUID, func(ctx context.Context) (*Result, error) {
		return s.prependAddress(ctx, unitUUID, record, at, dryRun)
	})
}

func (s *Service) prependAddress(ctx context.Context, unitUUID string, record orgunit.AddressRecord, at time.Time, dryRun bool) (*Result, error) {
	w, err := orgunit.NewWindow(at, nil)
	if err != nil {
		return nil, err
	}
	if record.Scope == "" || record.Value == "" {
		return nil, apperror.NewValidation("address scope and value are required")
	}
	unit, err := s.directory.ReadUnit(ctx, unitUUID, at)
	if err != nil {
		return nil, err
	}
	previous, err := s.directory.ReadUnitAddresses(ctx, unitUUID, at)
	if err != nil {
		return nil, err
	}
	records := append([]orgunit.AddressRecord{record}, previous...)
	return s.edit(ctx, unitUUID, unit, records, w, dryRun)
}

func (s *Service) edit(ctx context.Context, unitUUID string, unit *orgunit.Unit, records []orgunit.AddressRecord, w orgunit.EffectiveWindow, dryRun bool) (*Result, error) {
	p, err := s.builder.ForEdit(ctx, unitUUID, unit, records)
	if err != nil {
		return nil, err
	}
	docs := [][]byte{s.codec.RenderEdit(p, w)}
	return s.submitAndVerify(ctx, orgunit.OperationEdit, p, w, docs, dryRun)
}

func (s *Service) checkCode(ctx context.Context, code string, allowExisting bool, w orgunit.EffectiveWindow) error {
	violations, err := s.codes.Validate(ctx, code, allowExisting, w)
	if err != nil {
		return err
	}
	return unitcode.Err(code, violations)
}

// checkRegistryParent requires the parent to exist in the registry at a
// level above the unit's.
func (s *Service) checkRegistryParent(ctx context.Context, p orgunit.ChangePayload, w orgunit.EffectiveWindow) error {
	dep, err := s.registry.GetDepartment(ctx, orgunit.DepartmentQuery{
		Identifier: p.Parent.Code,
		Level:      p.Parent.Level,
		From:       w.From,
		To:         w.From,
	})
	if err != nil {
		return err
	}
	if dep == nil {
		return apperror.NewNotFound("parent department", p.Parent.Code).WithDetail("level", p.Parent.Level)
	}
	return s.levels.CheckBelow(p.Level, dep.Level)
}

func (s *Service) submitAndVerify(ctx context.Context, op orgunit.Operation, expected orgunit.ChangePayload, w orgunit.EffectiveWindow, docs [][]byte, dryRun bool) (*Result, error) {
	res := &Result{
		Operation: op,
		UnitUUID:  expected.UnitUUID,
		DryRun:    dryRun,
		Expected:  expected,
		Documents: docs,
	}
	if dryRun {
		for _, doc := range docs {
			if err := s.submitter.Submit(ctx, doc, true); err != nil {
				return nil, err
			}
		}
		return res, nil
	}

	entry := s.record(ctx, op, expected, w, docs)
	if entry != nil {
		res.JournalID = entry.ID
	}

	for _, doc := range docs {
		if err := s.submitter.Submit(ctx, doc, false); err != nil {
			err = apperror.Stamp(err, apperror.StageSubmission)
			s.complete(ctx, entry, Outcome{Status: JournalFailed, Error: err.Error()})
			return nil, err
		}
	}

	vres, err := s.verifier.Verify(ctx, op, expected, w)
	switch {
	case apperror.IsNotFound(err):
		s.complete(ctx, entry, Outcome{Status: JournalNotFound, Attempts: verifyAttempts(err)})
		return nil, apperror.NewConvergence(expected.UnitUUID, verifyAttempts(err), nil).
			WithDetail("reason", "department_not_found").WithCause(err)
	case err != nil:
		err = apperror.Stamp(err, apperror.StagePostSubmission)
		s.complete(ctx, entry, Outcome{Status: JournalPending, Error: err.Error()})
		return nil, err
	}

	res.Verification = vres
	if s.metrics != nil {
		s.metrics.ObserveVerification(string(op), vres.Attempts)
	}
	if !vres.Converged() {
		s.complete(ctx, entry, Outcome{Status: JournalMismatched, Attempts: vres.Attempts, Mismatches: vres.Mismatches})
		return res, apperror.NewConvergence(expected.UnitUUID, vres.Attempts, vres.Mismatches)
	}
	s.complete(ctx, entry, Outcome{Status: JournalVerified, Attempts: vres.Attempts})
	return res, nil
}

func verifyAttempts(err error) int {
	if appErr, ok := apperror.AsAppError(err); ok {
		if n, ok := appErr.Details["attempts"].(int); ok {
			return n
		}
	}
	return 0
}

// record journals a submission. Journal failures are logged, never fatal.
func (s *Service) record(ctx context.Context, op orgunit.Operation, expected orgunit.ChangePayload, w orgunit.EffectiveWindow, docs [][]byte) *JournalEntry {
	if s.journal == nil {
		return nil
	}
	entry := &JournalEntry{
		ID:        id.New(),
		Operation: op,
		UnitUUID:  expected.UnitUUID,
		Window:    w,
		Expected:  expected,
		Documents: docs,
		Caller:    appctx.GetSubject(ctx),
		Status:    JournalPending,
	}
	if err := s.journal.Record(ctx, entry); err != nil {
		logger.Error(ctx, "journal record failed", "unit_uuid", expected.UnitUUID, "error", err)
		return nil
	}
	return entry
}

func (s *Service) complete(ctx context.Context, entry *JournalEntry, outcome Outcome) {
	if s.journal == nil || entry == nil {
		return
	}
	if err := s.journal.Complete(ctx, entry.ID, outcome); err != nil {
		logger.Error(ctx, "journal update failed", "entry_id", entry.ID, "error", err)
	}
}

// observe wraps an operation in a span, a log line and metrics.
func (s *Service) observe(ctx context.Context, name, unitUUID string, fn func(ctx context.Context) (*Result, error)) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "orgsync."+name, trace.WithAttributes(attribute.String("unit_uuid", unitUUID)))
	defer span.End()

	start := time.Now()
	res, err := fn(ctx)

	outcome := "ok"
	switch {
	case err != nil:
		err = apperror.Stamp(err, apperror.StagePreSubmission)
		appErr, _ := apperror.AsAppError(err)
		outcome = appErr.Code
		span.RecordError(err)
		span.SetStatus(codes.Error, appErr.Code)
		logger.Warn(ctx, "unit operation failed",
			"operation", name, "unit_uuid", unitUUID, "code", appErr.Code, "stage", appErr.Stage, "error", err)
	case res != nil && res.DryRun:
		outcome = "dry_run"
		logger.Info(ctx, "unit operation dry run", "operation", name, "unit_uuid", unitUUID)
	default:
		logger.Info(ctx, "unit operation verified", "operation", name, "unit_uuid", unitUUID)
	}
	if s.metrics != nil {
		s.metrics.ObserveOperation(name, outcome, time.Since(start))
	}
	return res, err
}

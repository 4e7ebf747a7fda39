// Package verify polls the registry until it reflects a submitted change.
package verify

import (
	"context"
	"time"

	"sdmox/internal/core/apperror"
	"sdmox/internal/core/clock"
	"sdmox/internal/domain/orgunit"
	"sdmox/pkg/logger"
)

// Config bounds the polling loop.
type Config struct {
	Attempts int
	Wait     time.Duration
}

// Result is the outcome of verification.
type Result struct {
	Department *orgunit.Department `json:"department"`
	Mismatches []FieldMismatch     `json:"mismatches,omitempty"`
	Attempts   int                 `json:"attempts"`
}

// Converged reports whether the registry matched on the last attempt.
func (r *Result) Converged() bool {
	return r != nil && r.Department != nil && len(r.Mismatches) == 0
}

// Verifier compares registry state against an expected payload.
type Verifier struct {
	registry orgunit.RegistryReader
	clock    clock.Clock
	cfg      Config
}

// NewVerifier creates a verifier. Attempts below one are raised to one.
func NewVerifier(registry orgunit.RegistryReader, c clock.Clock, cfg Config) *Verifier {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if c == nil {
		c = clock.Real()
	}
	return &Verifier{registry: registry, clock: c, cfg: cfg}
}

// Verify polls up to the configured number of attempts, waiting before each.
// It stops at the first attempt without mismatches. When the unit never
// appears it fails with NOT_FOUND; when it appears but never matches, the
// last attempt's mismatches are returned without error.
func (v *Verifier) Verify(ctx context.Context, op orgunit.Operation, expected orgunit.ChangePayload, w orgunit.EffectiveWindow) (*Result, error) {
	log := logger.FromContext(ctx).WithComponent("verifier").With("unit_uuid", expected.UnitUUID, "operation", op)

	var last *Result
	for attempt := 1; attempt <= v.cfg.Attempts; attempt++ {
		if err := clock.Wait(ctx, v.clock, v.cfg.Wait); err != nil {
			return nil, err
		}
		res, err := v.Check(ctx, op, expected, w)
		if err != nil {
			return nil, err
		}
		res.Attempts = attempt
		if res.Department == nil {
			log.Debugw("department not visible yet", "attempt", attempt)
			continue
		}
		last = res
		if len(res.Mismatches) == 0 {
			log.Infow("registry converged", "attempt", attempt)
			return res, nil
		}
		log.Debugw("registry not converged", "attempt", attempt, "mismatches", res.Mismatches)
	}

	if last == nil {
		return nil, apperror.NewNotFound("department", expected.UnitUUID).
			WithDetail("attempts", v.cfg.Attempts).AtStage(apperror.StagePostSubmission)
	}
	last.Attempts = v.cfg.Attempts
	log.Warnw("registry did not converge", "mismatches", last.Mismatches)
	return last, nil
}

// Check performs one comparison without waiting. A missing department is
// reported as a Result with a nil Department.
func (v *Verifier) Check(ctx context.Context, op orgunit.Operation, expected orgunit.ChangePayload, w orgunit.EffectiveWindow) (*Result, error) {
	dep, err := v.lookup(ctx, expected, w)
	if err != nil {
		return nil, err
	}
	if dep == nil {
		return &Result{}, nil
	}

	mismatches := compareDepartment(op, dep, expected, w)
	if expected.Parent != nil {
		parent, err := v.registry.GetDepartmentParent(ctx, expected.UnitUUID, w.From)
		if err != nil {
			return nil, err
		}
		observed := ""
		if parent != nil {
			observed = parent.UUID
		}
		if observed != expected.Parent.UUID {
			mismatches = append(mismatches, FieldMismatch{Field: FieldParent, Expected: expected.Parent.UUID, Observed: observed})
		}
	}
	return &Result{Department: dep, Mismatches: mismatches}, nil
}

// lookup reads by uuid, falling back to code and level when the uuid lookup is ambiguous.
func (v *Verifier) lookup(ctx context.Context, expected orgunit.ChangePayload, w orgunit.EffectiveWindow) (*orgunit.Department, error) {
	q := orgunit.DepartmentQuery{Level: expected.Level, From: w.From, To: w.From}
	if expected.UnitUUID != "" {
		q.Identifier, q.ByUUID = expected.UnitUUID, true
	} else {
		q.Identifier = expected.Code
	}

	dep, err := v.registry.GetDepartment(ctx, q)
	if apperror.HasCode(err, apperror.CodeNonUnique) && q.ByUUID && expected.Code != "" && expected.Level != "" {
		return v.registry.GetDepartment(ctx, orgunit.DepartmentQuery{
			Identifier: expected.Code,
			Level:      expected.Level,
			From:       w.From,
			To:         w.From,
		})
	}
	return dep, err
}

// Package payload turns directory data into registry change payloads.
package payload

import (
	"context"

	"sdmox/internal/core/apperror"
	"sdmox/internal/domain/address"
	"sdmox/internal/domain/level"
	"sdmox/internal/domain/orgunit"
)

// Config names the keyed address records that feed the integration values.
type Config struct {
	PurposeKey string
	SchoolKey  string
}

// DefaultConfig returns the source keys used by a stock directory installation.
func DefaultConfig() Config {
	return Config{PurposeKey: "Formålskode", SchoolKey: "Skolekode"}
}

// Grouper groups address records; satisfied by *address.Resolver.
type Grouper interface {
	Group(ctx context.Context, records []orgunit.AddressRecord) (address.Grouped, error)
}

// Builder assembles change payloads.
type Builder struct {
	levels  *level.Hierarchy
	grouper Grouper
	cfg     Config
}

// NewBuilder creates a payload builder.
func NewBuilder(levels *level.Hierarchy, grouper Grouper, cfg Config) *Builder {
	return &Builder{levels: levels, grouper: grouper, cfg: cfg}
}

// ForCreateOrMove describes unit placed under parent. Both levels must be
// known and the unit must rank strictly below the parent.
func (b *Builder) ForCreateOrMove(unitUUID string, unit, parent *orgunit.Unit) (orgunit.ChangePayload, error) {
	if unit == nil || parent == nil {
		return orgunit.ChangePayload{}, apperror.NewValidation("unit and parent are required")
	}
	unitLevel, err := b.levels.Resolve(unit.Level.UUID)
	if err != nil {
		return orgunit.ChangePayload{}, apperror.NewUnknownLevel(unit.Level.UUID).WithDetail("role", "unit")
	}
	parentLevel, err := b.levels.Resolve(parent.Level.UUID)
	if err != nil {
		return orgunit.ChangePayload{}, apperror.NewUnknownLevel(parent.Level.UUID).WithDetail("role", "parent")
	}
	if err := b.levels.CheckBelow(unitLevel, parentLevel); err != nil {
		return orgunit.ChangePayload{}, err
	}

	return orgunit.ChangePayload{
		UnitUUID: unitUUID,
		Name:     unit.Name,
		Code:     unit.UserKey,
		Level:    unitLevel,
		Parent: &orgunit.ParentRef{
			UUID:  parent.UUID,
			Code:  parent.UserKey,
			Level: parentLevel,
		},
	}, nil
}

// ForEdit describes unit with the given addresses. The first record of each
// scope or source key wins.
func (b *Builder) ForEdit(ctx context.Context, unitUUID string, unit *orgunit.Unit, records []orgunit.AddressRecord) (orgunit.ChangePayload, error) {
	if unit == nil {
		return orgunit.ChangePayload{}, apperror.NewValidation("unit is required")
	}
	grouped, err := b.grouper.Group(ctx, records)
	if err != nil {
		return orgunit.ChangePayload{}, err
	}
	if grouped.Has(orgunit.ScopePNumber) && !grouped.Has(orgunit.ScopeDAR) {
		return orgunit.ChangePayload{}, apperror.NewOrdering("a postal address must exist before a production unit number")
	}

	p := orgunit.ChangePayload{
		UnitUUID: unitUUID,
		Name:     unit.Name,
		Code:     unit.UserKey,
	}
	if e, ok := grouped.FirstScoped(orgunit.ScopePhone); ok {
		p.Phone = ptr(e.Value)
	}
	if e, ok := grouped.FirstScoped(orgunit.ScopePNumber); ok {
		p.PNumber = ptr(e.Value)
	}
	if e, ok := grouped.FirstScoped(orgunit.ScopeDAR); ok {
		p.Postal = e.Postal
	}
	if v, ok := grouped.FirstKeyed(b.cfg.PurposeKey); ok {
		p.Attributes.PurposeCode = ptr(v)
	}
	if v, ok := grouped.FirstKeyed(b.cfg.SchoolKey); ok {
		p.Attributes.SchoolCode = ptr(v)
	}
	return p, nil
}

func ptr(s string) *string { return &s }

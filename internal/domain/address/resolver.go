// Package address groups a unit's directory addresses by scope and source
// key, resolving structured (DAR) addresses to labels on the way.
package address

import (
	"context"

	"sdmox/internal/core/apperror"
	"sdmox/internal/domain/orgunit"
)

// Resolver groups address records.
type Resolver struct {
	lookup orgunit.AddressLookup
}

// NewResolver creates a resolver backed by lookup.
func NewResolver(lookup orgunit.AddressLookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Group resolves every DAR record and returns the grouped view. Any
// resolution failure aborts the whole grouping.
func (r *Resolver) Group(ctx context.Context, records []orgunit.AddressRecord) (Grouped, error) {
	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		e := Entry{Scope: rec.Scope, SourceKey: rec.SourceKey, Raw: rec.Value, Value: rec.Value}
		if rec.Scope == orgunit.ScopeDAR {
			label, err := r.lookup.Lookup(ctx, rec.Value)
			if apperror.IsNotFound(err) {
				return Grouped{}, apperror.NewAddressResolution(rec.Value, "not found at any lookup endpoint").WithCause(err)
			}
			if err != nil {
				return Grouped{}, err
			}
			postal, err := SplitLabel(label)
			if err != nil {
				return Grouped{}, err
			}
			e.Value = label
			e.Postal = &postal
		}
		entries = append(entries, e)
	}
	return Grouped{entries: entries}, nil
}

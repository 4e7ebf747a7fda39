package address

import "sdmox/internal/domain/orgunit"

// Entry is one address record after resolution. For DAR records Value is
// the resolved label and Postal its decomposition.
type Entry struct {
	Scope     orgunit.Scope
	SourceKey string
	Raw       string
	Value     string
	Postal    *orgunit.PostalAddress
}

// Grouped is the resolved address set of a unit, in directory order. The
// first entry in a group has priority.
type Grouped struct {
	entries []Entry
}

// NewGrouped wraps already resolved entries.
func NewGrouped(entries []Entry) Grouped {
	return Grouped{entries: append([]Entry(nil), entries...)}
}

// Entries returns all entries in order.
func (g Grouped) Entries() []Entry {
	return append([]Entry(nil), g.entries...)
}

// Scoped returns the values of one scope in order.
func (g Grouped) Scoped(scope orgunit.Scope) []string {
	var out []string
	for _, e := range g.entries {
		if e.Scope == scope {
			out = append(out, e.Value)
		}
	}
	return out
}

// Keyed returns the raw values recorded under one source key in order.
func (g Grouped) Keyed(key string) []string {
	var out []string
	for _, e := range g.entries {
		if e.SourceKey == key {
			out = append(out, e.Raw)
		}
	}
	return out
}

// Has reports whether any entry has the scope.
func (g Grouped) Has(scope orgunit.Scope) bool {
	_, ok := g.FirstScoped(scope)
	return ok
}

// FirstScoped returns the priority entry of a scope.
func (g Grouped) FirstScoped(scope orgunit.Scope) (Entry, bool) {
	for _, e := range g.entries {
		if e.Scope == scope {
			return e, true
		}
	}
	return Entry{}, false
}

// FirstKeyed returns the priority raw value of a source key.
func (g Grouped) FirstKeyed(key string) (string, bool) {
	for _, e := range g.entries {
		if e.SourceKey == key {
			return e.Raw, true
		}
	}
	return "", false
}

// ByScope returns scope to ordered values.
func (g Grouped) ByScope() map[orgunit.Scope][]string {
	out := make(map[orgunit.Scope][]string)
	for _, e := range g.entries {
		out[e.Scope] = append(out[e.Scope], e.Value)
	}
	return out
}

// ByKey returns source key to ordered raw values.
func (g Grouped) ByKey() map[string][]string {
	out := make(map[string][]string)
	for _, e := range g.entries {
		out[e.SourceKey] = append(out[e.SourceKey], e.Raw)
	}
	return out
}

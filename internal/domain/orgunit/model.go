// Package orgunit holds the shared vocabulary of the synchronisation engine:
// directory units and addresses, the registry's view of a department, the
// change payload and the ports to the external systems.
package orgunit

import "strings"

// Scope categorises an address record.
type Scope string

const (
	ScopeDAR     Scope = "DAR"
	ScopePhone   Scope = "PHONE"
	ScopePNumber Scope = "PNUMBER"
	ScopeText    Scope = "TEXT"
)

// ClassRef references a directory class such as a unit level.
type ClassRef struct {
	UUID    string `json:"uuid"`
	UserKey string `json:"user_key,omitempty"`
	Name    string `json:"name,omitempty"`
}

// AddressRecord is a directory address as read at a point in time.
// SourceKey is the user key of the record's address type.
type AddressRecord struct {
	Scope     Scope  `json:"scope"`
	SourceKey string `json:"source_key"`
	Value     string `json:"value"`
}

// Unit is an organisational unit as the directory reports it.
type Unit struct {
	UUID    string          `json:"uuid"`
	Name    string          `json:"name"`
	UserKey string          `json:"user_key"`
	Level   ClassRef        `json:"org_unit_level"`
	Parent  *ClassRef       `json:"parent,omitempty"`
	Details []AddressRecord `json:"details,omitempty"`
}

// PostalAddress is a Danish address split the way the registry stores it.
type PostalAddress struct {
	Street     string `json:"street"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
}

// String renders the address as a single label.
func (a PostalAddress) String() string {
	return strings.TrimSpace(a.Street + ", " + a.PostalCode + " " + a.City)
}

// Department is the registry's view of a unit.
type Department struct {
	UUID             string         `json:"uuid"`
	Code             string         `json:"code"`
	Level            string         `json:"level"`
	Name             string         `json:"name"`
	ActivationDate   string         `json:"activation_date"`
	DeactivationDate string         `json:"deactivation_date,omitempty"`
	Phones           []string       `json:"phones,omitempty"`
	ProductionUnit   string         `json:"production_unit,omitempty"`
	Postal           *PostalAddress `json:"postal_address,omitempty"`
}

// FirstPhone returns the first registered phone number or "".
func (d *Department) FirstPhone() string {
	if d == nil || len(d.Phones) == 0 {
		return ""
	}
	return d.Phones[0]
}

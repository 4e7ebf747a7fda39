package verify

import (
	"strings"

	"sdmox/internal/domain/orgunit"
)

// Field names reported in mismatches.
const (
	FieldActivationDate = "activation_date"
	FieldName           = "name"
	FieldCode           = "code"
	FieldUUID           = "uuid"
	FieldLevel          = "level"
	FieldPhone          = "phone"
	FieldPNumber        = "pnumber"
	FieldStreet         = "street"
	FieldPostalCode     = "postal_code"
	FieldCity           = "city"
	FieldParent         = "parent"
)

// FieldMismatch is one field whose registry value differs from the request.
type FieldMismatch struct {
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Observed string `json:"observed"`
}

type comparator func(observed, expected string) bool

func equal(observed, expected string) bool { return observed == expected }

// prefixOf accepts a registry value that is a truncation of the requested one.
func prefixOf(observed, expected string) bool { return strings.HasPrefix(expected, observed) }

type collector struct {
	mismatches []FieldMismatch
}

// check records a mismatch unless expected is absent or ok(observed, expected).
func (c *collector) check(field, observed string, expected *string, ok comparator) {
	if expected == nil || ok(observed, *expected) {
		return
	}
	c.mismatches = append(c.mismatches, FieldMismatch{Field: field, Expected: *expected, Observed: observed})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// compareDepartment collects every field mismatch between dep and expected.
// Parent is compared separately since it needs another registry call.
func compareDepartment(op orgunit.Operation, dep *orgunit.Department, expected orgunit.ChangePayload, w orgunit.EffectiveWindow) []FieldMismatch {
	c := &collector{}
	if op != orgunit.OperationMove {
		c.check(FieldActivationDate, dep.ActivationDate, optional(w.FromDate()), equal)
		c.check(FieldName, dep.Name, optional(expected.Name), prefixOf)
	}
	c.check(FieldCode, dep.Code, optional(expected.Code), equal)
	c.check(FieldUUID, dep.UUID, optional(expected.UnitUUID), equal)
	c.check(FieldLevel, dep.Level, optional(expected.Level), equal)
	c.check(FieldPhone, dep.FirstPhone(), expected.Phone, equal)
	c.check(FieldPNumber, dep.ProductionUnit, expected.PNumber, equal)
	if expected.Postal != nil {
		var observed orgunit.PostalAddress
		if dep.Postal != nil {
			observed = *dep.Postal
		}
		c.check(FieldStreet, observed.Street, &expected.Postal.Street, equal)
		c.check(FieldPostalCode, observed.PostalCode, &expected.Postal.PostalCode, equal)
		c.check(FieldCity, observed.City, &expected.Postal.City, equal)
	}
	return c.mismatches
}

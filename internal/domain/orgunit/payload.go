package orgunit

// Operation names the kind of change being submitted.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationMove   Operation = "move"
	OperationEdit   Operation = "edit"
)

// ParentRef identifies the parent a unit is placed under.
type ParentRef struct {
	UUID  string `json:"uuid"`
	Code  string `json:"code"`
	Level string `json:"level"`
}

// IntegrationValues are the registry's free-text codes for a unit.
type IntegrationValues struct {
	PurposeCode *string `json:"purpose_code,omitempty"`
	SchoolCode  *string `json:"school_code,omitempty"`
}

// ChangePayload is the registry-side description of a change. Nil or empty
// fields are left untouched by the registry and skipped during verification.
type ChangePayload struct {
	UnitUUID   string            `json:"unit_uuid"`
	Name       string            `json:"name,omitempty"`
	Code       string            `json:"code,omitempty"`
	Level      string            `json:"level,omitempty"`
	Parent     *ParentRef        `json:"parent,omitempty"`
	Phone      *string           `json:"phone,omitempty"`
	PNumber    *string           `json:"pnumber,omitempty"`
	Postal     *PostalAddress    `json:"postal_address,omitempty"`
	Attributes IntegrationValues `json:"attributes"`
}

// Merge overlays the non-empty fields of other onto p.
func (p ChangePayload) Merge(other ChangePayload) ChangePayload {
	if other.UnitUUID != "" {
		p.UnitUUID = other.UnitUUID
	}
	if other.Name != "" {
		p.Name = other.Name
	}
	if other.Code != "" {
		p.Code = other.Code
	}
	if other.Level != "" {
		p.Level = other.Level
	}
	if other.Parent != nil {
		p.Parent = other.Parent
	}
	if other.Phone != nil {
		p.Phone = other.Phone
	}
	if other.PNumber != nil {
		p.PNumber = other.PNumber
	}
	if other.Postal != nil {
		p.Postal = other.Postal
	}
	if other.Attributes.PurposeCode != nil {
		p.Attributes.PurposeCode = other.Attributes.PurposeCode
	}
	if other.Attributes.SchoolCode != nil {
		p.Attributes.SchoolCode = other.Attributes.SchoolCode
	}
	return p
}

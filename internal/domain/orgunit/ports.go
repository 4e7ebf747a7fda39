package orgunit

import (
	"context"
	"time"
)

// DirectoryReader reads units from the organisational directory.
// A unit that does not exist at the given date yields a NOT_FOUND error.
type DirectoryReader interface {
	ReadUnit(ctx context.Context, unitUUID string, at time.Time) (*Unit, error)
	ReadUnitAddresses(ctx context.Context, unitUUID string, at time.Time) ([]AddressRecord, error)
}

// ClassReader lists the classes of a directory facet as user key to class uuid.
type ClassReader interface {
	ReadFacetClasses(ctx context.Context, facet string) (map[string]string, error)
}

// AddressLookup turns a structured address id into a single-line label.
type AddressLookup interface {
	Lookup(ctx context.Context, addressID string) (string, error)
}

// DepartmentQuery selects a registry department for a date range.
type DepartmentQuery struct {
	// Identifier is either the department uuid or its code.
	Identifier string
	ByUUID     bool
	Level      string
	From       time.Time
	To         time.Time
}

// DepartmentParent is the registry's parent link for a department.
type DepartmentParent struct {
	UUID string `json:"uuid"`
}

// RegistryReader reads back registry state.
//
// GetDepartment returns (nil, nil) when no department matches and a
// NON_UNIQUE error when several do. GetDepartmentParent returns (nil, nil)
// for a department without a parent.
type RegistryReader interface {
	GetDepartment(ctx context.Context, q DepartmentQuery) (*Department, error)
	GetDepartmentParent(ctx context.Context, unitUUID string, at time.Time) (*DepartmentParent, error)
}

// Publisher delivers one rendered change message.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// Codec renders change messages. A payload missing what the operation needs
// is a programming error and panics.
type Codec interface {
	RenderCreate(p ChangePayload, w EffectiveWindow) []byte
	RenderMove(p ChangePayload, w EffectiveWindow) []byte
	RenderEdit(p ChangePayload, w EffectiveWindow) []byte
}

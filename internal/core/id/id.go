// Package id generates identifiers for journal entries.
// Entries use UUIDv7 so they sort by creation time.
package id

import (
	"github.com/google/uuid"

	"sdmox/internal/core/apperror"
)

// ID identifies a journal entry.
type ID = uuid.UUID

// New generates a UUIDv7, falling back to v4.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts s to ID, reporting malformed input as a validation error.
func Parse(s string) (ID, error) {
	v, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperror.NewValidation("malformed entry id").WithDetail("id", s).WithCause(err)
	}
	return v, nil
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}

package payload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdmox/internal/core/apperror"
	"sdmox/internal/domain/address"
	"sdmox/internal/domain/level"
	"sdmox/internal/domain/orgunit"
)

type mapLookup map[string]string

func (m mapLookup) Lookup(_ context.Context, id string) (string, error) {
	if label, ok := m[id]; ok {
		return label, nil
	}
	return "", apperror.NewNotFound("address", id)
}

func newBuilder(t *testing.T) *Builder {
	t.Helper()
	levels, err := level.New(
		[]string{"NY6-niveau", "NY5-niveau", "Afdelings-niveau"},
		map[string]string{"NY6-niveau": "uuid-6", "NY5-niveau": "uuid-5", "Afdelings-niveau": "uuid-b"},
	)
	require.NoError(t, err)
	resolver := address.NewResolver(mapLookup{
		"dar-1": "Banegårdspladsen 1, 2750 Ballerup",
		"dar-2": "Toftebjerghaven 4, 2750 Ballerup",
	})
	return NewBuilder(levels, resolver, DefaultConfig())
}

var (
	parentUnit = &orgunit.Unit{
		UUID:    "12345-11-11-11-12345",
		Name:    "A-sdm1",
		UserKey: "user-key-11111",
		Level:   orgunit.ClassRef{UUID: "uuid-5"},
	}
	childUnit = &orgunit.Unit{
		UUID:    "12345-22-22-22-12345",
		Name:    "A-sdm2",
		UserKey: "user-key-22222",
		Level:   orgunit.ClassRef{UUID: "uuid-b"},
	}
)

func TestForCreateOrMove(t *testing.T) {
	b := newBuilder(t)

	p, err := b.ForCreateOrMove(childUnit.UUID, childUnit, parentUnit)
	require.NoError(t, err)

	assert.Equal(t, orgunit.ChangePayload{
		UnitUUID: "12345-22-22-22-12345",
		Name:     "A-sdm2",
		Code:     "user-key-22222",
		Level:    "Afdelings-niveau",
		Parent: &orgunit.ParentRef{
			UUID:  "12345-11-11-11-12345",
			Code:  "user-key-11111",
			Level: "NY5-niveau",
		},
	}, p)
}

func TestForCreateOrMove_StructuralViolation(t *testing.T) {
	b := newBuilder(t)

	_, err := b.ForCreateOrMove(parentUnit.UUID, parentUnit, childUnit)
	assert.True(t, apperror.HasCode(err, apperror.CodeStructural))

	_, err = b.ForCreateOrMove(parentUnit.UUID, parentUnit, parentUnit)
	assert.True(t, apperror.HasCode(err, apperror.CodeStructural))
}

func TestForCreateOrMove_UnknownLevel(t *testing.T) {
	b := newBuilder(t)
	stray := &orgunit.Unit{UUID: "x", UserKey: "XX", Level: orgunit.ClassRef{UUID: "uuid-unknown"}}

	_, err := b.ForCreateOrMove("x", stray, parentUnit)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnknownLevel, appErr.Code)
	assert.Equal(t, "unit", appErr.Details["role"])

	_, err = b.ForCreateOrMove("x", childUnit, stray)
	appErr, ok = apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "parent", appErr.Details["role"])
}

func TestForEdit_FirstEntryWins(t *testing.T) {
	b := newBuilder(t)
	records := []orgunit.AddressRecord{
		{Scope: orgunit.ScopeDAR, SourceKey: "AddressMailUnit", Value: "dar-2"},
		{Scope: orgunit.ScopeDAR, SourceKey: "AddressMailUnit", Value: "dar-1"},
		{Scope: orgunit.ScopePhone, SourceKey: "PhoneUnit", Value: "12345678"},
		{Scope: orgunit.ScopePhone, SourceKey: "PhoneUnit", Value: "87654321"},
		{Scope: orgunit.ScopePNumber, SourceKey: "Pnummer", Value: "0123456789"},
		{Scope: orgunit.ScopeText, SourceKey: "Formålskode", Value: "F1"},
		{Scope: orgunit.ScopeText, SourceKey: "Skolekode", Value: "S1"},
	}

	p, err := b.ForEdit(context.Background(), childUnit.UUID, childUnit, records)
	require.NoError(t, err)

	assert.Equal(t, "A-sdm2", p.Name)
	assert.Equal(t, "user-key-22222", p.Code)
	assert.Empty(t, p.Level)
	assert.Nil(t, p.Parent)
	require.NotNil(t, p.Phone)
	assert.Equal(t, "12345678", *p.Phone)
	require.NotNil(t, p.PNumber)
	assert.Equal(t, "0123456789", *p.PNumber)
	assert.Equal(t, &orgunit.PostalAddress{Street: "Toftebjerghaven 4", PostalCode: "2750", City: "Ballerup"}, p.Postal)
	require.NotNil(t, p.Attributes.PurposeCode)
	assert.Equal(t, "F1", *p.Attributes.PurposeCode)
	require.NotNil(t, p.Attributes.SchoolCode)
	assert.Equal(t, "S1", *p.Attributes.SchoolCode)
}

func TestForEdit_PNumberWithoutPostalAddress(t *testing.T) {
	b := newBuilder(t)
	records := []orgunit.AddressRecord{
		{Scope: orgunit.ScopePNumber, SourceKey: "Pnummer", Value: "0123456789"},
		{Scope: orgunit.ScopePhone, SourceKey: "PhoneUnit", Value: "12345678"},
	}

	_, err := b.ForEdit(context.Background(), childUnit.UUID, childUnit, records)
	assert.True(t, apperror.HasCode(err, apperror.CodeOrdering))
}

func TestForEdit_NoAddresses(t *testing.T) {
	b := newBuilder(t)

	p, err := b.ForEdit(context.Background(), childUnit.UUID, childUnit, nil)
	require.NoError(t, err)
	assert.Nil(t, p.Phone)
	assert.Nil(t, p.PNumber)
	assert.Nil(t, p.Postal)
	assert.Nil(t, p.Attributes.PurposeCode)
}

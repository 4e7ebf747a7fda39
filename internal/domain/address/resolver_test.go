package address

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdmox/internal/core/apperror"
	"sdmox/internal/domain/orgunit"
)

type mapLookup map[string]string

func (m mapLookup) Lookup(_ context.Context, id string) (string, error) {
	if label, ok := m[id]; ok {
		return label, nil
	}
	return "", apperror.NewNotFound("address", id)
}

var lookup = mapLookup{
	"0a3f50a0-23c9-32b8-e044-0003ba298018": "Banegårdspladsen 1, 2750 Ballerup",
	"44c532e1-f617-4174-b144-d37ce9fda2bd": "Toftebjerghaven 4, 2750 Ballerup",
}

func sampleRecords() []orgunit.AddressRecord {
	return []orgunit.AddressRecord{
		{Scope: orgunit.ScopeDAR, SourceKey: "AddressMailUnit", Value: "0a3f50a0-23c9-32b8-e044-0003ba298018"},
		{Scope: orgunit.ScopeDAR, SourceKey: "AddressMailUnit", Value: "44c532e1-f617-4174-b144-d37ce9fda2bd"},
		{Scope: orgunit.ScopePNumber, SourceKey: "Pnummer", Value: "0123456789"},
		{Scope: orgunit.ScopePhone, SourceKey: "PhoneUnit", Value: "12345678"},
		{Scope: orgunit.ScopeText, SourceKey: "Formålskode", Value: "12"},
	}
}

func TestGroup_ScopedAndKeyed(t *testing.T) {
	g, err := NewResolver(lookup).Group(context.Background(), sampleRecords())
	require.NoError(t, err)

	assert.Equal(t, map[orgunit.Scope][]string{
		orgunit.ScopeDAR:     {"Banegårdspladsen 1, 2750 Ballerup", "Toftebjerghaven 4, 2750 Ballerup"},
		orgunit.ScopePNumber: {"0123456789"},
		orgunit.ScopePhone:   {"12345678"},
		orgunit.ScopeText:    {"12"},
	}, g.ByScope())

	assert.Equal(t, map[string][]string{
		"AddressMailUnit": {"0a3f50a0-23c9-32b8-e044-0003ba298018", "44c532e1-f617-4174-b144-d37ce9fda2bd"},
		"Pnummer":         {"0123456789"},
		"PhoneUnit":       {"12345678"},
		"Formålskode":     {"12"},
	}, g.ByKey())

	first, ok := g.FirstScoped(orgunit.ScopeDAR)
	require.True(t, ok)
	assert.Equal(t, &orgunit.PostalAddress{Street: "Banegårdspladsen 1", PostalCode: "2750", City: "Ballerup"}, first.Postal)

	code, ok := g.FirstKeyed("Formålskode")
	assert.True(t, ok)
	assert.Equal(t, "12", code)
	assert.False(t, g.Has("EMAIL"))
}

func TestGroup_ResolutionFailureAborts(t *testing.T) {
	records := []orgunit.AddressRecord{{Scope: orgunit.ScopeDAR, SourceKey: "AddressMailUnit", Value: "missing"}}

	_, err := NewResolver(lookup).Group(context.Background(), records)
	assert.True(t, apperror.HasCode(err, apperror.CodeAddressResolution))
	assert.False(t, apperror.IsNotFound(err))
}

func TestSplitLabel(t *testing.T) {
	cases := []struct {
		label string
		want  orgunit.PostalAddress
	}{
		{"Toftebjerghaven 4, 2750 Ballerup", orgunit.PostalAddress{Street: "Toftebjerghaven 4", PostalCode: "2750", City: "Ballerup"}},
		{"Store Kongensgade 1, 1. th, 1264 København", orgunit.PostalAddress{Street: "Store Kongensgade 1, 1. th", PostalCode: "1264", City: "København"}},
		{"  Vej 2 8000 Aarhus ", orgunit.PostalAddress{Street: "Vej 2", PostalCode: "8000", City: "Aarhus"}},
	}
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			got, err := SplitLabel(tc.label)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := SplitLabel("Ballerup")
	assert.True(t, apperror.HasCode(err, apperror.CodeAddressResolution))
	_, err = SplitLabel("2750 Ballerup")
	assert.True(t, apperror.HasCode(err, apperror.CodeAddressResolution))
}

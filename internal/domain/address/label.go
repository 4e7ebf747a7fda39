package address

import (
	"strings"

	"sdmox/internal/core/apperror"
	"sdmox/internal/domain/orgunit"
)

// SplitLabel decomposes "Street 1, 2750 City" into street, postal code and
// city. The last two whitespace-separated tokens are postal code and city;
// a trailing comma is dropped from the street.
func SplitLabel(label string) (orgunit.PostalAddress, error) {
	rest := strings.TrimSpace(label)
	i := strings.LastIndex(rest, " ")
	if i < 0 {
		return orgunit.PostalAddress{}, malformed(label)
	}
	city := strings.TrimSpace(rest[i+1:])
	rest = rest[:i]

	j := strings.LastIndex(rest, " ")
	if j < 0 {
		return orgunit.PostalAddress{}, malformed(label)
	}
	postal := strings.TrimSpace(rest[j+1:])
	street := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest[:j]), ","))

	if street == "" || postal == "" || city == "" {
		return orgunit.PostalAddress{}, malformed(label)
	}
	return orgunit.PostalAddress{Street: street, PostalCode: postal, City: city}, nil
}

func malformed(label string) error {
	return apperror.NewAddressResolution(label, "label does not split into street, postal code and city")
}

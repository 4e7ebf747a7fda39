package registry

import (
	"time"

	"sdmox/internal/domain/orgunit"
)

type getDepartmentResponse struct {
	Departments []departmentXML `xml:"Department"`
}

type departmentXML struct {
	ActivationDate   string `xml:"ActivationDate"`
	DeactivationDate string `xml:"DeactivationDate"`
	Identifier       string `xml:"DepartmentIdentifier"`
	UUID             string `xml:"DepartmentUUIDIdentifier"`
	Level            string `xml:"DepartmentLevelIdentifier"`
	Name             string `xml:"DepartmentName"`
	ProductionUnit   string `xml:"ProductionUnitIdentifier"`
	Postal           *struct {
		Street     string `xml:"StandardAddressIdentifier"`
		PostalCode string `xml:"PostalCode"`
		District   string `xml:"DistrictName"`
	} `xml:"PostalAddress"`
	Phones []string `xml:"ContactInformation>TelephoneNumberIdentifier"`
}

type getDepartmentParentResponse struct {
	Parent *struct {
		UUID string `xml:"DepartmentUUIDIdentifier"`
	} `xml:"DepartmentParent"`
}

func (d departmentXML) toDomain() *orgunit.Department {
	dep := &orgunit.Department{
		UUID:             d.UUID,
		Code:             d.Identifier,
		Level:            d.Level,
		Name:             d.Name,
		ActivationDate:   normalizeDate(d.ActivationDate),
		DeactivationDate: normalizeDate(d.DeactivationDate),
		Phones:           d.Phones,
		ProductionUnit:   d.ProductionUnit,
	}
	if d.Postal != nil {
		dep.Postal = &orgunit.PostalAddress{
			Street:     d.Postal.Street,
			PostalCode: d.Postal.PostalCode,
			City:       d.Postal.District,
		}
	}
	return dep
}

// normalizeDate accepts YYYY-MM-DD or DD.MM.YYYY and returns YYYY-MM-DD.
func normalizeDate(s string) string {
	if t, err := time.Parse("02.01.2006", s); err == nil {
		return t.Format("2006-01-02")
	}
	return s
}

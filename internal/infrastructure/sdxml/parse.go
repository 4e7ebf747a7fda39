package sdxml

import (
	"encoding/xml"
	"fmt"

	"sdmox/internal/domain/orgunit"
)

// Document is the flattened content of a change message.
type Document struct {
	Lifecycle    string                 `json:"lifecycle"`
	UnitUUID     string                 `json:"unit_uuid"`
	From         string                 `json:"from"`
	To           string                 `json:"to"`
	Name         string                 `json:"name,omitempty"`
	Code         string                 `json:"code,omitempty"`
	Level        string                 `json:"level,omitempty"`
	ParentUUID   string                 `json:"parent_uuid,omitempty"`
	Phone        string                 `json:"phone,omitempty"`
	PNumber      string                 `json:"pnumber,omitempty"`
	Postal       *orgunit.PostalAddress `json:"postal_address,omitempty"`
	Integrations map[string]string      `json:"integration_values,omitempty"`
}

// Inbound structs match on local names so prefixes do not matter.

type parsedVirkning struct {
	From string `xml:"FraTidspunkt>TidsstempelDatoTid"`
	To   string `xml:"TilTidspunkt>TidsstempelDatoTid"`
}

type parsedMessage struct {
	XMLName  xml.Name `xml:"RegistreringBesked"`
	UnitUUID string   `xml:"ObjektID>UUIDIdentifikator"`
	Reg      struct {
		From       string `xml:"FraTidspunkt>TidsstempelDatoTid"`
		Lifecycle  string `xml:"LivscyklusKode"`
		Attributes struct {
			Property *struct {
				Virkning parsedVirkning `xml:"Virkning"`
				Name     string         `xml:"EnhedNavn"`
			} `xml:"Egenskab"`
			Extension struct {
				Unit *struct {
					Virkning parsedVirkning `xml:"Virkning"`
					Code     string         `xml:"EnhedKode"`
					Level    string         `xml:"NiveauIdentifikator"`
				} `xml:"Enhed"`
				Integrations []struct {
					Virkning parsedVirkning `xml:"Virkning"`
					Key      string         `xml:"IntegrationKode"`
					Value    string         `xml:"IntegrationVaerdi"`
				} `xml:"Integration"`
			} `xml:"LokalUdvidelse"`
		} `xml:"AttributListe"`
		Relations struct {
			Parent *struct {
				Virkning parsedVirkning `xml:"Virkning"`
				UUID     string         `xml:"ReferenceID>UUIDIdentifikator"`
			} `xml:"Overordnet"`
			Extension struct {
				Location *struct {
					Virkning   parsedVirkning `xml:"Virkning"`
					Street     string         `xml:"DanskAdresse>AdresseNavn"`
					PostalCode string         `xml:"DanskAdresse>PostKodeIdentifikator"`
					City       string         `xml:"DanskAdresse>ByNavn"`
				} `xml:"Lokation"`
				ProductionUnit *struct {
					Virkning   parsedVirkning `xml:"Virkning"`
					Identifier string         `xml:"ProduktionEnhedIdentifikator"`
				} `xml:"ProduktionEnhed"`
				Contact *struct {
					Virkning parsedVirkning `xml:"Virkning"`
					Phone    string         `xml:"TelefonNummerIdentifikator"`
				} `xml:"Kontakt"`
			} `xml:"LokalUdvidelse"`
		} `xml:"RelationListe"`
	} `xml:"Registrering"`
}

// Parse decodes a change message.
func Parse(data []byte) (*Document, error) {
	var m parsedMessage
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("sdxml: parse: %w", err)
	}

	reg := m.Reg
	doc := &Document{
		Lifecycle: reg.Lifecycle,
		UnitUUID:  m.UnitUUID,
		From:      reg.From,
	}
	setTo := func(v parsedVirkning) {
		if doc.To == "" {
			doc.To = v.To
		}
	}

	if p := reg.Attributes.Property; p != nil {
		doc.Name = p.Name
		setTo(p.Virkning)
	}
	if u := reg.Attributes.Extension.Unit; u != nil {
		doc.Code, doc.Level = u.Code, u.Level
		setTo(u.Virkning)
	}
	for _, in := range reg.Attributes.Extension.Integrations {
		if doc.Integrations == nil {
			doc.Integrations = make(map[string]string)
		}
		doc.Integrations[in.Key] = in.Value
		setTo(in.Virkning)
	}
	if p := reg.Relations.Parent; p != nil {
		doc.ParentUUID = p.UUID
		setTo(p.Virkning)
	}
	ext := reg.Relations.Extension
	if l := ext.Location; l != nil {
		doc.Postal = &orgunit.PostalAddress{Street: l.Street, PostalCode: l.PostalCode, City: l.City}
		setTo(l.Virkning)
	}
	if pu := ext.ProductionUnit; pu != nil {
		doc.PNumber = pu.Identifier
		setTo(pu.Virkning)
	}
	if c := ext.Contact; c != nil {
		doc.Phone = c.Phone
		setTo(c.Virkning)
	}
	return doc, nil
}

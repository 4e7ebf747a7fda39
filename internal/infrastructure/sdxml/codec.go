// Package sdxml renders change messages in the registry's XML dialect and
// parses them back for inspection.
package sdxml

import (
	"encoding/xml"
	"fmt"

	"sdmox/internal/domain/orgunit"
)

// Codec implements orgunit.Codec.
type Codec struct{}

// NewCodec creates a codec.
func NewCodec() Codec { return Codec{} }

var _ orgunit.Codec = Codec{}

func newMessage(unitUUID, lifecycle string, w orgunit.EffectiveWindow) *message {
	return &message{
		Xmlns:          nsEnhed,
		XmlnsSD:        nsSagdok,
		XmlnsSilkdata:  nsSilkdata,
		XmlnsXSI:       nsXSI,
		SchemaLocation: schemaLocation,
		ObjectID:       objectID{UUID: unitUUID, Type: identifierType},
		Registration: registration{
			From:      timestamp{Value: w.FromTimestamp()},
			Lifecycle: lifecycle,
		},
	}
}

func window(w orgunit.EffectiveWindow) virkning {
	return virkning{
		From: timestamp{Value: w.FromTimestamp()},
		To:   timestamp{Value: w.ToTimestamp()},
	}
}

func mustHave(cond bool, op, what string) {
	if !cond {
		panic(fmt.Sprintf("sdxml: %s payload without %s", op, what))
	}
}

// RenderCreate renders an import of a new unit under its parent.
func (Codec) RenderCreate(p orgunit.ChangePayload, w orgunit.EffectiveWindow) []byte {
	mustHave(p.UnitUUID != "", "create", "unit uuid")
	mustHave(p.Parent != nil && p.Parent.UUID != "", "create", "parent")
	mustHave(p.Name != "", "create", "name")

	m := newMessage(p.UnitUUID, LifecycleImported, w)
	v := window(w)
	m.Registration.Attributes = &attributeList{
		Property: &property{Virkning: v, Name: p.Name},
		Extension: &attributeExtension{
			Unit: &unitAttributes{Virkning: v, Code: p.Code, Level: p.Level},
		},
	}
	m.Registration.Relations = &relationList{
		Parent: &parentRelation{Virkning: v, UUID: p.Parent.UUID},
	}
	return marshal(m)
}

// RenderMove renders the re-parenting of an existing unit.
func (Codec) RenderMove(p orgunit.ChangePayload, w orgunit.EffectiveWindow) []byte {
	mustHave(p.UnitUUID != "", "move", "unit uuid")
	mustHave(p.Parent != nil && p.Parent.UUID != "", "move", "parent")

	m := newMessage(p.UnitUUID, LifecycleMoved, w)
	v := window(w)
	m.Registration.Attributes = &attributeList{
		Extension: &attributeExtension{
			Unit: &unitAttributes{Virkning: v, Code: p.Code, Level: p.Level},
		},
	}
	m.Registration.Relations = &relationList{
		Parent: &parentRelation{Virkning: v, UUID: p.Parent.UUID},
	}
	return marshal(m)
}

// RenderEdit renders name, integration values and contact relations.
// Absent payload fields produce no element.
func (Codec) RenderEdit(p orgunit.ChangePayload, w orgunit.EffectiveWindow) []byte {
	mustHave(p.UnitUUID != "", "edit", "unit uuid")

	m := newMessage(p.UnitUUID, LifecycleEdited, w)
	v := window(w)

	attrs := &attributeList{}
	if p.Name != "" {
		attrs.Property = &property{Virkning: v, Name: p.Name}
	}
	var integrations []integration
	if p.Attributes.PurposeCode != nil {
		integrations = append(integrations, integration{Virkning: v, Key: IntegrationPurposeCode, Value: *p.Attributes.PurposeCode})
	}
	if p.Attributes.SchoolCode != nil {
		integrations = append(integrations, integration{Virkning: v, Key: IntegrationSchoolCode, Value: *p.Attributes.SchoolCode})
	}
	if len(integrations) > 0 {
		attrs.Extension = &attributeExtension{Integrations: integrations}
	}
	m.Registration.Attributes = attrs

	ext := &relationExtension{}
	if p.Postal != nil {
		ext.Location = &location{Virkning: v, Street: p.Postal.Street, PostalCode: p.Postal.PostalCode, City: p.Postal.City}
	}
	if p.PNumber != nil {
		ext.ProductionUnit = &productionUnit{Virkning: v, Identifier: *p.PNumber}
	}
	if p.Phone != nil {
		ext.Contact = &contact{Virkning: v, Phone: *p.Phone}
	}
	m.Registration.Relations = &relationList{Extension: ext}
	return marshal(m)
}

func marshal(m *message) []byte {
	body, err := xml.Marshal(m)
	if err != nil {
		panic(fmt.Sprintf("sdxml: marshal: %v", err))
	}
	return append([]byte(xml.Header), body...)
}

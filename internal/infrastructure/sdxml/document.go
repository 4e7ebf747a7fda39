package sdxml

import "encoding/xml"

const (
	nsEnhed        = "urn:oio:sagdok:organisation:enhed:2.0.0"
	nsSagdok       = "urn:oio:sagdok:3.0.0"
	nsSilkdata     = "urn:oio:silkdata:1.0.0"
	nsXSI          = "http://www.w3.org/2001/XMLSchema-instance"
	schemaLocation = "urn:oio:sagdok:organisation:enhed:2.0.0 OrganisationEnhedRegistrering.xsd"

	identifierType = "OrganisationEnhed"
)

// Lifecycle codes carried in the registration block.
const (
	LifecycleImported = "Importeret"
	LifecycleMoved    = "Flyttet"
	LifecycleEdited   = "Rettet"
)

// Integration keys understood by the registry.
const (
	IntegrationPurposeCode = "Formaalskode"
	IntegrationSchoolCode  = "Skolekode"
)

// Outbound element names carry their namespace prefix literally; the
// registry matches on prefixed names.

type message struct {
	XMLName        xml.Name     `xml:"RegistreringBesked"`
	Xmlns          string       `xml:"xmlns,attr"`
	XmlnsSD        string       `xml:"xmlns:sd,attr"`
	XmlnsSilkdata  string       `xml:"xmlns:silkdata,attr"`
	XmlnsXSI       string       `xml:"xmlns:xsi,attr"`
	SchemaLocation string       `xml:"xsi:schemaLocation,attr"`
	ObjectID       objectID     `xml:"ObjektID"`
	Registration   registration `xml:"Registrering"`
}

type objectID struct {
	UUID string `xml:"sd:UUIDIdentifikator"`
	Type string `xml:"sd:IdentifikatorType"`
}

type timestamp struct {
	Value string `xml:"sd:TidsstempelDatoTid"`
}

type virkning struct {
	From timestamp `xml:"sd:FraTidspunkt"`
	To   timestamp `xml:"sd:TilTidspunkt"`
}

type registration struct {
	From       timestamp      `xml:"sd:FraTidspunkt"`
	Lifecycle  string         `xml:"sd:LivscyklusKode"`
	Attributes *attributeList `xml:"AttributListe,omitempty"`
	Relations  *relationList  `xml:"RelationListe,omitempty"`
}

type attributeList struct {
	Property  *property           `xml:"Egenskab,omitempty"`
	Extension *attributeExtension `xml:"sd:LokalUdvidelse,omitempty"`
}

type property struct {
	Virkning virkning `xml:"sd:Virkning"`
	Name     string   `xml:"sd:EnhedNavn"`
}

type attributeExtension struct {
	Unit         *unitAttributes `xml:"silkdata:Enhed,omitempty"`
	Integrations []integration   `xml:"silkdata:Integration"`
}

type unitAttributes struct {
	Virkning virkning `xml:"sd:Virkning"`
	Code     string   `xml:"silkdata:EnhedKode"`
	Level    string   `xml:"silkdata:NiveauIdentifikator"`
}

type integration struct {
	Virkning virkning `xml:"sd:Virkning"`
	Key      string   `xml:"silkdata:IntegrationKode"`
	Value    string   `xml:"silkdata:IntegrationVaerdi"`
}

type relationList struct {
	Parent    *parentRelation    `xml:"Overordnet,omitempty"`
	Extension *relationExtension `xml:"sd:LokalUdvidelse,omitempty"`
}

type parentRelation struct {
	Virkning virkning `xml:"sd:Virkning"`
	UUID     string   `xml:"sd:ReferenceID>sd:UUIDIdentifikator"`
}

type relationExtension struct {
	Location       *location       `xml:"silkdata:Lokation,omitempty"`
	ProductionUnit *productionUnit `xml:"silkdata:ProduktionEnhed,omitempty"`
	Contact        *contact        `xml:"silkdata:Kontakt,omitempty"`
}

type location struct {
	Virkning   virkning `xml:"sd:Virkning"`
	Street     string   `xml:"silkdata:DanskAdresse>silkdata:AdresseNavn"`
	PostalCode string   `xml:"silkdata:DanskAdresse>silkdata:PostKodeIdentifikator"`
	City       string   `xml:"silkdata:DanskAdresse>silkdata:ByNavn"`
}

type productionUnit struct {
	Virkning   virkning `xml:"sd:Virkning"`
	Identifier string   `xml:"silkdata:ProduktionEnhedIdentifikator"`
}

type contact struct {
	Virkning virkning `xml:"sd:Virkning"`
	Phone    string   `xml:"silkdata:TelefonNummerIdentifikator"`
}

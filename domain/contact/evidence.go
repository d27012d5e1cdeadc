package contact

// Evidence kinds, ordered by reliability.
const (
	EvidenceMailtoLink = "mailto_link"
	EvidenceSchemaOrg  = "schema_org"
	EvidenceVCard      = "vcard"
	EvidenceTableCell  = "table_cell"
	EvidenceMicrodata  = "microdata"
	EvidenceMetaTag    = "meta_tag"
	EvidenceDOMElement = "dom_element"
	EvidenceTextMatch  = "text_match"
	EvidenceNone       = "none"
)

// evidenceReliability maps an evidence kind to its 0-100 reliability.
var evidenceReliability = map[string]int{
	EvidenceMailtoLink: 95,
	EvidenceSchemaOrg:  90,
	EvidenceVCard:      90,
	EvidenceTableCell:  85,
	EvidenceMicrodata:  85,
	EvidenceMetaTag:    80,
	EvidenceDOMElement: 75,
	EvidenceTextMatch:  60,
	EvidenceNone:       30,
}

// Evidence records where a field value was extracted from. It drives
// confidence adjustment and hallucination rejection.
type Evidence struct {
	Kind     string `json:"kind"`
	Value    string `json:"value,omitempty"`    // the matched text or attribute
	Selector string `json:"selector,omitempty"` // DOM location when known
}

// Reliability returns the 0-100 reliability of the evidence kind.
// Unknown kinds score as none.
func (e *Evidence) Reliability() int {
	if e == nil {
		return evidenceReliability[EvidenceNone]
	}
	if r, ok := evidenceReliability[e.Kind]; ok {
		return r
	}
	return evidenceReliability[EvidenceNone]
}

// Valid reports whether the evidence actually proves something: it has a
// recognized kind other than none.
func (e *Evidence) Valid() bool {
	if e == nil || e.Kind == EvidenceNone {
		return false
	}
	_, ok := evidenceReliability[e.Kind]
	return ok
}

package normalize

import "strings"

// FieldMap names, per canonical contact field, the source key an
// extractor emits for it. Structured miners declare one alongside their
// records so the rest of the pipeline never inspects arbitrary keys;
// a zero FieldMap means "infer from the data".
type FieldMap struct {
	Email       string `json:"email,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	ContactName string `json:"contact_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Position    string `json:"position,omitempty"`
	City        string `json:"city,omitempty"`
	Website     string `json:"website,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Country     string `json:"country,omitempty"`
	Confidence  string `json:"confidence,omitempty"`
}

// IsZero reports whether no source key has been declared.
func (m FieldMap) IsZero() bool {
	return m == FieldMap{}
}

// InferFieldMap guesses the mapping from a sample record's keys. Tables
// and directory listings rarely announce a schema, so common spellings
// (including the German ones our sources use) are matched per field.
func InferFieldMap(sample map[string]string) FieldMap {
	lookup := func(aliases ...string) string {
		for _, alias := range aliases {
			for key := range sample {
				if strings.EqualFold(strings.TrimSpace(key), alias) {
					return key
				}
			}
		}
		return ""
	}
	return FieldMap{
		Email:       lookup("email", "e-mail", "mail", "email_address"),
		FirstName:   lookup("first_name", "firstname", "given_name", "vorname"),
		LastName:    lookup("last_name", "lastname", "surname", "nachname"),
		ContactName: lookup("contact_name", "full_name", "name", "person", "ansprechpartner"),
		CompanyName: lookup("company_name", "company", "organization", "organisation", "firma", "unternehmen"),
		Position:    lookup("position", "job_title", "title", "role", "funktion"),
		City:        lookup("city", "ort", "stadt", "location"),
		Website:     lookup("website", "url", "homepage", "web"),
		Phone:       lookup("phone", "telephone", "tel", "telefon"),
		Country:     lookup("country", "land"),
		Confidence:  lookup("confidence"),
	}
}

// Apply projects one raw record onto the canonical field keys. Source
// keys the map does not name are dropped, blank values too.
func (m FieldMap) Apply(rec map[string]string) map[string]string {
	out := make(map[string]string)
	put := func(canonical, sourceKey string) {
		if sourceKey == "" {
			return
		}
		if v, ok := rec[sourceKey]; ok && strings.TrimSpace(v) != "" {
			out[canonical] = v
		}
	}
	put("email", m.Email)
	put("first_name", m.FirstName)
	put("last_name", m.LastName)
	put("contact_name", m.ContactName)
	put("company_name", m.CompanyName)
	put("position", m.Position)
	put("city", m.City)
	put("website", m.Website)
	put("phone", m.Phone)
	put("country", m.Country)
	put("confidence", m.Confidence)
	if len(out) == 0 {
		return nil
	}
	return out
}

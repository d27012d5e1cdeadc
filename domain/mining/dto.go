package mining

import (
	"github.com/google/uuid"
)

// CreateJobRequest starts a new mining job.
type CreateJobRequest struct {
	URL    string    `json:"url"`
	Config JobConfig `json:"config"`
}

// IngestResultItem is one externally computed contact in the ingest body.
// Field names follow the persisted snake_case shape; the handler tolerates
// nothing else — shape normalization happens on the miner side.
type IngestResultItem struct {
	SourceURL   string         `json:"source_url,omitempty"`
	CompanyName string         `json:"company_name,omitempty"`
	ContactName string         `json:"contact_name,omitempty"`
	JobTitle    string         `json:"job_title,omitempty"`
	Email       string         `json:"email,omitempty"`
	Emails      []string       `json:"emails,omitempty"`
	Phone       string         `json:"phone,omitempty"`
	Country     string         `json:"country,omitempty"`
	City        string         `json:"city,omitempty"`
	Address     string         `json:"address,omitempty"`
	Website     string         `json:"website,omitempty"`
	Confidence  int            `json:"confidence,omitempty"`
	Source      string         `json:"source,omitempty"`
	Raw         map[string]any `json:"raw,omitempty"`
}

// IngestRequest is the body of the results-ingest route.
type IngestRequest struct {
	Results []IngestResultItem `json:"results"`
	Summary map[string]any     `json:"summary,omitempty"`
}

// IngestResponse reports what the ingest run persisted.
type IngestResponse struct {
	Success     bool       `json:"success"`
	Inserted    int        `json:"inserted"`
	TotalEmails int        `json:"total_emails"`
	Job         *MiningJob `json:"job"`
}

// ResultFilter narrows the results listing.
type ResultFilter struct {
	Page               int
	Limit              int
	HasEmail           string // "" | with | without
	Status             string
	VerificationStatus string
	Country            string // substring
	Search             string // substring over company/contact/website/source_url/emails
}

// Pagination is the envelope of a paginated listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// ListResultsResponse is the results-listing payload.
type ListResultsResponse struct {
	Results    []*MiningResult `json:"results"`
	Pagination Pagination      `json:"pagination"`
}

// PatchResultRequest carries the bounded allowlist of updatable fields.
// Pointers distinguish absent from empty.
type PatchResultRequest struct {
	CompanyName        *string `json:"company_name,omitempty"`
	ContactName        *string `json:"contact_name,omitempty"`
	JobTitle           *string `json:"job_title,omitempty"`
	Phone              *string `json:"phone,omitempty"`
	Country            *string `json:"country,omitempty"`
	City               *string `json:"city,omitempty"`
	Address            *string `json:"address,omitempty"`
	Website            *string `json:"website,omitempty"`
	VerificationStatus *string `json:"verification_status,omitempty"`
}

// Empty reports whether no allowlisted field was supplied.
func (p *PatchResultRequest) Empty() bool {
	return p.CompanyName == nil && p.ContactName == nil && p.JobTitle == nil &&
		p.Phone == nil && p.Country == nil && p.City == nil &&
		p.Address == nil && p.Website == nil && p.VerificationStatus == nil
}

// JobResponse wraps a job for status polling.
type JobResponse struct {
	Job *MiningJob `json:"job"`
}

// JobListResponse lists a tenant's jobs.
type JobListResponse struct {
	Jobs  []*MiningJob `json:"jobs"`
	Total int          `json:"total"`
}

// BlockedDomainsResponse reports domains with an open circuit.
type BlockedDomainsResponse struct {
	Domains any `json:"domains"`
}

// CancelResponse acknowledges a cancel request.
type CancelResponse struct {
	JobID   uuid.UUID `json:"job_id"`
	Message string    `json:"message"`
}

// Package mining owns the persistent model of the contact-discovery
// engine: jobs, result rows, legacy prospects and the canonical
// persons/affiliations tables, plus the HTTP surface over them.
package mining

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Job statuses. The orchestrator is the only writer of Status.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Import statuses, written only by the import pipeline. An empty string
// means no import was ever requested.
const (
	ImportStatusProcessing = "processing"
	ImportStatusCompleted  = "completed"
	ImportStatusFailed     = "failed"
)

// Result row statuses.
const (
	ResultStatusNew      = "new"
	ResultStatusImported = "imported"
)

// JobConfig is the tenant-supplied mining configuration stored on the job.
type JobConfig struct {
	PreferredMiner string `json:"preferred_miner,omitempty"`
	MiningMode     string `json:"mining_mode,omitempty"` // full | free | ai
	MaxPages       int    `json:"max_pages,omitempty"`
	Flow2Disabled  bool   `json:"flow2_disabled,omitempty"`
}

// JSONMap is a helper type for JSONB map fields.
type JSONMap map[string]any

// ImportError is one row-level failure kept in the progress blob.
type ImportError struct {
	ID    uuid.UUID `json:"id"`
	Error string    `json:"error"`
}

// ImportProgress is the poll-visible state of a background import.
type ImportProgress struct {
	Total           int           `json:"total"`
	Imported        int           `json:"imported"`
	Skipped         int           `json:"skipped"`
	Duplicates      int           `json:"duplicates"`
	CurrentBatch    int           `json:"current_batch"`
	Errors          []ImportError `json:"errors,omitempty"`
	TagsApplied     []string      `json:"tags_applied,omitempty"`
	ListID          *uuid.UUID    `json:"list_id,omitempty"`
	ListMemberCount *int          `json:"list_member_count,omitempty"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	FinishedAt      *time.Time    `json:"finished_at,omitempty"`
	FailedAt        *time.Time    `json:"failed_at,omitempty"`
	Error           string        `json:"error,omitempty"`
}

// MiningJob is a tenant-owned mining job.
type MiningJob struct {
	bun.BaseModel `bun:"table:mining_jobs,alias:mj"`

	ID             uuid.UUID       `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	TenantID       uuid.UUID       `bun:"tenant_id,type:uuid,notnull" json:"tenant_id"`
	InputURL       string          `bun:"input_url,notnull" json:"input_url"`
	Config         JobConfig       `bun:"config,type:jsonb,notnull,default:'{}'::jsonb" json:"config"`
	Status         string          `bun:"status,notnull,default:'pending'" json:"status"`
	ImportStatus   string          `bun:"import_status,notnull,default:''" json:"import_status,omitempty"`
	ImportProgress *ImportProgress `bun:"import_progress,type:jsonb" json:"import_progress,omitempty"`
	ImportStarted  *time.Time      `bun:"import_started_at" json:"import_started_at,omitempty"`
	Stats          JSONMap         `bun:"stats,type:jsonb,notnull,default:'{}'::jsonb" json:"stats"`
	TotalFound     int             `bun:"total_found,notnull,default:0" json:"total_found"`
	TotalEmailsRaw int             `bun:"total_emails_raw,notnull,default:0" json:"total_emails_raw"`
	ErrorMessage   *string         `bun:"error_message" json:"error_message,omitempty"`
	CreatedAt      time.Time       `bun:"created_at,notnull,default:now()" json:"created_at"`
	CompletedAt    *time.Time      `bun:"completed_at" json:"completed_at,omitempty"`
	UpdatedAt      time.Time       `bun:"updated_at,notnull,default:now()" json:"updated_at"`
}

// IsTerminal reports whether the job reached a terminal status.
func (j *MiningJob) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Mode returns the mining mode with the default applied.
func (j *MiningJob) Mode() string {
	if j.Config.MiningMode == "" {
		return "full"
	}
	return j.Config.MiningMode
}

// MiningResult is one extracted contact row attached to a job.
//
// Invariant: a row with non-empty emails is never overwritten by a
// profile-only record, and confidence only moves via MAX on conflict.
type MiningResult struct {
	bun.BaseModel `bun:"table:mining_results,alias:mr"`

	ID                 uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	JobID              uuid.UUID  `bun:"job_id,type:uuid,notnull" json:"job_id"`
	TenantID           uuid.UUID  `bun:"tenant_id,type:uuid,notnull" json:"tenant_id"`
	SourceURL          string     `bun:"source_url,notnull,default:''" json:"source_url"`
	CompanyName        string     `bun:"company_name,notnull,default:''" json:"company_name"`
	ContactName        string     `bun:"contact_name,notnull,default:''" json:"contact_name"`
	JobTitle           string     `bun:"job_title,notnull,default:''" json:"job_title"`
	Emails             []string   `bun:"emails,array,notnull,default:'{}'" json:"emails"`
	Phone              string     `bun:"phone,notnull,default:''" json:"phone"`
	Country            string     `bun:"country,notnull,default:''" json:"country"`
	City               string     `bun:"city,notnull,default:''" json:"city"`
	Address            string     `bun:"address,notnull,default:''" json:"address"`
	Website            string     `bun:"website,notnull,default:''" json:"website"`
	Confidence         int        `bun:"confidence,notnull,default:0" json:"confidence"`
	Status             string     `bun:"status,notnull,default:'new'" json:"status"`
	VerificationStatus string     `bun:"verification_status,notnull,default:''" json:"verification_status,omitempty"`
	Raw                JSONMap    `bun:"raw,type:jsonb,notnull,default:'{}'::jsonb" json:"raw"`
	CreatedAt          time.Time  `bun:"created_at,notnull,default:now()" json:"created_at"`
	UpdatedAt          time.Time  `bun:"updated_at,notnull,default:now()" json:"updated_at"`
	ImportedAt         *time.Time `bun:"imported_at" json:"imported_at,omitempty"`
}

// PrimaryEmail returns the first @-containing entry in Emails, empty when
// none qualifies.
func (r *MiningResult) PrimaryEmail() string {
	for _, e := range r.Emails {
		if strings.Contains(e, "@") {
			return e
		}
	}
	return ""
}

// Prospect is the legacy per-tenant prospect row the importer writes.
type Prospect struct {
	bun.BaseModel `bun:"table:prospects,alias:p"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	TenantID  uuid.UUID `bun:"tenant_id,type:uuid,notnull" json:"tenant_id"`
	Email     string    `bun:"email,notnull" json:"email"`
	Name      string    `bun:"name,notnull,default:''" json:"name,omitempty"`
	Tags      []string  `bun:"tags,array,notnull,default:'{}'" json:"tags"`
	Metadata  JSONMap   `bun:"metadata,type:jsonb,notnull,default:'{}'::jsonb" json:"metadata"`
	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:now()" json:"updated_at"`
}

// List is a tenant-scoped prospect list.
type List struct {
	bun.BaseModel `bun:"table:lists,alias:l"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	TenantID  uuid.UUID `bun:"tenant_id,type:uuid,notnull" json:"tenant_id"`
	Name      string    `bun:"name,notnull" json:"name"`
	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"created_at"`
}

// ListMember links a prospect into a list.
type ListMember struct {
	bun.BaseModel `bun:"table:list_members,alias:lm"`

	ListID     uuid.UUID `bun:"list_id,pk,type:uuid" json:"list_id"`
	ProspectID uuid.UUID `bun:"prospect_id,pk,type:uuid" json:"prospect_id"`
	TenantID   uuid.UUID `bun:"tenant_id,type:uuid,notnull" json:"tenant_id"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:now()" json:"created_at"`
}

// Person is the canonical per-tenant contact, unique by lower(email).
type Person struct {
	bun.BaseModel `bun:"table:persons,alias:pe"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	TenantID  uuid.UUID `bun:"tenant_id,type:uuid,notnull" json:"tenant_id"`
	Email     string    `bun:"email,notnull" json:"email"`
	FirstName string    `bun:"first_name,notnull,default:''" json:"first_name,omitempty"`
	LastName  string    `bun:"last_name,notnull,default:''" json:"last_name,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:now()" json:"updated_at"`
}

// Affiliation is a canonical person↔company attachment. Rows with a
// company name are unique per (tenant, person, lower(company_name));
// rows without one accumulate unconstrained.
type Affiliation struct {
	bun.BaseModel `bun:"table:affiliations,alias:af"`

	ID          uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	TenantID    uuid.UUID `bun:"tenant_id,type:uuid,notnull" json:"tenant_id"`
	PersonID    uuid.UUID `bun:"person_id,type:uuid,notnull" json:"person_id"`
	CompanyName *string   `bun:"company_name" json:"company_name,omitempty"`
	Position    *string   `bun:"position" json:"position,omitempty"`
	CountryCode *string   `bun:"country_code" json:"country_code,omitempty"`
	City        *string   `bun:"city" json:"city,omitempty"`
	Website     *string   `bun:"website" json:"website,omitempty"`
	Phone       *string   `bun:"phone" json:"phone,omitempty"`
	SourceType  string    `bun:"source_type,notnull,default:''" json:"source_type,omitempty"`
	SourceRef   string    `bun:"source_ref,notnull,default:''" json:"source_ref,omitempty"`
	Confidence  int       `bun:"confidence,notnull,default:0" json:"confidence"`
	Raw         JSONMap   `bun:"raw,type:jsonb,notnull,default:'{}'::jsonb" json:"raw"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:now()" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:now()" json:"updated_at"`
}

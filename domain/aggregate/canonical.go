package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/prospectlab/prospector/domain/contact"
	"github.com/prospectlab/prospector/domain/mining"
	"github.com/prospectlab/prospector/internal/config"
	"github.com/prospectlab/prospector/internal/database"
	"github.com/prospectlab/prospector/pkg/logger"
)

// Canonical maintains the tenant-wide persons and affiliations tables.
// Persons are unique per (tenant, lower(email)); affiliations with a
// company name are unique per (tenant, person, lower(company_name)) and
// fill in missing fields additively, never overwriting existing values.
type Canonical struct {
	db  *bun.DB
	cfg *config.Config
	log *slog.Logger
}

// NewCanonical creates the canonical aggregator.
func NewCanonical(db *bun.DB, cfg *config.Config, log *slog.Logger) *Canonical {
	return &Canonical{db: db, cfg: cfg, log: log.With(logger.Scope("canonical"))}
}

// WritesEnabled reports whether canonical rows are actually persisted;
// callers doing their own per-row writes skip the canonical step when
// writes are off.
func (a *Canonical) WritesEnabled() bool {
	return !a.cfg.Canonical.Disabled && !a.cfg.Canonical.ShadowMode
}

// AggregateContacts upserts persons and affiliations for every emailed
// contact in the set. Honors the disabled and shadow-mode switches.
func (a *Canonical) AggregateContacts(ctx context.Context, tenantID, jobID uuid.UUID, contacts []contact.UnifiedContact) error {
	if a.cfg.Canonical.Disabled {
		return nil
	}

	eligible := make([]contact.UnifiedContact, 0, len(contacts))
	for _, c := range contacts {
		if c.HasEmail() {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	if a.cfg.Canonical.ShadowMode {
		a.logShadow(tenantID, jobID, eligible)
		return nil
	}

	tx, err := database.BeginSafeTx(ctx, a.db)
	if err != nil {
		return fmt.Errorf("begin canonical tx: %w", err)
	}
	defer tx.Rollback()

	persons, affiliations := 0, 0
	for _, c := range eligible {
		personID, err := a.UpsertPerson(ctx, tx.Tx, tenantID, c)
		if err != nil {
			return err
		}
		persons++

		created, err := a.UpsertAffiliation(ctx, tx.Tx, tenantID, personID, c, "mining", jobID.String())
		if err != nil {
			return err
		}
		if created {
			affiliations++
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	a.log.Info("canonical aggregation done",
		slog.String("job_id", jobID.String()),
		slog.Int("persons", persons),
		slog.Int("affiliations", affiliations),
	)
	return nil
}

// UpsertPerson inserts or updates the canonical person for a contact's
// primary email and returns the person ID. Name fields only fill blanks.
func (a *Canonical) UpsertPerson(ctx context.Context, idb bun.IDB, tenantID uuid.UUID, c contact.UnifiedContact) (uuid.UUID, error) {
	first, last := splitName(c.ContactName)
	p := &mining.Person{
		TenantID:  tenantID,
		Email:     strings.ToLower(strings.TrimSpace(c.Email)),
		FirstName: first,
		LastName:  last,
	}
	_, err := idb.NewInsert().
		Model(p).
		Column("tenant_id", "email", "first_name", "last_name").
		On("CONFLICT (tenant_id, lower(email)) DO UPDATE").
		Set("first_name = COALESCE(NULLIF(persons.first_name, ''), EXCLUDED.first_name)").
		Set("last_name = COALESCE(NULLIF(persons.last_name, ''), EXCLUDED.last_name)").
		Set("updated_at = now()").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert person: %w", err)
	}
	return p.ID, nil
}

// UpsertAffiliation attaches a contact's company context to a person.
// Rows with a usable company name merge into the existing affiliation,
// filling only missing fields and raising confidence; rows without one
// insert unconstrained. Returns whether a row was written.
func (a *Canonical) UpsertAffiliation(ctx context.Context, idb bun.IDB, tenantID, personID uuid.UUID, c contact.UnifiedContact, sourceType, sourceRef string) (bool, error) {
	af := &mining.Affiliation{
		TenantID:    tenantID,
		PersonID:    personID,
		Position:    strPtr(c.JobTitle),
		CountryCode: strPtr(c.Country),
		City:        strPtr(c.City),
		Website:     strPtr(c.Website),
		Phone:       strPtr(c.Phone),
		SourceType:  sourceType,
		SourceRef:   sourceRef,
		Confidence:  c.Confidence,
		Raw:         mining.JSONMap{},
	}

	company := strings.TrimSpace(c.CompanyName)
	if !usableCompany(company) {
		// Without a company key there is nothing to merge on; only
		// insert when the row carries some substance.
		if af.Position == nil && af.Website == nil && af.Phone == nil && af.City == nil {
			return false, nil
		}
		if _, err := idb.NewInsert().Model(af).Exec(ctx); err != nil {
			return false, fmt.Errorf("insert affiliation: %w", err)
		}
		return true, nil
	}

	af.CompanyName = &company
	_, err := idb.NewInsert().
		Model(af).
		On("CONFLICT (tenant_id, person_id, lower(company_name)) WHERE company_name IS NOT NULL DO UPDATE").
		Set("position = COALESCE(affiliations.position, EXCLUDED.position)").
		Set("country_code = COALESCE(affiliations.country_code, EXCLUDED.country_code)").
		Set("city = COALESCE(affiliations.city, EXCLUDED.city)").
		Set("website = COALESCE(affiliations.website, EXCLUDED.website)").
		Set("phone = COALESCE(affiliations.phone, EXCLUDED.phone)").
		Set("confidence = GREATEST(affiliations.confidence, EXCLUDED.confidence)").
		Set("updated_at = now()").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("upsert affiliation: %w", err)
	}
	return true, nil
}

func (a *Canonical) logShadow(tenantID, jobID uuid.UUID, contacts []contact.UnifiedContact) {
	withCompany := 0
	for _, c := range contacts {
		if usableCompany(strings.TrimSpace(c.CompanyName)) {
			withCompany++
		}
		if a.cfg.Canonical.VerboseShadow {
			a.log.Info("shadow canonical record",
				slog.String("job_id", jobID.String()),
				slog.String("email", c.Email),
				slog.String("company", c.CompanyName),
			)
		}
	}
	a.log.Info("shadow canonical aggregation",
		slog.String("tenant_id", tenantID.String()),
		slog.String("job_id", jobID.String()),
		slog.Int("persons", len(contacts)),
		slog.Int("with_company", withCompany),
	)
}

// usableCompany rejects company strings that are really scraped junk:
// empty values, email addresses and pipe-delimited page titles.
func usableCompany(name string) bool {
	if len(name) < 2 {
		return false
	}
	if strings.Contains(name, "@") || strings.Contains(name, "|") {
		return false
	}
	return true
}

// splitName breaks a display name into first and last parts. A single
// token becomes the first name; everything past the first token joins
// into the last name.
func splitName(name string) (first, last string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

func strPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

package contact

import "strings"

type profileKey struct {
	name      string
	sourceURL string
}

// MergeSet performs the deterministic contact merge: one map keyed by
// lowercased email, a second keyed by (name, source_url) for profile-only
// records. The two maps never collide; a profile-only record can never
// reach an email-keyed one. Output order is insertion order, so the merge
// result depends only on the order records are added, never on timing.
type MergeSet struct {
	byEmail   map[string]*UnifiedContact
	byProfile map[profileKey]*UnifiedContact
	order     []*UnifiedContact
	dropped   int
}

// NewMergeSet creates an empty merge set.
func NewMergeSet() *MergeSet {
	return &MergeSet{
		byEmail:   make(map[string]*UnifiedContact),
		byProfile: make(map[profileKey]*UnifiedContact),
	}
}

// Add merges one contact into the set. Records with neither an email nor
// a contact name carry no identity and are dropped.
func (s *MergeSet) Add(c UnifiedContact) {
	c.ClampConfidence()

	if c.HasEmail() {
		key := c.EmailKey()
		if existing, ok := s.byEmail[key]; ok {
			merge(existing, &c)
			return
		}
		stored := c
		stored.Email = key
		s.byEmail[key] = &stored
		s.order = append(s.order, &stored)
		return
	}

	name, sourceURL := c.ProfileKey()
	if name == "" {
		s.dropped++
		return
	}
	key := profileKey{name: name, sourceURL: sourceURL}
	if existing, ok := s.byProfile[key]; ok {
		merge(existing, &c)
		existing.ClampConfidence()
		return
	}
	stored := c
	s.byProfile[key] = &stored
	s.order = append(s.order, &stored)
}

// AddAll merges every contact of every result, in order.
func (s *MergeSet) AddAll(results []MinerResult) {
	for _, res := range results {
		for _, c := range res.Contacts {
			s.Add(c)
		}
	}
}

// Contacts returns the merged records in first-seen order.
func (s *MergeSet) Contacts() []UnifiedContact {
	out := make([]UnifiedContact, len(s.order))
	for i, c := range s.order {
		out[i] = *c
	}
	return out
}

// EmailCount returns the number of email-keyed records.
func (s *MergeSet) EmailCount() int { return len(s.byEmail) }

// ProfileOnlyCount returns the number of profile-only records.
func (s *MergeSet) ProfileOnlyCount() int { return len(s.byProfile) }

// Len returns the total number of merged records.
func (s *MergeSet) Len() int { return len(s.order) }

// merge folds other into dst in place. The record with the higher
// confidence acts as the base; on a tie the earlier record wins. Per
// field: prefer non-empty, then the longer string. Confidence takes the
// max; additional emails are union-deduped.
func merge(dst, other *UnifiedContact) {
	base, extra := dst, other
	if other.Confidence > dst.Confidence {
		base, extra = other, dst
	}

	merged := UnifiedContact{
		Email:       dst.Email,
		ContactName: pickField(base.ContactName, extra.ContactName),
		JobTitle:    pickField(base.JobTitle, extra.JobTitle),
		CompanyName: pickField(base.CompanyName, extra.CompanyName),
		Website:     pickField(base.Website, extra.Website),
		Country:     pickField(base.Country, extra.Country),
		City:        pickField(base.City, extra.City),
		Address:     pickField(base.Address, extra.Address),
		Phone:       pickField(base.Phone, extra.Phone),
		Source:      pickField(base.Source, extra.Source),
		SourceURL:   base.SourceURL,
		Confidence:  maxInt(dst.Confidence, other.Confidence),
		EmailType:   pickField(base.EmailType, extra.EmailType),
		ExtractedAt: base.ExtractedAt,
	}
	if merged.SourceURL == "" {
		merged.SourceURL = extra.SourceURL
	}
	if merged.ExtractedAt.IsZero() {
		merged.ExtractedAt = extra.ExtractedAt
	}

	merged.Evidence = base.Evidence
	if extra.Evidence.Reliability() > base.Evidence.Reliability() {
		merged.Evidence = extra.Evidence
	}

	merged.AdditionalEmails = unionEmails(dst, other)
	*dst = merged
}

// pickField prefers a non-empty value, then the longer one; ties keep the
// base value.
func pickField(base, extra string) string {
	base = strings.TrimSpace(base)
	extra = strings.TrimSpace(extra)
	if base == "" {
		return extra
	}
	if len(extra) > len(base) {
		return extra
	}
	return base
}

// unionEmails collects additional emails from both records, excluding the
// primary, deduplicated in order.
func unionEmails(dst, other *UnifiedContact) []string {
	primary := dst.EmailKey()
	seen := map[string]struct{}{}
	var out []string
	for _, list := range [][]string{dst.AdditionalEmails, {other.Email}, other.AdditionalEmails} {
		for _, e := range list {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" || e == primary {
				continue
			}
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

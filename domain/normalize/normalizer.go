// Package normalize turns raw extractor output into contact candidates.
// The pipeline is stateless: it never touches the database, never
// deduplicates across jobs and never invents confidence values.
package normalize

import (
	"log/slog"
	"strconv"
	"strings"

	"go.uber.org/fx"

	"github.com/prospectlab/prospector/domain/contact"
	"github.com/prospectlab/prospector/pkg/logger"
)

var Module = fx.Module("normalize",
	fx.Provide(NewNormalizer, NewValidator, NewHallucinationFilter),
)

// Block is one structured unit of extractor output. Fields carries
// values already keyed by canonical field names; raw records with
// source-specific keys go through MinerOutput.Records and a FieldMap
// instead. Text is the block's raw text.
type Block struct {
	Text   string            `json:"text,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// MinerOutput is the raw payload a single extractor run produced.
// Records holds rows as the source keyed them; Fields declares which
// source key feeds each canonical field. A zero Fields is inferred from
// the first record.
type MinerOutput struct {
	Miner     string              `json:"miner"`
	SourceURL string              `json:"source_url"`
	PageTitle string              `json:"page_title,omitempty"`
	Text      string              `json:"text,omitempty"`
	HTML      string              `json:"html,omitempty"`
	Blocks    []Block             `json:"blocks,omitempty"`
	Records   []map[string]string `json:"records,omitempty"`
	Fields    FieldMap            `json:"fields,omitempty"`
}

// Stats summarizes one normalization run.
type Stats struct {
	EmailsFound     int `json:"emails_found"`
	BlocksProcessed int `json:"blocks_processed"`
	CandidatesBuilt int `json:"candidates_built"`
}

// Result is the normalizer's outcome. Success stays true even when no
// candidates were produced; only malformed input flips it.
type Result struct {
	Success    bool                `json:"success"`
	Candidates []contact.Candidate `json:"candidates"`
	Stats      Stats               `json:"stats"`
	Errors     []string            `json:"errors,omitempty"`
}

// Normalizer is the stateless normalization pipeline.
type Normalizer struct {
	log *slog.Logger
}

// NewNormalizer creates the pipeline.
func NewNormalizer(log *slog.Logger) *Normalizer {
	return &Normalizer{log: log.With(logger.Scope("normalize"))}
}

// Normalize produces one candidate per unique acceptable email found in
// the miner output.
func (n *Normalizer) Normalize(out MinerOutput) Result {
	res := Result{Success: true}

	type source struct {
		found  FoundEmail
		fields map[string]string
	}
	var sources []source
	seen := make(map[string]int)

	blocks := out.Blocks
	if len(out.Records) > 0 {
		fm := out.Fields
		if fm.IsZero() {
			fm = InferFieldMap(out.Records[0])
		}
		mapped := make([]Block, 0, len(out.Blocks)+len(out.Records))
		mapped = append(mapped, out.Blocks...)
		for _, rec := range out.Records {
			mapped = append(mapped, Block{Fields: fm.Apply(rec)})
		}
		blocks = mapped
	}

	// Structured blocks first: their field maps are the strongest signal.
	for _, block := range blocks {
		res.Stats.BlocksProcessed++
		if email, ok := block.Fields["email"]; ok {
			email = strings.ToLower(strings.TrimSpace(email))
			if RejectEmail(email) == "" {
				if _, dup := seen[email]; !dup {
					seen[email] = len(sources)
					sources = append(sources, source{
						found:  FoundEmail{Email: email, Context: block.Text},
						fields: block.Fields,
					})
				}
				continue
			}
		}
		for _, f := range extractFrom(block.Text) {
			if _, dup := seen[f.Email]; dup {
				continue
			}
			seen[f.Email] = len(sources)
			sources = append(sources, source{found: f, fields: block.Fields})
		}
	}

	for _, f := range ExtractEmails(out.Text, out.HTML) {
		if _, dup := seen[f.Email]; dup {
			continue
		}
		seen[f.Email] = len(sources)
		sources = append(sources, source{found: f})
	}

	res.Stats.EmailsFound = len(sources)
	if len(sources) == 0 {
		res.Errors = append(res.Errors, "No valid emails found in miner output")
		return res
	}

	for _, src := range sources {
		cand := n.buildCandidate(src.found, src.fields, out)
		res.Candidates = append(res.Candidates, cand)
	}
	res.Stats.CandidatesBuilt = len(res.Candidates)
	return res
}

func (n *Normalizer) buildCandidate(found FoundEmail, fields map[string]string, out MinerOutput) contact.Candidate {
	cand := contact.Candidate{Email: found.Email}

	first, last := fields["first_name"], fields["last_name"]
	if first == "" && last == "" {
		if full := fields["contact_name"]; full != "" {
			first, last = splitFullName(full)
		}
	}
	if first == "" && last == "" {
		first, last = ParseName(found.Email, found.Context)
	}
	cand.FirstName, cand.LastName = first, last

	domain := EmailDomain(found.Email)

	aff := contact.Affiliation{
		CompanyName: strings.TrimSpace(fields["company_name"]),
		Position:    strings.TrimSpace(fields["position"]),
		City:        strings.TrimSpace(fields["city"]),
		Website:     strings.TrimSpace(fields["website"]),
		Phone:       strings.TrimSpace(fields["phone"]),
	}
	if aff.CompanyName == "" {
		aff.CompanyName = ResolveCompany(found.Context, out.PageTitle, domain)
	}
	if aff.Position == "" {
		aff.Position = ExtractPosition(found.Context)
	}
	if aff.Website == "" {
		aff.Website = ResolveWebsite(found.Context, domain)
	}
	if raw := fields["country"]; raw != "" {
		aff.CountryCode = NormalizeCountry(raw)
	}
	if aff.CountryCode == "" {
		aff.CountryCode = ExtractCountryFromContext(found.Context)
	}
	// Confidence is strictly a miner-provided hint, never computed here.
	if hint, ok := fields["confidence"]; ok {
		if v, err := strconv.Atoi(strings.TrimSpace(hint)); err == nil {
			aff.Confidence = &v
		}
	}

	if aff != (contact.Affiliation{}) {
		cand.Affiliations = append(cand.Affiliations, aff)
	}
	cand.ExtractionMeta = map[string]string{}
	if out.Miner != "" {
		cand.ExtractionMeta["miner"] = out.Miner
	}
	if out.SourceURL != "" {
		cand.ExtractionMeta["source_url"] = out.SourceURL
	}
	if fields != nil {
		cand.ExtractionMeta["origin"] = "block"
	} else {
		cand.ExtractionMeta["origin"] = "text"
	}
	return cand
}

func splitFullName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

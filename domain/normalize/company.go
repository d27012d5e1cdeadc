package normalize

import (
	"regexp"
	"strings"
)

var (
	contextCompanyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`([A-Za-zÄÖÜäöüß0-9&.\- ]{2,60})\s*\|`),
		regexp.MustCompile(`([A-Za-zÄÖÜäöüß0-9&.\- ]{2,60})\s+-\s`),
		regexp.MustCompile(`\bat\s+([A-ZÄÖÜ][A-Za-zÄÖÜäöüß0-9&.\-]{1,59})`),
		regexp.MustCompile(`\bfrom\s+([A-ZÄÖÜ][A-Za-zÄÖÜäöüß0-9&.\-]{1,59})`),
	}

	titleSuffixes = []string{
		"gmbh & co. kg", "gmbh & co kg", "gmbh", "ag", "kg", "ohg", "ug",
		"inc.", "inc", "llc", "ltd.", "ltd", "plc", "corp.", "corp",
		"co.", "s.a.", "s.r.l.", "b.v.", "n.v.", "sarl", "sas", "oy", "ab",
	}

	titleSeparators = []string{" | ", " – ", " — ", " - ", " :: ", " › "}

	genericCompanyTerms = map[string]struct{}{
		"home": {}, "homepage": {}, "welcome": {}, "contact": {},
		"about": {}, "about us": {}, "impressum": {}, "startseite": {},
		"kontakt": {}, "index": {}, "untitled": {}, "website": {},
		"page": {}, "site": {}, "shop": {}, "blog": {}, "news": {},
	}

	contextURLPattern = regexp.MustCompile(`https?://[A-Za-z0-9.\-]+\.[A-Za-z]{2,}(?:/[^\s"'<>]*)?`)

	socialDomains = []string{
		"facebook.com", "twitter.com", "x.com", "linkedin.com",
		"instagram.com", "youtube.com", "xing.com", "tiktok.com",
		"pinterest.com",
	}

	hasLetter = regexp.MustCompile(`[A-Za-zÄÖÜäöüß]`)
)

// ResolveCompany derives a company name in strict priority order: context
// patterns, then the page title, then the email domain. Returns empty when
// nothing validates.
func ResolveCompany(emailContext, pageTitle, emailDomain string) string {
	for _, p := range contextCompanyPatterns {
		if m := p.FindStringSubmatch(emailContext); m != nil {
			if name := cleanCompanyName(m[1]); ValidCompanyName(name) {
				return name
			}
		}
	}

	if name := companyFromTitle(pageTitle); name != "" {
		return name
	}

	return CompanyFromDomain(emailDomain)
}

// companyFromTitle extracts a company from a page title: strip legal
// suffixes, split on the first separator, validate.
func companyFromTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	for _, sep := range titleSeparators {
		if i := strings.Index(title, sep); i > 0 {
			title = title[:i]
			break
		}
	}
	name := cleanCompanyName(title)
	if !ValidCompanyName(name) {
		return ""
	}
	return name
}

// CompanyFromDomain title-cases the registrable part of a non-generic
// email domain: "acme-global.io" becomes "Acme-Global".
func CompanyFromDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" || IsGenericProvider(domain) {
		return ""
	}
	base := domain
	if i := strings.Index(base, "."); i > 0 {
		base = base[:i]
	}
	if base == "" {
		return ""
	}
	parts := strings.Split(base, "-")
	for i, p := range parts {
		parts[i] = titleCaseWord(p)
	}
	name := strings.Join(parts, "-")
	if !ValidCompanyName(name) {
		return ""
	}
	return name
}

// ValidCompanyName applies the acceptance bands: length 2-200, at least
// one letter, not a generic page term.
func ValidCompanyName(name string) bool {
	name = strings.TrimSpace(name)
	if len(name) < 2 || len(name) > 200 {
		return false
	}
	if !hasLetter.MatchString(name) {
		return false
	}
	_, generic := genericCompanyTerms[strings.ToLower(name)]
	return !generic
}

func cleanCompanyName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	lower := strings.ToLower(name)
	for _, suffix := range titleSuffixes {
		if strings.HasSuffix(lower, " "+suffix) {
			name = strings.TrimSpace(name[:len(name)-len(suffix)-1])
			lower = strings.ToLower(name)
		}
	}
	return strings.Trim(name, " ,.-|")
}

// ResolveWebsite prefers a non-social URL from the email context, falling
// back to https://<domain> for non-generic providers.
func ResolveWebsite(emailContext, emailDomain string) string {
	for _, u := range contextURLPattern.FindAllString(emailContext, -1) {
		if !isSocialURL(u) {
			return strings.TrimRight(u, ".,)")
		}
	}
	domain := strings.ToLower(strings.TrimSpace(emailDomain))
	if domain == "" || IsGenericProvider(domain) {
		return ""
	}
	return "https://" + domain
}

func isSocialURL(u string) bool {
	lower := strings.ToLower(u)
	for _, d := range socialDomains {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

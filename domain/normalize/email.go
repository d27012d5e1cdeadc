package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// genericPrefixes are role addresses that never identify a person.
var genericPrefixes = map[string]struct{}{
	"info": {}, "contact": {}, "support": {}, "sales": {}, "admin": {},
	"office": {}, "hello": {}, "mail": {}, "email": {}, "enquiries": {},
	"inquiries": {}, "service": {}, "services": {}, "help": {}, "team": {},
	"press": {}, "media": {}, "marketing": {}, "newsletter": {}, "news": {},
	"jobs": {}, "careers": {}, "career": {}, "hr": {}, "recruiting": {},
	"webmaster": {}, "postmaster": {}, "hostmaster": {}, "abuse": {},
	"noreply": {}, "no-reply": {}, "no_reply": {}, "donotreply": {},
	"privacy": {}, "legal": {}, "billing": {}, "accounts": {},
	"reception": {}, "kontakt": {}, "vertrieb": {}, "bewerbung": {},
}

// genericEmailProviders never identify a company.
var genericEmailProviders = map[string]struct{}{
	"gmail.com": {}, "googlemail.com": {}, "yahoo.com": {}, "yahoo.de": {},
	"hotmail.com": {}, "hotmail.de": {}, "outlook.com": {}, "outlook.de": {},
	"live.com": {}, "aol.com": {}, "icloud.com": {}, "me.com": {},
	"gmx.de": {}, "gmx.net": {}, "gmx.at": {}, "gmx.ch": {}, "web.de": {},
	"t-online.de": {}, "freenet.de": {}, "mail.com": {}, "protonmail.com": {},
	"proton.me": {}, "yandex.com": {}, "yandex.ru": {}, "qq.com": {},
	"163.com": {}, "126.com": {},
}

// fileExtensionTails catch asset filenames the email regex wrongly
// matches, like logo@2x.png.
var fileExtensionTails = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico", ".bmp",
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".zip", ".css", ".js",
}

var (
	localhostPattern = regexp.MustCompile(`@(localhost|127\.0\.0\.1|0\.0\.0\.0|example\.(com|org|net))`)
	plainWordLocal   = regexp.MustCompile(`^[a-z]{2,}$`)
)

// FoundEmail is one accepted email with its surrounding context.
type FoundEmail struct {
	Email   string
	Context string // ±50 chars around the match
}

// RejectEmail explains why an email is unusable for contact identity.
// An empty reason means the email is acceptable.
func RejectEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "invalid format"
	}
	local, domain := email[:at], email[at+1:]

	if !emailPattern.MatchString(email) {
		return "invalid format"
	}
	if localhostPattern.MatchString(email) {
		return "localhost or example domain"
	}
	for _, ext := range fileExtensionTails {
		if strings.HasSuffix(domain, ext) {
			return "asset filename"
		}
	}
	prefix := local
	if i := strings.IndexAny(local, ".-_+"); i > 0 {
		prefix = local[:i]
	}
	if _, ok := genericPrefixes[prefix]; ok {
		return "generic role address"
	}
	return ""
}

// IsGenericProvider reports whether the email's domain is a consumer
// provider that cannot name a company.
func IsGenericProvider(domain string) bool {
	_, ok := genericEmailProviders[strings.ToLower(strings.TrimSpace(domain))]
	return ok
}

// EmailDomain returns the lowercased domain of an email, empty when
// malformed.
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

// ClassifyEmail tags an email as personal, generic, role or unknown.
func ClassifyEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "unknown"
	}
	local, domain := email[:at], email[at+1:]

	if _, ok := genericPrefixes[local]; ok {
		return "role"
	}
	if IsGenericProvider(domain) {
		return "personal"
	}
	if strings.ContainsAny(local, ".-_") || plainWordLocal.MatchString(local) {
		return "personal"
	}
	return "unknown"
}

// ExtractEmails finds acceptable emails, deduplicated by lowercase, each
// with ±50 chars of context. HTML is only consulted when the text is
// empty.
func ExtractEmails(text, html string) []FoundEmail {
	if strings.TrimSpace(text) != "" {
		return extractFrom(text)
	}
	return extractFrom(html)
}

func extractFrom(body string) []FoundEmail {
	seen := make(map[string]struct{})
	var out []FoundEmail
	for _, loc := range emailPattern.FindAllStringIndex(body, -1) {
		email := strings.ToLower(body[loc[0]:loc[1]])
		if _, ok := seen[email]; ok {
			continue
		}
		if RejectEmail(email) != "" {
			continue
		}
		seen[email] = struct{}{}

		start := loc[0] - 50
		if start < 0 {
			start = 0
		}
		end := loc[1] + 50
		if end > len(body) {
			end = len(body)
		}
		// The ±50 window counts bytes; widen to rune boundaries so the
		// context never starts or ends inside a multi-byte character.
		for start > 0 && !utf8.RuneStart(body[start]) {
			start--
		}
		for end < len(body) && !utf8.RuneStart(body[end]) {
			end++
		}
		out = append(out, FoundEmail{Email: email, Context: body[start:end]})
	}
	return out
}

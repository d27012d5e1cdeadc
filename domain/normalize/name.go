package normalize

import (
	"regexp"
	"strings"
)

var (
	// Two capitalized words, allowing diacritics and hyphenated surnames.
	contextNamePattern = regexp.MustCompile(`\b([A-ZÄÖÜ][a-zäöüß]+)\s+([A-ZÄÖÜ][a-zäöüß]+(?:-[A-ZÄÖÜ][a-zäöüß]+)?)\b`)
	alphaToken         = regexp.MustCompile(`^[a-zäöüß]+$`)
)

// ParseName derives (first, last) from the email's surrounding context,
// falling back to the local part when the context names nobody.
func ParseName(email, context string) (first, last string) {
	local := email
	if at := strings.Index(email, "@"); at > 0 {
		local = email[:at]
	}

	// Local part first: "priya.mehta" is a stronger signal than a lone
	// capitalized word somewhere in the context.
	if f, l, ok := nameFromLocalPart(local); ok {
		return f, l
	}

	if m := contextNamePattern.FindStringSubmatch(context); m != nil {
		return m[1], m[2]
	}

	// Single-token local part that looks like a name
	if alphaToken.MatchString(strings.ToLower(local)) {
		if _, generic := genericPrefixes[strings.ToLower(local)]; !generic && len(local) >= 3 {
			return titleCaseWord(local), ""
		}
	}
	return "", ""
}

// nameFromLocalPart splits a local part like "priya.mehta" or
// "jan-mueller" into a first/last pair when both halves look like names.
func nameFromLocalPart(local string) (first, last string, ok bool) {
	local = strings.ToLower(local)
	var parts []string
	for _, p := range strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	}) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) != 2 {
		return "", "", false
	}
	for _, p := range parts {
		if !alphaToken.MatchString(p) || len(p) < 2 {
			return "", "", false
		}
		if _, generic := genericPrefixes[p]; generic {
			return "", "", false
		}
	}
	return titleCaseWord(parts[0]), titleCaseWord(parts[1]), true
}

func titleCaseWord(w string) string {
	if w == "" {
		return ""
	}
	w = strings.ToLower(w)
	return strings.ToUpper(w[:1]) + w[1:]
}

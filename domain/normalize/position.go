package normalize

import (
	"regexp"
	"strings"
)

// positionPatterns match job titles as they appear near an email address.
// Ordered: multi-word titles first so "Head of Sales" beats "Sales".
var positionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(chief executive officer|chief technology officer|chief operating officer|chief financial officer|chief marketing officer)\b`),
	regexp.MustCompile(`(?i)\b(managing director|geschäftsführer|geschäftsführerin|vertriebsleiter|vertriebsleiterin)\b`),
	regexp.MustCompile(`(?i)\b(head of [a-zäöüß]+(?: [a-zäöüß]+)?)\b`),
	regexp.MustCompile(`(?i)\b(vice president(?: of [a-zäöüß]+)?)\b`),
	regexp.MustCompile(`(?i)\b((?:senior |junior |lead )?(?:sales|marketing|project|product|account|operations|hr|it) manager)\b`),
	regexp.MustCompile(`(?i)\b((?:senior |junior |lead |staff )?(?:software|hardware|sales|support|systems?) engineer)\b`),
	regexp.MustCompile(`(?i)\b(ceo|cto|coo|cfo|cmo)\b`),
	regexp.MustCompile(`(?i)\b(director|manager|founder|co-founder|owner|partner|consultant|prokurist)\b`),
}

// ExtractPosition finds a job title in the email's surrounding context.
func ExtractPosition(context string) string {
	for _, p := range positionPatterns {
		if m := p.FindStringSubmatch(context); m != nil {
			return canonicalizePosition(m[1])
		}
	}
	return ""
}

func canonicalizePosition(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	if len(title) <= 3 {
		return strings.ToUpper(title)
	}
	words := strings.Split(title, " ")
	for i, w := range words {
		lower := strings.ToLower(w)
		if lower == "of" && i > 0 {
			words[i] = lower
			continue
		}
		words[i] = titleCaseWord(w)
	}
	return strings.Join(words, " ")
}

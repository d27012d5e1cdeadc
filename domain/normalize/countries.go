package normalize

import "strings"

// countryToISO maps country names to ISO-3166 alpha-2. Besides English
// names it carries the localizations that actually show up in the target
// markets (German, French, Spanish, Italian and a few endonyms) plus the
// ISO codes themselves.
var countryToISO = map[string]string{
	// ISO codes map to themselves
	"de": "DE", "at": "AT", "ch": "CH", "fr": "FR", "it": "IT", "es": "ES",
	"nl": "NL", "be": "BE", "lu": "LU", "dk": "DK", "se": "SE", "no": "NO",
	"fi": "FI", "pl": "PL", "cz": "CZ", "sk": "SK", "hu": "HU", "ro": "RO",
	"bg": "BG", "gr": "GR", "pt": "PT", "ie": "IE", "gb": "GB", "uk": "GB",
	"us": "US", "ca": "CA", "mx": "MX", "br": "BR", "ar": "AR", "cl": "CL",
	"cn": "CN", "jp": "JP", "kr": "KR", "in": "IN", "sg": "SG", "hk": "HK",
	"tw": "TW", "th": "TH", "vn": "VN", "my": "MY", "id": "ID", "ph": "PH",
	"au": "AU", "nz": "NZ", "za": "ZA", "ae": "AE", "sa": "SA", "il": "IL",
	"tr": "TR", "ru": "RU", "ua": "UA", "rs": "RS", "hr": "HR", "si": "SI",
	"lt": "LT", "lv": "LV", "ee": "EE",

	// English names
	"germany": "DE", "austria": "AT", "switzerland": "CH", "france": "FR",
	"italy": "IT", "spain": "ES", "netherlands": "NL", "the netherlands": "NL",
	"belgium": "BE", "luxembourg": "LU", "denmark": "DK", "sweden": "SE",
	"norway": "NO", "finland": "FI", "poland": "PL", "czech republic": "CZ",
	"czechia": "CZ", "slovakia": "SK", "hungary": "HU", "romania": "RO",
	"bulgaria": "BG", "greece": "GR", "portugal": "PT", "ireland": "IE",
	"united kingdom": "GB", "great britain": "GB", "england": "GB",
	"scotland": "GB", "wales": "GB", "united states": "US",
	"united states of america": "US", "usa": "US", "america": "US",
	"canada": "CA", "mexico": "MX", "brazil": "BR", "argentina": "AR",
	"chile": "CL", "china": "CN", "japan": "JP", "south korea": "KR",
	"korea": "KR", "india": "IN", "singapore": "SG", "hong kong": "HK",
	"taiwan": "TW", "thailand": "TH", "vietnam": "VN", "malaysia": "MY",
	"indonesia": "ID", "philippines": "PH", "australia": "AU",
	"new zealand": "NZ", "south africa": "ZA", "united arab emirates": "AE",
	"uae": "AE", "saudi arabia": "SA", "israel": "IL", "turkey": "TR",
	"russia": "RU", "ukraine": "UA", "serbia": "RS", "croatia": "HR",
	"slovenia": "SI", "lithuania": "LT", "latvia": "LV", "estonia": "EE",

	// German localizations
	"deutschland": "DE", "österreich": "AT", "oesterreich": "AT",
	"schweiz": "CH", "frankreich": "FR", "italien": "IT", "spanien": "ES",
	"niederlande": "NL", "belgien": "BE", "luxemburg": "LU",
	"dänemark": "DK", "daenemark": "DK", "schweden": "SE", "norwegen": "NO",
	"finnland": "FI", "polen": "PL", "tschechien": "CZ", "slowakei": "SK",
	"ungarn": "HU", "rumänien": "RO", "griechenland": "GR",
	"großbritannien": "GB", "grossbritannien": "GB", "vereinigtes königreich": "GB",
	"vereinigte staaten": "US", "türkei": "TR", "russland": "RU",
	"kroatien": "HR", "slowenien": "SI",

	// French / Spanish / Italian localizations and endonyms
	"allemagne": "DE", "alemania": "DE", "germania": "DE",
	"autriche": "AT", "suisse": "CH", "suiza": "CH", "svizzera": "CH",
	"francia": "FR", "italia": "IT", "espagne": "ES", "españa": "ES",
	"pays-bas": "NL", "belgique": "BE", "bélgica": "BE",
	"royaume-uni": "GB", "reino unido": "GB", "regno unito": "GB",
	"états-unis": "US", "estados unidos": "US", "stati uniti": "US",
	"pologne": "PL", "polonia": "PL", "suède": "SE", "suecia": "SE",
	"norvège": "NO", "noruega": "NO", "grèce": "GR", "grecia": "GR",
	"turquie": "TR", "turquía": "TR",
}

// NormalizeCountry maps a raw country value to ISO-3166 alpha-2; unknown
// values yield an empty string.
func NormalizeCountry(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.Trim(key, ".,;:()")
	if key == "" {
		return ""
	}
	if iso, ok := countryToISO[key]; ok {
		return iso
	}
	return ""
}

// ExtractCountryFromContext scans free text for the longest matching
// country name; as a last resort it accepts a standalone two-letter ISO
// token.
func ExtractCountryFromContext(context string) string {
	lower := strings.ToLower(context)

	best := ""
	bestLen := 0
	for name := range countryToISO {
		if len(name) <= 2 || len(name) <= bestLen {
			continue
		}
		if containsWord(lower, name) {
			best = name
			bestLen = len(name)
		}
	}
	if best != "" {
		return countryToISO[best]
	}

	// Standalone ISO tokens must be uppercase in the source text, or
	// ordinary words like "at" and "it" would read as countries.
	for _, token := range strings.FieldsFunc(context, func(r rune) bool {
		return r == ' ' || r == ',' || r == ';' || r == '|' || r == '(' || r == ')' || r == '\n' || r == '\t'
	}) {
		token = strings.Trim(token, ".")
		if len(token) == 2 && token == strings.ToUpper(token) {
			if iso, ok := countryToISO[strings.ToLower(token)]; ok {
				return iso
			}
		}
	}
	return ""
}

// containsWord reports whether needle occurs in haystack on word
// boundaries.
func containsWord(haystack, needle string) bool {
	idx := 0
	for {
		i := strings.Index(haystack[idx:], needle)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(needle)
		beforeOK := start == 0 || !isWordChar(haystack[start-1])
		afterOK := end == len(haystack) || !isWordChar(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

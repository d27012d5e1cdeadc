package scout

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	emailCountPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	pageParamPattern  = regexp.MustCompile(`[?&](page|p|seite)=\d+`)
	textLayerPattern  = regexp.MustCompile(`\bP:\d{1,4}\b`)

	frameworkMarkers = []string{"next.js", "nuxt", "gatsby", "react", "vue", "angular", "svelte"}

	flipbookClasses = []string{"flipbook", "pageflip", "turnjs", "fliphtml", "issuu"}
)

const (
	spaMaxBodyKB     = 15
	docViewerTrigger = 40
)

// inspect fills every signal field of the report from the fetched HTML.
func (a *Analyzer) inspect(report *Report, rawURL, body string, doc *goquery.Document) {
	host := hostnameOf(rawURL)

	report.EmailCount = len(emailCountPattern.FindAllString(body, -1))
	report.HasTable = doc.Find("table tr").Length() >= 3
	report.DetailLinkCount = countDetailLinks(doc, host)
	report.HasDynamicIndicators = hasDynamicIndicators(body, doc)
	report.PaginationType = detectPagination(rawURL, doc)

	switch {
	case isKnownDirectory(host):
		report.PageType = PageDirectory
	case looksLikeSPA(body, doc):
		report.PageType = PageSPACatalog
	case documentViewerScore(body, doc) >= docViewerTrigger:
		report.PageType = PageDocumentViewer
	case report.HasTable:
		report.PageType = PageExhibitorTable
	case report.DetailLinkCount >= 10:
		report.PageType = PageExhibitorList
	case report.PaginationType != PaginationNone:
		report.PageType = PagePaginated
	case report.HasDynamicIndicators:
		report.PageType = PageDynamic
	case report.EmailCount > 0:
		report.PageType = PageSingle
	default:
		report.PageType = PageUnknown
	}
}

// recommend maps the report to a miner deterministically.
func recommend(r *Report) Recommendation {
	switch r.PageType {
	case PageDirectory:
		return Recommendation{Miner: MinerDirectory, UseCache: true, OwnPagination: true,
			Reason: "known directory host"}
	case PageSPACatalog:
		return Recommendation{Miner: MinerSPANetwork, UseCache: false, OwnPagination: true,
			Reason: "spa shell, data comes from the network api"}
	case PageDocumentViewer:
		return Recommendation{Miner: MinerDocument, UseCache: false,
			Reason: "document viewer signals"}
	case PageExhibitorTable:
		if r.EmailCount > 0 {
			return Recommendation{Miner: MinerHTTPBasic, UseCache: true,
				Reason: "static table with visible emails"}
		}
		return Recommendation{Miner: MinerPlaywrightTable, UseCache: false,
			Reason: "table without static emails, needs rendering"}
	case PageExhibitorList:
		return Recommendation{Miner: MinerHTTPBasic, UseCache: true,
			Reason: "list page with many detail links"}
	case PagePaginated:
		return Recommendation{Miner: MinerHTTPBasic, UseCache: true,
			Reason: "paginated static content"}
	case PageDynamic:
		return Recommendation{Miner: MinerPlaywright, UseCache: false,
			Reason: "dynamic content indicators"}
	case PageSingle:
		return Recommendation{Miner: MinerHTTPBasic, UseCache: true,
			Reason: "static page with visible emails"}
	default:
		return Recommendation{Miner: MinerPlaywright, UseCache: false,
			Reason: "no reliable static signals"}
	}
}

func isKnownDirectory(host string) bool {
	host = strings.ToLower(host)
	for _, d := range knownDirectories {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// looksLikeSPA detects javascript-rendered shells: a tiny stripped body
// with many scripts, an empty framework root node, a framework meta tag,
// or a visible "enable JavaScript" message.
func looksLikeSPA(body string, doc *goquery.Document) bool {
	stripped := doc.Clone()
	stripped.Find("script, style").Remove()
	strippedLen := len(strings.TrimSpace(stripped.Text()))
	scriptCount := doc.Find("script").Length()

	if strippedLen < spaMaxBodyKB*1024 && scriptCount >= 8 && len(body) > strippedLen*4 {
		return true
	}

	emptyRoot := false
	doc.Find("#root, #app, #__next, #___gatsby").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(strings.TrimSpace(s.Text())) == 0 {
			emptyRoot = true
			return false
		}
		return true
	})
	if emptyRoot {
		return true
	}

	if generator, ok := doc.Find(`meta[name="generator"]`).Attr("content"); ok {
		lower := strings.ToLower(generator)
		for _, marker := range frameworkMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}

	return strings.Contains(strings.ToLower(doc.Text()), "enable javascript")
}

// documentViewerScore sums the weighted flipbook/pdf-viewer signals.
func documentViewerScore(body string, doc *goquery.Document) int {
	score := 0
	if len(textLayerPattern.FindAllString(body, 4)) >= 3 {
		score += 50
	}
	if doc.Find("canvas").Length() >= 2 {
		score += 20
	}
	lower := strings.ToLower(body)
	for _, class := range flipbookClasses {
		if strings.Contains(lower, class) {
			score += 15
			break
		}
	}
	pdfLinks := 0
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, _ := s.Attr("href"); strings.HasSuffix(strings.ToLower(href), ".pdf") {
			pdfLinks++
		}
	})
	if pdfLinks > 0 {
		score += 10
	}
	return score
}

func detectPagination(rawURL string, doc *goquery.Document) string {
	if pageParamPattern.MatchString(rawURL) {
		return PaginationNumbered
	}
	if doc.Find(".pagination, .pager, ul.page-numbers, nav[aria-label*='agina']").Length() > 0 {
		return PaginationNumbered
	}
	if doc.Find(`link[rel="next"], a[rel="next"]`).Length() > 0 {
		return PaginationNextButton
	}

	loadMore := false
	doc.Find("button, a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		if text == "load more" || text == "show more" || text == "mehr laden" || text == "mehr anzeigen" {
			loadMore = true
			return false
		}
		return true
	})
	if loadMore {
		return PaginationLoadMore
	}
	return PaginationNone
}

func hasDynamicIndicators(body string, doc *goquery.Document) bool {
	lower := strings.ToLower(body)
	for _, marker := range []string{"ng-app", "data-reactroot", "v-cloak", "__nuxt"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	text := len(strings.TrimSpace(doc.Text()))
	return len(body) > 50*1024 && text < 1024
}

func countDetailLinks(doc *goquery.Document, host string) int {
	seen := map[string]struct{}{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		if u.Host != "" && !strings.EqualFold(u.Hostname(), host) {
			return
		}
		// Detail pages sit at least two path segments deep
		if strings.Count(strings.Trim(u.Path, "/"), "/") >= 1 {
			seen[u.Path] = struct{}{}
		}
	})
	return len(seen)
}

func hostnameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

package matcher

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"stream-resolver-go/pkg/errs"
	"stream-resolver-go/pkg/httpclient"
	"stream-resolver-go/pkg/types"
	"stream-resolver-go/pkg/urlutil"

	"github.com/PuerkitoBio/goquery"
)

// searchEnvelope is the site's AJAX search response: a list of HTML
// snippets, each one rendered search hit.
type searchEnvelope struct {
	Results []string `json:"results"`
}

var yearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Search queries the site's search surface. Raw responses are cached on a
// short TTL purely as a performance optimization; extraction correctness
// never depends on a cached hit.
func (m *Matcher) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	cacheKey := "search:" + query
	if cached, ok := m.cache.Get(cacheKey); ok {
		return cached.([]types.SearchResult), nil
	}

	searchURL := m.cfg.SiteBase + "/search/?q=" + url.QueryEscape(query)
	body, err := m.fetch.Fetch(ctx, searchURL, httpclient.Options{
		Referer: m.cfg.SiteBase + "/",
		Headers: map[string]string{"X-Requested-With": "XMLHttpRequest"},
	})
	if err != nil {
		return nil, err
	}

	var envelope searchEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errs.Scraping("search response is not the expected JSON envelope")
	}

	results := make([]types.SearchResult, 0, len(envelope.Results))
	for _, snippet := range envelope.Results {
		if result, ok := m.parseSnippet(snippet); ok {
			results = append(results, result)
		}
	}

	m.cache.SetDefault(cacheKey, results)
	return results, nil
}

// parseSnippet extracts one search hit from its rendered HTML fragment.
func (m *Matcher) parseSnippet(snippet string) (types.SearchResult, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snippet))
	if err != nil {
		return types.SearchResult{}, false
	}

	link := doc.Find("a[href]").First()
	href, ok := link.Attr("href")
	if !ok || href == "" {
		return types.SearchResult{}, false
	}
	href = urlutil.Resolve(href, m.cfg.SiteBase+"/")

	title := strings.TrimSpace(doc.Find(".search-title, .searchheading").First().Text())
	if title == "" {
		title = strings.TrimSpace(link.Text())
	}
	// Titles often carry a trailing "(2009)"
	year := 0
	if match := yearRe.FindString(doc.Text()); match != "" {
		year, _ = strconv.Atoi(match)
	}
	title = strings.TrimSpace(yearRe.ReplaceAllString(title, ""))
	title = strings.Trim(title, "() ")

	contentType := types.ContentTypeMovie
	if strings.Contains(href, "/seriali/") || strings.Contains(href, "/series/") {
		contentType = types.ContentTypeSeries
	}

	return types.SearchResult{
		URL:   href,
		Title: title,
		Year:  year,
		Type:  contentType,
		Slug:  slugOf(href),
	}, true
}

// slugOf returns the last path element of a content URL without its
// extension or leading listing id.
func slugOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	slug := parts[len(parts)-1]
	slug = strings.TrimSuffix(slug, ".html")
	return slug
}

package matcher

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"stream-resolver-go/pkg/httpclient"
	"stream-resolver-go/pkg/types"
	"stream-resolver-go/pkg/urlutil"

	"github.com/PuerkitoBio/goquery"
)

// Episode links carry the season and episode numbers in the URL itself.
// Primary form: ".../1-sezon-5-seriya...". Older pages tokenize the two
// numbers separately, hence the fallback patterns.
var (
	episodeRe      = regexp.MustCompile(`(\d+)-sezon[\w-]*?-(\d+)-seriya`)
	seasonTokenRe  = regexp.MustCompile(`(?:sezon|season)[-_]?(\d+)|(\d+)[-_]?(?:sezon|season)`)
	episodeTokenRe = regexp.MustCompile(`(?:seriya|serija|episode)[-_]?(\d+)|(\d+)[-_]?(?:seriya|serija|episode)`)
)

// Episodes collects all episode links discovered on a series page.
func (m *Matcher) Episodes(ctx context.Context, seriesURL string) ([]types.EpisodeRef, error) {
	cacheKey := "episodes:" + seriesURL
	if cached, ok := m.cache.Get(cacheKey); ok {
		return cached.([]types.EpisodeRef), nil
	}

	body, err := m.fetch.Fetch(ctx, seriesURL, httpclient.Options{Referer: m.cfg.SiteBase + "/"})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var episodes []types.EpisodeRef
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		season, episode, ok := parseEpisodeLink(href)
		if !ok {
			return
		}
		resolved := urlutil.Resolve(href, seriesURL)
		if seen[resolved] {
			return
		}
		seen[resolved] = true
		episodes = append(episodes, types.EpisodeRef{
			URL:     resolved,
			Season:  season,
			Episode: episode,
		})
	})

	m.cache.SetDefault(cacheKey, episodes)
	return episodes, nil
}

// parseEpisodeLink extracts (season, episode) from a link, primary pattern
// first, token fallback second.
func parseEpisodeLink(href string) (int, int, bool) {
	lower := strings.ToLower(href)

	if match := episodeRe.FindStringSubmatch(lower); match != nil {
		season, _ := strconv.Atoi(match[1])
		episode, _ := strconv.Atoi(match[2])
		return season, episode, season > 0 && episode > 0
	}

	season := firstGroup(seasonTokenRe.FindStringSubmatch(lower))
	episode := firstGroup(episodeTokenRe.FindStringSubmatch(lower))
	if season > 0 && episode > 0 {
		return season, episode, true
	}
	return 0, 0, false
}

// firstGroup returns the first non-empty capture as an int.
func firstGroup(match []string) int {
	for i := 1; i < len(match); i++ {
		if match[i] != "" {
			n, _ := strconv.Atoi(match[i])
			return n
		}
	}
	return 0
}

// Package matcher maps an external catalog identifier, and optionally a
// season/episode pair, to a content page URL on the target site.
package matcher

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"stream-resolver-go/pkg/config"
	"stream-resolver-go/pkg/errs"
	"stream-resolver-go/pkg/httpclient"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/metadata"
	"stream-resolver-go/pkg/types"

	gocache "github.com/patrickmn/go-cache"
)

var idRe = regexp.MustCompile(`^tt\d{7,8}$`)

// IsValidID reports whether id matches the external catalog's id pattern.
func IsValidID(id string) bool {
	return idRe.MatchString(id)
}

// Matcher resolves identifiers to content pages.
type Matcher struct {
	cfg   *config.Config
	log   *logging.Logger
	fetch *httpclient.Client
	meta  *metadata.Client
	cache *gocache.Cache // raw search/episode responses, performance only
}

// New creates a matcher.
func New(cfg *config.Config, log *logging.Logger, fetch *httpclient.Client, meta *metadata.Client) *Matcher {
	return &Matcher{
		cfg:   cfg,
		log:   log.WithComponent("matcher"),
		fetch: fetch,
		meta:  meta,
		cache: gocache.New(cfg.SearchCacheTTL, 10*time.Minute),
	}
}

// FindContent resolves an identifier to a content page. Validation happens
// before any network call.
func (m *Matcher) FindContent(ctx context.Context, contentType types.ContentType, externalID string, season, episode int) (*types.ContentMatch, error) {
	if contentType != types.ContentTypeMovie && contentType != types.ContentTypeSeries {
		return nil, errs.Validation("unsupported content type %q", contentType)
	}
	if !IsValidID(externalID) {
		return nil, errs.Validation("malformed identifier %q", externalID)
	}
	wantEpisode := season != 0 || episode != 0
	if wantEpisode {
		if contentType != types.ContentTypeSeries {
			return nil, errs.Validation("season/episode given for non-series request")
		}
		if season < 1 || season > 100 || episode < 1 || episode > 9999 {
			return nil, errs.Validation("season %d episode %d out of range", season, episode)
		}
	}

	result, err := m.locate(ctx, contentType, externalID)
	if err != nil {
		return nil, err
	}

	if !wantEpisode {
		return &types.ContentMatch{URL: result.URL, Title: result.Title}, nil
	}

	episodes, err := m.Episodes(ctx, result.URL)
	if err != nil {
		return nil, err
	}
	for _, ep := range episodes {
		if ep.Season == season && ep.Episode == episode {
			return &types.ContentMatch{
				URL:         ep.URL,
				Title:       fmt.Sprintf("%s S%02dE%02d", result.Title, season, episode),
				SeriesTitle: result.Title,
			}, nil
		}
	}
	return nil, errs.NotFound(fmt.Sprintf("%s:%d:%d", externalID, season, episode))
}

// locate tries identifier-direct search first, then the title fallback chain
// scored by normalized similarity.
func (m *Matcher) locate(ctx context.Context, contentType types.ContentType, externalID string) (*types.SearchResult, error) {
	results, err := m.Search(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		// The site indexes ids; trust the first hit.
		return &results[0], nil
	}

	meta, err := m.meta.Get(ctx, contentType, externalID)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, errs.NotFound(externalID)
		}
		return nil, err
	}

	titles := []string{meta.Name}
	queries := []string{meta.Name}
	if meta.OriginalTitle != "" && meta.OriginalTitle != meta.Name {
		titles = append(titles, meta.OriginalTitle)
		queries = append(queries, meta.OriginalTitle)
	}
	if word := firstSignificantWord(meta.Name); word != "" && word != meta.Name {
		queries = append(queries, word)
	}

	for _, query := range queries {
		results, err := m.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		if best := bestCandidate(results, titles, meta.Year); best != nil {
			m.log.Debug("matched by title", "query", query, "url", best.URL)
			return best, nil
		}
	}

	return nil, errs.NotFound(externalID)
}

// bestCandidate scores all results against each known title for the content
// (localized and original) and returns the highest scorer, or nil when none
// clears the acceptance threshold. Original-language releases often carry
// only the original title, so a single-title comparison misses them.
func bestCandidate(results []types.SearchResult, titles []string, year int) *types.SearchResult {
	var best *types.SearchResult
	bestScore := 0.0
	for i := range results {
		for _, title := range titles {
			score := Score(&results[i], title, year)
			if score > bestScore {
				best = &results[i]
				bestScore = score
			}
		}
	}
	if bestScore < MinScore {
		return nil
	}
	return best
}

// Package metadata fetches canonical title records from the external
// metadata service. Only consulted when identifier-direct search fails.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"stream-resolver-go/pkg/config"
	"stream-resolver-go/pkg/errs"
	"stream-resolver-go/pkg/httpclient"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/types"

	gocache "github.com/patrickmn/go-cache"
)

// Client queries the metadata service.
type Client struct {
	cfg   *config.Config
	log   *logging.Logger
	fetch *httpclient.Client
	cache *gocache.Cache
}

// record mirrors the service's response envelope.
type record struct {
	Meta struct {
		Name          string `json:"name"`
		OriginalTitle string `json:"originalTitle"`
		Year          string `json:"year"`
		ReleaseInfo   string `json:"releaseInfo"`
	} `json:"meta"`
}

// New creates a metadata client with a short-lived response cache.
func New(cfg *config.Config, log *logging.Logger, fetch *httpclient.Client) *Client {
	return &Client{
		cfg:   cfg,
		log:   log.WithComponent("metadata"),
		fetch: fetch,
		cache: gocache.New(cfg.SearchCacheTTL, 10*time.Minute),
	}
}

// Get returns the canonical title record for an external identifier.
func (c *Client) Get(ctx context.Context, contentType types.ContentType, externalID string) (*types.Meta, error) {
	key := string(contentType) + ":" + externalID
	if cached, ok := c.cache.Get(key); ok {
		return cached.(*types.Meta), nil
	}

	url := fmt.Sprintf("%s/%s/%s.json", c.cfg.MetaBase, contentType, externalID)
	body, err := c.fetch.Fetch(ctx, url, httpclient.Options{})
	if err != nil {
		return nil, err
	}

	var rec record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, errs.Scraping("malformed metadata response for %s", externalID)
	}
	if rec.Meta.Name == "" {
		return nil, errs.NotFound(externalID)
	}

	meta := &types.Meta{
		Name:          rec.Meta.Name,
		OriginalTitle: rec.Meta.OriginalTitle,
		Year:          parseYear(rec.Meta.Year, rec.Meta.ReleaseInfo),
	}
	c.cache.SetDefault(key, meta)
	return meta, nil
}

// parseYear handles both plain years and "2008-2013" style release spans.
func parseYear(candidates ...string) int {
	for _, s := range candidates {
		if len(s) >= 4 {
			if y, err := strconv.Atoi(s[:4]); err == nil && y > 1800 {
				return y
			}
		}
	}
	return 0
}

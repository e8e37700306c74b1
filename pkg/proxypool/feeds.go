package proxypool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"stream-resolver-go/pkg/types"

	"golang.org/x/sync/errgroup"
)

// feed is one external proxy list endpoint. Every entry a feed yields is
// tagged with the feed's protocol.
type feed struct {
	url      string
	protocol types.ProxyProtocol
}

var addrRe = regexp.MustCompile(`^(?:\d{1,3}\.){3}\d{1,3}:\d{2,5}$`)

// jsonRecord covers feeds that serve JSON arrays instead of plain text.
type jsonRecord struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// fetchFeeds pulls all configured feeds concurrently and merges the results,
// deduplicated by address. Individual feed failures are logged and skipped;
// the merge only fails when every feed does.
func (p *Pool) fetchFeeds(ctx context.Context) ([]types.Proxy, error) {
	feeds := p.feedList()

	var mu sync.Mutex
	var merged []types.Proxy

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range feeds {
		g.Go(func() error {
			entries, err := p.fetchFeed(gctx, f)
			if err != nil {
				p.log.Warn("proxy feed failed", "url", f.url, "error", err)
				return nil
			}
			mu.Lock()
			merged = append(merged, entries...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return dedupe(merged), nil
}

func (p *Pool) feedList() []feed {
	var feeds []feed
	for _, u := range p.cfg.ProxyFeedsHTTP {
		feeds = append(feeds, feed{url: u, protocol: types.ProxyHTTP})
	}
	for _, u := range p.cfg.ProxyFeedsSOCKS4 {
		feeds = append(feeds, feed{url: u, protocol: types.ProxySOCKS4})
	}
	for _, u := range p.cfg.ProxyFeedsSOCKS5 {
		feeds = append(feeds, feed{url: u, protocol: types.ProxySOCKS5})
	}
	return feeds
}

func (p *Pool) fetchFeed(ctx context.Context, f feed) ([]types.Proxy, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, err
	}

	return parseFeed(body, f.protocol), nil
}

// parseFeed accepts either plain-text ip:port lines or a JSON array of
// {ip, port} records.
func parseFeed(body []byte, protocol types.ProxyProtocol) []types.Proxy {
	trimmed := strings.TrimSpace(string(body))

	if strings.HasPrefix(trimmed, "[") {
		var records []jsonRecord
		if err := json.Unmarshal([]byte(trimmed), &records); err == nil {
			var proxies []types.Proxy
			for _, r := range records {
				addr := fmt.Sprintf("%s:%d", r.IP, r.Port)
				if addrRe.MatchString(addr) {
					proxies = append(proxies, types.Proxy{Address: addr, Protocol: protocol})
				}
			}
			return proxies
		}
	}

	var proxies []types.Proxy
	for _, line := range strings.Split(trimmed, "\n") {
		addr := strings.TrimSpace(line)
		// Some feeds prefix entries with their scheme
		addr = strings.TrimPrefix(addr, string(protocol)+"://")
		if addrRe.MatchString(addr) {
			proxies = append(proxies, types.Proxy{Address: addr, Protocol: protocol})
		}
	}
	return proxies
}

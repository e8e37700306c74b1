// Package proxypool maintains a refreshable pool of outbound proxies for
// reaching the target site when direct access is blocked.
//
// Two caches with independent TTLs back the pool: a raw candidate list
// aggregated from external feeds, and a known-good subset promoted by live
// validation against the protected site. Refreshing candidates never touches
// the known-good set.
package proxypool

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"stream-resolver-go/pkg/block"
	"stream-resolver-go/pkg/config"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/types"

	gocache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	xproxy "golang.org/x/net/proxy"
	"h12.io/socks"
)

const candidatesKey = "candidates"

// Pool manages proxy candidates and the known-good subset.
type Pool struct {
	cfg        *config.Config
	log        *logging.Logger
	candidates *gocache.Cache
	working    *gocache.Cache
	client     *http.Client // plain client for feed fetches
}

// New creates a pool. No feeds are contacted until a proxy is requested.
func New(cfg *config.Config, log *logging.Logger) *Pool {
	return &Pool{
		cfg:        cfg,
		log:        log.WithComponent("proxypool"),
		candidates: gocache.New(cfg.CandidateTTL, 10*time.Minute),
		working:    gocache.New(cfg.WorkingProxyTTL, 10*time.Minute),
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// GetWorking returns a known-good proxy, validating candidates if the
// known-good set is empty. Returns false when no candidate passes after the
// configured number of discovery rounds.
func (p *Pool) GetWorking(ctx context.Context) (types.Proxy, bool) {
	if proxy, ok := p.firstWorking(); ok {
		return proxy, true
	}

	for round := 0; round < p.cfg.ValidateRounds; round++ {
		if round > 0 {
			select {
			case <-time.After(p.cfg.ProxyWaitPause):
			case <-ctx.Done():
				return types.Proxy{}, false
			}
		}

		candidates, err := p.ensureCandidates(ctx)
		if err != nil {
			p.log.Warn("candidate refresh failed", "error", err)
			continue
		}

		// Copy before shuffling so the cached order is left alone.
		shuffled := lo.Shuffle(append([]types.Proxy(nil), candidates...))
		batch := shuffled
		if len(batch) > p.cfg.ValidateBatch {
			batch = batch[:p.cfg.ValidateBatch]
		}

		if proxy, ok := p.validateBatch(ctx, batch); ok {
			p.working.SetDefault(proxy.Address, proxy)
			p.log.Info("promoted working proxy", "address", proxy.Address, "protocol", proxy.Protocol)
			return proxy, true
		}
	}

	p.log.Warn("no working proxy found", "rounds", p.cfg.ValidateRounds)
	return types.Proxy{}, false
}

// MarkBad evicts a proxy from the known-good set after it failed in live use.
func (p *Pool) MarkBad(proxy types.Proxy) {
	p.working.Delete(proxy.Address)
	p.log.Debug("evicted proxy", "address", proxy.Address)
}

// firstWorking returns any entry from the known-good set without re-testing.
func (p *Pool) firstWorking() (types.Proxy, bool) {
	for _, item := range p.working.Items() {
		if proxy, ok := item.Object.(types.Proxy); ok {
			return proxy, true
		}
	}
	return types.Proxy{}, false
}

// ensureCandidates returns the cached candidate list, refreshing it from the
// feeds when expired. The known-good cache is left untouched.
func (p *Pool) ensureCandidates(ctx context.Context) ([]types.Proxy, error) {
	if cached, ok := p.candidates.Get(candidatesKey); ok {
		return cached.([]types.Proxy), nil
	}

	list, err := p.fetchFeeds(ctx)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("all proxy feeds returned empty")
	}

	p.candidates.SetDefault(candidatesKey, list)
	p.log.Info("refreshed proxy candidates", "count", len(list))
	return list, nil
}

// validateBatch tests candidates concurrently against the target site and
// returns the first one that passes. Losers' in-flight requests are cancelled.
func (p *Pool) validateBatch(ctx context.Context, batch []types.Proxy) (types.Proxy, bool) {
	if len(batch) == 0 {
		return types.Proxy{}, false
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan types.Proxy, len(batch))
	done := make(chan struct{}, len(batch))

	for _, candidate := range batch {
		go func(candidate types.Proxy) {
			defer func() { done <- struct{}{} }()
			if p.validate(raceCtx, candidate) {
				select {
				case results <- candidate:
				default:
				}
			}
		}(candidate)
	}

	finished := 0
	for finished < len(batch) {
		select {
		case proxy := <-results:
			cancel()
			return proxy, true
		case <-done:
			finished++
		case <-ctx.Done():
			return types.Proxy{}, false
		}
	}

	select {
	case proxy := <-results:
		return proxy, true
	default:
		return types.Proxy{}, false
	}
}

// validate performs a live test request through the candidate. Passing means
// HTTP 200, not a challenge page, and a body above the sanity threshold that
// guards against garbage responses masquerading as success.
func (p *Pool) validate(ctx context.Context, candidate types.Proxy) bool {
	transport, err := p.Transport(candidate)
	if err != nil {
		return false
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   10 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.SiteBase, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return false
	}
	if block.IsChallengeBody(body) {
		return false
	}
	return len(body) >= p.cfg.MinProxyBody
}

// Transport builds an HTTP transport dispatching through the proxy,
// keyed by its protocol.
func (p *Pool) Transport(proxy types.Proxy) (*http.Transport, error) {
	transport := &http.Transport{
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		DisableKeepAlives:     true,
	}

	switch proxy.Protocol {
	case types.ProxyHTTP:
		proxyURL, err := url.Parse("http://" + proxy.Address)
		if err != nil {
			return nil, fmt.Errorf("bad proxy address %q: %w", proxy.Address, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	case types.ProxySOCKS5:
		dialer, err := xproxy.SOCKS5("tcp", proxy.Address, nil, &net.Dialer{Timeout: 10 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer for %q: %w", proxy.Address, err)
		}
		if contextDialer, ok := dialer.(xproxy.ContextDialer); ok {
			transport.DialContext = contextDialer.DialContext
		} else {
			transport.Dial = dialer.Dial
		}
	case types.ProxySOCKS4:
		dial := socks.Dial(fmt.Sprintf("socks4://%s?timeout=10s", proxy.Address))
		transport.Dial = dial
	default:
		return nil, fmt.Errorf("unsupported proxy protocol %q", proxy.Protocol)
	}

	return transport, nil
}

// WorkingCount reports the size of the known-good set.
func (p *Pool) WorkingCount() int {
	return p.working.ItemCount()
}

var userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// dedupe removes duplicate addresses, keeping the first protocol tag seen.
func dedupe(proxies []types.Proxy) []types.Proxy {
	return lo.UniqBy(proxies, func(p types.Proxy) string { return p.Address })
}

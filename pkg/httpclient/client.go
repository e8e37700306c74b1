// Package httpclient performs outbound fetches with bounded retry,
// exponential backoff, and a two-phase direct/proxy fallback keyed on the
// target site's anti-bot block signal.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"stream-resolver-go/pkg/block"
	"stream-resolver-go/pkg/config"
	"stream-resolver-go/pkg/errs"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/types"

	"golang.org/x/sync/semaphore"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ProxySource supplies validated proxies for the proxy phase.
type ProxySource interface {
	GetWorking(ctx context.Context) (types.Proxy, bool)
	MarkBad(proxy types.Proxy)
	Transport(proxy types.Proxy) (*http.Transport, error)
}

// Options carries per-request fetch parameters.
type Options struct {
	Referer string
	Headers map[string]string
}

// Client is the resilient fetcher. A process-wide semaphore caps concurrent
// outbound requests; excess callers queue in arrival order.
type Client struct {
	cfg      *config.Config
	log      *logging.Logger
	pool     ProxySource
	siteHost string

	direct  *http.Client
	browser *http.Client // browser TLS fingerprint, used against the target site

	mu           sync.Mutex
	proxyClients map[string]*http.Client

	limiter *semaphore.Weighted
}

// New creates a fetcher. pool may be nil, which disables the proxy phase.
func New(cfg *config.Config, log *logging.Logger, pool ProxySource) *Client {
	siteHost := ""
	if parsed, err := url.Parse(cfg.SiteBase); err == nil {
		siteHost = parsed.Host
	}

	return &Client{
		cfg:      cfg,
		log:      log.WithComponent("httpclient"),
		pool:     pool,
		siteHost: siteHost,
		direct: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: cfg.FetchTimeout,
			},
		},
		browser: &http.Client{
			Transport: newBrowserRoundTripper(),
		},
		proxyClients: make(map[string]*http.Client),
		limiter:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// Fetch performs a GET and returns the response body. Failure is typed:
// errs.KindTimeout when the per-attempt bound was exceeded, errs.KindNetwork
// otherwise, always the most specific error seen across both phases.
func (c *Client) Fetch(ctx context.Context, rawURL string, opts Options) ([]byte, error) {
	if err := c.limiter.Acquire(ctx, 1); err != nil {
		return nil, errs.Network(0, "admission cancelled", err)
	}
	defer c.limiter.Release(1)

	onTarget := c.onTargetDomain(rawURL)
	forceProxy := c.cfg.ProxyAlways && onTarget && c.pool != nil

	var lastErr error
	blocked := false

	if !forceProxy {
		body, blockSignal, err := c.directPhase(ctx, rawURL, opts)
		if err == nil {
			return body, nil
		}
		lastErr = err
		blocked = blockSignal
		// A block against a non-protected host has no proxy fallback.
		if !blocked || !onTarget || c.pool == nil {
			return nil, lastErr
		}
	}

	body, err := c.proxyPhase(ctx, rawURL, opts)
	if err == nil {
		return body, nil
	}
	// Prefer the more specific direct-phase error when the proxy phase only
	// produced a generic exhaustion failure.
	var pe *errs.Error
	if lastErr == nil || (errors.As(err, &pe) && pe.Status != 0) {
		lastErr = err
	}
	return nil, lastErr
}

// directPhase attempts the request without a proxy, backing off between
// attempts. A blocked signal aborts the phase immediately rather than
// burning the remaining retries.
func (c *Client) directPhase(ctx context.Context, rawURL string, opts Options) ([]byte, bool, error) {
	client := c.direct
	if c.onTargetDomain(rawURL) {
		client = c.browser
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.FetchAttempts; attempt++ {
		body, status, err := c.attempt(ctx, client, rawURL, opts)
		if err == nil {
			if block.Detected(status, body) {
				c.log.Debug("blocked response, switching to proxy phase", "url", rawURL, "status", status)
				return nil, true, errs.Network(status, "blocked by upstream", nil)
			}
			if status >= 200 && status < 300 {
				return body, false, nil
			}
			lastErr = errs.Network(status, "unexpected status", nil)
		} else {
			lastErr = classify(err)
		}

		if ctx.Err() != nil {
			return nil, false, lastErr
		}
		if attempt < c.cfg.FetchAttempts {
			backoff := c.cfg.BackoffBase * (1 << (attempt - 1))
			c.log.Debug("retrying", "url", rawURL, "attempt", attempt, "backoff", backoff.String())
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, false, lastErr
			}
		}
	}
	return nil, false, lastErr
}

// proxyPhase rotates through distinct pool proxies until one succeeds.
// A proxy that fails its bounded retries is evicted from the known-good set
// before the next candidate is drawn.
func (c *Client) proxyPhase(ctx context.Context, rawURL string, opts Options) ([]byte, error) {
	tried := make(map[string]bool)
	var lastErr error
	waited := false

	for len(tried) < c.cfg.MaxProxies {
		proxy, ok := c.pool.GetWorking(ctx)
		if !ok {
			break
		}
		if tried[proxy.Address] {
			// Pool has nothing fresh to offer; give it one pause to
			// refresh, then stop rather than spinning until the caller
			// cancels. Revalidation can re-promote an address that keeps
			// failing in live use, so the same proxy coming back is not
			// a transient condition.
			if waited {
				break
			}
			waited = true
			select {
			case <-time.After(c.cfg.ProxyWaitPause):
				continue
			case <-ctx.Done():
				return nil, classify(ctx.Err())
			}
		}
		waited = false
		tried[proxy.Address] = true

		client, err := c.clientForProxy(proxy)
		if err != nil {
			c.pool.MarkBad(proxy)
			continue
		}

		for attempt := 1; attempt <= 2; attempt++ {
			body, status, err := c.attempt(ctx, client, rawURL, opts)
			if err == nil && status >= 200 && status < 300 && !block.Detected(status, body) {
				c.log.Debug("proxy fetch succeeded", "url", rawURL, "proxy", proxy.Address)
				return body, nil
			}
			if err != nil {
				lastErr = classify(err)
			} else {
				lastErr = errs.Network(status, "unexpected status via proxy", nil)
			}
			if ctx.Err() != nil {
				return nil, lastErr
			}
		}

		c.log.Debug("marking proxy bad", "proxy", proxy.Address)
		c.pool.MarkBad(proxy)
	}

	if lastErr == nil {
		lastErr = errs.Network(0, "proxy phase exhausted", nil)
	}
	return nil, lastErr
}

// attempt runs one bounded request and buffers the body.
func (c *Client) attempt(ctx context.Context, client *http.Client, rawURL string, opts Options) ([]byte, int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	if opts.Referer != "" {
		req.Header.Set("Referer", opts.Referer)
	}
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// Stream performs a GET without buffering, for relay passthrough. No retry
// or proxy fallback: segment requests are latency-sensitive.
func (c *Client) Stream(ctx context.Context, rawURL, referer string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	return c.direct.Do(req)
}

func (c *Client) onTargetDomain(rawURL string) bool {
	if c.siteHost == "" {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return parsed.Host == c.siteHost
}

// clientForProxy returns a cached per-proxy client, creating it on first use.
func (c *Client) clientForProxy(proxy types.Proxy) (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.proxyClients[proxy.Address]; ok {
		return client, nil
	}

	transport, err := c.pool.Transport(proxy)
	if err != nil {
		return nil, fmt.Errorf("transport for %s: %w", proxy.Address, err)
	}
	client := &http.Client{Transport: transport}
	c.proxyClients[proxy.Address] = client
	return client, nil
}

// classify maps a transport error to the pipeline error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return errs.Timeout("request timed out", err)
	}
	return errs.Network(0, "request failed", err)
}

// Package streams provides the HLS relay for clients that cannot attach
// playback headers themselves. Playlists are rewritten so every URI routes
// back through the relay, which adds the upstream Referer on each fetch.
package streams

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"stream-resolver-go/pkg/httpclient"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/urlutil"
)

var uriAttrRe = regexp.MustCompile(`URI="([^"]+)"`)

// Relay serves the /relay endpoints.
type Relay struct {
	log     *logging.Logger
	fetch   *httpclient.Client
	baseURL string
}

// NewRelay creates a relay rooted at baseURL.
func NewRelay(log *logging.Logger, fetch *httpclient.Client, baseURL string) *Relay {
	return &Relay{
		log:     log.WithComponent("relay"),
		fetch:   fetch,
		baseURL: baseURL,
	}
}

// RegisterRoutes attaches the relay endpoints to the router.
func (rl *Relay) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /relay/playlist.m3u8", rl.handlePlaylist)
	mux.HandleFunc("GET /relay/media", rl.handleMedia)
}

// handlePlaylist fetches an upstream playlist with the required Referer and
// rewrites every URI in it to route back through the relay.
func (rl *Relay) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	upstream, referer, ok := relayParams(w, r)
	if !ok {
		return
	}

	body, err := rl.fetch.Fetch(r.Context(), upstream, httpclient.Options{Referer: referer})
	if err != nil {
		rl.log.Warn("playlist fetch failed", "url", upstream, "error", err)
		http.Error(w, "upstream fetch failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(rl.rewrite(body, upstream, referer))
}

// handleMedia streams one segment or key through without buffering.
func (rl *Relay) handleMedia(w http.ResponseWriter, r *http.Request) {
	upstream, referer, ok := relayParams(w, r)
	if !ok {
		return
	}

	resp, err := rl.fetch.Stream(r.Context(), upstream, referer)
	if err != nil {
		rl.log.Warn("media fetch failed", "url", upstream, "error", err)
		http.Error(w, "upstream fetch failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for _, header := range []string{"Content-Type", "Content-Length", "Accept-Ranges"} {
		if value := resp.Header.Get(header); value != "" {
			w.Header().Set(header, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// rewrite routes every URI in an HLS playlist back through the relay.
// Nested playlists keep the playlist endpoint so they are rewritten too.
func (rl *Relay) rewrite(playlist []byte, upstream, referer string) []byte {
	var out strings.Builder

	scanner := bufio.NewScanner(strings.NewReader(string(playlist)))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			// keep blank lines
		case strings.HasPrefix(trimmed, "#"):
			line = uriAttrRe.ReplaceAllStringFunc(line, func(match string) string {
				uri := uriAttrRe.FindStringSubmatch(match)[1]
				return fmt.Sprintf(`URI="%s"`, rl.relayURL(uri, upstream, referer))
			})
		default:
			line = rl.relayURL(trimmed, upstream, referer)
		}

		out.WriteString(line)
		out.WriteString("\n")
	}

	return []byte(out.String())
}

func (rl *Relay) relayURL(uri, upstream, referer string) string {
	absolute := urlutil.Resolve(uri, upstream)
	endpoint := "/relay/media"
	if strings.Contains(absolute, ".m3u8") {
		endpoint = "/relay/playlist.m3u8"
	}
	return fmt.Sprintf("%s%s?u=%s&r=%s",
		rl.baseURL, endpoint, urlutil.EncodeParam(absolute), urlutil.EncodeParam(referer))
}

// relayParams decodes and validates the u/r query parameters.
func relayParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	upstream, err := urlutil.DecodeParam(r.URL.Query().Get("u"))
	if err != nil || upstream == "" {
		http.Error(w, "bad target parameter", http.StatusBadRequest)
		return "", "", false
	}
	referer, err := urlutil.DecodeParam(r.URL.Query().Get("r"))
	if err != nil {
		http.Error(w, "bad referer parameter", http.StatusBadRequest)
		return "", "", false
	}
	return upstream, referer, true
}

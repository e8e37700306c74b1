// Package types defines core domain types used throughout the application.
package types

// ContentType identifies the kind of catalog entry being resolved.
type ContentType string

const (
	ContentTypeMovie  ContentType = "movie"
	ContentTypeSeries ContentType = "series"
)

// SearchResult is one entry parsed from the site's search response.
type SearchResult struct {
	URL   string
	Title string
	Year  int // 0 when the snippet carries no year
	Type  ContentType
	Slug  string
}

// ContentMatch is the resolved content page for a request.
type ContentMatch struct {
	URL         string
	Title       string
	SeriesTitle string // set for series only
}

// EpisodeRef is one episode link discovered on a series page.
type EpisodeRef struct {
	URL     string
	Season  int
	Episode int
}

// Subtitle is a native subtitle track advertised by the embed player.
type Subtitle struct {
	ID      string `json:"id"`
	Lang    string `json:"lang"`
	Label   string `json:"label"`
	URL     string `json:"url"`
	Default bool   `json:"default"`
}

// AudioTrack is a named alternate audio rendition from the HLS manifest.
// URL is absolute, resolved against the manifest's base path.
type AudioTrack struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// AltSource describes an alternate embed provider listed on a content page.
// Active marks the provider the page currently serves by default.
type AltSource struct {
	Name    string
	VideoID string
	Active  bool
}

// ExtractionResult is built incrementally while scraping one embed page.
// It is usable only when VideoURL is non-empty; tracks without a video URL
// must not be returned as success.
type ExtractionResult struct {
	VideoURL    string
	Subtitles   []Subtitle
	AudioTracks []AudioTrack
	Source      string // display name of the provider that served the stream
	AltSources  []AltSource
	EmbedOrigin string // scheme://host of the embed that produced VideoURL
}

// ProxyProtocol is the transport protocol a proxy speaks.
type ProxyProtocol string

const (
	ProxyHTTP   ProxyProtocol = "http"
	ProxySOCKS4 ProxyProtocol = "socks4"
	ProxySOCKS5 ProxyProtocol = "socks5"
)

// Proxy is a candidate or known-good outbound proxy.
type Proxy struct {
	Address  string // "ip:port"
	Protocol ProxyProtocol
}

// Meta is the subset of the external metadata service's record that the
// matcher needs for title-fallback search.
type Meta struct {
	Name          string
	OriginalTitle string
	Year          int
}

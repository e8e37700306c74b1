// Package stremio exposes the resolution pipeline as a Stremio addon:
// manifest and stream endpoints, plus the mapping from extraction results
// to the protocol's stream shape.
package stremio

// Manifest is the Stremio addon manifest.
var Manifest = map[string]interface{}{
	"id":          "org.streamresolver.addon",
	"version":     "1.0.0",
	"name":        "StreamResolver",
	"description": "Streams resolved from uakino",
	"resources":   []string{"stream"},
	"types":       []string{"movie", "series"},
	"catalogs":    []map[string]interface{}{},
	"idPrefixes":  []string{"tt"},
}

// Subtitle is a subtitle entry attached to a stream.
type Subtitle struct {
	ID   string `json:"id"`
	Lang string `json:"lang"`
	URL  string `json:"url"`
}

// Stream is one playable entry in a stream response.
type Stream struct {
	URL           string         `json:"url"`
	Name          string         `json:"name,omitempty"`
	Title         string         `json:"title,omitempty"`
	Subtitles     []Subtitle     `json:"subtitles,omitempty"`
	BehaviorHints *BehaviorHints `json:"behaviorHints,omitempty"`
}

// BehaviorHints carries playback metadata, including the request headers a
// capable client must attach.
type BehaviorHints struct {
	NotWebReady  bool          `json:"notWebReady,omitempty"`
	BingeGroup   string        `json:"bingeGroup,omitempty"`
	ProxyHeaders *ProxyHeaders `json:"proxyHeaders,omitempty"`
}

// ProxyHeaders is the protocol's header-requirement envelope.
type ProxyHeaders struct {
	Request map[string]string `json:"request,omitempty"`
}

// StreamResponse is the body of a stream endpoint response.
type StreamResponse struct {
	Streams []Stream `json:"streams"`
}

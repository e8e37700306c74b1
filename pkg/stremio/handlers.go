package stremio

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stream-resolver-go/pkg/config"
	"stream-resolver-go/pkg/errs"
	"stream-resolver-go/pkg/extractors"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/matcher"
	"stream-resolver-go/pkg/types"

	gocache "github.com/patrickmn/go-cache"
)

// Handlers serves the addon endpoints.
type Handlers struct {
	cfg       *config.Config
	log       *logging.Logger
	matcher   *matcher.Matcher
	extractor *extractors.Extractor
	// successCache holds recently resolved stream lists. It softens
	// duplicate concurrent requests for the same id; it is not in-flight
	// coalescing and does not pretend to be.
	successCache *gocache.Cache
}

// NewHandlers creates the addon handlers.
func NewHandlers(cfg *config.Config, log *logging.Logger, m *matcher.Matcher, e *extractors.Extractor) *Handlers {
	return &Handlers{
		cfg:          cfg,
		log:          log.WithComponent("stremio"),
		matcher:      m,
		extractor:    e,
		successCache: gocache.New(cfg.StreamCacheTTL, 10*time.Minute),
	}
}

// RegisterRoutes attaches the addon endpoints to the router.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /manifest.json", h.handleManifest)
	mux.HandleFunc("GET /stream/{type}/{id}", h.handleStream)
}

func (h *Handlers) handleManifest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Manifest)
}

// handleStream resolves /stream/{type}/{id}.json where id is either
// "tt0499549" or "tt0944947:1:2" for a series episode.
func (h *Handlers) handleStream(w http.ResponseWriter, r *http.Request) {
	contentType := types.ContentType(r.PathValue("type"))
	rawID := strings.TrimSuffix(r.PathValue("id"), ".json")

	if cached, ok := h.successCache.Get(cacheKey(contentType, rawID)); ok {
		writeJSON(w, http.StatusOK, StreamResponse{Streams: cached.([]Stream)})
		return
	}

	externalID, season, episode, err := parseStreamID(rawID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errs.UserMessage(err)})
		return
	}

	ctx := r.Context()
	match, err := h.matcher.FindContent(ctx, contentType, externalID, season, episode)
	if err != nil {
		h.respondError(w, rawID, err)
		return
	}

	result, err := h.extractor.Extract(ctx, match.URL)
	if err != nil {
		h.respondError(w, rawID, err)
		return
	}

	relayBase := ""
	if h.cfg.RelayEnabled {
		relayBase = h.cfg.BaseURL
	}
	streams := ToStreams(result, match.Title, relayBase)
	if len(streams) > 0 {
		h.successCache.SetDefault(cacheKey(contentType, rawID), streams)
	}
	writeJSON(w, http.StatusOK, StreamResponse{Streams: streams})
}

// respondError distinguishes "nothing available" from "something went
// wrong": bad input is a 400, everything else degrades to an empty stream
// list so players fall through to other addons.
func (h *Handlers) respondError(w http.ResponseWriter, rawID string, err error) {
	if errs.IsValidation(err) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errs.UserMessage(err)})
		return
	}
	if errs.IsNotFound(err) {
		h.log.Debug("no match", "id", rawID)
	} else {
		h.log.Warn("resolution failed", "id", rawID, "error", err)
	}
	writeJSON(w, http.StatusOK, StreamResponse{Streams: []Stream{}})
}

// parseStreamID splits "tt0944947:1:2" into its identifier and episode
// coordinates. Coordinates must be positive when present; zero would make
// the three-part form indistinguishable from a plain id downstream. Range
// validation of the pieces belongs to the matcher.
func parseStreamID(rawID string) (string, int, int, error) {
	parts := strings.Split(rawID, ":")
	switch len(parts) {
	case 1:
		return parts[0], 0, 0, nil
	case 3:
		season, err := strconv.Atoi(parts[1])
		if err != nil || season < 1 {
			return "", 0, 0, errs.Validation("bad season %q", parts[1])
		}
		episode, err := strconv.Atoi(parts[2])
		if err != nil || episode < 1 {
			return "", 0, 0, errs.Validation("bad episode %q", parts[2])
		}
		return parts[0], season, episode, nil
	default:
		return "", 0, 0, errs.Validation("bad stream id %q", rawID)
	}
}

func cacheKey(contentType types.ContentType, rawID string) string {
	return string(contentType) + ":" + rawID
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

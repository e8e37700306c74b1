package extractors

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"stream-resolver-go/pkg/config"
	"stream-resolver-go/pkg/errs"
	"stream-resolver-go/pkg/httpclient"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/types"
	"stream-resolver-go/pkg/urlutil"

	"github.com/PuerkitoBio/goquery"
)

// partsRe pulls the quoted-string array passed to the player's decode call
// out of the unpacked source.
var partsRe = regexp.MustCompile(`(?s)decode\s*\(\s*\[(.*?)\]\s*\)`)
var quotedRe = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)

// Extractor scrapes content pages and their embed frames for a playable
// media URL, subtitle tracks, and audio renditions.
type Extractor struct {
	cfg    *config.Config
	log    *logging.Logger
	fetch  *httpclient.Client
	cipher *Pipeline
}

// New creates an extractor with the configured cipher stage order.
func New(cfg *config.Config, log *logging.Logger, fetch *httpclient.Client) (*Extractor, error) {
	pipeline, err := NewPipeline(cfg.CipherStages)
	if err != nil {
		return nil, err
	}
	return &Extractor{
		cfg:    cfg,
		log:    log.WithComponent("extractor"),
		fetch:  fetch,
		cipher: pipeline,
	}, nil
}

// Extract resolves one content page to an ExtractionResult. The primary
// embed frame is scraped first; when it yields no video URL the page's
// alternate providers are tried in order until one does.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (*types.ExtractionResult, error) {
	body, err := e.fetch.Fetch(ctx, pageURL, httpclient.Options{Referer: e.cfg.SiteBase + "/"})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, errs.Scraping("content page is not parseable HTML")
	}

	frameURL := findFrameSrc(doc)
	if frameURL == "" {
		return nil, errs.Scraping("no player frame on page %s", pageURL)
	}
	frameURL = urlutil.Resolve(frameURL, pageURL)

	altSources := collectAltSources(doc)

	result, err := e.scrapeFrame(ctx, frameURL, pageURL)
	if err != nil {
		e.log.Debug("primary frame scrape failed", "frame", frameURL, "error", err)
		result = &types.ExtractionResult{}
	}
	result.AltSources = altSources

	if result.VideoURL != "" {
		// Attribution only: the active alternate names the provider the
		// page serves by default.
		for _, alt := range altSources {
			if alt.Active {
				result.Source = alt.Name
				break
			}
		}
		return result, nil
	}

	for _, alt := range altSources {
		if alt.Active {
			continue
		}
		altURL := e.altFrameURL(frameURL, alt)
		if altURL == "" {
			continue
		}
		altResult, err := e.scrapeFrame(ctx, altURL, pageURL)
		if err != nil {
			e.log.Debug("alternate frame scrape failed", "source", alt.Name, "error", err)
			continue
		}
		if altResult.VideoURL != "" {
			altResult.Source = alt.Name
			altResult.AltSources = altSources
			return altResult, nil
		}
	}

	return nil, errs.Scraping("no video URL after exhausting all sources for %s", pageURL)
}

// scrapeFrame fetches one embed frame (content page referer is required by
// upstream) and recovers the media URL plus track metadata.
func (e *Extractor) scrapeFrame(ctx context.Context, frameURL, pageURL string) (*types.ExtractionResult, error) {
	body, err := e.fetch.Fetch(ctx, frameURL, httpclient.Options{Referer: pageURL})
	if err != nil {
		return nil, err
	}
	html := string(body)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errs.Scraping("embed frame is not parseable HTML")
	}

	result := &types.ExtractionResult{
		Subtitles: collectSubtitles(doc, frameURL),
	}

	videoURL := e.decodeVideoURL(html)
	if videoURL == "" {
		videoURL = structuredDataURL(doc)
	}
	if videoURL == "" {
		return result, nil
	}

	result.VideoURL = videoURL
	result.EmbedOrigin = urlutil.Origin(frameURL)

	// Audio-track extraction failure is non-fatal.
	manifest, err := e.fetch.Fetch(ctx, videoURL, httpclient.Options{Referer: result.EmbedOrigin + "/"})
	if err != nil {
		e.log.Debug("audio track fetch failed", "url", videoURL, "error", err)
	} else {
		result.AudioTracks = ParseAudioGroups(manifest, videoURL)
	}

	return result, nil
}

// decodeVideoURL finds the packed player blob, unpacks it, and runs the
// cipher over the decode-call payload.
func (e *Extractor) decodeVideoURL(html string) string {
	packed := FindPacked(html)
	if packed == "" {
		return ""
	}

	unpacked, err := Unpack(packed)
	if err != nil {
		e.log.Debug("unpack failed", "error", err)
		return ""
	}

	arrMatch := partsRe.FindStringSubmatch(unpacked)
	if arrMatch == nil {
		return ""
	}
	var parts []string
	for _, quoted := range quotedRe.FindAllStringSubmatch(arrMatch[1], -1) {
		parts = append(parts, quoted[1])
	}
	if len(parts) == 0 {
		return ""
	}

	decoded, err := DecodeAuto(parts, e.cipher)
	if err != nil {
		e.log.Debug("cipher decode failed", "error", err)
		return ""
	}
	return decoded
}

// structuredDataURL is the secondary extraction path: a JSON-LD block with
// a direct content URL field.
func structuredDataURL(doc *goquery.Document) string {
	var found string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var payload struct {
			ContentURL string `json:"contentUrl"`
			EmbedURL   string `json:"embedUrl"`
		}
		if err := json.Unmarshal([]byte(sel.Text()), &payload); err != nil {
			return true
		}
		if LooksLikeURL(payload.ContentURL) {
			found = payload.ContentURL
			return false
		}
		if LooksLikeURL(payload.EmbedURL) {
			found = payload.EmbedURL
			return false
		}
		return true
	})
	return found
}

// findFrameSrc locates the player iframe, primary attribute first, then the
// lazy-load attribute.
func findFrameSrc(doc *goquery.Document) string {
	var src string
	doc.Find("iframe").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		for _, attr := range []string{"src", "data-src"} {
			if val, ok := sel.Attr(attr); ok {
				val = strings.TrimSpace(val)
				if val != "" && !strings.HasPrefix(val, "about:") && !strings.HasPrefix(val, "javascript:") {
					src = val
					return false
				}
			}
		}
		return true
	})
	return src
}

// collectAltSources reads the alternate-provider descriptors advertised on
// the content page.
func collectAltSources(doc *goquery.Document) []types.AltSource {
	var sources []types.AltSource
	doc.Find("[data-source-name]").Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr("data-source-name")
		if name == "" {
			return
		}
		videoID, _ := sel.Attr("data-video-id")
		sources = append(sources, types.AltSource{
			Name:    name,
			VideoID: videoID,
			Active:  sel.HasClass("active"),
		})
	})
	return sources
}

// collectSubtitles reads native track elements from the embed frame.
func collectSubtitles(doc *goquery.Document, frameURL string) []types.Subtitle {
	var subs []types.Subtitle
	doc.Find("track").Each(func(i int, sel *goquery.Selection) {
		kind, _ := sel.Attr("kind")
		if kind != "" && kind != "subtitles" && kind != "captions" {
			return
		}
		src, _ := sel.Attr("src")
		if src == "" {
			return
		}
		lang, _ := sel.Attr("srclang")
		label, _ := sel.Attr("label")
		if label == "" {
			label = lang
		}
		_, hasDefault := sel.Attr("default")

		subs = append(subs, types.Subtitle{
			ID:      lang + "-" + strings.TrimSpace(label),
			Lang:    lang,
			Label:   label,
			URL:     urlutil.Resolve(src, frameURL),
			Default: hasDefault,
		})
	})
	return subs
}

// altFrameURL builds the embed URL for an alternate provider. A provider
// carrying its own video id uses the generic alternate embed host; the
// named mirror is selected on the primary frame with a query parameter.
func (e *Extractor) altFrameURL(frameURL string, alt types.AltSource) string {
	if alt.VideoID != "" {
		return e.cfg.AltEmbedBase + alt.VideoID
	}
	sep := "?"
	if strings.Contains(frameURL, "?") {
		sep = "&"
	}
	return frameURL + sep + "player=" + strings.ToLower(strings.ReplaceAll(alt.Name, " ", "-"))
}

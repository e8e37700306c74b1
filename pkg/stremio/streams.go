package stremio

import (
	"fmt"

	"stream-resolver-go/pkg/types"
	"stream-resolver-go/pkg/urlutil"
)

const addonName = "StreamResolver"

// ToStreams shapes an extraction result into the protocol's stream list.
// A result without a video URL yields an empty list: absence of playable
// media is a normal response, not a pipeline fault.
//
// Referer and Origin come from the embed origin that actually produced the
// result. Alternate providers require different Referer values, so a
// hardcoded default would break every non-primary source.
func ToStreams(result *types.ExtractionResult, displayTitle, relayBase string) []Stream {
	if result == nil || result.VideoURL == "" {
		return []Stream{}
	}

	referer := result.EmbedOrigin + "/"
	headers := map[string]string{
		"Referer": referer,
		"Origin":  result.EmbedOrigin,
	}

	title := displayTitle
	if result.Source != "" {
		title = fmt.Sprintf("%s\n%s", displayTitle, result.Source)
	}

	stream := Stream{
		Name:      addonName,
		Title:     title,
		Subtitles: toSubtitles(result.Subtitles),
	}

	if relayBase != "" {
		// Clients that cannot set playback headers route through the relay,
		// which attaches the Referer upstream.
		stream.URL = fmt.Sprintf("%s/relay/playlist.m3u8?u=%s&r=%s",
			relayBase, urlutil.EncodeParam(result.VideoURL), urlutil.EncodeParam(referer))
	} else {
		stream.URL = result.VideoURL
		stream.BehaviorHints = &BehaviorHints{
			NotWebReady:  true,
			BingeGroup:   addonName,
			ProxyHeaders: &ProxyHeaders{Request: headers},
		}
	}

	return []Stream{stream}
}

func toSubtitles(subs []types.Subtitle) []Subtitle {
	if len(subs) == 0 {
		return nil
	}
	out := make([]Subtitle, 0, len(subs))
	for _, s := range subs {
		out = append(out, Subtitle{ID: s.ID, Lang: s.Lang, URL: s.URL})
	}
	return out
}

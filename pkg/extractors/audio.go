package extractors

import (
	"bufio"
	"regexp"
	"strings"

	"stream-resolver-go/pkg/types"
	"stream-resolver-go/pkg/urlutil"
)

var mediaAttrRe = regexp.MustCompile(`([A-Z0-9\-]+)=("[^"]*"|[^,]*)`)

// ParseAudioGroups extracts named alternate audio renditions from an HLS
// manifest, resolving each URI against the manifest's own base path.
func ParseAudioGroups(manifest []byte, manifestURL string) []types.AudioTrack {
	var tracks []types.AudioTrack

	scanner := bufio.NewScanner(strings.NewReader(string(manifest)))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "#EXT-X-MEDIA:") {
			continue
		}

		attrs := parseAttrs(strings.TrimPrefix(line, "#EXT-X-MEDIA:"))
		if attrs["TYPE"] != "AUDIO" {
			continue
		}
		uri := attrs["URI"]
		if uri == "" {
			continue
		}
		name := attrs["NAME"]
		if name == "" {
			name = attrs["GROUP-ID"]
		}

		tracks = append(tracks, types.AudioTrack{
			Name: name,
			URL:  urlutil.Resolve(uri, manifestURL),
		})
	}

	return tracks
}

func parseAttrs(s string) map[string]string {
	attrs := make(map[string]string)
	for _, match := range mediaAttrRe.FindAllStringSubmatch(s, -1) {
		attrs[match[1]] = strings.Trim(match[2], `"`)
	}
	return attrs
}

package stremio

import (
	"net/url"
	"strings"
	"testing"

	"stream-resolver-go/pkg/types"
	"stream-resolver-go/pkg/urlutil"
)

func TestToStreamsEmptyWhenNoVideoURL(t *testing.T) {
	tests := []struct {
		name   string
		result *types.ExtractionResult
	}{
		{"nil result", nil},
		{"no video url", &types.ExtractionResult{Subtitles: []types.Subtitle{{ID: "en"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			streams := ToStreams(tt.result, "Avatar", "")
			if streams == nil {
				t.Fatal("ToStreams() = nil, want empty slice")
			}
			if len(streams) != 0 {
				t.Errorf("ToStreams() = %+v, want empty", streams)
			}
		})
	}
}

func TestToStreamsDirectWithHeaderHints(t *testing.T) {
	result := &types.ExtractionResult{
		VideoURL:    "https://cdn.example.com/master.m3u8",
		EmbedOrigin: "https://embed.example.com",
		Subtitles: []types.Subtitle{
			{ID: "ua-Ukrainian", Lang: "ua", URL: "https://embed.example.com/subs/ua.vtt"},
		},
	}

	streams := ToStreams(result, "Avatar", "")
	if len(streams) != 1 {
		t.Fatalf("got %d streams, want 1", len(streams))
	}
	s := streams[0]
	if s.URL != result.VideoURL {
		t.Errorf("URL = %q", s.URL)
	}
	if s.BehaviorHints == nil || s.BehaviorHints.ProxyHeaders == nil {
		t.Fatal("missing behavior hints")
	}
	if !s.BehaviorHints.NotWebReady {
		t.Error("NotWebReady = false")
	}
	headers := s.BehaviorHints.ProxyHeaders.Request
	if headers["Referer"] != "https://embed.example.com/" {
		t.Errorf("Referer = %q", headers["Referer"])
	}
	if headers["Origin"] != "https://embed.example.com" {
		t.Errorf("Origin = %q", headers["Origin"])
	}
	if len(s.Subtitles) != 1 || s.Subtitles[0].Lang != "ua" {
		t.Errorf("Subtitles = %+v", s.Subtitles)
	}
}

func TestToStreamsRelay(t *testing.T) {
	result := &types.ExtractionResult{
		VideoURL:    "https://cdn.example.com/master.m3u8",
		EmbedOrigin: "https://embed.example.com",
	}

	streams := ToStreams(result, "Avatar", "http://localhost:7860")
	if len(streams) != 1 {
		t.Fatalf("got %d streams, want 1", len(streams))
	}
	s := streams[0]
	if s.BehaviorHints != nil {
		t.Error("relay stream should not carry header hints")
	}
	if !strings.HasPrefix(s.URL, "http://localhost:7860/relay/playlist.m3u8?") {
		t.Fatalf("URL = %q", s.URL)
	}

	parsed, err := url.Parse(s.URL)
	if err != nil {
		t.Fatal(err)
	}
	upstream, err := urlutil.DecodeParam(parsed.Query().Get("u"))
	if err != nil || upstream != result.VideoURL {
		t.Errorf("u param = (%q, %v)", upstream, err)
	}
	referer, err := urlutil.DecodeParam(parsed.Query().Get("r"))
	if err != nil || referer != "https://embed.example.com/" {
		t.Errorf("r param = (%q, %v)", referer, err)
	}
}

func TestToStreamsSourceAttribution(t *testing.T) {
	result := &types.ExtractionResult{
		VideoURL:    "https://cdn.example.com/master.m3u8",
		EmbedOrigin: "https://embed.example.com",
		Source:      "Ashdi",
	}

	streams := ToStreams(result, "Avatar", "")
	if got, want := streams[0].Title, "Avatar\nAshdi"; got != want {
		t.Errorf("Title = %q, want %q", got, want)
	}
}

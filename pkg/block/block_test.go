package block

import (
	"strings"
	"testing"
)

func TestDetected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"plain 403", 403, "", true},
		{"403 with body", 403, "<html>forbidden</html>", true},
		{"200 clean page", 200, "<html><body>Movie listing</body></html>", false},
		{"200 cloudflare challenge", 200, `<div id="cf-browser-verification">...</div>`, true},
		{"200 just a moment", 200, "<title>Just a moment...</title>", true},
		{"200 ddos guard", 200, "<script src='/ddos-guard/js'></script>", true},
		{"503 without markers", 503, "service unavailable", false},
		{"marker beyond inspection window", 200, strings.Repeat("x", 10000) + "cf_chl_opt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detected(tt.status, []byte(tt.body)); got != tt.want {
				t.Errorf("Detected(%d, ...) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestIsChallengeBodyCaseInsensitive(t *testing.T) {
	if !IsChallengeBody([]byte("<title>Attention Required!</title>")) {
		t.Error("marker matching should be case insensitive")
	}
}

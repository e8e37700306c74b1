// Package block recognizes anti-bot challenge responses from the target
// site's perimeter defenses. The status code alone is ambiguous: challenges
// arrive as 403s or as 200s carrying an interstitial page, so the body has
// to be pattern-matched too.
package block

import (
	"net/http"
	"strings"
)

// challengeMarkers are substrings that only appear on challenge
// interstitials, never on real content pages.
var challengeMarkers = []string{
	"cf-browser-verification",
	"cf_chl_opt",
	"challenge-platform",
	"just a moment",
	"checking your browser",
	"ddos-guard",
	"attention required!",
	"__cf_chl_",
}

// Detected reports whether a response looks like an anti-bot block:
// either an outright 403 or a body matching a known challenge marker.
func Detected(status int, body []byte) bool {
	if status == http.StatusForbidden {
		return true
	}
	return IsChallengeBody(body)
}

// IsChallengeBody reports whether the body is a challenge interstitial.
// Only the first few KB are inspected; markers sit in the document head.
func IsChallengeBody(body []byte) bool {
	head := body
	if len(head) > 8192 {
		head = head[:8192]
	}
	lower := strings.ToLower(string(head))
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Package urlutil provides URL manipulation utilities that preserve original
// encoding. Go's url.ResolveReference re-encodes special characters, which
// breaks CDN URLs containing parentheses or brackets, so resolution here is
// plain string manipulation.
package urlutil

import (
	"encoding/base64"
	"net/url"
	"strings"
)

// Resolve resolves a potentially relative URL against a base URL.
func Resolve(urlStr string, baseURL string) string {
	if strings.HasPrefix(urlStr, "http://") || strings.HasPrefix(urlStr, "https://") {
		return urlStr
	}
	if strings.HasPrefix(urlStr, "//") {
		return "https:" + urlStr
	}

	base := BaseDirectory(baseURL)

	if strings.HasPrefix(urlStr, "/") {
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return base + urlStr
		}
		return parsed.Scheme + "://" + parsed.Host + urlStr
	}

	// Parent directory references
	if strings.HasPrefix(urlStr, "../") {
		result := base
		remaining := urlStr
		for strings.HasPrefix(remaining, "../") {
			remaining = remaining[3:]
			result = strings.TrimSuffix(result, "/")
			if lastSlash := strings.LastIndex(result, "/"); lastSlash > 0 {
				result = result[:lastSlash+1]
			}
		}
		return result + remaining
	}

	return base + urlStr
}

// BaseDirectory returns the directory portion of a URL without the filename
// or query string, preserving original encoding.
func BaseDirectory(urlStr string) string {
	if idx := strings.Index(urlStr, "?"); idx > 0 {
		urlStr = urlStr[:idx]
	}
	if lastSlash := strings.LastIndex(urlStr, "/"); lastSlash > 0 {
		return urlStr[:lastSlash+1]
	}
	return urlStr
}

// Origin extracts scheme://host from a URL.
func Origin(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}

// EncodeParam encodes a URL for transport inside a query parameter.
func EncodeParam(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

// DecodeParam reverses EncodeParam.
func DecodeParam(s string) (string, error) {
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

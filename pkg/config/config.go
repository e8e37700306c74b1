// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port         int
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Target site
	SiteBase     string
	MetaBase     string
	AltEmbedBase string

	// Fetch policy
	FetchTimeout   time.Duration
	FetchAttempts  int
	BackoffBase    time.Duration
	ProxyAlways    bool // route target-site requests through proxies unconditionally
	MaxProxies     int  // distinct proxies tried per request
	MaxConcurrent  int  // process-wide outbound fetch cap
	ProxyWaitPause time.Duration

	// Proxy pool
	ProxyFeedsHTTP   []string
	ProxyFeedsSOCKS4 []string
	ProxyFeedsSOCKS5 []string
	CandidateTTL     time.Duration
	WorkingProxyTTL  time.Duration
	ValidateBatch    int
	ValidateRounds   int
	MinProxyBody     int

	// Caches
	SearchCacheTTL time.Duration
	StreamCacheTTL time.Duration

	// Cipher stage order, comma-separated stage names
	CipherStages []string

	// Logging
	LogLevel string
	LogJSON  bool

	// Relay for clients that cannot set playback headers
	RelayEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	port := getEnvInt("PORT", 7860)
	return &Config{
		Port:         port,
		BaseURL:      getEnvString("BASE_URL", fmt.Sprintf("http://localhost:%d", port)),
		ReadTimeout:  getEnvDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getEnvDuration("WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:  getEnvDuration("IDLE_TIMEOUT", 60*time.Second),

		SiteBase:     getEnvString("SITE_BASE", "https://uakino.best"),
		MetaBase:     getEnvString("META_BASE", "https://v3-cinemeta.strem.io/meta"),
		AltEmbedBase: getEnvString("ALT_EMBED_BASE", "https://tortuga.wtf/vod/"),

		FetchTimeout:   getEnvDuration("FETCH_TIMEOUT", 15*time.Second),
		FetchAttempts:  getEnvInt("FETCH_ATTEMPTS", 3),
		BackoffBase:    getEnvDuration("BACKOFF_BASE", time.Second),
		ProxyAlways:    getEnvBool("PROXY_ALWAYS", false),
		MaxProxies:     getEnvInt("MAX_PROXIES", 5),
		MaxConcurrent:  getEnvInt("MAX_CONCURRENT_FETCHES", 5),
		ProxyWaitPause: getEnvDuration("PROXY_WAIT_PAUSE", 2*time.Second),

		ProxyFeedsHTTP: getEnvStringSlice("PROXY_FEEDS_HTTP", []string{
			"https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/http.txt",
			"https://api.proxyscrape.com/v2/?request=displayproxies&protocol=http",
		}),
		ProxyFeedsSOCKS4: getEnvStringSlice("PROXY_FEEDS_SOCKS4", []string{
			"https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/socks4.txt",
		}),
		ProxyFeedsSOCKS5: getEnvStringSlice("PROXY_FEEDS_SOCKS5", []string{
			"https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/socks5.txt",
		}),
		CandidateTTL:    getEnvDuration("PROXY_CANDIDATE_TTL", 30*time.Minute),
		WorkingProxyTTL: getEnvDuration("WORKING_PROXY_TTL", 30*time.Minute),
		ValidateBatch:   getEnvInt("PROXY_VALIDATE_BATCH", 10),
		ValidateRounds:  getEnvInt("PROXY_VALIDATE_ROUNDS", 3),
		MinProxyBody:    getEnvInt("PROXY_MIN_BODY", 500),

		SearchCacheTTL: getEnvDuration("SEARCH_CACHE_TTL", 10*time.Minute),
		StreamCacheTTL: getEnvDuration("STREAM_CACHE_TTL", 5*time.Minute),

		CipherStages: getEnvStringSlice("CIPHER_STAGES", []string{"rot13", "reverse", "base64", "unmix"}),

		LogLevel: getEnvString("LOG_LEVEL", "info"),
		LogJSON:  getEnvBool("LOG_JSON", false),

		RelayEnabled: getEnvBool("RELAY_ENABLED", true),
	}
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return strings.ToLower(val) == "true" || val == "1"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		// Bare integers are seconds
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultVal
}

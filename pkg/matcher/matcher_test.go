package matcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stream-resolver-go/pkg/config"
	"stream-resolver-go/pkg/errs"
	"stream-resolver-go/pkg/httpclient"
	"stream-resolver-go/pkg/logging"
	"stream-resolver-go/pkg/metadata"
	"stream-resolver-go/pkg/types"
)

func TestIsValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"tt0499549", true},
		{"tt12345678", true},
		{"tt123", false},
		{"tt123456789", false},
		{"0499549", false},
		{"nm0000123", false},
		{"tt0499549x", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := IsValidID(tt.id); got != tt.want {
				t.Errorf("IsValidID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "The Matrix", "the matrix"},
		{"unifies quotes", "don’t look up", "don't look up"},
		{"punctuation to space", "Mission: Impossible - Fallout", "mission impossible fallout"},
		{"collapses whitespace", "  spaced   out  ", "spaced out"},
		{"keeps digits", "Se7en (1995)", "se7en 1995"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTitle(tt.input); got != tt.want {
				t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTransliterate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"cyrillic", "аватар", "avatar"},
		{"digraphs", "щука", "shchuka"},
		{"diacritics folded", "Amélie", "amelie"},
		{"ascii passthrough", "matrix", "matrix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transliterate(tt.input); got != tt.want {
				t.Errorf("Transliterate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		candidate types.SearchResult
		title     string
		year      int
		want      float64
	}{
		{
			name:      "exact match is 1.0",
			candidate: types.SearchResult{Title: "The Matrix"},
			title:     "The Matrix",
			want:      1.0,
		},
		{
			name:      "bonuses never exceed 1.0",
			candidate: types.SearchResult{Title: "The Matrix", Year: 1999},
			title:     "The Matrix",
			year:      1999,
			want:      1.0,
		},
		{
			name:      "near miss scores 0.9",
			candidate: types.SearchResult{Title: "The Matrx"},
			title:     "The Matrix",
			want:      0.9,
		},
		{
			name:      "year off by one adds 0.1",
			candidate: types.SearchResult{Title: "The Matrx", Year: 2000},
			title:     "The Matrix",
			year:      1999,
			want:      1.0,
		},
		{
			name:      "word overlap ratio",
			candidate: types.SearchResult{Title: "matrix reloaded"},
			title:     "matrix",
			want:      0.5,
		},
		{
			name:      "no overlap is zero",
			candidate: types.SearchResult{Title: "something else"},
			title:     "The Matrix",
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(&tt.candidate, tt.title, tt.year)
			if diff := got - tt.want; diff > 0.001 || diff < -0.001 {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseEpisodeLink(t *testing.T) {
	tests := []struct {
		name        string
		href        string
		wantSeason  int
		wantEpisode int
		wantOK      bool
	}{
		{"primary pattern", "/seriali/123-show-1-sezon-5-seriya.html", 1, 5, true},
		{"primary with slug between", "/seriali/123-show-2-sezon-hd-12-seriya.html", 2, 12, true},
		{"token fallback", "/series/show-season-3-episode-7", 3, 7, true},
		{"token reversed order", "/series/show-3-sezon-and-7-serija", 3, 7, true},
		{"no numbers", "/seriali/123-show.html", 0, 0, false},
		{"season only", "/seriali/show-1-sezon.html", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			season, episode, ok := parseEpisodeLink(tt.href)
			if ok != tt.wantOK || season != tt.wantSeason || episode != tt.wantEpisode {
				t.Errorf("parseEpisodeLink(%q) = (%d, %d, %v), want (%d, %d, %v)",
					tt.href, season, episode, ok, tt.wantSeason, tt.wantEpisode, tt.wantOK)
			}
		})
	}
}

func newTestMatcher(t *testing.T, siteBase, metaBase string) *Matcher {
	t.Helper()
	cfg := &config.Config{
		SiteBase:       siteBase,
		MetaBase:       metaBase,
		FetchTimeout:   5 * time.Second,
		FetchAttempts:  1,
		BackoffBase:    10 * time.Millisecond,
		MaxProxies:     1,
		MaxConcurrent:  5,
		ProxyWaitPause: 10 * time.Millisecond,
		SearchCacheTTL: time.Minute,
	}
	log := logging.New("error", false, io.Discard)
	fetch := httpclient.New(cfg, log, nil)
	meta := metadata.New(cfg, log, fetch)
	return New(cfg, log, fetch, meta)
}

func searchJSON(snippets ...string) string {
	envelope := map[string][]string{"results": snippets}
	data, _ := json.Marshal(envelope)
	return string(data)
}

func TestFindContentValidatesBeforeFetching(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL)
	}))
	defer server.Close()

	m := newTestMatcher(t, server.URL, server.URL)

	tests := []struct {
		name        string
		contentType types.ContentType
		id          string
		season      int
		episode     int
	}{
		{"bad content type", "music", "tt0499549", 0, 0},
		{"malformed id", types.ContentTypeMovie, "not-an-id", 0, 0},
		{"episode on movie", types.ContentTypeMovie, "tt0499549", 1, 1},
		{"season out of range", types.ContentTypeSeries, "tt0944947", 101, 1},
		{"episode out of range", types.ContentTypeSeries, "tt0944947", 1, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.FindContent(context.Background(), tt.contentType, tt.id, tt.season, tt.episode)
			if !errs.IsValidation(err) {
				t.Errorf("FindContent() error = %v, want validation error", err)
			}
		})
	}
}

func TestFindContentMovieByID(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			t.Error("search request missing AJAX header")
		}
		snippet := fmt.Sprintf(
			`<div><a href="%s/filmy/101-avatar.html"><span class="search-title">Avatar (2009)</span></a></div>`,
			server.URL)
		fmt.Fprint(w, searchJSON(snippet))
	}))
	defer server.Close()

	m := newTestMatcher(t, server.URL, server.URL)

	match, err := m.FindContent(context.Background(), types.ContentTypeMovie, "tt0499549", 0, 0)
	if err != nil {
		t.Fatalf("FindContent() error = %v", err)
	}
	if want := server.URL + "/filmy/101-avatar.html"; match.URL != want {
		t.Errorf("URL = %q, want %q", match.URL, want)
	}
	if match.Title != "Avatar" {
		t.Errorf("Title = %q, want %q", match.Title, "Avatar")
	}
}

func TestFindContentTitleFallback(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search/":
			query := r.URL.Query().Get("q")
			if query == "tt0499549" {
				// Site does not index this id.
				fmt.Fprint(w, searchJSON())
				return
			}
			snippet := fmt.Sprintf(
				`<div><a href="%s/filmy/101-avatar.html"><span class="search-title">Avatar (2009)</span></a></div>`,
				server.URL)
			fmt.Fprint(w, searchJSON(snippet))
		case r.URL.Path == "/movie/tt0499549.json":
			fmt.Fprint(w, `{"meta":{"name":"Avatar","year":"2009"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	m := newTestMatcher(t, server.URL, server.URL)

	match, err := m.FindContent(context.Background(), types.ContentTypeMovie, "tt0499549", 0, 0)
	if err != nil {
		t.Fatalf("FindContent() error = %v", err)
	}
	if want := server.URL + "/filmy/101-avatar.html"; match.URL != want {
		t.Errorf("URL = %q, want %q", match.URL, want)
	}
}

func TestFindContentMatchesOriginalTitle(t *testing.T) {
	// The site lists the film only under its original title; the localized
	// name shares no words with it.
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search/":
			if r.URL.Query().Get("q") != "Intouchables" {
				fmt.Fprint(w, searchJSON())
				return
			}
			snippet := fmt.Sprintf(
				`<div><a href="%s/filmy/77-intouchables.html"><span class="search-title">Intouchables (2011)</span></a></div>`,
				server.URL)
			fmt.Fprint(w, searchJSON(snippet))
		case r.URL.Path == "/movie/tt1675434.json":
			fmt.Fprint(w, `{"meta":{"name":"1+1","originalTitle":"Intouchables","year":"2011"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	m := newTestMatcher(t, server.URL, server.URL)

	match, err := m.FindContent(context.Background(), types.ContentTypeMovie, "tt1675434", 0, 0)
	if err != nil {
		t.Fatalf("FindContent() error = %v", err)
	}
	if want := server.URL + "/filmy/77-intouchables.html"; match.URL != want {
		t.Errorf("URL = %q, want %q", match.URL, want)
	}
}

func TestFindContentNotFoundCarriesQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/":
			fmt.Fprint(w, searchJSON())
		case "/movie/tt9999999.json":
			fmt.Fprint(w, `{"meta":{}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	m := newTestMatcher(t, server.URL, server.URL)

	_, err := m.FindContent(context.Background(), types.ContentTypeMovie, "tt9999999", 0, 0)
	if !errs.IsNotFound(err) {
		t.Fatalf("FindContent() error = %v, want not-found", err)
	}
	var e *errs.Error
	if !errors.As(err, &e) {
		t.Fatalf("error %v is not a pipeline error", err)
	}
	if e.Query != "tt9999999" {
		t.Errorf("Query = %q, want %q", e.Query, "tt9999999")
	}
}

func TestFindContentEpisode(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/":
			snippet := fmt.Sprintf(
				`<div><a href="%s/seriali/55-the-wire.html"><span class="search-title">The Wire</span></a></div>`,
				server.URL)
			fmt.Fprint(w, searchJSON(snippet))
		case "/seriali/55-the-wire.html":
			fmt.Fprintf(w, `<html><body>
				<a href="%s/seriali/55-the-wire-1-sezon-1-seriya.html">S01E01</a>
				<a href="%s/seriali/55-the-wire-1-sezon-2-seriya.html">S01E02</a>
			</body></html>`, server.URL, server.URL)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	m := newTestMatcher(t, server.URL, server.URL)

	match, err := m.FindContent(context.Background(), types.ContentTypeSeries, "tt0306414", 1, 2)
	if err != nil {
		t.Fatalf("FindContent() error = %v", err)
	}
	if want := server.URL + "/seriali/55-the-wire-1-sezon-2-seriya.html"; match.URL != want {
		t.Errorf("URL = %q, want %q", match.URL, want)
	}
	if match.Title != "The Wire S01E02" {
		t.Errorf("Title = %q", match.Title)
	}
	if match.SeriesTitle != "The Wire" {
		t.Errorf("SeriesTitle = %q", match.SeriesTitle)
	}
}

func TestFindContentEpisodeNotFound(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/":
			snippet := fmt.Sprintf(
				`<div><a href="%s/seriali/55-the-wire.html"><span class="search-title">The Wire</span></a></div>`,
				server.URL)
			fmt.Fprint(w, searchJSON(snippet))
		case "/seriali/55-the-wire.html":
			fmt.Fprintf(w, `<a href="%s/seriali/55-the-wire-1-sezon-1-seriya.html">S01E01</a>`, server.URL)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	m := newTestMatcher(t, server.URL, server.URL)

	_, err := m.FindContent(context.Background(), types.ContentTypeSeries, "tt0306414", 1, 5)
	if !errs.IsNotFound(err) {
		t.Fatalf("FindContent() error = %v, want not-found", err)
	}
	var e *errs.Error
	if !errors.As(err, &e) {
		t.Fatalf("error %v is not a pipeline error", err)
	}
	if e.Query != "tt0306414:1:5" {
		t.Errorf("Query = %q, want %q", e.Query, "tt0306414:1:5")
	}
}

func TestParseSnippetSeries(t *testing.T) {
	m := newTestMatcher(t, "https://site.example", "https://meta.example")

	result, ok := m.parseSnippet(
		`<div><a href="/seriali/55-the-wire.html">The Wire (2002)</a></div>`)
	if !ok {
		t.Fatal("parseSnippet() ok = false")
	}
	if result.Type != types.ContentTypeSeries {
		t.Errorf("Type = %q, want series", result.Type)
	}
	if result.Title != "The Wire" {
		t.Errorf("Title = %q, want %q", result.Title, "The Wire")
	}
	if result.Year != 2002 {
		t.Errorf("Year = %d, want 2002", result.Year)
	}
	if result.Slug != "55-the-wire" {
		t.Errorf("Slug = %q, want %q", result.Slug, "55-the-wire")
	}
	if result.URL != "https://site.example/seriali/55-the-wire.html" {
		t.Errorf("URL = %q", result.URL)
	}
}

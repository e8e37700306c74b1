package matcher

import (
	"regexp"
	"strings"
	"unicode"

	levenshtein "github.com/ka-weihe/fast-levenshtein"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"stream-resolver-go/pkg/types"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinScore is the acceptance threshold for title-fallback matching.
const MinScore = 0.4

var (
	quoteRe = regexp.MustCompile("[’‘´`“”«»]")
	punctRe = regexp.MustCompile(`[^\p{L}\p{N}']+`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeTitle lowercases, unifies quote variants, collapses punctuation
// and dashes to spaces, and collapses whitespace.
func NormalizeTitle(s string) string {
	s = strings.ToLower(s)
	s = quoteRe.ReplaceAllString(s, "'")
	s = punctRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// cyrillicASCII maps the site's locale alphabet to ASCII for slug comparison.
var cyrillicASCII = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "h", 'ґ': "g", 'д': "d", 'е': "e",
	'є': "ie", 'ж': "zh", 'з': "z", 'и': "y", 'і': "i", 'ї': "i", 'й': "i",
	'к': "k", 'л': "l", 'м': "m", 'н': "n", 'о': "o", 'п': "p", 'р': "r",
	'с': "s", 'т': "t", 'у': "u", 'ф': "f", 'х': "kh", 'ц': "ts", 'ч': "ch",
	'ш': "sh", 'щ': "shch", 'ь': "", 'ю': "iu", 'я': "ia", 'э': "e",
	'ы': "y", 'ъ': "",
}

var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Transliterate maps locale-specific letters and diacritics to ASCII.
func Transliterate(s string) string {
	if folded, _, err := transform.String(foldDiacritics, s); err == nil {
		s = folded
	}
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if ascii, ok := cyrillicASCII[r]; ok {
			b.WriteString(ascii)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Score rates a search result against the canonical title and year.
// An exact normalized title match scores 1.0; bonuses never push the score
// past that.
func Score(candidate *types.SearchResult, title string, year int) float64 {
	a := NormalizeTitle(title)
	b := NormalizeTitle(candidate.Title)

	var score float64
	switch {
	case a == b:
		score = 1.0
	case levenshtein.Distance(a, b) <= 2 && len(a) > 4:
		score = 0.9
	default:
		score = wordOverlap(a, b)
	}

	if year != 0 && candidate.Year != 0 {
		switch diff := abs(year - candidate.Year); diff {
		case 0:
			score += 0.2
		case 1:
			score += 0.1
		}
	}

	if candidate.Slug != "" && slugContainsTitle(a, candidate.Slug) {
		score += 0.1
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// wordOverlap is the shared-word ratio of the two normalized titles.
func wordOverlap(a, b string) float64 {
	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	setB := make(map[string]bool, len(wordsB))
	for _, w := range wordsB {
		setB[w] = true
	}
	shared := 0
	for _, w := range wordsA {
		if setB[w] {
			shared++
		}
	}

	longer := len(wordsA)
	if len(wordsB) > longer {
		longer = len(wordsB)
	}
	return float64(shared) / float64(longer)
}

// slugContainsTitle checks whether the transliterated title appears, in
// order, inside the URL slug.
func slugContainsTitle(normalizedTitle, slug string) bool {
	compact := strings.ReplaceAll(Transliterate(normalizedTitle), " ", "")
	if compact == "" {
		return false
	}
	return fuzzy.MatchNormalizedFold(compact, slug)
}

// firstSignificantWord returns the first word of at least four letters,
// the last-resort search query.
func firstSignificantWord(title string) string {
	for _, word := range strings.Fields(NormalizeTitle(title)) {
		if len([]rune(word)) >= 4 {
			return word
		}
	}
	return ""
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

package extractors

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// P.A.C.K.E.R. unpacking: the embed hides its player setup inside the
// standard eval-wrapped packer, a payload of base-N tokens plus a
// pipe-delimited dictionary.
var (
	packedRe       = regexp.MustCompile(`(?s)eval\(function\(p,a,c,k,e,[dr]\).*?\.split\('\|'\)[^)]*\)\)`)
	packerParamsRe = regexp.MustCompile(`(?s)\}\('(.+)',\s*(\d+),\s*(\d+),\s*'([^']+)'\.split\('\|'\)`)
	tokenRe        = regexp.MustCompile(`\b\w+\b`)
)

// FindPacked returns the first packed blob in the page, or "".
func FindPacked(html string) string {
	return packedRe.FindString(html)
}

// Unpack reverses the packer: each identifier-like token in the payload is
// decoded as a base-N position into the dictionary.
func Unpack(packed string) (string, error) {
	match := packerParamsRe.FindStringSubmatch(packed)
	if match == nil {
		return "", fmt.Errorf("packer parameters not found")
	}

	payload := strings.ReplaceAll(match[1], `\'`, `'`)
	radix, _ := strconv.Atoi(match[2])
	count, _ := strconv.Atoi(match[3])
	dict := strings.Split(match[4], "|")

	if radix < 2 || radix > 36 {
		return "", fmt.Errorf("unsupported packer radix %d", radix)
	}
	if count != len(dict) {
		// Sites sometimes lie about the count; the dictionary wins.
		count = len(dict)
	}

	unpacked := tokenRe.ReplaceAllStringFunc(payload, func(token string) string {
		idx, err := strconv.ParseInt(strings.ToLower(token), radix, 64)
		if err != nil || idx < 0 || int(idx) >= count {
			return token
		}
		if word := dict[idx]; word != "" {
			return word
		}
		return token
	})

	return unpacked, nil
}

package httpapi

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	leadingInt   = regexp.MustCompile(`^\s*[+-]?\d+`)
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	octetPattern = regexp.MustCompile(`%[a-fA-F0-9]{2}`)
	spaceRun     = regexp.MustCompile(`[\s]+`)
	titleInvalid = regexp.MustCompile(`[^a-z0-9 _-]`)
	dashRun      = regexp.MustCompile(`-+`)
)

// Absint parses the leading integer of s and returns its absolute value.
// Anything unparsable is 0.
func Absint(s string) int64 {
	m := leadingInt.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(m), 10, 64)
	if err != nil {
		return 0
	}
	if n < 0 {
		return -n
	}
	return n
}

// Clean reduces s to a single line of plain text: tags and percent-encoded
// octets are removed, whitespace runs collapse to one space.
func Clean(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = octetPattern.ReplaceAllString(s, "")
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SanitizeTitle reduces s to a lowercase slug of letters, digits,
// underscores and dashes.
func SanitizeTitle(s string) string {
	s = strings.ToLower(tagPattern.ReplaceAllString(s, ""))
	s = titleInvalid.ReplaceAllString(s, "")
	s = spaceRun.ReplaceAllString(strings.TrimSpace(s), "-")
	s = dashRun.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

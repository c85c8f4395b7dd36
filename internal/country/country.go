// Package country resolves free text to ISO-2 country codes.
//
// Three channels contribute to the result: explicit country names ("France"),
// bare ISO-2 tokens ("FR"), and ICAO airport-code prefixes ("LFMD" -> "LF"
// -> "FR"). The channels are unioned, not mutually exclusive.
package country

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultWindow is the number of most recent messages scanned by Extract.
const DefaultWindow = 5

// Extract scans the last window messages for country references and returns
// the union of all matches as a sorted ISO-2 slice. Messages are ordered
// oldest first, matching conversation order. A nil or empty result means no
// country was mentioned; callers treat that as "unspecified", not an error.
//
// Extract is deterministic: the same messages always yield the same slice.
func Extract(messages []string, window int) []string {
	if window <= 0 {
		window = DefaultWindow
	}
	if len(messages) > window {
		messages = messages[len(messages)-window:]
	}

	found := make(map[string]struct{})
	for _, msg := range messages {
		matchNames(msg, found)
		matchTokens(msg, found)
	}

	codes := make([]string, 0, len(found))
	for code := range found {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// matchNames finds whole-word country names, case-insensitively. Multi-word
// names ("united kingdom") are matched as substrings with word boundaries.
func matchNames(msg string, found map[string]struct{}) {
	lower := strings.ToLower(msg)
	for name, code := range countryNames {
		idx := 0
		for {
			i := strings.Index(lower[idx:], name)
			if i < 0 {
				break
			}
			start := idx + i
			end := start + len(name)
			if wordBoundary(lower, start, end) {
				found[code] = struct{}{}
				break
			}
			idx = end
		}
	}
}

// matchTokens finds bare ISO-2 codes and ICAO codes. Both channels require
// uppercase tokens: lowercase pairs collide with common English words ("in",
// "at", "is"), so only a deliberate "FR" or "LFMD" resolves.
func matchTokens(msg string, found map[string]struct{}) {
	for _, tok := range strings.FieldsFunc(msg, func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		switch len(tok) {
		case 2:
			if tok == strings.ToUpper(tok) {
				if _, ok := isoCodes[tok]; ok {
					found[tok] = struct{}{}
				}
			}
		case 4:
			if tok == strings.ToUpper(tok) {
				if code, ok := icaoPrefixes[tok[:2]]; ok {
					found[code] = struct{}{}
				}
			}
		}
	}
}

// wordBoundary reports whether s[start:end] is delimited by non-letters.
// Neighbors are decoded as runes so multi-byte letters delimit correctly.
func wordBoundary(s string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(s[:start]); unicode.IsLetter(r) {
			return false
		}
	}
	if end < len(s) {
		if r, _ := utf8.DecodeRuneInString(s[end:]); unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// HasICAOToken reports whether any message contains a four-letter uppercase
// token with a known ICAO prefix. The query classifier uses this to detect
// specific-airport lookups.
func HasICAOToken(msg string) bool {
	for _, tok := range strings.FieldsFunc(msg, func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if len(tok) == 4 && tok == strings.ToUpper(tok) {
			if _, ok := icaoPrefixes[tok[:2]]; ok {
				return true
			}
		}
	}
	return false
}

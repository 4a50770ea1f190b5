// Package answer canonicalizes and compares free-form player answers.
//
// The live scoring path and the stress-test harness both call into this
// package, so a comparison made in one place is always identical to a
// comparison made in the other.
package answer

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// stripped lists the punctuation removed before comparison.
const stripped = `.,;:!?"'` + "`" + `()[]{}“”‘’«»`

var articles = []string{"the ", "a ", "an "}

// Normalize returns the canonical form of text: NFKC, lower case, punctuation
// removed, whitespace collapsed and leading articles dropped. It is total and
// idempotent; empty input yields an empty string.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	s := norm.NFKC.String(text)
	// cases.Caser is not safe for concurrent use, so build one per call.
	s = cases.Lower(language.Und).String(s)

	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(stripped, r) {
			return -1
		}
		return r
	}, s)
	// Stripping can leave a base letter next to a combining mark.
	s = norm.NFKC.String(s)

	s = strings.Join(strings.Fields(s), " ")

	for {
		trimmed := false
		for _, a := range articles {
			if strings.HasPrefix(s, a) {
				s = s[len(a):]
				trimmed = true
				break
			}
		}
		if !trimmed {
			return s
		}
	}
}

// Expand splits each candidate on ';', ',' and '|' and returns the trimmed,
// non-empty parts in order. Duplicates are kept.
func Expand(candidates []string) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		parts := strings.FieldsFunc(c, func(r rune) bool {
			return r == ';' || r == ',' || r == '|'
		})
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// substantialTokens returns the words of a normalized string longer than
// two characters.
func substantialTokens(s string) []string {
	var tokens []string
	for _, w := range strings.Fields(s) {
		if len([]rune(w)) > minTokenLen {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// Package textnorm turns raw complaint text into a normalized token string
// used by every lexical similarity signal. The pipeline is fixed and
// order-sensitive: unicode fold, case fold, strip URLs/emails/phones,
// strip punctuation, stop-word removal, then rule-based lemmatization.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	urlPattern   = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	emailPattern = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`(?:\+?\d[\d\s\-()]{7,}\d)`)
	nonAlnum     = regexp.MustCompile(`[^a-z0-9]+`)
	spaces       = regexp.MustCompile(`\s+`)
)

// Normalize runs the full normalization pipeline and returns a space-joined
// token string. Deterministic, no I/O.
func Normalize(text string) string {
	return strings.Join(Tokens(text), " ")
}

// Tokens runs the full normalization pipeline and returns the token slice.
func Tokens(text string) []string {
	s := foldUnicode(text)
	s = strings.ToLower(s)
	s = urlPattern.ReplaceAllString(s, " ")
	s = emailPattern.ReplaceAllString(s, " ")
	s = phonePattern.ReplaceAllString(s, " ")
	s = nonAlnum.ReplaceAllString(s, " ")
	s = strings.TrimSpace(spaces.ReplaceAllString(s, " "))
	if s == "" {
		return nil
	}

	raw := strings.Split(s, " ")
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if len(tok) < 2 || isStopWord(tok) {
			continue
		}
		tokens = append(tokens, Lemmatize(tok))
	}
	return tokens
}

// foldUnicode applies NFD decomposition and strips combining marks, so
// accented characters collapse to their ASCII base form.
func foldUnicode(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

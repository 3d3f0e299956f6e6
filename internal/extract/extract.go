// Package extract splits a page of raw text into individual complaint
// candidates and filters out headers, metadata and boilerplate. PDF-to-text
// conversion happens on the client; this package only sees plain text.
package extract

import (
	"regexp"
	"strings"
)

const (
	minGrievanceChars  = 30
	minGrievanceTokens = 10
)

var (
	markerPattern   = regexp.MustCompile(`(?im)^\s*GRIEVANCE(?:\s+[A-Za-z0-9\-]+)?\s*:`)
	numberedPattern = regexp.MustCompile(`(?m)^\s*(?:\d{1,3}[.)]|\[\d{1,3}\])\s+`)
	blankLines      = regexp.MustCompile(`\n\s*\n`)

	headerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^grievance\s+collection`),
		regexp.MustCompile(`(?i)^batch\b`),
		regexp.MustCompile(`(?i)^municipal\s+corporation`),
		regexp.MustCompile(`(?i)^ward\s+\d+\s*$`),
		regexp.MustCompile(`(?i)^date\s*:`),
		regexp.MustCompile(`^[\s\-=_*~]{3,}$`),
		regexp.MustCompile(`(?i)^[\-=_*\s]*(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{4}[\-=_*\s]*$`),
		regexp.MustCompile(`(?i)^submitted\s+by\s*:`),
		regexp.MustCompile(`(?i)^page\s+\d+`),
		regexp.MustCompile(`(?i)^total\s+grievances`),
	}

	referencePrefixes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^grievance(?:\s+[A-Za-z0-9\-]+)?\s*:\s*`),
		regexp.MustCompile(`(?i)^(?:ticket|ref|complaint)\s*(?:no\.?|number|#)?\s*[:\-]?\s*[A-Za-z0-9/\-]+\s*[:\-]?\s*`),
		regexp.MustCompile(`^\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}\s*[:\-]?\s*`),
		regexp.MustCompile(`^(?:\d{1,3}[.)]|\[\d{1,3}\])\s*`),
	}

	formulaicOpenings = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^dear\s+(?:sir|madam|sir/madam)[,.\s]*`),
		regexp.MustCompile(`(?i)^respected\s+(?:sir|madam)[,.\s]*`),
		regexp.MustCompile(`(?i)^i\s+am\s+writing\s+to\s+(?:you\s+)?(?:regarding|about|complain\s+about|report)?\s*`),
		regexp.MustCompile(`(?i)^with\s+(?:due\s+respect\s+)?reference\s+to\s*`),
		regexp.MustCompile(`(?i)^this\s+is\s+to\s+(?:inform|bring\s+to\s+your\s+notice)\s*(?:you\s+)?(?:that\s+)?`),
		regexp.MustCompile(`(?i)^kindly\s+note\s+that\s*`),
	}

	complaintKeywords = []string{
		"problem", "issue", "complaint", "request", "not working", "broken",
		"damaged", "delay", "failed", "poor", "need", "water", "road",
		"electricity", "garbage", "sewage", "streetlight", "pothole",
		"drainage", "supply", "service", "unsafe", "health", "sanitation",
		"flooding", "repair", "maintenance", "construction", "traffic",
		"signal", "stray", "dogs", "animals", "park", "school",
	}
)

// Split breaks a page of text into individual grievances. Strategies are
// tried in order - explicit GRIEVANCE markers, numbered lists, blank-line
// paragraphs, then the whole text - and the first one producing at least one
// valid grievance wins. Returns nil when nothing on the page is a complaint.
func Split(text string) []string {
	strategies := [][]string{
		splitOnPattern(text, markerPattern),
		splitOnPattern(text, numberedPattern),
		blankLines.Split(text, -1),
		{text},
	}

	for _, candidates := range strategies {
		var valid []string
		for _, c := range candidates {
			c = strings.TrimSpace(c)
			if !IsValid(c) {
				continue
			}
			if core, ok := ExtractCore(c); ok {
				valid = append(valid, core)
			}
		}
		if len(valid) > 0 {
			return valid
		}
	}
	return nil
}

// splitOnPattern splits text at each match position of the pattern, keeping
// the matched prefix attached to its segment so ExtractCore can strip it.
func splitOnPattern(text string, pattern *regexp.Regexp) []string {
	locs := pattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	var parts []string
	if locs[0][0] > 0 {
		parts = append(parts, text[:locs[0][0]])
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		parts = append(parts, text[loc[0]:end])
	}
	return parts
}

// IsValid reports whether a trimmed candidate looks like a real complaint:
// long enough, not a document header, and mentioning at least one complaint
// keyword.
func IsValid(candidate string) bool {
	if len(candidate) < minGrievanceChars {
		return false
	}
	if len(strings.Fields(candidate)) < minGrievanceTokens {
		return false
	}

	firstLine := strings.TrimSpace(strings.SplitN(candidate, "\n", 2)[0])
	for _, p := range headerPatterns {
		if p.MatchString(firstLine) {
			return false
		}
	}

	lower := strings.ToLower(candidate)
	for _, kw := range complaintKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ExtractCore strips reference prefixes (grievance labels, ticket numbers,
// dates) and formulaic openings from a valid candidate. The remaining text
// must still be long enough to stand on its own.
func ExtractCore(candidate string) (string, bool) {
	text := strings.TrimSpace(candidate)

	for _, p := range referencePrefixes {
		text = strings.TrimSpace(p.ReplaceAllString(text, ""))
	}
	for _, p := range formulaicOpenings {
		text = strings.TrimSpace(p.ReplaceAllString(text, ""))
	}

	if len(text) < minGrievanceChars {
		return "", false
	}
	return text, true
}

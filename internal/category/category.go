// Package category assigns each grievance to a fixed municipal taxonomy
// using keyword-bag matching, and extracts the locality mentioned in the
// complaint text.
package category

import (
	"math"
	"regexp"
	"strings"
)

// OTHER is the fallback class when no taxonomy keywords match.
const OTHER = "OTHER"

// Taxonomy is the fixed category set, in tie-break priority order.
var Taxonomy = []string{
	"WATER", "GARBAGE", "ROAD", "ELECTRICITY", "SEWAGE", "NOISE", "PARK", OTHER,
}

// keywords per non-OTHER class. Matching is plain substring search on the
// lowercased raw text.
var keywords = map[string][]string{
	"WATER": {
		"water", "tap", "pipeline", "pipe", "leak", "supply", "tanker",
		"borewell", "hand pump", "drinking", "contaminated", "shortage",
		"pressure", "valve", "overflow",
	},
	"GARBAGE": {
		"garbage", "trash", "waste", "dump", "litter", "rubbish", "dustbin",
		"collection", "sweeper", "cleanliness", "filth", "debris", "compost",
		"landfill", "segregation",
	},
	"ROAD": {
		"road", "pothole", "footpath", "pavement", "speed breaker",
		"street corner",
		"divider", "crossing", "highway", "lane", "asphalt", "tar",
		"resurfacing", "manhole cover", "zebra",
	},
	"ELECTRICITY": {
		"electricity", "power", "streetlight", "street light", "transformer",
		"voltage", "outage", "wire", "pole", "meter", "short circuit",
		"load shedding", "bulb", "current", "electric",
	},
	"SEWAGE": {
		"sewage", "sewer", "drain", "drainage", "gutter", "blockage",
		"overflow", "septic", "sanitation", "waterlogging", "stagnant",
		"choked", "cesspool", "effluent", "manhole",
	},
	"NOISE": {
		"noise", "loud", "loudspeaker", "honking", "construction noise",
		"music", "dj", "party", "firecracker", "decibel", "disturbance",
		"sound", "horn", "banquet", "late night",
	},
	"PARK": {
		"park", "garden", "playground", "tree", "plantation", "bench",
		"swing", "lawn", "jogging", "fencing", "encroachment", "green belt",
		"nursery", "pruning", "open gym",
	},
}

// Result carries a detected category and its confidence.
type Result struct {
	Category   string
	Confidence float64
}

// Detect classifies raw complaint text against the taxonomy. The class with
// the most keyword hits wins; ties break by taxonomy order; zero hits means
// OTHER. Confidence is min(hits/3, 1.0) rounded to two decimals.
func Detect(text string) Result {
	lower := strings.ToLower(text)

	best := OTHER
	bestCount := 0
	for _, class := range Taxonomy {
		kws, ok := keywords[class]
		if !ok {
			continue
		}
		count := 0
		for _, kw := range kws {
			if strings.Contains(lower, kw) {
				count++
			}
		}
		if count > bestCount {
			best = class
			bestCount = count
		}
	}

	if bestCount == 0 {
		return Result{Category: OTHER, Confidence: 0}
	}
	conf := math.Min(float64(bestCount)/3.0, 1.0)
	return Result{
		Category:   best,
		Confidence: math.Round(conf*100) / 100,
	}
}

var areaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bsector[\s\-]*(\d+[a-z]?)\b`),
	regexp.MustCompile(`(?i)\bward[\s\-]*(\d+)\b`),
	regexp.MustCompile(`(?i)\bblock[\s\-]*([a-z0-9]+)\b`),
	regexp.MustCompile(`(?i)\bzone[\s\-]*([a-z0-9]+)\b`),
	regexp.MustCompile(`(?i)\b([a-z]+(?:\s+[a-z]+)?)\s+(?:colony|village|mohalla)\b`),
	regexp.MustCompile(`(?i)\b(?:colony|village|mohalla)\s+([a-z]+(?:\s+[a-z]+)?)\b`),
}

// ExtractArea pulls a best-effort locality string from raw text. The first
// matching pattern wins; returns "" when nothing matches.
func ExtractArea(text string) string {
	for _, p := range areaPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return strings.ToLower(strings.TrimSpace(m[0]))
		}
	}
	return ""
}

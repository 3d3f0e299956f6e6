// Package similarity scores pairs of grievances by combining semantic,
// lexical, structural and categorical signals into one composite in [0,1].
package similarity

import (
	"math"
	"strings"
)

// Weights holds the signal weights from the adaptive threshold store.
type Weights struct {
	Cosine   float64
	Jaccard  float64
	NGram    float64
	Metadata float64
}

// DefaultWeights mirrors the adaptive store defaults.
func DefaultWeights() Weights {
	return Weights{Cosine: 0.55, Jaccard: 0.25, NGram: 0.15, Metadata: 0.05}
}

// Item is one side of a pairwise comparison.
type Item struct {
	Tokens    []string  // Processed-text tokens
	Embedding []float32 // Unit-norm dense vector
	Category  string    // Taxonomy class or OTHER
}

// Breakdown records the individual signals and the net modifier applied on
// top of the weighted base.
type Breakdown struct {
	Cosine     float64
	Jaccard    float64
	NGram      float64
	Contextual float64 // Net rare-word/location/category adjustment
}

// commonWords are generic complaint tokens excluded from the rare-word
// boost. Entries are in lemma form because they are matched against
// processed tokens.
var commonWords = map[string]struct{}{
	"problem": {}, "issue": {}, "complaint": {}, "request": {},
	"please": {}, "kindly": {}, "urgent": {}, "urgently": {},
	"immediate": {}, "action": {}, "authority": {}, "department": {},
	"area": {}, "day": {}, "time": {}, "work": {}, "situation": {},
	"condition": {}, "resident": {}, "people": {},
}

// locationTokens mark tokens that indicate a shared locality.
var locationTokens = map[string]struct{}{
	"sector": {}, "ward": {}, "block": {}, "colony": {}, "nagar": {},
	"road": {}, "chowk": {}, "market": {}, "park": {}, "school": {},
	"hospital": {}, "station": {},
}

// Score computes the composite similarity of a and b under the given
// weights, returning the final clamped score and its signal breakdown.
func Score(a, b Item, w Weights) (float64, Breakdown) {
	cos := Cosine(a.Embedding, b.Embedding)
	jac := Jaccard(a.Tokens, b.Tokens)
	ng := NGramOverlap(a.Tokens, b.Tokens)

	sum := w.Cosine + w.Jaccard + w.NGram + w.Metadata
	base := 0.0
	if sum > 0 {
		base = (cos*w.Cosine + jac*w.Jaccard + ng*w.NGram) / sum
	}

	rare := rareWordBoost(a.Tokens, b.Tokens)
	loc := locationBoost(a.Tokens, b.Tokens)
	cat := categoryModifier(a.Category, b.Category)

	contextual := rare + loc + cat
	final := clamp01(base + contextual)

	return final, Breakdown{
		Cosine:     clamp01(cos),
		Jaccard:    jac,
		NGram:      ng,
		Contextual: clamp01(contextual),
	}
}

// Cosine returns the dot product of two vectors. For unit-norm inputs this
// is the cosine similarity; self-similarity of a unit vector is exactly 1.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	// Guard rounding drift on identical unit vectors.
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	return dot
}

// Jaccard returns |A∩B| / |A∪B| over token sets.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := toSet(a)
	setB := toSet(b)

	inter := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// NGramOverlap blends bigram and trigram Jaccard over token n-grams:
// 0.6*bigram + 0.4*trigram.
func NGramOverlap(a, b []string) float64 {
	return 0.6*ngramJaccard(a, b, 2) + 0.4*ngramJaccard(a, b, 3)
}

func ngramJaccard(a, b []string, n int) float64 {
	gramsA := ngrams(a, n)
	gramsB := ngrams(b, n)
	if len(gramsA) == 0 || len(gramsB) == 0 {
		return 0
	}
	inter := 0
	for g := range gramsA {
		if _, ok := gramsB[g]; ok {
			inter++
		}
	}
	union := len(gramsA) + len(gramsB) - inter
	return float64(inter) / float64(union)
}

func ngrams(tokens []string, n int) map[string]struct{} {
	grams := make(map[string]struct{})
	for i := 0; i+n <= len(tokens); i++ {
		grams[strings.Join(tokens[i:i+n], " ")] = struct{}{}
	}
	return grams
}

// rareWordBoost rewards shared content words: 0.02 per shared token longer
// than 3 chars that is not a generic complaint word, capped at 0.08.
func rareWordBoost(a, b []string) float64 {
	shared := sharedRareTokens(a, b)
	return math.Min(0.08, 0.02*float64(len(shared)))
}

// locationBoost rewards shared locality markers among the rare tokens:
// 0.03 each, capped at 0.06.
func locationBoost(a, b []string) float64 {
	count := 0
	for _, tok := range sharedRareTokens(a, b) {
		if _, ok := locationTokens[tok]; ok || isDigits(tok) {
			count++
		}
	}
	return math.Min(0.06, 0.03*float64(count))
}

func sharedRareTokens(a, b []string) []string {
	setB := toSet(b)
	seen := make(map[string]struct{})
	var shared []string
	for _, tok := range a {
		if len(tok) <= 3 {
			continue
		}
		if _, ok := commonWords[tok]; ok {
			continue
		}
		if _, ok := setB[tok]; !ok {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		shared = append(shared, tok)
	}
	return shared
}

// categoryModifier boosts same-category pairs and penalizes conflicting
// detections. OTHER carries no signal either way.
func categoryModifier(a, b string) float64 {
	if a == "" || b == "" || a == "OTHER" || b == "OTHER" {
		return 0
	}
	if a == b {
		return 0.10
	}
	return -0.25
}

func toSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

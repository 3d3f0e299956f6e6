package textnorm

import "strings"

// irregularForms maps irregular inflections to their lemma. Checked before
// any suffix rule; a mapped token is returned as-is.
var irregularForms = map[string]string{
	"went":    "go",
	"gone":    "go",
	"going":   "go",
	"said":    "say",
	"made":    "make",
	"took":    "take",
	"taken":   "take",
	"came":    "come",
	"saw":     "see",
	"seen":    "see",
	"got":     "get",
	"gotten":  "get",
	"gave":    "give",
	"given":   "give",
	"told":    "tell",
	"broke":   "break",
	"broken":  "break",
	"brought": "bring",
	"bought":  "buy",
	"built":   "build",
	"found":   "find",
	"kept":    "keep",
	"left":    "leave",
	"lost":    "lose",
	"met":     "meet",
	"paid":    "pay",
	"ran":     "run",
	"sent":    "send",
	"spoke":   "speak",
	"spoken":  "speak",
	"stood":   "stand",
	"stuck":   "stick",
	"threw":   "throw",
	"thrown":  "throw",
	"wrote":   "write",
	"written": "write",
	"fell":    "fall",
	"fallen":  "fall",
	"burst":   "burst",
	"leaked":  "leak",
	"dug":     "dig",
	"laid":    "lay",
	"worn":    "wear",
	"torn":    "tear",
}

type suffixRule struct {
	suffix  string
	replace string
	minStem int // minimum remaining stem length for the rule to fire
}

// suffixRules is checked in order; the first applicable rule fires and no
// further rules are tried.
var suffixRules = []suffixRule{
	{"ications", "icate", 3},
	{"ization", "ize", 3},
	{"ational", "ate", 3},
	{"fulness", "ful", 3},
	{"iveness", "ive", 3},
	{"ousness", "ous", 3},
	{"tional", "tion", 3},
	{"biliti", "ble", 3},
	{"lessly", "less", 3},
	{"ically", "ic", 3},
	{"ments", "ment", 3},
	{"sses", "ss", 3},
	{"iness", "y", 3},
	{"ies", "y", 3},
	{"ied", "y", 3},
	{"ing", "", 4},
	{"edly", "", 4},
	{"est", "", 4},
	{"ers", "er", 3},
	{"ed", "", 3},
	{"es", "", 3},
	{"s", "", 3},
}

// Lemmatize reduces a single lowercase token to its lemma. Irregular forms
// are mapped first; otherwise the first matching suffix rule fires. At most
// one rule applies per token.
func Lemmatize(token string) string {
	if lemma, ok := irregularForms[token]; ok {
		return lemma
	}
	for _, rule := range suffixRules {
		if !strings.HasSuffix(token, rule.suffix) {
			continue
		}
		stem := token[:len(token)-len(rule.suffix)]
		if len(stem) < rule.minStem {
			continue
		}
		// Plural rule must not eat a double-s ending ("glass", "press").
		if rule.suffix == "s" && strings.HasSuffix(token, "ss") {
			continue
		}
		// An "es" strip that leaves a stem in "s" would lemmatize again on
		// a second pass ("houses" -> "hous" -> "hou"); leave such words to
		// the "s" rule instead ("houses" -> "house").
		if rule.suffix == "es" && strings.HasSuffix(stem, "s") {
			continue
		}
		return stem + rule.replace
	}
	return token
}

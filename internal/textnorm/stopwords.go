package textnorm

// stopWords is the built-in English function-word list. Tokens in this set
// are dropped before lemmatization.
var stopWords = map[string]struct{}{}

func init() {
	words := []string{
		"a", "about", "above", "after", "again", "against", "all", "also",
		"am", "an", "and", "any", "are", "aren", "as", "at", "be", "because",
		"been", "before", "being", "below", "between", "both", "but", "by",
		"can", "cannot", "could", "couldn", "did", "didn", "do", "does",
		"doesn", "doing", "don", "done", "down", "during", "each", "either",
		"else", "etc", "ever", "every", "few", "for", "from", "further",
		"had", "hadn", "has", "hasn", "have", "haven", "having", "he", "her",
		"here", "hers", "herself", "him", "himself", "his", "how", "however",
		"i", "if", "in", "into", "is", "isn", "it", "its", "itself", "just",
		"let", "may", "me", "might", "more", "most", "much", "must", "mustn",
		"my", "myself", "neither", "no", "nor", "not", "now", "of", "off",
		"on", "once", "only", "onto", "or", "other", "others", "ought",
		"our", "ours", "ourselves", "out", "over", "own", "per", "quite",
		"rather", "same", "shall", "shan", "she", "should", "shouldn",
		"since", "so", "some", "such", "than", "that", "the", "their",
		"theirs", "them", "themselves", "then", "there", "these", "they",
		"this", "those", "through", "thus", "till", "to", "too", "under",
		"until", "unto", "up", "upon", "us", "very", "was", "wasn", "we",
		"were", "weren", "what", "when", "where", "whether", "which",
		"while", "who", "whom", "whose", "why", "will", "with", "within",
		"without", "won", "would", "wouldn", "yet", "you", "your", "yours",
		"yourself", "yourselves", "via", "among", "amongst", "around",
		"behind", "beside", "besides", "beyond", "despite", "except",
		"inside", "near", "outside", "though", "toward", "towards",
		"whatever", "whenever", "wherever", "whichever", "whoever",
	}
	for _, w := range words {
		stopWords[w] = struct{}{}
	}
}

func isStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}

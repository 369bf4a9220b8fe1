package badger

import "strings"

// Stop words ignored by lexical matching
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// tokenize splits text into lowercased words without punctuation or stop words.
func tokenize(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))
	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}
	return filtered
}

// lexicalScore returns the fraction of distinct query terms present in the
// document, plus a bonus when all of them are.
func lexicalScore(queryTerms []string, document string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	docTerms := make(map[string]bool)
	for _, w := range tokenize(document) {
		docTerms[w] = true
	}
	seen := make(map[string]bool, len(queryTerms))
	hits := 0
	for _, q := range queryTerms {
		if seen[q] {
			continue
		}
		seen[q] = true
		if docTerms[q] {
			hits++
		}
	}
	score := float64(hits) / float64(len(seen))
	if hits == len(seen) {
		score += 0.3
	}
	return score
}

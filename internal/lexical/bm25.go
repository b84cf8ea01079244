// Package lexical scores keyword overlap between a query and a document with
// a simplified BM25: no inverse document frequency and a fixed average
// document length, so a score depends only on the query and one document.
package lexical

import (
	"regexp"
	"strings"
)

// Parameters tuned for curriculum descriptions
const (
	K1           = 1.5
	B            = 0.75
	AvgDocLength = 50.0
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Tokenize lower-cases text and splits it into word runs.
func Tokenize(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// Score returns the BM25 score of document for query. It is 0 when the
// document has no tokens or shares no term with the query. Repeated query
// terms count once.
func Score(query, document string) float64 {
	docTerms := Tokenize(document)
	if len(docTerms) == 0 {
		return 0
	}

	freq := make(map[string]int, len(docTerms))
	for _, term := range docTerms {
		freq[term]++
	}

	lengthRatio := float64(len(docTerms)) / AvgDocLength
	seen := make(map[string]struct{})
	var score float64
	for _, term := range Tokenize(query) {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		tf, ok := freq[term]
		if !ok {
			continue
		}
		ftf := float64(tf)
		score += ftf * (K1 + 1) / (ftf + K1*(1-B+B*lengthRatio))
	}

	return score
}

// Normalize divides every score by the maximum. When the maximum is 0 (or
// scores is empty) every normalized value is 0.
func Normalize(scores []float64) []float64 {
	out := make([]float64, len(scores))

	var max float64
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	if max <= 0 {
		return out
	}

	for i, s := range scores {
		out[i] = s / max
	}
	return out
}

// Document joins a title, description and any extra texts into the string
// that Score matches against.
func Document(title, description string, extra ...string) string {
	parts := make([]string, 0, 2+len(extra))
	parts = append(parts, title, description)
	parts = append(parts, extra...)
	return strings.Join(parts, " ")
}

package searcher

import (
	"github.com/dshills/curriculum-search/internal/lexical"
)

// DefaultLexicalWeight scales the normalized BM25 score added to each candidate
const DefaultLexicalWeight = 0.1

// lexicalDocument is the text a goal is matched against: its own title and
// description followed by the descriptions of its linked elaborations.
func lexicalDocument(c *Candidate) string {
	extra := make([]string, 0, len(c.Elaborations))
	for _, e := range c.Elaborations {
		extra = append(extra, e.Description)
	}
	return lexical.Document(c.Goal.Title, c.Goal.Description, extra...)
}

// enhance adds the weighted, max-normalized BM25 score to every candidate and
// re-sorts. The result is not capped at 1.
func enhance(query string, candidates []*Candidate, weight float64) {
	if len(candidates) == 0 {
		return
	}

	raw := make([]float64, len(candidates))
	for i, c := range candidates {
		raw[i] = lexical.Score(query, lexicalDocument(c))
	}
	norm := lexical.Normalize(raw)

	for i, c := range candidates {
		c.Scores.breakdown.LexicalRaw = raw[i]
		c.Scores.breakdown.LexicalNormalized = norm[i]
		c.Scores.Append(StageHybrid, c.Similarity()+weight*norm[i])
	}

	sortCandidates(candidates)
}

package searcher

import (
	"github.com/dshills/curriculum-search/pkg/types"
)

// Stage names a pipeline step that contributes a score
type Stage string

const (
	StageCombined Stage = "combined"
	StageRerank   Stage = "rerank"
	StageHybrid   Stage = "hybrid"
)

// ScoreEntry is one score assigned by one stage
type ScoreEntry struct {
	Stage Stage
	Value float64
}

// ScoreRecord is the append-only score history of a candidate. The last
// entry is the candidate's current score.
type ScoreRecord struct {
	entries   []ScoreEntry
	breakdown types.ScoreBreakdown
}

// Append records a new current score.
func (r *ScoreRecord) Append(stage Stage, value float64) {
	r.entries = append(r.entries, ScoreEntry{Stage: stage, Value: value})
}

// Current returns the latest score, or 0 when nothing was recorded.
func (r *ScoreRecord) Current() float64 {
	if len(r.entries) == 0 {
		return 0
	}
	return r.entries[len(r.entries)-1].Value
}

// Latest returns the most recent score recorded by stage.
func (r *ScoreRecord) Latest(stage Stage) (float64, bool) {
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].Stage == stage {
			return r.entries[i].Value, true
		}
	}
	return 0, false
}

// History returns a copy of all entries, oldest first.
func (r *ScoreRecord) History() []ScoreEntry {
	out := make([]ScoreEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Breakdown returns the per-signal scores gathered so far.
func (r *ScoreRecord) Breakdown() types.ScoreBreakdown {
	return r.breakdown
}

// Candidate is a goal moving through the pipeline
type Candidate struct {
	Goal         *types.Goal
	Elaborations []*types.Elaboration // linked and present, in link order
	PreRank      int                  // 1-based position after combining
	Scores       ScoreRecord
}

// Similarity is the candidate's current score.
func (c *Candidate) Similarity() float64 {
	return c.Scores.Current()
}

// result converts the candidate into its public form at the given 1-based rank.
func (c *Candidate) result(rank int) types.SearchResult {
	return types.SearchResult{
		ID:          c.Goal.ID,
		ExternalID:  c.Goal.ExternalID,
		EntityKind:  types.KindGoal,
		Rank:        rank,
		PreRank:     c.PreRank,
		Title:       c.Goal.Title,
		Description: c.Goal.Description,
		Prefix:      c.Goal.Prefix,
		Kind:        c.Goal.Kind,
		Similarity:  c.Similarity(),
		Scores:      c.Scores.Breakdown(),
	}
}

package searcher

import (
	"fmt"
	"sort"

	"github.com/dshills/curriculum-search/pkg/types"
)

const (
	// DefaultWeight is the share of the goal's own similarity in the combined score
	DefaultWeight = 0.7

	// CombineFloor drops weak candidates before the later stages run.
	// It is independent of the caller's threshold.
	CombineFloor = 0.2
)

// Combine mixes a goal's similarity with the best similarity among its
// elaborations. The endpoints return their input exactly.
func Combine(weight, goalSim, elabSim float64) float64 {
	switch weight {
	case 1:
		return goalSim
	case 0:
		return elabSim
	}
	return weight*goalSim + (1-weight)*elabSim
}

// combine scores every goal that has a vector against the query and returns
// the candidates scoring at least floor, best first. Ties keep snapshot order.
func combine(snap *Snapshot, query []float32, weight, floor float64) ([]*Candidate, error) {
	goalSims, err := snap.vectors.Similarities(types.KindGoal, query)
	if err != nil {
		return nil, fmt.Errorf("goal similarity: %w", err)
	}
	elabSims, err := snap.vectors.Similarities(types.KindElaboration, query)
	if err != nil {
		return nil, fmt.Errorf("elaboration similarity: %w", err)
	}

	// best elaboration similarity per goal, pushed through the back-references
	best := make(map[int64]float64, len(goalSims))
	for elabID, sim := range elabSims {
		elab, ok := snap.elabByID[elabID]
		if !ok {
			continue
		}
		for _, goalID := range snap.Owners(elab.ExternalID) {
			if cur, seen := best[goalID]; !seen || sim > cur {
				best[goalID] = sim
			}
		}
	}

	candidates := make([]*Candidate, 0, len(goalSims))
	for _, g := range snap.goals {
		goalSim, ok := goalSims[g.ID]
		if !ok {
			continue
		}
		elabSim := best[g.ID]
		combined := Combine(weight, goalSim, elabSim)
		if combined < floor {
			continue
		}

		c := &Candidate{
			Goal:         g,
			Elaborations: snap.Linked(g),
		}
		c.Scores.breakdown.GoalSimilarity = goalSim
		c.Scores.breakdown.ElaborationSimilarity = elabSim
		c.Scores.breakdown.Combined = combined
		c.Scores.Append(StageCombined, combined)
		candidates = append(candidates, c)
	}

	sortCandidates(candidates)
	for i, c := range candidates {
		c.PreRank = i + 1
	}

	return candidates, nil
}

// sortCandidates orders by current score, highest first, keeping the order of equals.
func sortCandidates(candidates []*Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity() > candidates[j].Similarity()
	})
}

package searcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/curriculum-search/internal/embedder"
	"github.com/dshills/curriculum-search/internal/storage"
	"github.com/dshills/curriculum-search/pkg/types"
)

// SearchGoals ranks goals by their own vector only. No combining, reranking
// or lexical fusion is applied.
func (s *Searcher) SearchGoals(ctx context.Context, query string, limit int, threshold float64) (*SearchResponse, error) {
	return s.searchKind(ctx, types.KindGoal, query, limit, threshold)
}

// SearchElaborations ranks elaborations by their own vector only.
func (s *Searcher) SearchElaborations(ctx context.Context, query string, limit int, threshold float64) (*SearchResponse, error) {
	return s.searchKind(ctx, types.KindElaboration, query, limit, threshold)
}

func (s *Searcher) searchKind(ctx context.Context, kind types.EntityKind, query string, limit int, threshold float64) (*SearchResponse, error) {
	startTime := time.Now()

	req := SearchRequest{Query: query, Limit: limit, Threshold: threshold}
	if err := s.normalizeRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrEmbeddingProvider, err)
	}

	snap, err := LoadSnapshot(ctx, s.reader, s.model)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	matches, err := snap.vectors.TopSimilar(kind, emb.Vector, req.Threshold)
	if err != nil {
		return nil, fmt.Errorf("%s similarity: %w", kind, err)
	}
	if len(matches) > req.Limit {
		matches = matches[:req.Limit]
	}

	results := make([]types.SearchResult, 0, len(matches))
	for i, m := range matches {
		r := types.SearchResult{
			ID:         m.ID,
			EntityKind: kind,
			Rank:       i + 1,
			PreRank:    i + 1,
			Similarity: m.Similarity,
		}
		switch kind {
		case types.KindGoal:
			g, _ := snap.Goal(m.ID)
			r.ExternalID, r.Title, r.Description = g.ExternalID, g.Title, g.Description
			r.Prefix, r.Kind = g.Prefix, g.Kind
			r.Scores.GoalSimilarity = m.Similarity
		case types.KindElaboration:
			e, _ := snap.Elaboration(m.ID)
			r.ExternalID, r.Title, r.Description = e.ExternalID, e.Title, e.Description
			r.Prefix = e.Prefix
			r.Scores.ElaborationSimilarity = m.Similarity
		}
		results = append(results, r)
	}

	return &SearchResponse{
		Query:     req.Query,
		Count:     len(results),
		Results:   results,
		Duration:  time.Since(startTime),
		RequestID: uuid.NewString(),
	}, nil
}

// GetGoal returns the goal with its elaborations resolved in link order.
// A missing goal yields (nil, nil).
func (s *Searcher) GetGoal(ctx context.Context, id int64) (*types.GoalDetail, error) {
	goal, err := s.reader.GetGoal(ctx, id)
	return s.detail(ctx, goal, err)
}

// GetGoalByExternalID is GetGoal keyed by the curriculum's own id.
func (s *Searcher) GetGoalByExternalID(ctx context.Context, externalID string) (*types.GoalDetail, error) {
	goal, err := s.reader.GetGoalByExternalID(ctx, externalID)
	return s.detail(ctx, goal, err)
}

func (s *Searcher) detail(ctx context.Context, goal *types.Goal, err error) (*types.GoalDetail, error) {
	if errors.Is(err, types.ErrEntityNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}

	detail := &types.GoalDetail{Goal: *goal, Elaborations: []types.Elaboration{}}
	if len(goal.ElaborationIDs) == 0 {
		return detail, nil
	}

	elabs, err := s.reader.GetElaborationsByExternalIDs(ctx, goal.ElaborationIDs)
	if err != nil {
		return nil, fmt.Errorf("get elaborations: %w", err)
	}
	for _, e := range elabs {
		detail.Elaborations = append(detail.Elaborations, *e)
	}
	return detail, nil
}

// Stats returns corpus and embedding totals.
func (s *Searcher) Stats(ctx context.Context) (*storage.Stats, error) {
	stats, err := s.reader.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return stats, nil
}

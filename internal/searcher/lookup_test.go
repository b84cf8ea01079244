package searcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/curriculum-search/pkg/types"
)

func TestSearchGoals(t *testing.T) {
	s := newTestSearcher(t, g1g2(), &fakeEmbedder{})

	resp, err := s.SearchGoals(context.Background(), "breuken", 10, 0.4)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "G1", resp.Results[0].ExternalID)
	assert.Equal(t, types.KindGoal, resp.Results[0].EntityKind)
	assert.InDelta(t, 0.5, resp.Results[0].Similarity, 1e-6)

	resp, err = s.SearchGoals(context.Background(), "breuken", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Count)
}

func TestSearchElaborations(t *testing.T) {
	s := newTestSearcher(t, g1g2(), &fakeEmbedder{})

	resp, err := s.SearchElaborations(context.Background(), "breuken", 10, 0)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	got := resp.Results[0]
	assert.Equal(t, "E1", got.ExternalID)
	assert.Equal(t, types.KindElaboration, got.EntityKind)
	assert.InDelta(t, 0.9, got.Scores.ElaborationSimilarity, 1e-6)

	_, err = s.SearchElaborations(context.Background(), "", 10, 0)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestGetGoal(t *testing.T) {
	r := newMemReader()
	r.elaboration("E1", "Een", "eerste", nil)
	r.elaboration("E2", "Twee", "tweede", nil)
	id := r.goal("G1", "Doel", "beschrijving", nil, "E2", "E-missing", "E1")
	s := newTestSearcher(t, r, &fakeEmbedder{})
	ctx := context.Background()

	got, err := s.GetGoal(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "G1", got.ExternalID)
	require.Len(t, got.Elaborations, 2)
	assert.Equal(t, "E2", got.Elaborations[0].ExternalID)
	assert.Equal(t, "E1", got.Elaborations[1].ExternalID)

	got, err = s.GetGoalByExternalID(ctx, "G1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)

	got, err = s.GetGoal(ctx, 404)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestStats(t *testing.T) {
	s := newTestSearcher(t, g1g2(), &fakeEmbedder{})

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Goals)
	assert.Equal(t, 1, stats.Elaborations)
	assert.Equal(t, 2, stats.GoalEmbeddings)
}

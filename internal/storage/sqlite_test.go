package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/curriculum-search/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func intPtr(v int) *int { return &v }

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	assert.NotNil(t, storage.db)

	v, err := SchemaVersion(context.Background(), storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v)
}

func TestUpsertGoal(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	goal := &types.Goal{
		ExternalID:     "dz-1",
		Title:          "Breuken",
		Description:    "Leerlingen vergelijken breuken",
		Prefix:         "R",
		Kind:           "kern",
		CE:             intPtr(1),
		ElaborationIDs: []string{"uw-2", "uw-1", "uw-missing"},
	}
	require.NoError(t, storage.UpsertGoal(ctx, goal))
	assert.Greater(t, goal.ID, int64(0))

	got, err := storage.GetGoal(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, "Breuken", got.Title)
	assert.Equal(t, "kern", got.Kind)
	require.NotNil(t, got.CE)
	assert.Equal(t, 1, *got.CE)
	assert.Nil(t, got.SE)
	assert.Equal(t, []string{"uw-2", "uw-1", "uw-missing"}, got.ElaborationIDs)

	t.Run("re-ingest keeps id and replaces links", func(t *testing.T) {
		again := &types.Goal{
			ExternalID:     "dz-1",
			Title:          "Breuken vergelijken",
			Description:    "Nieuwe omschrijving",
			ElaborationIDs: []string{"uw-3"},
		}
		require.NoError(t, storage.UpsertGoal(ctx, again))
		assert.Equal(t, goal.ID, again.ID)

		got, err := storage.GetGoalByExternalID(ctx, "dz-1")
		require.NoError(t, err)
		assert.Equal(t, "Breuken vergelijken", got.Title)
		assert.Equal(t, []string{"uw-3"}, got.ElaborationIDs)
		assert.Nil(t, got.CE)
	})
}

func TestGetGoal_NotFound(t *testing.T) {
	storage := setupTestDB(t)

	_, err := storage.GetGoal(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, types.ErrEntityNotFound)

	_, err = storage.GetGoalByExternalID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListGoals(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	for _, g := range []*types.Goal{
		{ExternalID: "a", Title: "A", Description: "a", ElaborationIDs: []string{"x", "y"}},
		{ExternalID: "b", Title: "B", Description: "b"},
		{ExternalID: "c", Title: "C", Description: "c", ElaborationIDs: []string{"y"}},
	} {
		require.NoError(t, storage.UpsertGoal(ctx, g))
	}

	goals, err := storage.ListGoals(ctx)
	require.NoError(t, err)
	require.Len(t, goals, 3)
	assert.Equal(t, "a", goals[0].ExternalID)
	assert.Equal(t, []string{"x", "y"}, goals[0].ElaborationIDs)
	assert.Empty(t, goals[1].ElaborationIDs)
	assert.Equal(t, []string{"y"}, goals[2].ElaborationIDs)
}

func TestElaborations(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	for _, e := range []*types.Elaboration{
		{ExternalID: "uw-1", Title: "Eén", Description: "eerste", LevelIDs: []string{"vmbo", "havo"}},
		{ExternalID: "uw-2", Description: "tweede"},
		{ExternalID: "uw-3", Title: "Drie", Description: "derde"},
	} {
		require.NoError(t, storage.UpsertElaboration(ctx, e))
		assert.Greater(t, e.ID, int64(0))
	}

	all, err := storage.ListElaborations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"vmbo", "havo"}, all[0].LevelIDs)
	assert.Equal(t, "", all[1].Title)
	assert.Empty(t, all[1].LevelIDs)

	got, err := storage.GetElaborationsByExternalIDs(ctx, []string{"uw-3", "missing", "uw-1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "uw-3", got[0].ExternalID)
	assert.Equal(t, "uw-1", got[1].ExternalID)

	none, err := storage.GetElaborationsByExternalIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEmbeddings(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	records := []*EmbeddingRecord{
		{EntityKind: types.KindGoal, EntityID: 2, Model: "m", Vector: []float32{1, 0}},
		{EntityKind: types.KindGoal, EntityID: 1, Model: "m", Vector: []float32{0, 1}},
		{EntityKind: types.KindElaboration, EntityID: 1, Model: "m", Vector: []float32{0.5, 0.5}},
		{EntityKind: types.KindGoal, EntityID: 1, Model: "other", Vector: []float32{1, 1, 1}},
	}
	for _, r := range records {
		require.NoError(t, storage.UpsertEmbedding(ctx, r))
	}

	goals, err := storage.LoadEmbeddings(ctx, types.KindGoal, "m")
	require.NoError(t, err)
	require.Len(t, goals, 2)
	assert.Equal(t, int64(2), goals[0].EntityID, "insertion order")
	assert.Equal(t, []float32{1, 0}, goals[0].Vector)
	assert.Equal(t, 2, goals[0].Dimension)

	t.Run("upsert keeps position", func(t *testing.T) {
		require.NoError(t, storage.UpsertEmbedding(ctx, &EmbeddingRecord{
			EntityKind: types.KindGoal, EntityID: 2, Model: "m", Vector: []float32{0.6, 0.8},
		}))
		goals, err := storage.LoadEmbeddings(ctx, types.KindGoal, "m")
		require.NoError(t, err)
		require.Len(t, goals, 2)
		assert.Equal(t, int64(2), goals[0].EntityID)
		assert.InDelta(t, 0.6, goals[0].Vector[0], 1e-6)
	})

	all, err := storage.LoadEmbeddings(ctx, types.KindGoal, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	err = storage.UpsertEmbedding(ctx, &EmbeddingRecord{EntityKind: "unit", EntityID: 1, Model: "m", Vector: []float32{1}})
	assert.ErrorIs(t, err, types.ErrInvalidEntityKind)

	err = storage.UpsertEmbedding(ctx, &EmbeddingRecord{EntityKind: types.KindGoal, EntityID: 1, Model: "m"})
	assert.Error(t, err)
}

func TestGetStats(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	goal := &types.Goal{ExternalID: "g", Title: "G", Description: "g", ElaborationIDs: []string{"e1", "e2"}}
	require.NoError(t, storage.UpsertGoal(ctx, goal))
	elab := &types.Elaboration{ExternalID: "e1", Description: "e"}
	require.NoError(t, storage.UpsertElaboration(ctx, elab))
	require.NoError(t, storage.UpsertEmbedding(ctx, &EmbeddingRecord{
		EntityKind: types.KindGoal, EntityID: goal.ID, Model: "m", Vector: []float32{1},
	}))

	stats, err := storage.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Goals)
	assert.Equal(t, 1, stats.Elaborations)
	assert.Equal(t, 2, stats.Links)
	assert.Equal(t, 1, stats.GoalEmbeddings)
	assert.Equal(t, 0, stats.ElaborationEmbeddings)
	assert.Equal(t, []string{"m"}, stats.Models)
	assert.Equal(t, CurrentSchemaVersion, stats.SchemaVersion)
	assert.Equal(t, BuildMode, stats.BuildMode)
}

func TestTransaction(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.UpsertGoal(ctx, &types.Goal{ExternalID: "t1", Title: "T", Description: "t", ElaborationIDs: []string{"e"}}))
		require.NoError(t, tx.UpsertElaboration(ctx, &types.Elaboration{ExternalID: "e", Description: "e"}))

		inTx, err := tx.GetGoalByExternalID(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, []string{"e"}, inTx.ElaborationIDs)

		require.NoError(t, tx.Commit())

		_, err = storage.GetGoalByExternalID(ctx, "t1")
		assert.NoError(t, err)
	})

	t.Run("rollback", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.UpsertGoal(ctx, &types.Goal{ExternalID: "t2", Title: "T", Description: "t"}))
		require.NoError(t, tx.Rollback())

		_, err = storage.GetGoalByExternalID(ctx, "t2")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("nested not supported", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback() }()

		_, err = tx.BeginTx(ctx)
		assert.Error(t, err)
	})
}

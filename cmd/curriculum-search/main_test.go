package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// testApp returns the app with output captured and exit handling disabled
func testApp(t *testing.T) (*cli.App, *bytes.Buffer) {
	t.Helper()
	t.Setenv("CURRICULUM_EMBEDDING_PROVIDER", "local")
	t.Setenv("CURRICULUM_RERANK_ENABLED", "false")

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &bytes.Buffer{}
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app, &out
}

func TestAppCommands(t *testing.T) {
	app := newApp()
	names := make([]string, 0, len(app.Commands))
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	assert.ElementsMatch(t, []string{"serve", "ingest", "search", "goal", "stats"}, names)
}

func TestSearchRequiresQuery(t *testing.T) {
	app, _ := testApp(t)
	db := filepath.Join(t.TempDir(), "test.db")

	err := app.Run([]string{"curriculum-search", "--db", db, "search"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query is required")
}

func TestGoalRequiresID(t *testing.T) {
	app, _ := testApp(t)
	db := filepath.Join(t.TempDir(), "test.db")

	err := app.Run([]string{"curriculum-search", "--db", db, "goal", "abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "numeric goal id")
}

func TestInvalidLogLevel(t *testing.T) {
	app, _ := testApp(t)
	db := filepath.Join(t.TempDir(), "test.db")

	err := app.Run([]string{"curriculum-search", "--log-level", "loud", "--db", db, "stats"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loud")
}

func TestInvalidConfigFromEnv(t *testing.T) {
	app, _ := testApp(t)
	t.Setenv("CURRICULUM_SEARCH_WEIGHT", "2")

	err := app.Run([]string{"curriculum-search", "--db", filepath.Join(t.TempDir(), "test.db"), "stats"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.weight")
}

func TestEndToEnd(t *testing.T) {
	db := filepath.Join(t.TempDir(), "curriculum.db")
	data := filepath.Join("..", "..", "internal", "ingest", "testdata")

	t.Run("ingest reports skipped records", func(t *testing.T) {
		app, out := testApp(t)
		err := app.Run([]string{"curriculum-search", "--db", db, "ingest", "--data-dir", data})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 problems")
		assert.Contains(t, out.String(), "Goals:        2 (2 embedded)")
		assert.Contains(t, out.String(), "Elaborations: 3 (3 embedded)")
		assert.Contains(t, out.String(), "Skipped:      1")
	})

	t.Run("stats", func(t *testing.T) {
		app, out := testApp(t)
		require.NoError(t, app.Run([]string{"curriculum-search", "--db", db, "stats"}))

		var stats map[string]interface{}
		require.NoError(t, json.Unmarshal(out.Bytes(), &stats))
		assert.EqualValues(t, 2, stats["total_goals"])
		assert.EqualValues(t, 3, stats["total_elaborations"])
		assert.EqualValues(t, 2, stats["goals_with_embeddings"])
	})

	t.Run("search as json", func(t *testing.T) {
		app, out := testApp(t)
		err := app.Run([]string{"curriculum-search", "--db", db,
			"search", "--threshold", "0", "--json", "Breuken", "vergelijken"})
		require.NoError(t, err)

		var resp struct {
			Query    string `json:"query"`
			Reranked bool   `json:"reranked"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
		assert.Equal(t, "Breuken vergelijken", resp.Query)
		assert.False(t, resp.Reranked)
	})

	t.Run("search elaborations as text", func(t *testing.T) {
		app, out := testApp(t)
		err := app.Run([]string{"curriculum-search", "--db", db,
			"search", "--kind", "elaborations", "--threshold", "0", "noemers"})
		require.NoError(t, err)
		assert.Contains(t, out.String(), `results for "noemers"`)
	})

	t.Run("unknown search kind", func(t *testing.T) {
		app, _ := testApp(t)
		err := app.Run([]string{"curriculum-search", "--db", db, "search", "--kind", "levels", "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown kind")
	})

	t.Run("goal by external id", func(t *testing.T) {
		app, out := testApp(t)
		err := app.Run([]string{"curriculum-search", "--db", db, "goal", "--external-id", "dz-001"})
		require.NoError(t, err)

		var detail struct {
			ExternalID   string `json:"external_id"`
			Elaborations []struct {
				ExternalID string `json:"external_id"`
			} `json:"elaborations"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &detail))
		assert.Equal(t, "dz-001", detail.ExternalID)
		require.Len(t, detail.Elaborations, 2)
		assert.Equal(t, "uw-001", detail.Elaborations[0].ExternalID)
		assert.Equal(t, "uw-002", detail.Elaborations[1].ExternalID)
	})

	t.Run("missing goal", func(t *testing.T) {
		app, _ := testApp(t)
		err := app.Run([]string{"curriculum-search", "--db", db, "goal", "--external-id", "dz-999"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}

package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func queryProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Natural-language description of the lesson or topic, usually in Dutch",
	}
}

func limitProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": "Maximum number of results to return (1-100)",
		"default":     10,
		"minimum":     1,
		"maximum":     100,
	}
}

func thresholdProperty(def float64) map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": "Minimum similarity a result needs (0.0-1.0)",
		"default":     def,
		"minimum":     0.0,
		"maximum":     1.0,
	}
}

// searchTool returns the tool definition for search
func searchTool() mcp.Tool {
	return mcp.Tool{
		Name: "search",
		Description: "Search learning goals (doelzinnen) using the goal text and its elaborations (uitwerkingen). " +
			"Combines semantic similarity with keyword matching and can optionally let an LLM re-grade the top results.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query":     queryProperty(),
				"limit":     limitProperty(),
				"threshold": thresholdProperty(DefaultThreshold),
				"weight": map[string]interface{}{
					"type":        "number",
					"description": "Share of the goal's own similarity in the combined score; the rest comes from its best elaboration",
					"default":     0.7,
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"lexical_weight": map[string]interface{}{
					"type":        "number",
					"description": "Weight of the keyword (BM25) boost added to each score",
					"minimum":     0.0,
				},
				"rerank": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, an LLM grades the top results and they are re-ordered",
					"default":     false,
				},
			},
			Required: []string{"query"},
		},
	}
}

// searchGoalsTool returns the tool definition for search_goals
func searchGoalsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_goals",
		Description: "Search learning goals (doelzinnen) by semantic similarity only",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query":     queryProperty(),
				"limit":     limitProperty(),
				"threshold": thresholdProperty(0),
			},
			Required: []string{"query"},
		},
	}
}

// searchElaborationsTool returns the tool definition for search_elaborations
func searchElaborationsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_elaborations",
		Description: "Search elaborations (uitwerkingen) by semantic similarity only",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query":     queryProperty(),
				"limit":     limitProperty(),
				"threshold": thresholdProperty(0),
			},
			Required: []string{"query"},
		},
	}
}

// getGoalTool returns the tool definition for get_goal
func getGoalTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_goal",
		Description: "Get one learning goal with all of its elaborations. Pass either id or external_id.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "integer",
					"description": "Goal id as returned by search",
				},
				"external_id": map[string]interface{}{
					"type":        "string",
					"description": "Curriculum id of the goal",
				},
			},
		},
	}
}

// statsTool returns the tool definition for stats
func statsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "stats",
		Description: "Get corpus and embedding statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// ingestTool returns the tool definition for ingest
func ingestTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest",
		Description: "Load doelzinnen.json and uitwerkingen.json from a directory and embed them",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"data_dir": map[string]interface{}{
					"type":        "string",
					"description": "Directory holding the export files; defaults to the configured data directory",
				},
			},
		},
	}
}

// Package mcp implements the Model Context Protocol (MCP) server for
// curriculum search.
//
// The server speaks JSON-RPC 2.0 over stdio and exposes these tools:
//   - search: hybrid search over goals and their elaborations
//   - search_goals: semantic search over goals only
//   - search_elaborations: semantic search over elaborations only
//   - get_goal: one goal with its elaborations resolved
//   - stats: corpus and embedding counts
//   - ingest: load a data directory (only when an Ingester is configured)
//
// Every tool returns its result as indented JSON text. Parameter and backend
// failures are returned as *MCPError with a JSON-RPC style code.
//
// # Tool: search
//
//	Request:
//	{
//	  "name": "search",
//	  "arguments": {
//	    "query": "breuken vergelijken in groep 6",
//	    "limit": 10,
//	    "threshold": 0.4,
//	    "weight": 0.7,
//	    "rerank": false
//	  }
//	}
//
//	Response:
//	{
//	  "query": "breuken vergelijken in groep 6",
//	  "count": 1,
//	  "results": [
//	    {
//	      "id": 12,
//	      "external_id": "dz-001",
//	      "title": "Breuken vergelijken",
//	      "similarity": 0.71,
//	      "scores": {"goal_similarity": 0.5, "elaboration_similarity": 0.9, ...}
//	    }
//	  ],
//	  "reranked": false,
//	  "request_id": "..."
//	}
//
// Similarity may exceed 1.0 because the keyword boost is added on top of the
// semantic score.
//
// # Error Codes
//
//	-32602  invalid parameters
//	-32603  internal error
//	-32002  ingestion already in progress
//	-32003  stored embeddings come from a different model
//	-32004  empty query
//	-32005  embedding provider unavailable
package mcp

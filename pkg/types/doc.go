// Package types provides shared type definitions for the curriculum search server.
//
// This package defines the domain types used across storage, search, ingestion
// and the MCP front end: the two linked curriculum entity kinds and the search
// results built from them.
//
// # Core Types
//
// Goal is a learning goal ("doelzin"). It carries an ordered list of external
// ids of the elaborations that belong to it:
//
//	goal := &types.Goal{
//	    ExternalID:     "a1b2",
//	    Title:          "Fotosynthese",
//	    Description:    "De leerling kan fotosynthese beschrijven",
//	    ElaborationIDs: []string{"e1", "e2"},
//	}
//
// Elaboration is an elaboration ("uitwerking") of one or more goals. The link
// is a weak reference by external id: an elaboration does not know which goals
// point at it.
//
// # Search Results
//
// SearchResult is a ranked goal (or elaboration) with a single comparable
// Similarity and a ScoreBreakdown describing how the score was built:
//
//	for _, r := range resp.Results {
//	    fmt.Printf("%d. %s (%.3f, bm25=%.2f)\n", r.Rank, r.Title, r.Similarity, r.Scores.LexicalRaw)
//	}
//
// Similarity is not bounded to [0,1]: the lexical boost is additive, so a
// strong semantic and lexical match can exceed 1.0.
//
// # Errors
//
// ErrEmbeddingProvider and ErrDimensionMismatch are fatal to a search call.
// ErrEntityNotFound is reported by storage lookups.
package types

// Package storage provides SQLite-based persistence for curriculum data.
//
// The storage layer manages:
//   - Learning goals and their ordered links to elaborations
//   - Elaborations
//   - Vector embeddings per entity and model
//
// # Database Schema
//
// Tables:
//   - goals: learning goals keyed by a unique external id
//   - elaborations: elaborations keyed by a unique external id
//   - goal_elaborations: ordered (goal_id, position) -> elaboration external id;
//     the target is a weak reference and may point at a missing elaboration
//   - embeddings: little-endian float32 blobs, unique per (kind, entity, model)
//   - schema_version: applied migrations (semantic versions)
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("curriculum.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	goal := &types.Goal{ExternalID: "dz-1", Title: "Breuken", Description: "..."}
//	if err := db.UpsertGoal(ctx, goal); err != nil {
//	    return err
//	}
//
//	err = db.UpsertEmbedding(ctx, &storage.EmbeddingRecord{
//	    EntityKind: types.KindGoal,
//	    EntityID:   goal.ID,
//	    Model:      "nomic-embed-text",
//	    Vector:     vector,
//	})
//
// Upserts are idempotent: re-ingesting the same external id updates the row
// in place and keeps its id, so embeddings stay attached.
//
// # Transactions
//
// Use transactions for atomic batches:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	for _, g := range goals {
//	    if err := tx.UpsertGoal(ctx, g); err != nil {
//	        return err
//	    }
//	}
//	return tx.Commit()
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go). Build with
// -tags sqlite_cgo to use github.com/mattn/go-sqlite3 instead.
//
// # Read Consistency
//
// Readers get no snapshot isolation against a concurrent ingestion run; a
// search may observe a partially ingested corpus.
package storage

// Package ingest loads a curriculum export (doelzinnen.json and
// uitwerkingen.json) into storage and embeds every goal and elaboration.
//
// Records are upserted by external id, so running an ingestion twice leaves
// one row and one embedding per record and model. Embedding batches run on a
// bounded worker pool. Only one run may be active per Ingester.
package ingest

package storage

import (
	"context"

	"github.com/dshills/curriculum-search/pkg/types"
)

// Storage defines the interface for persisting and reading curriculum data
type Storage interface {
	// Goal operations
	UpsertGoal(ctx context.Context, goal *types.Goal) error
	GetGoal(ctx context.Context, id int64) (*types.Goal, error)
	GetGoalByExternalID(ctx context.Context, externalID string) (*types.Goal, error)
	ListGoals(ctx context.Context) ([]*types.Goal, error)

	// Elaboration operations
	UpsertElaboration(ctx context.Context, elaboration *types.Elaboration) error
	ListElaborations(ctx context.Context) ([]*types.Elaboration, error)
	GetElaborationsByExternalIDs(ctx context.Context, externalIDs []string) ([]*types.Elaboration, error)

	// Embedding operations
	UpsertEmbedding(ctx context.Context, record *EmbeddingRecord) error
	LoadEmbeddings(ctx context.Context, kind types.EntityKind, model string) ([]*EmbeddingRecord, error)

	// Status operations
	GetStats(ctx context.Context) (*Stats, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Reader is the read-only subset the searcher needs
type Reader interface {
	GetGoal(ctx context.Context, id int64) (*types.Goal, error)
	GetGoalByExternalID(ctx context.Context, externalID string) (*types.Goal, error)
	ListGoals(ctx context.Context) ([]*types.Goal, error)
	ListElaborations(ctx context.Context) ([]*types.Elaboration, error)
	GetElaborationsByExternalIDs(ctx context.Context, externalIDs []string) ([]*types.Elaboration, error)
	LoadEmbeddings(ctx context.Context, kind types.EntityKind, model string) ([]*EmbeddingRecord, error)
	GetStats(ctx context.Context) (*Stats, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// EmbeddingRecord is one stored vector for a goal or elaboration
type EmbeddingRecord struct {
	ID         int64
	EntityKind types.EntityKind
	EntityID   int64
	Model      string
	Dimension  int
	Vector     []float32
}

// Stats summarizes what is stored
type Stats struct {
	Goals                 int      `json:"total_goals"`
	Elaborations          int      `json:"total_elaborations"`
	Links                 int      `json:"total_links"`
	GoalEmbeddings        int      `json:"goals_with_embeddings"`
	ElaborationEmbeddings int      `json:"elaborations_with_embeddings"`
	Models                []string `json:"models"`
	SchemaVersion         string   `json:"schema_version"`
	BuildMode             string   `json:"build_mode"`
	SizeMB                float64  `json:"size_mb"`
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/panjf2000/ants/v2"

	"github.com/dshills/curriculum-search/internal/embedder"
	"github.com/dshills/curriculum-search/internal/storage"
	"github.com/dshills/curriculum-search/pkg/types"
)

var (
	ErrStorageRequired  = errors.New("storage is required")
	ErrEmbedderRequired = errors.New("embedder is required")
	ErrInProgress       = errors.New("ingestion already in progress")
)

// Statistics summarizes one ingestion run
type Statistics struct {
	Goals                 int
	Elaborations          int
	GoalEmbeddings        int
	ElaborationEmbeddings int
	Skipped               int // records that failed validation
	Duration              time.Duration
}

// Ingester loads a curriculum export into storage and embeds every record
type Ingester struct {
	store     storage.Storage
	embedder  embedder.Embedder
	pool      *ants.Pool
	batchSize int
	lock      Lock
	logger    *slog.Logger
}

// Option configures an Ingester
type Option func(*Ingester) error

// WithPoolSize sets how many embedding batches run at once.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(in *Ingester) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if in.pool != nil {
			in.pool.Release()
		}
		in.pool = pool
		return nil
	}
}

// WithBatchSize sets how many texts go into one embedding request.
func WithBatchSize(n int) Option {
	return func(in *Ingester) error {
		if n < 1 || n > embedder.MaxBatchSize {
			return fmt.Errorf("batch size must be between 1 and %d", embedder.MaxBatchSize)
		}
		in.batchSize = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(in *Ingester) error {
		if logger == nil {
			logger = slog.Default()
		}
		in.logger = logger.With("component", "ingest")
		return nil
	}
}

// New creates an Ingester. Call Release when done.
func New(store storage.Storage, emb embedder.Embedder, opts ...Option) (*Ingester, error) {
	if store == nil {
		return nil, ErrStorageRequired
	}
	if emb == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	in := &Ingester{
		store:     store,
		embedder:  emb,
		pool:      pool,
		batchSize: embedder.DefaultBatchSize,
		logger:    slog.Default().With("component", "ingest"),
	}

	for _, opt := range opts {
		if err := opt(in); err != nil {
			in.Release()
			return nil, err
		}
	}

	return in, nil
}

// Release stops the worker pool.
func (in *Ingester) Release() {
	if in.pool != nil {
		in.pool.Release()
	}
}

// IngestDir loads the export files in dir and ingests them.
func (in *Ingester) IngestDir(ctx context.Context, dir string) (*Statistics, error) {
	corpus, err := LoadCorpus(dir)
	if err != nil {
		return nil, err
	}
	return in.Ingest(ctx, corpus)
}

// Ingest upserts every valid record and stores one embedding per record for
// the embedder's model. Re-running with the same corpus updates rows in place.
//
// Records that fail validation are skipped. Their errors, together with any
// failed embedding batches, come back as a *multierror.Error alongside the
// statistics. Storage failures abort the run.
func (in *Ingester) Ingest(ctx context.Context, corpus *Corpus) (*Statistics, error) {
	if !in.lock.TryAcquire() {
		return nil, ErrInProgress
	}
	defer in.lock.Release()

	start := time.Now()
	stats := &Statistics{}
	var result *multierror.Error

	elabs := make([]*types.Elaboration, 0, len(corpus.Elaborations))
	for _, e := range corpus.Elaborations {
		if err := e.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("elaboration %q: %w", e.ExternalID, err))
			stats.Skipped++
			continue
		}
		elabs = append(elabs, e)
	}
	goals := make([]*types.Goal, 0, len(corpus.Goals))
	for _, g := range corpus.Goals {
		if err := g.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("goal %q: %w", g.ExternalID, err))
			stats.Skipped++
			continue
		}
		goals = append(goals, g)
	}

	if err := in.storeRecords(ctx, goals, elabs); err != nil {
		return nil, err
	}
	stats.Goals = len(goals)
	stats.Elaborations = len(elabs)
	in.logger.Info("records stored", "goals", stats.Goals, "elaborations", stats.Elaborations, "skipped", stats.Skipped)

	jobs := make([]embedJob, 0, len(goals)+len(elabs))
	for _, g := range goals {
		jobs = append(jobs, embedJob{kind: types.KindGoal, id: g.ID, text: g.EmbeddingText()})
	}
	for _, e := range elabs {
		jobs = append(jobs, embedJob{kind: types.KindElaboration, id: e.ID, text: e.EmbeddingText()})
	}

	if err := in.embed(ctx, jobs); err != nil {
		result = multierror.Append(result, err)
	}

	if err := in.storeEmbeddings(ctx, jobs, stats); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(start)
	in.logger.Info("ingestion complete",
		"goal_embeddings", stats.GoalEmbeddings,
		"elaboration_embeddings", stats.ElaborationEmbeddings,
		"model", in.embedder.Model(),
		"duration", stats.Duration)

	return stats, result.ErrorOrNil()
}

// storeRecords upserts elaborations and goals in one transaction
func (in *Ingester) storeRecords(ctx context.Context, goals []*types.Goal, elabs []*types.Elaboration) error {
	tx, err := in.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range elabs {
		if err := tx.UpsertElaboration(ctx, e); err != nil {
			return err
		}
	}
	for _, g := range goals {
		if err := tx.UpsertGoal(ctx, g); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type embedJob struct {
	kind   types.EntityKind
	id     int64
	text   string
	vector []float32
}

// embed fills in job vectors, one pool task per batch. A failed batch leaves
// its jobs without vectors and is reported in the returned error.
func (in *Ingester) embed(ctx context.Context, jobs []embedJob) error {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)

	for start := 0; start < len(jobs); start += in.batchSize {
		end := min(start+in.batchSize, len(jobs))
		batch := jobs[start:end]

		texts := make([]string, len(batch))
		for i, j := range batch {
			texts[i] = j.text
		}

		wg.Add(1)
		err := in.pool.Submit(func() {
			defer wg.Done()
			vectors, err := embedder.EmbedAll(ctx, in.embedder, texts, in.batchSize)
			if err != nil {
				in.logger.Error("embedding batch failed", "from", start, "to", end, "err", err)
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("embed records %d-%d: %w", start, end, err))
				mu.Unlock()
				return
			}
			// each task owns a disjoint slice of jobs
			for i := range batch {
				batch[i].vector = vectors[i]
			}
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			result = multierror.Append(result, fmt.Errorf("submit records %d-%d: %w", start, end, err))
			mu.Unlock()
		}
	}

	wg.Wait()
	return result.ErrorOrNil()
}

// storeEmbeddings writes every vector produced by embed in one transaction
func (in *Ingester) storeEmbeddings(ctx context.Context, jobs []embedJob, stats *Statistics) error {
	tx, err := in.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	model := in.embedder.Model()
	for _, j := range jobs {
		if len(j.vector) == 0 {
			continue
		}
		rec := &storage.EmbeddingRecord{
			EntityKind: j.kind,
			EntityID:   j.id,
			Model:      model,
			Vector:     j.vector,
		}
		if err := tx.UpsertEmbedding(ctx, rec); err != nil {
			return err
		}
		switch j.kind {
		case types.KindGoal:
			stats.GoalEmbeddings++
		case types.KindElaboration:
			stats.ElaborationEmbeddings++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
